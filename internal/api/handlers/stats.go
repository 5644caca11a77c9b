package handlers

import (
	"log/slog"
	"net/http"

	"github.com/eshaffer321/transfer-reconciler/internal/api/dto"
	"github.com/eshaffer321/transfer-reconciler/internal/infrastructure/storage"
)

// StatsHandler handles stats-related HTTP requests.
type StatsHandler struct {
	*Base
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(repo storage.Repository, logger *slog.Logger) *StatsHandler {
	return &StatsHandler{
		Base: NewBase(repo, logger),
	}
}

// Get handles GET /api/stats - returns aggregate statistics.
func (h *StatsHandler) Get(w http.ResponseWriter, r *http.Request) {
	stats, err := h.repo.GetStats(r.Context())
	if err != nil {
		h.WriteServiceError(w, r, err)
		return
	}

	response := dto.StatsResponse{
		TotalTransactions:        stats.TotalTransactions,
		LinkedTransactions:       stats.LinkedTransactions,
		DecisionsByStatus:        stats.DecisionsByStatus,
		PendingTransfersByStatus: stats.PendingByStatus,
		DetectionRuns:            stats.DetectionRuns,
	}

	h.WriteJSON(w, http.StatusOK, response)
}
