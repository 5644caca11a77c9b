package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/eshaffer321/transfer-reconciler/internal/api/dto"
	"github.com/eshaffer321/transfer-reconciler/internal/application/service"
	"github.com/eshaffer321/transfer-reconciler/internal/domain/transfer"
	"github.com/eshaffer321/transfer-reconciler/internal/infrastructure/storage"
)

// DecisionsHandler serves the review queue.
type DecisionsHandler struct {
	*Base
	review *service.ReviewService
}

// NewDecisionsHandler creates a new decisions handler.
func NewDecisionsHandler(review *service.ReviewService, logger *slog.Logger) *DecisionsHandler {
	return &DecisionsHandler{
		Base:   NewBase(nil, logger),
		review: review,
	}
}

// List handles GET /api/decisions - supports status, run_id, limit and offset.
func (h *DecisionsHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := storage.DecisionFilter{
		Status: r.URL.Query().Get("status"),
		Limit:  ParseLimitParam(r, dto.DefaultDecisionListLimit),
		Offset: max(ParseIntParam(r, "offset", 0), 0),
	}
	if raw := r.URL.Query().Get("run_id"); raw != "" {
		runID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("invalid run_id"))
			return
		}
		filter.RunID = runID
	}

	result, err := h.review.List(r.Context(), filter)
	if err != nil {
		h.WriteServiceError(w, r, err)
		return
	}

	response := dto.DecisionListResponse{
		Decisions:  make([]dto.DecisionResponse, 0, len(result.Decisions)),
		TotalCount: result.TotalCount,
		Limit:      result.Limit,
		Offset:     result.Offset,
	}
	for _, d := range result.Decisions {
		response.Decisions = append(response.Decisions, toDecisionResponse(d))
	}

	h.WriteJSON(w, http.StatusOK, response)
}

// Get handles GET /api/decisions/{id}.
func (h *DecisionsHandler) Get(w http.ResponseWriter, r *http.Request) {
	d, err := h.review.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.WriteServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, toDecisionResponse(d))
}

// Confirm handles POST /api/decisions/{id}/confirm - links the pair.
func (h *DecisionsHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.review.Confirm)
}

// Reject handles POST /api/decisions/{id}/reject.
func (h *DecisionsHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.review.Reject)
}

func (h *DecisionsHandler) decide(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, id, user string) (*transfer.MatchDecision, error)) {
	var body dto.ReviewRequest
	if !h.DecodeJSON(w, r, &body, true) {
		return
	}

	d, err := fn(r.Context(), chi.URLParam(r, "id"), body.User)
	if err != nil {
		h.WriteServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, toDecisionResponse(d))
}
