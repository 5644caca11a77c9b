package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/eshaffer321/transfer-reconciler/internal/api/dto"
	"github.com/eshaffer321/transfer-reconciler/internal/infrastructure/storage"
)

// RunsHandler handles detection run history requests.
type RunsHandler struct {
	*Base
}

// NewRunsHandler creates a new runs handler.
func NewRunsHandler(repo storage.Repository, logger *slog.Logger) *RunsHandler {
	return &RunsHandler{
		Base: NewBase(repo, logger),
	}
}

// List handles GET /api/runs - returns recent detection runs, newest first.
func (h *RunsHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := ParseLimitParam(r, dto.DefaultRunListLimit)

	runs, err := h.repo.ListDetectionRuns(r.Context(), limit)
	if err != nil {
		h.WriteServiceError(w, r, err)
		return
	}

	response := dto.RunListResponse{
		Runs:  make([]dto.RunResponse, 0, len(runs)),
		Count: len(runs),
	}

	for _, run := range runs {
		response.Runs = append(response.Runs, toRunResponse(run))
	}

	h.WriteJSON(w, http.StatusOK, response)
}

// Get handles GET /api/runs/{id} - returns a single detection run by ID.
func (h *RunsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("invalid run ID"))
		return
	}

	run, err := h.repo.GetDetectionRun(r.Context(), id)
	if err != nil {
		h.WriteServiceError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, toRunResponse(*run))
}

// toRunResponse converts a storage DetectionRun to an API response.
func toRunResponse(run storage.DetectionRun) dto.RunResponse {
	accounts := run.AccountIDs
	if accounts == nil {
		accounts = []string{}
	}
	return dto.RunResponse{
		ID:                run.ID,
		StartedAt:         run.StartedAt,
		CompletedAt:       run.CompletedAt,
		WindowStart:       formatDay(run.WindowStart),
		WindowEnd:         formatDay(run.WindowEnd),
		AccountIDs:        accounts,
		AutoLinkThreshold: run.AutoLinkThreshold,
		DateToleranceDays: run.DateToleranceDays,
		AmountTolerance:   formatAmount(run.AmountTolerance),
		ExcludeLocked:     !run.IncludeLocked,
		CandidatesFound:   run.CandidatesFound,
		AutoLinked:        run.AutoLinked,
		PendingReview:     run.PendingReview,
		Conflicts:         run.Conflicts,
		Status:            run.Status,
		ErrorMessage:      run.ErrorMessage,
	}
}
