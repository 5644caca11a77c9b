package handlers

import (
	"log/slog"
	"net/http"

	"github.com/eshaffer321/transfer-reconciler/internal/api/dto"
	"github.com/eshaffer321/transfer-reconciler/internal/application/service"
	"github.com/eshaffer321/transfer-reconciler/internal/domain/transfer"
)

// DetectionsHandler starts detection runs.
type DetectionsHandler struct {
	*Base
	detection *service.DetectionService
}

// NewDetectionsHandler creates a new detections handler.
func NewDetectionsHandler(detection *service.DetectionService, logger *slog.Logger) *DetectionsHandler {
	return &DetectionsHandler{
		Base:      NewBase(nil, logger),
		detection: detection,
	}
}

// Create handles POST /api/detections - runs detection synchronously and
// returns the summary with every decision it produced.
func (h *DetectionsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var body dto.DetectionRequest
	if !h.DecodeJSON(w, r, &body, false) {
		return
	}

	from, err := ParseDate("date_from", body.DateFrom)
	if err != nil {
		h.WriteServiceError(w, r, err)
		return
	}
	to, err := ParseDate("date_to", body.DateTo)
	if err != nil {
		h.WriteServiceError(w, r, err)
		return
	}

	req := h.detection.NewRequest(from, to)
	req.AccountIDs = body.AccountIDs
	req.DryRun = body.DryRun
	if body.ExcludeLocked != nil {
		req.ExcludeLocked = *body.ExcludeLocked
	}
	if body.AutoLinkThreshold != nil {
		req.AutoLinkThreshold = *body.AutoLinkThreshold
	}
	if body.DateToleranceDays != nil {
		req.DateToleranceDays = *body.DateToleranceDays
	}
	if body.AmountTolerance != nil {
		req.AmountTolerance = *body.AmountTolerance
	}

	result, err := h.detection.Run(r.Context(), req)
	if err != nil {
		h.WriteServiceError(w, r, err)
		return
	}

	response := dto.DetectionResponse{
		RunID:             result.RunID,
		DryRun:            result.DryRun,
		CandidatesFound:   result.CandidatesFound,
		AutoLinked:        result.AutoLinked,
		PendingReview:     result.PendingReview,
		RejectedConflicts: result.RejectedConflicts,
		Decisions:         make([]dto.DecisionResponse, 0, len(result.Decisions)),
	}
	for _, d := range result.Decisions {
		decision := toDecisionResponse(d.MatchDecision)
		decision.WouldAutoLink = d.WouldAutoLink
		decision.Conflict = d.Conflict
		response.Decisions = append(response.Decisions, decision)
	}

	status := http.StatusCreated
	if result.DryRun {
		status = http.StatusOK
	}
	h.WriteJSON(w, status, response)
}

// toDecisionResponse converts a domain decision to an API response.
func toDecisionResponse(d *transfer.MatchDecision) dto.DecisionResponse {
	return dto.DecisionResponse{
		ID:                d.ID,
		RunID:             d.RunID,
		FromTransactionID: d.FromTransactionID,
		ToTransactionID:   d.ToTransactionID,
		Score:             d.Score,
		AmountDiff:        formatAmount(d.AmountDiff),
		DateDiffDays:      d.DateDiffDays,
		Status:            string(d.Status),
		DecidedBy:         d.DecidedBy,
		DecidedAt:         d.DecidedAt,
		CreatedAt:         d.CreatedAt,
	}
}
