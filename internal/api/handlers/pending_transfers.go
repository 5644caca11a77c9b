package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/eshaffer321/transfer-reconciler/internal/api/dto"
	"github.com/eshaffer321/transfer-reconciler/internal/application/service"
	"github.com/eshaffer321/transfer-reconciler/internal/domain/transfer"
	"github.com/eshaffer321/transfer-reconciler/internal/infrastructure/storage"
)

// PendingTransfersHandler manages manually declared transfers.
type PendingTransfersHandler struct {
	*Base
	ledger *service.LedgerService
}

// NewPendingTransfersHandler creates a new pending transfers handler.
func NewPendingTransfersHandler(ledger *service.LedgerService, logger *slog.Logger) *PendingTransfersHandler {
	return &PendingTransfersHandler{
		Base:   NewBase(nil, logger),
		ledger: ledger,
	}
}

// Create handles POST /api/pending-transfers.
func (h *PendingTransfersHandler) Create(w http.ResponseWriter, r *http.Request) {
	var body dto.CreatePendingTransferRequest
	if !h.DecodeJSON(w, r, &body, false) {
		return
	}

	date, err := ParseDate("transfer_date", body.TransferDate)
	if err != nil {
		h.WriteServiceError(w, r, err)
		return
	}

	p, err := h.ledger.Create(r.Context(), service.CreatePendingRequest{
		FromAccountID:        body.FromAccountID,
		ToAccountID:          body.ToAccountID,
		Amount:               body.Amount,
		TransferDate:         date,
		Description:          body.Description,
		Notes:                body.Notes,
		MatchToleranceDays:   body.MatchToleranceDays,
		MatchToleranceAmount: body.MatchToleranceAmount,
	})
	if err != nil {
		h.WriteServiceError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, toPendingTransferResponse(p))
}

// List handles GET /api/pending-transfers - supports status (comma-separated),
// account_id, limit and offset.
func (h *PendingTransfersHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := storage.PendingTransferFilter{
		AccountID: r.URL.Query().Get("account_id"),
		Limit:     ParseIntParam(r, "limit", 0),
		Offset:    max(ParseIntParam(r, "offset", 0), 0),
	}
	if filter.Limit < 0 {
		filter.Limit = 0
	}
	for _, status := range ParseListParam(r, "status") {
		filter.Statuses = append(filter.Statuses, transfer.PendingStatus(status))
	}

	entries, err := h.ledger.List(r.Context(), filter)
	if err != nil {
		h.WriteServiceError(w, r, err)
		return
	}

	response := dto.PendingTransferListResponse{
		PendingTransfers: make([]dto.PendingTransferResponse, 0, len(entries)),
		Count:            len(entries),
	}
	for _, p := range entries {
		response.PendingTransfers = append(response.PendingTransfers, toPendingTransferResponse(p))
	}

	h.WriteJSON(w, http.StatusOK, response)
}

// Get handles GET /api/pending-transfers/{id}.
func (h *PendingTransfersHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.ledger.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.WriteServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, toPendingTransferResponse(p))
}

// Update handles PUT /api/pending-transfers/{id} - only while still pending.
func (h *PendingTransfersHandler) Update(w http.ResponseWriter, r *http.Request) {
	var body dto.UpdatePendingTransferRequest
	if !h.DecodeJSON(w, r, &body, false) {
		return
	}

	req := service.UpdatePendingRequest{
		Amount:               body.Amount,
		Description:          body.Description,
		Notes:                body.Notes,
		MatchToleranceDays:   body.MatchToleranceDays,
		MatchToleranceAmount: body.MatchToleranceAmount,
	}
	if body.TransferDate != nil {
		date, err := ParseDate("transfer_date", *body.TransferDate)
		if err != nil {
			h.WriteServiceError(w, r, err)
			return
		}
		if date.IsZero() {
			h.WriteServiceError(w, r, transfer.NewValidationError("transfer_date", "must not be empty"))
			return
		}
		req.TransferDate = &date
	}

	p, err := h.ledger.Update(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		h.WriteServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, toPendingTransferResponse(p))
}

// Cancel handles POST /api/pending-transfers/{id}/cancel.
func (h *PendingTransfersHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	p, err := h.ledger.Cancel(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.WriteServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, toPendingTransferResponse(p))
}

// Delete handles DELETE /api/pending-transfers/{id}.
func (h *PendingTransfersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.ledger.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.WriteServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Match handles POST /api/pending-transfers/match - runs one opportunistic
// matching pass now.
func (h *PendingTransfersHandler) Match(w http.ResponseWriter, r *http.Request) {
	report, err := h.ledger.OpportunisticMatch(r.Context())
	if err != nil {
		h.WriteServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, toMatchReportResponse(report))
}

// toPendingTransferResponse converts a domain entry to an API response.
func toPendingTransferResponse(p *transfer.PendingTransfer) dto.PendingTransferResponse {
	return dto.PendingTransferResponse{
		ID:                   p.ID,
		FromAccountID:        p.FromAccountID,
		ToAccountID:          p.ToAccountID,
		Amount:               formatAmount(p.Amount),
		TransferDate:         formatDay(p.TransferDate),
		Description:          p.Description,
		Notes:                p.Notes,
		Status:               string(p.Status),
		FromTransactionID:    p.FromTransactionID,
		ToTransactionID:      p.ToTransactionID,
		MatchToleranceDays:   p.MatchToleranceDays,
		MatchToleranceAmount: formatAmount(p.MatchToleranceAmount),
		CreatedAt:            p.CreatedAt,
		UpdatedAt:            p.UpdatedAt,
		MatchedAt:            utcPtr(p.MatchedAt),
	}
}

// toMatchReportResponse converts a matching pass summary to an API response.
func toMatchReportResponse(report *service.MatchReport) dto.MatchReportResponse {
	response := dto.MatchReportResponse{
		Examined:  report.Examined,
		Matched:   report.Matched,
		Partial:   report.Partial,
		Reverted:  report.Reverted,
		Unchanged: report.Unchanged,
		Updated:   make([]dto.PendingTransferResponse, 0, len(report.Updated)),
		Ambiguous: make([]dto.AmbiguityResponse, 0, len(report.Ambiguous)),
		Conflicts: make([]dto.ConflictResponse, 0, len(report.Conflicts)),
	}
	for _, p := range report.Updated {
		response.Updated = append(response.Updated, toPendingTransferResponse(p))
	}
	for _, a := range report.Ambiguous {
		response.Ambiguous = append(response.Ambiguous, dto.AmbiguityResponse{
			PendingTransferID: a.PendingTransferID,
			Side:              string(a.Side),
			CandidateIDs:      a.CandidateIDs,
		})
	}
	for _, c := range report.Conflicts {
		response.Conflicts = append(response.Conflicts, dto.ConflictResponse{
			PendingTransferID: c.PendingTransferID,
			Error:             c.Error,
		})
	}
	return response
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
