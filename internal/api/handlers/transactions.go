package handlers

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/eshaffer321/transfer-reconciler/internal/api/dto"
	"github.com/eshaffer321/transfer-reconciler/internal/application/service"
	"github.com/eshaffer321/transfer-reconciler/internal/domain/transfer"
	"github.com/eshaffer321/transfer-reconciler/internal/infrastructure/storage"
)

// TransactionsHandler accepts and lists statement transactions.
type TransactionsHandler struct {
	*Base
	transactions *service.TransactionService
}

// NewTransactionsHandler creates a new transactions handler.
func NewTransactionsHandler(transactions *service.TransactionService, logger *slog.Logger) *TransactionsHandler {
	return &TransactionsHandler{
		Base:         NewBase(nil, logger),
		transactions: transactions,
	}
}

// List handles GET /api/transactions - supports from, to, account_id
// (comma-separated) and unlinked.
func (h *TransactionsHandler) List(w http.ResponseWriter, r *http.Request) {
	from, err := ParseDate("from", r.URL.Query().Get("from"))
	if err != nil {
		h.WriteServiceError(w, r, err)
		return
	}
	to, err := ParseDate("to", r.URL.Query().Get("to"))
	if err != nil {
		h.WriteServiceError(w, r, err)
		return
	}

	txs, err := h.transactions.List(r.Context(), storage.TransactionFilter{
		From:         from,
		To:           to,
		AccountIDs:   ParseListParam(r, "account_id"),
		UnlinkedOnly: ParseBoolParam(r, "unlinked", false),
	})
	if err != nil {
		h.WriteServiceError(w, r, err)
		return
	}

	response := dto.TransactionListResponse{
		Transactions: make([]dto.TransactionResponse, 0, len(txs)),
		Count:        len(txs),
	}
	for _, tx := range txs {
		response.Transactions = append(response.Transactions, toTransactionResponse(tx))
	}

	h.WriteJSON(w, http.StatusOK, response)
}

// Ingest handles POST /api/transactions - upserts statement lines and lets
// pending transfers claim them.
func (h *TransactionsHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	var body dto.IngestTransactionsRequest
	if !h.DecodeJSON(w, r, &body, false) {
		return
	}
	if len(body.Transactions) == 0 {
		h.WriteError(w, http.StatusBadRequest, dto.ValidationError("transactions must not be empty"))
		return
	}

	txs := make([]*transfer.Transaction, 0, len(body.Transactions))
	for i, in := range body.Transactions {
		date, err := ParseDate(fmt.Sprintf("transactions[%d].date", i), in.Date)
		if err != nil {
			h.WriteServiceError(w, r, err)
			return
		}
		txs = append(txs, &transfer.Transaction{
			ID:          in.ID,
			AccountID:   in.AccountID,
			Date:        date,
			Amount:      in.Amount,
			Description: in.Description,
			IsLocked:    in.IsLocked,
		})
	}

	result, err := h.transactions.Ingest(r.Context(), txs)
	if err != nil {
		h.WriteServiceError(w, r, err)
		return
	}

	response := dto.IngestResponse{Saved: result.Saved}
	if result.Match != nil {
		match := toMatchReportResponse(result.Match)
		response.Match = &match
	}
	h.WriteJSON(w, http.StatusOK, response)
}

// toTransactionResponse converts a domain transaction to an API response.
func toTransactionResponse(tx *transfer.Transaction) dto.TransactionResponse {
	return dto.TransactionResponse{
		ID:                  tx.ID,
		AccountID:           tx.AccountID,
		Date:                formatDay(tx.Date),
		Amount:              formatAmount(tx.Amount),
		Description:         tx.Description,
		IsLocked:            tx.IsLocked,
		LinkedTransactionID: tx.LinkedTransactionID,
	}
}
