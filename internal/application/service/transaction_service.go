package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/eshaffer321/transfer-reconciler/internal/domain/transfer"
	"github.com/eshaffer321/transfer-reconciler/internal/infrastructure/storage"
)

// IngestResult reports what an ingest stored and what it matched.
type IngestResult struct {
	Saved int          `json:"saved"`
	Match *MatchReport `json:"match,omitempty"`
}

// TransactionService accepts statement transactions from the ingestion side
// and lets pending transfers claim them as they arrive.
type TransactionService struct {
	storage storage.Repository
	ledger  *LedgerService
	logger  *slog.Logger
}

// NewTransactionService creates a new transaction service. ledger may be nil
// to skip matching on ingest.
func NewTransactionService(store storage.Repository, ledger *LedgerService, logger *slog.Logger) *TransactionService {
	if logger == nil {
		logger = slog.Default()
	}
	return &TransactionService{
		storage: store,
		ledger:  ledger,
		logger:  logger,
	}
}

// List returns transactions in the filter window.
func (s *TransactionService) List(ctx context.Context, filter storage.TransactionFilter) ([]*transfer.Transaction, error) {
	return s.storage.FetchTransactions(ctx, filter)
}

// Ingest upserts transactions and then runs one opportunistic matching pass.
// Existing links are never changed by an ingest.
func (s *TransactionService) Ingest(ctx context.Context, txs []*transfer.Transaction) (*IngestResult, error) {
	for i, tx := range txs {
		switch {
		case tx == nil:
			return nil, transfer.NewValidationError(fmt.Sprintf("transactions[%d]", i), "is empty")
		case tx.ID == "" || tx.AccountID == "":
			return nil, transfer.NewValidationError(fmt.Sprintf("transactions[%d]", i), "id and account_id are required")
		case tx.Date.IsZero():
			return nil, transfer.NewValidationError(fmt.Sprintf("transactions[%d].date", i), "is required")
		}
		tx.Date = transfer.Day(tx.Date)
	}

	if err := s.storage.SaveTransactions(ctx, txs); err != nil {
		return nil, fmt.Errorf("failed to save transactions: %w", err)
	}
	s.logger.Info("transactions ingested", "count", len(txs))

	result := &IngestResult{Saved: len(txs)}
	if s.ledger == nil || len(txs) == 0 {
		return result, nil
	}

	report, err := s.ledger.OpportunisticMatch(ctx)
	if err != nil {
		// Saved transactions stay; the periodic matcher will retry
		s.logger.Error("opportunistic match after ingest failed", "error", err)
		return result, nil
	}
	result.Match = report
	return result, nil
}
