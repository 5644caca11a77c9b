package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/eshaffer321/transfer-reconciler/internal/domain/matcher"
	"github.com/eshaffer321/transfer-reconciler/internal/domain/transfer"
	"github.com/eshaffer321/transfer-reconciler/internal/infrastructure/storage"
)

// LedgerOptions are the defaults for newly declared transfers.
type LedgerOptions struct {
	DefaultToleranceDays   int
	DefaultToleranceAmount decimal.Decimal
}

// DefaultLedgerOptions returns 5 days and $0.50.
func DefaultLedgerOptions() LedgerOptions {
	return LedgerOptions{
		DefaultToleranceDays:   transfer.DefaultPendingToleranceDays,
		DefaultToleranceAmount: transfer.DefaultPendingToleranceAmount,
	}
}

// CreatePendingRequest declares a transfer ahead of its statements.
// Nil tolerances take the configured defaults.
type CreatePendingRequest struct {
	FromAccountID        string
	ToAccountID          string
	Amount               decimal.Decimal
	TransferDate         time.Time
	Description          string
	Notes                string
	MatchToleranceDays   *int
	MatchToleranceAmount *decimal.Decimal
}

// UpdatePendingRequest edits a pending entry. Nil fields are left unchanged.
type UpdatePendingRequest struct {
	Amount               *decimal.Decimal
	TransferDate         *time.Time
	Description          *string
	Notes                *string
	MatchToleranceDays   *int
	MatchToleranceAmount *decimal.Decimal
}

// PendingConflict is an entry whose match lost a race to another writer.
type PendingConflict struct {
	PendingTransferID string `json:"pending_transfer_id"`
	Error             string `json:"error"`
}

// MatchReport summarises one opportunistic matching pass.
type MatchReport struct {
	Examined  int                             `json:"examined"`
	Matched   int                             `json:"matched"`
	Partial   int                             `json:"partial"`
	Reverted  int                             `json:"reverted"`
	Unchanged int                             `json:"unchanged"`
	Updated   []*transfer.PendingTransfer     `json:"updated"`
	Ambiguous []*transfer.AmbiguousMatchError `json:"ambiguous"`
	Conflicts []PendingConflict               `json:"conflicts"`
}

func newMatchReport() *MatchReport {
	return &MatchReport{
		Updated:   []*transfer.PendingTransfer{},
		Ambiguous: []*transfer.AmbiguousMatchError{},
		Conflicts: []PendingConflict{},
	}
}

// LedgerService manages manually declared pending transfers.
type LedgerService struct {
	storage storage.Repository
	options LedgerOptions
	logger  *slog.Logger
	now     func() time.Time

	// Serialises matching passes within this process. Correctness across
	// processes comes from the conditional writes in storage.
	matchMu sync.Mutex

	// Periodic matching
	periodicMu   sync.Mutex
	periodicStop chan struct{}
	periodicDone chan struct{}
}

// NewLedgerService creates a new ledger service.
func NewLedgerService(store storage.Repository, options LedgerOptions, logger *slog.Logger) *LedgerService {
	if logger == nil {
		logger = slog.Default()
	}
	return &LedgerService{
		storage: store,
		options: options,
		logger:  logger,
		now:     time.Now,
	}
}

// Create validates and stores a new pending entry.
func (s *LedgerService) Create(ctx context.Context, req CreatePendingRequest) (*transfer.PendingTransfer, error) {
	now := s.now()
	p := &transfer.PendingTransfer{
		ID:                   uuid.NewString(),
		FromAccountID:        req.FromAccountID,
		ToAccountID:          req.ToAccountID,
		Amount:               req.Amount,
		TransferDate:         transfer.Day(req.TransferDate),
		Description:          req.Description,
		Notes:                req.Notes,
		Status:               transfer.PendingStatusPending,
		MatchToleranceDays:   s.options.DefaultToleranceDays,
		MatchToleranceAmount: s.options.DefaultToleranceAmount,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if req.MatchToleranceDays != nil {
		p.MatchToleranceDays = *req.MatchToleranceDays
	}
	if req.MatchToleranceAmount != nil {
		p.MatchToleranceAmount = *req.MatchToleranceAmount
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := s.storage.CreatePendingTransfer(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to create pending transfer: %w", err)
	}

	s.logger.Info("pending transfer created",
		"id", p.ID,
		"from", p.FromAccountID,
		"to", p.ToAccountID,
		"amount", p.Amount.StringFixed(2),
		"transfer_date", p.TransferDate.Format(transfer.DateLayout),
	)
	return p, nil
}

// Get returns one entry.
func (s *LedgerService) Get(ctx context.Context, id string) (*transfer.PendingTransfer, error) {
	return s.storage.GetPendingTransfer(ctx, id)
}

// List returns entries matching the filter.
func (s *LedgerService) List(ctx context.Context, filter storage.PendingTransferFilter) ([]*transfer.PendingTransfer, error) {
	for _, status := range filter.Statuses {
		if !status.Valid() {
			return nil, transfer.NewValidationError("status", "unknown status "+string(status))
		}
	}
	return s.storage.ListPendingTransfers(ctx, filter)
}

// Update edits an entry that has not started matching yet.
func (s *LedgerService) Update(ctx context.Context, id string, req UpdatePendingRequest) (*transfer.PendingTransfer, error) {
	p, err := s.storage.GetPendingTransfer(ctx, id)
	if err != nil {
		return nil, err
	}
	switch {
	case p.Status.IsTerminal():
		return nil, transfer.NewNotFoundError("pending transfer", id, "is "+string(p.Status))
	case p.Status != transfer.PendingStatusPending:
		return nil, transfer.NewValidationError("status", "only pending entries can be edited")
	}

	if req.Amount != nil {
		p.Amount = *req.Amount
	}
	if req.TransferDate != nil {
		p.TransferDate = transfer.Day(*req.TransferDate)
	}
	if req.Description != nil {
		p.Description = *req.Description
	}
	if req.Notes != nil {
		p.Notes = *req.Notes
	}
	if req.MatchToleranceDays != nil {
		p.MatchToleranceDays = *req.MatchToleranceDays
	}
	if req.MatchToleranceAmount != nil {
		p.MatchToleranceAmount = *req.MatchToleranceAmount
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	p.UpdatedAt = s.now()
	if err := s.storage.UpdatePendingTransfer(ctx, p, transfer.PendingStatusPending); err != nil {
		return nil, err
	}
	return p, nil
}

// Cancel moves a pending or partial entry to cancelled and releases any
// transaction it was holding. Cancelling a cancelled entry is a no-op.
func (s *LedgerService) Cancel(ctx context.Context, id string) (*transfer.PendingTransfer, error) {
	p, err := s.storage.GetPendingTransfer(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Status == transfer.PendingStatusCancelled {
		return p, nil
	}
	if !p.Status.CanTransition(transfer.PendingStatusCancelled) {
		return nil, transfer.NewNotFoundError("pending transfer", id, "cannot cancel a "+string(p.Status)+" entry")
	}

	previous := p.Status
	p.Status = transfer.PendingStatusCancelled
	p.FromTransactionID = ""
	p.ToTransactionID = ""
	p.MatchedAt = nil
	p.UpdatedAt = s.now()

	if err := s.storage.UpdatePendingTransfer(ctx, p, previous); err != nil {
		return nil, err
	}
	s.logger.Info("pending transfer cancelled", "id", id, "previous_status", previous)
	return p, nil
}

// Delete removes a pending or cancelled entry.
func (s *LedgerService) Delete(ctx context.Context, id string) error {
	p, err := s.storage.GetPendingTransfer(ctx, id)
	if err != nil {
		return err
	}
	switch p.Status {
	case transfer.PendingStatusPending, transfer.PendingStatusCancelled:
	case transfer.PendingStatusPartial:
		return transfer.NewValidationError("status", "partial entries must be cancelled before deletion")
	default:
		return transfer.NewNotFoundError("pending transfer", id, "cannot delete a "+string(p.Status)+" entry")
	}

	if err := s.storage.DeletePendingTransfer(ctx, id); err != nil {
		return err
	}
	s.logger.Info("pending transfer deleted", "id", id)
	return nil
}

// OpportunisticMatch searches for the statement transactions of every active
// entry. Entries found on both sides become matched and their transactions
// are linked. Ambiguous sides are reported and the entry is left alone.
func (s *LedgerService) OpportunisticMatch(ctx context.Context) (*MatchReport, error) {
	s.matchMu.Lock()
	defer s.matchMu.Unlock()

	active, err := s.storage.ListPendingTransfers(ctx, storage.PendingTransferFilter{
		Statuses: []transfer.PendingStatus{transfer.PendingStatusPending, transfer.PendingStatusPartial},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list active pending transfers: %w", err)
	}

	report := newMatchReport()
	if len(active) == 0 {
		return report, nil
	}

	claims, err := s.storage.PendingClaims(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load pending transfer claims: %w", err)
	}

	for _, p := range active {
		report.Examined++
		if err := s.matchOne(ctx, p, claims, report); err != nil {
			return report, err
		}
	}

	if report.Matched+report.Partial+report.Reverted > 0 || len(report.Ambiguous) > 0 || len(report.Conflicts) > 0 {
		s.logger.Info("opportunistic match completed",
			"examined", report.Examined,
			"matched", report.Matched,
			"partial", report.Partial,
			"reverted", report.Reverted,
			"ambiguous", len(report.Ambiguous),
			"conflicts", len(report.Conflicts),
		)
	}
	return report, nil
}

func (s *LedgerService) matchOne(ctx context.Context, p *transfer.PendingTransfer, claims map[string]string, report *MatchReport) error {
	txs, err := s.storage.FetchTransactions(ctx, storage.TransactionFilter{
		From:         p.TransferDate.AddDate(0, 0, -p.MatchToleranceDays),
		To:           p.TransferDate.AddDate(0, 0, p.MatchToleranceDays),
		AccountIDs:   []string{p.FromAccountID, p.ToAccountID},
		UnlinkedOnly: true,
	})
	if err != nil {
		return fmt.Errorf("failed to fetch transactions for pending transfer %s: %w", p.ID, err)
	}

	pool := make([]*transfer.Transaction, 0, len(txs))
	for _, tx := range txs {
		if owner, ok := claims[tx.ID]; ok && owner != p.ID {
			continue
		}
		pool = append(pool, tx)
	}

	held, err := s.storage.GetTransactions(ctx, p.ClaimedTransactionIDs())
	if err != nil {
		return fmt.Errorf("failed to load held transactions for pending transfer %s: %w", p.ID, err)
	}

	out := matcher.EvaluatePending(p, pool, held)
	for _, amb := range out.Ambiguities {
		s.logger.Warn("ambiguous pending transfer match, needs manual resolution",
			"id", p.ID,
			"side", amb.Side,
			"candidates", amb.CandidateIDs,
		)
		report.Ambiguous = append(report.Ambiguous, amb)
	}

	if !out.Changed(p) {
		report.Unchanged++
		return nil
	}
	if out.Status != p.Status && !p.Status.CanTransition(out.Status) {
		return fmt.Errorf("pending transfer %s: illegal transition %s -> %s", p.ID, p.Status, out.Status)
	}

	next := *p
	next.Status = out.Status
	next.FromTransactionID = out.FromTransactionID
	next.ToTransactionID = out.ToTransactionID
	next.UpdatedAt = s.now()

	if out.Status == transfer.PendingStatusMatched {
		matchedAt := next.UpdatedAt
		next.MatchedAt = &matchedAt
		err = s.storage.ApplyPendingMatch(ctx, &next, p.Status)
	} else {
		err = s.storage.UpdatePendingTransfer(ctx, &next, p.Status)
	}
	if err != nil {
		if !errors.Is(err, transfer.ErrConflict) {
			return fmt.Errorf("failed to update pending transfer %s: %w", p.ID, err)
		}
		s.logger.Warn("pending transfer match conflict", "id", p.ID, "error", err)
		report.Conflicts = append(report.Conflicts, PendingConflict{PendingTransferID: p.ID, Error: err.Error()})
		return nil
	}

	for _, id := range p.ClaimedTransactionIDs() {
		delete(claims, id)
	}
	if next.Status.IsActive() {
		for _, id := range next.ClaimedTransactionIDs() {
			claims[id] = next.ID
		}
	}

	switch next.Status {
	case transfer.PendingStatusMatched:
		report.Matched++
		s.logger.Info("pending transfer matched",
			"id", next.ID,
			"from_transaction", next.FromTransactionID,
			"to_transaction", next.ToTransactionID,
		)
	case transfer.PendingStatusPartial:
		report.Partial++
	default:
		report.Reverted++
	}
	report.Updated = append(report.Updated, &next)
	return nil
}

// StartPeriodicMatching runs OpportunisticMatch every interval until
// StopPeriodicMatching is called. It is a no-op while a loop is running.
func (s *LedgerService) StartPeriodicMatching(interval time.Duration) {
	s.periodicMu.Lock()
	defer s.periodicMu.Unlock()
	if s.periodicStop != nil {
		s.logger.Warn("periodic pending transfer matching already running")
		return
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	s.periodicStop = stop
	s.periodicDone = done

	go func() {
		defer close(done)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() {
			select {
			case <-stop:
				cancel()
			case <-ctx.Done():
			}
		}()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		s.logger.Info("periodic pending transfer matching started", "interval", interval)

		for {
			select {
			case <-stop:
				s.logger.Info("periodic pending transfer matching stopped")
				return
			case <-ticker.C:
				if _, err := s.OpportunisticMatch(ctx); err != nil && ctx.Err() == nil {
					s.logger.Error("periodic pending transfer matching failed", "error", err)
				}
			}
		}
	}()
}

// StopPeriodicMatching stops the periodic matcher and blocks until it has
// fully stopped.
func (s *LedgerService) StopPeriodicMatching() {
	s.periodicMu.Lock()
	defer s.periodicMu.Unlock()
	if s.periodicStop == nil {
		return
	}

	close(s.periodicStop)
	<-s.periodicDone
	s.periodicStop = nil
	s.periodicDone = nil
}
