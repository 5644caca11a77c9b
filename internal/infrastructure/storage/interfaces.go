package storage

import (
	"context"
	"time"

	"github.com/eshaffer321/transfer-reconciler/internal/domain/transfer"
)

// Repository defines the complete storage interface.
// This interface allows swapping implementations (SQLite, in-memory, etc.)
// and makes testing with mocks straightforward.
type Repository interface {
	TransactionStore
	PendingTransferRepository
	DecisionRepository
	DetectionRunRepository

	// GetStats returns aggregate counts across all tables
	GetStats(ctx context.Context) (*Stats, error)

	Close() error
}

// TransactionStore is the boundary to the system of record for transactions.
// Links are only ever written through LinkIfUnlinked or the composite
// operations that embed it, so a transaction is never linked twice.
type TransactionStore interface {
	// FetchTransactions returns transactions in the filter window ordered by date, id
	FetchTransactions(ctx context.Context, filter TransactionFilter) ([]*transfer.Transaction, error)

	// GetTransactions returns the current record for each id that exists
	GetTransactions(ctx context.Context, ids []string) (map[string]*transfer.Transaction, error)

	// LinkIfUnlinked links a and b to each other in one atomic step.
	// If either is already linked or locked nothing is written and a
	// *transfer.ConflictError is returned.
	LinkIfUnlinked(ctx context.Context, a, b string) error

	// SaveTransactions inserts or updates transactions. Existing links are preserved.
	SaveTransactions(ctx context.Context, txs []*transfer.Transaction) error
}

// TransactionFilter narrows FetchTransactions. Zero values mean unbounded.
type TransactionFilter struct {
	From         time.Time // Inclusive calendar day
	To           time.Time // Inclusive calendar day
	AccountIDs   []string  // Empty = all accounts
	UnlinkedOnly bool
}

// PendingTransferRepository persists manually declared transfers.
type PendingTransferRepository interface {
	CreatePendingTransfer(ctx context.Context, p *transfer.PendingTransfer) error

	// GetPendingTransfer returns *transfer.NotFoundError when id is unknown
	GetPendingTransfer(ctx context.Context, id string) (*transfer.PendingTransfer, error)

	ListPendingTransfers(ctx context.Context, filter PendingTransferFilter) ([]*transfer.PendingTransfer, error)

	// UpdatePendingTransfer writes p only if the stored status still equals
	// expected. A lost race returns *transfer.ConflictError.
	UpdatePendingTransfer(ctx context.Context, p *transfer.PendingTransfer, expected transfer.PendingStatus) error

	// ApplyPendingMatch links p's two transactions and stores p as matched in
	// one storage transaction. On any conflict nothing is written.
	ApplyPendingMatch(ctx context.Context, p *transfer.PendingTransfer, expected transfer.PendingStatus) error

	// DeletePendingTransfer removes an entry that is pending or cancelled
	DeletePendingTransfer(ctx context.Context, id string) error

	// PendingClaims maps transaction ids held by active entries to the entry id
	PendingClaims(ctx context.Context) (map[string]string, error)
}

// PendingTransferFilter narrows ListPendingTransfers.
type PendingTransferFilter struct {
	Statuses  []transfer.PendingStatus // Empty = all
	AccountID string                   // Either side
	Limit     int                      // 0 = no limit
	Offset    int
}

// DecisionRepository persists match decisions.
type DecisionRepository interface {
	// SaveDecision inserts a decision that does not link anything (pending_review)
	SaveDecision(ctx context.Context, d *transfer.MatchDecision) error

	// CommitAutoLink links the pair and inserts the auto_linked decision atomically
	CommitAutoLink(ctx context.Context, d *transfer.MatchDecision) error

	// ConfirmDecision links the pair and moves the decision from
	// pending_review to confirmed atomically
	ConfirmDecision(ctx context.Context, d *transfer.MatchDecision) error

	// RejectDecision moves the decision from pending_review to rejected
	RejectDecision(ctx context.Context, d *transfer.MatchDecision) error

	// GetDecision returns *transfer.NotFoundError when id is unknown
	GetDecision(ctx context.Context, id string) (*transfer.MatchDecision, error)

	ListDecisions(ctx context.Context, filter DecisionFilter) (*DecisionListResult, error)

	// OpenDecisionTransactionIDs returns ids referenced by pending_review decisions
	OpenDecisionTransactionIDs(ctx context.Context) (map[string]bool, error)

	// RejectedPairs returns every (from, to) pair a reviewer rejected
	RejectedPairs(ctx context.Context) (map[transfer.PairKey]bool, error)
}

// DecisionFilter narrows ListDecisions.
type DecisionFilter struct {
	Status string // Empty = all
	RunID  int64  // 0 = all runs
	Limit  int    // 0 = default 50
	Offset int
}

// DecisionListResult contains paginated decisions
type DecisionListResult struct {
	Decisions  []*transfer.MatchDecision `json:"decisions"`
	TotalCount int                       `json:"total_count"`
	Limit      int                       `json:"limit"`
	Offset     int                       `json:"offset"`
}

// DetectionRunRepository handles detection run tracking
type DetectionRunRepository interface {
	// StartDetectionRun records the start of a run and returns its ID
	StartDetectionRun(ctx context.Context, run *DetectionRun) (int64, error)

	// CompleteDetectionRun records the outcome of a run
	CompleteDetectionRun(ctx context.Context, runID int64, counts RunCounts, runErr error) error

	// ListDetectionRuns returns recent runs, newest first
	ListDetectionRuns(ctx context.Context, limit int) ([]DetectionRun, error)

	// GetDetectionRun returns *transfer.NotFoundError when id is unknown
	GetDetectionRun(ctx context.Context, runID int64) (*DetectionRun, error)
}

const defaultListLimit = 50
