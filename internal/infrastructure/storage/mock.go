package storage

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/eshaffer321/transfer-reconciler/internal/domain/transfer"
)

// MockRepository is an in-memory implementation of Repository for testing.
// It mirrors the conditional-write semantics of the SQLite implementation so
// service tests exercise the same conflict paths.
type MockRepository struct {
	mu           sync.Mutex
	transactions map[string]*transfer.Transaction
	pending      map[string]*transfer.PendingTransfer
	decisions    map[string]*transfer.MatchDecision
	runs         map[int64]*DetectionRun
	nextRunID    int64

	// BeforeLink runs before every link attempt, outside the lock, so a test
	// can simulate a concurrent writer (see ForceLink).
	BeforeLink func(a, b string)

	// Hooks for test assertions
	LinkAttempts      int
	CompletedRunIDs   []int64
	LastCompletedRun  RunCounts
	LastRunError      error
	UpdatePendingCall int

	// Error injection for testing error paths
	FetchErr            error
	LinkErr             error
	SaveDecisionErr     error
	StartRunErr         error
	CompleteRunErr      error
	CreatePendingErr    error
	UpdatePendingErr    error
	ListPendingErr      error
	GetStatsErr         error
	ListDecisionsErr    error
	ListRunsErr         error
	SaveTransactionsErr error
}

// NewMockRepository creates a new mock repository for testing
func NewMockRepository() *MockRepository {
	return &MockRepository{
		transactions: make(map[string]*transfer.Transaction),
		pending:      make(map[string]*transfer.PendingTransfer),
		decisions:    make(map[string]*transfer.MatchDecision),
		runs:         make(map[int64]*DetectionRun),
		nextRunID:    1,
	}
}

// Compile-time check that MockRepository implements Repository
var _ Repository = (*MockRepository)(nil)

// Close does nothing for mock
func (m *MockRepository) Close() error {
	return nil
}

// AddTransactions seeds transactions, replacing any with the same id
func (m *MockRepository) AddTransactions(txs ...*transfer.Transaction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, tx := range txs {
		copied := *tx
		m.transactions[tx.ID] = &copied
	}
}

// Transaction returns a copy of the stored transaction or nil
func (m *MockRepository) Transaction(id string) *transfer.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.transactions[id]
	if !ok {
		return nil
	}
	copied := *tx
	return &copied
}

// ForceLink links a and b without any checks, as an outside writer would
func (m *MockRepository) ForceLink(a, b string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if tx, ok := m.transactions[a]; ok {
		tx.LinkedTransactionID = b
	}
	if tx, ok := m.transactions[b]; ok {
		tx.LinkedTransactionID = a
	}
}

// AddPendingTransfer seeds an entry as-is
func (m *MockRepository) AddPendingTransfer(p *transfer.PendingTransfer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *p
	m.pending[p.ID] = &copied
}

// AddDecision seeds a decision as-is
func (m *MockRepository) AddDecision(d *transfer.MatchDecision) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *d
	m.decisions[d.ID] = &copied
}

// FetchTransactions filters the in-memory transactions
func (m *MockRepository) FetchTransactions(ctx context.Context, filter TransactionFilter) ([]*transfer.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FetchErr != nil {
		return nil, m.FetchErr
	}

	accounts := make(map[string]bool, len(filter.AccountIDs))
	for _, id := range filter.AccountIDs {
		accounts[id] = true
	}

	var out []*transfer.Transaction
	for _, tx := range m.transactions {
		day := transfer.Day(tx.Date)
		if !filter.From.IsZero() && day.Before(transfer.Day(filter.From)) {
			continue
		}
		if !filter.To.IsZero() && day.After(transfer.Day(filter.To)) {
			continue
		}
		if len(accounts) > 0 && !accounts[tx.AccountID] {
			continue
		}
		if filter.UnlinkedOnly && tx.IsLinked() {
			continue
		}
		copied := *tx
		out = append(out, &copied)
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// GetTransactions returns copies of the requested transactions
func (m *MockRepository) GetTransactions(ctx context.Context, ids []string) (map[string]*transfer.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]*transfer.Transaction, len(ids))
	for _, id := range ids {
		if tx, ok := m.transactions[id]; ok {
			copied := *tx
			out[id] = &copied
		}
	}
	return out, nil
}

// LinkIfUnlinked links a and b if both are unlinked and unlocked
func (m *MockRepository) LinkIfUnlinked(ctx context.Context, a, b string) error {
	m.beforeLink(a, b)
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.linkLocked(a, b)
}

func (m *MockRepository) beforeLink(a, b string) {
	if m.BeforeLink != nil {
		m.BeforeLink(a, b)
	}
}

func (m *MockRepository) linkLocked(a, b string) error {
	m.LinkAttempts++
	if m.LinkErr != nil {
		return m.LinkErr
	}
	if a == "" || b == "" || a == b {
		return transfer.NewValidationError("transaction_id", "a link needs two distinct transactions")
	}
	ta, okA := m.transactions[a]
	tb, okB := m.transactions[b]
	if !okA || !okB || ta.IsLinked() || tb.IsLinked() || ta.IsLocked || tb.IsLocked {
		return transfer.NewConflictError("already linked, locked or missing", a, b)
	}
	ta.LinkedTransactionID = b
	tb.LinkedTransactionID = a
	return nil
}

func (m *MockRepository) unlinkLocked(a, b string) {
	if tx, ok := m.transactions[a]; ok {
		tx.LinkedTransactionID = ""
	}
	if tx, ok := m.transactions[b]; ok {
		tx.LinkedTransactionID = ""
	}
}

// SaveTransactions upserts transactions, preserving existing links
func (m *MockRepository) SaveTransactions(ctx context.Context, txs []*transfer.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveTransactionsErr != nil {
		return m.SaveTransactionsErr
	}
	for _, tx := range txs {
		if tx.ID == "" || tx.AccountID == "" {
			return transfer.NewValidationError("transaction", "id and account_id are required")
		}
		copied := *tx
		copied.LinkedTransactionID = ""
		if existing, ok := m.transactions[tx.ID]; ok {
			copied.LinkedTransactionID = existing.LinkedTransactionID
		}
		m.transactions[tx.ID] = &copied
	}
	return nil
}

// CreatePendingTransfer stores a new entry
func (m *MockRepository) CreatePendingTransfer(ctx context.Context, p *transfer.PendingTransfer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreatePendingErr != nil {
		return m.CreatePendingErr
	}
	if err := p.Validate(); err != nil {
		return err
	}
	if err := p.CheckConsistency(); err != nil {
		return err
	}
	copied := *p
	m.pending[p.ID] = &copied
	return nil
}

// GetPendingTransfer returns a copy of the entry
func (m *MockRepository) GetPendingTransfer(ctx context.Context, id string) (*transfer.PendingTransfer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pending[id]
	if !ok {
		return nil, transfer.NewNotFoundError("pending transfer", id, "")
	}
	copied := *p
	return &copied, nil
}

// ListPendingTransfers returns matching entries ordered by transfer date, id
func (m *MockRepository) ListPendingTransfers(ctx context.Context, filter PendingTransferFilter) ([]*transfer.PendingTransfer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListPendingErr != nil {
		return nil, m.ListPendingErr
	}

	statuses := make(map[transfer.PendingStatus]bool, len(filter.Statuses))
	for _, st := range filter.Statuses {
		statuses[st] = true
	}

	var out []*transfer.PendingTransfer
	for _, p := range m.pending {
		if len(statuses) > 0 && !statuses[p.Status] {
			continue
		}
		if filter.AccountID != "" && p.FromAccountID != filter.AccountID && p.ToAccountID != filter.AccountID {
			continue
		}
		copied := *p
		out = append(out, &copied)
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].TransferDate.Equal(out[j].TransferDate) {
			return out[i].TransferDate.Before(out[j].TransferDate)
		}
		return out[i].ID < out[j].ID
	})

	if filter.Limit > 0 {
		start := min(filter.Offset, len(out))
		end := min(start+filter.Limit, len(out))
		out = out[start:end]
	}
	return out, nil
}

// UpdatePendingTransfer writes p if the stored status equals expected
func (m *MockRepository) UpdatePendingTransfer(ctx context.Context, p *transfer.PendingTransfer, expected transfer.PendingStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UpdatePendingCall++
	if m.UpdatePendingErr != nil {
		return m.UpdatePendingErr
	}
	return m.updatePendingLocked(p, expected)
}

func (m *MockRepository) updatePendingLocked(p *transfer.PendingTransfer, expected transfer.PendingStatus) error {
	stored, ok := m.pending[p.ID]
	if !ok || stored.Status != expected {
		return transfer.NewConflictError("pending transfer "+p.ID+" is no longer "+string(expected), p.ClaimedTransactionIDs()...)
	}
	if err := p.CheckConsistency(); err != nil {
		return err
	}
	copied := *p
	m.pending[p.ID] = &copied
	return nil
}

// ApplyPendingMatch links both legs and stores the matched entry atomically
func (m *MockRepository) ApplyPendingMatch(ctx context.Context, p *transfer.PendingTransfer, expected transfer.PendingStatus) error {
	if p.Status != transfer.PendingStatusMatched {
		return transfer.NewValidationError("status", "ApplyPendingMatch requires a matched entry")
	}
	m.beforeLink(p.FromTransactionID, p.ToTransactionID)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UpdatePendingCall++
	if m.UpdatePendingErr != nil {
		return m.UpdatePendingErr
	}
	if err := m.linkLocked(p.FromTransactionID, p.ToTransactionID); err != nil {
		return err
	}
	if err := m.updatePendingLocked(p, expected); err != nil {
		m.unlinkLocked(p.FromTransactionID, p.ToTransactionID)
		return err
	}
	return nil
}

// DeletePendingTransfer removes a pending or cancelled entry
func (m *MockRepository) DeletePendingTransfer(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pending[id]
	if !ok || (p.Status != transfer.PendingStatusPending && p.Status != transfer.PendingStatusCancelled) {
		return transfer.NewNotFoundError("pending transfer", id, "not in a deletable state")
	}
	delete(m.pending, id)
	return nil
}

// PendingClaims maps transaction ids held by active entries to the entry id
func (m *MockRepository) PendingClaims(ctx context.Context) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	claims := make(map[string]string)
	for _, p := range m.pending {
		if !p.Status.IsActive() {
			continue
		}
		for _, id := range p.ClaimedTransactionIDs() {
			claims[id] = p.ID
		}
	}
	return claims, nil
}

// SaveDecision stores a non-linking decision
func (m *MockRepository) SaveDecision(ctx context.Context, d *transfer.MatchDecision) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveDecisionErr != nil {
		return m.SaveDecisionErr
	}
	if d.Status.Links() {
		return transfer.NewValidationError("status", "linking decisions must go through CommitAutoLink or ConfirmDecision")
	}
	copied := *d
	m.decisions[d.ID] = &copied
	return nil
}

// CommitAutoLink links the pair and stores the decision atomically
func (m *MockRepository) CommitAutoLink(ctx context.Context, d *transfer.MatchDecision) error {
	if d.Status != transfer.DecisionAutoLinked {
		return transfer.NewValidationError("status", "CommitAutoLink requires an auto_linked decision")
	}
	m.beforeLink(d.FromTransactionID, d.ToTransactionID)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveDecisionErr != nil {
		return m.SaveDecisionErr
	}
	if err := m.linkLocked(d.FromTransactionID, d.ToTransactionID); err != nil {
		return err
	}
	copied := *d
	m.decisions[d.ID] = &copied
	return nil
}

// ConfirmDecision links the pair and closes the decision atomically
func (m *MockRepository) ConfirmDecision(ctx context.Context, d *transfer.MatchDecision) error {
	if d.Status != transfer.DecisionConfirmed {
		return transfer.NewValidationError("status", "ConfirmDecision requires a confirmed decision")
	}
	m.beforeLink(d.FromTransactionID, d.ToTransactionID)
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.decisions[d.ID]
	if !ok || stored.Status != transfer.DecisionPendingReview {
		return transfer.NewConflictError("decision "+d.ID+" is no longer pending_review", d.FromTransactionID, d.ToTransactionID)
	}
	if err := m.linkLocked(d.FromTransactionID, d.ToTransactionID); err != nil {
		return err
	}
	copied := *d
	m.decisions[d.ID] = &copied
	return nil
}

// RejectDecision closes a pending_review decision as rejected
func (m *MockRepository) RejectDecision(ctx context.Context, d *transfer.MatchDecision) error {
	if d.Status != transfer.DecisionRejected {
		return transfer.NewValidationError("status", "RejectDecision requires a rejected decision")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.decisions[d.ID]
	if !ok || stored.Status != transfer.DecisionPendingReview {
		return transfer.NewConflictError("decision "+d.ID+" is no longer pending_review", d.FromTransactionID, d.ToTransactionID)
	}
	copied := *d
	m.decisions[d.ID] = &copied
	return nil
}

// GetDecision returns a copy of the decision
func (m *MockRepository) GetDecision(ctx context.Context, id string) (*transfer.MatchDecision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.decisions[id]
	if !ok {
		return nil, transfer.NewNotFoundError("decision", id, "")
	}
	copied := *d
	return &copied, nil
}

// ListDecisions returns decisions newest first with pagination
func (m *MockRepository) ListDecisions(ctx context.Context, filter DecisionFilter) (*DecisionListResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListDecisionsErr != nil {
		return nil, m.ListDecisionsErr
	}

	matching := make([]*transfer.MatchDecision, 0)
	for _, d := range m.decisions {
		if filter.Status != "" && string(d.Status) != filter.Status {
			continue
		}
		if filter.RunID > 0 && d.RunID != filter.RunID {
			continue
		}
		copied := *d
		matching = append(matching, &copied)
	}
	sort.Slice(matching, func(i, j int) bool {
		if !matching[i].CreatedAt.Equal(matching[j].CreatedAt) {
			return matching[i].CreatedAt.After(matching[j].CreatedAt)
		}
		return matching[i].ID < matching[j].ID
	})

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	total := len(matching)
	start := min(max(filter.Offset, 0), total)
	end := min(start+limit, total)

	return &DecisionListResult{
		Decisions:  matching[start:end],
		TotalCount: total,
		Limit:      limit,
		Offset:     start,
	}, nil
}

// OpenDecisionTransactionIDs returns ids referenced by pending_review decisions
func (m *MockRepository) OpenDecisionTransactionIDs(ctx context.Context) (map[string]bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make(map[string]bool)
	for _, d := range m.decisions {
		if d.Status == transfer.DecisionPendingReview {
			ids[d.FromTransactionID] = true
			ids[d.ToTransactionID] = true
		}
	}
	return ids, nil
}

// RejectedPairs returns every rejected pair
func (m *MockRepository) RejectedPairs(ctx context.Context) (map[transfer.PairKey]bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pairs := make(map[transfer.PairKey]bool)
	for _, d := range m.decisions {
		if d.Status == transfer.DecisionRejected {
			pairs[d.Pair()] = true
		}
	}
	return pairs, nil
}

// StartDetectionRun creates a new run and returns its ID
func (m *MockRepository) StartDetectionRun(ctx context.Context, run *DetectionRun) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.StartRunErr != nil {
		return 0, m.StartRunErr
	}

	id := m.nextRunID
	m.nextRunID++

	copied := *run
	copied.ID = id
	copied.Status = RunStatusRunning
	if copied.StartedAt.IsZero() {
		copied.StartedAt = time.Now()
	}
	m.runs[id] = &copied
	return id, nil
}

// CompleteDetectionRun marks a run as complete
func (m *MockRepository) CompleteDetectionRun(ctx context.Context, runID int64, counts RunCounts, runErr error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CompleteRunErr != nil {
		return m.CompleteRunErr
	}

	run, ok := m.runs[runID]
	if !ok {
		return transfer.NewNotFoundError("detection run", strconv.FormatInt(runID, 10), "")
	}

	now := time.Now()
	run.CompletedAt = &now
	run.RunCounts = counts
	switch {
	case runErr != nil:
		run.Status = RunStatusFailed
		run.ErrorMessage = runErr.Error()
	case counts.Conflicts > 0:
		run.Status = RunStatusWithConflicts
	default:
		run.Status = RunStatusCompleted
	}

	m.CompletedRunIDs = append(m.CompletedRunIDs, runID)
	m.LastCompletedRun = counts
	m.LastRunError = runErr
	return nil
}

// ListDetectionRuns returns runs newest first
func (m *MockRepository) ListDetectionRuns(ctx context.Context, limit int) ([]DetectionRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListRunsErr != nil {
		return nil, m.ListRunsErr
	}

	runs := make([]DetectionRun, 0, len(m.runs))
	for _, r := range m.runs {
		runs = append(runs, *r)
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].ID > runs[j].ID })

	if limit <= 0 {
		limit = defaultListLimit
	}
	if len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

// GetDetectionRun returns a copy of the run
func (m *MockRepository) GetDetectionRun(ctx context.Context, runID int64) (*DetectionRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[runID]
	if !ok {
		return nil, transfer.NewNotFoundError("detection run", strconv.FormatInt(runID, 10), "")
	}
	copied := *run
	return &copied, nil
}

// GetStats returns counts over the in-memory state
func (m *MockRepository) GetStats(ctx context.Context) (*Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetStatsErr != nil {
		return nil, m.GetStatsErr
	}

	stats := newStats()
	for _, tx := range m.transactions {
		stats.TotalTransactions++
		if tx.IsLinked() {
			stats.LinkedTransactions++
		}
	}
	for _, d := range m.decisions {
		stats.DecisionsByStatus[string(d.Status)]++
	}
	for _, p := range m.pending {
		stats.PendingByStatus[string(p.Status)]++
	}
	stats.DetectionRuns = len(m.runs)
	return stats, nil
}
