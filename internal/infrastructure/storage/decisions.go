package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/eshaffer321/transfer-reconciler/internal/domain/transfer"
)

const decisionColumns = `id, run_id, from_transaction_id, to_transaction_id, score, amount_diff,
	date_diff_days, status, decided_by, decided_at, created_at`

// SaveDecision inserts a decision that does not link anything
func (s *Storage) SaveDecision(ctx context.Context, d *transfer.MatchDecision) error {
	if d.Status.Links() {
		return transfer.NewValidationError("status", "linking decisions must go through CommitAutoLink or ConfirmDecision")
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return insertDecision(ctx, tx, d)
	})
}

// CommitAutoLink links the pair and inserts the auto_linked decision atomically
func (s *Storage) CommitAutoLink(ctx context.Context, d *transfer.MatchDecision) error {
	if d.Status != transfer.DecisionAutoLinked {
		return transfer.NewValidationError("status", "CommitAutoLink requires an auto_linked decision")
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := linkPair(ctx, tx, d.FromTransactionID, d.ToTransactionID, s.now()); err != nil {
			return err
		}
		return insertDecision(ctx, tx, d)
	})
}

// ConfirmDecision links the pair and moves the decision to confirmed atomically
func (s *Storage) ConfirmDecision(ctx context.Context, d *transfer.MatchDecision) error {
	if d.Status != transfer.DecisionConfirmed {
		return transfer.NewValidationError("status", "ConfirmDecision requires a confirmed decision")
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := linkPair(ctx, tx, d.FromTransactionID, d.ToTransactionID, s.now()); err != nil {
			return err
		}
		return closeDecision(ctx, tx, d)
	})
}

// RejectDecision moves the decision from pending_review to rejected
func (s *Storage) RejectDecision(ctx context.Context, d *transfer.MatchDecision) error {
	if d.Status != transfer.DecisionRejected {
		return transfer.NewValidationError("status", "RejectDecision requires a rejected decision")
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return closeDecision(ctx, tx, d)
	})
}

func insertDecision(ctx context.Context, tx *sql.Tx, d *transfer.MatchDecision) error {
	query := `INSERT INTO match_decisions (` + decisionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	var runID sql.NullInt64
	if d.RunID > 0 {
		runID = sql.NullInt64{Int64: d.RunID, Valid: true}
	}

	_, err := tx.ExecContext(ctx, query,
		d.ID,
		runID,
		d.FromTransactionID,
		d.ToTransactionID,
		d.Score,
		d.AmountDiff.String(),
		d.DateDiffDays,
		string(d.Status),
		nullString(d.DecidedBy),
		nullTimestamp(d.DecidedAt),
		formatTimestamp(d.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert decision %s: %w", d.ID, err)
	}
	return nil
}

// closeDecision moves a pending_review decision to its terminal status.
func closeDecision(ctx context.Context, tx *sql.Tx, d *transfer.MatchDecision) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE match_decisions
		SET status = ?, decided_by = ?, decided_at = ?
		WHERE id = ? AND status = 'pending_review'
	`, string(d.Status), nullString(d.DecidedBy), nullTimestamp(d.DecidedAt), d.ID)
	if err != nil {
		return fmt.Errorf("failed to update decision %s: %w", d.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n != 1 {
		return transfer.NewConflictError(
			fmt.Sprintf("decision %s is no longer pending_review", d.ID),
			d.FromTransactionID, d.ToTransactionID)
	}
	return nil
}

// GetDecision retrieves a decision by ID
func (s *Storage) GetDecision(ctx context.Context, id string) (*transfer.MatchDecision, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+decisionColumns+` FROM match_decisions WHERE id = ?`, id)
	d, err := scanDecision(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, transfer.NewNotFoundError("decision", id, "")
	}
	return d, err
}

// ListDecisions returns decisions newest first with pagination
func (s *Storage) ListDecisions(ctx context.Context, filter DecisionFilter) (*DecisionListResult, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	var where []string
	var args []interface{}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.RunID > 0 {
		where = append(where, "run_id = ?")
		args = append(args, filter.RunID)
	}
	whereClause := ""
	if len(where) > 0 {
		whereClause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM match_decisions`+whereClause, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count decisions: %w", err)
	}

	query := `SELECT ` + decisionColumns + ` FROM match_decisions` + whereClause +
		` ORDER BY created_at DESC, id LIMIT ? OFFSET ?`
	rows, err := s.db.QueryContext(ctx, query, append(args, filter.Limit, filter.Offset)...)
	if err != nil {
		return nil, fmt.Errorf("failed to list decisions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	result := &DecisionListResult{
		Decisions:  make([]*transfer.MatchDecision, 0),
		TotalCount: total,
		Limit:      filter.Limit,
		Offset:     filter.Offset,
	}
	for rows.Next() {
		d, err := scanDecision(rows)
		if err != nil {
			return nil, err
		}
		result.Decisions = append(result.Decisions, d)
	}
	return result, rows.Err()
}

// OpenDecisionTransactionIDs returns ids referenced by pending_review decisions
func (s *Storage) OpenDecisionTransactionIDs(ctx context.Context) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT from_transaction_id, to_transaction_id
		FROM match_decisions WHERE status = 'pending_review'
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to load open decisions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	ids := make(map[string]bool)
	for rows.Next() {
		var from, to string
		if err := rows.Scan(&from, &to); err != nil {
			return nil, err
		}
		ids[from] = true
		ids[to] = true
	}
	return ids, rows.Err()
}

// RejectedPairs returns every (from, to) pair a reviewer rejected
func (s *Storage) RejectedPairs(ctx context.Context) (map[transfer.PairKey]bool, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT from_transaction_id, to_transaction_id
		FROM match_decisions WHERE status = 'rejected'
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to load rejected pairs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	pairs := make(map[transfer.PairKey]bool)
	for rows.Next() {
		var k transfer.PairKey
		if err := rows.Scan(&k.From, &k.To); err != nil {
			return nil, err
		}
		pairs[k] = true
	}
	return pairs, rows.Err()
}

func scanDecision(row rowScanner) (*transfer.MatchDecision, error) {
	var (
		d                  transfer.MatchDecision
		runID              sql.NullInt64
		amountDiff, status string
		decidedBy, decided sql.NullString
		createdAt          string
	)
	err := row.Scan(
		&d.ID,
		&runID,
		&d.FromTransactionID,
		&d.ToTransactionID,
		&d.Score,
		&amountDiff,
		&d.DateDiffDays,
		&status,
		&decidedBy,
		&decided,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}

	d.RunID = runID.Int64
	d.Status = transfer.DecisionStatus(status)
	d.DecidedBy = decidedBy.String
	if d.AmountDiff, err = decimal.NewFromString(amountDiff); err != nil {
		return nil, fmt.Errorf("decision %s has invalid amount_diff: %w", d.ID, err)
	}
	if d.DecidedAt, err = parseNullTimestamp(decided); err != nil {
		return nil, err
	}
	if d.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return nil, err
	}
	return &d, nil
}
