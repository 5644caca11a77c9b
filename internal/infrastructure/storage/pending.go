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

const pendingColumns = `id, from_account_id, to_account_id, amount, transfer_date, description, notes,
	status, from_transaction_id, to_transaction_id, match_tolerance_days, match_tolerance_amount,
	created_at, updated_at, matched_at`

// CreatePendingTransfer inserts a new entry
func (s *Storage) CreatePendingTransfer(ctx context.Context, p *transfer.PendingTransfer) error {
	query := `INSERT INTO pending_transfers (` + pendingColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		p.ID,
		p.FromAccountID,
		p.ToAccountID,
		p.Amount.String(),
		transfer.Day(p.TransferDate).Format(transfer.DateLayout),
		p.Description,
		p.Notes,
		string(p.Status),
		nullString(p.FromTransactionID),
		nullString(p.ToTransactionID),
		p.MatchToleranceDays,
		p.MatchToleranceAmount.String(),
		formatTimestamp(p.CreatedAt),
		formatTimestamp(p.UpdatedAt),
		nullTimestamp(p.MatchedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create pending transfer: %w", err)
	}
	return nil
}

// GetPendingTransfer retrieves an entry by ID
func (s *Storage) GetPendingTransfer(ctx context.Context, id string) (*transfer.PendingTransfer, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+pendingColumns+` FROM pending_transfers WHERE id = ?`, id)
	p, err := scanPendingTransfer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, transfer.NewNotFoundError("pending transfer", id, "")
	}
	return p, err
}

// ListPendingTransfers returns entries ordered by transfer date, then id
func (s *Storage) ListPendingTransfers(ctx context.Context, filter PendingTransferFilter) ([]*transfer.PendingTransfer, error) {
	var where []string
	var args []interface{}

	if len(filter.Statuses) > 0 {
		where = append(where, "status IN ("+placeholders(len(filter.Statuses))+")")
		for _, st := range filter.Statuses {
			args = append(args, string(st))
		}
	}
	if filter.AccountID != "" {
		where = append(where, "(from_account_id = ? OR to_account_id = ?)")
		args = append(args, filter.AccountID, filter.AccountID)
	}

	query := `SELECT ` + pendingColumns + ` FROM pending_transfers`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY transfer_date, id"
	if filter.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending transfers: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*transfer.PendingTransfer
	for rows.Next() {
		p, err := scanPendingTransfer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// UpdatePendingTransfer writes p only if the stored status still equals expected
func (s *Storage) UpdatePendingTransfer(ctx context.Context, p *transfer.PendingTransfer, expected transfer.PendingStatus) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return updatePending(ctx, tx, p, expected)
	})
}

// ApplyPendingMatch links both legs and stores p as matched atomically
func (s *Storage) ApplyPendingMatch(ctx context.Context, p *transfer.PendingTransfer, expected transfer.PendingStatus) error {
	if p.Status != transfer.PendingStatusMatched {
		return transfer.NewValidationError("status", "ApplyPendingMatch requires a matched entry")
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := linkPair(ctx, tx, p.FromTransactionID, p.ToTransactionID, s.now()); err != nil {
			return err
		}
		return updatePending(ctx, tx, p, expected)
	})
}

func updatePending(ctx context.Context, tx *sql.Tx, p *transfer.PendingTransfer, expected transfer.PendingStatus) error {
	const query = `
		UPDATE pending_transfers
		SET description = ?, notes = ?, status = ?,
		    from_transaction_id = ?, to_transaction_id = ?,
		    match_tolerance_days = ?, match_tolerance_amount = ?,
		    updated_at = ?, matched_at = ?
		WHERE id = ? AND status = ?
	`
	res, err := tx.ExecContext(ctx, query,
		p.Description,
		p.Notes,
		string(p.Status),
		nullString(p.FromTransactionID),
		nullString(p.ToTransactionID),
		p.MatchToleranceDays,
		p.MatchToleranceAmount.String(),
		formatTimestamp(p.UpdatedAt),
		nullTimestamp(p.MatchedAt),
		p.ID,
		string(expected),
	)
	if err != nil {
		return fmt.Errorf("failed to update pending transfer %s: %w", p.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n != 1 {
		return transfer.NewConflictError(
			fmt.Sprintf("pending transfer %s is no longer %s", p.ID, expected),
			p.ClaimedTransactionIDs()...)
	}
	return nil
}

// DeletePendingTransfer removes an entry that is pending or cancelled
func (s *Storage) DeletePendingTransfer(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM pending_transfers WHERE id = ? AND status IN ('pending', 'cancelled')`, id)
	if err != nil {
		return fmt.Errorf("failed to delete pending transfer %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return transfer.NewNotFoundError("pending transfer", id, "not in a deletable state")
	}
	return nil
}

// PendingClaims maps transaction ids held by active entries to the entry id
func (s *Storage) PendingClaims(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, from_transaction_id, to_transaction_id
		FROM pending_transfers
		WHERE status IN ('pending', 'partial')
		  AND (from_transaction_id IS NOT NULL OR to_transaction_id IS NOT NULL)
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to load pending claims: %w", err)
	}
	defer func() { _ = rows.Close() }()

	claims := make(map[string]string)
	for rows.Next() {
		var id string
		var from, to sql.NullString
		if err := rows.Scan(&id, &from, &to); err != nil {
			return nil, err
		}
		if from.Valid {
			claims[from.String] = id
		}
		if to.Valid {
			claims[to.String] = id
		}
	}
	return claims, rows.Err()
}

func scanPendingTransfer(row rowScanner) (*transfer.PendingTransfer, error) {
	var (
		p                       transfer.PendingTransfer
		amount, date, tolAmount string
		status                  string
		fromTx, toTx, matchedAt sql.NullString
		createdAt, updatedAt    string
	)
	err := row.Scan(
		&p.ID,
		&p.FromAccountID,
		&p.ToAccountID,
		&amount,
		&date,
		&p.Description,
		&p.Notes,
		&status,
		&fromTx,
		&toTx,
		&p.MatchToleranceDays,
		&tolAmount,
		&createdAt,
		&updatedAt,
		&matchedAt,
	)
	if err != nil {
		return nil, err
	}

	p.Status = transfer.PendingStatus(status)
	p.FromTransactionID = fromTx.String
	p.ToTransactionID = toTx.String

	if p.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("pending transfer %s has invalid amount: %w", p.ID, err)
	}
	if p.MatchToleranceAmount, err = decimal.NewFromString(tolAmount); err != nil {
		return nil, fmt.Errorf("pending transfer %s has invalid tolerance: %w", p.ID, err)
	}
	if p.TransferDate, err = transfer.ParseDay(date); err != nil {
		return nil, fmt.Errorf("pending transfer %s has invalid date: %w", p.ID, err)
	}
	if p.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return nil, err
	}
	if p.UpdatedAt, err = parseTimestamp(updatedAt); err != nil {
		return nil, err
	}
	if p.MatchedAt, err = parseNullTimestamp(matchedAt); err != nil {
		return nil, err
	}
	return &p, nil
}
