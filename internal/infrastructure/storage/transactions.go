package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/eshaffer321/transfer-reconciler/internal/domain/transfer"
)

const transactionColumns = `id, account_id, date, amount, description, is_locked, linked_transaction_id`

// FetchTransactions returns transactions in the filter window ordered by date, id
func (s *Storage) FetchTransactions(ctx context.Context, filter TransactionFilter) ([]*transfer.Transaction, error) {
	var where []string
	var args []interface{}

	if !filter.From.IsZero() {
		where = append(where, "date >= ?")
		args = append(args, transfer.Day(filter.From).Format(transfer.DateLayout))
	}
	if !filter.To.IsZero() {
		where = append(where, "date <= ?")
		args = append(args, transfer.Day(filter.To).Format(transfer.DateLayout))
	}
	if len(filter.AccountIDs) > 0 {
		where = append(where, "account_id IN ("+placeholders(len(filter.AccountIDs))+")")
		for _, id := range filter.AccountIDs {
			args = append(args, id)
		}
	}
	if filter.UnlinkedOnly {
		where = append(where, "linked_transaction_id IS NULL")
	}

	query := "SELECT " + transactionColumns + " FROM transactions"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY date, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var txs []*transfer.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

// GetTransactions returns the current record for each id that exists
func (s *Storage) GetTransactions(ctx context.Context, ids []string) (map[string]*transfer.Transaction, error) {
	out := make(map[string]*transfer.Transaction, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	query := "SELECT " + transactionColumns + " FROM transactions WHERE id IN (" + placeholders(len(ids)) + ")"
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out[tx.ID] = tx
	}
	return out, rows.Err()
}

// LinkIfUnlinked links a and b to each other in one atomic step
func (s *Storage) LinkIfUnlinked(ctx context.Context, a, b string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return linkPair(ctx, tx, a, b, s.now())
	})
}

// linkPair sets each side's link to the other only if both are still
// unlinked and unlocked. The caller's transaction is rolled back on error.
func linkPair(ctx context.Context, tx *sql.Tx, a, b string, at time.Time) error {
	if a == "" || b == "" || a == b {
		return transfer.NewValidationError("transaction_id", "a link needs two distinct transactions")
	}

	const query = `
		UPDATE transactions
		SET linked_transaction_id = ?, updated_at = ?
		WHERE id = ? AND linked_transaction_id IS NULL AND is_locked = 0
	`
	now := formatTimestamp(at)

	for _, side := range [][2]string{{a, b}, {b, a}} {
		res, err := tx.ExecContext(ctx, query, side[1], now, side[0])
		if err != nil {
			return fmt.Errorf("failed to link transaction %s: %w", side[0], err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n != 1 {
			return transfer.NewConflictError("already linked, locked or missing", a, b)
		}
	}
	return nil
}

// SaveTransactions inserts or updates transactions. Existing links are preserved.
func (s *Storage) SaveTransactions(ctx context.Context, txs []*transfer.Transaction) error {
	if len(txs) == 0 {
		return nil
	}

	const query = `
		INSERT INTO transactions
		(id, account_id, date, amount, description, is_locked, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			account_id = excluded.account_id,
			date = excluded.date,
			amount = excluded.amount,
			description = excluded.description,
			is_locked = excluded.is_locked,
			updated_at = excluded.updated_at
	`

	return s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return err
		}
		defer func() { _ = stmt.Close() }()

		now := formatTimestamp(s.now())
		for _, t := range txs {
			if t.ID == "" || t.AccountID == "" {
				return transfer.NewValidationError("transaction", "id and account_id are required")
			}
			if t.Date.IsZero() {
				return transfer.NewValidationError("date", "is required for transaction "+t.ID)
			}
			_, err := stmt.ExecContext(ctx,
				t.ID,
				t.AccountID,
				transfer.Day(t.Date).Format(transfer.DateLayout),
				t.Amount.String(),
				t.Description,
				t.IsLocked,
				now,
				now,
			)
			if err != nil {
				return fmt.Errorf("failed to save transaction %s: %w", t.ID, err)
			}
		}
		return nil
	})
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTransaction(row rowScanner) (*transfer.Transaction, error) {
	var (
		t      transfer.Transaction
		date   string
		amount string
		linked sql.NullString
	)
	if err := row.Scan(&t.ID, &t.AccountID, &date, &amount, &t.Description, &t.IsLocked, &linked); err != nil {
		return nil, err
	}

	var err error
	if t.Date, err = transfer.ParseDay(date); err != nil {
		return nil, fmt.Errorf("transaction %s has invalid date %q: %w", t.ID, date, err)
	}
	if t.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("transaction %s has invalid amount %q: %w", t.ID, amount, err)
	}
	t.LinkedTransactionID = linked.String
	return &t, nil
}
