package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/eshaffer321/transfer-reconciler/internal/domain/transfer"
)

const runColumns = `id, started_at, completed_at, window_start, window_end, account_ids_json,
	auto_link_threshold, date_tolerance_days, amount_tolerance, include_locked,
	candidates_found, auto_linked, pending_review, conflicts, status, error_message`

// StartDetectionRun records the start of a detection run
func (s *Storage) StartDetectionRun(ctx context.Context, run *DetectionRun) (int64, error) {
	accounts := run.AccountIDs
	if accounts == nil {
		accounts = []string{}
	}
	accountsJSON, err := json.Marshal(accounts)
	if err != nil {
		return 0, err
	}

	startedAt := run.StartedAt
	if startedAt.IsZero() {
		startedAt = s.now()
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO detection_runs
		(started_at, window_start, window_end, account_ids_json, auto_link_threshold,
		 date_tolerance_days, amount_tolerance, include_locked, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		formatTimestamp(startedAt),
		transfer.Day(run.WindowStart).Format(transfer.DateLayout),
		transfer.Day(run.WindowEnd).Format(transfer.DateLayout),
		string(accountsJSON),
		run.AutoLinkThreshold,
		run.DateToleranceDays,
		run.AmountTolerance.String(),
		run.IncludeLocked,
		RunStatusRunning,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to start detection run: %w", err)
	}

	return result.LastInsertId()
}

// CompleteDetectionRun records the completion of a detection run
func (s *Storage) CompleteDetectionRun(ctx context.Context, runID int64, counts RunCounts, runErr error) error {
	status := RunStatusCompleted
	errMsg := ""
	switch {
	case runErr != nil:
		status = RunStatusFailed
		errMsg = runErr.Error()
	case counts.Conflicts > 0:
		status = RunStatusWithConflicts
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE detection_runs
		SET completed_at = ?,
		    candidates_found = ?,
		    auto_linked = ?,
		    pending_review = ?,
		    conflicts = ?,
		    status = ?,
		    error_message = ?
		WHERE id = ?
	`,
		formatTimestamp(s.now()),
		counts.CandidatesFound,
		counts.AutoLinked,
		counts.PendingReview,
		counts.Conflicts,
		status,
		errMsg,
		runID,
	)
	if err != nil {
		return fmt.Errorf("failed to complete detection run %d: %w", runID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return transfer.NewNotFoundError("detection run", strconv.FormatInt(runID, 10), "")
	}
	return nil
}

// ListDetectionRuns returns recent runs, newest first
func (s *Storage) ListDetectionRuns(ctx context.Context, limit int) ([]DetectionRun, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM detection_runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list detection runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	runs := make([]DetectionRun, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// GetDetectionRun retrieves a detection run by ID
func (s *Storage) GetDetectionRun(ctx context.Context, runID int64) (*DetectionRun, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM detection_runs WHERE id = ?`, runID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, transfer.NewNotFoundError("detection run", strconv.FormatInt(runID, 10), "")
	}
	return run, err
}

func scanRun(row rowScanner) (*DetectionRun, error) {
	var (
		run                     DetectionRun
		startedAt               string
		completedAt             sql.NullString
		windowStart, windowEnd  string
		accountsJSON, amountTol string
	)
	err := row.Scan(
		&run.ID,
		&startedAt,
		&completedAt,
		&windowStart,
		&windowEnd,
		&accountsJSON,
		&run.AutoLinkThreshold,
		&run.DateToleranceDays,
		&amountTol,
		&run.IncludeLocked,
		&run.CandidatesFound,
		&run.AutoLinked,
		&run.PendingReview,
		&run.Conflicts,
		&run.Status,
		&run.ErrorMessage,
	)
	if err != nil {
		return nil, err
	}

	if run.StartedAt, err = parseTimestamp(startedAt); err != nil {
		return nil, err
	}
	if run.CompletedAt, err = parseNullTimestamp(completedAt); err != nil {
		return nil, err
	}
	if run.WindowStart, err = transfer.ParseDay(windowStart); err != nil {
		return nil, err
	}
	if run.WindowEnd, err = transfer.ParseDay(windowEnd); err != nil {
		return nil, err
	}
	if run.AmountTolerance, err = decimal.NewFromString(amountTol); err != nil {
		return nil, err
	}
	// Unmarshal errors ignored as account filter is informational
	_ = json.Unmarshal([]byte(accountsJSON), &run.AccountIDs)

	return &run, nil
}

// GetStats returns aggregate reconciliation statistics
func (s *Storage) GetStats(ctx context.Context) (*Stats, error) {
	stats := newStats()

	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COUNT(CASE WHEN linked_transaction_id IS NOT NULL THEN 1 END)
		FROM transactions
	`).Scan(&stats.TotalTransactions, &stats.LinkedTransactions)
	if err != nil {
		return nil, fmt.Errorf("failed to count transactions: %w", err)
	}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM detection_runs`).Scan(&stats.DetectionRuns); err != nil {
		return nil, fmt.Errorf("failed to count detection runs: %w", err)
	}

	if err := s.countByStatus(ctx, `SELECT status, COUNT(*) FROM match_decisions GROUP BY status`, stats.DecisionsByStatus); err != nil {
		return nil, err
	}
	if err := s.countByStatus(ctx, `SELECT status, COUNT(*) FROM pending_transfers GROUP BY status`, stats.PendingByStatus); err != nil {
		return nil, err
	}

	return stats, nil
}

func (s *Storage) countByStatus(ctx context.Context, query string, into map[string]int) error {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to count by status: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return err
		}
		into[status] = count
	}
	return rows.Err()
}
