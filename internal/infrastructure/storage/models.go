package storage

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"
)

// Run statuses
const (
	RunStatusRunning       = "running"
	RunStatusCompleted     = "completed"
	RunStatusWithConflicts = "completed_with_conflicts"
	RunStatusFailed        = "failed"
)

// DetectionRun represents a detection run record
type DetectionRun struct {
	ID                int64           `json:"id"`
	StartedAt         time.Time       `json:"started_at"`
	CompletedAt       *time.Time      `json:"completed_at,omitempty"`
	WindowStart       time.Time       `json:"window_start"`
	WindowEnd         time.Time       `json:"window_end"`
	AccountIDs        []string        `json:"account_ids"`
	AutoLinkThreshold float64         `json:"auto_link_threshold"`
	DateToleranceDays int             `json:"date_tolerance_days"`
	AmountTolerance   decimal.Decimal `json:"amount_tolerance"`
	IncludeLocked     bool            `json:"include_locked"`
	RunCounts
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// RunCounts are the outcome totals of a detection run
type RunCounts struct {
	CandidatesFound int `json:"candidates_found"`
	AutoLinked      int `json:"auto_linked"`
	PendingReview   int `json:"pending_review"`
	Conflicts       int `json:"conflicts"`
}

// Stats represents aggregate reconciliation statistics
type Stats struct {
	TotalTransactions  int            `json:"total_transactions"`
	LinkedTransactions int            `json:"linked_transactions"`
	DecisionsByStatus  map[string]int `json:"decisions_by_status"`
	PendingByStatus    map[string]int `json:"pending_transfers_by_status"`
	DetectionRuns      int            `json:"detection_runs"`
}

func newStats() *Stats {
	return &Stats{
		DecisionsByStatus: make(map[string]int),
		PendingByStatus:   make(map[string]int),
	}
}

// Timestamps are stored as fixed-width UTC text so they sort lexically.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func parseTimestamp(s string) (time.Time, error) {
	return time.Parse(timestampLayout, s)
}

func parseNullTimestamp(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := parseTimestamp(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullTimestamp(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTimestamp(*t), Valid: true}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
