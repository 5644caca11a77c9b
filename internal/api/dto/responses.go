package dto

import "time"

// HealthResponse is returned by the health check endpoint.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Error     string `json:"error,omitempty"`
}

// NewHealthResponse creates a healthy response stamped with the current time.
func NewHealthResponse() HealthResponse {
	return HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// Amounts are rendered as fixed two-decimal strings so no precision is lost
// in clients that parse JSON numbers as floats.

// TransactionResponse represents a transaction in API responses.
type TransactionResponse struct {
	ID                  string `json:"id"`
	AccountID           string `json:"account_id"`
	Date                string `json:"date"`
	Amount              string `json:"amount"`
	Description         string `json:"description"`
	IsLocked            bool   `json:"is_locked"`
	LinkedTransactionID string `json:"linked_transaction_id,omitempty"`
}

// TransactionListResponse is returned when listing transactions.
type TransactionListResponse struct {
	Transactions []TransactionResponse `json:"transactions"`
	Count        int                   `json:"count"`
}

// IngestResponse is returned after transactions are pushed.
type IngestResponse struct {
	Saved int                  `json:"saved"`
	Match *MatchReportResponse `json:"match,omitempty"`
}

// PendingTransferResponse represents a declared transfer in API responses.
type PendingTransferResponse struct {
	ID                   string     `json:"id"`
	FromAccountID        string     `json:"from_account_id"`
	ToAccountID          string     `json:"to_account_id"`
	Amount               string     `json:"amount"`
	TransferDate         string     `json:"transfer_date"`
	Description          string     `json:"description"`
	Notes                string     `json:"notes,omitempty"`
	Status               string     `json:"status"`
	FromTransactionID    string     `json:"from_transaction_id,omitempty"`
	ToTransactionID      string     `json:"to_transaction_id,omitempty"`
	MatchToleranceDays   int        `json:"match_tolerance_days"`
	MatchToleranceAmount string     `json:"match_tolerance_amount"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
	MatchedAt            *time.Time `json:"matched_at,omitempty"`
}

// PendingTransferListResponse is returned when listing declared transfers.
type PendingTransferListResponse struct {
	PendingTransfers []PendingTransferResponse `json:"pending_transfers"`
	Count            int                       `json:"count"`
}

// DecisionResponse represents a match decision in API responses.
type DecisionResponse struct {
	ID                string     `json:"id,omitempty"`
	RunID             int64      `json:"run_id,omitempty"`
	FromTransactionID string     `json:"from_transaction_id"`
	ToTransactionID   string     `json:"to_transaction_id"`
	Score             float64    `json:"score"`
	AmountDiff        string     `json:"amount_diff"`
	DateDiffDays      int        `json:"date_diff_days"`
	Status            string     `json:"status"`
	DecidedBy         string     `json:"decided_by,omitempty"`
	DecidedAt         *time.Time `json:"decided_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	WouldAutoLink     bool       `json:"would_auto_link,omitempty"`
	Conflict          bool       `json:"conflict,omitempty"`
}

// DecisionListResponse is returned when listing decisions.
type DecisionListResponse struct {
	Decisions  []DecisionResponse `json:"decisions"`
	TotalCount int                `json:"total_count"`
	Limit      int                `json:"limit"`
	Offset     int                `json:"offset"`
}

// DetectionResponse summarises a detection run and lists its decisions.
type DetectionResponse struct {
	RunID             int64              `json:"run_id,omitempty"`
	DryRun            bool               `json:"dry_run"`
	CandidatesFound   int                `json:"candidates_found"`
	AutoLinked        int                `json:"auto_linked"`
	PendingReview     int                `json:"pending_review"`
	RejectedConflicts int                `json:"rejected_conflicts"`
	Decisions         []DecisionResponse `json:"decisions"`
}

// RunResponse represents a detection run in API responses.
type RunResponse struct {
	ID                int64      `json:"id"`
	StartedAt         time.Time  `json:"started_at"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
	WindowStart       string     `json:"window_start"`
	WindowEnd         string     `json:"window_end"`
	AccountIDs        []string   `json:"account_ids"`
	AutoLinkThreshold float64    `json:"auto_link_threshold"`
	DateToleranceDays int        `json:"date_tolerance_days"`
	AmountTolerance   string     `json:"amount_tolerance"`
	ExcludeLocked     bool       `json:"exclude_locked"`
	CandidatesFound   int        `json:"candidates_found"`
	AutoLinked        int        `json:"auto_linked"`
	PendingReview     int        `json:"pending_review"`
	Conflicts         int        `json:"conflicts"`
	Status            string     `json:"status"`
	ErrorMessage      string     `json:"error_message,omitempty"`
}

// RunListResponse is returned when listing detection runs.
type RunListResponse struct {
	Runs  []RunResponse `json:"runs"`
	Count int           `json:"count"`
}

// AmbiguityResponse names a pending transfer side with tied candidates.
type AmbiguityResponse struct {
	PendingTransferID string   `json:"pending_transfer_id"`
	Side              string   `json:"side"`
	CandidateIDs      []string `json:"candidate_ids"`
}

// ConflictResponse names a pending transfer whose write lost a race.
type ConflictResponse struct {
	PendingTransferID string `json:"pending_transfer_id"`
	Error             string `json:"error"`
}

// MatchReportResponse summarises one opportunistic matching pass.
type MatchReportResponse struct {
	Examined  int                       `json:"examined"`
	Matched   int                       `json:"matched"`
	Partial   int                       `json:"partial"`
	Reverted  int                       `json:"reverted"`
	Unchanged int                       `json:"unchanged"`
	Updated   []PendingTransferResponse `json:"updated"`
	Ambiguous []AmbiguityResponse       `json:"ambiguous"`
	Conflicts []ConflictResponse        `json:"conflicts"`
}

// StatsResponse contains aggregate reconciliation statistics.
type StatsResponse struct {
	TotalTransactions        int            `json:"total_transactions"`
	LinkedTransactions       int            `json:"linked_transactions"`
	DecisionsByStatus        map[string]int `json:"decisions_by_status"`
	PendingTransfersByStatus map[string]int `json:"pending_transfers_by_status"`
	DetectionRuns            int            `json:"detection_runs"`
}
