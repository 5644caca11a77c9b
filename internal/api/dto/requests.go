package dto

import "github.com/shopspring/decimal"

// Dates in request bodies and query strings use the YYYY-MM-DD layout.
// Omitted pointer fields take the server's configured defaults.

// DetectionRequest is the body of POST /api/detections.
type DetectionRequest struct {
	DateFrom          string           `json:"date_from"`
	DateTo            string           `json:"date_to"`
	AccountIDs        []string         `json:"account_ids,omitempty"`
	AutoLinkThreshold *float64         `json:"auto_link_threshold,omitempty"`
	DateToleranceDays *int             `json:"date_tolerance_days,omitempty"`
	AmountTolerance   *decimal.Decimal `json:"amount_tolerance,omitempty"`
	DryRun            bool             `json:"dry_run"`
	ExcludeLocked     *bool            `json:"exclude_locked,omitempty"` // Default true
}

// ReviewRequest is the body of the confirm and reject endpoints.
type ReviewRequest struct {
	User string `json:"user"`
}

// CreatePendingTransferRequest is the body of POST /api/pending-transfers.
type CreatePendingTransferRequest struct {
	FromAccountID        string           `json:"from_account_id"`
	ToAccountID          string           `json:"to_account_id"`
	Amount               decimal.Decimal  `json:"amount"`
	TransferDate         string           `json:"transfer_date"`
	Description          string           `json:"description"`
	Notes                string           `json:"notes"`
	MatchToleranceDays   *int             `json:"match_tolerance_days,omitempty"`
	MatchToleranceAmount *decimal.Decimal `json:"match_tolerance_amount,omitempty"`
}

// UpdatePendingTransferRequest is the body of PUT /api/pending-transfers/{id}.
// Omitted fields are left unchanged.
type UpdatePendingTransferRequest struct {
	Amount               *decimal.Decimal `json:"amount,omitempty"`
	TransferDate         *string          `json:"transfer_date,omitempty"`
	Description          *string          `json:"description,omitempty"`
	Notes                *string          `json:"notes,omitempty"`
	MatchToleranceDays   *int             `json:"match_tolerance_days,omitempty"`
	MatchToleranceAmount *decimal.Decimal `json:"match_tolerance_amount,omitempty"`
}

// TransactionInput is one statement line pushed by the ingestion side.
// Amount is signed: debits negative, credits positive.
type TransactionInput struct {
	ID          string          `json:"id"`
	AccountID   string          `json:"account_id"`
	Date        string          `json:"date"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	IsLocked    bool            `json:"is_locked"`
}

// IngestTransactionsRequest is the body of POST /api/transactions.
type IngestTransactionsRequest struct {
	Transactions []TransactionInput `json:"transactions"`
}

// List defaults
const (
	DefaultRunListLimit      = 20
	DefaultDecisionListLimit = 50
	MaxListLimit             = 500
)
