package transfer

import (
	"time"

	"github.com/shopspring/decimal"
)

// PendingStatus is the lifecycle state of a manually declared transfer.
type PendingStatus string

const (
	PendingStatusPending   PendingStatus = "pending"
	PendingStatusPartial   PendingStatus = "partial"
	PendingStatusMatched   PendingStatus = "matched"
	PendingStatusCancelled PendingStatus = "cancelled"
)

// Default tolerances for newly declared transfers.
const (
	DefaultPendingToleranceDays = 5
)

// DefaultPendingToleranceAmount is fifty cents.
var DefaultPendingToleranceAmount = decimal.RequireFromString("0.50")

var pendingTransitions = map[PendingStatus][]PendingStatus{
	PendingStatusPending:   {PendingStatusPartial, PendingStatusMatched, PendingStatusCancelled},
	PendingStatusPartial:   {PendingStatusPending, PendingStatusMatched, PendingStatusCancelled},
	PendingStatusMatched:   {},
	PendingStatusCancelled: {},
}

// Valid reports whether s is a known status.
func (s PendingStatus) Valid() bool {
	_, ok := pendingTransitions[s]
	return ok
}

// IsTerminal reports whether no further transitions are allowed.
func (s PendingStatus) IsTerminal() bool {
	return len(pendingTransitions[s]) == 0
}

// IsActive reports whether the entry still participates in matching.
func (s PendingStatus) IsActive() bool {
	return s == PendingStatusPending || s == PendingStatusPartial
}

// CanTransition reports whether moving from s to next is permitted.
func (s PendingStatus) CanTransition(next PendingStatus) bool {
	for _, allowed := range pendingTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// PendingTransfer is a transfer the user declared before either side showed
// up in a statement. Money leaves FromAccountID and arrives in ToAccountID.
type PendingTransfer struct {
	ID                   string          `json:"id"`
	FromAccountID        string          `json:"from_account_id"`
	ToAccountID          string          `json:"to_account_id"`
	Amount               decimal.Decimal `json:"amount"`
	TransferDate         time.Time       `json:"transfer_date"`
	Description          string          `json:"description"`
	Notes                string          `json:"notes"`
	Status               PendingStatus   `json:"status"`
	FromTransactionID    string          `json:"from_transaction_id,omitempty"`
	ToTransactionID      string          `json:"to_transaction_id,omitempty"`
	MatchToleranceDays   int             `json:"match_tolerance_days"`
	MatchToleranceAmount decimal.Decimal `json:"match_tolerance_amount"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
	MatchedAt            *time.Time      `json:"matched_at,omitempty"`
}

// Validate checks the creation invariants.
func (p *PendingTransfer) Validate() error {
	switch {
	case p.FromAccountID == "" || p.ToAccountID == "":
		return NewValidationError("account", "from_account_id and to_account_id are required")
	case p.FromAccountID == p.ToAccountID:
		return NewValidationError("to_account_id", "must differ from from_account_id")
	case !p.Amount.IsPositive():
		return NewValidationError("amount", "must be greater than zero")
	case p.TransferDate.IsZero():
		return NewValidationError("transfer_date", "is required")
	case p.MatchToleranceDays < 0:
		return NewValidationError("match_tolerance_days", "must not be negative")
	case p.MatchToleranceAmount.IsNegative():
		return NewValidationError("match_tolerance_amount", "must not be negative")
	}
	return nil
}

// CheckConsistency verifies that the linked ids agree with the status:
// matched needs both ids and matched_at, partial exactly one id, and
// pending/cancelled neither.
func (p *PendingTransfer) CheckConsistency() error {
	hasFrom := p.FromTransactionID != ""
	hasTo := p.ToTransactionID != ""

	switch p.Status {
	case PendingStatusMatched:
		if !hasFrom || !hasTo || p.MatchedAt == nil {
			return NewValidationError("status", "matched requires both transactions and matched_at")
		}
	case PendingStatusPartial:
		if hasFrom == hasTo || p.MatchedAt != nil {
			return NewValidationError("status", "partial requires exactly one transaction")
		}
	case PendingStatusPending, PendingStatusCancelled:
		if hasFrom || hasTo || p.MatchedAt != nil {
			return NewValidationError("status", string(p.Status)+" must not reference transactions")
		}
	default:
		return NewValidationError("status", "unknown status "+string(p.Status))
	}
	return nil
}

// ClaimedTransactionIDs returns the transaction ids this entry currently holds.
func (p *PendingTransfer) ClaimedTransactionIDs() []string {
	var ids []string
	if p.FromTransactionID != "" {
		ids = append(ids, p.FromTransactionID)
	}
	if p.ToTransactionID != "" {
		ids = append(ids, p.ToTransactionID)
	}
	return ids
}
