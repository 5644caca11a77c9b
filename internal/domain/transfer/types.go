// Package transfer holds the domain model for inter-account transfer
// reconciliation: bank transactions, manually declared pending transfers and
// the match decisions produced by detection runs.
//
// Status fields are closed enums with explicit transition tables. Callers must
// go through CanTransition before persisting a status change.
package transfer

import (
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the calendar-day format used for transaction and transfer dates.
const DateLayout = "2006-01-02"

// Transaction is a single bank or credit-card transaction.
// Amount is signed: debits are negative, credits positive.
type Transaction struct {
	ID                  string          `json:"id"`
	AccountID           string          `json:"account_id"`
	Date                time.Time       `json:"date"`
	Amount              decimal.Decimal `json:"amount"`
	Description         string          `json:"description"`
	IsLocked            bool            `json:"is_locked"`
	LinkedTransactionID string          `json:"linked_transaction_id,omitempty"`
}

// IsLinked reports whether the transaction is already paired with a counterpart.
func (t *Transaction) IsLinked() bool {
	return t.LinkedTransactionID != ""
}

// Sign returns -1 for debits, 1 for credits and 0 for zero amounts.
func (t *Transaction) Sign() int {
	return t.Amount.Sign()
}

// Day truncates a time to its UTC calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDay parses a YYYY-MM-DD string into a UTC calendar day.
func ParseDay(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, time.UTC)
}

// DaysBetween returns the absolute number of whole days between two dates.
func DaysBetween(a, b time.Time) int {
	d := Day(a).Sub(Day(b))
	if d < 0 {
		d = -d
	}
	return int(d.Hours()/24 + 0.5)
}

// PairKey identifies an oriented (from, to) transaction pair.
type PairKey struct {
	From string
	To   string
}

// Less orders pairs lexicographically by (From, To).
func (p PairKey) Less(o PairKey) bool {
	if p.From != o.From {
		return p.From < o.From
	}
	return p.To < o.To
}
