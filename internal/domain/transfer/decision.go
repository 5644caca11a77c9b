package transfer

import (
	"time"

	"github.com/shopspring/decimal"
)

// DecisionStatus is the state of a resolved transfer match.
type DecisionStatus string

const (
	DecisionAutoLinked    DecisionStatus = "auto_linked"
	DecisionPendingReview DecisionStatus = "pending_review"
	DecisionRejected      DecisionStatus = "rejected"
	DecisionConfirmed     DecisionStatus = "confirmed"
)

// DecidedBySystem marks decisions taken without a human.
const DecidedBySystem = "system"

var decisionTransitions = map[DecisionStatus][]DecisionStatus{
	DecisionPendingReview: {DecisionConfirmed, DecisionRejected},
	DecisionAutoLinked:    {},
	DecisionConfirmed:     {},
	DecisionRejected:      {},
}

// Valid reports whether s is a known status.
func (s DecisionStatus) Valid() bool {
	_, ok := decisionTransitions[s]
	return ok
}

// IsTerminal reports whether no further transitions are allowed.
func (s DecisionStatus) IsTerminal() bool {
	return len(decisionTransitions[s]) == 0
}

// CanTransition reports whether moving from s to next is permitted.
func (s DecisionStatus) CanTransition(next DecisionStatus) bool {
	for _, allowed := range decisionTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Links reports whether decisions in this status own a link between the pair.
func (s DecisionStatus) Links() bool {
	return s == DecisionAutoLinked || s == DecisionConfirmed
}

// MatchDecision is the persisted outcome for one accepted candidate pair.
type MatchDecision struct {
	ID                string          `json:"id"`
	RunID             int64           `json:"run_id,omitempty"`
	FromTransactionID string          `json:"from_transaction_id"`
	ToTransactionID   string          `json:"to_transaction_id"`
	Score             float64         `json:"score"`
	AmountDiff        decimal.Decimal `json:"amount_diff"`
	DateDiffDays      int             `json:"date_diff_days"`
	Status            DecisionStatus  `json:"status"`
	DecidedBy         string          `json:"decided_by,omitempty"`
	DecidedAt         *time.Time      `json:"decided_at,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
}

// Pair returns the oriented transaction pair.
func (d *MatchDecision) Pair() PairKey {
	return PairKey{From: d.FromTransactionID, To: d.ToTransactionID}
}
