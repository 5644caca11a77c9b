package matcher

import (
	"github.com/shopspring/decimal"

	"github.com/eshaffer321/transfer-reconciler/internal/domain/transfer"
)

// Weights controls how the three signals combine into a score.
// They are normalised, so only their ratios matter.
type Weights struct {
	Amount      float64
	Date        float64
	Description float64
}

// DefaultWeights returns amount 50%, date 35%, description 15%.
func DefaultWeights() Weights {
	return Weights{Amount: 0.50, Date: 0.35, Description: 0.15}
}

func (w Weights) total() float64 {
	return w.Amount + w.Date + w.Description
}

// Config holds matcher configuration
type Config struct {
	AmountTolerance decimal.Decimal // Default: 0.50
	DateTolerance   int             // Days tolerance (default: 3)
	ExcludeLocked   bool            // Drop is_locked transactions (default: true)
	Weights         Weights
}

// DefaultAmountTolerance is fifty cents.
var DefaultAmountTolerance = decimal.RequireFromString("0.50")

// DefaultConfig returns sensible defaults for ad-hoc detection runs
func DefaultConfig() Config {
	return Config{
		AmountTolerance: DefaultAmountTolerance,
		DateTolerance:   3,
		ExcludeLocked:   true,
		Weights:         DefaultWeights(),
	}
}

// Validate rejects negative tolerances and weights.
func (c Config) Validate() error {
	switch {
	case c.AmountTolerance.IsNegative():
		return transfer.NewValidationError("amount_tolerance", "must not be negative")
	case c.DateTolerance < 0:
		return transfer.NewValidationError("date_tolerance_days", "must not be negative")
	case c.Weights.Amount < 0 || c.Weights.Date < 0 || c.Weights.Description < 0:
		return transfer.NewValidationError("weights", "must not be negative")
	}
	return nil
}

// Candidate is a plausible transfer pair. From is always the debit side.
type Candidate struct {
	From         *transfer.Transaction
	To           *transfer.Transaction
	AmountDiff   decimal.Decimal // ||from| - |to||
	DateDiffDays int
}

// Pair returns the oriented id pair.
func (c Candidate) Pair() transfer.PairKey {
	return transfer.PairKey{From: c.From.ID, To: c.To.ID}
}

// ScoredCandidate is a candidate with its 0-100 confidence.
type ScoredCandidate struct {
	Candidate
	Score float64
}

// Exclusions removes transactions or specific pairs from consideration.
type Exclusions struct {
	TransactionIDs map[string]bool
	Pairs          map[transfer.PairKey]bool
}

func (e Exclusions) transaction(id string) bool {
	return e.TransactionIDs != nil && e.TransactionIDs[id]
}

func (e Exclusions) pair(p transfer.PairKey) bool {
	return e.Pairs != nil && e.Pairs[p]
}
