package matcher

import (
	"math"

	"github.com/shopspring/decimal"
)

// DescriptionBaseline is the description signal for two descriptions with
// nothing in common. Similarity raises it linearly to 1. With the default
// weights an exact amount on the same day scores 96.25 whatever the wording.
const DescriptionBaseline = 0.75

// Scorer assigns a 0-100 confidence to candidate pairs.
// The score is a weighted sum of three linear signals, so it never decreases
// when any one signal improves and the others stay fixed.
type Scorer struct {
	amountTolerance decimal.Decimal
	dateTolerance   int
	weights         Weights
}

// NewScorer creates a scorer from matcher config.
// Zero or negative total weight falls back to DefaultWeights.
func NewScorer(cfg Config) *Scorer {
	w := cfg.Weights
	if w.total() <= 0 {
		w = DefaultWeights()
	}
	return &Scorer{
		amountTolerance: cfg.AmountTolerance,
		dateTolerance:   cfg.DateTolerance,
		weights:         w,
	}
}

// Score computes the confidence for one candidate.
func (s *Scorer) Score(c Candidate) float64 {
	similarity := DescriptionSimilarity(c.From.Description, c.To.Description)
	return s.ScoreSignals(c.AmountDiff, c.DateDiffDays, similarity)
}

// ScoreSignals combines raw signal inputs into a score.
func (s *Scorer) ScoreSignals(amountDiff decimal.Decimal, dateDiffDays int, similarity float64) float64 {
	amount := s.amountSignal(amountDiff)
	date := s.dateSignal(dateDiffDays)
	desc := DescriptionBaseline + (1-DescriptionBaseline)*clamp01(similarity)

	w := s.weights
	raw := (w.Amount*amount + w.Date*date + w.Description*desc) / w.total()

	return math.Round(clamp01(raw)*100*100) / 100
}

// ScoreAll scores every candidate, preserving order.
func (s *Scorer) ScoreAll(cands []Candidate) []ScoredCandidate {
	out := make([]ScoredCandidate, 0, len(cands))
	for _, c := range cands {
		out = append(out, ScoredCandidate{Candidate: c, Score: s.Score(c)})
	}
	return out
}

func (s *Scorer) amountSignal(diff decimal.Decimal) float64 {
	diff = diff.Abs()
	if !s.amountTolerance.IsPositive() {
		if diff.IsZero() {
			return 1
		}
		return 0
	}
	return clamp01(1 - diff.Div(s.amountTolerance).InexactFloat64())
}

func (s *Scorer) dateSignal(days int) float64 {
	if days < 0 {
		days = -days
	}
	if s.dateTolerance <= 0 {
		if days == 0 {
			return 1
		}
		return 0
	}
	return clamp01(1 - float64(days)/float64(s.dateTolerance))
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
