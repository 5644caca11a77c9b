package matcher

import (
	"sort"

	"github.com/eshaffer321/transfer-reconciler/internal/domain/transfer"
)

// DefaultAutoLinkThreshold is the score at or above which a pair is linked
// without review.
const DefaultAutoLinkThreshold = 95.0

// Resolver turns scored candidates into a conflict-free assignment in which
// no transaction appears in more than one accepted pair.
type Resolver interface {
	Resolve(cands []ScoredCandidate) []ScoredCandidate
}

// GreedyResolver accepts candidates in rank order, skipping any whose
// transactions were already claimed by a higher-ranked pair. This is not an
// optimal weighted bipartite matching; swap in another Resolver if that is
// ever needed.
type GreedyResolver struct{}

// Compile-time check that GreedyResolver implements Resolver
var _ Resolver = GreedyResolver{}

// Resolve returns the accepted candidates in rank order.
func (GreedyResolver) Resolve(cands []ScoredCandidate) []ScoredCandidate {
	ranked := Rank(cands)

	claimed := make(map[string]bool, len(ranked)*2)
	accepted := make([]ScoredCandidate, 0, len(ranked))
	for _, c := range ranked {
		if claimed[c.From.ID] || claimed[c.To.ID] {
			continue
		}
		claimed[c.From.ID] = true
		claimed[c.To.ID] = true
		accepted = append(accepted, c)
	}
	return accepted
}

// Rank returns a copy of cands sorted by score descending, then smaller date
// difference, then smaller amount difference, then (from, to) id.
func Rank(cands []ScoredCandidate) []ScoredCandidate {
	ranked := make([]ScoredCandidate, len(cands))
	copy(ranked, cands)

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.DateDiffDays != b.DateDiffDays {
			return a.DateDiffDays < b.DateDiffDays
		}
		if cmp := a.AmountDiff.Cmp(b.AmountDiff); cmp != 0 {
			return cmp < 0
		}
		return a.Pair().Less(b.Pair())
	})
	return ranked
}

// Classify maps a score to the decision status a live run would record.
func Classify(score, threshold float64) transfer.DecisionStatus {
	if score >= threshold {
		return transfer.DecisionAutoLinked
	}
	return transfer.DecisionPendingReview
}
