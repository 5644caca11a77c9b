// Package matcher detects inter-account transfers in a set of transactions.
//
// Detection is a three stage pipeline:
//   - GenerateCandidates pairs debits with credits on other accounts whose
//     amounts and dates agree within tolerance
//   - Scorer rates each pair 0-100 from amount, date and description signals
//   - a Resolver picks a one-to-one assignment (greedy by score by default)
//
// Example usage:
//
//	m := matcher.NewMatcher(matcher.DefaultConfig())
//	accepted := m.Match(transactions, matcher.Exclusions{})
//	for _, c := range accepted {
//		status := matcher.Classify(c.Score, matcher.DefaultAutoLinkThreshold)
//		...
//	}
//
// Everything here is pure computation; persistence and conflict handling
// live in the service layer.
package matcher

import (
	"github.com/eshaffer321/transfer-reconciler/internal/domain/transfer"
)

// Matcher runs the full detection pipeline with one config.
type Matcher struct {
	config   Config
	scorer   *Scorer
	resolver Resolver
}

// NewMatcher creates a new matcher with the given config and the greedy resolver
func NewMatcher(config Config) *Matcher {
	return NewMatcherWithResolver(config, GreedyResolver{})
}

// NewMatcherWithResolver creates a matcher that uses a custom assignment strategy.
func NewMatcherWithResolver(config Config, resolver Resolver) *Matcher {
	return &Matcher{
		config:   config,
		scorer:   NewScorer(config),
		resolver: resolver,
	}
}

// Config returns the matcher configuration.
func (m *Matcher) Config() Config {
	return m.config
}

// Candidates generates and scores all candidate pairs without resolving them.
func (m *Matcher) Candidates(txs []*transfer.Transaction, exclude Exclusions) []ScoredCandidate {
	return m.scorer.ScoreAll(GenerateCandidates(txs, m.config, exclude))
}

// Match returns the conflict-free accepted pairs in rank order.
func (m *Matcher) Match(txs []*transfer.Transaction, exclude Exclusions) []ScoredCandidate {
	return m.resolver.Resolve(m.Candidates(txs, exclude))
}
