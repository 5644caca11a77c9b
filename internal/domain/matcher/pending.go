package matcher

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/eshaffer321/transfer-reconciler/internal/domain/transfer"
)

// SideResult is the outcome of searching one leg of a pending transfer.
type SideResult struct {
	Match     *transfer.Transaction   // Unique best candidate, nil if none or ambiguous
	Tied      []*transfer.Transaction // Equally good best candidates when ambiguous
	Retained  bool                    // Match was already held by the entry
	Ambiguous bool
}

// PendingOutcome describes what opportunistic matching decided for one entry.
type PendingOutcome struct {
	Status            transfer.PendingStatus
	FromTransactionID string
	ToTransactionID   string
	Ambiguities       []*transfer.AmbiguousMatchError
}

// Changed reports whether the outcome differs from the entry's current state.
func (o PendingOutcome) Changed(p *transfer.PendingTransfer) bool {
	return o.Status != p.Status ||
		o.FromTransactionID != p.FromTransactionID ||
		o.ToTransactionID != p.ToTransactionID
}

// FindPendingSide searches pool for the best transaction for one leg of p.
// The from leg is a debit on FromAccountID, the to leg a credit on
// ToAccountID. Candidates must fall within p's tolerance window. The best is
// the closest date, then the closest amount; a tie on both is ambiguous.
func FindPendingSide(p *transfer.PendingTransfer, side transfer.Side, pool []*transfer.Transaction) SideResult {
	var best []*transfer.Transaction
	bestDate := -1
	bestAmount := p.MatchToleranceAmount

	for _, tx := range pool {
		dateDiff, amountDiff, ok := fitsPendingSide(p, side, tx)
		if !ok {
			continue
		}

		switch {
		case bestDate < 0 || dateDiff < bestDate || (dateDiff == bestDate && amountDiff.LessThan(bestAmount)):
			best = []*transfer.Transaction{tx}
			bestDate = dateDiff
			bestAmount = amountDiff
		case dateDiff == bestDate && amountDiff.Equal(bestAmount):
			best = append(best, tx)
		}
	}

	switch len(best) {
	case 0:
		return SideResult{}
	case 1:
		return SideResult{Match: best[0]}
	}

	sort.Slice(best, func(i, j int) bool { return best[i].ID < best[j].ID })
	return SideResult{Tied: best, Ambiguous: true}
}

// fitsPendingSide reports whether tx could be the given leg of p, and how far
// it is from p's date and amount.
func fitsPendingSide(p *transfer.PendingTransfer, side transfer.Side, tx *transfer.Transaction) (int, decimal.Decimal, bool) {
	account, sign := p.FromAccountID, -1
	if side == transfer.SideTo {
		account, sign = p.ToAccountID, 1
	}
	if tx == nil || tx.AccountID != account || tx.Sign() != sign || tx.IsLinked() || tx.IsLocked {
		return 0, decimal.Zero, false
	}
	dateDiff := transfer.DaysBetween(tx.Date, p.TransferDate)
	if dateDiff > p.MatchToleranceDays {
		return 0, decimal.Zero, false
	}
	amountDiff := tx.Amount.Abs().Sub(p.Amount).Abs()
	if amountDiff.GreaterThan(p.MatchToleranceAmount) {
		return 0, decimal.Zero, false
	}
	return dateDiff, amountDiff, true
}

// ReservedByPending returns the ids of transactions in pool that could still
// fill an open leg of an active pending transfer. Ad-hoc detection leaves
// them to opportunistic matching. Legs an entry already holds are not
// searched.
func ReservedByPending(entries []*transfer.PendingTransfer, pool []*transfer.Transaction) map[string]bool {
	reserved := make(map[string]bool)
	for _, p := range entries {
		if p == nil || !p.Status.IsActive() {
			continue
		}
		for _, side := range []transfer.Side{transfer.SideFrom, transfer.SideTo} {
			if side == transfer.SideFrom && p.FromTransactionID != "" {
				continue
			}
			if side == transfer.SideTo && p.ToTransactionID != "" {
				continue
			}
			for _, tx := range pool {
				if _, _, ok := fitsPendingSide(p, side, tx); ok {
					reserved[tx.ID] = true
				}
			}
		}
	}
	return reserved
}

// EvaluatePending decides the next state of an active pending transfer.
//
// held maps the entry's currently claimed transaction ids to their current
// records; a held side is kept while it is still unlinked, otherwise it is
// searched for again in pool. pool must not contain transactions claimed by
// other entries.
//
// Both legs unique: matched. One leg unique and the other absent: partial.
// Any ambiguous leg leaves the entry as it was and is reported.
func EvaluatePending(p *transfer.PendingTransfer, pool []*transfer.Transaction, held map[string]*transfer.Transaction) PendingOutcome {
	from := resolveSide(p, transfer.SideFrom, p.FromTransactionID, pool, held)
	to := resolveSide(p, transfer.SideTo, p.ToTransactionID, pool, held)

	var ambiguities []*transfer.AmbiguousMatchError
	for _, r := range []struct {
		side transfer.Side
		res  SideResult
	}{{transfer.SideFrom, from}, {transfer.SideTo, to}} {
		if !r.res.Ambiguous {
			continue
		}
		ids := make([]string, 0, len(r.res.Tied))
		for _, tx := range r.res.Tied {
			ids = append(ids, tx.ID)
		}
		ambiguities = append(ambiguities, &transfer.AmbiguousMatchError{
			PendingTransferID: p.ID,
			Side:              r.side,
			CandidateIDs:      ids,
		})
	}

	if len(ambiguities) > 0 {
		return PendingOutcome{
			Status:            p.Status,
			FromTransactionID: p.FromTransactionID,
			ToTransactionID:   p.ToTransactionID,
			Ambiguities:       ambiguities,
		}
	}

	out := PendingOutcome{}
	if from.Match != nil {
		out.FromTransactionID = from.Match.ID
	}
	if to.Match != nil {
		out.ToTransactionID = to.Match.ID
	}

	switch {
	case from.Match != nil && to.Match != nil:
		out.Status = transfer.PendingStatusMatched
	case from.Match != nil || to.Match != nil:
		out.Status = transfer.PendingStatusPartial
	default:
		out.Status = transfer.PendingStatusPending
	}
	return out
}

func resolveSide(p *transfer.PendingTransfer, side transfer.Side, heldID string, pool []*transfer.Transaction, held map[string]*transfer.Transaction) SideResult {
	if heldID != "" {
		if tx, ok := held[heldID]; ok && tx != nil && !tx.IsLinked() {
			return SideResult{Match: tx, Retained: true}
		}
	}
	return FindPendingSide(p, side, pool)
}
