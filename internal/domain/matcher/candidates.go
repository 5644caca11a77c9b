package matcher

import (
	"sort"

	"github.com/eshaffer321/transfer-reconciler/internal/domain/transfer"
)

// GenerateCandidates proposes opposite-sign pairs across distinct accounts
// whose absolute amounts and dates agree within the configured tolerances.
//
// Linked transactions are never candidates. Locked ones are dropped unless
// cfg.ExcludeLocked is false. The result is sorted by (from, to) id and is
// empty when fewer than two accounts have eligible activity.
func GenerateCandidates(txs []*transfer.Transaction, cfg Config, exclude Exclusions) []Candidate {
	var debits, credits []*transfer.Transaction
	accounts := make(map[string]struct{})

	for _, tx := range txs {
		if tx == nil || tx.IsLinked() || exclude.transaction(tx.ID) {
			continue
		}
		if cfg.ExcludeLocked && tx.IsLocked {
			continue
		}
		switch tx.Sign() {
		case -1:
			debits = append(debits, tx)
		case 1:
			credits = append(credits, tx)
		default:
			continue
		}
		accounts[tx.AccountID] = struct{}{}
	}

	if len(accounts) < 2 || len(debits) == 0 || len(credits) == 0 {
		return nil
	}

	sort.Slice(credits, func(i, j int) bool {
		if !credits[i].Date.Equal(credits[j].Date) {
			return credits[i].Date.Before(credits[j].Date)
		}
		return credits[i].ID < credits[j].ID
	})

	var out []Candidate
	for _, debit := range debits {
		lower := transfer.Day(debit.Date).AddDate(0, 0, -cfg.DateTolerance)
		upper := transfer.Day(debit.Date).AddDate(0, 0, cfg.DateTolerance)

		start := sort.Search(len(credits), func(i int) bool {
			return !transfer.Day(credits[i].Date).Before(lower)
		})

		debitAbs := debit.Amount.Abs()
		for _, credit := range credits[start:] {
			if transfer.Day(credit.Date).After(upper) {
				break
			}
			if credit.AccountID == debit.AccountID {
				continue
			}

			amountDiff := debitAbs.Sub(credit.Amount.Abs()).Abs()
			if amountDiff.GreaterThan(cfg.AmountTolerance) {
				continue
			}

			c := Candidate{
				From:         debit,
				To:           credit,
				AmountDiff:   amountDiff,
				DateDiffDays: transfer.DaysBetween(debit.Date, credit.Date),
			}
			if exclude.pair(c.Pair()) {
				continue
			}
			out = append(out, c)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Pair().Less(out[j].Pair())
	})
	return out
}
