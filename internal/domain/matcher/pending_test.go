package matcher

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eshaffer321/transfer-reconciler/internal/domain/transfer"
)

func newPending() *transfer.PendingTransfer {
	return &transfer.PendingTransfer{
		ID:                   "pt-1",
		FromAccountID:        "acct-x",
		ToAccountID:          "acct-y",
		Amount:               decimal.RequireFromString("1000.00"),
		TransferDate:         day(2025, 4, 10),
		Status:               transfer.PendingStatusPending,
		MatchToleranceDays:   transfer.DefaultPendingToleranceDays,
		MatchToleranceAmount: transfer.DefaultPendingToleranceAmount,
	}
}

func TestEvaluatePending_DebitOnlyIsPartial(t *testing.T) {
	// Arrange
	p := newPending()
	pool := []*transfer.Transaction{
		makeTransaction("tx-x", "acct-x", "-1000.00", day(2025, 4, 11), "Transfer out"),
	}

	// Act
	out := EvaluatePending(p, pool, nil)

	// Assert
	assert.Equal(t, transfer.PendingStatusPartial, out.Status)
	assert.Equal(t, "tx-x", out.FromTransactionID)
	assert.Empty(t, out.ToTransactionID)
	assert.Empty(t, out.Ambiguities)
	assert.True(t, out.Changed(p))
}

func TestEvaluatePending_CreditArrivesLater(t *testing.T) {
	// Arrange: entry already partial holding the debit
	p := newPending()
	p.Status = transfer.PendingStatusPartial
	p.FromTransactionID = "tx-x"
	held := map[string]*transfer.Transaction{
		"tx-x": makeTransaction("tx-x", "acct-x", "-1000.00", day(2025, 4, 11), "Transfer out"),
	}
	pool := []*transfer.Transaction{
		makeTransaction("tx-y", "acct-y", "999.75", day(2025, 4, 13), "Deposit"),
	}

	// Act
	out := EvaluatePending(p, pool, held)

	// Assert
	assert.Equal(t, transfer.PendingStatusMatched, out.Status)
	assert.Equal(t, "tx-x", out.FromTransactionID)
	assert.Equal(t, "tx-y", out.ToTransactionID)
}

func TestEvaluatePending_HeldSideLinkedElsewhereIsSearchedAgain(t *testing.T) {
	p := newPending()
	p.Status = transfer.PendingStatusPartial
	p.FromTransactionID = "tx-x"

	gone := makeTransaction("tx-x", "acct-x", "-1000.00", day(2025, 4, 11), "")
	gone.LinkedTransactionID = "other"
	held := map[string]*transfer.Transaction{"tx-x": gone}

	out := EvaluatePending(p, nil, held)

	assert.Equal(t, transfer.PendingStatusPending, out.Status)
	assert.Empty(t, out.FromTransactionID)
	assert.True(t, out.Changed(p))
}

func TestEvaluatePending_NothingFound(t *testing.T) {
	p := newPending()
	pool := []*transfer.Transaction{
		// wrong account
		makeTransaction("a", "acct-z", "-1000.00", day(2025, 4, 10), ""),
		// wrong sign for the from side
		makeTransaction("b", "acct-x", "1000.00", day(2025, 4, 10), ""),
		// outside date tolerance
		makeTransaction("c", "acct-x", "-1000.00", day(2025, 4, 16), ""),
		// outside amount tolerance
		makeTransaction("d", "acct-y", "1000.51", day(2025, 4, 10), ""),
	}

	out := EvaluatePending(p, pool, nil)

	assert.Equal(t, transfer.PendingStatusPending, out.Status)
	assert.False(t, out.Changed(p))
}

func TestFindPendingSide_PrefersClosestDateThenAmount(t *testing.T) {
	p := newPending()
	pool := []*transfer.Transaction{
		makeTransaction("far", "acct-y", "1000.00", day(2025, 4, 14), ""),
		makeTransaction("near-off", "acct-y", "1000.30", day(2025, 4, 11), ""),
		makeTransaction("near-exact", "acct-y", "1000.00", day(2025, 4, 9), ""),
	}

	res := FindPendingSide(p, transfer.SideTo, pool)

	require.NotNil(t, res.Match)
	assert.Equal(t, "near-exact", res.Match.ID)
	assert.False(t, res.Ambiguous)
}

func TestFindPendingSide_SkipsLinkedAndLocked(t *testing.T) {
	p := newPending()
	linked := makeTransaction("linked", "acct-x", "-1000.00", day(2025, 4, 10), "")
	linked.LinkedTransactionID = "z"
	locked := makeTransaction("locked", "acct-x", "-1000.00", day(2025, 4, 10), "")
	locked.IsLocked = true

	res := FindPendingSide(p, transfer.SideFrom, []*transfer.Transaction{linked, locked})

	assert.Nil(t, res.Match)
	assert.False(t, res.Ambiguous)
}

func TestEvaluatePending_AmbiguousLeavesEntryUnchanged(t *testing.T) {
	// Arrange: two identical credits fit the to side equally well
	p := newPending()
	pool := []*transfer.Transaction{
		makeTransaction("tx-x", "acct-x", "-1000.00", day(2025, 4, 10), ""),
		makeTransaction("tx-y2", "acct-y", "1000.00", day(2025, 4, 11), ""),
		makeTransaction("tx-y1", "acct-y", "1000.00", day(2025, 4, 11), ""),
	}

	// Act
	out := EvaluatePending(p, pool, nil)

	// Assert
	assert.Equal(t, transfer.PendingStatusPending, out.Status)
	assert.Empty(t, out.FromTransactionID)
	assert.Empty(t, out.ToTransactionID)
	assert.False(t, out.Changed(p))

	require.Len(t, out.Ambiguities, 1)
	amb := out.Ambiguities[0]
	assert.Equal(t, "pt-1", amb.PendingTransferID)
	assert.Equal(t, transfer.SideTo, amb.Side)
	assert.Equal(t, []string{"tx-y1", "tx-y2"}, amb.CandidateIDs)
	assert.True(t, errors.Is(amb, transfer.ErrAmbiguousMatch))
}

func TestReservedByPending(t *testing.T) {
	pool := []*transfer.Transaction{
		makeTransaction("debit", "acct-x", "-1000.00", day(2025, 4, 10), "Transfer"),
		makeTransaction("credit", "acct-y", "999.75", day(2025, 4, 12), "Transfer"),
		makeTransaction("late-credit", "acct-y", "1000.00", day(2025, 4, 30), "Transfer"),
		makeTransaction("other-account", "acct-z", "1000.00", day(2025, 4, 10), "Transfer"),
		makeTransaction("wrong-sign", "acct-x", "1000.00", day(2025, 4, 10), "Refund"),
	}

	t.Run("open legs reserve every fitting transaction", func(t *testing.T) {
		reserved := ReservedByPending([]*transfer.PendingTransfer{newPending()}, pool)

		assert.Equal(t, map[string]bool{"debit": true, "credit": true}, reserved)
	})

	t.Run("held leg is not searched", func(t *testing.T) {
		p := newPending()
		p.Status = transfer.PendingStatusPartial
		p.FromTransactionID = "held-debit"

		reserved := ReservedByPending([]*transfer.PendingTransfer{p}, pool)

		assert.Equal(t, map[string]bool{"credit": true}, reserved)
	})

	t.Run("inactive entries reserve nothing", func(t *testing.T) {
		cancelled := newPending()
		cancelled.Status = transfer.PendingStatusCancelled

		assert.Empty(t, ReservedByPending([]*transfer.PendingTransfer{cancelled}, pool))
	})
}
