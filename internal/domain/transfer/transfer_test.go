package transfer

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validPending() *PendingTransfer {
	return &PendingTransfer{
		FromAccountID:        "acct-a",
		ToAccountID:          "acct-b",
		Amount:               decimal.NewFromInt(1000),
		TransferDate:         time.Date(2025, 4, 10, 0, 0, 0, 0, time.UTC),
		Status:               PendingStatusPending,
		MatchToleranceDays:   5,
		MatchToleranceAmount: decimal.RequireFromString("1.00"),
	}
}

func TestPendingTransfer_Validate(t *testing.T) {
	t.Run("accepts a well formed entry", func(t *testing.T) {
		require.NoError(t, validPending().Validate())
	})

	tests := []struct {
		name   string
		mutate func(p *PendingTransfer)
		field  string
	}{
		{"same accounts", func(p *PendingTransfer) { p.ToAccountID = p.FromAccountID }, "to_account_id"},
		{"zero amount", func(p *PendingTransfer) { p.Amount = decimal.Zero }, "amount"},
		{"negative amount", func(p *PendingTransfer) { p.Amount = decimal.NewFromInt(-5) }, "amount"},
		{"missing date", func(p *PendingTransfer) { p.TransferDate = time.Time{} }, "transfer_date"},
		{"negative day tolerance", func(p *PendingTransfer) { p.MatchToleranceDays = -1 }, "match_tolerance_days"},
		{"negative amount tolerance", func(p *PendingTransfer) { p.MatchToleranceAmount = decimal.NewFromInt(-1) }, "match_tolerance_amount"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validPending()
			tt.mutate(p)

			err := p.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrValidation))

			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestPendingTransfer_CheckConsistency(t *testing.T) {
	now := time.Now()

	t.Run("matched needs both ids and matched_at", func(t *testing.T) {
		p := validPending()
		p.Status = PendingStatusMatched
		p.FromTransactionID = "tx-1"
		assert.Error(t, p.CheckConsistency())

		p.ToTransactionID = "tx-2"
		assert.Error(t, p.CheckConsistency(), "matched_at still missing")

		p.MatchedAt = &now
		assert.NoError(t, p.CheckConsistency())
	})

	t.Run("partial needs exactly one id", func(t *testing.T) {
		p := validPending()
		p.Status = PendingStatusPartial
		assert.Error(t, p.CheckConsistency())

		p.ToTransactionID = "tx-2"
		assert.NoError(t, p.CheckConsistency())

		p.FromTransactionID = "tx-1"
		assert.Error(t, p.CheckConsistency())
	})

	t.Run("pending and cancelled hold nothing", func(t *testing.T) {
		for _, status := range []PendingStatus{PendingStatusPending, PendingStatusCancelled} {
			p := validPending()
			p.Status = status
			assert.NoError(t, p.CheckConsistency())

			p.FromTransactionID = "tx-1"
			assert.Error(t, p.CheckConsistency())
		}
	})
}

func TestPendingStatus_Transitions(t *testing.T) {
	assert.True(t, PendingStatusPending.CanTransition(PendingStatusMatched))
	assert.True(t, PendingStatusPending.CanTransition(PendingStatusPartial))
	assert.True(t, PendingStatusPartial.CanTransition(PendingStatusMatched))
	assert.True(t, PendingStatusPartial.CanTransition(PendingStatusCancelled))
	assert.False(t, PendingStatusMatched.CanTransition(PendingStatusCancelled))
	assert.False(t, PendingStatusCancelled.CanTransition(PendingStatusPending))

	assert.True(t, PendingStatusMatched.IsTerminal())
	assert.True(t, PendingStatusCancelled.IsTerminal())
	assert.False(t, PendingStatusPartial.IsTerminal())
	assert.False(t, PendingStatus("bogus").Valid())
}

func TestDecisionStatus_Transitions(t *testing.T) {
	assert.True(t, DecisionPendingReview.CanTransition(DecisionConfirmed))
	assert.True(t, DecisionPendingReview.CanTransition(DecisionRejected))
	assert.False(t, DecisionConfirmed.CanTransition(DecisionRejected))
	assert.False(t, DecisionAutoLinked.CanTransition(DecisionConfirmed))
	assert.False(t, DecisionRejected.CanTransition(DecisionConfirmed))

	assert.True(t, DecisionAutoLinked.Links())
	assert.True(t, DecisionConfirmed.Links())
	assert.False(t, DecisionPendingReview.Links())
}

func TestDaysBetween(t *testing.T) {
	a := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	b := time.Date(2025, 3, 4, 15, 30, 0, 0, time.UTC)

	assert.Equal(t, 3, DaysBetween(a, b))
	assert.Equal(t, 3, DaysBetween(b, a))
	assert.Equal(t, 0, DaysBetween(a, a))
}

func TestErrors_Is(t *testing.T) {
	assert.True(t, errors.Is(NewConflictError("already linked", "a", "b"), ErrConflict))
	assert.True(t, errors.Is(NewNotFoundError("pending transfer", "x", ""), ErrNotFound))
	assert.True(t, errors.Is(&AmbiguousMatchError{PendingTransferID: "p", Side: SideFrom}, ErrAmbiguousMatch))
	assert.False(t, errors.Is(NewValidationError("amount", "bad"), ErrConflict))

	assert.Equal(t, "pending transfer x not found: already matched",
		NewNotFoundError("pending transfer", "x", "already matched").Error())
}
