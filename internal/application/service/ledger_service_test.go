package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eshaffer321/transfer-reconciler/internal/domain/transfer"
	"github.com/eshaffer321/transfer-reconciler/internal/infrastructure/storage"
)

func newLedger(repo storage.Repository) *LedgerService {
	return NewLedgerService(repo, DefaultLedgerOptions(), testLogger())
}

// aprilTransfer is 1000.00 from acct-a to acct-b on 2025-04-10, 5 days and $1.00 tolerance.
func aprilTransfer(id string) *transfer.PendingTransfer {
	now := time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)
	return &transfer.PendingTransfer{
		ID:                   id,
		FromAccountID:        "acct-a",
		ToAccountID:          "acct-b",
		Amount:               decimal.RequireFromString("1000.00"),
		TransferDate:         day(2025, 4, 10),
		Status:               transfer.PendingStatusPending,
		MatchToleranceDays:   5,
		MatchToleranceAmount: decimal.RequireFromString("1.00"),
		CreatedAt:            now,
		UpdatedAt:            now,
	}
}

func TestLedgerService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("applies defaults", func(t *testing.T) {
		repo := storage.NewMockRepository()
		svc := newLedger(repo)

		p, err := svc.Create(ctx, CreatePendingRequest{
			FromAccountID: "acct-a",
			ToAccountID:   "acct-b",
			Amount:        decimal.RequireFromString("250.00"),
			TransferDate:  time.Date(2025, 4, 10, 15, 30, 0, 0, time.UTC),
			Description:   "Rent float",
		})

		require.NoError(t, err)
		assert.NotEmpty(t, p.ID)
		assert.Equal(t, transfer.PendingStatusPending, p.Status)
		assert.Equal(t, 5, p.MatchToleranceDays)
		assert.True(t, p.MatchToleranceAmount.Equal(decimal.RequireFromString("0.50")))
		assert.Equal(t, day(2025, 4, 10), p.TransferDate)

		stored, err := repo.GetPendingTransfer(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, "Rent float", stored.Description)
	})

	t.Run("explicit tolerances win", func(t *testing.T) {
		svc := newLedger(storage.NewMockRepository())

		p, err := svc.Create(ctx, CreatePendingRequest{
			FromAccountID:        "acct-a",
			ToAccountID:          "acct-b",
			Amount:               decimal.RequireFromString("1000"),
			TransferDate:         day(2025, 4, 10),
			MatchToleranceDays:   ptr(0),
			MatchToleranceAmount: ptr(decimal.RequireFromString("1.00")),
		})

		require.NoError(t, err)
		assert.Equal(t, 0, p.MatchToleranceDays)
		assert.True(t, p.MatchToleranceAmount.Equal(decimal.RequireFromString("1.00")))
	})

	tests := []struct {
		name string
		req  CreatePendingRequest
	}{
		{"same account", CreatePendingRequest{FromAccountID: "a", ToAccountID: "a", Amount: decimal.NewFromInt(1), TransferDate: day(2025, 4, 1)}},
		{"zero amount", CreatePendingRequest{FromAccountID: "a", ToAccountID: "b", TransferDate: day(2025, 4, 1)}},
		{"missing date", CreatePendingRequest{FromAccountID: "a", ToAccountID: "b", Amount: decimal.NewFromInt(1)}},
		{"negative tolerance", CreatePendingRequest{FromAccountID: "a", ToAccountID: "b", Amount: decimal.NewFromInt(1), TransferDate: day(2025, 4, 1), MatchToleranceDays: ptr(-2)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := storage.NewMockRepository()
			svc := newLedger(repo)

			_, err := svc.Create(ctx, tt.req)

			assert.ErrorIs(t, err, transfer.ErrValidation)
			list, lerr := repo.ListPendingTransfers(ctx, storage.PendingTransferFilter{})
			require.NoError(t, lerr)
			assert.Empty(t, list, "nothing written on validation failure")
		})
	}
}

func TestLedgerService_OpportunisticMatch_BothSidesArrive(t *testing.T) {
	// Arrange
	repo := storage.NewMockRepository()
	repo.AddPendingTransfer(aprilTransfer("pt-1"))
	repo.AddTransactions(
		txn("debit", "acct-a", "-1000.00", day(2025, 4, 12), "Transfer to B"),
		txn("credit", "acct-b", "1000.00", day(2025, 4, 11), "Transfer from A"),
	)
	svc := newLedger(repo)

	// Act
	report, err := svc.OpportunisticMatch(context.Background())

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 1, report.Examined)
	assert.Equal(t, 1, report.Matched)
	require.Len(t, report.Updated, 1)

	p, err := repo.GetPendingTransfer(context.Background(), "pt-1")
	require.NoError(t, err)
	assert.Equal(t, transfer.PendingStatusMatched, p.Status)
	assert.Equal(t, "debit", p.FromTransactionID)
	assert.Equal(t, "credit", p.ToTransactionID)
	require.NotNil(t, p.MatchedAt)

	assert.Equal(t, "credit", repo.Transaction("debit").LinkedTransactionID)
	assert.Equal(t, "debit", repo.Transaction("credit").LinkedTransactionID)

	// A matched entry is no longer examined
	again, err := svc.OpportunisticMatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, again.Examined)
}

func TestLedgerService_OpportunisticMatch_PartialThenIngest(t *testing.T) {
	repo := storage.NewMockRepository()
	repo.AddPendingTransfer(aprilTransfer("pt-1"))
	repo.AddTransactions(txn("debit", "acct-a", "-1000.00", day(2025, 4, 12), "Transfer to B"))
	ledger := newLedger(repo)
	ctx := context.Background()

	report, err := ledger.OpportunisticMatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Partial)

	p, err := repo.GetPendingTransfer(ctx, "pt-1")
	require.NoError(t, err)
	assert.Equal(t, transfer.PendingStatusPartial, p.Status)
	assert.Equal(t, "debit", p.FromTransactionID)
	assert.Empty(t, p.ToTransactionID)
	assert.False(t, repo.Transaction("debit").IsLinked(), "partial holds but does not link")

	// The credit shows up in the next statement import
	txSvc := NewTransactionService(repo, ledger, testLogger())
	result, err := txSvc.Ingest(ctx, []*transfer.Transaction{
		txn("credit", "acct-b", "999.40", day(2025, 4, 14), "Transfer from A"),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Saved)
	require.NotNil(t, result.Match)
	assert.Equal(t, 1, result.Match.Matched)

	p, err = repo.GetPendingTransfer(ctx, "pt-1")
	require.NoError(t, err)
	assert.Equal(t, transfer.PendingStatusMatched, p.Status)
	assert.Equal(t, "credit", p.ToTransactionID)
	assert.Equal(t, "credit", repo.Transaction("debit").LinkedTransactionID)
}

func TestLedgerService_OpportunisticMatch_AmbiguousIsReported(t *testing.T) {
	repo := storage.NewMockRepository()
	repo.AddPendingTransfer(aprilTransfer("pt-1"))
	repo.AddTransactions(
		txn("debit", "acct-a", "-1000.00", day(2025, 4, 10), "Transfer"),
		txn("credit-2", "acct-b", "1000.00", day(2025, 4, 11), "Transfer"),
		txn("credit-1", "acct-b", "1000.00", day(2025, 4, 9), "Transfer"),
	)
	svc := newLedger(repo)

	report, err := svc.OpportunisticMatch(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, report.Unchanged)
	require.Len(t, report.Ambiguous, 1)
	amb := report.Ambiguous[0]
	assert.Equal(t, "pt-1", amb.PendingTransferID)
	assert.Equal(t, transfer.SideTo, amb.Side)
	assert.Equal(t, []string{"credit-1", "credit-2"}, amb.CandidateIDs)
	assert.True(t, errors.Is(amb, transfer.ErrAmbiguousMatch))

	p, err := repo.GetPendingTransfer(context.Background(), "pt-1")
	require.NoError(t, err)
	assert.Equal(t, transfer.PendingStatusPending, p.Status, "never auto-resolved")
	assert.Empty(t, p.FromTransactionID)
	assert.False(t, repo.Transaction("debit").IsLinked())
}

func TestLedgerService_OpportunisticMatch_LinkConflict(t *testing.T) {
	repo := storage.NewMockRepository()
	repo.AddPendingTransfer(aprilTransfer("pt-1"))
	repo.AddTransactions(
		txn("debit", "acct-a", "-1000.00", day(2025, 4, 12), "Transfer"),
		txn("credit", "acct-b", "1000.00", day(2025, 4, 11), "Transfer"),
		txn("other", "acct-c", "-1000.00", day(2025, 4, 11), "Transfer"),
	)
	repo.BeforeLink = func(a, b string) {
		repo.ForceLink("other", "credit")
	}
	svc := newLedger(repo)

	report, err := svc.OpportunisticMatch(context.Background())

	require.NoError(t, err)
	require.Len(t, report.Conflicts, 1)
	assert.Equal(t, "pt-1", report.Conflicts[0].PendingTransferID)
	assert.Equal(t, 0, report.Matched)

	p, err := repo.GetPendingTransfer(context.Background(), "pt-1")
	require.NoError(t, err)
	assert.Equal(t, transfer.PendingStatusPending, p.Status)
	assert.False(t, repo.Transaction("debit").IsLinked())
}

func TestLedgerService_OpportunisticMatch_ClaimsAreExclusive(t *testing.T) {
	repo := storage.NewMockRepository()
	first := aprilTransfer("pt-1")
	second := aprilTransfer("pt-2")
	repo.AddPendingTransfer(first)
	repo.AddPendingTransfer(second)
	repo.AddTransactions(txn("debit", "acct-a", "-1000.00", day(2025, 4, 10), "Transfer"))
	svc := newLedger(repo)

	report, err := svc.OpportunisticMatch(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, report.Partial)
	assert.Equal(t, 1, report.Unchanged)

	claims, err := repo.PendingClaims(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"debit": "pt-1"}, claims)
}

func TestLedgerService_OpportunisticMatch_HeldSideLinkedElsewhere(t *testing.T) {
	repo := storage.NewMockRepository()
	p := aprilTransfer("pt-1")
	p.Status = transfer.PendingStatusPartial
	p.FromTransactionID = "debit"
	repo.AddPendingTransfer(p)
	repo.AddTransactions(
		txn("debit", "acct-a", "-1000.00", day(2025, 4, 10), "Transfer"),
		txn("elsewhere", "acct-c", "1000.00", day(2025, 4, 10), "Transfer"),
	)
	repo.ForceLink("debit", "elsewhere")
	svc := newLedger(repo)

	report, err := svc.OpportunisticMatch(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, report.Reverted)

	got, err := repo.GetPendingTransfer(context.Background(), "pt-1")
	require.NoError(t, err)
	assert.Equal(t, transfer.PendingStatusPending, got.Status)
	assert.Empty(t, got.FromTransactionID)
}

func TestLedgerService_OpportunisticMatch_ListError(t *testing.T) {
	repo := storage.NewMockRepository()
	repo.ListPendingErr = errors.New("database is locked")
	svc := newLedger(repo)

	_, err := svc.OpportunisticMatch(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "database is locked")
}

func TestLedgerService_Cancel(t *testing.T) {
	ctx := context.Background()
	matchedAt := day(2025, 4, 12)

	t.Run("pending", func(t *testing.T) {
		repo := storage.NewMockRepository()
		repo.AddPendingTransfer(aprilTransfer("pt-1"))

		p, err := newLedger(repo).Cancel(ctx, "pt-1")

		require.NoError(t, err)
		assert.Equal(t, transfer.PendingStatusCancelled, p.Status)
	})

	t.Run("partial releases its transaction", func(t *testing.T) {
		repo := storage.NewMockRepository()
		p := aprilTransfer("pt-1")
		p.Status = transfer.PendingStatusPartial
		p.ToTransactionID = "credit"
		repo.AddPendingTransfer(p)

		got, err := newLedger(repo).Cancel(ctx, "pt-1")

		require.NoError(t, err)
		assert.Equal(t, transfer.PendingStatusCancelled, got.Status)
		assert.Empty(t, got.ToTransactionID)

		claims, err := repo.PendingClaims(ctx)
		require.NoError(t, err)
		assert.Empty(t, claims)
	})

	t.Run("matched is refused", func(t *testing.T) {
		repo := storage.NewMockRepository()
		p := aprilTransfer("pt-1")
		p.Status = transfer.PendingStatusMatched
		p.FromTransactionID = "debit"
		p.ToTransactionID = "credit"
		p.MatchedAt = &matchedAt
		repo.AddPendingTransfer(p)

		_, err := newLedger(repo).Cancel(ctx, "pt-1")

		assert.ErrorIs(t, err, transfer.ErrNotFound)
		got, gerr := repo.GetPendingTransfer(ctx, "pt-1")
		require.NoError(t, gerr)
		assert.Equal(t, transfer.PendingStatusMatched, got.Status)
	})

	t.Run("cancelled is a no-op", func(t *testing.T) {
		repo := storage.NewMockRepository()
		p := aprilTransfer("pt-1")
		p.Status = transfer.PendingStatusCancelled
		repo.AddPendingTransfer(p)

		got, err := newLedger(repo).Cancel(ctx, "pt-1")

		require.NoError(t, err)
		assert.Equal(t, transfer.PendingStatusCancelled, got.Status)
		assert.Zero(t, repo.UpdatePendingCall)
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := newLedger(storage.NewMockRepository()).Cancel(ctx, "nope")
		assert.ErrorIs(t, err, transfer.ErrNotFound)
	})
}

func TestLedgerService_Delete(t *testing.T) {
	ctx := context.Background()
	matchedAt := day(2025, 4, 12)

	tests := []struct {
		name    string
		mutate  func(p *transfer.PendingTransfer)
		wantErr error
	}{
		{"pending", func(p *transfer.PendingTransfer) {}, nil},
		{"cancelled", func(p *transfer.PendingTransfer) { p.Status = transfer.PendingStatusCancelled }, nil},
		{"partial", func(p *transfer.PendingTransfer) {
			p.Status = transfer.PendingStatusPartial
			p.FromTransactionID = "debit"
		}, transfer.ErrValidation},
		{"matched", func(p *transfer.PendingTransfer) {
			p.Status = transfer.PendingStatusMatched
			p.FromTransactionID = "debit"
			p.ToTransactionID = "credit"
			p.MatchedAt = &matchedAt
		}, transfer.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := storage.NewMockRepository()
			p := aprilTransfer("pt-1")
			tt.mutate(p)
			repo.AddPendingTransfer(p)

			err := newLedger(repo).Delete(ctx, "pt-1")

			_, gerr := repo.GetPendingTransfer(ctx, "pt-1")
			if tt.wantErr == nil {
				require.NoError(t, err)
				assert.ErrorIs(t, gerr, transfer.ErrNotFound)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
			assert.NoError(t, gerr, "entry must survive")
		})
	}
}

func TestLedgerService_Update(t *testing.T) {
	ctx := context.Background()

	t.Run("edits a pending entry", func(t *testing.T) {
		repo := storage.NewMockRepository()
		repo.AddPendingTransfer(aprilTransfer("pt-1"))

		p, err := newLedger(repo).Update(ctx, "pt-1", UpdatePendingRequest{
			Notes:              ptr("moved a day later"),
			TransferDate:       ptr(day(2025, 4, 11)),
			MatchToleranceDays: ptr(2),
		})

		require.NoError(t, err)
		assert.Equal(t, "moved a day later", p.Notes)

		stored, err := repo.GetPendingTransfer(ctx, "pt-1")
		require.NoError(t, err)
		assert.Equal(t, day(2025, 4, 11), stored.TransferDate)
		assert.Equal(t, 2, stored.MatchToleranceDays)
	})

	t.Run("rejects invalid values", func(t *testing.T) {
		repo := storage.NewMockRepository()
		repo.AddPendingTransfer(aprilTransfer("pt-1"))

		_, err := newLedger(repo).Update(ctx, "pt-1", UpdatePendingRequest{Amount: ptr(decimal.Zero)})

		assert.ErrorIs(t, err, transfer.ErrValidation)
	})

	t.Run("partial cannot be edited", func(t *testing.T) {
		repo := storage.NewMockRepository()
		p := aprilTransfer("pt-1")
		p.Status = transfer.PendingStatusPartial
		p.FromTransactionID = "debit"
		repo.AddPendingTransfer(p)

		_, err := newLedger(repo).Update(ctx, "pt-1", UpdatePendingRequest{Notes: ptr("x")})

		assert.ErrorIs(t, err, transfer.ErrValidation)
	})

	t.Run("cancelled cannot be edited", func(t *testing.T) {
		repo := storage.NewMockRepository()
		p := aprilTransfer("pt-1")
		p.Status = transfer.PendingStatusCancelled
		repo.AddPendingTransfer(p)

		_, err := newLedger(repo).Update(ctx, "pt-1", UpdatePendingRequest{Notes: ptr("x")})

		assert.ErrorIs(t, err, transfer.ErrNotFound)
	})
}

func TestLedgerService_ListRejectsUnknownStatus(t *testing.T) {
	svc := newLedger(storage.NewMockRepository())

	_, err := svc.List(context.Background(), storage.PendingTransferFilter{
		Statuses: []transfer.PendingStatus{"lost"},
	})

	assert.ErrorIs(t, err, transfer.ErrValidation)
}

func TestLedgerService_PeriodicMatching(t *testing.T) {
	repo := storage.NewMockRepository()
	repo.AddPendingTransfer(aprilTransfer("pt-1"))
	repo.AddTransactions(
		txn("debit", "acct-a", "-1000.00", day(2025, 4, 12), "Transfer"),
		txn("credit", "acct-b", "1000.00", day(2025, 4, 11), "Transfer"),
	)
	svc := newLedger(repo)

	svc.StartPeriodicMatching(10 * time.Millisecond)

	assert.Eventually(t, func() bool {
		p, err := repo.GetPendingTransfer(context.Background(), "pt-1")
		return err == nil && p.Status == transfer.PendingStatusMatched
	}, 2*time.Second, 10*time.Millisecond)

	svc.StopPeriodicMatching()
	svc.StopPeriodicMatching()
}

func TestLedgerService_PeriodicMatchingStartsOnce(t *testing.T) {
	svc := newLedger(storage.NewMockRepository())

	svc.StartPeriodicMatching(time.Hour)
	first := svc.periodicDone
	require.NotNil(t, first)

	svc.StartPeriodicMatching(time.Hour)
	assert.Equal(t, first, svc.periodicDone, "second start must not replace the running loop")

	svc.StopPeriodicMatching()
	select {
	case <-first:
	default:
		t.Fatal("the running loop was not stopped")
	}
	assert.Nil(t, svc.periodicStop)
	assert.Nil(t, svc.periodicDone)

	// It can be started again after a stop
	svc.StartPeriodicMatching(time.Hour)
	assert.NotNil(t, svc.periodicDone)
	svc.StopPeriodicMatching()
}
