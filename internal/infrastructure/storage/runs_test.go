package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eshaffer321/transfer-reconciler/internal/domain/transfer"
)

func TestStorage_DetectionRunLifecycle(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	runID, err := store.StartDetectionRun(ctx, &DetectionRun{
		WindowStart:       day(2025, 1, 1),
		WindowEnd:         day(2025, 1, 31),
		AccountIDs:        []string{"chq", "sav"},
		AutoLinkThreshold: 95,
		DateToleranceDays: 3,
		AmountTolerance:   decimal.RequireFromString("0.50"),
	})
	require.NoError(t, err)
	assert.Greater(t, runID, int64(0))

	run, err := store.GetDetectionRun(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, RunStatusRunning, run.Status)
	assert.Nil(t, run.CompletedAt)
	assert.Equal(t, []string{"chq", "sav"}, run.AccountIDs)
	assert.Equal(t, day(2025, 1, 31), run.WindowEnd)

	counts := RunCounts{CandidatesFound: 4, AutoLinked: 1, PendingReview: 1, Conflicts: 1}
	require.NoError(t, store.CompleteDetectionRun(ctx, runID, counts, nil))

	run, err = store.GetDetectionRun(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, RunStatusWithConflicts, run.Status)
	assert.Equal(t, counts, run.RunCounts)
	assert.NotNil(t, run.CompletedAt)
}

func TestStorage_DetectionRunFailure(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	runID, err := store.StartDetectionRun(ctx, &DetectionRun{WindowStart: day(2025, 1, 1), WindowEnd: day(2025, 1, 2)})
	require.NoError(t, err)
	require.NoError(t, store.CompleteDetectionRun(ctx, runID, RunCounts{}, errors.New("store unavailable")))

	run, err := store.GetDetectionRun(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, RunStatusFailed, run.Status)
	assert.Equal(t, "store unavailable", run.ErrorMessage)
}

func TestStorage_ListDetectionRuns(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := store.StartDetectionRun(ctx, &DetectionRun{WindowStart: day(2025, 1, 1), WindowEnd: day(2025, 1, 2)})
		require.NoError(t, err)
	}

	runs, err := store.ListDetectionRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Greater(t, runs[0].ID, runs[1].ID)

	_, err = store.GetDetectionRun(ctx, 999)
	assert.ErrorIs(t, err, transfer.ErrNotFound)
	assert.ErrorIs(t, store.CompleteDetectionRun(ctx, 999, RunCounts{}, nil), transfer.ErrNotFound)
}
