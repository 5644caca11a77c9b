package cli

import (
	"bytes"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/eshaffer321/transfer-reconciler/internal/application/service"
	"github.com/eshaffer321/transfer-reconciler/internal/domain/transfer"
)

func TestPrintDetectionSummary(t *testing.T) {
	var out bytes.Buffer
	result := &service.DetectionResult{
		RunID:             12,
		CandidatesFound:   3,
		AutoLinked:        1,
		PendingReview:     2,
		RejectedConflicts: 1,
		Decisions: []service.DetectedDecision{
			{MatchDecision: &transfer.MatchDecision{FromTransactionID: "x1", ToTransactionID: "y1", Score: 100, AmountDiff: decimal.Zero, Status: transfer.DecisionAutoLinked}},
			{MatchDecision: &transfer.MatchDecision{FromTransactionID: "x2", ToTransactionID: "y2", Score: 97.5, AmountDiff: decimal.Zero, Status: transfer.DecisionPendingReview}, Conflict: true},
		},
	}

	PrintDetectionSummary(&out, result)

	assert.Contains(t, out.String(), "x1 -> y1  diff=0.00 days=0  auto_linked")
	assert.Contains(t, out.String(), "pending_review (conflict)")
	assert.Contains(t, out.String(), "Summary: Candidates=3 AutoLinked=1 PendingReview=2 Conflicts=1")
	assert.Contains(t, out.String(), "Detection run 12 completed.")
}

func TestPrintHeader(t *testing.T) {
	var out bytes.Buffer
	PrintHeader(&out, "detect", true)
	assert.Equal(t, "transfer-reconciler: detect (DRY-RUN mode)\n", out.String())
}
