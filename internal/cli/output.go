package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/eshaffer321/transfer-reconciler/internal/application/service"
	"github.com/eshaffer321/transfer-reconciler/internal/domain/transfer"
)

// PrintHeader prints the command header
func PrintHeader(w io.Writer, command string, dryRun bool) {
	mode := "PRODUCTION"
	if dryRun {
		mode = "DRY-RUN"
	}
	fmt.Fprintf(w, "transfer-reconciler: %s (%s mode)\n", command, mode)
}

// PrintConfiguration prints the detection parameters
func PrintConfiguration(w io.Writer, req service.DetectionRequest) {
	fmt.Fprintf(w, "Window: %s..%s | Threshold: %.2f | Date tolerance: %d days | Amount tolerance: %s",
		req.DateFrom.Format(transfer.DateLayout),
		req.DateTo.Format(transfer.DateLayout),
		req.AutoLinkThreshold,
		req.DateToleranceDays,
		req.AmountTolerance.StringFixed(2))
	if len(req.AccountIDs) > 0 {
		fmt.Fprintf(w, " | Accounts: %s", strings.Join(req.AccountIDs, ","))
	}
	if !req.ExcludeLocked {
		fmt.Fprint(w, " | Including locked")
	}
	fmt.Fprint(w, "\n\n")
}

// PrintDetectionSummary prints every decision and the run totals
func PrintDetectionSummary(w io.Writer, result *service.DetectionResult) {
	for _, d := range result.Decisions {
		status := string(d.Status)
		switch {
		case d.WouldAutoLink:
			status = "would_auto_link"
		case d.Conflict:
			status += " (conflict)"
		}
		fmt.Fprintf(w, "  %-6.2f %s -> %s  diff=%s days=%d  %s\n",
			d.Score, d.FromTransactionID, d.ToTransactionID,
			d.AmountDiff.StringFixed(2), d.DateDiffDays, status)
	}

	fmt.Fprintln(w, strings.Repeat("-", 60))
	fmt.Fprintf(w, "Summary: Candidates=%d AutoLinked=%d PendingReview=%d Conflicts=%d\n",
		result.CandidatesFound,
		result.AutoLinked,
		result.PendingReview,
		result.RejectedConflicts)

	if result.DryRun {
		fmt.Fprintln(w, "\nDry run: nothing was written.")
	} else {
		fmt.Fprintf(w, "\nDetection run %d completed.\n", result.RunID)
	}
}

// PrintMatchReport prints the outcome of one opportunistic matching pass
func PrintMatchReport(w io.Writer, report *service.MatchReport) {
	for _, p := range report.Updated {
		fmt.Fprintf(w, "  %s %s -> %s %s  %s\n",
			p.ID, p.FromAccountID, p.ToAccountID, p.Amount.StringFixed(2), p.Status)
	}
	for _, a := range report.Ambiguous {
		fmt.Fprintf(w, "  %s ambiguous %s side: %s\n", a.PendingTransferID, a.Side, strings.Join(a.CandidateIDs, ", "))
	}
	for _, c := range report.Conflicts {
		fmt.Fprintf(w, "  %s conflict: %s\n", c.PendingTransferID, c.Error)
	}

	fmt.Fprintln(w, strings.Repeat("-", 60))
	fmt.Fprintf(w, "Summary: Examined=%d Matched=%d Partial=%d Reverted=%d Unchanged=%d Ambiguous=%d Conflicts=%d\n",
		report.Examined,
		report.Matched,
		report.Partial,
		report.Reverted,
		report.Unchanged,
		len(report.Ambiguous),
		len(report.Conflicts))
}
