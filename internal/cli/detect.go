package cli

import (
	"context"
	"io"
	"time"

	"github.com/eshaffer321/transfer-reconciler/internal/application/service"
	"github.com/eshaffer321/transfer-reconciler/internal/infrastructure/config"
	"github.com/eshaffer321/transfer-reconciler/internal/infrastructure/storage"
)

// RunDetect performs one detection run against the configured database and
// prints the result to out.
func RunDetect(ctx context.Context, cfg *config.Config, flags *DetectFlags, out io.Writer) (*service.DetectionResult, error) {
	logger := NewLogger(cfg, flags.CommonFlags, "detect")

	store, err := storage.NewStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, err
	}
	defer func() { _ = store.Close() }()

	svc := service.NewDetectionService(store, DetectionOptions(cfg), logger)
	req, err := flags.ToDetectionRequest(svc, time.Now())
	if err != nil {
		return nil, err
	}

	PrintHeader(out, "detect", req.DryRun)
	PrintConfiguration(out, req)

	result, err := svc.Run(ctx, req)
	if err != nil {
		return nil, err
	}

	PrintDetectionSummary(out, result)
	return result, nil
}

// RunMatchPending performs one opportunistic matching pass and prints the
// report to out.
func RunMatchPending(ctx context.Context, cfg *config.Config, flags *MatchFlags, out io.Writer) (*service.MatchReport, error) {
	logger := NewLogger(cfg, flags.CommonFlags, "ledger")

	store, err := storage.NewStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, err
	}
	defer func() { _ = store.Close() }()

	PrintHeader(out, "match-pending", false)

	ledger := service.NewLedgerService(store, LedgerOptions(cfg), logger)
	report, err := ledger.OpportunisticMatch(ctx)
	if err != nil {
		return nil, err
	}

	PrintMatchReport(out, report)
	return report, nil
}
