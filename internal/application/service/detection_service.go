package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/eshaffer321/transfer-reconciler/internal/domain/matcher"
	"github.com/eshaffer321/transfer-reconciler/internal/domain/transfer"
	"github.com/eshaffer321/transfer-reconciler/internal/infrastructure/storage"
)

// DetectionOptions are the defaults applied to detection requests.
type DetectionOptions struct {
	AutoLinkThreshold float64
	DateToleranceDays int
	AmountTolerance   decimal.Decimal
	Weights           matcher.Weights
	MaxWindowDays     int              // 0 = unbounded
	Resolver          matcher.Resolver // nil = greedy
}

// DefaultDetectionOptions returns threshold 95, 3 days and $0.50.
func DefaultDetectionOptions() DetectionOptions {
	cfg := matcher.DefaultConfig()
	return DetectionOptions{
		AutoLinkThreshold: matcher.DefaultAutoLinkThreshold,
		DateToleranceDays: cfg.DateTolerance,
		AmountTolerance:   cfg.AmountTolerance,
		Weights:           cfg.Weights,
		MaxWindowDays:     366,
	}
}

// DetectionRequest holds parameters for one detection run.
type DetectionRequest struct {
	DateFrom          time.Time
	DateTo            time.Time
	AccountIDs        []string // Empty = all accounts
	AutoLinkThreshold float64
	DateToleranceDays int
	AmountTolerance   decimal.Decimal
	DryRun            bool
	ExcludeLocked     bool
}

// DetectedDecision is a decision created by a run, or one a dry run would create.
type DetectedDecision struct {
	*transfer.MatchDecision
	WouldAutoLink bool `json:"would_auto_link,omitempty"` // Dry runs only
	Conflict      bool `json:"conflict,omitempty"`        // Downgraded from auto_linked
}

// DetectionResult summarises a detection run.
type DetectionResult struct {
	RunID             int64              `json:"run_id,omitempty"`
	DryRun            bool               `json:"dry_run"`
	CandidatesFound   int                `json:"candidates_found"`
	AutoLinked        int                `json:"auto_linked"`
	PendingReview     int                `json:"pending_review"`
	RejectedConflicts int                `json:"rejected_conflicts"`
	Decisions         []DetectedDecision `json:"decisions"`
}

// DetectionService runs transfer detection against the repository.
type DetectionService struct {
	storage storage.Repository
	options DetectionOptions
	logger  *slog.Logger
	now     func() time.Time
}

// NewDetectionService creates a new detection service.
func NewDetectionService(store storage.Repository, options DetectionOptions, logger *slog.Logger) *DetectionService {
	if logger == nil {
		logger = slog.Default()
	}
	if options.Resolver == nil {
		options.Resolver = matcher.GreedyResolver{}
	}
	return &DetectionService{
		storage: store,
		options: options,
		logger:  logger,
		now:     time.Now,
	}
}

// Options returns the configured defaults.
func (s *DetectionService) Options() DetectionOptions {
	return s.options
}

// NewRequest returns a request over [from, to] filled with the configured defaults.
func (s *DetectionService) NewRequest(from, to time.Time) DetectionRequest {
	return DetectionRequest{
		DateFrom:          from,
		DateTo:            to,
		AutoLinkThreshold: s.options.AutoLinkThreshold,
		DateToleranceDays: s.options.DateToleranceDays,
		AmountTolerance:   s.options.AmountTolerance,
		ExcludeLocked:     true,
	}
}

func (s *DetectionService) validate(req DetectionRequest) error {
	switch {
	case req.DateFrom.IsZero() || req.DateTo.IsZero():
		return transfer.NewValidationError("filter", "date_from and date_to are required")
	case req.DateTo.Before(req.DateFrom):
		return transfer.NewValidationError("date_to", "must not be before date_from")
	case req.AutoLinkThreshold < 0 || req.AutoLinkThreshold > 100:
		return transfer.NewValidationError("auto_link_threshold", "must be between 0 and 100")
	}
	if limit := s.options.MaxWindowDays; limit > 0 && transfer.DaysBetween(req.DateFrom, req.DateTo) > limit {
		return transfer.NewValidationError("filter", fmt.Sprintf("window exceeds %d days", limit))
	}
	return s.matcherConfig(req).Validate()
}

func (s *DetectionService) matcherConfig(req DetectionRequest) matcher.Config {
	return matcher.Config{
		AmountTolerance: req.AmountTolerance,
		DateTolerance:   req.DateToleranceDays,
		ExcludeLocked:   req.ExcludeLocked,
		Weights:         s.options.Weights,
	}
}

// Run executes one detection run.
//
// Each accepted pair is committed on its own: auto-links atomically link
// both transactions and record the decision, everything else is stored as
// pending_review. An auto-link that loses a race to another writer is
// downgraded to pending_review and counted as a conflict. A dry run writes
// nothing.
func (s *DetectionService) Run(ctx context.Context, req DetectionRequest) (*DetectionResult, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}
	req.DateFrom = transfer.Day(req.DateFrom)
	req.DateTo = transfer.Day(req.DateTo)

	result := &DetectionResult{DryRun: req.DryRun, Decisions: []DetectedDecision{}}

	if !req.DryRun {
		runID, err := s.storage.StartDetectionRun(ctx, &storage.DetectionRun{
			StartedAt:         s.now(),
			WindowStart:       req.DateFrom,
			WindowEnd:         req.DateTo,
			AccountIDs:        req.AccountIDs,
			AutoLinkThreshold: req.AutoLinkThreshold,
			DateToleranceDays: req.DateToleranceDays,
			AmountTolerance:   req.AmountTolerance,
			IncludeLocked:     !req.ExcludeLocked,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to start detection run: %w", err)
		}
		result.RunID = runID
	}

	logger := s.logger.With("run_id", result.RunID, "dry_run", req.DryRun)
	logger.Info("detection run started",
		"date_from", req.DateFrom.Format(transfer.DateLayout),
		"date_to", req.DateTo.Format(transfer.DateLayout),
		"accounts", len(req.AccountIDs),
		"threshold", req.AutoLinkThreshold,
	)

	err := s.detect(ctx, req, result, logger)

	if !req.DryRun {
		counts := storage.RunCounts{
			CandidatesFound: result.CandidatesFound,
			AutoLinked:      result.AutoLinked,
			PendingReview:   result.PendingReview,
			Conflicts:       result.RejectedConflicts,
		}
		if cerr := s.storage.CompleteDetectionRun(ctx, result.RunID, counts, err); cerr != nil {
			logger.Error("failed to record detection run outcome", "error", cerr)
			if err == nil {
				err = fmt.Errorf("failed to complete detection run: %w", cerr)
			}
		}
	}

	if err != nil {
		logger.Error("detection run failed", "error", err)
		return nil, err
	}

	logger.Info("detection run completed",
		"candidates", result.CandidatesFound,
		"auto_linked", result.AutoLinked,
		"pending_review", result.PendingReview,
		"conflicts", result.RejectedConflicts,
	)
	return result, nil
}

func (s *DetectionService) detect(ctx context.Context, req DetectionRequest, result *DetectionResult, logger *slog.Logger) error {
	exclude, err := s.exclusions(ctx)
	if err != nil {
		return err
	}

	txs, err := s.storage.FetchTransactions(ctx, storage.TransactionFilter{
		From:         req.DateFrom,
		To:           req.DateTo,
		AccountIDs:   req.AccountIDs,
		UnlinkedOnly: true,
	})
	if err != nil {
		return fmt.Errorf("failed to fetch transactions: %w", err)
	}

	active, err := s.storage.ListPendingTransfers(ctx, storage.PendingTransferFilter{
		Statuses: []transfer.PendingStatus{transfer.PendingStatusPending, transfer.PendingStatusPartial},
	})
	if err != nil {
		return fmt.Errorf("failed to load active pending transfers: %w", err)
	}
	reserved := matcher.ReservedByPending(active, txs)
	for id := range reserved {
		exclude.TransactionIDs[id] = true
	}

	m := matcher.NewMatcherWithResolver(s.matcherConfig(req), s.options.Resolver)
	candidates := m.Candidates(txs, exclude)
	result.CandidatesFound = len(candidates)
	accepted := s.options.Resolver.Resolve(candidates)

	logger.Debug("candidates resolved",
		"transactions", len(txs),
		"reserved_by_pending", len(reserved),
		"candidates", len(candidates),
		"accepted", len(accepted),
	)

	for _, c := range accepted {
		status := matcher.Classify(c.Score, req.AutoLinkThreshold)
		d := &transfer.MatchDecision{
			ID:                uuid.NewString(),
			RunID:             result.RunID,
			FromTransactionID: c.From.ID,
			ToTransactionID:   c.To.ID,
			Score:             c.Score,
			AmountDiff:        c.AmountDiff,
			DateDiffDays:      c.DateDiffDays,
			Status:            transfer.DecisionPendingReview,
			CreatedAt:         s.now(),
		}

		if req.DryRun {
			would := status == transfer.DecisionAutoLinked
			if would {
				result.AutoLinked++
			} else {
				result.PendingReview++
			}
			result.Decisions = append(result.Decisions, DetectedDecision{MatchDecision: d, WouldAutoLink: would})
			continue
		}

		detected, err := s.commit(ctx, d, status, logger)
		if err != nil {
			return err
		}
		switch {
		case detected.Status == transfer.DecisionAutoLinked:
			result.AutoLinked++
		case detected.Conflict:
			result.PendingReview++
			result.RejectedConflicts++
		default:
			result.PendingReview++
		}
		result.Decisions = append(result.Decisions, detected)
	}
	return nil
}

// commit persists one accepted pair. Only non-conflict storage errors are returned.
func (s *DetectionService) commit(ctx context.Context, d *transfer.MatchDecision, status transfer.DecisionStatus, logger *slog.Logger) (DetectedDecision, error) {
	if status == transfer.DecisionAutoLinked {
		at := s.now()
		d.Status = transfer.DecisionAutoLinked
		d.DecidedBy = transfer.DecidedBySystem
		d.DecidedAt = &at

		err := s.storage.CommitAutoLink(ctx, d)
		if err == nil {
			return DetectedDecision{MatchDecision: d}, nil
		}
		if !errors.Is(err, transfer.ErrConflict) {
			return DetectedDecision{}, fmt.Errorf("failed to auto-link %s/%s: %w", d.FromTransactionID, d.ToTransactionID, err)
		}

		logger.Warn("auto-link conflict, downgrading to pending_review",
			"from", d.FromTransactionID,
			"to", d.ToTransactionID,
			"score", d.Score,
			"error", err,
		)
		d.Status = transfer.DecisionPendingReview
		d.DecidedBy = ""
		d.DecidedAt = nil
		if err := s.storage.SaveDecision(ctx, d); err != nil {
			return DetectedDecision{}, fmt.Errorf("failed to save downgraded decision: %w", err)
		}
		return DetectedDecision{MatchDecision: d, Conflict: true}, nil
	}

	if err := s.storage.SaveDecision(ctx, d); err != nil {
		return DetectedDecision{}, fmt.Errorf("failed to save decision: %w", err)
	}
	return DetectedDecision{MatchDecision: d}, nil
}

// exclusions collects transactions and pairs that must not be proposed again.
// Transactions reserved by active pending transfers are added in detect.
func (s *DetectionService) exclusions(ctx context.Context) (matcher.Exclusions, error) {
	open, err := s.storage.OpenDecisionTransactionIDs(ctx)
	if err != nil {
		return matcher.Exclusions{}, fmt.Errorf("failed to load open decisions: %w", err)
	}
	claims, err := s.storage.PendingClaims(ctx)
	if err != nil {
		return matcher.Exclusions{}, fmt.Errorf("failed to load pending transfer claims: %w", err)
	}
	rejected, err := s.storage.RejectedPairs(ctx)
	if err != nil {
		return matcher.Exclusions{}, fmt.Errorf("failed to load rejected pairs: %w", err)
	}

	ids := make(map[string]bool, len(open)+len(claims))
	for id := range open {
		ids[id] = true
	}
	for id := range claims {
		ids[id] = true
	}
	return matcher.Exclusions{TransactionIDs: ids, Pairs: rejected}, nil
}
