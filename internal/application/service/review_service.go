package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/eshaffer321/transfer-reconciler/internal/domain/transfer"
	"github.com/eshaffer321/transfer-reconciler/internal/infrastructure/storage"
)

// ReviewService finalises pending_review decisions on a human's say.
type ReviewService struct {
	storage storage.Repository
	logger  *slog.Logger
	now     func() time.Time
}

// NewReviewService creates a new review service.
func NewReviewService(store storage.Repository, logger *slog.Logger) *ReviewService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReviewService{
		storage: store,
		logger:  logger,
		now:     time.Now,
	}
}

// Get returns one decision.
func (s *ReviewService) Get(ctx context.Context, id string) (*transfer.MatchDecision, error) {
	return s.storage.GetDecision(ctx, id)
}

// List returns decisions matching the filter.
func (s *ReviewService) List(ctx context.Context, filter storage.DecisionFilter) (*storage.DecisionListResult, error) {
	if filter.Status != "" && !transfer.DecisionStatus(filter.Status).Valid() {
		return nil, transfer.NewValidationError("status", "unknown status "+filter.Status)
	}
	return s.storage.ListDecisions(ctx, filter)
}

// Confirm links the decision's transactions and marks it confirmed.
//
// Confirming an already linked decision returns it unchanged. If either
// transaction was linked elsewhere since detection, a *transfer.ConflictError
// is returned and the decision stays pending_review.
func (s *ReviewService) Confirm(ctx context.Context, id, user string) (*transfer.MatchDecision, error) {
	return s.decide(ctx, id, user, transfer.DecisionConfirmed)
}

// Reject marks the decision rejected. Both transactions stay unlinked and
// remain eligible for detection with other counterparts.
func (s *ReviewService) Reject(ctx context.Context, id, user string) (*transfer.MatchDecision, error) {
	return s.decide(ctx, id, user, transfer.DecisionRejected)
}

func (s *ReviewService) decide(ctx context.Context, id, user string, next transfer.DecisionStatus) (*transfer.MatchDecision, error) {
	user = strings.TrimSpace(user)
	if user == "" {
		return nil, transfer.NewValidationError("user", "is required")
	}

	d, err := s.storage.GetDecision(ctx, id)
	if err != nil {
		return nil, err
	}
	if done, err := settled(d, next); done {
		if err != nil {
			return nil, err
		}
		return d, nil
	}

	at := s.now()
	d.Status = next
	d.DecidedBy = user
	d.DecidedAt = &at

	if next == transfer.DecisionConfirmed {
		err = s.storage.ConfirmDecision(ctx, d)
	} else {
		err = s.storage.RejectDecision(ctx, d)
	}
	if err != nil {
		if !errors.Is(err, transfer.ErrConflict) {
			return nil, err
		}
		// A concurrent reviewer may have closed it first
		current, gerr := s.storage.GetDecision(ctx, id)
		if gerr == nil && current.Status != transfer.DecisionPendingReview {
			if done, serr := settled(current, next); done && serr == nil {
				return current, nil
			}
		}
		s.logger.Warn("review decision conflict", "id", id, "action", next, "error", err)
		return nil, err
	}

	s.logger.Info("review decision recorded",
		"id", id,
		"status", d.Status,
		"user", user,
		"from", d.FromTransactionID,
		"to", d.ToTransactionID,
	)
	return d, nil
}

// settled reports whether d is already closed. Reaching the requested
// outcome is a no-op, any other closed state is incompatible.
func settled(d *transfer.MatchDecision, next transfer.DecisionStatus) (bool, error) {
	if d.Status.CanTransition(next) {
		return false, nil
	}
	if d.Status == next || (next == transfer.DecisionConfirmed && d.Status == transfer.DecisionAutoLinked) {
		return true, nil
	}
	return true, transfer.NewNotFoundError("decision", d.ID, "already "+string(d.Status))
}
