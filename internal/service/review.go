package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/attestia/gatekeep/internal/domain/review"
	"github.com/attestia/gatekeep/internal/port/ledger"
	"github.com/attestia/gatekeep/internal/port/notifier"
)

// ReviewService exposes the human side of the review lifecycle: listing
// pending requests and resolving them. The conditional transitions live in
// the ledger; this service adds notification and logging around them.
type ReviewService struct {
	ledger   ledger.Ledger
	notifier notifier.Notifier
	log      *slog.Logger
}

// NewReviewService creates a ReviewService. notifier may be nil.
func NewReviewService(l ledger.Ledger, n notifier.Notifier, log *slog.Logger) *ReviewService {
	return &ReviewService{ledger: l, notifier: n, log: log}
}

// Get returns a review request by id. The commit token hash never leaves
// the ledger serialized; the Request type excludes it from JSON.
func (s *ReviewService) Get(ctx context.Context, id string) (*review.Request, error) {
	return s.ledger.Get(ctx, id)
}

// List returns review requests in the given status, most recent first.
func (s *ReviewService) List(ctx context.Context, status review.Status, limit int) ([]review.Request, error) {
	switch status {
	case review.StatusPending, review.StatusApproved, review.StatusRejected:
	default:
		return nil, fmt.Errorf("invalid review status %q", status)
	}
	return s.ledger.ListByStatus(ctx, status, limit)
}

// Approve resolves a pending request and returns the plaintext commit
// token. This is the only time the secret is ever visible; the caller must
// hand it to the requesting agent out of band.
func (s *ReviewService) Approve(ctx context.Context, id, reviewerID, comment string) (string, error) {
	secret, err := s.ledger.Approve(ctx, id, reviewerID, comment)
	if err != nil {
		return "", err
	}

	s.log.Info("review approved", "review_id", id, "reviewer_id", reviewerID)
	s.notify(ctx, notifier.Event{
		Kind: notifier.KindReviewApproved, ReviewID: id, At: time.Now().UTC(),
	})
	return secret, nil
}

// Reject resolves a pending request as rejected.
func (s *ReviewService) Reject(ctx context.Context, id, reviewerID, comment string) error {
	if err := s.ledger.Reject(ctx, id, reviewerID, comment); err != nil {
		return err
	}

	s.log.Info("review rejected", "review_id", id, "reviewer_id", reviewerID)
	s.notify(ctx, notifier.Event{
		Kind: notifier.KindReviewRejected, ReviewID: id, At: time.Now().UTC(),
	})
	return nil
}

func (s *ReviewService) notify(ctx context.Context, ev notifier.Event) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, ev); err != nil {
		s.log.Warn("review notify failed", "kind", ev.Kind, "review_id", ev.ReviewID, "error", err)
	}
}
