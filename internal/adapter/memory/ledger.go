// Package memory provides in-memory implementations of the persistence and
// notification ports. Used by tests and for running without external
// services; semantics mirror the postgres adapter, including the
// conditional-write guards.
package memory

import (
	"context"
	"crypto/subtle"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/attestia/gatekeep/internal/domain"
	"github.com/attestia/gatekeep/internal/domain/review"
	"github.com/attestia/gatekeep/internal/port/ledger"
)

// Ledger is an in-memory review ledger guarded by a single mutex, so every
// conditional transition is atomic with respect to concurrent callers.
type Ledger struct {
	mu       sync.Mutex
	requests map[string]*review.Request
	actions  []review.Action
}

// NewLedger creates an empty in-memory ledger.
func NewLedger() *Ledger {
	return &Ledger{requests: make(map[string]*review.Request)}
}

// Create persists a new pending request.
func (l *Ledger) Create(_ context.Context, req *review.Request) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.requests[req.ID]; ok {
		return fmt.Errorf("create review request %s: %w", req.ID, domain.ErrConflict)
	}
	cp := *req
	cp.Status = review.StatusPending
	l.requests[req.ID] = &cp
	return nil
}

// Get returns a copy of the request by id.
func (l *Ledger) Get(_ context.Context, id string) (*review.Request, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	r, ok := l.requests[id]
	if !ok {
		return nil, fmt.Errorf("get review request %s: %w", id, domain.ErrNotFound)
	}
	cp := *r
	return &cp, nil
}

// ListByStatus returns requests in the given status, most recent first.
func (l *Ledger) ListByStatus(_ context.Context, status review.Status, limit int) ([]review.Request, error) {
	if limit <= 0 || limit > 200 {
		limit = 200
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	var result []review.Request
	for _, r := range l.requests {
		if r.Status == status {
			result = append(result, *r)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// Approve transitions pending -> approved, issues a commit token, and
// returns the plaintext secret exactly once.
func (l *Ledger) Approve(_ context.Context, id, reviewerID, comment string) (string, error) {
	secret, digest, err := review.NewCommitToken()
	if err != nil {
		return "", err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	r, ok := l.requests[id]
	if !ok {
		return "", fmt.Errorf("approve review %s: %w", id, domain.ErrNotFound)
	}
	if r.Status != review.StatusPending {
		return "", fmt.Errorf("approve review %s (status %s): %w", id, r.Status, domain.ErrAlreadyResolved)
	}

	now := time.Now().UTC()
	r.Status = review.StatusApproved
	r.ResolvedAt = &now
	r.CommitTokenHash = digest
	r.CommitTokenUsed = false
	l.actions = append(l.actions, review.Action{
		ReviewID: id, ReviewerID: reviewerID, Action: "approve", Comment: comment, CreatedAt: now,
	})
	return secret, nil
}

// Reject transitions pending -> rejected.
func (l *Ledger) Reject(_ context.Context, id, reviewerID, comment string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	r, ok := l.requests[id]
	if !ok {
		return fmt.Errorf("reject review %s: %w", id, domain.ErrNotFound)
	}
	if r.Status != review.StatusPending {
		return fmt.Errorf("reject review %s (status %s): %w", id, r.Status, domain.ErrAlreadyResolved)
	}

	now := time.Now().UTC()
	r.Status = review.StatusRejected
	r.ResolvedAt = &now
	l.actions = append(l.actions, review.Action{
		ReviewID: id, ReviewerID: reviewerID, Action: "reject", Comment: comment, CreatedAt: now,
	})
	return nil
}

// VerifyForCommit checks the supplied secret against an approved request
// without mutating anything.
func (l *Ledger) VerifyForCommit(_ context.Context, id, secret string) (*ledger.Verification, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	r, ok := l.requests[id]
	switch {
	case !ok:
		return &ledger.Verification{OK: false, Reason: "Review not found"}, nil
	case r.Status != review.StatusApproved:
		return &ledger.Verification{OK: false, Reason: "Review not approved"}, nil
	case r.CommitTokenHash == "":
		return &ledger.Verification{OK: false, Reason: "No commit token issued"}, nil
	case r.CommitTokenUsed:
		return &ledger.Verification{OK: false, Reason: "Commit token already used"}, nil
	case subtle.ConstantTimeCompare([]byte(r.CommitTokenHash), []byte(review.HashToken(secret))) != 1:
		return &ledger.Verification{OK: false, Reason: "Invalid commit token"}, nil
	}

	return &ledger.Verification{
		OK:         true,
		AgentID:    r.AgentID,
		Permission: r.Permission,
		Payload:    r.Payload,
	}, nil
}

// Consume flips the token used flag under the same guard the postgres
// adapter enforces in SQL.
func (l *Ledger) Consume(_ context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	r, ok := l.requests[id]
	if !ok {
		return fmt.Errorf("consume commit token for review %s: %w", id, domain.ErrNotFound)
	}
	if r.Status != review.StatusApproved {
		return fmt.Errorf("consume commit token for review %s (status %s): %w", id, r.Status, domain.ErrNotApproved)
	}
	if r.CommitTokenUsed {
		return fmt.Errorf("consume commit token for review %s: %w", id, domain.ErrTokenUsed)
	}
	r.CommitTokenUsed = true
	return nil
}

// Actions returns a copy of all recorded reviewer actions.
func (l *Ledger) Actions() []review.Action {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]review.Action, len(l.actions))
	copy(out, l.actions)
	return out
}
