package memory

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/attestia/gatekeep/internal/domain"
	"github.com/attestia/gatekeep/internal/domain/agent"
	"github.com/attestia/gatekeep/internal/domain/review"
)

func newRequest(id string) *review.Request {
	return &review.Request{
		ID:         id,
		UserID:     "user-1",
		AgentID:    "agent-1",
		Permission: agent.PermDecisionCreate,
		Payload:    json.RawMessage(`{"permission":"decision.create","toolCalls":[]}`),
		CreatedAt:  time.Now().UTC(),
	}
}

func TestLedger_ApproveReturnsSecretOnce(t *testing.T) {
	ctx := context.Background()
	l := NewLedger()

	if err := l.Create(ctx, newRequest("rev_1")); err != nil {
		t.Fatalf("Create: %v", err)
	}

	secret, err := l.Approve(ctx, "rev_1", "partner-1", "lgtm")
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if secret == "" {
		t.Fatal("empty secret")
	}

	got, err := l.Get(ctx, "rev_1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != review.StatusApproved {
		t.Errorf("Status = %q", got.Status)
	}
	if got.CommitTokenHash != review.HashToken(secret) {
		t.Error("stored hash does not match secret digest")
	}
	if got.CommitTokenHash == secret {
		t.Error("plaintext secret was stored")
	}

	// Already resolved: a second approval must fail definitely.
	if _, err := l.Approve(ctx, "rev_1", "partner-2", ""); !errors.Is(err, domain.ErrAlreadyResolved) {
		t.Errorf("second Approve = %v, want ErrAlreadyResolved", err)
	}

	// The reviewer action record is written with the resolution.
	actions := l.Actions()
	if len(actions) != 1 || actions[0].ReviewID != "rev_1" || actions[0].ReviewerID != "partner-1" {
		t.Errorf("actions = %+v", actions)
	}
}

func TestLedger_RejectOnlyPending(t *testing.T) {
	ctx := context.Background()
	l := NewLedger()

	if err := l.Reject(ctx, "missing", "partner-1", ""); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Reject(missing) = %v, want ErrNotFound", err)
	}

	if err := l.Create(ctx, newRequest("rev_1")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := l.Reject(ctx, "rev_1", "partner-1", "no"); err != nil {
		t.Fatalf("Reject: %v", err)
	}
	if err := l.Reject(ctx, "rev_1", "partner-1", ""); !errors.Is(err, domain.ErrAlreadyResolved) {
		t.Errorf("second Reject = %v, want ErrAlreadyResolved", err)
	}
}

func TestLedger_VerifyForCommit_ReasonPriority(t *testing.T) {
	ctx := context.Background()
	l := NewLedger()

	v, err := l.VerifyForCommit(ctx, "missing", "whatever")
	if err != nil {
		t.Fatalf("VerifyForCommit: %v", err)
	}
	if v.OK || v.Reason != "Review not found" {
		t.Errorf("verification = %+v", v)
	}

	if err := l.Create(ctx, newRequest("rev_1")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	v, _ = l.VerifyForCommit(ctx, "rev_1", "whatever")
	if v.OK || v.Reason != "Review not approved" {
		t.Errorf("pending verification = %+v", v)
	}

	secret, err := l.Approve(ctx, "rev_1", "partner-1", "")
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}

	v, _ = l.VerifyForCommit(ctx, "rev_1", "wrong-secret")
	if v.OK || v.Reason != "Invalid commit token" {
		t.Errorf("wrong secret verification = %+v", v)
	}

	v, _ = l.VerifyForCommit(ctx, "rev_1", secret)
	if !v.OK {
		t.Fatalf("valid verification blocked: %+v", v)
	}
	if v.AgentID != "agent-1" || v.Permission != agent.PermDecisionCreate {
		t.Errorf("verification identity = %+v", v)
	}

	// Verification is read-only: the same secret still verifies.
	v, _ = l.VerifyForCommit(ctx, "rev_1", secret)
	if !v.OK {
		t.Errorf("repeat verification blocked: %+v", v)
	}

	if err := l.Consume(ctx, "rev_1"); err != nil {
		t.Fatalf("Consume: %v", err)
	}
	v, _ = l.VerifyForCommit(ctx, "rev_1", secret)
	if v.OK || v.Reason != "Commit token already used" {
		t.Errorf("used token verification = %+v", v)
	}
}

func TestLedger_ConsumeExactlyOnce(t *testing.T) {
	ctx := context.Background()
	l := NewLedger()

	if err := l.Create(ctx, newRequest("rev_1")); err != nil {
		t.Fatalf("Create: %v", err)
	}

	// Pending requests have no consumable token.
	if err := l.Consume(ctx, "rev_1"); !errors.Is(err, domain.ErrNotApproved) {
		t.Errorf("Consume(pending) = %v, want ErrNotApproved", err)
	}

	if _, err := l.Approve(ctx, "rev_1", "partner-1", ""); err != nil {
		t.Fatalf("Approve: %v", err)
	}

	if err := l.Consume(ctx, "rev_1"); err != nil {
		t.Fatalf("first Consume: %v", err)
	}
	if err := l.Consume(ctx, "rev_1"); !errors.Is(err, domain.ErrTokenUsed) {
		t.Errorf("second Consume = %v, want ErrTokenUsed", err)
	}

	if err := l.Consume(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Consume(missing) = %v, want ErrNotFound", err)
	}
}

func TestLedger_ListByStatus(t *testing.T) {
	ctx := context.Background()
	l := NewLedger()

	for _, id := range []string{"rev_1", "rev_2", "rev_3"} {
		if err := l.Create(ctx, newRequest(id)); err != nil {
			t.Fatalf("Create %s: %v", id, err)
		}
	}
	if _, err := l.Approve(ctx, "rev_2", "partner-1", ""); err != nil {
		t.Fatalf("Approve: %v", err)
	}

	pending, err := l.ListByStatus(ctx, review.StatusPending, 0)
	if err != nil {
		t.Fatalf("ListByStatus: %v", err)
	}
	if len(pending) != 2 {
		t.Errorf("pending count = %d, want 2", len(pending))
	}

	approved, err := l.ListByStatus(ctx, review.StatusApproved, 0)
	if err != nil {
		t.Fatalf("ListByStatus: %v", err)
	}
	if len(approved) != 1 || approved[0].ID != "rev_2" {
		t.Errorf("approved = %+v", approved)
	}
}
