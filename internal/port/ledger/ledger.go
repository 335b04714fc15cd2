// Package ledger defines the port interface for the durable review ledger.
package ledger

import (
	"context"
	"encoding/json"

	"github.com/attestia/gatekeep/internal/domain/agent"
	"github.com/attestia/gatekeep/internal/domain/review"
)

// Verification is the read-only result of checking a commit token against
// an approved review. When OK is false, Reason explains why in the fixed
// priority order: not found, not approved, no token issued, token used,
// digest mismatch.
type Verification struct {
	OK         bool             `json:"ok"`
	Reason     string           `json:"reason,omitempty"`
	AgentID    string           `json:"agent_id,omitempty"`
	Permission agent.Permission `json:"permission,omitempty"`
	Payload    json.RawMessage  `json:"payload,omitempty"`
}

// Ledger is the port interface for review request persistence. Conditional
// updates (approve, reject, consume) must be single atomic writes guarded
// by the current status, never read-then-write pairs; they are the sole
// concurrency-control mechanism for conflicting transitions.
type Ledger interface {
	// Create persists a new pending request. The id is caller-supplied;
	// the ledger does not deduplicate by payload.
	Create(ctx context.Context, req *review.Request) error

	// Get returns a request by id.
	Get(ctx context.Context, id string) (*review.Request, error)

	// ListByStatus returns requests in the given status, most recent first.
	ListByStatus(ctx context.Context, status review.Status, limit int) ([]review.Request, error)

	// Approve transitions pending -> approved, records the reviewer action
	// atomically with the transition, and returns the plaintext commit
	// token exactly once. Fails with domain.ErrAlreadyResolved (or
	// domain.ErrNotFound) if the request was not pending.
	Approve(ctx context.Context, id, reviewerID, comment string) (string, error)

	// Reject transitions pending -> rejected, recording the reviewer
	// action atomically. Same failure contract as Approve.
	Reject(ctx context.Context, id, reviewerID, comment string) error

	// VerifyForCommit checks the supplied secret against an approved
	// request. Read-only: verification never mutates state, so a caller
	// may verify multiple times before consuming.
	VerifyForCommit(ctx context.Context, id, secret string) (*Verification, error)

	// Consume flips commit_token_used false -> true, guarded by
	// status = approved AND commit_token_used = false. Fails loudly with
	// a distinct error (ErrTokenUsed, ErrNotApproved, ErrNotFound) when
	// the guard does not match; this is the replay-prevention boundary.
	Consume(ctx context.Context, id string) error
}
