// Package review defines the ReviewRequest entity: a queued agent action
// awaiting human approval, and the single-use commit token that binds an
// approval to the exact payload that was reviewed.
package review

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/attestia/gatekeep/internal/domain/agent"
)

// Status is the lifecycle state of a review request. A request transitions
// pending -> approved or pending -> rejected exactly once.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Request is one queued review of an intended agent action. Payload is the
// canonical serialization of the full intended action; its digest is what
// commit-time tamper detection compares against.
//
// CommitTokenHash holds only the SHA-256 digest of the commit secret. The
// plaintext secret is returned to the approving caller exactly once and is
// never persisted or logged.
type Request struct {
	ID              string               `json:"id"`
	ProjectID       string               `json:"project_id,omitempty"`
	ClientID        string               `json:"client_id,omitempty"`
	UserID          string               `json:"user_id"`
	AgentID         string               `json:"agent_id"`
	Permission      agent.Permission     `json:"permission"`
	Payload         json.RawMessage      `json:"payload"`
	Status          Status               `json:"status"`
	ReviewerRoles   []agent.ReviewerRole `json:"reviewer_roles"`
	CreatedAt       time.Time            `json:"created_at"`
	ResolvedAt      *time.Time           `json:"resolved_at,omitempty"`
	CommitTokenHash string               `json:"-"`
	CommitTokenUsed bool                 `json:"commit_token_used"`
}

// Action records a reviewer resolving a request. Written atomically with
// the status transition.
type Action struct {
	ReviewID   string    `json:"review_id"`
	ReviewerID string    `json:"reviewer_id"`
	Action     string    `json:"action"` // "approve" | "reject"
	Comment    string    `json:"comment,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewID returns a fresh review request id.
func NewID() string {
	return "rev_" + uuid.NewString()
}

// NewCommitToken generates a high-entropy single-use secret and its
// SHA-256 digest. Only the digest may be stored.
func NewCommitToken() (secret, digest string, err error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", "", fmt.Errorf("generate commit token: %w", err)
	}
	secret = hex.EncodeToString(b)
	return secret, HashToken(secret), nil
}

// HashToken returns the hex SHA-256 digest of a commit token secret.
func HashToken(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}
