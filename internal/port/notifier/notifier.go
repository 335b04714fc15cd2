// Package notifier defines the port for out-of-band governance event
// notification (reviewer alerting, escalation monitoring).
package notifier

import (
	"context"
	"time"
)

// Kind classifies a governance notification.
type Kind string

const (
	KindReviewRequested Kind = "review.requested"
	KindReviewApproved  Kind = "review.approved"
	KindReviewRejected  Kind = "review.rejected"
	KindCommitBlocked   Kind = "commit.blocked"
	KindEscalation      Kind = "escalation"
)

// Event is one governance notification. It carries metadata only; never
// payloads or token material.
type Event struct {
	Kind     Kind      `json:"kind"`
	ReviewID string    `json:"review_id,omitempty"`
	AgentID  string    `json:"agent_id,omitempty"`
	Reason   string    `json:"reason,omitempty"`
	At       time.Time `json:"at"`
}

// Notifier publishes governance events. Publishing is best-effort: callers
// log failures and proceed; a notification failure never fails the
// governed operation itself.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}
