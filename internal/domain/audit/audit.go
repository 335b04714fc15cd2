// Package audit defines the append-only action log entry and the audit
// event vocabulary. Entries are written by the audit log port and never
// read back to make decisions; the log is a sink, not a cache.
package audit

import (
	"encoding/json"
	"time"
)

// Action is the kind of governance event being recorded.
type Action string

const (
	ActionAgentRun            Action = "agent.run"
	ActionBlockedInvalidToken Action = "agent.blocked.invalid_commit_token"
	ActionBlockedMismatch     Action = "agent.blocked.commit_mismatch"
	ActionBlockedTamper       Action = "agent.blocked.payload_tamper"
	ActionBlockedReview       Action = "agent.blocked.review_required"
	ActionExecuted            Action = "agent.executed"
	ActionExecutedDraftOnly   Action = "agent.executed.draft_only"
	ActionExecutedCommit      Action = "agent.executed.commit"
	ActionEscalation          Action = "escalation"

	ActionDecisionDraftCreated   Action = "decision.draft.created"
	ActionDecisionFinalizeIntent Action = "decision.finalize.intent"
	ActionDecisionFinalized      Action = "decision.finalized"
)

// Escalation reasons raised by the protected-resource finalize pattern.
const (
	ReasonFinalizeInvalidStatus     = "finalize_invalid_status"
	ReasonFinalizeReviewNotFound    = "finalize_review_not_found"
	ReasonFinalizeReviewNotApproved = "finalize_review_not_approved"
	ReasonFinalizeProjectMismatch   = "finalize_project_mismatch"
)

// Entry is one immutable audit record. Input and Output are opaque JSON;
// token secrets must never appear in either.
type Entry struct {
	ID        string          `json:"id,omitempty"`
	AgentID   string          `json:"agent_id"`
	UserID    string          `json:"user_id"`
	ProjectID string          `json:"project_id,omitempty"`
	ClientID  string          `json:"client_id,omitempty"`
	Action    Action          `json:"action"`
	Input     json.RawMessage `json:"input,omitempty"`
	Output    json.RawMessage `json:"output,omitempty"`
	Blocked   bool            `json:"blocked"`
	Reason    string          `json:"reason,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}
