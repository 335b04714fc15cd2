package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/attestia/gatekeep/internal/adapter/otel"
	"github.com/attestia/gatekeep/internal/domain/audit"
	"github.com/attestia/gatekeep/internal/port/auditlog"
	"github.com/attestia/gatekeep/internal/port/notifier"
)

// EscalationContext scopes an escalation to the resources it concerns.
type EscalationContext struct {
	ProjectID  string `json:"project_id,omitempty"`
	ClientID   string `json:"client_id,omitempty"`
	DecisionID string `json:"decision_id,omitempty"`
	ToolName   string `json:"tool_name,omitempty"`
}

// Escalation describes one detected governance violation.
type Escalation struct {
	Reason  string            `json:"reason"`
	Details map[string]any    `json:"details,omitempty"`
	Context EscalationContext `json:"context"`
}

// Escalator writes escalation audit entries. Escalations mark governance
// violations or drift attempts; the audit write is fail-closed, the
// notification is best-effort.
type Escalator struct {
	audit    auditlog.Log
	notifier notifier.Notifier
	log      *slog.Logger
	metrics  *otel.Metrics
}

// NewEscalator creates an Escalator. notifier and metrics may be nil.
func NewEscalator(auditLog auditlog.Log, n notifier.Notifier, log *slog.Logger, metrics *otel.Metrics) *Escalator {
	return &Escalator{audit: auditLog, notifier: n, log: log, metrics: metrics}
}

// Escalate records an escalation entry for the given agent and user.
func (e *Escalator) Escalate(ctx context.Context, agentID, userID string, esc Escalation) error {
	input, err := json.Marshal(esc)
	if err != nil {
		return fmt.Errorf("marshal escalation: %w", err)
	}

	now := time.Now().UTC()
	entry := &audit.Entry{
		AgentID:   agentID,
		UserID:    userID,
		ProjectID: esc.Context.ProjectID,
		ClientID:  esc.Context.ClientID,
		Action:    audit.ActionEscalation,
		Input:     input,
		Output:    json.RawMessage(`{"escalated":true}`),
		Blocked:   true,
		Reason:    esc.Reason,
		CreatedAt: now,
	}
	if err := e.audit.Append(ctx, entry); err != nil {
		return fmt.Errorf("record escalation %s: %w", esc.Reason, err)
	}

	e.log.Warn("escalation recorded", "agent_id", agentID, "reason", esc.Reason)
	if e.metrics != nil {
		e.metrics.Escalations.Add(ctx, 1)
	}
	if e.notifier != nil {
		ev := notifier.Event{Kind: notifier.KindEscalation, AgentID: agentID, Reason: esc.Reason, At: now}
		if err := e.notifier.Notify(ctx, ev); err != nil {
			e.log.Warn("escalation notify failed", "error", err)
		}
	}
	return nil
}
