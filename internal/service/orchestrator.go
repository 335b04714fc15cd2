package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/attestia/gatekeep/internal/adapter/otel"
	"github.com/attestia/gatekeep/internal/canonjson"
	"github.com/attestia/gatekeep/internal/domain"
	"github.com/attestia/gatekeep/internal/domain/agent"
	"github.com/attestia/gatekeep/internal/domain/audit"
	"github.com/attestia/gatekeep/internal/domain/policy"
	"github.com/attestia/gatekeep/internal/domain/review"
	"github.com/attestia/gatekeep/internal/domain/tool"
	"github.com/attestia/gatekeep/internal/port/auditlog"
	"github.com/attestia/gatekeep/internal/port/ledger"
	"github.com/attestia/gatekeep/internal/port/notifier"
)

// ReviewCommit resumes a previously approved action: the review id plus the
// single-use plaintext commit token handed out at approval.
type ReviewCommit struct {
	ReviewID    string `json:"review_id"`
	CommitToken string `json:"commit_token"`
}

// IntendedAction is the action an agent asks to perform: one top-level
// permission covering an ordered batch of tool calls.
type IntendedAction struct {
	Permission   agent.Permission `json:"permission"`
	ToolCalls    []tool.Call      `json:"tool_calls"`
	ReviewCommit *ReviewCommit    `json:"review_commit,omitempty"`
}

// RunInput is one inbound agent action request.
type RunInput struct {
	AgentID        string          `json:"agent_id"`
	UserMessage    string          `json:"user_message,omitempty"`
	IntendedAction *IntendedAction `json:"intended_action,omitempty"`
}

// RunStatus is the terminal outcome class of a run.
type RunStatus string

const (
	RunOK      RunStatus = "ok"
	RunBlocked RunStatus = "blocked"
)

// RunResult reports the outcome of one run. Blocked results carry the
// reason and, for review gates, the id of the pending review to commit
// against later.
type RunResult struct {
	Status   RunStatus         `json:"status"`
	Mode     string            `json:"mode,omitempty"`
	Reason   string            `json:"reason,omitempty"`
	ReviewID string            `json:"review_id,omitempty"`
	Results  []tool.CallResult `json:"results,omitempty"`
	Message  string            `json:"message,omitempty"`
}

// actionPayload is the canonical tamper-evidence payload. Approval binds to
// the digest of this exact structure; commit-time recomputation must
// reproduce it. Field names are part of the wire contract.
type actionPayload struct {
	Permission agent.Permission `json:"permission"`
	ToolCalls  []tool.Call      `json:"toolCalls"`
}

// Orchestrator is the governance state machine for one agent action
// request: permission enforcement, review gating, commit-token
// verification, tamper detection, dispatch, and the audit discipline
// around all of it.
type Orchestrator struct {
	registry   *agent.Registry
	ledger     ledger.Ledger
	audit      auditlog.Log
	dispatcher *Dispatcher
	notifier   notifier.Notifier
	log        *slog.Logger
	metrics    *otel.Metrics
}

// NewOrchestrator creates an Orchestrator. notifier and metrics may be nil.
func NewOrchestrator(
	registry *agent.Registry,
	l ledger.Ledger,
	auditLog auditlog.Log,
	dispatcher *Dispatcher,
	n notifier.Notifier,
	log *slog.Logger,
	metrics *otel.Metrics,
) *Orchestrator {
	return &Orchestrator{
		registry:   registry,
		ledger:     l,
		audit:      auditLog,
		dispatcher: dispatcher,
		notifier:   n,
		log:        log,
		metrics:    metrics,
	}
}

// Run evaluates one agent action request to a terminal state. Every
// terminal state is logged before returning; audit write failures fail the
// run (fail-closed).
func (o *Orchestrator) Run(ctx context.Context, tc tool.Context, in RunInput) (*RunResult, error) {
	profile, err := o.registry.GetByID(in.AgentID)
	if err != nil {
		return nil, err
	}
	tc.AgentID = profile.ID

	ctx, span := otel.StartRunSpan(ctx, profile.ID, tc.UserID, tc.ProjectID)
	defer span.End()
	start := time.Now()
	if o.metrics != nil {
		o.metrics.RunsStarted.Add(ctx, 1)
		defer func() {
			o.metrics.RunDuration.Record(ctx, time.Since(start).Seconds())
		}()
	}

	// Intent is logged unconditionally, independent of outcome.
	if err := o.append(ctx, tc, audit.ActionAgentRun, asJSON(in), json.RawMessage(`{"note":"received"}`), false, ""); err != nil {
		return nil, err
	}

	if in.IntendedAction == nil {
		return &RunResult{Status: RunOK, Message: "No action specified. Provide an intended action."}, nil
	}
	intended := in.IntendedAction

	if err := policy.EnforcePermission(profile, intended.Permission); err != nil {
		return nil, err
	}

	if intended.ReviewCommit != nil {
		return o.runCommit(ctx, profile, tc, intended)
	}
	return o.runDirect(ctx, profile, tc, intended)
}

// runCommit resumes a previously approved action. Verification, identity
// cross-check, tamper check, and token consumption all precede the first
// side effect.
func (o *Orchestrator) runCommit(ctx context.Context, profile *agent.Profile, tc tool.Context, intended *IntendedAction) (*RunResult, error) {
	reviewID := intended.ReviewCommit.ReviewID

	v, err := o.ledger.VerifyForCommit(ctx, reviewID, intended.ReviewCommit.CommitToken)
	if err != nil {
		return nil, err
	}
	if !v.OK {
		return o.blocked(ctx, tc, audit.ActionBlockedInvalidToken, intended,
			map[string]any{"review_id": reviewID}, v.Reason)
	}

	if v.AgentID != profile.ID || v.Permission != intended.Permission {
		return o.blocked(ctx, tc, audit.ActionBlockedMismatch, intended,
			map[string]any{
				"expected": map[string]any{"agent_id": v.AgentID, "permission": v.Permission},
				"got":      map[string]any{"agent_id": profile.ID, "permission": intended.Permission},
			},
			"Commit mismatch (agent or permission)")
	}

	storedDigest, err := canonjson.Digest(v.Payload)
	if err != nil {
		return nil, fmt.Errorf("digest stored payload for review %s: %w", reviewID, err)
	}
	currentDigest, err := canonjson.Digest(actionPayload{Permission: intended.Permission, ToolCalls: intended.ToolCalls})
	if err != nil {
		return nil, fmt.Errorf("digest current payload for review %s: %w", reviewID, err)
	}
	if storedDigest != currentDigest {
		return o.blocked(ctx, tc, audit.ActionBlockedTamper, intended,
			map[string]any{"review_id": reviewID}, "Payload changed since approval")
	}

	// Single-use enforcement happens before any side effect. Losing the
	// consume race to a concurrent commit is reported as a normal block.
	if err := o.ledger.Consume(ctx, reviewID); err != nil {
		if errors.Is(err, domain.ErrTokenUsed) {
			return o.blocked(ctx, tc, audit.ActionBlockedInvalidToken, intended,
				map[string]any{"review_id": reviewID}, "Commit token already used")
		}
		return nil, err
	}

	results, err := o.executeBatch(ctx, profile, tc, intended.ToolCalls, reviewID)
	if err != nil {
		return nil, err
	}

	out := asJSON(map[string]any{"review_id": reviewID, "results": results})
	if err := o.append(ctx, tc, audit.ActionExecutedCommit, asJSON(intended), out, false, ""); err != nil {
		return nil, err
	}
	if o.metrics != nil {
		o.metrics.RunsExecuted.Add(ctx, 1)
	}
	return &RunResult{Status: RunOK, Mode: "commit", ReviewID: reviewID, Results: results}, nil
}

// runDirect evaluates the review gate and either executes immediately or
// queues a review request for later commit.
func (o *Orchestrator) runDirect(ctx context.Context, profile *agent.Profile, tc tool.Context, intended *IntendedAction) (*RunResult, error) {
	gate := policy.EvaluateReviewGate(profile, intended.Permission)

	if !gate.OK {
		payload, err := canonjson.Marshal(actionPayload{Permission: intended.Permission, ToolCalls: intended.ToolCalls})
		if err != nil {
			return nil, fmt.Errorf("canonicalize review payload: %w", err)
		}
		req := &review.Request{
			ID:            review.NewID(),
			ProjectID:     tc.ProjectID,
			ClientID:      tc.ClientID,
			UserID:        tc.UserID,
			AgentID:       profile.ID,
			Permission:    intended.Permission,
			Payload:       payload,
			ReviewerRoles: profile.ReviewPolicy.ReviewerRoles,
			CreatedAt:     time.Now().UTC(),
		}
		if err := o.ledger.Create(ctx, req); err != nil {
			return nil, err
		}

		if err := o.append(ctx, tc, audit.ActionBlockedReview, asJSON(intended),
			asJSON(map[string]any{"review_id": req.ID}), true, gate.Reason); err != nil {
			return nil, err
		}
		if o.metrics != nil {
			o.metrics.RunsBlocked.Add(ctx, 1)
			o.metrics.ReviewsCreated.Add(ctx, 1)
		}
		o.notify(ctx, notifier.Event{
			Kind: notifier.KindReviewRequested, ReviewID: req.ID, AgentID: profile.ID,
			Reason: gate.Reason, At: time.Now().UTC(),
		})
		return &RunResult{Status: RunBlocked, Reason: gate.Reason, ReviewID: req.ID}, nil
	}

	if gate.Mode == policy.GateDraftOnly {
		tc.DraftOnly = true
	}

	results, err := o.executeBatch(ctx, profile, tc, intended.ToolCalls, "")
	if err != nil {
		return nil, err
	}

	action := audit.ActionExecuted
	if gate.Mode == policy.GateDraftOnly {
		action = audit.ActionExecutedDraftOnly
	}
	if err := o.append(ctx, tc, action, asJSON(intended), asJSON(results), false, ""); err != nil {
		return nil, err
	}
	if o.metrics != nil {
		o.metrics.RunsExecuted.Add(ctx, 1)
	}
	return &RunResult{Status: RunOK, Mode: string(gate.Mode), Results: results}, nil
}

// executeBatch runs tool calls strictly in order, short-circuiting on the
// first failed call. An empty batch is a success with no results. On the
// commit path, the verified review id is injected into any finalize call so
// the resource transition re-validates approval itself.
func (o *Orchestrator) executeBatch(ctx context.Context, profile *agent.Profile, tc tool.Context, calls []tool.Call, commitReviewID string) ([]tool.CallResult, error) {
	results := make([]tool.CallResult, 0, len(calls))
	for _, call := range calls {
		dispatched := call
		if commitReviewID != "" && call.Tool == tool.RefDecisionsFinalize {
			dispatched.Input = injectReviewID(call.Input, commitReviewID)
		}

		res, err := o.dispatcher.Execute(ctx, profile, tc, dispatched)
		if err != nil {
			return nil, err
		}
		results = append(results, tool.CallResult{Tool: call.Tool, Result: res})

		if res.OK && commitReviewID == "" && call.Tool == tool.RefDecisionsCreate {
			if err := o.append(ctx, tc, audit.ActionDecisionDraftCreated, call.Input, res.Output, false, ""); err != nil {
				return nil, err
			}
		}

		if !res.OK {
			break
		}
	}
	return results, nil
}

// blocked logs one terminal blocked entry and returns the blocked result.
func (o *Orchestrator) blocked(ctx context.Context, tc tool.Context, action audit.Action, intended *IntendedAction, output map[string]any, reason string) (*RunResult, error) {
	if err := o.append(ctx, tc, action, asJSON(intended), asJSON(output), true, reason); err != nil {
		return nil, err
	}
	if o.metrics != nil {
		o.metrics.RunsBlocked.Add(ctx, 1)
	}
	o.notify(ctx, notifier.Event{
		Kind: notifier.KindCommitBlocked, AgentID: tc.AgentID, Reason: reason, At: time.Now().UTC(),
	})
	return &RunResult{Status: RunBlocked, Reason: reason}, nil
}

func (o *Orchestrator) append(ctx context.Context, tc tool.Context, action audit.Action, input, output json.RawMessage, blockedFlag bool, reason string) error {
	entry := &audit.Entry{
		AgentID:   tc.AgentID,
		UserID:    tc.UserID,
		ProjectID: tc.ProjectID,
		ClientID:  tc.ClientID,
		Action:    action,
		Input:     input,
		Output:    output,
		Blocked:   blockedFlag,
		Reason:    reason,
		CreatedAt: time.Now().UTC(),
	}
	if err := o.audit.Append(ctx, entry); err != nil {
		return fmt.Errorf("audit %s: %w", action, err)
	}
	return nil
}

func (o *Orchestrator) notify(ctx context.Context, ev notifier.Event) {
	if o.notifier == nil {
		return
	}
	if err := o.notifier.Notify(ctx, ev); err != nil {
		o.log.Warn("governance notify failed", "kind", ev.Kind, "error", err)
	}
}

// injectReviewID merges the verified review id into a finalize call's input
// object. Non-object inputs are replaced with a fresh object.
func injectReviewID(input json.RawMessage, reviewID string) json.RawMessage {
	m := map[string]any{}
	if len(input) > 0 {
		if err := json.Unmarshal(input, &m); err != nil || m == nil {
			m = map[string]any{}
		}
	}
	m["reviewId"] = reviewID
	out, err := json.Marshal(m)
	if err != nil {
		return input
	}
	return out
}

// asJSON marshals v for an audit field. Audit serialization failures
// degrade to null rather than suppressing the entry.
func asJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage(`null`)
	}
	return b
}
