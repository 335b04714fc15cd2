package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/attestia/gatekeep/internal/domain"
	"github.com/attestia/gatekeep/internal/domain/audit"
	"github.com/attestia/gatekeep/internal/domain/decision"
	"github.com/attestia/gatekeep/internal/domain/review"
	"github.com/attestia/gatekeep/internal/domain/tool"
	"github.com/attestia/gatekeep/internal/port/auditlog"
	"github.com/attestia/gatekeep/internal/port/database"
	"github.com/attestia/gatekeep/internal/port/ledger"
)

// DecisionService manages the decision lifecycle. Decisions are protected
// resources: the draft -> final transition requires a matching approved
// review and every violation attempt is escalated.
type DecisionService struct {
	store     database.Store
	ledger    ledger.Ledger
	audit     auditlog.Log
	escalator *Escalator
	log       *slog.Logger
}

// NewDecisionService creates a DecisionService.
func NewDecisionService(store database.Store, l ledger.Ledger, auditLog auditlog.Log, esc *Escalator, log *slog.Logger) *DecisionService {
	return &DecisionService{store: store, ledger: l, audit: auditLog, escalator: esc, log: log}
}

// CreateDraft creates a new draft decision.
func (s *DecisionService) CreateDraft(ctx context.Context, req *decision.CreateDraftRequest) (*decision.Decision, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	d := &decision.Decision{
		ID:          decision.NewID(),
		ProjectID:   req.ProjectID,
		ClientID:    req.ClientID,
		Title:       req.Title,
		Owner:       req.Owner,
		OwnerRole:   req.OwnerRole,
		Status:      decision.StatusDraft,
		Assumptions: req.Assumptions,
		Risks:       req.Risks,
		NextSteps:   req.NextSteps,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreateDecision(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// Get retrieves a decision by id.
func (s *DecisionService) Get(ctx context.Context, id string) (*decision.Decision, error) {
	return s.store.GetDecision(ctx, id)
}

// ListByProject returns all decisions for a project, most recent first.
func (s *DecisionService) ListByProject(ctx context.Context, projectID string) ([]decision.Decision, error) {
	return s.store.ListDecisionsByProject(ctx, projectID)
}

// FinalizeFromDraft transitions a draft decision to final, gated by an
// approved review whose project scope matches the decision.
//
// The order is fixed: validate the decision state, validate the review,
// write the finalize intent audit entry, apply the conditional update,
// write the finalized audit entry. No mutation happens without a preceding
// intent record, and a failed finalized record after the commit is surfaced
// as an error without undoing the committed transition.
func (s *DecisionService) FinalizeFromDraft(ctx context.Context, tc tool.Context, decisionID, reviewID string) (*decision.Decision, error) {
	d, err := s.store.GetDecision(ctx, decisionID)
	if err != nil {
		return nil, err
	}
	if d.Status != decision.StatusDraft {
		s.escalate(ctx, tc, audit.ReasonFinalizeInvalidStatus, decisionID, map[string]any{
			"status": string(d.Status),
		})
		return nil, fmt.Errorf("finalize decision %s (status %s): %w", decisionID, d.Status, domain.ErrInvalidStatus)
	}

	rev, err := s.ledger.Get(ctx, reviewID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.escalate(ctx, tc, audit.ReasonFinalizeReviewNotFound, decisionID, map[string]any{
				"review_id": reviewID,
			})
		}
		return nil, err
	}
	if rev.Status != review.StatusApproved {
		s.escalate(ctx, tc, audit.ReasonFinalizeReviewNotApproved, decisionID, map[string]any{
			"review_id": reviewID,
			"status":    string(rev.Status),
		})
		return nil, fmt.Errorf("finalize decision %s: review %s: %w", decisionID, reviewID, domain.ErrNotApproved)
	}
	if rev.ProjectID != "" && rev.ProjectID != d.ProjectID {
		s.escalate(ctx, tc, audit.ReasonFinalizeProjectMismatch, decisionID, map[string]any{
			"review_id":        reviewID,
			"review_project":   rev.ProjectID,
			"decision_project": d.ProjectID,
		})
		return nil, fmt.Errorf("finalize decision %s: review %s belongs to project %s: %w",
			decisionID, reviewID, rev.ProjectID, domain.ErrConflict)
	}

	// Fail-closed: no mutation without a preceding audit record.
	intent := s.entry(tc, audit.ActionDecisionFinalizeIntent, d.ProjectID, map[string]any{
		"decision_id": decisionID,
		"review_id":   reviewID,
	}, nil)
	if err := s.audit.Append(ctx, intent); err != nil {
		return nil, fmt.Errorf("finalize decision %s: intent audit: %w", decisionID, err)
	}

	final, err := s.store.FinalizeDraft(ctx, decisionID, reviewID)
	if err != nil {
		if errors.Is(err, domain.ErrConflict) {
			// Lost a race or the row vanished; re-fetch to tell them apart.
			existing, getErr := s.store.GetDecision(ctx, decisionID)
			if getErr != nil {
				return nil, getErr
			}
			if existing.Status == decision.StatusFinal {
				return nil, fmt.Errorf("finalize decision %s: %w", decisionID, domain.ErrAlreadyResolved)
			}
		}
		return nil, err
	}

	finalized := s.entry(tc, audit.ActionDecisionFinalized, d.ProjectID, map[string]any{
		"decision_id": decisionID,
		"review_id":   reviewID,
	}, final)
	if err := s.audit.Append(ctx, finalized); err != nil {
		// The transition is committed; do not undo it, but never claim
		// success while the audit trail is lost.
		return nil, fmt.Errorf("finalize decision %s: finalized audit after commit: %w", decisionID, err)
	}

	s.log.Info("decision finalized", "decision_id", decisionID, "review_id", reviewID)
	return final, nil
}

func (s *DecisionService) escalate(ctx context.Context, tc tool.Context, reason, decisionID string, details map[string]any) {
	err := s.escalator.Escalate(ctx, tc.AgentID, tc.UserID, Escalation{
		Reason:  reason,
		Details: details,
		Context: EscalationContext{
			ProjectID:  tc.ProjectID,
			ClientID:   tc.ClientID,
			DecisionID: decisionID,
		},
	})
	if err != nil {
		s.log.Error("escalation write failed", "reason", reason, "decision_id", decisionID, "error", err)
	}
}

func (s *DecisionService) entry(tc tool.Context, action audit.Action, projectID string, input map[string]any, output any) *audit.Entry {
	in, _ := json.Marshal(input)
	var out json.RawMessage
	if output != nil {
		out, _ = json.Marshal(output)
	}
	if projectID == "" {
		projectID = tc.ProjectID
	}
	return &audit.Entry{
		AgentID:   tc.AgentID,
		UserID:    tc.UserID,
		ProjectID: projectID,
		ClientID:  tc.ClientID,
		Action:    action,
		Input:     in,
		Output:    out,
		CreatedAt: time.Now().UTC(),
	}
}
