package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/attestia/gatekeep/internal/domain"
	"github.com/attestia/gatekeep/internal/domain/decision"
	"github.com/attestia/gatekeep/internal/domain/tool"
	"github.com/attestia/gatekeep/internal/port/toolhandler"
)

// RegisterBuiltinHandlers registers the built-in tool set. Decision and
// review handlers are backed by their services; knowledge, workflow, and
// docs handlers are stubs whose real backends live outside this service.
func RegisterBuiltinHandlers(reg *toolhandler.Registry, decisions *DecisionService, reviews *ReviewService, log *slog.Logger) error {
	handlers := map[tool.Ref]toolhandler.Handler{
		tool.RefKnowledgeSearch: toolhandler.HandlerFunc(func(_ context.Context, _ tool.Context, input json.RawMessage) (tool.Result, error) {
			return okResult(map[string]any{"hits": []any{}, "query": input})
		}),
		tool.RefKnowledgeGetSource: toolhandler.HandlerFunc(func(_ context.Context, _ tool.Context, input json.RawMessage) (tool.Result, error) {
			return okResult(map[string]any{"source": nil, "id": input})
		}),
		tool.RefWorkflowGetPhase: toolhandler.HandlerFunc(func(_ context.Context, _ tool.Context, _ json.RawMessage) (tool.Result, error) {
			return okResult(map[string]any{"phase": "analysis"})
		}),
		tool.RefWorkflowValidate: toolhandler.HandlerFunc(func(_ context.Context, _ tool.Context, input json.RawMessage) (tool.Result, error) {
			return okResult(map[string]any{"valid": false, "missing": []string{"stakeholder_map"}, "input": input})
		}),
		tool.RefDocsCreateDraft: toolhandler.HandlerFunc(func(_ context.Context, _ tool.Context, input json.RawMessage) (tool.Result, error) {
			return okResult(map[string]any{"draft_id": "draft_" + uuid.NewString(), "input": input})
		}),
		tool.RefDocsUpdateDraft: toolhandler.HandlerFunc(func(_ context.Context, _ tool.Context, input json.RawMessage) (tool.Result, error) {
			return okResult(map[string]any{"updated": true, "input": input})
		}),
		tool.RefLogsAppend: toolhandler.HandlerFunc(func(_ context.Context, tc tool.Context, input json.RawMessage) (tool.Result, error) {
			log.Info("agent log entry", "agent_id", tc.AgentID, "user_id", tc.UserID, "entry", string(input))
			return okResult(map[string]any{"logged": true})
		}),
		tool.RefDecisionsCreate:   decisionCreateHandler(decisions),
		tool.RefDecisionsFinalize: decisionFinalizeHandler(decisions),
		tool.RefReviewsRequest: toolhandler.HandlerFunc(func(_ context.Context, _ tool.Context, input json.RawMessage) (tool.Result, error) {
			return okResult(map[string]any{"requested": true, "input": input})
		}),
		tool.RefReviewsStatus: reviewStatusHandler(reviews),
	}

	for ref, h := range handlers {
		if err := reg.Register(ref, h); err != nil {
			return err
		}
	}
	return nil
}

// decisionCreateInput mirrors the finalize/create tool wire contract.
type decisionCreateInput struct {
	ProjectID   string   `json:"projectId"`
	ClientID    string   `json:"clientId"`
	Title       string   `json:"title"`
	Owner       string   `json:"owner"`
	OwnerRole   string   `json:"ownerRole"`
	Assumptions []string `json:"assumptions"`
	Risks       []string `json:"risks"`
	NextSteps   []string `json:"nextSteps"`
}

func decisionCreateHandler(decisions *DecisionService) toolhandler.Handler {
	return toolhandler.HandlerFunc(func(ctx context.Context, tc tool.Context, input json.RawMessage) (tool.Result, error) {
		var in decisionCreateInput
		if len(input) > 0 {
			if err := json.Unmarshal(input, &in); err != nil {
				return tool.Result{OK: false, Error: fmt.Sprintf("invalid input: %v", err)}, nil
			}
		}
		if in.ProjectID == "" {
			in.ProjectID = tc.ProjectID
		}
		if in.ClientID == "" {
			in.ClientID = tc.ClientID
		}
		if in.ProjectID == "" || in.Title == "" || in.Owner == "" {
			return tool.Result{OK: false, Error: "projectId, title, and owner are required"}, nil
		}

		d, err := decisions.CreateDraft(ctx, &decision.CreateDraftRequest{
			ProjectID:   in.ProjectID,
			ClientID:    in.ClientID,
			Title:       in.Title,
			Owner:       in.Owner,
			OwnerRole:   in.OwnerRole,
			Assumptions: in.Assumptions,
			Risks:       in.Risks,
			NextSteps:   in.NextSteps,
		})
		if err != nil {
			return tool.Result{}, err
		}
		return okResult(d)
	})
}

func decisionFinalizeHandler(decisions *DecisionService) toolhandler.Handler {
	return toolhandler.HandlerFunc(func(ctx context.Context, tc tool.Context, input json.RawMessage) (tool.Result, error) {
		if tc.DraftOnly {
			return tool.Result{OK: false, Error: "finalize is not permitted in draft-only mode"}, nil
		}

		var in struct {
			DraftID  string `json:"draftId"`
			ReviewID string `json:"reviewId"`
		}
		if len(input) > 0 {
			if err := json.Unmarshal(input, &in); err != nil {
				return tool.Result{OK: false, Error: fmt.Sprintf("invalid input: %v", err)}, nil
			}
		}
		if in.DraftID == "" || in.ReviewID == "" {
			return tool.Result{OK: false, Error: "draftId and reviewId are required to finalize a decision"}, nil
		}

		d, err := decisions.FinalizeFromDraft(ctx, tc, in.DraftID, in.ReviewID)
		if err != nil {
			// Governance violations surface through the result contract;
			// they are already escalated by the decision service.
			if isGovernanceFailure(err) {
				return tool.Result{OK: false, Error: err.Error()}, nil
			}
			return tool.Result{}, err
		}
		return okResult(d)
	})
}

func reviewStatusHandler(reviews *ReviewService) toolhandler.Handler {
	return toolhandler.HandlerFunc(func(ctx context.Context, _ tool.Context, input json.RawMessage) (tool.Result, error) {
		var in struct {
			ReviewID string `json:"reviewId"`
		}
		if len(input) > 0 {
			if err := json.Unmarshal(input, &in); err != nil {
				return tool.Result{OK: false, Error: fmt.Sprintf("invalid input: %v", err)}, nil
			}
		}
		if in.ReviewID == "" {
			return tool.Result{OK: false, Error: "reviewId is required"}, nil
		}

		req, err := reviews.Get(ctx, in.ReviewID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return tool.Result{OK: false, Error: "Review not found"}, nil
			}
			return tool.Result{}, err
		}
		return okResult(map[string]any{"review_id": req.ID, "status": req.Status})
	})
}

func isGovernanceFailure(err error) bool {
	return errors.Is(err, domain.ErrInvalidStatus) ||
		errors.Is(err, domain.ErrNotApproved) ||
		errors.Is(err, domain.ErrAlreadyResolved) ||
		errors.Is(err, domain.ErrConflict) ||
		errors.Is(err, domain.ErrNotFound)
}

func okResult(v any) (tool.Result, error) {
	out, err := json.Marshal(v)
	if err != nil {
		return tool.Result{}, fmt.Errorf("marshal tool output: %w", err)
	}
	return tool.Result{OK: true, Output: out}, nil
}
