// Package policy implements the permission enforcer and review gate.
// Both are pure decision functions over an immutable profile snapshot:
// same inputs, same outputs, no side effects.
package policy

import (
	"fmt"

	"github.com/attestia/gatekeep/internal/domain"
	"github.com/attestia/gatekeep/internal/domain/agent"
	"github.com/attestia/gatekeep/internal/domain/tool"
)

// GateMode labels how an allowed action may execute.
type GateMode string

const (
	GateAllow     GateMode = "allow"
	GateDraftOnly GateMode = "draft_only"
)

// GateResult is the outcome of evaluating the review gate for one
// permission. When OK is false the action must go through human review
// before it can run; Reason names the permission that triggered it.
type GateResult struct {
	OK     bool
	Mode   GateMode
	Reason string
}

// HasPermission reports whether the profile holds perm.
func HasPermission(p *agent.Profile, perm agent.Permission) bool {
	return p.HasPermission(perm)
}

// EnforcePermission returns domain.ErrPermissionDenied if the profile does
// not hold perm. Denial is fatal to the current request, never a soft block.
func EnforcePermission(p *agent.Profile, perm agent.Permission) error {
	if !p.HasPermission(perm) {
		return fmt.Errorf("agent %s lacks permission %s: %w", p.ID, perm, domain.ErrPermissionDenied)
	}
	return nil
}

// EvaluateReviewGate decides whether an action under the given permission
// may execute now, may execute draft-only, or requires human review.
//
//   - mode none: allow unconditionally.
//   - mode draft_only: allow under reduced capability; the draft-only label
//     travels with the tool context, handlers restrict side effects.
//   - mode required: allow unless the permission is in requires_human_for.
func EvaluateReviewGate(p *agent.Profile, perm agent.Permission) GateResult {
	rp := p.ReviewPolicy

	switch rp.Mode {
	case agent.ReviewModeNone:
		return GateResult{OK: true, Mode: GateAllow}
	case agent.ReviewModeDraftOnly:
		return GateResult{OK: true, Mode: GateDraftOnly}
	case agent.ReviewModeRequired:
		for _, human := range rp.RequiresHumanFor {
			if human == perm {
				return GateResult{
					OK:     false,
					Reason: fmt.Sprintf("Human review required for: %s", perm),
				}
			}
		}
		return GateResult{OK: true, Mode: GateAllow}
	default:
		// Profiles are validated at load time; an unknown mode here means
		// the registry was bypassed. Fail closed.
		return GateResult{
			OK:     false,
			Reason: fmt.Sprintf("Unknown review mode %q", rp.Mode),
		}
	}
}

// toolPermissions maps every tool to the permission it requires. The
// dispatcher re-checks this map on each call regardless of what the caller
// already validated.
var toolPermissions = map[tool.Ref]agent.Permission{
	tool.RefKnowledgeSearch:    agent.PermKnowledgeSearch,
	tool.RefKnowledgeGetSource: agent.PermKnowledgeRead,
	tool.RefWorkflowGetPhase:   agent.PermProjectRead,
	tool.RefWorkflowValidate:   agent.PermProjectRead,
	tool.RefDocsCreateDraft:    agent.PermProjectUpdate,
	tool.RefDocsUpdateDraft:    agent.PermProjectUpdate,
	tool.RefDecisionsCreate:    agent.PermDecisionCreate,
	tool.RefDecisionsFinalize:  agent.PermDecisionCreate,
	tool.RefLogsAppend:         agent.PermLogWrite,
	tool.RefReviewsRequest:     agent.PermReviewRequest,
	tool.RefReviewsStatus:      agent.PermReviewRequest,
}

// PermissionFor resolves the permission required to invoke ref.
// Unknown tools are a configuration fault, surfaced immediately.
func PermissionFor(ref tool.Ref) (agent.Permission, error) {
	perm, ok := toolPermissions[ref]
	if !ok {
		return "", fmt.Errorf("no permission mapping for tool %q", ref)
	}
	return perm, nil
}
