// Package agent defines the immutable AgentProfile model: what an agent
// is allowed to do and under what review regime. Profiles are loaded once
// at startup, validated, and never mutated afterwards.
package agent

import (
	"fmt"

	"github.com/attestia/gatekeep/internal/domain/tool"
)

// Permission is a named capability an agent may be authorized to use.
type Permission string

const (
	PermKnowledgeRead   Permission = "knowledge.read"
	PermKnowledgeSearch Permission = "knowledge.search"
	PermProjectRead     Permission = "project.read"
	PermProjectUpdate   Permission = "project.update"
	PermDecisionCreate  Permission = "decision.create"
	PermDecisionRead    Permission = "decision.read"
	PermLogWrite        Permission = "log.write"
	PermReviewRequest   Permission = "review.request"
	PermReviewApprove   Permission = "review.approve"
	PermReviewReject    Permission = "review.reject"
)

// Permissions returns the closed set of known permissions.
func Permissions() []Permission {
	return []Permission{
		PermKnowledgeRead, PermKnowledgeSearch,
		PermProjectRead, PermProjectUpdate,
		PermDecisionCreate, PermDecisionRead,
		PermLogWrite,
		PermReviewRequest, PermReviewApprove, PermReviewReject,
	}
}

// IsValid reports whether p is a known permission.
func (p Permission) IsValid() bool {
	for _, known := range Permissions() {
		if p == known {
			return true
		}
	}
	return false
}

// Role is the capability class of an agent.
type Role string

const (
	RoleKnowledge     Role = "knowledge"
	RoleProject       Role = "project"
	RoleDocumentation Role = "documentation"
	RoleJunior        Role = "junior"
	RoleGovernance    Role = "governance"
)

// ReviewerRole identifies who may resolve a review request.
type ReviewerRole string

const (
	ReviewerPartner ReviewerRole = "partner"
	ReviewerSenior  ReviewerRole = "senior"
	ReviewerAdmin   ReviewerRole = "admin"
)

// ReviewMode controls the baseline review regime of a profile.
type ReviewMode string

const (
	ReviewModeNone      ReviewMode = "none"
	ReviewModeDraftOnly ReviewMode = "draft_only"
	ReviewModeRequired  ReviewMode = "required"
)

// ReviewPolicy declares when an agent's actions need human approval.
type ReviewPolicy struct {
	Mode             ReviewMode     `json:"mode" yaml:"mode"`
	RequiresHumanFor []Permission   `json:"requires_human_for" yaml:"requires_human_for"`
	ReviewerRoles    []ReviewerRole `json:"reviewer_roles" yaml:"reviewer_roles"`
	Notes            string         `json:"notes,omitempty" yaml:"notes,omitempty"`
}

// EscalationRule is declarative metadata consumed outside the core;
// carried through unchanged.
type EscalationRule struct {
	When          string   `json:"when" yaml:"when"`
	Action        string   `json:"action" yaml:"action"`
	MinConfidence *float64 `json:"min_confidence,omitempty" yaml:"min_confidence,omitempty"`
}

// MemoryScope is declarative metadata consumed outside the core;
// carried through unchanged.
type MemoryScope struct {
	Scope         string `json:"scope" yaml:"scope"`
	RetentionDays int    `json:"retention_days" yaml:"retention_days"`
	PII           string `json:"pii" yaml:"pii"`
}

// Profile is the static description of one agent. Immutable after load.
type Profile struct {
	ID              string           `json:"id" yaml:"id"`
	Name            string           `json:"name" yaml:"name"`
	Role            Role             `json:"role" yaml:"role"`
	Objectives      []string         `json:"objectives" yaml:"objectives"`
	Permissions     []Permission     `json:"permissions" yaml:"permissions"`
	Tools           []tool.Ref       `json:"tools" yaml:"tools"`
	EscalationRules []EscalationRule `json:"escalation_rules" yaml:"escalation_rules"`
	MemoryScopes    []MemoryScope    `json:"memory_scopes" yaml:"memory_scopes"`
	ReviewPolicy    ReviewPolicy     `json:"review_policy" yaml:"review_policy"`
}

// HasTool reports whether the profile's tool allowlist contains ref.
func (p *Profile) HasTool(ref tool.Ref) bool {
	for _, t := range p.Tools {
		if t == ref {
			return true
		}
	}
	return false
}

// HasPermission reports whether the profile holds the given permission.
func (p *Profile) HasPermission(perm Permission) bool {
	for _, held := range p.Permissions {
		if held == perm {
			return true
		}
	}
	return false
}

// Validate checks that a Profile is well-formed. Permissions and tools are
// closed sets; an unvalidated profile must never enter the registry.
func (p *Profile) Validate() error {
	if len(p.ID) < 3 {
		return fmt.Errorf("profile: id must be at least 3 characters")
	}
	if p.Name == "" {
		return fmt.Errorf("profile %s: name is required", p.ID)
	}
	if !isValidRole(p.Role) {
		return fmt.Errorf("profile %s: invalid role %q", p.ID, p.Role)
	}
	if len(p.Permissions) == 0 {
		return fmt.Errorf("profile %s: at least one permission is required", p.ID)
	}
	for _, perm := range p.Permissions {
		if !perm.IsValid() {
			return fmt.Errorf("profile %s: unknown permission %q", p.ID, perm)
		}
	}
	if len(p.Tools) == 0 {
		return fmt.Errorf("profile %s: at least one tool is required", p.ID)
	}
	for _, t := range p.Tools {
		if !t.IsValid() {
			return fmt.Errorf("profile %s: unknown tool %q", p.ID, t)
		}
	}
	if err := p.ReviewPolicy.Validate(); err != nil {
		return fmt.Errorf("profile %s: review policy: %w", p.ID, err)
	}
	return nil
}

// Validate checks that a ReviewPolicy is well-formed.
func (rp *ReviewPolicy) Validate() error {
	switch rp.Mode {
	case ReviewModeNone, ReviewModeDraftOnly, ReviewModeRequired:
	default:
		return fmt.Errorf("invalid mode %q", rp.Mode)
	}
	for _, perm := range rp.RequiresHumanFor {
		if !perm.IsValid() {
			return fmt.Errorf("unknown permission %q in requires_human_for", perm)
		}
	}
	for _, r := range rp.ReviewerRoles {
		switch r {
		case ReviewerPartner, ReviewerSenior, ReviewerAdmin:
		default:
			return fmt.Errorf("invalid reviewer role %q", r)
		}
	}
	return nil
}

func isValidRole(r Role) bool {
	switch r {
	case RoleKnowledge, RoleProject, RoleDocumentation, RoleJunior, RoleGovernance:
		return true
	}
	return false
}
