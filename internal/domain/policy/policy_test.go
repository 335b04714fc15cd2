package policy

import (
	"errors"
	"testing"

	"github.com/attestia/gatekeep/internal/domain"
	"github.com/attestia/gatekeep/internal/domain/agent"
	"github.com/attestia/gatekeep/internal/domain/tool"
)

func profileWith(mode agent.ReviewMode, humanFor ...agent.Permission) *agent.Profile {
	return &agent.Profile{
		ID:          "test-agent",
		Name:        "Test Agent",
		Role:        agent.RoleJunior,
		Permissions: agent.Permissions(),
		Tools:       tool.Refs(),
		ReviewPolicy: agent.ReviewPolicy{
			Mode:             mode,
			RequiresHumanFor: humanFor,
		},
	}
}

func TestEnforcePermission(t *testing.T) {
	p := &agent.Profile{
		ID:          "limited",
		Permissions: []agent.Permission{agent.PermProjectRead},
	}

	if err := EnforcePermission(p, agent.PermProjectRead); err != nil {
		t.Errorf("held permission denied: %v", err)
	}

	err := EnforcePermission(p, agent.PermDecisionCreate)
	if !errors.Is(err, domain.ErrPermissionDenied) {
		t.Errorf("err = %v, want ErrPermissionDenied", err)
	}
}

func TestEvaluateReviewGate_ModeNone_AlwaysAllows(t *testing.T) {
	p := profileWith(agent.ReviewModeNone)
	for _, perm := range agent.Permissions() {
		got := EvaluateReviewGate(p, perm)
		if !got.OK || got.Mode != GateAllow {
			t.Errorf("EvaluateReviewGate(none, %s) = %+v, want allow", perm, got)
		}
	}
}

func TestEvaluateReviewGate_ModeRequired(t *testing.T) {
	p := profileWith(agent.ReviewModeRequired, agent.PermDecisionCreate, agent.PermProjectUpdate)

	tests := []struct {
		perm     agent.Permission
		wantOK   bool
		wantWhat string
	}{
		{agent.PermDecisionCreate, false, "Human review required for: decision.create"},
		{agent.PermProjectUpdate, false, "Human review required for: project.update"},
		{agent.PermKnowledgeSearch, true, ""},
		{agent.PermLogWrite, true, ""},
	}
	for _, tt := range tests {
		t.Run(string(tt.perm), func(t *testing.T) {
			got := EvaluateReviewGate(p, tt.perm)
			if got.OK != tt.wantOK {
				t.Fatalf("OK = %v, want %v", got.OK, tt.wantOK)
			}
			if !tt.wantOK && got.Reason != tt.wantWhat {
				t.Errorf("Reason = %q, want %q", got.Reason, tt.wantWhat)
			}
		})
	}
}

func TestEvaluateReviewGate_ModeDraftOnly(t *testing.T) {
	p := profileWith(agent.ReviewModeDraftOnly)
	got := EvaluateReviewGate(p, agent.PermProjectUpdate)
	if !got.OK || got.Mode != GateDraftOnly {
		t.Errorf("EvaluateReviewGate(draft_only) = %+v, want draft_only allow", got)
	}
}

func TestEvaluateReviewGate_UnknownModeFailsClosed(t *testing.T) {
	p := profileWith(agent.ReviewMode("surprise"))
	got := EvaluateReviewGate(p, agent.PermProjectRead)
	if got.OK {
		t.Errorf("unknown mode allowed: %+v", got)
	}
}

func TestEvaluateReviewGate_IsPure(t *testing.T) {
	p := profileWith(agent.ReviewModeRequired, agent.PermDecisionCreate)
	first := EvaluateReviewGate(p, agent.PermDecisionCreate)
	for i := 0; i < 10; i++ {
		if got := EvaluateReviewGate(p, agent.PermDecisionCreate); got != first {
			t.Fatalf("call %d returned %+v, first returned %+v", i, got, first)
		}
	}
}

func TestPermissionFor_CoversAllTools(t *testing.T) {
	for _, ref := range tool.Refs() {
		perm, err := PermissionFor(ref)
		if err != nil {
			t.Errorf("PermissionFor(%s): %v", ref, err)
		}
		if !perm.IsValid() {
			t.Errorf("PermissionFor(%s) = %q, not a known permission", ref, perm)
		}
	}
}

func TestPermissionFor_UnknownTool(t *testing.T) {
	if _, err := PermissionFor(tool.Ref("tool.nope")); err == nil {
		t.Error("expected error for unknown tool")
	}
}
