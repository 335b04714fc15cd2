package agent

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/attestia/gatekeep/internal/domain"
	"github.com/attestia/gatekeep/internal/domain/tool"
)

func validProfile() Profile {
	return Profile{
		ID:          "test-agent",
		Name:        "Test Agent",
		Role:        RoleJunior,
		Permissions: []Permission{PermDecisionCreate, PermLogWrite},
		Tools:       []tool.Ref{tool.RefDecisionsCreate, tool.RefLogsAppend},
		ReviewPolicy: ReviewPolicy{
			Mode:             ReviewModeRequired,
			RequiresHumanFor: []Permission{PermDecisionCreate},
			ReviewerRoles:    []ReviewerRole{ReviewerPartner},
		},
	}
}

func TestProfileValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Profile)
		wantErr bool
	}{
		{"valid", func(*Profile) {}, false},
		{"short id", func(p *Profile) { p.ID = "ab" }, true},
		{"missing name", func(p *Profile) { p.Name = "" }, true},
		{"invalid role", func(p *Profile) { p.Role = "wizard" }, true},
		{"no permissions", func(p *Profile) { p.Permissions = nil }, true},
		{"unknown permission", func(p *Profile) { p.Permissions = []Permission{"root.everything"} }, true},
		{"no tools", func(p *Profile) { p.Tools = nil }, true},
		{"unknown tool", func(p *Profile) { p.Tools = []tool.Ref{"tool.shell.exec"} }, true},
		{"invalid review mode", func(p *Profile) { p.ReviewPolicy.Mode = "sometimes" }, true},
		{"unknown human-for permission", func(p *Profile) {
			p.ReviewPolicy.RequiresHumanFor = []Permission{"nope"}
		}, true},
		{"invalid reviewer role", func(p *Profile) {
			p.ReviewPolicy.ReviewerRoles = []ReviewerRole{"intern"}
		}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validProfile()
			tt.mutate(&p)
			err := p.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewRegistry(t *testing.T) {
	t.Run("duplicate ids rejected", func(t *testing.T) {
		a, b := validProfile(), validProfile()
		if _, err := NewRegistry([]Profile{a, b}); err == nil {
			t.Error("expected error for duplicate profile id")
		}
	})

	t.Run("invalid profile rejected", func(t *testing.T) {
		p := validProfile()
		p.Name = ""
		if _, err := NewRegistry([]Profile{p}); err == nil {
			t.Error("expected error for invalid profile")
		}
	})

	t.Run("lookup", func(t *testing.T) {
		reg, err := NewRegistry([]Profile{validProfile()})
		if err != nil {
			t.Fatalf("NewRegistry: %v", err)
		}

		got, err := reg.GetByID("test-agent")
		if err != nil {
			t.Fatalf("GetByID: %v", err)
		}
		if got.Name != "Test Agent" {
			t.Errorf("Name = %q", got.Name)
		}

		if _, err := reg.GetByID("ghost"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("GetByID(ghost) = %v, want ErrNotFound", err)
		}
	})
}

func TestLoadFromDirectory(t *testing.T) {
	t.Run("missing directory is an error", func(t *testing.T) {
		if _, err := LoadFromDirectory(filepath.Join(t.TempDir(), "nope")); err == nil {
			t.Error("expected error for missing directory")
		}
	})

	t.Run("loads and validates yaml profiles", func(t *testing.T) {
		dir := t.TempDir()
		doc := `
id: yaml-agent
name: YAML Agent
role: knowledge
permissions:
  - knowledge.search
tools:
  - tool.knowledge.search
review_policy:
  mode: none
`
		if err := os.WriteFile(filepath.Join(dir, "agent.yaml"), []byte(doc), 0o600); err != nil {
			t.Fatalf("write profile: %v", err)
		}
		// Non-YAML files are skipped, not parsed.
		if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("# not yaml"), 0o600); err != nil {
			t.Fatalf("write readme: %v", err)
		}

		reg, err := LoadFromDirectory(dir)
		if err != nil {
			t.Fatalf("LoadFromDirectory: %v", err)
		}
		p, err := reg.GetByID("yaml-agent")
		if err != nil {
			t.Fatalf("GetByID: %v", err)
		}
		if p.ReviewPolicy.Mode != ReviewModeNone {
			t.Errorf("Mode = %q", p.ReviewPolicy.Mode)
		}
	})

	t.Run("invalid profile fails the whole load", func(t *testing.T) {
		dir := t.TempDir()
		doc := `
id: bad
name: Bad
role: knowledge
permissions: []
tools: []
review_policy:
  mode: none
`
		if err := os.WriteFile(filepath.Join(dir, "bad.yml"), []byte(doc), 0o600); err != nil {
			t.Fatalf("write profile: %v", err)
		}
		if _, err := LoadFromDirectory(dir); err == nil {
			t.Error("expected error for invalid profile")
		}
	})
}
