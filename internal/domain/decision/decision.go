// Package decision defines the decision entity, a protected resource with
// a draft -> final lifecycle. Finalization requires a matching approved
// review and is applied as a single conditional update.
package decision

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a decision.
type Status string

const (
	StatusDraft Status = "draft"
	StatusFinal Status = "final"
)

// Decision records a governed project decision. ReviewID is set exactly
// once, at finalization, and references the approved review that gated it.
type Decision struct {
	ID          string    `json:"id"`
	ProjectID   string    `json:"project_id"`
	ClientID    string    `json:"client_id,omitempty"`
	Title       string    `json:"title"`
	Owner       string    `json:"owner"`
	OwnerRole   string    `json:"owner_role,omitempty"`
	Status      Status    `json:"status"`
	Assumptions []string  `json:"assumptions"`
	Risks       []string  `json:"risks"`
	NextSteps   []string  `json:"next_steps"`
	ReviewID    string    `json:"review_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CreateDraftRequest holds the fields for creating a new draft decision.
type CreateDraftRequest struct {
	ProjectID   string   `json:"project_id"`
	ClientID    string   `json:"client_id,omitempty"`
	Title       string   `json:"title"`
	Owner       string   `json:"owner"`
	OwnerRole   string   `json:"owner_role,omitempty"`
	Assumptions []string `json:"assumptions,omitempty"`
	Risks       []string `json:"risks,omitempty"`
	NextSteps   []string `json:"next_steps,omitempty"`
}

// Validate checks the create request for correctness.
func (r *CreateDraftRequest) Validate() error {
	if r.ProjectID == "" {
		return fmt.Errorf("decision: project_id is required")
	}
	if r.Title == "" {
		return fmt.Errorf("decision: title is required")
	}
	if r.Owner == "" {
		return fmt.Errorf("decision: owner is required")
	}
	return nil
}

// NewID returns a fresh decision id.
func NewID() string {
	return "dec_" + uuid.NewString()
}
