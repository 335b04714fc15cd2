// Package database defines the database store port for governed entities.
package database

import (
	"context"

	"github.com/attestia/gatekeep/internal/domain/decision"
)

// Store is the port interface for decision persistence. FinalizeDraft is
// the single conditional write that serializes concurrent finalize
// attempts: it must update only when the row is still in draft status.
type Store interface {
	CreateDecision(ctx context.Context, d *decision.Decision) error
	GetDecision(ctx context.Context, id string) (*decision.Decision, error)
	ListDecisionsByProject(ctx context.Context, projectID string) ([]decision.Decision, error)

	// FinalizeDraft atomically transitions id from draft to final, stamping
	// reviewID. Returns the updated decision, or domain.ErrConflict when
	// zero rows matched (caller re-fetches to distinguish "already
	// finalized" from "not found").
	FinalizeDraft(ctx context.Context, id, reviewID string) (*decision.Decision, error)
}
