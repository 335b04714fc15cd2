package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/attestia/gatekeep/internal/domain"
	"github.com/attestia/gatekeep/internal/domain/decision"
)

// DecisionStore is an in-memory decision store. FinalizeDraft performs the
// check-and-set under the mutex, matching the postgres conditional UPDATE.
type DecisionStore struct {
	mu        sync.Mutex
	decisions map[string]*decision.Decision
}

// NewDecisionStore creates an empty in-memory decision store.
func NewDecisionStore() *DecisionStore {
	return &DecisionStore{decisions: make(map[string]*decision.Decision)}
}

// CreateDecision inserts a new decision.
func (s *DecisionStore) CreateDecision(_ context.Context, d *decision.Decision) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.decisions[d.ID]; ok {
		return fmt.Errorf("create decision %s: %w", d.ID, domain.ErrConflict)
	}
	cp := *d
	s.decisions[d.ID] = &cp
	return nil
}

// GetDecision retrieves a copy of a decision by ID.
func (s *DecisionStore) GetDecision(_ context.Context, id string) (*decision.Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.decisions[id]
	if !ok {
		return nil, fmt.Errorf("get decision %s: %w", id, domain.ErrNotFound)
	}
	cp := *d
	return &cp, nil
}

// ListDecisionsByProject returns decisions for a project, most recent first.
func (s *DecisionStore) ListDecisionsByProject(_ context.Context, projectID string) ([]decision.Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []decision.Decision
	for _, d := range s.decisions {
		if d.ProjectID == projectID {
			result = append(result, *d)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

// FinalizeDraft transitions draft -> final if and only if the decision is
// still in draft status when the lock is held.
func (s *DecisionStore) FinalizeDraft(_ context.Context, id, reviewID string) (*decision.Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.decisions[id]
	if !ok || d.Status != decision.StatusDraft {
		return nil, fmt.Errorf("finalize decision %s: %w", id, domain.ErrConflict)
	}

	d.Status = decision.StatusFinal
	d.ReviewID = reviewID
	d.UpdatedAt = time.Now().UTC()
	cp := *d
	return &cp, nil
}
