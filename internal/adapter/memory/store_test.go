package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/attestia/gatekeep/internal/domain"
	"github.com/attestia/gatekeep/internal/domain/decision"
)

func newDraft(id string) *decision.Decision {
	now := time.Now().UTC()
	return &decision.Decision{
		ID:        id,
		ProjectID: "proj-1",
		Title:     "Adopt proposal",
		Owner:     "owner-1",
		Status:    decision.StatusDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestDecisionStore_FinalizeDraft(t *testing.T) {
	ctx := context.Background()
	s := NewDecisionStore()

	if err := s.CreateDecision(ctx, newDraft("dec_1")); err != nil {
		t.Fatalf("CreateDecision: %v", err)
	}

	final, err := s.FinalizeDraft(ctx, "dec_1", "rev_1")
	if err != nil {
		t.Fatalf("FinalizeDraft: %v", err)
	}
	if final.Status != decision.StatusFinal || final.ReviewID != "rev_1" {
		t.Errorf("final = %+v", final)
	}

	if _, err := s.FinalizeDraft(ctx, "dec_1", "rev_2"); !errors.Is(err, domain.ErrConflict) {
		t.Errorf("second finalize = %v, want ErrConflict", err)
	}
	if _, err := s.FinalizeDraft(ctx, "missing", "rev_1"); !errors.Is(err, domain.ErrConflict) {
		t.Errorf("finalize missing = %v, want ErrConflict", err)
	}
}

func TestDecisionStore_FinalizeDraft_Race(t *testing.T) {
	ctx := context.Background()
	s := NewDecisionStore()

	if err := s.CreateDecision(ctx, newDraft("dec_1")); err != nil {
		t.Fatalf("CreateDecision: %v", err)
	}

	const attempts = 16
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.FinalizeDraft(ctx, "dec_1", "rev_1")
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else if !errors.Is(err, domain.ErrConflict) {
			t.Errorf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Errorf("succeeded = %d, want exactly 1", succeeded)
	}
}

func TestDecisionStore_ListByProject(t *testing.T) {
	ctx := context.Background()
	s := NewDecisionStore()

	a := newDraft("dec_a")
	b := newDraft("dec_b")
	b.ProjectID = "proj-other"
	for _, d := range []*decision.Decision{a, b} {
		if err := s.CreateDecision(ctx, d); err != nil {
			t.Fatalf("CreateDecision: %v", err)
		}
	}

	got, err := s.ListDecisionsByProject(ctx, "proj-1")
	if err != nil {
		t.Fatalf("ListDecisionsByProject: %v", err)
	}
	if len(got) != 1 || got[0].ID != "dec_a" {
		t.Errorf("decisions = %+v", got)
	}
}
