package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/attestia/gatekeep/internal/domain"
	"github.com/attestia/gatekeep/internal/domain/decision"
)

// DecisionStore implements database.Store using PostgreSQL.
type DecisionStore struct {
	pool *pgxpool.Pool
}

// NewDecisionStore creates a DecisionStore backed by the given connection pool.
func NewDecisionStore(pool *pgxpool.Pool) *DecisionStore {
	return &DecisionStore{pool: pool}
}

const decisionColumns = `id, project_id, COALESCE(client_id, ''), title, owner, COALESCE(owner_role, ''),
	status, assumptions, risks, next_steps, COALESCE(review_id, ''), created_at, updated_at`

// CreateDecision inserts a new draft decision.
func (s *DecisionStore) CreateDecision(ctx context.Context, d *decision.Decision) error {
	const q = `INSERT INTO decisions
		(id, project_id, client_id, title, owner, owner_role, status,
		 assumptions, risks, next_steps, review_id, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`
	_, err := s.pool.Exec(ctx, q,
		d.ID, d.ProjectID, nullIfEmpty(d.ClientID), d.Title, d.Owner, nullIfEmpty(d.OwnerRole),
		string(d.Status), orEmpty(d.Assumptions), orEmpty(d.Risks), orEmpty(d.NextSteps),
		nullIfEmpty(d.ReviewID), d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create decision %s: %w", d.ID, err)
	}
	return nil
}

// GetDecision retrieves a decision by ID.
func (s *DecisionStore) GetDecision(ctx context.Context, id string) (*decision.Decision, error) {
	q := fmt.Sprintf(`SELECT %s FROM decisions WHERE id = $1`, decisionColumns)
	d := &decision.Decision{}
	err := s.pool.QueryRow(ctx, q, id).Scan(
		&d.ID, &d.ProjectID, &d.ClientID, &d.Title, &d.Owner, &d.OwnerRole,
		&d.Status, &d.Assumptions, &d.Risks, &d.NextSteps, &d.ReviewID,
		&d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, notFoundWrap(err, "get decision %s", id)
	}
	return d, nil
}

// ListDecisionsByProject returns all decisions for a project, most recent first.
func (s *DecisionStore) ListDecisionsByProject(ctx context.Context, projectID string) ([]decision.Decision, error) {
	q := fmt.Sprintf(`SELECT %s FROM decisions WHERE project_id = $1 ORDER BY created_at DESC`, decisionColumns)
	rows, err := s.pool.Query(ctx, q, projectID)
	if err != nil {
		return nil, fmt.Errorf("list decisions for project %s: %w", projectID, err)
	}
	defer rows.Close()

	var result []decision.Decision
	for rows.Next() {
		var d decision.Decision
		if err := rows.Scan(
			&d.ID, &d.ProjectID, &d.ClientID, &d.Title, &d.Owner, &d.OwnerRole,
			&d.Status, &d.Assumptions, &d.Risks, &d.NextSteps, &d.ReviewID,
			&d.CreatedAt, &d.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		result = append(result, d)
	}
	return result, rows.Err()
}

// FinalizeDraft transitions a decision from draft to final in a single
// conditional UPDATE. Zero rows affected returns domain.ErrConflict so the
// caller can re-fetch and distinguish a benign lost race from a missing row.
func (s *DecisionStore) FinalizeDraft(ctx context.Context, id, reviewID string) (*decision.Decision, error) {
	q := fmt.Sprintf(`UPDATE decisions
		SET status = 'final', review_id = $2, updated_at = now()
		WHERE id = $1 AND status = 'draft'
		RETURNING %s`, decisionColumns)

	d := &decision.Decision{}
	err := s.pool.QueryRow(ctx, q, id, reviewID).Scan(
		&d.ID, &d.ProjectID, &d.ClientID, &d.Title, &d.Owner, &d.OwnerRole,
		&d.Status, &d.Assumptions, &d.Risks, &d.NextSteps, &d.ReviewID,
		&d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("finalize decision %s: %w", id, domain.ErrConflict)
		}
		return nil, fmt.Errorf("finalize decision %s: %w", id, err)
	}
	return d, nil
}
