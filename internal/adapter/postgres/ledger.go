package postgres

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/attestia/gatekeep/internal/domain"
	"github.com/attestia/gatekeep/internal/domain/agent"
	"github.com/attestia/gatekeep/internal/domain/review"
	"github.com/attestia/gatekeep/internal/port/ledger"
)

// Ledger implements ledger.Ledger using PostgreSQL. Status transitions and
// token consumption are single conditional UPDATEs guarded by the current
// row state; they are what serializes concurrent resolutions.
type Ledger struct {
	pool *pgxpool.Pool
}

// NewLedger creates a Ledger backed by the given connection pool.
func NewLedger(pool *pgxpool.Pool) *Ledger {
	return &Ledger{pool: pool}
}

const reviewColumns = `id, COALESCE(project_id, ''), COALESCE(client_id, ''), user_id, agent_id,
	permission, payload, status, reviewer_roles, created_at, resolved_at,
	COALESCE(commit_token_hash, ''), commit_token_used`

// Create inserts a new pending review request.
func (l *Ledger) Create(ctx context.Context, req *review.Request) error {
	const q = `INSERT INTO review_requests
		(id, project_id, client_id, user_id, agent_id, permission, payload, status, reviewer_roles, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,'pending',$8,$9)`
	_, err := l.pool.Exec(ctx, q,
		req.ID, nullIfEmpty(req.ProjectID), nullIfEmpty(req.ClientID), req.UserID,
		req.AgentID, string(req.Permission), req.Payload,
		rolesToText(req.ReviewerRoles), req.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create review request %s: %w", req.ID, err)
	}
	return nil
}

// Get retrieves a review request by ID.
func (l *Ledger) Get(ctx context.Context, id string) (*review.Request, error) {
	q := fmt.Sprintf(`SELECT %s FROM review_requests WHERE id = $1`, reviewColumns)
	r := &review.Request{}
	var roles []string
	err := l.pool.QueryRow(ctx, q, id).Scan(
		&r.ID, &r.ProjectID, &r.ClientID, &r.UserID, &r.AgentID,
		&r.Permission, &r.Payload, &r.Status, &roles, &r.CreatedAt, &r.ResolvedAt,
		&r.CommitTokenHash, &r.CommitTokenUsed,
	)
	if err != nil {
		return nil, notFoundWrap(err, "get review request %s", id)
	}
	r.ReviewerRoles = rolesFromText(roles)
	return r, nil
}

// ListByStatus returns review requests in the given status, most recent first.
func (l *Ledger) ListByStatus(ctx context.Context, status review.Status, limit int) ([]review.Request, error) {
	if limit <= 0 || limit > 200 {
		limit = 200
	}
	q := fmt.Sprintf(`SELECT %s FROM review_requests WHERE status = $1 ORDER BY created_at DESC LIMIT $2`, reviewColumns)
	rows, err := l.pool.Query(ctx, q, string(status), limit)
	if err != nil {
		return nil, fmt.Errorf("list review requests: %w", err)
	}
	defer rows.Close()

	var result []review.Request
	for rows.Next() {
		var r review.Request
		var roles []string
		if err := rows.Scan(
			&r.ID, &r.ProjectID, &r.ClientID, &r.UserID, &r.AgentID,
			&r.Permission, &r.Payload, &r.Status, &roles, &r.CreatedAt, &r.ResolvedAt,
			&r.CommitTokenHash, &r.CommitTokenUsed,
		); err != nil {
			return nil, fmt.Errorf("scan review request: %w", err)
		}
		r.ReviewerRoles = rolesFromText(roles)
		result = append(result, r)
	}
	return result, rows.Err()
}

// Approve transitions pending -> approved in one transaction with the
// reviewer-action record, issues a fresh commit token, and returns the
// plaintext secret exactly once. The secret is never stored.
func (l *Ledger) Approve(ctx context.Context, id, reviewerID, comment string) (string, error) {
	secret, digest, err := review.NewCommitToken()
	if err != nil {
		return "", err
	}

	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("approve review %s: begin: %w", id, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx,
		`UPDATE review_requests
		 SET status='approved', resolved_at=now(),
		     commit_token_hash=$2, commit_token_used=FALSE, commit_token_issued_at=now()
		 WHERE id=$1 AND status='pending'`,
		id, digest,
	)
	if err != nil {
		return "", fmt.Errorf("approve review %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return "", l.resolveFailure(ctx, id, "approve")
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO review_actions (review_id, reviewer_id, action, comment) VALUES ($1,$2,'approve',$3)`,
		id, reviewerID, nullIfEmpty(comment),
	)
	if err != nil {
		return "", fmt.Errorf("approve review %s: record action: %w", id, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("approve review %s: commit: %w", id, err)
	}
	return secret, nil
}

// Reject transitions pending -> rejected in one transaction with the
// reviewer-action record.
func (l *Ledger) Reject(ctx context.Context, id, reviewerID, comment string) error {
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("reject review %s: begin: %w", id, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx,
		`UPDATE review_requests SET status='rejected', resolved_at=now() WHERE id=$1 AND status='pending'`,
		id,
	)
	if err != nil {
		return fmt.Errorf("reject review %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return l.resolveFailure(ctx, id, "reject")
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO review_actions (review_id, reviewer_id, action, comment) VALUES ($1,$2,'reject',$3)`,
		id, reviewerID, nullIfEmpty(comment),
	)
	if err != nil {
		return fmt.Errorf("reject review %s: record action: %w", id, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("reject review %s: commit: %w", id, err)
	}
	return nil
}

// resolveFailure distinguishes "already resolved" from "not found" after a
// conditional resolution matched zero rows.
func (l *Ledger) resolveFailure(ctx context.Context, id, op string) error {
	var status string
	err := l.pool.QueryRow(ctx, `SELECT status FROM review_requests WHERE id = $1`, id).Scan(&status)
	if err != nil {
		return notFoundWrap(err, "%s review %s", op, id)
	}
	return fmt.Errorf("%s review %s (status %s): %w", op, id, status, domain.ErrAlreadyResolved)
}

// VerifyForCommit checks the supplied secret against an approved request.
// Read-only by contract: a failed or successful verification leaves the
// row untouched so callers may verify before committing.
func (l *Ledger) VerifyForCommit(ctx context.Context, id, secret string) (*ledger.Verification, error) {
	var (
		agentID    string
		permission string
		payload    []byte
		status     string
		tokenHash  string
		tokenUsed  bool
	)
	err := l.pool.QueryRow(ctx,
		`SELECT agent_id, permission, payload, status, COALESCE(commit_token_hash, ''), commit_token_used
		 FROM review_requests WHERE id = $1`,
		id,
	).Scan(&agentID, &permission, &payload, &status, &tokenHash, &tokenUsed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &ledger.Verification{OK: false, Reason: "Review not found"}, nil
		}
		return nil, fmt.Errorf("verify review %s: %w", id, err)
	}

	switch {
	case status != string(review.StatusApproved):
		return &ledger.Verification{OK: false, Reason: "Review not approved"}, nil
	case tokenHash == "":
		return &ledger.Verification{OK: false, Reason: "No commit token issued"}, nil
	case tokenUsed:
		return &ledger.Verification{OK: false, Reason: "Commit token already used"}, nil
	case subtle.ConstantTimeCompare([]byte(tokenHash), []byte(review.HashToken(secret))) != 1:
		return &ledger.Verification{OK: false, Reason: "Invalid commit token"}, nil
	}

	return &ledger.Verification{
		OK:         true,
		AgentID:    agentID,
		Permission: agent.Permission(permission),
		Payload:    payload,
	}, nil
}

// Consume flips commit_token_used false -> true as a single conditional
// write. A zero-row match is diagnosed and reported loudly; this is the
// replay-prevention boundary.
func (l *Ledger) Consume(ctx context.Context, id string) error {
	tag, err := l.pool.Exec(ctx,
		`UPDATE review_requests SET commit_token_used = TRUE
		 WHERE id = $1 AND status = 'approved' AND commit_token_used = FALSE`,
		id,
	)
	if err != nil {
		return fmt.Errorf("consume commit token for review %s: %w", id, err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var status string
	var used bool
	err = l.pool.QueryRow(ctx,
		`SELECT status, commit_token_used FROM review_requests WHERE id = $1`, id,
	).Scan(&status, &used)
	if err != nil {
		return notFoundWrap(err, "consume commit token for review %s", id)
	}
	if used {
		return fmt.Errorf("consume commit token for review %s: %w", id, domain.ErrTokenUsed)
	}
	return fmt.Errorf("consume commit token for review %s (status %s): %w", id, status, domain.ErrNotApproved)
}

// rolesToText converts reviewer roles to a text array for storage.
func rolesToText(roles []agent.ReviewerRole) []string {
	out := make([]string, 0, len(roles))
	for _, r := range roles {
		out = append(out, string(r))
	}
	return out
}

// rolesFromText converts a stored text array back to reviewer roles.
func rolesFromText(roles []string) []agent.ReviewerRole {
	out := make([]agent.ReviewerRole, 0, len(roles))
	for _, r := range roles {
		out = append(out, agent.ReviewerRole(r))
	}
	return out
}
