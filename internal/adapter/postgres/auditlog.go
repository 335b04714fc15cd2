package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/attestia/gatekeep/internal/domain/audit"
)

// AuditLog implements auditlog.Log using PostgreSQL (append-only).
// Rows in action_logs are never updated or deleted.
type AuditLog struct {
	pool *pgxpool.Pool
}

// NewAuditLog creates an AuditLog backed by the given connection pool.
func NewAuditLog(pool *pgxpool.Pool) *AuditLog {
	return &AuditLog{pool: pool}
}

// Append inserts a new entry into the action_logs table. The write must be
// durable before returning; fail-closed callers abort when it errors.
func (a *AuditLog) Append(ctx context.Context, entry *audit.Entry) error {
	_, err := a.pool.Exec(ctx,
		`INSERT INTO action_logs
		 (project_id, client_id, user_id, agent_id, action, input, output, blocked, reason, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		nullIfEmpty(entry.ProjectID), nullIfEmpty(entry.ClientID), entry.UserID, entry.AgentID,
		string(entry.Action), entry.Input, entry.Output, entry.Blocked, nullIfEmpty(entry.Reason),
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append audit entry %s: %w", entry.Action, err)
	}
	return nil
}
