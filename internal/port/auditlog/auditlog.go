// Package auditlog defines the port interface for the append-only audit log.
package auditlog

import (
	"context"

	"github.com/attestia/gatekeep/internal/domain/audit"
)

// Log is the append-only audit sink. Append must be durable before
// returning success; operations that log as a precondition fail closed
// when Append fails. Entries are never updated or deleted.
type Log interface {
	Append(ctx context.Context, entry *audit.Entry) error
}
