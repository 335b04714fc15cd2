package memory

import (
	"context"
	"sync"

	"github.com/attestia/gatekeep/internal/domain/audit"
)

// AuditLog is an append-only in-memory audit log.
type AuditLog struct {
	mu      sync.Mutex
	entries []audit.Entry
}

// NewAuditLog creates an empty in-memory audit log.
func NewAuditLog() *AuditLog {
	return &AuditLog{}
}

// Append records the entry.
func (a *AuditLog) Append(_ context.Context, entry *audit.Entry) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, *entry)
	return nil
}

// Entries returns a copy of all recorded entries in append order.
func (a *AuditLog) Entries() []audit.Entry {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]audit.Entry, len(a.entries))
	copy(out, a.entries)
	return out
}

// ByAction returns entries matching the given action, in append order.
func (a *AuditLog) ByAction(action audit.Action) []audit.Entry {
	a.mu.Lock()
	defer a.mu.Unlock()

	var out []audit.Entry
	for _, e := range a.entries {
		if e.Action == action {
			out = append(out, e)
		}
	}
	return out
}
