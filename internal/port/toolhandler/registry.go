// Package toolhandler defines the tool handler port and its registry.
// Handlers are supplied externally; the dispatcher never constructs them.
package toolhandler

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/attestia/gatekeep/internal/domain/agent"
	"github.com/attestia/gatekeep/internal/domain/tool"
)

// Handler executes one tool. Input is opaque; handlers validate it and
// report failures through the Result contract, not through errors. The
// error return is reserved for infrastructure faults.
type Handler interface {
	Call(ctx context.Context, tc tool.Context, input json.RawMessage) (tool.Result, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, tc tool.Context, input json.RawMessage) (tool.Result, error)

// Call implements Handler.
func (f HandlerFunc) Call(ctx context.Context, tc tool.Context, input json.RawMessage) (tool.Result, error) {
	return f(ctx, tc, input)
}

// Registry maps tool references to handlers. Populated at startup and
// read-only afterwards.
type Registry struct {
	handlers map[tool.Ref]Handler
}

// NewRegistry creates an empty handler registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[tool.Ref]Handler)}
}

// Register binds a handler to a tool reference. Registering the same tool
// twice is a configuration fault.
func (r *Registry) Register(ref tool.Ref, h Handler) error {
	if !ref.IsValid() {
		return fmt.Errorf("register handler: unknown tool %q", ref)
	}
	if _, dup := r.handlers[ref]; dup {
		return fmt.Errorf("register handler: duplicate registration for %q", ref)
	}
	r.handlers[ref] = h
	return nil
}

// Resolve returns the handler for ref, or false if none is registered.
func (r *Registry) Resolve(ref tool.Ref) (Handler, bool) {
	h, ok := r.handlers[ref]
	return h, ok
}

// Refs returns all registered tool references, sorted.
func (r *Registry) Refs() []tool.Ref {
	refs := make([]tool.Ref, 0, len(r.handlers))
	for ref := range r.handlers {
		refs = append(refs, ref)
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i] < refs[j] })
	return refs
}

// ValidateAgainst checks at startup that every tool declared by the given
// profiles has a registered handler, so configuration gaps surface at load
// time rather than at call time.
func (r *Registry) ValidateAgainst(profiles []*agent.Profile) error {
	for _, p := range profiles {
		for _, ref := range p.Tools {
			if _, ok := r.handlers[ref]; !ok {
				return fmt.Errorf("profile %s declares tool %q with no registered handler", p.ID, ref)
			}
		}
	}
	return nil
}
