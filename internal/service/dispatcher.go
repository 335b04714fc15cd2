package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/attestia/gatekeep/internal/adapter/otel"
	"github.com/attestia/gatekeep/internal/domain/agent"
	"github.com/attestia/gatekeep/internal/domain/policy"
	"github.com/attestia/gatekeep/internal/domain/tool"
	"github.com/attestia/gatekeep/internal/port/toolhandler"
)

// Dispatcher routes tool calls to registered handlers. It re-validates the
// agent's tool allowlist and the tool's required permission on every call,
// regardless of what the caller already checked.
type Dispatcher struct {
	handlers *toolhandler.Registry
	log      *slog.Logger
	metrics  *otel.Metrics
}

// NewDispatcher creates a Dispatcher. metrics may be nil.
func NewDispatcher(handlers *toolhandler.Registry, log *slog.Logger, metrics *otel.Metrics) *Dispatcher {
	return &Dispatcher{handlers: handlers, log: log, metrics: metrics}
}

// Execute runs one tool call for the given profile.
//
// Authorization failures on the allowlist and missing handlers surface as
// ok:false results so the caller can distinguish them by message. A
// permission denial is returned as an error: it signals misuse and is fatal
// to the surrounding request. Handler panics are normalized to ok:false,
// never swallowed silently.
func (d *Dispatcher) Execute(ctx context.Context, profile *agent.Profile, tc tool.Context, call tool.Call) (result tool.Result, err error) {
	if !profile.HasTool(call.Tool) {
		return tool.Result{OK: false, Error: fmt.Sprintf("Tool not allowed for agent: %s", call.Tool)}, nil
	}

	perm, err := policy.PermissionFor(call.Tool)
	if err != nil {
		return tool.Result{}, err
	}
	if err := policy.EnforcePermission(profile, perm); err != nil {
		return tool.Result{}, err
	}

	h, ok := d.handlers.Resolve(call.Tool)
	if !ok {
		return tool.Result{OK: false, Error: fmt.Sprintf("Tool handler not implemented: %s", call.Tool)}, nil
	}

	ctx, span := otel.StartToolCallSpan(ctx, profile.ID, string(call.Tool))
	defer span.End()
	if d.metrics != nil {
		d.metrics.ToolCalls.Add(ctx, 1)
	}

	defer func() {
		if r := recover(); r != nil {
			d.log.Error("tool handler panic", "tool", call.Tool, "agent_id", profile.ID, "panic", r)
			result = tool.Result{OK: false, Error: fmt.Sprintf("tool handler panic: %v", r)}
			err = nil
		}
	}()

	result, err = h.Call(ctx, tc, call.Input)
	if err != nil {
		return tool.Result{}, fmt.Errorf("tool %s: %w", call.Tool, err)
	}
	return result, nil
}
