package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "gatekeep"

// StartRunSpan starts a span for an agent run.
func StartRunSpan(ctx context.Context, agentID, userID, projectID string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "run",
		trace.WithAttributes(
			attribute.String("agent.id", agentID),
			attribute.String("user.id", userID),
			attribute.String("project.id", projectID),
		),
	)
}

// StartToolCallSpan starts a span for a tool call within a run.
func StartToolCallSpan(ctx context.Context, agentID, tool string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "toolcall",
		trace.WithAttributes(
			attribute.String("agent.id", agentID),
			attribute.String("toolcall.tool", tool),
		),
	)
}
