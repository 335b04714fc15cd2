package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "gatekeep"

// Metrics holds all gatekeep metric instruments.
type Metrics struct {
	RunsStarted    metric.Int64Counter
	RunsBlocked    metric.Int64Counter
	RunsExecuted   metric.Int64Counter
	ToolCalls      metric.Int64Counter
	Escalations    metric.Int64Counter
	ReviewsCreated metric.Int64Counter
	RunDuration    metric.Float64Histogram
}

// NewMetrics creates all metric instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.RunsStarted, err = meter.Int64Counter("gatekeep.runs.started",
		metric.WithDescription("Number of agent runs started"))
	if err != nil {
		return nil, err
	}

	m.RunsBlocked, err = meter.Int64Counter("gatekeep.runs.blocked",
		metric.WithDescription("Number of agent runs blocked by governance"))
	if err != nil {
		return nil, err
	}

	m.RunsExecuted, err = meter.Int64Counter("gatekeep.runs.executed",
		metric.WithDescription("Number of agent runs executed"))
	if err != nil {
		return nil, err
	}

	m.ToolCalls, err = meter.Int64Counter("gatekeep.toolcalls",
		metric.WithDescription("Number of tool calls dispatched"))
	if err != nil {
		return nil, err
	}

	m.Escalations, err = meter.Int64Counter("gatekeep.escalations",
		metric.WithDescription("Number of escalation entries recorded"))
	if err != nil {
		return nil, err
	}

	m.ReviewsCreated, err = meter.Int64Counter("gatekeep.reviews.created",
		metric.WithDescription("Number of review requests created"))
	if err != nil {
		return nil, err
	}

	m.RunDuration, err = meter.Float64Histogram("gatekeep.run.duration_seconds",
		metric.WithDescription("Agent run duration in seconds"))
	if err != nil {
		return nil, err
	}

	return m, nil
}
