package crew

import (
	"context"

	"github.com/vinayprograms/agentkit/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

func (c *Crew) startKickoffSpan(ctx context.Context) (context.Context, trace.Span) {
	ctx, span := telemetry.GetTracer().StartSpan(ctx, "crew.kickoff")
	span.SetAttributes(
		attribute.String("crew.name", c.def.Name),
		attribute.Int("crew.tasks", len(c.def.Tasks)),
	)
	return ctx, span
}

func endSpan(span trace.Span, err error, attrs ...attribute.KeyValue) {
	span.SetAttributes(attrs...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func startTaskSpan(ctx context.Context, task *Task) (context.Context, trace.Span) {
	ctx, span := telemetry.GetTracer().StartSpan(ctx, "task."+task.Name)
	span.SetAttributes(
		attribute.String("task.name", task.Name),
		attribute.String("task.agent", task.Agent),
	)
	return ctx, span
}
