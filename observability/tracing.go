// Package observability provides Prometheus metrics and OpenTelemetry
// tracing for Warden.
package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/xraph/warden"

// Tracer provides OpenTelemetry tracing for Warden.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer creates a new Warden tracer from the global provider.
func NewTracer() *Tracer {
	return &Tracer{
		tracer: otel.Tracer(tracerName),
	}
}

// StartDispatchSpan starts a span for a slash-command invocation.
func (t *Tracer) StartDispatchSpan(ctx context.Context, invocationID, command, callerID string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "warden.dispatch",
		trace.WithAttributes(
			attribute.String("warden.invocation_id", invocationID),
			attribute.String("warden.command", command),
			attribute.String("warden.caller_id", callerID),
		),
	)
}

// StartNotifySpan starts a span for a waitlist notification.
func (t *Tracer) StartNotifySpan(ctx context.Context, notificationID, entryID string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "warden.notify",
		trace.WithAttributes(
			attribute.String("warden.notification_id", notificationID),
			attribute.String("warden.entry_id", entryID),
		),
	)
}

// StartDeploySpan starts a span for a command registration sync.
func (t *Tracer) StartDeploySpan(ctx context.Context, deploymentID string, commands int) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "warden.deploy",
		trace.WithAttributes(
			attribute.String("warden.deployment_id", deploymentID),
			attribute.Int("warden.commands", commands),
		),
	)
}

// EndSpan ends a span with an outcome and optional error.
func (t *Tracer) EndSpan(span trace.Span, outcome string, err error) {
	span.SetAttributes(attribute.String("warden.outcome", outcome))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
