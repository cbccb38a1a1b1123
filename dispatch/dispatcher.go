// Package dispatch routes slash-command invocations to their handlers and
// guarantees each invocation gets exactly one caller-visible reply.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/warden/command"
	"github.com/xraph/warden/observability"
	"github.com/xraph/warden/permission"
	"github.com/xraph/warden/reply"
)

// FailureMessage is the generic reply sent when a command fails.
const FailureMessage = "❌ There was an error while executing this command!"

// Dispatcher resolves, authorizes, validates and runs invocations.
type Dispatcher struct {
	registry  *command.Registry
	gate      *permission.Gate
	validator *command.Validator
	logger    *slog.Logger
	metrics   *observability.Metrics
	tracer    *observability.Tracer
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the dispatcher logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

// WithMetrics records command outcomes on m.
func WithMetrics(m *observability.Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// WithTracer wraps each dispatch in a span.
func WithTracer(t *observability.Tracer) Option {
	return func(d *Dispatcher) { d.tracer = t }
}

// New creates a dispatcher over the given registry and gate.
func New(registry *command.Registry, gate *permission.Gate, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		registry:  registry,
		gate:      gate,
		validator: command.NewValidator(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	return d
}

// Dispatch handles one invocation. Failures are logged and answered here;
// the returned error only reports what happened.
func (d *Dispatcher) Dispatch(ctx context.Context, inv *command.Invocation) error {
	start := time.Now()
	outcome := observability.OutcomeOK

	var span trace.Span
	if d.tracer != nil {
		ctx, span = d.tracer.StartDispatchSpan(ctx, inv.ID.String(), inv.Command, inv.Caller.UserID)
	}

	err := d.dispatch(ctx, inv, &outcome)

	if span != nil {
		d.tracer.EndSpan(span, outcome, err)
	}
	if d.metrics != nil {
		d.metrics.RecordCommand(inv.Command, outcome, time.Since(start).Seconds())
	}
	return err
}

func (d *Dispatcher) dispatch(ctx context.Context, inv *command.Invocation, outcome *string) error {
	def, err := d.registry.Resolve(inv.Command)
	if err != nil {
		*outcome = observability.OutcomeDropped
		d.logger.WarnContext(ctx, "no command matching invocation",
			"command", inv.Command,
			"invocation_id", inv.ID.String(),
		)
		return err
	}

	if def.RequiresPrivilege && !d.gate.IsPrivileged(inv.Caller) {
		*outcome = observability.OutcomeDenied
		d.logger.InfoContext(ctx, "command denied",
			"command", def.Name,
			"invocation_id", inv.ID.String(),
			"user_id", inv.Caller.UserID,
		)
		if replyErr := inv.Responder.Reply(ctx, d.gate.DenyReply()); replyErr != nil {
			d.logger.ErrorContext(ctx, "deny reply failed",
				"command", def.Name,
				"invocation_id", inv.ID.String(),
				"error", replyErr,
			)
		}
		return nil
	}

	if err := d.validator.Validate(def, inv.Options); err != nil {
		*outcome = observability.OutcomeFailed
		d.fail(ctx, inv, err)
		return err
	}

	if err := d.run(ctx, def, inv); err != nil {
		*outcome = observability.OutcomeFailed
		d.fail(ctx, inv, err)
		return err
	}

	if inv.Responder.State() != command.StateReplied {
		*outcome = observability.OutcomeFailed
		err := fmt.Errorf("%w: %s", ErrNoReply, def.Name)
		d.fail(ctx, inv, err)
		return err
	}

	return nil
}

// run invokes the handler, converting panics and errors into *HandlerError.
func (d *Dispatcher) run(ctx context.Context, def *command.Definition, inv *command.Invocation) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = &HandlerError{Command: def.Name, Err: fmt.Errorf("%v", rec), Panic: true}
		}
	}()

	if herr := def.Handler.Handle(ctx, inv); herr != nil {
		return &HandlerError{Command: def.Name, Err: herr}
	}
	return nil
}

// fail logs err and sends the generic failure reply on whichever path the
// responder still accepts.
func (d *Dispatcher) fail(ctx context.Context, inv *command.Invocation, err error) {
	attrs := []any{
		"command", inv.Command,
		"invocation_id", inv.ID.String(),
		"error", err,
	}
	var he *HandlerError
	if errors.As(err, &he) && he.Panic {
		attrs = append(attrs, "panic", true)
	}
	d.logger.ErrorContext(ctx, "command failed", attrs...)

	msg := reply.Text(FailureMessage)
	var sendErr error
	if inv.Responder.State() == command.StateNone {
		sendErr = inv.Responder.Reply(ctx, msg)
	} else {
		sendErr = inv.Responder.FollowUp(ctx, msg)
	}
	if sendErr != nil {
		d.logger.ErrorContext(ctx, "failure reply failed",
			"command", inv.Command,
			"invocation_id", inv.ID.String(),
			"error", sendErr,
		)
	}
}
