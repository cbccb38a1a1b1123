// Package deploy publishes the command registry to the chat platform.
package deploy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/warden/command"
	"github.com/xraph/warden/id"
	"github.com/xraph/warden/observability"
)

// DefaultTimeout bounds a single registration sync.
const DefaultTimeout = 120 * time.Second

// ErrDeploymentTimeout is returned when the platform does not acknowledge a
// sync before the timeout.
var ErrDeploymentTimeout = errors.New("deploy: deployment timed out")

// DeploymentRejectedError is returned when the platform refuses a sync.
type DeploymentRejectedError struct {
	Err error
}

func (e *DeploymentRejectedError) Error() string {
	return fmt.Sprintf("deploy: deployment rejected: %v", e.Err)
}

func (e *DeploymentRejectedError) Unwrap() error { return e.Err }

// Publisher replaces the platform's command set with defs and returns the
// number of commands it acknowledged.
type Publisher interface {
	Publish(ctx context.Context, defs []command.Definition) (int, error)
}

// Result describes a completed sync.
type Result struct {
	ID       id.ID
	Commands int
	Elapsed  time.Duration
}

// Option configures a Synchronizer.
type Option func(*Synchronizer)

// WithTimeout sets the per-sync ceiling.
func WithTimeout(d time.Duration) Option {
	return func(s *Synchronizer) { s.timeout = d }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Synchronizer) { s.logger = l }
}

// WithMetrics records sync outcomes on m.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Synchronizer) { s.metrics = m }
}

// WithTracer wraps each sync in a span.
func WithTracer(t *observability.Tracer) Option {
	return func(s *Synchronizer) { s.tracer = t }
}

// Synchronizer performs full-replace command registration.
type Synchronizer struct {
	publisher Publisher
	timeout   time.Duration
	logger    *slog.Logger
	metrics   *observability.Metrics
	tracer    *observability.Tracer
}

// New creates a synchronizer over p.
func New(p Publisher, opts ...Option) *Synchronizer {
	s := &Synchronizer{publisher: p, timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

type publishResult struct {
	n   int
	err error
}

// Sync publishes defs, replacing whatever the platform holds. The publish
// call races a timer; when the timer wins, Sync returns ErrDeploymentTimeout
// and the in-flight call is cancelled.
func (s *Synchronizer) Sync(ctx context.Context, defs []command.Definition) (res Result, err error) {
	res.ID = id.NewDeploymentID()
	start := time.Now()
	outcome := observability.OutcomeOK

	var span trace.Span
	if s.tracer != nil {
		ctx, span = s.tracer.StartDeploySpan(ctx, res.ID.String(), len(defs))
	}
	defer func() {
		res.Elapsed = time.Since(start)
		if span != nil {
			s.tracer.EndSpan(span, outcome, err)
		}
		if s.metrics != nil {
			s.metrics.RecordDeployment(outcome)
		}
	}()

	log := s.logger.With("deployment_id", res.ID.String())
	log.InfoContext(ctx, "started refreshing application commands", "count", len(defs))

	pubCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan publishResult, 1)
	go func() {
		n, perr := s.publisher.Publish(pubCtx, defs)
		done <- publishResult{n: n, err: perr}
	}()

	timer := time.NewTimer(s.timeout)
	defer timer.Stop()

	select {
	case r := <-done:
		if r.err != nil {
			outcome = observability.OutcomeRejected
			err = &DeploymentRejectedError{Err: r.err}
			log.ErrorContext(ctx, "command deployment rejected", "error", r.err)
			return res, err
		}
		res.Commands = r.n
		log.InfoContext(ctx, "successfully reloaded application commands",
			"commands", r.n,
			"elapsed", time.Since(start),
		)
		return res, nil

	case <-timer.C:
		outcome = observability.OutcomeTimeout
		err = fmt.Errorf("%w after %s", ErrDeploymentTimeout, s.timeout)
		log.ErrorContext(ctx, "command deployment timed out", "timeout", s.timeout)
		return res, err

	case <-ctx.Done():
		outcome = observability.OutcomeFailed
		err = ctx.Err()
		return res, err
	}
}
