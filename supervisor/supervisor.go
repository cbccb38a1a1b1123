// Package supervisor keeps retrying the gateway login until it succeeds.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/xraph/warden/observability"
)

// Default watchdog thresholds.
const (
	DefaultLoginWarnAfter = 15 * time.Second
	DefaultReadyWarnAfter = 60 * time.Second
)

// ErrLoginExhausted is returned when a finite MaxAttempts is used up.
var ErrLoginExhausted = errors.New("supervisor: login attempts exhausted")

// AttemptError reports one failed login attempt.
type AttemptError struct {
	Attempt int
	Err     error
}

func (e *AttemptError) Error() string {
	return fmt.Sprintf("supervisor: login attempt %d: %v", e.Attempt, e.Err)
}

func (e *AttemptError) Unwrap() error { return e.Err }

// Connector opens the gateway session.
type Connector interface {
	Open(ctx context.Context) error
}

// State is the connection state.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "disconnected"
	}
}

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithPolicy sets the retry policy.
func WithPolicy(p Policy) Option {
	return func(s *Supervisor) { s.policy = p }
}

// WithWatchdogs sets how long to wait for login and for the ready event
// before logging a warning. Zero disables a watchdog.
func WithWatchdogs(login, ready time.Duration) Option {
	return func(s *Supervisor) {
		s.loginWarnAfter = login
		s.readyWarnAfter = ready
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Supervisor) { s.logger = l }
}

// WithMetrics counts login attempts on m.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Supervisor) { s.metrics = m }
}

// WithSleep replaces the delay function used between attempts.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(s *Supervisor) { s.sleep = sleep }
}

// Supervisor drives the login retry loop and readiness watchdogs.
type Supervisor struct {
	connector      Connector
	policy         Policy
	loginWarnAfter time.Duration
	readyWarnAfter time.Duration
	logger         *slog.Logger
	metrics        *observability.Metrics
	sleep          func(ctx context.Context, d time.Duration) error

	mu            sync.Mutex
	state         State
	connected     chan struct{}
	connectedOnce sync.Once
	ready         chan struct{}
	readyOnce     sync.Once
	wg            sync.WaitGroup
}

// New creates a supervisor for c.
func New(c Connector, opts ...Option) *Supervisor {
	s := &Supervisor{
		connector:      c,
		policy:         DefaultPolicy(),
		loginWarnAfter: DefaultLoginWarnAfter,
		readyWarnAfter: DefaultReadyWarnAfter,
		sleep:          sleepContext,
		connected:      make(chan struct{}),
		ready:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// State returns the connection state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Ready is closed once MarkReady is called.
func (s *Supervisor) Ready() <-chan struct{} { return s.ready }

// MarkReady records the platform's ready event.
func (s *Supervisor) MarkReady() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateReady
	s.readyOnce.Do(func() { close(s.ready) })
}

func (s *Supervisor) markConnected() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateReady {
		s.state = StateConnected
	}
	s.connectedOnce.Do(func() { close(s.connected) })
}

func (s *Supervisor) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// Run attempts to log in until it succeeds, ctx is cancelled, or a finite
// attempt budget is exhausted. The watchdogs it starts stop when ctx is
// cancelled or their condition is met; Wait blocks until they exit.
func (s *Supervisor) Run(ctx context.Context) error {
	s.setState(StateConnecting)
	s.startWatchdog(ctx, s.loginWarnAfter, s.connected,
		"login not complete yet; check the token and network connectivity")
	s.startWatchdog(ctx, s.readyWarnAfter, s.ready,
		"ready event not received yet; check gateway intents and connectivity")

	bo := s.policy.NewBackOff()
	for attempt := 1; ; attempt++ {
		if s.metrics != nil {
			s.metrics.LoginAttemptsTotal.Inc()
		}
		s.logger.InfoContext(ctx, "attempting to log in", "attempt", attempt)

		err := s.connector.Open(ctx)
		if err == nil {
			s.markConnected()
			s.logger.InfoContext(ctx, "login successful", "attempt", attempt)
			return nil
		}

		aerr := &AttemptError{Attempt: attempt, Err: err}
		if ctx.Err() != nil {
			s.setState(StateDisconnected)
			return ctx.Err()
		}

		delay := bo.NextBackOff()
		if delay == backoff.Stop {
			s.setState(StateFailed)
			s.logger.ErrorContext(ctx, "login failed, giving up", "attempt", attempt, "error", err)
			return fmt.Errorf("%w: %w", ErrLoginExhausted, aerr)
		}

		s.logger.WarnContext(ctx, "login failed, retrying",
			"attempt", attempt,
			"retry_in", delay,
			"error", err,
		)
		if err := s.sleep(ctx, delay); err != nil {
			s.setState(StateDisconnected)
			return err
		}
	}
}

// Wait blocks until the watchdogs started by Run have exited.
func (s *Supervisor) Wait() {
	s.wg.Wait()
}

func (s *Supervisor) startWatchdog(ctx context.Context, after time.Duration, done <-chan struct{}, msg string) {
	if after <= 0 {
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		timer := time.NewTimer(after)
		defer timer.Stop()

		select {
		case <-ctx.Done():
		case <-done:
		case <-timer.C:
			s.logger.WarnContext(ctx, msg, "after", after, "state", s.State().String())
		}
	}()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
