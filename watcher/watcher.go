// Package watcher relays waitlist inserts into a notification channel.
//
// A Watcher subscribes to the waitlist change stream once. For every insert
// it recounts the collection, renames the notification channel to show the
// count, and posts a card describing the new entry. A rate-limited rename is
// queued and applied with the latest count once the limiter allows it. Rename
// and send failures are logged and do not stop the stream. A stream error moves the watcher to
// StateErrored; it does not resubscribe on its own.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/warden/checkpoint"
	"github.com/xraph/warden/id"
	"github.com/xraph/warden/observability"
	"github.com/xraph/warden/ratelimit"
	"github.com/xraph/warden/reply"
	"github.com/xraph/warden/waitlist"
)

// CheckpointName is the checkpoint key for the waitlist stream.
const CheckpointName = "waitlist"

var (
	// ErrStreamFailed is reported when the change stream cannot be opened or
	// ends with an error.
	ErrStreamFailed = errors.New("watcher: change stream failed")

	// ErrAlreadyStarted is returned by a second call to Start.
	ErrAlreadyStarted = errors.New("watcher: already started")
)

// State is the watcher lifecycle state.
type State int32

const (
	StateUninitialized State = iota
	StateSubscribing
	StateActive
	StateErrored
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateSubscribing:
		return "subscribing"
	case StateActive:
		return "active"
	case StateErrored:
		return "errored"
	case StateTerminated:
		return "terminated"
	default:
		return "uninitialized"
	}
}

// Notifier performs the watcher's platform side effects.
type Notifier interface {
	RenameChannel(ctx context.Context, channelID, name string) error
	SendCards(ctx context.Context, channelID string, cards ...reply.Card) error
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithCheckpoints resumes the stream from, and records progress to, cs.
func WithCheckpoints(cs checkpoint.Store) Option {
	return func(w *Watcher) { w.checkpoints = cs }
}

// WithRenameLimiter throttles channel renames through l.
func WithRenameLimiter(l *ratelimit.Limiter) Option {
	return func(w *Watcher) { w.limiter = l }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *Watcher) { w.logger = l }
}

// WithMetrics records notification outcomes on m.
func WithMetrics(m *observability.Metrics) Option {
	return func(w *Watcher) { w.metrics = m }
}

// WithTracer wraps each notification in a span.
func WithTracer(t *observability.Tracer) Option {
	return func(w *Watcher) { w.tracer = t }
}

// WithClock replaces the watcher's time source.
func WithClock(now func() time.Time) Option {
	return func(w *Watcher) { w.now = now }
}

// Watcher mirrors waitlist inserts into a channel.
type Watcher struct {
	store     waitlist.Store
	notifier  Notifier
	channelID string

	checkpoints checkpoint.Store
	limiter     *ratelimit.Limiter
	logger      *slog.Logger
	metrics     *observability.Metrics
	tracer      *observability.Tracer
	now         func() time.Time

	mu     sync.Mutex
	state  State
	err    error
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// renameMu guards the trailing rename. While one is queued, newer
	// counts replace queuedName instead of renaming directly.
	renameMu     sync.Mutex
	renameQueued bool
	queuedName   string
}

// New creates a watcher that notifies channelID.
func New(store waitlist.Store, notifier Notifier, channelID string, opts ...Option) *Watcher {
	w := &Watcher{
		store:     store,
		notifier:  notifier,
		channelID: channelID,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = slog.Default()
	}
	return w
}

// State returns the current lifecycle state.
func (w *Watcher) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Err returns the error that moved the watcher to StateErrored.
func (w *Watcher) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

func (w *Watcher) setState(s State, err error) {
	w.mu.Lock()
	w.state = s
	if err != nil {
		w.err = err
	}
	w.mu.Unlock()
}

// Start subscribes to inserts and begins relaying them. It fails fast when
// the store is unavailable.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.state != StateUninitialized {
		w.mu.Unlock()
		return ErrAlreadyStarted
	}
	w.state = StateSubscribing
	w.mu.Unlock()

	w.logger.InfoContext(ctx, "setting up waitlist change stream", "channel_id", w.channelID)

	if err := w.store.Ping(ctx); err != nil {
		err = fmt.Errorf("%w: %w", ErrStreamFailed, err)
		w.setState(StateErrored, err)
		return err
	}

	token := w.loadCheckpoint(ctx)

	cs, err := w.store.Watch(ctx, token)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrStreamFailed, err)
		w.setState(StateErrored, err)
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	w.mu.Lock()
	w.cancel = cancel
	w.state = StateActive
	w.mu.Unlock()

	w.logger.InfoContext(ctx, "waitlist change stream active", "resumed", len(token) > 0)

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.loop(ctx, cs)
	}()
	return nil
}

// Stop cancels the stream and waits for the relay goroutine to exit.
func (w *Watcher) Stop(_ context.Context) {
	w.mu.Lock()
	cancel := w.cancel
	if w.state == StateUninitialized {
		w.state = StateTerminated
	}
	w.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	w.wg.Wait()
}

func (w *Watcher) loop(ctx context.Context, cs waitlist.ChangeStream) {
	defer func() {
		if err := cs.Close(context.WithoutCancel(ctx)); err != nil {
			w.logger.WarnContext(ctx, "close change stream", "error", err)
		}
	}()

	for cs.Next(ctx) {
		w.handle(ctx, cs.Event())
	}

	if ctx.Err() != nil {
		w.setState(StateTerminated, nil)
		w.logger.InfoContext(ctx, "waitlist change stream stopped")
		return
	}

	err := ErrStreamFailed
	if cerr := cs.Err(); cerr != nil {
		err = fmt.Errorf("%w: %w", ErrStreamFailed, cerr)
	}
	w.setState(StateErrored, err)
	w.logger.ErrorContext(ctx, "change stream error", "error", err)
}

// handle relays one change event.
func (w *Watcher) handle(ctx context.Context, ev waitlist.ChangeEvent) {
	if ev.Operation != waitlist.OperationInsert {
		return
	}

	nid := id.NewNotificationID()
	outcome := observability.OutcomeOK
	var sendErr error

	var span trace.Span
	if w.tracer != nil {
		ctx, span = w.tracer.StartNotifySpan(ctx, nid.String(), ev.Entry.ID)
		defer func() { w.tracer.EndSpan(span, outcome, sendErr) }()
	}

	log := w.logger.With("notification_id", nid.String(), "entry_id", ev.Entry.ID)
	log.InfoContext(ctx, "new waitlist entry detected")

	w.rename(ctx, log)

	card := Project(ev.Entry, w.now())
	if sendErr = w.notifier.SendCards(ctx, w.channelID, card); sendErr != nil {
		outcome = observability.OutcomeFailed
		log.ErrorContext(ctx, "sending waitlist notification", "error", sendErr)
	} else {
		log.InfoContext(ctx, "waitlist notification sent")
	}
	if w.metrics != nil {
		w.metrics.RecordNotification(outcome)
	}

	w.saveCheckpoint(ctx, ev.ResumeToken)
}

// rename recounts the collection and renames the channel to show the count.
// A throttled rename is queued and applied once the limiter allows it; the
// latest count wins, so the channel always settles on the current total.
func (w *Watcher) rename(ctx context.Context, log *slog.Logger) {
	count, err := w.store.Count(ctx)
	if err != nil {
		log.ErrorContext(ctx, "counting waitlist", "error", err)
		w.recordRename(observability.OutcomeFailed)
		return
	}
	if w.metrics != nil {
		w.metrics.WaitlistSize.Set(float64(count))
	}

	name := ChannelName(count)

	w.renameMu.Lock()
	if w.renameQueued {
		w.queuedName = name
		w.renameMu.Unlock()
		log.DebugContext(ctx, "channel rename already queued, updated name", "name", name)
		w.recordRename(observability.OutcomeDeferred)
		return
	}
	if w.limiter != nil && !w.limiter.Allow(w.channelID) {
		w.renameQueued = true
		w.queuedName = name
		w.renameMu.Unlock()
		log.WarnContext(ctx, "channel rename throttled, queued", "name", name)
		w.recordRename(observability.OutcomeDeferred)

		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			w.trailingRename(ctx)
		}()
		return
	}
	w.renameMu.Unlock()

	w.applyRename(ctx, log, name)
}

// trailingRename waits for the limiter and applies the queued name until no
// newer name arrives while renaming. It gives up when ctx is cancelled.
func (w *Watcher) trailingRename(ctx context.Context) {
	for {
		if err := w.limiter.Wait(ctx, w.channelID); err != nil {
			w.renameMu.Lock()
			w.renameQueued = false
			name := w.queuedName
			w.renameMu.Unlock()
			w.logger.InfoContext(ctx, "queued channel rename abandoned", "name", name)
			return
		}

		w.renameMu.Lock()
		name := w.queuedName
		w.renameMu.Unlock()

		w.applyRename(ctx, w.logger, name)

		w.renameMu.Lock()
		if w.queuedName == name {
			w.renameQueued = false
			w.renameMu.Unlock()
			return
		}
		w.renameMu.Unlock()
	}
}

func (w *Watcher) applyRename(ctx context.Context, log *slog.Logger, name string) {
	if err := w.notifier.RenameChannel(ctx, w.channelID, name); err != nil {
		log.ErrorContext(ctx, "updating channel name", "name", name, "error", err)
		w.recordRename(observability.OutcomeFailed)
		return
	}
	log.InfoContext(ctx, "updated channel name", "name", name)
	w.recordRename(observability.OutcomeOK)
}

func (w *Watcher) recordRename(outcome string) {
	if w.metrics != nil {
		w.metrics.RecordRename(outcome)
	}
}

func (w *Watcher) loadCheckpoint(ctx context.Context) []byte {
	if w.checkpoints == nil {
		return nil
	}
	token, err := w.checkpoints.Load(ctx, CheckpointName)
	if err != nil {
		w.logger.WarnContext(ctx, "loading stream checkpoint, starting fresh", "error", err)
		return nil
	}
	return token
}

func (w *Watcher) saveCheckpoint(ctx context.Context, token []byte) {
	if w.checkpoints == nil || len(token) == 0 {
		return
	}
	if err := w.checkpoints.Save(ctx, CheckpointName, token); err != nil {
		w.logger.WarnContext(ctx, "saving stream checkpoint", "error", err)
	}
}
