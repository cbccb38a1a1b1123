package warden

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/xraph/warden/api"
	"github.com/xraph/warden/checkpoint"
	"github.com/xraph/warden/command"
	"github.com/xraph/warden/commands"
	"github.com/xraph/warden/deploy"
	"github.com/xraph/warden/discord"
	"github.com/xraph/warden/dispatch"
	"github.com/xraph/warden/linker"
	"github.com/xraph/warden/observability"
	"github.com/xraph/warden/permission"
	"github.com/xraph/warden/ratelimit"
	"github.com/xraph/warden/store/memory"
	"github.com/xraph/warden/supervisor"
	"github.com/xraph/warden/waitlist"
	"github.com/xraph/warden/watcher"
)

var _ discord.Handler = (*Bot)(nil)

// Bot is the composition root: it owns every service and the session
// lifecycle.
type Bot struct {
	config         Config
	session        Session
	waitlist       waitlist.Store
	checkpoints    checkpoint.Store
	registry       *prometheus.Registry
	supervisorOpts []supervisor.Option
	logger         *slog.Logger

	metrics    *observability.Metrics
	tracer     *observability.Tracer
	gate       *permission.Gate
	commands   *command.Registry
	dispatcher *dispatch.Dispatcher
	linker     *linker.Linker
	sync       *deploy.Synchronizer
	supervisor *supervisor.Supervisor
	watcher    *watcher.Watcher

	running   atomic.Bool
	readyOnce sync.Once

	mu             sync.Mutex
	stopped        bool
	watcherStarted bool
	http           *http.Server
}

// New creates a Bot from cfg and the given options.
func New(cfg Config, opts ...Option) (*Bot, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	b := &Bot{
		config: cfg,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(b); err != nil {
			return nil, err
		}
	}
	if b.session == nil {
		return nil, ErrNoSession
	}
	if b.registry == nil {
		b.registry = prometheus.NewRegistry()
		b.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	if b.waitlist != nil && b.checkpoints == nil {
		b.checkpoints = memory.New()
	}

	b.wireServices()

	if src, ok := b.session.(interface{ SetHandler(discord.Handler) }); ok {
		src.SetHandler(b)
	}
	return b, nil
}

// wireServices initializes the internal services after options have been applied.
func (b *Bot) wireServices() {
	b.metrics = observability.NewMetrics(b.registry)
	b.tracer = observability.NewTracer()
	b.gate = permission.NewGate(b.config.PrivilegedRoleID)

	b.commands = command.NewRegistry(b.logger)
	b.commands.Load(context.Background(), commands.All(commands.Deps{
		Platform: b.session,
		Gate:     b.gate,
		Waitlist: b.waitlist,
		Repo:     b.config.GitHubRepo,
		Logger:   b.logger,
	})...)

	b.dispatcher = dispatch.New(b.commands, b.gate,
		dispatch.WithLogger(b.logger),
		dispatch.WithMetrics(b.metrics),
		dispatch.WithTracer(b.tracer),
	)

	b.linker = linker.New(b.config.GitHubRepo, b.session, b.logger, b.metrics)

	b.sync = deploy.New(b.session,
		deploy.WithTimeout(b.config.DeployTimeout),
		deploy.WithLogger(b.logger),
		deploy.WithMetrics(b.metrics),
		deploy.WithTracer(b.tracer),
	)

	b.supervisor = supervisor.New(b.session, append([]supervisor.Option{
		supervisor.WithPolicy(b.config.Policy()),
		supervisor.WithWatchdogs(b.config.LoginWarnAfter, b.config.ReadyWarnAfter),
		supervisor.WithLogger(b.logger),
		supervisor.WithMetrics(b.metrics),
	}, b.supervisorOpts...)...)

	if b.waitlist != nil {
		b.watcher = watcher.New(b.waitlist, b.session, b.config.WaitlistChannelID,
			watcher.WithCheckpoints(b.checkpoints),
			watcher.WithRenameLimiter(ratelimit.New(ratelimit.ChannelRename)),
			watcher.WithLogger(b.logger),
			watcher.WithMetrics(b.metrics),
			watcher.WithTracer(b.tracer),
		)
	}
}

// Run starts the bot and blocks until ctx is cancelled. Commands are
// registered before login and again once the session is ready; the
// waitlist relay starts on ready. Run returns a non-nil error only when
// login gives up.
func (b *Bot) Run(ctx context.Context) error {
	if !b.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	b.config.LogSummary(ctx, b.logger)
	if err := b.serveHTTP(ctx); err != nil {
		return err
	}

	b.syncCommands(ctx, "startup")

	if err := b.supervisor.Run(ctx); err != nil {
		cancel()
		b.shutdown()
		if errors.Is(err, supervisor.ErrLoginExhausted) {
			return fmt.Errorf("warden: login: %w", err)
		}
		return nil
	}

	<-ctx.Done()
	b.shutdown()
	return nil
}

// syncCommands publishes every registered definition. Failures are logged
// by the synchronizer and never stop the bot.
func (b *Bot) syncCommands(ctx context.Context, phase string) {
	res, err := b.sync.Sync(ctx, b.commands.All())
	if err != nil {
		b.logger.WarnContext(ctx, "command registration failed", "phase", phase, "error", err)
		return
	}
	b.logger.InfoContext(ctx, "commands registered",
		"phase", phase,
		"deployment_id", res.ID.String(),
		"count", res.Commands,
	)
}

func (b *Bot) serveHTTP(ctx context.Context) error {
	if b.config.Port <= 0 {
		return nil
	}

	ln, err := net.Listen("tcp", ":"+strconv.Itoa(b.config.Port))
	if err != nil {
		return fmt.Errorf("warden: listen on port %d: %w", b.config.Port, err)
	}

	srv := &http.Server{
		Handler:           api.NewHandler(b.session, b.registry, b.logger),
		ReadHeaderTimeout: 10 * time.Second,
	}
	b.mu.Lock()
	b.http = srv
	b.mu.Unlock()

	b.logger.InfoContext(ctx, "http server listening", "addr", ln.Addr().String())
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			b.logger.ErrorContext(ctx, "http server failed", "error", err)
		}
	}()
	return nil
}

// ──────────────────────────────────────────────────
// discord.Handler
// ──────────────────────────────────────────────────

// OnReady marks the session ready, re-registers commands and starts the
// waitlist relay. Only the first ready event does the latter two.
func (b *Bot) OnReady(ctx context.Context) {
	b.supervisor.MarkReady()
	b.readyOnce.Do(func() {
		b.syncCommands(ctx, "ready")
		b.startWatcher(ctx)
	})
}

func (b *Bot) startWatcher(ctx context.Context) {
	if b.watcher == nil {
		b.logger.InfoContext(ctx, "waitlist relay disabled, no datastore configured")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopped {
		return
	}
	if err := b.watcher.Start(ctx); err != nil {
		b.logger.ErrorContext(ctx, "waitlist relay failed to start", "error", err)
		return
	}
	b.watcherStarted = true
}

// OnInvocation dispatches a slash command.
func (b *Bot) OnInvocation(ctx context.Context, inv *command.Invocation) {
	if err := b.dispatcher.Dispatch(ctx, inv); err != nil {
		b.logger.DebugContext(ctx, "invocation finished with error",
			"command", inv.Command,
			"invocation_id", inv.ID.String(),
			"error", err,
		)
	}
}

// OnMessage links pull requests mentioned in a message.
func (b *Bot) OnMessage(ctx context.Context, msg linker.Message) {
	b.linker.Handle(ctx, msg)
}

// ──────────────────────────────────────────────────
// Shutdown
// ──────────────────────────────────────────────────

func (b *Bot) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), b.config.ShutdownTimeout)
	defer cancel()

	b.mu.Lock()
	b.stopped = true
	started := b.watcherStarted
	srv := b.http
	b.mu.Unlock()

	if started {
		b.watcher.Stop(ctx)
	}
	b.supervisor.Wait()

	if srv != nil {
		if err := srv.Shutdown(ctx); err != nil {
			b.logger.WarnContext(ctx, "http server shutdown", "error", err)
		}
	}
	if err := b.session.Close(); err != nil {
		b.logger.WarnContext(ctx, "session close", "error", err)
	}
	if b.waitlist != nil {
		if err := b.waitlist.Close(ctx); err != nil {
			b.logger.WarnContext(ctx, "waitlist store close", "error", err)
		}
	}
	if c, ok := b.checkpoints.(interface{ Close() error }); ok {
		if err := c.Close(); err != nil {
			b.logger.WarnContext(ctx, "checkpoint store close", "error", err)
		}
	}

	b.logger.InfoContext(ctx, "shutdown complete")
}

// ──────────────────────────────────────────────────
// Accessors
// ──────────────────────────────────────────────────

// Commands returns the command registry.
func (b *Bot) Commands() *command.Registry { return b.commands }

// Supervisor returns the connection supervisor.
func (b *Bot) Supervisor() *supervisor.Supervisor { return b.supervisor }

// Watcher returns the waitlist relay, or nil when no store is configured.
func (b *Bot) Watcher() *watcher.Watcher { return b.watcher }

// Metrics returns the bot's metrics.
func (b *Bot) Metrics() *observability.Metrics { return b.metrics }
