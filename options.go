package warden

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/xraph/warden/api"
	"github.com/xraph/warden/checkpoint"
	"github.com/xraph/warden/deploy"
	"github.com/xraph/warden/linker"
	"github.com/xraph/warden/platform"
	"github.com/xraph/warden/supervisor"
	"github.com/xraph/warden/waitlist"
	"github.com/xraph/warden/watcher"
)

// Session is the live platform connection the bot drives.
type Session interface {
	supervisor.Connector
	deploy.Publisher
	watcher.Notifier
	linker.Replier
	platform.Platform
	api.StatusSource

	Close() error
}

// Option configures a Bot instance.
type Option func(*Bot) error

// WithSession sets the platform session. Required.
func WithSession(s Session) Option {
	return func(b *Bot) error {
		b.session = s
		return nil
	}
}

// WithWaitlist enables the waitlist command and relay on store.
func WithWaitlist(store waitlist.Store) Option {
	return func(b *Bot) error {
		b.waitlist = store
		return nil
	}
}

// WithCheckpoints persists change-stream resume tokens in cs.
func WithCheckpoints(cs checkpoint.Store) Option {
	return func(b *Bot) error {
		b.checkpoints = cs
		return nil
	}
}

// WithLogger sets the structured logger for the Bot instance.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bot) error {
		b.logger = logger
		return nil
	}
}

// WithRegistry registers the bot's metrics on reg and serves reg on
// /metrics.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(b *Bot) error {
		b.registry = reg
		return nil
	}
}

// WithSupervisorOptions passes extra options to the connection supervisor.
func WithSupervisorOptions(opts ...supervisor.Option) Option {
	return func(b *Bot) error {
		b.supervisorOpts = append(b.supervisorOpts, opts...)
		return nil
	}
}
