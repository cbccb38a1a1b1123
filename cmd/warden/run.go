package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/xraph/warden"
	"github.com/xraph/warden/discord"
	mongostore "github.com/xraph/warden/store/mongo"
	redisstore "github.com/xraph/warden/store/redis"
)

func newRunCmd(opts *rootOptions) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Connect to Discord and serve commands until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := opts.newLogger(cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			cfg, err := warden.LoadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg, logger)
		},
	}
	cmd.Flags().IntVar(&port, "port", 3000, "HTTP status port, 0 disables (overrides PORT)")
	return cmd
}

func run(ctx context.Context, cfg warden.Config, logger *slog.Logger) error {
	sess, err := discord.New(cfg.Token, cfg.ClientID, cfg.GuildID, discord.WithLogger(logger))
	if err != nil {
		return err
	}

	opts := []warden.Option{
		warden.WithSession(sess),
		warden.WithLogger(logger),
	}
	opts = append(opts, openWaitlist(ctx, cfg, logger)...)
	opts = append(opts, openCheckpoints(ctx, cfg, logger)...)

	bot, err := warden.New(cfg, opts...)
	if err != nil {
		return err
	}
	return bot.Run(ctx)
}

// openWaitlist connects the waitlist datastore. Without it the bot still
// runs with the waitlist features disabled.
func openWaitlist(ctx context.Context, cfg warden.Config, logger *slog.Logger) []warden.Option {
	if cfg.MongoURI == "" {
		logger.WarnContext(ctx, "MONGODB_URI not set, waitlist features disabled")
		return nil
	}

	store, err := mongostore.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase, cfg.WaitlistCollection)
	if err != nil {
		logger.ErrorContext(ctx, "mongodb connection failed, waitlist features disabled", "error", err)
		return nil
	}
	if err := store.Migrate(ctx); err != nil {
		logger.WarnContext(ctx, "waitlist index creation failed", "error", err)
	}
	logger.InfoContext(ctx, "connected to mongodb",
		"database", cfg.MongoDatabase,
		"collection", cfg.WaitlistCollection,
	)
	return []warden.Option{warden.WithWaitlist(store)}
}

// openCheckpoints connects the resume-token store. Without it checkpoints
// are kept in memory and lost on restart.
func openCheckpoints(ctx context.Context, cfg warden.Config, logger *slog.Logger) []warden.Option {
	if cfg.RedisURL == "" || cfg.MongoURI == "" {
		return nil
	}

	store, err := redisstore.Connect(ctx, cfg.RedisURL)
	if err != nil {
		logger.WarnContext(ctx, "redis connection failed, checkpoints kept in memory", "error", err)
		return nil
	}
	return []warden.Option{warden.WithCheckpoints(store)}
}
