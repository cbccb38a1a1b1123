// Package warden is a moderation and notification bot for a single Discord
// guild.
//
// Warden registers slash commands, enforces a single privileged role for
// moderation actions, links pull requests mentioned in chat, and relays
// inserts on a MongoDB waitlist collection into a notification channel.
//
// Key features:
//   - Declarative command definitions with JSON Schema option validation
//   - Central privilege enforcement and exactly-once failure replies
//   - Command registration raced against a fixed timeout, before and after ready
//   - Login retried with exponential backoff and readiness watchdogs
//   - Change-stream relay with resumable checkpoints (Redis or memory)
//   - Prometheus metrics, OpenTelemetry spans and structured logging
//
// Quick start:
//
//	cfg, err := warden.LoadConfig()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	sess, err := discord.New(cfg.Token, cfg.ClientID, cfg.GuildID)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	bot, err := warden.New(cfg, warden.WithSession(sess))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	if err := bot.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
package warden
