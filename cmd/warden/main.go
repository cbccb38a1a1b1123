// Command warden runs the Warden Discord bot.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	logLevel  string
	logFormat string
}

// logEnv holds the environment defaults for the logging flags.
type logEnv struct {
	Level  string `env:"WARDEN_LOG_LEVEL"  envDefault:"info"`
	Format string `env:"WARDEN_LOG_FORMAT" envDefault:"text"`
}

func main() {
	if err := newRootCmd(nil).Execute(); err != nil {
		os.Exit(1)
	}
}

// newRootCmd builds the command tree. A nil environ reads the process
// environment.
func newRootCmd(environ map[string]string) *cobra.Command {
	opts := &rootOptions{}

	defaults := logEnv{Level: "info", Format: "text"}
	if err := env.ParseWithOptions(&defaults, env.Options{Environment: environ}); err != nil {
		fmt.Fprintf(os.Stderr, "warden: reading logging environment: %v\n", err)
	}

	root := &cobra.Command{
		Use:           "warden",
		Short:         "Moderation and waitlist notification bot for Discord",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", defaults.Level,
		"log level: debug, info, warn or error")
	root.PersistentFlags().StringVar(&opts.logFormat, "log-format", defaults.Format,
		"log format: text or json")

	root.AddCommand(newRunCmd(opts), newDeployCmd(opts))
	return root
}

// newLogger builds the process logger and installs it as the slog default.
func (o *rootOptions) newLogger(w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(o.logLevel)); err != nil {
		return nil, fmt.Errorf("invalid --log-level %q: %w", o.logLevel, err)
	}

	hopts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	switch strings.ToLower(o.logFormat) {
	case "json":
		h = slog.NewJSONHandler(w, hopts)
	case "text", "":
		h = slog.NewTextHandler(w, hopts)
	default:
		return nil, fmt.Errorf("invalid --log-format %q", o.logFormat)
	}

	logger := slog.New(h)
	slog.SetDefault(logger)
	return logger, nil
}
