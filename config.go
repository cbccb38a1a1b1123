package warden

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/xraph/warden/supervisor"
)

// Default identifiers of the community guild.
const (
	DefaultPrivilegedRoleID  = "1461628130773962854"
	DefaultWaitlistChannelID = "1461852210412654756"
)

// Config holds the configuration for a Bot. Fields are read from the
// environment by LoadConfig.
type Config struct {
	// Token is the bot token.
	Token string `env:"DISCORD_TOKEN"`

	// ClientID is the application ID commands are registered under.
	ClientID string `env:"CLIENT_ID"`

	// GuildID is the guild commands are registered in.
	GuildID string `env:"GUILD_ID"`

	// MongoURI enables the waitlist features when set.
	MongoURI           string `env:"MONGODB_URI"`
	MongoDatabase      string `env:"MONGODB_DB_NAME" envDefault:"test"`
	WaitlistCollection string `env:"WARDEN_WAITLIST_COLLECTION" envDefault:"waitlist"`

	// GitHubRepo ("owner/name") enables pull-request linking when set.
	GitHubRepo string `env:"GITHUB_REPO"`

	// RedisURL persists change-stream checkpoints when set; otherwise they
	// are kept in memory.
	RedisURL string `env:"REDIS_URL"`

	// Port is the HTTP status port. Zero disables the server.
	Port int `env:"PORT" envDefault:"3000"`

	PrivilegedRoleID  string `env:"WARDEN_PRIVILEGED_ROLE_ID" envDefault:"1461628130773962854"`
	WaitlistChannelID string `env:"WARDEN_WAITLIST_CHANNEL_ID" envDefault:"1461852210412654756"`

	// DeployTimeout caps a single command registration.
	DeployTimeout time.Duration `env:"WARDEN_DEPLOY_TIMEOUT" envDefault:"120s"`

	LoginWarnAfter time.Duration `env:"WARDEN_LOGIN_WARN_AFTER" envDefault:"15s"`
	ReadyWarnAfter time.Duration `env:"WARDEN_READY_WARN_AFTER" envDefault:"60s"`

	BackoffInitial    time.Duration `env:"WARDEN_BACKOFF_INITIAL" envDefault:"5s"`
	BackoffMultiplier float64       `env:"WARDEN_BACKOFF_MULTIPLIER" envDefault:"1.5"`
	BackoffMax        time.Duration `env:"WARDEN_BACKOFF_MAX" envDefault:"60s"`

	// LoginMaxAttempts bounds login retries. Zero retries forever.
	LoginMaxAttempts int `env:"WARDEN_LOGIN_MAX_ATTEMPTS" envDefault:"0"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `env:"WARDEN_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// DefaultConfig returns a Config with every default applied and no
// credentials.
func DefaultConfig() Config {
	return Config{
		MongoDatabase:      "test",
		WaitlistCollection: "waitlist",
		Port:               3000,
		PrivilegedRoleID:   DefaultPrivilegedRoleID,
		WaitlistChannelID:  DefaultWaitlistChannelID,
		DeployTimeout:      120 * time.Second,
		LoginWarnAfter:     15 * time.Second,
		ReadyWarnAfter:     60 * time.Second,
		BackoffInitial:     5 * time.Second,
		BackoffMultiplier:  1.5,
		BackoffMax:         60 * time.Second,
		ShutdownTimeout:    10 * time.Second,
	}
}

// LoadConfig reads the configuration from the process environment and
// validates it.
func LoadConfig() (Config, error) {
	return ParseConfig(nil)
}

// ParseConfig reads the configuration from environ, or from the process
// environment when environ is nil, and validates it.
func ParseConfig(environ map[string]string) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: environ}); err != nil {
		return cfg, fmt.Errorf("warden: parse env: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate reports the missing required settings as a *ConfigError.
func (c Config) Validate() error {
	var missing []string
	if c.Token == "" {
		missing = append(missing, "DISCORD_TOKEN")
	}
	if c.ClientID == "" {
		missing = append(missing, "CLIENT_ID")
	}
	if c.GuildID == "" {
		missing = append(missing, "GUILD_ID")
	}
	if len(missing) > 0 {
		return &ConfigError{Missing: missing}
	}
	return nil
}

// Policy returns the login retry policy.
func (c Config) Policy() supervisor.Policy {
	p := supervisor.DefaultPolicy()
	if c.BackoffInitial > 0 {
		p.Initial = c.BackoffInitial
	}
	if c.BackoffMultiplier > 0 {
		p.Multiplier = c.BackoffMultiplier
	}
	if c.BackoffMax > 0 {
		p.Max = c.BackoffMax
	}
	p.MaxAttempts = c.LoginMaxAttempts
	return p
}

// LogSummary logs which settings are present. Secrets are reported by
// length only.
func (c Config) LogSummary(ctx context.Context, logger *slog.Logger) {
	logger.InfoContext(ctx, "environment check",
		"discord_token", secret(c.Token),
		"client_id", present(c.ClientID),
		"guild_id", present(c.GuildID),
		"mongodb_uri", present(c.MongoURI),
		"mongodb_db", c.MongoDatabase,
		"github_repo", c.GitHubRepo,
		"redis_url", present(c.RedisURL),
		"port", c.Port,
	)
}

func present(v string) string {
	if v == "" {
		return "missing"
	}
	return "set"
}

func secret(v string) string {
	if v == "" {
		return "missing"
	}
	return fmt.Sprintf("set (length %d)", len(v))
}
