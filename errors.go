package warden

import (
	"errors"
	"strings"
)

// Sentinel errors returned by Bot operations.
var (
	// ErrMissingConfig is returned when required settings are absent.
	ErrMissingConfig = errors.New("warden: missing required configuration")

	// ErrNoSession is returned when a Bot is created without a session.
	ErrNoSession = errors.New("warden: session is required")

	// ErrAlreadyRunning is returned when Run is called twice.
	ErrAlreadyRunning = errors.New("warden: bot is already running")
)

// ConfigError lists the missing environment variables.
type ConfigError struct {
	Missing []string
}

func (e *ConfigError) Error() string {
	return ErrMissingConfig.Error() + ": " + strings.Join(e.Missing, ", ")
}

// Unwrap returns ErrMissingConfig.
func (e *ConfigError) Unwrap() error { return ErrMissingConfig }
