package supervisor

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy describes the login retry schedule.
type Policy struct {
	Initial    time.Duration
	Multiplier float64
	Max        time.Duration

	// MaxAttempts bounds the number of login attempts. Zero retries forever.
	MaxAttempts int

	// Jitter is the randomization factor applied to each delay.
	Jitter float64
}

// DefaultPolicy retries forever, starting at 5s and growing by 1.5x up to 60s.
func DefaultPolicy() Policy {
	return Policy{
		Initial:    5 * time.Second,
		Multiplier: 1.5,
		Max:        60 * time.Second,
	}
}

// NewBackOff returns a fresh backoff for p. BackOff implementations are
// stateful; call NewBackOff once per Run.
func (p Policy) NewBackOff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.Initial
	bo.Multiplier = p.Multiplier
	bo.MaxInterval = p.Max
	bo.RandomizationFactor = p.Jitter
	bo.MaxElapsedTime = 0
	bo.Reset()

	if p.MaxAttempts > 0 {
		return backoff.WithMaxRetries(bo, uint64(p.MaxAttempts-1))
	}
	return bo
}
