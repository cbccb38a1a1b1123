// Package checkpoint persists change-stream resume tokens so the waitlist
// watcher can continue where it left off after a restart.
package checkpoint

import "context"

// Store saves and loads resume tokens by stream name.
type Store interface {
	// Load returns the last saved token, or nil when none exists.
	Load(ctx context.Context, stream string) ([]byte, error)

	// Save records token as the latest position of stream.
	Save(ctx context.Context, stream string, token []byte) error
}
