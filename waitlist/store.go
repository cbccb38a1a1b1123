package waitlist

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable is returned when no datastore is configured or connected.
var ErrUnavailable = errors.New("waitlist: store unavailable")

// OperationInsert is the only change operation Warden subscribes to.
const OperationInsert = "insert"

// ChangeEvent is one insert observed on the waitlist collection.
type ChangeEvent struct {
	Operation string
	Entry     Entry

	// ResumeToken lets a new stream continue after this event.
	ResumeToken []byte
}

// ChangeStream is an open subscription to waitlist inserts.
type ChangeStream interface {
	// Next blocks until the next event is available. It returns false when
	// the stream ends or fails; Err distinguishes the two.
	Next(ctx context.Context) bool

	// Event returns the event read by the last successful Next.
	Event() ChangeEvent

	// Err returns the error that ended the stream, if any.
	Err() error

	Close(ctx context.Context) error
}

// Bucket is a grouped count.
type Bucket struct {
	Key   string
	Count int64
}

// Stats summarizes the waitlist collection.
type Stats struct {
	Total      int64
	Recent     int64
	ByStatus   []Bucket
	TopSources []Bucket
	Latest     *Entry
	Database   string
	Collection string
}

// GrowthRate returns Recent as a percentage of Total.
func (s *Stats) GrowthRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Recent) / float64(s.Total) * 100
}

// Store is the waitlist datastore.
type Store interface {
	// Count returns the number of documents in the collection.
	Count(ctx context.Context) (int64, error)

	// Watch subscribes to inserts. A non-empty resumeAfter continues after
	// a previously observed event.
	Watch(ctx context.Context, resumeAfter []byte) (ChangeStream, error)

	// Stats aggregates the collection. Recent counts entries created at or
	// after since; TopSources holds at most five non-empty sources.
	Stats(ctx context.Context, since time.Time) (*Stats, error)

	// Ping checks connectivity.
	Ping(ctx context.Context) error

	// Close releases the store's resources.
	Close(ctx context.Context) error
}
