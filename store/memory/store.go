// Package memory provides in-memory waitlist and checkpoint stores for tests
// and database-less runs.
package memory

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/xraph/warden/checkpoint"
	"github.com/xraph/warden/waitlist"
)

// ErrStoreClosed is returned by every call after Close.
var ErrStoreClosed = errors.New("memory: store closed")

// compile-time interface checks.
var (
	_ waitlist.Store   = (*Store)(nil)
	_ checkpoint.Store = (*Store)(nil)
)

// Store is an in-memory waitlist collection with change notifications.
type Store struct {
	mu sync.RWMutex

	docs        []map[string]any
	streams     map[*stream]struct{}
	checkpoints map[string][]byte
	now         func() time.Time

	closed bool
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		streams:     make(map[*stream]struct{}),
		checkpoints: make(map[string][]byte),
		now:         time.Now,
	}
}

// WithClock replaces the time source used for default createdAt values.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// ──────────────────────────────────────────────────
// Lifecycle
// ──────────────────────────────────────────────────

// Ping reports whether the store is open.
func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	return nil
}

// Close marks the store as closed and ends every open stream.
func (s *Store) Close(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for st := range s.streams {
		st.fail(ErrStoreClosed)
	}
	clear(s.streams)
	return nil
}

// ──────────────────────────────────────────────────
// Writes
// ──────────────────────────────────────────────────

// Insert adds a document, assigning _id and createdAt when absent, and
// notifies open streams.
func (s *Store) Insert(_ context.Context, doc map[string]any) (waitlist.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return waitlist.Entry{}, ErrStoreClosed
	}

	d := make(map[string]any, len(doc)+2)
	for k, v := range doc {
		d[k] = v
	}
	if _, ok := d[waitlist.KeyID]; !ok {
		d[waitlist.KeyID] = fmt.Sprintf("%024x", len(s.docs)+1)
	}
	if _, ok := d[waitlist.KeyCreatedAt]; !ok {
		d[waitlist.KeyCreatedAt] = s.now().UTC()
	}
	s.docs = append(s.docs, d)

	ev := s.eventAt(len(s.docs) - 1)
	for st := range s.streams {
		st.push(ev)
	}
	return ev.Entry, nil
}

// FailStreams ends every open stream with err.
func (s *Store) FailStreams(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for st := range s.streams {
		st.fail(err)
	}
	clear(s.streams)
}

// eventAt builds the change event for docs[i]. Callers hold s.mu.
func (s *Store) eventAt(i int) waitlist.ChangeEvent {
	return waitlist.ChangeEvent{
		Operation:   waitlist.OperationInsert,
		Entry:       waitlist.FromDocument(s.docs[i]),
		ResumeToken: []byte(strconv.Itoa(i + 1)),
	}
}

// ──────────────────────────────────────────────────
// waitlist.Store
// ──────────────────────────────────────────────────

// Count returns the number of documents.
func (s *Store) Count(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, ErrStoreClosed
	}
	return int64(len(s.docs)), nil
}

// Watch subscribes to inserts. Events after resumeAfter are replayed first.
func (s *Store) Watch(_ context.Context, resumeAfter []byte) (waitlist.ChangeStream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	st := newStream(s)
	if len(resumeAfter) > 0 {
		pos, err := strconv.Atoi(string(resumeAfter))
		if err != nil || pos < 0 || pos > len(s.docs) {
			return nil, fmt.Errorf("memory: invalid resume token %q", resumeAfter)
		}
		for i := pos; i < len(s.docs); i++ {
			st.push(s.eventAt(i))
		}
	}
	s.streams[st] = struct{}{}
	return st, nil
}

// Stats aggregates the in-memory collection.
func (s *Store) Stats(_ context.Context, since time.Time) (*waitlist.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	stats := &waitlist.Stats{
		Total:      int64(len(s.docs)),
		Database:   "memory",
		Collection: "waitlist",
	}

	status := make(map[string]int64)
	sources := make(map[string]int64)
	for _, d := range s.docs {
		e := waitlist.FromDocument(d)
		if !e.CreatedAt.IsZero() && !e.CreatedAt.Before(since) {
			stats.Recent++
		}

		key := e.Status
		if key == "" {
			key = "Unknown"
		}
		status[key]++

		if e.Source != "" {
			sources[e.Source]++
		}

		if stats.Latest == nil || e.CreatedAt.After(stats.Latest.CreatedAt) {
			latest := e
			stats.Latest = &latest
		}
	}

	stats.ByStatus = buckets(status, 0)
	stats.TopSources = buckets(sources, 5)
	return stats, nil
}

// buckets sorts counts descending, breaking ties by key, keeping at most
// limit entries when limit is positive.
func buckets(counts map[string]int64, limit int) []waitlist.Bucket {
	out := make([]waitlist.Bucket, 0, len(counts))
	for k, n := range counts {
		out = append(out, waitlist.Bucket{Key: k, Count: n})
	}
	slices.SortFunc(out, func(a, b waitlist.Bucket) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Key, b.Key)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// ──────────────────────────────────────────────────
// checkpoint.Store
// ──────────────────────────────────────────────────

// Load returns the saved token for name, or nil.
func (s *Store) Load(_ context.Context, name string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	return slices.Clone(s.checkpoints[name]), nil
}

// Save records token for name.
func (s *Store) Save(_ context.Context, name string, token []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	s.checkpoints[name] = slices.Clone(token)
	return nil
}
