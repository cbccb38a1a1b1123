package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/xraph/warden/waitlist"
)

func ctx() context.Context { return context.Background() }

// ──────────────────────────────────────────────────
// Lifecycle
// ──────────────────────────────────────────────────

func TestLifecycle(t *testing.T) {
	s := New()

	if err := s.Ping(ctx()); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(ctx()); err != nil {
		t.Fatal(err)
	}
	if err := s.Ping(ctx()); !errors.Is(err, ErrStoreClosed) {
		t.Fatalf("expected ErrStoreClosed, got %v", err)
	}
	if _, err := s.Watch(ctx(), nil); !errors.Is(err, ErrStoreClosed) {
		t.Fatalf("expected ErrStoreClosed from Watch, got %v", err)
	}
}

// ──────────────────────────────────────────────────
// waitlist.Store
// ──────────────────────────────────────────────────

func TestInsertAssignsDefaults(t *testing.T) {
	fixed := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	s := New().WithClock(func() time.Time { return fixed })

	e, err := s.Insert(ctx(), map[string]any{"name": "Ada"})
	if err != nil {
		t.Fatal(err)
	}
	if e.ID == "" {
		t.Fatal("expected generated _id")
	}
	if !e.CreatedAt.Equal(fixed) {
		t.Fatalf("CreatedAt = %v", e.CreatedAt)
	}

	n, err := s.Count(ctx())
	if err != nil || n != 1 {
		t.Fatalf("Count = %d, %v", n, err)
	}
}

func TestWatchReceivesInserts(t *testing.T) {
	s := New()
	cs, err := s.Watch(ctx(), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer cs.Close(ctx())

	if _, err := s.Insert(ctx(), map[string]any{"name": "Ada"}); err != nil {
		t.Fatal(err)
	}

	if !cs.Next(ctx()) {
		t.Fatalf("Next = false, err %v", cs.Err())
	}
	ev := cs.Event()
	if ev.Operation != waitlist.OperationInsert || ev.Entry.Name != "Ada" {
		t.Fatalf("unexpected event %+v", ev)
	}
	if len(ev.ResumeToken) == 0 {
		t.Fatal("expected resume token")
	}
}

func TestWatchResumesAfterToken(t *testing.T) {
	s := New()
	cs, err := s.Watch(ctx(), nil)
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"a", "b", "c"} {
		if _, err := s.Insert(ctx(), map[string]any{"name": name}); err != nil {
			t.Fatal(err)
		}
	}
	if !cs.Next(ctx()) {
		t.Fatal("expected first event")
	}
	token := cs.Event().ResumeToken
	cs.Close(ctx())

	resumed, err := s.Watch(ctx(), token)
	if err != nil {
		t.Fatal(err)
	}
	defer resumed.Close(ctx())

	var names []string
	for range 2 {
		if !resumed.Next(ctx()) {
			t.Fatalf("expected replayed event, err %v", resumed.Err())
		}
		names = append(names, resumed.Event().Entry.Name)
	}
	if names[0] != "b" || names[1] != "c" {
		t.Fatalf("replayed %v, want [b c]", names)
	}
}

func TestStreamEndsOnContextCancel(t *testing.T) {
	s := New()
	cs, err := s.Watch(ctx(), nil)
	if err != nil {
		t.Fatal(err)
	}

	c, cancel := context.WithCancel(ctx())
	cancel()

	if cs.Next(c) {
		t.Fatal("Next should return false after cancel")
	}
	if !errors.Is(cs.Err(), context.Canceled) {
		t.Fatalf("Err = %v, want context.Canceled", cs.Err())
	}
}

func TestFailStreams(t *testing.T) {
	s := New()
	cs, err := s.Watch(ctx(), nil)
	if err != nil {
		t.Fatal(err)
	}

	boom := errors.New("replica set lost")
	s.FailStreams(boom)

	if cs.Next(ctx()) {
		t.Fatal("Next should return false after failure")
	}
	if !errors.Is(cs.Err(), boom) {
		t.Fatalf("Err = %v", cs.Err())
	}
}

func TestStats(t *testing.T) {
	now := time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC)
	s := New()

	docs := []map[string]any{
		{"name": "old", "source": "hn", "status": "pending", "createdAt": now.Add(-72 * time.Hour)},
		{"name": "a", "source": "hn", "status": "pending", "createdAt": now.Add(-2 * time.Hour)},
		{"name": "b", "source": "x", "status": "approved", "createdAt": now.Add(-1 * time.Hour)},
		{"name": "c", "createdAt": now.Add(-30 * time.Minute)},
	}
	for _, d := range docs {
		if _, err := s.Insert(ctx(), d); err != nil {
			t.Fatal(err)
		}
	}

	stats, err := s.Stats(ctx(), now.Add(-24*time.Hour))
	if err != nil {
		t.Fatal(err)
	}

	if stats.Total != 4 || stats.Recent != 3 {
		t.Fatalf("Total=%d Recent=%d", stats.Total, stats.Recent)
	}
	if len(stats.TopSources) != 2 || stats.TopSources[0].Key != "hn" || stats.TopSources[0].Count != 2 {
		t.Fatalf("TopSources = %+v", stats.TopSources)
	}
	if len(stats.ByStatus) != 3 || stats.ByStatus[0].Key != "pending" {
		t.Fatalf("ByStatus = %+v", stats.ByStatus)
	}
	if stats.Latest == nil || stats.Latest.Name != "c" {
		t.Fatalf("Latest = %+v", stats.Latest)
	}
}

// ──────────────────────────────────────────────────
// checkpoint.Store
// ──────────────────────────────────────────────────

func TestCheckpoints(t *testing.T) {
	s := New()

	got, err := s.Load(ctx(), "waitlist")
	if err != nil || got != nil {
		t.Fatalf("Load empty = %q, %v", got, err)
	}

	if err := s.Save(ctx(), "waitlist", []byte("tok")); err != nil {
		t.Fatal(err)
	}
	got, err = s.Load(ctx(), "waitlist")
	if err != nil || string(got) != "tok" {
		t.Fatalf("Load = %q, %v", got, err)
	}
}
