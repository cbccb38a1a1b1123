package watcher_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/xraph/warden/ratelimit"
	"github.com/xraph/warden/reply"
	"github.com/xraph/warden/store/memory"
	"github.com/xraph/warden/watcher"
)

const channel = "1461852210412654756"

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func ctx() context.Context { return context.Background() }

type stubNotifier struct {
	mu      sync.Mutex
	renames []string
	cards   []reply.Card
	sendErr error
	sent    chan struct{}
}

func newNotifier() *stubNotifier {
	return &stubNotifier{sent: make(chan struct{}, 64)}
}

func (n *stubNotifier) RenameChannel(_ context.Context, channelID, name string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if channelID != channel {
		return errors.New("wrong channel")
	}
	n.renames = append(n.renames, name)
	return nil
}

func (n *stubNotifier) SendCards(_ context.Context, _ string, cards ...reply.Card) error {
	n.mu.Lock()
	n.cards = append(n.cards, cards...)
	err := n.sendErr
	n.mu.Unlock()
	n.sent <- struct{}{}
	return err
}

func (n *stubNotifier) snapshot() ([]string, []reply.Card) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.renames...), append([]reply.Card(nil), n.cards...)
}

func waitSent(t *testing.T, n *stubNotifier, count int) {
	t.Helper()
	for i := 0; i < count; i++ {
		select {
		case <-n.sent:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for notification %d", i+1)
		}
	}
}

func waitState(t *testing.T, w *watcher.Watcher, want watcher.State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if w.State() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("state = %s, want %s", w.State(), want)
}

func TestRelaysInsert(t *testing.T) {
	store := memory.New()
	for _, name := range []string{"x", "y"} {
		if _, err := store.Insert(ctx(), map[string]any{"name": name}); err != nil {
			t.Fatal(err)
		}
	}

	n := newNotifier()
	w := watcher.New(store, n, channel)
	if err := w.Start(ctx()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop(ctx())

	if w.State() != watcher.StateActive {
		t.Fatalf("state = %s, want active", w.State())
	}

	if _, err := store.Insert(ctx(), map[string]any{"name": "Ada", "email": "a@x.com"}); err != nil {
		t.Fatal(err)
	}
	waitSent(t, n, 1)

	renames, cards := n.snapshot()
	if len(renames) != 1 || renames[0] != "3 users - waitlisted" {
		t.Fatalf("renames = %v", renames)
	}
	if len(cards) != 1 {
		t.Fatalf("expected 1 card, got %d", len(cards))
	}
	if got := len(cards[0].Fields); got != 3 {
		t.Fatalf("expected 3 fields, got %d: %+v", got, cards[0].Fields)
	}
	if cards[0].Title != watcher.Title {
		t.Fatalf("Title = %q", cards[0].Title)
	}
}

func TestStartFailsWhenStoreUnavailable(t *testing.T) {
	store := memory.New()
	if err := store.Close(ctx()); err != nil {
		t.Fatal(err)
	}

	w := watcher.New(store, newNotifier(), channel)
	err := w.Start(ctx())
	if !errors.Is(err, watcher.ErrStreamFailed) {
		t.Fatalf("expected ErrStreamFailed, got %v", err)
	}
	if w.State() != watcher.StateErrored {
		t.Fatalf("state = %s, want errored", w.State())
	}
	w.Stop(ctx())
}

func TestStartTwice(t *testing.T) {
	w := watcher.New(memory.New(), newNotifier(), channel)
	if err := w.Start(ctx()); err != nil {
		t.Fatal(err)
	}
	defer w.Stop(ctx())

	if err := w.Start(ctx()); !errors.Is(err, watcher.ErrAlreadyStarted) {
		t.Fatalf("expected ErrAlreadyStarted, got %v", err)
	}
}

func TestStreamErrorMovesToErrored(t *testing.T) {
	store := memory.New()
	w := watcher.New(store, newNotifier(), channel)
	if err := w.Start(ctx()); err != nil {
		t.Fatal(err)
	}
	defer w.Stop(ctx())

	boom := errors.New("cursor killed")
	store.FailStreams(boom)

	waitState(t, w, watcher.StateErrored)
	if !errors.Is(w.Err(), watcher.ErrStreamFailed) || !errors.Is(w.Err(), boom) {
		t.Fatalf("Err = %v", w.Err())
	}
}

func TestStopTerminates(t *testing.T) {
	w := watcher.New(memory.New(), newNotifier(), channel)
	if err := w.Start(ctx()); err != nil {
		t.Fatal(err)
	}

	w.Stop(ctx())

	if w.State() != watcher.StateTerminated {
		t.Fatalf("state = %s, want terminated", w.State())
	}
}

func TestSendFailureKeepsActive(t *testing.T) {
	store := memory.New()
	n := newNotifier()
	n.sendErr = errors.New("missing access")

	w := watcher.New(store, n, channel)
	if err := w.Start(ctx()); err != nil {
		t.Fatal(err)
	}
	defer w.Stop(ctx())

	for _, name := range []string{"a", "b"} {
		if _, err := store.Insert(ctx(), map[string]any{"name": name}); err != nil {
			t.Fatal(err)
		}
	}
	waitSent(t, n, 2)

	if w.State() != watcher.StateActive {
		t.Fatalf("state = %s, want active", w.State())
	}
}

func waitRenamed(t *testing.T, n *stubNotifier, want string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if renames, _ := n.snapshot(); len(renames) > 0 && renames[len(renames)-1] == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	renames, _ := n.snapshot()
	t.Fatalf("channel never renamed to %q, renames = %v", want, renames)
}

func insertAndWait(t *testing.T, store *memory.Store, n *stubNotifier, name string) {
	t.Helper()
	if _, err := store.Insert(ctx(), map[string]any{"name": name}); err != nil {
		t.Fatal(err)
	}
	waitSent(t, n, 1)
}

func TestThrottledRenameSettlesOnLatestCount(t *testing.T) {
	store := memory.New()
	n := newNotifier()
	limiter := ratelimit.New(ratelimit.Limit{Events: 1, Per: 150 * time.Millisecond})

	w := watcher.New(store, n, channel, watcher.WithRenameLimiter(limiter))
	if err := w.Start(ctx()); err != nil {
		t.Fatal(err)
	}
	defer w.Stop(ctx())

	for _, name := range []string{"a", "b", "c"} {
		insertAndWait(t, store, n, name)
	}
	waitRenamed(t, n, "3 users - waitlisted")

	renames, cards := n.snapshot()
	if renames[0] != "1 users - waitlisted" {
		t.Fatalf("first rename = %q", renames[0])
	}
	if len(renames) > 3 {
		t.Fatalf("expected at most one rename per insert, got %v", renames)
	}
	if len(cards) != 3 {
		t.Fatalf("throttled rename must not drop notifications, got %d cards", len(cards))
	}
}

func TestQueuedRenameAbandonedOnStop(t *testing.T) {
	store := memory.New()
	n := newNotifier()
	limiter := ratelimit.New(ratelimit.Limit{Events: 1, Per: time.Hour})

	w := watcher.New(store, n, channel, watcher.WithRenameLimiter(limiter))
	if err := w.Start(ctx()); err != nil {
		t.Fatal(err)
	}

	insertAndWait(t, store, n, "a")
	insertAndWait(t, store, n, "b")
	w.Stop(ctx())

	renames, cards := n.snapshot()
	if len(renames) != 1 || renames[0] != "1 users - waitlisted" {
		t.Fatalf("renames = %v", renames)
	}
	if len(cards) != 2 {
		t.Fatalf("expected 2 cards, got %d", len(cards))
	}
}

func TestResumesFromCheckpoint(t *testing.T) {
	store := memory.New()
	n := newNotifier()

	first := watcher.New(store, n, channel, watcher.WithCheckpoints(store))
	if err := first.Start(ctx()); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"a", "b"} {
		if _, err := store.Insert(ctx(), map[string]any{"name": name}); err != nil {
			t.Fatal(err)
		}
	}
	waitSent(t, n, 2)
	first.Stop(ctx())

	if _, err := store.Insert(ctx(), map[string]any{"name": "missed"}); err != nil {
		t.Fatal(err)
	}

	second := watcher.New(store, n, channel, watcher.WithCheckpoints(store))
	if err := second.Start(ctx()); err != nil {
		t.Fatal(err)
	}
	defer second.Stop(ctx())
	waitSent(t, n, 1)

	_, cards := n.snapshot()
	if len(cards) != 3 {
		t.Fatalf("expected 3 cards, got %d", len(cards))
	}
	if got := cards[2].Fields[0].Value; got != "missed" {
		t.Fatalf("resumed card name = %q, want missed", got)
	}
}
