package warden_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/xraph/warden"
	"github.com/xraph/warden/command"
	"github.com/xraph/warden/command/commandtest"
	"github.com/xraph/warden/discord"
	"github.com/xraph/warden/id"
	"github.com/xraph/warden/linker"
	"github.com/xraph/warden/permission"
	"github.com/xraph/warden/platform"
	"github.com/xraph/warden/platform/platformtest"
	"github.com/xraph/warden/reply"
	"github.com/xraph/warden/store/memory"
	"github.com/xraph/warden/supervisor"
	"github.com/xraph/warden/watcher"
)

// fakeSession is an in-memory Session that fires the ready event after a
// successful Open.
type fakeSession struct {
	*platformtest.Fake

	openErr error

	mu        sync.Mutex
	handler   discord.Handler
	opens     int
	published []int
	renames   []string
	sent      [][]reply.Card
	replies   [][]reply.Card
	closed    bool
	events    sync.WaitGroup
}

var _ warden.Session = (*fakeSession)(nil)

func newFakeSession() *fakeSession {
	return &fakeSession{Fake: platformtest.New("900000000000000009")}
}

func (f *fakeSession) SetHandler(h discord.Handler) { f.handler = h }

func (f *fakeSession) Open(ctx context.Context) error {
	f.mu.Lock()
	f.opens++
	f.mu.Unlock()
	if f.openErr != nil {
		return f.openErr
	}
	f.events.Add(1)
	go func() {
		defer f.events.Done()
		f.handler.OnReady(ctx)
	}()
	return nil
}

func (f *fakeSession) Publish(_ context.Context, defs []command.Definition) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, len(defs))
	return len(defs), nil
}

func (f *fakeSession) RenameChannel(_ context.Context, _, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.renames = append(f.renames, name)
	return nil
}

func (f *fakeSession) SendCards(_ context.Context, _ string, cards ...reply.Card) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, cards)
	return nil
}

func (f *fakeSession) ReplyCards(_ context.Context, _ linker.Message, cards []reply.Card) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies = append(f.replies, cards)
	return nil
}

func (f *fakeSession) BotTag() string  { return "Warden#0420" }
func (f *fakeSession) GuildCount() int { return 1 }

func (f *fakeSession) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeSession) snapshot() (published []int, renames []string, sent int, closed bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.published...), append([]string(nil), f.renames...), len(f.sent), f.closed
}

func testConfig() warden.Config {
	cfg := warden.DefaultConfig()
	cfg.Token = "token"
	cfg.ClientID = "app"
	cfg.GuildID = "100000000000000001"
	cfg.GitHubRepo = "xraph/warden"
	cfg.Port = 0
	cfg.LoginWarnAfter = 0
	cfg.ReadyWarnAfter = 0
	cfg.DeployTimeout = time.Second
	cfg.ShutdownTimeout = time.Second
	return cfg
}

func noSleep(context.Context, time.Duration) error { return nil }

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestNewRequiresConfig(t *testing.T) {
	_, err := warden.New(warden.Config{}, warden.WithSession(newFakeSession()))
	if !errors.Is(err, warden.ErrMissingConfig) {
		t.Fatalf("expected ErrMissingConfig, got %v", err)
	}
	var cerr *warden.ConfigError
	if !errors.As(err, &cerr) || len(cerr.Missing) != 3 {
		t.Fatalf("expected three missing settings, got %v", err)
	}
}

func TestNewRequiresSession(t *testing.T) {
	if _, err := warden.New(testConfig()); !errors.Is(err, warden.ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
}

func TestNewRegistersBuiltins(t *testing.T) {
	bot, err := warden.New(testConfig(), warden.WithSession(newFakeSession()))
	if err != nil {
		t.Fatal(err)
	}
	if n := bot.Commands().Len(); n != 10 {
		t.Fatalf("registered %d commands, want 10", n)
	}
	if bot.Watcher() != nil {
		t.Fatal("watcher must be disabled without a waitlist store")
	}
}

func TestParseConfig(t *testing.T) {
	cfg, err := warden.ParseConfig(map[string]string{
		"DISCORD_TOKEN":         "token",
		"CLIENT_ID":             "app",
		"GUILD_ID":              "guild",
		"WARDEN_DEPLOY_TIMEOUT": "30s",
	})
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Port != 3000 || cfg.MongoDatabase != "test" || cfg.WaitlistCollection != "waitlist" {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	if cfg.PrivilegedRoleID != warden.DefaultPrivilegedRoleID || cfg.WaitlistChannelID != warden.DefaultWaitlistChannelID {
		t.Fatalf("guild defaults not applied: %+v", cfg)
	}
	if cfg.DeployTimeout != 30*time.Second {
		t.Fatalf("deploy timeout = %v", cfg.DeployTimeout)
	}

	p := cfg.Policy()
	if p.Initial != 5*time.Second || p.Multiplier != 1.5 || p.Max != time.Minute || p.MaxAttempts != 0 {
		t.Fatalf("unexpected policy %+v", p)
	}
}

func TestParseConfigMissing(t *testing.T) {
	_, err := warden.ParseConfig(map[string]string{"CLIENT_ID": "app"})
	var cerr *warden.ConfigError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
	if len(cerr.Missing) != 2 || cerr.Missing[0] != "DISCORD_TOKEN" || cerr.Missing[1] != "GUILD_ID" {
		t.Fatalf("missing = %v", cerr.Missing)
	}
}

func TestRunLifecycle(t *testing.T) {
	sess := newFakeSession()
	store := memory.New()
	bot, err := warden.New(testConfig(),
		warden.WithSession(sess),
		warden.WithWaitlist(store),
		warden.WithSupervisorOptions(supervisor.WithSleep(noSleep)),
	)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- bot.Run(ctx) }()

	waitFor(t, "waitlist relay", func() bool { return bot.Watcher().State() == watcher.StateActive })
	if published, _, _, _ := sess.snapshot(); len(published) != 2 || published[0] != 10 {
		t.Fatalf("expected startup and ready registrations of 10 commands, got %v", published)
	}
	if bot.Supervisor().State() != supervisor.StateReady {
		t.Fatalf("supervisor state = %s", bot.Supervisor().State())
	}

	if _, err := store.Insert(ctx, map[string]any{"name": "Ada", "email": "ada@example.com"}); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "notification", func() bool {
		_, _, sent, _ := sess.snapshot()
		return sent == 1
	})
	if _, renames, _, _ := sess.snapshot(); len(renames) != 1 || renames[0] != "1 users - waitlisted" {
		t.Fatalf("renames = %v", renames)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	sess.events.Wait()

	if _, _, _, closed := sess.snapshot(); !closed {
		t.Fatal("session not closed on shutdown")
	}
	if bot.Watcher().State() != watcher.StateTerminated {
		t.Fatalf("watcher state = %s", bot.Watcher().State())
	}
	if err := bot.Run(context.Background()); !errors.Is(err, warden.ErrAlreadyRunning) {
		t.Fatalf("second Run: expected ErrAlreadyRunning, got %v", err)
	}
}

func TestRunLoginExhausted(t *testing.T) {
	sess := newFakeSession()
	sess.openErr = errors.New("invalid token")

	cfg := testConfig()
	cfg.LoginMaxAttempts = 3
	bot, err := warden.New(cfg,
		warden.WithSession(sess),
		warden.WithSupervisorOptions(supervisor.WithSleep(noSleep)),
	)
	if err != nil {
		t.Fatal(err)
	}

	err = bot.Run(context.Background())
	if !errors.Is(err, supervisor.ErrLoginExhausted) {
		t.Fatalf("expected ErrLoginExhausted, got %v", err)
	}
	if sess.opens != 3 {
		t.Fatalf("opens = %d, want 3", sess.opens)
	}
}

func TestOnInvocationEnforcesPrivilege(t *testing.T) {
	sess := newFakeSession()
	bot, err := warden.New(testConfig(), warden.WithSession(sess))
	if err != nil {
		t.Fatal(err)
	}

	rec := &commandtest.Recorder{}
	bot.OnInvocation(context.Background(), &command.Invocation{
		ID:        id.NewInvocationID(),
		Command:   "ban",
		Caller:    platform.Caller{UserID: "200000000000000002", Tag: "someone"},
		GuildID:   "100000000000000001",
		Options:   map[string]any{"target": "400000000000000004"},
		Responder: rec,
	})

	c, ok := rec.Last()
	if !ok || c.Message.Content != permission.DenyMessage || !c.Ephemeral {
		t.Fatalf("expected deny reply, got %+v", rec.Calls())
	}
	if len(sess.Calls()) != 0 {
		t.Fatal("denied invocation reached the platform")
	}
}

func TestOnMessageLinksPullRequests(t *testing.T) {
	sess := newFakeSession()
	bot, err := warden.New(testConfig(), warden.WithSession(sess))
	if err != nil {
		t.Fatal(err)
	}

	bot.OnMessage(context.Background(), linker.Message{ID: "m1", ChannelID: "c1", Content: "fixed in PR #12 and #12"})

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if len(sess.replies) != 1 || len(sess.replies[0]) != 1 {
		t.Fatalf("expected one reply with one card, got %v", sess.replies)
	}
	if sess.replies[0][0].URL != "https://github.com/xraph/warden/pull/12" {
		t.Fatalf("unexpected card %+v", sess.replies[0][0])
	}
}
