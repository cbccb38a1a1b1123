// Package platformtest provides an in-memory platform.Platform for tests.
package platformtest

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/xraph/warden/platform"
)

// Call is one recorded mutating call.
type Call struct {
	Op         string // ban, unban, kick, timeout, delete
	GuildID    string
	UserID     string
	ChannelID  string
	Reason     string
	DeleteDays int
	Until      *time.Time
	MessageIDs []string
}

// Fake is an in-memory guild. Zero-value maps are allocated by New.
type Fake struct {
	mu sync.Mutex

	BotID    string
	Members  map[string]*platform.Member
	Users    map[string]*platform.User
	Bans     map[string]*platform.User
	Guilds   map[string]*platform.Guild
	Messages map[string][]platform.Message

	// Err, when set, is returned by every mutating call.
	Err error

	calls []Call
}

var _ platform.Platform = (*Fake)(nil)

// New creates an empty fake whose bot has botID.
func New(botID string) *Fake {
	return &Fake{
		BotID:    botID,
		Members:  make(map[string]*platform.Member),
		Users:    make(map[string]*platform.User),
		Bans:     make(map[string]*platform.User),
		Guilds:   make(map[string]*platform.Guild),
		Messages: make(map[string][]platform.Message),
	}
}

// AddMember registers a guild member and its user.
func (f *Fake) AddMember(m *platform.Member) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Members[m.User.ID] = m
	u := m.User
	f.Users[u.ID] = &u
}

// Calls returns a copy of the recorded mutating calls.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.calls)
}

// Mutations returns the recorded calls with the given op.
func (f *Fake) Mutations(op string) []Call {
	var out []Call
	for _, c := range f.Calls() {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

func (f *Fake) record(c Call) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
	return f.Err
}

// ──────────────────────────────────────────────────
// platform.Moderator
// ──────────────────────────────────────────────────

func (f *Fake) Ban(_ context.Context, guildID, userID, reason string, deleteDays int) error {
	if err := f.record(Call{Op: "ban", GuildID: guildID, UserID: userID, Reason: reason, DeleteDays: deleteDays}); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.Users[userID]
	if u == nil {
		u = &platform.User{ID: userID}
	}
	f.Bans[userID] = u
	delete(f.Members, userID)
	return nil
}

func (f *Fake) Unban(_ context.Context, guildID, userID, reason string) error {
	if err := f.record(Call{Op: "unban", GuildID: guildID, UserID: userID, Reason: reason}); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.Bans, userID)
	return nil
}

func (f *Fake) Kick(_ context.Context, guildID, userID, reason string) error {
	if err := f.record(Call{Op: "kick", GuildID: guildID, UserID: userID, Reason: reason}); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.Members, userID)
	return nil
}

func (f *Fake) Timeout(_ context.Context, guildID, userID string, until *time.Time, reason string) error {
	if err := f.record(Call{Op: "timeout", GuildID: guildID, UserID: userID, Until: until, Reason: reason}); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if m := f.Members[userID]; m != nil {
		m.TimedOutUntil = until
	}
	return nil
}

func (f *Fake) DeleteMessages(_ context.Context, channelID string, ids []string) (int, error) {
	if err := f.record(Call{Op: "delete", ChannelID: channelID, MessageIDs: slices.Clone(ids)}); err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Messages[channelID] = slices.DeleteFunc(f.Messages[channelID], func(m platform.Message) bool {
		return slices.Contains(ids, m.ID)
	})
	return len(ids), nil
}

// ──────────────────────────────────────────────────
// platform.Directory
// ──────────────────────────────────────────────────

func (f *Fake) BotUserID() string { return f.BotID }

func (f *Fake) Member(_ context.Context, _, userID string) (*platform.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.Members[userID]
	if !ok {
		return nil, platform.ErrMemberNotFound
	}
	cp := *m
	return &cp, nil
}

func (f *Fake) User(_ context.Context, userID string) (*platform.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.Users[userID]; ok {
		cp := *u
		return &cp, nil
	}
	return &platform.User{ID: userID, Username: userID, Tag: userID}, nil
}

func (f *Fake) BannedUser(_ context.Context, _, userID string) (*platform.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.Bans[userID]
	if !ok {
		return nil, platform.ErrNotBanned
	}
	cp := *u
	return &cp, nil
}

func (f *Fake) Guild(_ context.Context, guildID string) (*platform.Guild, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.Guilds[guildID]
	if !ok {
		return nil, platform.ErrGuildNotFound
	}
	cp := *g
	return &cp, nil
}

func (f *Fake) RecentMessages(_ context.Context, channelID string, limit int) ([]platform.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msgs := f.Messages[channelID]
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return slices.Clone(msgs), nil
}
