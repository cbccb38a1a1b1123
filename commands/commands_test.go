package commands_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/xraph/warden/command"
	"github.com/xraph/warden/command/commandtest"
	"github.com/xraph/warden/commands"
	"github.com/xraph/warden/id"
	"github.com/xraph/warden/permission"
	"github.com/xraph/warden/platform"
	"github.com/xraph/warden/platform/platformtest"
	"github.com/xraph/warden/reply"
	"github.com/xraph/warden/store/memory"
	"github.com/xraph/warden/waitlist"
)

const (
	guildID     = "100000000000000001"
	channelID   = "300000000000000003"
	founderRole = "1461628130773962854"
	botID       = "900000000000000009"
	modID       = "200000000000000002"
	targetID    = "400000000000000004"
)

var now = time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

type harness struct {
	plat    *platformtest.Fake
	store   *memory.Store
	repo    string
	retract []func()
	defs    map[string]command.Definition
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		plat:  platformtest.New(botID),
		store: memory.New().WithClock(func() time.Time { return now }),
		repo:  "xraph/warden",
	}
	h.plat.AddMember(&platform.Member{
		User:  platform.User{ID: modID, Username: "mod", Tag: "mod#0001"},
		Roles: []platform.Role{{ID: founderRole, Name: "Founder", Position: 5}},
	})
	h.plat.AddMember(&platform.Member{
		User: platform.User{ID: targetID, Username: "target", Tag: "target#0002"},
	})
	h.plat.AddMember(&platform.Member{
		User: platform.User{ID: botID, Username: "warden", Tag: "Warden#0420", Bot: true},
	})
	return h
}

func (h *harness) build() {
	h.defs = make(map[string]command.Definition)
	for _, def := range commands.All(commands.Deps{
		Platform:  h.plat,
		Gate:      permission.NewGate(founderRole),
		Waitlist:  h.store,
		Repo:      h.repo,
		Now:       func() time.Time { return now },
		AfterFunc: func(_ time.Duration, f func()) { h.retract = append(h.retract, f) },
	}) {
		h.defs[def.Name] = def
	}
}

// run invokes the named handler directly as the founder moderator.
func (h *harness) run(t *testing.T, name string, opts map[string]any) *commandtest.Recorder {
	t.Helper()
	if h.defs == nil {
		h.build()
	}
	def, ok := h.defs[name]
	if !ok {
		t.Fatalf("no command %q", name)
	}

	rec := &commandtest.Recorder{}
	inv := &command.Invocation{
		ID:        id.NewInvocationID(),
		Command:   name,
		Caller:    platform.Caller{UserID: modID, Tag: "mod#0001", Roles: []string{founderRole}},
		GuildID:   guildID,
		ChannelID: channelID,
		Options:   opts,
		Responder: rec,
	}
	if err := def.Handler.Handle(context.Background(), inv); err != nil {
		t.Fatalf("%s: unexpected error: %v", name, err)
	}
	return rec
}

func lastVisible(t *testing.T, rec *commandtest.Recorder) commandtest.Call {
	t.Helper()
	if n := len(rec.Visible()); n != 1 {
		t.Fatalf("expected exactly one visible reply, got %d: %+v", n, rec.Calls())
	}
	c, _ := rec.Last()
	return c
}

func fieldValue(t *testing.T, card reply.Card, name string) string {
	t.Helper()
	for _, f := range card.Fields {
		if f.Name == name {
			return f.Value
		}
	}
	t.Fatalf("card %q has no field %q", card.Title, name)
	return ""
}

func TestAllRegisters(t *testing.T) {
	h := newHarness(t)

	reg := command.NewRegistry(nil)
	defs := commands.All(commands.Deps{Platform: h.plat})
	if n := reg.Load(context.Background(), defs...); n != 10 {
		t.Fatalf("registered %d commands, want 10", n)
	}

	privileged := map[string]bool{
		"ban": true, "kick": true, "timeout": true, "untimeout": true, "unban": true, "purge": true,
	}
	for _, def := range reg.All() {
		if def.RequiresPrivilege != privileged[def.Name] {
			t.Errorf("%s: RequiresPrivilege = %v", def.Name, def.RequiresPrivilege)
		}
		if privileged[def.Name] && def.Permissions == 0 {
			t.Errorf("%s: privileged command advertises no default permissions", def.Name)
		}
	}
}

func TestTargetGuards(t *testing.T) {
	tests := []struct {
		name    string
		command string
		target  string
		want    string
	}{
		{"ban self", "ban", modID, "❌ You cannot ban yourself!"},
		{"ban bot", "ban", botID, "❌ I cannot ban myself!"},
		{"kick self", "kick", modID, "❌ You cannot kick yourself!"},
		{"kick bot", "kick", botID, "❌ I cannot kick myself!"},
		{"timeout bot", "timeout", botID, "❌ I cannot timeout myself!"},
		{"kick absent", "kick", "555555555555555555", "❌ User is not in this server!"},
		{"timeout absent", "timeout", "555555555555555555", "❌ User is not in this server!"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			rec := h.run(t, tt.command, map[string]any{"target": tt.target, "duration": int64(10)})

			c := lastVisible(t, rec)
			if !c.Ephemeral || c.Message.Content != tt.want {
				t.Fatalf("got %+v, want ephemeral %q", c, tt.want)
			}
			if calls := h.plat.Calls(); len(calls) != 0 {
				t.Fatalf("rejected command mutated the guild: %+v", calls)
			}
		})
	}
}

func TestPrivilegedTargetRejected(t *testing.T) {
	const other = "600000000000000006"
	for _, cmd := range []string{"ban", "kick", "timeout"} {
		t.Run(cmd, func(t *testing.T) {
			h := newHarness(t)
			h.plat.AddMember(&platform.Member{
				User:  platform.User{ID: other, Tag: "cofounder#0003"},
				Roles: []platform.Role{{ID: founderRole}},
			})

			rec := h.run(t, cmd, map[string]any{"target": other, "duration": int64(5)})
			c := lastVisible(t, rec)
			if c.Message.Content != "❌ You cannot "+cmd+" another Founder!" {
				t.Fatalf("unexpected reply %q", c.Message.Content)
			}
			if len(h.plat.Calls()) != 0 {
				t.Fatal("privileged target must not be touched")
			}
		})
	}
}

func TestBan(t *testing.T) {
	h := newHarness(t)
	rec := h.run(t, "ban", map[string]any{"target": targetID, "reason": "spam", "delete_messages": int64(3)})

	bans := h.plat.Mutations("ban")
	if len(bans) != 1 {
		t.Fatalf("expected 1 ban call, got %d", len(bans))
	}
	if bans[0].Reason != "spam | Banned by mod#0001" || bans[0].DeleteDays != 3 {
		t.Fatalf("unexpected ban call %+v", bans[0])
	}

	c := lastVisible(t, rec)
	if c.Ephemeral || len(c.Message.Cards) != 1 {
		t.Fatalf("expected one public card, got %+v", c)
	}
	card := c.Message.Cards[0]
	if card.Title != "🔨 User Banned" || card.Color != reply.ColorBrand {
		t.Fatalf("unexpected card %+v", card)
	}
	if got := fieldValue(t, card, "👤 User"); got != "target#0002 ("+targetID+")" {
		t.Fatalf("user field = %q", got)
	}
}

func TestBanDefaultReason(t *testing.T) {
	h := newHarness(t)
	h.run(t, "ban", map[string]any{"target": targetID})

	bans := h.plat.Mutations("ban")
	if len(bans) != 1 || bans[0].Reason != "No reason provided | Banned by mod#0001" || bans[0].DeleteDays != 0 {
		t.Fatalf("unexpected ban calls %+v", bans)
	}
}

func TestBanFailureRepliesOnce(t *testing.T) {
	h := newHarness(t)
	h.plat.Err = errors.New("missing permissions")

	rec := h.run(t, "ban", map[string]any{"target": targetID})
	c := lastVisible(t, rec)
	if !c.Ephemeral || !strings.HasPrefix(c.Message.Content, "❌ Failed to ban the user.") {
		t.Fatalf("unexpected reply %+v", c)
	}
	if strings.Contains(c.Message.Content, "missing permissions") {
		t.Fatal("reply leaked the internal error")
	}
}

func TestKick(t *testing.T) {
	h := newHarness(t)
	rec := h.run(t, "kick", map[string]any{"target": targetID})

	kicks := h.plat.Mutations("kick")
	if len(kicks) != 1 || kicks[0].Reason != "No reason provided | Kicked by mod#0001" {
		t.Fatalf("unexpected kick calls %+v", kicks)
	}
	card := lastVisible(t, rec).Message.Cards[0]
	if card.Title != "👢 User Kicked" || card.Color != reply.ColorWarning {
		t.Fatalf("unexpected card %+v", card)
	}
}

func TestTimeout(t *testing.T) {
	h := newHarness(t)
	rec := h.run(t, "timeout", map[string]any{"target": targetID, "duration": int64(90)})

	calls := h.plat.Mutations("timeout")
	if len(calls) != 1 || calls[0].Until == nil {
		t.Fatalf("unexpected timeout calls %+v", calls)
	}
	if want := now.Add(90 * time.Minute); !calls[0].Until.Equal(want) {
		t.Fatalf("until = %v, want %v", calls[0].Until, want)
	}

	card := lastVisible(t, rec).Message.Cards[0]
	if got := fieldValue(t, card, "⏱️ Duration"); got != "1h 30m" {
		t.Fatalf("duration field = %q", got)
	}
}

func TestFormatMinutes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{1, "1m"},
		{59, "59m"},
		{60, "1h"},
		{90, "1h 30m"},
		{commands.MaxTimeoutMinutes, "672h"},
	}
	for _, tt := range tests {
		if got := commands.FormatMinutes(tt.in); got != tt.want {
			t.Errorf("FormatMinutes(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestUntimeout(t *testing.T) {
	h := newHarness(t)

	rec := h.run(t, "untimeout", map[string]any{"target": targetID})
	if c := lastVisible(t, rec); c.Message.Content != "❌ This user is not timed out!" {
		t.Fatalf("unexpected reply %q", c.Message.Content)
	}

	until := now.Add(time.Hour)
	h.plat.Members[targetID].TimedOutUntil = &until

	rec = h.run(t, "untimeout", map[string]any{"target": targetID})
	calls := h.plat.Mutations("timeout")
	if len(calls) != 1 || calls[0].Until != nil {
		t.Fatalf("expected one clearing timeout call, got %+v", calls)
	}
	if card := lastVisible(t, rec).Message.Cards[0]; card.Title != "✅ Timeout Removed" {
		t.Fatalf("unexpected card %+v", card)
	}
}

func TestUnban(t *testing.T) {
	const banned = "700000000000000007"

	tests := []struct {
		name   string
		userID string
		want   string
	}{
		{"malformed", "abc", "❌ Invalid user ID format! Please provide a valid Discord user ID."},
		{"too short", "1234", "❌ Invalid user ID format! Please provide a valid Discord user ID."},
		{"not banned", "800000000000000008", "❌ This user is not banned!"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			rec := h.run(t, "unban", map[string]any{"user_id": tt.userID})
			c := lastVisible(t, rec)
			if !c.Ephemeral || c.Message.Content != tt.want {
				t.Fatalf("got %+v, want %q", c, tt.want)
			}
			if len(h.plat.Calls()) != 0 {
				t.Fatal("rejected unban mutated the guild")
			}
		})
	}

	t.Run("banned", func(t *testing.T) {
		h := newHarness(t)
		h.plat.Bans[banned] = &platform.User{ID: banned, Tag: "banned#0007"}

		rec := h.run(t, "unban", map[string]any{"user_id": banned, "reason": "appeal"})
		calls := h.plat.Mutations("unban")
		if len(calls) != 1 || calls[0].Reason != "appeal | Unbanned by mod#0001" {
			t.Fatalf("unexpected unban calls %+v", calls)
		}
		card := lastVisible(t, rec).Message.Cards[0]
		if got := fieldValue(t, card, "👤 User"); got != "banned#0007 ("+banned+")" {
			t.Fatalf("user field = %q", got)
		}
	})
}

func TestPurgeSkipsOldMessages(t *testing.T) {
	h := newHarness(t)
	h.plat.Messages[channelID] = []platform.Message{
		{ID: "m1", CreatedAt: now.Add(-20 * 24 * time.Hour)},
		{ID: "m2", CreatedAt: now.Add(-15 * 24 * time.Hour)},
		{ID: "m3", CreatedAt: now.Add(-time.Hour)},
		{ID: "m4", CreatedAt: now.Add(-time.Minute)},
		{ID: "m5", CreatedAt: now.Add(-time.Second)},
	}

	rec := h.run(t, "purge", map[string]any{"amount": int64(5)})

	deletes := h.plat.Mutations("delete")
	if len(deletes) != 1 {
		t.Fatalf("expected one bulk delete, got %d", len(deletes))
	}
	if got := strings.Join(deletes[0].MessageIDs, ","); got != "m3,m4,m5" {
		t.Fatalf("deleted %q", got)
	}

	calls := rec.Calls()
	if len(calls) != 2 || calls[0].Op != "defer" || !calls[0].Ephemeral || calls[1].Op != "edit" {
		t.Fatalf("unexpected responder calls %+v", calls)
	}
	if calls[1].Message.Content != "✅ Successfully deleted 3 message(s)!" {
		t.Fatalf("unexpected confirmation %q", calls[1].Message.Content)
	}

	if len(h.retract) != 1 {
		t.Fatalf("expected one scheduled retraction, got %d", len(h.retract))
	}
	h.retract[0]()
	if last := rec.Calls()[len(rec.Calls())-1]; last.Op != "delete" {
		t.Fatalf("retraction did not delete the confirmation: %+v", last)
	}
}

func TestPurgeFailure(t *testing.T) {
	h := newHarness(t)
	h.plat.Messages[channelID] = []platform.Message{{ID: "m1", CreatedAt: now}}
	h.plat.Err = errors.New("rate limited")

	rec := h.run(t, "purge", map[string]any{"amount": int64(1)})
	c := lastVisible(t, rec)
	if !strings.HasPrefix(c.Message.Content, "❌ Failed to delete messages.") {
		t.Fatalf("unexpected reply %q", c.Message.Content)
	}
	if len(h.retract) != 0 {
		t.Fatal("failure must not schedule a retraction")
	}
}

func TestPR(t *testing.T) {
	h := newHarness(t)
	rec := h.run(t, "pr", map[string]any{"number": int64(42)})

	card := lastVisible(t, rec).Message.Cards[0]
	if card.URL != "https://github.com/xraph/warden/pull/42" || card.Color != reply.ColorGitHub {
		t.Fatalf("unexpected card %+v", card)
	}
	if card.Description != "[View PR #42 on GitHub](https://github.com/xraph/warden/pull/42)" {
		t.Fatalf("description = %q", card.Description)
	}
	if got := fieldValue(t, card, "📦 Repository"); got != "xraph/warden" {
		t.Fatalf("repository = %q", got)
	}
}

func TestPRWithoutRepo(t *testing.T) {
	h := newHarness(t)
	h.repo = ""
	rec := h.run(t, "pr", map[string]any{"number": int64(1)})

	c := lastVisible(t, rec)
	if !c.Ephemeral || !strings.Contains(c.Message.Content, "GITHUB_REPO") {
		t.Fatalf("unexpected reply %+v", c)
	}
}

func TestServer(t *testing.T) {
	h := newHarness(t)
	h.plat.Guilds[guildID] = &platform.Guild{
		ID: guildID, Name: "Xraph", OwnerID: modID, MemberCount: 42,
		ChannelCount: 7, EmojiCount: 3, RoleCount: 5, CreatedAt: now.Add(-24 * time.Hour),
	}

	card := lastVisible(t, h.run(t, "server", nil)).Message.Cards[0]
	if card.Title != "📊 Xraph Server Info" || card.Footer != "Server ID: "+guildID {
		t.Fatalf("unexpected card %+v", card)
	}
	if got := fieldValue(t, card, "👑 Owner"); got != "<@"+modID+">" {
		t.Fatalf("owner = %q", got)
	}
	if got := fieldValue(t, card, "👥 Members"); got != "42" {
		t.Fatalf("members = %q", got)
	}
}

func TestUserDefaultsToCaller(t *testing.T) {
	h := newHarness(t)
	card := lastVisible(t, h.run(t, "user", nil)).Message.Cards[0]

	if card.Title != "👤 User Info: mod#0001" || card.Footer != "User ID: "+modID {
		t.Fatalf("unexpected card %+v", card)
	}
	if got := fieldValue(t, card, "🤖 Bot"); got != "No" {
		t.Fatalf("bot = %q", got)
	}
}

func TestRoleList(t *testing.T) {
	roles := []platform.Role{
		{ID: guildID, Position: 0},
		{ID: "r1", Position: 1},
		{ID: "r3", Position: 3},
		{ID: "r2", Position: 2},
	}
	if got := commands.RoleList(roles, guildID); got != "<@&r3>, <@&r2>, <@&r1>" {
		t.Fatalf("RoleList = %q", got)
	}
	if got := commands.RoleList([]platform.Role{{ID: guildID}}, guildID); got != "None" {
		t.Fatalf("RoleList = %q, want None", got)
	}

	many := make([]platform.Role, 15)
	for i := range many {
		many[i] = platform.Role{ID: string(rune('a' + i)), Position: i}
	}
	if got := strings.Count(commands.RoleList(many, guildID), "<@&"); got != 10 {
		t.Fatalf("listed %d roles, want 10", got)
	}
}

func TestWaitlistUnavailable(t *testing.T) {
	h := newHarness(t)
	if err := h.store.Close(context.Background()); err != nil {
		t.Fatal(err)
	}

	c := lastVisible(t, h.run(t, "waitlist", nil))
	if !c.Ephemeral || c.Message.Content != "❌ MongoDB is not connected. Waitlist stats are unavailable." {
		t.Fatalf("unexpected reply %+v", c)
	}
}

func TestWaitlistStats(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	docs := []map[string]any{
		{"name": "Ada", "status": "pending", "source": "twitter", "createdAt": now.Add(-time.Hour)},
		{"email": "b@example.com", "source": "twitter", "createdAt": now.Add(-48 * time.Hour)},
		{"name": "Cy", "status": "approved", "createdAt": now.Add(-2 * time.Hour)},
	}
	for _, d := range docs {
		if _, err := h.store.Insert(ctx, d); err != nil {
			t.Fatal(err)
		}
	}

	rec := h.run(t, "waitlist", nil)
	calls := rec.Calls()
	if len(calls) != 2 || calls[0].Op != "defer" || calls[0].Ephemeral {
		t.Fatalf("unexpected responder calls %+v", calls)
	}
	card := calls[1].Message.Cards[0]

	checks := map[string]string{
		"👥 Total Entries": "3",
		"🆕 Last 24 Hours": "2",
		"📈 Growth Rate":   "66.7%",
		"📋 By Status":     "Unknown: 1\napproved: 1\npending: 1",
		"📍 Top Sources":   "twitter: 2",
		"🕐 Latest Entry":  "Ada\n" + reply.RelativeTime(now.Add(-time.Hour)),
	}
	for name, want := range checks {
		if got := fieldValue(t, card, name); got != want {
			t.Errorf("%s = %q, want %q", name, got, want)
		}
	}
	if card.Footer != "Database: memory | Collection: waitlist" {
		t.Fatalf("footer = %q", card.Footer)
	}
}

func TestStatsCardEmpty(t *testing.T) {
	card := commands.StatsCard(&waitlist.Stats{Database: "test", Collection: "waitlist"}, now)
	if len(card.Fields) != 3 {
		t.Fatalf("expected only the three counters, got %d fields", len(card.Fields))
	}
	if got := fieldValue(t, card, "📈 Growth Rate"); got != "0%" {
		t.Fatalf("growth = %q", got)
	}
}
