// Package commands declares Warden's built-in slash commands.
//
// Each constructor returns a command.Definition whose handler talks to the
// guild only through platform.Platform. Privilege checks on the caller are
// done by the dispatcher; handlers here check privileged targets, self
// targets and the bot itself.
package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/warden/command"
	"github.com/xraph/warden/permission"
	"github.com/xraph/warden/platform"
	"github.com/xraph/warden/waitlist"
)

// Deps carries everything the built-in handlers need.
type Deps struct {
	Platform platform.Platform
	Gate     *permission.Gate

	// Waitlist backs the waitlist command. Nil disables the stats.
	Waitlist waitlist.Store

	// Repo is the "owner/name" GitHub repository for the pr command.
	Repo string

	Logger *slog.Logger

	// Now and AfterFunc default to time.Now and time.AfterFunc.
	Now       func() time.Time
	AfterFunc func(d time.Duration, f func())
}

// handlers is the shared receiver for every built-in command.
type handlers struct {
	Deps
}

// All returns the built-in command definitions in registration order.
func All(deps Deps) []command.Definition {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.AfterFunc == nil {
		deps.AfterFunc = func(d time.Duration, f func()) { time.AfterFunc(d, f) }
	}
	if deps.Gate == nil {
		deps.Gate = permission.NewGate("")
	}

	h := &handlers{Deps: deps}
	return []command.Definition{
		h.ban(),
		h.kick(),
		h.timeout(),
		h.untimeout(),
		h.unban(),
		h.purge(),
		h.pr(),
		h.server(),
		h.user(),
		h.waitlist(),
	}
}

// member fetches a guild member, mapping ErrMemberNotFound to nil.
func (h *handlers) member(ctx context.Context, guildID, userID string) (*platform.Member, error) {
	m, err := h.Platform.Member(ctx, guildID, userID)
	if errors.Is(err, platform.ErrMemberNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("commands: fetch member %s: %w", userID, err)
	}
	return m, nil
}

// targetUser resolves the user behind targetID, preferring the member record.
func (h *handlers) targetUser(ctx context.Context, targetID string, m *platform.Member) (platform.User, error) {
	if m != nil {
		return m.User, nil
	}
	u, err := h.Platform.User(ctx, targetID)
	if err != nil {
		return platform.User{}, fmt.Errorf("commands: fetch user %s: %w", targetID, err)
	}
	return *u, nil
}

// guardTarget returns the rejection text when the caller may not apply verb
// to the target, or "" when the action is allowed.
func (h *handlers) guardTarget(inv *command.Invocation, verb, targetID string, m *platform.Member) string {
	switch {
	case targetID == inv.Caller.UserID:
		return fmt.Sprintf("❌ You cannot %s yourself!", verb)
	case targetID == h.Platform.BotUserID():
		return fmt.Sprintf("❌ I cannot %s myself!", verb)
	case m != nil && h.Gate.IsPrivileged(m.Caller()):
		return fmt.Sprintf("❌ You cannot %s another Founder!", verb)
	}
	return ""
}

// auditReason appends the moderator tag to the supplied reason.
func auditReason(reason, action, moderator string) string {
	return fmt.Sprintf("%s | %s by %s", reason, action, moderator)
}

// userLabel renders "tag (id)".
func userLabel(u platform.User) string {
	return fmt.Sprintf("%s (%s)", u.Tag, u.ID)
}

func (h *handlers) logFailure(ctx context.Context, inv *command.Invocation, action string, err error) {
	h.Logger.ErrorContext(ctx, action+" failed",
		"command", inv.Command,
		"invocation_id", inv.ID.String(),
		"guild_id", inv.GuildID,
		"error", err,
	)
}
