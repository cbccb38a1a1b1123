package commands

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/xraph/warden/command"
	"github.com/xraph/warden/platform"
	"github.com/xraph/warden/reply"
)

const defaultReason = "No reason provided"

var snowflake = regexp.MustCompile(`^\d{17,19}$`)

// ──────────────────────────────────────────────────
// ban
// ──────────────────────────────────────────────────

func (h *handlers) ban() command.Definition {
	return command.Definition{
		Name:        "ban",
		Description: "Ban a user from the server (Founder only)",
		Params: []command.Param{
			{Name: "target", Description: "The user to ban", Type: command.ParamUser, Required: true},
			{Name: "reason", Description: "Reason for the ban", Type: command.ParamString},
			{
				Name: "delete_messages", Description: "Delete messages from the last X days (0-7)",
				Type: command.ParamInteger, Min: command.Bound(0), Max: command.Bound(7),
			},
		},
		Permissions:       command.PermBanMembers,
		RequiresPrivilege: true,
		Handler:           command.HandlerFunc(h.handleBan),
	}
}

func (h *handlers) handleBan(ctx context.Context, inv *command.Invocation) error {
	targetID, _ := inv.User("target")
	reason := inv.StringOr("reason", defaultReason)
	days, _ := inv.Int("delete_messages")

	m, err := h.member(ctx, inv.GuildID, targetID)
	if err != nil {
		return err
	}
	if msg := h.guardTarget(inv, "ban", targetID, m); msg != "" {
		return inv.Reply(ctx, reply.Text(msg))
	}

	target, err := h.targetUser(ctx, targetID, m)
	if err != nil {
		return err
	}

	if err := h.Platform.Ban(ctx, inv.GuildID, targetID, auditReason(reason, "Banned", inv.Caller.Tag), int(days)); err != nil {
		h.logFailure(ctx, inv, "ban", err)
		return inv.Reply(ctx, reply.Text("❌ Failed to ban the user. Make sure I have the necessary permissions and the user is bannable."))
	}

	card := reply.Card{Color: reply.ColorBrand, Title: "🔨 User Banned", Timestamp: h.Now()}
	card.AddField("👤 User", userLabel(target), true)
	card.AddField("👮 Moderator", inv.Caller.Tag, true)
	card.AddField("📝 Reason", reason, false)
	return inv.Reply(ctx, reply.Public(card))
}

// ──────────────────────────────────────────────────
// kick
// ──────────────────────────────────────────────────

func (h *handlers) kick() command.Definition {
	return command.Definition{
		Name:        "kick",
		Description: "Kick a user from the server (Founder only)",
		Params: []command.Param{
			{Name: "target", Description: "The user to kick", Type: command.ParamUser, Required: true},
			{Name: "reason", Description: "Reason for the kick", Type: command.ParamString},
		},
		Permissions:       command.PermKickMembers,
		RequiresPrivilege: true,
		Handler:           command.HandlerFunc(h.handleKick),
	}
}

func (h *handlers) handleKick(ctx context.Context, inv *command.Invocation) error {
	targetID, _ := inv.User("target")
	reason := inv.StringOr("reason", defaultReason)

	m, err := h.member(ctx, inv.GuildID, targetID)
	if err != nil {
		return err
	}
	if m == nil {
		return inv.Reply(ctx, reply.Text("❌ User is not in this server!"))
	}
	if msg := h.guardTarget(inv, "kick", targetID, m); msg != "" {
		return inv.Reply(ctx, reply.Text(msg))
	}

	if err := h.Platform.Kick(ctx, inv.GuildID, targetID, auditReason(reason, "Kicked", inv.Caller.Tag)); err != nil {
		h.logFailure(ctx, inv, "kick", err)
		return inv.Reply(ctx, reply.Text("❌ Failed to kick the user. Make sure I have the necessary permissions and my role is higher than the target."))
	}

	card := reply.Card{Color: reply.ColorWarning, Title: "👢 User Kicked", Timestamp: h.Now()}
	card.AddField("👤 User", userLabel(m.User), true)
	card.AddField("👮 Moderator", inv.Caller.Tag, true)
	card.AddField("📝 Reason", reason, false)
	return inv.Reply(ctx, reply.Public(card))
}

// ──────────────────────────────────────────────────
// timeout / untimeout
// ──────────────────────────────────────────────────

// MaxTimeoutMinutes is the platform's 28-day timeout ceiling.
const MaxTimeoutMinutes = 40320

func (h *handlers) timeout() command.Definition {
	return command.Definition{
		Name:        "timeout",
		Description: "Timeout a user (Founder only)",
		Params: []command.Param{
			{Name: "target", Description: "The user to timeout", Type: command.ParamUser, Required: true},
			{
				Name: "duration", Description: "Duration in minutes", Type: command.ParamInteger, Required: true,
				Min: command.Bound(1), Max: command.Bound(MaxTimeoutMinutes),
			},
			{Name: "reason", Description: "Reason for the timeout", Type: command.ParamString},
		},
		Permissions:       command.PermModerateMembers,
		RequiresPrivilege: true,
		Handler:           command.HandlerFunc(h.handleTimeout),
	}
}

func (h *handlers) handleTimeout(ctx context.Context, inv *command.Invocation) error {
	targetID, _ := inv.User("target")
	minutes, _ := inv.Int("duration")
	reason := inv.StringOr("reason", defaultReason)

	m, err := h.member(ctx, inv.GuildID, targetID)
	if err != nil {
		return err
	}
	if m == nil {
		return inv.Reply(ctx, reply.Text("❌ User is not in this server!"))
	}
	if msg := h.guardTarget(inv, "timeout", targetID, m); msg != "" {
		return inv.Reply(ctx, reply.Text(msg))
	}

	until := h.Now().Add(time.Duration(minutes) * time.Minute)
	if err := h.Platform.Timeout(ctx, inv.GuildID, targetID, &until, auditReason(reason, "Timed out", inv.Caller.Tag)); err != nil {
		h.logFailure(ctx, inv, "timeout", err)
		return inv.Reply(ctx, reply.Text("❌ Failed to timeout the user. Make sure I have the necessary permissions and my role is higher than the target."))
	}

	card := reply.Card{Color: reply.ColorTimeout, Title: "⏰ User Timed Out", Timestamp: h.Now()}
	card.AddField("👤 User", userLabel(m.User), true)
	card.AddField("👮 Moderator", inv.Caller.Tag, true)
	card.AddField("⏱️ Duration", FormatMinutes(minutes), true)
	card.AddField("📝 Reason", reason, false)
	return inv.Reply(ctx, reply.Public(card))
}

// FormatMinutes renders a minute count as "Xh Ym", omitting zero parts.
func FormatMinutes(minutes int64) string {
	var parts []string
	if h := minutes / 60; h > 0 {
		parts = append(parts, fmt.Sprintf("%dh", h))
	}
	if m := minutes % 60; m > 0 {
		parts = append(parts, fmt.Sprintf("%dm", m))
	}
	return strings.Join(parts, " ")
}

func (h *handlers) untimeout() command.Definition {
	return command.Definition{
		Name:        "untimeout",
		Description: "Remove timeout from a user (Founder only)",
		Params: []command.Param{
			{Name: "target", Description: "The user to remove timeout from", Type: command.ParamUser, Required: true},
			{Name: "reason", Description: "Reason for removing timeout", Type: command.ParamString},
		},
		Permissions:       command.PermModerateMembers,
		RequiresPrivilege: true,
		Handler:           command.HandlerFunc(h.handleUntimeout),
	}
}

func (h *handlers) handleUntimeout(ctx context.Context, inv *command.Invocation) error {
	targetID, _ := inv.User("target")
	reason := inv.StringOr("reason", defaultReason)

	m, err := h.member(ctx, inv.GuildID, targetID)
	if err != nil {
		return err
	}
	if m == nil {
		return inv.Reply(ctx, reply.Text("❌ User is not in this server!"))
	}
	if !m.TimedOut(h.Now()) {
		return inv.Reply(ctx, reply.Text("❌ This user is not timed out!"))
	}

	if err := h.Platform.Timeout(ctx, inv.GuildID, targetID, nil, auditReason(reason, "Timeout removed", inv.Caller.Tag)); err != nil {
		h.logFailure(ctx, inv, "untimeout", err)
		return inv.Reply(ctx, reply.Text("❌ Failed to remove timeout. Make sure I have the necessary permissions."))
	}

	card := reply.Card{Color: reply.ColorSuccess, Title: "✅ Timeout Removed", Timestamp: h.Now()}
	card.AddField("👤 User", userLabel(m.User), true)
	card.AddField("👮 Moderator", inv.Caller.Tag, true)
	card.AddField("📝 Reason", reason, false)
	return inv.Reply(ctx, reply.Public(card))
}

// ──────────────────────────────────────────────────
// unban
// ──────────────────────────────────────────────────

func (h *handlers) unban() command.Definition {
	return command.Definition{
		Name:        "unban",
		Description: "Unban a user from the server (Founder only)",
		Params: []command.Param{
			{Name: "user_id", Description: "The ID of the user to unban", Type: command.ParamString, Required: true},
			{Name: "reason", Description: "Reason for the unban", Type: command.ParamString},
		},
		Permissions:       command.PermBanMembers,
		RequiresPrivilege: true,
		Handler:           command.HandlerFunc(h.handleUnban),
	}
}

func (h *handlers) handleUnban(ctx context.Context, inv *command.Invocation) error {
	userID, _ := inv.String("user_id")
	reason := inv.StringOr("reason", defaultReason)

	if !snowflake.MatchString(userID) {
		return inv.Reply(ctx, reply.Text("❌ Invalid user ID format! Please provide a valid Discord user ID."))
	}

	// A single ban lookup is fast enough to answer without deferring, which
	// keeps the rejection ephemeral.
	banned, err := h.Platform.BannedUser(ctx, inv.GuildID, userID)
	if errors.Is(err, platform.ErrNotBanned) {
		return inv.Reply(ctx, reply.Text("❌ This user is not banned!"))
	}
	if err != nil {
		return fmt.Errorf("commands: fetch ban %s: %w", userID, err)
	}

	if err := h.Platform.Unban(ctx, inv.GuildID, userID, auditReason(reason, "Unbanned", inv.Caller.Tag)); err != nil {
		h.logFailure(ctx, inv, "unban", err)
		return inv.Reply(ctx, reply.Text("❌ Failed to unban the user. Make sure I have the necessary permissions and the user ID is correct."))
	}

	card := reply.Card{Color: reply.ColorBrand, Title: "✅ User Unbanned", Timestamp: h.Now()}
	card.AddField("👤 User", userLabel(*banned), true)
	card.AddField("👮 Moderator", inv.Caller.Tag, true)
	card.AddField("📝 Reason", reason, false)
	return inv.Reply(ctx, reply.Public(card))
}
