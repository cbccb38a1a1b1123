// Package platform describes the chat-platform surface Warden depends on.
//
// Command handlers and the permission gate work against these types and
// interfaces only; the discord package is the single implementation.
package platform

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors returned by platform implementations.
var (
	// ErrMemberNotFound is returned when a user is not a member of the guild.
	ErrMemberNotFound = errors.New("platform: member not found")

	// ErrNotBanned is returned when looking up a ban that does not exist.
	ErrNotBanned = errors.New("platform: user is not banned")

	// ErrGuildNotFound is returned when guild details are unavailable.
	ErrGuildNotFound = errors.New("platform: guild not found")
)

// Caller identifies the user behind an inbound event.
type Caller struct {
	UserID string
	Tag    string
	Roles  []string
}

// HasRole reports whether the caller holds the given role.
func (c Caller) HasRole(roleID string) bool {
	for _, r := range c.Roles {
		if r == roleID {
			return true
		}
	}
	return false
}

// User is a platform account.
type User struct {
	ID        string
	Username  string
	Tag       string
	Bot       bool
	AvatarURL string
	CreatedAt time.Time
}

// Member is a user's guild membership.
type Member struct {
	User          User
	DisplayName   string
	Roles         []Role
	JoinedAt      time.Time
	TimedOutUntil *time.Time
}

// Caller returns the member as a Caller for permission checks.
func (m *Member) Caller() Caller {
	roles := make([]string, len(m.Roles))
	for i, r := range m.Roles {
		roles[i] = r.ID
	}
	return Caller{UserID: m.User.ID, Tag: m.User.Tag, Roles: roles}
}

// TimedOut reports whether the member is timed out at now.
func (m *Member) TimedOut(now time.Time) bool {
	return m.TimedOutUntil != nil && m.TimedOutUntil.After(now)
}

// Role is a guild role.
type Role struct {
	ID       string
	Name     string
	Position int
}

// Mention renders the role mention markup.
func (r Role) Mention() string {
	return "<@&" + r.ID + ">"
}

// Guild summarizes a community server.
type Guild struct {
	ID           string
	Name         string
	OwnerID      string
	IconURL      string
	MemberCount  int
	ChannelCount int
	EmojiCount   int
	RoleCount    int
	CreatedAt    time.Time
}

// Message is a channel message reference used by purge.
type Message struct {
	ID        string
	CreatedAt time.Time
}

// Moderator performs mutating moderation calls.
type Moderator interface {
	// Ban bans a user and deletes their messages from the last deleteDays days.
	Ban(ctx context.Context, guildID, userID, reason string, deleteDays int) error

	// Unban lifts a ban.
	Unban(ctx context.Context, guildID, userID, reason string) error

	// Kick removes a member from the guild.
	Kick(ctx context.Context, guildID, userID, reason string) error

	// Timeout disables communication until the given time; nil clears it.
	Timeout(ctx context.Context, guildID, userID string, until *time.Time, reason string) error

	// DeleteMessages bulk-deletes messages and returns how many were removed.
	DeleteMessages(ctx context.Context, channelID string, messageIDs []string) (int, error)
}

// Directory performs read-only lookups.
type Directory interface {
	// BotUserID returns the bot's own user ID.
	BotUserID() string

	// Member returns a guild member or ErrMemberNotFound.
	Member(ctx context.Context, guildID, userID string) (*Member, error)

	// User returns a platform user.
	User(ctx context.Context, userID string) (*User, error)

	// BannedUser returns the banned user or ErrNotBanned.
	BannedUser(ctx context.Context, guildID, userID string) (*User, error)

	// Guild returns guild details or ErrGuildNotFound.
	Guild(ctx context.Context, guildID string) (*Guild, error)

	// RecentMessages returns up to limit of the newest messages in a channel.
	RecentMessages(ctx context.Context, channelID string, limit int) ([]Message, error)
}

// Platform is the full surface used by command handlers.
type Platform interface {
	Moderator
	Directory
}
