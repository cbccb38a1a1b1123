package discord

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/xraph/warden/platform"
)

var _ platform.Platform = (*Session)(nil)

// isCode reports whether err is a REST error with the given JSON error code.
func isCode(err error, code int) bool {
	var rest *discordgo.RESTError
	return errors.As(err, &rest) && rest.Message != nil && rest.Message.Code == code
}

// ──────────────────────────────────────────────────
// platform.Moderator
// ──────────────────────────────────────────────────

// Ban bans userID and deletes their recent messages.
func (s *Session) Ban(ctx context.Context, guildID, userID, reason string, deleteDays int) error {
	if err := s.dg.GuildBanCreateWithReason(guildID, userID, reason, deleteDays, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("discord: ban %s: %w", userID, err)
	}
	return nil
}

// Unban lifts a ban.
func (s *Session) Unban(ctx context.Context, guildID, userID, reason string) error {
	err := s.dg.GuildBanDelete(guildID, userID, discordgo.WithContext(ctx), discordgo.WithAuditLogReason(reason))
	if err != nil {
		return fmt.Errorf("discord: unban %s: %w", userID, err)
	}
	return nil
}

// Kick removes a member.
func (s *Session) Kick(ctx context.Context, guildID, userID, reason string) error {
	if err := s.dg.GuildMemberDeleteWithReason(guildID, userID, reason, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("discord: kick %s: %w", userID, err)
	}
	return nil
}

// Timeout disables communication until until; nil clears the timeout.
func (s *Session) Timeout(ctx context.Context, guildID, userID string, until *time.Time, reason string) error {
	err := s.dg.GuildMemberTimeout(guildID, userID, until, discordgo.WithContext(ctx), discordgo.WithAuditLogReason(reason))
	if err != nil {
		return fmt.Errorf("discord: timeout %s: %w", userID, err)
	}
	return nil
}

// DeleteMessages removes messageIDs. Bulk delete needs at least two IDs,
// so a single message is deleted directly.
func (s *Session) DeleteMessages(ctx context.Context, channelID string, messageIDs []string) (int, error) {
	var err error
	switch len(messageIDs) {
	case 0:
		return 0, nil
	case 1:
		err = s.dg.ChannelMessageDelete(channelID, messageIDs[0], discordgo.WithContext(ctx))
	default:
		err = s.dg.ChannelMessagesBulkDelete(channelID, messageIDs, discordgo.WithContext(ctx))
	}
	if err != nil {
		return 0, fmt.Errorf("discord: delete %d messages: %w", len(messageIDs), err)
	}
	return len(messageIDs), nil
}

// ──────────────────────────────────────────────────
// platform.Directory
// ──────────────────────────────────────────────────

// BotUserID returns the bot's user ID, or "" before ready.
func (s *Session) BotUserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.botID
}

// Member fetches a guild member with role names and positions.
func (s *Session) Member(ctx context.Context, guildID, userID string) (*platform.Member, error) {
	m, err := s.dg.GuildMember(guildID, userID, discordgo.WithContext(ctx))
	if isCode(err, discordgo.ErrCodeUnknownMember) || isCode(err, discordgo.ErrCodeUnknownUser) {
		return nil, platform.ErrMemberNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("discord: fetch member %s: %w", userID, err)
	}

	roles, err := s.roles(ctx, guildID)
	if err != nil {
		return nil, err
	}
	return toMember(m, roles), nil
}

// roles returns the guild's roles keyed by ID, from state when cached.
func (s *Session) roles(ctx context.Context, guildID string) (map[string]*discordgo.Role, error) {
	var list []*discordgo.Role
	if g, err := s.dg.State.Guild(guildID); err == nil && len(g.Roles) > 0 {
		list = g.Roles
	} else {
		list, err = s.dg.GuildRoles(guildID, discordgo.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("discord: fetch roles: %w", err)
		}
	}

	out := make(map[string]*discordgo.Role, len(list))
	for _, r := range list {
		out[r.ID] = r
	}
	return out, nil
}

// User fetches a user.
func (s *Session) User(ctx context.Context, userID string) (*platform.User, error) {
	u, err := s.dg.User(userID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("discord: fetch user %s: %w", userID, err)
	}
	out := toUser(u)
	return &out, nil
}

// BannedUser returns the banned user or platform.ErrNotBanned.
func (s *Session) BannedUser(ctx context.Context, guildID, userID string) (*platform.User, error) {
	ban, err := s.dg.GuildBan(guildID, userID, discordgo.WithContext(ctx))
	if isCode(err, discordgo.ErrCodeUnknownBan) {
		return nil, platform.ErrNotBanned
	}
	if err != nil {
		return nil, fmt.Errorf("discord: fetch ban %s: %w", userID, err)
	}
	out := toUser(ban.User)
	return &out, nil
}

// Guild returns guild details, preferring the gateway state cache.
func (s *Session) Guild(ctx context.Context, guildID string) (*platform.Guild, error) {
	g, err := s.dg.State.Guild(guildID)
	if err != nil {
		g, err = s.dg.GuildWithCounts(guildID, discordgo.WithContext(ctx))
		if isCode(err, discordgo.ErrCodeUnknownGuild) {
			return nil, platform.ErrGuildNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("discord: fetch guild: %w", err)
		}
	}

	created, _ := discordgo.SnowflakeTimestamp(g.ID) //nolint:errcheck // zero time on malformed IDs
	members := g.MemberCount
	if members == 0 {
		members = g.ApproximateMemberCount
	}
	return &platform.Guild{
		ID:           g.ID,
		Name:         g.Name,
		OwnerID:      g.OwnerID,
		IconURL:      g.IconURL("256"),
		MemberCount:  members,
		ChannelCount: len(g.Channels),
		EmojiCount:   len(g.Emojis),
		RoleCount:    len(g.Roles),
		CreatedAt:    created,
	}, nil
}

// RecentMessages returns up to limit of the newest messages in channelID.
func (s *Session) RecentMessages(ctx context.Context, channelID string, limit int) ([]platform.Message, error) {
	msgs, err := s.dg.ChannelMessages(channelID, limit, "", "", "", discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("discord: fetch messages: %w", err)
	}
	out := make([]platform.Message, len(msgs))
	for i, m := range msgs {
		out[i] = platform.Message{ID: m.ID, CreatedAt: m.Timestamp}
	}
	return out, nil
}
