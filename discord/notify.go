package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/xraph/warden/command"
	"github.com/xraph/warden/deploy"
	"github.com/xraph/warden/linker"
	"github.com/xraph/warden/reply"
	"github.com/xraph/warden/watcher"
)

// compile-time interface checks.
var (
	_ deploy.Publisher = (*Session)(nil)
	_ watcher.Notifier = (*Session)(nil)
	_ linker.Replier   = (*Session)(nil)
)

// Publish replaces the guild's registered commands with defs.
func (s *Session) Publish(ctx context.Context, defs []command.Definition) (int, error) {
	cmds, err := s.dg.ApplicationCommandBulkOverwrite(s.appID, s.guildID, ApplicationCommands(defs), discordgo.WithContext(ctx))
	if err != nil {
		return 0, fmt.Errorf("discord: bulk overwrite commands: %w", err)
	}
	return len(cmds), nil
}

// RenameChannel sets a channel's name.
func (s *Session) RenameChannel(ctx context.Context, channelID, name string) error {
	if _, err := s.dg.ChannelEdit(channelID, &discordgo.ChannelEdit{Name: name}, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("discord: rename channel %s: %w", channelID, err)
	}
	return nil
}

// SendCards posts cards to a channel as one message.
func (s *Session) SendCards(ctx context.Context, channelID string, cards ...reply.Card) error {
	_, err := s.dg.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Embeds: Embeds(cards),
	}, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("discord: send to %s: %w", channelID, err)
	}
	return nil
}

// ReplyCards answers msg with cards without pinging its author.
func (s *Session) ReplyCards(ctx context.Context, msg linker.Message, cards []reply.Card) error {
	_, err := s.dg.ChannelMessageSendComplex(msg.ChannelID, &discordgo.MessageSend{
		Embeds: Embeds(cards),
		Reference: &discordgo.MessageReference{
			MessageID: msg.ID,
			ChannelID: msg.ChannelID,
			GuildID:   msg.GuildID,
		},
		AllowedMentions: &discordgo.MessageAllowedMentions{Parse: []discordgo.AllowedMentionType{}, RepliedUser: false},
	}, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("discord: reply to %s: %w", msg.ID, err)
	}
	return nil
}
