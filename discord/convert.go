package discord

import (
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/xraph/warden/command"
	"github.com/xraph/warden/platform"
	"github.com/xraph/warden/reply"
)

var optionTypes = map[command.ParamType]discordgo.ApplicationCommandOptionType{
	command.ParamString:  discordgo.ApplicationCommandOptionString,
	command.ParamInteger: discordgo.ApplicationCommandOptionInteger,
	command.ParamUser:    discordgo.ApplicationCommandOptionUser,
	command.ParamBoolean: discordgo.ApplicationCommandOptionBoolean,
}

// ApplicationCommand converts a definition into its registration payload.
func ApplicationCommand(def command.Definition) *discordgo.ApplicationCommand {
	ac := &discordgo.ApplicationCommand{
		Name:        def.Name,
		Description: def.Description,
	}
	if def.Permissions != 0 {
		perms := def.Permissions
		ac.DefaultMemberPermissions = &perms
	}

	for _, p := range def.Params {
		opt := &discordgo.ApplicationCommandOption{
			Type:        optionTypes[p.Type],
			Name:        p.Name,
			Description: p.Description,
			Required:    p.Required,
		}
		if p.Min != nil {
			lo := *p.Min
			opt.MinValue = &lo
		}
		if p.Max != nil {
			opt.MaxValue = *p.Max
		}
		ac.Options = append(ac.Options, opt)
	}
	return ac
}

// ApplicationCommands converts every definition, preserving order.
func ApplicationCommands(defs []command.Definition) []*discordgo.ApplicationCommand {
	out := make([]*discordgo.ApplicationCommand, len(defs))
	for i, def := range defs {
		out[i] = ApplicationCommand(def)
	}
	return out
}

// Options flattens interaction options into the invocation value model.
// Integers arrive as JSON numbers and are converted to int64; user
// references are kept as user IDs.
func Options(opts []*discordgo.ApplicationCommandInteractionDataOption) map[string]any {
	out := make(map[string]any, len(opts))
	for _, o := range opts {
		switch o.Type {
		case discordgo.ApplicationCommandOptionInteger:
			if f, ok := o.Value.(float64); ok {
				out[o.Name] = int64(f)
				continue
			}
			out[o.Name] = o.Value
		case discordgo.ApplicationCommandOptionString,
			discordgo.ApplicationCommandOptionUser,
			discordgo.ApplicationCommandOptionBoolean:
			out[o.Name] = o.Value
		}
	}
	return out
}

// Embed converts a card into an embed.
func Embed(c reply.Card) *discordgo.MessageEmbed {
	e := &discordgo.MessageEmbed{
		Title:       c.Title,
		URL:         c.URL,
		Description: c.Description,
		Color:       c.Color,
	}
	for _, f := range c.Fields {
		e.Fields = append(e.Fields, &discordgo.MessageEmbedField{Name: f.Name, Value: f.Value, Inline: f.Inline})
	}
	if c.Footer != "" {
		e.Footer = &discordgo.MessageEmbedFooter{Text: c.Footer, IconURL: c.FooterIcon}
	}
	if c.ThumbnailURL != "" {
		e.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: c.ThumbnailURL}
	}
	if !c.Timestamp.IsZero() {
		e.Timestamp = c.Timestamp.UTC().Format(time.RFC3339)
	}
	return e
}

// Embeds converts cards, capped at reply.MaxCards.
func Embeds(cards []reply.Card) []*discordgo.MessageEmbed {
	if len(cards) > reply.MaxCards {
		cards = cards[:reply.MaxCards]
	}
	out := make([]*discordgo.MessageEmbed, len(cards))
	for i, c := range cards {
		out[i] = Embed(c)
	}
	return out
}

// Tag renders a user's display tag. Accounts migrated to unique usernames
// report discriminator "0" and are shown by username alone.
func Tag(u *discordgo.User) string {
	if u == nil {
		return ""
	}
	if u.Discriminator == "" || u.Discriminator == "0" {
		return u.Username
	}
	return u.Username + "#" + u.Discriminator
}

func toUser(u *discordgo.User) platform.User {
	if u == nil {
		return platform.User{}
	}
	created, _ := discordgo.SnowflakeTimestamp(u.ID) //nolint:errcheck // zero time on malformed IDs
	return platform.User{
		ID:        u.ID,
		Username:  u.Username,
		Tag:       Tag(u),
		Bot:       u.Bot,
		AvatarURL: u.AvatarURL("256"),
		CreatedAt: created,
	}
}

// displayName returns the nickname, then the global name, then the username.
func displayName(m *discordgo.Member) string {
	switch {
	case m.Nick != "":
		return m.Nick
	case m.User != nil && m.User.GlobalName != "":
		return m.User.GlobalName
	case m.User != nil:
		return m.User.Username
	}
	return ""
}

// toMember converts a member, resolving role IDs through roles.
func toMember(m *discordgo.Member, roles map[string]*discordgo.Role) *platform.Member {
	out := &platform.Member{
		User:          toUser(m.User),
		DisplayName:   displayName(m),
		JoinedAt:      m.JoinedAt,
		TimedOutUntil: m.CommunicationDisabledUntil,
	}
	for _, id := range m.Roles {
		r := platform.Role{ID: id}
		if gr, ok := roles[id]; ok {
			r.Name = gr.Name
			r.Position = gr.Position
		}
		out.Roles = append(out.Roles, r)
	}
	return out
}

// caller builds the permission identity of an interaction's member.
func caller(m *discordgo.Member, u *discordgo.User) platform.Caller {
	if m != nil {
		c := platform.Caller{Roles: append([]string(nil), m.Roles...)}
		if m.User != nil {
			c.UserID = m.User.ID
			c.Tag = Tag(m.User)
		}
		return c
	}
	if u != nil {
		return platform.Caller{UserID: u.ID, Tag: Tag(u)}
	}
	return platform.Caller{}
}
