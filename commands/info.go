package commands

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/xraph/warden/command"
	"github.com/xraph/warden/linker"
	"github.com/xraph/warden/platform"
	"github.com/xraph/warden/reply"
)

// maxListedRoles caps the roles shown on a user card.
const maxListedRoles = 10

func (h *handlers) pr() command.Definition {
	return command.Definition{
		Name:        "pr",
		Description: "Get a link to a GitHub pull request",
		Params: []command.Param{
			{Name: "number", Description: "The PR number", Type: command.ParamInteger, Required: true, Min: command.Bound(1)},
		},
		Handler: command.HandlerFunc(h.handlePR),
	}
}

func (h *handlers) handlePR(ctx context.Context, inv *command.Invocation) error {
	if h.Repo == "" {
		return inv.Reply(ctx, reply.Text("❌ GitHub repository is not configured. Please set GITHUB_REPO in the .env file."))
	}

	n, _ := inv.Int("number")
	url := linker.URL(h.Repo, int(n))

	card := reply.Card{
		Color:       reply.ColorGitHub,
		Title:       fmt.Sprintf("🔗 Pull Request #%d", n),
		URL:         url,
		Description: fmt.Sprintf("[View PR #%d on GitHub](%s)", n, url),
		Footer:      "GitHub Pull Request",
	}
	card.AddField("📦 Repository", h.Repo, true)
	card.AddField("🔢 PR Number", "#"+strconv.FormatInt(n, 10), true)
	return inv.Reply(ctx, reply.Public(card))
}

func (h *handlers) server() command.Definition {
	return command.Definition{
		Name:        "server",
		Description: "Provides information about the server.",
		Handler:     command.HandlerFunc(h.handleServer),
	}
}

func (h *handlers) handleServer(ctx context.Context, inv *command.Invocation) error {
	g, err := h.Platform.Guild(ctx, inv.GuildID)
	if err != nil {
		return fmt.Errorf("commands: fetch guild: %w", err)
	}

	card := reply.Card{
		Color:        reply.ColorBlurple,
		Title:        fmt.Sprintf("📊 %s Server Info", g.Name),
		ThumbnailURL: g.IconURL,
		Footer:       "Server ID: " + g.ID,
		Timestamp:    h.Now(),
	}
	card.AddField("👑 Owner", reply.Mention(g.OwnerID), true)
	card.AddField("👥 Members", strconv.Itoa(g.MemberCount), true)
	card.AddField("📅 Created", reply.RelativeTime(g.CreatedAt), true)
	card.AddField("💬 Channels", strconv.Itoa(g.ChannelCount), true)
	card.AddField("😀 Emojis", strconv.Itoa(g.EmojiCount), true)
	card.AddField("🔖 Roles", strconv.Itoa(g.RoleCount), true)
	return inv.Reply(ctx, reply.Public(card))
}

func (h *handlers) user() command.Definition {
	return command.Definition{
		Name:        "user",
		Description: "Provides information about a user.",
		Params: []command.Param{
			{Name: "target", Description: "The user to get information about", Type: command.ParamUser},
		},
		Handler: command.HandlerFunc(h.handleUser),
	}
}

func (h *handlers) handleUser(ctx context.Context, inv *command.Invocation) error {
	targetID, ok := inv.User("target")
	if !ok || targetID == "" {
		targetID = inv.Caller.UserID
	}

	m, err := h.Platform.Member(ctx, inv.GuildID, targetID)
	if err != nil {
		return fmt.Errorf("commands: fetch member %s: %w", targetID, err)
	}
	u := m.User

	bot := "No"
	if u.Bot {
		bot = "Yes"
	}

	card := reply.Card{
		Color:        reply.ColorBrand,
		Title:        "👤 User Info: " + u.Tag,
		ThumbnailURL: u.AvatarURL,
		Footer:       "User ID: " + u.ID,
		Timestamp:    h.Now(),
	}
	card.AddField("🆔 Username", u.Username, true)
	card.AddField("🏷️ Display Name", m.DisplayName, true)
	card.AddField("🤖 Bot", bot, true)
	card.AddField("📅 Account Created", reply.RelativeTime(u.CreatedAt), true)
	card.AddField("📥 Joined Server", reply.RelativeTime(m.JoinedAt), true)
	card.AddField("🎨 Roles", RoleList(m.Roles, inv.GuildID), false)
	return inv.Reply(ctx, reply.Public(card))
}

// RoleList renders the member's roles highest first, omitting the guild's
// default role and keeping at most ten.
func RoleList(roles []platform.Role, guildID string) string {
	shown := slices.DeleteFunc(slices.Clone(roles), func(r platform.Role) bool {
		return r.ID == guildID
	})
	slices.SortStableFunc(shown, func(a, b platform.Role) int {
		return cmp.Compare(b.Position, a.Position)
	})
	if len(shown) > maxListedRoles {
		shown = shown[:maxListedRoles]
	}
	if len(shown) == 0 {
		return "None"
	}

	mentions := make([]string, len(shown))
	for i, r := range shown {
		mentions[i] = r.Mention()
	}
	return strings.Join(mentions, ", ")
}
