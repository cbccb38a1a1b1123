// Package linker turns pull-request references in chat messages into link
// cards.
package linker

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"strconv"

	"github.com/xraph/warden/observability"
	"github.com/xraph/warden/reply"
)

const githubIcon = "https://github.githubassets.com/images/modules/logos_page/GitHub-Mark.png"

var patterns = []*regexp.Regexp{
	regexp.MustCompile(`\b(?:pr|PR)\s*#?(\d+)\b`),
	regexp.MustCompile(`(?i)\bpull request\s*#?(\d+)\b`),
	regexp.MustCompile(`#(\d+)\b`),
}

// Message is an inbound chat message.
type Message struct {
	ID        string
	ChannelID string
	GuildID   string
	Content   string
	AuthorBot bool
}

// Replier sends cards as a reply to a message without pinging its author.
type Replier interface {
	ReplyCards(ctx context.Context, msg Message, cards []reply.Card) error
}

// ExtractReferences returns the distinct positive pull-request numbers
// mentioned in text, in ascending order.
func ExtractReferences(text string) []int {
	seen := make(map[int]struct{})
	for _, re := range patterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			n, err := strconv.Atoi(m[1])
			if err != nil || n <= 0 {
				continue
			}
			seen[n] = struct{}{}
		}
	}

	refs := make([]int, 0, len(seen))
	for n := range seen {
		refs = append(refs, n)
	}
	slices.Sort(refs)
	return refs
}

// URL returns the pull-request URL for n in repo ("owner/name").
func URL(repo string, n int) string {
	return fmt.Sprintf("https://github.com/%s/pull/%d", repo, n)
}

// Card builds the link card for one pull request.
func Card(repo string, n int) reply.Card {
	url := URL(repo, n)
	return reply.Card{
		Color:       reply.ColorBrand,
		Title:       fmt.Sprintf("🔗 Pull Request #%d", n),
		URL:         url,
		Description: fmt.Sprintf("[Click here to view PR #%d](%s)", n, url),
		Fields: []reply.Field{
			{Name: "📦 Repository", Value: fmt.Sprintf("[`%s`](https://github.com/%s)", repo, repo), Inline: true},
			{Name: "🔢 PR Number", Value: "#" + strconv.Itoa(n), Inline: true},
		},
		Footer:     "GitHub Pull Request",
		FooterIcon: githubIcon,
	}
}

// BuildCards returns one card per reference, capped at reply.MaxCards.
func BuildCards(refs []int, repo string) []reply.Card {
	if len(refs) > reply.MaxCards {
		refs = refs[:reply.MaxCards]
	}
	cards := make([]reply.Card, 0, len(refs))
	for _, n := range refs {
		cards = append(cards, Card(repo, n))
	}
	return cards
}

// Linker replies to messages that mention pull requests.
type Linker struct {
	repo    string
	replier Replier
	logger  *slog.Logger
	metrics *observability.Metrics
}

// New creates a linker for repo. An empty repo disables linking.
func New(repo string, replier Replier, logger *slog.Logger, metrics *observability.Metrics) *Linker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Linker{repo: repo, replier: replier, logger: logger, metrics: metrics}
}

// Enabled reports whether a repository is configured.
func (l *Linker) Enabled() bool { return l.repo != "" }

// Handle inspects msg and sends one batched reply when it references pull
// requests. It returns the number of cards sent.
func (l *Linker) Handle(ctx context.Context, msg Message) int {
	if msg.AuthorBot || !l.Enabled() {
		return 0
	}

	refs := ExtractReferences(msg.Content)
	if len(refs) == 0 {
		return 0
	}

	cards := BuildCards(refs, l.repo)
	if err := l.replier.ReplyCards(ctx, msg, cards); err != nil {
		l.logger.ErrorContext(ctx, "pr link reply failed",
			"message_id", msg.ID,
			"channel_id", msg.ChannelID,
			"refs", refs,
			"error", err,
		)
		return 0
	}

	if l.metrics != nil {
		l.metrics.LinkCardsTotal.Add(float64(len(cards)))
	}
	l.logger.DebugContext(ctx, "pr links sent", "message_id", msg.ID, "count", len(cards))
	return len(cards)
}
