package commands

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/xraph/warden/command"
	"github.com/xraph/warden/reply"
	"github.com/xraph/warden/waitlist"
)

// RecentWindow is the "last 24 hours" window of the waitlist stats.
const RecentWindow = 24 * time.Hour

func (h *handlers) waitlist() command.Definition {
	return command.Definition{
		Name:        "waitlist",
		Description: "View waitlist statistics",
		Handler:     command.HandlerFunc(h.handleWaitlist),
	}
}

func (h *handlers) handleWaitlist(ctx context.Context, inv *command.Invocation) error {
	if h.Waitlist == nil || h.Waitlist.Ping(ctx) != nil {
		return inv.Reply(ctx, reply.Text("❌ MongoDB is not connected. Waitlist stats are unavailable."))
	}

	if err := inv.Responder.Defer(ctx, false); err != nil {
		return fmt.Errorf("commands: defer waitlist: %w", err)
	}

	now := h.Now()
	stats, err := h.Waitlist.Stats(ctx, now.Add(-RecentWindow))
	if err != nil {
		h.logFailure(ctx, inv, "waitlist stats", err)
		return inv.Responder.Edit(ctx, reply.Message{Content: "❌ Failed to fetch waitlist statistics."})
	}

	return inv.Responder.Edit(ctx, reply.Public(StatsCard(stats, now)))
}

// StatsCard renders waitlist statistics.
func StatsCard(s *waitlist.Stats, now time.Time) reply.Card {
	card := reply.Card{
		Color:     reply.ColorBlurple,
		Title:     "📊 Waitlist Statistics",
		Footer:    fmt.Sprintf("Database: %s | Collection: %s", s.Database, s.Collection),
		Timestamp: now,
	}

	growth := "0%"
	if s.Total > 0 {
		growth = fmt.Sprintf("%.1f%%", s.GrowthRate())
	}
	card.AddField("👥 Total Entries", strconv.FormatInt(s.Total, 10), true)
	card.AddField("🆕 Last 24 Hours", strconv.FormatInt(s.Recent, 10), true)
	card.AddField("📈 Growth Rate", growth, true)

	if len(s.ByStatus) > 0 {
		card.AddField("📋 By Status", bucketLines(s.ByStatus), false)
	}
	if len(s.TopSources) > 0 {
		card.AddField("📍 Top Sources", bucketLines(s.TopSources), false)
	}
	if s.Latest != nil {
		joined := "Unknown"
		if !s.Latest.CreatedAt.IsZero() {
			joined = reply.RelativeTime(s.Latest.CreatedAt)
		}
		card.AddField("🕐 Latest Entry", s.Latest.DisplayName()+"\n"+joined, false)
	}
	return card
}

func bucketLines(buckets []waitlist.Bucket) string {
	lines := make([]string, len(buckets))
	for i, b := range buckets {
		lines[i] = fmt.Sprintf("%s: %d", b.Key, b.Count)
	}
	return strings.Join(lines, "\n")
}
