package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/xraph/warden/command"
	"github.com/xraph/warden/reply"
)

const (
	// BulkDeleteMaxAge is the oldest message the platform bulk-deletes.
	BulkDeleteMaxAge = 14 * 24 * time.Hour

	// RetractAfter is how long the purge confirmation stays visible.
	RetractAfter = 5 * time.Second
)

func (h *handlers) purge() command.Definition {
	return command.Definition{
		Name:        "purge",
		Description: "Delete a specified number of messages (Founder only)",
		Params: []command.Param{
			{
				Name: "amount", Description: "Number of messages to delete (1-100)", Type: command.ParamInteger,
				Required: true, Min: command.Bound(1), Max: command.Bound(100),
			},
		},
		Permissions:       command.PermManageMessages,
		RequiresPrivilege: true,
		Handler:           command.HandlerFunc(h.handlePurge),
	}
}

func (h *handlers) handlePurge(ctx context.Context, inv *command.Invocation) error {
	amount, _ := inv.Int("amount")

	if err := inv.Responder.Defer(ctx, true); err != nil {
		return fmt.Errorf("commands: defer purge: %w", err)
	}

	deleted, err := h.deleteRecent(ctx, inv.ChannelID, int(amount))
	if err != nil {
		h.logFailure(ctx, inv, "purge", err)
		return inv.Responder.Edit(ctx, reply.Text("❌ Failed to delete messages. Note: Messages older than 14 days cannot be bulk deleted."))
	}

	if err := inv.Responder.Edit(ctx, reply.Text(fmt.Sprintf("✅ Successfully deleted %d message(s)!", deleted))); err != nil {
		return fmt.Errorf("commands: confirm purge: %w", err)
	}

	// Best effort: the confirmation may already be gone.
	responder := inv.Responder
	h.AfterFunc(RetractAfter, func() {
		_ = responder.Delete(context.Background())
	})
	return nil
}

// deleteRecent removes up to limit of the newest messages in channelID,
// skipping those too old to bulk-delete.
func (h *handlers) deleteRecent(ctx context.Context, channelID string, limit int) (int, error) {
	msgs, err := h.Platform.RecentMessages(ctx, channelID, limit)
	if err != nil {
		return 0, fmt.Errorf("commands: fetch messages: %w", err)
	}

	cutoff := h.Now().Add(-BulkDeleteMaxAge)
	ids := make([]string, 0, len(msgs))
	for _, m := range msgs {
		if m.CreatedAt.After(cutoff) {
			ids = append(ids, m.ID)
		}
	}
	if len(ids) == 0 {
		return 0, nil
	}

	n, err := h.Platform.DeleteMessages(ctx, channelID, ids)
	if err != nil {
		return 0, fmt.Errorf("commands: delete messages: %w", err)
	}
	return n, nil
}
