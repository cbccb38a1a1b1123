package command

import (
	"context"
	"math"

	"github.com/xraph/warden/id"
	"github.com/xraph/warden/platform"
	"github.com/xraph/warden/reply"
)

// ResponderState tracks what has been sent on a reply channel.
type ResponderState int

const (
	// StateNone means nothing has been sent yet.
	StateNone ResponderState = iota

	// StateDeferred means a deferred acknowledgement was sent.
	StateDeferred

	// StateReplied means a visible reply exists.
	StateReplied
)

// String returns the state name.
func (s ResponderState) String() string {
	switch s {
	case StateDeferred:
		return "deferred"
	case StateReplied:
		return "replied"
	default:
		return "none"
	}
}

// Responder is the single-use reply channel attached to an invocation.
//
// Reply and Defer are only valid in StateNone. Edit replaces the deferred or
// initial reply. FollowUp is only valid once Reply or Defer has been sent.
type Responder interface {
	Reply(ctx context.Context, msg reply.Message) error
	Defer(ctx context.Context, ephemeral bool) error
	Edit(ctx context.Context, msg reply.Message) error
	FollowUp(ctx context.Context, msg reply.Message) error
	Delete(ctx context.Context) error
	State() ResponderState
}

// Invocation is one inbound slash-command call.
type Invocation struct {
	ID        id.ID
	Command   string
	Caller    platform.Caller
	GuildID   string
	ChannelID string

	// Options holds the supplied parameter values keyed by parameter name.
	// Strings and user references are string, integers are int64,
	// booleans are bool.
	Options map[string]any

	Responder Responder
}

// String returns a string option.
func (inv *Invocation) String(name string) (string, bool) {
	v, ok := inv.Options[name].(string)
	return v, ok
}

// StringOr returns a string option or def when absent or empty.
func (inv *Invocation) StringOr(name, def string) string {
	if v, ok := inv.String(name); ok && v != "" {
		return v
	}
	return def
}

// Int returns an integer option.
func (inv *Invocation) Int(name string) (int64, bool) {
	switch v := inv.Options[name].(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case float64:
		if v == math.Trunc(v) {
			return int64(v), true
		}
	}
	return 0, false
}

// Bool returns a boolean option.
func (inv *Invocation) Bool(name string) (bool, bool) {
	v, ok := inv.Options[name].(bool)
	return v, ok
}

// User returns a user-reference option as a user ID.
func (inv *Invocation) User(name string) (string, bool) {
	return inv.String(name)
}

// Reply is shorthand for inv.Responder.Reply.
func (inv *Invocation) Reply(ctx context.Context, msg reply.Message) error {
	return inv.Responder.Reply(ctx, msg)
}
