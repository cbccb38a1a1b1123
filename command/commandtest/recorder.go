// Package commandtest provides a recording command.Responder for tests.
package commandtest

import (
	"context"
	"errors"
	"sync"

	"github.com/xraph/warden/command"
	"github.com/xraph/warden/reply"
)

// ErrInvalidState is returned when a call is not valid in the current state.
var ErrInvalidState = errors.New("commandtest: invalid responder state")

// Call is one recorded responder call.
type Call struct {
	Op        string // reply, defer, edit, followup, delete
	Message   reply.Message
	Ephemeral bool
}

// Recorder is a command.Responder that records every call and enforces the
// same state rules as the live responder.
type Recorder struct {
	mu    sync.Mutex
	state command.ResponderState
	calls []Call

	// Err, when set, is returned by every call.
	Err error
}

var _ command.Responder = (*Recorder)(nil)

func (r *Recorder) Reply(_ context.Context, msg reply.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	if r.state != command.StateNone {
		return ErrInvalidState
	}
	r.calls = append(r.calls, Call{Op: "reply", Message: msg, Ephemeral: msg.Ephemeral})
	r.state = command.StateReplied
	return nil
}

func (r *Recorder) Defer(_ context.Context, ephemeral bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	if r.state != command.StateNone {
		return ErrInvalidState
	}
	r.calls = append(r.calls, Call{Op: "defer", Ephemeral: ephemeral})
	r.state = command.StateDeferred
	return nil
}

func (r *Recorder) Edit(_ context.Context, msg reply.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	if r.state == command.StateNone {
		return ErrInvalidState
	}
	r.calls = append(r.calls, Call{Op: "edit", Message: msg, Ephemeral: msg.Ephemeral})
	r.state = command.StateReplied
	return nil
}

func (r *Recorder) FollowUp(_ context.Context, msg reply.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	if r.state == command.StateNone {
		return ErrInvalidState
	}
	r.calls = append(r.calls, Call{Op: "followup", Message: msg, Ephemeral: msg.Ephemeral})
	r.state = command.StateReplied
	return nil
}

func (r *Recorder) Delete(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.calls = append(r.calls, Call{Op: "delete"})
	return nil
}

func (r *Recorder) State() command.ResponderState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Calls returns a copy of the recorded calls.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// Visible returns the recorded calls that produce a caller-visible message.
func (r *Recorder) Visible() []Call {
	var out []Call
	for _, c := range r.Calls() {
		switch c.Op {
		case "reply", "edit", "followup":
			out = append(out, c)
		}
	}
	return out
}

// Last returns the last visible call, or false when there is none.
func (r *Recorder) Last() (Call, bool) {
	v := r.Visible()
	if len(v) == 0 {
		return Call{}, false
	}
	return v[len(v)-1], true
}
