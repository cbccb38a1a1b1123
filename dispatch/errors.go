package dispatch

import (
	"errors"
	"fmt"
)

// ErrNoReply is reported when a handler returned without producing a
// visible reply.
var ErrNoReply = errors.New("dispatch: handler finished without replying")

// HandlerError wraps a failure raised inside a command handler,
// including recovered panics.
type HandlerError struct {
	Command string
	Err     error
	Panic   bool
}

func (e *HandlerError) Error() string {
	if e.Panic {
		return fmt.Sprintf("dispatch: command %q panicked: %v", e.Command, e.Err)
	}
	return fmt.Sprintf("dispatch: command %q failed: %v", e.Command, e.Err)
}

func (e *HandlerError) Unwrap() error { return e.Err }
