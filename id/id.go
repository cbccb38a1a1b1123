// Package id defines TypeID-based identifiers for Warden's transient records.
//
// Invocations, waitlist notifications and command deployments each carry an
// ID so that every log line and trace span produced while handling them can
// be correlated. IDs are K-sortable (UUIDv7-based) and render as
// "prefix_suffix".
package id

import (
	"fmt"

	"go.jetify.com/typeid/v2"
)

// Prefix identifies the record type encoded in a TypeID.
type Prefix string

// Prefix constants for all Warden record types.
const (
	PrefixInvocation   Prefix = "inv"
	PrefixNotification Prefix = "ntf"
	PrefixDeployment   Prefix = "dep"
)

// ID is the identifier type shared by all Warden records.
//
//nolint:recvcheck // Value receivers for read-only methods, pointer receiver for UnmarshalText.
type ID struct {
	inner typeid.TypeID
	valid bool
}

// Nil is the zero-value ID.
var Nil ID

// generate returns a new ID with the given prefix. It panics on an invalid
// prefix, which only the constants below can supply.
func generate(prefix Prefix) ID {
	tid, err := typeid.Generate(string(prefix))
	if err != nil {
		panic(fmt.Sprintf("id: invalid prefix %q: %v", prefix, err))
	}

	return ID{inner: tid, valid: true}
}

// Parse parses a TypeID string (e.g. "inv_01h455vb4pex5vsknk084sn02q").
func Parse(s string) (ID, error) {
	if s == "" {
		return Nil, fmt.Errorf("id: parse %q: empty string", s)
	}

	tid, err := typeid.Parse(s)
	if err != nil {
		return Nil, fmt.Errorf("id: parse %q: %w", s, err)
	}

	return ID{inner: tid, valid: true}, nil
}

// NewInvocationID generates a new slash-command invocation ID.
func NewInvocationID() ID { return generate(PrefixInvocation) }

// NewNotificationID generates a new waitlist notification ID.
func NewNotificationID() ID { return generate(PrefixNotification) }

// NewDeploymentID generates a new command deployment ID.
func NewDeploymentID() ID { return generate(PrefixDeployment) }

// String returns the full TypeID string, or "" for Nil.
func (i ID) String() string {
	if !i.valid {
		return ""
	}

	return i.inner.String()
}

// Prefix returns the prefix component of this ID.
func (i ID) Prefix() Prefix {
	if !i.valid {
		return ""
	}

	return Prefix(i.inner.Prefix())
}

// IsNil reports whether this ID is the zero value.
func (i ID) IsNil() bool {
	return !i.valid
}

// MarshalText implements encoding.TextMarshaler.
func (i ID) MarshalText() ([]byte, error) {
	if !i.valid {
		return []byte{}, nil
	}

	return []byte(i.inner.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (i *ID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*i = Nil

		return nil
	}

	parsed, err := Parse(string(data))
	if err != nil {
		return err
	}

	*i = parsed

	return nil
}
