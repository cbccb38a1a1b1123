package command

import "context"

// ParamType is the value type of a command parameter.
type ParamType string

// Supported parameter types.
const (
	ParamString  ParamType = "string"
	ParamInteger ParamType = "integer"
	ParamUser    ParamType = "user"
	ParamBoolean ParamType = "boolean"
)

// Default member permission bits advertised to the platform.
const (
	PermKickMembers     int64 = 1 << 1
	PermBanMembers      int64 = 1 << 2
	PermManageMessages  int64 = 1 << 13
	PermModerateMembers int64 = 1 << 40
)

// Definition is the canonical description of a slash command.
// Definitions are declared in code, loaded into the Registry at start and
// never mutated afterwards.
type Definition struct {
	// Name is the unique command name, e.g. "ban".
	Name string `json:"name"`

	// Description is shown next to the command in the platform's picker.
	Description string `json:"description"`

	// Params is the ordered parameter list.
	Params []Param `json:"params,omitempty"`

	// Permissions is the default member permission bitset. Zero means
	// everyone can see the command.
	Permissions int64 `json:"permissions,omitempty"`

	// RequiresPrivilege restricts the command to privileged callers.
	// The dispatcher enforces it before the handler runs.
	RequiresPrivilege bool `json:"requires_privilege,omitempty"`

	// Handler executes the command.
	Handler Handler `json:"-"`
}

// Param describes one typed command parameter.
type Param struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Type        ParamType `json:"type"`
	Required    bool      `json:"required,omitempty"`
	Min         *float64  `json:"min,omitempty"`
	Max         *float64  `json:"max,omitempty"`
}

// Bound returns a pointer to v, for use in Param.Min and Param.Max.
func Bound(v float64) *float64 { return &v }

// Handler executes a command invocation.
type Handler interface {
	Handle(ctx context.Context, inv *Invocation) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, inv *Invocation) error

// Handle calls f(ctx, inv).
func (f HandlerFunc) Handle(ctx context.Context, inv *Invocation) error {
	return f(ctx, inv)
}
