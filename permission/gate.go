// Package permission implements Warden's single-tier permission model.
package permission

import (
	"github.com/xraph/warden/platform"
	"github.com/xraph/warden/reply"
)

// DenyMessage is shown to callers who lack the privileged role.
const DenyMessage = "❌ You do not have permission to use this command. Only Founders can use this command."

// Gate decides whether a caller holds the privileged role.
type Gate struct {
	roleID string
}

// NewGate returns a gate for the given privileged role ID.
func NewGate(roleID string) *Gate {
	return &Gate{roleID: roleID}
}

// RoleID returns the privileged role ID.
func (g *Gate) RoleID() string { return g.roleID }

// IsPrivileged reports whether caller holds the privileged role.
// An unconfigured gate grants nothing.
func (g *Gate) IsPrivileged(caller platform.Caller) bool {
	if g.roleID == "" {
		return false
	}
	return caller.HasRole(g.roleID)
}

// DenyReply returns the standard ephemeral denial.
func (g *Gate) DenyReply() reply.Message {
	return reply.Text(DenyMessage)
}
