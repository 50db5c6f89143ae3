package action

import (
	"context"
	"fmt"

	"github.com/streamkitdev/streamkit/internal/platform"
)

// RoleGrant assigns a guild role. Payload: guild_id, user_id, role_id; all
// support placeholders so a rule can target the triggering user.
type RoleGrant struct {
	Roles platform.RoleManager
}

func (a *RoleGrant) Type() string { return TypeRoleGrant }

func (a *RoleGrant) Execute(ctx context.Context, actx *Context, payload map[string]any) error {
	guild, user, role, err := roleParams(payload)
	if err != nil {
		return fmt.Errorf("role_grant: %w", err)
	}
	return a.Roles.GrantRole(ctx, guild, user, role)
}

// RoleRevoke removes a guild role. Payload as RoleGrant.
type RoleRevoke struct {
	Roles platform.RoleManager
}

func (a *RoleRevoke) Type() string { return TypeRoleRevoke }

func (a *RoleRevoke) Execute(ctx context.Context, actx *Context, payload map[string]any) error {
	guild, user, role, err := roleParams(payload)
	if err != nil {
		return fmt.Errorf("role_revoke: %w", err)
	}
	return a.Roles.RevokeRole(ctx, guild, user, role)
}

func roleParams(payload map[string]any) (guild, user, role string, err error) {
	guild = str(payload, "guild_id")
	user = str(payload, "user_id")
	role = str(payload, "role_id")
	if guild == "" || user == "" || role == "" {
		return "", "", "", fmt.Errorf("guild_id, user_id and role_id are required")
	}
	return guild, user, role, nil
}
