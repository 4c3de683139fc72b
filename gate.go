package authmanager

import (
	"context"

	"github.com/google/uuid"
)

// Gate resolves role checks against the current role map. It never caches:
// every call reads the stores so a revoke takes effect immediately.
type Gate struct {
	*core
}

// AdminRole returns the global administrator role name.
func (g *Gate) AdminRole() string { return g.adminRole }

// HasRole reports whether identity holds role. With an empty scope the check
// is global: the user's administrator flag satisfies the admin role, and any
// role granted in the default group counts as held globally. With a scope the
// role must be granted in that group.
func (g *Gate) HasRole(ctx context.Context, identity Identity, role, scope string) (bool, error) {
	if identity == nil || role == "" {
		return false, nil
	}
	if IsSystemIdentity(identity) {
		return true, nil
	}

	id, err := IdentityUUID(identity)
	if err != nil {
		return false, nil
	}

	user, err := g.backend.Users().GetByID(ctx, id)
	if err != nil {
		if IsKind(err, ErrNotFound) {
			return false, nil
		}
		return false, internalError(err, "failed to load user for role check")
	}

	if scope == "" {
		if role == g.adminRole && user.IsAdministrator {
			return true, nil
		}
		scope = g.defaultGroup
	}

	roles, err := g.backend.Groups().Roles(ctx, scope, id)
	if err != nil {
		if IsKind(err, ErrNotFound) {
			return false, nil
		}
		return false, internalError(err, "failed to load roles")
	}

	return ContainsRole(roles, role), nil
}

// IsAdmin reports whether identity holds the global administrator role.
func (g *Gate) IsAdmin(ctx context.Context, identity Identity) (bool, error) {
	return g.HasRole(ctx, identity, g.adminRole, "")
}

// Require returns ErrForbidden unless identity holds role in scope.
func (g *Gate) Require(ctx context.Context, identity Identity, role, scope string) error {
	ok, err := g.HasRole(ctx, identity, role, scope)
	if err != nil {
		return err
	}
	if !ok {
		g.logger.Debug("role check denied", "identity", identityID(identity), "role", role, "scope", scope)
		return ErrForbidden
	}
	return nil
}

// RequireSelfOrAdmin allows identity to act on target when it is target or
// holds the administrator role.
func (g *Gate) RequireSelfOrAdmin(ctx context.Context, identity Identity, target uuid.UUID) error {
	if IsSelf(identity, target) {
		return nil
	}
	return g.Require(ctx, identity, g.adminRole, "")
}

// RequireSelf allows identity to act on target only when it is target.
// SystemIdentity is accepted.
func (g *Gate) RequireSelf(identity Identity, target uuid.UUID) error {
	if IsSystemIdentity(identity) || IsSelf(identity, target) {
		return nil
	}
	return ErrForbidden
}

// IsSelf reports whether identity refers to target.
func IsSelf(identity Identity, target uuid.UUID) bool {
	id, err := IdentityUUID(identity)
	return err == nil && id == target
}

func identityID(identity Identity) string {
	if identity == nil {
		return ""
	}
	return identity.ID()
}
