package authmanager

import (
	"context"
	"sort"

	"github.com/google/uuid"
)

// GroupService manages groups, memberships and role grants. Authorization of
// these calls belongs to the caller; use Gate before invoking them on behalf
// of a user.
type GroupService struct {
	*core
}

// MemberView pairs a member's user record with its roles in one group.
type MemberView struct {
	User  *User    `json:"user"`
	Roles []string `json:"roles"`
}

// Create registers a new group.
func (s *GroupService) Create(ctx context.Context, name string, attrs map[string]any) (*Group, error) {
	if err := ValidateGroupName(name); err != nil {
		return nil, err
	}
	group, err := s.backend.Groups().Create(ctx, &Group{
		Name:      name,
		Attrs:     cloneAttrs(attrs),
		CreatedAt: s.now(),
	})
	if err != nil {
		return nil, internalError(err, "failed to create group")
	}
	s.logger.Info("group created", "group", name)
	return group, nil
}

// Get returns the group called name.
func (s *GroupService) Get(ctx context.Context, name string) (*Group, error) {
	return s.backend.Groups().Get(ctx, name)
}

// List returns every group.
func (s *GroupService) List(ctx context.Context) ([]*Group, error) {
	return s.backend.Groups().List(ctx)
}

// Delete removes a group with its memberships and grants. The default group
// cannot be deleted.
func (s *GroupService) Delete(ctx context.Context, name string) error {
	if name == s.defaultGroup {
		return ErrForbidden
	}
	return s.backend.Groups().Delete(ctx, name)
}

// AddMembers adds existing users to the group. Unknown user ids fail the
// whole call with ErrNotFound.
func (s *GroupService) AddMembers(ctx context.Context, name string, userIDs []uuid.UUID) error {
	return s.backend.RunInTx(ctx, func(ctx context.Context, tx Stores) error {
		for _, id := range userIDs {
			if _, err := tx.Users().GetByID(ctx, id); err != nil {
				return err
			}
		}
		return tx.Groups().AddMembers(ctx, name, userIDs)
	})
}

// RemoveMembers removes users from the group together with their roles in it.
func (s *GroupService) RemoveMembers(ctx context.Context, name string, userIDs []uuid.UUID) error {
	return s.backend.Groups().RemoveMembers(ctx, name, userIDs)
}

// GrantRole grants role to a member of the group.
func (s *GroupService) GrantRole(ctx context.Context, name string, userID uuid.UUID, role string) error {
	if role == "" {
		return invalidGroupError(errEmptyRole)
	}
	if err := s.backend.Groups().GrantRole(ctx, name, userID, role); err != nil {
		return err
	}
	s.events.record(ctx, ActivityEvent{
		EventType: ActivityEventRoleGranted,
		UserID:    userID.String(),
		Metadata:  map[string]any{"group": name, "role": role},
	})
	return nil
}

// RevokeRole revokes role; revoking an absent grant is a no-op.
func (s *GroupService) RevokeRole(ctx context.Context, name string, userID uuid.UUID, role string) error {
	if err := s.backend.Groups().RevokeRole(ctx, name, userID, role); err != nil {
		return err
	}
	s.events.record(ctx, ActivityEvent{
		EventType: ActivityEventRoleRevoked,
		UserID:    userID.String(),
		Metadata:  map[string]any{"group": name, "role": role},
	})
	return nil
}

// Roles returns the roles userID holds in the group.
func (s *GroupService) Roles(ctx context.Context, name string, userID uuid.UUID) ([]string, error) {
	return s.backend.Groups().Roles(ctx, name, userID)
}

// GroupsForUser returns the groups userID belongs to.
func (s *GroupService) GroupsForUser(ctx context.Context, userID uuid.UUID) ([]*Group, error) {
	return s.backend.Groups().GroupsForUser(ctx, userID)
}

// Members lists the group's members with their roles. Members whose user
// record no longer exists are skipped.
func (s *GroupService) Members(ctx context.Context, name string) ([]MemberView, error) {
	var members []MemberView
	err := s.backend.RunInTx(ctx, func(ctx context.Context, tx Stores) error {
		group, err := tx.Groups().Get(ctx, name)
		if err != nil {
			return err
		}
		members = make([]MemberView, 0, len(group.Members))
		for _, m := range group.Members {
			user, err := tx.Users().GetByID(ctx, m.UserID)
			if err != nil {
				if IsKind(err, ErrNotFound) {
					continue
				}
				return err
			}
			members = append(members, MemberView{User: user, Roles: append([]string{}, m.Roles...)})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return members, nil
}

// GrantMapping grants roles to users by username in one transaction, adding
// users that are not yet members. An unknown username fails the whole call.
func (s *GroupService) GrantMapping(ctx context.Context, name string, mapping map[string][]string) error {
	return s.backend.RunInTx(ctx, func(ctx context.Context, tx Stores) error {
		if _, err := tx.Groups().Get(ctx, name); err != nil {
			return err
		}
		for _, username := range sortedKeys(mapping) {
			user, err := tx.Users().GetByUsername(ctx, username)
			if err != nil {
				return err
			}
			if err := tx.Groups().AddMembers(ctx, name, []uuid.UUID{user.ID}); err != nil {
				return err
			}
			for _, role := range mapping[username] {
				if role == "" {
					return invalidGroupError(errEmptyRole)
				}
				if err := tx.Groups().GrantRole(ctx, name, user.ID, role); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// RevokeMapping revokes roles by username in one transaction. Members left
// without any role are removed from the group, mirroring GrantMapping.
func (s *GroupService) RevokeMapping(ctx context.Context, name string, mapping map[string][]string) error {
	return s.backend.RunInTx(ctx, func(ctx context.Context, tx Stores) error {
		if _, err := tx.Groups().Get(ctx, name); err != nil {
			return err
		}
		for _, username := range sortedKeys(mapping) {
			user, err := tx.Users().GetByUsername(ctx, username)
			if err != nil {
				return err
			}
			for _, role := range mapping[username] {
				if err := tx.Groups().RevokeRole(ctx, name, user.ID, role); err != nil {
					return err
				}
			}
			roles, err := tx.Groups().Roles(ctx, name, user.ID)
			if err != nil {
				return err
			}
			if len(roles) == 0 && name != s.defaultGroup {
				if err := tx.Groups().RemoveMembers(ctx, name, []uuid.UUID{user.ID}); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// UserRoles returns a group name to roles map for userID, omitting groups
// where the user holds no role.
func (s *GroupService) UserRoles(ctx context.Context, userID uuid.UUID) (map[string][]string, error) {
	groups, err := s.backend.Groups().GroupsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]string, len(groups))
	for _, g := range groups {
		if roles := g.RolesFor(userID); len(roles) > 0 {
			out[g.Name] = roles
		}
	}
	return out, nil
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
