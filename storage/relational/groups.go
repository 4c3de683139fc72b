package relational

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"

	authmanager "github.com/goliatone/go-authmanager"
)

// Membership and role rows carry a per-group position so members and roles
// keep their insertion order. Both inserts are single set-based statements;
// concurrent grants never overwrite each other.
const (
	// %s is the user id placeholder; postgres needs an explicit uuid cast
	// for a bound literal in a select list.
	addMemberSQL = `INSERT INTO group_members (group_name, user_id, position)
SELECT grp.name, %s, COALESCE((SELECT MAX(m.position) FROM group_members AS m WHERE m.group_name = grp.name), 0) + 1
FROM auth_groups AS grp
WHERE grp.name = ?
ON CONFLICT (group_name, user_id) DO NOTHING`

	grantRoleSQL = `INSERT INTO group_roles (group_name, user_id, role, position)
SELECT gm.group_name, gm.user_id, ?, COALESCE((SELECT MAX(r.position) FROM group_roles AS r WHERE r.group_name = gm.group_name AND r.user_id = gm.user_id), 0) + 1
FROM group_members AS gm
WHERE gm.group_name = ? AND gm.user_id = ?
ON CONFLICT (group_name, user_id, role) DO NOTHING`
)

type groupStore struct{ stores }

// Create stores an empty group. Members set on group are ignored; use
// AddMembers.
func (s groupStore) Create(ctx context.Context, group *authmanager.Group) (*authmanager.Group, error) {
	if group == nil {
		return nil, authmanager.ErrNotFound
	}
	record := &groupModel{Name: group.Name, Attrs: group.Attrs, CreatedAt: group.CreatedAt}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = s.b.now()
	}

	err := atomic(ctx, s.idb, func(ctx context.Context, tx bun.IDB) error {
		exists, err := tx.NewSelect().Model((*groupModel)(nil)).Where("grp.name = ?", record.Name).Exists(ctx)
		if err != nil {
			return storeError(err, "failed to check group")
		}
		if exists {
			return authmanager.ErrDuplicateGroup
		}
		if _, err := tx.NewInsert().Model(record).Exec(ctx); err != nil {
			if isUniqueViolation(err) {
				return authmanager.ErrDuplicateGroup
			}
			return storeError(err, "failed to create group")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, record.Name)
}

func (s groupStore) Get(ctx context.Context, name string) (*authmanager.Group, error) {
	record := &groupModel{}
	if err := s.idb.NewSelect().Model(record).Where("grp.name = ?", name).Scan(ctx); err != nil {
		return nil, storeError(err, "failed to load group")
	}
	groups, err := s.hydrate(ctx, []*groupModel{record})
	if err != nil {
		return nil, err
	}
	return groups[0], nil
}

// List returns groups ordered by name.
func (s groupStore) List(ctx context.Context) ([]*authmanager.Group, error) {
	var records []*groupModel
	if err := s.idb.NewSelect().Model(&records).Order("grp.name").Scan(ctx); err != nil {
		return nil, storeError(err, "failed to list groups")
	}
	return s.hydrate(ctx, records)
}

func (s groupStore) Delete(ctx context.Context, name string) error {
	return atomic(ctx, s.idb, func(ctx context.Context, tx bun.IDB) error {
		res, err := tx.NewDelete().Model((*groupModel)(nil)).Where("name = ?", name).Exec(ctx)
		if err != nil {
			return storeError(err, "failed to delete group")
		}
		if rowsAffected(res) == 0 {
			return authmanager.ErrNotFound
		}
		if _, err := tx.NewDelete().Model((*roleModel)(nil)).Where("group_name = ?", name).Exec(ctx); err != nil {
			return storeError(err, "failed to delete group roles")
		}
		if _, err := tx.NewDelete().Model((*memberModel)(nil)).Where("group_name = ?", name).Exec(ctx); err != nil {
			return storeError(err, "failed to delete group members")
		}
		return nil
	})
}

func (s groupStore) AddMembers(ctx context.Context, name string, userIDs []uuid.UUID) error {
	query := fmt.Sprintf(addMemberSQL, "?")
	if s.idb.Dialect().Name() == dialect.PG {
		query = fmt.Sprintf(addMemberSQL, "CAST(? AS uuid)")
	}
	return atomic(ctx, s.idb, func(ctx context.Context, tx bun.IDB) error {
		if err := groupExists(ctx, tx, name); err != nil {
			return err
		}
		for _, id := range userIDs {
			if _, err := tx.ExecContext(ctx, query, id, name); err != nil {
				return storeError(err, "failed to add group member")
			}
		}
		return nil
	})
}

func (s groupStore) RemoveMembers(ctx context.Context, name string, userIDs []uuid.UUID) error {
	return atomic(ctx, s.idb, func(ctx context.Context, tx bun.IDB) error {
		if err := groupExists(ctx, tx, name); err != nil {
			return err
		}
		if len(userIDs) == 0 {
			return nil
		}
		if _, err := tx.NewDelete().Model((*roleModel)(nil)).
			Where("group_name = ?", name).
			Where("user_id IN (?)", bun.In(userIDs)).
			Exec(ctx); err != nil {
			return storeError(err, "failed to delete member roles")
		}
		if _, err := tx.NewDelete().Model((*memberModel)(nil)).
			Where("group_name = ?", name).
			Where("user_id IN (?)", bun.In(userIDs)).
			Exec(ctx); err != nil {
			return storeError(err, "failed to remove group members")
		}
		return nil
	})
}

// GroupsForUser returns the groups userID belongs to, ordered by name.
func (s groupStore) GroupsForUser(ctx context.Context, userID uuid.UUID) ([]*authmanager.Group, error) {
	var records []*groupModel
	err := s.idb.NewSelect().Model(&records).
		Where("grp.name IN (?)", s.idb.NewSelect().Model((*memberModel)(nil)).Column("gm.group_name").Where("gm.user_id = ?", userID)).
		Order("grp.name").
		Scan(ctx)
	if err != nil {
		return nil, storeError(err, "failed to list user groups")
	}
	return s.hydrate(ctx, records)
}

func (s groupStore) GrantRole(ctx context.Context, name string, userID uuid.UUID, role string) error {
	res, err := s.idb.ExecContext(ctx, grantRoleSQL, role, name, userID)
	if err != nil {
		return storeError(err, "failed to grant role")
	}
	if rowsAffected(res) > 0 {
		return nil
	}

	// nothing inserted: either the grant already exists or the member is missing
	if err := groupExists(ctx, s.idb, name); err != nil {
		return err
	}
	member, err := s.idb.NewSelect().Model((*memberModel)(nil)).
		Where("gm.group_name = ?", name).
		Where("gm.user_id = ?", userID).
		Exists(ctx)
	if err != nil {
		return storeError(err, "failed to check membership")
	}
	if !member {
		return authmanager.ErrUnknownMember
	}
	return nil
}

func (s groupStore) RevokeRole(ctx context.Context, name string, userID uuid.UUID, role string) error {
	res, err := s.idb.NewDelete().Model((*roleModel)(nil)).
		Where("group_name = ?", name).
		Where("user_id = ?", userID).
		Where("role = ?", role).
		Exec(ctx)
	if err != nil {
		return storeError(err, "failed to revoke role")
	}
	if rowsAffected(res) == 0 {
		return groupExists(ctx, s.idb, name)
	}
	return nil
}

func (s groupStore) Roles(ctx context.Context, name string, userID uuid.UUID) ([]string, error) {
	if err := groupExists(ctx, s.idb, name); err != nil {
		return nil, err
	}
	roles := []string{}
	err := s.idb.NewSelect().Model((*roleModel)(nil)).
		Column("gr.role").
		Where("gr.group_name = ?", name).
		Where("gr.user_id = ?", userID).
		Order("gr.position", "gr.role").
		Scan(ctx, &roles)
	if err != nil {
		return nil, storeError(err, "failed to load roles")
	}
	return roles, nil
}

// PurgeUser removes userID from every group.
func (s groupStore) PurgeUser(ctx context.Context, userID uuid.UUID) error {
	return atomic(ctx, s.idb, func(ctx context.Context, tx bun.IDB) error {
		if _, err := tx.NewDelete().Model((*roleModel)(nil)).Where("user_id = ?", userID).Exec(ctx); err != nil {
			return storeError(err, "failed to purge user roles")
		}
		if _, err := tx.NewDelete().Model((*memberModel)(nil)).Where("user_id = ?", userID).Exec(ctx); err != nil {
			return storeError(err, "failed to purge user memberships")
		}
		return nil
	})
}

// hydrate loads members and roles for records with two queries.
func (s groupStore) hydrate(ctx context.Context, records []*groupModel) ([]*authmanager.Group, error) {
	out := make([]*authmanager.Group, 0, len(records))
	if len(records) == 0 {
		return out, nil
	}

	names := make([]string, 0, len(records))
	for _, r := range records {
		names = append(names, r.Name)
	}

	var members []memberModel
	if err := s.idb.NewSelect().Model(&members).
		Where("gm.group_name IN (?)", bun.In(names)).
		Order("gm.group_name", "gm.position").
		Scan(ctx); err != nil {
		return nil, storeError(err, "failed to load group members")
	}

	var roles []roleModel
	if err := s.idb.NewSelect().Model(&roles).
		Where("gr.group_name IN (?)", bun.In(names)).
		Order("gr.group_name", "gr.position", "gr.role").
		Scan(ctx); err != nil {
		return nil, storeError(err, "failed to load group roles")
	}

	type key struct {
		group string
		user  uuid.UUID
	}
	granted := map[key][]string{}
	for _, r := range roles {
		k := key{r.GroupName, r.UserID}
		granted[k] = append(granted[k], r.Role)
	}
	byGroup := map[string][]authmanager.Member{}
	for _, m := range members {
		memberRoles := granted[key{m.GroupName, m.UserID}]
		if memberRoles == nil {
			memberRoles = []string{}
		}
		byGroup[m.GroupName] = append(byGroup[m.GroupName], authmanager.Member{UserID: m.UserID, Roles: memberRoles})
	}

	for _, r := range records {
		groupMembers := byGroup[r.Name]
		if groupMembers == nil {
			groupMembers = []authmanager.Member{}
		}
		out = append(out, &authmanager.Group{
			Name:      r.Name,
			Members:   groupMembers,
			Attrs:     r.Attrs,
			CreatedAt: r.CreatedAt,
		})
	}
	return out, nil
}

func groupExists(ctx context.Context, idb bun.IDB, name string) error {
	exists, err := idb.NewSelect().Model((*groupModel)(nil)).Where("grp.name = ?", name).Exists(ctx)
	if err != nil {
		return storeError(err, "failed to check group")
	}
	if !exists {
		return authmanager.ErrNotFound
	}
	return nil
}
