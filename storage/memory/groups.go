package memory

import (
	"context"

	"github.com/google/uuid"

	authmanager "github.com/goliatone/go-authmanager"
)

type groupStore struct{ view }

// Create stores an empty group. Members set on group are ignored; use
// AddMembers.
func (s groupStore) Create(_ context.Context, group *authmanager.Group) (*authmanager.Group, error) {
	if group == nil {
		return nil, authmanager.ErrNotFound
	}
	var out *authmanager.Group
	err := s.write(func(st *state) error {
		if _, ok := st.groups[group.Name]; ok {
			return authmanager.ErrDuplicateGroup
		}
		record := group.Clone()
		record.Members = []authmanager.Member{}
		if record.CreatedAt.IsZero() {
			record.CreatedAt = s.b.now()
		}
		st.groups[record.Name] = record
		out = record.Clone()
		return nil
	})
	return out, err
}

func (s groupStore) Get(_ context.Context, name string) (*authmanager.Group, error) {
	var out *authmanager.Group
	err := s.read(func(st *state) error {
		g, ok := st.groups[name]
		if !ok {
			return authmanager.ErrNotFound
		}
		out = g.Clone()
		return nil
	})
	return out, err
}

// List returns groups ordered by name.
func (s groupStore) List(_ context.Context) ([]*authmanager.Group, error) {
	var out []*authmanager.Group
	err := s.read(func(st *state) error {
		out = make([]*authmanager.Group, 0, len(st.groups))
		for _, g := range st.groups {
			out = append(out, g.Clone())
		}
		return nil
	})
	sortGroups(out)
	return out, err
}

func (s groupStore) Delete(_ context.Context, name string) error {
	return s.write(func(st *state) error {
		if _, ok := st.groups[name]; !ok {
			return authmanager.ErrNotFound
		}
		delete(st.groups, name)
		return nil
	})
}

func (s groupStore) AddMembers(_ context.Context, name string, userIDs []uuid.UUID) error {
	return s.write(func(st *state) error {
		g, ok := st.groups[name]
		if !ok {
			return authmanager.ErrNotFound
		}
		for _, id := range userIDs {
			if !g.HasMember(id) {
				g.Members = append(g.Members, authmanager.Member{UserID: id, Roles: []string{}})
			}
		}
		return nil
	})
}

func (s groupStore) RemoveMembers(_ context.Context, name string, userIDs []uuid.UUID) error {
	return s.write(func(st *state) error {
		g, ok := st.groups[name]
		if !ok {
			return authmanager.ErrNotFound
		}
		drop := make(map[uuid.UUID]struct{}, len(userIDs))
		for _, id := range userIDs {
			drop[id] = struct{}{}
		}
		kept := g.Members[:0]
		for _, m := range g.Members {
			if _, ok := drop[m.UserID]; !ok {
				kept = append(kept, m)
			}
		}
		g.Members = kept
		return nil
	})
}

// GroupsForUser returns the groups userID belongs to, ordered by name.
func (s groupStore) GroupsForUser(_ context.Context, userID uuid.UUID) ([]*authmanager.Group, error) {
	var out []*authmanager.Group
	err := s.read(func(st *state) error {
		for _, g := range st.groups {
			if g.HasMember(userID) {
				out = append(out, g.Clone())
			}
		}
		return nil
	})
	sortGroups(out)
	return out, err
}

// GrantRole adds role to the member's role set. The update is applied to the
// current list under the lock, never from a caller's earlier read.
func (s groupStore) GrantRole(_ context.Context, name string, userID uuid.UUID, role string) error {
	return s.write(func(st *state) error {
		m, err := member(st, name, userID)
		if err != nil {
			return err
		}
		m.Roles, _ = authmanager.AppendRole(m.Roles, role)
		return nil
	})
}

func (s groupStore) RevokeRole(_ context.Context, name string, userID uuid.UUID, role string) error {
	return s.write(func(st *state) error {
		m, err := member(st, name, userID)
		if err != nil {
			if err == authmanager.ErrUnknownMember {
				return nil
			}
			return err
		}
		m.Roles, _ = authmanager.RemoveRole(m.Roles, role)
		return nil
	})
}

func (s groupStore) Roles(_ context.Context, name string, userID uuid.UUID) ([]string, error) {
	var out []string
	err := s.read(func(st *state) error {
		g, ok := st.groups[name]
		if !ok {
			return authmanager.ErrNotFound
		}
		out = g.RolesFor(userID)
		return nil
	})
	return out, err
}

// PurgeUser removes userID from every group.
func (s groupStore) PurgeUser(_ context.Context, userID uuid.UUID) error {
	return s.write(func(st *state) error {
		for _, g := range st.groups {
			kept := g.Members[:0]
			for _, m := range g.Members {
				if m.UserID != userID {
					kept = append(kept, m)
				}
			}
			g.Members = kept
		}
		return nil
	})
}

func member(st *state, name string, userID uuid.UUID) (*authmanager.Member, error) {
	g, ok := st.groups[name]
	if !ok {
		return nil, authmanager.ErrNotFound
	}
	for i := range g.Members {
		if g.Members[i].UserID == userID {
			return &g.Members[i], nil
		}
	}
	return nil, authmanager.ErrUnknownMember
}
