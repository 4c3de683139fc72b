package authmanager

import (
	"time"

	"github.com/google/uuid"
)

// UserState is the lifecycle state of an account.
type UserState string

const (
	// UserStateActive accounts can authenticate.
	UserStateActive UserState = "active"
	// UserStateInactive accounts exist but cannot authenticate.
	UserStateInactive UserState = "inactive"
	// UserStateDeleted is terminal; the record is removed from the store.
	UserStateDeleted UserState = "deleted"
)

// IsValid reports whether s is one of the known states.
func (s UserState) IsValid() bool {
	switch s {
	case UserStateActive, UserStateInactive, UserStateDeleted:
		return true
	default:
		return false
	}
}

// User is the canonical account representation. It intentionally has no
// credential field: hashes stay inside the UserStore.
type User struct {
	ID              uuid.UUID      `json:"id"`
	Username        string         `json:"username"`
	Email           string         `json:"email,omitempty"`
	Phone           string         `json:"phone,omitempty"`
	State           UserState      `json:"state"`
	Nonce           string         `json:"nonce,omitempty"`
	IsAdministrator bool           `json:"is_administrator,omitempty"`
	Attrs           map[string]any `json:"attrs,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// EnsureState defaults an empty state to active.
func (u *User) EnsureState() {
	if u != nil && u.State == "" {
		u.State = UserStateActive
	}
}

// IsActive reports whether the account may authenticate.
func (u *User) IsActive() bool {
	return u != nil && u.State == UserStateActive
}

// IsInactive reports whether the account was deactivated.
func (u *User) IsInactive() bool {
	return u != nil && u.State == UserStateInactive
}

// IsDeleted reports whether the account reached the terminal state.
func (u *User) IsDeleted() bool {
	return u != nil && u.State == UserStateDeleted
}

// AddAttr sets an extension attribute.
func (u *User) AddAttr(key string, val any) *User {
	if u.Attrs == nil {
		u.Attrs = make(map[string]any)
	}
	u.Attrs[key] = val
	return u
}

// Clone returns a copy that shares no maps with u.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	c.Attrs = cloneAttrs(u.Attrs)
	return &c
}

// Member is one entry of a group's membership set.
type Member struct {
	UserID uuid.UUID `json:"user_id"`
	Roles  []string  `json:"roles"`
}

// Group owns a membership set and the per-member role lists.
type Group struct {
	Name      string         `json:"name"`
	Members   []Member       `json:"members"`
	Attrs     map[string]any `json:"attrs,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// HasMember reports whether id is in the membership set.
func (g *Group) HasMember(id uuid.UUID) bool {
	if g == nil {
		return false
	}
	for _, m := range g.Members {
		if m.UserID == id {
			return true
		}
	}
	return false
}

// MemberIDs returns the member ids in insertion order.
func (g *Group) MemberIDs() []uuid.UUID {
	if g == nil {
		return nil
	}
	ids := make([]uuid.UUID, 0, len(g.Members))
	for _, m := range g.Members {
		ids = append(ids, m.UserID)
	}
	return ids
}

// RolesFor returns the roles granted to id, or an empty list.
func (g *Group) RolesFor(id uuid.UUID) []string {
	if g != nil {
		for _, m := range g.Members {
			if m.UserID == id {
				return append([]string{}, m.Roles...)
			}
		}
	}
	return []string{}
}

// Clone returns a deep copy of g.
func (g *Group) Clone() *Group {
	if g == nil {
		return nil
	}
	c := *g
	c.Attrs = cloneAttrs(g.Attrs)
	c.Members = make([]Member, len(g.Members))
	for i, m := range g.Members {
		c.Members[i] = Member{UserID: m.UserID, Roles: append([]string{}, m.Roles...)}
	}
	return &c
}

// APIKey is a secondary credential bound to a user. The secret is not part
// of the record; only its digest is stored.
type APIKey struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Identity  string    `json:"api_identity"`
	Label     string    `json:"label,omitempty"`
	CreatedAt time.Time `json:"created_at"`

	// OwnerNonce is the owner's nonce at issue time. A key only resolves to
	// the user record it was issued for.
	OwnerNonce string `json:"-"`
}

// Clone returns a copy of k.
func (k *APIKey) Clone() *APIKey {
	if k == nil {
		return nil
	}
	c := *k
	return &c
}

// IssuedAPIKey is returned once, at issue time, and is the only place the
// plain secret is ever visible.
type IssuedAPIKey struct {
	APIKey
	Secret string `json:"api_secret"`
}

// Header returns the "identity.secret" form accepted by ParseAPIKeyHeader.
func (k IssuedAPIKey) Header() string {
	return k.Identity + apiKeyHeaderSeparator + k.Secret
}

// UserProfile is the read representation of a user with its memberships.
type UserProfile struct {
	*User
	Groups []string            `json:"groups"`
	Roles  map[string][]string `json:"roles,omitempty"`
}

func cloneAttrs(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}
	dst := make(map[string]any, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
