package authmanager

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestUserEnsureStateDefaultsToActive(t *testing.T) {
	u := &User{}

	u.EnsureState()

	if u.State != UserStateActive {
		t.Fatalf("expected default state %q, got %q", UserStateActive, u.State)
	}
}

func TestUserStateHelpers(t *testing.T) {
	cases := []struct {
		name         string
		state        UserState
		check        func(*User) bool
		expectResult bool
	}{
		{name: "active", state: UserStateActive, check: (*User).IsActive, expectResult: true},
		{name: "inactive", state: UserStateInactive, check: (*User).IsInactive, expectResult: true},
		{name: "deleted", state: UserStateDeleted, check: (*User).IsDeleted, expectResult: true},
		{name: "inactive is not active", state: UserStateInactive, check: (*User).IsActive, expectResult: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			u := &User{State: tc.state}
			if got := tc.check(u); got != tc.expectResult {
				t.Fatalf("expected %v, got %v", tc.expectResult, got)
			}
		})
	}

	var nilUser *User
	assert.False(t, nilUser.IsActive())
	assert.False(t, UserState("suspended").IsValid())
}

func TestUserCloneIsDeep(t *testing.T) {
	u := (&User{Username: "alice"}).AddAttr("team", "core")
	c := u.Clone()
	c.Attrs["team"] = "ops"

	assert.Equal(t, "core", u.Attrs["team"])
}

func TestGroupHelpers(t *testing.T) {
	alice, bob := uuid.New(), uuid.New()
	g := &Group{
		Name: "staff",
		Members: []Member{
			{UserID: alice, Roles: []string{"editor"}},
			{UserID: bob},
		},
	}

	assert.True(t, g.HasMember(alice))
	assert.False(t, g.HasMember(uuid.New()))
	assert.Equal(t, []uuid.UUID{alice, bob}, g.MemberIDs())
	assert.Equal(t, []string{"editor"}, g.RolesFor(alice))
	assert.Equal(t, []string{}, g.RolesFor(uuid.New()))

	c := g.Clone()
	c.Members[0].Roles[0] = "owner"
	assert.Equal(t, []string{"editor"}, g.RolesFor(alice))
}

func TestRoleHelpers(t *testing.T) {
	roles, changed := AppendRole(nil, "editor")
	assert.True(t, changed)
	roles, changed = AppendRole(roles, "editor")
	assert.False(t, changed)
	roles, _ = AppendRole(roles, "Editor")
	assert.Equal(t, []string{"editor", "Editor"}, roles)

	roles, changed = RemoveRole(roles, "editor")
	assert.True(t, changed)
	assert.Equal(t, []string{"Editor"}, roles)
	_, changed = RemoveRole(roles, "missing")
	assert.False(t, changed)
}

func TestIssuedAPIKeyHeader(t *testing.T) {
	k := IssuedAPIKey{APIKey: APIKey{Identity: "abc"}, Secret: "def"}
	assert.Equal(t, "abc.def", k.Header())
}
