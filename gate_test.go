package authmanager_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	authmanager "github.com/goliatone/go-authmanager"
)

func TestGateScopedRoles(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)
	alice := mustCreateUser(t, m, "alice", "p1")
	identity := authmanager.NewIdentityFromUser(alice)
	gate := m.Gate()

	_, err := m.Groups().Create(ctx, "staff", nil)
	require.NoError(t, err)
	require.NoError(t, m.Groups().AddMembers(ctx, "staff", []uuid.UUID{alice.ID}))
	require.NoError(t, m.Groups().GrantRole(ctx, "staff", alice.ID, "editor"))

	ok, err := gate.HasRole(ctx, identity, "editor", "staff")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = gate.HasRole(ctx, identity, "editor", "")
	require.NoError(t, err)
	assert.False(t, ok, "a scoped grant does not count globally")

	ok, err = gate.HasRole(ctx, identity, "editor", "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.Groups().RevokeRole(ctx, "staff", alice.ID, "editor"))
	ok, err = gate.HasRole(ctx, identity, "editor", "staff")
	require.NoError(t, err)
	assert.False(t, ok, "revocation is visible to the very next check")

	assert.True(t, authmanager.IsKind(gate.Require(ctx, identity, "editor", "staff"), authmanager.ErrForbidden))
}

func TestGateGlobalRoles(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)
	admin := mustCreateAdmin(t, m, "root")
	alice := mustCreateUser(t, m, "alice", "p1")
	identity := authmanager.NewIdentityFromUser(alice)
	gate := m.Gate()

	ok, err := gate.IsAdmin(ctx, admin)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = gate.IsAdmin(ctx, identity)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.Groups().GrantRole(ctx, authmanager.DefaultGroupName, alice.ID, authmanager.RoleAdministrator))
	ok, err = gate.IsAdmin(ctx, identity)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = gate.HasRole(ctx, authmanager.SystemIdentity(), "anything", "anywhere")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = gate.HasRole(ctx, nil, authmanager.RoleAdministrator, "")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGateDeletedUserLosesRoles(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)
	admin := mustCreateAdmin(t, m, "root")

	id, err := authmanager.IdentityUUID(admin)
	require.NoError(t, err)
	_, err = m.Delete(ctx, admin, id)
	require.NoError(t, err)

	ok, err := m.Gate().IsAdmin(ctx, admin)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGateSelfChecks(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)
	alice := mustCreateUser(t, m, "alice", "p1")
	bob := mustCreateUser(t, m, "bob", "p2")
	identity := authmanager.NewIdentityFromUser(alice)

	assert.True(t, authmanager.IsSelf(identity, alice.ID))
	assert.False(t, authmanager.IsSelf(identity, bob.ID))
	assert.False(t, authmanager.IsSelf(authmanager.SystemIdentity(), alice.ID))

	assert.NoError(t, m.Gate().RequireSelf(identity, alice.ID))
	assert.NoError(t, m.Gate().RequireSelf(authmanager.SystemIdentity(), alice.ID))
	assert.True(t, authmanager.IsKind(m.Gate().RequireSelf(identity, bob.ID), authmanager.ErrForbidden))

	assert.NoError(t, m.Gate().RequireSelfOrAdmin(ctx, identity, alice.ID))
	assert.True(t, authmanager.IsKind(m.Gate().RequireSelfOrAdmin(ctx, identity, bob.ID), authmanager.ErrForbidden))
}

func TestGateCustomAdminRole(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, authmanager.WithAdminRole("superuser"))
	admin := mustCreateAdmin(t, m, "root")

	assert.Equal(t, "superuser", m.Gate().AdminRole())
	ok, err := m.Gate().HasRole(ctx, admin, "superuser", "")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = m.Gate().HasRole(ctx, admin, authmanager.RoleAdministrator, "")
	require.NoError(t, err)
	assert.False(t, ok)
}
