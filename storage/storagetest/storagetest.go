// Package storagetest holds the behavior every authmanager.Backend must
// share. Backends call Run from their own tests.
package storagetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	authmanager "github.com/goliatone/go-authmanager"
)

// Factory returns a fresh, empty backend. Cleanup is the factory's job.
type Factory func(t *testing.T) authmanager.Backend

// Run executes the shared backend suite.
func Run(t *testing.T, newBackend Factory) {
	t.Run("UserCRUD", func(t *testing.T) { testUserCRUD(t, newBackend(t)) })
	t.Run("UserDuplicates", func(t *testing.T) { testUserDuplicates(t, newBackend(t)) })
	t.Run("UserCopyOnRead", func(t *testing.T) { testUserCopyOnRead(t, newBackend(t)) })
	t.Run("UserStateAndCredential", func(t *testing.T) { testUserStateAndCredential(t, newBackend(t)) })
	t.Run("GroupMembership", func(t *testing.T) { testGroupMembership(t, newBackend(t)) })
	t.Run("GroupRoles", func(t *testing.T) { testGroupRoles(t, newBackend(t)) })
	t.Run("GroupPurgeUser", func(t *testing.T) { testGroupPurgeUser(t, newBackend(t)) })
	t.Run("ConcurrentGrants", func(t *testing.T) { testConcurrentGrants(t, newBackend(t)) })
	t.Run("APIKeys", func(t *testing.T) { testAPIKeys(t, newBackend(t)) })
	t.Run("TxRollback", func(t *testing.T) { testTxRollback(t, newBackend(t)) })
	t.Run("TxCommit", func(t *testing.T) { testTxCommit(t, newBackend(t)) })
}

// NewUser returns a valid user record with a fresh id.
func NewUser(username, email string) *authmanager.User {
	now := time.Now().UTC().Truncate(time.Second)
	return &authmanager.User{
		ID:        uuid.New(),
		Username:  username,
		Email:     email,
		State:     authmanager.UserStateActive,
		Nonce:     uuid.NewString(),
		Attrs:     map[string]any{"team": "core"},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func mustCreateUser(t *testing.T, b authmanager.Backend, username, email string) *authmanager.User {
	t.Helper()
	user, err := b.Users().Create(context.Background(), NewUser(username, email), "hash-"+username)
	require.NoError(t, err)
	return user
}

func mustCreateGroup(t *testing.T, b authmanager.Backend, name string) {
	t.Helper()
	_, err := b.Groups().Create(context.Background(), &authmanager.Group{Name: name})
	require.NoError(t, err)
}

func testUserCRUD(t *testing.T, b authmanager.Backend) {
	ctx := context.Background()
	alice := mustCreateUser(t, b, "alice", "alice@example.com")
	mustCreateUser(t, b, "bob", "")

	got, err := b.Users().GetByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)
	assert.Equal(t, "alice@example.com", got.Email)
	assert.Equal(t, authmanager.UserStateActive, got.State)
	assert.Equal(t, alice.Nonce, got.Nonce)
	assert.Equal(t, "core", got.Attrs["team"])

	got, err = b.Users().GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, got.ID)

	got, err = b.Users().GetByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, got.ID)

	_, err = b.Users().GetByUsername(ctx, "Alice")
	assert.True(t, authmanager.IsKind(err, authmanager.ErrNotFound))

	_, err = b.Users().GetByEmail(ctx, "")
	assert.True(t, authmanager.IsKind(err, authmanager.ErrNotFound))

	users, err := b.Users().List(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "alice", users[0].Username)
	assert.Equal(t, "bob", users[1].Username)

	require.NoError(t, b.Users().Delete(ctx, alice.ID))
	_, err = b.Users().GetByID(ctx, alice.ID)
	assert.True(t, authmanager.IsKind(err, authmanager.ErrNotFound))

	err = b.Users().Delete(ctx, alice.ID)
	assert.True(t, authmanager.IsKind(err, authmanager.ErrNotFound))

	// freed username and email can be reused
	mustCreateUser(t, b, "alice", "alice@example.com")
}

func testUserDuplicates(t *testing.T, b authmanager.Backend) {
	ctx := context.Background()
	mustCreateUser(t, b, "alice", "alice@example.com")
	mustCreateUser(t, b, "carol", "")

	_, err := b.Users().Create(ctx, NewUser("alice", "other@example.com"), "x")
	assert.True(t, authmanager.IsKind(err, authmanager.ErrDuplicateIdentity), "got %v", err)

	_, err = b.Users().Create(ctx, NewUser("alice2", "alice@example.com"), "x")
	assert.True(t, authmanager.IsKind(err, authmanager.ErrDuplicateIdentity), "got %v", err)

	// empty emails never collide
	mustCreateUser(t, b, "dave", "")

	users, err := b.Users().List(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 3)
}

func testUserCopyOnRead(t *testing.T, b authmanager.Backend) {
	ctx := context.Background()
	alice := mustCreateUser(t, b, "alice", "")

	got, err := b.Users().GetByID(ctx, alice.ID)
	require.NoError(t, err)
	got.Username = "mallory"
	got.Attrs["team"] = "evil"

	again, err := b.Users().GetByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", again.Username)
	assert.Equal(t, "core", again.Attrs["team"])

	mustCreateGroup(t, b, "staff")
	require.NoError(t, b.Groups().AddMembers(ctx, "staff", []uuid.UUID{alice.ID}))
	require.NoError(t, b.Groups().GrantRole(ctx, "staff", alice.ID, "editor"))

	g, err := b.Groups().Get(ctx, "staff")
	require.NoError(t, err)
	g.Members[0].Roles[0] = "owner"

	roles, err := b.Groups().Roles(ctx, "staff", alice.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"editor"}, roles)
}

func testUserStateAndCredential(t *testing.T, b authmanager.Backend) {
	ctx := context.Background()
	alice := mustCreateUser(t, b, "alice", "")

	hash, err := b.Users().Credential(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "hash-alice", hash)

	require.NoError(t, b.Users().SetCredential(ctx, alice.ID, "new-hash"))
	hash, err = b.Users().Credential(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "new-hash", hash)

	updated, err := b.Users().UpdateState(ctx, alice.ID, authmanager.UserStateInactive)
	require.NoError(t, err)
	assert.Equal(t, authmanager.UserStateInactive, updated.State)

	got, err := b.Users().GetByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, authmanager.UserStateInactive, got.State)

	missing := uuid.New()
	_, err = b.Users().Credential(ctx, missing)
	assert.True(t, authmanager.IsKind(err, authmanager.ErrNotFound))
	err = b.Users().SetCredential(ctx, missing, "x")
	assert.True(t, authmanager.IsKind(err, authmanager.ErrNotFound))
	_, err = b.Users().UpdateState(ctx, missing, authmanager.UserStateActive)
	assert.True(t, authmanager.IsKind(err, authmanager.ErrNotFound))
}

func testGroupMembership(t *testing.T, b authmanager.Backend) {
	ctx := context.Background()
	alice := mustCreateUser(t, b, "alice", "")
	bob := mustCreateUser(t, b, "bob", "")

	mustCreateGroup(t, b, "staff")
	mustCreateGroup(t, b, "admins")

	_, err := b.Groups().Create(ctx, &authmanager.Group{Name: "staff"})
	assert.True(t, authmanager.IsKind(err, authmanager.ErrDuplicateGroup), "got %v", err)

	require.NoError(t, b.Groups().AddMembers(ctx, "staff", []uuid.UUID{alice.ID, bob.ID}))
	require.NoError(t, b.Groups().AddMembers(ctx, "staff", []uuid.UUID{alice.ID}))
	require.NoError(t, b.Groups().AddMembers(ctx, "admins", []uuid.UUID{alice.ID}))

	g, err := b.Groups().Get(ctx, "staff")
	require.NoError(t, err)
	assert.Len(t, g.Members, 2)
	assert.True(t, g.HasMember(alice.ID))
	assert.True(t, g.HasMember(bob.ID))

	groups, err := b.Groups().GroupsForUser(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, "admins", groups[0].Name)
	assert.Equal(t, "staff", groups[1].Name)

	require.NoError(t, b.Groups().RemoveMembers(ctx, "staff", []uuid.UUID{bob.ID}))
	require.NoError(t, b.Groups().RemoveMembers(ctx, "staff", []uuid.UUID{bob.ID}))
	g, err = b.Groups().Get(ctx, "staff")
	require.NoError(t, err)
	assert.False(t, g.HasMember(bob.ID))

	err = b.Groups().AddMembers(ctx, "missing", []uuid.UUID{alice.ID})
	assert.True(t, authmanager.IsKind(err, authmanager.ErrNotFound))

	all, err := b.Groups().List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "admins", all[0].Name)

	require.NoError(t, b.Groups().Delete(ctx, "admins"))
	_, err = b.Groups().Get(ctx, "admins")
	assert.True(t, authmanager.IsKind(err, authmanager.ErrNotFound))
	err = b.Groups().Delete(ctx, "admins")
	assert.True(t, authmanager.IsKind(err, authmanager.ErrNotFound))
}

func testGroupRoles(t *testing.T, b authmanager.Backend) {
	ctx := context.Background()
	alice := mustCreateUser(t, b, "alice", "")
	bob := mustCreateUser(t, b, "bob", "")
	mustCreateGroup(t, b, "staff")
	require.NoError(t, b.Groups().AddMembers(ctx, "staff", []uuid.UUID{alice.ID}))

	require.NoError(t, b.Groups().GrantRole(ctx, "staff", alice.ID, "editor"))
	require.NoError(t, b.Groups().GrantRole(ctx, "staff", alice.ID, "editor"))
	require.NoError(t, b.Groups().GrantRole(ctx, "staff", alice.ID, "viewer"))

	roles, err := b.Groups().Roles(ctx, "staff", alice.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"editor", "viewer"}, roles)

	err = b.Groups().GrantRole(ctx, "staff", bob.ID, "editor")
	assert.True(t, authmanager.IsKind(err, authmanager.ErrUnknownMember), "got %v", err)

	roles, err = b.Groups().Roles(ctx, "staff", bob.ID)
	require.NoError(t, err)
	assert.Empty(t, roles)

	err = b.Groups().GrantRole(ctx, "missing", alice.ID, "editor")
	assert.True(t, authmanager.IsKind(err, authmanager.ErrNotFound))
	_, err = b.Groups().Roles(ctx, "missing", alice.ID)
	assert.True(t, authmanager.IsKind(err, authmanager.ErrNotFound))

	require.NoError(t, b.Groups().RevokeRole(ctx, "staff", alice.ID, "owner"))
	require.NoError(t, b.Groups().RevokeRole(ctx, "staff", alice.ID, "editor"))
	roles, err = b.Groups().Roles(ctx, "staff", alice.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"viewer"}, roles)

	require.NoError(t, b.Groups().RemoveMembers(ctx, "staff", []uuid.UUID{alice.ID}))
	require.NoError(t, b.Groups().AddMembers(ctx, "staff", []uuid.UUID{alice.ID}))
	roles, err = b.Groups().Roles(ctx, "staff", alice.ID)
	require.NoError(t, err)
	assert.Empty(t, roles, "removing a member clears its roles")
}

func testGroupPurgeUser(t *testing.T, b authmanager.Backend) {
	ctx := context.Background()
	alice := mustCreateUser(t, b, "alice", "")
	bob := mustCreateUser(t, b, "bob", "")
	for _, name := range []string{"a", "b"} {
		mustCreateGroup(t, b, name)
		require.NoError(t, b.Groups().AddMembers(ctx, name, []uuid.UUID{alice.ID, bob.ID}))
		require.NoError(t, b.Groups().GrantRole(ctx, name, alice.ID, "editor"))
	}

	require.NoError(t, b.Groups().PurgeUser(ctx, alice.ID))

	groups, err := b.Groups().GroupsForUser(ctx, alice.ID)
	require.NoError(t, err)
	assert.Empty(t, groups)

	groups, err = b.Groups().GroupsForUser(ctx, bob.ID)
	require.NoError(t, err)
	assert.Len(t, groups, 2)
}

func testConcurrentGrants(t *testing.T, b authmanager.Backend) {
	ctx := context.Background()
	alice := mustCreateUser(t, b, "alice", "")
	mustCreateGroup(t, b, "staff")
	require.NoError(t, b.Groups().AddMembers(ctx, "staff", []uuid.UUID{alice.ID}))

	roles := []string{"r0", "r1", "r2", "r3", "r4", "r5", "r6", "r7"}
	var wg sync.WaitGroup
	errs := make(chan error, len(roles))
	for _, role := range roles {
		wg.Add(1)
		go func(role string) {
			defer wg.Done()
			errs <- b.Groups().GrantRole(ctx, "staff", alice.ID, role)
		}(role)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	got, err := b.Groups().Roles(ctx, "staff", alice.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, roles, got)
}

func testAPIKeys(t *testing.T, b authmanager.Backend) {
	ctx := context.Background()
	alice := mustCreateUser(t, b, "alice", "")
	base := time.Now().UTC().Truncate(time.Second)

	first, err := b.APIKeys().Create(ctx, &authmanager.APIKey{
		ID: uuid.New(), UserID: alice.ID, Identity: "ident-1", Label: "ci", CreatedAt: base, OwnerNonce: "nonce-1",
	}, "digest-1")
	require.NoError(t, err)
	_, err = b.APIKeys().Create(ctx, &authmanager.APIKey{
		ID: uuid.New(), UserID: alice.ID, Identity: "ident-2", CreatedAt: base.Add(time.Second),
	}, "digest-2")
	require.NoError(t, err)

	_, err = b.APIKeys().Create(ctx, &authmanager.APIKey{
		ID: uuid.New(), UserID: alice.ID, Identity: "ident-1", CreatedAt: base,
	}, "digest-3")
	assert.True(t, authmanager.IsKind(err, authmanager.ErrDuplicateIdentity), "got %v", err)

	key, digest, err := b.APIKeys().GetByIdentity(ctx, "ident-1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, key.ID)
	assert.Equal(t, "digest-1", digest)
	assert.Equal(t, "ci", key.Label)
	assert.Equal(t, "nonce-1", key.OwnerNonce)

	keys, err := b.APIKeys().ListFor(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, keys, 2)
	assert.Equal(t, "ident-1", keys[0].Identity)

	keys, err = b.APIKeys().ListFor(ctx, uuid.New())
	require.NoError(t, err)
	assert.Empty(t, keys)

	require.NoError(t, b.APIKeys().Delete(ctx, first.ID))
	_, _, err = b.APIKeys().GetByIdentity(ctx, "ident-1")
	assert.True(t, authmanager.IsKind(err, authmanager.ErrNotFound))
	_, err = b.APIKeys().Get(ctx, first.ID)
	assert.True(t, authmanager.IsKind(err, authmanager.ErrNotFound))
}

var errBoom = errors.New("boom")

func testTxRollback(t *testing.T, b authmanager.Backend) {
	ctx := context.Background()
	alice := mustCreateUser(t, b, "alice", "")
	mustCreateGroup(t, b, "staff")

	err := b.RunInTx(ctx, func(ctx context.Context, tx authmanager.Stores) error {
		if _, err := tx.Users().Create(ctx, NewUser("bob", ""), "x"); err != nil {
			return err
		}
		if err := tx.Groups().AddMembers(ctx, "staff", []uuid.UUID{alice.ID}); err != nil {
			return err
		}
		if err := tx.Groups().GrantRole(ctx, "staff", alice.ID, "editor"); err != nil {
			return err
		}
		return errBoom
	})
	require.ErrorIs(t, err, errBoom)

	_, err = b.Users().GetByUsername(ctx, "bob")
	assert.True(t, authmanager.IsKind(err, authmanager.ErrNotFound))

	g, err := b.Groups().Get(ctx, "staff")
	require.NoError(t, err)
	assert.False(t, g.HasMember(alice.ID))
}

func testTxCommit(t *testing.T, b authmanager.Backend) {
	ctx := context.Background()
	alice := mustCreateUser(t, b, "alice", "")

	err := b.RunInTx(ctx, func(ctx context.Context, tx authmanager.Stores) error {
		if _, err := tx.Groups().Create(ctx, &authmanager.Group{Name: "staff"}); err != nil {
			return err
		}
		if err := tx.Groups().AddMembers(ctx, "staff", []uuid.UUID{alice.ID}); err != nil {
			return err
		}
		roles, err := tx.Groups().Roles(ctx, "staff", alice.ID)
		if err != nil {
			return err
		}
		assert.Empty(t, roles)
		return tx.Groups().GrantRole(ctx, "staff", alice.ID, "editor")
	})
	require.NoError(t, err)

	roles, err := b.Groups().Roles(ctx, "staff", alice.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"editor"}, roles)
}
