package authmanager_test

import (
	"context"
	"errors"
	"testing"

	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	authmanager "github.com/goliatone/go-authmanager"
)

func TestCreateUserDefaults(t *testing.T) {
	ctx := context.Background()
	sink := &recordingSink{}
	m := newTestManager(t, authmanager.WithActivitySink(sink))

	alice := mustCreateUser(t, m, "alice", "p1")

	assert.NotEqual(t, [16]byte{}, [16]byte(alice.ID))
	assert.Equal(t, authmanager.UserStateActive, alice.State)
	assert.Len(t, alice.Nonce, 32)
	assert.False(t, alice.CreatedAt.IsZero())

	group, err := m.Groups().Get(ctx, authmanager.DefaultGroupName)
	require.NoError(t, err)
	assert.True(t, group.HasMember(alice.ID))
	assert.Empty(t, group.RolesFor(alice.ID))

	require.Len(t, sink.ofType(authmanager.ActivityEventUserCreated), 1)
}

func TestCreateUserNonceIsFreshPerCreation(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	first := mustCreateUser(t, m, "alice", "p1")
	_, err := m.Delete(ctx, authmanager.SystemIdentity(), first.ID)
	require.NoError(t, err)

	second := mustCreateUser(t, m, "alice", "p1")
	assert.NotEqual(t, first.ID, second.ID)
	assert.NotEqual(t, first.Nonce, second.Nonce)
}

func TestCreateUserRejectsDuplicates(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	_, err := m.CreateUser(ctx, &authmanager.User{Username: "alice", Email: "alice@example.com"}, "p1")
	require.NoError(t, err)

	_, err = m.CreateUser(ctx, &authmanager.User{Username: "alice"}, "p1")
	assert.True(t, authmanager.IsKind(err, authmanager.ErrDuplicateIdentity), "got %v", err)

	_, err = m.CreateUser(ctx, &authmanager.User{Username: "alice2", Email: "alice@example.com"}, "p1")
	assert.True(t, authmanager.IsKind(err, authmanager.ErrDuplicateIdentity), "got %v", err)

	users, err := m.Users(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)

	group, err := m.Groups().Get(ctx, authmanager.DefaultGroupName)
	require.NoError(t, err)
	assert.Len(t, group.Members, 1, "a failed create leaves no membership behind")
}

func TestCreateUserValidation(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	cases := map[string]*authmanager.User{
		"uppercase username": {Username: "Alice"},
		"short username":     {Username: "a"},
		"bad email":          {Username: "alice", Email: "not-an-email"},
		"deleted state":      {Username: "alice", State: authmanager.UserStateDeleted},
	}
	for name, user := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := m.CreateUser(ctx, user, "p1")
			require.Error(t, err)
			assert.Equal(t, authmanager.TextCodeInvalidUser, authmanager.KindOf(err))
		})
	}

	_, err := m.CreateUser(ctx, &authmanager.User{Username: "alice"}, "")
	assert.True(t, authmanager.IsKind(err, authmanager.ErrEmptyPassword))
}

func TestCreateUserStartsInactiveWhenAsked(t *testing.T) {
	m := newTestManager(t)
	user, err := m.CreateUser(context.Background(), &authmanager.User{Username: "alice", State: authmanager.UserStateInactive}, "p1")
	require.NoError(t, err)
	assert.True(t, user.IsInactive())
}

func TestPostCreateHookFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")
	m := newTestManager(t, authmanager.WithPostCreateHook(func(context.Context, authmanager.Stores, *authmanager.User) error {
		return boom
	}))

	_, err := m.CreateUser(ctx, &authmanager.User{Username: "alice"}, "p1")
	require.Error(t, err)

	_, err = m.UserByUsername(ctx, "alice")
	assert.True(t, authmanager.IsKind(err, authmanager.ErrNotFound))
}

func TestRegister(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	_, err := m.Register(ctx, authmanager.RegisterUserMessage{
		Email: "bob@example.com", Password: "p1", PasswordConfirm: "p2",
	})
	assert.True(t, authmanager.IsKind(err, authmanager.ErrPasswordConfirmation))

	user, err := m.Register(ctx, authmanager.RegisterUserMessage{
		Email:           "Bob.Smith@example.com",
		Phone:           "(650) 253-0000",
		Password:        "p1",
		PasswordConfirm: "p1",
		UseHashid:       true,
	})
	require.NoError(t, err)
	assert.Equal(t, "bob.smith", user.Username)
	assert.Equal(t, "+16502530000", user.Phone)

	expected, err := hashid.NewUUID("Bob.Smith@example.com")
	require.NoError(t, err)
	assert.Equal(t, expected, user.ID)

	_, err = m.Register(ctx, authmanager.RegisterUserMessage{
		Username: "carol", Phone: "12", Password: "p1", PasswordConfirm: "p1",
	})
	assert.Equal(t, authmanager.TextCodeInvalidUser, authmanager.KindOf(err))
}

func TestProfile(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)
	alice := mustCreateUser(t, m, "alice", "p1")

	_, err := m.Groups().Create(ctx, "staff", nil)
	require.NoError(t, err)
	require.NoError(t, m.Groups().GrantMapping(ctx, "staff", map[string][]string{"alice": {"editor"}}))

	profile, err := m.Profile(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", profile.Username)
	assert.Equal(t, []string{authmanager.DefaultGroupName, "staff"}, profile.Groups)
	assert.Equal(t, map[string][]string{"staff": {"editor"}}, profile.Roles)
}

func TestReadsReturnCopies(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)
	alice := mustCreateUser(t, m, "alice", "p1")

	got, err := m.User(ctx, alice.ID)
	require.NoError(t, err)
	got.State = authmanager.UserStateInactive

	again, err := m.User(ctx, alice.ID)
	require.NoError(t, err)
	assert.True(t, again.IsActive())
}
