package relational_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"golang.org/x/crypto/bcrypt"

	authmanager "github.com/goliatone/go-authmanager"
	"github.com/goliatone/go-authmanager/storage/relational"
	"github.com/goliatone/go-authmanager/storage/storagetest"

	_ "github.com/mattn/go-sqlite3"
)

func setupBackend(t *testing.T) *relational.Backend {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)

	backend := relational.New(bun.NewDB(db, sqlitedialect.New()))
	require.NoError(t, backend.Migrate(context.Background()))

	t.Cleanup(func() { _ = backend.Close() })
	return backend
}

func TestBackendContract(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) authmanager.Backend {
		return setupBackend(t)
	})
}

func TestMigrateIsIdempotent(t *testing.T) {
	backend := setupBackend(t)
	require.NoError(t, backend.Migrate(context.Background()))
}

func TestCredentialNeverLeavesTheStore(t *testing.T) {
	ctx := context.Background()
	backend := setupBackend(t)

	user, err := backend.Users().Create(ctx, storagetest.NewUser("alice", "alice@example.com"), "secret-hash")
	require.NoError(t, err)

	var raw string
	err = backend.DB().NewSelect().Table("users").Column("password_hash").Where("id = ?", user.ID).Scan(ctx, &raw)
	require.NoError(t, err)
	assert.Equal(t, "secret-hash", raw)

	hash, err := backend.Users().Credential(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, raw, hash)
}

func TestRunInTxRollsBackGrantOnFailure(t *testing.T) {
	ctx := context.Background()
	backend := setupBackend(t)

	user, err := backend.Users().Create(ctx, storagetest.NewUser("alice", ""), "x")
	require.NoError(t, err)
	_, err = backend.Groups().Create(ctx, &authmanager.Group{Name: "staff"})
	require.NoError(t, err)
	require.NoError(t, backend.Groups().AddMembers(ctx, "staff", []uuid.UUID{user.ID}))

	err = backend.RunInTx(ctx, func(ctx context.Context, tx authmanager.Stores) error {
		if err := tx.Groups().GrantRole(ctx, "staff", user.ID, "editor"); err != nil {
			return err
		}
		return tx.Groups().GrantRole(ctx, "missing", user.ID, "editor")
	})
	require.Error(t, err)
	assert.True(t, authmanager.IsKind(err, authmanager.ErrNotFound))

	roles, err := backend.Groups().Roles(ctx, "staff", user.ID)
	require.NoError(t, err)
	assert.Empty(t, roles)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := relational.Open("oracle", "dsn")
	require.Error(t, err)
	assert.True(t, goerrors.IsValidation(err))
	assert.Contains(t, err.Error(), "oracle")
}

func TestTransitionHooksShareTheConnection(t *testing.T) {
	ctx := context.Background()
	m := authmanager.NewManager(setupBackend(t),
		authmanager.WithPasswordHasher(authmanager.NewBcryptHasher(bcrypt.MinCost)),
	)
	alice, err := m.CreateUser(ctx, &authmanager.User{Username: "alice"}, "p1")
	require.NoError(t, err)

	var seen authmanager.UserState
	hook := func(ctx context.Context, tc authmanager.TransitionContext) error {
		user, err := tc.Stores.Users().GetByID(ctx, tc.User.ID)
		if err != nil {
			return err
		}
		seen = user.State
		return nil
	}

	done := make(chan error, 1)
	go func() {
		_, err := m.Deactivate(ctx, authmanager.SystemIdentity(), alice.ID, authmanager.WithBeforeTransitionHook(hook))
		done <- err
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("before hook blocked on the single sqlite connection")
	}
	assert.Equal(t, authmanager.UserStateActive, seen)
}
