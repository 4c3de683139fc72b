package authmanager_test

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	authmanager "github.com/goliatone/go-authmanager"
)

var testSigningKey = []byte("test-signing-key")

func newTestTokenService() *authmanager.TokenService {
	return authmanager.NewTokenService(testSigningKey, time.Hour, "authmanager-test", []string{"cli"}, nil)
}

func TestTokenServiceGenerateAndValidate(t *testing.T) {
	ts := newTestTokenService()
	user := &authmanager.User{ID: uuid.New(), Username: "alice", Nonce: "n1"}

	token, err := ts.Generate(user)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := ts.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID.String(), claims.UserID())
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, "n1", claims.Nonce)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.Expires(), time.Minute)
	assert.WithinDuration(t, time.Now(), claims.IssuedAt(), time.Minute)

	_, err = ts.Generate(nil)
	assert.Error(t, err)
}

func TestTokenServiceValidateErrors(t *testing.T) {
	ts := newTestTokenService()
	user := &authmanager.User{ID: uuid.New(), Username: "alice"}

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, &authmanager.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "authmanager-test",
			Audience:  jwt.ClaimStrings{"cli"},
			Subject:   user.ID.String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	})
	expiredToken, err := expired.SignedString(testSigningKey)
	require.NoError(t, err)

	otherKey, err := authmanager.NewTokenService([]byte("other"), time.Hour, "authmanager-test", []string{"cli"}, nil).Generate(user)
	require.NoError(t, err)

	otherIssuer, err := authmanager.NewTokenService(testSigningKey, time.Hour, "someone-else", []string{"cli"}, nil).Generate(user)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		code  string
	}{
		{name: "expired", token: expiredToken, code: authmanager.TextCodeTokenExpired},
		{name: "garbage", token: "not-a-token", code: authmanager.TextCodeTokenMalformed},
		{name: "wrong key", token: otherKey, code: authmanager.TextCodeTokenMalformed},
		{name: "wrong issuer", token: otherIssuer, code: authmanager.TextCodeTokenMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ts.Validate(tt.token)
			require.Error(t, err)
			assert.Equal(t, tt.code, authmanager.KindOf(err))
		})
	}
}

func TestLoginAndIdentityFromToken(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, authmanager.WithTokenService(newTestTokenService()))
	alice := mustCreateUser(t, m, "alice", "p1")

	_, err := m.Login(ctx, "alice", "wrong")
	assert.True(t, authmanager.IsKind(err, authmanager.ErrInvalidCredential))

	token, err := m.Login(ctx, "alice", "p1")
	require.NoError(t, err)

	identity, err := m.IdentityFromToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, alice.ID.String(), identity.ID())

	_, err = m.Deactivate(ctx, authmanager.SystemIdentity(), alice.ID)
	require.NoError(t, err)
	_, err = m.IdentityFromToken(ctx, token)
	assert.True(t, authmanager.IsKind(err, authmanager.ErrInvalidCredential))

	_, err = m.IssueToken(ctx, alice.ID)
	assert.True(t, authmanager.IsKind(err, authmanager.ErrInvalidCredential))
}

func TestIdentityFromTokenRejectsRecreatedAccount(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, authmanager.WithTokenService(newTestTokenService()))
	alice := mustCreateUser(t, m, "alice", "p1")

	token, err := m.IssueToken(ctx, alice.ID)
	require.NoError(t, err)

	_, err = m.Delete(ctx, authmanager.SystemIdentity(), alice.ID)
	require.NoError(t, err)
	_, err = m.IdentityFromToken(ctx, token)
	assert.True(t, authmanager.IsKind(err, authmanager.ErrInvalidCredential))

	_, err = m.CreateUser(ctx, &authmanager.User{ID: alice.ID, Username: "alice"}, "p1")
	require.NoError(t, err)
	_, err = m.IdentityFromToken(ctx, token)
	assert.True(t, authmanager.IsKind(err, authmanager.ErrInvalidCredential), "nonce pins the token to the old record")
}

func TestRefreshToken(t *testing.T) {
	ctx := context.Background()
	ts := newTestTokenService()
	m := newTestManager(t, authmanager.WithTokenService(ts))
	alice := mustCreateUser(t, m, "alice", "p1")

	token, err := m.Login(ctx, "alice", "p1")
	require.NoError(t, err)

	refreshed, err := m.RefreshToken(ctx, token)
	require.NoError(t, err)
	assert.NotEqual(t, token, refreshed)

	before, err := ts.Validate(token)
	require.NoError(t, err)
	after, err := ts.Validate(refreshed)
	require.NoError(t, err)
	assert.NotEqual(t, before.ID, after.ID)
	assert.Equal(t, before.Nonce, after.Nonce)
	assert.False(t, after.IssuedAt().Before(before.IssuedAt()))

	identity, err := m.IdentityFromToken(ctx, refreshed)
	require.NoError(t, err)
	assert.Equal(t, alice.ID.String(), identity.ID())

	_, err = m.RefreshToken(ctx, "not-a-token")
	assert.Equal(t, authmanager.TextCodeTokenMalformed, authmanager.KindOf(err))

	_, err = m.Deactivate(ctx, authmanager.SystemIdentity(), alice.ID)
	require.NoError(t, err)
	_, err = m.RefreshToken(ctx, refreshed)
	assert.True(t, authmanager.IsKind(err, authmanager.ErrInvalidCredential))
}

func TestRefreshTokenRejectsRecreatedAccount(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, authmanager.WithTokenService(newTestTokenService()))
	alice := mustCreateUser(t, m, "alice", "p1")

	token, err := m.IssueToken(ctx, alice.ID)
	require.NoError(t, err)

	_, err = m.Delete(ctx, authmanager.SystemIdentity(), alice.ID)
	require.NoError(t, err)
	_, err = m.CreateUser(ctx, &authmanager.User{ID: alice.ID, Username: "alice"}, "p1")
	require.NoError(t, err)

	_, err = m.RefreshToken(ctx, token)
	assert.True(t, authmanager.IsKind(err, authmanager.ErrInvalidCredential))
}

func TestTokensRequireService(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)
	alice := mustCreateUser(t, m, "alice", "p1")

	_, err := m.IssueToken(ctx, alice.ID)
	assert.Error(t, err)
	_, err = m.IdentityFromToken(ctx, "token")
	assert.Error(t, err)
	_, err = m.RefreshToken(ctx, "token")
	assert.Error(t, err)
}
