package authmanager_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	authmanager "github.com/goliatone/go-authmanager"
)

func TestValidateUser(t *testing.T) {
	tests := []struct {
		name    string
		user    *authmanager.User
		wantErr bool
	}{
		{name: "minimal", user: &authmanager.User{Username: "al"}},
		{name: "with email", user: &authmanager.User{Username: "alice.smith", Email: "alice@example.com"}},
		{name: "nil", user: nil, wantErr: true},
		{name: "empty username", user: &authmanager.User{}, wantErr: true},
		{name: "leading dot", user: &authmanager.User{Username: ".alice"}, wantErr: true},
		{name: "space", user: &authmanager.User{Username: "alice smith"}, wantErr: true},
		{name: "bad email", user: &authmanager.User{Username: "alice", Email: "alice@"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := authmanager.ValidateUser(tt.user)
			if tt.wantErr {
				assert.Equal(t, authmanager.TextCodeInvalidUser, authmanager.KindOf(err))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestValidateGroupName(t *testing.T) {
	assert.NoError(t, authmanager.ValidateGroupName(authmanager.DefaultGroupName))
	assert.NoError(t, authmanager.ValidateGroupName("Staff-2"))
	assert.Equal(t, authmanager.TextCodeInvalidGroup, authmanager.KindOf(authmanager.ValidateGroupName("")))
	assert.Equal(t, authmanager.TextCodeInvalidGroup, authmanager.KindOf(authmanager.ValidateGroupName("has space")))
}

func TestNormalizePhone(t *testing.T) {
	phone, err := authmanager.NormalizePhone("", "")
	require.NoError(t, err)
	assert.Empty(t, phone)

	phone, err = authmanager.NormalizePhone("+1 650-253-0000", "")
	require.NoError(t, err)
	assert.Equal(t, "+16502530000", phone)

	_, err = authmanager.NormalizePhone("not a phone", "")
	assert.Equal(t, authmanager.TextCodeInvalidUser, authmanager.KindOf(err))
}
