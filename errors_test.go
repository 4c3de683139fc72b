package authmanager_test

import (
	"errors"
	"fmt"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"

	authmanager "github.com/goliatone/go-authmanager"
)

func TestIsKind(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		kind     *goerrors.Error
		expected bool
	}{
		{
			name:     "sentinel itself",
			err:      authmanager.ErrNotFound,
			kind:     authmanager.ErrNotFound,
			expected: true,
		},
		{
			name:     "wrapped with fmt",
			err:      fmt.Errorf("lookup: %w", authmanager.ErrForbidden),
			kind:     authmanager.ErrForbidden,
			expected: true,
		},
		{
			name:     "same text code",
			err:      goerrors.New("gone", goerrors.CategoryNotFound).WithTextCode(authmanager.TextCodeNotFound),
			kind:     authmanager.ErrNotFound,
			expected: true,
		},
		{
			name:     "different kind",
			err:      authmanager.ErrDuplicateGroup,
			kind:     authmanager.ErrDuplicateIdentity,
			expected: false,
		},
		{
			name:     "plain error",
			err:      errors.New("record not found"),
			kind:     authmanager.ErrNotFound,
			expected: false,
		},
		{
			name:     "nil error",
			err:      nil,
			kind:     authmanager.ErrNotFound,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, authmanager.IsKind(tt.err, tt.kind))
		})
	}
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, authmanager.TextCodeUnknownMember, authmanager.KindOf(authmanager.ErrUnknownMember))
	assert.Equal(t, authmanager.TextCodeInvalidTransition, authmanager.KindOf(fmt.Errorf("x: %w", authmanager.ErrInvalidTransition)))
	assert.Empty(t, authmanager.KindOf(errors.New("plain")))
	assert.Empty(t, authmanager.KindOf(nil))
}

func TestErrorCategories(t *testing.T) {
	assert.Equal(t, goerrors.CategoryConflict, authmanager.ErrDuplicateIdentity.Category)
	assert.Equal(t, goerrors.CategoryAuth, authmanager.ErrInvalidCredential.Category)
	assert.Equal(t, goerrors.CategoryAuthz, authmanager.ErrForbidden.Category)
	assert.Equal(t, goerrors.CategoryNotFound, authmanager.ErrNotFound.Category)
}
