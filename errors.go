package authmanager

import (
	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeDuplicateIdentity    = "DUPLICATE_IDENTITY"
	TextCodeDuplicateGroup       = "DUPLICATE_GROUP"
	TextCodeUnknownMember        = "UNKNOWN_MEMBER"
	TextCodeInvalidCredential    = "INVALID_CREDENTIAL"
	TextCodeInvalidTransition    = "INVALID_TRANSITION"
	TextCodeNotFound             = "NOT_FOUND"
	TextCodeForbidden            = "FORBIDDEN"
	TextCodeInvalidUser          = "INVALID_USER"
	TextCodeInvalidGroup         = "INVALID_GROUP"
	TextCodeEmptyPassword        = "EMPTY_PASSWORD"
	TextCodePasswordConfirmation = "PASSWORD_CONFIRMATION_MISMATCH"
	TextCodeTokenExpired         = "TOKEN_EXPIRED"
	TextCodeTokenMalformed       = "TOKEN_MALFORMED"
)

// ErrDuplicateIdentity is returned when a username or email is already taken.
var ErrDuplicateIdentity = goerrors.New("username or email already registered", goerrors.CategoryConflict).
	WithTextCode(TextCodeDuplicateIdentity).
	WithCode(goerrors.CodeConflict)

// ErrDuplicateGroup is returned when a group name is already taken.
var ErrDuplicateGroup = goerrors.New("group already exists", goerrors.CategoryConflict).
	WithTextCode(TextCodeDuplicateGroup).
	WithCode(goerrors.CodeConflict)

// ErrUnknownMember is returned when granting a role to a user outside the group.
var ErrUnknownMember = goerrors.New("user is not a member of the group", goerrors.CategoryValidation).
	WithTextCode(TextCodeUnknownMember).
	WithCode(goerrors.CodeBadRequest)

// ErrInvalidCredential covers every authentication failure, unknown users included.
var ErrInvalidCredential = goerrors.New("invalid username or password", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredential).
	WithCode(goerrors.CodeUnauthorized)

// ErrInvalidTransition is returned when a lifecycle trigger is not allowed from the current state.
var ErrInvalidTransition = goerrors.New("invalid account state transition", goerrors.CategoryValidation).
	WithTextCode(TextCodeInvalidTransition).
	WithCode(goerrors.CodeBadRequest)

// ErrNotFound is returned when a user, group or api key does not exist.
var ErrNotFound = goerrors.New("record not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrForbidden is returned when the authorization gate denies an operation.
var ErrForbidden = goerrors.New("operation not permitted", goerrors.CategoryAuthz).
	WithTextCode(TextCodeForbidden).
	WithCode(goerrors.CodeForbidden)

// ErrEmptyPassword is returned when hashing an empty password.
var ErrEmptyPassword = goerrors.New("password must not be empty", goerrors.CategoryValidation).
	WithTextCode(TextCodeEmptyPassword).
	WithCode(goerrors.CodeBadRequest)

// ErrPasswordConfirmation is returned when a password and its confirmation differ.
var ErrPasswordConfirmation = goerrors.New("password confirmation does not match", goerrors.CategoryValidation).
	WithTextCode(TextCodePasswordConfirmation).
	WithCode(goerrors.CodeBadRequest)

// ErrTokenExpired is returned for expired identity tokens.
var ErrTokenExpired = goerrors.New("token is expired", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenMalformed is returned for tokens that cannot be parsed or verified.
var ErrTokenMalformed = goerrors.New("token is malformed", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(goerrors.CodeUnauthorized)

// KindOf returns the text code of the first rich error in the chain, or an
// empty string for plain errors.
func KindOf(err error) string {
	if err == nil {
		return ""
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr != nil {
		return richErr.TextCode
	}
	return ""
}

// IsKind reports whether err is kind itself or carries the same text code.
func IsKind(err error, kind *goerrors.Error) bool {
	if err == nil || kind == nil {
		return false
	}
	if goerrors.Is(err, kind) {
		return true
	}
	return KindOf(err) == kind.TextCode
}

func invalidUserError(err error) error {
	return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid user").
		WithTextCode(TextCodeInvalidUser).
		WithCode(goerrors.CodeBadRequest)
}

func invalidGroupError(err error) error {
	return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid group").
		WithTextCode(TextCodeInvalidGroup).
		WithCode(goerrors.CodeBadRequest)
}

func internalError(err error, msg string) error {
	if err == nil {
		return nil
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return err
	}
	return goerrors.Wrap(err, goerrors.CategoryInternal, msg)
}
