package authmanager

import (
	"errors"

	"github.com/google/uuid"
)

// UserIdentity adapts a User into the Identity interface.
type UserIdentity struct {
	user *User
}

// NewIdentityFromUser returns an Identity adapter for the provided user.
func NewIdentityFromUser(user *User) Identity {
	if user == nil {
		return nil
	}
	return UserIdentity{user: user.Clone()}
}

// ID returns the user's ID as a string.
func (u UserIdentity) ID() string {
	if u.user == nil {
		return ""
	}
	return u.user.ID.String()
}

// Username returns the user's username.
func (u UserIdentity) Username() string {
	if u.user == nil {
		return ""
	}
	return u.user.Username
}

// Email returns the user's email address.
func (u UserIdentity) Email() string {
	if u.user == nil {
		return ""
	}
	return u.user.Email
}

// Nonce returns the nonce of the user record the identity was built from.
func (u UserIdentity) Nonce() string {
	if u.user == nil {
		return ""
	}
	return u.user.Nonce
}

type systemIdentity struct{}

func (systemIdentity) ID() string       { return "system" }
func (systemIdentity) Username() string { return "system" }
func (systemIdentity) Email() string    { return "" }

// SystemIdentity is the caller used by bootstrap code and operator tooling.
// The Gate grants it every role. Authentication never produces it.
func SystemIdentity() Identity {
	return systemIdentity{}
}

// IsSystemIdentity reports whether identity is SystemIdentity.
func IsSystemIdentity(identity Identity) bool {
	_, ok := identity.(systemIdentity)
	return ok
}

var errNoIdentity = errors.New("identity is nil")

// IdentityUUID parses the user id carried by identity.
func IdentityUUID(identity Identity) (uuid.UUID, error) {
	if identity == nil {
		return uuid.Nil, errNoIdentity
	}
	return uuid.Parse(identity.ID())
}
