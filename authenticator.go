package authmanager

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Authenticator resolves login material to an Identity. Unknown users and
// wrong secrets fail the same way, with ErrInvalidCredential.
type Authenticator struct {
	*core
	credentials *CredentialValidator
	apiKeys     *APIKeyService

	dummyOnce sync.Once
	dummyHash string
}

// Authenticate verifies a username or email and password. Only active
// accounts can authenticate.
func (a *Authenticator) Authenticate(ctx context.Context, identifier, password string) (Identity, error) {
	identifier = strings.TrimSpace(identifier)

	user, err := a.lookup(ctx, identifier)
	if err != nil {
		if !IsKind(err, ErrNotFound) {
			return nil, err
		}
		a.burnCompare(password)
		a.failure(ctx, identifier, "unknown identifier")
		return nil, ErrInvalidCredential
	}

	if !user.IsActive() {
		a.burnCompare(password)
		a.failure(ctx, identifier, "account not active")
		return nil, ErrInvalidCredential
	}

	ok, err := a.credentials.Validate(ctx, user, password, true)
	if err != nil {
		return nil, err
	}
	if !ok {
		a.failure(ctx, identifier, "credential rejected")
		return nil, ErrInvalidCredential
	}

	identity := NewIdentityFromUser(user)
	a.events.record(ctx, ActivityEvent{
		EventType: ActivityEventLoginSuccess,
		Actor:     actorFromIdentity(identity),
		UserID:    user.ID.String(),
		Metadata:  map[string]any{"method": "password"},
	})
	return identity, nil
}

// AuthenticateByAPIKey verifies an api key identity and secret. The owner
// must be active.
func (a *Authenticator) AuthenticateByAPIKey(ctx context.Context, identity, secret string) (Identity, error) {
	user, err := a.apiKeys.Validate(ctx, identity, secret)
	if err != nil {
		if IsKind(err, ErrInvalidCredential) {
			a.failure(ctx, identity, "api key rejected")
		}
		return nil, err
	}
	if !user.IsActive() {
		a.failure(ctx, identity, "api key owner not active")
		return nil, ErrInvalidCredential
	}

	out := NewIdentityFromUser(user)
	a.events.record(ctx, ActivityEvent{
		EventType: ActivityEventLoginSuccess,
		Actor:     actorFromIdentity(out),
		UserID:    user.ID.String(),
		Metadata:  map[string]any{"method": "api_key"},
	})
	return out, nil
}

// AuthenticateAPIKeyHeader verifies an "identity.secret" header value.
func (a *Authenticator) AuthenticateAPIKeyHeader(ctx context.Context, header string) (Identity, error) {
	identity, secret, err := ParseAPIKeyHeader(header)
	if err != nil {
		return nil, err
	}
	return a.AuthenticateByAPIKey(ctx, identity, secret)
}

// CurrentIdentity re-reads the identity stored in ctx. A user that was
// deactivated or deleted since the identity was attached no longer resolves.
func (a *Authenticator) CurrentIdentity(ctx context.Context) (Identity, error) {
	identity, ok := IdentityFromContext(ctx)
	if !ok {
		return nil, errNoIdentity
	}
	if IsSystemIdentity(identity) {
		return identity, nil
	}

	id, err := uuid.Parse(identity.ID())
	if err != nil {
		return nil, ErrInvalidCredential
	}
	user, err := a.backend.Users().GetByID(ctx, id)
	if err != nil {
		if IsKind(err, ErrNotFound) {
			return nil, ErrInvalidCredential
		}
		return nil, err
	}
	if !user.IsActive() {
		return nil, ErrInvalidCredential
	}
	return NewIdentityFromUser(user), nil
}

func (a *Authenticator) lookup(ctx context.Context, identifier string) (*User, error) {
	if identifier == "" {
		return nil, ErrNotFound
	}
	if isEmailIdentifier(identifier) {
		return a.backend.Users().GetByEmail(ctx, identifier)
	}
	return a.backend.Users().GetByUsername(ctx, identifier)
}

// burnCompare spends one hash comparison so unknown identifiers and inactive
// accounts take about as long as wrong passwords.
func (a *Authenticator) burnCompare(password string) {
	a.dummyOnce.Do(func() {
		hash, err := a.hasher.HashPassword(newNonce())
		if err != nil {
			a.logger.Warn("failed to prepare dummy credential", "error", err)
			return
		}
		a.dummyHash = hash
	})
	if a.dummyHash != "" {
		_ = a.hasher.ComparePasswordAndHash(password, a.dummyHash)
	}
}

func (a *Authenticator) failure(ctx context.Context, identifier, reason string) {
	a.logger.Debug("authentication failed", "identifier", identifier, "reason", reason)
	a.events.record(ctx, ActivityEvent{
		EventType: ActivityEventLoginFailure,
		Actor:     ActorRef{Type: "unknown"},
		Metadata:  map[string]any{"identifier": identifier, "reason": reason},
	})
}

// Login authenticates identifier and password and issues an identity token.
func (m *Manager) Login(ctx context.Context, identifier, password string) (string, error) {
	identity, err := m.authenticator.Authenticate(ctx, identifier, password)
	if err != nil {
		return "", err
	}
	id, err := IdentityUUID(identity)
	if err != nil {
		return "", err
	}
	return m.IssueToken(ctx, id)
}
