package authmanager

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
)

const (
	// APIKeyTokenBytes is the entropy of identity and secret tokens; both are
	// hex encoded to twice this length.
	APIKeyTokenBytes = 16

	apiKeyHeaderSeparator = "."
)

// APIKeyService issues and validates api keys.
type APIKeyService struct {
	*core
	gate *Gate
}

// Issue creates a key for ownerID. The returned secret is not stored and
// cannot be recovered later.
func (s *APIKeyService) Issue(ctx context.Context, ownerID uuid.UUID, label string) (*IssuedAPIKey, error) {
	identity, err := randomToken(APIKeyTokenBytes)
	if err != nil {
		return nil, internalError(err, "failed to generate api key identity")
	}
	secret, err := randomToken(APIKeyTokenBytes)
	if err != nil {
		return nil, internalError(err, "failed to generate api key secret")
	}

	var created *APIKey
	err = s.backend.RunInTx(ctx, func(ctx context.Context, tx Stores) error {
		owner, err := tx.Users().GetByID(ctx, ownerID)
		if err != nil {
			return err
		}
		created, err = tx.APIKeys().Create(ctx, &APIKey{
			ID:         uuid.New(),
			UserID:     ownerID,
			Identity:   identity,
			Label:      label,
			CreatedAt:  s.now(),
			OwnerNonce: owner.Nonce,
		}, digestToken(secret))
		return err
	})
	if err != nil {
		return nil, internalError(err, "failed to issue api key")
	}

	s.events.record(ctx, ActivityEvent{
		EventType: ActivityEventAPIKeyIssued,
		UserID:    ownerID.String(),
		Metadata:  map[string]any{"api_key_id": created.ID.String(), "label": label},
	})

	return &IssuedAPIKey{APIKey: *created, Secret: secret}, nil
}

// Get returns the key with id.
func (s *APIKeyService) Get(ctx context.Context, id uuid.UUID) (*APIKey, error) {
	return s.backend.APIKeys().Get(ctx, id)
}

// Validate resolves identity and secret to the owning user. Any failure,
// including an orphaned key or an owner record recreated under the same id,
// is reported as ErrInvalidCredential.
func (s *APIKeyService) Validate(ctx context.Context, identity, secret string) (*User, error) {
	key, digest, err := s.backend.APIKeys().GetByIdentity(ctx, identity)
	if err != nil {
		if IsKind(err, ErrNotFound) {
			digestsEqual(digestToken(secret), digestToken(identity))
			return nil, ErrInvalidCredential
		}
		return nil, internalError(err, "failed to load api key")
	}

	if !digestsEqual(digestToken(secret), digest) {
		return nil, ErrInvalidCredential
	}

	user, err := s.backend.Users().GetByID(ctx, key.UserID)
	if err != nil {
		if IsKind(err, ErrNotFound) {
			s.logger.Warn("api key owner missing", "api_key_id", key.ID.String())
			return nil, ErrInvalidCredential
		}
		return nil, internalError(err, "failed to load api key owner")
	}
	if user.Nonce != key.OwnerNonce {
		s.logger.Warn("api key issued to a previous owner record", "api_key_id", key.ID.String())
		return nil, ErrInvalidCredential
	}
	return user, nil
}

// ListFor returns ownerID's keys. Callers may only enumerate their own keys.
func (s *APIKeyService) ListFor(ctx context.Context, actor Identity, ownerID uuid.UUID) ([]*APIKey, error) {
	if err := s.gate.RequireSelf(actor, ownerID); err != nil {
		return nil, err
	}
	return s.backend.APIKeys().ListFor(ctx, ownerID)
}

// Revoke deletes a key. Owners and administrators may revoke.
func (s *APIKeyService) Revoke(ctx context.Context, actor Identity, id uuid.UUID) error {
	key, err := s.backend.APIKeys().Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.gate.RequireSelfOrAdmin(ctx, actor, key.UserID); err != nil {
		return err
	}
	if err := s.backend.APIKeys().Delete(ctx, id); err != nil {
		return err
	}

	s.events.record(ctx, ActivityEvent{
		EventType: ActivityEventAPIKeyRevoked,
		Actor:     actorFromIdentity(actor),
		UserID:    key.UserID.String(),
		Metadata:  map[string]any{"api_key_id": id.String()},
	})
	return nil
}

// ParseAPIKeyHeader splits an "identity.secret" header value.
func ParseAPIKeyHeader(value string) (identity, secret string, err error) {
	identity, secret, ok := strings.Cut(strings.TrimSpace(value), apiKeyHeaderSeparator)
	if !ok || identity == "" || secret == "" {
		return "", "", ErrInvalidCredential
	}
	return identity, secret, nil
}

func randomToken(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
