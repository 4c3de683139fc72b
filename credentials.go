package authmanager

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// CredentialValidator checks presented secrets against stored credentials.
type CredentialValidator struct {
	*core
	gate *Gate
}

// Validate reports whether secret matches user's credential. With
// requireActive set, any account that is not active fails regardless of the
// secret.
func (v *CredentialValidator) Validate(ctx context.Context, user *User, secret string, requireActive bool) (bool, error) {
	if user == nil {
		return false, nil
	}
	if requireActive && !user.IsActive() {
		return false, nil
	}

	hash, err := v.backend.Users().Credential(ctx, user.ID)
	if err != nil {
		if IsKind(err, ErrNotFound) {
			return false, nil
		}
		return false, internalError(err, "failed to load credential")
	}

	if err := v.hasher.ComparePasswordAndHash(secret, hash); err != nil {
		if errors.Is(err, ErrMismatchedHashAndPassword) {
			return false, nil
		}
		return false, internalError(err, "failed to compare credential")
	}
	return true, nil
}

// ChangeCredential replaces targetID's credential. Administrators skip the
// current secret check; everyone else may only change their own credential
// and must present the current one.
func (v *CredentialValidator) ChangeCredential(ctx context.Context, actor Identity, targetID uuid.UUID, current, next string) error {
	target, err := v.backend.Users().GetByID(ctx, targetID)
	if err != nil {
		return err
	}

	admin, err := v.gate.IsAdmin(ctx, actor)
	if err != nil {
		return err
	}

	if !admin {
		if !IsSelf(actor, targetID) {
			return ErrForbidden
		}
		ok, err := v.Validate(ctx, target, current, false)
		if err != nil {
			return err
		}
		if !ok {
			v.logger.Debug("change credential rejected", "user_id", targetID.String())
			return ErrInvalidCredential
		}
	}

	hash, err := v.hasher.HashPassword(next)
	if err != nil {
		if IsKind(err, ErrEmptyPassword) {
			return ErrEmptyPassword
		}
		return internalError(err, "failed to hash password")
	}

	if err := v.backend.Users().SetCredential(ctx, targetID, hash); err != nil {
		return err
	}

	v.logger.Info("credential changed", "user_id", targetID.String(), "by_admin", admin)
	v.events.record(ctx, ActivityEvent{
		EventType: ActivityEventPasswordChanged,
		Actor:     actorFromIdentity(actor),
		UserID:    targetID.String(),
		Metadata:  map[string]any{"bypass_current": admin},
	})
	return nil
}
