package relational

import (
	"context"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"

	authmanager "github.com/goliatone/go-authmanager"
)

type userStore struct{ stores }

func (s userStore) Create(ctx context.Context, user *authmanager.User, credentialHash string) (*authmanager.User, error) {
	if user == nil {
		return nil, authmanager.ErrNotFound
	}
	record := userToModel(user, credentialHash)
	if record.State == "" {
		record.State = string(authmanager.UserStateActive)
	}

	err := atomic(ctx, s.idb, func(ctx context.Context, tx bun.IDB) error {
		q := tx.NewSelect().Model((*userModel)(nil)).
			Where("usr.id = ?", record.ID).
			WhereOr("usr.username = ?", record.Username)
		if record.Email != "" {
			q = q.WhereOr("usr.email = ?", record.Email)
		}
		exists, err := q.Exists(ctx)
		if err != nil {
			return storeError(err, "failed to check user uniqueness")
		}
		if exists {
			return authmanager.ErrDuplicateIdentity
		}

		if _, err := s.b.users.CreateTx(ctx, tx, record); err != nil {
			if isUniqueViolation(err) {
				return authmanager.ErrDuplicateIdentity
			}
			return storeError(err, "failed to create user")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetByID(ctx, record.ID)
}

func (s userStore) GetByID(ctx context.Context, id uuid.UUID) (*authmanager.User, error) {
	return s.getBy(ctx, "usr.id = ?", id)
}

func (s userStore) GetByUsername(ctx context.Context, username string) (*authmanager.User, error) {
	return s.getBy(ctx, "usr.username = ?", username)
}

func (s userStore) GetByEmail(ctx context.Context, email string) (*authmanager.User, error) {
	if email == "" {
		return nil, authmanager.ErrNotFound
	}
	return s.getBy(ctx, "usr.email = ?", email)
}

func (s userStore) getBy(ctx context.Context, where string, arg any) (*authmanager.User, error) {
	record, err := s.load(ctx, where, arg)
	if err != nil {
		return nil, err
	}
	return record.toUser(), nil
}

func (s userStore) load(ctx context.Context, where string, arg any) (*userModel, error) {
	record := &userModel{}
	if err := s.idb.NewSelect().Model(record).Where(where, arg).Limit(1).Scan(ctx); err != nil {
		return nil, storeError(err, "failed to load user")
	}
	return record, nil
}

// List returns users ordered by username.
func (s userStore) List(ctx context.Context) ([]*authmanager.User, error) {
	var records []*userModel
	if err := s.idb.NewSelect().Model(&records).Order("usr.username").Scan(ctx); err != nil {
		return nil, storeError(err, "failed to list users")
	}
	out := make([]*authmanager.User, 0, len(records))
	for _, r := range records {
		out = append(out, r.toUser())
	}
	return out, nil
}

func (s userStore) Credential(ctx context.Context, id uuid.UUID) (string, error) {
	record, err := s.load(ctx, "usr.id = ?", id)
	if err != nil {
		return "", err
	}
	return record.PasswordHash, nil
}

func (s userStore) SetCredential(ctx context.Context, id uuid.UUID, credentialHash string) error {
	res, err := s.idb.NewUpdate().Model((*userModel)(nil)).
		Set("password_hash = ?", credentialHash).
		Set("updated_at = ?", s.b.now()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return storeError(err, "failed to set credential")
	}
	if rowsAffected(res) == 0 {
		return authmanager.ErrNotFound
	}
	return nil
}

func (s userStore) UpdateState(ctx context.Context, id uuid.UUID, state authmanager.UserState) (*authmanager.User, error) {
	err := atomic(ctx, s.idb, func(ctx context.Context, tx bun.IDB) error {
		record := &userModel{}
		if err := tx.NewSelect().Model(record).Where("usr.id = ?", id).Scan(ctx); err != nil {
			return storeError(err, "failed to load user")
		}
		record.State = string(state)
		record.UpdatedAt = s.b.now()
		if _, err := s.b.users.UpdateTx(ctx, tx, record, repository.UpdateByID(id.String())); err != nil {
			return storeError(err, "failed to update user state")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetByID(ctx, id)
}

func (s userStore) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := s.idb.NewDelete().Model((*userModel)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return storeError(err, "failed to delete user")
	}
	if rowsAffected(res) == 0 {
		return authmanager.ErrNotFound
	}
	return nil
}
