package relational

import (
	"context"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	authmanager "github.com/goliatone/go-authmanager"
)

type apiKeyStore struct{ stores }

func (s apiKeyStore) Create(ctx context.Context, key *authmanager.APIKey, secretDigest string) (*authmanager.APIKey, error) {
	if key == nil {
		return nil, authmanager.ErrNotFound
	}
	record := &apiKeyModel{
		ID:         key.ID,
		UserID:     key.UserID,
		Identity:   key.Identity,
		SecretHash: secretDigest,
		Label:      key.Label,
		OwnerNonce: key.OwnerNonce,
		CreatedAt:  key.CreatedAt,
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = s.b.now()
	}

	err := atomic(ctx, s.idb, func(ctx context.Context, tx bun.IDB) error {
		exists, err := tx.NewSelect().Model((*apiKeyModel)(nil)).
			Where("ak.id = ?", record.ID).
			WhereOr("ak.identity = ?", record.Identity).
			Exists(ctx)
		if err != nil {
			return storeError(err, "failed to check api key")
		}
		if exists {
			return authmanager.ErrDuplicateIdentity
		}
		if _, err := s.b.keys.CreateTx(ctx, tx, record); err != nil {
			if isUniqueViolation(err) {
				return authmanager.ErrDuplicateIdentity
			}
			return storeError(err, "failed to create api key")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, record.ID)
}

func (s apiKeyStore) Get(ctx context.Context, id uuid.UUID) (*authmanager.APIKey, error) {
	record, err := s.load(ctx, "ak.id = ?", id)
	if err != nil {
		return nil, err
	}
	return record.toAPIKey(), nil
}

func (s apiKeyStore) GetByIdentity(ctx context.Context, identity string) (*authmanager.APIKey, string, error) {
	record, err := s.load(ctx, "ak.identity = ?", identity)
	if err != nil {
		return nil, "", err
	}
	return record.toAPIKey(), record.SecretHash, nil
}

func (s apiKeyStore) load(ctx context.Context, where string, arg any) (*apiKeyModel, error) {
	record := &apiKeyModel{}
	if err := s.idb.NewSelect().Model(record).Where(where, arg).Limit(1).Scan(ctx); err != nil {
		return nil, storeError(err, "failed to load api key")
	}
	return record, nil
}

// ListFor returns userID's keys, oldest first.
func (s apiKeyStore) ListFor(ctx context.Context, userID uuid.UUID) ([]*authmanager.APIKey, error) {
	var records []*apiKeyModel
	err := s.idb.NewSelect().Model(&records).
		Where("ak.user_id = ?", userID).
		Order("ak.created_at", "ak.identity").
		Scan(ctx)
	if err != nil {
		return nil, storeError(err, "failed to list api keys")
	}
	out := make([]*authmanager.APIKey, 0, len(records))
	for _, r := range records {
		out = append(out, r.toAPIKey())
	}
	return out, nil
}

func (s apiKeyStore) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := s.idb.NewDelete().Model((*apiKeyModel)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return storeError(err, "failed to delete api key")
	}
	if rowsAffected(res) == 0 {
		return authmanager.ErrNotFound
	}
	return nil
}
