package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"

	authmanager "github.com/goliatone/go-authmanager"
)

type apiKeyStore struct{ view }

func (s apiKeyStore) Create(_ context.Context, key *authmanager.APIKey, secretDigest string) (*authmanager.APIKey, error) {
	if key == nil {
		return nil, authmanager.ErrNotFound
	}
	var out *authmanager.APIKey
	err := s.write(func(st *state) error {
		if _, ok := st.keys[key.ID]; ok {
			return authmanager.ErrDuplicateIdentity
		}
		if _, ok := st.keyIdentities[key.Identity]; ok {
			return authmanager.ErrDuplicateIdentity
		}
		record := key.Clone()
		if record.CreatedAt.IsZero() {
			record.CreatedAt = s.b.now()
		}
		st.keys[record.ID] = &keyRecord{key: record, digest: secretDigest}
		st.keyIdentities[record.Identity] = record.ID
		out = record.Clone()
		return nil
	})
	return out, err
}

func (s apiKeyStore) Get(_ context.Context, id uuid.UUID) (*authmanager.APIKey, error) {
	var out *authmanager.APIKey
	err := s.read(func(st *state) error {
		rec, ok := st.keys[id]
		if !ok {
			return authmanager.ErrNotFound
		}
		out = rec.key.Clone()
		return nil
	})
	return out, err
}

func (s apiKeyStore) GetByIdentity(_ context.Context, identity string) (*authmanager.APIKey, string, error) {
	var (
		out    *authmanager.APIKey
		digest string
	)
	err := s.read(func(st *state) error {
		id, ok := st.keyIdentities[identity]
		if !ok {
			return authmanager.ErrNotFound
		}
		rec := st.keys[id]
		out, digest = rec.key.Clone(), rec.digest
		return nil
	})
	return out, digest, err
}

// ListFor returns userID's keys, oldest first.
func (s apiKeyStore) ListFor(_ context.Context, userID uuid.UUID) ([]*authmanager.APIKey, error) {
	out := []*authmanager.APIKey{}
	err := s.read(func(st *state) error {
		for _, rec := range st.keys {
			if rec.key.UserID == userID {
				out = append(out, rec.key.Clone())
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Identity < out[j].Identity
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, err
}

func (s apiKeyStore) Delete(_ context.Context, id uuid.UUID) error {
	return s.write(func(st *state) error {
		rec, ok := st.keys[id]
		if !ok {
			return authmanager.ErrNotFound
		}
		delete(st.keyIdentities, rec.key.Identity)
		delete(st.keys, id)
		return nil
	})
}
