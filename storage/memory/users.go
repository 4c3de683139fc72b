package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"

	authmanager "github.com/goliatone/go-authmanager"
)

type userStore struct{ view }

func (s userStore) Create(_ context.Context, user *authmanager.User, credentialHash string) (*authmanager.User, error) {
	if user == nil {
		return nil, authmanager.ErrNotFound
	}
	var out *authmanager.User
	err := s.write(func(st *state) error {
		if _, ok := st.users[user.ID]; ok {
			return authmanager.ErrDuplicateIdentity
		}
		if _, ok := st.usernames[user.Username]; ok {
			return authmanager.ErrDuplicateIdentity
		}
		if user.Email != "" {
			if _, ok := st.emails[user.Email]; ok {
				return authmanager.ErrDuplicateIdentity
			}
		}

		record := user.Clone()
		record.EnsureState()
		st.users[record.ID] = &userRecord{user: record, credential: credentialHash}
		st.usernames[record.Username] = record.ID
		if record.Email != "" {
			st.emails[record.Email] = record.ID
		}
		out = record.Clone()
		return nil
	})
	return out, err
}

func (s userStore) GetByID(_ context.Context, id uuid.UUID) (*authmanager.User, error) {
	var out *authmanager.User
	err := s.read(func(st *state) error {
		rec, ok := st.users[id]
		if !ok {
			return authmanager.ErrNotFound
		}
		out = rec.user.Clone()
		return nil
	})
	return out, err
}

func (s userStore) GetByUsername(_ context.Context, username string) (*authmanager.User, error) {
	return s.getByIndex(func(st *state) (uuid.UUID, bool) {
		id, ok := st.usernames[username]
		return id, ok
	})
}

func (s userStore) GetByEmail(_ context.Context, email string) (*authmanager.User, error) {
	if email == "" {
		return nil, authmanager.ErrNotFound
	}
	return s.getByIndex(func(st *state) (uuid.UUID, bool) {
		id, ok := st.emails[email]
		return id, ok
	})
}

func (s userStore) getByIndex(lookup func(st *state) (uuid.UUID, bool)) (*authmanager.User, error) {
	var out *authmanager.User
	err := s.read(func(st *state) error {
		id, ok := lookup(st)
		if !ok {
			return authmanager.ErrNotFound
		}
		out = st.users[id].user.Clone()
		return nil
	})
	return out, err
}

// List returns users ordered by username.
func (s userStore) List(_ context.Context) ([]*authmanager.User, error) {
	var out []*authmanager.User
	err := s.read(func(st *state) error {
		out = make([]*authmanager.User, 0, len(st.users))
		for _, rec := range st.users {
			out = append(out, rec.user.Clone())
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, err
}

func (s userStore) Credential(_ context.Context, id uuid.UUID) (string, error) {
	var hash string
	err := s.read(func(st *state) error {
		rec, ok := st.users[id]
		if !ok {
			return authmanager.ErrNotFound
		}
		hash = rec.credential
		return nil
	})
	return hash, err
}

func (s userStore) SetCredential(_ context.Context, id uuid.UUID, credentialHash string) error {
	return s.write(func(st *state) error {
		rec, ok := st.users[id]
		if !ok {
			return authmanager.ErrNotFound
		}
		rec.credential = credentialHash
		rec.user.UpdatedAt = s.b.now()
		return nil
	})
}

func (s userStore) UpdateState(_ context.Context, id uuid.UUID, next authmanager.UserState) (*authmanager.User, error) {
	var out *authmanager.User
	err := s.write(func(st *state) error {
		rec, ok := st.users[id]
		if !ok {
			return authmanager.ErrNotFound
		}
		rec.user.State = next
		rec.user.UpdatedAt = s.b.now()
		out = rec.user.Clone()
		return nil
	})
	return out, err
}

func (s userStore) Delete(_ context.Context, id uuid.UUID) error {
	return s.write(func(st *state) error {
		rec, ok := st.users[id]
		if !ok {
			return authmanager.ErrNotFound
		}
		delete(st.usernames, rec.user.Username)
		if rec.user.Email != "" {
			delete(st.emails, rec.user.Email)
		}
		delete(st.users, id)
		return nil
	})
}
