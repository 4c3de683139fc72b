// Package memory provides a mutex-guarded, in-process storage backend.
//
// Every record handed out is a copy, so callers can never mutate stored
// state. RunInTx serializes transactions against each other and against
// plain calls: fn works on a private snapshot that replaces the live state
// only when fn returns nil.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	authmanager "github.com/goliatone/go-authmanager"
)

type userRecord struct {
	user       *authmanager.User
	credential string
}

type keyRecord struct {
	key    *authmanager.APIKey
	digest string
}

type state struct {
	users         map[uuid.UUID]*userRecord
	usernames     map[string]uuid.UUID
	emails        map[string]uuid.UUID
	groups        map[string]*authmanager.Group
	keys          map[uuid.UUID]*keyRecord
	keyIdentities map[string]uuid.UUID
}

func newState() *state {
	return &state{
		users:         map[uuid.UUID]*userRecord{},
		usernames:     map[string]uuid.UUID{},
		emails:        map[string]uuid.UUID{},
		groups:        map[string]*authmanager.Group{},
		keys:          map[uuid.UUID]*keyRecord{},
		keyIdentities: map[string]uuid.UUID{},
	}
}

func (s *state) clone() *state {
	c := newState()
	for id, rec := range s.users {
		c.users[id] = &userRecord{user: rec.user.Clone(), credential: rec.credential}
	}
	for k, v := range s.usernames {
		c.usernames[k] = v
	}
	for k, v := range s.emails {
		c.emails[k] = v
	}
	for name, g := range s.groups {
		c.groups[name] = g.Clone()
	}
	for id, rec := range s.keys {
		c.keys[id] = &keyRecord{key: rec.key.Clone(), digest: rec.digest}
	}
	for k, v := range s.keyIdentities {
		c.keyIdentities[k] = v
	}
	return c
}

// Option customizes a Backend.
type Option func(*Backend)

// WithClock sets the clock used for UpdatedAt stamps.
func WithClock(now func() time.Time) Option {
	return func(b *Backend) {
		if now != nil {
			b.now = now
		}
	}
}

// Backend is an authmanager.Backend kept entirely in memory. Its lifetime is
// that of the value: create one per process or per test.
type Backend struct {
	mu    sync.RWMutex
	state *state
	now   func() time.Time
}

var _ authmanager.Backend = (*Backend)(nil)

// New returns an empty Backend.
func New(opts ...Option) *Backend {
	b := &Backend{state: newState(), now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

// Users returns the user store.
func (b *Backend) Users() authmanager.UserStore { return userStore{view{b: b}} }

// Groups returns the group store.
func (b *Backend) Groups() authmanager.GroupStore { return groupStore{view{b: b}} }

// APIKeys returns the api-key store.
func (b *Backend) APIKeys() authmanager.APIKeyStore { return apiKeyStore{view{b: b}} }

// RunInTx runs fn against a snapshot of the current state and commits the
// snapshot when fn succeeds. The Backend's own stores must not be used from
// inside fn; they wait for the transaction to finish.
func (b *Backend) RunInTx(ctx context.Context, fn func(ctx context.Context, tx authmanager.Stores) error) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	snapshot := b.state.clone()
	if err := fn(ctx, view{b: b, tx: snapshot}); err != nil {
		return err
	}
	b.state = snapshot
	return nil
}

// Close drops every record.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = newState()
	return nil
}

// view is bound either to the live state, guarded by the backend lock, or
// to a transaction snapshot already owned by the caller.
type view struct {
	b  *Backend
	tx *state
}

func (v view) Users() authmanager.UserStore     { return userStore{v} }
func (v view) Groups() authmanager.GroupStore   { return groupStore{v} }
func (v view) APIKeys() authmanager.APIKeyStore { return apiKeyStore{v} }

func (v view) read(fn func(s *state) error) error {
	if v.tx != nil {
		return fn(v.tx)
	}
	v.b.mu.RLock()
	defer v.b.mu.RUnlock()
	return fn(v.b.state)
}

func (v view) write(fn func(s *state) error) error {
	if v.tx != nil {
		return fn(v.tx)
	}
	v.b.mu.Lock()
	defer v.b.mu.Unlock()
	return fn(v.b.state)
}

func sortGroups(groups []*authmanager.Group) {
	sort.Slice(groups, func(i, j int) bool { return groups[i].Name < groups[j].Name })
}
