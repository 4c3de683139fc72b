package authmanager_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	authmanager "github.com/goliatone/go-authmanager"
	"github.com/goliatone/go-authmanager/storage/memory"
)

func newTestManager(t *testing.T, opts ...authmanager.ManagerOption) *authmanager.Manager {
	t.Helper()
	base := []authmanager.ManagerOption{
		authmanager.WithPasswordHasher(authmanager.NewBcryptHasher(bcrypt.MinCost)),
	}
	m := authmanager.NewManager(memory.New(), append(base, opts...)...)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func mustCreateUser(t *testing.T, m *authmanager.Manager, username, password string) *authmanager.User {
	t.Helper()
	user, err := m.CreateUser(context.Background(), &authmanager.User{Username: username}, password)
	require.NoError(t, err)
	return user
}

func mustCreateAdmin(t *testing.T, m *authmanager.Manager, username string) authmanager.Identity {
	t.Helper()
	user, err := m.CreateUser(context.Background(), &authmanager.User{Username: username, IsAdministrator: true}, "admin-pass")
	require.NoError(t, err)
	return authmanager.NewIdentityFromUser(user)
}

type recordingSink struct {
	mu     sync.Mutex
	events []authmanager.ActivityEvent
}

func (s *recordingSink) Record(_ context.Context, event authmanager.ActivityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSink) ofType(eventType authmanager.ActivityEventType) []authmanager.ActivityEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []authmanager.ActivityEvent
	for _, e := range s.events {
		if e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}
