package authmanager

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Logger is the structured logger used across the package. Args are
// alternating key/value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Identity holds the attributes of an authenticated caller
type Identity interface {
	ID() string
	Username() string
	Email() string
}

// UserStore owns user records and their credential hashes.
type UserStore interface {
	Create(ctx context.Context, user *User, credentialHash string) (*User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context) ([]*User, error)
	Credential(ctx context.Context, id uuid.UUID) (string, error)
	SetCredential(ctx context.Context, id uuid.UUID, credentialHash string) error
	UpdateState(ctx context.Context, id uuid.UUID, state UserState) (*User, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// GroupStore owns groups, their membership sets and the role map.
type GroupStore interface {
	Create(ctx context.Context, group *Group) (*Group, error)
	Get(ctx context.Context, name string) (*Group, error)
	List(ctx context.Context) ([]*Group, error)
	Delete(ctx context.Context, name string) error
	AddMembers(ctx context.Context, name string, userIDs []uuid.UUID) error
	RemoveMembers(ctx context.Context, name string, userIDs []uuid.UUID) error
	GroupsForUser(ctx context.Context, userID uuid.UUID) ([]*Group, error)
	GrantRole(ctx context.Context, name string, userID uuid.UUID, role string) error
	RevokeRole(ctx context.Context, name string, userID uuid.UUID, role string) error
	Roles(ctx context.Context, name string, userID uuid.UUID) ([]string, error)
	PurgeUser(ctx context.Context, userID uuid.UUID) error
}

// APIKeyStore owns api keys and their secret digests.
type APIKeyStore interface {
	Create(ctx context.Context, key *APIKey, secretDigest string) (*APIKey, error)
	Get(ctx context.Context, id uuid.UUID) (*APIKey, error)
	GetByIdentity(ctx context.Context, identity string) (*APIKey, string, error)
	ListFor(ctx context.Context, userID uuid.UUID) ([]*APIKey, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// Stores groups the repositories bound to one connection or transaction.
type Stores interface {
	Users() UserStore
	Groups() GroupStore
	APIKeys() APIKeyStore
}

// Backend is a Stores implementation that can run a sequence of calls
// atomically. Stores handed to fn must be used instead of the Backend's own
// until fn returns.
type Backend interface {
	Stores
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Stores) error) error
	Close() error
}

type zapLogger struct {
	sugar *zap.SugaredLogger
}

// NewZapLogger adapts a zap logger; nil yields a no-op logger.
func NewZapLogger(logger *zap.Logger) Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return zapLogger{sugar: logger.Sugar()}
}

func (l zapLogger) Debug(msg string, args ...any) { l.sugar.Debugw(msg, args...) }
func (l zapLogger) Info(msg string, args ...any)  { l.sugar.Infow(msg, args...) }
func (l zapLogger) Warn(msg string, args ...any)  { l.sugar.Warnw(msg, args...) }
func (l zapLogger) Error(msg string, args ...any) { l.sugar.Errorw(msg, args...) }

func defLogger() Logger {
	return NewZapLogger(nil)
}
