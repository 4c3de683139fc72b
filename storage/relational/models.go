package relational

import (
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"

	authmanager "github.com/goliatone/go-authmanager"
)

type userModel struct {
	bun.BaseModel   `bun:"table:users,alias:usr"`
	ID              uuid.UUID      `bun:"id,pk,type:uuid"`
	Username        string         `bun:"username,notnull"`
	Email           string         `bun:"email,notnull"`
	Phone           string         `bun:"phone,notnull"`
	PasswordHash    string         `bun:"password_hash,notnull"`
	State           string         `bun:"state,notnull"`
	Nonce           string         `bun:"nonce,notnull"`
	IsAdministrator bool           `bun:"is_administrator,notnull"`
	Attrs           map[string]any `bun:"attrs"`
	CreatedAt       time.Time      `bun:"created_at,notnull"`
	UpdatedAt       time.Time      `bun:"updated_at,notnull"`
}

func userToModel(u *authmanager.User, credentialHash string) *userModel {
	return &userModel{
		ID:              u.ID,
		Username:        u.Username,
		Email:           u.Email,
		Phone:           u.Phone,
		PasswordHash:    credentialHash,
		State:           string(u.State),
		Nonce:           u.Nonce,
		IsAdministrator: u.IsAdministrator,
		Attrs:           u.Attrs,
		CreatedAt:       u.CreatedAt,
		UpdatedAt:       u.UpdatedAt,
	}
}

// toUser never carries the password hash out of the store.
func (m *userModel) toUser() *authmanager.User {
	return &authmanager.User{
		ID:              m.ID,
		Username:        m.Username,
		Email:           m.Email,
		Phone:           m.Phone,
		State:           authmanager.UserState(m.State),
		Nonce:           m.Nonce,
		IsAdministrator: m.IsAdministrator,
		Attrs:           m.Attrs,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}

type groupModel struct {
	bun.BaseModel `bun:"table:auth_groups,alias:grp"`
	Name          string         `bun:"name,pk"`
	Attrs         map[string]any `bun:"attrs"`
	CreatedAt     time.Time      `bun:"created_at,notnull"`
}

type memberModel struct {
	bun.BaseModel `bun:"table:group_members,alias:gm"`
	GroupName     string    `bun:"group_name,pk"`
	UserID        uuid.UUID `bun:"user_id,pk,type:uuid"`
	Position      int64     `bun:"position,notnull"`
}

type roleModel struct {
	bun.BaseModel `bun:"table:group_roles,alias:gr"`
	GroupName     string    `bun:"group_name,pk"`
	UserID        uuid.UUID `bun:"user_id,pk,type:uuid"`
	Role          string    `bun:"role,pk"`
	Position      int64     `bun:"position,notnull"`
}

type apiKeyModel struct {
	bun.BaseModel `bun:"table:api_keys,alias:ak"`
	ID            uuid.UUID `bun:"id,pk,type:uuid"`
	UserID        uuid.UUID `bun:"user_id,notnull,type:uuid"`
	Identity      string    `bun:"identity,notnull"`
	SecretHash    string    `bun:"secret_hash,notnull"`
	Label         string    `bun:"label,notnull"`
	OwnerNonce    string    `bun:"owner_nonce,notnull"`
	CreatedAt     time.Time `bun:"created_at,notnull"`
}

func (m *apiKeyModel) toAPIKey() *authmanager.APIKey {
	return &authmanager.APIKey{
		ID:         m.ID,
		UserID:     m.UserID,
		Identity:   m.Identity,
		Label:      m.Label,
		CreatedAt:  m.CreatedAt,
		OwnerNonce: m.OwnerNonce,
	}
}

func newUsersRepository(db *bun.DB) repository.Repository[*userModel] {
	return repository.NewRepository[*userModel](db, repository.ModelHandlers[*userModel]{
		NewRecord: func() *userModel { return &userModel{} },
		GetID: func(m *userModel) uuid.UUID {
			if m == nil {
				return uuid.Nil
			}
			return m.ID
		},
		SetID: func(m *userModel, id uuid.UUID) {
			if m != nil {
				m.ID = id
			}
		},
		GetIdentifier: func() string {
			return "username"
		},
	})
}

func newAPIKeysRepository(db *bun.DB) repository.Repository[*apiKeyModel] {
	return repository.NewRepository[*apiKeyModel](db, repository.ModelHandlers[*apiKeyModel]{
		NewRecord: func() *apiKeyModel { return &apiKeyModel{} },
		GetID: func(m *apiKeyModel) uuid.UUID {
			if m == nil {
				return uuid.Nil
			}
			return m.ID
		},
		SetID: func(m *apiKeyModel, id uuid.UUID) {
			if m != nil {
				m.ID = id
			}
		},
		GetIdentifier: func() string {
			return "identity"
		},
	})
}
