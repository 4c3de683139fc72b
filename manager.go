package authmanager

import (
	"context"
	"strings"
	"time"

	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
)

// PostCreateHook runs inside the transaction that created user. A hook error
// rolls the creation back.
type PostCreateHook func(ctx context.Context, tx Stores, user *User) error

// DefaultGroupHook adds every new user to groupName with no roles, creating
// the group on first use.
func DefaultGroupHook(groupName string) PostCreateHook {
	return func(ctx context.Context, tx Stores, user *User) error {
		groups := tx.Groups()
		if _, err := groups.Get(ctx, groupName); err != nil {
			if !IsKind(err, ErrNotFound) {
				return err
			}
			if _, err := groups.Create(ctx, &Group{Name: groupName}); err != nil {
				return err
			}
		}
		return groups.AddMembers(ctx, groupName, []uuid.UUID{user.ID})
	}
}

type core struct {
	backend      Backend
	hasher       PasswordHasher
	logger       Logger
	events       recorder
	defaultGroup string
	adminRole    string
	now          func() time.Time
}

// Manager wires the identity, group and api-key stores with the credential
// validator, the account state machine and the authorization gate.
type Manager struct {
	*core
	hooks     []PostCreateHook
	smOptions []StateMachineOption
	tokens    *TokenService

	gate          *Gate
	groups        *GroupService
	credentials   *CredentialValidator
	apiKeys       *APIKeyService
	stateMachine  AccountStateMachine
	authenticator *Authenticator
}

// ManagerOption customizes a Manager.
type ManagerOption func(*Manager)

// WithLogger sets the logger shared by every component.
func WithLogger(logger Logger) ManagerOption {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithPasswordHasher replaces the default bcrypt hasher.
func WithPasswordHasher(hasher PasswordHasher) ManagerOption {
	return func(m *Manager) {
		if hasher != nil {
			m.hasher = hasher
		}
	}
}

// WithDefaultGroup overrides the name of the group new users join.
func WithDefaultGroup(name string) ManagerOption {
	return func(m *Manager) {
		if name != "" {
			m.defaultGroup = name
		}
	}
}

// WithAdminRole overrides the global administrator role name.
func WithAdminRole(role string) ManagerOption {
	return func(m *Manager) {
		if role != "" {
			m.adminRole = role
		}
	}
}

// WithActivitySink configures an ActivitySink for emitting events.
func WithActivitySink(sink ActivitySink) ManagerOption {
	return func(m *Manager) {
		m.events.sink = normalizeActivitySink(sink)
	}
}

// WithClock injects a custom clock (useful for tests).
func WithClock(clock func() time.Time) ManagerOption {
	return func(m *Manager) {
		if clock != nil {
			m.now = clock
		}
	}
}

// WithPostCreateHook appends a hook that runs after the default group hook.
func WithPostCreateHook(hook PostCreateHook) ManagerOption {
	return func(m *Manager) {
		if hook != nil {
			m.hooks = append(m.hooks, hook)
		}
	}
}

// WithStateMachineOptions forwards options to the account state machine.
func WithStateMachineOptions(opts ...StateMachineOption) ManagerOption {
	return func(m *Manager) {
		m.smOptions = append(m.smOptions, opts...)
	}
}

// WithTokenService enables IdentityFromToken and IssueToken.
func WithTokenService(tokens *TokenService) ManagerOption {
	return func(m *Manager) {
		m.tokens = tokens
	}
}

// NewManager returns a Manager backed by backend.
func NewManager(backend Backend, opts ...ManagerOption) *Manager {
	c := &core{
		backend:      backend,
		hasher:       NewBcryptHasher(0),
		logger:       defLogger(),
		defaultGroup: DefaultGroupName,
		adminRole:    RoleAdministrator,
		now:          time.Now,
	}
	m := &Manager{core: c}
	m.events = recorder{sink: noopActivitySink{}}

	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}

	m.events.logger = m.logger
	m.events.now = m.now

	m.gate = &Gate{core: c}
	m.groups = &GroupService{core: c}
	m.credentials = &CredentialValidator{core: c, gate: m.gate}
	m.apiKeys = &APIKeyService{core: c, gate: m.gate}
	m.stateMachine = newAccountStateMachine(c, m.gate, m.smOptions...)
	m.authenticator = &Authenticator{core: c, credentials: m.credentials, apiKeys: m.apiKeys}

	return m
}

// Gate returns the authorization gate.
func (m *Manager) Gate() *Gate { return m.gate }

// Groups returns the group service.
func (m *Manager) Groups() *GroupService { return m.groups }

// Credentials returns the credential validator.
func (m *Manager) Credentials() *CredentialValidator { return m.credentials }

// APIKeys returns the api-key service.
func (m *Manager) APIKeys() *APIKeyService { return m.apiKeys }

// StateMachine returns the account state machine.
func (m *Manager) StateMachine() AccountStateMachine { return m.stateMachine }

// Authenticator returns the authenticator.
func (m *Manager) Authenticator() *Authenticator { return m.authenticator }

// DefaultGroup returns the name of the group new users join.
func (m *Manager) DefaultGroup() string { return m.defaultGroup }

// RegisterUserMessage carries a self-service or operator registration.
type RegisterUserMessage struct {
	Username        string         `json:"username"`
	Email           string         `json:"email"`
	Phone           string         `json:"phone"`
	Password        string         `json:"password"`
	PasswordConfirm string         `json:"password_validate"`
	IsAdministrator bool           `json:"is_administrator"`
	Attrs           map[string]any `json:"attrs"`
	// UseHashid derives the user id from the email so ids are reproducible
	// across environments.
	UseHashid bool `json:"-"`
}

// Register validates msg and creates the user it describes.
func (m *Manager) Register(ctx context.Context, msg RegisterUserMessage) (*User, error) {
	if msg.Password != msg.PasswordConfirm {
		return nil, ErrPasswordConfirmation
	}

	phone, err := NormalizePhone(msg.Phone, "")
	if err != nil {
		return nil, err
	}

	user := &User{
		Username:        getUsername(msg.Username, msg.Email),
		Email:           strings.TrimSpace(msg.Email),
		Phone:           phone,
		IsAdministrator: msg.IsAdministrator,
		Attrs:           cloneAttrs(msg.Attrs),
	}

	if msg.UseHashid && user.Email != "" {
		if id, err := hashid.NewUUID(user.Email); err == nil {
			user.ID = id
		}
	}

	return m.CreateUser(ctx, user, msg.Password)
}

// CreateUser persists user with password as its credential. The user is
// assigned a fresh id (unless one is set), a new nonce and the active state,
// then every post-create hook runs in the same transaction.
func (m *Manager) CreateUser(ctx context.Context, user *User, password string) (*User, error) {
	if user == nil {
		return nil, invalidUserError(errNoIdentity)
	}
	record := user.Clone()
	record.EnsureState()

	if err := ValidateUser(record); err != nil {
		return nil, err
	}

	hash, err := m.hasher.HashPassword(password)
	if err != nil {
		if IsKind(err, ErrEmptyPassword) {
			return nil, ErrEmptyPassword
		}
		return nil, internalError(err, "failed to hash password")
	}

	prepareUserDefaults(record, m.now())

	var created *User
	err = m.backend.RunInTx(ctx, func(ctx context.Context, tx Stores) error {
		var err error
		if created, err = tx.Users().Create(ctx, record, hash); err != nil {
			return err
		}
		for _, hook := range m.postCreateHooks() {
			if err := hook(ctx, tx, created.Clone()); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		m.logger.Debug("create user failed", "username", record.Username, "error", err)
		return nil, internalError(err, "failed to create user")
	}

	m.logger.Info("user created", "user_id", created.ID.String(), "username", created.Username)
	m.events.record(ctx, ActivityEvent{
		EventType: ActivityEventUserCreated,
		UserID:    created.ID.String(),
		ToState:   created.State,
	})

	return created, nil
}

func (m *Manager) postCreateHooks() []PostCreateHook {
	hooks := make([]PostCreateHook, 0, len(m.hooks)+1)
	hooks = append(hooks, DefaultGroupHook(m.defaultGroup))
	return append(hooks, m.hooks...)
}

// User returns the user with id.
func (m *Manager) User(ctx context.Context, id uuid.UUID) (*User, error) {
	return m.backend.Users().GetByID(ctx, id)
}

// UserByUsername returns the user named username.
func (m *Manager) UserByUsername(ctx context.Context, username string) (*User, error) {
	return m.backend.Users().GetByUsername(ctx, username)
}

// UserByEmail returns the user registered with email.
func (m *Manager) UserByEmail(ctx context.Context, email string) (*User, error) {
	return m.backend.Users().GetByEmail(ctx, email)
}

// Users lists every user.
func (m *Manager) Users(ctx context.Context) ([]*User, error) {
	return m.backend.Users().List(ctx)
}

// Profile returns the user with its group names and per-group roles, read
// from one consistent snapshot.
func (m *Manager) Profile(ctx context.Context, id uuid.UUID) (*UserProfile, error) {
	var profile *UserProfile
	err := m.backend.RunInTx(ctx, func(ctx context.Context, tx Stores) error {
		user, err := tx.Users().GetByID(ctx, id)
		if err != nil {
			return err
		}
		groups, err := tx.Groups().GroupsForUser(ctx, id)
		if err != nil {
			return err
		}

		profile = &UserProfile{
			User:   user,
			Groups: make([]string, 0, len(groups)),
			Roles:  make(map[string][]string, len(groups)),
		}
		for _, g := range groups {
			profile.Groups = append(profile.Groups, g.Name)
			if roles := g.RolesFor(id); len(roles) > 0 {
				profile.Roles[g.Name] = roles
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return profile, nil
}

// Activate, Deactivate and Delete are shorthands for StateMachine().Transition.

func (m *Manager) Activate(ctx context.Context, actor Identity, id uuid.UUID, opts ...TransitionOption) (*User, error) {
	return m.stateMachine.Transition(ctx, actor, id, TriggerActivate, opts...)
}

func (m *Manager) Deactivate(ctx context.Context, actor Identity, id uuid.UUID, opts ...TransitionOption) (*User, error) {
	return m.stateMachine.Transition(ctx, actor, id, TriggerDeactivate, opts...)
}

func (m *Manager) Delete(ctx context.Context, actor Identity, id uuid.UUID, opts ...TransitionOption) (*User, error) {
	return m.stateMachine.Transition(ctx, actor, id, TriggerDelete, opts...)
}

// Close releases the backend.
func (m *Manager) Close() error {
	return m.backend.Close()
}

func prepareUserDefaults(record *User, now time.Time) {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	record.Nonce = newNonce()
	record.EnsureState()
	record.CreatedAt = now
	record.UpdatedAt = now
}

// newNonce returns a fresh per-creation version token.
func newNonce() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func getUsername(username, email string) string {
	if username = strings.TrimSpace(username); username != "" {
		return username
	}

	if strings.Contains(email, "@") {
		username = strings.ToLower(strings.Split(email, "@")[0])
	}

	return username
}
