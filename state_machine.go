package authmanager

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Trigger names an account lifecycle transition.
type Trigger string

const (
	TriggerActivate   Trigger = "activate"
	TriggerDeactivate Trigger = "deactivate"
	TriggerDelete     Trigger = "delete"
)

var transitions = map[Trigger]struct {
	from []UserState
	to   UserState
}{
	TriggerActivate:   {from: []UserState{UserStateInactive}, to: UserStateActive},
	TriggerDeactivate: {from: []UserState{UserStateActive}, to: UserStateInactive},
	TriggerDelete:     {from: []UserState{UserStateActive, UserStateInactive}, to: UserStateDeleted},
}

// NextState returns the state trigger moves from into, or
// ErrInvalidTransition when trigger is not legal from that state.
func NextState(from UserState, trigger Trigger) (UserState, error) {
	t, ok := transitions[trigger]
	if !ok {
		return "", ErrInvalidTransition
	}
	for _, src := range t.from {
		if src == from {
			return t.to, nil
		}
	}
	return "", ErrInvalidTransition
}

// TransitionMetadata captures extra context for a transition.
type TransitionMetadata struct {
	Reason   string
	Metadata map[string]any
}

// TransitionContext is passed into hooks.
//
// Stores is the transaction the transition runs in for before hooks, and the
// backend's own stores for after hooks. Before hooks must read and write
// through it: the backend is held by the transaction until they return, so
// going through the Manager or the Backend from a before hook blocks.
type TransitionContext struct {
	Actor   ActorRef
	User    *User
	Trigger Trigger
	From    UserState
	To      UserState
	Meta    TransitionMetadata
	Stores  Stores
}

// TransitionHook is executed before or after a transition. Before hooks run
// inside the transaction and abort it on error.
type TransitionHook func(ctx context.Context, tc TransitionContext) error

// TransitionHookPhase identifies whether a hook ran before or after persistence.
type TransitionHookPhase string

const (
	HookPhaseBefore TransitionHookPhase = "before_transition"
	HookPhaseAfter  TransitionHookPhase = "after_transition"
)

// HookErrorHandler handles errors surfaced by transition hooks.
type HookErrorHandler func(ctx context.Context, phase TransitionHookPhase, err error, tc TransitionContext) error

// AccountStateMachine is the only component allowed to change a user's state.
type AccountStateMachine interface {
	Transition(ctx context.Context, actor Identity, userID uuid.UUID, trigger Trigger, opts ...TransitionOption) (*User, error)
	CurrentState(user *User) UserState
}

// StateMachineOption customizes state machine construction.
type StateMachineOption func(*accountStateMachine)

// TransitionOption customizes a single transition.
type TransitionOption func(*transitionOptions)

// WithStateMachineClock injects a custom clock.
func WithStateMachineClock(clock func() time.Time) StateMachineOption {
	return func(sm *accountStateMachine) {
		if clock != nil {
			sm.now = clock
		}
	}
}

// WithStateMachineHookErrorHandler overrides how hook failures are propagated.
// By default the hook error is returned unchanged.
func WithStateMachineHookErrorHandler(handler HookErrorHandler) StateMachineOption {
	return func(sm *accountStateMachine) {
		if handler != nil {
			sm.hookErrorHandler = handler
		}
	}
}

// WithTransitionReason sets the human-readable reason for the transition.
func WithTransitionReason(reason string) TransitionOption {
	return func(opts *transitionOptions) {
		opts.metadata.Reason = reason
	}
}

// WithTransitionMetadata merges metadata into the transition context.
func WithTransitionMetadata(metadata map[string]any) TransitionOption {
	return func(opts *transitionOptions) {
		if len(metadata) == 0 {
			return
		}
		if opts.metadata.Metadata == nil {
			opts.metadata.Metadata = make(map[string]any, len(metadata))
		}
		for k, v := range metadata {
			opts.metadata.Metadata[k] = v
		}
	}
}

// WithBeforeTransitionHook adds a hook executed before the state is persisted.
func WithBeforeTransitionHook(h TransitionHook) TransitionOption {
	return func(opts *transitionOptions) {
		if h != nil {
			opts.beforeHooks = append(opts.beforeHooks, h)
		}
	}
}

// WithAfterTransitionHook adds a hook executed once the transition committed.
func WithAfterTransitionHook(h TransitionHook) TransitionOption {
	return func(opts *transitionOptions) {
		if h != nil {
			opts.afterHooks = append(opts.afterHooks, h)
		}
	}
}

type accountStateMachine struct {
	*core
	gate             *Gate
	now              func() time.Time
	hookErrorHandler HookErrorHandler
}

type transitionOptions struct {
	metadata    TransitionMetadata
	beforeHooks []TransitionHook
	afterHooks  []TransitionHook
}

func newAccountStateMachine(c *core, gate *Gate, opts ...StateMachineOption) *accountStateMachine {
	sm := &accountStateMachine{
		core: c,
		gate: gate,
		now:  c.now,
		hookErrorHandler: func(_ context.Context, _ TransitionHookPhase, err error, _ TransitionContext) error {
			return err
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(sm)
		}
	}
	return sm
}

// Transition applies trigger to userID. Acting on another user's account
// requires the admin role. Delete removes the record, its memberships and
// its role grants; the returned user then carries the deleted state.
func (sm *accountStateMachine) Transition(ctx context.Context, actor Identity, userID uuid.UUID, trigger Trigger, opts ...TransitionOption) (*User, error) {
	if err := sm.gate.RequireSelfOrAdmin(ctx, actor, userID); err != nil {
		return nil, err
	}

	options := &transitionOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(options)
		}
	}

	var (
		result *User
		tc     TransitionContext
	)

	err := sm.backend.RunInTx(ctx, func(ctx context.Context, tx Stores) error {
		user, err := tx.Users().GetByID(ctx, userID)
		if err != nil {
			return err
		}

		from := sm.CurrentState(user)
		to, err := NextState(from, trigger)
		if err != nil {
			return err
		}

		tc = TransitionContext{
			Actor:   actorFromIdentity(actor),
			User:    user.Clone(),
			Trigger: trigger,
			From:    from,
			To:      to,
			Meta:    options.metadata,
			Stores:  tx,
		}

		if err := sm.runHooks(ctx, options.beforeHooks, tc, HookPhaseBefore); err != nil {
			return err
		}

		if to == UserStateDeleted {
			if err := tx.Groups().PurgeUser(ctx, userID); err != nil {
				return err
			}
			if err := tx.Users().Delete(ctx, userID); err != nil {
				return err
			}
			user.State = UserStateDeleted
			user.UpdatedAt = sm.now()
			result = user
			return nil
		}

		result, err = tx.Users().UpdateState(ctx, userID, to)
		return err
	})
	if err != nil {
		if !IsKind(err, ErrInvalidTransition) && !IsKind(err, ErrNotFound) {
			sm.logger.Error("transition failed", "user_id", userID.String(), "trigger", trigger, "error", err)
		}
		return nil, err
	}

	tc.User = result.Clone()
	tc.Stores = sm.backend
	sm.logger.Info("user state changed", "user_id", userID.String(), "from", tc.From, "to", tc.To)

	sm.events.record(ctx, ActivityEvent{
		EventType: ActivityEventUserStatusChanged,
		Actor:     tc.Actor,
		UserID:    userID.String(),
		FromState: tc.From,
		ToState:   tc.To,
		Metadata:  transitionMetadata(tc.Trigger, tc.Meta),
	})

	if err := sm.runHooks(ctx, options.afterHooks, tc, HookPhaseAfter); err != nil {
		return result, err
	}
	return result, nil
}

func (sm *accountStateMachine) CurrentState(user *User) UserState {
	if user == nil {
		return ""
	}
	user.EnsureState()
	return user.State
}

func (sm *accountStateMachine) runHooks(ctx context.Context, hooks []TransitionHook, data TransitionContext, phase TransitionHookPhase) error {
	for _, hook := range hooks {
		if err := hook(ctx, data); err != nil {
			return sm.hookErrorHandler(ctx, phase, err, data)
		}
	}
	return nil
}

func transitionMetadata(trigger Trigger, meta TransitionMetadata) map[string]any {
	result := map[string]any{"trigger": string(trigger)}
	if meta.Reason != "" {
		result["reason"] = meta.Reason
	}
	for k, v := range meta.Metadata {
		result[k] = v
	}
	return result
}
