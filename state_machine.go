package accounts

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ActorRef identifies who/what triggered a transition.
type ActorRef struct {
	ID   string
	Type string
}

// ActorRefFrom converts an authenticated actor into a transition actor
func ActorRefFrom(actor Actor) ActorRef {
	if actor.IsAnonymous() {
		return ActorRef{Type: "system"}
	}
	return ActorRef{ID: actor.ID, Type: string(actor.Role)}
}

// TransitionMetadata captures extra context for a transition.
type TransitionMetadata struct {
	Reason   string
	Metadata map[string]any
}

// TransitionContext is passed into hooks for additional processing.
type TransitionContext struct {
	Actor   ActorRef
	Account *Account
	From    AccountStatus
	To      AccountStatus
	Meta    TransitionMetadata
}

// TransitionHook is executed before or after a transition.
type TransitionHook func(ctx context.Context, tc TransitionContext) error

// TransitionOption customizes a single transition.
type TransitionOption func(*transitionOptions)

// StatusStore persists status changes for the state machine
type StatusStore interface {
	UpdateStatus(ctx context.Context, id uuid.UUID, status AccountStatus, opts ...StatusUpdateOption) (*Account, error)
}

// AccountStateMachine defines lifecycle operations for accounts.
type AccountStateMachine interface {
	Transition(ctx context.Context, actor ActorRef, account *Account, target AccountStatus, opts ...TransitionOption) (*Account, error)
	CanTransition(from, to AccountStatus) bool
	CurrentStatus(account *Account) AccountStatus
}

// StateMachineOption customizes state machine construction.
type StateMachineOption func(*accountStateMachine)

// WithStateMachineClock injects a custom clock (useful for tests).
func WithStateMachineClock(clock func() time.Time) StateMachineOption {
	return func(sm *accountStateMachine) {
		if clock != nil {
			sm.now = clock
		}
	}
}

// WithStateMachineActivitySink sets the ActivitySink used to publish lifecycle events.
func WithStateMachineActivitySink(sink ActivitySink) StateMachineOption {
	return func(sm *accountStateMachine) {
		sm.activitySink = normalizeActivitySink(sink)
	}
}

// WithStateMachineLogger overrides the logger used for sink failures.
func WithStateMachineLogger(logger Logger) StateMachineOption {
	return func(sm *accountStateMachine) {
		if logger != nil {
			sm.logger = logger
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

// WithBeforeTransitionHook adds a hook executed before the status update.
func WithBeforeTransitionHook(h TransitionHook) TransitionOption {
	return func(opts *transitionOptions) {
		if h != nil {
			opts.beforeHooks = append(opts.beforeHooks, h)
		}
	}
}

// WithAfterTransitionHook adds a hook executed after the status update succeeds.
func WithAfterTransitionHook(h TransitionHook) TransitionOption {
	return func(opts *transitionOptions) {
		if h != nil {
			opts.afterHooks = append(opts.afterHooks, h)
		}
	}
}

// WithTransitionStore persists the transition through store instead of the
// machine default, e.g. a repository bound to an open transaction.
func WithTransitionStore(store StatusStore) TransitionOption {
	return func(opts *transitionOptions) {
		opts.store = store
	}
}

// WithStatusUpdates adds extra column changes persisted with the status.
func WithStatusUpdates(updates ...StatusUpdateOption) TransitionOption {
	return func(opts *transitionOptions) {
		opts.statusUpdates = append(opts.statusUpdates, updates...)
	}
}

// NewAccountStateMachine returns the default implementation backed by store.
func NewAccountStateMachine(store StatusStore, opts ...StateMachineOption) AccountStateMachine {
	sm := &accountStateMachine{
		store: store,
		transitions: map[AccountStatus]map[AccountStatus]struct{}{
			StatusUnverified: {
				StatusActive:  {},
				StatusDeleted: {},
			},
			StatusActive: {
				StatusLocked:     {},
				StatusUnverified: {},
				StatusDeleted:    {},
			},
			StatusLocked: {
				StatusActive:  {},
				StatusDeleted: {},
			},
		},
		now:          time.Now,
		activitySink: noopActivitySink{},
		logger:       defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(sm)
		}
	}

	return sm
}

type accountStateMachine struct {
	store        StatusStore
	transitions  map[AccountStatus]map[AccountStatus]struct{}
	now          func() time.Time
	activitySink ActivitySink
	logger       Logger
}

type transitionOptions struct {
	metadata      TransitionMetadata
	beforeHooks   []TransitionHook
	afterHooks    []TransitionHook
	store         StatusStore
	statusUpdates []StatusUpdateOption
}

func (sm *accountStateMachine) Transition(ctx context.Context, actor ActorRef, account *Account, target AccountStatus, opts ...TransitionOption) (*Account, error) {
	if account == nil {
		return nil, ErrInvalidTransition
	}

	if !target.IsValid() {
		return nil, ErrInvalidTransition
	}

	account.EnsureStatus()
	from := account.Status

	if from == target {
		return account, nil
	}

	if from == StatusDeleted {
		return nil, ErrTerminalState
	}

	if !sm.CanTransition(from, target) {
		return nil, ErrInvalidTransition
	}

	options := &transitionOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(options)
		}
	}

	tc := TransitionContext{
		Actor:   actor,
		Account: account,
		From:    from,
		To:      target,
		Meta:    options.metadata,
	}

	if err := runHooks(ctx, options.beforeHooks, tc); err != nil {
		return nil, err
	}

	store := sm.store
	if options.store != nil {
		store = options.store
	}

	updates := append(sm.statusSideEffects(from, target), options.statusUpdates...)

	if target != StatusDeleted {
		if store == nil {
			return nil, NewInternalError(fmt.Errorf("no status store"), "account state machine misconfigured")
		}
		updated, err := store.UpdateStatus(ctx, account.ID, target, updates...)
		if err != nil {
			return nil, err
		}
		applyUpdates(account, updated, target, updates)
	} else {
		applyUpdates(account, nil, target, updates)
	}

	if err := runHooks(ctx, options.afterHooks, tc); err != nil {
		return nil, err
	}

	sm.recordActivity(ctx, ActivityEvent{
		EventType:  ActivityEventStatusChanged,
		Actor:      actor,
		AccountID:  account.ID.String(),
		FromStatus: from,
		ToStatus:   target,
		Metadata:   transitionMetadata(options.metadata),
	})

	return account, nil
}

func (sm *accountStateMachine) CanTransition(from, to AccountStatus) bool {
	if allowed, ok := sm.transitions[from]; ok {
		_, exists := allowed[to]
		return exists
	}
	return false
}

func (sm *accountStateMachine) CurrentStatus(account *Account) AccountStatus {
	if account == nil {
		return ""
	}
	account.EnsureStatus()
	return account.Status
}

// statusSideEffects keeps the columns that belong to a state in step with it
func (sm *accountStateMachine) statusSideEffects(from, to AccountStatus) []StatusUpdateOption {
	var updates []StatusUpdateOption
	switch {
	case to == StatusLocked:
		now := sm.now()
		updates = append(updates, WithLockedAt(&now))
	case from == StatusLocked && to == StatusActive:
		updates = append(updates, WithLockedAt(nil), WithFailedLoginAttempts(0))
	case from == StatusUnverified && to == StatusActive:
		updates = append(updates, WithEmailVerified(true))
	case from == StatusActive && to == StatusUnverified:
		updates = append(updates, WithEmailVerified(false))
	}
	return updates
}

func (sm *accountStateMachine) recordActivity(ctx context.Context, event ActivityEvent) {
	if event.Actor == (ActorRef{}) {
		event.Actor = ActorRef{Type: "system"}
	}

	if event.OccurredAt.IsZero() {
		event.OccurredAt = sm.now()
	}

	if err := normalizeActivitySink(sm.activitySink).Record(ctx, event); err != nil {
		sm.logger.Warn("state machine activity sink error", "error", err)
	}
}

func runHooks(ctx context.Context, hooks []TransitionHook, tc TransitionContext) error {
	for _, hook := range hooks {
		if hook == nil {
			continue
		}
		if err := hook(ctx, tc); err != nil {
			return err
		}
	}
	return nil
}

func applyUpdates(account, updated *Account, target AccountStatus, updates []StatusUpdateOption) {
	account.Status = target
	if updated != nil && updated.Status != "" {
		account.Status = updated.Status
	}
	for _, u := range updates {
		if u != nil {
			u(account)
		}
	}
}

func transitionMetadata(meta TransitionMetadata) map[string]any {
	if meta.Reason == "" && len(meta.Metadata) == 0 {
		return nil
	}

	result := map[string]any{}
	if meta.Reason != "" {
		result["reason"] = meta.Reason
	}
	for k, v := range meta.Metadata {
		result[k] = v
	}
	return result
}
