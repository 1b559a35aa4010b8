package accounts

import (
	"context"
	"database/sql"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100

	operationTimeout     = 10 * time.Second
	nicknameAttempts     = 5
	serializableAttempts = 3
	tokenTypeBearer      = "bearer"
	systemActorType      = "system"
	reasonCooldown       = "lock cool-down elapsed"
	reasonEmailChanged   = "email changed"
	reasonFailedAttempts = "too many failed login attempts"
)

// AccessToken is the result of a successful login
type AccessToken struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"-"`
}

// AccountPage is a window over the account list
type AccountPage struct {
	Items []*Account
	Total int
	Skip  int
	Limit int
}

// Page returns the one based page number of the window
func (p AccountPage) Page() int {
	if p.Limit <= 0 {
		return 1
	}
	return p.Skip/p.Limit + 1
}

// AccountService runs every account operation: registration, login,
// verification and the role gated CRUD.
type AccountService struct {
	config    Config
	repo      RepositoryManager
	tokens    TokenService
	machine   AccountStateMachine
	notifier  Notifier
	activity  ActivitySink
	logger    Logger
	now       func() time.Time
	nicknames func() string
	dummyHash string
}

// AccountServiceOption customizes the service
type AccountServiceOption func(*AccountService)

// WithServiceClock injects a custom clock (useful for tests).
func WithServiceClock(clock func() time.Time) AccountServiceOption {
	return func(s *AccountService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithServiceLogger overrides the logger
func WithServiceLogger(logger Logger) AccountServiceOption {
	return func(s *AccountService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithNotifier sets the collaborator that delivers verification emails
func WithNotifier(n Notifier) AccountServiceOption {
	return func(s *AccountService) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithActivitySink sets the sink for audit events
func WithActivitySink(sink ActivitySink) AccountServiceOption {
	return func(s *AccountService) {
		s.activity = normalizeActivitySink(sink)
	}
}

// WithTokenService replaces the token service built from Config
func WithTokenService(ts TokenService) AccountServiceOption {
	return func(s *AccountService) {
		if ts != nil {
			s.tokens = ts
		}
	}
}

// WithStateMachine replaces the lifecycle state machine
func WithStateMachine(sm AccountStateMachine) AccountServiceOption {
	return func(s *AccountService) {
		if sm != nil {
			s.machine = sm
		}
	}
}

// WithNicknameGenerator replaces GenerateNickname
func WithNicknameGenerator(gen func() string) AccountServiceOption {
	return func(s *AccountService) {
		if gen != nil {
			s.nicknames = gen
		}
	}
}

// NewAccountService builds the service. Token service and state machine
// default to implementations built from cfg and repo.
func NewAccountService(cfg Config, repo RepositoryManager, opts ...AccountServiceOption) *AccountService {
	s := &AccountService{
		config:    cfg.WithDefaults(),
		repo:      repo,
		notifier:  noopNotifier{},
		activity:  noopActivitySink{},
		logger:    defLogger{},
		now:       time.Now,
		nicknames: GenerateNickname,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	s.dummyHash = RandomPasswordHash(s.config.PasswordHashCost)

	if s.tokens == nil {
		s.tokens = NewTokenService(
			[]byte(s.config.GetSigningKey()),
			s.config.GetIssuer(),
			WithTokenClock(s.now),
			WithTokenLogger(s.logger),
		)
	}

	if s.machine == nil {
		s.machine = NewAccountStateMachine(
			repo.Accounts(),
			WithStateMachineClock(s.now),
			WithStateMachineActivitySink(s.activity),
			WithStateMachineLogger(s.logger),
		)
	}

	return s
}

// Tokens exposes the token service, used by the bearer middleware
func (s *AccountService) Tokens() TokenService {
	return s.tokens
}

// Register creates an unverified account and sends its verification token.
// With BootstrapAdmin set the first account becomes an active ADMIN.
func (s *AccountService) Register(ctx context.Context, payload RegisterPayload) (*Account, error) {
	return run(ctx, "registration", func(ctx context.Context) (*Account, error) {
		if err := payload.Validate(); err != nil {
			return nil, err
		}
		return s.createAccount(ctx, ActorRef{Type: systemActorType}, payload, RoleAnonymous, s.config.BootstrapAdmin)
	})
}

// Create is the administrative variant of Register
func (s *AccountService) Create(ctx context.Context, actor Actor, payload CreateAccountPayload) (*Account, error) {
	if err := Guard(actor, ManageAccounts, ""); err != nil {
		return nil, err
	}

	return run(ctx, "account creation", func(ctx context.Context) (*Account, error) {
		if err := payload.Validate(); err != nil {
			return nil, err
		}

		role := RoleAnonymous
		if payload.Role != "" {
			parsed, err := ParseRole(payload.Role)
			if err != nil {
				return nil, err
			}
			role = parsed
		}

		if role.IsPrivileged() {
			if err := Guard(actor, AssignPrivilegedRoles, ""); err != nil {
				return nil, err
			}
		}

		return s.createAccount(ctx, ActorRefFrom(actor), payload.RegisterPayload, role, false)
	})
}

func (s *AccountService) createAccount(ctx context.Context, actor ActorRef, payload RegisterPayload, role UserRole, bootstrap bool) (*Account, error) {
	hash, err := HashPasswordWithCost(payload.Password, s.config.PasswordHashCost)
	if err != nil {
		return nil, err
	}

	// the first account check must not race a concurrent registration
	var txOpts *sql.TxOptions
	if bootstrap {
		txOpts = s.repo.SerializableTxOptions()
	}

	var account *Account
	for attempt := 1; ; attempt++ {
		err = s.repo.RunInTx(ctx, txOpts, func(ctx context.Context, tx bun.Tx) error {
			var err error
			account, err = s.insertAccount(ctx, tx, payload, hash, role, bootstrap)
			return err
		})
		if err == nil || !IsSerializationFailure(err) || attempt == serializableAttempts {
			break
		}
	}
	if err != nil {
		return nil, err
	}

	s.record(ctx, ActivityEvent{
		EventType: ActivityEventRegistered,
		Actor:     actor,
		AccountID: account.ID.String(),
		ToStatus:  account.Status,
		Metadata:  map[string]any{"role": account.Role},
	})

	if account.IsUnverified() {
		s.sendVerification(ctx, account)
	}

	return account, nil
}

// insertAccount runs the duplicate checks and stores the record. With
// bootstrap set the first account becomes an active ADMIN.
func (s *AccountService) insertAccount(ctx context.Context, tx bun.Tx, payload RegisterPayload, hash string, role UserRole, bootstrap bool) (*Account, error) {
	accounts := s.repo.Accounts()

	exists, err := accounts.EmailExistsTx(ctx, tx, payload.Email, uuid.Nil)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrDuplicateEmail
	}

	record, err := NewAccount(NormalizeEmail(payload.Email), hash, role)
	if err != nil {
		return nil, err
	}
	payload.ProfileFields.apply(record)

	if s.config.DeterministicIDs {
		if id, err := hashid.NewUUID(record.Email); err == nil {
			record.ID = id
		}
	}

	if record.Nickname, err = s.resolveNickname(ctx, tx, payload.Nickname, record.ID); err != nil {
		return nil, err
	}

	if bootstrap {
		total, err := accounts.CountTx(ctx, tx)
		if err != nil {
			return nil, err
		}
		if total == 0 {
			record.Role = RoleAdmin
			record.Status = StatusActive
			record.EmailVerified = true
		}
	}

	return accounts.CreateTx(ctx, tx, record)
}

func (s *AccountService) resolveNickname(ctx context.Context, tx bun.IDB, requested string, id uuid.UUID) (string, error) {
	accounts := s.repo.Accounts()

	if requested != "" {
		taken, err := accounts.NicknameExistsTx(ctx, tx, requested, id)
		if err != nil {
			return "", err
		}
		if taken {
			return "", nicknameTakenError()
		}
		return requested, nil
	}

	for range nicknameAttempts {
		candidate := s.nicknames()
		taken, err := accounts.NicknameExistsTx(ctx, tx, candidate, id)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
	}

	return "", NewInternalError(goerrors.New("nickname space exhausted", goerrors.CategoryInternal), "failed to generate nickname")
}

func nicknameTakenError() error {
	return NewValidationError("Nickname already exists", FieldErrors{
		{Field: "nickname", Message: "is already taken"},
	})
}

// sendVerification issues a verification token and hands it to the
// notifier. Failures are logged and never surface to the caller.
func (s *AccountService) sendVerification(ctx context.Context, account *Account) {
	token, err := s.tokens.IssueVerification(account.ID, account.Email, s.config.GetVerificationTokenTTL())
	if err == nil {
		err = s.notifier.SendVerification(ctx, account.ID, account.Email, token)
	}

	if err != nil {
		s.logger.Error("failed to send verification", "account_id", account.ID, "error", err)
		s.record(ctx, ActivityEvent{
			EventType: ActivityEventNotifyFailure,
			AccountID: account.ID.String(),
			Metadata:  map[string]any{"error": err.Error()},
		})
	}
}

// Login checks credentials and applies the lockout policy. Unknown and
// deleted accounts fail exactly like a wrong password.
func (s *AccountService) Login(ctx context.Context, payload LoginPayload) (*AccessToken, error) {
	return run(ctx, "login", func(ctx context.Context) (*AccessToken, error) {
		if err := payload.Validate(); err != nil {
			return nil, err
		}

		now := s.now()
		system := ActorRef{Type: systemActorType}

		var (
			account *Account
			outcome error
		)

		err := s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			accounts := s.repo.Accounts().WithTx(tx)

			var err error
			account, err = accounts.GetByEmailTx(ctx, tx, payload.Username)
			if err != nil {
				if HasTextCode(err, TextCodeAccountNotFound) {
					burnCredentialCheck(s.dummyHash, payload.Password)
					outcome = ErrInvalidCredentials
					return nil
				}
				return err
			}

			switch {
			case account.IsDeleted():
				burnCredentialCheck(s.dummyHash, payload.Password)
				outcome = ErrInvalidCredentials
				return nil
			case account.IsUnverified():
				outcome = ErrAccountNotVerified
				return nil
			case account.IsLocked():
				if !account.LockCooldownElapsed(now, s.config.GetLockCooldown()) {
					outcome = ErrAccountLocked
					return nil
				}
				if _, err := s.machine.Transition(ctx, system, account, StatusActive,
					WithTransitionStore(accounts),
					WithTransitionReason(reasonCooldown),
				); err != nil {
					return err
				}
			}

			if !VerifyCredential(payload.Password, account.PasswordHash) {
				attempts, err := accounts.IncrementFailedLoginsTx(ctx, tx, account.ID)
				if err != nil {
					if HasTextCode(err, TextCodeAccountNotFound) {
						outcome = ErrAccountLocked
						return nil
					}
					return err
				}
				account.FailedLoginAttempts = attempts

				if attempts >= s.config.GetMaxLoginAttempts() {
					if _, err := s.machine.Transition(ctx, system, account, StatusLocked,
						WithTransitionStore(accounts),
						WithTransitionReason(reasonFailedAttempts),
						WithTransitionMetadata(map[string]any{"attempts": attempts}),
					); err != nil {
						return err
					}
				}

				outcome = ErrInvalidCredentials
				return nil
			}

			if err := accounts.TrackSuccessfulLogin(ctx, account.ID, now); err != nil {
				return err
			}
			account.FailedLoginAttempts = 0
			account.LastLoginAt = &now
			return nil
		})
		if err != nil {
			return nil, err
		}

		if outcome != nil {
			event := ActivityEvent{
				EventType: ActivityEventLoginFailure,
				Metadata:  map[string]any{"reason": outcomeCode(outcome)},
			}
			if account != nil {
				event.AccountID = account.ID.String()
				event.ToStatus = account.Status
			}
			s.record(ctx, event)
			return nil, outcome
		}

		ttl := s.config.GetAccessTokenTTL()
		token, err := s.tokens.Issue(account.Email, account.ID.String(), account.Role, ttl)
		if err != nil {
			return nil, err
		}

		s.record(ctx, ActivityEvent{
			EventType: ActivityEventLoginSuccess,
			Actor:     ActorRef{ID: account.ID.String(), Type: string(account.Role)},
			AccountID: account.ID.String(),
		})

		return &AccessToken{
			AccessToken: token,
			TokenType:   tokenTypeBearer,
			ExpiresAt:   now.Add(ttl),
		}, nil
	})
}

// VerifyEmail activates the account the token was issued for. Verifying
// an account that is already past unverified succeeds without changes.
func (s *AccountService) VerifyEmail(ctx context.Context, id uuid.UUID, token string) (*Account, error) {
	claims, err := s.tokens.ValidateVerification(token, id)
	if err != nil {
		if HasTextCode(err, TextCodeTargetMismatch) {
			return nil, err
		}
		return nil, ErrInvalidOrExpiredToken
	}

	return run(ctx, "email verification", func(ctx context.Context) (*Account, error) {
		var account *Account
		err := s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			accounts := s.repo.Accounts().WithTx(tx)

			var err error
			account, err = accounts.GetByIDTx(ctx, tx, id)
			if err != nil {
				if HasTextCode(err, TextCodeAccountNotFound) {
					return ErrInvalidOrExpiredToken
				}
				return err
			}

			if !account.IsUnverified() {
				return nil
			}

			if NormalizeEmail(claims.Subject()) != account.Email {
				return ErrInvalidOrExpiredToken
			}

			var updates []StatusUpdateOption
			if account.Role == RoleAnonymous {
				updates = append(updates, WithRole(RoleAuthenticated))
			}

			_, err = s.machine.Transition(ctx, ActorRef{ID: account.ID.String(), Type: string(account.Role)}, account, StatusActive,
				WithTransitionStore(accounts),
				WithStatusUpdates(updates...),
				WithTransitionReason("email verified"),
			)
			return err
		})
		if err != nil {
			return nil, err
		}

		s.record(ctx, ActivityEvent{
			EventType: ActivityEventVerified,
			AccountID: account.ID.String(),
			ToStatus:  account.Status,
		})

		return account, nil
	})
}

// Get returns a single account
func (s *AccountService) Get(ctx context.Context, actor Actor, id uuid.UUID) (*Account, error) {
	if err := Guard(actor, AccessAccount, id.String()); err != nil {
		return nil, err
	}
	return s.repo.Accounts().GetByID(ctx, id)
}

// List returns a skip/limit window over all accounts. Out of range values
// are clamped.
func (s *AccountService) List(ctx context.Context, actor Actor, skip, limit int) (*AccountPage, error) {
	if err := Guard(actor, ManageAccounts, ""); err != nil {
		return nil, err
	}

	if skip < 0 {
		skip = 0
	}
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	accounts := s.repo.Accounts()

	total, err := accounts.Count(ctx)
	if err != nil {
		return nil, NewInternalError(err, "failed to count accounts")
	}

	items, err := accounts.List(ctx, skip, limit)
	if err != nil {
		return nil, NewInternalError(err, "failed to list accounts")
	}

	return &AccountPage{
		Items: items,
		Total: total,
		Skip:  skip,
		Limit: limit,
	}, nil
}

// Update applies the set fields of payload to the account. Changing the
// email of an active account moves it back to unverified and sends a new
// verification token to the new address.
func (s *AccountService) Update(ctx context.Context, actor Actor, id uuid.UUID, payload UpdateAccountPayload) (*Account, error) {
	if err := Guard(actor, AccessAccount, id.String()); err != nil {
		return nil, err
	}

	if err := payload.Validate(); err != nil {
		return nil, err
	}

	return run(ctx, "account update", func(ctx context.Context) (*Account, error) {
		var (
			updated      *Account
			columns      []string
			emailChanged bool
		)

		err := s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			accounts := s.repo.Accounts().WithTx(tx)

			account, err := accounts.GetByIDTx(ctx, tx, id)
			if err != nil {
				return err
			}

			previousEmail := account.Email
			previousNickname := account.Nickname

			columns = payload.apply(account)
			if len(columns) == 0 {
				updated = account
				return nil
			}

			emailChanged = account.Email != previousEmail
			if emailChanged {
				if account.IsLocked() {
					return ErrAccountLocked
				}
				exists, err := accounts.EmailExistsTx(ctx, tx, account.Email, account.ID)
				if err != nil {
					return err
				}
				if exists {
					return ErrDuplicateEmail
				}
			}

			if account.Nickname != previousNickname {
				taken, err := accounts.NicknameExistsTx(ctx, tx, account.Nickname, account.ID)
				if err != nil {
					return err
				}
				if taken {
					return nicknameTakenError()
				}
			}

			updated, err = accounts.UpdateTx(ctx, tx, account, columns...)
			if err != nil {
				return err
			}

			if emailChanged && updated.IsActive() {
				updated, err = s.machine.Transition(ctx, ActorRefFrom(actor), updated, StatusUnverified,
					WithTransitionStore(accounts),
					WithTransitionReason(reasonEmailChanged),
				)
			}
			return err
		})
		if err != nil {
			return nil, err
		}

		if len(columns) > 0 {
			s.record(ctx, ActivityEvent{
				EventType: ActivityEventUpdated,
				Actor:     ActorRefFrom(actor),
				AccountID: updated.ID.String(),
				Metadata:  map[string]any{"columns": columns},
			})
		}

		if emailChanged && updated.IsUnverified() {
			s.sendVerification(ctx, updated)
		}

		return updated, nil
	})
}

// Delete removes the account. The state machine reports the move to
// deleted once the row is gone.
func (s *AccountService) Delete(ctx context.Context, actor Actor, id uuid.UUID) error {
	if err := Guard(actor, ManageAccounts, ""); err != nil {
		return err
	}

	_, err := run(ctx, "account deletion", func(ctx context.Context) (*Account, error) {
		var account *Account
		err := s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			accounts := s.repo.Accounts().WithTx(tx)

			var err error
			account, err = accounts.GetByIDTx(ctx, tx, id)
			if err != nil {
				return err
			}

			_, err = s.machine.Transition(ctx, ActorRefFrom(actor), account, StatusDeleted,
				WithTransitionStore(accounts),
				WithBeforeTransitionHook(func(ctx context.Context, tc TransitionContext) error {
					deleted, err := accounts.DeleteTx(ctx, tx, tc.Account.ID)
					if err != nil {
						return err
					}
					if !deleted {
						return ErrAccountNotFound
					}
					return nil
				}),
			)
			return err
		})
		return account, err
	})
	return err
}

// Unlock lifts a login lock. Active accounts are returned unchanged.
func (s *AccountService) Unlock(ctx context.Context, actor Actor, id uuid.UUID) (*Account, error) {
	if err := Guard(actor, UnlockAccounts, ""); err != nil {
		return nil, err
	}

	return run(ctx, "account unlock", func(ctx context.Context) (*Account, error) {
		var account *Account
		err := s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			accounts := s.repo.Accounts().WithTx(tx)

			var err error
			account, err = accounts.GetByIDTx(ctx, tx, id)
			if err != nil {
				return err
			}

			switch {
			case account.IsActive():
				return nil
			case !account.IsLocked():
				return ErrInvalidTransition
			}

			_, err = s.machine.Transition(ctx, ActorRefFrom(actor), account, StatusActive,
				WithTransitionStore(accounts),
				WithTransitionReason("administrative unlock"),
			)
			return err
		})
		return account, err
	})
}

// SetProfessional sets the professional flag and stamps the change
func (s *AccountService) SetProfessional(ctx context.Context, actor Actor, id uuid.UUID, professional bool) (*Account, error) {
	if err := Guard(actor, ManageAccounts, ""); err != nil {
		return nil, err
	}

	return run(ctx, "professional status update", func(ctx context.Context) (*Account, error) {
		var updated *Account
		err := s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			accounts := s.repo.Accounts()

			account, err := accounts.GetByIDTx(ctx, tx, id)
			if err != nil {
				return err
			}

			now := s.now()
			account.IsProfessional = professional
			account.ProfessionalStatusUpdatedAt = &now

			updated, err = accounts.UpdateTx(ctx, tx, account, "is_professional", "professional_status_updated_at")
			return err
		})
		if err != nil {
			return nil, err
		}

		s.record(ctx, ActivityEvent{
			EventType: ActivityEventProfessionalSet,
			Actor:     ActorRefFrom(actor),
			AccountID: updated.ID.String(),
			Metadata:  map[string]any{"is_professional": professional},
		})

		return updated, nil
	})
}

func (s *AccountService) record(ctx context.Context, event ActivityEvent) {
	if event.Actor == (ActorRef{}) {
		event.Actor = ActorRef{Type: systemActorType}
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = s.now()
	}
	if err := normalizeActivitySink(s.activity).Record(ctx, event); err != nil {
		s.logger.Warn("account service activity sink error", "error", err)
	}
}

// run executes f under the operation timeout. Rich errors pass through,
// anything else is wrapped as an internal failure.
func run[T any](ctx context.Context, operation string, f func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	select {
	case <-ctx.Done():
		return zero, goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during "+operation)
	default:
	}

	ctx, cancel := context.WithTimeout(ctx, operationTimeout)
	defer cancel()

	result, err := f(ctx)
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return zero, richErr
		}
		return zero, NewInternalError(err, operation+" failed")
	}

	return result, nil
}

func outcomeCode(err error) string {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.TextCode
	}
	return TextCodeInternal
}
