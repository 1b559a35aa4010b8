package accounts

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Accounts is the persistence contract for account records. Every *Tx
// variant runs against the given transaction or connection.
type Accounts interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Account, error)
	GetByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*Account, error)
	GetByEmail(ctx context.Context, email string) (*Account, error)
	GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*Account, error)
	EmailExistsTx(ctx context.Context, tx bun.IDB, email string, exclude uuid.UUID) (bool, error)
	NicknameExistsTx(ctx context.Context, tx bun.IDB, nickname string, exclude uuid.UUID) (bool, error)

	Create(ctx context.Context, record *Account) (*Account, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *Account) (*Account, error)
	Update(ctx context.Context, record *Account, columns ...string) (*Account, error)
	UpdateTx(ctx context.Context, tx bun.IDB, record *Account, columns ...string) (*Account, error)
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
	DeleteTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (bool, error)

	Count(ctx context.Context) (int, error)
	CountTx(ctx context.Context, tx bun.IDB) (int, error)
	List(ctx context.Context, offset, limit int) ([]*Account, error)

	IncrementFailedLoginsTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (int, error)
	TrackSuccessfulLogin(ctx context.Context, id uuid.UUID, at time.Time) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status AccountStatus, opts ...StatusUpdateOption) (*Account, error)
	UpdateStatusTx(ctx context.Context, tx bun.IDB, id uuid.UUID, status AccountStatus, opts ...StatusUpdateOption) (*Account, error)

	// WithTx returns a view of the repository bound to tx
	WithTx(tx bun.IDB) Accounts
}

// StatusUpdateOption mutates the record persisted with a status change and
// returns the column it touched.
type StatusUpdateOption func(*Account) string

// WithLockedAt sets or clears the lock timestamp
func WithLockedAt(at *time.Time) StatusUpdateOption {
	return func(a *Account) string {
		a.LockedAt = at
		return "locked_at"
	}
}

// WithFailedLoginAttempts overrides the failure counter
func WithFailedLoginAttempts(n int) StatusUpdateOption {
	return func(a *Account) string {
		a.FailedLoginAttempts = n
		return "failed_login_attempts"
	}
}

// WithEmailVerified records the verification flag
func WithEmailVerified(verified bool) StatusUpdateOption {
	return func(a *Account) string {
		a.EmailVerified = verified
		return "email_verified"
	}
}

// WithRole changes the role alongside the status
func WithRole(role UserRole) StatusUpdateOption {
	return func(a *Account) string {
		a.Role = role
		return "role"
	}
}

type accounts struct {
	base repository.Repository[*Account]
	db   bun.IDB
	now  func() time.Time
}

var _ Accounts = (*accounts)(nil)

// NewAccountsRepository returns the bun backed Accounts repository
func NewAccountsRepository(db *bun.DB) Accounts {
	base := repository.NewRepository[*Account](db, repository.ModelHandlers[*Account]{
		NewRecord: func() *Account { return &Account{} },
		GetID: func(a *Account) uuid.UUID {
			if a == nil {
				return uuid.Nil
			}
			return a.ID
		},
		SetID: func(a *Account, id uuid.UUID) {
			if a != nil {
				a.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	return &accounts{
		base: base,
		db:   db,
		now:  time.Now,
	}
}

func (r *accounts) WithTx(tx bun.IDB) Accounts {
	return &accounts{
		base: r.base,
		db:   tx,
		now:  r.now,
	}
}

func (r *accounts) GetByID(ctx context.Context, id uuid.UUID) (*Account, error) {
	record, err := r.base.GetByID(ctx, id.String())
	if err != nil {
		return nil, mapRecordError(err)
	}
	return record, nil
}

func (r *accounts) GetByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*Account, error) {
	record := &Account{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, mapRecordError(err)
	}
	return record, nil
}

func (r *accounts) GetByEmail(ctx context.Context, email string) (*Account, error) {
	return r.GetByEmailTx(ctx, r.db, email)
}

func (r *accounts) GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*Account, error) {
	record := &Account{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.email = ?", NormalizeEmail(email)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, mapRecordError(err)
	}
	return record, nil
}

func (r *accounts) EmailExistsTx(ctx context.Context, tx bun.IDB, email string, exclude uuid.UUID) (bool, error) {
	return tx.NewSelect().
		Model((*Account)(nil)).
		Where("?TableAlias.email = ?", NormalizeEmail(email)).
		Where("?TableAlias.id != ?", exclude).
		Exists(ctx)
}

func (r *accounts) NicknameExistsTx(ctx context.Context, tx bun.IDB, nickname string, exclude uuid.UUID) (bool, error) {
	return tx.NewSelect().
		Model((*Account)(nil)).
		Where("?TableAlias.nickname = ?", nickname).
		Where("?TableAlias.id != ?", exclude).
		Exists(ctx)
}

func (r *accounts) Create(ctx context.Context, record *Account) (*Account, error) {
	return r.CreateTx(ctx, r.db, record)
}

func (r *accounts) CreateTx(ctx context.Context, tx bun.IDB, record *Account) (*Account, error) {
	r.prepareDefaults(record)
	created, err := r.base.CreateTx(ctx, tx, record)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, uniqueViolationError(err)
		}
		return nil, err
	}
	return created, nil
}

func (r *accounts) Update(ctx context.Context, record *Account, columns ...string) (*Account, error) {
	return r.UpdateTx(ctx, r.db, record, columns...)
}

func (r *accounts) UpdateTx(ctx context.Context, tx bun.IDB, record *Account, columns ...string) (*Account, error) {
	now := r.now()
	record.UpdatedAt = &now

	q := tx.NewUpdate().Model(record).WherePK()
	if len(columns) > 0 {
		q = q.Column(append(columns, "updated_at")...)
	} else {
		q = q.ExcludeColumn("id", "created_at")
	}

	res, err := q.Exec(ctx)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, uniqueViolationError(err)
		}
		return nil, err
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, ErrAccountNotFound
	}

	return r.GetByIDTx(ctx, tx, record.ID)
}

func (r *accounts) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	return r.DeleteTx(ctx, r.db, id)
}

func (r *accounts) DeleteTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (bool, error) {
	res, err := tx.NewDelete().
		Model((*Account)(nil)).
		Where("?TableAlias.id = ?", id).
		Exec(ctx)
	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *accounts) Count(ctx context.Context) (int, error) {
	return r.CountTx(ctx, r.db)
}

func (r *accounts) CountTx(ctx context.Context, tx bun.IDB) (int, error) {
	return tx.NewSelect().Model((*Account)(nil)).Count(ctx)
}

func (r *accounts) List(ctx context.Context, offset, limit int) ([]*Account, error) {
	records := []*Account{}
	err := r.db.NewSelect().
		Model(&records).
		Order("created_at ASC", "id ASC").
		Offset(offset).
		Limit(limit).
		Scan(ctx)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	return records, nil
}

// IncrementFailedLoginsTx bumps the failure counter of an active account
// in a single statement and returns the stored value, so concurrent
// attempts never lose updates. An account locked by a concurrent attempt
// matches no row and yields ErrAccountNotFound.
func (r *accounts) IncrementFailedLoginsTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (int, error) {
	var attempts int
	err := tx.NewUpdate().
		Model((*Account)(nil)).
		Set("failed_login_attempts = failed_login_attempts + 1").
		Set("updated_at = ?", r.now()).
		Where("id = ?", id).
		Where("status = ?", StatusActive).
		Returning("failed_login_attempts").
		Scan(ctx, &attempts)
	if err != nil {
		return 0, mapRecordError(err)
	}
	return attempts, nil
}

func (r *accounts) TrackSuccessfulLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.db.NewUpdate().
		Model((*Account)(nil)).
		Set("failed_login_attempts = 0").
		Set("last_login_at = ?", at).
		Set("updated_at = ?", at).
		Where("id = ?", id).
		Exec(ctx)
	return err
}

func (r *accounts) UpdateStatus(ctx context.Context, id uuid.UUID, status AccountStatus, opts ...StatusUpdateOption) (*Account, error) {
	return r.UpdateStatusTx(ctx, r.db, id, status, opts...)
}

func (r *accounts) UpdateStatusTx(ctx context.Context, tx bun.IDB, id uuid.UUID, status AccountStatus, opts ...StatusUpdateOption) (*Account, error) {
	record := &Account{
		ID:     id,
		Status: status,
	}

	columns := []string{"status"}
	for _, opt := range opts {
		if opt != nil {
			columns = append(columns, opt(record))
		}
	}

	return r.UpdateTx(ctx, tx, record, columns...)
}

func (r *accounts) prepareDefaults(record *Account) {
	if record == nil {
		return
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	if record.Role == "" {
		record.Role = RoleAnonymous
	}

	record.Email = NormalizeEmail(record.Email)
	record.EnsureStatus()

	now := r.now()
	if record.CreatedAt == nil {
		record.CreatedAt = &now
	}
	if record.UpdatedAt == nil {
		record.UpdatedAt = &now
	}
}

// NormalizeEmail lower cases and trims an email so lookups are stable
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func mapRecordError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) || repository.IsRecordNotFound(err) {
		return ErrAccountNotFound
	}
	return err
}

// uniqueViolationError names the column behind a unique violation. sqlite
// reports "accounts.nickname", postgres the "accounts_nickname_key" index.
func uniqueViolationError(err error) error {
	if strings.Contains(strings.ToLower(err.Error()), "nickname") {
		return nicknameTakenError()
	}
	return ErrDuplicateEmail
}

// isUniqueViolation inspects the whole chain since repository errors wrap
// the driver error
func isUniqueViolation(err error) bool {
	for ; err != nil; err = errors.Unwrap(err) {
		msg := strings.ToLower(err.Error())
		if strings.Contains(msg, "unique constraint") ||
			strings.Contains(msg, "duplicate key") ||
			strings.Contains(msg, "sqlstate 23505") {
			return true
		}
	}
	return false
}
