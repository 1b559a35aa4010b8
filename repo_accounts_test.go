package accounts_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/goliatone/go-accounts"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

func newAccountRecord(t *testing.T, email string) *accounts.Account {
	t.Helper()
	record, err := accounts.NewAccount(email, "$2a$04$hash", accounts.RoleAnonymous)
	require.NoError(t, err)
	record.Nickname = "nick_" + record.ID.String()[:8]
	return record
}

func TestAccountsRepositoryCreateAndLookup(t *testing.T) {
	ctx := context.Background()
	repo := accounts.NewRepositoryManager(newTestDB(t)).Accounts()

	created, err := repo.Create(ctx, newAccountRecord(t, " Alice@Example.com "))
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", created.Email)
	assert.Equal(t, accounts.StatusUnverified, created.Status)
	assert.NotNil(t, created.CreatedAt)

	byID, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.Email, byID.Email)

	byEmail, err := repo.GetByEmail(ctx, "ALICE@example.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byEmail.ID)

	_, err = repo.GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, accounts.ErrAccountNotFound)

	_, err = repo.GetByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, accounts.ErrAccountNotFound)
}

func TestAccountsRepositoryRejectsDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	repo := accounts.NewRepositoryManager(newTestDB(t)).Accounts()

	_, err := repo.Create(ctx, newAccountRecord(t, "dup@example.com"))
	require.NoError(t, err)

	_, err = repo.Create(ctx, newAccountRecord(t, "DUP@example.com"))
	assert.ErrorIs(t, err, accounts.ErrDuplicateEmail)
}

func TestAccountsRepositoryMapsNicknameViolation(t *testing.T) {
	ctx := context.Background()
	repo := accounts.NewRepositoryManager(newTestDB(t)).Accounts()

	first := newAccountRecord(t, "first@example.com")
	first.Nickname = "shared_nick"
	_, err := repo.Create(ctx, first)
	require.NoError(t, err)

	second := newAccountRecord(t, "second@example.com")
	second.Nickname = "shared_nick"
	_, err = repo.Create(ctx, second)
	require.Error(t, err)
	assert.NotErrorIs(t, err, accounts.ErrDuplicateEmail)
	assert.True(t, accounts.IsValidationError(err))
	fields := accounts.ValidationFields(err)
	require.Len(t, fields, 1)
	assert.Equal(t, "nickname", fields[0].Field)

	third := newAccountRecord(t, "third@example.com")
	created, err := repo.Create(ctx, third)
	require.NoError(t, err)
	created.Nickname = "shared_nick"
	_, err = repo.Update(ctx, created, "nickname")
	require.Error(t, err)
	assert.Equal(t, "nickname", accounts.ValidationFields(err)[0].Field)
}

func TestAccountsRepositoryExistsChecks(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := accounts.NewRepositoryManager(db).Accounts()

	created, err := repo.Create(ctx, newAccountRecord(t, "exists@example.com"))
	require.NoError(t, err)

	exists, err := repo.EmailExistsTx(ctx, db, "Exists@example.com", uuid.Nil)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.EmailExistsTx(ctx, db, "exists@example.com", created.ID)
	require.NoError(t, err)
	assert.False(t, exists)

	taken, err := repo.NicknameExistsTx(ctx, db, created.Nickname, uuid.Nil)
	require.NoError(t, err)
	assert.True(t, taken)
}

func TestAccountsRepositoryIncrementFailedLogins(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := accounts.NewRepositoryManager(db).Accounts()

	record := newAccountRecord(t, "counter@example.com")
	record.Status = accounts.StatusActive
	created, err := repo.Create(ctx, record)
	require.NoError(t, err)

	for want := 1; want <= 3; want++ {
		got, err := repo.IncrementFailedLoginsTx(ctx, db, created.ID)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	require.NoError(t, repo.TrackSuccessfulLogin(ctx, created.ID, time.Now().UTC()))

	reloaded, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Zero(t, reloaded.FailedLoginAttempts)
	assert.NotNil(t, reloaded.LastLoginAt)

	_, err = repo.IncrementFailedLoginsTx(ctx, db, uuid.New())
	assert.ErrorIs(t, err, accounts.ErrAccountNotFound)

	_, err = repo.UpdateStatus(ctx, created.ID, accounts.StatusLocked)
	require.NoError(t, err)
	_, err = repo.IncrementFailedLoginsTx(ctx, db, created.ID)
	assert.ErrorIs(t, err, accounts.ErrAccountNotFound, "locked accounts stop counting")
}

func TestAccountsRepositoryUpdateStatus(t *testing.T) {
	ctx := context.Background()
	repo := accounts.NewRepositoryManager(newTestDB(t)).Accounts()

	created, err := repo.Create(ctx, newAccountRecord(t, "status@example.com"))
	require.NoError(t, err)

	updated, err := repo.UpdateStatus(ctx, created.ID, accounts.StatusActive,
		accounts.WithEmailVerified(true),
		accounts.WithRole(accounts.RoleAuthenticated),
	)
	require.NoError(t, err)
	assert.Equal(t, accounts.StatusActive, updated.Status)
	assert.True(t, updated.EmailVerified)
	assert.Equal(t, accounts.RoleAuthenticated, updated.Role)
	assert.Equal(t, created.Email, updated.Email, "columns outside the update are untouched")

	_, err = repo.UpdateStatus(ctx, uuid.New(), accounts.StatusActive)
	assert.ErrorIs(t, err, accounts.ErrAccountNotFound)
}

func TestAccountsRepositoryListCountDelete(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := accounts.NewRepositoryManager(db).Accounts()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var ids []uuid.UUID
	for i := range 5 {
		record := newAccountRecord(t, fmt.Sprintf("user%d@example.com", i))
		created := base.Add(time.Duration(i) * time.Minute)
		record.CreatedAt = &created
		saved, err := repo.Create(ctx, record)
		require.NoError(t, err)
		ids = append(ids, saved.ID)
	}

	total, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, total)

	page, err := repo.List(ctx, 2, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, ids[2], page[0].ID)
	assert.Equal(t, ids[3], page[1].ID)

	empty, err := repo.List(ctx, 10, 2)
	require.NoError(t, err)
	assert.Empty(t, empty)

	deleted, err := repo.Delete(ctx, ids[0])
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = repo.Delete(ctx, ids[0])
	require.NoError(t, err)
	assert.False(t, deleted)

	total, err = repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, total)
}

func TestRepositoryManagerRunInTxRollsBack(t *testing.T) {
	ctx := context.Background()
	manager := accounts.NewRepositoryManager(newTestDB(t))
	require.NoError(t, manager.Validate())

	err := manager.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := manager.Accounts().CreateTx(ctx, tx, newAccountRecord(t, "rollback@example.com")); err != nil {
			return err
		}
		return accounts.ErrDuplicateEmail
	})
	assert.ErrorIs(t, err, accounts.ErrDuplicateEmail)

	total, err := manager.Accounts().Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, total)
}
