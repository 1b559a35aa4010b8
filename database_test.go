package accounts_test

import (
	"context"
	"io/fs"
	"testing"

	"github.com/goliatone/go-accounts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationsAreEmbedded(t *testing.T) {
	entries, err := fs.ReadDir(accounts.GetMigrationsFS(), ".")
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	assert.Equal(t, "00001_create_accounts.sql", entries[0].Name())
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	assert.Equal(t, "sqlite3", accounts.MigrationDialect(db))
	require.NoError(t, accounts.Migrate(context.Background(), db))

	var count int
	require.NoError(t, db.NewRaw("SELECT COUNT(*) FROM accounts").Scan(context.Background(), &count))
	assert.Zero(t, count)
}

func TestOpenDatabaseRejectsUnknownDriver(t *testing.T) {
	_, err := accounts.OpenDatabase("oracle", "whatever")
	require.Error(t, err)
	assert.True(t, accounts.IsValidationError(err))
}
