package accounts

import (
	"database/sql"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializableTxOptionsFollowDialect(t *testing.T) {
	lite, err := OpenDatabase(DriverSQLite, "file:"+uuid.NewString()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = lite.Close() })
	assert.Nil(t, NewRepositoryManager(lite).SerializableTxOptions())

	// sql.Open does not dial, so no server is needed
	pg, err := OpenDatabase(DriverPostgres, "postgres://accounts@127.0.0.1:1/accounts")
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Close() })

	opts := NewRepositoryManager(pg).SerializableTxOptions()
	require.NotNil(t, opts)
	assert.Equal(t, sql.LevelSerializable, opts.Isolation)
}

func TestIsSerializationFailure(t *testing.T) {
	failure := &pgconn.PgError{Code: pgSerializationFailure, Message: "could not serialize access"}
	assert.True(t, IsSerializationFailure(failure))
	assert.True(t, IsSerializationFailure(fmt.Errorf("commit: %w", failure)))
	assert.False(t, IsSerializationFailure(&pgconn.PgError{Code: "23505"}))
	assert.False(t, IsSerializationFailure(ErrDuplicateEmail))
	assert.False(t, IsSerializationFailure(nil))
}
