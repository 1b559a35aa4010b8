package accounts

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/goliatone/go-repository-bun"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

// pgSerializationFailure is the SQLSTATE postgres reports when a
// serializable transaction has to be retried
const pgSerializationFailure = "40001"

// RepositoryManager exposes all repositories
type RepositoryManager interface {
	repository.Validator
	repository.TransactionManager
	Accounts() Accounts
	// SerializableTxOptions returns the options for transactions whose
	// reads must not race concurrent inserts
	SerializableTxOptions() *sql.TxOptions
}

type mngr struct {
	db       *bun.DB
	accounts Accounts
}

func NewRepositoryManager(db *bun.DB) RepositoryManager {
	return &mngr{
		db:       db,
		accounts: NewAccountsRepository(db),
	}
}

func (m mngr) Validate() error {
	if m.db == nil {
		return errors.New("repository manager requires a database")
	}

	if m.accounts == nil {
		return errors.New("repository accounts should be initialized")
	}

	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m mngr) Accounts() Accounts {
	return m.accounts
}

// SerializableTxOptions asks postgres for SERIALIZABLE isolation. SQLite
// already serializes writers so the default options are returned.
func (m mngr) SerializableTxOptions() *sql.TxOptions {
	if m.db != nil && m.db.Dialect().Name() == dialect.PG {
		return &sql.TxOptions{Isolation: sql.LevelSerializable}
	}
	return nil
}

// IsSerializationFailure reports whether err aborted a serializable
// transaction that can be retried
func IsSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgSerializationFailure
	}
	return false
}
