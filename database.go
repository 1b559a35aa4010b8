package accounts

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// OpenDatabase opens a bun database for driver and dsn. Supported drivers
// are "sqlite" and "postgres".
func OpenDatabase(driver, dsn string) (*bun.DB, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case DriverSQLite, "sqlite3", "":
		sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
		if err != nil {
			return nil, NewInternalError(err, "failed to open sqlite database")
		}
		// in memory databases live on a single connection
		if strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory") {
			sqldb.SetMaxOpenConns(1)
		}
		return bun.NewDB(sqldb, sqlitedialect.New()), nil
	case DriverPostgres, "postgresql", "pgx":
		sqldb, err := sql.Open("pgx", dsn)
		if err != nil {
			return nil, NewInternalError(err, "failed to open postgres database")
		}
		return bun.NewDB(sqldb, pgdialect.New()), nil
	default:
		return nil, NewValidationError(fmt.Sprintf("unsupported database driver %q", driver), nil)
	}
}

// MigrationDialect maps a bun database to the goose dialect name
func MigrationDialect(db *bun.DB) string {
	if db != nil && db.Dialect().Name() == dialect.PG {
		return "pgx"
	}
	return "sqlite3"
}

// Migrate applies the embedded schema to db
func Migrate(ctx context.Context, db *bun.DB) error {
	return RunMigrations(ctx, db.DB, MigrationDialect(db))
}
