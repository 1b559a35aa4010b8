package accounts

import (
	"context"
	"database/sql"
	"embed"
	"io/fs"

	"github.com/pressly/goose/v3"
)

//go:embed data/sql/migrations/*.sql
var migrationsFS embed.FS

// GetMigrationsFS returns the migration files rooted at the migrations dir
func GetMigrationsFS() fs.FS {
	sub, err := fs.Sub(migrationsFS, "data/sql/migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

// RunMigrations applies the embedded migrations using the goose dialect
// matching driver ("sqlite3" or "pgx").
func RunMigrations(ctx context.Context, db *sql.DB, dialect string) error {
	goose.SetBaseFS(GetMigrationsFS())
	if err := goose.SetDialect(dialect); err != nil {
		return NewInternalError(err, "unsupported migration dialect")
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		return NewInternalError(err, "failed to apply migrations")
	}
	return nil
}
