package state

import (
	"embed"

	migrate "github.com/rubenv/sql-migrate"

	"github.com/sbkube/sbkube/internal/errs"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

func runMigrations(db *dbHandle) error {
	src := &migrate.EmbedFileSystemMigrationSource{
		FileSystem: migrationFS,
		Root:       "migrations",
	}
	if _, err := migrate.Exec(db.DB.DB, "sqlite3", src, migrate.Up); err != nil {
		return errs.Wrap(errs.State, err, "state store migration failed")
	}
	return nil
}
