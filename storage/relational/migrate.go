package relational

import (
	"context"
	"embed"
	"io/fs"
	"sync"

	goerrors "github.com/goliatone/go-errors"
	"github.com/pressly/goose/v3"
	"github.com/uptrace/bun/dialect"
)

//go:embed migrations
var migrationsFS embed.FS

// GetMigrationsFS returns the migration files for dialect, "sqlite" or
// "postgres".
func GetMigrationsFS(name string) (fs.FS, error) {
	return fs.Sub(migrationsFS, "migrations/"+name)
}

// goose keeps its base FS and dialect in package globals.
var gooseMu sync.Mutex

// Migrate applies every pending migration for the backend's dialect.
func (b *Backend) Migrate(ctx context.Context) error {
	dir, gooseDialect := "sqlite", "sqlite3"
	if b.db.Dialect().Name() == dialect.PG {
		dir, gooseDialect = "postgres", "postgres"
	}

	sub, err := GetMigrationsFS(dir)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load migrations")
	}

	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(sub)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect(gooseDialect); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to set migration dialect")
	}
	if err := goose.UpContext(ctx, b.db.DB, "."); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to run migrations")
	}
	b.logger.Info("migrations applied", "dialect", gooseDialect)
	return nil
}
