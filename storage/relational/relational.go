// Package relational stores identities, groups and api keys in a SQL
// database through bun. SQLite and PostgreSQL are supported.
//
// Username, email and api key identity lookups use plain equality on TEXT
// columns with the default collation, so they are case-sensitive on both
// databases.
package relational

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	authmanager "github.com/goliatone/go-authmanager"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Option customizes a Backend.
type Option func(*Backend)

// WithLogger sets the logger.
func WithLogger(logger authmanager.Logger) Option {
	return func(b *Backend) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithClock sets the clock used for row timestamps.
func WithClock(now func() time.Time) Option {
	return func(b *Backend) {
		if now != nil {
			b.now = now
		}
	}
}

// Backend is an authmanager.Backend over a bun database.
type Backend struct {
	db     *bun.DB
	users  repository.Repository[*userModel]
	keys   repository.Repository[*apiKeyModel]
	logger authmanager.Logger
	now    func() time.Time
}

var _ authmanager.Backend = (*Backend)(nil)

// New wraps an open bun database. The schema must already exist; see
// Migrate.
func New(db *bun.DB, opts ...Option) *Backend {
	b := &Backend{
		db:     db,
		users:  newUsersRepository(db),
		keys:   newAPIKeysRepository(db),
		logger: authmanager.NewZapLogger(nil),
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

// Open connects to driver ("sqlite" or "postgres") at dsn.
func Open(driver, dsn string, opts ...Option) (*Backend, error) {
	switch driver {
	case DriverSQLite, "":
		sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
		if err != nil {
			return nil, err
		}
		// one connection keeps :memory: databases alive and serializes writers
		sqldb.SetMaxOpenConns(1)
		return New(bun.NewDB(sqldb, sqlitedialect.New()), opts...), nil
	case DriverPostgres:
		sqldb, err := sql.Open("pgx", dsn)
		if err != nil {
			return nil, err
		}
		return New(bun.NewDB(sqldb, pgdialect.New()), opts...), nil
	default:
		return nil, goerrors.New(fmt.Sprintf("unsupported database driver %q", driver), goerrors.CategoryValidation)
	}
}

// DB returns the underlying bun database.
func (b *Backend) DB() *bun.DB { return b.db }

func (b *Backend) stores(idb bun.IDB) stores { return stores{b: b, idb: idb} }

// Users returns the user store.
func (b *Backend) Users() authmanager.UserStore { return b.stores(b.db).Users() }

// Groups returns the group store.
func (b *Backend) Groups() authmanager.GroupStore { return b.stores(b.db).Groups() }

// APIKeys returns the api-key store.
func (b *Backend) APIKeys() authmanager.APIKeyStore { return b.stores(b.db).APIKeys() }

// RunInTx runs fn inside one database transaction. With SQLite the
// Backend's own stores block until fn returns and must not be used from fn.
func (b *Backend) RunInTx(ctx context.Context, fn func(ctx context.Context, tx authmanager.Stores) error) error {
	return b.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, b.stores(tx))
	})
}

// Close closes the database.
func (b *Backend) Close() error {
	return b.db.Close()
}

type stores struct {
	b   *Backend
	idb bun.IDB
}

func (s stores) Users() authmanager.UserStore     { return userStore{s} }
func (s stores) Groups() authmanager.GroupStore   { return groupStore{s} }
func (s stores) APIKeys() authmanager.APIKeyStore { return apiKeyStore{s} }

// atomic runs fn in a transaction unless idb already is one.
func atomic(ctx context.Context, idb bun.IDB, fn func(ctx context.Context, tx bun.IDB) error) error {
	if db, ok := idb.(*bun.DB); ok {
		return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			return fn(ctx, tx)
		})
	}
	return fn(ctx, idb)
}

func isNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows) || repository.IsRecordNotFound(err)
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// storeError maps driver errors onto the package's error kinds.
func storeError(err error, msg string) error {
	switch {
	case err == nil:
		return nil
	case isNotFound(err):
		return authmanager.ErrNotFound
	case authmanager.KindOf(err) != "":
		return err
	}
	return goerrors.Wrap(err, goerrors.CategoryInternal, msg)
}

func rowsAffected(res sql.Result) int64 {
	n, err := res.RowsAffected()
	if err != nil {
		return 0
	}
	return n
}
