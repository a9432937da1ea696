// Package database owns the catalog file: opening it, applying the schema,
// resetting it and closing it.
package database

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/choplin/deckcheck/db/migrations"
	"github.com/choplin/deckcheck/internal/config"
	sqldb "github.com/choplin/deckcheck/internal/database/sqlc"

	// Import SQLite driver for database/sql
	_ "modernc.org/sqlite"
)

const memoryPath = ":memory:"

// Context holds the catalog connection and query interface. It has a single
// owner; Close invalidates it until Reopen is called.
type Context struct {
	DB      *sql.DB
	Queries *sqldb.Queries

	path   string
	mu     sync.RWMutex
	closed bool
}

// Connect opens or creates the catalog at dbPath without touching the schema.
// An empty path means config.GetDBPath. Failures wrap ErrStoreUnavailable.
func Connect(dbPath string) (*Context, error) {
	path := dbPath
	if path == "" {
		path = config.GetDBPath()
	}

	db, err := open(path)
	if err != nil {
		return nil, err
	}

	return &Context{
		DB:      db,
		Queries: sqldb.New(db),
		path:    path,
	}, nil
}

// CreateDatabase connects and initializes the schema in one step.
func CreateDatabase(dbPath string) (*Context, error) {
	ctx, err := Connect(dbPath)
	if err != nil {
		return nil, err
	}

	if err := InitializeSchema(ctx); err != nil {
		_ = ctx.Close()
		return nil, err
	}
	return ctx, nil
}

func open(path string) (*sql.DB, error) {
	var dsn string
	if path == memoryPath {
		dsn = "file::memory:?_pragma=busy_timeout(5000)"
	} else {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("%w: failed to create database directory: %w", ErrStoreUnavailable, err)
		}
		absPath, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to resolve database path: %w", ErrStoreUnavailable, err)
		}
		dsn = fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(FULL)", filepath.ToSlash(absPath))
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open database: %w", ErrStoreUnavailable, err)
	}

	// One writer, one owner. An in-memory catalog also lives only as long
	// as its single connection.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: failed to ping database: %w", ErrStoreUnavailable, err)
	}

	return db, nil
}

// Path returns the location the context was opened at.
func (c *Context) Path() string {
	return c.path
}

// Handle returns the live connection and queries, or ErrStoreClosed.
func (c *Context) Handle() (*sql.DB, *sqldb.Queries, error) {
	if c == nil {
		return nil, nil, errors.New("database: missing database context")
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed || c.DB == nil {
		return nil, nil, ErrStoreClosed
	}
	q := c.Queries
	if q == nil {
		q = sqldb.New(c.DB)
	}
	return c.DB, q, nil
}

// Close releases the connection. Closing twice is a no-op.
func (c *Context) Close() error {
	if c == nil {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.DB == nil {
		c.closed = true
		return nil
	}
	c.closed = true
	return c.DB.Close()
}

// Reopen reconnects a closed context to the location it was opened at.
func (c *Context) Reopen() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		return nil
	}

	db, err := open(c.path)
	if err != nil {
		return err
	}
	c.DB = db
	c.Queries = sqldb.New(db)
	c.closed = false
	return nil
}

// CloseDatabase closes the database connection.
func CloseDatabase(ctx *Context) error {
	return ctx.Close()
}

// InitializeSchema creates the catalog tables and indexes when absent. It is
// safe to call on an initialized catalog.
func InitializeSchema(ctx *Context) error {
	db, _, err := ctx.Handle()
	if err != nil {
		return err
	}

	migrator, err := newMigrator(db)
	if err != nil {
		return err
	}

	if err := migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// ResetAll drops every catalog table and recreates the schema, leaving an
// empty catalog.
func ResetAll(ctx *Context) error {
	db, _, err := ctx.Handle()
	if err != nil {
		return err
	}

	migrator, err := newMigrator(db)
	if err != nil {
		return err
	}

	if err := migrator.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to drop schema: %w", err)
	}
	if err := migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to recreate schema: %w", err)
	}
	return nil
}

// newMigrator is never closed: closing it would close db as well.
func newMigrator(db *sql.DB) (*migrate.Migrate, error) {
	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to initialise migrate driver: %w", err)
	}

	sourceDriver, err := iofs.New(migrations.Files, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to load embedded schema: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrator: %w", err)
	}
	return migrator, nil
}
