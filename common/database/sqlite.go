package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"
)

const sqliteMemory = ":memory:"

type SQLiteClient struct {
	DB   *sql.DB
	Path string
}

// NewSQLiteClient opens the embedded store and brings its schema up to date.
// The pool is capped at one connection and write transactions start
// IMMEDIATE, so every read-modify-write runs under the database write lock.
// Read-only transactions stay deferred.
func NewSQLiteClient(ctx context.Context, path string, migrations fs.FS) (*SQLiteClient, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}

	if path != sqliteMemory && !strings.Contains(path, "?") {
		path = filepath.Clean(path)
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("failed to create sqlite directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", sqliteDSN(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping sqlite db: %w", err)
	}

	if err := applyMigrations(db, migrations); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &SQLiteClient{DB: db, Path: path}, nil
}

func sqliteDSN(path string) string {
	if strings.Contains(path, "?") {
		return path
	}

	params := []string{
		"_pragma=busy_timeout(5000)",
		"_pragma=foreign_keys(1)",
		"_txlock=immediate",
	}
	if path != sqliteMemory {
		params = append(params, "_pragma=journal_mode(WAL)", "_pragma=synchronous(NORMAL)")
	}

	return path + "?" + strings.Join(params, "&")
}

// applyMigrations runs on the shared handle; closing the migrate instance
// would close the database too, so only the source is released.
func applyMigrations(db *sql.DB, migrations fs.FS) error {
	src, err := iofs.New(migrations, ".")
	if err != nil {
		return fmt.Errorf("failed to read migrations: %w", err)
	}
	defer src.Close()

	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to init migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to init migrations: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

func (c *SQLiteClient) Ping(ctx context.Context) error {
	return c.DB.PingContext(ctx)
}

func (c *SQLiteClient) Close() error {
	if c == nil || c.DB == nil {
		return nil
	}
	return c.DB.Close()
}
