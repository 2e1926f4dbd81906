// Package sqlite persists the prompt library and recent working directories
// in a local SQLite database.
package sqlite

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/zjrosen/agentdesk/internal/library"
	"github.com/zjrosen/agentdesk/internal/log"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DB owns the database connection and hands out repositories.
type DB struct {
	conn *sql.DB
	path string
}

// NewDB opens (creating if needed) the database at path and applies pending
// migrations. An existing file is copied to path+".bak" first.
func NewDB(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	if _, err := os.Stat(path); err == nil {
		if err := backup(path, path+".bak"); err != nil {
			return nil, fmt.Errorf("backup database: %w", err)
		}
	}

	if err := migrateUp(path); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite3", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	log.Debug(log.CatDB, "Database ready", "path", path)
	return &DB{conn: conn, path: path}, nil
}

func dsn(path string) string {
	return "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(wal)&_pragma=foreign_keys(1)"
}

// migrateUp runs migrations on a dedicated connection, since closing the
// migrator closes the connection it was given.
func migrateUp(path string) error {
	conn, err := sql.Open("sqlite3", dsn(path))
	if err != nil {
		return fmt.Errorf("open database for migration: %w", err)
	}

	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("load migrations: %w", err)
	}
	driver, err := migratesqlite.WithInstance(conn, &migratesqlite.Config{})
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("init migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("init migrator: %w", err)
	}
	defer func() {
		srcErr, dbErr := m.Close()
		if srcErr != nil || dbErr != nil {
			log.Warn(log.CatDB, "Closing migrator", "source_error", srcErr, "db_error", dbErr)
		}
	}()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}
	version, dirty, err := m.Version()
	if err == nil {
		log.Debug(log.CatDB, "Schema version", "version", version, "dirty", dirty)
	}
	return nil
}

func backup(src, dst string) error {
	in, err := os.Open(src) //nolint:gosec // G304: configured database path
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600) //nolint:gosec // G304: derived from database path
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

// Path returns the database file path.
func (db *DB) Path() string { return db.path }

// PromptRepository returns the saved-prompt repository.
func (db *DB) PromptRepository() library.PromptRepository {
	return &promptRepository{db: db.conn}
}

// CwdRepository returns the recent working directory repository.
func (db *DB) CwdRepository() library.CwdRepository {
	return &cwdRepository{db: db.conn}
}

// Close closes the connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
