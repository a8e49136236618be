package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/lesterapp/lester/internal/config"
	_ "modernc.org/sqlite"
)

// CurrentSchemaVersion is the latest schema version.
// Bump this when adding migrations.
const CurrentSchemaVersion = 1

// FileName is the database file created under the base directory.
const FileName = "lester.db"

// Init initializes the SQLite database at baseDir/lester.db.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.lester.
func Init(baseDir string) (*sql.DB, error) {
	return Open(filepath.Join(baseDir, FileName))
}

// Open opens (creating if needed) the SQLite database at dbPath and migrates it.
func Open(dbPath string) (*sql.DB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Pragmas in the connection string apply to every pooled connection.
	// _txlock=immediate takes the write lock at BEGIN, so a transaction that
	// reads before it writes waits on busy_timeout instead of failing with
	// SQLITE_BUSY when another process is writing.
	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := verifyWALMode(db); err != nil {
		db.Close()
		return nil, err
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	_ = os.Chmod(dbPath, 0600)

	return db, nil
}

// ConfigurePool applies connection pool settings from config.
// Only sets limits if explicitly configured (non-zero values).
func ConfigurePool(db *sql.DB, cfg *config.Config) {
	if cfg == nil {
		return
	}
	if cfg.DBMaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	}
	if cfg.DBMaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	}
}

// Healthy reports whether the database file still exists and answers a ping.
// SQLite happily recreates a deleted file on the next write, so the stat
// comes first.
func Healthy(ctx context.Context, db *sql.DB, dbPath string) error {
	if _, err := os.Stat(dbPath); err != nil {
		return fmt.Errorf("database file unavailable: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}

// migrate applies schema migrations based on user_version.
func migrate(db *sql.DB) error {
	version, err := GetUserVersion(db)
	if err != nil {
		return err
	}

	// Migration 0 -> 1: Initial schema
	if version < 1 {
		schema := `
		CREATE TABLE IF NOT EXISTS workspaces (
		  id         TEXT PRIMARY KEY,
		  name       TEXT NOT NULL,
		  created_at INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS bookmarks (
		  id           TEXT PRIMARY KEY,
		  workspace_id TEXT NOT NULL,
		  url          TEXT NOT NULL,
		  title        TEXT NOT NULL,
		  notes        TEXT,
		  created_at   INTEGER NOT NULL,
		  updated_at   INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS tags (
		  id         TEXT PRIMARY KEY,
		  name       TEXT NOT NULL UNIQUE,
		  created_at INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS bookmark_tags (
		  bookmark_id TEXT NOT NULL,
		  tag_id      TEXT NOT NULL,
		  confidence  REAL NOT NULL,
		  source      TEXT NOT NULL,
		  created_at  INTEGER NOT NULL,
		  PRIMARY KEY (bookmark_id, tag_id)
		);

		CREATE TABLE IF NOT EXISTS tag_jobs (
		  id          TEXT PRIMARY KEY,
		  bookmark_id TEXT NOT NULL,
		  status      TEXT NOT NULL,
		  attempts    INTEGER NOT NULL,
		  created_at  INTEGER NOT NULL,
		  updated_at  INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_bookmarks_workspace_updated
		ON bookmarks(workspace_id, updated_at DESC);

		CREATE INDEX IF NOT EXISTS idx_bookmark_tags_tag
		ON bookmark_tags(tag_id);

		CREATE INDEX IF NOT EXISTS idx_tag_jobs_status_created
		ON tag_jobs(status, created_at, id);

		CREATE INDEX IF NOT EXISTS idx_tag_jobs_bookmark
		ON tag_jobs(bookmark_id);
		`
		if _, err := db.Exec(schema); err != nil {
			return fmt.Errorf("migration 1 failed: %w", err)
		}
		if err := SetUserVersion(db, 1); err != nil {
			return err
		}
	}

	// Future migrations go here:
	// if version < 2 { ... }

	return nil
}

// verifyWALMode checks that WAL mode is active (set via connection string).
func verifyWALMode(db *sql.DB) error {
	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode;").Scan(&journalMode); err != nil {
		return fmt.Errorf("failed to verify journal mode: %w", err)
	}
	if journalMode != "wal" {
		return fmt.Errorf("expected WAL mode, got %s", journalMode)
	}
	return nil
}

// GetUserVersion returns the current schema version (user_version pragma).
func GetUserVersion(db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRow("PRAGMA user_version;").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get user_version: %w", err)
	}
	return version, nil
}

// SetUserVersion sets the schema version (user_version pragma).
func SetUserVersion(db *sql.DB, version int) error {
	_, err := db.Exec(fmt.Sprintf("PRAGMA user_version=%d", version))
	if err != nil {
		return fmt.Errorf("failed to set user_version: %w", err)
	}
	return nil
}
