package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	_ "modernc.org/sqlite" // pure Go driver, registers "sqlite"
)

// NewSQLite opens (creating if needed) a SQLite database file. A single
// connection is kept so writers queue instead of failing with SQLITE_BUSY.
func NewSQLite(ctx context.Context, path string, logger *zap.Logger) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	dsn := "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	if logger != nil {
		logger.Info("SQLite database opened", zap.String("path", path))
	}
	return db, nil
}

type sqliteMigration struct {
	version string
	up      func(ctx context.Context, tx *sql.Tx) error
}

// Databases created by the earlier app revision already have both tables
// and sometimes the vip column, but no schema_migrations table.
var sqliteMigrations = []sqliteMigration{
	{version: "001_schema", up: execSQL(`
CREATE TABLE IF NOT EXISTS registrations (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    serial        TEXT UNIQUE NOT NULL,
    email         TEXT NOT NULL,
    checked_in    INTEGER NOT NULL DEFAULT 0,
    checked_in_at TEXT,
    created_at    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS attendees (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    registration_id INTEGER NOT NULL,
    first_name      TEXT NOT NULL,
    last_name       TEXT NOT NULL,
    FOREIGN KEY (registration_id) REFERENCES registrations(id)
);

CREATE INDEX IF NOT EXISTS idx_attendees_registration_id ON attendees(registration_id);
`)},
	{version: "002_attendee_vip", up: addColumn("attendees", "vip", "INTEGER NOT NULL DEFAULT 0")},
	// datetime('now') text ("2025-06-01 23:00:00") sorts before the store's
	// "2025-06-01T..." layout, so legacy stamps are rewritten into it.
	{version: "003_normalize_timestamps", up: execSQL(`
UPDATE registrations
   SET created_at = strftime('%Y-%m-%dT%H:%M:%S.000000000Z', created_at)
 WHERE created_at NOT LIKE '____-__-__T%'
   AND strftime('%Y-%m-%dT%H:%M:%S.000000000Z', created_at) IS NOT NULL;

UPDATE registrations
   SET checked_in_at = strftime('%Y-%m-%dT%H:%M:%S.000000000Z', checked_in_at)
 WHERE checked_in_at NOT LIKE '____-__-__T%'
   AND strftime('%Y-%m-%dT%H:%M:%S.000000000Z', checked_in_at) IS NOT NULL;
`)},
}

// MigrateSQLite applies each pending migration once, recording it in schema_migrations.
func MigrateSQLite(ctx context.Context, db *sql.DB) error {
	const bootstrap = `CREATE TABLE IF NOT EXISTS schema_migrations (
		version TEXT PRIMARY KEY,
		applied_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
	)`
	if _, err := db.ExecContext(ctx, bootstrap); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	for _, m := range sqliteMigrations {
		if err := applySQLite(ctx, db, m); err != nil {
			return err
		}
	}
	return nil
}

func applySQLite(ctx context.Context, db *sql.DB, m sqliteMigration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration %s: %w", m.version, err)
	}
	defer tx.Rollback()

	var applied bool
	err = tx.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = ?)", m.version).Scan(&applied)
	if err != nil {
		return fmt.Errorf("check migration %s: %w", m.version, err)
	}
	if applied {
		return nil
	}
	if err := m.up(ctx, tx); err != nil {
		return fmt.Errorf("execute migration %s: %w", m.version, err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES (?)", m.version); err != nil {
		return fmt.Errorf("record migration %s: %w", m.version, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %s: %w", m.version, err)
	}
	return nil
}

func execSQL(stmt string) func(context.Context, *sql.Tx) error {
	return func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, stmt)
		return err
	}
}

// addColumn adds a column unless the table already has it. SQLite has no
// ADD COLUMN IF NOT EXISTS.
func addColumn(table, column, decl string) func(context.Context, *sql.Tx) error {
	return func(ctx context.Context, tx *sql.Tx) error {
		var n int
		err := tx.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?", table, column,
		).Scan(&n)
		if err != nil {
			return fmt.Errorf("inspect %s: %w", table, err)
		}
		if n > 0 {
			return nil
		}
		_, err = tx.ExecContext(ctx, fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, decl))
		return err
	}
}
