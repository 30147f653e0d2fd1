package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrateSQLiteFreshDatabase(t *testing.T) {
	ctx := context.Background()
	db, err := NewSQLite(ctx, filepath.Join(t.TempDir(), "fresh.db"), nil)
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, MigrateSQLite(ctx, db))
	// second run is a no-op
	require.NoError(t, MigrateSQLite(ctx, db))

	var versions int
	require.NoError(t, db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations").Scan(&versions))
	assert.Equal(t, len(sqliteMigrations), versions)

	var vip int
	require.NoError(t, db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM pragma_table_info('attendees') WHERE name = 'vip'").Scan(&vip))
	assert.Equal(t, 1, vip)
}

func TestMigrateSQLiteLegacyDatabase(t *testing.T) {
	ctx := context.Background()
	db, err := NewSQLite(ctx, filepath.Join(t.TempDir(), "legacy.db"), nil)
	require.NoError(t, err)
	defer db.Close()

	// schema as left behind by the earlier app revision, vip already added
	_, err = db.ExecContext(ctx, `
CREATE TABLE registrations (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  serial TEXT UNIQUE NOT NULL,
  email TEXT NOT NULL,
  checked_in INTEGER DEFAULT 0,
  checked_in_at TEXT,
  created_at TEXT DEFAULT (datetime('now'))
);
CREATE TABLE attendees (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  registration_id INTEGER NOT NULL,
  first_name TEXT NOT NULL,
  last_name TEXT NOT NULL,
  vip INTEGER DEFAULT 0,
  FOREIGN KEY (registration_id) REFERENCES registrations(id)
);
INSERT INTO registrations (serial, email) VALUES ('MN-2024-00C0FFEE', 'old@example.com');
`)
	require.NoError(t, err)

	require.NoError(t, MigrateSQLite(ctx, db))

	var n int
	require.NoError(t, db.QueryRowContext(ctx, "SELECT COUNT(*) FROM registrations").Scan(&n))
	assert.Equal(t, 1, n, "existing rows survive migration")

	var created string
	require.NoError(t, db.QueryRowContext(ctx, "SELECT created_at FROM registrations").Scan(&created))
	assert.Regexp(t, `^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}\.000000000Z$`, created)
}
