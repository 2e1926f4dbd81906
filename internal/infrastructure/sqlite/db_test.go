package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "agentdesk.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestNewDB_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "agentdesk.db")

	db, err := NewDB(path)
	require.NoError(t, err)
	defer db.Close()

	info, err := os.Stat(filepath.Dir(path))
	require.NoError(t, err)
	require.True(t, info.IsDir())
	if runtime.GOOS != "windows" {
		require.Equal(t, os.FileMode(0o700), info.Mode().Perm())
	}
	require.Equal(t, path, db.Path())
}

func TestNewDB_RunsMigrations(t *testing.T) {
	db := setupTestDB(t)

	for _, table := range []string{"prompts", "recent_cwds", "schema_migrations"} {
		var name string
		err := db.conn.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		require.NoError(t, err, "table %s should exist", table)
	}

	var version int
	require.NoError(t, db.conn.QueryRow(`SELECT version FROM schema_migrations`).Scan(&version))
	require.Equal(t, 2, version)
}

func TestNewDB_ReopenKeepsDataAndWritesBackup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agentdesk.db")

	db1, err := NewDB(path)
	require.NoError(t, err)
	require.NoError(t, db1.CwdRepository().RecordCwd(context.Background(), "/repo"))
	require.NoError(t, db1.Close())

	db2, err := NewDB(path)
	require.NoError(t, err)
	defer db2.Close()

	got, err := db2.CwdRepository().Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Equal(t, []string{"/repo"}, got)

	_, err = os.Stat(path + ".bak")
	require.NoError(t, err, "existing database is backed up before migrating")
}
