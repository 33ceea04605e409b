package database

import (
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrate_SeparateVersionTables(t *testing.T) {
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "app.db"))
	require.NoError(t, err)
	defer db.Close()

	first := fstest.MapFS{
		"m/000001_a.up.sql":   {Data: []byte("CREATE TABLE a (id TEXT PRIMARY KEY);")},
		"m/000001_a.down.sql": {Data: []byte("DROP TABLE a;")},
	}
	second := fstest.MapFS{
		"m/000001_b.up.sql":   {Data: []byte("CREATE TABLE b (id TEXT PRIMARY KEY);")},
		"m/000001_b.down.sql": {Data: []byte("DROP TABLE b;")},
	}

	require.NoError(t, Migrate(db, first, "m", "a_migrations"))
	require.NoError(t, Migrate(db, second, "m", "b_migrations"))
	// applying again is a no-op
	require.NoError(t, Migrate(db, first, "m", "a_migrations"))

	for _, table := range []string{"a", "b"} {
		var name string
		err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		assert.NoError(t, err, table)
	}
}

func TestOpenSQLite_BadPath(t *testing.T) {
	_, err := OpenSQLite(filepath.Join(t.TempDir(), "missing", "dir", "app.db"))
	assert.Error(t, err)
}
