package migration

import (
	"database/sql"
	"io/fs"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/julianstephens/doselit/migrations"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func migrationFS(files map[string]string) fstest.MapFS {
	m := fstest.MapFS{}
	for name, content := range files {
		m[name] = &fstest.MapFile{Data: []byte(content)}
	}
	return m
}

func TestGetCurrentVersion(t *testing.T) {
	db := setupTestDB(t)
	runner := NewRunner(db, migrationFS(map[string]string{
		"001_test.sql": "CREATE TABLE test (id INTEGER);",
	}), SQLite)

	version, err := runner.GetCurrentVersion()
	require.NoError(t, err)
	assert.Equal(t, 0, version)

	require.NoError(t, runner.SetVersion(5))
	version, err = runner.GetCurrentVersion()
	require.NoError(t, err)
	assert.Equal(t, 5, version)
}

func TestReadMigrationFiles(t *testing.T) {
	db := setupTestDB(t)
	runner := NewRunner(db, migrationFS(map[string]string{
		"002_second.sql": "SELECT 2;",
		"001_first.sql":  "SELECT 1;",
		"README.md":      "ignored",
	}), SQLite)

	ms, err := runner.ReadMigrationFiles()
	require.NoError(t, err)
	require.Len(t, ms, 2)
	assert.Equal(t, 1, ms[0].Version)
	assert.Equal(t, "first", ms[0].Name)
	assert.Equal(t, 2, ms[1].Version)
}

func TestReadMigrationFilesRejectsBadNames(t *testing.T) {
	tests := []struct {
		name  string
		files map[string]string
	}{
		{"no underscore", map[string]string{"001.sql": "SELECT 1;"}},
		{"not a number", map[string]string{"abc_x.sql": "SELECT 1;"}},
		{"zero version", map[string]string{"000_x.sql": "SELECT 1;"}},
		{"duplicate", map[string]string{"001_a.sql": "SELECT 1;", "1_b.sql": "SELECT 1;"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := NewRunner(setupTestDB(t), migrationFS(tt.files), SQLite)
			_, err := runner.ReadMigrationFiles()
			assert.Error(t, err)
		})
	}
}

func TestApplyMigrations(t *testing.T) {
	db := setupTestDB(t)
	runner := NewRunner(db, migrationFS(map[string]string{
		"001_create.sql": "CREATE TABLE a (id INTEGER);",
		"002_alter.sql":  "ALTER TABLE a ADD COLUMN name TEXT;",
	}), SQLite)

	var logs []string
	n, err := runner.ApplyMigrations(func(s string) { logs = append(logs, s) })
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.NotEmpty(t, logs)

	version, err := runner.GetCurrentVersion()
	require.NoError(t, err)
	assert.Equal(t, 2, version)

	_, err = db.Exec("INSERT INTO a (id, name) VALUES (1, 'x')")
	require.NoError(t, err)

	n, err = runner.ApplyMigrations(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestApplyMigrationsRollsBackFailure(t *testing.T) {
	db := setupTestDB(t)
	runner := NewRunner(db, migrationFS(map[string]string{
		"001_ok.sql":  "CREATE TABLE a (id INTEGER);",
		"002_bad.sql": "THIS IS NOT SQL;",
	}), SQLite)

	n, err := runner.ApplyMigrations(nil)
	require.Error(t, err)
	assert.Equal(t, 1, n)

	version, err := runner.GetCurrentVersion()
	require.NoError(t, err)
	assert.Equal(t, 1, version)

	pending, err := runner.Pending()
	require.NoError(t, err)
	assert.Equal(t, 1, pending)
}

func TestValidateVersionRejectsNewerDatabase(t *testing.T) {
	db := setupTestDB(t)
	runner := NewRunner(db, migrationFS(map[string]string{
		"001_only.sql": "CREATE TABLE a (id INTEGER);",
	}), SQLite)

	require.NoError(t, runner.SetVersion(9))
	err := runner.ValidateVersion()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "newer than supported")

	_, err = runner.ApplyMigrations(nil)
	assert.Error(t, err)
}

func TestEmbeddedSQLiteMigrationsApply(t *testing.T) {
	db := setupTestDB(t)
	sub, err := fsSub(t, "sqlite")
	require.NoError(t, err)

	runner := NewRunner(db, sub, SQLite)
	_, err = runner.ApplyMigrations(nil)
	require.NoError(t, err)

	for _, table := range []string{"settings", "treatments", "medications", "medication_intakes"} {
		var count int
		require.NoError(t, db.QueryRow(
			"SELECT count(*) FROM sqlite_master WHERE type='table' AND name = ?", table).Scan(&count))
		assert.Equal(t, 1, count, table)
	}
}

func TestEmbeddedMigrationSetsMatch(t *testing.T) {
	sqliteFS, err := fsSub(t, "sqlite")
	require.NoError(t, err)
	pgFS, err := fsSub(t, "postgres")
	require.NoError(t, err)

	lite, err := NewRunner(nil, sqliteFS, SQLite).GetLatestVersion()
	require.NoError(t, err)
	pg, err := NewRunner(nil, pgFS, Postgres).GetLatestVersion()
	require.NoError(t, err)
	assert.Equal(t, lite, pg)
}

func TestDialectPlaceholder(t *testing.T) {
	assert.Equal(t, "?", SQLite.placeholder())
	assert.Equal(t, "$1", Postgres.placeholder())
	assert.Equal(t, "postgres", Postgres.String())
}

func fsSub(t *testing.T, dir string) (fs.FS, error) {
	t.Helper()
	return fs.Sub(migrations.FS, dir)
}
