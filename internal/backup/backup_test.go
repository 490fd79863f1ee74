package backup

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T, rows int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "doselit.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`CREATE TABLE medications (id TEXT PRIMARY KEY, current_stock INTEGER)`)
	require.NoError(t, err)
	for i := 0; i < rows; i++ {
		_, err = db.Exec(`INSERT INTO medications (id, current_stock) VALUES (?, ?)`, fmt.Sprintf("med-%d", i), 10)
		require.NoError(t, err)
	}
	return path
}

func count(t *testing.T, path string) int {
	t.Helper()
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM medications`).Scan(&n))
	return n
}

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func TestCreate(t *testing.T) {
	dbPath := setupDB(t, 2)
	at := time.Date(2025, 1, 10, 8, 30, 0, 0, time.Local)
	m := NewManager(dbPath).WithClock(fixedClock(at))

	path, err := m.Create(context.Background())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(m.Dir(), "doselit-20250110-083000.db"), path)
	assert.Equal(t, 2, count(t, path))

	// same second gets a counter suffix
	second, err := m.Create(context.Background())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(m.Dir(), "doselit-20250110-083000-1.db"), second)

	list, err := m.List()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.ElementsMatch(t, []string{path, second}, []string{list[0].Path, list[1].Path})
	assert.True(t, list[0].Timestamp.Equal(at))
}

func TestCreateMissingDatabase(t *testing.T) {
	m := NewManager(filepath.Join(t.TempDir(), "missing.db"))
	_, err := m.Create(context.Background())
	assert.Error(t, err)
	assert.Error(t, m.Hook()(context.Background()))
}

func TestListEmpty(t *testing.T) {
	m := NewManager(filepath.Join(t.TempDir(), "doselit.db"))
	list, err := m.List()
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestRotateKeepsNewest(t *testing.T) {
	dbPath := setupDB(t, 1)
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.Local)
	m := NewManager(dbPath)
	for i := 0; i < 16; i++ {
		m.WithClock(fixedClock(start.Add(time.Duration(i) * time.Hour)))
		_, err := m.Create(context.Background())
		require.NoError(t, err)
	}

	list, err := m.List()
	require.NoError(t, err)
	require.Len(t, list, 14)
	assert.True(t, list[0].Timestamp.Equal(start.Add(15*time.Hour)))
	assert.True(t, list[13].Timestamp.Equal(start.Add(2*time.Hour)))

	// unrelated files are ignored
	require.NoError(t, os.WriteFile(filepath.Join(m.Dir(), "notes.txt"), []byte("x"), 0600))
	list, err = m.List()
	require.NoError(t, err)
	assert.Len(t, list, 14)
}

func TestRestore(t *testing.T) {
	ctx := context.Background()
	dbPath := setupDB(t, 1)
	m := NewManager(dbPath).WithClock(fixedClock(time.Date(2025, 1, 10, 8, 0, 0, 0, time.Local)))
	saved, err := m.Create(ctx)
	require.NoError(t, err)

	db, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO medications (id, current_stock) VALUES ('later', 1)`)
	require.NoError(t, err)
	require.NoError(t, db.Close())
	require.Equal(t, 2, count(t, dbPath))

	m.WithClock(fixedClock(time.Date(2025, 1, 10, 9, 0, 0, 0, time.Local)))
	require.NoError(t, m.Restore(ctx, saved))
	assert.Equal(t, 1, count(t, dbPath))

	list, err := m.List()
	require.NoError(t, err)
	require.Len(t, list, 2, "restore backs up the current database first")
	assert.Equal(t, 2, count(t, list[0].Path))
}

func TestRestoreRejectsInvalid(t *testing.T) {
	ctx := context.Background()
	dbPath := setupDB(t, 1)
	m := NewManager(dbPath)

	assert.Error(t, m.Restore(ctx, filepath.Join(t.TempDir(), "nope.db")))

	junk := filepath.Join(t.TempDir(), "junk.db")
	require.NoError(t, os.WriteFile(junk, []byte("definitely not sqlite"), 0600))
	assert.Error(t, m.Restore(ctx, junk))
	assert.Equal(t, 1, count(t, dbPath))
}
