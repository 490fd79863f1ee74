package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/julianstephens/doselit/internal/storage"
	"github.com/julianstephens/doselit/internal/storage/storagetest"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore(filepath.Join(t.TempDir(), "nested", "doselit.db"))
	require.NoError(t, s.Init())
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestProviderContract(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Provider { return newTestStore(t) })
}

func TestLoadRequiresInit(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "absent.db"))
	assert.ErrorIs(t, s.Load(), storage.ErrNotInitialized)
}

func TestLoadAfterInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doselit.db")
	s := NewStore(path)
	require.NoError(t, s.Init())
	require.NoError(t, s.Close())

	_, err := os.Stat(path)
	require.NoError(t, err)

	reopened := NewStore(path)
	require.NoError(t, reopened.Load())
	defer reopened.Close()

	settings, err := reopened.GetSettings(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, settings.Timezone)
	assert.Equal(t, path, reopened.GetConfigPath())
}

func TestInitIsRepeatable(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Init())
	n, err := s.Migrate(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestForeignKeysEnforced(t *testing.T) {
	s := newTestStore(t)
	med := storagetest.NewMedication("no-such-treatment", "Orphan", 1, "08:00")
	assert.Error(t, s.AddMedication(context.Background(), med))
}
