package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHelpersAreNoopsBeforeInit(t *testing.T) {
	old := Logger
	Logger = nil
	defer func() { Logger = old }()

	assert.NotPanics(t, func() {
		Debug("debug")
		Info("info")
		Warn("warn", "k", "v")
		Error("error")
	})
}

func TestInitWritesToRotatingFile(t *testing.T) {
	old := Logger
	defer func() { Logger = old }()

	dir := t.TempDir()
	require.NoError(t, Init(Config{ConfigDir: dir}))

	Warn("stock clamped", "medication", "med-1")

	data, err := os.ReadFile(filepath.Join(dir, "logs", "doselit.log"))
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "stock clamped"))
	assert.True(t, strings.Contains(string(data), "med-1"))
}

func TestInitDefaultLevelDropsInfo(t *testing.T) {
	old := Logger
	defer func() { Logger = old }()

	dir := t.TempDir()
	require.NoError(t, Init(Config{ConfigDir: dir}))

	Info("should not appear")
	Warn("should appear")

	data, err := os.ReadFile(filepath.Join(dir, "logs", "doselit.log"))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "should not appear")
	assert.Contains(t, string(data), "should appear")
}
