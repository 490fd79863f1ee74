package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/julianstephens/doselit/internal/calendar"
	"github.com/julianstephens/doselit/internal/constants"
)

func TestNeedsLoad(t *testing.T) {
	assert.True(t, needsLoad(nil))
	assert.True(t, needsLoad([]string{"today"}))
	assert.True(t, needsLoad([]string{"med", "add", "<name>"}))
	assert.False(t, needsLoad([]string{"init"}))
	assert.False(t, needsLoad([]string{"keyring", "status"}))
	assert.False(t, needsLoad([]string{"doctor"}))
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/doselit.db", expandHome("/var/lib/doselit.db"))
	assert.Equal(t, "postgres://db/doselit", expandHome("postgres://db/doselit"))
	assert.Equal(t, home, expandHome("~"))
	assert.Equal(t, filepath.Join(home, ".config", "doselit.db"), expandHome("~/.config/doselit.db"))
}

var idPattern = regexp.MustCompile(`\(ID: ([0-9a-f-]+)\)`)

type runner struct {
	bin string
	env []string
}

func (r runner) run(t *testing.T, args ...string) string {
	t.Helper()
	cmd := exec.Command(r.bin, args...)
	cmd.Env = r.env
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "doselit %v failed:\n%s", args, out)
	return string(out)
}

func (r runner) stdout(t *testing.T, args ...string) []byte {
	t.Helper()
	cmd := exec.Command(r.bin, args...)
	cmd.Env = r.env
	out, err := cmd.Output()
	require.NoError(t, err, "doselit %v failed", args)
	return out
}

func (r runner) id(t *testing.T, args ...string) string {
	t.Helper()
	out := r.run(t, args...)
	m := idPattern.FindStringSubmatch(out)
	require.Len(t, m, 2, "no ID in output of %v:\n%s", args, out)
	return m[1]
}

func TestWorkflow(t *testing.T) {
	if testing.Short() {
		t.Skip("builds the binary")
	}
	dir := t.TempDir()
	bin := filepath.Join(dir, "doselit")
	build := exec.Command("go", "build", "-o", bin, ".")
	out, err := build.CombinedOutput()
	require.NoError(t, err, "build failed:\n%s", out)

	var env []string
	for _, e := range os.Environ() {
		if !strings.HasPrefix(e, "HOME=") && !strings.HasPrefix(e, constants.EnvDBConnection+"=") {
			env = append(env, e)
		}
	}
	dbPath := filepath.Join(dir, "data", "doselit.db")
	env = append(env,
		"HOME="+dir,
		fmt.Sprintf("%s=%s", constants.EnvDBConnection, dbPath),
		"DOSELIT_USER=e2e",
	)
	r := runner{bin: bin, env: env}

	r.run(t, "init")
	r.run(t, "settings", "set", constants.SettingTimezone, "UTC")
	r.run(t, "settings", "set", constants.SettingRemindersEnabled, "false")
	assert.Equal(t, "UTC\n", r.run(t, "settings", "get", constants.SettingTimezone))

	treatmentID := r.id(t, "treatment", "add", "Angine", "-p", "ENT")
	medID := r.id(t, "med", "add", "-t", treatmentID, "Amoxicilline", "-p", "1 comprimé matin et soir", "--stock", "30")

	assert.Contains(t, r.run(t, "med", "list", "--show-ids"), medID)
	assert.Contains(t, r.run(t, "treatment", "list"), "Angine")
	r.run(t, "today")
	r.run(t, "backlog")
	r.run(t, "regen")
	r.run(t, "med", "stock", medID, "--add", "5")

	var report struct {
		Week struct {
			Days int `json:"days"`
		} `json:"week"`
	}
	require.NoError(t, json.Unmarshal(r.stdout(t, "stats", "--json"), &report))
	assert.Equal(t, constants.AdherenceShortWindowDays, report.Week.Days)

	var events []calendar.Event
	require.NoError(t, json.Unmarshal(r.stdout(t, "calendar", "export", "--days", "3"), &events))
	assert.NotEmpty(t, events)

	assert.Contains(t, r.run(t, "backup", "create"), "Backup created")
	r.run(t, "backup", "list")
	assert.Contains(t, r.run(t, "doctor"), "All diagnostics passed")

	r.run(t, "treatment", "end", treatmentID)
	r.run(t, "med", "delete", medID)
	r.run(t, "treatment", "delete", treatmentID)
	assert.Contains(t, r.run(t, "treatment", "list", "--all"), "No treatments found")
}
