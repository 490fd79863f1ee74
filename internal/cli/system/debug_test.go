package system

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/julianstephens/doselit/internal/cli"
	"github.com/julianstephens/doselit/internal/cli/clitest"
	"github.com/julianstephens/doselit/internal/models"
	"github.com/julianstephens/doselit/internal/storage"
)

func debugEnv(t *testing.T) (*cli.Context, models.Medication) {
	t.Helper()
	env := clitest.New(t)
	tr := env.AddTreatment(t, "Angine")
	m := env.AddMedication(t, tr.ID, "Doliprane", 10, "08:00", "20:00")
	return env.Ctx, m
}

func TestDebugDBPathCmd(t *testing.T) {
	store := clitest.SQLite(t)
	out := []byte(clitest.Stdout(t, func() error { return (&DebugDBPathCmd{}).Run(clitest.Context(store)) }))

	var got map[string]string
	require.NoError(t, json.Unmarshal(out, &got))
	assert.Equal(t, store.GetConfigPath(), got["path"])
}

func TestDebugDumpTreatmentCmd(t *testing.T) {
	ctx, m := debugEnv(t)
	out := []byte(clitest.Stdout(t, func() error { return (&DebugDumpTreatmentCmd{ID: m.TreatmentID}).Run(ctx) }))

	var got struct {
		ID          string              `json:"id"`
		Medications []models.Medication `json:"medications"`
	}
	require.NoError(t, json.Unmarshal(out, &got))
	assert.Equal(t, m.TreatmentID, got.ID)
	require.Len(t, got.Medications, 1)
	assert.Equal(t, "Doliprane", got.Medications[0].Name)
}

func TestDebugDumpTreatmentCmd_NotFound(t *testing.T) {
	ctx, _ := debugEnv(t)
	err := (&DebugDumpTreatmentCmd{ID: "missing"}).Run(ctx)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestDebugDumpMedicationCmd(t *testing.T) {
	ctx, m := debugEnv(t)
	out := []byte(clitest.Stdout(t, func() error { return (&DebugDumpMedicationCmd{ID: m.ID}).Run(ctx) }))

	var got models.Medication
	require.NoError(t, json.Unmarshal(out, &got))
	assert.Equal(t, m.ID, got.ID)
	assert.Equal(t, 10, got.CurrentStock)
	assert.Equal(t, []string{"08:00", "20:00"}, got.Times)
}

func TestDebugDumpIntakesCmd(t *testing.T) {
	ctx, m := debugEnv(t)

	out := []byte(clitest.Stdout(t, func() error { return (&DebugDumpIntakesCmd{ID: m.ID}).Run(ctx) }))
	var all []models.Intake
	require.NoError(t, json.Unmarshal(out, &all))
	assert.Len(t, all, 5)

	out = []byte(clitest.Stdout(t, func() error { return (&DebugDumpIntakesCmd{ID: m.ID, Date: "today"}).Run(ctx) }))
	var today []models.Intake
	require.NoError(t, json.Unmarshal(out, &today))
	require.Len(t, today, 1)
	assert.Equal(t, 20, today[0].ScheduledTime.UTC().Hour())

	err := (&DebugDumpIntakesCmd{ID: m.ID, Date: "10/03/2025"}).Run(ctx)
	assert.ErrorContains(t, err, "invalid date format")
}

func TestDebugDumpSettingsCmd(t *testing.T) {
	env := clitest.New(t)
	out := []byte(clitest.Stdout(t, func() error { return (&DebugDumpSettingsCmd{}).Run(env.Ctx) }))

	var got map[string]any
	require.NoError(t, json.Unmarshal(out, &got))
	assert.Equal(t, "UTC", got["timezone"])
	assert.Equal(t, models.DefaultSettings().RegenInterval.String(), got["regen_interval"])
}
