package meds

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/julianstephens/doselit/internal/cli/clitest"
	"github.com/julianstephens/doselit/internal/models"
	"github.com/julianstephens/doselit/internal/storage"
)

func ptr[T any](v T) *T { return &v }

func onlyMedication(t *testing.T, env *clitest.Env) models.Medication {
	t.Helper()
	list, err := env.Store.ListMedicationsForUser(context.Background(), clitest.UserID, false)
	require.NoError(t, err)
	require.Len(t, list, 1)
	return list[0]
}

func TestMedAddCmd_WithTimes(t *testing.T) {
	env := clitest.New(t)
	tr := env.AddTreatment(t, "Angine")

	cmd := &MedAddCmd{Treatment: tr.ID, Name: "Doliprane", Times: []string{"20:00", "08:00"}, Stock: 10, Threshold: 2, Units: 1}
	require.NoError(t, cmd.Validate())
	require.NoError(t, cmd.Run(env.Ctx))

	m := onlyMedication(t, env)
	assert.Equal(t, []string{"08:00", "20:00"}, m.Times)

	// 20:00 today, then both slots on the two following days.
	intakes := env.Intakes(t, m.ID)
	require.Len(t, intakes, 5)
	assert.Equal(t, 20, intakes[0].ScheduledTime.Hour())
	for _, in := range intakes {
		assert.Equal(t, models.IntakePending, in.Status)
		assert.False(t, in.ScheduledTime.Before(clitest.Now))
	}
}

func TestMedAddCmd_FromPosology(t *testing.T) {
	env := clitest.New(t)
	tr := env.AddTreatment(t, "Angine")

	cmd := &MedAddCmd{Treatment: tr.ID, Name: "Amoxicilline", Posology: "1 comprimé matin et soir", Stock: 12, Threshold: 2, Units: 1}
	require.NoError(t, cmd.Run(env.Ctx))

	m := onlyMedication(t, env)
	assert.Equal(t, []string{"08:00", "20:00"}, m.Times)
	assert.Len(t, env.Intakes(t, m.ID), 5)
}

func TestMedAddCmd_UnknownPosologyIsUnscheduled(t *testing.T) {
	env := clitest.New(t)
	tr := env.AddTreatment(t, "Angine")

	cmd := &MedAddCmd{Treatment: tr.ID, Name: "Spray", Posology: "as needed", Threshold: 2, Units: 1}
	require.NoError(t, cmd.Run(env.Ctx))

	m := onlyMedication(t, env)
	assert.Empty(t, m.Times)
	assert.Empty(t, env.Intakes(t, m.ID))
}

func TestMedAddCmd_Validate(t *testing.T) {
	assert.Error(t, (&MedAddCmd{Stock: -1, Units: 1}).Validate())
	assert.Error(t, (&MedAddCmd{Threshold: -1, Units: 1}).Validate())
	assert.Error(t, (&MedAddCmd{Units: 0}).Validate())
	assert.NoError(t, (&MedAddCmd{Units: 1}).Validate())
}

func TestMedAddCmd_BadTime(t *testing.T) {
	env := clitest.New(t)
	tr := env.AddTreatment(t, "Angine")

	cmd := &MedAddCmd{Treatment: tr.ID, Name: "Doliprane", Times: []string{"25:00"}, Units: 1}
	assert.Error(t, cmd.Run(env.Ctx))
}

func TestMedAddCmd_UnknownTreatment(t *testing.T) {
	env := clitest.New(t)

	cmd := &MedAddCmd{Treatment: "missing", Name: "Doliprane", Units: 1}
	assert.ErrorIs(t, cmd.Run(env.Ctx), storage.ErrNotFound)
}

func TestMedListCmd(t *testing.T) {
	env := clitest.New(t)
	tr := env.AddTreatment(t, "Angine")
	m := env.AddMedication(t, tr.ID, "Doliprane", 10, "08:00", "20:00")

	require.NoError(t, (&MedListCmd{ShowIDs: true}).Run(env.Ctx))
	require.NoError(t, (&MedListCmd{Treatment: tr.ID}).Run(env.Ctx))
	assert.NotEmpty(t, env.Intakes(t, m.ID))
}

func TestMedEditCmd_TimesRegenerates(t *testing.T) {
	env := clitest.New(t)
	tr := env.AddTreatment(t, "Angine")
	m := env.AddMedication(t, tr.ID, "Doliprane", 10)

	require.NoError(t, (&MedEditCmd{ID: m.ID, Times: []string{"12:00"}}).Run(env.Ctx))

	got, err := env.Store.GetMedication(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"12:00"}, got.Times)
	assert.Len(t, env.Intakes(t, m.ID), 3)
}

func TestMedEditCmd_Fields(t *testing.T) {
	env := clitest.New(t)
	tr := env.AddTreatment(t, "Angine")
	m := env.AddMedication(t, tr.ID, "Doliprane", 10)

	require.NoError(t, (&MedEditCmd{ID: m.ID, Name: ptr("Paracétamol"), Threshold: ptr(4), Units: ptr(2)}).Run(env.Ctx))

	got, err := env.Store.GetMedication(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Equal(t, "Paracétamol", got.Name)
	assert.Equal(t, 4, got.MinThreshold)
	assert.Equal(t, 2, got.UnitsPerTake)

	assert.Error(t, (&MedEditCmd{ID: m.ID, Units: ptr(0)}).Run(env.Ctx))
}

func TestMedStockCmd_Validate(t *testing.T) {
	assert.Error(t, (&MedStockCmd{Set: ptr(1), Add: ptr(1)}).Validate())
	assert.Error(t, (&MedStockCmd{Set: ptr(-1)}).Validate())
	assert.NoError(t, (&MedStockCmd{Add: ptr(-3)}).Validate())
	assert.NoError(t, (&MedStockCmd{}).Validate())
}

func TestMedStockCmd_SetAlertsBelowThreshold(t *testing.T) {
	env := clitest.New(t)
	tr := env.AddTreatment(t, "Angine")
	m := env.AddMedication(t, tr.ID, "Doliprane", 10, "08:00")

	require.NoError(t, (&MedStockCmd{ID: m.ID, Set: ptr(20)}).Run(env.Ctx))
	assert.Equal(t, 0, env.Sender.Count())

	require.NoError(t, (&MedStockCmd{ID: m.ID, Set: ptr(1)}).Run(env.Ctx))
	got, err := env.Store.GetMedication(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.CurrentStock)
	assert.Equal(t, 1, env.Sender.Count())
	assert.Equal(t, m.ID, env.Sender.Sent[0].MedicationID)
}

func TestMedStockCmd_AddClampsAtZero(t *testing.T) {
	env := clitest.New(t)
	tr := env.AddTreatment(t, "Angine")
	m := env.AddMedication(t, tr.ID, "Doliprane", 3)

	require.NoError(t, (&MedStockCmd{ID: m.ID, Add: ptr(-5)}).Run(env.Ctx))

	got, err := env.Store.GetMedication(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.CurrentStock)
}

func TestMedStockCmd_ShowDoesNotAlert(t *testing.T) {
	env := clitest.New(t)
	tr := env.AddTreatment(t, "Angine")
	m := env.AddMedication(t, tr.ID, "Doliprane", 1)

	require.NoError(t, (&MedStockCmd{ID: m.ID}).Run(env.Ctx))
	assert.Equal(t, 0, env.Sender.Count())
}

func TestMedDeleteCmd(t *testing.T) {
	env := clitest.New(t)
	tr := env.AddTreatment(t, "Angine")
	m := env.AddMedication(t, tr.ID, "Doliprane", 10, "20:00")
	require.NoError(t, (&MedListCmd{}).Run(env.Ctx))
	require.NotEmpty(t, env.Intakes(t, m.ID))

	require.NoError(t, (&MedDeleteCmd{ID: m.ID}).Run(env.Ctx))

	_, err := env.Store.GetMedication(context.Background(), m.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.Empty(t, env.Intakes(t, m.ID))
}

func TestVars(t *testing.T) {
	v := Vars()
	assert.Contains(t, v, "threshold")
	assert.Contains(t, v, "units")
}
