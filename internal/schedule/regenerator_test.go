package schedule

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/julianstephens/doselit/internal/metrics"
	"github.com/julianstephens/doselit/internal/models"
	"github.com/julianstephens/doselit/internal/storage"
	"github.com/julianstephens/doselit/internal/storage/memory"
	"github.com/julianstephens/doselit/internal/storage/storagetest"
)

// now is 2025-01-10 06:00 UTC, before the first slot of the day.
var now = time.Date(2025, 1, 10, 6, 0, 0, 0, time.UTC)

func newStore(t *testing.T, horizon int) *memory.Store {
	t.Helper()
	s := memory.New()
	require.NoError(t, s.Init())
	settings := models.DefaultSettings()
	settings.Timezone = "UTC"
	settings.HorizonDays = horizon
	require.NoError(t, s.SaveSettings(context.Background(), settings))
	return s
}

func addMed(t *testing.T, s storage.Provider, tr models.Treatment, times ...string) models.Medication {
	t.Helper()
	m := storagetest.NewMedication(tr.ID, "Med "+tr.Name, 30, times...)
	require.NoError(t, s.AddMedication(context.Background(), m))
	return m
}

func addTreatment(t *testing.T, s storage.Provider, name string) models.Treatment {
	t.Helper()
	tr := storagetest.NewTreatment("alice", name)
	require.NoError(t, s.AddTreatment(context.Background(), tr))
	return tr
}

func TestRunIsIdempotent(t *testing.T) {
	s := newStore(t, 2)
	tr := addTreatment(t, s, "A")
	m := addMed(t, s, tr, "08:00", "20:00")
	r := NewRegenerator(s, nil)

	res, err := r.Run(context.Background(), "alice", now)
	require.NoError(t, err)
	assert.True(t, res.OK())
	assert.Equal(t, 1, res.Medications)
	assert.Equal(t, 6, res.Inserted, "3 days × 2 slots")

	res, err = r.Run(context.Background(), "alice", now)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Inserted)

	all, err := s.ListIntakes(context.Background(), models.IntakeFilter{MedicationID: m.ID})
	require.NoError(t, err)
	assert.Len(t, all, 6)
}

func TestRunSkipsPastSlots(t *testing.T) {
	s := newStore(t, 0)
	tr := addTreatment(t, s, "A")
	m := addMed(t, s, tr, "08:00", "20:00")

	res, err := NewRegenerator(s, nil).Run(context.Background(), "alice", now.Add(4*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Inserted)

	all, err := s.ListIntakes(context.Background(), models.IntakeFilter{MedicationID: m.ID})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, 20, all[0].ScheduledTime.Hour())
}

func TestRunMonotonicWhenHorizonShrinks(t *testing.T) {
	s := newStore(t, 5)
	tr := addTreatment(t, s, "A")
	m := addMed(t, s, tr, "08:00")
	r := NewRegenerator(s, nil)

	_, err := r.Run(context.Background(), "alice", now)
	require.NoError(t, err)

	settings, err := s.GetSettings(context.Background())
	require.NoError(t, err)
	settings.HorizonDays = 1
	require.NoError(t, s.SaveSettings(context.Background(), settings))

	res, err := r.Run(context.Background(), "alice", now)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Inserted)

	all, err := s.ListIntakes(context.Background(), models.IntakeFilter{MedicationID: m.ID})
	require.NoError(t, err)
	assert.Len(t, all, 6, "existing future intakes are kept")
}

func TestRunIgnoresInactiveTreatmentsAndOtherUsers(t *testing.T) {
	s := newStore(t, 1)
	ctx := context.Background()
	active := addTreatment(t, s, "Active")
	inactive := addTreatment(t, s, "Inactive")
	require.NoError(t, s.SetTreatmentActive(ctx, inactive.ID, false))
	addMed(t, s, active, "08:00")
	addMed(t, s, inactive, "08:00")

	bob := storagetest.NewTreatment("bob", "Bob")
	require.NoError(t, s.AddTreatment(ctx, bob))
	addMed(t, s, bob, "08:00")

	res, err := NewRegenerator(s, nil).Run(ctx, "alice", now)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Medications)
	assert.Equal(t, 2, res.Inserted)
}

func TestRunReportsUnscheduled(t *testing.T) {
	s := newStore(t, 1)
	tr := addTreatment(t, s, "A")
	m := addMed(t, s, tr)

	res, err := NewRegenerator(s, nil).Run(context.Background(), "alice", now)
	require.NoError(t, err)
	assert.True(t, res.OK())
	require.Len(t, res.Unscheduled, 1)
	assert.Equal(t, m.ID, res.Unscheduled[0].MedicationID)
	assert.Contains(t, res.Summary(), "1 without time slots")
}

func TestRunClipsToTreatmentDates(t *testing.T) {
	s := newStore(t, 14)
	ctx := context.Background()
	tr := storagetest.NewTreatment("alice", "Short")
	tr.StartDate = "2025-01-12"
	tr.EndDate = "2025-01-13"
	require.NoError(t, s.AddTreatment(ctx, tr))
	addMed(t, s, tr, "08:00")

	res, err := NewRegenerator(s, nil).Run(ctx, "alice", now)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Inserted)
}

type flakyStore struct {
	*memory.Store
	failFor string
}

func (f *flakyStore) InsertIntakes(ctx context.Context, medicationID string, instants []time.Time) (int, error) {
	if medicationID == f.failFor {
		return 0, errors.New("connection reset")
	}
	return f.Store.InsertIntakes(ctx, medicationID, instants)
}

func TestRunIsolatesFailures(t *testing.T) {
	mem := newStore(t, 1)
	tr := addTreatment(t, mem, "A")
	bad := addMed(t, mem, tr, "08:00")
	addMed(t, mem, tr, "09:00")

	reg := prometheus.NewRegistry()
	r := NewRegenerator(&flakyStore{Store: mem, failFor: bad.ID}, metrics.NewCollector(reg))

	res, err := r.Run(context.Background(), "alice", now)
	require.NoError(t, err)
	assert.False(t, res.OK())
	require.Len(t, res.Failures, 1)
	assert.Equal(t, bad.ID, res.Failures[0].MedicationID)
	assert.Equal(t, 2, res.Inserted)
	assert.Contains(t, res.Summary(), "1 failed")
}

type brokenList struct {
	*memory.Store
}

func (brokenList) ListTreatments(context.Context, string, bool) ([]models.Treatment, error) {
	return nil, errors.New("db down")
}

func TestRunReturnsErrorWhenCycleCannotStart(t *testing.T) {
	mem := newStore(t, 1)
	_, err := NewRegenerator(brokenList{mem}, nil).Run(context.Background(), "alice", now)
	assert.Error(t, err)
}

func TestHorizon(t *testing.T) {
	tr := models.Treatment{StartDate: "2025-01-01"}
	w, err := Horizon(now, 14, tr, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC), w.From)
	assert.Equal(t, time.Date(2025, 1, 24, 0, 0, 0, 0, time.UTC), w.To)

	tr.EndDate = "2025-01-05"
	w, err = Horizon(now, 14, tr, time.UTC)
	require.NoError(t, err)
	assert.True(t, w.Empty())

	_, err = Horizon(now, 14, models.Treatment{StartDate: "bad"}, time.UTC)
	assert.Error(t, err)
}

func TestRegenerateMedication(t *testing.T) {
	s := newStore(t, 1)
	tr := addTreatment(t, s, "A")
	m := addMed(t, s, tr, "08:00")

	n, err := NewRegenerator(s, nil).RegenerateMedication(context.Background(), m.ID, now)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = NewRegenerator(s, nil).RegenerateMedication(context.Background(), "missing", now)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
