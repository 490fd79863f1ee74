package intakes

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/julianstephens/doselit/internal/models"
	"github.com/julianstephens/doselit/internal/storage"
	"github.com/julianstephens/doselit/internal/storage/memory"
	"github.com/julianstephens/doselit/internal/storage/storagetest"
)

var day = time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)

func setup(t *testing.T) (*Store, *memory.Store, models.Medication) {
	t.Helper()
	mem := memory.New()
	require.NoError(t, mem.Init())
	ctx := context.Background()
	tr := storagetest.NewTreatment("alice", "T")
	require.NoError(t, mem.AddTreatment(ctx, tr))
	med := storagetest.NewMedication(tr.ID, "M", 10, "08:00", "20:00")
	require.NoError(t, mem.AddMedication(ctx, med))
	return New(mem), mem, med
}

func TestInsertMissingIsIdempotent(t *testing.T) {
	s, _, med := setup(t)
	ctx := context.Background()
	instants := []time.Time{day.Add(8 * time.Hour), day.Add(20 * time.Hour), day.Add(32 * time.Hour)}

	n, err := s.InsertMissing(ctx, med.ID, instants)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = s.InsertMissing(ctx, med.ID, instants)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	n, err = s.InsertMissing(ctx, med.ID, append(instants, day.Add(44*time.Hour)))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	all, err := s.List(ctx, models.IntakeFilter{MedicationID: med.ID})
	require.NoError(t, err)
	seen := map[int64]bool{}
	for _, in := range all {
		assert.False(t, seen[in.ScheduledTime.Unix()], "duplicate instant")
		seen[in.ScheduledTime.Unix()] = true
	}
	assert.Len(t, all, 4)
}

func TestInsertMissingEmpty(t *testing.T) {
	s, _, med := setup(t)
	n, err := s.InsertMissing(context.Background(), med.ID, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMissing(t *testing.T) {
	a, b := day.Add(time.Hour), day.Add(2*time.Hour)
	existing := map[int64]time.Time{a.Unix(): a}
	assert.Equal(t, []time.Time{b}, Missing([]time.Time{a, b}, existing))
}

type failingProvider struct {
	storage.Provider
	err error
}

func (f failingProvider) ExistingIntakeTimes(context.Context, string, time.Time, time.Time) ([]time.Time, error) {
	return nil, nil
}

func (f failingProvider) InsertIntakes(context.Context, string, []time.Time) (int, error) {
	return 0, f.err
}

func TestInsertMissingSurfacesErrors(t *testing.T) {
	boom := errors.New("disk full")
	s := New(failingProvider{err: boom})
	_, err := s.InsertMissing(context.Background(), "m1", []time.Time{day})
	assert.ErrorIs(t, err, boom)
}

func TestResolveAndUpdate(t *testing.T) {
	s, _, med := setup(t)
	ctx := context.Background()
	_, err := s.InsertMissing(ctx, med.ID, []time.Time{day.Add(8 * time.Hour), day.Add(20 * time.Hour)})
	require.NoError(t, err)

	pending, err := s.ListPending(ctx, models.IntakeFilter{MedicationID: med.ID})
	require.NoError(t, err)
	require.Len(t, pending, 2)

	takenAt := day.Add(8*time.Hour + 5*time.Minute)
	require.NoError(t, s.Resolve(ctx, pending[0].ID, models.IntakeTaken, &takenAt))
	err = s.Resolve(ctx, pending[0].ID, models.IntakeSkipped, nil)
	assert.ErrorIs(t, err, storage.ErrAlreadyResolved)
	assert.Error(t, s.Resolve(ctx, pending[1].ID, models.IntakePending, nil))

	require.NoError(t, s.UpdateStatus(ctx, pending[1].ID, models.IntakeSkipped, &takenAt))
	got, err := s.Get(ctx, pending[1].ID)
	require.NoError(t, err)
	assert.Equal(t, models.IntakeSkipped, got.Status)
	assert.Nil(t, got.TakenAt, "taken_at is only kept for taken intakes")

	pending, err = s.ListPending(ctx, models.IntakeFilter{MedicationID: med.ID})
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestCountForDay(t *testing.T) {
	s, _, med := setup(t)
	ctx := context.Background()
	_, err := s.InsertMissing(ctx, med.ID, []time.Time{
		day.Add(8 * time.Hour), day.Add(20 * time.Hour), day.Add(32 * time.Hour),
	})
	require.NoError(t, err)

	n, err := s.CountForDay(ctx, med.ID, day.Add(12*time.Hour), time.UTC)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = s.CountForDay(ctx, med.ID, day.AddDate(0, 0, 5), time.UTC)
	require.NoError(t, err)
	assert.Zero(t, n)
}
