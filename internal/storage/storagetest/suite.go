// Package storagetest holds the behavioural contract every storage.Provider must satisfy.
package storagetest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/julianstephens/doselit/internal/models"
	"github.com/julianstephens/doselit/internal/storage"
)

// Factory returns an initialized, empty provider. Cleanup is the factory's job.
type Factory func(t *testing.T) storage.Provider

var base = time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)

// NewTreatment builds an active treatment for userID.
func NewTreatment(userID, name string) models.Treatment {
	return models.Treatment{
		ID:        uuid.New().String(),
		UserID:    userID,
		Name:      name,
		StartDate: "2025-01-01",
		IsActive:  true,
		CreatedAt: base,
	}
}

// NewMedication builds a medication with the given slots and stock.
func NewMedication(treatmentID, name string, stock int, times ...string) models.Medication {
	return models.Medication{
		ID:           uuid.New().String(),
		TreatmentID:  treatmentID,
		Name:         name,
		Posology:     "1 tablet",
		Times:        times,
		CurrentStock: stock,
		MinThreshold: 5,
		UnitsPerTake: 1,
		CreatedAt:    base,
	}
}

// Run executes the whole contract against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("settings", func(t *testing.T) { testSettings(t, newStore(t)) })
	t.Run("treatments", func(t *testing.T) { testTreatments(t, newStore(t)) })
	t.Run("medications", func(t *testing.T) { testMedications(t, newStore(t)) })
	t.Run("insert intakes idempotent", func(t *testing.T) { testInsertIdempotent(t, newStore(t)) })
	t.Run("concurrent inserts", func(t *testing.T) { testConcurrentInserts(t, newStore(t)) })
	t.Run("list intakes", func(t *testing.T) { testListIntakes(t, newStore(t)) })
	t.Run("update and resolve", func(t *testing.T) { testUpdateAndResolve(t, newStore(t)) })
	t.Run("cascade delete", func(t *testing.T) { testCascade(t, newStore(t)) })
}

func seed(t *testing.T, s storage.Provider, userID string, times ...string) (models.Treatment, models.Medication) {
	t.Helper()
	ctx := context.Background()
	tr := NewTreatment(userID, "Hypertension")
	require.NoError(t, s.AddTreatment(ctx, tr))
	med := NewMedication(tr.ID, "Amlodipine", 30, times...)
	require.NoError(t, s.AddMedication(ctx, med))
	return tr, med
}

func testSettings(t *testing.T, s storage.Provider) {
	ctx := context.Background()
	settings, err := s.GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.DefaultSettings(), settings)

	settings.Timezone = "Europe/Paris"
	settings.HorizonDays = 7
	require.NoError(t, s.SaveSettings(ctx, settings))

	got, err := s.GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Europe/Paris", got.Timezone)
	assert.Equal(t, 7, got.HorizonDays)
}

func testTreatments(t *testing.T, s storage.Provider) {
	ctx := context.Background()
	a := NewTreatment("alice", "A")
	b := NewTreatment("alice", "B")
	b.StartDate = "2025-02-01"
	other := NewTreatment("bob", "C")
	for _, tr := range []models.Treatment{a, b, other} {
		require.NoError(t, s.AddTreatment(ctx, tr))
	}

	list, err := s.ListTreatments(ctx, "alice", false)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "A", list[0].Name)

	require.NoError(t, s.SetTreatmentActive(ctx, a.ID, false))
	active, err := s.ListTreatments(ctx, "alice", true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, b.ID, active[0].ID)

	b.EndDate = "2025-03-01"
	b.Notes = "check-up"
	require.NoError(t, s.UpdateTreatment(ctx, b))
	got, err := s.GetTreatment(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "2025-03-01", got.EndDate)
	assert.Equal(t, "check-up", got.Notes)
	assert.True(t, got.IsActive)
	assert.True(t, got.CreatedAt.Equal(base))

	_, err = s.GetTreatment(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.ErrorIs(t, s.SetTreatmentActive(ctx, "missing", true), storage.ErrNotFound)
}

func testMedications(t *testing.T, s storage.Provider) {
	ctx := context.Background()
	tr, med := seed(t, s, "alice", "08:00", "20:00")

	got, err := s.GetMedication(ctx, med.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"08:00", "20:00"}, got.Times)
	assert.Equal(t, 30, got.CurrentStock)

	require.NoError(t, s.UpdateMedicationStock(ctx, med.ID, 12))
	got, err = s.GetMedication(ctx, med.ID)
	require.NoError(t, err)
	assert.Equal(t, 12, got.CurrentStock)

	got.Times = []string{"09:00"}
	got.UnitsPerTake = 2
	require.NoError(t, s.UpdateMedication(ctx, got))
	got, err = s.GetMedication(ctx, med.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"09:00"}, got.Times)
	assert.Equal(t, 2, got.UnitsPerTake)

	unscheduled := NewMedication(tr.ID, "Vitamin D", 10)
	require.NoError(t, s.AddMedication(ctx, unscheduled))
	got, err = s.GetMedication(ctx, unscheduled.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Times)

	byTreatment, err := s.ListMedications(ctx, tr.ID)
	require.NoError(t, err)
	assert.Len(t, byTreatment, 2)

	require.NoError(t, s.SetTreatmentActive(ctx, tr.ID, false))
	all, err := s.ListMedicationsForUser(ctx, "alice", false)
	require.NoError(t, err)
	assert.Len(t, all, 2)
	active, err := s.ListMedicationsForUser(ctx, "alice", true)
	require.NoError(t, err)
	assert.Empty(t, active)
	others, err := s.ListMedicationsForUser(ctx, "bob", false)
	require.NoError(t, err)
	assert.Empty(t, others)

	_, err = s.GetMedication(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func testInsertIdempotent(t *testing.T, s storage.Provider) {
	ctx := context.Background()
	_, med := seed(t, s, "alice", "08:00")

	instants := []time.Time{base.Add(8 * time.Hour), base.Add(32 * time.Hour), base.Add(8 * time.Hour)}
	n, err := s.InsertIntakes(ctx, med.ID, instants)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = s.InsertIntakes(ctx, med.ID, instants)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	n, err = s.InsertIntakes(ctx, med.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	existing, err := s.ExistingIntakeTimes(ctx, med.ID, base, base.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, existing, 1)
	assert.True(t, existing[0].Equal(base.Add(8*time.Hour)))
}

func testConcurrentInserts(t *testing.T, s storage.Provider) {
	ctx := context.Background()
	_, med := seed(t, s, "alice", "08:00", "20:00")

	var instants []time.Time
	for d := 0; d < 5; d++ {
		day := base.AddDate(0, 0, d)
		instants = append(instants, day.Add(8*time.Hour), day.Add(20*time.Hour))
	}

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		total int
	)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := s.InsertIntakes(ctx, med.ID, instants)
			assert.NoError(t, err)
			mu.Lock()
			total += n
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, len(instants), total)
	all, err := s.ListIntakes(ctx, models.IntakeFilter{MedicationID: med.ID})
	require.NoError(t, err)
	assert.Len(t, all, len(instants))
}

func testListIntakes(t *testing.T, s storage.Provider) {
	ctx := context.Background()
	trA, medA := seed(t, s, "alice", "08:00")
	_, medB := seed(t, s, "bob", "08:00")

	_, err := s.InsertIntakes(ctx, medA.ID, []time.Time{
		base.Add(32 * time.Hour), base.Add(8 * time.Hour), base.Add(56 * time.Hour),
	})
	require.NoError(t, err)
	_, err = s.InsertIntakes(ctx, medB.ID, []time.Time{base.Add(8 * time.Hour)})
	require.NoError(t, err)

	alice, err := s.ListIntakes(ctx, models.IntakeFilter{UserID: "alice"})
	require.NoError(t, err)
	require.Len(t, alice, 3)
	for i := 1; i < len(alice); i++ {
		assert.True(t, alice[i-1].ScheduledTime.Before(alice[i].ScheduledTime))
	}
	assert.Equal(t, models.IntakePending, alice[0].Status)
	assert.Nil(t, alice[0].TakenAt)

	window, err := s.ListIntakes(ctx, models.IntakeFilter{
		TreatmentID: trA.ID,
		From:        base.Add(8 * time.Hour),
		To:          base.Add(56 * time.Hour),
	})
	require.NoError(t, err)
	assert.Len(t, window, 2)

	limited, err := s.ListIntakes(ctx, models.IntakeFilter{UserID: "alice", Limit: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.True(t, limited[0].ScheduledTime.Equal(base.Add(8*time.Hour)))

	taken := base.Add(9 * time.Hour)
	require.NoError(t, s.UpdateIntakeStatus(ctx, alice[0].ID, models.IntakeTaken, &taken))
	pending, err := s.ListIntakes(ctx, models.IntakeFilter{
		UserID:   "alice",
		Statuses: []models.IntakeStatus{models.IntakePending},
	})
	require.NoError(t, err)
	assert.Len(t, pending, 2)
}

func testUpdateAndResolve(t *testing.T, s storage.Provider) {
	ctx := context.Background()
	_, med := seed(t, s, "alice", "08:00")
	_, err := s.InsertIntakes(ctx, med.ID, []time.Time{base.Add(8 * time.Hour), base.Add(32 * time.Hour)})
	require.NoError(t, err)
	list, err := s.ListIntakes(ctx, models.IntakeFilter{MedicationID: med.ID})
	require.NoError(t, err)
	require.Len(t, list, 2)

	takenAt := base.Add(8*time.Hour + 10*time.Minute)
	require.NoError(t, s.ResolvePendingIntake(ctx, list[0].ID, models.IntakeTaken, &takenAt))
	got, err := s.GetIntake(ctx, list[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.IntakeTaken, got.Status)
	require.NotNil(t, got.TakenAt)
	assert.True(t, got.TakenAt.Equal(takenAt))

	err = s.ResolvePendingIntake(ctx, list[0].ID, models.IntakeSkipped, nil)
	assert.ErrorIs(t, err, storage.ErrAlreadyResolved)
	err = s.ResolvePendingIntake(ctx, "missing", models.IntakeSkipped, nil)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, s.UpdateIntakeStatus(ctx, list[0].ID, models.IntakeSkipped, nil))
	got, err = s.GetIntake(ctx, list[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.IntakeSkipped, got.Status)
	assert.Nil(t, got.TakenAt)

	assert.Error(t, s.UpdateIntakeStatus(ctx, list[1].ID, models.IntakeStatus("missed"), nil))
	assert.ErrorIs(t, s.UpdateIntakeStatus(ctx, "missing", models.IntakeTaken, nil), storage.ErrNotFound)
}

func testCascade(t *testing.T, s storage.Provider) {
	ctx := context.Background()
	tr, med := seed(t, s, "alice", "08:00")
	second := NewMedication(tr.ID, "Bisoprolol", 10, "08:00")
	require.NoError(t, s.AddMedication(ctx, second))
	for _, id := range []string{med.ID, second.ID} {
		_, err := s.InsertIntakes(ctx, id, []time.Time{base.Add(8 * time.Hour)})
		require.NoError(t, err)
	}

	require.NoError(t, s.DeleteMedication(ctx, second.ID))
	list, err := s.ListIntakes(ctx, models.IntakeFilter{UserID: "alice"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, med.ID, list[0].MedicationID)

	require.NoError(t, s.DeleteTreatment(ctx, tr.ID))
	_, err = s.GetMedication(ctx, med.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = s.GetIntake(ctx, list[0].ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.ErrorIs(t, s.DeleteTreatment(ctx, tr.ID), storage.ErrNotFound)
}

// AllFor is a filter returning every intake owned by userID.
func AllFor(userID string) models.IntakeFilter {
	return models.IntakeFilter{UserID: userID}
}
