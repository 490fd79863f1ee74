package validation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/julianstephens/doselit/internal/models"
	"github.com/julianstephens/doselit/internal/storage/memory"
	"github.com/julianstephens/doselit/internal/storage/storagetest"
)

var at = time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC)

func types(r ValidationResult) []ConflictType {
	var out []ConflictType
	for _, c := range r.Conflicts {
		out = append(out, c.Type)
	}
	return out
}

func TestValidateClean(t *testing.T) {
	tr := storagetest.NewTreatment("u", "T")
	m := storagetest.NewMedication(tr.ID, "M", 10, "08:00")
	taken := at
	snap := Snapshot{
		Treatments:  []models.Treatment{tr},
		Medications: []models.Medication{m},
		Intakes: []models.Intake{
			{ID: "i1", MedicationID: m.ID, ScheduledTime: at, Status: models.IntakeTaken, TakenAt: &taken},
			{ID: "i2", MedicationID: m.ID, ScheduledTime: at.Add(24 * time.Hour), Status: models.IntakePending},
		},
	}
	r := New().Validate(snap, "2025-01-10")
	assert.False(t, r.HasConflicts())
	assert.Equal(t, "No conflicts detected.", r.FormatReport())
}

func TestValidateDetectsProblems(t *testing.T) {
	tr := storagetest.NewTreatment("u", "Ended")
	tr.EndDate = "2025-01-05"

	noSlots := storagetest.NewMedication(tr.ID, "NoSlots", 10)
	bad := storagetest.NewMedication(tr.ID, "Bad", -2, "8h")
	bad.UnitsPerTake = 0
	orphan := storagetest.NewMedication("missing", "Orphan", 1, "09:00")

	snap := Snapshot{
		Treatments:  []models.Treatment{tr},
		Medications: []models.Medication{noSlots, bad, orphan},
		Intakes: []models.Intake{
			{ID: "d1", MedicationID: bad.ID, ScheduledTime: at, Status: models.IntakePending},
			{ID: "d2", MedicationID: bad.ID, ScheduledTime: at, Status: models.IntakePending},
			{ID: "t1", MedicationID: bad.ID, ScheduledTime: at.Add(time.Hour), Status: models.IntakeTaken},
			{ID: "s1", MedicationID: bad.ID, ScheduledTime: at.Add(2 * time.Hour), Status: models.IntakeSkipped, TakenAt: &at},
			{ID: "o1", MedicationID: "gone", ScheduledTime: at, Status: "lost"},
		},
	}
	r := New().Validate(snap, "2025-01-10")
	assert.True(t, r.HasErrors())
	assert.ElementsMatch(t, []ConflictType{
		ConflictEndedStillActive,
		ConflictUnscheduled,
		ConflictInvalidSlot,
		ConflictNegativeStock,
		ConflictInvalidUnits,
		ConflictOrphanedMedication,
		ConflictOrphanedIntake,
		ConflictInvalidIntakeStatus,
		ConflictTakenWithoutTime,
		ConflictUnexpectedTakenAt,
		ConflictDuplicateIntake,
	}, types(r))
	assert.Contains(t, r.FormatReport(), "[error]")

	for _, c := range r.Conflicts {
		if c.Type == ConflictDuplicateIntake {
			assert.ElementsMatch(t, []string{"d1", "d2"}, c.IDs)
		}
	}
}

func TestAutoFix(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	require.NoError(t, s.Init())
	tr := storagetest.NewTreatment("alice", "T")
	tr.EndDate = "2025-01-05"
	require.NoError(t, s.AddTreatment(ctx, tr))
	m := storagetest.NewMedication(tr.ID, "M", 10, "08:00")
	require.NoError(t, s.AddMedication(ctx, m))
	_, err := s.InsertIntakes(ctx, m.ID, []time.Time{at})
	require.NoError(t, err)
	in, err := s.ListIntakes(ctx, models.IntakeFilter{MedicationID: m.ID})
	require.NoError(t, err)
	require.NoError(t, s.UpdateIntakeStatus(ctx, in[0].ID, models.IntakeTaken, nil))

	snap, err := Load(ctx, s, "alice")
	require.NoError(t, err)
	r := New().Validate(snap, "2025-01-10")
	require.ElementsMatch(t, []ConflictType{ConflictEndedStillActive, ConflictTakenWithoutTime}, types(r))

	actions := AutoFix(ctx, s, snap, r.Conflicts)
	assert.Len(t, actions, 2)

	snap, err = Load(ctx, s, "alice")
	require.NoError(t, err)
	r = New().Validate(snap, "2025-01-10")
	assert.False(t, r.HasConflicts(), r.FormatReport())

	fixed, err := s.GetIntake(ctx, in[0].ID)
	require.NoError(t, err)
	require.NotNil(t, fixed.TakenAt)
	assert.True(t, fixed.TakenAt.Equal(at))
}
