package backlog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/julianstephens/doselit/internal/models"
	"github.com/julianstephens/doselit/internal/status"
	"github.com/julianstephens/doselit/internal/storage/memory"
	"github.com/julianstephens/doselit/internal/storage/storagetest"
)

var today = time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)

func newStore(t *testing.T, timezone string) *memory.Store {
	t.Helper()
	s := memory.New()
	require.NoError(t, s.Init())
	settings := models.DefaultSettings()
	settings.Timezone = timezone
	require.NoError(t, s.SaveSettings(context.Background(), settings))
	return s
}

func TestDetectExcludesToday(t *testing.T) {
	s := newStore(t, "UTC")
	ctx := context.Background()
	tr := storagetest.NewTreatment("alice", "Diabetes")
	require.NoError(t, s.AddTreatment(ctx, tr))
	m := storagetest.NewMedication(tr.ID, "Metformin", 30, "08:00", "20:00")
	require.NoError(t, s.AddMedication(ctx, m))

	yesterdayLate := today.Add(-4 * time.Hour) // yesterday 20:00
	todayMorning := today.Add(8 * time.Hour)
	_, err := s.InsertIntakes(ctx, m.ID, []time.Time{yesterdayLate, todayMorning})
	require.NoError(t, err)

	b, err := NewDetector(s).Detect(ctx, "alice", today.Add(10*time.Hour))
	require.NoError(t, err)
	require.Equal(t, 1, b.Count())
	e := b.Entries()[0]
	assert.True(t, e.Intake.ScheduledTime.Equal(yesterdayLate))
	assert.Equal(t, status.Missed, e.Status)
	assert.Equal(t, "Metformin", e.Medication)
	assert.Equal(t, "Diabetes", e.Treatment)
	assert.Equal(t, 1, e.UnitsPerTake)

	found, ok := b.Find(e.Intake.ID)
	assert.True(t, ok)
	assert.Equal(t, e, found)
	_, ok = b.Find("nope")
	assert.False(t, ok)
}

func TestDetectExcludesResolvedAndGroups(t *testing.T) {
	s := newStore(t, "UTC")
	ctx := context.Background()
	tr := storagetest.NewTreatment("alice", "T")
	require.NoError(t, s.AddTreatment(ctx, tr))
	a := storagetest.NewMedication(tr.ID, "A", 30, "08:00")
	bMed := storagetest.NewMedication(tr.ID, "B", 30, "09:00")
	require.NoError(t, s.AddMedication(ctx, a))
	require.NoError(t, s.AddMedication(ctx, bMed))

	d1 := today.AddDate(0, 0, -2)
	d2 := today.AddDate(0, 0, -1)
	_, err := s.InsertIntakes(ctx, a.ID, []time.Time{d1.Add(8 * time.Hour), d2.Add(8 * time.Hour)})
	require.NoError(t, err)
	_, err = s.InsertIntakes(ctx, bMed.ID, []time.Time{d1.Add(9 * time.Hour), d2.Add(9 * time.Hour)})
	require.NoError(t, err)

	aIntakes, err := s.ListIntakes(ctx, models.IntakeFilter{MedicationID: a.ID})
	require.NoError(t, err)
	taken := aIntakes[1].ScheduledTime
	require.NoError(t, s.UpdateIntakeStatus(ctx, aIntakes[1].ID, models.IntakeTaken, &taken))
	bIntakes, err := s.ListIntakes(ctx, models.IntakeFilter{MedicationID: bMed.ID})
	require.NoError(t, err)
	require.NoError(t, s.UpdateIntakeStatus(ctx, bIntakes[0].ID, models.IntakeSkipped, nil))

	backlog, err := NewDetector(s).Detect(ctx, "alice", today.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, backlog.Groups, 2)
	assert.Equal(t, "A", backlog.Groups[0].Medication)
	assert.Len(t, backlog.Groups[0].Entries, 1)
	assert.True(t, backlog.Groups[0].Entries[0].Intake.ScheduledTime.Equal(d1.Add(8*time.Hour)))
	assert.Equal(t, "B", backlog.Groups[1].Medication)
	assert.True(t, backlog.Groups[1].Entries[0].Intake.ScheduledTime.Equal(d2.Add(9*time.Hour)))
	assert.Equal(t, 2, backlog.Count())
}

func TestDetectScopedByUser(t *testing.T) {
	s := newStore(t, "UTC")
	ctx := context.Background()
	tr := storagetest.NewTreatment("bob", "T")
	require.NoError(t, s.AddTreatment(ctx, tr))
	m := storagetest.NewMedication(tr.ID, "M", 30, "08:00")
	require.NoError(t, s.AddMedication(ctx, m))
	_, err := s.InsertIntakes(ctx, m.ID, []time.Time{today.AddDate(0, 0, -1)})
	require.NoError(t, err)

	b, err := NewDetector(s).Detect(ctx, "alice", today.Add(time.Hour))
	require.NoError(t, err)
	assert.Zero(t, b.Count())
}

func TestDetectUsesConfiguredTimezone(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	s := newStore(t, "America/New_York")
	ctx := context.Background()
	tr := storagetest.NewTreatment("alice", "T")
	require.NoError(t, s.AddTreatment(ctx, tr))
	m := storagetest.NewMedication(tr.ID, "M", 30, "08:00", "20:00")
	require.NoError(t, s.AddMedication(ctx, m))

	yesterday := time.Date(2025, 3, 9, 20, 0, 0, 0, ny)
	morning := time.Date(2025, 3, 10, 8, 0, 0, 0, ny)
	_, err = s.InsertIntakes(ctx, m.ID, []time.Time{yesterday.UTC(), morning.UTC()})
	require.NoError(t, err)

	// 21:00 in New York is already the next day in UTC.
	now := time.Date(2025, 3, 10, 21, 0, 0, 0, ny).UTC()
	require.Equal(t, 11, now.Day())

	b, err := NewDetector(s).Detect(ctx, "alice", now)
	require.NoError(t, err)
	require.Equal(t, 1, b.Count())
	assert.True(t, b.Entries()[0].Intake.ScheduledTime.Equal(yesterday))

	// Just past midnight in New York, this morning's intake becomes backlog.
	b, err = NewDetector(s).Detect(ctx, "alice", time.Date(2025, 3, 11, 0, 5, 0, 0, ny).UTC())
	require.NoError(t, err)
	assert.Equal(t, 2, b.Count())
}
