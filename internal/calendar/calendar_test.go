package calendar

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

func TestFromIntake(t *testing.T) {
	in := models.Intake{ID: "i1", ScheduledTime: today.Add(8 * time.Hour), Status: models.IntakePending}
	med := models.Medication{Name: "Doliprane", Posology: "1g"}

	ev := FromIntake(in, med, "Flu", today.Add(7*time.Hour))
	assert.Equal(t, "intake_i1", ev.ID)
	assert.Equal(t, "Upcoming - Doliprane", ev.Title)
	assert.Equal(t, 30*time.Minute, ev.End.Sub(ev.Start))
	assert.Equal(t, "Treatment: Flu\nPosology: 1g\nStatus: Upcoming", ev.Description)

	late := FromIntake(in, med, "Flu", today.Add(10*time.Hour))
	assert.Equal(t, status.Late, late.Status)
	assert.Equal(t, "Late - Doliprane", late.Title)
}

func TestDoctorVisit(t *testing.T) {
	paris, err := time.LoadLocation("Europe/Paris")
	require.NoError(t, err)

	ev, ok := DoctorVisit(models.Treatment{ID: "t1", Name: "Antibio", EndDate: "2025-01-15"}, paris)
	require.True(t, ok)
	assert.Equal(t, "doctor_t1", ev.ID)
	assert.Equal(t, time.Date(2025, 1, 15, 13, 0, 0, 0, time.UTC), ev.Start)
	assert.Equal(t, time.Hour, ev.End.Sub(ev.Start))
	assert.Contains(t, ev.Description, "not specified")

	_, ok = DoctorVisit(models.Treatment{ID: "t2"}, paris)
	assert.False(t, ok)
}

func TestDiff(t *testing.T) {
	a := Event{ID: "intake_a", Title: "Upcoming - X", Start: today}
	b := Event{ID: "intake_b", Title: "Upcoming - Y", Start: today}
	c := Event{ID: "intake_c", Title: "Upcoming - Z", Start: today}
	foreign := Event{ID: "birthday", Title: "Cake"}

	bLate := b
	bLate.Title = "Late - Y"
	d := Event{ID: "doctor_d", Title: "Doctor visit - T"}

	ops := Diff([]Event{a, b, c, foreign}, []Event{a, bLate, d})
	require.Len(t, ops, 3)
	assert.Equal(t, Op{Kind: OpUpdate, Event: bLate}, ops[0])
	assert.Equal(t, Op{Kind: OpCreate, Event: d}, ops[1])
	assert.Equal(t, Op{Kind: OpDelete, Event: c}, ops[2])

	assert.Empty(t, Diff([]Event{a}, []Event{a}))
}

func TestBuild(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	require.NoError(t, s.Init())
	settings := models.DefaultSettings()
	settings.Timezone = "UTC"
	require.NoError(t, s.SaveSettings(ctx, settings))

	tr := storagetest.NewTreatment("alice", "Otitis")
	tr.EndDate = "2025-01-12"
	require.NoError(t, s.AddTreatment(ctx, tr))
	m := storagetest.NewMedication(tr.ID, "Amoxicillin", 20, "08:00", "20:00")
	require.NoError(t, s.AddMedication(ctx, m))
	_, err := s.InsertIntakes(ctx, m.ID, []time.Time{today.Add(8 * time.Hour), today.Add(20 * time.Hour), today.AddDate(0, 0, 5)})
	require.NoError(t, err)

	events, err := NewBuilder(s).Build(ctx, "alice", today, today.AddDate(0, 0, 3), today.Add(9*time.Hour))
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "Late - Amoxicillin", events[0].Title)
	assert.Equal(t, "Upcoming - Amoxicillin", events[1].Title)
	assert.Contains(t, events[1].Description, "Otitis")
	assert.Equal(t, EventDoctorVisit, events[2].Type)
	assert.Equal(t, today.AddDate(0, 0, 2).Add(14*time.Hour), events[2].Start)
}
