// Package calendar maps intakes and treatment end dates to calendar events
// and computes the changes needed to mirror them.
package calendar

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/julianstephens/doselit/internal/constants"
	"github.com/julianstephens/doselit/internal/models"
	"github.com/julianstephens/doselit/internal/status"
	"github.com/julianstephens/doselit/internal/storage"
	"github.com/julianstephens/doselit/internal/utils"
)

type EventType string

const (
	EventIntake      EventType = "intake"
	EventDoctorVisit EventType = "doctor_visit"
)

const (
	intakePrefix = "intake_"
	doctorPrefix = "doctor_"

	doctorVisitHour     = 14
	doctorVisitDuration = time.Hour
)

// Event is a calendar entry owned by doselit.
type Event struct {
	ID          string         `json:"id"`
	Type        EventType      `json:"event_type"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Start       time.Time      `json:"start"`
	End         time.Time      `json:"end"`
	Status      status.Display `json:"status,omitempty"`
	SourceID    string         `json:"source_id"`
}

func (e Event) sameContent(o Event) bool {
	return e.Title == o.Title && e.Description == o.Description &&
		e.Start.Equal(o.Start) && e.End.Equal(o.End)
}

// Owned reports whether id was produced by this package.
func Owned(id string) bool {
	return strings.HasPrefix(id, intakePrefix) || strings.HasPrefix(id, doctorPrefix)
}

// FromIntake maps one intake. The title carries the classified status so a
// mirror shows the same label as every other view.
func FromIntake(in models.Intake, med models.Medication, treatment string, now time.Time) Event {
	st := status.ClassifyIntake(in, now)
	name := med.Name
	if name == "" {
		name = "Medication"
	}
	posology := med.Posology
	if posology == "" {
		posology = "-"
	}
	return Event{
		ID:          intakePrefix + in.ID,
		Type:        EventIntake,
		Title:       st.Label() + " - " + name,
		Description: fmt.Sprintf("Treatment: %s\nPosology: %s\nStatus: %s", treatment, posology, st.Label()),
		Start:       in.ScheduledTime,
		End:         in.ScheduledTime.Add(constants.CalendarEventDuration),
		Status:      st,
		SourceID:    in.ID,
	}
}

// DoctorVisit maps a treatment's end date to a follow-up appointment at
// 14:00 in loc. Treatments without an end date yield false.
func DoctorVisit(t models.Treatment, loc *time.Location) (Event, bool) {
	if t.EndDate == "" {
		return Event{}, false
	}
	day, err := utils.ParseDateInLocation(t.EndDate, loc)
	if err != nil {
		return Event{}, false
	}
	start := day.Add(doctorVisitHour * time.Hour).UTC()
	pathology := t.Pathology
	if pathology == "" {
		pathology = "not specified"
	}
	return Event{
		ID:          doctorPrefix + t.ID,
		Type:        EventDoctorVisit,
		Title:       "Doctor visit - " + t.Name,
		Description: fmt.Sprintf("End of treatment: %s\nPathology: %s", t.Name, pathology),
		Start:       start,
		End:         start.Add(doctorVisitDuration),
		SourceID:    t.ID,
	}, true
}

// OpKind is the kind of change to apply to a mirror.
type OpKind string

const (
	OpCreate OpKind = "create"
	OpUpdate OpKind = "update"
	OpDelete OpKind = "delete"
)

type Op struct {
	Kind  OpKind `json:"op"`
	Event Event  `json:"event"`
}

// Diff compares the events last written to a mirror with the current ones.
// Events in previous that this package does not own are left alone.
func Diff(previous, current []Event) []Op {
	prev := make(map[string]Event, len(previous))
	for _, e := range previous {
		prev[e.ID] = e
	}
	cur := make(map[string]bool, len(current))

	var ops []Op
	for _, e := range current {
		cur[e.ID] = true
		old, ok := prev[e.ID]
		switch {
		case !ok:
			ops = append(ops, Op{Kind: OpCreate, Event: e})
		case !old.sameContent(e):
			ops = append(ops, Op{Kind: OpUpdate, Event: e})
		}
	}
	for _, e := range previous {
		if !cur[e.ID] && Owned(e.ID) {
			ops = append(ops, Op{Kind: OpDelete, Event: e})
		}
	}
	return ops
}

// Builder loads events from the store.
type Builder struct {
	store storage.Provider
}

func NewBuilder(store storage.Provider) *Builder {
	return &Builder{store: store}
}

// Build returns the user's intake events scheduled in [from, to) and the
// doctor visits of their treatments ending in that range, ordered by start.
func (b *Builder) Build(ctx context.Context, userID string, from, to, now time.Time) ([]Event, error) {
	settings, err := b.store.GetSettings(ctx)
	if err != nil {
		settings = models.DefaultSettings()
	}
	loc, err := utils.LocationFromSettings(settings)
	if err != nil {
		loc = time.Local
	}
	now = now.In(loc)

	treatments, err := b.store.ListTreatments(ctx, userID, false)
	if err != nil {
		return nil, fmt.Errorf("listing treatments: %w", err)
	}
	names := make(map[string]string, len(treatments))
	var events []Event
	for _, t := range treatments {
		names[t.ID] = t.Name
		if ev, ok := DoctorVisit(t, loc); ok && !ev.Start.Before(from) && ev.Start.Before(to) {
			events = append(events, ev)
		}
	}

	meds, err := b.store.ListMedicationsForUser(ctx, userID, false)
	if err != nil {
		return nil, fmt.Errorf("listing medications: %w", err)
	}
	byID := make(map[string]models.Medication, len(meds))
	for _, m := range meds {
		byID[m.ID] = m
	}

	intakes, err := b.store.ListIntakes(ctx, models.IntakeFilter{UserID: userID, From: from, To: to})
	if err != nil {
		return nil, fmt.Errorf("listing intakes: %w", err)
	}
	for _, in := range intakes {
		m := byID[in.MedicationID]
		events = append(events, FromIntake(in, m, names[m.TreatmentID], now))
	}

	sort.SliceStable(events, func(i, j int) bool { return events[i].Start.Before(events[j].Start) })
	return events, nil
}
