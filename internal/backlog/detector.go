// Package backlog finds pending intakes left over from previous days.
package backlog

import (
	"context"
	"fmt"
	"time"

	"github.com/julianstephens/doselit/internal/intakes"
	"github.com/julianstephens/doselit/internal/logger"
	"github.com/julianstephens/doselit/internal/models"
	"github.com/julianstephens/doselit/internal/status"
	"github.com/julianstephens/doselit/internal/storage"
	"github.com/julianstephens/doselit/internal/utils"
)

// Entry is one backlogged intake with the context the reconciliation
// surface needs to display it.
type Entry struct {
	Intake       models.Intake
	Status       status.Display
	MedicationID string
	Medication   string
	Posology     string
	UnitsPerTake int
	Treatment    string
}

// Group is the backlog of a single medication, oldest first.
type Group struct {
	MedicationID string
	Medication   string
	Posology     string
	Treatment    string
	Entries      []Entry
}

// Backlog is the detector output, grouped by medication in order of each
// medication's oldest missed intake.
type Backlog struct {
	Groups []Group
}

// Count is the total number of backlogged intakes.
func (b Backlog) Count() int {
	n := 0
	for _, g := range b.Groups {
		n += len(g.Entries)
	}
	return n
}

// Entries flattens the groups, preserving order.
func (b Backlog) Entries() []Entry {
	var out []Entry
	for _, g := range b.Groups {
		out = append(out, g.Entries...)
	}
	return out
}

// Find returns the entry for intakeID.
func (b Backlog) Find(intakeID string) (Entry, bool) {
	for _, g := range b.Groups {
		for _, e := range g.Entries {
			if e.Intake.ID == intakeID {
				return e, true
			}
		}
	}
	return Entry{}, false
}

type Detector struct {
	store   storage.Provider
	intakes *intakes.Store
}

func NewDetector(store storage.Provider) *Detector {
	return &Detector{store: store, intakes: intakes.New(store)}
}

func (d *Detector) location(ctx context.Context, fallback *time.Location) *time.Location {
	settings, err := d.store.GetSettings(ctx)
	if err != nil {
		return fallback
	}
	loc, err := utils.LocationFromSettings(settings)
	if err != nil {
		logger.Warn("invalid timezone setting", "error", err)
		return fallback
	}
	return loc
}

// Detect returns every pending intake of the user scheduled before the start
// of today in the configured timezone. Intakes from today, even far past
// their grace window, are not backlog.
func (d *Detector) Detect(ctx context.Context, userID string, now time.Time) (Backlog, error) {
	now = now.In(d.location(ctx, now.Location()))
	pending, err := d.intakes.ListPending(ctx, models.IntakeFilter{
		UserID: userID,
		To:     utils.StartOfDay(now),
	})
	if err != nil {
		return Backlog{}, fmt.Errorf("listing backlog: %w", err)
	}

	meds := make(map[string]models.Medication)
	treatments := make(map[string]string)
	index := make(map[string]int)
	var b Backlog

	for _, in := range pending {
		m, ok := meds[in.MedicationID]
		if !ok {
			m, err = d.store.GetMedication(ctx, in.MedicationID)
			if err != nil {
				return Backlog{}, fmt.Errorf("loading medication %s: %w", in.MedicationID, err)
			}
			meds[in.MedicationID] = m
		}
		tName, ok := treatments[m.TreatmentID]
		if !ok {
			t, err := d.store.GetTreatment(ctx, m.TreatmentID)
			if err != nil {
				logger.Warn("backlog intake without treatment", "medication", m.ID, "error", err)
			}
			tName = t.Name
			treatments[m.TreatmentID] = tName
		}

		entry := Entry{
			Intake:       in,
			Status:       status.ClassifyIntake(in, now),
			MedicationID: m.ID,
			Medication:   m.Name,
			Posology:     m.Posology,
			UnitsPerTake: m.UnitsPerTake,
			Treatment:    tName,
		}

		i, ok := index[m.ID]
		if !ok {
			i = len(b.Groups)
			index[m.ID] = i
			b.Groups = append(b.Groups, Group{
				MedicationID: m.ID,
				Medication:   m.Name,
				Posology:     m.Posology,
				Treatment:    tName,
			})
		}
		b.Groups[i].Entries = append(b.Groups[i].Entries, entry)
	}

	return b, nil
}
