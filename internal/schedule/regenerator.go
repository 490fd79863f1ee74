// Package schedule materializes future intakes from each active medication's
// slots over a rolling horizon.
package schedule

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/julianstephens/doselit/internal/constants"
	"github.com/julianstephens/doselit/internal/intakes"
	"github.com/julianstephens/doselit/internal/logger"
	"github.com/julianstephens/doselit/internal/metrics"
	"github.com/julianstephens/doselit/internal/models"
	"github.com/julianstephens/doselit/internal/posology"
	"github.com/julianstephens/doselit/internal/storage"
	"github.com/julianstephens/doselit/internal/utils"
)

// Failure is one medication the cycle could not regenerate.
type Failure struct {
	MedicationID string
	Medication   string
	Err          error
}

// Warning flags a medication that was skipped without being an error.
type Warning struct {
	MedicationID string
	Medication   string
	Reason       string
}

// Result summarizes a regeneration cycle.
type Result struct {
	Medications int
	Inserted    int
	Unscheduled []Warning
	Failures    []Failure
}

// OK reports whether every medication was processed without error.
func (r Result) OK() bool {
	return len(r.Failures) == 0
}

func (r Result) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d medication(s) checked, %d intake(s) scheduled", r.Medications, r.Inserted)
	if n := len(r.Unscheduled); n > 0 {
		fmt.Fprintf(&b, ", %d without time slots", n)
	}
	if n := len(r.Failures); n > 0 {
		fmt.Fprintf(&b, ", %d failed (will retry next cycle)", n)
	}
	return b.String()
}

type Regenerator struct {
	store   storage.Provider
	intakes *intakes.Store
	metrics metrics.Recorder
}

func NewRegenerator(store storage.Provider, recorder metrics.Recorder) *Regenerator {
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	return &Regenerator{
		store:   store,
		intakes: intakes.New(store),
		metrics: recorder,
	}
}

// Window is the civil-date range a medication is expanded over.
type Window struct {
	From time.Time // midnight of the first day, in loc
	To   time.Time // midnight of the last day, in loc
}

// Empty reports whether the window contains no day.
func (w Window) Empty() bool {
	return w.To.Before(w.From)
}

// Horizon returns the civil days [today, today+days] in loc, clipped to the treatment's
// start and end dates.
func Horizon(now time.Time, days int, t models.Treatment, loc *time.Location) (Window, error) {
	today := utils.StartOfDay(now.In(loc))
	w := Window{From: today, To: today.AddDate(0, 0, days)}

	if t.StartDate != "" {
		start, err := utils.ParseDateInLocation(t.StartDate, loc)
		if err != nil {
			return Window{}, fmt.Errorf("invalid start date %q: %w", t.StartDate, err)
		}
		if start.After(w.From) {
			w.From = start
		}
	}
	if t.EndDate != "" {
		end, err := utils.ParseDateInLocation(t.EndDate, loc)
		if err != nil {
			return Window{}, fmt.Errorf("invalid end date %q: %w", t.EndDate, err)
		}
		if end.Before(w.To) {
			w.To = end
		}
	}
	return w, nil
}

// Run expands every medication of the user's active treatments and inserts
// the missing intakes scheduled at or after now. Per-medication failures are
// collected in the result; the returned error is reserved for failures that
// prevent the cycle from starting. Existing intakes are never modified or
// removed.
func (r *Regenerator) Run(ctx context.Context, userID string, now time.Time) (Result, error) {
	start := time.Now()
	defer func() { r.metrics.RecordRegenerationLatency(time.Since(start)) }()

	settings, loc := storage.CivilSettings(ctx, r.store)

	treatments, err := r.store.ListTreatments(ctx, userID, true)
	if err != nil {
		r.metrics.RecordRegenerationFailure("list")
		return Result{}, fmt.Errorf("listing active treatments: %w", err)
	}

	var res Result
	for _, t := range treatments {
		meds, err := r.store.ListMedications(ctx, t.ID)
		if err != nil {
			logger.Error("listing medications failed", "treatment", t.ID, "error", err)
			r.metrics.RecordRegenerationFailure("list")
			res.Failures = append(res.Failures, Failure{Medication: t.Name, Err: fmt.Errorf("listing medications of %s: %w", t.Name, err)})
			continue
		}
		for _, m := range meds {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			res.Medications++
			if !m.IsScheduled() {
				logger.Warn("medication has no time slots", "medication", m.ID, "name", m.Name)
				res.Unscheduled = append(res.Unscheduled, Warning{MedicationID: m.ID, Medication: m.Name, Reason: "no time slots"})
				continue
			}
			n, err := r.regenerate(ctx, t, m, now, settings.HorizonDays, loc)
			if err != nil {
				logger.Error("regeneration failed", "medication", m.ID, "error", err)
				r.metrics.RecordRegenerationFailure("medication")
				res.Failures = append(res.Failures, Failure{MedicationID: m.ID, Medication: m.Name, Err: err})
				continue
			}
			res.Inserted += n
		}
	}

	r.metrics.RecordIntakesGenerated(res.Inserted)
	logger.Info("regeneration cycle completed", "user", userID, "medications", res.Medications,
		"inserted", res.Inserted, "failures", len(res.Failures))
	return res, nil
}

// RegenerateMedication expands a single medication, typically right after it
// was created or its slots were edited.
func (r *Regenerator) RegenerateMedication(ctx context.Context, medicationID string, now time.Time) (int, error) {
	m, err := r.store.GetMedication(ctx, medicationID)
	if err != nil {
		return 0, err
	}
	t, err := r.store.GetTreatment(ctx, m.TreatmentID)
	if err != nil {
		return 0, err
	}
	if !t.IsActive || !m.IsScheduled() {
		return 0, nil
	}
	settings, loc := storage.CivilSettings(ctx, r.store)
	n, err := r.regenerate(ctx, t, m, now, settings.HorizonDays, loc)
	if err == nil {
		r.metrics.RecordIntakesGenerated(n)
	}
	return n, err
}

func (r *Regenerator) regenerate(ctx context.Context, t models.Treatment, m models.Medication, now time.Time, days int, loc *time.Location) (int, error) {
	w, err := Horizon(now, days, t, loc)
	if err != nil {
		return 0, err
	}
	if w.Empty() {
		return 0, nil
	}

	instants, err := posology.Expand(m.Times, w.From, w.To, loc)
	if err != nil {
		return 0, fmt.Errorf("expanding %s: %w", m.Name, err)
	}

	// Expansion only ever moves forward: slots earlier than now are left alone.
	kept := instants[:0]
	for _, at := range instants {
		if !at.Before(now) {
			kept = append(kept, at)
		}
	}

	return r.intakes.InsertMissing(ctx, m.ID, kept)
}

// DefaultInterval is the cadence of the periodic regeneration task.
const DefaultInterval = constants.DefaultRegenInterval
