// Package validation checks stored data for integrity problems reported by
// the doctor command.
package validation

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/julianstephens/doselit/internal/constants"
	"github.com/julianstephens/doselit/internal/models"
	"github.com/julianstephens/doselit/internal/storage"
)

// ConflictType represents the type of validation conflict
type ConflictType string

const (
	ConflictDuplicateIntake     ConflictType = "duplicate_intake"
	ConflictUnscheduled         ConflictType = "unscheduled_medication"
	ConflictNegativeStock       ConflictType = "negative_stock"
	ConflictInvalidUnits        ConflictType = "invalid_units_per_take"
	ConflictInvalidSlot         ConflictType = "invalid_time_slot"
	ConflictTakenWithoutTime    ConflictType = "taken_without_time"
	ConflictUnexpectedTakenAt   ConflictType = "unexpected_taken_at"
	ConflictOrphanedMedication  ConflictType = "orphaned_medication"
	ConflictOrphanedIntake      ConflictType = "orphaned_intake"
	ConflictInvalidDate         ConflictType = "invalid_date"
	ConflictEndedStillActive    ConflictType = "ended_treatment_active"
	ConflictInvalidIntakeStatus ConflictType = "invalid_intake_status"
)

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Conflict represents a detected integrity problem
type Conflict struct {
	Type        ConflictType
	Severity    Severity
	Description string
	IDs         []string // ids of the records involved, used by auto-fix
}

// ValidationResult contains all detected conflicts
type ValidationResult struct {
	Conflicts []Conflict
}

// HasConflicts returns true if there are any conflicts
func (vr *ValidationResult) HasConflicts() bool {
	return len(vr.Conflicts) > 0
}

// HasErrors reports whether any conflict is more than a warning.
func (vr *ValidationResult) HasErrors() bool {
	for _, c := range vr.Conflicts {
		if c.Severity == SeverityError {
			return true
		}
	}
	return false
}

// FormatReport returns a human-readable report of all conflicts
func (vr *ValidationResult) FormatReport() string {
	if !vr.HasConflicts() {
		return "No conflicts detected."
	}
	var b strings.Builder
	b.WriteString("Conflicts detected:\n")
	for _, c := range vr.Conflicts {
		fmt.Fprintf(&b, "- [%s] %s\n", c.Severity, c.Description)
	}
	return b.String()
}

func (vr *ValidationResult) add(t ConflictType, sev Severity, ids []string, format string, args ...any) {
	vr.Conflicts = append(vr.Conflicts, Conflict{
		Type:        t,
		Severity:    sev,
		Description: fmt.Sprintf(format, args...),
		IDs:         ids,
	})
}

// Snapshot is the data a Validator inspects.
type Snapshot struct {
	Treatments  []models.Treatment
	Medications []models.Medication
	Intakes     []models.Intake
}

// Load reads every record visible to userID.
func Load(ctx context.Context, store storage.Provider, userID string) (Snapshot, error) {
	var snap Snapshot
	var err error
	if snap.Treatments, err = store.ListTreatments(ctx, userID, false); err != nil {
		return Snapshot{}, fmt.Errorf("listing treatments: %w", err)
	}
	if snap.Medications, err = store.ListMedicationsForUser(ctx, userID, false); err != nil {
		return Snapshot{}, fmt.Errorf("listing medications: %w", err)
	}
	if snap.Intakes, err = store.ListIntakes(ctx, models.IntakeFilter{UserID: userID}); err != nil {
		return Snapshot{}, fmt.Errorf("listing intakes: %w", err)
	}
	return snap, nil
}

// Validator validates stored treatments, medications and intakes
type Validator struct{}

func New() *Validator {
	return &Validator{}
}

// Validate runs every check. today is the civil date (YYYY-MM-DD) used to
// flag ended treatments that are still active.
func (v *Validator) Validate(snap Snapshot, today string) ValidationResult {
	result := ValidationResult{Conflicts: []Conflict{}}

	treatments := make(map[string]models.Treatment, len(snap.Treatments))
	for _, t := range snap.Treatments {
		treatments[t.ID] = t
		v.checkTreatment(&result, t, today)
	}

	meds := make(map[string]models.Medication, len(snap.Medications))
	for _, m := range snap.Medications {
		meds[m.ID] = m
		t, ok := treatments[m.TreatmentID]
		if !ok {
			result.add(ConflictOrphanedMedication, SeverityError, []string{m.ID},
				"Medication %q references missing treatment %s", m.Name, m.TreatmentID)
		}
		v.checkMedication(&result, m, ok && t.IsActive)
	}

	seen := make(map[string]map[int64][]string)
	for _, in := range snap.Intakes {
		m, ok := meds[in.MedicationID]
		if !ok {
			result.add(ConflictOrphanedIntake, SeverityError, []string{in.ID},
				"Intake %s references missing medication %s", in.ID, in.MedicationID)
		}
		v.checkIntake(&result, in, m.Name)

		byTime := seen[in.MedicationID]
		if byTime == nil {
			byTime = make(map[int64][]string)
			seen[in.MedicationID] = byTime
		}
		byTime[in.ScheduledTime.Unix()] = append(byTime[in.ScheduledTime.Unix()], in.ID)
	}

	for medID, byTime := range seen {
		for unix, ids := range byTime {
			if len(ids) > 1 {
				result.add(ConflictDuplicateIntake, SeverityError, ids,
					"Medication %q has %d intakes scheduled at %s", meds[medID].Name, len(ids),
					time.Unix(unix, 0).UTC().Format(time.RFC3339))
			}
		}
	}

	sort.SliceStable(result.Conflicts, func(i, j int) bool {
		return result.Conflicts[i].Type < result.Conflicts[j].Type
	})
	return result
}

func (v *Validator) checkTreatment(r *ValidationResult, t models.Treatment, today string) {
	if err := t.Validate(); err != nil {
		r.add(ConflictInvalidDate, SeverityError, []string{t.ID}, "Treatment %q is invalid: %v", t.Name, err)
		return
	}
	if t.IsActive && today != "" && t.HasEnded(today) {
		r.add(ConflictEndedStillActive, SeverityWarning, []string{t.ID},
			"Treatment %q ended on %s but is still active", t.Name, t.EndDate)
	}
}

func (v *Validator) checkMedication(r *ValidationResult, m models.Medication, active bool) {
	if active && !m.IsScheduled() {
		r.add(ConflictUnscheduled, SeverityWarning, []string{m.ID},
			"Medication %q has no time slots and will never be scheduled", m.Name)
	}
	for _, slot := range m.Times {
		if _, err := time.Parse(constants.TimeFormat, slot); err != nil {
			r.add(ConflictInvalidSlot, SeverityError, []string{m.ID},
				"Medication %q has invalid time slot %q", m.Name, slot)
		}
	}
	if m.CurrentStock < 0 {
		r.add(ConflictNegativeStock, SeverityError, []string{m.ID},
			"Medication %q has negative stock %d", m.Name, m.CurrentStock)
	}
	if m.UnitsPerTake < 1 {
		r.add(ConflictInvalidUnits, SeverityError, []string{m.ID},
			"Medication %q takes %d units per dose", m.Name, m.UnitsPerTake)
	}
}

func (v *Validator) checkIntake(r *ValidationResult, in models.Intake, med string) {
	if !in.Status.Valid() {
		r.add(ConflictInvalidIntakeStatus, SeverityError, []string{in.ID},
			"Intake %s of %q has unknown status %q", in.ID, med, in.Status)
		return
	}
	if in.Status == models.IntakeTaken && in.TakenAt == nil {
		r.add(ConflictTakenWithoutTime, SeverityWarning, []string{in.ID},
			"Intake %s of %q is taken but has no taken_at", in.ID, med)
	}
	if in.Status != models.IntakeTaken && in.TakenAt != nil {
		r.add(ConflictUnexpectedTakenAt, SeverityWarning, []string{in.ID},
			"Intake %s of %q is %s but has a taken_at", in.ID, med, in.Status)
	}
}

// FixAction represents an action taken during auto-fix
type FixAction struct {
	Action         string
	SourceConflict Conflict
}

// AutoFix repairs the conflicts that have an unambiguous fix: negative stock
// is reset to 0, taken intakes without taken_at get their scheduled time,
// stray taken_at values are cleared and ended treatments are deactivated.
func AutoFix(ctx context.Context, store storage.Provider, snap Snapshot, conflicts []Conflict) []FixAction {
	intakes := make(map[string]models.Intake, len(snap.Intakes))
	for _, in := range snap.Intakes {
		intakes[in.ID] = in
	}

	var actions []FixAction
	record := func(c Conflict, format string, args ...any) {
		actions = append(actions, FixAction{Action: fmt.Sprintf(format, args...), SourceConflict: c})
	}

	for _, c := range conflicts {
		for _, id := range c.IDs {
			var err error
			switch c.Type {
			case ConflictNegativeStock:
				if err = store.UpdateMedicationStock(ctx, id, 0); err == nil {
					record(c, "Reset stock of medication %s to 0", id)
				}
			case ConflictTakenWithoutTime:
				in := intakes[id]
				at := in.ScheduledTime
				if err = store.UpdateIntakeStatus(ctx, id, models.IntakeTaken, &at); err == nil {
					record(c, "Set taken_at of intake %s to its scheduled time", id)
				}
			case ConflictUnexpectedTakenAt:
				if err = store.UpdateIntakeStatus(ctx, id, intakes[id].Status, nil); err == nil {
					record(c, "Cleared taken_at of intake %s", id)
				}
			case ConflictEndedStillActive:
				if err = store.SetTreatmentActive(ctx, id, false); err == nil {
					record(c, "Deactivated treatment %s", id)
				}
			default:
				continue
			}
			if err != nil {
				record(c, "Failed to fix %s: %v", id, err)
			}
		}
	}
	return actions
}
