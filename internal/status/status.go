// Package status derives the display status of an intake. It is the only
// place in the codebase where on-time, late and missed are decided.
package status

import (
	"time"

	"github.com/julianstephens/doselit/internal/constants"
	"github.com/julianstephens/doselit/internal/models"
	"github.com/julianstephens/doselit/internal/utils"
)

// Display is the derived status of an intake.
type Display string

const (
	Upcoming Display = "upcoming"
	OnTime   Display = "on_time"
	Late     Display = "late"
	Missed   Display = "missed"
	Skipped  Display = "skipped"
)

// All lists every display status in report order.
var All = []Display{OnTime, Late, Missed, Skipped, Upcoming}

// IsMissed reports whether the status belongs to the missed family
// (a backlogged pending intake or an explicitly skipped one).
func (d Display) IsMissed() bool {
	return d == Missed || d == Skipped
}

// IsTaken reports whether the dose was taken, on time or not.
func (d Display) IsTaken() bool {
	return d == OnTime || d == Late
}

// Label returns the English display label.
func (d Display) Label() string {
	switch d {
	case Upcoming:
		return "Upcoming"
	case OnTime:
		return "On time"
	case Late:
		return "Late"
	case Missed:
		return "Missed"
	case Skipped:
		return "Skipped"
	}
	return string(d)
}

// LabelFR returns the French display label.
func (d Display) LabelFR() string {
	switch d {
	case Upcoming:
		return "À venir"
	case OnTime:
		return "À l'heure"
	case Late:
		return "En retard"
	case Missed:
		return "Manquée"
	case Skipped:
		return "Sautée"
	}
	return string(d)
}

// Classify is a pure function of its inputs.
//
//   - skipped: Skipped (member of the missed family).
//   - taken: OnTime when takenAt - scheduled <= 30 min, else Late. A taken
//     intake without takenAt is OnTime.
//   - pending: Upcoming until 30 min past scheduled; then Late while
//     scheduled is on now's civil day, Missed once it belongs to a prior day.
//
// Day boundaries are computed in now's location.
func Classify(scheduled time.Time, takenAt *time.Time, persisted models.IntakeStatus, now time.Time) Display {
	switch persisted {
	case models.IntakeSkipped:
		return Skipped
	case models.IntakeTaken:
		if takenAt == nil {
			return OnTime
		}
		if takenAt.Sub(scheduled) <= constants.LateThreshold {
			return OnTime
		}
		return Late
	}

	if !now.After(scheduled) || now.Sub(scheduled) <= constants.LateThreshold {
		return Upcoming
	}
	if IsBacklog(scheduled, now) {
		return Missed
	}
	return Late
}

// ClassifyIntake classifies a stored intake.
func ClassifyIntake(in models.Intake, now time.Time) Display {
	return Classify(in.ScheduledTime, in.TakenAt, in.Status, now)
}

// IsBacklog reports whether scheduled belongs to a civil day before now's.
func IsBacklog(scheduled, now time.Time) bool {
	return scheduled.Before(utils.StartOfDay(now))
}

// IsActionable reports whether a pending intake can still be acted on
// today without going through reconciliation.
func IsActionable(in models.Intake, now time.Time) bool {
	return in.Status == models.IntakePending && !IsBacklog(in.ScheduledTime, now)
}
