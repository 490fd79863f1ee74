package models

import "time"

// IntakeStatus is the persisted state of an intake.
type IntakeStatus string

const (
	IntakePending IntakeStatus = "pending"
	IntakeTaken   IntakeStatus = "taken"
	IntakeSkipped IntakeStatus = "skipped"
)

func (s IntakeStatus) Valid() bool {
	switch s {
	case IntakePending, IntakeTaken, IntakeSkipped:
		return true
	}
	return false
}

// IsResolved reports whether the intake no longer awaits a user action.
func (s IntakeStatus) IsResolved() bool {
	return s == IntakeTaken || s == IntakeSkipped
}

// Intake is one scheduled obligation to take a dose at a given instant.
type Intake struct {
	ID            string       `json:"id"`
	MedicationID  string       `json:"medication_id"`
	ScheduledTime time.Time    `json:"scheduled_time"` // UTC
	Status        IntakeStatus `json:"status"`
	TakenAt       *time.Time   `json:"taken_at,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
}

// IntakeFilter narrows intake listings. Zero values mean "no constraint".
// From is inclusive and To is exclusive. Results are always ordered by
// scheduled time ascending.
type IntakeFilter struct {
	UserID       string
	TreatmentID  string
	MedicationID string
	From         time.Time
	To           time.Time
	Statuses     []IntakeStatus
	Limit        int
}

// HasStatus reports whether the filter accepts the given status.
func (f IntakeFilter) HasStatus(s IntakeStatus) bool {
	if len(f.Statuses) == 0 {
		return true
	}
	for _, st := range f.Statuses {
		if st == s {
			return true
		}
	}
	return false
}
