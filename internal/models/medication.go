package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/julianstephens/doselit/internal/constants"
)

// Medication is one drug inside a treatment together with its posology and stock.
type Medication struct {
	ID           string    `json:"id"`
	TreatmentID  string    `json:"treatment_id"`
	Name         string    `json:"name"`
	Posology     string    `json:"posology,omitempty"`
	Times        []string  `json:"times"` // HH:MM slots, sorted
	CurrentStock int       `json:"current_stock"`
	MinThreshold int       `json:"min_threshold"`
	UnitsPerTake int       `json:"units_per_take"`
	CreatedAt    time.Time `json:"created_at"`
}

func (m *Medication) Validate() error {
	if strings.TrimSpace(m.Name) == "" {
		return fmt.Errorf("medication name cannot be empty")
	}
	if m.TreatmentID == "" {
		return fmt.Errorf("medication must belong to a treatment")
	}
	for _, slot := range m.Times {
		if _, err := time.Parse(constants.TimeFormat, slot); err != nil {
			return fmt.Errorf("invalid time slot %q (expected HH:MM): %w", slot, err)
		}
	}
	if m.CurrentStock < 0 {
		return fmt.Errorf("current stock cannot be negative")
	}
	if m.MinThreshold < 0 {
		return fmt.Errorf("minimum threshold cannot be negative")
	}
	if m.UnitsPerTake < 1 {
		return fmt.Errorf("units per take must be at least 1")
	}
	return nil
}

// TakesPerDay is the static number of daily intakes implied by the slots.
func (m *Medication) TakesPerDay() int {
	return len(m.Times)
}

// IsScheduled reports whether the medication has at least one time slot.
func (m *Medication) IsScheduled() bool {
	return len(m.Times) > 0
}
