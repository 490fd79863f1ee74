package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/julianstephens/doselit/internal/constants"
)

// Treatment groups the medications prescribed for one course of care.
type Treatment struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Pathology string    `json:"pathology,omitempty"`
	StartDate string    `json:"start_date"`         // YYYY-MM-DD
	EndDate   string    `json:"end_date,omitempty"` // YYYY-MM-DD, empty when open-ended
	IsActive  bool      `json:"is_active"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func (t *Treatment) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("treatment name cannot be empty")
	}
	if t.UserID == "" {
		return fmt.Errorf("treatment must belong to a user")
	}
	start, err := time.Parse(constants.DateFormat, t.StartDate)
	if err != nil {
		return fmt.Errorf("invalid start date (expected YYYY-MM-DD): %w", err)
	}
	if t.EndDate != "" {
		end, err := time.Parse(constants.DateFormat, t.EndDate)
		if err != nil {
			return fmt.Errorf("invalid end date (expected YYYY-MM-DD): %w", err)
		}
		if end.Before(start) {
			return fmt.Errorf("end date %s is before start date %s", t.EndDate, t.StartDate)
		}
	}
	return nil
}

// HasEnded reports whether the treatment's end date is strictly before the
// given civil day (YYYY-MM-DD).
func (t *Treatment) HasEnded(today string) bool {
	if t.EndDate == "" {
		return false
	}
	return t.EndDate < today
}
