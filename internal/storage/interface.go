package storage

import (
	"context"
	"errors"
	"time"

	"github.com/julianstephens/doselit/internal/models"
)

var (
	// ErrNotFound is returned when a record does not exist (or is not visible to the user).
	ErrNotFound = errors.New("not found")
	// ErrAlreadyResolved is returned by ResolvePendingIntake when the intake is no longer pending.
	ErrAlreadyResolved = errors.New("intake already resolved")
	// ErrNotInitialized is returned by Load when the backing store was never initialized.
	ErrNotInitialized = errors.New("storage not initialized, run 'doselit init' first")
)

type Provider interface {
	// Lifecycle
	Init() error
	Load() error
	Close() error

	// Settings
	GetSettings(ctx context.Context) (models.Settings, error)
	SaveSettings(ctx context.Context, settings models.Settings) error

	// Treatments
	AddTreatment(ctx context.Context, t models.Treatment) error
	GetTreatment(ctx context.Context, id string) (models.Treatment, error)
	ListTreatments(ctx context.Context, userID string, activeOnly bool) ([]models.Treatment, error)
	UpdateTreatment(ctx context.Context, t models.Treatment) error
	SetTreatmentActive(ctx context.Context, id string, active bool) error
	// DeleteTreatment removes the treatment together with its medications and intakes.
	DeleteTreatment(ctx context.Context, id string) error

	// Medications
	AddMedication(ctx context.Context, m models.Medication) error
	GetMedication(ctx context.Context, id string) (models.Medication, error)
	ListMedications(ctx context.Context, treatmentID string) ([]models.Medication, error)
	// ListMedicationsForUser returns the user's medications, optionally only
	// those whose treatment is active.
	ListMedicationsForUser(ctx context.Context, userID string, activeOnly bool) ([]models.Medication, error)
	UpdateMedication(ctx context.Context, m models.Medication) error
	UpdateMedicationStock(ctx context.Context, id string, stock int) error
	// DeleteMedication removes the medication together with its intakes.
	DeleteMedication(ctx context.Context, id string) error

	// Intakes
	// ExistingIntakeTimes returns the scheduled instants already stored for the
	// medication within [from, to).
	ExistingIntakeTimes(ctx context.Context, medicationID string, from, to time.Time) ([]time.Time, error)
	// InsertIntakes inserts one pending intake per instant inside a single
	// transaction. Instants that already exist for the medication are skipped.
	// It returns the number of rows actually inserted.
	InsertIntakes(ctx context.Context, medicationID string, instants []time.Time) (int, error)
	GetIntake(ctx context.Context, id string) (models.Intake, error)
	// ListIntakes returns intakes matching the filter ordered by scheduled time ascending.
	ListIntakes(ctx context.Context, filter models.IntakeFilter) ([]models.Intake, error)
	// UpdateIntakeStatus overwrites the status unconditionally (last writer wins).
	UpdateIntakeStatus(ctx context.Context, id string, status models.IntakeStatus, takenAt *time.Time) error
	// ResolvePendingIntake moves a pending intake to status. It returns
	// ErrAlreadyResolved if the intake was resolved concurrently.
	ResolvePendingIntake(ctx context.Context, id string, status models.IntakeStatus, takenAt *time.Time) error

	// Utils
	GetConfigPath() string
}
