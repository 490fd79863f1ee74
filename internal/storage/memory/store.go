// Package memory is an in-process storage.Provider used by tests and dry runs.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/julianstephens/doselit/internal/models"
	"github.com/julianstephens/doselit/internal/storage"
)

type Store struct {
	mu          sync.RWMutex
	settings    map[string]string
	treatments  map[string]models.Treatment
	medications map[string]models.Medication
	intakes     map[string]models.Intake
	// byInstant enforces the (medication, scheduled_time) uniqueness.
	byInstant map[string]map[int64]string
	clock     func() time.Time
}

var _ storage.Provider = (*Store)(nil)

func New() *Store {
	return &Store{
		settings:    make(map[string]string),
		treatments:  make(map[string]models.Treatment),
		medications: make(map[string]models.Medication),
		intakes:     make(map[string]models.Intake),
		byInstant:   make(map[string]map[int64]string),
		clock:       time.Now,
	}
}

// WithClock overrides the clock used for created_at stamps.
func (s *Store) WithClock(clock func() time.Time) *Store {
	s.clock = clock
	return s
}

func (s *Store) Init() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.settings) == 0 {
		s.settings = models.SettingsToMap(models.DefaultSettings())
	}
	return nil
}

func (s *Store) Load() error { return nil }
func (s *Store) Close() error { return nil }
func (s *Store) GetConfigPath() string { return ":memory:" }

func (s *Store) GetSettings(_ context.Context) (models.Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.settings) == 0 {
		return models.Settings{}, fmt.Errorf("settings not found")
	}
	return models.MapToSettings(s.settings)
}

func (s *Store) SaveSettings(_ context.Context, settings models.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range models.SettingsToMap(settings) {
		s.settings[k] = v
	}
	return nil
}

func notFound(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, storage.ErrNotFound)
}

// Treatments

func (s *Store) AddTreatment(_ context.Context, t models.Treatment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.treatments[t.ID]; ok {
		return fmt.Errorf("treatment %s already exists", t.ID)
	}
	t.CreatedAt = t.CreatedAt.UTC()
	s.treatments[t.ID] = t
	return nil
}

func (s *Store) GetTreatment(_ context.Context, id string) (models.Treatment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.treatments[id]
	if !ok {
		return models.Treatment{}, notFound("treatment", id)
	}
	return t, nil
}

func (s *Store) ListTreatments(_ context.Context, userID string, activeOnly bool) ([]models.Treatment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Treatment
	for _, t := range s.treatments {
		if t.UserID != userID || (activeOnly && !t.IsActive) {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartDate != out[j].StartDate {
			return out[i].StartDate < out[j].StartDate
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (s *Store) UpdateTreatment(_ context.Context, t models.Treatment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.treatments[t.ID]
	if !ok {
		return notFound("treatment", t.ID)
	}
	t.UserID = cur.UserID
	t.CreatedAt = cur.CreatedAt
	s.treatments[t.ID] = t
	return nil
}

func (s *Store) SetTreatmentActive(_ context.Context, id string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.treatments[id]
	if !ok {
		return notFound("treatment", id)
	}
	t.IsActive = active
	s.treatments[id] = t
	return nil
}

func (s *Store) DeleteTreatment(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.treatments[id]; !ok {
		return notFound("treatment", id)
	}
	for medID, m := range s.medications {
		if m.TreatmentID == id {
			s.deleteMedicationLocked(medID)
		}
	}
	delete(s.treatments, id)
	return nil
}

// Medications

func (s *Store) AddMedication(_ context.Context, m models.Medication) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.treatments[m.TreatmentID]; !ok {
		return fmt.Errorf("medication references unknown treatment %s", m.TreatmentID)
	}
	if _, ok := s.medications[m.ID]; ok {
		return fmt.Errorf("medication %s already exists", m.ID)
	}
	if m.CurrentStock < 0 {
		return fmt.Errorf("current stock cannot be negative")
	}
	m.Times = append([]string{}, m.Times...)
	m.CreatedAt = m.CreatedAt.UTC()
	s.medications[m.ID] = m
	return nil
}

func (s *Store) GetMedication(_ context.Context, id string) (models.Medication, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.medications[id]
	if !ok {
		return models.Medication{}, notFound("medication", id)
	}
	m.Times = append([]string{}, m.Times...)
	return m, nil
}

func sortMedications(ms []models.Medication) {
	sort.Slice(ms, func(i, j int) bool {
		if ms[i].Name != ms[j].Name {
			return ms[i].Name < ms[j].Name
		}
		return ms[i].ID < ms[j].ID
	})
}

func (s *Store) ListMedications(_ context.Context, treatmentID string) ([]models.Medication, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Medication
	for _, m := range s.medications {
		if m.TreatmentID == treatmentID {
			m.Times = append([]string{}, m.Times...)
			out = append(out, m)
		}
	}
	sortMedications(out)
	return out, nil
}

func (s *Store) ListMedicationsForUser(_ context.Context, userID string, activeOnly bool) ([]models.Medication, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Medication
	for _, m := range s.medications {
		t := s.treatments[m.TreatmentID]
		if t.UserID != userID || (activeOnly && !t.IsActive) {
			continue
		}
		m.Times = append([]string{}, m.Times...)
		out = append(out, m)
	}
	sortMedications(out)
	return out, nil
}

func (s *Store) UpdateMedication(_ context.Context, m models.Medication) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.medications[m.ID]
	if !ok {
		return notFound("medication", m.ID)
	}
	if m.CurrentStock < 0 {
		return fmt.Errorf("current stock cannot be negative")
	}
	m.TreatmentID = cur.TreatmentID
	m.CreatedAt = cur.CreatedAt
	m.Times = append([]string{}, m.Times...)
	s.medications[m.ID] = m
	return nil
}

func (s *Store) UpdateMedicationStock(_ context.Context, id string, stock int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.medications[id]
	if !ok {
		return notFound("medication", id)
	}
	if stock < 0 {
		return fmt.Errorf("current stock cannot be negative")
	}
	m.CurrentStock = stock
	s.medications[id] = m
	return nil
}

func (s *Store) DeleteMedication(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.medications[id]; !ok {
		return notFound("medication", id)
	}
	s.deleteMedicationLocked(id)
	return nil
}

func (s *Store) deleteMedicationLocked(id string) {
	for _, intakeID := range s.byInstant[id] {
		delete(s.intakes, intakeID)
	}
	delete(s.byInstant, id)
	delete(s.medications, id)
}

// Intakes

func (s *Store) ExistingIntakeTimes(_ context.Context, medicationID string, from, to time.Time) ([]time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []time.Time
	for _, id := range s.byInstant[medicationID] {
		at := s.intakes[id].ScheduledTime
		if !at.Before(from) && at.Before(to) {
			out = append(out, at)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out, nil
}

func (s *Store) InsertIntakes(_ context.Context, medicationID string, instants []time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.medications[medicationID]; !ok {
		return 0, fmt.Errorf("intake references unknown medication %s", medicationID)
	}
	idx := s.byInstant[medicationID]
	if idx == nil {
		idx = make(map[int64]string)
		s.byInstant[medicationID] = idx
	}

	now := s.clock().UTC().Truncate(time.Second)
	inserted := 0
	for _, at := range storage.DedupeInstants(instants) {
		if _, exists := idx[at.Unix()]; exists {
			continue
		}
		in := models.Intake{
			ID:            uuid.New().String(),
			MedicationID:  medicationID,
			ScheduledTime: at,
			Status:        models.IntakePending,
			CreatedAt:     now,
		}
		s.intakes[in.ID] = in
		idx[at.Unix()] = in.ID
		inserted++
	}
	return inserted, nil
}

func copyIntake(in models.Intake) models.Intake {
	if in.TakenAt != nil {
		t := *in.TakenAt
		in.TakenAt = &t
	}
	return in
}

func (s *Store) GetIntake(_ context.Context, id string) (models.Intake, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	in, ok := s.intakes[id]
	if !ok {
		return models.Intake{}, notFound("intake", id)
	}
	return copyIntake(in), nil
}

func (s *Store) ListIntakes(_ context.Context, f models.IntakeFilter) ([]models.Intake, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Intake
	for _, in := range s.intakes {
		m := s.medications[in.MedicationID]
		t := s.treatments[m.TreatmentID]
		switch {
		case f.UserID != "" && t.UserID != f.UserID,
			f.TreatmentID != "" && m.TreatmentID != f.TreatmentID,
			f.MedicationID != "" && in.MedicationID != f.MedicationID,
			!f.From.IsZero() && in.ScheduledTime.Before(f.From),
			!f.To.IsZero() && !in.ScheduledTime.Before(f.To),
			!f.HasStatus(in.Status):
			continue
		}
		out = append(out, copyIntake(in))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ScheduledTime.Equal(out[j].ScheduledTime) {
			return out[i].ScheduledTime.Before(out[j].ScheduledTime)
		}
		return out[i].MedicationID < out[j].MedicationID
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *Store) setIntake(id string, status models.IntakeStatus, takenAt *time.Time, onlyPending bool) error {
	if !status.Valid() {
		return fmt.Errorf("invalid intake status %q", status)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	in, ok := s.intakes[id]
	if !ok {
		return notFound("intake", id)
	}
	if onlyPending && in.Status != models.IntakePending {
		return fmt.Errorf("intake %s: %w", id, storage.ErrAlreadyResolved)
	}
	in.Status = status
	in.TakenAt = nil
	if takenAt != nil {
		t := takenAt.UTC().Truncate(time.Second)
		in.TakenAt = &t
	}
	s.intakes[id] = in
	return nil
}

func (s *Store) UpdateIntakeStatus(_ context.Context, id string, status models.IntakeStatus, takenAt *time.Time) error {
	return s.setIntake(id, status, takenAt, false)
}

func (s *Store) ResolvePendingIntake(_ context.Context, id string, status models.IntakeStatus, takenAt *time.Time) error {
	return s.setIntake(id, status, takenAt, true)
}
