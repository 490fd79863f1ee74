// Package intakes is the adapter every engine component uses to read and
// write intake records. Insertion is idempotent per (medication, instant).
package intakes

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/julianstephens/doselit/internal/logger"
	"github.com/julianstephens/doselit/internal/models"
	"github.com/julianstephens/doselit/internal/storage"
)

type Store struct {
	provider storage.Provider
}

func New(provider storage.Provider) *Store {
	return &Store{provider: provider}
}

// ExistingInstants returns the set of scheduled instants already stored for
// the medication within [from, to), keyed by Unix seconds.
func (s *Store) ExistingInstants(ctx context.Context, medicationID string, from, to time.Time) (map[int64]time.Time, error) {
	times, err := s.provider.ExistingIntakeTimes(ctx, medicationID, from, to)
	if err != nil {
		return nil, fmt.Errorf("listing existing intakes for %s: %w", medicationID, err)
	}
	out := make(map[int64]time.Time, len(times))
	for _, t := range times {
		out[t.Unix()] = t
	}
	return out, nil
}

// Missing returns the instants not present in existing, preserving order.
func Missing(instants []time.Time, existing map[int64]time.Time) []time.Time {
	var out []time.Time
	for _, at := range instants {
		if _, ok := existing[at.Unix()]; !ok {
			out = append(out, at)
		}
	}
	return out
}

// InsertMissing inserts the instants that do not exist yet and returns how
// many rows were created. Concurrent or repeated calls never create
// duplicates; the store's uniqueness constraint settles races.
func (s *Store) InsertMissing(ctx context.Context, medicationID string, instants []time.Time) (int, error) {
	if len(instants) == 0 {
		return 0, nil
	}
	from, to := bounds(instants)
	existing, err := s.ExistingInstants(ctx, medicationID, from, to)
	if err != nil {
		return 0, err
	}
	missing := Missing(instants, existing)
	if len(missing) == 0 {
		return 0, nil
	}

	n, err := s.provider.InsertIntakes(ctx, medicationID, missing)
	if err != nil {
		return 0, fmt.Errorf("inserting intakes for %s: %w", medicationID, err)
	}
	if skipped := len(missing) - n; skipped > 0 {
		logger.Debug("intakes already inserted concurrently", "medication", medicationID, "skipped", skipped)
	}
	return n, nil
}

func bounds(instants []time.Time) (time.Time, time.Time) {
	from, to := instants[0], instants[0]
	for _, at := range instants[1:] {
		if at.Before(from) {
			from = at
		}
		if at.After(to) {
			to = at
		}
	}
	return from, to.Add(time.Second)
}

// ListPending returns pending intakes matching filter, oldest first.
func (s *Store) ListPending(ctx context.Context, filter models.IntakeFilter) ([]models.Intake, error) {
	filter.Statuses = []models.IntakeStatus{models.IntakePending}
	return s.List(ctx, filter)
}

// List returns intakes matching filter, oldest first.
func (s *Store) List(ctx context.Context, filter models.IntakeFilter) ([]models.Intake, error) {
	out, err := s.provider.ListIntakes(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("listing intakes: %w", err)
	}
	return out, nil
}

func (s *Store) Get(ctx context.Context, id string) (models.Intake, error) {
	return s.provider.GetIntake(ctx, id)
}

// UpdateStatus overwrites an intake's status (last writer wins). taken_at is
// kept only for the taken status.
func (s *Store) UpdateStatus(ctx context.Context, id string, st models.IntakeStatus, takenAt *time.Time) error {
	if st != models.IntakeTaken {
		takenAt = nil
	}
	if err := s.provider.UpdateIntakeStatus(ctx, id, st, takenAt); err != nil {
		return fmt.Errorf("updating intake %s: %w", id, err)
	}
	return nil
}

// Resolve moves a pending intake to a terminal status. It returns an error
// wrapping storage.ErrAlreadyResolved when another writer got there first;
// callers treat that as a no-op.
func (s *Store) Resolve(ctx context.Context, id string, st models.IntakeStatus, takenAt *time.Time) error {
	if !st.IsResolved() {
		return fmt.Errorf("cannot resolve intake %s to %q", id, st)
	}
	if st != models.IntakeTaken {
		takenAt = nil
	}
	if err := s.provider.ResolvePendingIntake(ctx, id, st, takenAt); err != nil {
		if errors.Is(err, storage.ErrAlreadyResolved) {
			logger.Debug("intake already resolved", "intake", id)
		}
		return err
	}
	return nil
}

// CountForDay returns how many intakes are scheduled for the medication on
// the civil day of day in loc, whatever their status.
func (s *Store) CountForDay(ctx context.Context, medicationID string, day time.Time, loc *time.Location) (int, error) {
	local := day.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	end := start.AddDate(0, 0, 1)
	times, err := s.provider.ExistingIntakeTimes(ctx, medicationID, start, end)
	if err != nil {
		return 0, fmt.Errorf("counting intakes for %s: %w", medicationID, err)
	}
	return len(times), nil
}
