package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/julianstephens/doselit/internal/models"
	"github.com/julianstephens/doselit/internal/storage"
)

func scanIntake(row rowScanner) (models.Intake, error) {
	var in models.Intake
	var status string
	var takenAt sql.NullTime
	if err := row.Scan(&in.ID, &in.MedicationID, &in.ScheduledTime, &status, &takenAt, &in.CreatedAt); err != nil {
		return models.Intake{}, err
	}
	in.Status = models.IntakeStatus(status)
	in.ScheduledTime = in.ScheduledTime.UTC()
	in.CreatedAt = in.CreatedAt.UTC()
	if takenAt.Valid {
		t := takenAt.Time.UTC()
		in.TakenAt = &t
	}
	return in, nil
}

func nullableTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC().Truncate(time.Second), Valid: true}
}

func (s *Store) ExistingIntakeTimes(ctx context.Context, medicationID string, from, to time.Time) ([]time.Time, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT scheduled_time FROM medication_intakes
		WHERE medication_id = $1 AND scheduled_time >= $2 AND scheduled_time < $3
		ORDER BY scheduled_time ASC`,
		medicationID, from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []time.Time
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		out = append(out, t.UTC())
	}
	return out, rows.Err()
}

func (s *Store) InsertIntakes(ctx context.Context, medicationID string, instants []time.Time) (int, error) {
	instants = storage.DedupeInstants(instants)
	if len(instants) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO medication_intakes (id, medication_id, scheduled_time, status, taken_at, created_at)
		VALUES ($1, $2, $3, 'pending', NULL, now())
		ON CONFLICT (medication_id, scheduled_time) DO NOTHING`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	inserted := 0
	for _, at := range instants {
		res, err := stmt.ExecContext(ctx, uuid.New().String(), medicationID, at)
		if err != nil {
			return 0, fmt.Errorf("failed to insert intake at %s: %w", at.Format(time.RFC3339), err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return inserted, nil
}

func (s *Store) GetIntake(ctx context.Context, id string) (models.Intake, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, medication_id, scheduled_time, status, taken_at, created_at
		FROM medication_intakes WHERE id = $1`, id)
	in, err := scanIntake(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Intake{}, fmt.Errorf("intake %s: %w", id, storage.ErrNotFound)
	}
	return in, err
}

func (s *Store) ListIntakes(ctx context.Context, filter models.IntakeFilter) ([]models.Intake, error) {
	query, args := storage.IntakeQuery(filter, storage.Dollar, utcTime)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Intake
	for rows.Next() {
		in, err := scanIntake(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, in)
	}
	return out, rows.Err()
}

func (s *Store) UpdateIntakeStatus(ctx context.Context, id string, status models.IntakeStatus, takenAt *time.Time) error {
	if !status.Valid() {
		return fmt.Errorf("invalid intake status %q", status)
	}
	res, err := s.db.ExecContext(ctx,
		"UPDATE medication_intakes SET status = $1, taken_at = $2 WHERE id = $3",
		string(status), nullableTime(takenAt), id)
	if err != nil {
		return fmt.Errorf("failed to update intake: %w", err)
	}
	return expectOne(res, "intake", id)
}

func (s *Store) ResolvePendingIntake(ctx context.Context, id string, status models.IntakeStatus, takenAt *time.Time) error {
	if !status.Valid() {
		return fmt.Errorf("invalid intake status %q", status)
	}
	res, err := s.db.ExecContext(ctx,
		"UPDATE medication_intakes SET status = $1, taken_at = $2 WHERE id = $3 AND status = 'pending'",
		string(status), nullableTime(takenAt), id)
	if err != nil {
		return fmt.Errorf("failed to resolve intake: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}
	if _, err := s.GetIntake(ctx, id); err != nil {
		return err
	}
	return fmt.Errorf("intake %s: %w", id, storage.ErrAlreadyResolved)
}
