package sqlite

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
	var scheduled, status, createdAt string
	var takenAt sql.NullString
	if err := row.Scan(&in.ID, &in.MedicationID, &scheduled, &status, &takenAt, &createdAt); err != nil {
		return models.Intake{}, err
	}
	in.Status = models.IntakeStatus(status)

	var err error
	if in.ScheduledTime, err = parseTime("scheduled_time", scheduled); err != nil {
		return models.Intake{}, err
	}
	if in.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return models.Intake{}, err
	}
	if takenAt.Valid {
		t, err := parseTime("taken_at", takenAt.String)
		if err != nil {
			return models.Intake{}, err
		}
		in.TakenAt = &t
	}
	return in, nil
}

func nullableTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func (s *Store) ExistingIntakeTimes(ctx context.Context, medicationID string, from, to time.Time) ([]time.Time, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT scheduled_time FROM medication_intakes
		WHERE medication_id = ? AND scheduled_time >= ? AND scheduled_time < ?
		ORDER BY scheduled_time ASC`,
		medicationID, formatTime(from), formatTime(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []time.Time
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		t, err := parseTime("scheduled_time", raw)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
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
		VALUES (?, ?, ?, 'pending', NULL, ?)
		ON CONFLICT (medication_id, scheduled_time) DO NOTHING`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	now := formatTime(time.Now())
	inserted := 0
	for _, at := range instants {
		res, err := stmt.ExecContext(ctx, uuid.New().String(), medicationID, formatTime(at), now)
		if err != nil {
			return 0, fmt.Errorf("failed to insert intake at %s: %w", formatTime(at), err)
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
		FROM medication_intakes WHERE id = ?`, id)
	in, err := scanIntake(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Intake{}, fmt.Errorf("intake %s: %w", id, storage.ErrNotFound)
	}
	return in, err
}

func (s *Store) ListIntakes(ctx context.Context, filter models.IntakeFilter) ([]models.Intake, error) {
	query, args := storage.IntakeQuery(filter, storage.QuestionMark, encodeTime)
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
		"UPDATE medication_intakes SET status = ?, taken_at = ? WHERE id = ?",
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
		"UPDATE medication_intakes SET status = ?, taken_at = ? WHERE id = ? AND status = 'pending'",
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
