package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/julianstephens/doselit/internal/models"
	"github.com/julianstephens/doselit/internal/storage"
)

const treatmentColumns = "id, user_id, name, pathology, start_date, end_date, is_active, notes, created_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTreatment(row rowScanner) (models.Treatment, error) {
	var t models.Treatment
	var active int
	var createdAt string
	if err := row.Scan(&t.ID, &t.UserID, &t.Name, &t.Pathology, &t.StartDate, &t.EndDate,
		&active, &t.Notes, &createdAt); err != nil {
		return models.Treatment{}, err
	}
	t.IsActive = active == 1
	var err error
	if t.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return models.Treatment{}, err
	}
	return t, nil
}

func (s *Store) AddTreatment(ctx context.Context, t models.Treatment) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO treatments (`+treatmentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, t.Name, t.Pathology, t.StartDate, t.EndDate,
		boolToInt(t.IsActive), t.Notes, formatTime(t.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to add treatment: %w", err)
	}
	return nil
}

func (s *Store) GetTreatment(ctx context.Context, id string) (models.Treatment, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+treatmentColumns+" FROM treatments WHERE id = ?", id)
	t, err := scanTreatment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Treatment{}, fmt.Errorf("treatment %s: %w", id, storage.ErrNotFound)
	}
	return t, err
}

func (s *Store) ListTreatments(ctx context.Context, userID string, activeOnly bool) ([]models.Treatment, error) {
	query := "SELECT " + treatmentColumns + " FROM treatments WHERE user_id = ?"
	if activeOnly {
		query += " AND is_active = 1"
	}
	query += " ORDER BY start_date ASC, name ASC"

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Treatment
	for rows.Next() {
		t, err := scanTreatment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) UpdateTreatment(ctx context.Context, t models.Treatment) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE treatments
		SET name = ?, pathology = ?, start_date = ?, end_date = ?, is_active = ?, notes = ?
		WHERE id = ?`,
		t.Name, t.Pathology, t.StartDate, t.EndDate, boolToInt(t.IsActive), t.Notes, t.ID)
	if err != nil {
		return fmt.Errorf("failed to update treatment: %w", err)
	}
	return expectOne(res, "treatment", t.ID)
}

func (s *Store) SetTreatmentActive(ctx context.Context, id string, active bool) error {
	res, err := s.db.ExecContext(ctx, "UPDATE treatments SET is_active = ? WHERE id = ?", boolToInt(active), id)
	if err != nil {
		return fmt.Errorf("failed to update treatment: %w", err)
	}
	return expectOne(res, "treatment", id)
}

func (s *Store) DeleteTreatment(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM treatments WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete treatment: %w", err)
	}
	return expectOne(res, "treatment", id)
}

func expectOne(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, storage.ErrNotFound)
	}
	return nil
}
