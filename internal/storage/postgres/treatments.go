package postgres

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
	if err := row.Scan(&t.ID, &t.UserID, &t.Name, &t.Pathology, &t.StartDate, &t.EndDate,
		&t.IsActive, &t.Notes, &t.CreatedAt); err != nil {
		return models.Treatment{}, err
	}
	t.CreatedAt = t.CreatedAt.UTC()
	return t, nil
}

func (s *Store) AddTreatment(ctx context.Context, t models.Treatment) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO treatments (`+treatmentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		t.ID, t.UserID, t.Name, t.Pathology, t.StartDate, t.EndDate, t.IsActive, t.Notes, t.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to add treatment: %w", err)
	}
	return nil
}

func (s *Store) GetTreatment(ctx context.Context, id string) (models.Treatment, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+treatmentColumns+" FROM treatments WHERE id = $1", id)
	t, err := scanTreatment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Treatment{}, fmt.Errorf("treatment %s: %w", id, storage.ErrNotFound)
	}
	return t, err
}

func (s *Store) ListTreatments(ctx context.Context, userID string, activeOnly bool) ([]models.Treatment, error) {
	query := "SELECT " + treatmentColumns + " FROM treatments WHERE user_id = $1"
	if activeOnly {
		query += " AND is_active"
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
		SET name = $1, pathology = $2, start_date = $3, end_date = $4, is_active = $5, notes = $6
		WHERE id = $7`,
		t.Name, t.Pathology, t.StartDate, t.EndDate, t.IsActive, t.Notes, t.ID)
	if err != nil {
		return fmt.Errorf("failed to update treatment: %w", err)
	}
	return expectOne(res, "treatment", t.ID)
}

func (s *Store) SetTreatmentActive(ctx context.Context, id string, active bool) error {
	res, err := s.db.ExecContext(ctx, "UPDATE treatments SET is_active = $1 WHERE id = $2", active, id)
	if err != nil {
		return fmt.Errorf("failed to update treatment: %w", err)
	}
	return expectOne(res, "treatment", id)
}

func (s *Store) DeleteTreatment(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM treatments WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete treatment: %w", err)
	}
	return expectOne(res, "treatment", id)
}
