package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/julianstephens/doselit/internal/models"
	"github.com/julianstephens/doselit/internal/storage"
)

const medicationColumns = "m.id, m.treatment_id, m.name, m.posology, m.times, m.current_stock, m.min_threshold, m.units_per_take, m.created_at"

func scanMedication(row rowScanner) (models.Medication, error) {
	var m models.Medication
	var times string
	if err := row.Scan(&m.ID, &m.TreatmentID, &m.Name, &m.Posology, &times,
		&m.CurrentStock, &m.MinThreshold, &m.UnitsPerTake, &m.CreatedAt); err != nil {
		return models.Medication{}, err
	}
	if err := json.Unmarshal([]byte(times), &m.Times); err != nil {
		return models.Medication{}, fmt.Errorf("failed to parse times: %w", err)
	}
	m.CreatedAt = m.CreatedAt.UTC()
	return m, nil
}

func encodeTimes(times []string) (string, error) {
	if times == nil {
		times = []string{}
	}
	b, err := json.Marshal(times)
	if err != nil {
		return "", fmt.Errorf("failed to encode times: %w", err)
	}
	return string(b), nil
}

func (s *Store) AddMedication(ctx context.Context, m models.Medication) error {
	times, err := encodeTimes(m.Times)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO medications (id, treatment_id, name, posology, times, current_stock, min_threshold, units_per_take, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		m.ID, m.TreatmentID, m.Name, m.Posology, times, m.CurrentStock, m.MinThreshold, m.UnitsPerTake, m.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to add medication: %w", err)
	}
	return nil
}

func (s *Store) GetMedication(ctx context.Context, id string) (models.Medication, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+medicationColumns+" FROM medications m WHERE m.id = $1", id)
	m, err := scanMedication(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Medication{}, fmt.Errorf("medication %s: %w", id, storage.ErrNotFound)
	}
	return m, err
}

func (s *Store) queryMedications(ctx context.Context, query string, args ...any) ([]models.Medication, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Medication
	for rows.Next() {
		m, err := scanMedication(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) ListMedications(ctx context.Context, treatmentID string) ([]models.Medication, error) {
	return s.queryMedications(ctx,
		"SELECT "+medicationColumns+" FROM medications m WHERE m.treatment_id = $1 ORDER BY m.name ASC, m.id ASC",
		treatmentID)
}

func (s *Store) ListMedicationsForUser(ctx context.Context, userID string, activeOnly bool) ([]models.Medication, error) {
	query := "SELECT " + medicationColumns + `
		FROM medications m JOIN treatments t ON t.id = m.treatment_id
		WHERE t.user_id = $1`
	if activeOnly {
		query += " AND t.is_active"
	}
	query += " ORDER BY m.name ASC, m.id ASC"
	return s.queryMedications(ctx, query, userID)
}

func (s *Store) UpdateMedication(ctx context.Context, m models.Medication) error {
	times, err := encodeTimes(m.Times)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE medications
		SET name = $1, posology = $2, times = $3, current_stock = $4, min_threshold = $5, units_per_take = $6
		WHERE id = $7`,
		m.Name, m.Posology, times, m.CurrentStock, m.MinThreshold, m.UnitsPerTake, m.ID)
	if err != nil {
		return fmt.Errorf("failed to update medication: %w", err)
	}
	return expectOne(res, "medication", m.ID)
}

func (s *Store) UpdateMedicationStock(ctx context.Context, id string, stock int) error {
	res, err := s.db.ExecContext(ctx, "UPDATE medications SET current_stock = $1 WHERE id = $2", stock, id)
	if err != nil {
		return fmt.Errorf("failed to update stock: %w", err)
	}
	return expectOne(res, "medication", id)
}

func (s *Store) DeleteMedication(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM medications WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete medication: %w", err)
	}
	return expectOne(res, "medication", id)
}
