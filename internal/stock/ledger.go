// Package stock keeps each medication's remaining units and projects depletion.
package stock

import (
	"context"
	"fmt"
	"time"

	"github.com/julianstephens/doselit/internal/intakes"
	"github.com/julianstephens/doselit/internal/logger"
	"github.com/julianstephens/doselit/internal/models"
	"github.com/julianstephens/doselit/internal/storage"
)

// Level is the alert level of a stock count.
type Level string

const (
	LevelOK       Level = "ok"
	LevelLow      Level = "low"
	LevelCritical Level = "critical"
)

// LevelFor returns critical for an empty stock, low at or below the
// threshold, ok otherwise.
func LevelFor(stock, threshold int) Level {
	switch {
	case stock <= 0:
		return LevelCritical
	case stock <= threshold:
		return LevelLow
	}
	return LevelOK
}

// Result is the outcome of a stock mutation.
type Result struct {
	MedicationID string
	Medication   string
	Previous     int
	Stock        int
	Threshold    int
	// Low is set when the new stock is at or below the threshold.
	Low bool
	// Clamped is set when the requested decrement would have gone negative.
	Clamped bool
}

func (r Result) Level() Level {
	return LevelFor(r.Stock, r.Threshold)
}

// Projection estimates how long a medication's stock will last.
type Projection struct {
	MedicationID  string
	Medication    string
	Stock         int
	TakesPerDay   int
	UnitsPerTake  int
	DaysRemaining int
	Level         Level
}

// Ledger applies consumption and restocking against the store. Updates are
// read-modify-write; concurrent writers resolve last-writer-wins.
type Ledger struct {
	store   storage.Provider
	intakes *intakes.Store
}

func NewLedger(store storage.Provider) *Ledger {
	return &Ledger{store: store, intakes: intakes.New(store)}
}

// ApplyTaken subtracts unitsPerTake from the medication's stock, never going
// below zero. A non-positive unitsPerTake is treated as 1.
func (l *Ledger) ApplyTaken(ctx context.Context, medicationID string, unitsPerTake int) (Result, error) {
	if unitsPerTake < 1 {
		logger.Warn("invalid units per take, using 1", "medication", medicationID, "units", unitsPerTake)
		unitsPerTake = 1
	}
	return l.Adjust(ctx, medicationID, -unitsPerTake)
}

// Adjust adds delta (negative to consume) to the stock, clamped at zero.
func (l *Ledger) Adjust(ctx context.Context, medicationID string, delta int) (Result, error) {
	m, err := l.store.GetMedication(ctx, medicationID)
	if err != nil {
		return Result{}, fmt.Errorf("reading stock of %s: %w", medicationID, err)
	}
	return l.write(ctx, m, m.CurrentStock+delta)
}

// SetStock overwrites the stock, e.g. after a pharmacy refill. Negative
// input is clamped to zero.
func (l *Ledger) SetStock(ctx context.Context, medicationID string, stock int) (Result, error) {
	m, err := l.store.GetMedication(ctx, medicationID)
	if err != nil {
		return Result{}, fmt.Errorf("reading stock of %s: %w", medicationID, err)
	}
	return l.write(ctx, m, stock)
}

func (l *Ledger) write(ctx context.Context, m models.Medication, next int) (Result, error) {
	res := Result{
		MedicationID: m.ID,
		Medication:   m.Name,
		Previous:     m.CurrentStock,
		Threshold:    m.MinThreshold,
	}
	if next < 0 {
		logger.Warn("stock clamped at zero", "medication", m.ID, "requested", next)
		res.Clamped = true
		next = 0
	}
	if err := l.store.UpdateMedicationStock(ctx, m.ID, next); err != nil {
		return Result{}, fmt.Errorf("writing stock of %s: %w", m.ID, err)
	}
	res.Stock = next
	res.Low = next <= m.MinThreshold
	return res, nil
}

// ProjectDaysRemaining returns floor(stock / (takesPerDay × unitsPerTake)),
// or 0 when the daily consumption is zero or negative.
func ProjectDaysRemaining(currentStock, takesPerDay, unitsPerTake int) int {
	perDay := takesPerDay * unitsPerTake
	if perDay <= 0 || currentStock <= 0 {
		return 0
	}
	return currentStock / perDay
}

// Project computes the depletion estimate from the number of intakes
// actually scheduled on now's civil day in loc. When nothing is scheduled
// today (e.g. the treatment starts tomorrow) the slot count is used.
func (l *Ledger) Project(ctx context.Context, medicationID string, now time.Time, loc *time.Location) (Projection, error) {
	m, err := l.store.GetMedication(ctx, medicationID)
	if err != nil {
		return Projection{}, fmt.Errorf("reading medication %s: %w", medicationID, err)
	}
	if loc == nil {
		loc = now.Location()
	}

	takes, err := l.intakes.CountForDay(ctx, m.ID, now, loc)
	if err != nil {
		return Projection{}, err
	}
	if takes == 0 {
		takes = m.TakesPerDay()
	}

	return Projection{
		MedicationID:  m.ID,
		Medication:    m.Name,
		Stock:         m.CurrentStock,
		TakesPerDay:   takes,
		UnitsPerTake:  m.UnitsPerTake,
		DaysRemaining: ProjectDaysRemaining(m.CurrentStock, takes, m.UnitsPerTake),
		Level:         LevelFor(m.CurrentStock, m.MinThreshold),
	}, nil
}
