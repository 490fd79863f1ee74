// Package lifecycle deactivates finished treatments and runs the
// session-start cycle.
package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/julianstephens/doselit/internal/logger"
	"github.com/julianstephens/doselit/internal/metrics"
	"github.com/julianstephens/doselit/internal/models"
	"github.com/julianstephens/doselit/internal/schedule"
	"github.com/julianstephens/doselit/internal/storage"
	"github.com/julianstephens/doselit/internal/utils"
)

// Failure is a treatment that could not be deactivated.
type Failure struct {
	TreatmentID string
	Treatment   string
	Err         error
}

// Result lists the treatments deactivated by one run.
type Result struct {
	Checked     int
	Deactivated []models.Treatment
	Failures    []Failure
}

type Manager struct {
	store   storage.Provider
	metrics metrics.Recorder
}

func NewManager(store storage.Provider, recorder metrics.Recorder) *Manager {
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	return &Manager{store: store, metrics: recorder}
}

// Run sets inactive every active treatment whose end date is before today
// in the configured timezone. Only is_active is ever changed.
func (m *Manager) Run(ctx context.Context, userID string, now time.Time) (Result, error) {
	_, loc := storage.CivilSettings(ctx, m.store)
	today := utils.DayString(now, loc)

	treatments, err := m.store.ListTreatments(ctx, userID, true)
	if err != nil {
		return Result{}, fmt.Errorf("listing active treatments: %w", err)
	}

	res := Result{Checked: len(treatments)}
	for _, t := range treatments {
		if !t.HasEnded(today) {
			continue
		}
		if err := m.store.SetTreatmentActive(ctx, t.ID, false); err != nil {
			logger.Error("deactivating treatment failed", "treatment", t.ID, "error", err)
			res.Failures = append(res.Failures, Failure{TreatmentID: t.ID, Treatment: t.Name, Err: err})
			continue
		}
		t.IsActive = false
		res.Deactivated = append(res.Deactivated, t)
		logger.Info("treatment ended", "treatment", t.ID, "name", t.Name, "end_date", t.EndDate)
	}
	m.metrics.RecordTreatmentsDeactivated(len(res.Deactivated))
	return res, nil
}

// StartResult combines the lifecycle and regeneration passes.
type StartResult struct {
	Lifecycle    Result
	Regeneration schedule.Result
}

// StartSession runs the lifecycle manager, then the regenerator, so ended
// treatments are never expanded. Neither pass aborts the other.
func StartSession(ctx context.Context, m *Manager, r *schedule.Regenerator, userID string, now time.Time) (StartResult, error) {
	var out StartResult
	lc, lcErr := m.Run(ctx, userID, now)
	if lcErr != nil {
		logger.Warn("lifecycle pass failed", "error", lcErr)
	}
	out.Lifecycle = lc

	regen, err := r.Run(ctx, userID, now)
	if err != nil {
		return out, err
	}
	out.Regeneration = regen
	return out, lcErr
}
