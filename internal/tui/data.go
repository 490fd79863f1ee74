package tui

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/julianstephens/doselit/internal/adherence"
	"github.com/julianstephens/doselit/internal/backlog"
	"github.com/julianstephens/doselit/internal/models"
	"github.com/julianstephens/doselit/internal/reconcile"
	"github.com/julianstephens/doselit/internal/status"
	"github.com/julianstephens/doselit/internal/stock"
	"github.com/julianstephens/doselit/internal/tui/components/intakelist"
)

type snapshot struct {
	today       []intakelist.Item
	projections []stock.Projection
	thresholds  map[string]int
	report      adherence.Report
	missed      int
	loadedAt    time.Time
}

type loadedMsg struct {
	snap snapshot
	err  error
}

type resolvedMsg struct {
	text string
	err  error
}

func (m Model) load() tea.Cmd {
	return func() tea.Msg {
		snap, err := m.fetch()
		return loadedMsg{snap: snap, err: err}
	}
}

func (m Model) fetch() (snapshot, error) {
	now := m.now()
	snap := snapshot{loadedAt: now, thresholds: make(map[string]int)}

	meds, err := m.store.ListMedicationsForUser(m.ctx, m.userID, true)
	if err != nil {
		return snap, fmt.Errorf("listing medications: %w", err)
	}
	byID := make(map[string]models.Medication, len(meds))
	for _, med := range meds {
		byID[med.ID] = med
		snap.thresholds[med.ID] = med.MinThreshold
		p, err := m.ledger.Project(m.ctx, med.ID, now, m.loc)
		if err != nil {
			return snap, err
		}
		snap.projections = append(snap.projections, p)
	}

	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, m.loc)
	list, err := m.store.ListIntakes(m.ctx, models.IntakeFilter{
		UserID: m.userID,
		From:   start.UTC(),
		To:     start.AddDate(0, 0, 1).UTC(),
	})
	if err != nil {
		return snap, fmt.Errorf("listing intakes: %w", err)
	}
	for _, in := range list {
		med, ok := byID[in.MedicationID]
		if !ok {
			continue
		}
		snap.today = append(snap.today, intakelist.Item{
			Intake:     in,
			Medication: med,
			Status:     status.ClassifyIntake(in, now),
			Location:   m.loc,
		})
	}

	if snap.report, err = adherence.NewAggregator(m.store).Report(m.ctx, m.userID, now); err != nil {
		return snap, err
	}

	b, err := backlog.NewDetector(m.store).Detect(m.ctx, m.userID, now)
	if err != nil {
		return snap, err
	}
	snap.missed = b.Count()
	return snap, nil
}

func (m Model) resolve(it intakelist.Item, action reconcile.Action) tea.Cmd {
	return func() tea.Msg {
		if it.Intake.Status != models.IntakePending {
			return resolvedMsg{text: it.Medication.Name + " is already recorded"}
		}
		out, err := m.resolver.Apply(m.ctx, it.Intake, it.Medication.UnitsPerTake, action, m.clock())
		if err != nil {
			return resolvedMsg{err: err}
		}
		if out.Noop {
			return resolvedMsg{text: it.Medication.Name + " was already recorded elsewhere"}
		}
		if action == reconcile.ActionSkip {
			return resolvedMsg{text: "Skipped " + it.Medication.Name}
		}
		text := "Took " + it.Medication.Name
		if out.Stock != nil {
			text += fmt.Sprintf(", %d left", out.Stock.Stock)
			if out.Stock.Low {
				text += " (low stock)"
				if m.onLowStock != nil {
					m.onLowStock(*out.Stock)
				}
			}
		}
		return resolvedMsg{text: text}
	}
}
