package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/julianstephens/doselit/internal/intakes"
	"github.com/julianstephens/doselit/internal/models"
	"github.com/julianstephens/doselit/internal/stock"
	"github.com/julianstephens/doselit/internal/storage"
)

// Action is what the user decided for an intake.
type Action string

const (
	ActionTake   Action = "take"
	ActionSkip   Action = "skip"
	ActionAdjust Action = "adjust"
)

func (a Action) Valid() bool {
	switch a {
	case ActionTake, ActionSkip, ActionAdjust:
		return true
	}
	return false
}

// ParseAction accepts the action names and their single-letter shortcuts.
func ParseAction(s string) (Action, error) {
	switch s {
	case "take", "t", "taken":
		return ActionTake, nil
	case "skip", "s", "skipped":
		return ActionSkip, nil
	case "adjust", "a", "adjust-time":
		return ActionAdjust, nil
	}
	return "", fmt.Errorf("unknown action %q (expected take, skip or adjust)", s)
}

// Status is the persisted status an action resolves to.
func (a Action) Status() models.IntakeStatus {
	if a == ActionSkip {
		return models.IntakeSkipped
	}
	return models.IntakeTaken
}

// TakenAt returns the taken_at written for the action: the scheduled time
// for take, the supplied instant for adjust and nothing for skip.
func (a Action) TakenAt(scheduled, at time.Time) *time.Time {
	switch a {
	case ActionTake:
		t := scheduled
		return &t
	case ActionAdjust:
		t := at.UTC()
		return &t
	}
	return nil
}

// Outcome describes what applying one action changed.
type Outcome struct {
	// Noop is set when the intake had already been resolved elsewhere.
	Noop bool
	// Stock is set when a take consumed stock.
	Stock *stock.Result
}

// Resolver writes one resolution: the intake status first, then the stock
// consumption for taken intakes.
type Resolver struct {
	intakes *intakes.Store
	ledger  *stock.Ledger
}

func NewResolver(store storage.Provider, ledger *stock.Ledger) *Resolver {
	if ledger == nil {
		ledger = stock.NewLedger(store)
	}
	return &Resolver{intakes: intakes.New(store), ledger: ledger}
}

// Apply resolves a pending intake. An intake resolved concurrently is a
// successful no-op and its stock is left untouched.
func (r *Resolver) Apply(ctx context.Context, in models.Intake, unitsPerTake int, action Action, at time.Time) (Outcome, error) {
	if err := r.resolveStatus(ctx, in, action, at); err != nil {
		if errors.Is(err, storage.ErrAlreadyResolved) {
			return Outcome{Noop: true}, nil
		}
		return Outcome{}, err
	}
	return r.consume(ctx, in, unitsPerTake, action)
}

func (r *Resolver) resolveStatus(ctx context.Context, in models.Intake, action Action, at time.Time) error {
	if !action.Valid() {
		return fmt.Errorf("invalid action %q", action)
	}
	return r.intakes.Resolve(ctx, in.ID, action.Status(), action.TakenAt(in.ScheduledTime, at))
}

func (r *Resolver) consume(ctx context.Context, in models.Intake, unitsPerTake int, action Action) (Outcome, error) {
	if action.Status() != models.IntakeTaken {
		return Outcome{}, nil
	}
	res, err := r.ledger.ApplyTaken(ctx, in.MedicationID, unitsPerTake)
	if err != nil {
		return Outcome{}, fmt.Errorf("updating stock: %w", err)
	}
	return Outcome{Stock: &res}, nil
}
