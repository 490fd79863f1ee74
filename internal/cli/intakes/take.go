package intakes

import (
	"errors"
	"fmt"
	"time"

	"github.com/julianstephens/doselit/internal/cli"
	"github.com/julianstephens/doselit/internal/constants"
	"github.com/julianstephens/doselit/internal/models"
	"github.com/julianstephens/doselit/internal/reconcile"
	"github.com/julianstephens/doselit/internal/status"
	"github.com/julianstephens/doselit/internal/storage"
	"github.com/julianstephens/doselit/internal/utils"
)

func validateTarget(id, med string) error {
	if (id == "") == (med == "") {
		return fmt.Errorf("pass either an intake ID or --med")
	}
	return nil
}

// resolveTarget selects one intake, either directly by id or as the
// earliest pending dose of medication med due today.
func resolveTarget(ctx *cli.Context, userID string, loc *time.Location, id, med string) (models.Intake, models.Medication, error) {
	bg := ctx.Context()
	if id != "" {
		in, err := ctx.Store.GetIntake(bg, id)
		if err != nil {
			return models.Intake{}, models.Medication{}, fmt.Errorf("failed to find intake with ID %s: %w", id, err)
		}
		m, err := ctx.Medication(userID, in.MedicationID)
		if err != nil {
			return models.Intake{}, models.Medication{}, err
		}
		return in, m, nil
	}

	m, err := ctx.Medication(userID, med)
	if err != nil {
		return models.Intake{}, models.Medication{}, err
	}
	now := ctx.Now()
	local := now.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	pending, err := ctx.Store.ListIntakes(bg, models.IntakeFilter{
		MedicationID: m.ID,
		From:         start.UTC(),
		To:           start.AddDate(0, 0, 1).UTC(),
		Statuses:     []models.IntakeStatus{models.IntakePending},
		Limit:        1,
	})
	if err != nil {
		return models.Intake{}, models.Medication{}, fmt.Errorf("failed to list intakes: %w", err)
	}
	if len(pending) == 0 {
		return models.Intake{}, models.Medication{}, fmt.Errorf("no pending intake of %s today", m.Name)
	}
	return pending[0], m, nil
}

type TakeCmd struct {
	ID  string `arg:"" optional:"" help:"Intake ID (see 'today --show-ids')."`
	Med string `short:"m" help:"Medication ID; picks its earliest pending intake of today."`
	At  string `help:"When the dose was taken (HH:MM, 'YYYY-MM-DD HH:MM' or RFC3339). Defaults to now."`
}

func (c *TakeCmd) Run(ctx *cli.Context) error {
	userID, err := ctx.StartSession()
	if err != nil {
		return err
	}
	_, loc, err := ctx.Settings()
	if err != nil {
		return err
	}

	in, m, err := resolveTarget(ctx, userID, loc, c.ID, c.Med)
	if err != nil {
		return err
	}

	now := ctx.Now()
	at := now
	if c.At != "" {
		if at, err = utils.ParseInstant(c.At, now, loc); err != nil {
			return err
		}
		if at.After(now) {
			return fmt.Errorf("intake time %s is in the future", c.At)
		}
	}

	out, err := reconcile.NewResolver(ctx.Store, ctx.Ledger()).Apply(ctx.Context(), in, m.UnitsPerTake, reconcile.ActionAdjust, at)
	if err != nil {
		return fmt.Errorf("failed to record intake: %w", err)
	}
	if out.Noop {
		fmt.Printf("Intake of %s at %s was already recorded\n", m.Name, in.ScheduledTime.In(loc).Format(constants.TimeFormat))
		return nil
	}

	taken := in
	taken.Status = models.IntakeTaken
	taken.TakenAt = &at
	fmt.Printf("Took %s (%s, scheduled %s)\n", m.Name, cli.StatusLabel(status.ClassifyIntake(taken, now.In(loc))),
		in.ScheduledTime.In(loc).Format(constants.TimeFormat))
	if out.Stock != nil {
		fmt.Printf("Stock: %d left\n", out.Stock.Stock)
		ctx.AlertLowStock(*out.Stock)
	}
	return nil
}

func (c *TakeCmd) Validate() error {
	return validateTarget(c.ID, c.Med)
}

type SkipCmd struct {
	ID  string `arg:"" optional:"" help:"Intake ID (see 'today --show-ids')."`
	Med string `short:"m" help:"Medication ID; picks its earliest pending intake of today."`
}

func (c *SkipCmd) Validate() error {
	return validateTarget(c.ID, c.Med)
}

func (c *SkipCmd) Run(ctx *cli.Context) error {
	userID, err := ctx.StartSession()
	if err != nil {
		return err
	}
	_, loc, err := ctx.Settings()
	if err != nil {
		return err
	}

	in, m, err := resolveTarget(ctx, userID, loc, c.ID, c.Med)
	if err != nil {
		return err
	}

	out, err := reconcile.NewResolver(ctx.Store, ctx.Ledger()).Apply(ctx.Context(), in, m.UnitsPerTake, reconcile.ActionSkip, ctx.Now())
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("intake %s no longer exists", in.ID)
		}
		return fmt.Errorf("failed to skip intake: %w", err)
	}
	if out.Noop {
		fmt.Printf("Intake of %s at %s was already recorded\n", m.Name, in.ScheduledTime.In(loc).Format(constants.TimeFormat))
		return nil
	}
	fmt.Printf("Skipped %s (scheduled %s)\n", m.Name, in.ScheduledTime.In(loc).Format(constants.TimeFormat))
	return nil
}
