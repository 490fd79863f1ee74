package intakes

import (
	"fmt"

	"github.com/julianstephens/doselit/internal/cli"
	"github.com/julianstephens/doselit/internal/lifecycle"
)

// RegenCmd runs a regeneration cycle on demand.
type RegenCmd struct {
	Med string `short:"m" help:"Only regenerate this medication ID."`
}

func (c *RegenCmd) Run(ctx *cli.Context) error {
	userID, err := ctx.UserID()
	if err != nil {
		return err
	}

	if c.Med != "" {
		m, err := ctx.Medication(userID, c.Med)
		if err != nil {
			return err
		}
		n, err := ctx.Regenerator().RegenerateMedication(ctx.Context(), m.ID, ctx.Now())
		if err != nil {
			return fmt.Errorf("failed to regenerate %s: %w", m.Name, err)
		}
		fmt.Printf("%s: %d intake(s) scheduled\n", m.Name, n)
		return nil
	}

	res, err := lifecycle.StartSession(ctx.Context(), lifecycle.NewManager(ctx.Store, ctx.Recorder()), ctx.Regenerator(), userID, ctx.Now())
	if err != nil {
		return err
	}
	for _, t := range res.Lifecycle.Deactivated {
		fmt.Printf("Treatment ended: %s (%s)\n", t.Name, t.EndDate)
	}
	for _, w := range res.Regeneration.Unscheduled {
		fmt.Printf("⚠ %s: %s\n", w.Medication, w.Reason)
	}
	for _, f := range res.Regeneration.Failures {
		fmt.Printf("❌ %s: %v\n", f.Medication, f.Err)
	}
	fmt.Println(res.Regeneration.Summary())
	if !res.Regeneration.OK() {
		return fmt.Errorf("regeneration incomplete")
	}
	return nil
}
