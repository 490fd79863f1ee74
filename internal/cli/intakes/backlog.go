package intakes

import (
	"fmt"
	"time"

	"github.com/julianstephens/doselit/internal/backlog"
	"github.com/julianstephens/doselit/internal/cli"
	"github.com/julianstephens/doselit/internal/constants"
)

type BacklogCmd struct {
	ShowIDs bool `help:"Show intake IDs." name:"show-ids"`
}

func (c *BacklogCmd) Run(ctx *cli.Context) error {
	userID, err := ctx.StartSession()
	if err != nil {
		return err
	}
	_, loc, err := ctx.Settings()
	if err != nil {
		return err
	}

	b, err := backlog.NewDetector(ctx.Store).Detect(ctx.Context(), userID, ctx.Now().In(loc))
	if err != nil {
		return fmt.Errorf("failed to detect missed intakes: %w", err)
	}
	if b.Count() == 0 {
		fmt.Println("No missed intakes, you're all caught up")
		return nil
	}

	printBacklog(b, loc, c.ShowIDs)
	fmt.Println("Run 'doselit reconcile' to record what happened.")
	return nil
}

func printBacklog(b backlog.Backlog, loc *time.Location, showIDs bool) {
	fmt.Printf("%d missed intake(s) from previous days:\n\n", b.Count())
	for _, g := range b.Groups {
		title := g.Medication
		if g.Treatment != "" {
			title += cli.MutedStyle.Render(" (" + g.Treatment + ")")
		}
		fmt.Println(cli.HeaderStyle.Render(title))
		for _, e := range g.Entries {
			line := "  " + formatInstant(e.Intake.ScheduledTime, loc)
			if showIDs {
				line += cli.MutedStyle.Render("  " + e.Intake.ID)
			}
			fmt.Println(line)
		}
	}
	fmt.Println()
}

func formatInstant(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("Mon " + constants.DateFormat + " " + constants.TimeFormat)
}
