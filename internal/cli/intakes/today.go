package intakes

import (
	"fmt"
	"time"

	"github.com/julianstephens/doselit/internal/cli"
	"github.com/julianstephens/doselit/internal/constants"
	"github.com/julianstephens/doselit/internal/models"
	"github.com/julianstephens/doselit/internal/status"
)

type TodayCmd struct {
	ShowIDs bool `help:"Show intake IDs." name:"show-ids"`
}

func (c *TodayCmd) Run(ctx *cli.Context) error {
	userID, err := ctx.StartSession()
	if err != nil {
		return err
	}
	_, loc, err := ctx.Settings()
	if err != nil {
		return err
	}

	local := ctx.Now().In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	list, err := ctx.Store.ListIntakes(ctx.Context(), models.IntakeFilter{
		UserID: userID,
		From:   start.UTC(),
		To:     start.AddDate(0, 0, 1).UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to list intakes: %w", err)
	}

	fmt.Println(cli.HeaderStyle.Render("Today, " + local.Format("Monday 2 January")))
	if len(list) == 0 {
		fmt.Println("No intakes scheduled today")
		return nil
	}

	meds, err := loadMedications(ctx, userID)
	if err != nil {
		return err
	}

	headers := []string{"Time", "Medication", "Posology", "Status"}
	if c.ShowIDs {
		headers = append(headers, "ID")
	}
	var rows [][]string
	tally := make(map[models.IntakeStatus]int)
	for _, in := range list {
		d := status.ClassifyIntake(in, local)
		tally[in.Status]++
		m := meds[in.MedicationID]
		row := []string{
			in.ScheduledTime.In(loc).Format(constants.TimeFormat),
			m.Name,
			m.Posology,
			cli.StatusLabel(d) + takenSuffix(in, loc),
		}
		if c.ShowIDs {
			row = append(row, in.ID)
		}
		rows = append(rows, row)
	}
	fmt.Println(cli.Table(headers, rows))
	fmt.Printf("%d taken, %d skipped, %d to take\n",
		tally[models.IntakeTaken], tally[models.IntakeSkipped], tally[models.IntakePending])
	return nil
}

func takenSuffix(in models.Intake, loc *time.Location) string {
	if in.Status != models.IntakeTaken || in.TakenAt == nil {
		return ""
	}
	return cli.MutedStyle.Render(" at " + in.TakenAt.In(loc).Format(constants.TimeFormat))
}

// loadMedications indexes the user's medications by id, inactive treatments
// included so history rows keep their names.
func loadMedications(ctx *cli.Context, userID string) (map[string]models.Medication, error) {
	list, err := ctx.Store.ListMedicationsForUser(ctx.Context(), userID, false)
	if err != nil {
		return nil, fmt.Errorf("failed to list medications: %w", err)
	}
	out := make(map[string]models.Medication, len(list))
	for _, m := range list {
		out[m.ID] = m
	}
	return out, nil
}
