package intakes

import (
	"fmt"
	"time"

	"github.com/julianstephens/doselit/internal/cli"
	"github.com/julianstephens/doselit/internal/constants"
	"github.com/julianstephens/doselit/internal/models"
	"github.com/julianstephens/doselit/internal/status"
)

type HistoryCmd struct {
	Days   int    `short:"d" help:"Number of past days to show, today included." default:"7"`
	Med    string `short:"m" help:"Only show this medication ID."`
	Status string `short:"s" help:"Only show this stored status (pending|taken|skipped)."`
}

func (c *HistoryCmd) Validate() error {
	if c.Days < 1 {
		return fmt.Errorf("days must be at least 1")
	}
	if c.Status != "" && !models.IntakeStatus(c.Status).Valid() {
		return fmt.Errorf("invalid status %q (expected pending, taken or skipped)", c.Status)
	}
	return nil
}

func (c *HistoryCmd) Run(ctx *cli.Context) error {
	userID, err := ctx.StartSession()
	if err != nil {
		return err
	}
	_, loc, err := ctx.Settings()
	if err != nil {
		return err
	}
	if c.Med != "" {
		if _, err := ctx.Medication(userID, c.Med); err != nil {
			return err
		}
	}

	now := ctx.Now()
	local := now.In(loc)
	end := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc).AddDate(0, 0, 1)
	filter := models.IntakeFilter{
		UserID:       userID,
		MedicationID: c.Med,
		From:         end.AddDate(0, 0, -c.Days).UTC(),
		// Future intakes of today are not history yet.
		To: now,
	}
	if c.Status != "" {
		filter.Statuses = []models.IntakeStatus{models.IntakeStatus(c.Status)}
	}

	list, err := ctx.Store.ListIntakes(ctx.Context(), filter)
	if err != nil {
		return fmt.Errorf("failed to list intakes: %w", err)
	}
	if len(list) == 0 {
		fmt.Println("No intakes found")
		return nil
	}

	meds, err := loadMedications(ctx, userID)
	if err != nil {
		return err
	}

	var rows [][]string
	for i := len(list) - 1; i >= 0; i-- {
		in := list[i]
		taken := ""
		if in.TakenAt != nil {
			taken = in.TakenAt.In(loc).Format(constants.DateFormat + " " + constants.TimeFormat)
		}
		rows = append(rows, []string{
			in.ScheduledTime.In(loc).Format(constants.DateFormat),
			in.ScheduledTime.In(loc).Format(constants.TimeFormat),
			meds[in.MedicationID].Name,
			cli.StatusLabel(status.ClassifyIntake(in, local)),
			taken,
		})
	}
	fmt.Println(cli.Table([]string{"Date", "Time", "Medication", "Status", "Taken at"}, rows))
	return nil
}
