package treatments

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/julianstephens/doselit/internal/cli"
	"github.com/julianstephens/doselit/internal/constants"
	"github.com/julianstephens/doselit/internal/models"
	"github.com/julianstephens/doselit/internal/utils"
)

type TreatmentAddCmd struct {
	Name      string `arg:"" help:"Treatment name."`
	Pathology string `short:"p" help:"Condition being treated."`
	Start     string `short:"s" help:"Start date (YYYY-MM-DD). Defaults to today."`
	End       string `short:"e" help:"End date (YYYY-MM-DD), inclusive. Omit for an open-ended treatment."`
	Notes     string `short:"n" help:"Free-form notes."`
}

func (c *TreatmentAddCmd) Run(ctx *cli.Context) error {
	userID, err := ctx.UserID()
	if err != nil {
		return err
	}
	_, loc, err := ctx.Settings()
	if err != nil {
		return err
	}

	start := c.Start
	if start == "" {
		start = utils.DayString(ctx.Now(), loc)
	}
	t := models.Treatment{
		ID:        uuid.New().String(),
		UserID:    userID,
		Name:      c.Name,
		Pathology: c.Pathology,
		StartDate: start,
		EndDate:   c.End,
		IsActive:  true,
		Notes:     c.Notes,
		CreatedAt: ctx.Now(),
	}
	if err := t.Validate(); err != nil {
		return fmt.Errorf("invalid treatment: %w", err)
	}
	if t.HasEnded(utils.DayString(ctx.Now(), loc)) {
		t.IsActive = false
	}

	if err := ctx.Store.AddTreatment(ctx.Context(), t); err != nil {
		return err
	}
	fmt.Printf("Added treatment: %s (ID: %s)\n", t.Name, t.ID)
	return nil
}

type TreatmentListCmd struct {
	All     bool `short:"a" help:"Include ended treatments."`
	ShowIDs bool `help:"Show treatment IDs." name:"show-ids"`
}

func (c *TreatmentListCmd) Run(ctx *cli.Context) error {
	userID, err := ctx.StartSession()
	if err != nil {
		return err
	}

	list, err := ctx.Store.ListTreatments(ctx.Context(), userID, !c.All)
	if err != nil {
		return fmt.Errorf("failed to get treatments: %w", err)
	}
	if len(list) == 0 {
		fmt.Println("No treatments found")
		return nil
	}

	headers := []string{"Name", "Pathology", "Start", "End", "Status", "Medications"}
	if c.ShowIDs {
		headers = append(headers, "ID")
	}
	var rows [][]string
	for _, t := range list {
		meds, err := ctx.Store.ListMedications(ctx.Context(), t.ID)
		if err != nil {
			return fmt.Errorf("failed to get medications of %s: %w", t.Name, err)
		}
		end := t.EndDate
		if end == "" {
			end = "ongoing"
		}
		state := "active"
		if !t.IsActive {
			state = cli.MutedStyle.Render("ended")
		}
		row := []string{t.Name, t.Pathology, t.StartDate, end, state, fmt.Sprintf("%d", len(meds))}
		if c.ShowIDs {
			row = append(row, t.ID)
		}
		rows = append(rows, row)
	}
	fmt.Println(cli.Table(headers, rows))
	return nil
}

type TreatmentEditCmd struct {
	ID        string  `arg:"" help:"Treatment ID to edit."`
	Name      *string `help:"New name."`
	Pathology *string `help:"New pathology."`
	Start     *string `help:"New start date (YYYY-MM-DD)."`
	End       *string `help:"New end date (YYYY-MM-DD), empty to make it open-ended."`
	Notes     *string `help:"New notes."`
}

func (c *TreatmentEditCmd) Run(ctx *cli.Context) error {
	userID, err := ctx.UserID()
	if err != nil {
		return err
	}
	t, err := ctx.Treatment(userID, c.ID)
	if err != nil {
		return err
	}

	updated := false
	set := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
			updated = true
		}
	}
	set(&t.Name, c.Name)
	set(&t.Pathology, c.Pathology)
	set(&t.StartDate, c.Start)
	set(&t.EndDate, c.End)
	set(&t.Notes, c.Notes)
	if !updated {
		fmt.Println("No changes specified.")
		return nil
	}
	if err := t.Validate(); err != nil {
		return fmt.Errorf("invalid treatment: %w", err)
	}

	// Moving the end date forward revives an ended treatment.
	if c.End != nil && !t.IsActive {
		_, loc, err := ctx.Settings()
		if err != nil {
			return err
		}
		t.IsActive = !t.HasEnded(utils.DayString(ctx.Now(), loc))
	}

	if err := ctx.Store.UpdateTreatment(ctx.Context(), t); err != nil {
		return fmt.Errorf("failed to update treatment: %w", err)
	}
	fmt.Printf("Updated treatment: %s (ID: %s)\n", t.Name, t.ID)
	if _, err := ctx.StartSession(); err != nil {
		return err
	}
	return nil
}

// TreatmentEndCmd sets the end date. An end date before today deactivates
// the treatment right away.
type TreatmentEndCmd struct {
	ID   string `arg:"" help:"Treatment ID to end."`
	Date string `short:"d" help:"Last day of the treatment (YYYY-MM-DD). Defaults to today."`
}

func (c *TreatmentEndCmd) Run(ctx *cli.Context) error {
	userID, err := ctx.UserID()
	if err != nil {
		return err
	}
	_, loc, err := ctx.Settings()
	if err != nil {
		return err
	}
	t, err := ctx.Treatment(userID, c.ID)
	if err != nil {
		return err
	}

	t.EndDate = c.Date
	if t.EndDate == "" {
		t.EndDate = utils.DayString(ctx.Now(), loc)
	}
	if _, err := time.Parse(constants.DateFormat, t.EndDate); err != nil {
		return fmt.Errorf("invalid date (expected YYYY-MM-DD): %w", err)
	}
	if err := t.Validate(); err != nil {
		return fmt.Errorf("invalid treatment: %w", err)
	}
	if err := ctx.Store.UpdateTreatment(ctx.Context(), t); err != nil {
		return fmt.Errorf("failed to update treatment: %w", err)
	}
	fmt.Printf("Treatment %s ends on %s\n", t.Name, t.EndDate)

	if _, err := ctx.StartSession(); err != nil {
		return err
	}
	return nil
}

type TreatmentDeleteCmd struct {
	ID string `arg:"" help:"Treatment ID to delete."`
}

func (c *TreatmentDeleteCmd) Run(ctx *cli.Context) error {
	userID, err := ctx.UserID()
	if err != nil {
		return err
	}
	t, err := ctx.Treatment(userID, c.ID)
	if err != nil {
		return err
	}

	if err := ctx.Store.DeleteTreatment(ctx.Context(), c.ID); err != nil {
		return fmt.Errorf("failed to delete treatment: %w", err)
	}
	fmt.Printf("Deleted treatment: %s (ID: %s) with its medications and intakes\n", t.Name, c.ID)
	return nil
}
