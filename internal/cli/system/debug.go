package system

import (
	"encoding/json"
	"fmt"

	"github.com/julianstephens/doselit/internal/cli"
	"github.com/julianstephens/doselit/internal/models"
	"github.com/julianstephens/doselit/internal/utils"
)

// DebugCmd prints raw records as JSON for scripts and bug reports.
type DebugCmd struct {
	DBPath         DebugDBPathCmd         `cmd:"" name:"db-path" help:"Show database path."`
	DumpTreatment  DebugDumpTreatmentCmd  `cmd:"" help:"Dump a treatment as JSON."`
	DumpMedication DebugDumpMedicationCmd `cmd:"" help:"Dump a medication as JSON."`
	DumpIntakes    DebugDumpIntakesCmd    `cmd:"" help:"Dump the intakes of a medication as JSON."`
	DumpSettings   DebugDumpSettingsCmd   `cmd:"" help:"Dump settings as JSON."`
}

func dump(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	fmt.Println(string(out))
	return nil
}

type DebugDBPathCmd struct{}

func (cmd *DebugDBPathCmd) Run(ctx *cli.Context) error {
	return dump(map[string]string{"path": ctx.Store.GetConfigPath()})
}

type DebugDumpTreatmentCmd struct {
	ID string `arg:"" help:"ID of the treatment to dump."`
}

func (cmd *DebugDumpTreatmentCmd) Run(ctx *cli.Context) error {
	userID, err := ctx.UserID()
	if err != nil {
		return err
	}
	t, err := ctx.Treatment(userID, cmd.ID)
	if err != nil {
		return err
	}
	meds, err := ctx.Store.ListMedications(ctx.Context(), t.ID)
	if err != nil {
		return fmt.Errorf("failed to get medications: %w", err)
	}
	return dump(struct {
		models.Treatment
		Medications []models.Medication `json:"medications"`
	}{t, meds})
}

type DebugDumpMedicationCmd struct {
	ID string `arg:"" help:"ID of the medication to dump."`
}

func (cmd *DebugDumpMedicationCmd) Run(ctx *cli.Context) error {
	userID, err := ctx.UserID()
	if err != nil {
		return err
	}
	m, err := ctx.Medication(userID, cmd.ID)
	if err != nil {
		return err
	}
	return dump(m)
}

type DebugDumpIntakesCmd struct {
	ID   string `arg:"" help:"ID of the medication whose intakes to dump."`
	Date string `short:"d" help:"Only intakes scheduled on this day (YYYY-MM-DD or 'today')."`
}

func (cmd *DebugDumpIntakesCmd) Run(ctx *cli.Context) error {
	userID, err := ctx.UserID()
	if err != nil {
		return err
	}
	m, err := ctx.Medication(userID, cmd.ID)
	if err != nil {
		return err
	}

	filter := models.IntakeFilter{MedicationID: m.ID}
	if cmd.Date != "" {
		_, loc, err := ctx.Settings()
		if err != nil {
			return err
		}
		date := cmd.Date
		if date == "today" {
			date = utils.DayString(ctx.Now(), loc)
		}
		day, err := utils.ParseDateInLocation(date, loc)
		if err != nil {
			return fmt.Errorf("invalid date format: %s (expected YYYY-MM-DD or 'today')", cmd.Date)
		}
		filter.From = day.UTC()
		filter.To = day.AddDate(0, 0, 1).UTC()
	}

	list, err := ctx.Store.ListIntakes(ctx.Context(), filter)
	if err != nil {
		return fmt.Errorf("failed to get intakes: %w", err)
	}
	if list == nil {
		list = []models.Intake{}
	}
	return dump(list)
}

type DebugDumpSettingsCmd struct{}

func (cmd *DebugDumpSettingsCmd) Run(ctx *cli.Context) error {
	settings, _, err := ctx.Settings()
	if err != nil {
		return err
	}
	return dump(struct {
		models.Settings
		RegenInterval string `json:"regen_interval"`
	}{settings, settings.RegenInterval.String()})
}
