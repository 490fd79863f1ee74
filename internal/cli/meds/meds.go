package meds

import (
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"github.com/julianstephens/doselit/internal/cli"
	"github.com/julianstephens/doselit/internal/constants"
	"github.com/julianstephens/doselit/internal/logger"
	"github.com/julianstephens/doselit/internal/models"
	"github.com/julianstephens/doselit/internal/posology"
	"github.com/julianstephens/doselit/internal/stock"
)

type MedAddCmd struct {
	Treatment string   `short:"t" required:"" help:"Treatment ID the medication belongs to."`
	Name      string   `arg:"" help:"Medication name."`
	Posology  string   `short:"p" help:"Free-text posology, e.g. '1 comprimé matin et soir'."`
	Times     []string `help:"Intake times (HH:MM), comma-separated. Derived from the posology when omitted." sep:","`
	Stock     int      `help:"Units currently on hand." default:"0"`
	Threshold int      `help:"Low-stock alert threshold." default:"${threshold}"`
	Units     int      `short:"u" help:"Units consumed per intake." default:"${units}"`
}

func (c *MedAddCmd) Validate() error {
	if c.Stock < 0 {
		return fmt.Errorf("stock cannot be negative")
	}
	if c.Threshold < 0 {
		return fmt.Errorf("threshold cannot be negative")
	}
	if c.Units < 1 {
		return fmt.Errorf("units per intake must be at least 1")
	}
	return nil
}

func (c *MedAddCmd) Run(ctx *cli.Context) error {
	userID, err := ctx.UserID()
	if err != nil {
		return err
	}
	t, err := ctx.Treatment(userID, c.Treatment)
	if err != nil {
		return err
	}

	slots, err := resolveSlots(c.Times, c.Posology)
	if err != nil {
		return err
	}
	m := models.Medication{
		ID:           uuid.New().String(),
		TreatmentID:  t.ID,
		Name:         c.Name,
		Posology:     c.Posology,
		Times:        slots,
		CurrentStock: c.Stock,
		MinThreshold: c.Threshold,
		UnitsPerTake: c.Units,
		CreatedAt:    ctx.Now(),
	}
	if err := m.Validate(); err != nil {
		return fmt.Errorf("invalid medication: %w", err)
	}
	if err := ctx.Store.AddMedication(ctx.Context(), m); err != nil {
		return err
	}
	fmt.Printf("Added medication: %s (ID: %s) to %s\n", m.Name, m.ID, t.Name)
	fmt.Printf("Schedule: %s\n", posology.Describe(m.Times))

	if !m.IsScheduled() {
		fmt.Println(cli.WarningStyle.Render("No intake times, set them with 'doselit med edit --times'."))
		return nil
	}
	n, err := ctx.Regenerator().RegenerateMedication(ctx.Context(), m.ID, ctx.Now())
	if err != nil {
		return fmt.Errorf("failed to schedule intakes: %w", err)
	}
	fmt.Printf("%d intake(s) scheduled\n", n)
	return nil
}

// resolveSlots prefers explicit times and falls back to the slots the
// posology text implies.
func resolveSlots(times []string, text string) ([]string, error) {
	if len(times) > 0 {
		return posology.NormalizeSlots(times)
	}
	if text == "" {
		return nil, nil
	}
	slots, ok := posology.ParsePosology(text)
	if !ok {
		logger.Debug("posology not understood", "posology", text)
		return nil, nil
	}
	return slots, nil
}

type MedListCmd struct {
	Treatment string `short:"t" help:"Only list medications of this treatment ID."`
	All       bool   `short:"a" help:"Include medications of ended treatments."`
	ShowIDs   bool   `help:"Show medication IDs." name:"show-ids"`
}

func (c *MedListCmd) Run(ctx *cli.Context) error {
	userID, err := ctx.StartSession()
	if err != nil {
		return err
	}
	_, loc, err := ctx.Settings()
	if err != nil {
		return err
	}

	var list []models.Medication
	if c.Treatment != "" {
		t, err := ctx.Treatment(userID, c.Treatment)
		if err != nil {
			return err
		}
		list, err = ctx.Store.ListMedications(ctx.Context(), t.ID)
		if err != nil {
			return fmt.Errorf("failed to get medications: %w", err)
		}
	} else {
		list, err = ctx.Store.ListMedicationsForUser(ctx.Context(), userID, !c.All)
		if err != nil {
			return fmt.Errorf("failed to get medications: %w", err)
		}
	}
	if len(list) == 0 {
		fmt.Println("No medications found")
		return nil
	}

	headers := []string{"Name", "Posology", "Schedule", "Stock", "Days left"}
	if c.ShowIDs {
		headers = append(headers, "ID")
	}
	ledger := ctx.Ledger()
	var rows [][]string
	for _, m := range list {
		p, err := ledger.Project(ctx.Context(), m.ID, ctx.Now(), loc)
		if err != nil {
			return err
		}
		level := stock.LevelFor(m.CurrentStock, m.MinThreshold)
		days := "-"
		if p.TakesPerDay > 0 {
			days = strconv.Itoa(p.DaysRemaining)
		}
		row := []string{
			m.Name,
			m.Posology,
			posology.Describe(m.Times),
			cli.StockLabel(level, fmt.Sprintf("%d/%d", m.CurrentStock, m.MinThreshold)),
			days,
		}
		if c.ShowIDs {
			row = append(row, m.ID)
		}
		rows = append(rows, row)
	}
	fmt.Println(cli.Table(headers, rows))
	return nil
}

// MedEditCmd updates a medication. Changing the times schedules the new
// slots; pending intakes already scheduled at removed slots are kept.
type MedEditCmd struct {
	ID        string   `arg:"" help:"Medication ID to edit."`
	Name      *string  `help:"New name."`
	Posology  *string  `help:"New free-text posology."`
	Times     []string `help:"New intake times (HH:MM), comma-separated." sep:","`
	Threshold *int     `help:"New low-stock alert threshold."`
	Units     *int     `short:"u" help:"New units consumed per intake."`
}

func (c *MedEditCmd) Run(ctx *cli.Context) error {
	userID, err := ctx.UserID()
	if err != nil {
		return err
	}
	m, err := ctx.Medication(userID, c.ID)
	if err != nil {
		return err
	}

	updated := false
	if c.Name != nil {
		m.Name = *c.Name
		updated = true
	}
	if c.Posology != nil {
		m.Posology = *c.Posology
		updated = true
	}
	if len(c.Times) > 0 {
		slots, err := posology.NormalizeSlots(c.Times)
		if err != nil {
			return err
		}
		m.Times = slots
		updated = true
	}
	if c.Threshold != nil {
		m.MinThreshold = *c.Threshold
		updated = true
	}
	if c.Units != nil {
		m.UnitsPerTake = *c.Units
		updated = true
	}
	if !updated {
		fmt.Println("No changes specified.")
		return nil
	}
	if err := m.Validate(); err != nil {
		return fmt.Errorf("invalid medication: %w", err)
	}

	if err := ctx.Store.UpdateMedication(ctx.Context(), m); err != nil {
		return fmt.Errorf("failed to update medication: %w", err)
	}
	fmt.Printf("Updated medication: %s (ID: %s)\n", m.Name, m.ID)

	if len(c.Times) > 0 {
		n, err := ctx.Regenerator().RegenerateMedication(ctx.Context(), m.ID, ctx.Now())
		if err != nil {
			return fmt.Errorf("failed to schedule intakes: %w", err)
		}
		fmt.Printf("Schedule: %s, %d new intake(s)\n", posology.Describe(m.Times), n)
	}
	return nil
}

// MedStockCmd records a refill (--set) or a correction (--add, negative to
// remove units).
type MedStockCmd struct {
	ID  string `arg:"" help:"Medication ID."`
	Set *int   `help:"Set the stock to this many units."`
	Add *int   `help:"Add this many units (negative to remove)."`
}

func (c *MedStockCmd) Validate() error {
	if c.Set != nil && c.Add != nil {
		return fmt.Errorf("--set and --add are mutually exclusive")
	}
	if c.Set != nil && *c.Set < 0 {
		return fmt.Errorf("stock cannot be negative")
	}
	return nil
}

func (c *MedStockCmd) Run(ctx *cli.Context) error {
	userID, err := ctx.UserID()
	if err != nil {
		return err
	}
	m, err := ctx.Medication(userID, c.ID)
	if err != nil {
		return err
	}
	_, loc, err := ctx.Settings()
	if err != nil {
		return err
	}

	ledger := ctx.Ledger()
	var res stock.Result
	switch {
	case c.Set != nil:
		res, err = ledger.SetStock(ctx.Context(), m.ID, *c.Set)
	case c.Add != nil:
		res, err = ledger.Adjust(ctx.Context(), m.ID, *c.Add)
	default:
		res = stock.Result{
			MedicationID: m.ID,
			Medication:   m.Name,
			Previous:     m.CurrentStock,
			Stock:        m.CurrentStock,
			Threshold:    m.MinThreshold,
			Low:          m.CurrentStock <= m.MinThreshold,
		}
	}
	if err != nil {
		return err
	}

	text := fmt.Sprintf("%d unit(s)", res.Stock)
	if res.Previous != res.Stock {
		text = fmt.Sprintf("%d → %d unit(s)", res.Previous, res.Stock)
	}
	fmt.Printf("%s stock: %s\n", m.Name, cli.StockLabel(res.Level(), text))
	if res.Clamped {
		fmt.Println(cli.MutedStyle.Render("Stock cannot go below zero."))
	}

	p, err := ledger.Project(ctx.Context(), m.ID, ctx.Now(), loc)
	if err != nil {
		return err
	}
	if p.TakesPerDay > 0 {
		fmt.Printf("Lasts about %d day(s) at %d intake(s) of %d unit(s) per day\n", p.DaysRemaining, p.TakesPerDay, p.UnitsPerTake)
	}

	if c.Set != nil || c.Add != nil {
		ctx.AlertLowStock(res)
	}
	return nil
}

type MedDeleteCmd struct {
	ID string `arg:"" help:"Medication ID to delete."`
}

func (c *MedDeleteCmd) Run(ctx *cli.Context) error {
	userID, err := ctx.UserID()
	if err != nil {
		return err
	}
	m, err := ctx.Medication(userID, c.ID)
	if err != nil {
		return err
	}

	if err := ctx.Store.DeleteMedication(ctx.Context(), m.ID); err != nil {
		return fmt.Errorf("failed to delete medication: %w", err)
	}
	fmt.Printf("Deleted medication: %s (ID: %s) with its intakes\n", m.Name, m.ID)
	return nil
}

// Vars are the kong interpolation variables the med commands rely on.
func Vars() map[string]string {
	return map[string]string{
		"threshold": strconv.Itoa(constants.DefaultMinThreshold),
		"units":     strconv.Itoa(constants.DefaultUnitsPerTake),
	}
}
