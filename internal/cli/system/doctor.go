package system

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/julianstephens/doselit/internal/cli"
	"github.com/julianstephens/doselit/internal/stock"
	"github.com/julianstephens/doselit/internal/storage/sqlite"
	"github.com/julianstephens/doselit/internal/utils"
	"github.com/julianstephens/doselit/internal/validation"
)

type DoctorCmd struct {
	Fix bool `help:"Automatically repair conflicts that have an unambiguous fix."`
}

type checkLevel int

const (
	levelFail checkLevel = iota
	levelWarn
)

type doctor struct {
	hasError bool
}

func (d *doctor) report(name string, level checkLevel, err error) {
	switch {
	case err == nil:
		fmt.Printf("✓ %s: OK\n", name)
	case level == levelWarn:
		fmt.Printf("⚠ %s: WARNING\n", name)
		fmt.Printf("   %v\n", err)
	default:
		fmt.Printf("❌ %s: FAIL\n", name)
		fmt.Printf("   Error: %v\n", err)
		d.hasError = true
	}
}

func (d *doctor) skip(name, reason string) {
	fmt.Printf("⊘ %s: SKIPPED (%s)\n", name, reason)
}

func (cmd *DoctorCmd) Run(ctx *cli.Context) error {
	fmt.Println("Running diagnostics...")
	fmt.Println()

	d := &doctor{}
	dbErr := checkDBReachable(ctx)
	dbReachable := dbErr == nil
	d.report("Database reachable", levelFail, dbErr)

	dbChecks := []struct {
		name  string
		level checkLevel
		fn    func(*cli.Context) error
	}{
		{"Migrations complete", levelFail, checkMigrationsComplete},
		{"Settings", levelFail, checkSettings},
		{"Data validation", levelFail, cmd.checkValidation},
		{"Stock levels", levelWarn, checkStockLevels},
	}
	for _, c := range dbChecks {
		if !dbReachable {
			d.skip(c.name, "database not reachable")
			continue
		}
		d.report(c.name, c.level, c.fn(ctx))
	}

	if ctx.Backups() == nil {
		d.skip("Backups present", "not a SQLite store")
	} else {
		d.report("Backups present", levelWarn, checkBackupsPresent(ctx))
	}
	d.report("Clock/timezone", levelFail, checkClock(ctx.Now()))

	fmt.Println()
	if d.hasError {
		fmt.Println("Diagnostics completed with errors.")
		return fmt.Errorf("one or more health checks failed")
	}
	fmt.Println("All diagnostics passed!")
	return nil
}

func checkDBReachable(ctx *cli.Context) error {
	if err := ctx.Store.Load(); err != nil {
		return fmt.Errorf("failed to load database: %w", err)
	}
	if s, ok := ctx.Store.(*sqlite.Store); ok {
		return ping(s.GetDB())
	}
	return nil
}

func ping(db *sql.DB) error {
	if db == nil {
		return fmt.Errorf("database connection is nil")
	}
	var result int
	if err := db.QueryRow("SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("failed to query database: %w", err)
	}
	return nil
}

func checkMigrationsComplete(ctx *cli.Context) error {
	m, ok := ctx.Store.(migrator)
	if !ok {
		return nil
	}
	pending, err := m.PendingMigrations()
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	if pending > 0 {
		return fmt.Errorf("%d migration(s) pending - run 'doselit migrate'", pending)
	}
	return nil
}

func checkSettings(ctx *cli.Context) error {
	settings, _, err := ctx.Settings()
	if err != nil {
		return err
	}
	if !utils.ValidateTimezone(settings.Timezone) {
		return fmt.Errorf("unknown timezone %q", settings.Timezone)
	}
	if settings.HorizonDays < 0 {
		return fmt.Errorf("horizon_days cannot be negative (%d)", settings.HorizonDays)
	}
	return nil
}

func (cmd *DoctorCmd) checkValidation(ctx *cli.Context) error {
	userID, err := ctx.UserID()
	if err != nil {
		return err
	}
	_, loc, err := ctx.Settings()
	if err != nil {
		return err
	}

	snap, err := validation.Load(ctx.Context(), ctx.Store, userID)
	if err != nil {
		return err
	}
	result := validation.New().Validate(snap, utils.DayString(ctx.Now(), loc))
	if !result.HasConflicts() {
		return nil
	}

	if cmd.Fix {
		for _, a := range validation.AutoFix(ctx.Context(), ctx.Store, snap, result.Conflicts) {
			fmt.Printf("   🔧 %s\n", a.Action)
		}
		snap, err = validation.Load(ctx.Context(), ctx.Store, userID)
		if err != nil {
			return err
		}
		result = validation.New().Validate(snap, utils.DayString(ctx.Now(), loc))
	}
	if !result.HasErrors() {
		if result.HasConflicts() {
			fmt.Print(result.FormatReport())
		}
		return nil
	}
	return fmt.Errorf("%s", result.FormatReport())
}

func checkStockLevels(ctx *cli.Context) error {
	userID, err := ctx.UserID()
	if err != nil {
		return err
	}
	meds, err := ctx.Store.ListMedicationsForUser(ctx.Context(), userID, true)
	if err != nil {
		return err
	}
	var low []string
	for _, m := range meds {
		if stock.LevelFor(m.CurrentStock, m.MinThreshold) != stock.LevelOK {
			low = append(low, fmt.Sprintf("%s (%d)", m.Name, m.CurrentStock))
		}
	}
	if len(low) > 0 {
		return fmt.Errorf("low stock: %v", low)
	}
	return nil
}

func checkBackupsPresent(ctx *cli.Context) error {
	backups, err := ctx.Backups().List()
	if err != nil {
		return fmt.Errorf("failed to list backups: %w", err)
	}
	if len(backups) == 0 {
		return fmt.Errorf("no backups found - consider creating one with 'doselit backup create'")
	}
	return nil
}

func checkClock(now time.Time) error {
	if now.Year() < 2020 || now.Year() > 2100 {
		return fmt.Errorf("system time appears incorrect: %s", now.Format(time.RFC3339))
	}
	return nil
}
