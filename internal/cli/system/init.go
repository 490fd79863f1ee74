package system

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/julianstephens/doselit/internal/cli"
	"github.com/julianstephens/doselit/internal/models"
	"github.com/julianstephens/doselit/internal/storage"
	"github.com/julianstephens/doselit/internal/storage/postgres"
	"github.com/julianstephens/doselit/internal/storage/sqlite"
)

type InitCmd struct {
	Force  bool   `help:"Force reset by deleting existing database before initialization."`
	Source string `help:"Source database path or connection string to copy the current user's data from."`
}

func (c *InitCmd) Run(ctx *cli.Context) error {
	if c.Force {
		if err := c.reset(ctx); err != nil {
			return err
		}
	}

	if err := ctx.Store.Init(); err != nil {
		return err
	}
	fmt.Printf("Initialized doselit storage at: %s\n", ctx.Store.GetConfigPath())

	if c.Source != "" {
		fmt.Printf("Copying data from: %s\n", c.Source)
		if err := c.copyData(ctx); err != nil {
			return fmt.Errorf("copy failed: %w", err)
		}
		fmt.Println("Copy completed successfully!")
	}
	return nil
}

func (c *InitCmd) reset(ctx *cli.Context) error {
	if _, ok := ctx.Store.(*sqlite.Store); !ok {
		return fmt.Errorf("--force is only supported for SQLite storage")
	}
	dbPath := ctx.Store.GetConfigPath()
	if c.Source != "" {
		absDB, err := filepath.Abs(dbPath)
		if err == nil {
			dbPath = absDB
		}
		if absSource, err := filepath.Abs(c.Source); err == nil && absSource == dbPath {
			return fmt.Errorf("cannot use --force when source and destination are the same: %s", dbPath)
		}
	}

	if _, err := os.Stat(dbPath); err == nil {
		if err := ctx.Store.Close(); err != nil {
			return fmt.Errorf("failed to close existing database: %w", err)
		}
		if err := os.Remove(dbPath); err != nil {
			return fmt.Errorf("failed to delete existing database: %w", err)
		}
		fmt.Printf("Deleted existing database at: %s\n", dbPath)
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to access existing database: %w", err)
	}
	return nil
}

func openSource(source string) (storage.Provider, error) {
	if postgres.IsConnString(source) {
		if valid, err := postgres.ValidateConnString(source); !valid {
			if errors.Is(err, postgres.ErrEmbeddedCredentials) {
				return nil, fmt.Errorf("PostgreSQL source connection string contains embedded credentials. Use environment variables or .pgpass instead")
			}
			return nil, err
		}
		return postgres.New(source), nil
	}
	return sqlite.NewStore(source), nil
}

// copyData copies settings and the current user's treatments, medications
// and intakes. Intake ids are regenerated by the destination store.
func (c *InitCmd) copyData(ctx *cli.Context) error {
	userID, err := ctx.UserID()
	if err != nil {
		return err
	}
	bg := ctx.Context()

	src, err := openSource(c.Source)
	if err != nil {
		return err
	}
	if err := src.Load(); err != nil {
		return fmt.Errorf("failed to load source database: %w", err)
	}
	defer src.Close()

	fmt.Println("  Copying settings...")
	settings, err := src.GetSettings(bg)
	if err != nil {
		return fmt.Errorf("failed to get settings from source: %w", err)
	}
	if err := ctx.Store.SaveSettings(bg, settings); err != nil {
		return fmt.Errorf("failed to save settings to destination: %w", err)
	}

	treatments, err := src.ListTreatments(bg, userID, false)
	if err != nil {
		return fmt.Errorf("failed to get treatments from source: %w", err)
	}
	meds, intakes := 0, 0
	for _, t := range treatments {
		if err := ctx.Store.AddTreatment(bg, t); err != nil {
			return fmt.Errorf("failed to add treatment %s: %w", t.ID, err)
		}
		medications, err := src.ListMedications(bg, t.ID)
		if err != nil {
			return fmt.Errorf("failed to get medications for %s: %w", t.ID, err)
		}
		for _, m := range medications {
			if err := ctx.Store.AddMedication(bg, m); err != nil {
				return fmt.Errorf("failed to add medication %s: %w", m.ID, err)
			}
			n, err := copyIntakes(ctx, src, m.ID)
			if err != nil {
				return err
			}
			meds++
			intakes += n
		}
	}
	fmt.Printf("    Copied %d treatments, %d medications, %d intakes\n", len(treatments), meds, intakes)
	return nil
}

func copyIntakes(ctx *cli.Context, src storage.Provider, medicationID string) (int, error) {
	bg := ctx.Context()
	list, err := src.ListIntakes(bg, models.IntakeFilter{MedicationID: medicationID})
	if err != nil {
		return 0, fmt.Errorf("failed to get intakes for %s: %w", medicationID, err)
	}
	if len(list) == 0 {
		return 0, nil
	}

	instants := make([]time.Time, 0, len(list))
	for _, in := range list {
		instants = append(instants, in.ScheduledTime)
	}
	n, err := ctx.Store.InsertIntakes(bg, medicationID, instants)
	if err != nil {
		return 0, fmt.Errorf("failed to insert intakes for %s: %w", medicationID, err)
	}

	copied, err := ctx.Store.ListIntakes(bg, models.IntakeFilter{MedicationID: medicationID})
	if err != nil {
		return n, err
	}
	byInstant := make(map[int64]string, len(copied))
	for _, in := range copied {
		byInstant[in.ScheduledTime.Unix()] = in.ID
	}
	for _, in := range list {
		if !in.Status.IsResolved() {
			continue
		}
		id, ok := byInstant[in.ScheduledTime.Unix()]
		if !ok {
			continue
		}
		if err := ctx.Store.UpdateIntakeStatus(bg, id, in.Status, in.TakenAt); err != nil {
			return n, fmt.Errorf("failed to copy status of intake %s: %w", in.ID, err)
		}
	}
	return n, nil
}
