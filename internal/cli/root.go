package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/julianstephens/doselit/internal/backup"
	"github.com/julianstephens/doselit/internal/identity"
	"github.com/julianstephens/doselit/internal/lifecycle"
	"github.com/julianstephens/doselit/internal/logger"
	"github.com/julianstephens/doselit/internal/metrics"
	"github.com/julianstephens/doselit/internal/models"
	"github.com/julianstephens/doselit/internal/notifier"
	"github.com/julianstephens/doselit/internal/reconcile"
	"github.com/julianstephens/doselit/internal/reminders"
	"github.com/julianstephens/doselit/internal/schedule"
	"github.com/julianstephens/doselit/internal/stock"
	"github.com/julianstephens/doselit/internal/storage"
	"github.com/julianstephens/doselit/internal/storage/sqlite"
	"github.com/julianstephens/doselit/internal/utils"
)

type Context struct {
	Store    storage.Provider
	Identity identity.Provider
	Metrics  metrics.Recorder
	// Clock defaults to time.Now.
	Clock func() time.Time
	// Ctx is cancelled on SIGINT/SIGTERM by main.
	Ctx context.Context
	// Sender delivers reminders and stock alerts; defaults to the tray notifier.
	Sender reminders.Sender
}

func (c *Context) Context() context.Context {
	if c.Ctx == nil {
		return context.Background()
	}
	return c.Ctx
}

func (c *Context) Now() time.Time {
	if c.Clock == nil {
		return time.Now().UTC()
	}
	return c.Clock().UTC()
}

func (c *Context) Recorder() metrics.Recorder {
	if c.Metrics == nil {
		return metrics.Nop{}
	}
	return c.Metrics
}

// UserID resolves the identity every store query is scoped by.
func (c *Context) UserID() (string, error) {
	if c.Identity == nil {
		return "", identity.ErrNoUser
	}
	return c.Identity.CurrentUser(c.Context())
}

// Settings returns the persisted settings with defaults filled in, plus the
// civil timezone they select.
func (c *Context) Settings() (models.Settings, *time.Location, error) {
	settings, err := c.Store.GetSettings(c.Context())
	if err != nil {
		return models.Settings{}, nil, fmt.Errorf("failed to get settings: %w", err)
	}
	models.ApplyDefaultSettings(&settings)
	loc, err := utils.LocationFromSettings(settings)
	if err != nil {
		return models.Settings{}, nil, err
	}
	return settings, loc, nil
}

func (c *Context) Ledger() *stock.Ledger {
	return stock.NewLedger(c.Store)
}

func (c *Context) Regenerator() *schedule.Regenerator {
	return schedule.NewRegenerator(c.Store, c.Recorder())
}

// StartSession deactivates ended treatments and tops up the intake horizon.
// It returns the user id the session runs for. Partial failures are logged
// and printed, they never block the command.
func (c *Context) StartSession() (string, error) {
	return c.StartSessionTo(os.Stdout)
}

// StartSessionTo is StartSession with its notices written to w, for
// commands whose stdout is machine-readable.
func (c *Context) StartSessionTo(w io.Writer) (string, error) {
	userID, err := c.UserID()
	if err != nil {
		return "", err
	}

	res, err := lifecycle.StartSession(c.Context(), lifecycle.NewManager(c.Store, c.Recorder()), c.Regenerator(), userID, c.Now())
	if err != nil {
		logger.Warn("session start incomplete", "error", err)
	}
	for _, t := range res.Lifecycle.Deactivated {
		fmt.Fprintf(w, "Treatment ended: %s (%s)\n", t.Name, t.EndDate)
	}
	if !res.Regeneration.OK() {
		fmt.Fprintf(w, "⚠ Schedule: %s\n", res.Regeneration.Summary())
	}
	return userID, nil
}

// Backups returns the backup manager for SQLite stores and nil otherwise.
func (c *Context) Backups() *backup.Manager {
	if _, ok := c.Store.(*sqlite.Store); !ok {
		return nil
	}
	mgr := backup.NewManager(c.Store.GetConfigPath())
	if c.Clock != nil {
		mgr = mgr.WithClock(c.Clock)
	}
	return mgr
}

// SessionOptions wires the automatic backup and metrics into a
// reconciliation session.
func (c *Context) SessionOptions() []reconcile.Option {
	opts := []reconcile.Option{reconcile.WithMetrics(c.Recorder())}
	if mgr := c.Backups(); mgr != nil {
		opts = append(opts, reconcile.WithBackup(mgr.Hook()))
	}
	return opts
}

// AlertLowStock prints a stock alert when res crossed the threshold and
// forwards it to the tray when reminders are enabled.
func (c *Context) AlertLowStock(res stock.Result) {
	if !res.Low {
		return
	}
	settings, _, err := c.Settings()
	if err != nil {
		settings = models.DefaultSettings()
	}
	alert := reminders.StockAlert(res, reminders.TemplatesFromSettings(settings).StockAlert, c.Now())
	fmt.Printf("⚠ %s: %s\n", alert.Title, alert.Body)
	if settings.RemindersEnabled {
		c.send(alert)
	}
}

// SendStockAlert forwards a low-stock alert to the tray without printing.
func (c *Context) SendStockAlert(res stock.Result) {
	if !res.Low {
		return
	}
	settings, _, err := c.Settings()
	if err != nil || !settings.RemindersEnabled {
		return
	}
	c.send(reminders.StockAlert(res, reminders.TemplatesFromSettings(settings).StockAlert, c.Now()))
}

// Notifier returns the configured reminder sender, the desktop notifier by
// default.
func (c *Context) Notifier() reminders.Sender {
	if c.Sender != nil {
		return c.Sender
	}
	return notifier.New()
}

func (c *Context) send(alert reminders.Reminder) {
	if err := c.Notifier().Send(c.Context(), alert); err != nil {
		logger.Debug("stock alert not delivered", "medication", alert.MedicationID, "error", err)
	}
}

// Treatment loads a treatment owned by userID. Treatments of other users
// are reported as not found.
func (c *Context) Treatment(userID, id string) (models.Treatment, error) {
	t, err := c.Store.GetTreatment(c.Context(), id)
	if err == nil && t.UserID != userID {
		err = storage.ErrNotFound
	}
	if err != nil {
		return models.Treatment{}, fmt.Errorf("failed to find treatment with ID %s: %w", id, err)
	}
	return t, nil
}

// Medication loads a medication whose treatment is owned by userID.
func (c *Context) Medication(userID, id string) (models.Medication, error) {
	m, err := c.Store.GetMedication(c.Context(), id)
	if err != nil {
		return models.Medication{}, fmt.Errorf("failed to find medication with ID %s: %w", id, err)
	}
	if _, err := c.Treatment(userID, m.TreatmentID); err != nil {
		return models.Medication{}, fmt.Errorf("failed to find medication with ID %s: %w", id, storage.ErrNotFound)
	}
	return m, nil
}
