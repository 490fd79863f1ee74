// Package clitest builds command contexts over an in-memory store with a
// fixed clock.
package clitest

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/julianstephens/doselit/internal/cli"
	"github.com/julianstephens/doselit/internal/identity"
	"github.com/julianstephens/doselit/internal/models"
	"github.com/julianstephens/doselit/internal/reminders"
	"github.com/julianstephens/doselit/internal/storage"
	"github.com/julianstephens/doselit/internal/storage/memory"
	"github.com/julianstephens/doselit/internal/storage/sqlite"
)

const UserID = "alice"

// Now is the fixed instant every context starts at: a Monday morning.
var Now = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

// Sender records reminders instead of delivering them.
type Sender struct {
	mu   sync.Mutex
	Sent []reminders.Reminder
}

func (s *Sender) Send(_ context.Context, r reminders.Reminder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Sent = append(s.Sent, r)
	return nil
}

func (s *Sender) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Sent)
}

// Env is a command context together with its backing store.
type Env struct {
	Ctx    *cli.Context
	Store  *memory.Store
	Sender *Sender
	now    time.Time
}

// New returns a context for UserID over an initialized memory store, in
// UTC with a two-day horizon.
func New(t *testing.T) *Env {
	t.Helper()
	store := memory.New().WithClock(func() time.Time { return Now })
	require.NoError(t, store.Init())

	settings := models.DefaultSettings()
	settings.Timezone = "UTC"
	settings.HorizonDays = 2
	require.NoError(t, store.SaveSettings(context.Background(), settings))

	env := &Env{Store: store, Sender: &Sender{}, now: Now}
	env.Ctx = &cli.Context{
		Store:    store,
		Identity: identity.Static(UserID),
		Clock:    func() time.Time { return env.now },
		Ctx:      context.Background(),
		Sender:   env.Sender,
	}
	return env
}

// SetClock moves the context's clock to at.
func (e *Env) SetClock(at time.Time) {
	e.now = at
}

// SetTimezone stores timezone as the civil timezone setting.
func (e *Env) SetTimezone(t *testing.T, timezone string) {
	t.Helper()
	ctx := context.Background()
	settings, err := e.Store.GetSettings(ctx)
	require.NoError(t, err)
	settings.Timezone = timezone
	require.NoError(t, e.Store.SaveSettings(ctx, settings))
}

// Advance moves the context's clock forward.
func (e *Env) Advance(d time.Duration) {
	e.now = e.now.Add(d)
}

// AddTreatment stores an active, open-ended treatment owned by UserID.
func (e *Env) AddTreatment(t *testing.T, name string) models.Treatment {
	t.Helper()
	tr := models.Treatment{
		ID:        uuid.New().String(),
		UserID:    UserID,
		Name:      name,
		StartDate: "2025-03-01",
		IsActive:  true,
		CreatedAt: Now,
	}
	require.NoError(t, e.Store.AddTreatment(context.Background(), tr))
	return tr
}

// AddMedication stores a medication without scheduling any intake.
func (e *Env) AddMedication(t *testing.T, treatmentID, name string, stock int, times ...string) models.Medication {
	t.Helper()
	m := models.Medication{
		ID:           uuid.New().String(),
		TreatmentID:  treatmentID,
		Name:         name,
		Times:        times,
		CurrentStock: stock,
		MinThreshold: 2,
		UnitsPerTake: 1,
		CreatedAt:    Now,
	}
	require.NoError(t, e.Store.AddMedication(context.Background(), m))
	return m
}

// Intakes lists every intake of medicationID in scheduled order.
func (e *Env) Intakes(t *testing.T, medicationID string) []models.Intake {
	t.Helper()
	list, err := e.Store.ListIntakes(context.Background(), models.IntakeFilter{MedicationID: medicationID})
	require.NoError(t, err)
	return list
}

// Context returns a context for UserID over store, frozen at Now.
func Context(store storage.Provider) *cli.Context {
	return &cli.Context{
		Store:    store,
		Identity: identity.Static(UserID),
		Clock:    func() time.Time { return Now },
		Ctx:      context.Background(),
		Sender:   &Sender{},
	}
}

// SQLite returns an initialized SQLite store in a temporary directory. It
// is closed when the test ends.
func SQLite(t *testing.T) *sqlite.Store {
	t.Helper()
	store := sqlite.NewStore(filepath.Join(t.TempDir(), "doselit.db"))
	require.NoError(t, store.Init())
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// Stdout runs fn and returns what it printed to standard output.
func Stdout(t *testing.T, fn func() error) string {
	t.Helper()
	r, w, err := os.Pipe()
	require.NoError(t, err)
	orig := os.Stdout
	os.Stdout = w
	done := make(chan []byte)
	go func() {
		out, _ := io.ReadAll(r)
		done <- out
	}()
	runErr := fn()
	os.Stdout = orig
	require.NoError(t, w.Close())
	out := <-done
	require.NoError(t, runErr)
	return string(out)
}
