// Package tui is the interactive dashboard: today's intakes, stock levels
// and adherence in one terminal view.
package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/julianstephens/doselit/internal/reconcile"
	"github.com/julianstephens/doselit/internal/stock"
	"github.com/julianstephens/doselit/internal/storage"
	"github.com/julianstephens/doselit/internal/tui/components/intakelist"
	"github.com/julianstephens/doselit/internal/tui/components/overview"
)

type SessionState int

const (
	StateToday SessionState = iota
	StateStock
	StateStats
)

var tabTitles = []string{"Today", "Stock", "Adherence"}

// Options configures a dashboard for one user.
type Options struct {
	Store    storage.Provider
	UserID   string
	Location *time.Location
	// Clock defaults to time.Now.
	Clock func() time.Time
	// OnLowStock is called after a take leaves the stock at or below its threshold.
	OnLowStock func(stock.Result)
}

type Model struct {
	ctx        context.Context
	store      storage.Provider
	ledger     *stock.Ledger
	resolver   *reconcile.Resolver
	userID     string
	loc        *time.Location
	clock      func() time.Time
	onLowStock func(stock.Result)

	state     SessionState
	keys      KeyMap
	help      help.Model
	today     intakelist.Model
	stockView overview.Model
	statsView overview.Model
	bar       progress.Model

	snap     snapshot
	message  string
	err      error
	quitting bool
	width    int
	height   int
}

func NewModel(ctx context.Context, opts Options) Model {
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	ledger := stock.NewLedger(opts.Store)
	return Model{
		ctx:        ctx,
		store:      opts.Store,
		ledger:     ledger,
		resolver:   reconcile.NewResolver(opts.Store, ledger),
		userID:     opts.UserID,
		loc:        loc,
		clock:      clock,
		onLowStock: opts.OnLowStock,
		state:      StateToday,
		keys:       DefaultKeyMap(),
		help:       help.New(),
		today:      intakelist.New(nil, 0, 0),
		stockView:  overview.New(0, 0, "\n  No medications."),
		statsView:  overview.New(0, 0, "\n  No adherence data yet."),
		bar:        progress.New(progress.WithDefaultGradient(), progress.WithWidth(30)),
	}
}

func (m Model) now() time.Time {
	return m.clock().In(m.loc)
}

func (m Model) ShortHelp() []key.Binding {
	keys := []key.Binding{m.keys.Tab, m.keys.Quit, m.keys.Help, m.keys.Refresh}
	if m.state == StateToday {
		keys = append(keys, m.keys.Take, m.keys.Skip)
	}
	return keys
}

func (m Model) FullHelp() [][]key.Binding {
	global := []key.Binding{m.keys.Tab, m.keys.ShiftTab, m.keys.Quit, m.keys.Help, m.keys.Refresh}
	navigation := []key.Binding{m.keys.Up, m.keys.Down}

	var actions []key.Binding
	if m.state == StateToday {
		actions = []key.Binding{m.keys.Take, m.keys.Skip}
	}
	return [][]key.Binding{global, navigation, actions}
}

func (m Model) Init() tea.Cmd {
	return m.load()
}

// Run starts the dashboard on the terminal and blocks until the user quits.
func Run(ctx context.Context, opts Options) error {
	_, err := tea.NewProgram(NewModel(ctx, opts), tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}
