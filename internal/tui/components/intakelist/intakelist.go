package intakelist

import (
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/julianstephens/doselit/internal/constants"
	"github.com/julianstephens/doselit/internal/models"
	"github.com/julianstephens/doselit/internal/status"
)

// TakeMsg asks the parent model to record the intake as taken now.
type TakeMsg struct {
	Item Item
}

type SkipMsg struct {
	Item Item
}

// Item is one of today's intakes.
type Item struct {
	Intake     models.Intake
	Medication models.Medication
	Status     status.Display
	Location   *time.Location
}

func (i Item) Title() string {
	return i.Intake.ScheduledTime.In(i.Location).Format(constants.TimeFormat) + "  " + i.Medication.Name
}

func (i Item) Description() string {
	desc := i.Status.Label()
	if i.Intake.TakenAt != nil {
		desc += " at " + i.Intake.TakenAt.In(i.Location).Format(constants.TimeFormat)
	}
	if i.Medication.Posology != "" {
		desc += " | " + i.Medication.Posology
	}
	return desc
}

func (i Item) FilterValue() string { return i.Medication.Name }

type KeyMap struct {
	Take key.Binding
	Skip key.Binding
}

func DefaultKeyMap() KeyMap {
	return KeyMap{
		Take: key.NewBinding(
			key.WithKeys("t"),
			key.WithHelp("t", "take"),
		),
		Skip: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "skip"),
		),
	}
}

type Model struct {
	list list.Model
	keys KeyMap
}

func New(items []Item, width, height int) Model {
	l := list.New(toListItems(items), list.NewDefaultDelegate(), width, height)
	l.Title = "Today"
	l.SetShowTitle(false)
	l.SetShowHelp(false)

	keys := DefaultKeyMap()
	l.AdditionalShortHelpKeys = func() []key.Binding {
		return []key.Binding{keys.Take, keys.Skip}
	}
	return Model{list: l, keys: keys}
}

func toListItems(items []Item) []list.Item {
	out := make([]list.Item, len(items))
	for i, it := range items {
		out[i] = it
	}
	return out
}

func (m *Model) SetItems(items []Item) {
	m.list.SetItems(toListItems(items))
}

// Filtering reports whether the user is typing a filter, in which case
// single-letter shortcuts must not fire.
func (m Model) Filtering() bool {
	return m.list.FilterState() == list.Filtering
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok && !m.Filtering() {
		switch {
		case key.Matches(msg, m.keys.Take):
			if i, ok := m.list.SelectedItem().(Item); ok {
				return m, func() tea.Msg { return TakeMsg{Item: i} }
			}
		case key.Matches(msg, m.keys.Skip):
			if i, ok := m.list.SelectedItem().(Item); ok {
				return m, func() tea.Msg { return SkipMsg{Item: i} }
			}
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	if len(m.list.Items()) == 0 && !m.Filtering() {
		return "\n  No intakes scheduled today."
	}
	return m.list.View()
}

func (m *Model) SetSize(width, height int) {
	m.list.SetSize(width, height)
}
