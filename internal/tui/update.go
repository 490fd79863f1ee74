package tui

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/julianstephens/doselit/internal/reconcile"
	"github.com/julianstephens/doselit/internal/tui/components/intakelist"
)

const chromeHeight = 4

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		h := max(msg.Height-chromeHeight, 1)
		m.today.SetSize(msg.Width, h)
		m.stockView.SetSize(msg.Width, h)
		m.statsView.SetSize(msg.Width, h)
		m.render()
		return m, nil

	case loadedMsg:
		m.err = msg.err
		if msg.err == nil {
			m.snap = msg.snap
			m.today.SetItems(msg.snap.today)
			m.render()
		}
		return m, nil

	case resolvedMsg:
		m.err = msg.err
		m.message = msg.text
		return m, m.load()

	case intakelist.TakeMsg:
		return m, m.resolve(msg.Item, reconcile.ActionAdjust)

	case intakelist.SkipMsg:
		return m, m.resolve(msg.Item, reconcile.ActionSkip)

	case tea.KeyMsg:
		if m.state == StateToday && m.today.Filtering() {
			break
		}
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, m.keys.Tab):
			m.state = (m.state + 1) % SessionState(len(tabTitles))
			return m, nil
		case key.Matches(msg, m.keys.ShiftTab):
			m.state = (m.state - 1 + SessionState(len(tabTitles))) % SessionState(len(tabTitles))
			return m, nil
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
			return m, nil
		case key.Matches(msg, m.keys.Refresh):
			m.message = ""
			return m, m.load()
		}
	}

	var cmd tea.Cmd
	switch m.state {
	case StateToday:
		m.today, cmd = m.today.Update(msg)
	case StateStock:
		m.stockView, cmd = m.stockView.Update(msg)
	case StateStats:
		m.statsView, cmd = m.statsView.Update(msg)
	}
	return m, cmd
}

func (m *Model) render() {
	m.stockView.SetContent(m.renderStock())
	m.statsView.SetContent(m.renderStats())
}
