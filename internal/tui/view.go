package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/julianstephens/doselit/internal/adherence"
	"github.com/julianstephens/doselit/internal/stock"
)

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var content string
	switch m.state {
	case StateToday:
		content = m.today.View()
	case StateStock:
		content = docStyle.Render(m.stockView.View())
	case StateStats:
		content = docStyle.Render(m.statsView.View())
	}

	return lipgloss.JoinVertical(
		lipgloss.Left,
		m.viewTabs(),
		m.viewBanner(),
		content,
		m.help.View(m),
	)
}

func (m Model) viewTabs() string {
	var tabs []string
	for i, title := range tabTitles {
		if m.state == SessionState(i) {
			tabs = append(tabs, activeTabStyle.Render(title))
		} else {
			tabs = append(tabs, inactiveTabStyle.Render(title))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (m Model) viewBanner() string {
	switch {
	case m.err != nil:
		return dangerStyle.Render("Error: " + m.err.Error())
	case m.message != "":
		return m.message
	case m.snap.missed > 0:
		return warningStyle.Render(fmt.Sprintf("⚠ %d missed intake(s) from previous days, run 'doselit reconcile'", m.snap.missed))
	}
	return ""
}

func (m Model) renderStock() string {
	if len(m.snap.projections) == 0 {
		return ""
	}
	var b strings.Builder
	for _, p := range m.snap.projections {
		level := stock.LevelFor(p.Stock, m.snap.thresholds[p.MedicationID])
		line := fmt.Sprintf("%d unit(s)", p.Stock)
		if p.TakesPerDay > 0 {
			line += fmt.Sprintf(", about %d day(s) left", p.DaysRemaining)
		}
		switch level {
		case stock.LevelCritical:
			line = dangerStyle.Render(line)
		case stock.LevelLow:
			line = warningStyle.Render(line + " (low)")
		}
		b.WriteString(labelStyle.Render(p.Medication) + " " + line + "\n")
	}
	return b.String()
}

func (m Model) renderStats() string {
	r := m.snap.report
	if r.Month.Counts.Total() == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(m.summaryLine(fmt.Sprintf("%d days", r.Week.Days), r.Week.Counts))
	b.WriteString(m.summaryLine(fmt.Sprintf("%d days", r.Month.Days), r.Month.Counts))
	if len(r.ByMedication) > 0 {
		b.WriteString("\n" + mutedStyle.Render(fmt.Sprintf("By medication, last %d days", r.Month.Days)) + "\n")
		for _, s := range r.ByMedication {
			b.WriteString(m.summaryLine(s.Medication, s.Counts))
		}
	}
	return b.String()
}

func (m Model) summaryLine(label string, c adherence.Counts) string {
	pct := c.Percent()
	return fmt.Sprintf("%s %s %5s%%  %s\n",
		labelStyle.Render(label),
		m.bar.ViewAs(pct.InexactFloat64()/100),
		pct.StringFixed(1),
		mutedStyle.Render(fmt.Sprintf("%d/%d taken", c.Taken(), c.Resolved())),
	)
}
