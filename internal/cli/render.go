package cli

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/julianstephens/doselit/internal/status"
	"github.com/julianstephens/doselit/internal/stock"
)

var (
	HeaderStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true)

	MutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	OKStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("42"))

	WarningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Italic(true)

	DangerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	cellStyle = lipgloss.NewStyle().Padding(0, 1)
)

// Table renders rows under a bold header with rounded borders.
func Table(headers []string, rows [][]string) string {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(MutedStyle).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return HeaderStyle.Padding(0, 1)
			}
			return cellStyle
		})
	return t.Render()
}

// StatusLabel colors a display status label.
func StatusLabel(d status.Display) string {
	switch d {
	case status.OnTime:
		return OKStyle.Render(d.Label())
	case status.Late:
		return WarningStyle.Render(d.Label())
	case status.Missed:
		return DangerStyle.Render(d.Label())
	case status.Skipped:
		return MutedStyle.Render(d.Label())
	default:
		return d.Label()
	}
}

// StockLabel renders a stock count colored by its level.
func StockLabel(level stock.Level, text string) string {
	switch level {
	case stock.LevelCritical:
		return DangerStyle.Render(text)
	case stock.LevelLow:
		return WarningStyle.Render(text)
	default:
		return text
	}
}
