package reports

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/charmbracelet/bubbles/progress"

	"github.com/julianstephens/doselit/internal/adherence"
	"github.com/julianstephens/doselit/internal/cli"
)

type StatsCmd struct {
	Days int    `short:"d" help:"Report a custom trailing window instead of the 7/30-day summary."`
	Med  string `short:"m" help:"Restrict a custom window to this medication ID."`
	JSON bool   `help:"Print the report as JSON."`
}

func (c *StatsCmd) Validate() error {
	if c.Days < 0 {
		return fmt.Errorf("days cannot be negative")
	}
	if c.Med != "" && c.Days == 0 {
		return fmt.Errorf("--med requires --days")
	}
	return nil
}

func (c *StatsCmd) Run(ctx *cli.Context) error {
	notices := os.Stdout
	if c.JSON {
		notices = os.Stderr
	}
	userID, err := ctx.StartSessionTo(notices)
	if err != nil {
		return err
	}
	agg := adherence.NewAggregator(ctx.Store)
	bar := progress.New(progress.WithDefaultGradient(), progress.WithWidth(24))

	if c.Days > 0 {
		title := fmt.Sprintf("Last %d days", c.Days)
		if c.Med != "" {
			m, err := ctx.Medication(userID, c.Med)
			if err != nil {
				return err
			}
			title += ", " + m.Name
		}
		s, err := agg.Window(ctx.Context(), userID, c.Med, c.Days, ctx.Now())
		if err != nil {
			return fmt.Errorf("failed to compute adherence: %w", err)
		}
		if c.JSON {
			return printJSON(s)
		}
		fmt.Println(cli.HeaderStyle.Render(title))
		fmt.Println(windowTable(bar, []row{{title, s.Counts}}))
		return nil
	}

	report, err := agg.Report(ctx.Context(), userID, ctx.Now())
	if err != nil {
		return fmt.Errorf("failed to compute adherence: %w", err)
	}
	if c.JSON {
		return printJSON(report)
	}

	fmt.Println(cli.HeaderStyle.Render("Adherence"))
	fmt.Println(windowTable(bar, []row{
		{fmt.Sprintf("Last %d days", report.Week.Days), report.Week.Counts},
		{fmt.Sprintf("Last %d days", report.Month.Days), report.Month.Counts},
	}))
	if len(report.ByMedication) > 0 {
		rows := make([]row, 0, len(report.ByMedication))
		for _, s := range report.ByMedication {
			rows = append(rows, row{s.Medication, s.Counts})
		}
		fmt.Println(cli.HeaderStyle.Render(fmt.Sprintf("By medication, last %d days", report.Month.Days)))
		fmt.Println(windowTable(bar, rows))
	}

	pending := report.Week.Counts.Overdue + report.Week.Counts.Upcoming
	if pending > 0 {
		fmt.Println(cli.MutedStyle.Render(fmt.Sprintf("%d intake(s) still open today are not counted yet.", pending)))
	}
	return nil
}

type row struct {
	label  string
	counts adherence.Counts
}

func windowTable(bar progress.Model, rows []row) string {
	var out [][]string
	for _, r := range rows {
		pct := r.counts.Percent()
		out = append(out, []string{
			r.label,
			bar.ViewAs(pct.InexactFloat64() / 100),
			pct.StringFixed(1) + "%",
			fmt.Sprintf("%d", r.counts.OnTime),
			fmt.Sprintf("%d", r.counts.Late),
			fmt.Sprintf("%d", r.counts.Missed),
			fmt.Sprintf("%d", r.counts.Skipped),
		})
	}
	return cli.Table([]string{"Window", "", "Adherence", "On time", "Late", "Missed", "Skipped"}, out)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
