package reports

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/julianstephens/doselit/internal/calendar"
	"github.com/julianstephens/doselit/internal/cli"
)

// CalendarExportCmd writes the calendar events of a window as JSON. With
// --previous it writes the operations needed to bring a mirror holding the
// previous export up to date instead.
type CalendarExportCmd struct {
	Days     int    `short:"d" help:"Number of days to export, today included." default:"14"`
	Past     int    `help:"Number of past days to include." default:"0"`
	Previous string `short:"p" help:"Previous export to diff against." type:"existingfile"`
	Output   string `short:"o" help:"Write to this file instead of stdout."`
}

func (c *CalendarExportCmd) Validate() error {
	if c.Days < 1 {
		return fmt.Errorf("days must be at least 1")
	}
	if c.Past < 0 {
		return fmt.Errorf("past cannot be negative")
	}
	return nil
}

func (c *CalendarExportCmd) Run(ctx *cli.Context) error {
	userID, err := ctx.StartSessionTo(os.Stderr)
	if err != nil {
		return err
	}
	_, loc, err := ctx.Settings()
	if err != nil {
		return err
	}

	now := ctx.Now()
	local := now.In(loc)
	today := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	from := today.AddDate(0, 0, -c.Past)
	to := today.AddDate(0, 0, c.Days)

	events, err := calendar.NewBuilder(ctx.Store).Build(ctx.Context(), userID, from.UTC(), to.UTC(), now)
	if err != nil {
		return fmt.Errorf("failed to build calendar: %w", err)
	}

	var payload any = events
	if c.Previous != "" {
		previous, err := readEvents(c.Previous)
		if err != nil {
			return err
		}
		payload = calendar.Diff(previous, events)
	}

	out := os.Stdout
	if c.Output != "" {
		f, err := os.Create(c.Output)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", c.Output, err)
		}
		defer f.Close()
		out = f
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(payload); err != nil {
		return fmt.Errorf("failed to write calendar: %w", err)
	}
	if c.Output != "" {
		fmt.Printf("Exported %d event(s) to %s\n", len(events), c.Output)
	}
	return nil
}

func readEvents(path string) ([]calendar.Event, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var events []calendar.Event
	if err := json.Unmarshal(data, &events); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return events, nil
}
