package intakes

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"

	"github.com/julianstephens/doselit/internal/backlog"
	"github.com/julianstephens/doselit/internal/cli"
	"github.com/julianstephens/doselit/internal/constants"
	"github.com/julianstephens/doselit/internal/reconcile"
	"github.com/julianstephens/doselit/internal/utils"
)

const allIntakes = "all"

// ReconcileCmd resolves missed intakes of previous days. Without flags it
// walks the backlog interactively.
type ReconcileCmd struct {
	Take   []string `help:"Intake IDs taken at their scheduled time, or 'all'." sep:","`
	Skip   []string `help:"Intake IDs that were not taken, or 'all'." sep:","`
	Adjust []string `help:"ID=TIME pairs for doses taken at another time (TIME as HH:MM on the scheduled day, 'YYYY-MM-DD HH:MM' or RFC3339)." sep:","`
	Yes    bool     `short:"y" help:"Commit without asking for confirmation."`
}

func (c *ReconcileCmd) interactive() bool {
	return len(c.Take) == 0 && len(c.Skip) == 0 && len(c.Adjust) == 0
}

func (c *ReconcileCmd) Run(ctx *cli.Context) error {
	userID, err := ctx.StartSession()
	if err != nil {
		return err
	}
	_, loc, err := ctx.Settings()
	if err != nil {
		return err
	}

	b, err := backlog.NewDetector(ctx.Store).Detect(ctx.Context(), userID, ctx.Now().In(loc))
	if err != nil {
		return fmt.Errorf("failed to detect missed intakes: %w", err)
	}
	if b.Count() == 0 {
		fmt.Println("No missed intakes, you're all caught up")
		return nil
	}

	session := reconcile.NewSession(ctx.Store, ctx.Ledger(), b, ctx.SessionOptions()...)
	if c.interactive() {
		if err := c.stageInteractive(session, b, loc, ctx.Now()); err != nil {
			return err
		}
	} else if err := c.stageFlags(session, b, loc); err != nil {
		return err
	}

	counts := session.Counts()
	if counts.Staged == 0 {
		fmt.Println("Nothing staged, no changes made.")
		return nil
	}

	if !c.Yes {
		confirmed, err := confirm(fmt.Sprintf("Record %d resolution(s)? %d intake(s) stay in the backlog.", counts.Staged, counts.Remaining()))
		if err != nil {
			return err
		}
		if !confirmed {
			session.DiscardAll()
			fmt.Println("Discarded, no changes made.")
			return nil
		}
	}

	report := session.CommitAll(ctx.Context(), ctx.Now())
	printReport(report, loc)
	for len(report.Failed) > 0 && !c.Yes {
		retry, err := confirm(fmt.Sprintf("Retry %d failed resolution(s)?", len(report.Failed)))
		if err != nil || !retry {
			break
		}
		lowStock := report.LowStock
		report = session.CommitAll(ctx.Context(), ctx.Now())
		report.LowStock = append(lowStock, report.LowStock...)
		printReport(report, loc)
	}
	for _, res := range report.LowStock {
		ctx.AlertLowStock(res)
	}
	if len(report.Failed) > 0 {
		return fmt.Errorf("%d resolution(s) failed, run 'doselit reconcile' again to retry", len(report.Failed))
	}
	return nil
}

func (c *ReconcileCmd) stageFlags(s *reconcile.Session, b backlog.Backlog, loc *time.Location) error {
	stage := func(ids []string, action reconcile.Action) error {
		for _, id := range ids {
			id = strings.TrimSpace(id)
			if id == allIntakes {
				s.StageAll(action)
				continue
			}
			if err := s.Stage(id, action, time.Time{}); err != nil {
				return err
			}
		}
		return nil
	}
	if err := stage(c.Take, reconcile.ActionTake); err != nil {
		return err
	}
	if err := stage(c.Skip, reconcile.ActionSkip); err != nil {
		return err
	}

	for _, pair := range c.Adjust {
		id, when, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || when == "" {
			return fmt.Errorf("invalid --adjust value %q (expected ID=TIME)", pair)
		}
		e, found := b.Find(id)
		if !found {
			return fmt.Errorf("%s: %w", id, reconcile.ErrUnknownIntake)
		}
		at, err := utils.ParseInstant(when, e.Intake.ScheduledTime, loc)
		if err != nil {
			return err
		}
		if err := s.Stage(id, reconcile.ActionAdjust, at); err != nil {
			return err
		}
	}
	return nil
}

const (
	choiceTake   = "take"
	choiceAdjust = "adjust"
	choiceSkip   = "skip"
	choiceLater  = "later"
	choiceStop   = "stop"
)

func (c *ReconcileCmd) stageInteractive(s *reconcile.Session, b backlog.Backlog, loc *time.Location, now time.Time) error {
	printBacklog(b, loc, false)

	entries := b.Entries()
	for i, e := range entries {
		var choice string
		form := huh.NewForm(
			huh.NewGroup(
				huh.NewSelect[string]().
					Title(fmt.Sprintf("[%d/%d] %s, %s", i+1, len(entries), e.Medication, formatInstant(e.Intake.ScheduledTime, loc))).
					Description(posologyLine(e)).
					Options(
						huh.NewOption("Taken at the scheduled time", choiceTake),
						huh.NewOption("Taken at another time", choiceAdjust),
						huh.NewOption("Not taken", choiceSkip),
						huh.NewOption("Decide later", choiceLater),
						huh.NewOption("Stop here", choiceStop),
					).
					Value(&choice),
			),
		).WithProgramOptions(tea.WithOutput(os.Stderr))

		if err := form.Run(); err != nil {
			if errors.Is(err, huh.ErrUserAborted) {
				s.DiscardAll()
				return nil
			}
			return fmt.Errorf("interactive form error: %w", err)
		}

		switch choice {
		case choiceTake:
			if err := s.Stage(e.Intake.ID, reconcile.ActionTake, time.Time{}); err != nil {
				return err
			}
		case choiceSkip:
			if err := s.Stage(e.Intake.ID, reconcile.ActionSkip, time.Time{}); err != nil {
				return err
			}
		case choiceAdjust:
			at, err := askTime(e, loc, now)
			if err != nil {
				return err
			}
			if err := s.Stage(e.Intake.ID, reconcile.ActionAdjust, at); err != nil {
				return err
			}
		case choiceStop:
			return nil
		}
	}
	return nil
}

func posologyLine(e backlog.Entry) string {
	if e.Posology == "" {
		return e.Treatment
	}
	return e.Posology + " · " + e.Treatment
}

func askTime(e backlog.Entry, loc *time.Location, now time.Time) (time.Time, error) {
	var raw string
	var at time.Time
	input := huh.NewInput().
		Title("When was it taken?").
		Description("HH:MM on " + e.Intake.ScheduledTime.In(loc).Format(constants.DateFormat) + ", or YYYY-MM-DD HH:MM").
		Value(&raw).
		Validate(func(s string) error {
			t, err := utils.ParseInstant(strings.TrimSpace(s), e.Intake.ScheduledTime, loc)
			if err != nil {
				return err
			}
			if t.After(now) {
				return fmt.Errorf("time is in the future")
			}
			at = t
			return nil
		})
	if err := huh.NewForm(huh.NewGroup(input)).WithProgramOptions(tea.WithOutput(os.Stderr)).Run(); err != nil {
		return time.Time{}, fmt.Errorf("interactive form error: %w", err)
	}
	return at, nil
}

func confirm(title string) (bool, error) {
	ok := true
	err := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().
			Title(title).
			Affirmative("Yes").
			Negative("No").
			Value(&ok),
	)).WithProgramOptions(tea.WithOutput(os.Stderr)).Run()
	if errors.Is(err, huh.ErrUserAborted) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("interactive form error: %w", err)
	}
	return ok, nil
}

func printReport(r reconcile.Report, loc *time.Location) {
	for _, it := range r.Committed {
		line := fmt.Sprintf("  ✓ %s %s: %s", it.Entry.Medication, formatInstant(it.Entry.Intake.ScheduledTime, loc), it.Action)
		if it.Action == reconcile.ActionAdjust {
			line += " at " + it.At.In(loc).Format(constants.TimeFormat)
		}
		fmt.Println(line)
	}
	for _, it := range r.Noop {
		fmt.Printf("  ⊘ %s %s: already recorded elsewhere\n", it.Entry.Medication, formatInstant(it.Entry.Intake.ScheduledTime, loc))
	}
	for _, f := range r.Failed {
		fmt.Printf("  ❌ %s %s: %v\n", f.Entry.Medication, formatInstant(f.Entry.Intake.ScheduledTime, loc), f.Err)
	}
	fmt.Println()
	fmt.Println("Done: " + r.Summary())
}
