package system

import (
	"context"
	"fmt"

	"github.com/julianstephens/doselit/internal/cli"
	"github.com/julianstephens/doselit/internal/reminders"
)

// NotifyCmd sends the reminders due in the current minute. It is meant to
// be run once a minute by cron or a launch agent when the daemon is not used.
type NotifyCmd struct {
	DryRun bool `help:"Print notifications to stdout instead of sending them."`
}

func (c *NotifyCmd) Run(ctx *cli.Context) error {
	settings, _, err := ctx.Settings()
	if err != nil {
		return err
	}
	if !settings.RemindersEnabled {
		if c.DryRun {
			fmt.Println("Reminders are disabled in settings.")
		}
		return nil
	}

	userID, err := ctx.UserID()
	if err != nil {
		return err
	}

	d := reminders.NewDispatcher(reminders.NewPlanner(ctx.Store), c.sender(ctx), userID,
		reminders.WithRecorder(ctx.Recorder()))
	sent, err := d.Tick(ctx.Context(), ctx.Now())
	if err != nil {
		return err
	}
	if c.DryRun && sent == 0 {
		fmt.Println("No reminders due.")
	}
	return nil
}

func (c *NotifyCmd) sender(ctx *cli.Context) reminders.Sender {
	if c.DryRun {
		return printSender{}
	}
	return ctx.Notifier()
}

type printSender struct{}

func (printSender) Send(_ context.Context, r reminders.Reminder) error {
	fmt.Printf("[DryRun] %s\n", r.Text())
	return nil
}
