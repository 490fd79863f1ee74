// Package reminders plans notification messages for upcoming and overdue
// intakes and hands them to a Sender.
package reminders

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/julianstephens/doselit/internal/constants"
	"github.com/julianstephens/doselit/internal/logger"
	"github.com/julianstephens/doselit/internal/models"
	"github.com/julianstephens/doselit/internal/status"
	"github.com/julianstephens/doselit/internal/stock"
	"github.com/julianstephens/doselit/internal/storage"
	"github.com/julianstephens/doselit/internal/utils"
)

type Kind string

const (
	KindReminder   Kind = "reminder"
	KindDelayed    Kind = "delayed"
	KindStockAlert Kind = "stock"
)

// Reminder is one message to deliver at FiresAt.
type Reminder struct {
	Kind         Kind      `json:"kind"`
	IntakeID     string    `json:"intake_id,omitempty"`
	MedicationID string    `json:"medication_id"`
	Title        string    `json:"title"`
	Body         string    `json:"body"`
	FiresAt      time.Time `json:"fires_at"`
}

// Key identifies a reminder for de-duplication.
func (r Reminder) Key() string {
	if r.IntakeID != "" {
		return string(r.Kind) + ":" + r.IntakeID
	}
	return string(r.Kind) + ":" + r.MedicationID + ":" + r.FiresAt.UTC().Format(time.RFC3339)
}

// Text is the single-line form used by notifiers that only take a string.
func (r Reminder) Text() string {
	if r.Title == "" {
		return r.Body
	}
	return r.Title + ": " + r.Body
}

// Sender delivers reminders.
type Sender interface {
	Send(ctx context.Context, r Reminder) error
}

// Templates hold the message bodies. Placeholders are {medication},
// {posology}, {time} and {stock}.
type Templates struct {
	Reminder   string
	Delayed    string
	StockAlert string
}

func TemplatesFromSettings(s models.Settings) Templates {
	t := Templates{
		Reminder:   s.ReminderMessage,
		Delayed:    s.DelayedMessage,
		StockAlert: s.StockAlertMessage,
	}
	if t.Reminder == "" {
		t.Reminder = constants.DefaultReminderMessage
	}
	if t.Delayed == "" {
		t.Delayed = constants.DefaultDelayedMessage
	}
	if t.StockAlert == "" {
		t.StockAlert = constants.DefaultStockAlertMessage
	}
	return t
}

// Vars are the values substituted into templates.
type Vars struct {
	Medication string
	Posology   string
	Time       string
	Stock      int
}

// Render substitutes vars into tpl. Unknown placeholders are left as is.
func Render(tpl string, v Vars) string {
	posology := v.Posology
	if posology == "" {
		posology = "as prescribed"
	}
	r := strings.NewReplacer(
		"{medication}", v.Medication,
		"{posology}", posology,
		"{time}", v.Time,
		"{stock}", strconv.Itoa(v.Stock),
	)
	return r.Replace(tpl)
}

// StockAlert builds the low-stock alert for a ledger result.
func StockAlert(res stock.Result, tpl string, at time.Time) Reminder {
	if tpl == "" {
		tpl = constants.DefaultStockAlertMessage
	}
	title := "Low stock"
	if res.Level() == stock.LevelCritical {
		title = "Out of stock"
	}
	return Reminder{
		Kind:         KindStockAlert,
		MedicationID: res.MedicationID,
		Title:        title,
		Body:         Render(tpl, Vars{Medication: res.Medication, Stock: res.Stock}),
		FiresAt:      at,
	}
}

type Planner struct {
	store storage.Provider
}

func NewPlanner(store storage.Provider) *Planner {
	return &Planner{store: store}
}

// Plan returns the reminders of userID firing in [from, to), ordered by
// firing time. A regular reminder fires lead minutes before an upcoming
// intake; a delayed reminder fires once the grace window of a same-day
// pending intake has passed.
func (p *Planner) Plan(ctx context.Context, userID string, from, to, now time.Time) ([]Reminder, error) {
	settings, err := p.store.GetSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading settings: %w", err)
	}
	if !settings.RemindersEnabled {
		return nil, nil
	}
	loc, err := utils.LocationFromSettings(settings)
	if err != nil {
		logger.Warn("invalid timezone setting", "error", err)
		loc = time.Local
	}
	now = now.In(loc)
	lead := time.Duration(settings.ReminderLeadMin) * time.Minute
	tpl := TemplatesFromSettings(settings)

	pending, err := p.store.ListIntakes(ctx, models.IntakeFilter{
		UserID:   userID,
		From:     from.Add(-constants.LateThreshold),
		To:       to.Add(lead),
		Statuses: []models.IntakeStatus{models.IntakePending},
	})
	if err != nil {
		return nil, fmt.Errorf("listing pending intakes: %w", err)
	}

	meds := make(map[string]models.Medication)
	var out []Reminder
	for _, in := range pending {
		m, ok := meds[in.MedicationID]
		if !ok {
			m, err = p.store.GetMedication(ctx, in.MedicationID)
			if err != nil {
				logger.Warn("reminder for unknown medication", "intake", in.ID, "error", err)
				continue
			}
			meds[m.ID] = m
		}
		vars := Vars{
			Medication: m.Name,
			Posology:   m.Posology,
			Time:       in.ScheduledTime.In(loc).Format(constants.TimeFormat),
			Stock:      m.CurrentStock,
		}

		if at := in.ScheduledTime.Add(-lead); inRange(at, from, to) &&
			status.ClassifyIntake(in, now) == status.Upcoming {
			out = append(out, Reminder{
				Kind:         KindReminder,
				IntakeID:     in.ID,
				MedicationID: m.ID,
				Title:        m.Name,
				Body:         Render(tpl.Reminder, vars),
				FiresAt:      at,
			})
		}
		if at := in.ScheduledTime.Add(constants.LateThreshold); inRange(at, from, to) &&
			status.IsActionable(in, now) {
			out = append(out, Reminder{
				Kind:         KindDelayed,
				IntakeID:     in.ID,
				MedicationID: m.ID,
				Title:        m.Name + " (late)",
				Body:         Render(tpl.Delayed, vars),
				FiresAt:      at,
			})
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].FiresAt.Before(out[j].FiresAt) })
	return out, nil
}

func inRange(at, from, to time.Time) bool {
	return !at.Before(from) && at.Before(to)
}
