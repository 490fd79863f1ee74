// Package adherence rolls classified intakes up into counts and ratios over
// trailing windows.
package adherence

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/julianstephens/doselit/internal/constants"
	"github.com/julianstephens/doselit/internal/logger"
	"github.com/julianstephens/doselit/internal/models"
	"github.com/julianstephens/doselit/internal/status"
	"github.com/julianstephens/doselit/internal/storage"
	"github.com/julianstephens/doselit/internal/utils"
)

var hundred = decimal.NewFromInt(100)

// Item is an intake together with its classification.
type Item struct {
	Intake models.Intake
	Status status.Display
}

// Classify tags every intake using the status classifier.
func Classify(in []models.Intake, now time.Time) []Item {
	out := make([]Item, len(in))
	for i, intake := range in {
		out[i] = Item{Intake: intake, Status: status.ClassifyIntake(intake, now)}
	}
	return out
}

// Counts holds one bucket per classification. Overdue and Upcoming are
// pending intakes that can still be acted on today; they are reported but
// excluded from the ratio.
type Counts struct {
	OnTime   int `json:"on_time"`
	Late     int `json:"late"`
	Missed   int `json:"missed"`
	Skipped  int `json:"skipped"`
	Overdue  int `json:"overdue"`
	Upcoming int `json:"upcoming"`
}

func (c *Counts) add(it Item) {
	switch it.Status {
	case status.OnTime:
		c.OnTime++
	case status.Late:
		if it.Intake.Status == models.IntakePending {
			c.Overdue++
		} else {
			c.Late++
		}
	case status.Missed:
		c.Missed++
	case status.Skipped:
		c.Skipped++
	case status.Upcoming:
		c.Upcoming++
	}
}

// Taken is on_time + late.
func (c Counts) Taken() int {
	return c.OnTime + c.Late
}

// Resolved is the ratio denominator: on_time + late + missed + skipped.
func (c Counts) Resolved() int {
	return c.Taken() + c.Missed + c.Skipped
}

// Total counts every intake in the window, pending ones included.
func (c Counts) Total() int {
	return c.Resolved() + c.Overdue + c.Upcoming
}

// Percent is the adherence ratio in percent, rounded to one decimal place.
// An empty window yields zero.
func (c Counts) Percent() decimal.Decimal {
	return Ratio(c.Taken(), c.Resolved())
}

// Ratio returns num/den in percent rounded to one decimal, 0 when den is 0.
func Ratio(num, den int) decimal.Decimal {
	if den <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(num)).Mul(hundred).
		DivRound(decimal.NewFromInt(int64(den)), 1)
}

// Aggregate counts items scheduled in [from, to).
func Aggregate(items []Item, from, to time.Time) Counts {
	var c Counts
	for _, it := range items {
		at := it.Intake.ScheduledTime
		if at.Before(from) || !at.Before(to) {
			continue
		}
		c.add(it)
	}
	return c
}

// Summary is the adherence over one window.
type Summary struct {
	Days    int             `json:"days"`
	From    time.Time       `json:"from"`
	To      time.Time       `json:"to"`
	Counts  Counts          `json:"counts"`
	Percent decimal.Decimal `json:"percent"`
}

// MedicationSummary breaks a window down for one medication.
type MedicationSummary struct {
	MedicationID string          `json:"medication_id"`
	Medication   string          `json:"medication"`
	Counts       Counts          `json:"counts"`
	Percent      decimal.Decimal `json:"percent"`
}

// Report is the default statistics view: 7 and 30 trailing days plus the
// per-medication breakdown of the 30-day window.
type Report struct {
	Week         Summary             `json:"week"`
	Month        Summary             `json:"month"`
	ByMedication []MedicationSummary `json:"by_medication"`
	GeneratedAt  time.Time           `json:"generated_at"`
}

// TrailingWindow returns [start of the day days-1 before now, now).
func TrailingWindow(now time.Time, days int) (time.Time, time.Time) {
	if days < 1 {
		days = 1
	}
	return utils.StartOfDay(now).AddDate(0, 0, -(days - 1)), now
}

type Aggregator struct {
	store storage.Provider
}

func NewAggregator(store storage.Provider) *Aggregator {
	return &Aggregator{store: store}
}

func (a *Aggregator) location(ctx context.Context) *time.Location {
	settings, err := a.store.GetSettings(ctx)
	if err != nil {
		return time.Local
	}
	loc, err := utils.LocationFromSettings(settings)
	if err != nil {
		logger.Warn("invalid timezone setting", "error", err)
		return time.Local
	}
	return loc
}

// Report computes the 7- and 30-day windows anchored at now.
func (a *Aggregator) Report(ctx context.Context, userID string, now time.Time) (Report, error) {
	now = now.In(a.location(ctx))
	from, to := TrailingWindow(now, constants.AdherenceLongWindowDays)
	items, err := a.load(ctx, userID, "", from, to, now)
	if err != nil {
		return Report{}, err
	}

	month := summarize(items, constants.AdherenceLongWindowDays, from, to)
	wFrom, wTo := TrailingWindow(now, constants.AdherenceShortWindowDays)
	week := summarize(items, constants.AdherenceShortWindowDays, wFrom, wTo)

	byMed, err := a.byMedication(ctx, userID, items)
	if err != nil {
		return Report{}, err
	}
	return Report{Week: week, Month: month, ByMedication: byMed, GeneratedAt: now}, nil
}

// Window computes the adherence over an arbitrary number of trailing days,
// optionally restricted to one medication.
func (a *Aggregator) Window(ctx context.Context, userID, medicationID string, days int, now time.Time) (Summary, error) {
	now = now.In(a.location(ctx))
	from, to := TrailingWindow(now, days)
	items, err := a.load(ctx, userID, medicationID, from, to, now)
	if err != nil {
		return Summary{}, err
	}
	return summarize(items, days, from, to), nil
}

func (a *Aggregator) load(ctx context.Context, userID, medicationID string, from, to, now time.Time) ([]Item, error) {
	in, err := a.store.ListIntakes(ctx, models.IntakeFilter{
		UserID:       userID,
		MedicationID: medicationID,
		From:         from,
		To:           to,
	})
	if err != nil {
		return nil, fmt.Errorf("listing intakes for adherence: %w", err)
	}
	return Classify(in, now), nil
}

func summarize(items []Item, days int, from, to time.Time) Summary {
	c := Aggregate(items, from, to)
	return Summary{Days: days, From: from, To: to, Counts: c, Percent: c.Percent()}
}

func (a *Aggregator) byMedication(ctx context.Context, userID string, items []Item) ([]MedicationSummary, error) {
	meds, err := a.store.ListMedicationsForUser(ctx, userID, false)
	if err != nil {
		return nil, fmt.Errorf("listing medications: %w", err)
	}
	names := make(map[string]string, len(meds))
	for _, m := range meds {
		names[m.ID] = m.Name
	}

	grouped := make(map[string]*Counts)
	for _, it := range items {
		c, ok := grouped[it.Intake.MedicationID]
		if !ok {
			c = &Counts{}
			grouped[it.Intake.MedicationID] = c
		}
		c.add(it)
	}

	out := make([]MedicationSummary, 0, len(grouped))
	for id, c := range grouped {
		out = append(out, MedicationSummary{
			MedicationID: id,
			Medication:   names[id],
			Counts:       *c,
			Percent:      c.Percent(),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Medication != out[j].Medication {
			return out[i].Medication < out[j].Medication
		}
		return out[i].MedicationID < out[j].MedicationID
	})
	return out, nil
}
