package reminders

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/julianstephens/doselit/internal/constants"
	"github.com/julianstephens/doselit/internal/logger"
	"github.com/julianstephens/doselit/internal/metrics"
)

// DefaultLimit allows one notification per second with bursts of five.
var DefaultLimit = rate.Every(time.Second)

const defaultBurst = 5

// Dispatcher sends due reminders for one user. It remembers what it sent so
// overlapping ticks never notify twice.
type Dispatcher struct {
	planner *Planner
	sender  Sender
	userID  string
	limiter *rate.Limiter
	metrics metrics.Recorder

	mu      sync.Mutex
	sent    map[string]time.Time
	covered time.Time // end of the last planned window
}

type DispatcherOption func(*Dispatcher)

func WithLimiter(l *rate.Limiter) DispatcherOption {
	return func(d *Dispatcher) { d.limiter = l }
}

func WithRecorder(r metrics.Recorder) DispatcherOption {
	return func(d *Dispatcher) {
		if r != nil {
			d.metrics = r
		}
	}
}

func NewDispatcher(planner *Planner, sender Sender, userID string, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		planner: planner,
		sender:  sender,
		userID:  userID,
		limiter: rate.NewLimiter(DefaultLimit, defaultBurst),
		metrics: metrics.Nop{},
		sent:    make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Tick sends every reminder firing within now's minute and returns how many
// were delivered. Minutes no tick covered since the previous one (a late
// ticker, a resume from suspend) are caught up, at most LateThreshold back.
// Delivery failures are logged and do not stop the tick.
func (d *Dispatcher) Tick(ctx context.Context, now time.Time) (int, error) {
	from, to := d.window(now)
	due, err := d.planner.Plan(ctx, d.userID, from, to, now)
	if err != nil {
		return 0, fmt.Errorf("planning reminders: %w", err)
	}
	d.mu.Lock()
	if to.After(d.covered) {
		d.covered = to
	}
	d.mu.Unlock()

	d.prune(now)
	sent := 0
	for _, r := range due {
		if d.wasSent(r) {
			continue
		}
		if err := d.deliver(ctx, r); err != nil {
			if ctx.Err() != nil {
				return sent, ctx.Err()
			}
			continue
		}
		sent++
	}
	return sent, nil
}

func (d *Dispatcher) window(now time.Time) (time.Time, time.Time) {
	from := now.Truncate(time.Minute)
	to := from.Add(time.Minute)

	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.covered.IsZero() && d.covered.Before(from) {
		from = d.covered
		if floor := to.Add(-constants.LateThreshold); from.Before(floor) {
			from = floor
		}
	}
	return from, to
}

// Alert sends a reminder immediately, e.g. a stock alert after a take.
func (d *Dispatcher) Alert(ctx context.Context, r Reminder) error {
	if d.wasSent(r) {
		return nil
	}
	return d.deliver(ctx, r)
}

func (d *Dispatcher) deliver(ctx context.Context, r Reminder) error {
	if err := d.limiter.Wait(ctx); err != nil {
		return err
	}
	if err := d.sender.Send(ctx, r); err != nil {
		logger.Warn("reminder delivery failed", "kind", r.Kind, "medication", r.MedicationID, "error", err)
		return err
	}
	d.mu.Lock()
	d.sent[r.Key()] = r.FiresAt
	d.mu.Unlock()
	d.metrics.RecordReminderSent(string(r.Kind))
	logger.Debug("reminder sent", "kind", r.Kind, "intake", r.IntakeID)
	return nil
}

func (d *Dispatcher) wasSent(r Reminder) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.sent[r.Key()]
	return ok
}

func (d *Dispatcher) prune(now time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for k, at := range d.sent {
		if now.Sub(at) > 24*time.Hour {
			delete(d.sent, k)
		}
	}
}
