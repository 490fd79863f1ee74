// Package scheduler runs periodic tasks on their own tickers.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/julianstephens/doselit/internal/logger"
)

// Task is a unit of periodic work. Run is called once when the runner starts
// and then every Interval until the context is cancelled.
type Task struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

func (t Task) validate() error {
	if t.Name == "" {
		return fmt.Errorf("task name cannot be empty")
	}
	if t.Interval <= 0 {
		return fmt.Errorf("task %s: interval must be positive", t.Name)
	}
	if t.Run == nil {
		return fmt.Errorf("task %s: run function is nil", t.Name)
	}
	return nil
}

type Runner struct {
	tasks []Task
}

func NewRunner(tasks ...Task) (*Runner, error) {
	for _, t := range tasks {
		if err := t.validate(); err != nil {
			return nil, err
		}
	}
	return &Runner{tasks: tasks}, nil
}

// Start runs every task in its own goroutine and blocks until ctx is done
// and all task loops have returned.
func (r *Runner) Start(ctx context.Context) {
	var wg sync.WaitGroup
	for _, t := range r.tasks {
		wg.Add(1)
		go func(t Task) {
			defer wg.Done()
			loop(ctx, t)
		}(t)
	}
	wg.Wait()
}

func loop(ctx context.Context, t Task) {
	ticker := time.NewTicker(t.Interval)
	defer ticker.Stop()

	logger.Info("scheduled task started", "task", t.Name, "interval", t.Interval)
	RunOnce(ctx, t)

	for {
		select {
		case <-ctx.Done():
			logger.Info("scheduled task stopped", "task", t.Name)
			return
		case <-ticker.C:
			RunOnce(ctx, t)
		}
	}
}

// RunOnce executes the task a single time. Errors and panics are logged and
// never escape, so one bad cycle cannot stop the loop.
func RunOnce(ctx context.Context, t Task) (err error) {
	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("task %s panicked: %v", t.Name, rec)
		}
		if err != nil {
			logger.Error("scheduled task failed", "task", t.Name, "error", err)
			return
		}
		logger.Debug("scheduled task completed", "task", t.Name, "duration", time.Since(start))
	}()
	return t.Run(ctx)
}
