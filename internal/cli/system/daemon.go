package system

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/julianstephens/doselit/internal/cli"
	"github.com/julianstephens/doselit/internal/constants"
	"github.com/julianstephens/doselit/internal/lifecycle"
	"github.com/julianstephens/doselit/internal/logger"
	"github.com/julianstephens/doselit/internal/metrics"
	"github.com/julianstephens/doselit/internal/reminders"
	"github.com/julianstephens/doselit/internal/scheduler"
)

// DaemonCmd keeps the intake horizon topped up, ends expired treatments and
// dispatches reminders until interrupted.
type DaemonCmd struct {
	Addr string `help:"Listen address for /health and /metrics." default:"127.0.0.1:9464"`
}

// taskStatus records the last run of each scheduled task for /health.
type taskStatus struct {
	mu   sync.Mutex
	runs map[string]taskRun
}

type taskRun struct {
	At    time.Time `json:"at"`
	Error string    `json:"error,omitempty"`
}

func newTaskStatus() *taskStatus {
	return &taskStatus{runs: make(map[string]taskRun)}
}

func (s *taskStatus) record(name string, at time.Time, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run := taskRun{At: at}
	if err != nil {
		run.Error = err.Error()
	}
	s.runs[name] = run
}

func (s *taskStatus) snapshot() map[string]taskRun {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]taskRun, len(s.runs))
	for k, v := range s.runs {
		out[k] = v
	}
	return out
}

// wrap records every run of t.
func (s *taskStatus) wrap(t scheduler.Task, clock func() time.Time) scheduler.Task {
	run := t.Run
	t.Run = func(ctx context.Context) error {
		err := run(ctx)
		s.record(t.Name, clock(), err)
		return err
	}
	return t
}

// NewRouter serves the daemon's health and Prometheus endpoints.
func NewRouter(gatherer prometheus.Gatherer, status *taskStatus) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":  "ok",
			"version": constants.Version,
			"tasks":   status.snapshot(),
		})
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler(gatherer))
	return r
}

func (c *DaemonCmd) Run(ctx *cli.Context) error {
	settings, _, err := ctx.Settings()
	if err != nil {
		return err
	}
	userID, err := ctx.UserID()
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	ctx.Metrics = metrics.NewCollector(reg)

	status := newTaskStatus()
	tasks := c.tasks(ctx, userID, settings.RegenInterval)
	for i := range tasks {
		tasks[i] = status.wrap(tasks[i], ctx.Now)
	}
	runner, err := scheduler.NewRunner(tasks...)
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx.Context())
	defer cancel()

	srv := &http.Server{
		Addr:              c.Addr,
		Handler:           NewRouter(reg, status),
		ReadHeaderTimeout: 5 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	done := make(chan struct{})
	go func() {
		runner.Start(runCtx)
		close(done)
	}()

	logger.Info("daemon started", "addr", c.Addr, "user", userID, "regen_interval", settings.RegenInterval)
	fmt.Printf("doselit daemon listening on %s (Ctrl+C to stop)\n", c.Addr)

	select {
	case <-runCtx.Done():
	case err = <-serveErr:
	}
	cancel()
	<-done

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
		logger.Warn("http shutdown failed", "error", shutdownErr)
	}
	logger.Info("daemon stopped")
	if err != nil {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

func (c *DaemonCmd) tasks(ctx *cli.Context, userID string, regenInterval time.Duration) []scheduler.Task {
	if regenInterval <= 0 {
		regenInterval = constants.DefaultRegenInterval
	}
	manager := lifecycle.NewManager(ctx.Store, ctx.Recorder())
	regen := ctx.Regenerator()
	dispatcher := reminders.NewDispatcher(reminders.NewPlanner(ctx.Store), ctx.Notifier(), userID,
		reminders.WithRecorder(ctx.Recorder()))

	return []scheduler.Task{
		{
			Name:     "regenerate",
			Interval: regenInterval,
			Run: func(rc context.Context) error {
				res, err := lifecycle.StartSession(rc, manager, regen, userID, ctx.Now())
				if err != nil {
					return err
				}
				logger.Info("regeneration cycle", "summary", res.Regeneration.Summary(),
					"deactivated", len(res.Lifecycle.Deactivated))
				return nil
			},
		},
		{
			Name:     "reminders",
			Interval: constants.DispatchInterval,
			Run: func(rc context.Context) error {
				_, err := dispatcher.Tick(rc, ctx.Now())
				return err
			},
		},
	}
}
