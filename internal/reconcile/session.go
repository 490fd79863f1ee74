// Package reconcile stages resolutions for backlogged intakes and commits
// them in bulk.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/julianstephens/doselit/internal/backlog"
	"github.com/julianstephens/doselit/internal/logger"
	"github.com/julianstephens/doselit/internal/metrics"
	"github.com/julianstephens/doselit/internal/stock"
	"github.com/julianstephens/doselit/internal/storage"
)

var (
	// ErrAlreadyCommitted is returned when staging an entry committed earlier in the session.
	ErrAlreadyCommitted = errors.New("intake already reconciled in this session")
	// ErrUnknownIntake is returned when staging an intake that is not in the backlog.
	ErrUnknownIntake = errors.New("intake is not part of the backlog")
	// ErrMissingTime is returned when an adjust action has no taken-at instant.
	ErrMissingTime = errors.New("adjust requires the time the dose was actually taken")
	// ErrStatusRecorded is returned when changing an entry whose status was
	// already written; only its stock update is left to retry.
	ErrStatusRecorded = errors.New("intake status already recorded, only its stock update can be retried")
)

type state int

const (
	stateUnset state = iota
	stateStaged
	stateCommitted
)

type staged struct {
	entry  backlog.Entry
	action Action
	at     time.Time
	state  state
	// statusWritten is set once the intake row was resolved, so a retry
	// after a stock failure only re-applies the stock.
	statusWritten bool
}

// Item is one staged resolution as seen by callers.
type Item struct {
	Entry  backlog.Entry
	Action Action
	At     time.Time
}

// Failure is an item that could not be committed and stays staged.
type Failure struct {
	Item
	Err error
}

// Report is the result of CommitAll.
type Report struct {
	Attempted int
	Committed []Item
	// Noop lists items that were already resolved by another session.
	Noop   []Item
	Failed []Failure
	// LowStock lists stock levels that reached the alert threshold.
	LowStock []stock.Result
}

// Reconciled is the number of items that left the staging area.
func (r Report) Reconciled() int {
	return len(r.Committed) + len(r.Noop)
}

func (r Report) Summary() string {
	if r.Attempted == 0 {
		return "nothing to reconcile"
	}
	if len(r.Failed) == 0 {
		return fmt.Sprintf("%d of %d reconciled", r.Reconciled(), r.Attempted)
	}
	return fmt.Sprintf("%d of %d reconciled, retry the rest", r.Reconciled(), r.Attempted)
}

// Counts is a snapshot of the session state.
type Counts struct {
	Backlog   int
	Staged    int
	Committed int
}

// Remaining is the number of backlog entries with no decision yet.
func (c Counts) Remaining() int {
	return c.Backlog - c.Staged - c.Committed
}

// Option configures a Session.
type Option func(*Session)

// WithBackup runs fn once before the first write of each commit. A failing
// backup is logged and does not block the commit.
func WithBackup(fn func(ctx context.Context) error) Option {
	return func(s *Session) { s.backup = fn }
}

func WithMetrics(recorder metrics.Recorder) Option {
	return func(s *Session) {
		if recorder != nil {
			s.metrics = recorder
		}
	}
}

// Session is an in-memory staging area keyed by intake id. Nothing is
// written to the store before CommitAll.
type Session struct {
	mu       sync.Mutex
	resolver *Resolver
	order    []string
	entries  map[string]*staged
	backup   func(ctx context.Context) error
	metrics  metrics.Recorder
}

func NewSession(store storage.Provider, ledger *stock.Ledger, b backlog.Backlog, opts ...Option) *Session {
	s := &Session{
		resolver: NewResolver(store, ledger),
		entries:  make(map[string]*staged),
		metrics:  metrics.Nop{},
	}
	for _, e := range b.Entries() {
		if _, dup := s.entries[e.Intake.ID]; dup {
			continue
		}
		s.order = append(s.order, e.Intake.ID)
		s.entries[e.Intake.ID] = &staged{entry: e}
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Stage records action for the intake, replacing any earlier staged action.
// at is only used by ActionAdjust.
func (s *Session) Stage(intakeID string, action Action, at time.Time) error {
	if !action.Valid() {
		return fmt.Errorf("invalid action %q", action)
	}
	if action == ActionAdjust && at.IsZero() {
		return ErrMissingTime
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.entries[intakeID]
	if !ok {
		return fmt.Errorf("%s: %w", intakeID, ErrUnknownIntake)
	}
	if st.state == stateCommitted {
		return fmt.Errorf("%s: %w", intakeID, ErrAlreadyCommitted)
	}
	if st.statusWritten && (action != st.action || !at.Equal(st.at)) {
		return fmt.Errorf("%s: %w", intakeID, ErrStatusRecorded)
	}
	st.action = action
	st.at = at
	st.state = stateStaged
	return nil
}

// StageAll stages the same action for every entry without a decision.
func (s *Session) StageAll(action Action) int {
	s.mu.Lock()
	ids := make([]string, 0, len(s.order))
	for _, id := range s.order {
		if s.entries[id].state == stateUnset {
			ids = append(ids, id)
		}
	}
	s.mu.Unlock()

	n := 0
	for _, id := range ids {
		if err := s.Stage(id, action, time.Time{}); err == nil {
			n++
		}
	}
	return n
}

// Unstage drops the staged action for one intake.
func (s *Session) Unstage(intakeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.entries[intakeID]
	if !ok {
		return fmt.Errorf("%s: %w", intakeID, ErrUnknownIntake)
	}
	if st.state == stateCommitted {
		return fmt.Errorf("%s: %w", intakeID, ErrAlreadyCommitted)
	}
	if st.statusWritten {
		return fmt.Errorf("%s: %w", intakeID, ErrStatusRecorded)
	}
	st.state = stateUnset
	st.action = ""
	st.at = time.Time{}
	return nil
}

// DiscardAll clears every staged action without writing anything. Entries
// whose status is already written stay staged for their stock retry.
func (s *Session) DiscardAll() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, st := range s.entries {
		if st.state == stateStaged && !st.statusWritten {
			st.state = stateUnset
			st.action = ""
			st.at = time.Time{}
			n++
		}
	}
	return n
}

func (s *Session) Counts() Counts {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := Counts{Backlog: len(s.order)}
	for _, st := range s.entries {
		switch st.state {
		case stateStaged:
			c.Staged++
		case stateCommitted:
			c.Committed++
		}
	}
	return c
}

// Staged returns the staged items in backlog order.
func (s *Session) Staged() []Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Item
	for _, id := range s.order {
		st := s.entries[id]
		if st.state == stateStaged {
			out = append(out, Item{Entry: st.entry, Action: st.action, At: st.at})
		}
	}
	return out
}

// Pending returns the backlog entries with no decision yet, in order.
func (s *Session) Pending() []backlog.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []backlog.Entry
	for _, id := range s.order {
		if st := s.entries[id]; st.state == stateUnset {
			out = append(out, st.entry)
		}
	}
	return out
}

// CommitAll writes every staged item sequentially. An item that fails stays
// staged and the others proceed. Adjusted times later than now are rejected.
func (s *Session) CommitAll(ctx context.Context, now time.Time) Report {
	s.mu.Lock()
	defer s.mu.Unlock()

	var todo []*staged
	for _, id := range s.order {
		if st := s.entries[id]; st.state == stateStaged {
			todo = append(todo, st)
		}
	}
	rep := Report{Attempted: len(todo)}
	if len(todo) == 0 {
		return rep
	}

	if s.backup != nil {
		if err := s.backup(ctx); err != nil {
			logger.Warn("backup before reconciliation failed", "error", err)
		}
	}

	for _, st := range todo {
		item := Item{Entry: st.entry, Action: st.action, At: st.at}
		if err := ctx.Err(); err != nil {
			rep.Failed = append(rep.Failed, Failure{Item: item, Err: err})
			continue
		}
		out, err := s.commitOne(ctx, st, now)
		if err != nil {
			logger.Error("reconciliation failed", "intake", st.entry.Intake.ID, "action", st.action, "error", err)
			s.metrics.RecordReconciliation(metrics.OutcomeFailed)
			rep.Failed = append(rep.Failed, Failure{Item: item, Err: err})
			continue
		}
		st.state = stateCommitted
		if out.Noop {
			s.metrics.RecordReconciliation(metrics.OutcomeNoop)
			rep.Noop = append(rep.Noop, item)
			continue
		}
		s.metrics.RecordReconciliation(metrics.OutcomeCommitted)
		rep.Committed = append(rep.Committed, item)
		if out.Stock != nil && out.Stock.Low {
			rep.LowStock = append(rep.LowStock, *out.Stock)
		}
	}

	sort.SliceStable(rep.LowStock, func(i, j int) bool { return rep.LowStock[i].Stock < rep.LowStock[j].Stock })
	logger.Info("reconciliation committed", "attempted", rep.Attempted, "committed", len(rep.Committed),
		"noop", len(rep.Noop), "failed", len(rep.Failed))
	return rep
}

func (s *Session) commitOne(ctx context.Context, st *staged, now time.Time) (Outcome, error) {
	in := st.entry.Intake
	if st.action == ActionAdjust && st.at.After(now) {
		return Outcome{}, fmt.Errorf("taken-at %s is in the future", st.at.Format(time.RFC3339))
	}
	if !st.statusWritten {
		if err := s.resolver.resolveStatus(ctx, in, st.action, st.at); err != nil {
			if errors.Is(err, storage.ErrAlreadyResolved) {
				return Outcome{Noop: true}, nil
			}
			return Outcome{}, err
		}
		st.statusWritten = true
	}
	return s.resolver.consume(ctx, in, st.entry.UnitsPerTake, st.action)
}
