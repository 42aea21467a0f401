package schedule

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	cronlib "github.com/robfig/cron/v3"

	"github.com/xraph/cascade"
	"github.com/xraph/cascade/id"
	"github.com/xraph/cascade/workflow"
)

// SubmitFunc is the callback the scheduler uses to submit workflows.
// This breaks the import cycle: the engine provides the implementation.
type SubmitFunc func(ctx context.Context, def *workflow.Definition, payload json.RawMessage) (id.ExecutionID, error)

// Emitter emits schedule lifecycle events.
// ext.Registry satisfies this interface.
type Emitter interface {
	EmitScheduleFired(ctx context.Context, entryName string, execID id.ExecutionID)
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithTickInterval sets how often the scheduler checks for due entries.
func WithTickInterval(d time.Duration) Option {
	return func(s *Scheduler) { s.tickInterval = d }
}

// cronParser supports standard 5-field cron and descriptors like "@every 30s".
var cronParser = cronlib.NewParser(
	cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow | cronlib.Descriptor,
)

// ParseExpr parses a cron expression and returns the schedule.
func ParseExpr(expr string) (cronlib.Schedule, error) {
	return cronParser.Parse(expr)
}

// Scheduler fires schedule entries on a tick loop.
type Scheduler struct {
	submit  SubmitFunc
	emitter Emitter
	logger  *slog.Logger

	tickInterval time.Duration

	mu      sync.RWMutex
	entries map[id.ScheduleID]*Entry

	// parsed caches parsed cron expressions.
	parsedMu sync.RWMutex
	parsed   map[string]cronlib.Schedule

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewScheduler creates a Scheduler.
func NewScheduler(submit SubmitFunc, emitter Emitter, logger *slog.Logger, opts ...Option) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scheduler{
		submit:       submit,
		emitter:      emitter,
		logger:       logger,
		tickInterval: 1 * time.Second,
		entries:      make(map[id.ScheduleID]*Entry),
		parsed:       make(map[string]cronlib.Schedule),
		stopCh:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add registers a new enabled entry. The expression is validated and
// the definition must pass workflow validation. The first NextRun is
// computed from now.
func (s *Scheduler) Add(name, expr string, def *workflow.Definition, payload json.RawMessage) (*Entry, error) {
	sched, err := s.getOrParse(expr)
	if err != nil {
		return nil, fmt.Errorf("parse schedule expression %q: %w", expr, err)
	}
	if def == nil {
		return nil, fmt.Errorf("%w: schedule entry needs a definition", cascade.ErrInvalidDefinition)
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.entries {
		if existing.Name == name {
			return nil, fmt.Errorf("schedule entry %q already registered", name)
		}
	}

	next := sched.Next(time.Now().UTC())
	entry := &Entry{
		Entity:     cascade.NewEntity(),
		ID:         id.NewScheduleID(),
		Name:       name,
		Expr:       expr,
		Definition: def,
		Payload:    payload,
		Enabled:    true,
		NextRun:    &next,
	}
	s.entries[entry.ID] = entry
	return entry.clone(), nil
}

// Remove deletes an entry by ID.
func (s *Scheduler) Remove(entryID id.ScheduleID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[entryID]; !ok {
		return fmt.Errorf("%w: %s", cascade.ErrScheduleNotFound, entryID)
	}
	delete(s.entries, entryID)
	return nil
}

// Get retrieves an entry by ID.
func (s *Scheduler) Get(entryID id.ScheduleID) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[entryID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", cascade.ErrScheduleNotFound, entryID)
	}
	return entry.clone(), nil
}

// SetEnabled enables or disables an entry. Disabling does not remove
// it; a re-enabled entry resumes from its next due instant.
func (s *Scheduler) SetEnabled(entryID id.ScheduleID, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[entryID]
	if !ok {
		return fmt.Errorf("%w: %s", cascade.ErrScheduleNotFound, entryID)
	}
	entry.Enabled = enabled
	entry.Touch()
	return nil
}

// Entries returns all entries ordered by name.
func (s *Scheduler) Entries() []*Entry {
	s.mu.RLock()
	out := make([]*Entry, 0, len(s.entries))
	for _, entry := range s.entries {
		out = append(out, entry.clone())
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Start launches the tick goroutine.
func (s *Scheduler) Start(_ context.Context) error {
	s.wg.Add(1)
	go s.tickLoop()
	s.logger.Info("scheduler started",
		slog.Duration("tick_interval", s.tickInterval),
	)
	return nil
}

// Stop signals the scheduler to stop and waits for the loop to finish.
func (s *Scheduler) Stop(_ context.Context) error {
	close(s.stopCh)
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
	return nil
}

// tickLoop fires on each tick interval and processes due entries.
func (s *Scheduler) tickLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

func (s *Scheduler) tick() {
	ctx := context.Background()
	now := time.Now().UTC()

	s.mu.RLock()
	due := make([]*Entry, 0)
	for _, entry := range s.entries {
		if !entry.Enabled {
			continue
		}
		if entry.NextRun == nil || entry.NextRun.After(now) {
			continue
		}
		due = append(due, entry)
	}
	s.mu.RUnlock()

	for _, entry := range due {
		s.fireEntry(ctx, entry, now)
	}
}

func (s *Scheduler) fireEntry(ctx context.Context, entry *Entry, now time.Time) {
	execID, submitErr := s.submit(ctx, entry.Definition, entry.Payload)
	if submitErr != nil {
		// NextRun stays put so the entry is retried on the next tick.
		s.logger.Error("schedule submit error",
			slog.String("entry_name", entry.Name),
			slog.String("workflow_id", entry.Definition.ID),
			slog.String("error", submitErr.Error()),
		)
		return
	}

	sched, parseErr := s.getOrParse(entry.Expr)
	if parseErr != nil {
		s.logger.Error("parse schedule expression error",
			slog.String("entry_name", entry.Name),
			slog.String("expr", entry.Expr),
			slog.String("error", parseErr.Error()),
		)
		return
	}

	s.mu.Lock()
	if held, ok := s.entries[entry.ID]; ok {
		fired := now
		next := sched.Next(now)
		held.LastRun = &fired
		held.NextRun = &next
		held.Touch()
	}
	s.mu.Unlock()

	if s.emitter != nil {
		s.emitter.EmitScheduleFired(ctx, entry.Name, execID)
	}

	s.logger.Info("schedule fired",
		slog.String("entry_name", entry.Name),
		slog.String("workflow_id", entry.Definition.ID),
		slog.String("execution_id", execID.String()),
	)
}

// getOrParse caches parsed cron expressions.
func (s *Scheduler) getOrParse(expr string) (cronlib.Schedule, error) {
	s.parsedMu.RLock()
	sched, ok := s.parsed[expr]
	s.parsedMu.RUnlock()
	if ok {
		return sched, nil
	}

	sched, err := ParseExpr(expr)
	if err != nil {
		return nil, err
	}

	s.parsedMu.Lock()
	s.parsed[expr] = sched
	s.parsedMu.Unlock()
	return sched, nil
}
