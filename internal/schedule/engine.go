package schedule

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"fleetd/internal/dispatch"
	"fleetd/internal/events"
	"fleetd/internal/fleet"
	"fleetd/internal/store"
)

const defaultTickInterval = 60 * time.Second

// Store is the schedule persistence the engine drives. Implemented by
// store.ScheduleStore.
type Store interface {
	Create(ctx context.Context, sc *store.Schedule) error
	Get(ctx context.Context, id string) (*store.Schedule, error)
	List(ctx context.Context) ([]store.Schedule, error)
	ListDue(ctx context.Context, now time.Time) ([]store.Schedule, error)
	Update(ctx context.Context, sc *store.Schedule) error
	MarkFired(ctx context.Context, id string, lastRun, nextRun time.Time) error
	SetEnabled(ctx context.Context, id string, enabled bool) error
	Delete(ctx context.Context, id string) error
}

// TaskLookup resolves a schedule's task reference.
type TaskLookup interface {
	Get(ctx context.Context, id string) (*fleet.Task, error)
}

// HostLookup resolves a schedule's host-identifier set. The returned
// slice may be shorter than the requested ids when some are stale.
type HostLookup interface {
	GetByIDs(ctx context.Context, ids []string) ([]fleet.Host, error)
}

// Ledger receives one row per host per firing.
type Ledger interface {
	Append(ctx context.Context, e store.Execution) error
}

// Dispatcher runs one command across a fleet. Implemented by
// dispatch.Dispatcher.
type Dispatcher interface {
	Run(ctx context.Context, req dispatch.Request) []fleet.Result
}

// Engine owns schedule lifecycle and the tick loop. One Engine runs
// per process; firings happen on their own goroutines, guarded so a
// firing slower than the tick interval is never re-entered.
type Engine struct {
	schedules   Store
	tasks       TaskLookup
	hosts       HostLookup
	creds       fleet.CredentialProvider
	dispatcher  Dispatcher
	ledger      Ledger
	broadcaster events.Broadcaster
	logger      *slog.Logger
	tick        time.Duration

	mu       sync.Mutex
	inflight map[string]struct{}
	wg       sync.WaitGroup
}

// Config wires an Engine. Schedules, Tasks, Hosts, Dispatcher, and
// Ledger are required; the rest default.
type Config struct {
	Schedules   Store
	Tasks       TaskLookup
	Hosts       HostLookup
	Credentials fleet.CredentialProvider
	Dispatcher  Dispatcher
	Ledger      Ledger
	Broadcaster events.Broadcaster
	Logger      *slog.Logger
	Tick        time.Duration
}

// NewEngine creates an Engine from cfg.
func NewEngine(cfg Config) *Engine {
	e := &Engine{
		schedules:   cfg.Schedules,
		tasks:       cfg.Tasks,
		hosts:       cfg.Hosts,
		creds:       cfg.Credentials,
		dispatcher:  cfg.Dispatcher,
		ledger:      cfg.Ledger,
		broadcaster: cfg.Broadcaster,
		logger:      cfg.Logger,
		tick:        cfg.Tick,
		inflight:    make(map[string]struct{}),
	}
	if e.creds == nil {
		e.creds = fleet.StaticProvider{}
	}
	if e.broadcaster == nil {
		e.broadcaster = events.Nop{}
	}
	if e.logger == nil {
		e.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if e.tick <= 0 {
		e.tick = defaultTickInterval
	}
	return e
}

// CreateSchedule validates sc, computes its initial next_run relative
// to now, and persists it. Validation failures (malformed rule, empty
// host set, missing task) surface here, synchronously.
func (e *Engine) CreateSchedule(ctx context.Context, sc *store.Schedule) error {
	rule, err := e.validate(ctx, sc)
	if err != nil {
		return err
	}
	next := rule.Next(time.Now().UTC())
	sc.NextRun = &next
	sc.LastRun = nil
	sc.RunCount = 0
	return e.schedules.Create(ctx, sc)
}

// UpdateSchedule revalidates and persists sc. When the rule changed,
// next_run is recomputed immediately relative to now; otherwise the
// stored firing state is preserved.
func (e *Engine) UpdateSchedule(ctx context.Context, sc *store.Schedule) error {
	old, err := e.schedules.Get(ctx, sc.ID)
	if err != nil {
		return err
	}
	rule, err := e.validate(ctx, sc)
	if err != nil {
		return err
	}

	sc.LastRun = old.LastRun
	sc.RunCount = old.RunCount
	if old.RuleKind != sc.RuleKind || old.RuleValue != sc.RuleValue {
		next := rule.Next(time.Now().UTC())
		sc.NextRun = &next
	} else {
		sc.NextRun = old.NextRun
	}
	return e.schedules.Update(ctx, sc)
}

// EnableSchedule re-enables a schedule. The stored next_run is kept:
// if it is already in the past the schedule fires on the next tick.
func (e *Engine) EnableSchedule(ctx context.Context, id string) error {
	return e.schedules.SetEnabled(ctx, id, true)
}

// DisableSchedule halts firing without clearing next_run.
func (e *Engine) DisableSchedule(ctx context.Context, id string) error {
	return e.schedules.SetEnabled(ctx, id, false)
}

// DeleteSchedule removes a schedule from tick consideration. An
// in-flight firing, if any, runs to completion.
func (e *Engine) DeleteSchedule(ctx context.Context, id string) error {
	return e.schedules.Delete(ctx, id)
}

func (e *Engine) validate(ctx context.Context, sc *store.Schedule) (Rule, error) {
	rule, err := Parse(sc.RuleKind, sc.RuleValue)
	if err != nil {
		return nil, err
	}
	if sc.Name == "" {
		return nil, fmt.Errorf("schedule name is required")
	}
	if len(sc.HostIDs) == 0 {
		return nil, fmt.Errorf("schedule needs at least one host")
	}
	if _, err := e.tasks.Get(ctx, sc.TaskID); err != nil {
		return nil, fmt.Errorf("task %s: %w", sc.TaskID, err)
	}
	return rule, nil
}

// Run drives the tick loop until ctx is cancelled, then waits for any
// in-flight firings to finish.
func (e *Engine) Run(ctx context.Context) {
	e.logger.Info("schedule engine started", "tick", e.tick.String())
	ticker := time.NewTicker(e.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.wg.Wait()
			e.logger.Info("schedule engine stopped")
			return
		case <-ticker.C:
			e.tickOnce(ctx, time.Now().UTC())
		}
	}
}

// tickOnce fires every due schedule that is not already in flight.
// Each firing runs on its own goroutine so one slow or broken schedule
// cannot starve the others.
func (e *Engine) tickOnce(ctx context.Context, now time.Time) {
	due, err := e.schedules.ListDue(ctx, now)
	if err != nil {
		e.logger.Error("listing due schedules", "error", err)
		return
	}

	for _, sc := range due {
		if !e.markInflight(sc.ID) {
			e.logger.Warn("schedule still firing, skipping", "schedule", sc.Name)
			continue
		}
		e.wg.Add(1)
		go func(sc store.Schedule) {
			defer e.wg.Done()
			defer e.clearInflight(sc.ID)
			e.fire(ctx, sc)
		}(sc)
	}
}

// fire executes one due schedule end to end: resolve task and hosts,
// dispatch in parallel, append ledger rows, advance the recurrence.
func (e *Engine) fire(ctx context.Context, sc store.Schedule) {
	log := e.logger.With("schedule", sc.Name)
	log.Info("firing schedule")

	task, err := e.tasks.Get(ctx, sc.TaskID)
	if err != nil {
		e.reportFiringError(log, sc, fmt.Errorf("task %s: %w", sc.TaskID, err))
		return
	}

	hosts, err := e.hosts.GetByIDs(ctx, sc.HostIDs)
	if err != nil {
		e.reportFiringError(log, sc, fmt.Errorf("loading hosts: %w", err))
		return
	}
	if len(hosts) == 0 {
		e.reportFiringError(log, sc, fmt.Errorf("no hosts resolved from %d ids", len(sc.HostIDs)))
		return
	}

	targets := make([]fleet.Resolved, 0, len(hosts))
	for _, h := range hosts {
		target, err := e.creds.Resolve(h)
		if err != nil {
			// Dispatch a credential-less descriptor so the executor
			// reports the configuration error as this host's result
			// instead of the host silently vanishing from the run.
			log.Error("resolving credentials", "host", h.Name, "error", err)
			target = fleet.Resolved{HostID: h.ID, Name: h.Name, Address: h.Address, Port: h.Port, Username: h.Username}
		}
		targets = append(targets, target)
	}

	results := e.dispatcher.Run(ctx, dispatch.Request{
		TaskID:    task.ID,
		TaskName:  sc.Name,
		Command:   task.Command,
		Targets:   targets,
		Mode:      dispatch.ModeParallel,
		Scheduled: true,
	})

	for _, r := range results {
		err := e.ledger.Append(ctx, store.Execution{
			TaskID:      sc.TaskID,
			HostID:      r.HostID,
			Status:      string(r.Status),
			Output:      r.Output,
			Error:       r.Error,
			StartedAt:   r.StartedAt,
			CompletedAt: r.CompletedAt,
		})
		if err != nil {
			// Sink failure: logged, never rolls back the execution.
			log.Error("ledger append failed", "host", r.HostName, "error", err)
		}
	}

	rule, err := Parse(sc.RuleKind, sc.RuleValue)
	if err != nil {
		// Stored rule no longer parses; leave next_run alone rather
		// than guess.
		e.reportFiringError(log, sc, fmt.Errorf("stored rule invalid: %w", err))
		return
	}

	firedAt := time.Now().UTC()
	if err := e.schedules.MarkFired(ctx, sc.ID, firedAt, rule.Next(firedAt)); err != nil {
		log.Error("recording firing", "error", err)
		return
	}
	log.Info("schedule fired", "hosts", len(results), "failed", countFailed(results))
}

// reportFiringError logs and broadcasts a firing problem. The schedule
// stays enabled; the operator decides what to do with it.
func (e *Engine) reportFiringError(log *slog.Logger, sc store.Schedule, err error) {
	log.Error("schedule firing failed", "error", err)
	e.broadcaster.Emit(events.Event{
		Kind:     events.KindError,
		HostName: "scheduler",
		Data:     fmt.Sprintf("schedule %q: %v", sc.Name, err),
		At:       time.Now(),
	})
}

func (e *Engine) markInflight(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, firing := e.inflight[id]; firing {
		return false
	}
	e.inflight[id] = struct{}{}
	return true
}

func (e *Engine) clearInflight(id string) {
	e.mu.Lock()
	delete(e.inflight, id)
	e.mu.Unlock()
}

func countFailed(results []fleet.Result) int {
	n := 0
	for _, r := range results {
		if r.Status == fleet.StatusError {
			n++
		}
	}
	return n
}
