// Package dispatch fans one command out to a set of hosts and collects
// exactly one result per host. It owns the parallel-or-sequential
// policy; per-host transport details live in sshexec.
package dispatch

import (
	"context"
	"io"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"fleetd/internal/events"
	"fleetd/internal/fleet"
)

// Mode selects how the fleet is walked.
type Mode int

const (
	// ModeParallel runs every host concurrently and waits for all to
	// settle.
	ModeParallel Mode = iota
	// ModeSequential runs hosts one at a time, in input order,
	// continuing past failures.
	ModeSequential
)

func (m Mode) String() string {
	if m == ModeSequential {
		return "sequential"
	}
	return "parallel"
}

// SessionRunner executes one command on one host. sshexec.Executor is
// the production implementation; tests substitute fakes.
type SessionRunner interface {
	Run(ctx context.Context, target fleet.Resolved, command string) fleet.Result
}

// Request describes one fleet run.
type Request struct {
	TaskID    string
	TaskName  string
	Command   string
	Targets   []fleet.Resolved
	Mode      Mode
	Scheduled bool
}

// Dispatcher coordinates fleet runs. It is stateless per invocation.
type Dispatcher struct {
	runner      SessionRunner
	broadcaster events.Broadcaster
	logger      *slog.Logger
	concurrency int
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithConcurrency caps the number of hosts contacted at once in
// parallel mode. Zero means unbounded.
func WithConcurrency(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.concurrency = n
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// New creates a Dispatcher. Pass events.Nop{} when no observers exist.
func New(runner SessionRunner, b events.Broadcaster, opts ...Option) *Dispatcher {
	if b == nil {
		b = events.Nop{}
	}
	d := &Dispatcher{
		runner:      runner,
		broadcaster: b,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run executes the request and returns one result per target, indexed
// to match the input order. A failing host never aborts or cancels its
// siblings; partial failure is visible only in per-result status.
func (d *Dispatcher) Run(ctx context.Context, req Request) []fleet.Result {
	d.broadcaster.Emit(events.Event{
		Kind:      events.KindStart,
		TaskID:    req.TaskID,
		TaskName:  req.TaskName,
		HostCount: len(req.Targets),
		Scheduled: req.Scheduled,
		At:        time.Now(),
	})

	results := make([]fleet.Result, len(req.Targets))

	switch req.Mode {
	case ModeSequential:
		for i, target := range req.Targets {
			results[i] = d.runner.Run(ctx, target, req.Command)
		}
	default:
		// Worker goroutines report everything through their result
		// slot; the group error is never set, so one host's failure
		// cannot short-circuit the rest.
		g, gctx := errgroup.WithContext(ctx)
		if d.concurrency > 0 {
			g.SetLimit(d.concurrency)
		}
		for i, target := range req.Targets {
			i, target := i, target
			g.Go(func() error {
				results[i] = d.runner.Run(gctx, target, req.Command)
				return nil
			})
		}
		_ = g.Wait()
	}

	d.logger.Info("fleet run complete",
		"task", req.TaskName,
		"hosts", len(req.Targets),
		"mode", req.Mode.String(),
		"failed", countFailed(results),
	)

	d.broadcaster.Emit(events.Event{
		Kind:     events.KindComplete,
		TaskID:   req.TaskID,
		TaskName: req.TaskName,
		Results:  results,
		At:       time.Now(),
	})
	return results
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
