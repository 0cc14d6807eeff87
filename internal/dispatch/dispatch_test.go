package dispatch

import (
	"context"
	"sync"
	"testing"
	"time"

	"fleetd/internal/events"
	"fleetd/internal/fleet"
)

// scriptedRunner fails the hosts listed in fail and records the order
// hosts were contacted in.
type scriptedRunner struct {
	mu    sync.Mutex
	fail  map[string]bool
	order []string
	delay map[string]time.Duration
}

func (r *scriptedRunner) Run(ctx context.Context, target fleet.Resolved, command string) fleet.Result {
	r.mu.Lock()
	r.order = append(r.order, target.Name)
	delay := r.delay[target.Name]
	r.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	res := fleet.Result{
		HostID:   target.HostID,
		HostName: target.Name,
		Status:   fleet.StatusSuccess,
		Output:   command + "\n",
	}
	if r.fail[target.Name] {
		res.Status = fleet.StatusError
		res.Error = "connection failed: dial tcp: connection refused"
	}
	return res
}

func (r *scriptedRunner) contacted() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

func targets(names ...string) []fleet.Resolved {
	out := make([]fleet.Resolved, len(names))
	for i, name := range names {
		out[i] = fleet.Resolved{HostID: "id-" + name, Name: name, Address: name + ".example", Port: 22}
	}
	return out
}

func TestRun_OneResultPerHostInInputOrder(t *testing.T) {
	runner := &scriptedRunner{
		fail: map[string]bool{"web-2": true},
		// Stagger completion so input order and completion order differ.
		delay: map[string]time.Duration{"web-1": 30 * time.Millisecond},
	}
	d := New(runner, nil)

	results := d.Run(context.Background(), Request{
		TaskName: "uptime",
		Command:  "uptime",
		Targets:  targets("web-1", "web-2", "web-3"),
		Mode:     ModeParallel,
	})

	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for i, name := range []string{"web-1", "web-2", "web-3"} {
		if results[i].HostName != name {
			t.Errorf("results[%d] = %s, want %s", i, results[i].HostName, name)
		}
	}
	if results[0].Status != fleet.StatusSuccess || results[2].Status != fleet.StatusSuccess {
		t.Error("healthy hosts must succeed despite a failing sibling")
	}
	if results[1].Status != fleet.StatusError {
		t.Error("failing host must carry an error result")
	}
}

func TestRun_SequentialWalksInOrder(t *testing.T) {
	runner := &scriptedRunner{fail: map[string]bool{"b": true}}
	d := New(runner, nil)

	results := d.Run(context.Background(), Request{
		Command: "true",
		Targets: targets("a", "b", "c"),
		Mode:    ModeSequential,
	})

	want := []string{"a", "b", "c"}
	got := runner.contacted()
	if len(got) != len(want) {
		t.Fatalf("contacted %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("contacted %v, want %v", got, want)
		}
	}
	// A mid-sequence failure must not stop the walk.
	if results[2].Status != fleet.StatusSuccess {
		t.Error("host after a failure should still run")
	}
}

func TestRun_EventOrdering(t *testing.T) {
	recorder := &events.Recorder{}
	runner := &scriptedRunner{}
	d := New(runner, recorder)

	d.Run(context.Background(), Request{
		TaskID:    "t1",
		TaskName:  "deploy",
		Command:   "true",
		Targets:   targets("a", "b"),
		Mode:      ModeParallel,
		Scheduled: true,
	})

	evs := recorder.Events()
	if len(evs) != 2 {
		t.Fatalf("expected start and complete events, got %d", len(evs))
	}
	if evs[0].Kind != events.KindStart {
		t.Errorf("first event = %s, want %s", evs[0].Kind, events.KindStart)
	}
	if evs[0].HostCount != 2 || !evs[0].Scheduled {
		t.Errorf("start event fields wrong: %+v", evs[0])
	}
	last := evs[len(evs)-1]
	if last.Kind != events.KindComplete {
		t.Errorf("last event = %s, want %s", last.Kind, events.KindComplete)
	}
	if len(last.Results) != 2 {
		t.Errorf("complete event carries %d results, want 2", len(last.Results))
	}
}

func TestRun_ConcurrencyCap(t *testing.T) {
	var mu sync.Mutex
	active, peak := 0, 0

	runner := runnerFunc(func(ctx context.Context, target fleet.Resolved, command string) fleet.Result {
		mu.Lock()
		active++
		if active > peak {
			peak = active
		}
		mu.Unlock()

		time.Sleep(10 * time.Millisecond)

		mu.Lock()
		active--
		mu.Unlock()
		return fleet.Result{HostID: target.HostID, HostName: target.Name, Status: fleet.StatusSuccess}
	})

	d := New(runner, nil, WithConcurrency(2))
	d.Run(context.Background(), Request{
		Command: "true",
		Targets: targets("a", "b", "c", "d", "e"),
		Mode:    ModeParallel,
	})

	if peak > 2 {
		t.Errorf("observed %d concurrent sessions, cap is 2", peak)
	}
}

func TestRun_EmptyTargetSet(t *testing.T) {
	recorder := &events.Recorder{}
	d := New(&scriptedRunner{}, recorder)

	results := d.Run(context.Background(), Request{Command: "true"})
	if len(results) != 0 {
		t.Fatalf("expected no results, got %d", len(results))
	}
	kinds := recorder.Kinds()
	if len(kinds) != 2 || kinds[0] != events.KindStart || kinds[1] != events.KindComplete {
		t.Errorf("expected start and complete even for an empty fleet, got %v", kinds)
	}
}

type runnerFunc func(ctx context.Context, target fleet.Resolved, command string) fleet.Result

func (f runnerFunc) Run(ctx context.Context, target fleet.Resolved, command string) fleet.Result {
	return f(ctx, target, command)
}
