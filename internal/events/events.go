// Package events carries execution progress from the engine to any
// observer. Emission is fire-and-forget: a broadcaster must never
// block or fail the execution that feeds it.
package events

import (
	"time"

	"fleetd/internal/fleet"
)

// Kind identifies the event type.
type Kind string

const (
	// KindStart is emitted once per fleet run, before any host is
	// contacted.
	KindStart Kind = "execution_start"
	// KindOutput carries a chunk of remote stdout from one host.
	KindOutput Kind = "output"
	// KindError carries a chunk of remote stderr, or an engine-level
	// error message.
	KindError Kind = "error"
	// KindComplete is emitted once per fleet run, after every host
	// has settled.
	KindComplete Kind = "execution_complete"
)

// Event is one progress notification. Fields are populated per Kind:
// start carries TaskName/HostCount/Scheduled, output and error carry
// HostName/Data, complete carries TaskID/TaskName/Results.
type Event struct {
	Kind      Kind
	TaskID    string
	TaskName  string
	HostName  string
	Data      string
	HostCount int
	Scheduled bool
	Results   []fleet.Result
	At        time.Time
}

// Broadcaster receives progress events. Implementations must be safe
// for concurrent Emit calls from multiple in-flight executions.
type Broadcaster interface {
	Emit(Event)
}

// Nop discards all events.
type Nop struct{}

func (Nop) Emit(Event) {}
