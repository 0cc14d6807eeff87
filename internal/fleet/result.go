package fleet

import "time"

// Status is the per-host outcome of one command invocation.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Result holds the outcome of running one command on one host. A fleet
// run always yields exactly one Result per requested host; a failure
// on one host never suppresses the Result of another.
type Result struct {
	HostID   string
	HostName string
	Status   Status
	// Output is accumulated stdout with escalation prompts and
	// secrets stripped.
	Output string
	// Stderr is captured standard error, populated on failure.
	Stderr string
	// ExitCode is the remote exit status, or -1 when the command
	// never ran (transport failure).
	ExitCode int
	// Error describes what went wrong when Status is StatusError. The
	// text distinguishes transport failures from non-zero exits.
	Error       string
	StartedAt   time.Time
	CompletedAt time.Time
	Duration    time.Duration
}
