package fleet

import "time"

// Task is a named shell command. The command string is opaque to the
// engine; it is handed to the remote shell verbatim (it may contain
// &&-joined sub-commands, pipes, and so on).
type Task struct {
	ID          string
	Name        string
	Description string
	Command     string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
