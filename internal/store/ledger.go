package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Execution is one ledger row: the outcome of one (task, host) pair in
// one fleet run.
type Execution struct {
	ID          string
	TaskID      string
	HostID      string
	Status      string
	Output      string
	Error       string
	StartedAt   time.Time
	CompletedAt time.Time
}

// ExecutionStore is the append-only execution ledger. Appends from
// concurrent firings are independent rows; database/sql serializes the
// writes, so no cross-row coordination is needed.
type ExecutionStore struct {
	db *sql.DB
}

func NewExecutionStore(db *sql.DB) *ExecutionStore {
	return &ExecutionStore{db: db}
}

func (s *ExecutionStore) Append(ctx context.Context, e Execution) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO executions (id, task_id, host_id, status, output, error, started_at, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.TaskID, e.HostID, e.Status, e.Output, e.Error,
		e.StartedAt.Unix(), e.CompletedAt.Unix(),
	)
	return err
}

// List returns the most recent executions, newest first.
func (s *ExecutionStore) List(ctx context.Context, limit int) ([]Execution, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, task_id, host_id, status, output, error, started_at, completed_at
		 FROM executions ORDER BY started_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanExecutions(rows)
}

// ListByTask returns the most recent executions of one task, newest
// first.
func (s *ExecutionStore) ListByTask(ctx context.Context, taskID string, limit int) ([]Execution, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, task_id, host_id, status, output, error, started_at, completed_at
		 FROM executions WHERE task_id = ? ORDER BY started_at DESC, id LIMIT ?`, taskID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanExecutions(rows)
}

func scanExecutions(rows *sql.Rows) ([]Execution, error) {
	var out []Execution
	for rows.Next() {
		var e Execution
		var started, completed int64
		if err := rows.Scan(&e.ID, &e.TaskID, &e.HostID, &e.Status, &e.Output, &e.Error, &started, &completed); err != nil {
			return nil, err
		}
		e.StartedAt = time.Unix(started, 0).UTC()
		e.CompletedAt = time.Unix(completed, 0).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}
