package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"fleetd/internal/fleet"
)

// TaskStore persists task definitions.
type TaskStore struct {
	db *sql.DB
}

func NewTaskStore(db *sql.DB) *TaskStore {
	return &TaskStore{db: db}
}

func (s *TaskStore) Create(ctx context.Context, t *fleet.Task) error {
	if t.Name == "" || t.Command == "" {
		return fmt.Errorf("task name and command are required")
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tasks (id, name, description, command, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		t.ID, t.Name, t.Description, t.Command, now.Unix(), now.Unix(),
	)
	return err
}

func (s *TaskStore) Get(ctx context.Context, id string) (*fleet.Task, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, description, command, created_at, updated_at FROM tasks WHERE id = ?`, id)

	var t fleet.Task
	var created, updated int64
	if err := row.Scan(&t.ID, &t.Name, &t.Description, &t.Command, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	t.CreatedAt = time.Unix(created, 0).UTC()
	t.UpdatedAt = time.Unix(updated, 0).UTC()
	return &t, nil
}

func (s *TaskStore) List(ctx context.Context) ([]fleet.Task, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, description, command, created_at, updated_at FROM tasks ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []fleet.Task
	for rows.Next() {
		var t fleet.Task
		var created, updated int64
		if err := rows.Scan(&t.ID, &t.Name, &t.Description, &t.Command, &created, &updated); err != nil {
			return nil, err
		}
		t.CreatedAt = time.Unix(created, 0).UTC()
		t.UpdatedAt = time.Unix(updated, 0).UTC()
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (s *TaskStore) Update(ctx context.Context, t *fleet.Task) error {
	t.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET name=?, description=?, command=?, updated_at=? WHERE id=?`,
		t.Name, t.Description, t.Command, t.UpdatedAt.Unix(), t.ID,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *TaskStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}
