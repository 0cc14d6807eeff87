package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Schedule is a persisted recurrence: run one task against a host set
// whenever the rule says it is due. Recurrence semantics live in the
// schedule package; this type only carries state.
type Schedule struct {
	ID        string
	Name      string
	TaskID    string
	HostIDs   []string
	RuleKind  string // "interval" or "cron"
	RuleValue string // minutes for interval, 5-field expression for cron
	Enabled   bool
	LastRun   *time.Time
	NextRun   *time.Time
	RunCount  int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ScheduleStore persists schedules.
type ScheduleStore struct {
	db *sql.DB
}

func NewScheduleStore(db *sql.DB) *ScheduleStore {
	return &ScheduleStore{db: db}
}

const scheduleColumns = `id, name, task_id, host_ids, rule_kind, rule_value, enabled, last_run, next_run, run_count, created_at, updated_at`

func (s *ScheduleStore) Create(ctx context.Context, sc *Schedule) error {
	if sc.ID == "" {
		sc.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	sc.CreatedAt = now
	sc.UpdatedAt = now

	hostIDs, err := json.Marshal(sc.HostIDs)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO schedules (`+scheduleColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sc.ID, sc.Name, sc.TaskID, string(hostIDs), sc.RuleKind, sc.RuleValue,
		boolToInt(sc.Enabled), nullTime(sc.LastRun), nullTime(sc.NextRun), sc.RunCount,
		now.Unix(), now.Unix(),
	)
	return err
}

func (s *ScheduleStore) Get(ctx context.Context, id string) (*Schedule, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+scheduleColumns+` FROM schedules WHERE id = ?`, id)
	sc, err := scanSchedule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sc, nil
}

func (s *ScheduleStore) List(ctx context.Context) ([]Schedule, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+scheduleColumns+` FROM schedules ORDER BY next_run`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Schedule
	for rows.Next() {
		sc, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

// ListDue returns enabled schedules whose next_run has passed, ordered
// by next_run ascending.
func (s *ScheduleStore) ListDue(ctx context.Context, now time.Time) ([]Schedule, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+scheduleColumns+` FROM schedules
		 WHERE enabled = 1 AND next_run IS NOT NULL AND next_run <= ?
		 ORDER BY next_run`, now.Unix())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Schedule
	for rows.Next() {
		sc, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

func (s *ScheduleStore) Update(ctx context.Context, sc *Schedule) error {
	sc.UpdatedAt = time.Now().UTC()
	hostIDs, err := json.Marshal(sc.HostIDs)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE schedules SET name=?, task_id=?, host_ids=?, rule_kind=?, rule_value=?, enabled=?, last_run=?, next_run=?, run_count=?, updated_at=? WHERE id=?`,
		sc.Name, sc.TaskID, string(hostIDs), sc.RuleKind, sc.RuleValue,
		boolToInt(sc.Enabled), nullTime(sc.LastRun), nullTime(sc.NextRun), sc.RunCount,
		sc.UpdatedAt.Unix(), sc.ID,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// MarkFired records one completed firing: last_run set, next_run
// recomputed by the caller, run_count incremented.
func (s *ScheduleStore) MarkFired(ctx context.Context, id string, lastRun, nextRun time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE schedules SET last_run=?, next_run=?, run_count=run_count+1, updated_at=? WHERE id=?`,
		lastRun.Unix(), nextRun.Unix(), time.Now().UTC().Unix(), id,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// SetEnabled flips the enabled flag. next_run is left untouched: a
// re-enabled schedule resumes from its stored next_run and fires on
// the next tick if that moment has already passed.
func (s *ScheduleStore) SetEnabled(ctx context.Context, id string, enabled bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE schedules SET enabled=?, updated_at=? WHERE id=?`,
		boolToInt(enabled), time.Now().UTC().Unix(), id,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *ScheduleStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM schedules WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func scanSchedule(sc scanner) (Schedule, error) {
	var out Schedule
	var hostIDs string
	var enabled int
	var lastRun, nextRun sql.NullInt64
	var created, updated int64

	err := sc.Scan(&out.ID, &out.Name, &out.TaskID, &hostIDs, &out.RuleKind, &out.RuleValue,
		&enabled, &lastRun, &nextRun, &out.RunCount, &created, &updated)
	if err != nil {
		return Schedule{}, err
	}

	if err := json.Unmarshal([]byte(hostIDs), &out.HostIDs); err != nil {
		return Schedule{}, err
	}
	out.Enabled = enabled != 0
	if lastRun.Valid {
		t := time.Unix(lastRun.Int64, 0).UTC()
		out.LastRun = &t
	}
	if nextRun.Valid {
		t := time.Unix(nextRun.Int64, 0).UTC()
		out.NextRun = &t
	}
	out.CreatedAt = time.Unix(created, 0).UTC()
	out.UpdatedAt = time.Unix(updated, 0).UTC()
	return out, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Unix()
}
