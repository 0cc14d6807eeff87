package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"fleetd/internal/fleet"
)

// HostStore persists registered hosts.
type HostStore struct {
	db *sql.DB
}

func NewHostStore(db *sql.DB) *HostStore {
	return &HostStore{db: db}
}

const hostColumns = `id, name, address, port, username, password, private_key, sudo_password, created_at, updated_at`

func (s *HostStore) Create(ctx context.Context, h *fleet.Host) error {
	if h.Name == "" || h.Address == "" {
		return fmt.Errorf("host name and address are required")
	}
	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	h.CreatedAt = now
	h.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO hosts (`+hostColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		h.ID, h.Name, h.Address, h.Port, h.Username, h.Password, h.PrivateKey, h.SudoPassword,
		now.Unix(), now.Unix(),
	)
	return err
}

func (s *HostStore) Get(ctx context.Context, id string) (*fleet.Host, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+hostColumns+` FROM hosts WHERE id = ?`, id)
	return scanHost(row)
}

func (s *HostStore) GetByName(ctx context.Context, name string) (*fleet.Host, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+hostColumns+` FROM hosts WHERE name = ?`, name)
	return scanHost(row)
}

// GetByIDs returns the hosts matching ids. Unknown ids are skipped, so
// the result may be shorter than the input.
func (s *HostStore) GetByIDs(ctx context.Context, ids []string) ([]fleet.Host, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+hostColumns+` FROM hosts WHERE id IN (`+placeholders+`) ORDER BY name`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hosts []fleet.Host
	for rows.Next() {
		h, err := scanHostRow(rows)
		if err != nil {
			return nil, err
		}
		hosts = append(hosts, h)
	}
	return hosts, rows.Err()
}

func (s *HostStore) List(ctx context.Context) ([]fleet.Host, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+hostColumns+` FROM hosts ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hosts []fleet.Host
	for rows.Next() {
		h, err := scanHostRow(rows)
		if err != nil {
			return nil, err
		}
		hosts = append(hosts, h)
	}
	return hosts, rows.Err()
}

func (s *HostStore) Update(ctx context.Context, h *fleet.Host) error {
	h.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE hosts SET name=?, address=?, port=?, username=?, password=?, private_key=?, sudo_password=?, updated_at=? WHERE id=?`,
		h.Name, h.Address, h.Port, h.Username, h.Password, h.PrivateKey, h.SudoPassword,
		h.UpdatedAt.Unix(), h.ID,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *HostStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM hosts WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanHost(row *sql.Row) (*fleet.Host, error) {
	h, err := scanHostRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &h, nil
}

func scanHostRow(sc scanner) (fleet.Host, error) {
	var h fleet.Host
	var created, updated int64
	err := sc.Scan(&h.ID, &h.Name, &h.Address, &h.Port, &h.Username, &h.Password,
		&h.PrivateKey, &h.SudoPassword, &created, &updated)
	if err != nil {
		return fleet.Host{}, err
	}
	h.CreatedAt = time.Unix(created, 0).UTC()
	h.UpdatedAt = time.Unix(updated, 0).UTC()
	return h, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
