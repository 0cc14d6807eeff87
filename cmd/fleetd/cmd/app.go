package cmd

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"fleetd/internal/config"
	"fleetd/internal/dispatch"
	"fleetd/internal/events"
	"fleetd/internal/fleet"
	"fleetd/internal/schedule"
	"fleetd/internal/sshexec"
	"fleetd/internal/store"
)

// app bundles the wired components every subcommand needs: config,
// the open database handle, and the stores built on it.
type app struct {
	cfg        *config.Config
	db         *sql.DB
	hosts      *store.HostStore
	tasks      *store.TaskStore
	executions *store.ExecutionStore
	schedules  *store.ScheduleStore
	log        *slog.Logger
}

// openApp loads configuration and opens the database. The caller must
// Close.
func openApp() (*app, error) {
	path := cfgFile
	if path == "" {
		path = config.DefaultConfigPath()
	}
	cfg, err := config.LoadOrDefault(path)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	db, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", cfg.DBPath, err)
	}

	return &app{
		cfg:        cfg,
		db:         db,
		hosts:      store.NewHostStore(db),
		tasks:      store.NewTaskStore(db),
		executions: store.NewExecutionStore(db),
		schedules:  store.NewScheduleStore(db),
		log:        newLogger(),
	}, nil
}

func (a *app) Close() {
	a.db.Close()
}

// dispatcher builds the execution stack (session executor + fleet
// dispatcher) emitting to the given broadcaster.
func (a *app) dispatcher(b events.Broadcaster) *dispatch.Dispatcher {
	return dispatch.New(a.executor(b), b,
		dispatch.WithConcurrency(a.cfg.Concurrency),
		dispatch.WithLogger(a.log),
	)
}

// engine builds a schedule engine on top of the stores and the
// execution stack.
func (a *app) engine(b events.Broadcaster) *schedule.Engine {
	if b == nil {
		b = events.Nop{}
	}
	return schedule.NewEngine(schedule.Config{
		Schedules:   a.schedules,
		Tasks:       a.tasks,
		Hosts:       a.hosts,
		Credentials: fleet.StaticProvider{},
		Dispatcher:  a.dispatcher(b),
		Ledger:      a.executions,
		Broadcaster: b,
		Logger:      a.log,
		Tick:        a.cfg.TickInterval.Duration,
	})
}

func (a *app) executor(b events.Broadcaster) *sshexec.Executor {
	return sshexec.New(b,
		sshexec.WithConnectTimeout(a.cfg.ConnectTimeout.Duration),
		sshexec.WithKeepaliveInterval(a.cfg.KeepaliveInterval.Duration),
		sshexec.WithLogger(a.log),
	)
}
