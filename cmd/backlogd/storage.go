package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Summon528/Flexget/backlog"
	"github.com/Summon528/Flexget/config"
	"github.com/Summon528/Flexget/db/sql/postgres"
	"github.com/Summon528/Flexget/db/sql/sqlite"
	"github.com/bool64/ctxd"
	"github.com/bool64/stats"
)

type storage struct {
	db    *sql.DB
	store backlog.Store
	tx    backlog.Transactor
}

// openStorage connects to the configured database and brings its schema up
// to date.
func openStorage(ctx context.Context, db config.Database) (*storage, error) {
	switch db.Driver {
	case config.DriverPostgres:
		conn, err := postgres.OpenContext(ctx,
			postgres.WithDSN(db.DSN),
			postgres.WithMaxOpenConns(db.MaxOpenConns),
		)
		if err != nil {
			return nil, err
		}
		if err := postgres.Migrate(ctx, conn); err != nil {
			conn.Close()
			return nil, err
		}
		return &storage{db: conn, store: postgres.NewBacklogStore(), tx: postgres.NewTransactor(conn)}, nil

	case config.DriverSQLite:
		conn, err := sqlite.Open(ctx, db.DSN)
		if err != nil {
			return nil, err
		}
		return &storage{db: conn, store: sqlite.NewBacklogStore(), tx: sqlite.NewTransactor(conn)}, nil
	}

	return nil, fmt.Errorf("unsupported database driver %q", db.Driver)
}

func (s *storage) manager(logger ctxd.Logger, st stats.Tracker) (*backlog.Manager, error) {
	return backlog.NewManager(backlog.ManagerConfig{
		Store:      s.store,
		Transactor: s.tx,
		Logger:     logger,
		Stats:      st,
	})
}

func (s *storage) Close() error {
	return s.db.Close()
}
