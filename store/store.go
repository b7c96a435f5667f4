// Package store selects and opens the configured storage backend.
package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/warp/videostore/catalog"
	"github.com/warp/videostore/config"
	"github.com/warp/videostore/rental"
	"github.com/warp/videostore/store/postgres"
	"github.com/warp/videostore/store/sqlite"
)

// Seeder writes reference data. Used by demo scenarios and the seed command.
type Seeder interface {
	Reset(ctx context.Context) error
	SavePlan(ctx context.Context, p rental.Plan) error
	SaveCustomer(ctx context.Context, c rental.Customer, passwordHash []byte) error
	SaveMovie(ctx context.Context, m rental.Movie) error
	SaveDirector(ctx context.Context, id int64, p catalog.Person, movieIDs ...rental.MovieID) error
	SaveActor(ctx context.Context, id int64, p catalog.Person, movieIDs ...rental.MovieID) error
}

// Backend is everything the service needs from one database.
type Backend interface {
	rental.LedgerStore
	rental.Auditable
	catalog.Store
	catalog.Availability
	Seeder

	Ping(ctx context.Context) error
	Close() error
}

var (
	_ Backend = (*sqlite.Store)(nil)
	_ Backend = (*postgres.Store)(nil)
)

// Open connects to the backend named by cfg.Driver. Postgres schemas are
// migrated on open; SQLite migrates itself.
func Open(ctx context.Context, cfg config.Config, log *slog.Logger) (Backend, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		s, err := sqlite.New(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite %s: %w", cfg.SQLitePath, err)
		}
		return s, nil

	case config.DriverPostgres:
		pool, err := postgres.Connect(ctx, cfg.Postgres)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := postgres.Migrate(ctx, pool, cfg.Postgres, log); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
		return postgres.New(pool), nil

	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownDriver, cfg.Driver)
	}
}
