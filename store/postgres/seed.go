package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/warp/videostore/catalog"
	"github.com/warp/videostore/rental"
)

// =============================================================================
// REFERENCE DATA WRITES (seeding, demo scenarios)
// =============================================================================

func (s *Store) SavePlan(ctx context.Context, p rental.Plan) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO plans (id, name, max_rentals, price)
		VALUES ($1, $2, $3, $4::text::numeric)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			max_rentals = EXCLUDED.max_rentals,
			price = EXCLUDED.price
	`, p.ID, p.Name, p.MaxRentals, p.Price.String())
	if err != nil {
		return fmt.Errorf("failed to save plan %d: %w", p.ID, err)
	}
	return nil
}

func (s *Store) SaveCustomer(ctx context.Context, c rental.Customer, passwordHash []byte) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO customers (id, login, password_hash, first_name, last_name, plan_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			login = EXCLUDED.login,
			password_hash = EXCLUDED.password_hash,
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			plan_id = EXCLUDED.plan_id
	`, c.ID, c.Login, passwordHash, c.FirstName, c.LastName, c.PlanID)
	if err != nil {
		return fmt.Errorf("failed to save customer %d: %w", c.ID, err)
	}
	return nil
}

func (s *Store) SaveMovie(ctx context.Context, m rental.Movie) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO movies (id, name, year) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, year = EXCLUDED.year
	`, m.ID, m.Name, m.Year)
	if err != nil {
		return fmt.Errorf("failed to save movie %d: %w", m.ID, err)
	}
	return nil
}

func (s *Store) SaveDirector(ctx context.Context, id int64, p catalog.Person, movieIDs ...rental.MovieID) error {
	return s.savePerson(ctx, "directors", "movie_directors", "director_id", id, p, movieIDs)
}

func (s *Store) SaveActor(ctx context.Context, id int64, p catalog.Person, movieIDs ...rental.MovieID) error {
	return s.savePerson(ctx, "actors", "casts", "actor_id", id, p, movieIDs)
}

// savePerson is only called with the constant table names above.
func (s *Store) savePerson(ctx context.Context, table, link, column string, id int64, p catalog.Person, movieIDs []rental.MovieID) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			"INSERT INTO "+table+" (id, first_name, last_name) VALUES ($1, $2, $3) "+
				"ON CONFLICT (id) DO UPDATE SET first_name = EXCLUDED.first_name, last_name = EXCLUDED.last_name",
			id, p.FirstName, p.LastName,
		)
		if err != nil {
			return fmt.Errorf("failed to save %s %d: %w", table, id, err)
		}

		batch := &pgx.Batch{}
		for _, mid := range movieIDs {
			batch.Queue("INSERT INTO "+link+" (movie_id, "+column+") VALUES ($1, $2) ON CONFLICT DO NOTHING", mid, id)
		}
		if batch.Len() == 0 {
			return nil
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to link %s %d: %w", table, id, err)
		}
		return nil
	})
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	_, err := s.pool.Exec(ctx,
		"TRUNCATE rentals, casts, movie_directors, actors, directors, movies, customers, plans",
	)
	if err != nil {
		return fmt.Errorf("failed to reset: %w", err)
	}
	return nil
}
