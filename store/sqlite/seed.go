package sqlite

import (
	"context"
	"fmt"

	"github.com/warp/videostore/catalog"
	"github.com/warp/videostore/rental"
)

// =============================================================================
// REFERENCE DATA WRITES (seeding, demo scenarios)
// =============================================================================

// SavePlan inserts or replaces a plan.
func (s *Store) SavePlan(ctx context.Context, p rental.Plan) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO plans (id, name, max_rentals, price)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			max_rentals = excluded.max_rentals,
			price = excluded.price
	`, p.ID, p.Name, p.MaxRentals, p.Price.String())
	if err != nil {
		return fmt.Errorf("failed to save plan %d: %w", p.ID, err)
	}
	return nil
}

// SaveCustomer inserts or replaces a customer with a bcrypt password hash.
func (s *Store) SaveCustomer(ctx context.Context, c rental.Customer, passwordHash []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO customers (id, login, password_hash, first_name, last_name, plan_id)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			login = excluded.login,
			password_hash = excluded.password_hash,
			first_name = excluded.first_name,
			last_name = excluded.last_name,
			plan_id = excluded.plan_id
	`, c.ID, c.Login, passwordHash, c.FirstName, c.LastName, c.PlanID)
	if err != nil {
		return fmt.Errorf("failed to save customer %d: %w", c.ID, err)
	}
	return nil
}

func (s *Store) SaveMovie(ctx context.Context, m rental.Movie) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO movies (id, name, year) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, year = excluded.year
	`, m.ID, m.Name, m.Year)
	if err != nil {
		return fmt.Errorf("failed to save movie %d: %w", m.ID, err)
	}
	return nil
}

// SaveDirector stores a director and links them to the given movies.
func (s *Store) SaveDirector(ctx context.Context, id int64, p catalog.Person, movieIDs ...rental.MovieID) error {
	return s.savePerson(ctx, "directors", "movie_directors", "director_id", id, p, movieIDs)
}

// SaveActor stores an actor and casts them in the given movies.
func (s *Store) SaveActor(ctx context.Context, id int64, p catalog.Person, movieIDs ...rental.MovieID) error {
	return s.savePerson(ctx, "actors", "casts", "actor_id", id, p, movieIDs)
}

// savePerson is only called with the constant table names above.
func (s *Store) savePerson(ctx context.Context, table, link, column string, id int64, p catalog.Person, movieIDs []rental.MovieID) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		"INSERT INTO "+table+" (id, first_name, last_name) VALUES (?, ?, ?) "+
			"ON CONFLICT(id) DO UPDATE SET first_name = excluded.first_name, last_name = excluded.last_name",
		id, p.FirstName, p.LastName,
	)
	if err != nil {
		return fmt.Errorf("failed to save %s %d: %w", table, id, err)
	}
	for _, mid := range movieIDs {
		_, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO "+link+" (movie_id, "+column+") VALUES (?, ?)", mid, id,
		)
		if err != nil {
			return fmt.Errorf("failed to link %s %d to movie %d: %w", table, id, mid, err)
		}
	}
	return tx.Commit()
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	tables := []string{"rentals", "casts", "movie_directors", "actors", "directors", "movies", "customers", "plans"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	return nil
}
