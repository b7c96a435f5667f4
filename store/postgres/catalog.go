package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/warp/videostore/catalog"
	"github.com/warp/videostore/rental"
)

// =============================================================================
// CATALOG STORE (catalog.Store interface)
// =============================================================================

func (s *Store) SearchMovies(ctx context.Context, pattern string) ([]rental.Movie, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, COALESCE(year, 0) FROM movies
		WHERE lower(name) LIKE $1 ESCAPE '\'
		ORDER BY id
	`, pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to search movies: %w", err)
	}
	movies, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (rental.Movie, error) {
		var m rental.Movie
		err := row.Scan(&m.ID, &m.Name, &m.Year)
		return m, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan movies: %w", err)
	}
	return movies, nil
}

func (s *Store) MovieDirectors(ctx context.Context, movieID rental.MovieID) ([]catalog.Person, error) {
	return s.queryPeople(ctx, `
		SELECT d.first_name, d.last_name
		FROM movie_directors md JOIN directors d ON d.id = md.director_id
		WHERE md.movie_id = $1
		ORDER BY d.last_name, d.first_name
	`, movieID)
}

func (s *Store) MovieActors(ctx context.Context, movieID rental.MovieID) ([]catalog.Person, error) {
	return s.queryPeople(ctx, `
		SELECT a.first_name, a.last_name
		FROM casts c JOIN actors a ON a.id = c.actor_id
		WHERE c.movie_id = $1
		ORDER BY a.last_name, a.first_name
	`, movieID)
}

func (s *Store) DirectorsByTitle(ctx context.Context, pattern string) ([]catalog.Credit, error) {
	return s.queryCredits(ctx, `
		SELECT m.id, d.first_name, d.last_name
		FROM movies m
		JOIN movie_directors md ON md.movie_id = m.id
		JOIN directors d ON d.id = md.director_id
		WHERE lower(m.name) LIKE $1 ESCAPE '\'
		ORDER BY m.id, d.last_name, d.first_name
	`, pattern)
}

func (s *Store) ActorsByTitle(ctx context.Context, pattern string) ([]catalog.Credit, error) {
	return s.queryCredits(ctx, `
		SELECT m.id, a.first_name, a.last_name
		FROM movies m
		JOIN casts c ON c.movie_id = m.id
		JOIN actors a ON a.id = c.actor_id
		WHERE lower(m.name) LIKE $1 ESCAPE '\'
		ORDER BY m.id, a.last_name, a.first_name
	`, pattern)
}

func (s *Store) queryPeople(ctx context.Context, query string, args ...any) ([]catalog.Person, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query people: %w", err)
	}
	people, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (catalog.Person, error) {
		var p catalog.Person
		err := row.Scan(&p.FirstName, &p.LastName)
		return p, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan people: %w", err)
	}
	return people, nil
}

func (s *Store) queryCredits(ctx context.Context, query string, args ...any) ([]catalog.Credit, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query credits: %w", err)
	}
	credits, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (catalog.Credit, error) {
		var c catalog.Credit
		err := row.Scan(&c.MovieID, &c.Person.FirstName, &c.Person.LastName)
		return c, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan credits: %w", err)
	}
	return credits, nil
}

// =============================================================================
// AVAILABILITY (catalog.Availability interface)
// =============================================================================

func (s *Store) Renters(ctx context.Context, movieIDs []rental.MovieID) (map[rental.MovieID]rental.CustomerID, error) {
	renters := make(map[rental.MovieID]rental.CustomerID)
	if len(movieIDs) == 0 {
		return renters, nil
	}

	ids := make([]int64, len(movieIDs))
	for i, id := range movieIDs {
		ids[i] = int64(id)
	}

	rows, err := s.pool.Query(ctx,
		"SELECT movie_id, customer_id FROM rentals WHERE status = 'open' AND movie_id = ANY($1)", ids,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query renters: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			mid rental.MovieID
			cid rental.CustomerID
		)
		if err := rows.Scan(&mid, &cid); err != nil {
			return nil, fmt.Errorf("failed to scan renter: %w", err)
		}
		renters[mid] = cid
	}
	return renters, rows.Err()
}
