package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/warp/videostore/catalog"
	"github.com/warp/videostore/rental"
)

// =============================================================================
// CATALOG STORE (catalog.Store interface)
// =============================================================================

// SearchMovies returns movies whose lowercased name matches pattern, by id.
func (s *Store) SearchMovies(ctx context.Context, pattern string) ([]rental.Movie, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, year FROM movies
		WHERE lower(name) LIKE ? ESCAPE '\'
		ORDER BY id
	`, pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to search movies: %w", err)
	}
	defer rows.Close()

	var movies []rental.Movie
	for rows.Next() {
		var (
			m    rental.Movie
			year sql.NullInt64
		)
		if err := rows.Scan(&m.ID, &m.Name, &year); err != nil {
			return nil, fmt.Errorf("failed to scan movie: %w", err)
		}
		m.Year = int(year.Int64)
		movies = append(movies, m)
	}
	return movies, rows.Err()
}

func (s *Store) MovieDirectors(ctx context.Context, movieID rental.MovieID) ([]catalog.Person, error) {
	return s.queryPeople(ctx, `
		SELECT d.first_name, d.last_name
		FROM movie_directors md JOIN directors d ON d.id = md.director_id
		WHERE md.movie_id = ?
		ORDER BY d.last_name, d.first_name
	`, movieID)
}

func (s *Store) MovieActors(ctx context.Context, movieID rental.MovieID) ([]catalog.Person, error) {
	return s.queryPeople(ctx, `
		SELECT a.first_name, a.last_name
		FROM casts c JOIN actors a ON a.id = c.actor_id
		WHERE c.movie_id = ?
		ORDER BY a.last_name, a.first_name
	`, movieID)
}

func (s *Store) DirectorsByTitle(ctx context.Context, pattern string) ([]catalog.Credit, error) {
	return s.queryCredits(ctx, `
		SELECT m.id, d.first_name, d.last_name
		FROM movies m
		JOIN movie_directors md ON md.movie_id = m.id
		JOIN directors d ON d.id = md.director_id
		WHERE lower(m.name) LIKE ? ESCAPE '\'
		ORDER BY m.id, d.last_name, d.first_name
	`, pattern)
}

func (s *Store) ActorsByTitle(ctx context.Context, pattern string) ([]catalog.Credit, error) {
	return s.queryCredits(ctx, `
		SELECT m.id, a.first_name, a.last_name
		FROM movies m
		JOIN casts c ON c.movie_id = m.id
		JOIN actors a ON a.id = c.actor_id
		WHERE lower(m.name) LIKE ? ESCAPE '\'
		ORDER BY m.id, a.last_name, a.first_name
	`, pattern)
}

func (s *Store) queryPeople(ctx context.Context, query string, args ...any) ([]catalog.Person, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query people: %w", err)
	}
	defer rows.Close()

	var people []catalog.Person
	for rows.Next() {
		var p catalog.Person
		if err := rows.Scan(&p.FirstName, &p.LastName); err != nil {
			return nil, fmt.Errorf("failed to scan person: %w", err)
		}
		people = append(people, p)
	}
	return people, rows.Err()
}

func (s *Store) queryCredits(ctx context.Context, query string, args ...any) ([]catalog.Credit, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query credits: %w", err)
	}
	defer rows.Close()

	var credits []catalog.Credit
	for rows.Next() {
		var c catalog.Credit
		if err := rows.Scan(&c.MovieID, &c.Person.FirstName, &c.Person.LastName); err != nil {
			return nil, fmt.Errorf("failed to scan credit: %w", err)
		}
		credits = append(credits, c)
	}
	return credits, rows.Err()
}

// =============================================================================
// AVAILABILITY (catalog.Availability interface)
// =============================================================================

// Renters returns the current renter of each rented movie in movieIDs.
func (s *Store) Renters(ctx context.Context, movieIDs []rental.MovieID) (map[rental.MovieID]rental.CustomerID, error) {
	renters := make(map[rental.MovieID]rental.CustomerID)
	if len(movieIDs) == 0 {
		return renters, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(movieIDs)), ",")
	args := make([]any, len(movieIDs))
	for i, id := range movieIDs {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT movie_id, customer_id FROM rentals WHERE status = 'open' AND movie_id IN ("+placeholders+")",
		args...,
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
