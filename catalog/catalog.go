/*
Package catalog provides read-only movie search.

PURPOSE:
  Looks up movies by title and decorates each hit with its directors, its
  cast and whether the searching customer can rent it. Nothing here writes.

TWO STRATEGIES:
  Search:      one title query, then per-movie director/actor lookups
               (a dependent join, N+1 round trips).
  FastSearch:  three set queries (movies, movie x directors, movie x actors),
               each sorted by movie id, merged in one pass.

  Both return the same []Listing for the same data.

TITLE MATCHING:
  Case-insensitive substring. The pattern is always bound as a parameter;
  LIKE wildcards typed by the user are escaped with Pattern.

SEE ALSO:
  - store/sqlite/catalog.go, store/postgres/catalog.go: Store implementations
*/
package catalog

import (
	"context"
	"strings"

	"github.com/warp/videostore/rental"
)

// =============================================================================
// TYPES
// =============================================================================

// Person is a director or an actor.
type Person struct {
	FirstName string
	LastName  string
}

func (p Person) String() string { return p.LastName + ", " + p.FirstName }

// Credit ties a person to a movie in set queries.
type Credit struct {
	MovieID rental.MovieID
	Person  Person
}

type Status string

const (
	StatusAvailable   Status = "AVAILABLE"
	StatusYouHaveIt   Status = "YOU HAVE IT"
	StatusUnavailable Status = "UNAVAILABLE"
)

// Listing is one search hit.
type Listing struct {
	Movie     rental.Movie
	Directors []Person
	Actors    []Person
	Status    Status
}

// =============================================================================
// STORE INTERFACES
// =============================================================================

// Store is the read-only catalog.
// Title arguments are LIKE patterns built with Pattern.
type Store interface {
	SearchMovies(ctx context.Context, pattern string) ([]rental.Movie, error)
	MovieDirectors(ctx context.Context, movieID rental.MovieID) ([]Person, error)
	MovieActors(ctx context.Context, movieID rental.MovieID) ([]Person, error)

	// DirectorsByTitle and ActorsByTitle are ordered by movie id.
	DirectorsByTitle(ctx context.Context, pattern string) ([]Credit, error)
	ActorsByTitle(ctx context.Context, pattern string) ([]Credit, error)
}

// Availability reports current renters. Movies not in the map are free.
type Availability interface {
	Renters(ctx context.Context, movieIDs []rental.MovieID) (map[rental.MovieID]rental.CustomerID, error)
}

// LikeEscape is the escape character used by Pattern.
const LikeEscape = `\`

// Pattern turns a user title into a case-insensitive substring LIKE pattern.
// Stores must use it with ESCAPE '\'.
func Pattern(title string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + strings.ToLower(r.Replace(title)) + "%"
}
