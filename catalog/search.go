package catalog

import (
	"context"
	"fmt"

	"github.com/warp/videostore/rental"
)

// Searcher runs title searches for a customer.
type Searcher struct {
	catalog Store
	renters Availability
}

func NewSearcher(catalog Store, renters Availability) *Searcher {
	return &Searcher{catalog: catalog, renters: renters}
}

// Search looks up directors and actors movie by movie.
func (s *Searcher) Search(ctx context.Context, customerID rental.CustomerID, title string) ([]Listing, error) {
	movies, err := s.catalog.SearchMovies(ctx, Pattern(title))
	if err != nil {
		return nil, fmt.Errorf("search movies: %w", err)
	}

	listings := make([]Listing, 0, len(movies))
	for _, m := range movies {
		directors, err := s.catalog.MovieDirectors(ctx, m.ID)
		if err != nil {
			return nil, fmt.Errorf("directors of movie %d: %w", m.ID, err)
		}
		actors, err := s.catalog.MovieActors(ctx, m.ID)
		if err != nil {
			return nil, fmt.Errorf("actors of movie %d: %w", m.ID, err)
		}
		listings = append(listings, Listing{Movie: m, Directors: directors, Actors: actors})
	}

	return s.withStatus(ctx, customerID, listings)
}

// FastSearch issues three set queries and merge-joins them on movie id.
func (s *Searcher) FastSearch(ctx context.Context, customerID rental.CustomerID, title string) ([]Listing, error) {
	pattern := Pattern(title)

	movies, err := s.catalog.SearchMovies(ctx, pattern)
	if err != nil {
		return nil, fmt.Errorf("search movies: %w", err)
	}
	directors, err := s.catalog.DirectorsByTitle(ctx, pattern)
	if err != nil {
		return nil, fmt.Errorf("directors by title: %w", err)
	}
	actors, err := s.catalog.ActorsByTitle(ctx, pattern)
	if err != nil {
		return nil, fmt.Errorf("actors by title: %w", err)
	}

	return s.withStatus(ctx, customerID, mergeJoin(movies, directors, actors))
}

// mergeJoin walks three id-sorted inputs once. Credits whose movie is not
// in movies are skipped.
func mergeJoin(movies []rental.Movie, directors, actors []Credit) []Listing {
	listings := make([]Listing, len(movies))
	d, a := 0, 0
	for i, m := range movies {
		listings[i].Movie = m
		for d < len(directors) && directors[d].MovieID < m.ID {
			d++
		}
		for ; d < len(directors) && directors[d].MovieID == m.ID; d++ {
			listings[i].Directors = append(listings[i].Directors, directors[d].Person)
		}
		for a < len(actors) && actors[a].MovieID < m.ID {
			a++
		}
		for ; a < len(actors) && actors[a].MovieID == m.ID; a++ {
			listings[i].Actors = append(listings[i].Actors, actors[a].Person)
		}
	}
	return listings
}

func (s *Searcher) withStatus(ctx context.Context, customerID rental.CustomerID, listings []Listing) ([]Listing, error) {
	if len(listings) == 0 {
		return listings, nil
	}

	ids := make([]rental.MovieID, len(listings))
	for i, l := range listings {
		ids[i] = l.Movie.ID
	}
	renters, err := s.renters.Renters(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("renters: %w", err)
	}

	for i := range listings {
		renter, rented := renters[listings[i].Movie.ID]
		switch {
		case !rented:
			listings[i].Status = StatusAvailable
		case renter == customerID:
			listings[i].Status = StatusYouHaveIt
		default:
			listings[i].Status = StatusUnavailable
		}
	}
	return listings, nil
}
