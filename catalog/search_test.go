package catalog

import (
	"context"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/videostore/rental"
)

// =============================================================================
// TEST SETUP
// =============================================================================

// fakeCatalog matches titles with strings.Contains on the unescaped pattern.
type fakeCatalog struct {
	movies    []rental.Movie
	directors []Credit
	actors    []Credit
	calls     int
}

func unpattern(p string) string {
	p = strings.TrimSuffix(strings.TrimPrefix(p, "%"), "%")
	return strings.NewReplacer(`\%`, `%`, `\_`, `_`, `\\`, `\`).Replace(p)
}

func (f *fakeCatalog) match(pattern string) map[rental.MovieID]rental.Movie {
	needle := unpattern(pattern)
	out := make(map[rental.MovieID]rental.Movie)
	for _, m := range f.movies {
		if strings.Contains(strings.ToLower(m.Name), needle) {
			out[m.ID] = m
		}
	}
	return out
}

func (f *fakeCatalog) SearchMovies(_ context.Context, pattern string) ([]rental.Movie, error) {
	f.calls++
	var out []rental.Movie
	for _, m := range f.match(pattern) {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeCatalog) people(credits []Credit, id rental.MovieID) []Person {
	var out []Person
	for _, c := range credits {
		if c.MovieID == id {
			out = append(out, c.Person)
		}
	}
	return out
}

func (f *fakeCatalog) MovieDirectors(_ context.Context, id rental.MovieID) ([]Person, error) {
	f.calls++
	return f.people(f.directors, id), nil
}

func (f *fakeCatalog) MovieActors(_ context.Context, id rental.MovieID) ([]Person, error) {
	f.calls++
	return f.people(f.actors, id), nil
}

func (f *fakeCatalog) byTitle(credits []Credit, pattern string) []Credit {
	hits := f.match(pattern)
	var out []Credit
	for _, c := range credits {
		if _, ok := hits[c.MovieID]; ok {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].MovieID < out[j].MovieID })
	return out
}

func (f *fakeCatalog) DirectorsByTitle(_ context.Context, pattern string) ([]Credit, error) {
	f.calls++
	return f.byTitle(f.directors, pattern), nil
}

func (f *fakeCatalog) ActorsByTitle(_ context.Context, pattern string) ([]Credit, error) {
	f.calls++
	return f.byTitle(f.actors, pattern), nil
}

type fakeRenters map[rental.MovieID]rental.CustomerID

func (f fakeRenters) Renters(_ context.Context, ids []rental.MovieID) (map[rental.MovieID]rental.CustomerID, error) {
	out := make(map[rental.MovieID]rental.CustomerID)
	for _, id := range ids {
		if c, ok := f[id]; ok {
			out[id] = c
		}
	}
	return out, nil
}

func newFixture() (*fakeCatalog, fakeRenters) {
	cat := &fakeCatalog{
		movies: []rental.Movie{
			{ID: 3, Name: "Star Wars", Year: 1977},
			{ID: 1, Name: "The Empire Strikes Back", Year: 1980},
			{ID: 7, Name: "Stardust", Year: 2007},
			{ID: 9, Name: "100% Wolf", Year: 2020},
		},
		directors: []Credit{
			{MovieID: 3, Person: Person{FirstName: "George", LastName: "Lucas"}},
			{MovieID: 7, Person: Person{FirstName: "Matthew", LastName: "Vaughn"}},
		},
		actors: []Credit{
			{MovieID: 3, Person: Person{FirstName: "Mark", LastName: "Hamill"}},
			{MovieID: 3, Person: Person{FirstName: "Carrie", LastName: "Fisher"}},
			{MovieID: 7, Person: Person{FirstName: "Claire", LastName: "Danes"}},
		},
	}
	return cat, fakeRenters{3: 1, 7: 2}
}

// =============================================================================
// TESTS
// =============================================================================

func TestSearch_DependentJoin(t *testing.T) {
	cat, renters := newFixture()
	s := NewSearcher(cat, renters)

	listings, err := s.Search(context.Background(), 1, "STAR")
	require.NoError(t, err)
	require.Len(t, listings, 2)

	assert.Equal(t, rental.MovieID(3), listings[0].Movie.ID)
	assert.Equal(t, []Person{{FirstName: "George", LastName: "Lucas"}}, listings[0].Directors)
	assert.Len(t, listings[0].Actors, 2)
	assert.Equal(t, StatusYouHaveIt, listings[0].Status)

	assert.Equal(t, rental.MovieID(7), listings[1].Movie.ID)
	assert.Equal(t, StatusUnavailable, listings[1].Status)

	// 1 title query + 2 lookups per movie
	assert.Equal(t, 5, cat.calls)
}

func TestFastSearch_MatchesSearch(t *testing.T) {
	cat, renters := newFixture()
	s := NewSearcher(cat, renters)
	ctx := context.Background()

	for _, title := range []string{"star", "empire", "", "nothing"} {
		slow, err := s.Search(ctx, 2, title)
		require.NoError(t, err)
		fast, err := s.FastSearch(ctx, 2, title)
		require.NoError(t, err)
		assert.Equal(t, slow, fast, "title %q", title)
	}
}

func TestFastSearch_ThreeQueries(t *testing.T) {
	cat, renters := newFixture()
	s := NewSearcher(cat, renters)

	_, err := s.FastSearch(context.Background(), 1, "s")
	require.NoError(t, err)
	assert.Equal(t, 3, cat.calls)
}

func TestSearch_AvailableWhenNotRented(t *testing.T) {
	cat, _ := newFixture()
	s := NewSearcher(cat, fakeRenters{})

	listings, err := s.Search(context.Background(), 1, "empire")
	require.NoError(t, err)
	require.Len(t, listings, 1)
	assert.Equal(t, StatusAvailable, listings[0].Status)
	assert.Empty(t, listings[0].Directors)
}

func TestPattern_EscapesWildcards(t *testing.T) {
	assert.Equal(t, `%star%`, Pattern("Star"))
	assert.Equal(t, `%100\% wolf%`, Pattern("100% Wolf"))
	assert.Equal(t, `%a\_b%`, Pattern("a_b"))
	assert.Equal(t, `%'; drop table movie; --%`, Pattern("'; DROP TABLE movie; --"))
}

func TestMergeJoin_SkipsOrphanCredits(t *testing.T) {
	movies := []rental.Movie{{ID: 2}, {ID: 5}}
	directors := []Credit{{MovieID: 1}, {MovieID: 2, Person: Person{LastName: "A"}}, {MovieID: 4}, {MovieID: 5, Person: Person{LastName: "B"}}}

	listings := mergeJoin(movies, directors, nil)
	require.Len(t, listings, 2)
	assert.Equal(t, []Person{{LastName: "A"}}, listings[0].Directors)
	assert.Equal(t, []Person{{LastName: "B"}}, listings[1].Directors)
	assert.Nil(t, listings[0].Actors)
}
