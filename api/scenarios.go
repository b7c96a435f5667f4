/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:
	Populates the database with plans, customers, a small catalog and some
	open rentals, so each consistency rule can be tried by hand.

AVAILABLE SCENARIOS:

	classic:     Three plans, four customers, a Star Wars catalog
	contention:  One popular movie, many Basic customers (try concurrent rents)
	downgrade:   A Premium customer at three rentals (try switching to Basic)

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Save plans, customers and catalog through store.Seeder
 3. Open rentals through rental.Core, so they obey the same rules as users

All demo customers use the password "password".

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "downgrade"}

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Rent / ChoosePlan endpoints to try against the data
  - cli/seed.go: Loads a scenario from the command line
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"
	"github.com/warp/videostore/catalog"
	"github.com/warp/videostore/rental"
	"github.com/warp/videostore/store"
)

// DemoPassword is the password of every scenario customer.
const DemoPassword = "password"

var ErrUnknownScenario = errors.New("unknown scenario")

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "classic",
		Name:        "Classic",
		Description: "Basic, Standard and Premium plans with a small Star Wars catalog",
	},
	{
		ID:          "contention",
		Name:        "Contention",
		Description: "Ten Basic customers and one popular movie",
	},
	{
		ID:          "downgrade",
		Name:        "Downgrade",
		Description: "A Premium customer holding three movies tries to move to Basic",
	},
}

var demoPlans = []rental.Plan{
	{ID: 1, Name: "Basic", MaxRentals: 1, Price: decimal.RequireFromString("4.99")},
	{ID: 2, Name: "Standard", MaxRentals: 2, Price: decimal.RequireFromString("8.99")},
	{ID: 3, Name: "Premium", MaxRentals: 3, Price: decimal.RequireFromString("12.99")},
}

var demoMovies = []rental.Movie{
	{ID: 1, Name: "Star Wars", Year: 1977},
	{ID: 2, Name: "The Empire Strikes Back", Year: 1980},
	{ID: 3, Name: "Return of the Jedi", Year: 1983},
	{ID: 4, Name: "Stardust", Year: 2007},
	{ID: 5, Name: "Raiders of the Lost Ark", Year: 1981},
	{ID: 6, Name: "100% Wolf", Year: 2020},
}

// ScenarioIDs lists the loadable scenarios in display order.
func ScenarioIDs() []string {
	ids := make([]string, len(scenarios))
	for i, s := range scenarios {
		ids[i] = s.ID
	}
	return ids
}

// LoadScenario resets the database and loads scenario id.
func LoadScenario(ctx context.Context, seeder store.Seeder, core *rental.Core, id string) error {
	var load func(context.Context, store.Seeder, *rental.Core, []byte) error
	switch id {
	case "classic":
		load = loadClassicScenario
	case "contention":
		load = loadContentionScenario
	case "downgrade":
		load = loadDowngradeScenario
	default:
		return fmt.Errorf("%w: %q", ErrUnknownScenario, id)
	}

	hash, err := rental.HashPassword(DemoPassword)
	if err != nil {
		return fmt.Errorf("hash demo password: %w", err)
	}
	if err := seeder.Reset(ctx); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	if err := seedCatalog(ctx, seeder); err != nil {
		return err
	}
	return load(ctx, seeder, core, hash)
}

// =============================================================================
// HANDLERS
// =============================================================================

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.currentScenario = ""
	err := LoadScenario(r.Context(), h.Store, h.Core, req.ScenarioID)
	if errors.Is(err, ErrUnknownScenario) {
		writeError(w, http.StatusBadRequest, "Unknown scenario", err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load scenario", err)
		return
	}
	h.currentScenario = req.ScenarioID

	writeJSON(w, http.StatusOK, map[string]string{
		"status":      "loaded",
		"scenario_id": req.ScenarioID,
	})
}

// ResetDatabase clears all data.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.currentScenario = ""
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func seedCatalog(ctx context.Context, seeder store.Seeder) error {
	for _, p := range demoPlans {
		if err := seeder.SavePlan(ctx, p); err != nil {
			return err
		}
	}
	for _, m := range demoMovies {
		if err := seeder.SaveMovie(ctx, m); err != nil {
			return err
		}
	}

	directors := []struct {
		id     int64
		person catalog.Person
		movies []rental.MovieID
	}{
		{1, catalog.Person{FirstName: "George", LastName: "Lucas"}, []rental.MovieID{1}},
		{2, catalog.Person{FirstName: "Irvin", LastName: "Kershner"}, []rental.MovieID{2}},
		{3, catalog.Person{FirstName: "Richard", LastName: "Marquand"}, []rental.MovieID{3}},
		{4, catalog.Person{FirstName: "Matthew", LastName: "Vaughn"}, []rental.MovieID{4}},
		{5, catalog.Person{FirstName: "Steven", LastName: "Spielberg"}, []rental.MovieID{5}},
		{6, catalog.Person{FirstName: "Alexs", LastName: "Stadermann"}, []rental.MovieID{6}},
	}
	for _, d := range directors {
		if err := seeder.SaveDirector(ctx, d.id, d.person, d.movies...); err != nil {
			return err
		}
	}

	actors := []struct {
		id     int64
		person catalog.Person
		movies []rental.MovieID
	}{
		{1, catalog.Person{FirstName: "Mark", LastName: "Hamill"}, []rental.MovieID{1, 2, 3}},
		{2, catalog.Person{FirstName: "Harrison", LastName: "Ford"}, []rental.MovieID{1, 2, 3, 5}},
		{3, catalog.Person{FirstName: "Carrie", LastName: "Fisher"}, []rental.MovieID{1, 2, 3}},
		{4, catalog.Person{FirstName: "Claire", LastName: "Danes"}, []rental.MovieID{4}},
		{5, catalog.Person{FirstName: "Karen", LastName: "Allen"}, []rental.MovieID{5}},
	}
	for _, a := range actors {
		if err := seeder.SaveActor(ctx, a.id, a.person, a.movies...); err != nil {
			return err
		}
	}
	return nil
}

func loadClassicScenario(ctx context.Context, seeder store.Seeder, core *rental.Core, hash []byte) error {
	customers := []rental.Customer{
		{ID: 1, Login: "alice", FirstName: "Alice", LastName: "Smith", PlanID: 1},
		{ID: 2, Login: "bob", FirstName: "Bob", LastName: "Jones", PlanID: 2},
		{ID: 3, Login: "carol", FirstName: "Carol", LastName: "Nguyen", PlanID: 3},
		{ID: 4, Login: "dave", FirstName: "Dave", LastName: "Okafor", PlanID: 1},
	}
	for _, c := range customers {
		if err := seeder.SaveCustomer(ctx, c, hash); err != nil {
			return err
		}
	}
	return rentAll(ctx, core, []rent{{1, 1}, {3, 2}, {3, 5}})
}

func loadContentionScenario(ctx context.Context, seeder store.Seeder, _ *rental.Core, hash []byte) error {
	for i := int64(1); i <= 10; i++ {
		c := rental.Customer{
			ID:        rental.CustomerID(i),
			Login:     fmt.Sprintf("customer%02d", i),
			FirstName: "Customer",
			LastName:  fmt.Sprintf("%02d", i),
			PlanID:    1,
		}
		if err := seeder.SaveCustomer(ctx, c, hash); err != nil {
			return err
		}
	}
	return nil
}

func loadDowngradeScenario(ctx context.Context, seeder store.Seeder, core *rental.Core, hash []byte) error {
	c := rental.Customer{ID: 1, Login: "erin", FirstName: "Erin", LastName: "Walsh", PlanID: 3}
	if err := seeder.SaveCustomer(ctx, c, hash); err != nil {
		return err
	}
	return rentAll(ctx, core, []rent{{1, 1}, {1, 2}, {1, 3}})
}

type rent struct {
	customer rental.CustomerID
	movie    rental.MovieID
}

func rentAll(ctx context.Context, core *rental.Core, rents []rent) error {
	for _, r := range rents {
		outcome, err := core.Rent(ctx, r.customer, r.movie)
		if err != nil {
			return fmt.Errorf("rent movie %d to customer %d: %w", r.movie, r.customer, err)
		}
		if !outcome.OK() {
			return fmt.Errorf("rent movie %d to customer %d: %s", r.movie, r.customer, outcome)
		}
	}
	return nil
}
