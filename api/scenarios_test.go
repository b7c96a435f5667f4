/*
scenarios_test.go - Unit tests for demo scenarios

PURPOSE:
	Tests that each scenario sets up the expected state and that loading
	one scenario replaces the previous one.
*/
package api

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/warp/videostore/logger"
	"github.com/warp/videostore/rental"
	"github.com/warp/videostore/store/sqlite"
)

func setupTestHandler(t *testing.T) *Handler {
	store, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	return NewHandler(store, logger.Discard())
}

func TestScenario_Classic(t *testing.T) {
	// GIVEN: Classic scenario
	// WHEN: Loading the scenario
	// THEN: Three plans, open rentals for alice and carol, no violations

	h := setupTestHandler(t)
	ctx := context.Background()

	if err := LoadScenario(ctx, h.Store, h.Core, "classic"); err != nil {
		t.Fatalf("Failed to load classic scenario: %v", err)
	}

	plans, err := h.Store.Plans(ctx)
	if err != nil {
		t.Fatalf("Failed to list plans: %v", err)
	}
	if len(plans) != 3 {
		t.Errorf("Expected 3 plans, got %d", len(plans))
	}

	for cid, want := range map[rental.CustomerID]int{1: 1, 2: 0, 3: 2, 4: 0} {
		rentals, err := h.Store.OpenRentals(ctx, cid)
		if err != nil {
			t.Fatalf("Failed to list rentals for %d: %v", cid, err)
		}
		if len(rentals) != want {
			t.Errorf("Customer %d: expected %d open rentals, got %d", cid, want, len(rentals))
		}
	}

	report := h.Auditor.RunNow(ctx)
	if report.Err != nil || len(report.Violations) != 0 {
		t.Errorf("Expected clean audit, got %v / %v", report.Violations, report.Err)
	}
}

func TestScenario_Downgrade(t *testing.T) {
	h := setupTestHandler(t)
	ctx := context.Background()

	if err := LoadScenario(ctx, h.Store, h.Core, "downgrade"); err != nil {
		t.Fatalf("Failed to load downgrade scenario: %v", err)
	}

	outcome, err := h.Core.ChoosePlan(ctx, 1, 1)
	if err != nil {
		t.Fatalf("ChoosePlan failed: %v", err)
	}
	if outcome != rental.MustReturnFirst(2) {
		t.Errorf("Expected must_return_first(2), got %s", outcome)
	}
}

func TestScenario_Contention(t *testing.T) {
	h := setupTestHandler(t)
	ctx := context.Background()

	if err := LoadScenario(ctx, h.Store, h.Core, "contention"); err != nil {
		t.Fatalf("Failed to load contention scenario: %v", err)
	}

	for i := rental.CustomerID(1); i <= 10; i++ {
		c, err := h.Store.Customer(ctx, i)
		if err != nil {
			t.Fatalf("Customer %d missing: %v", i, err)
		}
		if c.PlanID != 1 {
			t.Errorf("Customer %d: expected Basic plan, got %d", i, c.PlanID)
		}
	}
}

func TestScenario_ReloadReplacesData(t *testing.T) {
	h := setupTestHandler(t)
	ctx := context.Background()

	if err := LoadScenario(ctx, h.Store, h.Core, "contention"); err != nil {
		t.Fatalf("Failed to load contention scenario: %v", err)
	}
	if err := LoadScenario(ctx, h.Store, h.Core, "downgrade"); err != nil {
		t.Fatalf("Failed to load downgrade scenario: %v", err)
	}

	if _, err := h.Store.Customer(ctx, 2); !errors.Is(err, rental.ErrCustomerNotFound) {
		t.Errorf("Expected customer 2 to be gone, got %v", err)
	}
}

func TestScenario_Unknown(t *testing.T) {
	h := setupTestHandler(t)

	err := LoadScenario(context.Background(), h.Store, h.Core, "nope")
	if !errors.Is(err, ErrUnknownScenario) {
		t.Errorf("Expected ErrUnknownScenario, got %v", err)
	}
}

func TestScenarioEndpoints(t *testing.T) {
	h := setupTestHandler(t)
	router := NewRouter(h, logger.Discard())

	rec := do(t, router, http.MethodGet, "/api/scenarios", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if got := decode[[]ScenarioDTO](t, rec); len(got) != len(ScenarioIDs()) {
		t.Errorf("Expected %d scenarios, got %d", len(ScenarioIDs()), len(got))
	}

	rec = do(t, router, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "nope"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for unknown scenario, got %d", rec.Code)
	}

	rec = do(t, router, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "classic"})
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = do(t, router, http.MethodGet, "/api/scenarios/current", nil)
	if got := decode[ScenarioDTO](t, rec); got.ID != "classic" {
		t.Errorf("Expected current scenario classic, got %q", got.ID)
	}

	rec = do(t, router, http.MethodPost, "/api/scenarios/reset", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	rec = do(t, router, http.MethodGet, "/api/plans", nil)
	if got := decode[[]PlanDTO](t, rec); len(got) != 0 {
		t.Errorf("Expected no plans after reset, got %d", len(got))
	}
}
