/*
handlers_test.go - HTTP tests for API handlers

Tests for:
- Login and profile
- Rent / Return / ChoosePlan status codes and outcome bodies
- Search (both strategies)
- Audit endpoints
- Concurrent rents through the HTTP layer
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/videostore/logger"
	"github.com/warp/videostore/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestServer(t *testing.T, scenario string) (*Handler, http.Handler) {
	t.Helper()
	s, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	log := logger.Discard()
	h := NewHandler(s, log)
	h.ConflictBackoff = time.Millisecond
	require.NoError(t, LoadScenario(context.Background(), h.Store, h.Core, scenario))

	return h, NewRouter(h, log)
}

func do(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

// =============================================================================
// SESSION AND PROFILE
// =============================================================================

func TestLogin(t *testing.T) {
	_, router := newTestServer(t, "classic")

	rec := do(t, router, http.MethodPost, "/api/login", LoginRequest{Login: "alice", Password: DemoPassword})
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[LoginDTO](t, rec)
	assert.Equal(t, int64(1), got.CustomerID)
	assert.Equal(t, "Alice Smith", got.Name)

	rec = do(t, router, http.MethodPost, "/api/login", LoginRequest{Login: "alice", Password: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, router, http.MethodPost, "/api/login", LoginRequest{Login: "nobody", Password: DemoPassword})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGetProfile(t *testing.T) {
	_, router := newTestServer(t, "classic")

	rec := do(t, router, http.MethodGet, "/api/customers/1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	profile := decode[ProfileDTO](t, rec)
	assert.Equal(t, "Basic", profile.Plan.Name)
	assert.Equal(t, "4.99", profile.Plan.Price)
	assert.Equal(t, 1, profile.OpenRentals)
	assert.Equal(t, 0, profile.Remaining)
	assert.Equal(t, "Hello, Alice Smith! You have 0 out of 1 rentals remaining.", profile.Greeting)

	rec = do(t, router, http.MethodGet, "/api/customers/99", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, router, http.MethodGet, "/api/customers/abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListPlans(t *testing.T) {
	_, router := newTestServer(t, "classic")

	rec := do(t, router, http.MethodGet, "/api/plans", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	plans := decode[[]PlanDTO](t, rec)
	require.Len(t, plans, 3)
	assert.Equal(t, PlanDTO{ID: 3, Name: "Premium", MaxRentals: 3, Price: "12.99"}, plans[2])
}

// =============================================================================
// RENT / RETURN / CHOOSE PLAN
// =============================================================================

func TestRent_StatusCodes(t *testing.T) {
	// classic: alice (Basic) holds 1, carol (Premium) holds 2 and 5
	tests := []struct {
		name     string
		customer int
		movie    int64
		status   int
		outcome  string
	}{
		{"success", 2, 3, http.StatusOK, "success"},
		{"held by other", 4, 1, http.StatusConflict, "rented_by_other"},
		{"at capacity", 1, 3, http.StatusConflict, "at_capacity"},
		{"already renting", 3, 2, http.StatusConflict, "already_renting"},
		{"unknown movie", 2, 999, http.StatusUnprocessableEntity, "invalid_movie"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, router := newTestServer(t, "classic")

			rec := do(t, router, http.MethodPost, fmt.Sprintf("/api/customers/%d/rentals", tt.customer), RentRequest{MovieID: tt.movie})
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, tt.outcome, decode[OutcomeDTO](t, rec).Outcome)
		})
	}
}

func TestRent_MessageInBody(t *testing.T) {
	_, router := newTestServer(t, "classic")

	rec := do(t, router, http.MethodPost, "/api/customers/4/rentals", RentRequest{MovieID: 1})
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "This movie is currently rented by another person.", decode[OutcomeDTO](t, rec).Message)
}

func TestRent_UnknownCustomer(t *testing.T) {
	_, router := newTestServer(t, "classic")

	rec := do(t, router, http.MethodPost, "/api/customers/99/rentals", RentRequest{MovieID: 3})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReturn(t *testing.T) {
	_, router := newTestServer(t, "classic")

	rec := do(t, router, http.MethodDelete, "/api/customers/1/rentals/1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "success", decode[OutcomeDTO](t, rec).Outcome)

	rec = do(t, router, http.MethodDelete, "/api/customers/1/rentals/1", nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "not_renting", decode[OutcomeDTO](t, rec).Outcome)

	rec = do(t, router, http.MethodDelete, "/api/customers/1/rentals/abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Returned movie is free again.
	rec = do(t, router, http.MethodPost, "/api/customers/4/rentals", RentRequest{MovieID: 1})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestChoosePlan(t *testing.T) {
	// GIVEN: carol on Premium holding two movies
	// WHEN: carol moves to Basic, then to an unknown plan, then to Standard
	// THEN: 409 must_return_first(1), 422 invalid_plan, 200
	_, router := newTestServer(t, "classic")

	rec := do(t, router, http.MethodPut, "/api/customers/3/plan", ChoosePlanRequest{PlanID: 1})
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, OutcomeDTO{
		Outcome: "must_return_first",
		Message: "You must return 1 Movie before switching to this plan.",
		Count:   1,
	}, decode[OutcomeDTO](t, rec))

	rec = do(t, router, http.MethodPut, "/api/customers/3/plan", ChoosePlanRequest{PlanID: 42})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "invalid_plan", decode[OutcomeDTO](t, rec).Outcome)

	rec = do(t, router, http.MethodPut, "/api/customers/3/plan", ChoosePlanRequest{PlanID: 2})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, router, http.MethodGet, "/api/customers/3", nil)
	assert.Equal(t, "Standard", decode[ProfileDTO](t, rec).Plan.Name)
}

func TestListRentals(t *testing.T) {
	_, router := newTestServer(t, "classic")

	rec := do(t, router, http.MethodGet, "/api/customers/3/rentals", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rentals := decode[[]RentalDTO](t, rec)
	require.Len(t, rentals, 2)
	assert.ElementsMatch(t, []int64{2, 5}, []int64{rentals[0].MovieID, rentals[1].MovieID})
	assert.Equal(t, "open", rentals[0].Status)
}

func TestBadBody(t *testing.T) {
	_, router := newTestServer(t, "classic")

	req := httptest.NewRequest(http.MethodPost, "/api/customers/1/rentals", bytes.NewBufferString("{"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// SEARCH
// =============================================================================

func TestSearchMovies(t *testing.T) {
	_, router := newTestServer(t, "classic")

	rec := do(t, router, http.MethodGet, "/api/movies?q=star&customer_id=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	listings := decode[[]ListingDTO](t, rec)
	require.Len(t, listings, 2)

	assert.Equal(t, "Star Wars", listings[0].Name)
	assert.Equal(t, []string{"Lucas, George"}, listings[0].Directors)
	assert.Equal(t, []string{"Fisher, Carrie", "Ford, Harrison", "Hamill, Mark"}, listings[0].Actors)
	assert.Equal(t, "YOU HAVE IT", listings[0].Status)
	assert.Equal(t, "Stardust", listings[1].Name)
	assert.Equal(t, "AVAILABLE", listings[1].Status)

	fast := do(t, router, http.MethodGet, "/api/movies?q=star&customer_id=1&fast=true", nil)
	require.Equal(t, http.StatusOK, fast.Code)
	assert.JSONEq(t, rec.Body.String(), fast.Body.String())
}

func TestSearchMovies_AnonymousSeesUnavailable(t *testing.T) {
	_, router := newTestServer(t, "classic")

	rec := do(t, router, http.MethodGet, "/api/movies?q=empire", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	listings := decode[[]ListingDTO](t, rec)
	require.Len(t, listings, 1)
	assert.Equal(t, "UNAVAILABLE", listings[0].Status)
}

// =============================================================================
// AUDIT
// =============================================================================

func TestAudit(t *testing.T) {
	_, router := newTestServer(t, "classic")

	rec := do(t, router, http.MethodGet, "/api/audit", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[AuditReportDTO](t, rec).RanAt)

	rec = do(t, router, http.MethodPost, "/api/audit/run", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	report := decode[AuditReportDTO](t, rec)
	assert.NotEmpty(t, report.RanAt)
	assert.Empty(t, report.Violations)

	rec = do(t, router, http.MethodGet, "/api/audit", nil)
	assert.Equal(t, report.RanAt, decode[AuditReportDTO](t, rec).RanAt)
}

func TestHealth(t *testing.T) {
	_, router := newTestServer(t, "classic")

	rec := do(t, router, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

// =============================================================================
// CONCURRENCY
// =============================================================================

func TestRent_ConcurrentRequests_SingleWinner(t *testing.T) {
	// GIVEN: ten Basic customers, nobody renting
	// WHEN: all ten rent movie 4 at once
	// THEN: exactly one 200, the rest 409 rented_by_other
	_, router := newTestServer(t, "contention")

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		codes = map[int]int{}
	)
	for cid := 1; cid <= 10; cid++ {
		wg.Add(1)
		go func(cid int) {
			defer wg.Done()
			rec := do(t, router, http.MethodPost, fmt.Sprintf("/api/customers/%d/rentals", cid), RentRequest{MovieID: 4})
			mu.Lock()
			codes[rec.Code]++
			mu.Unlock()
		}(cid)
	}
	wg.Wait()

	assert.Equal(t, map[int]int{http.StatusOK: 1, http.StatusConflict: 9}, codes)

	rec := do(t, router, http.MethodPost, "/api/audit/run", nil)
	assert.Empty(t, decode[AuditReportDTO](t, rec).Violations)
}
