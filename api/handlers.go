/*
handlers.go - HTTP API handlers for the video store

PURPOSE:
  Exposes login, plans, rentals and catalog search over REST. Handles HTTP
  request/response and JSON, and delegates to rental.Core, rental.Accounts
  and catalog.Searcher.

ENDPOINTS:
  Session:
    POST   /api/login                           Authenticate, returns customer id

  Customers:
    GET    /api/customers/{id}                  Profile and remaining rentals
    GET    /api/customers/{id}/rentals          Open rentals
    POST   /api/customers/{id}/rentals          Rent {movie_id}
    DELETE /api/customers/{id}/rentals/{movie}  Return
    PUT    /api/customers/{id}/plan             Choose plan {plan_id}

  Catalog:
    GET    /api/plans                           List plans
    GET    /api/movies?q=&fast=&customer_id=    Title search

  Audit:
    GET    /api/audit                           Last audit report
    POST   /api/audit/run                       Run an audit pass now

ERROR HANDLING:
  Business rejections are not errors. They come back with the outcome code
  and its message:
  - 200: success
  - 409: at_capacity, already_renting, rented_by_other, not_renting,
         must_return_first
  - 422: invalid_movie, invalid_plan
  Everything else uses ErrorResponse:
  - 400: Malformed input
  - 401: Bad credentials
  - 404: Unknown customer
  - 503: Serialization conflict after all retries
  - 500: Store failures

SECURITY NOTE:
  No session tokens. Customer ids come from the URL, as the original
  single-user console trusted its own login step.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo data loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/warp/videostore/catalog"
	"github.com/warp/videostore/rental"
	"github.com/warp/videostore/store"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store    store.Backend
	Core     *rental.Core
	Accounts *rental.Accounts
	Searcher *catalog.Searcher
	Auditor  *Auditor

	// ConflictRetries is the number of attempts for a Core call that hits a
	// serialization conflict.
	ConflictRetries int
	ConflictBackoff time.Duration

	log *slog.Logger

	// Track currently loaded scenario
	mu              sync.Mutex
	currentScenario string
}

// NewHandler wires the domain services over one backend.
func NewHandler(backend store.Backend, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		Store:           backend,
		Core:            rental.NewCore(backend, rental.WithLogger(log)),
		Accounts:        rental.NewAccounts(backend),
		Searcher:        catalog.NewSearcher(backend, backend),
		Auditor:         NewAuditor(backend, log),
		ConflictRetries: 3,
		ConflictBackoff: 20 * time.Millisecond,
		log:             log,
	}
}

// =============================================================================
// SESSION
// =============================================================================

// Login authenticates a customer.
// POST /api/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	cid, err := h.Accounts.Login(r.Context(), req.Login, req.Password)
	if errors.Is(err, rental.ErrInvalidCredentials) {
		writeError(w, http.StatusUnauthorized, "Invalid login or password", nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to log in", err)
		return
	}

	c, err := h.Store.Customer(r.Context(), cid)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load customer", err)
		return
	}
	writeJSON(w, http.StatusOK, LoginDTO{CustomerID: int64(cid), Name: c.Name()})
}

// =============================================================================
// CUSTOMER HANDLERS
// =============================================================================

// GetProfile returns the customer's personal data and remaining rentals.
// GET /api/customers/{id}
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	cid, ok := customerParam(w, r)
	if !ok {
		return
	}

	profile, err := h.Accounts.Profile(r.Context(), cid)
	if err != nil {
		writeLookupError(w, "Failed to get customer", err)
		return
	}
	writeJSON(w, http.StatusOK, toProfileDTO(profile))
}

// ListRentals returns the customer's open rentals.
// GET /api/customers/{id}/rentals
func (h *Handler) ListRentals(w http.ResponseWriter, r *http.Request) {
	cid, ok := customerParam(w, r)
	if !ok {
		return
	}

	rentals, err := h.Accounts.Rentals(r.Context(), cid)
	if err != nil {
		writeLookupError(w, "Failed to list rentals", err)
		return
	}

	dtos := make([]RentalDTO, len(rentals))
	for i, rt := range rentals {
		dtos[i] = toRentalDTO(rt)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// Rent rents a movie.
// POST /api/customers/{id}/rentals
func (h *Handler) Rent(w http.ResponseWriter, r *http.Request) {
	cid, ok := customerParam(w, r)
	if !ok {
		return
	}
	var req RentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	outcome, err := rental.Retry(r.Context(), h.ConflictRetries, h.ConflictBackoff, func(ctx context.Context) (rental.Outcome, error) {
		return h.Core.Rent(ctx, cid, rental.MovieID(req.MovieID))
	})
	writeOutcome(w, outcome, err)
}

// Return returns a rented movie.
// DELETE /api/customers/{id}/rentals/{movieID}
func (h *Handler) Return(w http.ResponseWriter, r *http.Request) {
	cid, ok := customerParam(w, r)
	if !ok {
		return
	}
	mid, err := strconv.ParseInt(chi.URLParam(r, "movieID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid movie id", err)
		return
	}

	outcome, err := rental.Retry(r.Context(), h.ConflictRetries, h.ConflictBackoff, func(ctx context.Context) (rental.Outcome, error) {
		return h.Core.Return(ctx, cid, rental.MovieID(mid))
	})
	writeOutcome(w, outcome, err)
}

// ChoosePlan switches the customer's plan.
// PUT /api/customers/{id}/plan
func (h *Handler) ChoosePlan(w http.ResponseWriter, r *http.Request) {
	cid, ok := customerParam(w, r)
	if !ok {
		return
	}
	var req ChoosePlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	outcome, err := rental.Retry(r.Context(), h.ConflictRetries, h.ConflictBackoff, func(ctx context.Context) (rental.Outcome, error) {
		return h.Core.ChoosePlan(ctx, cid, rental.PlanID(req.PlanID))
	})
	writeOutcome(w, outcome, err)
}

// =============================================================================
// CATALOG HANDLERS
// =============================================================================

// ListPlans returns all plans.
// GET /api/plans
func (h *Handler) ListPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := h.Accounts.Plans(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list plans", err)
		return
	}

	dtos := make([]PlanDTO, len(plans))
	for i, p := range plans {
		dtos[i] = toPlanDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// SearchMovies searches the catalog by title.
// GET /api/movies?q=star&fast=true&customer_id=1
func (h *Handler) SearchMovies(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	cid := rental.NoCustomer
	if s := q.Get("customer_id"); s != "" {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid customer_id", err)
			return
		}
		cid = rental.CustomerID(id)
	}

	search := h.Searcher.Search
	if fast, _ := strconv.ParseBool(q.Get("fast")); fast {
		search = h.Searcher.FastSearch
	}

	listings, err := search(r.Context(), cid, q.Get("q"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to search movies", err)
		return
	}

	dtos := make([]ListingDTO, len(listings))
	for i, l := range listings {
		dtos[i] = toListingDTO(l)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// AUDIT HANDLERS
// =============================================================================

// GetAudit returns the last audit report.
// GET /api/audit
func (h *Handler) GetAudit(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toAuditReportDTO(h.Auditor.Last()))
}

// RunAudit runs an audit pass now.
// POST /api/audit/run
func (h *Handler) RunAudit(w http.ResponseWriter, r *http.Request) {
	report := h.Auditor.RunNow(r.Context())
	if report.Err != nil {
		writeError(w, http.StatusInternalServerError, "Audit failed", report.Err)
		return
	}
	writeJSON(w, http.StatusOK, toAuditReportDTO(report))
}

// Health pings the store.
// GET /api/health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "Store unavailable", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func customerParam(w http.ResponseWriter, r *http.Request) (rental.CustomerID, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid customer id", err)
		return 0, false
	}
	return rental.CustomerID(id), true
}

func writeOutcome(w http.ResponseWriter, outcome rental.Outcome, err error) {
	if err != nil {
		switch {
		case rental.IsRetryable(err):
			writeError(w, http.StatusServiceUnavailable, "Too much contention, try again", err)
		case rental.IsNotFound(err):
			writeError(w, http.StatusNotFound, "Customer not found", err)
		default:
			writeError(w, http.StatusInternalServerError, "Operation failed", err)
		}
		return
	}

	status := http.StatusOK
	switch outcome.Code {
	case rental.OutcomeSuccess:
	case rental.OutcomeInvalidMovie, rental.OutcomeInvalidPlan:
		status = http.StatusUnprocessableEntity
	default:
		status = http.StatusConflict
	}
	writeJSON(w, status, toOutcomeDTO(outcome))
}

func writeLookupError(w http.ResponseWriter, message string, err error) {
	if rental.IsNotFound(err) {
		writeError(w, http.StatusNotFound, "Customer not found", err)
		return
	}
	writeError(w, http.StatusInternalServerError, message, err)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
