// Package store provides an in-memory rental.LedgerStore.
package store

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"sync"

	"github.com/warp/videostore/rental"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory holds the whole ledger in maps behind one mutex. WithTx holds the
// mutex for the entire transaction, so transactions are trivially serial.
type Memory struct {
	mu        sync.Mutex
	plans     map[rental.PlanID]rental.Plan
	customers map[rental.CustomerID]customerRow
	movies    map[rental.MovieID]rental.Movie
	rentals   []rental.Rental

	// failures injects an error the next time the named LedgerTx call runs.
	failures map[string]error
}

type customerRow struct {
	customer rental.Customer
	hash     []byte
}

func NewMemory() *Memory {
	return &Memory{
		plans:     make(map[rental.PlanID]rental.Plan),
		customers: make(map[rental.CustomerID]customerRow),
		movies:    make(map[rental.MovieID]rental.Movie),
		failures:  make(map[string]error),
	}
}

// =============================================================================
// SEEDING
// =============================================================================

func (m *Memory) AddPlan(p rental.Plan) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.plans[p.ID] = p
}

func (m *Memory) AddCustomer(c rental.Customer, passwordHash []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.customers[c.ID] = customerRow{customer: c, hash: passwordHash}
}

func (m *Memory) AddMovie(mv rental.Movie) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.movies[mv.ID] = mv
}

// FailNext makes the next call to the named LedgerTx method return err.
// Names match the method, e.g. "InsertRental".
func (m *Memory) FailNext(method string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[method] = err
}

// AllRentals returns every rental row, open and closed.
func (m *Memory) AllRentals() []rental.Rental {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.rentals)
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes fn within a transaction.
// Simulated with a snapshot + restore on error or panic.
func (m *Memory) WithTx(ctx context.Context, fn func(rental.LedgerTx) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.snapshot()
	defer func() {
		if p := recover(); p != nil {
			m.restore(snapshot)
			panic(p)
		}
		if err != nil {
			m.restore(snapshot)
		}
	}()

	return fn(&txView{parent: m})
}

type memorySnapshot struct {
	customers map[rental.CustomerID]customerRow
	rentals   []rental.Rental
}

// Plans and movies are immutable reference data and are not snapshotted.
func (m *Memory) snapshot() memorySnapshot {
	return memorySnapshot{
		customers: maps.Clone(m.customers),
		rentals:   slices.Clone(m.rentals),
	}
}

func (m *Memory) restore(s memorySnapshot) {
	m.customers = s.customers
	m.rentals = s.rentals
}

func (m *Memory) injected(method string) error {
	if err, ok := m.failures[method]; ok {
		delete(m.failures, method)
		return err
	}
	return nil
}

// =============================================================================
// TX VIEW - LedgerTx over the locked maps
// =============================================================================

type txView struct {
	parent *Memory
}

func (tv *txView) SubscriptionID(_ context.Context, customerID rental.CustomerID) (rental.PlanID, error) {
	if err := tv.parent.injected("SubscriptionID"); err != nil {
		return 0, err
	}
	row, ok := tv.parent.customers[customerID]
	if !ok {
		return 0, fmt.Errorf("customer %d: %w", customerID, rental.ErrCustomerNotFound)
	}
	return row.customer.PlanID, nil
}

func (tv *txView) MaxRentals(_ context.Context, planID rental.PlanID) (int, bool, error) {
	if err := tv.parent.injected("MaxRentals"); err != nil {
		return 0, false, err
	}
	p, ok := tv.parent.plans[planID]
	return p.MaxRentals, ok, nil
}

func (tv *txView) OpenRentalCount(_ context.Context, customerID rental.CustomerID) (int, error) {
	if err := tv.parent.injected("OpenRentalCount"); err != nil {
		return 0, err
	}
	n := 0
	for _, r := range tv.parent.rentals {
		if r.CustomerID == customerID && r.IsOpen() {
			n++
		}
	}
	return n, nil
}

func (tv *txView) Renter(_ context.Context, movieID rental.MovieID) (rental.CustomerID, error) {
	if err := tv.parent.injected("Renter"); err != nil {
		return rental.NoCustomer, err
	}
	for _, r := range tv.parent.rentals {
		if r.MovieID == movieID && r.IsOpen() {
			return r.CustomerID, nil
		}
	}
	return rental.NoCustomer, nil
}

func (tv *txView) OpenRentalMovieIDs(_ context.Context, customerID rental.CustomerID) ([]rental.MovieID, error) {
	if err := tv.parent.injected("OpenRentalMovieIDs"); err != nil {
		return nil, err
	}
	var ids []rental.MovieID
	for _, r := range tv.parent.rentals {
		if r.CustomerID == customerID && r.IsOpen() {
			ids = append(ids, r.MovieID)
		}
	}
	return ids, nil
}

func (tv *txView) InsertRental(_ context.Context, r rental.Rental) error {
	if err := tv.parent.injected("InsertRental"); err != nil {
		return err
	}
	for _, existing := range tv.parent.rentals {
		if existing.MovieID == r.MovieID && existing.IsOpen() {
			return rental.ErrMovieAlreadyRented
		}
	}
	tv.parent.rentals = append(tv.parent.rentals, r)
	return nil
}

func (tv *txView) CloseRental(_ context.Context, movieID rental.MovieID, customerID rental.CustomerID) error {
	if err := tv.parent.injected("CloseRental"); err != nil {
		return err
	}
	for i, r := range tv.parent.rentals {
		if r.MovieID == movieID && r.CustomerID == customerID && r.IsOpen() {
			tv.parent.rentals[i].Status = rental.StatusClosed
			return nil
		}
	}
	return fmt.Errorf("no open rental of movie %d for customer %d", movieID, customerID)
}

func (tv *txView) UpdateSubscription(_ context.Context, customerID rental.CustomerID, planID rental.PlanID) error {
	if err := tv.parent.injected("UpdateSubscription"); err != nil {
		return err
	}
	row, ok := tv.parent.customers[customerID]
	if !ok {
		return fmt.Errorf("customer %d: %w", customerID, rental.ErrCustomerNotFound)
	}
	row.customer.PlanID = planID
	tv.parent.customers[customerID] = row
	return nil
}

func (tv *txView) IsValidMovie(_ context.Context, movieID rental.MovieID) (bool, error) {
	if err := tv.parent.injected("IsValidMovie"); err != nil {
		return false, err
	}
	_, ok := tv.parent.movies[movieID]
	return ok, nil
}

// =============================================================================
// SESSION READS
// =============================================================================

func (m *Memory) CustomerByLogin(_ context.Context, login string) (rental.Customer, []byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.customers {
		if row.customer.Login == login {
			return row.customer, row.hash, nil
		}
	}
	return rental.Customer{}, nil, rental.ErrCustomerNotFound
}

func (m *Memory) Customer(_ context.Context, id rental.CustomerID) (rental.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.customers[id]
	if !ok {
		return rental.Customer{}, fmt.Errorf("customer %d: %w", id, rental.ErrCustomerNotFound)
	}
	return row.customer, nil
}

func (m *Memory) Plan(_ context.Context, id rental.PlanID) (rental.Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.plans[id]
	if !ok {
		return rental.Plan{}, fmt.Errorf("plan %d: %w", id, rental.ErrPlanNotFound)
	}
	return p, nil
}

func (m *Memory) Plans(_ context.Context) ([]rental.Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	plans := slices.Collect(maps.Values(m.plans))
	sort.Slice(plans, func(i, j int) bool { return plans[i].ID < plans[j].ID })
	return plans, nil
}

func (m *Memory) OpenRentals(_ context.Context, customerID rental.CustomerID) ([]rental.Rental, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var open []rental.Rental
	for _, r := range m.rentals {
		if r.CustomerID == customerID && r.IsOpen() {
			open = append(open, r)
		}
	}
	return open, nil
}

// Renters reports who holds each of the given movies.
func (m *Memory) Renters(_ context.Context, movieIDs []rental.MovieID) (map[rental.MovieID]rental.CustomerID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[rental.MovieID]rental.CustomerID)
	for _, r := range m.rentals {
		if r.IsOpen() && slices.Contains(movieIDs, r.MovieID) {
			out[r.MovieID] = r.CustomerID
		}
	}
	return out, nil
}
