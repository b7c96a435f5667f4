/*
store.go - Ledger store interfaces consumed by the rental core

PURPOSE:
  Defines the narrow query/update surface the Core needs from the backing
  relational store. Implementations run every LedgerTx call inside one
  database transaction at SERIALIZABLE isolation.

KEY INTERFACES:
  LedgerTx:    Reads and writes available inside a transaction
  LedgerStore: WithTx scoped transactions plus session-level reads

SCOPED TRANSACTIONS:
  WithTx(ctx, fn) begins a transaction, hands fn a LedgerTx, and:
  - commits if fn returns nil
  - rolls back if fn returns an error or panics
  There is no way to leave a transaction open. Outside WithTx the store is
  in auto-commit mode.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go:     SQLite (BEGIN IMMEDIATE)
  - store/postgres/postgres.go: PostgreSQL (ISOLATION LEVEL SERIALIZABLE)
  - rental/store/memory.go:     In-memory for tests

SEE ALSO:
  - core.go: The only caller of WithTx
*/
package rental

import (
	"context"
	"time"
)

// =============================================================================
// LEDGER TX - Operations inside a transaction
// =============================================================================

// LedgerTx is the view of the store inside a transaction.
type LedgerTx interface {
	// SubscriptionID returns the customer's current plan.
	// Returns ErrCustomerNotFound if the customer does not exist.
	SubscriptionID(ctx context.Context, customerID CustomerID) (PlanID, error)

	// MaxRentals returns the plan's capacity. found is false for an unknown plan.
	MaxRentals(ctx context.Context, planID PlanID) (max int, found bool, err error)

	// OpenRentalCount counts the customer's open rentals.
	OpenRentalCount(ctx context.Context, customerID CustomerID) (int, error)

	// Renter returns the customer holding the movie, or NoCustomer.
	Renter(ctx context.Context, movieID MovieID) (CustomerID, error)

	// OpenRentalMovieIDs returns the movies the customer currently holds.
	OpenRentalMovieIDs(ctx context.Context, customerID CustomerID) ([]MovieID, error)

	// InsertRental writes a new open rental.
	// Returns ErrMovieAlreadyRented if the store has a unique index on
	// open rentals per movie and it fires.
	InsertRental(ctx context.Context, r Rental) error

	// CloseRental marks the customer's open rental of the movie closed.
	CloseRental(ctx context.Context, movieID MovieID, customerID CustomerID) error

	// UpdateSubscription points the customer at a new plan.
	UpdateSubscription(ctx context.Context, customerID CustomerID, planID PlanID) error

	// IsValidMovie reports whether the movie exists in the catalog.
	IsValidMovie(ctx context.Context, movieID MovieID) (bool, error)
}

// =============================================================================
// LEDGER STORE
// =============================================================================

// LedgerStore owns transactions and the read-only session queries.
type LedgerStore interface {
	// WithTx executes fn within a serializable transaction.
	// If fn returns error, transaction is rolled back.
	// If fn returns nil, transaction is committed.
	WithTx(ctx context.Context, fn func(LedgerTx) error) error

	// CustomerByLogin returns the customer and bcrypt password hash.
	// Returns ErrCustomerNotFound for an unknown login.
	CustomerByLogin(ctx context.Context, login string) (Customer, []byte, error)

	// Customer returns a customer by id, or ErrCustomerNotFound.
	Customer(ctx context.Context, id CustomerID) (Customer, error)

	// Plan returns a plan by id, or ErrPlanNotFound.
	Plan(ctx context.Context, id PlanID) (Plan, error)

	// Plans returns all plans ordered by id.
	Plans(ctx context.Context) ([]Plan, error)

	// OpenRentals returns the customer's open rentals, oldest first.
	OpenRentals(ctx context.Context, customerID CustomerID) ([]Rental, error)
}

// Clock returns the current time. Rentals are stamped with it.
type Clock func() time.Time
