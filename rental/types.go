/*
Package rental provides the rental and subscription consistency core.

PURPOSE:
  Customers rent movies under a subscription plan that caps how many movies
  they may hold at once. This package owns the three operations that mutate
  that state (Rent, Return, ChoosePlan) and the invariants they protect.
  Everything else (search, reporting, HTTP, CLI) only reads.

KEY CONCEPTS IN THIS FILE (types.go):
  - Customer: who rents, and which plan they are on
  - Plan: reference data, max concurrent rentals and a price
  - Rental: one (movie, customer) hold, open until returned
  - Movie: reference data consulted for validity checks

INVARIANTS (enforced by core.go):
  - At most one open rental per movie.
  - Open rentals of a customer never exceed their plan maximum.
  - Return only closes an open rental owned by the caller.
  - A plan change that would leave the customer over the new limit is
    rejected and the old plan is kept.

SEE ALSO:
  - core.go: Rent, Return, ChoosePlan
  - store.go: LedgerStore and LedgerTx interfaces
  - outcome.go: Business-rule results and their messages
*/
package rental

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type CustomerID int64
type MovieID int64
type PlanID int64

// NoCustomer is returned by renter lookups when a movie is not rented.
const NoCustomer CustomerID = -1

// =============================================================================
// REFERENCE DATA
// =============================================================================

// Plan is a subscription plan. Immutable once created.
type Plan struct {
	ID         PlanID
	Name       string
	MaxRentals int
	Price      decimal.Decimal
}

type Movie struct {
	ID   MovieID
	Name string
	Year int
}

// =============================================================================
// CUSTOMER
// =============================================================================

// Customer is created out of band. Only ChoosePlan changes PlanID.
type Customer struct {
	ID        CustomerID
	Login     string
	FirstName string
	LastName  string
	PlanID    PlanID
}

func (c Customer) Name() string {
	if c.LastName == "" {
		return c.FirstName
	}
	return c.FirstName + " " + c.LastName
}

// =============================================================================
// RENTAL
// =============================================================================

type RentalStatus string

const (
	StatusOpen   RentalStatus = "open"
	StatusClosed RentalStatus = "closed"
)

// Rental is created by Rent and closed by Return. Never deleted.
type Rental struct {
	ID         string
	MovieID    MovieID
	CustomerID CustomerID
	Status     RentalStatus
	CreatedAt  time.Time
}

func (r Rental) IsOpen() bool { return r.Status == StatusOpen }
