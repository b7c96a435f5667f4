package rental

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// =============================================================================
// ACCOUNTS - Session-level reads (no transactions)
// =============================================================================

// Accounts serves login and read-only customer views.
type Accounts struct {
	store LedgerStore
}

func NewAccounts(store LedgerStore) *Accounts {
	return &Accounts{store: store}
}

// Login authenticates a customer and returns their id.
func (a *Accounts) Login(ctx context.Context, login, password string) (CustomerID, error) {
	customer, hash, err := a.store.CustomerByLogin(ctx, login)
	if errors.Is(err, ErrCustomerNotFound) {
		return NoCustomer, ErrInvalidCredentials
	}
	if err != nil {
		return NoCustomer, fmt.Errorf("login: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil {
		return NoCustomer, ErrInvalidCredentials
	}
	return customer.ID, nil
}

// HashPassword returns the bcrypt hash stored for a customer login.
func HashPassword(password string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
}

// Profile is a customer's personal data and rental headroom.
type Profile struct {
	Customer    Customer
	Plan        Plan
	OpenRentals int
}

// Remaining is how many more movies the customer may rent. Never negative.
func (p Profile) Remaining() int {
	return max(p.Plan.MaxRentals-p.OpenRentals, 0)
}

func (p Profile) Greeting() string {
	return fmt.Sprintf("Hello, %s! You have %d out of %d rentals remaining.",
		p.Customer.Name(), p.Remaining(), p.Plan.MaxRentals)
}

func (a *Accounts) Profile(ctx context.Context, id CustomerID) (Profile, error) {
	customer, err := a.store.Customer(ctx, id)
	if err != nil {
		return Profile{}, err
	}
	plan, err := a.store.Plan(ctx, customer.PlanID)
	if err != nil {
		return Profile{}, err
	}
	rentals, err := a.store.OpenRentals(ctx, id)
	if err != nil {
		return Profile{}, err
	}
	return Profile{Customer: customer, Plan: plan, OpenRentals: len(rentals)}, nil
}

func (a *Accounts) Plans(ctx context.Context) ([]Plan, error) {
	return a.store.Plans(ctx)
}

// Rentals returns the customer's open rentals.
func (a *Accounts) Rentals(ctx context.Context, id CustomerID) ([]Rental, error) {
	if _, err := a.store.Customer(ctx, id); err != nil {
		return nil, err
	}
	return a.store.OpenRentals(ctx, id)
}
