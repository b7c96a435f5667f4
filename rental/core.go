/*
core.go - Rent, Return and ChoosePlan

PURPOSE:
  The only code that opens multi-statement transactions. Each operation is a
  single WithTx call: read current state, evaluate invariants, then either
  write and commit or reject and roll back.

DECISION ORDER FOR RENT:
  1. open rentals >= plan max        -> AtCapacity
  2. movie held by this customer     -> AlreadyRenting
  3. movie held by someone else      -> RentedByOther
  4. movie not in the catalog        -> InvalidMovie
  5. otherwise insert an open rental -> Success

CHOOSE PLAN:
  The new plan id is written first, then the open-rental count is compared
  against the new maximum. If the customer is over, the transaction is rolled
  back, which undoes the write.

CONCURRENCY:
  The one-renter and capacity rules hold under concurrent sessions only if
  the store runs WithTx at SERIALIZABLE isolation. Two Rent calls for the same movie are
  linearized by the store; the loser sees the winner's rental or gets
  ErrSerializationConflict. The Core never retries; see Retry in retry.go.

SEE ALSO:
  - store.go: LedgerTx / LedgerStore
  - outcome.go: Outcome codes and messages
*/
package rental

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// CORE
// =============================================================================

// Core runs the consistency-critical operations against a LedgerStore.
// Safe for concurrent use; all shared state lives in the store.
type Core struct {
	store LedgerStore
	log   *slog.Logger
	now   Clock
}

type Option func(*Core)

func WithLogger(l *slog.Logger) Option {
	return func(c *Core) {
		if l != nil {
			c.log = l
		}
	}
}

func WithClock(clock Clock) Option {
	return func(c *Core) {
		if clock != nil {
			c.now = clock
		}
	}
}

func NewCore(store LedgerStore, opts ...Option) *Core {
	c := &Core{
		store: store,
		log:   slog.Default(),
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// =============================================================================
// OPERATIONS
// =============================================================================

// Rent creates an open rental of movieID for customerID.
func (c *Core) Rent(ctx context.Context, customerID CustomerID, movieID MovieID) (Outcome, error) {
	err := c.store.WithTx(ctx, func(tx LedgerTx) error {
		planID, err := tx.SubscriptionID(ctx, customerID)
		if err != nil {
			return err
		}
		limit, found, err := tx.MaxRentals(ctx, planID)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("customer %d is on plan %d: %w", customerID, planID, ErrPlanNotFound)
		}
		count, err := tx.OpenRentalCount(ctx, customerID)
		if err != nil {
			return err
		}
		renter, err := tx.Renter(ctx, movieID)
		if err != nil {
			return err
		}

		switch {
		case count >= limit:
			return reject(AtCapacity)
		case renter == customerID:
			return reject(AlreadyRenting)
		case renter != NoCustomer:
			return reject(RentedByOther)
		}

		valid, err := tx.IsValidMovie(ctx, movieID)
		if err != nil {
			return err
		}
		if !valid {
			return reject(InvalidMovie)
		}

		err = tx.InsertRental(ctx, Rental{
			ID:         uuid.NewString(),
			MovieID:    movieID,
			CustomerID: customerID,
			Status:     StatusOpen,
			CreatedAt:  c.now(),
		})
		if errors.Is(err, ErrMovieAlreadyRented) {
			return reject(RentedByOther)
		}
		return err
	})
	return c.finish(ctx, "rent", customerID, int64(movieID), err)
}

// Return closes the customer's open rental of movieID.
func (c *Core) Return(ctx context.Context, customerID CustomerID, movieID MovieID) (Outcome, error) {
	err := c.store.WithTx(ctx, func(tx LedgerTx) error {
		held, err := tx.OpenRentalMovieIDs(ctx, customerID)
		if err != nil {
			return err
		}
		if !slices.Contains(held, movieID) {
			return reject(NotRenting)
		}
		return tx.CloseRental(ctx, movieID, customerID)
	})
	return c.finish(ctx, "return", customerID, int64(movieID), err)
}

// ChoosePlan moves the customer to planID unless they hold more rentals
// than the new plan allows.
func (c *Core) ChoosePlan(ctx context.Context, customerID CustomerID, planID PlanID) (Outcome, error) {
	err := c.store.WithTx(ctx, func(tx LedgerTx) error {
		limit, found, err := tx.MaxRentals(ctx, planID)
		if err != nil {
			return err
		}
		if !found {
			return reject(InvalidPlan)
		}

		// Tentative write, undone by rollback below if over the limit.
		if err := tx.UpdateSubscription(ctx, customerID, planID); err != nil {
			return err
		}
		count, err := tx.OpenRentalCount(ctx, customerID)
		if err != nil {
			return err
		}
		if count > limit {
			return reject(MustReturnFirst(count - limit))
		}
		return nil
	})
	return c.finish(ctx, "choose_plan", customerID, int64(planID), err)
}

// finish turns the WithTx result into the operation's return values.
func (c *Core) finish(ctx context.Context, op string, customerID CustomerID, target int64, err error) (Outcome, error) {
	if err == nil {
		c.log.InfoContext(ctx, "committed", "op", op, "customer_id", customerID, "target", target)
		return Success, nil
	}

	var rej *rejection
	if errors.As(err, &rej) {
		c.log.DebugContext(ctx, "rolled back", "op", op, "customer_id", customerID, "target", target,
			"outcome", rej.outcome.String())
		return rej.outcome, nil
	}

	if IsNotFound(err) {
		return Outcome{}, fmt.Errorf("%s: %w", op, err)
	}

	c.log.ErrorContext(ctx, "store failure", "op", op, "customer_id", customerID, "target", target,
		"error", err)
	return Outcome{}, &StoreError{Op: op, Err: err}
}
