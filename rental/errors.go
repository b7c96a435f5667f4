/*
errors.go - Error types for the rental core

ERROR CATEGORIES:
  1. Store errors - query failures, lost connections, serialization conflicts.
     These abort the transaction and are returned as Go errors.
  2. Lookup errors - missing customer or plan rows that should exist.
  3. Session errors - bad credentials.

  Business-rule rejections are NOT errors. See outcome.go.

USAGE:
    outcome, err := core.Rent(ctx, cid, mid)
    if rental.IsRetryable(err) {
        // serialization conflict, caller may re-run
    }
*/
package rental

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrCustomerNotFound is returned when the customer id has no row.
	ErrCustomerNotFound = errors.New("customer not found")

	// ErrPlanNotFound is returned when a plan lookup outside ChoosePlan misses.
	ErrPlanNotFound = errors.New("plan not found")

	// ErrInvalidCredentials is returned by Login for an unknown login or a
	// password that does not match.
	ErrInvalidCredentials = errors.New("invalid login or password")

	// ErrSerializationConflict is returned when the store aborted the
	// transaction to keep it serializable. Safe to retry.
	ErrSerializationConflict = errors.New("serialization conflict")

	// ErrMovieAlreadyRented is returned by InsertRental when the storage layer
	// rejects a second open rental for the same movie.
	ErrMovieAlreadyRented = errors.New("movie already has an open rental")

	// ErrStore wraps any other failure of the backing store.
	ErrStore = errors.New("store failure")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// StoreError records which store call failed inside a Core operation.
type StoreError struct {
	Op  string // "rent", "return", "choose_plan"
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() []error {
	return []error{ErrStore, e.Err}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if re-running the operation might succeed.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrSerializationConflict)
}

// IsNotFound returns true if the error indicates a missing row.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrCustomerNotFound) ||
		errors.Is(err, ErrPlanNotFound)
}

// IsClientError returns true if the error is due to caller input.
func IsClientError(err error) bool {
	return IsNotFound(err) || errors.Is(err, ErrInvalidCredentials)
}
