package rental

import (
	"context"
	"fmt"
)

// =============================================================================
// AUDIT - After-the-fact invariant checks over the whole ledger
// =============================================================================

type ViolationKind string

const (
	// ViolationDoubleRental: a movie has more than one open rental.
	ViolationDoubleRental ViolationKind = "double_rental"
	// ViolationOverCapacity: a customer holds more than the plan allows.
	ViolationOverCapacity ViolationKind = "over_capacity"
)

// Violation is one broken invariant found by an audit pass.
type Violation struct {
	Kind       ViolationKind
	MovieID    MovieID    // double_rental
	CustomerID CustomerID // over_capacity
	Count      int        // open rentals found
	Limit      int        // allowed (1 for double_rental, plan max for over_capacity)
}

func (v Violation) String() string {
	switch v.Kind {
	case ViolationDoubleRental:
		return fmt.Sprintf("movie %d has %d open rentals", v.MovieID, v.Count)
	case ViolationOverCapacity:
		return fmt.Sprintf("customer %d holds %d rentals, plan allows %d", v.CustomerID, v.Count, v.Limit)
	default:
		return string(v.Kind)
	}
}

// Auditable stores can scan themselves for invariant violations.
type Auditable interface {
	FindViolations(ctx context.Context) ([]Violation, error)
}
