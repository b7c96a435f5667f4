package rental

import "fmt"

// =============================================================================
// OUTCOME - Result of a Core operation
// =============================================================================

// OutcomeCode discriminates the result of Rent, Return and ChoosePlan.
// Business-rule rejections are outcomes, not errors.
type OutcomeCode string

const (
	OutcomeSuccess         OutcomeCode = "success"
	OutcomeAtCapacity      OutcomeCode = "at_capacity"
	OutcomeAlreadyRenting  OutcomeCode = "already_renting"
	OutcomeRentedByOther   OutcomeCode = "rented_by_other"
	OutcomeInvalidMovie    OutcomeCode = "invalid_movie"
	OutcomeNotRenting      OutcomeCode = "not_renting"
	OutcomeMustReturnFirst OutcomeCode = "must_return_first"
	OutcomeInvalidPlan     OutcomeCode = "invalid_plan"
)

// Outcome is the discriminated result of a Core operation.
// Count is only meaningful for OutcomeMustReturnFirst.
type Outcome struct {
	Code  OutcomeCode
	Count int
}

var (
	Success        = Outcome{Code: OutcomeSuccess}
	AtCapacity     = Outcome{Code: OutcomeAtCapacity}
	AlreadyRenting = Outcome{Code: OutcomeAlreadyRenting}
	RentedByOther  = Outcome{Code: OutcomeRentedByOther}
	InvalidMovie   = Outcome{Code: OutcomeInvalidMovie}
	NotRenting     = Outcome{Code: OutcomeNotRenting}
	InvalidPlan    = Outcome{Code: OutcomeInvalidPlan}
)

// MustReturnFirst reports how many rentals have to be returned before a
// plan change can go through.
func MustReturnFirst(count int) Outcome {
	return Outcome{Code: OutcomeMustReturnFirst, Count: count}
}

func (o Outcome) OK() bool { return o.Code == OutcomeSuccess }

// Message is the user-facing text for the outcome. Empty on success.
func (o Outcome) Message() string {
	switch o.Code {
	case OutcomeSuccess:
		return ""
	case OutcomeAtCapacity:
		return "You have reached the maximum number of rentals for your plan."
	case OutcomeAlreadyRenting:
		return "You are already renting this movie."
	case OutcomeRentedByOther:
		return "This movie is currently rented by another person."
	case OutcomeInvalidMovie:
		return "Invalid movie id."
	case OutcomeNotRenting:
		return "You are not currently renting this movie."
	case OutcomeMustReturnFirst:
		noun := "Movies"
		if o.Count == 1 {
			noun = "Movie"
		}
		return fmt.Sprintf("You must return %d %s before switching to this plan.", o.Count, noun)
	case OutcomeInvalidPlan:
		return "Invalid plan id."
	default:
		return fmt.Sprintf("unknown outcome %q", o.Code)
	}
}

func (o Outcome) String() string {
	if o.Code == OutcomeMustReturnFirst {
		return fmt.Sprintf("%s(%d)", o.Code, o.Count)
	}
	return string(o.Code)
}

// rejection carries an Outcome out of a WithTx callback so the store rolls
// the transaction back. Never returned to callers of Core.
type rejection struct {
	outcome Outcome
}

func (r *rejection) Error() string { return "rejected: " + r.outcome.String() }

func reject(o Outcome) error { return &rejection{outcome: o} }
