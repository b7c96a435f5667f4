/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication, decoupling the domain
  types in rental/ and catalog/ from the wire contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/warp/videostore/catalog"
	"github.com/warp/videostore/rental"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

type LoginRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

type RentRequest struct {
	MovieID int64 `json:"movie_id"`
}

type ChoosePlanRequest struct {
	PlanID int64 `json:"plan_id"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

type LoginDTO struct {
	CustomerID int64  `json:"customer_id"`
	Name       string `json:"name"`
}

type PlanDTO struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	MaxRentals int    `json:"max_rentals"`
	Price      string `json:"price"`
}

type ProfileDTO struct {
	ID          int64   `json:"id"`
	Login       string  `json:"login"`
	Name        string  `json:"name"`
	Plan        PlanDTO `json:"plan"`
	OpenRentals int     `json:"open_rentals"`
	Remaining   int     `json:"remaining"`
	Greeting    string  `json:"greeting"`
}

type RentalDTO struct {
	ID        string `json:"id"`
	MovieID   int64  `json:"movie_id"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
}

// OutcomeDTO is the body of every Rent, Return and ChoosePlan response.
type OutcomeDTO struct {
	Outcome string `json:"outcome"`
	Message string `json:"message,omitempty"`
	Count   int    `json:"count,omitempty"`
}

type ListingDTO struct {
	ID        int64    `json:"id"`
	Name      string   `json:"name"`
	Year      int      `json:"year"`
	Directors []string `json:"directors"`
	Actors    []string `json:"actors"`
	Status    string   `json:"status"`
}

type ViolationDTO struct {
	Kind       string `json:"kind"`
	MovieID    int64  `json:"movie_id,omitempty"`
	CustomerID int64  `json:"customer_id,omitempty"`
	Count      int    `json:"count"`
	Limit      int    `json:"limit"`
	Message    string `json:"message"`
}

type AuditReportDTO struct {
	RanAt      string         `json:"ran_at,omitempty"`
	Duration   string         `json:"duration,omitempty"`
	Violations []ViolationDTO `json:"violations"`
	Error      string         `json:"error,omitempty"`
}

type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ErrorResponse represents an API error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toPlanDTO(p rental.Plan) PlanDTO {
	return PlanDTO{
		ID:         int64(p.ID),
		Name:       p.Name,
		MaxRentals: p.MaxRentals,
		Price:      p.Price.StringFixed(2),
	}
}

func toProfileDTO(p rental.Profile) ProfileDTO {
	return ProfileDTO{
		ID:          int64(p.Customer.ID),
		Login:       p.Customer.Login,
		Name:        p.Customer.Name(),
		Plan:        toPlanDTO(p.Plan),
		OpenRentals: p.OpenRentals,
		Remaining:   p.Remaining(),
		Greeting:    p.Greeting(),
	}
}

func toRentalDTO(r rental.Rental) RentalDTO {
	return RentalDTO{
		ID:        r.ID,
		MovieID:   int64(r.MovieID),
		Status:    string(r.Status),
		CreatedAt: r.CreatedAt.Format(time.RFC3339),
	}
}

func toOutcomeDTO(o rental.Outcome) OutcomeDTO {
	dto := OutcomeDTO{Outcome: string(o.Code), Message: o.Message()}
	if o.Code == rental.OutcomeMustReturnFirst {
		dto.Count = o.Count
	}
	return dto
}

func toListingDTO(l catalog.Listing) ListingDTO {
	dto := ListingDTO{
		ID:        int64(l.Movie.ID),
		Name:      l.Movie.Name,
		Year:      l.Movie.Year,
		Directors: make([]string, len(l.Directors)),
		Actors:    make([]string, len(l.Actors)),
		Status:    string(l.Status),
	}
	for i, d := range l.Directors {
		dto.Directors[i] = d.String()
	}
	for i, a := range l.Actors {
		dto.Actors[i] = a.String()
	}
	return dto
}

func toAuditReportDTO(r AuditReport) AuditReportDTO {
	dto := AuditReportDTO{Violations: make([]ViolationDTO, len(r.Violations))}
	if !r.RanAt.IsZero() {
		dto.RanAt = r.RanAt.Format(time.RFC3339)
		dto.Duration = r.Duration.String()
	}
	if r.Err != nil {
		dto.Error = r.Err.Error()
	}
	for i, v := range r.Violations {
		dto.Violations[i] = ViolationDTO{
			Kind:       string(v.Kind),
			MovieID:    int64(v.MovieID),
			CustomerID: int64(v.CustomerID),
			Count:      v.Count,
			Limit:      v.Limit,
			Message:    v.String(),
		}
	}
	return dto
}
