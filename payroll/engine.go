package payroll

import (
	"strings"

	"github.com/citypets/timesheet-engine/generic"
)

// Submission is the raw input of one unit of work.
type Submission struct {
	Employee    generic.EmployeeID
	Job         JobType
	Date        generic.TimePoint
	Pet         generic.PetName
	Quantity    Quantity
	Description string
}

// SplitStay cuts a pet-sitting stay into consecutive day segments: full
// PetSittingDay segments on successive dates, then the remainder. Each
// segment is priced on its own, so a short tail is billed hourly. Stays
// within one day come back as a single segment.
func SplitStay(sub Submission) []Submission {
	if !sub.Quantity.Hours.IsPositive() {
		return []Submission{sub}
	}
	var segments []Submission
	remaining := sub.Quantity.Hours
	date := sub.Date
	for remaining.GreaterThan(PetSittingDay) {
		seg := sub
		seg.Date = date
		seg.Quantity = Quantity{Hours: PetSittingDay}
		segments = append(segments, seg)
		remaining = remaining.Sub(PetSittingDay)
		date = date.AddDays(1)
	}
	seg := sub
	seg.Date = date
	seg.Quantity = Quantity{Hours: remaining}
	return append(segments, seg)
}

// Engine runs the pure pipeline: access gate, rate resolution, amount
// calculation. It holds no configuration of its own.
type Engine struct {
	Resolver *Resolver
}

func NewEngine() *Engine {
	return &Engine{Resolver: NewResolver()}
}

// Evaluate prices a submission against a configuration snapshot.
func (e *Engine) Evaluate(cfg RateConfig, s Submission) (Computation, error) {
	spec, ok := s.Job.Spec()
	if !ok {
		return Computation{}, &generic.InvalidReferenceError{Kind: "job_type", Value: string(s.Job)}
	}
	if err := (AccessGate{Policy: cfg.Access}).Check(s.Employee, s.Job); err != nil {
		return Computation{}, err
	}
	if err := validateSubmission(spec, s); err != nil {
		return Computation{}, err
	}
	if _, ok := cfg.Profile(s.Employee); !ok {
		return Computation{}, &generic.InvalidReferenceError{Kind: "employee", Value: string(s.Employee)}
	}

	resolver := e.Resolver
	if resolver == nil {
		resolver = NewResolver()
	}
	rates, err := resolver.Resolve(cfg, s.Employee, s.Job, s.Pet, s.Date)
	if err != nil {
		return Computation{}, err
	}
	return Compute(s.Job, rates, s.Quantity)
}

func validateSubmission(spec JobSpec, s Submission) error {
	if s.Employee == "" {
		return &generic.InvalidReferenceError{Kind: "employee", Value: ""}
	}
	if s.Date.IsZero() {
		return &generic.InvalidQuantityError{JobType: string(spec.Type), Field: "date", Reason: "work date is required"}
	}
	if spec.PetRequired && strings.TrimSpace(string(s.Pet)) == "" {
		return &generic.InvalidQuantityError{JobType: string(spec.Type), Field: "pet_name", Reason: "pet name is required"}
	}
	if spec.Type == JobExpense && strings.TrimSpace(s.Description) == "" {
		return &generic.InvalidQuantityError{JobType: string(spec.Type), Field: "description", Reason: "expenses need a description"}
	}
	return nil
}
