// Package payroll implements rate resolution, amount calculation, access
// gating and the payment lifecycle of timesheet entries.
package payroll

import (
	"sort"

	"github.com/citypets/timesheet-engine/generic"
)

// =============================================================================
// JOB TYPE
// =============================================================================

// JobType is a category of billable work. The set is fixed.
type JobType string

const (
	JobHotel          JobType = "hotel"
	JobOvernightHotel JobType = "overnight_hotel"
	JobWalk           JobType = "walk"
	JobCatVisit       JobType = "cat_visit"
	JobPetSitting     JobType = "pet_sitting"
	JobDogAtHome      JobType = "dog_at_home"
	JobCatAtHome      JobType = "cat_at_home"
	JobTransport      JobType = "transport"
	JobTraining       JobType = "training"
	JobManagement     JobType = "management"
	JobExpense        JobType = "expense"
)

// QuantityKind selects the arithmetic used for a job type.
type QuantityKind string

const (
	KindHourly        QuantityKind = "hourly"
	KindFixedDuration QuantityKind = "fixed_duration" // threshold-switched
	KindFixedAmount   QuantityKind = "fixed_amount"
	KindDistanceBased QuantityKind = "distance_based"
	KindExact         QuantityKind = "exact"
)

// JobSpec describes one job type.
type JobSpec struct {
	Type        JobType
	Name        string
	Kind        QuantityKind
	HolidayRate bool // may use a holiday override
	PetRequired bool // entry must name a pet
}

var jobSpecs = map[JobType]JobSpec{}

func register(spec JobSpec) { jobSpecs[spec.Type] = spec }

func init() {
	register(JobSpec{Type: JobHotel, Name: "Hotel (Hours)", Kind: KindHourly, HolidayRate: true})
	register(JobSpec{Type: JobOvernightHotel, Name: "Overnight Hotel", Kind: KindFixedAmount, HolidayRate: true})
	register(JobSpec{Type: JobWalk, Name: "Walk (Hours)", Kind: KindHourly, PetRequired: true})
	register(JobSpec{Type: JobCatVisit, Name: "Cat Visit", Kind: KindHourly, PetRequired: true})
	register(JobSpec{Type: JobPetSitting, Name: "Pet Sitting", Kind: KindFixedDuration, PetRequired: true})
	register(JobSpec{Type: JobDogAtHome, Name: "dog@home", Kind: KindHourly, PetRequired: true})
	register(JobSpec{Type: JobCatAtHome, Name: "cat@home", Kind: KindHourly, PetRequired: true})
	register(JobSpec{Type: JobTransport, Name: "Transport", Kind: KindDistanceBased})
	register(JobSpec{Type: JobTraining, Name: "Training (Hours)", Kind: KindHourly})
	register(JobSpec{Type: JobManagement, Name: "Management", Kind: KindHourly})
	register(JobSpec{Type: JobExpense, Name: "Expense (PLN)", Kind: KindExact})
}

// Spec returns the job type's description. ok is false for unknown types.
func (j JobType) Spec() (JobSpec, bool) {
	s, ok := jobSpecs[j]
	return s, ok
}

func (j JobType) Kind() QuantityKind { return jobSpecs[j].Kind }
func (j JobType) Valid() bool        { _, ok := jobSpecs[j]; return ok }
func (j JobType) String() string     { return string(j) }

// HolidayEligible reports whether a holiday override may apply.
func (j JobType) HolidayEligible() bool { return jobSpecs[j].HolidayRate }

// ParseJobType validates s against the fixed set.
func ParseJobType(s string) (JobType, error) {
	j := JobType(s)
	if !j.Valid() {
		return "", &generic.InvalidReferenceError{Kind: "job_type", Value: s}
	}
	return j, nil
}

// JobTypes lists every job type in name order.
func JobTypes() []JobSpec {
	out := make([]JobSpec, 0, len(jobSpecs))
	for _, s := range jobSpecs {
		out = append(out, s)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].Type < out[k].Type })
	return out
}

// =============================================================================
// RATE KEYS
// =============================================================================

// RateKey names one configurable rate. Every job type except expense is a
// rate key; pet sitting and transport carry a second one.
type RateKey string

const (
	RateOvernightPetSitting RateKey = "overnight_pet_sitting"
	RateTransportKm         RateKey = "transport_km"
)

// RateKeyFor is the base rate key of a job type.
func RateKeyFor(j JobType) RateKey { return RateKey(j) }

// ParseRateKey validates s as a configurable rate key.
func ParseRateKey(s string) (RateKey, error) {
	k := RateKey(s)
	if !k.Valid() {
		return "", &generic.InvalidReferenceError{Kind: "rate_key", Value: s}
	}
	return k, nil
}

func (k RateKey) Valid() bool {
	switch k {
	case RateOvernightPetSitting, RateTransportKm:
		return true
	}
	j := JobType(k)
	return j.Valid() && j != JobExpense
}

// HolidayEligible reports whether a holiday rate may be configured for k.
func (k RateKey) HolidayEligible() bool {
	return JobType(k).Valid() && JobType(k).HolidayEligible()
}

// RateKeys lists every configurable rate key.
func RateKeys() []RateKey {
	var out []RateKey
	for _, s := range JobTypes() {
		if s.Type != JobExpense {
			out = append(out, RateKeyFor(s.Type))
		}
	}
	out = append(out, RateOvernightPetSitting, RateTransportKm)
	sort.Slice(out, func(i, k int) bool { return out[i] < out[k] })
	return out
}
