/*
resolver.go - Rate resolution

PURPOSE:
  Turns (employee, job type, pet, work date) into the concrete rates the
  calculator needs. Precedence is modelled as an ordered chain of
  override providers; the first provider with a hit wins.

PRECEDENCE (highest first):
  1. Pet override     - the entry names a pet with a rate for this key.
                        Wins even on a holiday.
  2. Holiday override - work date is a holiday, the key is hotel or
                        overnight_hotel, and the profile has a holiday rate.
  3. Base rate        - the employee's configured rate.

  No hit at any tier is a ConfigurationError. Never zero.

RATE SETS:
  hourly / fixed amount  -> one rate (the job type's key)
  pet_sitting            -> pet_sitting (hourly) + overnight_pet_sitting (fixed)
  transport              -> transport (hourly) + transport_km (distance)
  expense                -> nothing; the declared value is the amount

  For the two-rate job types a missing component is only an error when
  the calculator actually needs it (a 4h pet sitting does not need the
  overnight rate). Resolution fails outright when neither resolves.

SEE ALSO:
  - calculator.go: Consumes RateSet
  - config.go: RateConfig snapshot
*/
package payroll

import (
	"github.com/shopspring/decimal"

	"github.com/citypets/timesheet-engine/generic"
)

// =============================================================================
// RATE SOURCES
// =============================================================================

type RateSource string

const (
	SourcePet     RateSource = "pet"
	SourceHoliday RateSource = "holiday"
	SourceBase    RateSource = "base"
	SourceExact   RateSource = "exact" // expense: no rate lookup
)

// ResolvedRate is one rate together with where it came from.
type ResolvedRate struct {
	Key    RateKey
	Rate   decimal.Decimal
	Source RateSource
}

// RateQuery is the context handed to every provider.
type RateQuery struct {
	Employee generic.EmployeeID
	Job      JobType
	Key      RateKey
	Pet      generic.PetName
	Date     generic.TimePoint
	Profile  *EmployeeRateProfile
	Config   RateConfig
}

// OverrideProvider is one tier of the precedence chain.
type OverrideProvider interface {
	Source() RateSource
	Lookup(q RateQuery) (decimal.Decimal, bool)
}

// PetOverride looks the rate up in the pet table.
type PetOverride struct{}

func (PetOverride) Source() RateSource { return SourcePet }

func (PetOverride) Lookup(q RateQuery) (decimal.Decimal, bool) {
	return q.Config.Pets.Lookup(q.Pet, q.Key)
}

// HolidayOverride applies the profile's holiday rate on holiday dates.
type HolidayOverride struct{}

func (HolidayOverride) Source() RateSource { return SourceHoliday }

func (HolidayOverride) Lookup(q RateQuery) (decimal.Decimal, bool) {
	if !q.Key.HolidayEligible() || !q.Config.isHoliday(q.Date) {
		return decimal.Zero, false
	}
	return q.Profile.HolidayRate(JobType(q.Key))
}

// BaseRate reads the employee's own rate.
type BaseRate struct{}

func (BaseRate) Source() RateSource { return SourceBase }

func (BaseRate) Lookup(q RateQuery) (decimal.Decimal, bool) {
	return q.Profile.Rate(q.Key)
}

// DefaultProviders is pet > holiday > base.
func DefaultProviders() []OverrideProvider {
	return []OverrideProvider{PetOverride{}, HolidayOverride{}, BaseRate{}}
}

// =============================================================================
// RATE SET
// =============================================================================

// RateSet holds the rates resolved for one entry.
type RateSet struct {
	Job   JobType
	rates map[RateKey]ResolvedRate
	// missing keeps the error for each component that did not resolve.
	missing map[RateKey]error
}

// Get returns the resolved rate for key.
func (rs RateSet) Get(key RateKey) (ResolvedRate, bool) {
	r, ok := rs.rates[key]
	return r, ok
}

// Need returns the resolved rate for key or the ConfigurationError that
// prevented it.
func (rs RateSet) Need(key RateKey) (ResolvedRate, error) {
	if r, ok := rs.rates[key]; ok {
		return r, nil
	}
	if err, ok := rs.missing[key]; ok {
		return ResolvedRate{}, err
	}
	return ResolvedRate{}, &generic.ConfigurationError{RateKey: string(key), Reason: "not part of the rate set"}
}

// Rates lists resolved rates in key order of the job type.
func (rs RateSet) Rates() []ResolvedRate {
	var out []ResolvedRate
	for _, k := range rateKeysOf(rs.Job) {
		if r, ok := rs.rates[k]; ok {
			out = append(out, r)
		}
	}
	return out
}

// NewRateSet builds a rate set from already-resolved rates.
func NewRateSet(job JobType, rates ...ResolvedRate) RateSet {
	rs := RateSet{Job: job, rates: make(map[RateKey]ResolvedRate), missing: make(map[RateKey]error)}
	for _, r := range rates {
		rs.rates[r.Key] = r
	}
	return rs
}

func rateKeysOf(j JobType) []RateKey {
	switch j {
	case JobExpense:
		return nil
	case JobPetSitting:
		return []RateKey{RateKeyFor(JobPetSitting), RateOvernightPetSitting}
	case JobTransport:
		return []RateKey{RateKeyFor(JobTransport), RateTransportKm}
	default:
		return []RateKey{RateKeyFor(j)}
	}
}

// =============================================================================
// RESOLVER
// =============================================================================

// Resolver walks its providers in order for every rate key of a job type.
type Resolver struct {
	Providers []OverrideProvider
}

func NewResolver() *Resolver {
	return &Resolver{Providers: DefaultProviders()}
}

// Resolve returns the effective rates for one entry.
func (r *Resolver) Resolve(cfg RateConfig, employee generic.EmployeeID, job JobType, pet generic.PetName, date generic.TimePoint) (RateSet, error) {
	if !job.Valid() {
		return RateSet{}, &generic.InvalidReferenceError{Kind: "job_type", Value: string(job)}
	}
	rs := NewRateSet(job)
	if job == JobExpense {
		return rs, nil
	}

	profile, ok := cfg.Profile(employee)
	if !ok {
		return RateSet{}, &generic.InvalidReferenceError{Kind: "employee", Value: string(employee)}
	}

	var firstErr error
	for _, key := range rateKeysOf(job) {
		q := RateQuery{
			Employee: employee,
			Job:      job,
			Key:      key,
			Pet:      pet,
			Date:     date,
			Profile:  profile,
			Config:   cfg,
		}
		resolved, ok := r.lookup(q)
		if !ok {
			err := &generic.ConfigurationError{Employee: employee, RateKey: string(key), Reason: "no pet, holiday or base rate"}
			rs.missing[key] = err
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		rs.rates[key] = resolved
	}
	if len(rs.rates) == 0 {
		return RateSet{}, firstErr
	}
	return rs, nil
}

func (r *Resolver) lookup(q RateQuery) (ResolvedRate, bool) {
	providers := r.Providers
	if len(providers) == 0 {
		providers = DefaultProviders()
	}
	for _, p := range providers {
		if rate, ok := p.Lookup(q); ok {
			return ResolvedRate{Key: q.Key, Rate: rate, Source: p.Source()}, true
		}
	}
	return ResolvedRate{}, false
}
