package payroll

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/citypets/timesheet-engine/generic"
)

// =============================================================================
// EMPLOYEE RATE PROFILE
// =============================================================================

// EmployeeRateProfile is one employee's pricing configuration.
//
// A job type the employee may log must have a base rate here. A missing
// rate is a configuration error, never zero pay.
type EmployeeRateProfile struct {
	Employee     generic.EmployeeID
	Rates        map[RateKey]decimal.Decimal
	HolidayRates map[JobType]decimal.Decimal // hotel and overnight_hotel only
}

func NewProfile(employee generic.EmployeeID) *EmployeeRateProfile {
	return &EmployeeRateProfile{
		Employee:     employee,
		Rates:        make(map[RateKey]decimal.Decimal),
		HolidayRates: make(map[JobType]decimal.Decimal),
	}
}

// Rate returns the base rate for key.
func (p *EmployeeRateProfile) Rate(key RateKey) (decimal.Decimal, bool) {
	if p == nil {
		return decimal.Zero, false
	}
	r, ok := p.Rates[key]
	return r, ok
}

// HolidayRate returns the holiday override for j.
func (p *EmployeeRateProfile) HolidayRate(j JobType) (decimal.Decimal, bool) {
	if p == nil {
		return decimal.Zero, false
	}
	r, ok := p.HolidayRates[j]
	return r, ok
}

// Validate checks rate keys and signs.
func (p *EmployeeRateProfile) Validate() error {
	if p.Employee == "" {
		return &generic.InvalidReferenceError{Kind: "employee", Value: ""}
	}
	for k, r := range p.Rates {
		if !k.Valid() {
			return &generic.InvalidReferenceError{Kind: "rate_key", Value: string(k)}
		}
		if r.IsNegative() {
			return fmt.Errorf("rate %s for %s is negative: %w", k, p.Employee, generic.ErrConfiguration)
		}
	}
	for j, r := range p.HolidayRates {
		if !j.HolidayEligible() {
			return fmt.Errorf("holiday rate not allowed for %s: %w", j, generic.ErrConfiguration)
		}
		if r.IsNegative() {
			return fmt.Errorf("holiday rate %s for %s is negative: %w", j, p.Employee, generic.ErrConfiguration)
		}
	}
	return nil
}

// Clone returns a deep copy.
func (p *EmployeeRateProfile) Clone() *EmployeeRateProfile {
	c := NewProfile(p.Employee)
	for k, v := range p.Rates {
		c.Rates[k] = v
	}
	for k, v := range p.HolidayRates {
		c.HolidayRates[k] = v
	}
	return c
}

// =============================================================================
// PET OVERRIDES
// =============================================================================

// PetRateTable maps a pet to rates that supersede every employee's rate.
type PetRateTable map[generic.PetName]map[RateKey]decimal.Decimal

func (t PetRateTable) Lookup(pet generic.PetName, key RateKey) (decimal.Decimal, bool) {
	if pet == "" {
		return decimal.Zero, false
	}
	r, ok := t[pet][key]
	return r, ok
}

// Set adds or replaces one override.
func (t PetRateTable) Set(pet generic.PetName, key RateKey, rate decimal.Decimal) {
	if t[pet] == nil {
		t[pet] = make(map[RateKey]decimal.Decimal)
	}
	t[pet][key] = rate
}

// Remove deletes one override and drops the pet once it has none left.
func (t PetRateTable) Remove(pet generic.PetName, key RateKey) bool {
	rates, ok := t[pet]
	if !ok {
		return false
	}
	if _, ok := rates[key]; !ok {
		return false
	}
	delete(rates, key)
	if len(rates) == 0 {
		delete(t, pet)
	}
	return true
}

// Pets lists the pets with overrides in name order.
func (t PetRateTable) Pets() []generic.PetName {
	out := make([]generic.PetName, 0, len(t))
	for p := range t {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// =============================================================================
// ACCESS POLICY
// =============================================================================

// AccessPolicy is an allow-list per job type. A job type absent from the map
// is unrestricted; an empty list means nobody may log it.
type AccessPolicy map[JobType][]generic.EmployeeID

// CanLog reports whether employee may log j.
func (a AccessPolicy) CanLog(employee generic.EmployeeID, j JobType) bool {
	allowed, restricted := a[j]
	if !restricted {
		return true
	}
	for _, e := range allowed {
		if e == employee {
			return true
		}
	}
	return false
}

// Restricted reports whether j has an allow-list.
func (a AccessPolicy) Restricted(j JobType) bool {
	_, ok := a[j]
	return ok
}

// UnrestrictedJobTypes lists the job types without an allow-list, in name order.
func (a AccessPolicy) UnrestrictedJobTypes() []JobType {
	var out []JobType
	for _, s := range JobTypes() {
		if !a.Restricted(s.Type) {
			out = append(out, s.Type)
		}
	}
	return out
}

// AllowedJobTypes lists what employee may log, in name order.
func (a AccessPolicy) AllowedJobTypes(employee generic.EmployeeID) []JobType {
	var out []JobType
	for _, s := range JobTypes() {
		if a.CanLog(employee, s.Type) {
			out = append(out, s.Type)
		}
	}
	return out
}

// =============================================================================
// RATE CONFIG - Snapshot passed into resolution
// =============================================================================

// RateConfig is a consistent snapshot of the four configuration tables.
// It is passed explicitly into every resolution; nothing is read from
// process-wide state.
type RateConfig struct {
	Profiles map[generic.EmployeeID]*EmployeeRateProfile
	Pets     PetRateTable
	Access   AccessPolicy
	Holidays generic.HolidayCalendar
}

// Profile returns the employee's profile.
func (c RateConfig) Profile(employee generic.EmployeeID) (*EmployeeRateProfile, bool) {
	p, ok := c.Profiles[employee]
	return p, ok
}

func (c RateConfig) isHoliday(d generic.TimePoint) bool {
	return c.Holidays != nil && c.Holidays.IsHoliday(d)
}
