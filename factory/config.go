/*
Package factory provides JSON to Go configuration conversion.

PURPOSE:
  Converts the four JSON configuration records (employee rate profiles,
  pet overrides, job type restrictions, holiday dates) into payroll types.
  Admins keep these files under version control and import them in bulk;
  the factory is the only place that understands their legacy spellings.

JSON SCHEMA:
  {
    "employees": {
      "ROXANA": {
        "hotel": 25, "walk": 25, "overnight_hotel": 90,
        "pet_sitting_hourly": 17, "overnight_pet_sitting": 140,
        "holiday_rate_hotel": 30,
        "holiday_rate_overnight_hotel_hotel": 100
      }
    },
    "pet_rates":    {"Burek": {"walk": 40}},
    "restrictions": {"training": ["ROXANA"], "management": "all"},
    "holidays":     ["2025-12-25", "2025-12-26"]
  }

KEY ALIASES:
  pet_sitting_hourly                  -> pet_sitting
  holiday_rate_overnight_hotel_hotel  -> holiday_rate_overnight_hotel
  holiday_rate_<job> for any job other than hotel and overnight_hotel is
  ignored and reported as a warning; it is never applied.

ERRORS:
  Unknown keys, job types and malformed dates are InvalidReferenceErrors.
  Negative rates are ConfigurationErrors.

SEE ALSO:
  - payroll/store.go: Bundle
  - payroll/configservice.go: Import
*/
package factory

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/citypets/timesheet-engine/generic"
	"github.com/citypets/timesheet-engine/payroll"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// RatesJSON is one flat map of rate key to rate.
type RatesJSON map[string]decimal.Decimal

// BundleJSON is the JSON representation of a full configuration.
type BundleJSON struct {
	Employees    map[string]RatesJSON `json:"employees"`
	PetRates     map[string]RatesJSON `json:"pet_rates"`
	Restrictions json.RawMessage      `json:"restrictions,omitempty"`
	Holidays     json.RawMessage      `json:"holidays,omitempty"`
}

const (
	holidayPrefix = "holiday_rate_"
	aliasHourly   = "pet_sitting_hourly"
	restrictAll   = "all"
)

// Warnings collects keys that were accepted but not applied.
type Warnings []string

func (w *Warnings) add(format string, args ...any) {
	*w = append(*w, fmt.Sprintf(format, args...))
}

// =============================================================================
// PROFILES
// =============================================================================

// ParseProfile builds a profile from a flat rate map.
func ParseProfile(employee string, rates RatesJSON) (*payroll.EmployeeRateProfile, Warnings, error) {
	name := strings.TrimSpace(employee)
	if name == "" {
		return nil, nil, &generic.InvalidReferenceError{Kind: "employee", Value: employee}
	}
	p := payroll.NewProfile(generic.EmployeeID(name))
	var warn Warnings

	for _, raw := range sortedKeys(rates) {
		rate := rates[raw]
		if rest, ok := strings.CutPrefix(raw, holidayPrefix); ok {
			job := normalizeHolidayJob(rest)
			if !job.Valid() {
				return nil, warn, &generic.InvalidReferenceError{Kind: "rate_key", Value: raw}
			}
			if !job.HolidayEligible() {
				warn.add("%s: %s ignored, holiday rates apply to hotel and overnight_hotel only", name, raw)
				continue
			}
			p.HolidayRates[job] = rate
			continue
		}
		key, err := parseRateKey(raw)
		if err != nil {
			return nil, warn, err
		}
		p.Rates[key] = rate
	}

	if err := p.Validate(); err != nil {
		return nil, warn, err
	}
	return p, warn, nil
}

// ParseEmployees parses {"NAME": {rates}} into profiles in name order.
func ParseEmployees(data []byte) ([]*payroll.EmployeeRateProfile, Warnings, error) {
	var raw map[string]RatesJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, nil, fmt.Errorf("invalid employees JSON: %w", err)
	}
	return parseEmployees(raw)
}

func parseEmployees(raw map[string]RatesJSON) ([]*payroll.EmployeeRateProfile, Warnings, error) {
	var (
		out  []*payroll.EmployeeRateProfile
		warn Warnings
	)
	for _, name := range sortedKeys(raw) {
		p, w, err := ParseProfile(name, raw[name])
		warn = append(warn, w...)
		if err != nil {
			return nil, warn, fmt.Errorf("employee %s: %w", name, err)
		}
		out = append(out, p)
	}
	return out, warn, nil
}

// normalizeHolidayJob maps the suffix of a holiday key to its job type.
func normalizeHolidayJob(s string) payroll.JobType {
	if s == "overnight_hotel_hotel" {
		return payroll.JobOvernightHotel
	}
	return payroll.JobType(s)
}

func parseRateKey(s string) (payroll.RateKey, error) {
	if s == aliasHourly {
		return payroll.RateKeyFor(payroll.JobPetSitting), nil
	}
	return payroll.ParseRateKey(s)
}

// =============================================================================
// PET OVERRIDES
// =============================================================================

// ParsePetRates parses {"pet": {rates}}. Holiday keys make no sense for a
// pet and are rejected.
func ParsePetRates(data []byte) (payroll.PetRateTable, error) {
	var raw map[string]RatesJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid pet rates JSON: %w", err)
	}
	return parsePetRates(raw)
}

func parsePetRates(raw map[string]RatesJSON) (payroll.PetRateTable, error) {
	table := make(payroll.PetRateTable)
	for pet, rates := range raw {
		name := strings.TrimSpace(pet)
		if name == "" {
			return nil, &generic.InvalidReferenceError{Kind: "pet", Value: pet}
		}
		for raw, rate := range rates {
			key, err := parseRateKey(raw)
			if err != nil {
				return nil, fmt.Errorf("pet %s: %w", name, err)
			}
			if rate.IsNegative() {
				return nil, &generic.ConfigurationError{RateKey: string(key), Reason: "negative pet rate for " + name}
			}
			table.Set(generic.PetName(name), key, rate)
		}
	}
	return table, nil
}

// =============================================================================
// RESTRICTIONS
// =============================================================================

// ParseRestrictions parses {"job_type": ["NAME", ...] | "all"}. Job types
// marked "all" are returned as unrestricted, in name order, so an import
// can lift an allow-list that is already stored.
func ParseRestrictions(data []byte) (payroll.AccessPolicy, []payroll.JobType, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, nil, fmt.Errorf("invalid restrictions JSON: %w", err)
	}
	policy := make(payroll.AccessPolicy)
	var unrestricted []payroll.JobType
	for _, jobName := range sortedKeys(raw) {
		job, err := payroll.ParseJobType(jobName)
		if err != nil {
			return nil, nil, err
		}
		value := raw[jobName]
		var all string
		if err := json.Unmarshal(value, &all); err == nil {
			if all != restrictAll {
				return nil, nil, fmt.Errorf("restriction for %s: want a list or %q, got %q", jobName, restrictAll, all)
			}
			unrestricted = append(unrestricted, job)
			continue
		}
		var names []string
		if err := json.Unmarshal(value, &names); err != nil {
			return nil, nil, fmt.Errorf("restriction for %s: %w", jobName, err)
		}
		allowed := make([]generic.EmployeeID, 0, len(names))
		for _, n := range names {
			if n = strings.TrimSpace(n); n != "" {
				allowed = append(allowed, generic.EmployeeID(n))
			}
		}
		policy[job] = allowed
	}
	return policy, unrestricted, nil
}

// =============================================================================
// HOLIDAYS
// =============================================================================

// ParseHolidays accepts either ["YYYY-MM-DD", ...] or
// {"holiday_dates": [...]}. Duplicates are dropped; the result is sorted.
func ParseHolidays(data []byte) ([]generic.TimePoint, error) {
	var list []string
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var wrapped struct {
			HolidayDates []string `json:"holiday_dates"`
		}
		if err := json.Unmarshal(trimmed, &wrapped); err != nil {
			return nil, fmt.Errorf("invalid holidays JSON: %w", err)
		}
		list = wrapped.HolidayDates
	} else if err := json.Unmarshal(trimmed, &list); err != nil {
		return nil, fmt.Errorf("invalid holidays JSON: %w", err)
	}

	set := generic.NewHolidaySet()
	for _, s := range list {
		d, err := generic.ParseDate(strings.TrimSpace(s))
		if err != nil {
			return nil, &generic.InvalidReferenceError{Kind: "holiday", Value: s}
		}
		set.Add(d)
	}
	return set.Dates(), nil
}

// =============================================================================
// BUNDLE
// =============================================================================

// ParseBundle parses a full configuration for import.
func ParseBundle(data []byte) (payroll.Bundle, Warnings, error) {
	var raw BundleJSON
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&raw); err != nil {
		return payroll.Bundle{}, nil, fmt.Errorf("invalid bundle JSON: %w", err)
	}

	var b payroll.Bundle
	profiles, warn, err := parseEmployees(raw.Employees)
	if err != nil {
		return b, warn, err
	}
	b.Profiles = profiles

	if b.Pets, err = parsePetRates(raw.PetRates); err != nil {
		return b, warn, err
	}
	if len(raw.Restrictions) > 0 {
		if b.Access, b.Unrestricted, err = ParseRestrictions(raw.Restrictions); err != nil {
			return b, warn, err
		}
	}
	if len(raw.Holidays) > 0 {
		if b.Holidays, err = ParseHolidays(raw.Holidays); err != nil {
			return b, warn, err
		}
	}
	return b, warn, nil
}

// MarshalBundle renders a bundle in the same schema ParseBundle reads,
// using canonical keys.
func MarshalBundle(b payroll.Bundle) ([]byte, error) {
	out := struct {
		Employees    map[string]RatesJSON `json:"employees"`
		PetRates     map[string]RatesJSON `json:"pet_rates"`
		Restrictions map[string]any       `json:"restrictions"`
		Holidays     []string             `json:"holidays"`
	}{
		Employees:    make(map[string]RatesJSON),
		PetRates:     make(map[string]RatesJSON),
		Restrictions: make(map[string]any),
		Holidays:     []string{},
	}
	for _, p := range b.Profiles {
		rates := make(RatesJSON)
		for k, r := range p.Rates {
			rates[string(k)] = r
		}
		for j, r := range p.HolidayRates {
			rates[holidayPrefix+string(j)] = r
		}
		out.Employees[string(p.Employee)] = rates
	}
	for pet, rates := range b.Pets {
		m := make(RatesJSON)
		for k, r := range rates {
			m[string(k)] = r
		}
		out.PetRates[string(pet)] = m
	}
	for j, allowed := range b.Access {
		names := make([]string, 0, len(allowed))
		for _, e := range allowed {
			names = append(names, string(e))
		}
		out.Restrictions[string(j)] = names
	}
	for _, j := range b.Unrestricted {
		out.Restrictions[string(j)] = restrictAll
	}
	for _, d := range b.Holidays {
		out.Holidays = append(out.Holidays, d.String())
	}
	return json.MarshalIndent(out, "", "  ")
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
