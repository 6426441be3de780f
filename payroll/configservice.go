package payroll

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/citypets/timesheet-engine/generic"
)

// =============================================================================
// CONFIG SERVICE - Administrator writes to the configuration tables
// =============================================================================
//
// Every write is admin only, runs in one transaction and leaves a
// config_changed audit record. Entries already submitted keep their amount;
// new rates apply to later submissions and edits only.

type ConfigService struct {
	Store    TxStore
	Logger   *slog.Logger
	Now      func() time.Time
	Defaults map[RateKey]decimal.Decimal // seeded by GrantAccess
}

func NewConfigService(store TxStore, logger *slog.Logger) *ConfigService {
	return &ConfigService{Store: store, Logger: logger, Now: time.Now, Defaults: DefaultRates()}
}

func (s *ConfigService) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

func (s *ConfigService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// change runs fn in a transaction and audits it as a config change.
func (s *ConfigService) change(ctx context.Context, who Identity, what string, employee generic.EmployeeID, payload map[string]string, fn func(Store) error) error {
	if err := requireAdmin(who); err != nil {
		return err
	}
	err := s.Store.WithTx(ctx, func(tx Store) error {
		if err := fn(tx); err != nil {
			return err
		}
		if payload == nil {
			payload = map[string]string{}
		}
		payload["change"] = what
		return generic.NewAuditTrail(tx).Record(ctx, generic.AuditEntry{
			Timestamp: s.now(),
			ActorID:   who.Actor(),
			Action:    generic.AuditConfigChanged,
			Employee:  employee,
			Payload:   payload,
		})
	})
	if err != nil {
		s.logger().Warn("config change rejected", "change", what, "employee", employee, "error", err)
		return err
	}
	s.logger().Info("config changed", "change", what, "employee", employee, "by", who.Actor())
	return nil
}

// Config returns the current snapshot. Readable by any identity; the API
// decides how much of it to show.
func (s *ConfigService) Config(ctx context.Context) (RateConfig, error) {
	return s.Store.LoadConfig(ctx)
}

// Export returns the whole configuration as a bundle. Every job type
// without an allow-list is listed as unrestricted, so importing the bundle
// elsewhere reproduces the same access rules.
func (s *ConfigService) Export(ctx context.Context) (Bundle, error) {
	var b Bundle
	err := s.Store.WithTx(ctx, func(tx Store) error {
		cfg, err := tx.LoadConfig(ctx)
		if err != nil {
			return err
		}
		if b.Profiles, err = tx.ListProfiles(ctx); err != nil {
			return err
		}
		if b.Holidays, err = tx.ListHolidays(ctx); err != nil {
			return err
		}
		b.Pets = cfg.Pets
		b.Access = cfg.Access
		b.Unrestricted = cfg.Access.UnrestrictedJobTypes()
		return nil
	})
	if err != nil {
		return Bundle{}, fmt.Errorf("export config: %w", err)
	}
	return b, nil
}

// =============================================================================
// PROFILES
// =============================================================================

// SetProfile replaces an employee's whole rate profile.
func (s *ConfigService) SetProfile(ctx context.Context, who Identity, p *EmployeeRateProfile) error {
	if p == nil {
		return &generic.InvalidReferenceError{Kind: "employee", Value: ""}
	}
	if err := p.Validate(); err != nil {
		return err
	}
	return s.change(ctx, who, "set_profile", p.Employee, nil, func(tx Store) error {
		return tx.SaveProfile(ctx, p.Clone())
	})
}

// SetRate sets one base rate, creating the profile if needed.
func (s *ConfigService) SetRate(ctx context.Context, who Identity, employee generic.EmployeeID, key RateKey, rate decimal.Decimal) error {
	if err := validateRate(key, rate); err != nil {
		return err
	}
	payload := map[string]string{"rate_key": string(key), "rate": rate.String()}
	return s.change(ctx, who, "set_rate", employee, payload, func(tx Store) error {
		p, err := profileOrNew(ctx, tx, employee)
		if err != nil {
			return err
		}
		p.Rates[key] = rate
		return tx.SaveProfile(ctx, p)
	})
}

// SetHolidayRate sets the holiday override of a holiday-eligible job type.
func (s *ConfigService) SetHolidayRate(ctx context.Context, who Identity, employee generic.EmployeeID, job JobType, rate decimal.Decimal) error {
	if !job.HolidayEligible() {
		return &generic.ConfigurationError{Employee: employee, RateKey: "holiday_rate_" + string(job), Reason: "holiday rates apply to hotel and overnight_hotel only"}
	}
	if rate.IsNegative() {
		return &generic.ConfigurationError{Employee: employee, RateKey: "holiday_rate_" + string(job), Reason: "negative rate"}
	}
	payload := map[string]string{"job_type": string(job), "holiday_rate": rate.String()}
	return s.change(ctx, who, "set_holiday_rate", employee, payload, func(tx Store) error {
		p, err := profileOrNew(ctx, tx, employee)
		if err != nil {
			return err
		}
		p.HolidayRates[job] = rate
		return tx.SaveProfile(ctx, p)
	})
}

// DeleteProfile removes an employee's profile. Their entries stay.
func (s *ConfigService) DeleteProfile(ctx context.Context, who Identity, employee generic.EmployeeID) error {
	return s.change(ctx, who, "delete_profile", employee, nil, func(tx Store) error {
		return tx.DeleteProfile(ctx, employee)
	})
}

func profileOrNew(ctx context.Context, tx Store, employee generic.EmployeeID) (*EmployeeRateProfile, error) {
	if employee == "" {
		return nil, &generic.InvalidReferenceError{Kind: "employee", Value: ""}
	}
	p, err := tx.GetProfile(ctx, employee)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return NewProfile(employee), nil
	}
	return p.Clone(), nil
}

func validateRate(key RateKey, rate decimal.Decimal) error {
	if !key.Valid() {
		return &generic.InvalidReferenceError{Kind: "rate_key", Value: string(key)}
	}
	if rate.IsNegative() {
		return &generic.ConfigurationError{RateKey: string(key), Reason: "negative rate"}
	}
	return nil
}

// =============================================================================
// PET OVERRIDES
// =============================================================================

func (s *ConfigService) SetPetRate(ctx context.Context, who Identity, pet generic.PetName, key RateKey, rate decimal.Decimal) error {
	if pet == "" {
		return &generic.InvalidReferenceError{Kind: "pet", Value: ""}
	}
	if err := validateRate(key, rate); err != nil {
		return err
	}
	payload := map[string]string{"pet": string(pet), "rate_key": string(key), "rate": rate.String()}
	return s.change(ctx, who, "set_pet_rate", "", payload, func(tx Store) error {
		return tx.SetPetRate(ctx, pet, key, rate)
	})
}

func (s *ConfigService) RemovePetRate(ctx context.Context, who Identity, pet generic.PetName, key RateKey) error {
	payload := map[string]string{"pet": string(pet), "rate_key": string(key)}
	return s.change(ctx, who, "remove_pet_rate", "", payload, func(tx Store) error {
		removed, err := tx.RemovePetRate(ctx, pet, key)
		if err != nil {
			return err
		}
		if !removed {
			return &generic.InvalidReferenceError{Kind: "pet_rate", Value: string(pet) + "/" + string(key)}
		}
		return nil
	})
}

// =============================================================================
// ACCESS POLICY
// =============================================================================

// SetRestriction replaces the allow-list of job.
func (s *ConfigService) SetRestriction(ctx context.Context, who Identity, job JobType, employees []generic.EmployeeID) error {
	if !job.Valid() {
		return &generic.InvalidReferenceError{Kind: "job_type", Value: string(job)}
	}
	payload := map[string]string{"job_type": string(job), "allowed": fmt.Sprint(employees)}
	return s.change(ctx, who, "set_restriction", "", payload, func(tx Store) error {
		return tx.SetRestriction(ctx, job, employees)
	})
}

// ClearRestriction makes job loggable by everyone.
func (s *ConfigService) ClearRestriction(ctx context.Context, who Identity, job JobType) error {
	if !job.Valid() {
		return &generic.InvalidReferenceError{Kind: "job_type", Value: string(job)}
	}
	payload := map[string]string{"job_type": string(job)}
	return s.change(ctx, who, "clear_restriction", "", payload, func(tx Store) error {
		return tx.ClearRestriction(ctx, job)
	})
}

// GrantAccess adds employee to the allow-list of a restricted job and seeds
// any rate the job needs that the profile lacks from Defaults. Granting an
// unrestricted job only seeds rates.
func (s *ConfigService) GrantAccess(ctx context.Context, who Identity, employee generic.EmployeeID, job JobType) error {
	if !job.Valid() {
		return &generic.InvalidReferenceError{Kind: "job_type", Value: string(job)}
	}
	payload := map[string]string{"job_type": string(job)}
	return s.change(ctx, who, "grant_access", employee, payload, func(tx Store) error {
		cfg, err := tx.LoadConfig(ctx)
		if err != nil {
			return err
		}
		if allowed, restricted := cfg.Access[job]; restricted && !cfg.Access.CanLog(employee, job) {
			next := append(append([]generic.EmployeeID(nil), allowed...), employee)
			if err := tx.SetRestriction(ctx, job, next); err != nil {
				return err
			}
		}

		p, err := profileOrNew(ctx, tx, employee)
		if err != nil {
			return err
		}
		seeded := false
		for _, key := range rateKeysOf(job) {
			if _, ok := p.Rates[key]; ok {
				continue
			}
			if def, ok := s.Defaults[key]; ok {
				p.Rates[key] = def
				payload["seeded_"+string(key)] = def.String()
				seeded = true
			}
		}
		if !seeded {
			return nil
		}
		return tx.SaveProfile(ctx, p)
	})
}

// RevokeAccess removes employee from job's allow-list. Revoking an
// unrestricted job restricts it to every other profiled employee. Rates are
// left in place.
func (s *ConfigService) RevokeAccess(ctx context.Context, who Identity, employee generic.EmployeeID, job JobType) error {
	if !job.Valid() {
		return &generic.InvalidReferenceError{Kind: "job_type", Value: string(job)}
	}
	payload := map[string]string{"job_type": string(job)}
	return s.change(ctx, who, "revoke_access", employee, payload, func(tx Store) error {
		cfg, err := tx.LoadConfig(ctx)
		if err != nil {
			return err
		}
		var base []generic.EmployeeID
		if allowed, restricted := cfg.Access[job]; restricted {
			base = allowed
		} else {
			profiles, err := tx.ListProfiles(ctx)
			if err != nil {
				return err
			}
			for _, p := range profiles {
				base = append(base, p.Employee)
			}
		}
		next := make([]generic.EmployeeID, 0, len(base))
		for _, e := range base {
			if e != employee {
				next = append(next, e)
			}
		}
		return tx.SetRestriction(ctx, job, next)
	})
}

// =============================================================================
// HOLIDAYS
// =============================================================================

// AddHoliday adds a date. Adding a date twice is a no-op.
func (s *ConfigService) AddHoliday(ctx context.Context, who Identity, date generic.TimePoint) error {
	if date.IsZero() {
		return &generic.InvalidQuantityError{Field: "date", Reason: "required"}
	}
	payload := map[string]string{"date": date.String()}
	return s.change(ctx, who, "add_holiday", "", payload, func(tx Store) error {
		_, err := tx.AddHoliday(ctx, date)
		return err
	})
}

func (s *ConfigService) RemoveHoliday(ctx context.Context, who Identity, date generic.TimePoint) error {
	payload := map[string]string{"date": date.String()}
	return s.change(ctx, who, "remove_holiday", "", payload, func(tx Store) error {
		removed, err := tx.RemoveHoliday(ctx, date)
		if err != nil {
			return err
		}
		if !removed {
			return &generic.InvalidReferenceError{Kind: "holiday", Value: date.String()}
		}
		return nil
	})
}

// =============================================================================
// IMPORT
// =============================================================================

// ImportResult counts what an import wrote.
type ImportResult struct {
	Profiles     int
	PetRates     int
	Restrictions int
	Unrestricted int
	Holidays     int
}

// Import merges a bundle into the store in one transaction: profiles are
// replaced, pet rates and restrictions are set, the allow-lists of
// Unrestricted job types are lifted, holidays are added. Any invalid
// profile aborts the whole import.
func (s *ConfigService) Import(ctx context.Context, who Identity, b Bundle) (ImportResult, error) {
	for _, p := range b.Profiles {
		if err := p.Validate(); err != nil {
			return ImportResult{}, err
		}
	}
	for pet, rates := range b.Pets {
		for key, rate := range rates {
			if err := validateRate(key, rate); err != nil {
				return ImportResult{}, fmt.Errorf("pet %s: %w", pet, err)
			}
		}
	}
	for job := range b.Access {
		if !job.Valid() {
			return ImportResult{}, &generic.InvalidReferenceError{Kind: "job_type", Value: string(job)}
		}
	}
	for _, job := range b.Unrestricted {
		if !job.Valid() {
			return ImportResult{}, &generic.InvalidReferenceError{Kind: "job_type", Value: string(job)}
		}
		if b.Access.Restricted(job) {
			return ImportResult{}, fmt.Errorf("job type %s is both restricted and unrestricted: %w", job, generic.ErrConfiguration)
		}
	}

	var res ImportResult
	payload := map[string]string{}
	err := s.change(ctx, who, "import", "", payload, func(tx Store) error {
		res = ImportResult{}
		for _, p := range b.Profiles {
			if err := tx.SaveProfile(ctx, p.Clone()); err != nil {
				return err
			}
			res.Profiles++
		}
		for _, pet := range b.Pets.Pets() {
			for key, rate := range b.Pets[pet] {
				if err := tx.SetPetRate(ctx, pet, key, rate); err != nil {
					return err
				}
				res.PetRates++
			}
		}
		for job, allowed := range b.Access {
			if err := tx.SetRestriction(ctx, job, allowed); err != nil {
				return err
			}
			res.Restrictions++
		}
		for _, job := range b.Unrestricted {
			if err := tx.ClearRestriction(ctx, job); err != nil {
				return err
			}
			res.Unrestricted++
		}
		for _, d := range b.Holidays {
			added, err := tx.AddHoliday(ctx, d)
			if err != nil {
				return err
			}
			if added {
				res.Holidays++
			}
		}
		payload["profiles"] = fmt.Sprint(res.Profiles)
		payload["pet_rates"] = fmt.Sprint(res.PetRates)
		payload["restrictions"] = fmt.Sprint(res.Restrictions)
		payload["unrestricted"] = fmt.Sprint(res.Unrestricted)
		payload["holidays"] = fmt.Sprint(res.Holidays)
		return nil
	})
	if err != nil {
		return ImportResult{}, err
	}
	return res, nil
}
