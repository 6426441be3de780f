// Package memory provides an in-memory payroll.TxStore for tests and demos.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/citypets/timesheet-engine/generic"
	"github.com/citypets/timesheet-engine/payroll"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu sync.RWMutex
	st state
}

var _ payroll.TxStore = (*Memory)(nil)

// state is everything a transaction may need to roll back.
type state struct {
	profiles map[generic.EmployeeID]*payroll.EmployeeRateProfile
	pets     payroll.PetRateTable
	access   payroll.AccessPolicy
	holidays map[string]generic.TimePoint
	entries  map[generic.EntryID]*payroll.Entry
	audit    []generic.AuditEntry
	keys     map[string]bool
}

func newState() state {
	return state{
		profiles: make(map[generic.EmployeeID]*payroll.EmployeeRateProfile),
		pets:     make(payroll.PetRateTable),
		access:   make(payroll.AccessPolicy),
		holidays: make(map[string]generic.TimePoint),
		entries:  make(map[generic.EntryID]*payroll.Entry),
		keys:     make(map[string]bool),
	}
}

func New() *Memory {
	return &Memory{st: newState()}
}

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (m *Memory) WithTx(ctx context.Context, fn func(payroll.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := m.st.clone()
	if err := fn(&m.st); err != nil {
		m.st = snap
		return err
	}
	return nil
}

// Reset drops everything.
func (m *Memory) Reset(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st = newState()
	return nil
}

func (s *state) clone() state {
	c := newState()
	for k, p := range s.profiles {
		c.profiles[k] = p.Clone()
	}
	for pet, rates := range s.pets {
		for k, r := range rates {
			c.pets.Set(pet, k, r)
		}
	}
	for j, allowed := range s.access {
		c.access[j] = append([]generic.EmployeeID{}, allowed...)
	}
	for k, d := range s.holidays {
		c.holidays[k] = d
	}
	for id, e := range s.entries {
		c.entries[id] = e.Clone()
	}
	c.audit = append([]generic.AuditEntry{}, s.audit...)
	for k, v := range s.keys {
		c.keys[k] = v
	}
	return c
}

// =============================================================================
// LOCKED ACCESSORS - Memory methods take the lock, state methods assume it
// =============================================================================

func (m *Memory) LoadConfig(ctx context.Context) (payroll.RateConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.LoadConfig(ctx)
}

func (m *Memory) GetProfile(ctx context.Context, employee generic.EmployeeID) (*payroll.EmployeeRateProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.GetProfile(ctx, employee)
}

func (m *Memory) ListProfiles(ctx context.Context) ([]*payroll.EmployeeRateProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.ListProfiles(ctx)
}

func (m *Memory) SaveProfile(ctx context.Context, p *payroll.EmployeeRateProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.SaveProfile(ctx, p)
}

func (m *Memory) DeleteProfile(ctx context.Context, employee generic.EmployeeID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.DeleteProfile(ctx, employee)
}

func (m *Memory) SetPetRate(ctx context.Context, pet generic.PetName, key payroll.RateKey, rate decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.SetPetRate(ctx, pet, key, rate)
}

func (m *Memory) RemovePetRate(ctx context.Context, pet generic.PetName, key payroll.RateKey) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.RemovePetRate(ctx, pet, key)
}

func (m *Memory) SetRestriction(ctx context.Context, job payroll.JobType, employees []generic.EmployeeID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.SetRestriction(ctx, job, employees)
}

func (m *Memory) ClearRestriction(ctx context.Context, job payroll.JobType) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.ClearRestriction(ctx, job)
}

func (m *Memory) AddHoliday(ctx context.Context, date generic.TimePoint) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.AddHoliday(ctx, date)
}

func (m *Memory) RemoveHoliday(ctx context.Context, date generic.TimePoint) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.RemoveHoliday(ctx, date)
}

func (m *Memory) ListHolidays(ctx context.Context) ([]generic.TimePoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.ListHolidays(ctx)
}

func (m *Memory) InsertEntry(ctx context.Context, e *payroll.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.InsertEntry(ctx, e)
}

func (m *Memory) UpdateEntry(ctx context.Context, e *payroll.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.UpdateEntry(ctx, e)
}

func (m *Memory) DeleteEntry(ctx context.Context, id generic.EntryID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.DeleteEntry(ctx, id)
}

func (m *Memory) GetEntry(ctx context.Context, id generic.EntryID) (*payroll.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.GetEntry(ctx, id)
}

func (m *Memory) ListEntries(ctx context.Context, filter payroll.EntryFilter) ([]*payroll.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.ListEntries(ctx, filter)
}

func (m *Memory) AppendAudit(ctx context.Context, entry generic.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.AppendAudit(ctx, entry)
}

func (m *Memory) QueryAudit(ctx context.Context, filter generic.AuditFilter) ([]generic.AuditEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.QueryAudit(ctx, filter)
}

func (m *Memory) AuditKeyExists(ctx context.Context, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.AuditKeyExists(ctx, key)
}

// =============================================================================
// STATE - payroll.Store over plain maps; callers hold the lock
// =============================================================================

func (s *state) LoadConfig(context.Context) (payroll.RateConfig, error) {
	cfg := payroll.RateConfig{
		Profiles: make(map[generic.EmployeeID]*payroll.EmployeeRateProfile, len(s.profiles)),
		Pets:     make(payroll.PetRateTable),
		Access:   make(payroll.AccessPolicy, len(s.access)),
	}
	for k, p := range s.profiles {
		cfg.Profiles[k] = p.Clone()
	}
	for pet, rates := range s.pets {
		for k, r := range rates {
			cfg.Pets.Set(pet, k, r)
		}
	}
	for j, allowed := range s.access {
		cfg.Access[j] = append([]generic.EmployeeID{}, allowed...)
	}
	dates := make([]generic.TimePoint, 0, len(s.holidays))
	for _, d := range s.holidays {
		dates = append(dates, d)
	}
	cfg.Holidays = generic.NewHolidaySet(dates...)
	return cfg, nil
}

func (s *state) GetProfile(_ context.Context, employee generic.EmployeeID) (*payroll.EmployeeRateProfile, error) {
	p, ok := s.profiles[employee]
	if !ok {
		return nil, nil
	}
	return p.Clone(), nil
}

func (s *state) ListProfiles(context.Context) ([]*payroll.EmployeeRateProfile, error) {
	out := make([]*payroll.EmployeeRateProfile, 0, len(s.profiles))
	for _, p := range s.profiles {
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Employee < out[j].Employee })
	return out, nil
}

func (s *state) SaveProfile(_ context.Context, p *payroll.EmployeeRateProfile) error {
	s.profiles[p.Employee] = p.Clone()
	return nil
}

func (s *state) DeleteProfile(_ context.Context, employee generic.EmployeeID) error {
	if _, ok := s.profiles[employee]; !ok {
		return &generic.InvalidReferenceError{Kind: "employee", Value: string(employee)}
	}
	delete(s.profiles, employee)
	return nil
}

func (s *state) SetPetRate(_ context.Context, pet generic.PetName, key payroll.RateKey, rate decimal.Decimal) error {
	s.pets.Set(pet, key, rate)
	return nil
}

func (s *state) RemovePetRate(_ context.Context, pet generic.PetName, key payroll.RateKey) (bool, error) {
	return s.pets.Remove(pet, key), nil
}

func (s *state) SetRestriction(_ context.Context, job payroll.JobType, employees []generic.EmployeeID) error {
	s.access[job] = append([]generic.EmployeeID{}, employees...)
	return nil
}

func (s *state) ClearRestriction(_ context.Context, job payroll.JobType) error {
	delete(s.access, job)
	return nil
}

func (s *state) AddHoliday(_ context.Context, date generic.TimePoint) (bool, error) {
	k := date.String()
	if _, ok := s.holidays[k]; ok {
		return false, nil
	}
	s.holidays[k] = date
	return true, nil
}

func (s *state) RemoveHoliday(_ context.Context, date generic.TimePoint) (bool, error) {
	k := date.String()
	if _, ok := s.holidays[k]; !ok {
		return false, nil
	}
	delete(s.holidays, k)
	return true, nil
}

func (s *state) ListHolidays(context.Context) ([]generic.TimePoint, error) {
	out := make([]generic.TimePoint, 0, len(s.holidays))
	for _, d := range s.holidays {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out, nil
}

func (s *state) InsertEntry(_ context.Context, e *payroll.Entry) error {
	s.entries[e.ID] = e.Clone()
	return nil
}

func (s *state) UpdateEntry(_ context.Context, e *payroll.Entry) error {
	if _, ok := s.entries[e.ID]; !ok {
		return generic.ErrEntryNotFound
	}
	s.entries[e.ID] = e.Clone()
	return nil
}

func (s *state) DeleteEntry(_ context.Context, id generic.EntryID) error {
	if _, ok := s.entries[id]; !ok {
		return generic.ErrEntryNotFound
	}
	delete(s.entries, id)
	return nil
}

func (s *state) GetEntry(_ context.Context, id generic.EntryID) (*payroll.Entry, error) {
	e, ok := s.entries[id]
	if !ok {
		return nil, generic.ErrEntryNotFound
	}
	return e.Clone(), nil
}

func (s *state) ListEntries(_ context.Context, filter payroll.EntryFilter) ([]*payroll.Entry, error) {
	var out []*payroll.Entry
	for _, e := range s.entries {
		if filter.Matches(e) {
			out = append(out, e.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].WorkDate.Equal(out[j].WorkDate) {
			return out[i].WorkDate.Before(out[j].WorkDate)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *state) AppendAudit(_ context.Context, entry generic.AuditEntry) error {
	if entry.IdempotencyKey != "" {
		if s.keys[entry.IdempotencyKey] {
			return generic.ErrDuplicateIdempotencyKey
		}
		s.keys[entry.IdempotencyKey] = true
	}
	s.audit = append(s.audit, entry)
	return nil
}

func (s *state) QueryAudit(_ context.Context, filter generic.AuditFilter) ([]generic.AuditEntry, error) {
	var out []generic.AuditEntry
	for _, e := range s.audit {
		if filter.Matches(e) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *state) AuditKeyExists(_ context.Context, key string) (bool, error) {
	return s.keys[key], nil
}
