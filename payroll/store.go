/*
store.go - Persistence interfaces for the payroll engine

PURPOSE:
  The Persistent Store owns configuration tables and entry rows. The
  engine reads a consistent snapshot, computes, and hands back a value to
  write. It never keeps references to stored rows across calls.

KEY INTERFACES:
  ConfigStore: rate profiles, pet overrides, access policy, holidays
  EntryStore:  timesheet entries
  Store:       both, plus the append-only audit log
  TxStore:     Store with WithTx for one atomic unit per operation

ATOMICITY:
  A submission reads config and writes the entry plus its audit record
  inside one WithTx. Either all of it lands or none of it does; there is
  never an amount without a status or an entry without its audit trail.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite (WAL)
  - store/memory/memory.go: In-memory for testing

SEE ALSO:
  - service.go: Uses TxStore
  - generic/store.go: AuditLog
*/
package payroll

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/citypets/timesheet-engine/generic"
)

// ConfigStore persists the four configuration tables.
type ConfigStore interface {
	// LoadConfig returns a consistent snapshot of all configuration.
	LoadConfig(ctx context.Context) (RateConfig, error)

	// GetProfile returns nil, nil when the employee has no profile.
	GetProfile(ctx context.Context, employee generic.EmployeeID) (*EmployeeRateProfile, error)
	ListProfiles(ctx context.Context) ([]*EmployeeRateProfile, error)
	SaveProfile(ctx context.Context, p *EmployeeRateProfile) error
	DeleteProfile(ctx context.Context, employee generic.EmployeeID) error

	SetPetRate(ctx context.Context, pet generic.PetName, key RateKey, rate decimal.Decimal) error
	RemovePetRate(ctx context.Context, pet generic.PetName, key RateKey) (bool, error)

	// SetRestriction replaces the allow-list of job. An empty list means
	// nobody may log it.
	SetRestriction(ctx context.Context, job JobType, employees []generic.EmployeeID) error
	// ClearRestriction makes job unrestricted again.
	ClearRestriction(ctx context.Context, job JobType) error

	AddHoliday(ctx context.Context, date generic.TimePoint) (bool, error)
	RemoveHoliday(ctx context.Context, date generic.TimePoint) (bool, error)
	ListHolidays(ctx context.Context) ([]generic.TimePoint, error)
}

// EntryStore persists timesheet entries.
type EntryStore interface {
	InsertEntry(ctx context.Context, e *Entry) error
	UpdateEntry(ctx context.Context, e *Entry) error
	DeleteEntry(ctx context.Context, id generic.EntryID) error
	// GetEntry returns ErrEntryNotFound for unknown IDs.
	GetEntry(ctx context.Context, id generic.EntryID) (*Entry, error)
	// ListEntries returns matches ordered by work date, then creation time.
	ListEntries(ctx context.Context, filter EntryFilter) ([]*Entry, error)
}

// Store is everything the services need.
type Store interface {
	ConfigStore
	EntryStore
	generic.AuditLog
}

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, transaction is rolled back.
	// If fn returns nil, transaction is committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}

// Bundle is a complete configuration, as imported in bulk.
type Bundle struct {
	Profiles     []*EmployeeRateProfile
	Pets         PetRateTable
	Access       AccessPolicy
	Unrestricted []JobType // allow-lists to lift
	Holidays     []generic.TimePoint
}
