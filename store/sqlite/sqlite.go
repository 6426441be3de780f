/*
Package sqlite provides a SQLite-backed implementation of payroll.TxStore.

PURPOSE:
  Persists the four configuration tables, timesheet entries and the
  append-only audit log. Every money value is stored as decimal TEXT so
  what was computed is exactly what is read back.

KEY TABLES:
  profiles:         one row per employee with a rate profile
  profile_rates:    base rates per (employee, rate_key)
  holiday_rates:    holiday overrides per (employee, job_type)
  pet_rates:        overrides per (pet, rate_key)
  job_restrictions: presence of a row means the job type is restricted
  job_access:       allow-list rows of restricted job types
  holidays:         calendar dates
  entries:          timesheet entries with amount, applied rate and status
  audit_log:        who did what when; never updated or deleted

ATOMICITY:
  WithTx runs one logical operation (config read, entry write, audit
  record) in one database transaction. Writes made outside WithTx are
  wrapped in their own transaction.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. SQLite is opened with WAL:
  - Multiple readers don't block
  - Single writer at a time

USAGE:
  store, err := sqlite.New("./data/timesheet.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc := payroll.NewEntryService(store, logger)

MIGRATION:
  Schema is auto-migrated on New().

SEE ALSO:
  - payroll/store.go: Interface definitions
  - store/memory/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/citypets/timesheet-engine/generic"
	"github.com/citypets/timesheet-engine/payroll"
)

// Store implements payroll.TxStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var (
	_ payroll.TxStore = (*Store)(nil)
	_ payroll.Store   = (*txStore)(nil)
)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// every pooled connection would get its own empty database
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS profiles (
		employee TEXT PRIMARY KEY,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS profile_rates (
		employee TEXT NOT NULL REFERENCES profiles(employee) ON DELETE CASCADE,
		rate_key TEXT NOT NULL,
		rate TEXT NOT NULL,
		PRIMARY KEY (employee, rate_key)
	);

	CREATE TABLE IF NOT EXISTS holiday_rates (
		employee TEXT NOT NULL REFERENCES profiles(employee) ON DELETE CASCADE,
		job_type TEXT NOT NULL,
		rate TEXT NOT NULL,
		PRIMARY KEY (employee, job_type)
	);

	CREATE TABLE IF NOT EXISTS pet_rates (
		pet TEXT NOT NULL,
		rate_key TEXT NOT NULL,
		rate TEXT NOT NULL,
		PRIMARY KEY (pet, rate_key)
	);

	CREATE TABLE IF NOT EXISTS job_restrictions (
		job_type TEXT PRIMARY KEY
	);

	CREATE TABLE IF NOT EXISTS job_access (
		job_type TEXT NOT NULL REFERENCES job_restrictions(job_type) ON DELETE CASCADE,
		employee TEXT NOT NULL,
		PRIMARY KEY (job_type, employee)
	);

	CREATE TABLE IF NOT EXISTS holidays (
		date TEXT PRIMARY KEY
	);

	CREATE TABLE IF NOT EXISTS entries (
		id TEXT PRIMARY KEY,
		employee TEXT NOT NULL,
		job_type TEXT NOT NULL,
		work_date TEXT NOT NULL,
		week_start TEXT NOT NULL,
		pet TEXT,
		hours TEXT NOT NULL,
		km TEXT NOT NULL,
		value TEXT NOT NULL,
		description TEXT,
		amount TEXT NOT NULL,
		rate TEXT NOT NULL,
		rate_key TEXT,
		rate_source TEXT,
		status TEXT NOT NULL DEFAULT 'pending',
		created_at TEXT NOT NULL,
		created_by TEXT,
		paid_at TEXT,
		paid_by TEXT
	);

	-- Hot path: an employee's entries over a date range
	CREATE INDEX IF NOT EXISTS idx_entries_employee_date
		ON entries(employee, work_date);
	CREATE INDEX IF NOT EXISTS idx_entries_status
		ON entries(status);
	CREATE INDEX IF NOT EXISTS idx_entries_week
		ON entries(week_start, employee);

	CREATE TABLE IF NOT EXISTS audit_log (
		id TEXT PRIMARY KEY,
		timestamp TEXT NOT NULL,
		actor_id TEXT NOT NULL,
		action TEXT NOT NULL,
		entry_id TEXT,
		employee TEXT,
		from_status TEXT,
		to_status TEXT,
		reason TEXT,
		idempotency_key TEXT UNIQUE,
		payload_json TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_audit_entry
		ON audit_log(entry_id) WHERE entry_id IS NOT NULL;
	CREATE INDEX IF NOT EXISTS idx_audit_timestamp
		ON audit_log(timestamp);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TRANSACTIONAL STORE (payroll.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store payroll.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{q: sqlTx}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// Reset deletes all rows. Used by the demo loader.
func (s *Store) Reset(ctx context.Context) error {
	return s.write(ctx, func(ts *txStore) error {
		for _, table := range []string{
			"profile_rates", "holiday_rates", "profiles", "pet_rates",
			"job_access", "job_restrictions", "holidays", "entries", "audit_log",
		} {
			if _, err := ts.q.ExecContext(ctx, `DELETE FROM `+table); err != nil {
				return fmt.Errorf("failed to reset %s: %w", table, err)
			}
		}
		return nil
	})
}

// read runs fn against the database under the read lock.
func (s *Store) read(fn func(ts *txStore) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(&txStore{q: s.db})
}

// write runs fn in its own transaction.
func (s *Store) write(ctx context.Context, fn func(ts *txStore) error) error {
	return s.WithTx(ctx, func(st payroll.Store) error { return fn(st.(*txStore)) })
}

// querier is what *sql.DB and *sql.Tx have in common.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// txStore implements payroll.Store on a single querier. Inside WithTx the
// querier is the transaction; the caller already holds the lock.
type txStore struct {
	q querier
}

// =============================================================================
// CONFIG (payroll.ConfigStore interface)
// =============================================================================

func (s *Store) LoadConfig(ctx context.Context) (cfg payroll.RateConfig, err error) {
	err = s.read(func(ts *txStore) error {
		cfg, err = ts.LoadConfig(ctx)
		return err
	})
	return cfg, err
}

func (s *Store) GetProfile(ctx context.Context, employee generic.EmployeeID) (p *payroll.EmployeeRateProfile, err error) {
	err = s.read(func(ts *txStore) error {
		p, err = ts.GetProfile(ctx, employee)
		return err
	})
	return p, err
}

func (s *Store) ListProfiles(ctx context.Context) (ps []*payroll.EmployeeRateProfile, err error) {
	err = s.read(func(ts *txStore) error {
		ps, err = ts.ListProfiles(ctx)
		return err
	})
	return ps, err
}

func (s *Store) SaveProfile(ctx context.Context, p *payroll.EmployeeRateProfile) error {
	return s.write(ctx, func(ts *txStore) error { return ts.SaveProfile(ctx, p) })
}

func (s *Store) DeleteProfile(ctx context.Context, employee generic.EmployeeID) error {
	return s.write(ctx, func(ts *txStore) error { return ts.DeleteProfile(ctx, employee) })
}

func (s *Store) SetPetRate(ctx context.Context, pet generic.PetName, key payroll.RateKey, rate decimal.Decimal) error {
	return s.write(ctx, func(ts *txStore) error { return ts.SetPetRate(ctx, pet, key, rate) })
}

func (s *Store) RemovePetRate(ctx context.Context, pet generic.PetName, key payroll.RateKey) (removed bool, err error) {
	err = s.write(ctx, func(ts *txStore) error {
		removed, err = ts.RemovePetRate(ctx, pet, key)
		return err
	})
	return removed, err
}

func (s *Store) SetRestriction(ctx context.Context, job payroll.JobType, employees []generic.EmployeeID) error {
	return s.write(ctx, func(ts *txStore) error { return ts.SetRestriction(ctx, job, employees) })
}

func (s *Store) ClearRestriction(ctx context.Context, job payroll.JobType) error {
	return s.write(ctx, func(ts *txStore) error { return ts.ClearRestriction(ctx, job) })
}

func (s *Store) AddHoliday(ctx context.Context, date generic.TimePoint) (added bool, err error) {
	err = s.write(ctx, func(ts *txStore) error {
		added, err = ts.AddHoliday(ctx, date)
		return err
	})
	return added, err
}

func (s *Store) RemoveHoliday(ctx context.Context, date generic.TimePoint) (removed bool, err error) {
	err = s.write(ctx, func(ts *txStore) error {
		removed, err = ts.RemoveHoliday(ctx, date)
		return err
	})
	return removed, err
}

func (s *Store) ListHolidays(ctx context.Context) (dates []generic.TimePoint, err error) {
	err = s.read(func(ts *txStore) error {
		dates, err = ts.ListHolidays(ctx)
		return err
	})
	return dates, err
}

func (ts *txStore) LoadConfig(ctx context.Context) (payroll.RateConfig, error) {
	cfg := payroll.RateConfig{
		Profiles: make(map[generic.EmployeeID]*payroll.EmployeeRateProfile),
		Pets:     make(payroll.PetRateTable),
		Access:   make(payroll.AccessPolicy),
	}

	profiles, err := ts.ListProfiles(ctx)
	if err != nil {
		return cfg, err
	}
	for _, p := range profiles {
		cfg.Profiles[p.Employee] = p
	}

	pets, err := ts.loadPets(ctx)
	if err != nil {
		return cfg, err
	}
	cfg.Pets = pets

	access, err := ts.loadAccess(ctx)
	if err != nil {
		return cfg, err
	}
	cfg.Access = access

	dates, err := ts.ListHolidays(ctx)
	if err != nil {
		return cfg, err
	}
	cfg.Holidays = generic.NewHolidaySet(dates...)
	return cfg, nil
}

func (ts *txStore) loadPets(ctx context.Context) (payroll.PetRateTable, error) {
	pets := make(payroll.PetRateTable)
	rows, err := ts.q.QueryContext(ctx, `SELECT pet, rate_key, rate FROM pet_rates`)
	if err != nil {
		return nil, fmt.Errorf("failed to query pet rates: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var pet, key, rate string
		if err := rows.Scan(&pet, &key, &rate); err != nil {
			return nil, err
		}
		r, err := decimal.NewFromString(rate)
		if err != nil {
			return nil, fmt.Errorf("pet rate %s/%s: %w", pet, key, err)
		}
		pets.Set(generic.PetName(pet), payroll.RateKey(key), r)
	}
	return pets, rows.Err()
}

func (ts *txStore) loadAccess(ctx context.Context) (payroll.AccessPolicy, error) {
	access := make(payroll.AccessPolicy)
	rows, err := ts.q.QueryContext(ctx, `
		SELECT r.job_type, a.employee
		FROM job_restrictions r
		LEFT JOIN job_access a ON a.job_type = r.job_type
		ORDER BY r.job_type, a.employee
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query access policy: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var job string
		var employee sql.NullString
		if err := rows.Scan(&job, &employee); err != nil {
			return nil, err
		}
		j := payroll.JobType(job)
		if _, ok := access[j]; !ok {
			access[j] = []generic.EmployeeID{}
		}
		if employee.Valid {
			access[j] = append(access[j], generic.EmployeeID(employee.String))
		}
	}
	return access, rows.Err()
}

func (ts *txStore) GetProfile(ctx context.Context, employee generic.EmployeeID) (*payroll.EmployeeRateProfile, error) {
	profiles, err := ts.queryProfiles(ctx, `WHERE employee = ?`, employee)
	if err != nil {
		return nil, err
	}
	return profiles[employee], nil
}

func (ts *txStore) ListProfiles(ctx context.Context) ([]*payroll.EmployeeRateProfile, error) {
	byName, err := ts.queryProfiles(ctx, "")
	if err != nil {
		return nil, err
	}
	out := make([]*payroll.EmployeeRateProfile, 0, len(byName))
	for _, p := range byName {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Employee < out[j].Employee })
	return out, nil
}

// queryProfiles fills profiles from both rate tables. where applies to the
// employee column of each.
func (ts *txStore) queryProfiles(ctx context.Context, where string, args ...any) (map[generic.EmployeeID]*payroll.EmployeeRateProfile, error) {
	out := make(map[generic.EmployeeID]*payroll.EmployeeRateProfile)
	profile := func(name string) *payroll.EmployeeRateProfile {
		id := generic.EmployeeID(name)
		if out[id] == nil {
			out[id] = payroll.NewProfile(id)
		}
		return out[id]
	}

	names, err := ts.q.QueryContext(ctx, `SELECT employee FROM profiles `+where, args...)
	if err != nil {
		return nil, err
	}
	for names.Next() {
		var name string
		if err := names.Scan(&name); err != nil {
			names.Close()
			return nil, err
		}
		profile(name)
	}
	names.Close()

	for _, table := range []string{"profile_rates", "holiday_rates"} {
		keyCol := "rate_key"
		if table == "holiday_rates" {
			keyCol = "job_type"
		}
		rows, err := ts.q.QueryContext(ctx, `SELECT employee, `+keyCol+`, rate FROM `+table+` `+where, args...)
		if err != nil {
			return nil, fmt.Errorf("failed to query %s: %w", table, err)
		}
		for rows.Next() {
			var name, key, rate string
			if err := rows.Scan(&name, &key, &rate); err != nil {
				rows.Close()
				return nil, err
			}
			r, err := decimal.NewFromString(rate)
			if err != nil {
				rows.Close()
				return nil, fmt.Errorf("%s %s/%s: %w", table, name, key, err)
			}
			p := profile(name)
			if table == "holiday_rates" {
				p.HolidayRates[payroll.JobType(key)] = r
			} else {
				p.Rates[payroll.RateKey(key)] = r
			}
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// SaveProfile replaces the profile and all of its rates.
func (ts *txStore) SaveProfile(ctx context.Context, p *payroll.EmployeeRateProfile) error {
	_, err := ts.q.ExecContext(ctx, `
		INSERT INTO profiles (employee, updated_at) VALUES (?, ?)
		ON CONFLICT(employee) DO UPDATE SET updated_at = excluded.updated_at
	`, p.Employee, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}
	for _, table := range []string{"profile_rates", "holiday_rates"} {
		if _, err := ts.q.ExecContext(ctx, `DELETE FROM `+table+` WHERE employee = ?`, p.Employee); err != nil {
			return err
		}
	}
	for k, r := range p.Rates {
		if _, err := ts.q.ExecContext(ctx,
			`INSERT INTO profile_rates (employee, rate_key, rate) VALUES (?, ?, ?)`,
			p.Employee, k, r.String()); err != nil {
			return fmt.Errorf("failed to save rate %s: %w", k, err)
		}
	}
	for j, r := range p.HolidayRates {
		if _, err := ts.q.ExecContext(ctx,
			`INSERT INTO holiday_rates (employee, job_type, rate) VALUES (?, ?, ?)`,
			p.Employee, j, r.String()); err != nil {
			return fmt.Errorf("failed to save holiday rate %s: %w", j, err)
		}
	}
	return nil
}

func (ts *txStore) DeleteProfile(ctx context.Context, employee generic.EmployeeID) error {
	res, err := ts.q.ExecContext(ctx, `DELETE FROM profiles WHERE employee = ?`, employee)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &generic.InvalidReferenceError{Kind: "employee", Value: string(employee)}
	}
	return nil
}

func (ts *txStore) SetPetRate(ctx context.Context, pet generic.PetName, key payroll.RateKey, rate decimal.Decimal) error {
	_, err := ts.q.ExecContext(ctx, `
		INSERT INTO pet_rates (pet, rate_key, rate) VALUES (?, ?, ?)
		ON CONFLICT(pet, rate_key) DO UPDATE SET rate = excluded.rate
	`, pet, key, rate.String())
	return err
}

func (ts *txStore) RemovePetRate(ctx context.Context, pet generic.PetName, key payroll.RateKey) (bool, error) {
	res, err := ts.q.ExecContext(ctx, `DELETE FROM pet_rates WHERE pet = ? AND rate_key = ?`, pet, key)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (ts *txStore) SetRestriction(ctx context.Context, job payroll.JobType, employees []generic.EmployeeID) error {
	if _, err := ts.q.ExecContext(ctx, `INSERT OR IGNORE INTO job_restrictions (job_type) VALUES (?)`, job); err != nil {
		return err
	}
	if _, err := ts.q.ExecContext(ctx, `DELETE FROM job_access WHERE job_type = ?`, job); err != nil {
		return err
	}
	for _, e := range employees {
		if _, err := ts.q.ExecContext(ctx,
			`INSERT OR IGNORE INTO job_access (job_type, employee) VALUES (?, ?)`, job, e); err != nil {
			return err
		}
	}
	return nil
}

func (ts *txStore) ClearRestriction(ctx context.Context, job payroll.JobType) error {
	_, err := ts.q.ExecContext(ctx, `DELETE FROM job_restrictions WHERE job_type = ?`, job)
	return err
}

func (ts *txStore) AddHoliday(ctx context.Context, date generic.TimePoint) (bool, error) {
	res, err := ts.q.ExecContext(ctx, `INSERT OR IGNORE INTO holidays (date) VALUES (?)`, date.String())
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (ts *txStore) RemoveHoliday(ctx context.Context, date generic.TimePoint) (bool, error) {
	res, err := ts.q.ExecContext(ctx, `DELETE FROM holidays WHERE date = ?`, date.String())
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (ts *txStore) ListHolidays(ctx context.Context) ([]generic.TimePoint, error) {
	rows, err := ts.q.QueryContext(ctx, `SELECT date FROM holidays ORDER BY date`)
	if err != nil {
		return nil, fmt.Errorf("failed to query holidays: %w", err)
	}
	defer rows.Close()

	var dates []generic.TimePoint
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		tp, err := generic.ParseDate(d)
		if err != nil {
			return nil, err
		}
		dates = append(dates, tp)
	}
	return dates, rows.Err()
}

// =============================================================================
// ENTRIES (payroll.EntryStore interface)
// =============================================================================

// tsLayout keeps fractional seconds fixed-width so text order matches time order.
const tsLayout = "2006-01-02T15:04:05.000000000Z07:00"

const entryColumns = `id, employee, job_type, work_date, week_start, pet, hours, km, value,
	description, amount, rate, rate_key, rate_source, status, created_at, created_by, paid_at, paid_by`

func (s *Store) InsertEntry(ctx context.Context, e *payroll.Entry) error {
	return s.write(ctx, func(ts *txStore) error { return ts.InsertEntry(ctx, e) })
}

func (s *Store) UpdateEntry(ctx context.Context, e *payroll.Entry) error {
	return s.write(ctx, func(ts *txStore) error { return ts.UpdateEntry(ctx, e) })
}

func (s *Store) DeleteEntry(ctx context.Context, id generic.EntryID) error {
	return s.write(ctx, func(ts *txStore) error { return ts.DeleteEntry(ctx, id) })
}

func (s *Store) GetEntry(ctx context.Context, id generic.EntryID) (e *payroll.Entry, err error) {
	err = s.read(func(ts *txStore) error {
		e, err = ts.GetEntry(ctx, id)
		return err
	})
	return e, err
}

func (s *Store) ListEntries(ctx context.Context, filter payroll.EntryFilter) (es []*payroll.Entry, err error) {
	err = s.read(func(ts *txStore) error {
		es, err = ts.ListEntries(ctx, filter)
		return err
	})
	return es, err
}

func (ts *txStore) InsertEntry(ctx context.Context, e *payroll.Entry) error {
	_, err := ts.q.ExecContext(ctx,
		`INSERT INTO entries (`+entryColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entryArgs(e)...)
	if err != nil {
		return fmt.Errorf("failed to insert entry: %w", err)
	}
	return nil
}

func (ts *txStore) UpdateEntry(ctx context.Context, e *payroll.Entry) error {
	args := entryArgs(e)
	res, err := ts.q.ExecContext(ctx, `
		UPDATE entries SET
			employee = ?, job_type = ?, work_date = ?, week_start = ?, pet = ?, hours = ?, km = ?, value = ?,
			description = ?, amount = ?, rate = ?, rate_key = ?, rate_source = ?, status = ?,
			created_at = ?, created_by = ?, paid_at = ?, paid_by = ?
		WHERE id = ?
	`, append(args[1:], args[0])...)
	if err != nil {
		return fmt.Errorf("failed to update entry: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return generic.ErrEntryNotFound
	}
	return nil
}

func (ts *txStore) DeleteEntry(ctx context.Context, id generic.EntryID) error {
	res, err := ts.q.ExecContext(ctx, `DELETE FROM entries WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return generic.ErrEntryNotFound
	}
	return nil
}

func (ts *txStore) GetEntry(ctx context.Context, id generic.EntryID) (*payroll.Entry, error) {
	entries, err := ts.queryEntries(ctx, `SELECT `+entryColumns+` FROM entries WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, generic.ErrEntryNotFound
	}
	return entries[0], nil
}

func (ts *txStore) ListEntries(ctx context.Context, f payroll.EntryFilter) ([]*payroll.Entry, error) {
	var (
		conds []string
		args  []any
	)
	if f.Employee != "" {
		conds = append(conds, "employee = ?")
		args = append(args, f.Employee)
	}
	if f.Job != "" {
		conds = append(conds, "job_type = ?")
		args = append(args, f.Job)
	}
	if f.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, f.Status)
	}
	if !f.From.IsZero() {
		conds = append(conds, "work_date >= ?")
		args = append(args, f.From.String())
	}
	if !f.To.IsZero() {
		conds = append(conds, "work_date <= ?")
		args = append(args, f.To.String())
	}

	query := `SELECT ` + entryColumns + ` FROM entries`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY work_date ASC, created_at ASC`
	return ts.queryEntries(ctx, query, args...)
}

func entryArgs(e *payroll.Entry) []any {
	var paidAt sql.NullString
	if e.PaidAt != nil {
		paidAt = nullString(e.PaidAt.UTC().Format(tsLayout))
	}
	return []any{
		e.ID,
		e.Employee,
		e.Job,
		e.WorkDate.String(),
		e.WeekStart.String(),
		nullString(string(e.Pet)),
		e.Hours.String(),
		e.Km.String(),
		e.Value.String(),
		nullString(e.Description),
		e.Amount.String(),
		e.Rate.String(),
		nullString(string(e.RateKey)),
		nullString(string(e.RateSource)),
		e.Status,
		e.CreatedAt.UTC().Format(tsLayout),
		nullString(e.CreatedBy),
		paidAt,
		nullString(e.PaidBy),
	}
}

func (ts *txStore) queryEntries(ctx context.Context, query string, args ...any) ([]*payroll.Entry, error) {
	rows, err := ts.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	var entries []*payroll.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func scanEntry(rows *sql.Rows) (*payroll.Entry, error) {
	var (
		e                                      payroll.Entry
		id, employee, job, workDate, weekStart string
		hours, km, value, amount, rate         string
		status, createdAt                      string
		pet, description, rateKey, rateSource  sql.NullString
		createdBy, paidAt, paidBy              sql.NullString
	)
	err := rows.Scan(
		&id, &employee, &job, &workDate, &weekStart, &pet, &hours, &km, &value,
		&description, &amount, &rate, &rateKey, &rateSource, &status, &createdAt, &createdBy, &paidAt, &paidBy,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan entry: %w", err)
	}

	e.ID = generic.EntryID(id)
	e.Employee = generic.EmployeeID(employee)
	e.Job = payroll.JobType(job)
	if e.WorkDate, err = generic.ParseDate(workDate); err != nil {
		return nil, err
	}
	if e.WeekStart, err = generic.ParseDate(weekStart); err != nil {
		return nil, err
	}
	e.Pet = generic.PetName(pet.String)
	e.Description = description.String
	e.RateKey = payroll.RateKey(rateKey.String)
	e.RateSource = payroll.RateSource(rateSource.String)
	e.Status = payroll.PaymentStatus(status)
	e.CreatedBy = createdBy.String
	e.PaidBy = paidBy.String

	for _, f := range []struct {
		dst *decimal.Decimal
		src string
	}{{&e.Hours, hours}, {&e.Km, km}, {&e.Value, value}, {&e.Amount, amount}, {&e.Rate, rate}} {
		if *f.dst, err = decimal.NewFromString(f.src); err != nil {
			return nil, fmt.Errorf("entry %s: %w", id, err)
		}
	}

	if e.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("entry %s: failed to parse created_at %q: %w", id, createdAt, err)
	}
	if paidAt.Valid {
		t, err := time.Parse(time.RFC3339Nano, paidAt.String)
		if err != nil {
			return nil, fmt.Errorf("entry %s: failed to parse paid_at %q: %w", id, paidAt.String, err)
		}
		e.PaidAt = &t
	}
	return &e, nil
}

// =============================================================================
// AUDIT LOG (generic.AuditLog interface)
// =============================================================================

func (s *Store) AppendAudit(ctx context.Context, entry generic.AuditEntry) error {
	return s.write(ctx, func(ts *txStore) error { return ts.AppendAudit(ctx, entry) })
}

func (s *Store) QueryAudit(ctx context.Context, filter generic.AuditFilter) (out []generic.AuditEntry, err error) {
	err = s.read(func(ts *txStore) error {
		out, err = ts.QueryAudit(ctx, filter)
		return err
	})
	return out, err
}

func (s *Store) AuditKeyExists(ctx context.Context, key string) (exists bool, err error) {
	err = s.read(func(ts *txStore) error {
		exists, err = ts.AuditKeyExists(ctx, key)
		return err
	})
	return exists, err
}

func (ts *txStore) AppendAudit(ctx context.Context, entry generic.AuditEntry) error {
	payloadJSON, _ := json.Marshal(entry.Payload)
	_, err := ts.q.ExecContext(ctx, `
		INSERT INTO audit_log
		(id, timestamp, actor_id, action, entry_id, employee, from_status, to_status, reason, idempotency_key, payload_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		entry.ID,
		entry.Timestamp.UTC().Format(tsLayout),
		entry.ActorID,
		entry.Action,
		nullString(string(entry.EntryID)),
		nullString(string(entry.Employee)),
		nullString(entry.FromStatus),
		nullString(entry.ToStatus),
		nullString(entry.Reason),
		nullString(entry.IdempotencyKey),
		string(payloadJSON),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return generic.ErrDuplicateIdempotencyKey
		}
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

// QueryAudit filters in SQL on entry and employee and applies the rest of
// the filter in memory.
func (ts *txStore) QueryAudit(ctx context.Context, filter generic.AuditFilter) ([]generic.AuditEntry, error) {
	query := `
		SELECT id, timestamp, actor_id, action, entry_id, employee, from_status, to_status,
		       reason, idempotency_key, payload_json
		FROM audit_log WHERE 1 = 1`
	var args []any
	if filter.EntryID != nil {
		query += ` AND entry_id = ?`
		args = append(args, *filter.EntryID)
	}
	if filter.Employee != nil {
		query += ` AND employee = ?`
		args = append(args, *filter.Employee)
	}
	query += ` ORDER BY timestamp ASC, rowid ASC`

	rows, err := ts.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	var out []generic.AuditEntry
	for rows.Next() {
		var (
			a                                   generic.AuditEntry
			timestamp, action                   string
			entryID, employee, from, to, reason sql.NullString
			idempotencyKey, payloadJSON         sql.NullString
		)
		if err := rows.Scan(&a.ID, &timestamp, &a.ActorID, &action, &entryID, &employee,
			&from, &to, &reason, &idempotencyKey, &payloadJSON); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		if a.Timestamp, err = time.Parse(time.RFC3339Nano, timestamp); err != nil {
			return nil, fmt.Errorf("audit entry %s: failed to parse timestamp %q: %w", a.ID, timestamp, err)
		}
		a.Action = generic.AuditAction(action)
		a.EntryID = generic.EntryID(entryID.String)
		a.Employee = generic.EmployeeID(employee.String)
		a.FromStatus = from.String
		a.ToStatus = to.String
		a.Reason = reason.String
		a.IdempotencyKey = idempotencyKey.String
		if payloadJSON.Valid && payloadJSON.String != "" {
			if err := json.Unmarshal([]byte(payloadJSON.String), &a.Payload); err != nil {
				return nil, fmt.Errorf("audit entry %s: failed to decode payload: %w", a.ID, err)
			}
		}
		if filter.Matches(a) {
			out = append(out, a)
		}
	}
	return out, rows.Err()
}

func (ts *txStore) AuditKeyExists(ctx context.Context, key string) (bool, error) {
	var count int
	err := ts.q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM audit_log WHERE idempotency_key = ?", key,
	).Scan(&count)
	return count > 0, err
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
