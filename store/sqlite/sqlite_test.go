package sqlite_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citypets/timesheet-engine/generic"
	"github.com/citypets/timesheet-engine/payroll"
	"github.com/citypets/timesheet-engine/store/sqlite"
	"github.com/citypets/timesheet-engine/store/storetest"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) payroll.TxStore {
		return newStore(t)
	})
}

func TestSQLiteStore_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "timesheet.db")

	// GIVEN: a profile and a holiday written to a file database
	s, err := sqlite.New(path)
	require.NoError(t, err)
	p := payroll.NewProfile("ANNA")
	p.Rates["pet_sitting"] = decimal.RequireFromString("17.33")
	require.NoError(t, s.SaveProfile(ctx, p))
	_, err = s.AddHoliday(ctx, generic.MustParseDate("2025-12-25"))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	// WHEN: the file is opened again
	s, err = sqlite.New(path)
	require.NoError(t, err)
	defer s.Close()

	// THEN: the data is still there and migrations are idempotent
	got, err := s.GetProfile(ctx, "ANNA")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "17.33", got.Rates["pet_sitting"].String())

	cfg, err := s.LoadConfig(ctx)
	require.NoError(t, err)
	assert.True(t, cfg.Holidays.IsHoliday(generic.MustParseDate("2025-12-25")))
}

func TestSQLiteStore_Reset(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	require.NoError(t, s.SaveProfile(ctx, payroll.NewProfile("ANNA")))
	require.NoError(t, s.SetRestriction(ctx, payroll.JobTraining, []generic.EmployeeID{"ANNA"}))

	require.NoError(t, s.Reset(ctx))

	cfg, err := s.LoadConfig(ctx)
	require.NoError(t, err)
	assert.Empty(t, cfg.Profiles)
	assert.False(t, cfg.Access.Restricted(payroll.JobTraining))
}

func TestSQLiteStore_CorruptRowsAreReported(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "timesheet.db")
	s, err := sqlite.New(path)
	require.NoError(t, err)
	defer s.Close()

	wd := generic.MustParseDate("2025-12-17")
	require.NoError(t, s.InsertEntry(ctx, &payroll.Entry{
		ID: "e1", Employee: "ANNA", Job: payroll.JobHotel,
		WorkDate: wd, WeekStart: wd.WeekStart(),
		Hours: decimal.NewFromInt(1), Amount: decimal.NewFromInt(25), Rate: decimal.NewFromInt(25),
		Status: payroll.StatusPending, CreatedAt: time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC),
	}))
	require.NoError(t, s.AppendAudit(ctx, generic.AuditEntry{
		ID: "a1", Timestamp: time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC), ActorID: "u-admin",
		Action: generic.AuditEntrySubmitted, EntryID: "e1", Employee: "ANNA",
		Payload: map[string]string{"amount": "25"},
	}))

	// GIVEN: rows damaged behind the store's back
	raw, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer raw.Close()
	_, err = raw.Exec(`UPDATE entries SET created_at = 'yesterday' WHERE id = 'e1'`)
	require.NoError(t, err)
	_, err = raw.Exec(`UPDATE audit_log SET payload_json = '{not json' WHERE id = 'a1'`)
	require.NoError(t, err)

	// WHEN/THEN: reads fail instead of returning zero values
	_, err = s.GetEntry(ctx, "e1")
	assert.ErrorContains(t, err, "created_at")
	_, err = s.QueryAudit(ctx, generic.AuditFilter{})
	assert.ErrorContains(t, err, "payload")

	_, err = raw.Exec(`UPDATE entries SET created_at = '2026-01-05T09:00:00Z', paid_at = 'soon' WHERE id = 'e1'`)
	require.NoError(t, err)
	_, err = s.GetEntry(ctx, "e1")
	assert.ErrorContains(t, err, "paid_at")

	_, err = raw.Exec(`UPDATE audit_log SET payload_json = NULL, timestamp = 'noon' WHERE id = 'a1'`)
	require.NoError(t, err)
	_, err = s.QueryAudit(ctx, generic.AuditFilter{})
	assert.ErrorContains(t, err, "timestamp")
}
