// Package storetest holds the behaviour every payroll.TxStore must share.
// Store implementations call Run from their own tests.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citypets/timesheet-engine/generic"
	"github.com/citypets/timesheet-engine/payroll"
)

// Factory returns an empty store. Cleanup is registered on t.
type Factory func(t *testing.T) payroll.TxStore

// Run exercises s against the store contract.
func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s payroll.TxStore)
	}{
		{"ProfileRoundTrip", testProfileRoundTrip},
		{"SaveProfileReplaces", testSaveProfileReplaces},
		{"DeleteProfile", testDeleteProfile},
		{"PetRates", testPetRates},
		{"Restrictions", testRestrictions},
		{"LiftAndReplaceRestriction", testLiftAndReplaceRestriction},
		{"Holidays", testHolidays},
		{"LoadConfigIsSnapshot", testLoadConfigIsSnapshot},
		{"EntryLifecycle", testEntryLifecycle},
		{"ListEntriesFilterAndOrder", testListEntries},
		{"Audit", testAudit},
		{"WithTxRollsBack", testWithTxRollsBack},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, newStore(t))
		})
	}
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func date(s string) generic.TimePoint { return generic.MustParseDate(s) }

func profile(name string, rates map[payroll.RateKey]string) *payroll.EmployeeRateProfile {
	p := payroll.NewProfile(generic.EmployeeID(name))
	for k, v := range rates {
		p.Rates[k] = dec(v)
	}
	return p
}

func testProfileRoundTrip(t *testing.T, s payroll.TxStore) {
	ctx := context.Background()
	p := profile("ANKITA", map[payroll.RateKey]string{"pet_sitting": "17.33", "overnight_pet_sitting": "140"})
	p.HolidayRates[payroll.JobHotel] = dec("30")
	require.NoError(t, s.SaveProfile(ctx, p))

	got, err := s.GetProfile(ctx, "ANKITA")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Rates["pet_sitting"].Equal(dec("17.33")), "decimal survives storage exactly")
	assert.True(t, got.Rates[payroll.RateOvernightPetSitting].Equal(dec("140")))
	assert.True(t, got.HolidayRates[payroll.JobHotel].Equal(dec("30")))

	missing, err := s.GetProfile(ctx, "NOBODY")
	require.NoError(t, err)
	assert.Nil(t, missing)

	// Returned values are copies
	got.Rates["pet_sitting"] = dec("1")
	again, _ := s.GetProfile(ctx, "ANKITA")
	assert.True(t, again.Rates["pet_sitting"].Equal(dec("17.33")))
}

func testSaveProfileReplaces(t *testing.T, s payroll.TxStore) {
	ctx := context.Background()
	require.NoError(t, s.SaveProfile(ctx, profile("JEAN", map[payroll.RateKey]string{"walk": "25", "hotel": "25"})))
	require.NoError(t, s.SaveProfile(ctx, profile("JEAN", map[payroll.RateKey]string{"walk": "30"})))
	require.NoError(t, s.SaveProfile(ctx, profile("ANNA", map[payroll.RateKey]string{"walk": "20"})))

	got, _ := s.GetProfile(ctx, "JEAN")
	assert.Len(t, got.Rates, 1)
	assert.True(t, got.Rates["walk"].Equal(dec("30")))

	all, err := s.ListProfiles(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, generic.EmployeeID("ANNA"), all[0].Employee, "listed by name")
}

func testDeleteProfile(t *testing.T, s payroll.TxStore) {
	ctx := context.Background()
	require.NoError(t, s.SaveProfile(ctx, profile("KUBA", map[payroll.RateKey]string{"management": "30"})))

	require.NoError(t, s.DeleteProfile(ctx, "KUBA"))
	got, _ := s.GetProfile(ctx, "KUBA")
	assert.Nil(t, got)

	assert.ErrorIs(t, s.DeleteProfile(ctx, "KUBA"), generic.ErrInvalidReference)
}

func testPetRates(t *testing.T, s payroll.TxStore) {
	ctx := context.Background()
	require.NoError(t, s.SetPetRate(ctx, "Burek", "walk", dec("40")))
	require.NoError(t, s.SetPetRate(ctx, "Burek", "walk", dec("42")))

	cfg, err := s.LoadConfig(ctx)
	require.NoError(t, err)
	rate, ok := cfg.Pets.Lookup("Burek", "walk")
	require.True(t, ok)
	assert.True(t, rate.Equal(dec("42")))

	removed, err := s.RemovePetRate(ctx, "Burek", "walk")
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = s.RemovePetRate(ctx, "Burek", "walk")
	require.NoError(t, err)
	assert.False(t, removed)
}

func testRestrictions(t *testing.T, s payroll.TxStore) {
	ctx := context.Background()
	require.NoError(t, s.SetRestriction(ctx, payroll.JobTraining, []generic.EmployeeID{"ROXANA", "ANKITA"}))
	require.NoError(t, s.SetRestriction(ctx, payroll.JobManagement, nil))

	cfg, err := s.LoadConfig(ctx)
	require.NoError(t, err)
	assert.True(t, cfg.Access.CanLog("ANKITA", payroll.JobTraining))
	assert.False(t, cfg.Access.CanLog("JEAN", payroll.JobTraining))
	assert.True(t, cfg.Access.Restricted(payroll.JobManagement), "empty allow-list is still a restriction")
	assert.False(t, cfg.Access.CanLog("ROXANA", payroll.JobManagement))

	require.NoError(t, s.ClearRestriction(ctx, payroll.JobTraining))
	cfg, _ = s.LoadConfig(ctx)
	assert.False(t, cfg.Access.Restricted(payroll.JobTraining))
}

func testLiftAndReplaceRestriction(t *testing.T, s payroll.TxStore) {
	ctx := context.Background()
	require.NoError(t, s.SetRestriction(ctx, payroll.JobTraining, []generic.EmployeeID{"ZED"}))

	err := s.WithTx(ctx, func(tx payroll.Store) error {
		return tx.ClearRestriction(ctx, payroll.JobTraining)
	})
	require.NoError(t, err)

	cfg, err := s.LoadConfig(ctx)
	require.NoError(t, err)
	assert.False(t, cfg.Access.Restricted(payroll.JobTraining))
	assert.True(t, cfg.Access.CanLog("ANNA", payroll.JobTraining))

	require.NoError(t, s.ClearRestriction(ctx, payroll.JobTraining), "lifting twice is a no-op")

	// a new allow-list does not resurrect the old one
	require.NoError(t, s.SetRestriction(ctx, payroll.JobTraining, []generic.EmployeeID{"ANNA"}))
	cfg, _ = s.LoadConfig(ctx)
	assert.Equal(t, []generic.EmployeeID{"ANNA"}, cfg.Access[payroll.JobTraining])
}

func testHolidays(t *testing.T, s payroll.TxStore) {
	ctx := context.Background()
	added, err := s.AddHoliday(ctx, date("2025-12-25"))
	require.NoError(t, err)
	assert.True(t, added)
	added, _ = s.AddHoliday(ctx, date("2025-12-25"))
	assert.False(t, added)
	_, _ = s.AddHoliday(ctx, date("2025-12-24"))

	dates, err := s.ListHolidays(ctx)
	require.NoError(t, err)
	require.Len(t, dates, 2)
	assert.Equal(t, "2025-12-24", dates[0].String())

	cfg, _ := s.LoadConfig(ctx)
	assert.True(t, cfg.Holidays.IsHoliday(date("2025-12-25")))
	assert.False(t, cfg.Holidays.IsHoliday(date("2025-12-27")))

	removed, err := s.RemoveHoliday(ctx, date("2025-12-24"))
	require.NoError(t, err)
	assert.True(t, removed)
	removed, _ = s.RemoveHoliday(ctx, date("2025-12-24"))
	assert.False(t, removed)
}

func testLoadConfigIsSnapshot(t *testing.T, s payroll.TxStore) {
	ctx := context.Background()
	require.NoError(t, s.SaveProfile(ctx, profile("ROXANA", map[payroll.RateKey]string{"hotel": "25"})))

	cfg, err := s.LoadConfig(ctx)
	require.NoError(t, err)
	require.NoError(t, s.SaveProfile(ctx, profile("ROXANA", map[payroll.RateKey]string{"hotel": "99"})))

	p, ok := cfg.Profile("ROXANA")
	require.True(t, ok)
	assert.True(t, p.Rates["hotel"].Equal(dec("25")))
}

func entry(id, employee, workDate, amount string) *payroll.Entry {
	wd := date(workDate)
	return &payroll.Entry{
		ID:         generic.EntryID(id),
		Employee:   generic.EmployeeID(employee),
		Job:        payroll.JobHotel,
		WorkDate:   wd,
		WeekStart:  wd.WeekStart(),
		Hours:      dec("1"),
		Amount:     dec(amount),
		Rate:       dec(amount),
		RateKey:    "hotel",
		RateSource: payroll.SourceBase,
		Status:     payroll.StatusPending,
		CreatedAt:  time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC),
		CreatedBy:  "u-admin",
	}
}

func testEntryLifecycle(t *testing.T, s payroll.TxStore) {
	ctx := context.Background()
	e := entry("e1", "SURIYA", "2025-12-17", "43.325")
	e.Pet = "Luna"
	e.Description = "evening"
	require.NoError(t, s.InsertEntry(ctx, e))

	got, err := s.GetEntry(ctx, "e1")
	require.NoError(t, err)
	assert.True(t, got.Amount.Equal(dec("43.325")))
	assert.Equal(t, generic.PetName("Luna"), got.Pet)
	assert.Equal(t, "2025-12-15", got.WeekStart.String())
	assert.True(t, got.CreatedAt.Equal(e.CreatedAt))
	assert.Nil(t, got.PaidAt)

	paidAt := time.Date(2026, 1, 9, 17, 30, 0, 0, time.UTC)
	got.Pay(paidAt, "u-admin")
	require.NoError(t, s.UpdateEntry(ctx, got))

	paid, _ := s.GetEntry(ctx, "e1")
	assert.Equal(t, payroll.StatusPaid, paid.Status)
	require.NotNil(t, paid.PaidAt)
	assert.True(t, paid.PaidAt.Equal(paidAt))

	require.NoError(t, s.DeleteEntry(ctx, "e1"))
	_, err = s.GetEntry(ctx, "e1")
	assert.ErrorIs(t, err, generic.ErrEntryNotFound)
	assert.ErrorIs(t, s.DeleteEntry(ctx, "e1"), generic.ErrEntryNotFound)
	assert.ErrorIs(t, s.UpdateEntry(ctx, e), generic.ErrEntryNotFound)
}

func testListEntries(t *testing.T, s payroll.TxStore) {
	ctx := context.Background()
	for _, e := range []*payroll.Entry{
		entry("c", "ROXANA", "2025-12-24", "90"),
		entry("a", "ROXANA", "2025-12-15", "25"),
		entry("b", "JEAN", "2025-12-20", "25"),
	} {
		require.NoError(t, s.InsertEntry(ctx, e))
	}
	paid, _ := s.GetEntry(ctx, "a")
	paid.Pay(time.Now(), "u-admin")
	require.NoError(t, s.UpdateEntry(ctx, paid))

	all, err := s.ListEntries(ctx, payroll.EntryFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, generic.EntryID("a"), all[0].ID, "ordered by work date")
	assert.Equal(t, generic.EntryID("c"), all[2].ID)

	rox, _ := s.ListEntries(ctx, payroll.EntryFilter{Employee: "ROXANA"})
	assert.Len(t, rox, 2)

	pending, _ := s.ListEntries(ctx, payroll.EntryFilter{Status: payroll.StatusPending})
	assert.Len(t, pending, 2)

	ranged, _ := s.ListEntries(ctx, payroll.EntryFilter{From: date("2025-12-16"), To: date("2025-12-24")})
	assert.Len(t, ranged, 2, "bounds are inclusive")
}

func testAudit(t *testing.T, s payroll.TxStore) {
	ctx := context.Background()
	id := generic.EntryID("e1")
	trail := generic.NewAuditTrail(s)

	require.NoError(t, trail.Record(ctx, generic.AuditEntry{ActorID: "u-1", Action: generic.AuditEntrySubmitted, EntryID: id, Employee: "JEAN"}))
	require.NoError(t, trail.Record(ctx, generic.AuditEntry{
		ActorID: "u-admin", Action: generic.AuditEntryPaid, EntryID: id, Employee: "JEAN",
		IdempotencyKey: "pay-e1", Payload: map[string]string{"amount": "25"},
	}))
	err := trail.Record(ctx, generic.AuditEntry{ActorID: "u-admin", Action: generic.AuditEntryPaid, EntryID: id, IdempotencyKey: "pay-e1"})
	assert.True(t, errors.Is(err, generic.ErrDuplicateIdempotencyKey))

	history, err := trail.History(ctx, id)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, generic.AuditEntrySubmitted, history[0].Action)
	assert.Equal(t, "25", history[1].Payload["amount"])

	exists, err := s.AuditKeyExists(ctx, "pay-e1")
	require.NoError(t, err)
	assert.True(t, exists)
}

func testWithTxRollsBack(t *testing.T, s payroll.TxStore) {
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.WithTx(ctx, func(tx payroll.Store) error {
		if err := tx.SaveProfile(ctx, profile("PIYUSH", map[payroll.RateKey]string{"hotel": "25"})); err != nil {
			return err
		}
		if err := tx.InsertEntry(ctx, entry("e1", "PIYUSH", "2025-12-17", "25")); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	p, _ := s.GetProfile(ctx, "PIYUSH")
	assert.Nil(t, p)
	_, err = s.GetEntry(ctx, "e1")
	assert.ErrorIs(t, err, generic.ErrEntryNotFound)

	require.NoError(t, s.WithTx(ctx, func(tx payroll.Store) error {
		return tx.SaveProfile(ctx, profile("PIYUSH", map[payroll.RateKey]string{"hotel": "25"}))
	}))
	p, _ = s.GetProfile(ctx, "PIYUSH")
	assert.NotNil(t, p)
}
