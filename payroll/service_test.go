package payroll_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citypets/timesheet-engine/generic"
	"github.com/citypets/timesheet-engine/payroll"
	"github.com/citypets/timesheet-engine/store/memory"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

var (
	admin = payroll.Identity{UserID: "u-admin", Role: payroll.RoleAdmin}
	anna  = payroll.Identity{UserID: "u-anna", Role: payroll.RoleEmployee, Employee: "ANNA"}
	bob   = payroll.Identity{UserID: "u-bob", Role: payroll.RoleEmployee, Employee: "BOB"}
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

type fixture struct {
	store   *memory.Memory
	entries *payroll.EntryService
	config  *payroll.ConfigService
}

// newFixture seeds ANNA (hotel 25, holiday hotel 90, pet_sitting 17.33,
// overnight 140, training 100) and BOB (hotel 27, walk 27). Training is
// restricted to ANNA; 2025-12-25 is a holiday.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.New()

	annaProfile := payroll.NewProfile("ANNA")
	annaProfile.Rates["hotel"] = dec("25")
	annaProfile.Rates["pet_sitting"] = dec("17.33")
	annaProfile.Rates["overnight_pet_sitting"] = dec("140")
	annaProfile.Rates["training"] = dec("100")
	annaProfile.HolidayRates[payroll.JobHotel] = dec("90")

	bobProfile := payroll.NewProfile("BOB")
	bobProfile.Rates["hotel"] = dec("27")
	bobProfile.Rates["walk"] = dec("27")

	cfg := payroll.NewConfigService(store, quietLogger())
	_, err := cfg.Import(ctx, admin, payroll.Bundle{
		Profiles: []*payroll.EmployeeRateProfile{annaProfile, bobProfile},
		Access:   payroll.AccessPolicy{payroll.JobTraining: {"ANNA"}},
		Holidays: []generic.TimePoint{generic.MustParseDate("2025-12-25")},
	})
	require.NoError(t, err)

	entries := payroll.NewEntryService(store, quietLogger())
	clock := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	entries.Now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}
	return &fixture{store: store, entries: entries, config: cfg}
}

func hotel(employee generic.EmployeeID, date, hours string) payroll.Submission {
	return payroll.Submission{
		Employee: employee,
		Job:      payroll.JobHotel,
		Date:     generic.MustParseDate(date),
		Quantity: payroll.Quantity{Hours: dec(hours)},
	}
}

// =============================================================================
// SUBMIT
// =============================================================================

func TestSubmit_StoresPendingEntryWithAudit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// WHEN: ANNA logs 6h hotel on a Wednesday
	e, err := f.entries.Submit(ctx, anna, hotel("ANNA", "2025-12-17", "6"))
	require.NoError(t, err)

	// THEN: stored pending with the computed amount and week start
	assert.Equal(t, payroll.StatusPending, e.Status)
	assert.True(t, e.Amount.Equal(dec("150")))
	assert.Equal(t, "2025-12-15", e.WeekStart.String())
	assert.Equal(t, payroll.SourceBase, e.RateSource)

	stored, err := f.store.GetEntry(ctx, e.ID)
	require.NoError(t, err)
	assert.True(t, stored.Amount.Equal(dec("150")))

	history, err := f.entries.History(ctx, admin, e.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, generic.AuditEntrySubmitted, history[0].Action)
	assert.Equal(t, "u-anna", history[0].ActorID)
}

func TestSubmit_HolidayRate(t *testing.T) {
	f := newFixture(t)
	e, err := f.entries.Submit(context.Background(), anna, hotel("ANNA", "2025-12-25", "1"))
	require.NoError(t, err)
	assert.True(t, e.Amount.Equal(dec("90")))
	assert.Equal(t, payroll.SourceHoliday, e.RateSource)
}

func TestSubmit_EmployeeCannotSubmitForOthers(t *testing.T) {
	f := newFixture(t)
	_, err := f.entries.Submit(context.Background(), bob, hotel("ANNA", "2025-12-17", "1"))
	assert.ErrorIs(t, err, generic.ErrForbidden)
}

func TestSubmit_AccessDeniedStoresNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.entries.Submit(ctx, bob, payroll.Submission{
		Employee: "BOB", Job: payroll.JobTraining,
		Date: generic.MustParseDate("2025-12-17"), Quantity: payroll.Quantity{Hours: dec("1")},
	})
	assert.ErrorIs(t, err, generic.ErrAccessDenied)

	all, err := f.store.ListEntries(ctx, payroll.EntryFilter{})
	require.NoError(t, err)
	assert.Empty(t, all)
	audit, err := f.store.QueryAudit(ctx, generic.AuditFilter{Employee: ptr(generic.EmployeeID("BOB"))})
	require.NoError(t, err)
	assert.Empty(t, audit)
}

func TestSubmit_ConfigurationErrorStoresNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// BOB has no cat_visit rate
	_, err := f.entries.Submit(ctx, bob, payroll.Submission{
		Employee: "BOB", Job: payroll.JobCatVisit, Pet: "Mruczek",
		Date: generic.MustParseDate("2025-12-17"), Quantity: payroll.Quantity{Hours: dec("1")},
	})
	assert.ErrorIs(t, err, generic.ErrConfiguration)

	all, _ := f.store.ListEntries(ctx, payroll.EntryFilter{})
	assert.Empty(t, all)
}

func TestSubmit_AmountIsFrozen(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	e, err := f.entries.Submit(ctx, anna, hotel("ANNA", "2025-12-17", "2"))
	require.NoError(t, err)

	// WHEN: the rate changes afterwards
	require.NoError(t, f.config.SetRate(ctx, admin, "ANNA", "hotel", dec("40")))

	// THEN: the stored amount does not move
	stored, err := f.entries.Get(ctx, anna, e.ID)
	require.NoError(t, err)
	assert.True(t, stored.Amount.Equal(dec("50")))
}

func TestPreview_DoesNotPersist(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c, err := f.entries.Preview(ctx, anna, hotel("ANNA", "2025-12-17", "3"))
	require.NoError(t, err)
	assert.True(t, c.Amount.Value.Equal(dec("75")))

	all, _ := f.store.ListEntries(ctx, payroll.EntryFilter{})
	assert.Empty(t, all)
}

// =============================================================================
// EDIT / DELETE
// =============================================================================

func petStay(employee generic.EmployeeID, date, hours string) payroll.Submission {
	return payroll.Submission{
		Employee: employee,
		Job:      payroll.JobPetSitting,
		Pet:      "Luna",
		Date:     generic.MustParseDate(date),
		Quantity: payroll.Quantity{Hours: dec(hours)},
	}
}

func TestSubmitStay_SplitsIntoDaySegments(t *testing.T) {
	tests := []struct {
		name    string
		hours   string
		amounts []string
		dates   []string
	}{
		{"three full days", "72", []string{"140", "140", "140"}, []string{"2025-12-17", "2025-12-18", "2025-12-19"}},
		{"exactly two days", "48", []string{"140", "140"}, []string{"2025-12-17", "2025-12-18"}},
		{"short tail is hourly", "24.5", []string{"140", "8.665"}, []string{"2025-12-17", "2025-12-18"}},
		{"single night", "12", []string{"140"}, []string{"2025-12-17"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()

			// WHEN: ANNA submits the whole stay at once
			entries, err := f.entries.SubmitStay(ctx, anna, petStay("ANNA", "2025-12-17", tt.hours))
			require.NoError(t, err)

			// THEN: one pending entry per day segment
			require.Len(t, entries, len(tt.amounts))
			for i, e := range entries {
				assert.True(t, e.Amount.Equal(dec(tt.amounts[i])), "segment %d: got %s", i, e.Amount)
				assert.Equal(t, tt.dates[i], e.WorkDate.String())
				assert.Equal(t, payroll.StatusPending, e.Status)
			}
			stored, err := f.store.ListEntries(ctx, payroll.EntryFilter{Employee: "ANNA"})
			require.NoError(t, err)
			assert.Len(t, stored, len(tt.amounts))
		})
	}
}

func TestSubmit_LongStayMustBeSplit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// WHEN: a 30h stay is sent as a single entry
	_, err := f.entries.Submit(ctx, anna, petStay("ANNA", "2025-12-17", "30"))

	// THEN: rejected rather than billed as one overnight
	var qErr *generic.InvalidQuantityError
	require.ErrorAs(t, err, &qErr)
	assert.Equal(t, "hours", qErr.Field)
	all, _ := f.store.ListEntries(ctx, payroll.EntryFilter{})
	assert.Empty(t, all)
}

func TestSubmitStay_AllOrNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// GIVEN: BOB has an overnight rate but no hourly pet sitting rate
	require.NoError(t, f.config.SetRate(ctx, admin, "BOB", payroll.RateOvernightPetSitting, dec("140")))

	// WHEN: the two full days price fine but the 2h tail cannot
	_, err := f.entries.SubmitStay(ctx, admin, petStay("BOB", "2025-12-17", "50"))

	// THEN: no segment is stored and no submission is audited
	assert.ErrorIs(t, err, generic.ErrConfiguration)
	all, err := f.store.ListEntries(ctx, payroll.EntryFilter{})
	require.NoError(t, err)
	assert.Empty(t, all)
	audit, err := f.store.QueryAudit(ctx, generic.AuditFilter{Employee: ptr(generic.EmployeeID("BOB"))})
	require.NoError(t, err)
	for _, a := range audit {
		assert.NotEqual(t, generic.AuditEntrySubmitted, a.Action)
	}
}

func TestSubmitStay_OnlyPetSitting(t *testing.T) {
	f := newFixture(t)
	_, err := f.entries.SubmitStay(context.Background(), anna, hotel("ANNA", "2025-12-17", "30"))
	assert.ErrorIs(t, err, generic.ErrInvalidQuantity)

	_, err = f.entries.SubmitStay(context.Background(), bob, petStay("ANNA", "2025-12-17", "30"))
	assert.ErrorIs(t, err, generic.ErrForbidden)
}

func TestEdit_RecomputesPendingEntry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e, err := f.entries.Submit(ctx, anna, hotel("ANNA", "2025-12-17", "2"))
	require.NoError(t, err)

	edited, err := f.entries.Edit(ctx, admin, e.ID, hotel("ANNA", "2025-12-25", "2"))
	require.NoError(t, err)
	assert.True(t, edited.Amount.Equal(dec("180")))
	assert.Equal(t, e.ID, edited.ID)
	assert.Equal(t, e.CreatedAt, edited.CreatedAt)
}

func TestEdit_PaidEntryIsRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e, _ := f.entries.Submit(ctx, anna, hotel("ANNA", "2025-12-17", "2"))
	_, err := f.entries.MarkPaid(ctx, admin, e.ID)
	require.NoError(t, err)

	_, err = f.entries.Edit(ctx, admin, e.ID, hotel("ANNA", "2025-12-17", "5"))
	assert.ErrorIs(t, err, generic.ErrEntryPaid)

	err = f.entries.Delete(ctx, admin, e.ID)
	assert.ErrorIs(t, err, generic.ErrEntryPaid)
}

func TestEdit_RequiresAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e, _ := f.entries.Submit(ctx, anna, hotel("ANNA", "2025-12-17", "2"))

	_, err := f.entries.Edit(ctx, anna, e.ID, hotel("ANNA", "2025-12-17", "5"))
	assert.ErrorIs(t, err, generic.ErrForbidden)
}

func TestDelete_KeepsAuditTrail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e, _ := f.entries.Submit(ctx, anna, hotel("ANNA", "2025-12-17", "2"))

	require.NoError(t, f.entries.Delete(ctx, admin, e.ID))

	_, err := f.entries.Get(ctx, admin, e.ID)
	assert.ErrorIs(t, err, generic.ErrEntryNotFound)

	history, err := f.entries.History(ctx, admin, e.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, generic.AuditEntryDeleted, history[1].Action)
}

// =============================================================================
// PAY / REVERT
// =============================================================================

func TestMarkPaid_IsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e, _ := f.entries.Submit(ctx, anna, hotel("ANNA", "2025-12-17", "2"))

	// WHEN: paid twice
	first, err := f.entries.MarkPaid(ctx, admin, e.ID)
	require.NoError(t, err)
	second, err := f.entries.MarkPaid(ctx, admin, e.ID)
	require.NoError(t, err)

	// THEN: the second call changes nothing and records nothing
	assert.True(t, first.Changed)
	assert.False(t, second.Changed)
	assert.True(t, second.Entry.PaidAt.Equal(*first.Entry.PaidAt))
	assert.True(t, second.Entry.Amount.Equal(dec("50")))

	history, _ := f.entries.History(ctx, admin, e.ID)
	paid := 0
	for _, h := range history {
		if h.Action == generic.AuditEntryPaid {
			paid++
		}
	}
	assert.Equal(t, 1, paid)
}

func TestMarkPaid_RequiresAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e, _ := f.entries.Submit(ctx, anna, hotel("ANNA", "2025-12-17", "2"))

	_, err := f.entries.MarkPaid(ctx, anna, e.ID)
	assert.ErrorIs(t, err, generic.ErrForbidden)
}

func TestMarkPaid_UnknownEntry(t *testing.T) {
	f := newFixture(t)
	_, err := f.entries.MarkPaid(context.Background(), admin, "missing")
	assert.ErrorIs(t, err, generic.ErrEntryNotFound)
}

func TestMarkRangePaid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e1, _ := f.entries.Submit(ctx, anna, hotel("ANNA", "2025-12-15", "2"))
	e2, _ := f.entries.Submit(ctx, anna, hotel("ANNA", "2025-12-16", "4"))
	_, _ = f.entries.Submit(ctx, anna, hotel("ANNA", "2025-12-22", "1"))
	_, _ = f.entries.Submit(ctx, bob, hotel("BOB", "2025-12-16", "1"))
	_, err := f.entries.MarkPaid(ctx, admin, e1.ID)
	require.NoError(t, err)

	// WHEN: paying ANNA's week of the 15th
	res, err := f.entries.MarkRangePaid(ctx, admin, "ANNA",
		generic.MustParseDate("2025-12-15"), generic.MustParseDate("2025-12-21"))
	require.NoError(t, err)

	// THEN: only the pending one inside the range is paid
	require.Len(t, res.Paid, 1)
	assert.Equal(t, e2.ID, res.Paid[0].ID)
	assert.Equal(t, 1, res.AlreadyPaid)
	assert.True(t, res.Total.Value.Equal(dec("100")))

	pending, _ := f.entries.List(ctx, admin, payroll.EntryFilter{Status: payroll.StatusPending})
	assert.Len(t, pending, 2)
}

func TestMarkRangePaid_InvertedRange(t *testing.T) {
	f := newFixture(t)
	_, err := f.entries.MarkRangePaid(context.Background(), admin, "ANNA",
		generic.MustParseDate("2025-12-21"), generic.MustParseDate("2025-12-15"))
	assert.ErrorIs(t, err, generic.ErrInvalidQuantity)
}

func TestMarkRangePaid_RequiresEmployee(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, _ = f.entries.Submit(ctx, anna, hotel("ANNA", "2025-12-16", "4"))
	_, _ = f.entries.Submit(ctx, bob, hotel("BOB", "2025-12-16", "1"))

	// WHEN: the employee is left blank
	_, err := f.entries.MarkRangePaid(ctx, admin, "",
		generic.MustParseDate("2025-12-15"), generic.MustParseDate("2025-12-21"))

	// THEN: rejected, and nobody's entries were paid
	var refErr *generic.InvalidReferenceError
	require.ErrorAs(t, err, &refErr)
	assert.Equal(t, "employee", refErr.Kind)
	pending, _ := f.entries.List(ctx, admin, payroll.EntryFilter{Status: payroll.StatusPending})
	assert.Len(t, pending, 2)
}

func TestRevertPayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e, _ := f.entries.Submit(ctx, anna, hotel("ANNA", "2025-12-17", "2"))
	_, _ = f.entries.MarkPaid(ctx, admin, e.ID)

	// A reason is mandatory
	_, err := f.entries.RevertPayment(ctx, admin, e.ID, "  ")
	assert.ErrorIs(t, err, generic.ErrInvalidTransition)

	reverted, err := f.entries.RevertPayment(ctx, admin, e.ID, "paid to wrong account")
	require.NoError(t, err)
	assert.Equal(t, payroll.StatusPending, reverted.Status)
	assert.Nil(t, reverted.PaidAt)

	history, _ := f.entries.History(ctx, admin, e.ID)
	last := history[len(history)-1]
	assert.Equal(t, generic.AuditEntryReverted, last.Action)
	assert.Equal(t, "paid to wrong account", last.Reason)

	// Pending entries cannot be reverted
	_, err = f.entries.RevertPayment(ctx, admin, e.ID, "again")
	assert.ErrorIs(t, err, generic.ErrInvalidTransition)

	// And it can be paid again
	res, err := f.entries.MarkPaid(ctx, admin, e.ID)
	require.NoError(t, err)
	assert.True(t, res.Changed)
}

// =============================================================================
// READS AND SUMMARIES
// =============================================================================

func TestList_EmployeesSeeOnlyTheirOwn(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, _ = f.entries.Submit(ctx, anna, hotel("ANNA", "2025-12-17", "2"))
	be, _ := f.entries.Submit(ctx, bob, hotel("BOB", "2025-12-17", "2"))

	mine, err := f.entries.List(ctx, anna, payroll.EntryFilter{Employee: "BOB"})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, generic.EmployeeID("ANNA"), mine[0].Employee)

	_, err = f.entries.Get(ctx, anna, be.ID)
	assert.ErrorIs(t, err, generic.ErrEntryNotFound)

	all, _ := f.entries.List(ctx, admin, payroll.EntryFilter{})
	assert.Len(t, all, 2)
}

func TestSummaries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e1, _ := f.entries.Submit(ctx, anna, hotel("ANNA", "2025-12-15", "2"))
	_, _ = f.entries.Submit(ctx, anna, hotel("ANNA", "2025-12-17", "1"))
	_, _ = f.entries.Submit(ctx, anna, hotel("ANNA", "2025-12-25", "1"))
	_, _ = f.entries.Submit(ctx, bob, hotel("BOB", "2025-12-17", "1"))
	_, _ = f.entries.MarkPaid(ctx, admin, e1.ID)

	weeks, err := f.entries.WeeklySummary(ctx, admin, payroll.EntryFilter{})
	require.NoError(t, err)
	require.Len(t, weeks, 3)
	// newest week first, then by name
	assert.Equal(t, "2025-12-22", weeks[0].WeekStart.String())
	assert.True(t, weeks[0].Amount.Value.Equal(dec("90")))
	assert.Equal(t, generic.EmployeeID("ANNA"), weeks[1].Employee)
	assert.True(t, weeks[1].Hours.Equal(dec("3")))
	assert.True(t, weeks[1].Amount.Value.Equal(dec("75")))
	assert.Equal(t, generic.EmployeeID("BOB"), weeks[2].Employee)

	totals, err := f.entries.PaymentSummary(ctx, admin, payroll.EntryFilter{})
	require.NoError(t, err)
	require.Len(t, totals, 2)
	assert.True(t, totals[0].Paid.Value.Equal(dec("50")))
	assert.True(t, totals[0].Pending.Value.Equal(dec("115")))
	assert.True(t, totals[0].Total().Value.Equal(dec("165")))
	assert.False(t, totals[0].FullyPaid())
}

func ptr[T any](v T) *T { return &v }
