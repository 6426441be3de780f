package payroll_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citypets/timesheet-engine/generic"
	"github.com/citypets/timesheet-engine/payroll"
)

func TestConfig_WritesRequireAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.config.SetRate(ctx, anna, "ANNA", "hotel", dec("1000"))
	assert.ErrorIs(t, err, generic.ErrForbidden)

	err = f.config.AddHoliday(ctx, bob, generic.MustParseDate("2026-01-01"))
	assert.ErrorIs(t, err, generic.ErrForbidden)

	p, _ := f.store.GetProfile(ctx, "ANNA")
	assert.True(t, p.Rates["hotel"].Equal(dec("25")))
}

func TestConfig_SetRateValidates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.config.SetRate(ctx, admin, "ANNA", "expense", dec("10"))
	assert.ErrorIs(t, err, generic.ErrInvalidReference)

	err = f.config.SetRate(ctx, admin, "ANNA", "hotel", dec("-1"))
	assert.Error(t, err)
}

func TestConfig_SetRateCreatesProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.config.SetRate(ctx, admin, "DORA", "walk", dec("26")))

	p, err := f.store.GetProfile(ctx, "DORA")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.True(t, p.Rates["walk"].Equal(dec("26")))
}

func TestConfig_HolidayRateOnlyForHotelJobs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	assert.Error(t, f.config.SetHolidayRate(ctx, admin, "BOB", payroll.JobWalk, dec("30")))
	require.NoError(t, f.config.SetHolidayRate(ctx, admin, "BOB", payroll.JobOvernightHotel, dec("110")))

	p, _ := f.store.GetProfile(ctx, "BOB")
	assert.True(t, p.HolidayRates[payroll.JobOvernightHotel].Equal(dec("110")))
}

func TestConfig_PetRateAppliesToNewEntries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.config.SetPetRate(ctx, admin, "Burek", "walk", dec("40")))

	e, err := f.entries.Submit(ctx, bob, payroll.Submission{
		Employee: "BOB", Job: payroll.JobWalk, Pet: "Burek",
		Date: generic.MustParseDate("2025-12-17"), Quantity: payroll.Quantity{Hours: dec("1.5")},
	})
	require.NoError(t, err)
	assert.True(t, e.Amount.Equal(dec("60")))
	assert.Equal(t, payroll.SourcePet, e.RateSource)

	require.NoError(t, f.config.RemovePetRate(ctx, admin, "Burek", "walk"))
	err = f.config.RemovePetRate(ctx, admin, "Burek", "walk")
	assert.ErrorIs(t, err, generic.ErrInvalidReference)
}

func TestConfig_GrantAccessSeedsDefaults(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// GIVEN: BOB cannot log training and has no training rate
	// WHEN: access is granted
	require.NoError(t, f.config.GrantAccess(ctx, admin, "BOB", payroll.JobTraining))

	// THEN: BOB is on the list and got the default rate
	cfg, _ := f.config.Config(ctx)
	assert.True(t, cfg.Access.CanLog("BOB", payroll.JobTraining))
	assert.True(t, cfg.Access.CanLog("ANNA", payroll.JobTraining))
	assert.True(t, cfg.Profiles["BOB"].Rates["training"].Equal(dec("100")))

	e, err := f.entries.Submit(ctx, bob, payroll.Submission{
		Employee: "BOB", Job: payroll.JobTraining,
		Date: generic.MustParseDate("2025-12-17"), Quantity: payroll.Quantity{Hours: dec("1")},
	})
	require.NoError(t, err)
	assert.True(t, e.Amount.Equal(dec("100")))
}

func TestConfig_GrantAccessKeepsExistingRates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.config.GrantAccess(ctx, admin, "BOB", payroll.JobHotel))

	p, _ := f.store.GetProfile(ctx, "BOB")
	assert.True(t, p.Rates["hotel"].Equal(dec("27")))
}

func TestConfig_GrantAccessSeedsBothPetSittingRates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.config.GrantAccess(ctx, admin, "BOB", payroll.JobPetSitting))

	p, _ := f.store.GetProfile(ctx, "BOB")
	assert.True(t, p.Rates["pet_sitting"].Equal(dec("17")))
	assert.True(t, p.Rates[payroll.RateOvernightPetSitting].Equal(dec("140")))
}

func TestConfig_RevokeAccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Restricted job: ANNA is removed, nobody left
	require.NoError(t, f.config.RevokeAccess(ctx, admin, "ANNA", payroll.JobTraining))
	cfg, _ := f.config.Config(ctx)
	assert.False(t, cfg.Access.CanLog("ANNA", payroll.JobTraining))
	assert.True(t, cfg.Access.Restricted(payroll.JobTraining))

	// Unrestricted job: restricted to everyone else
	require.NoError(t, f.config.RevokeAccess(ctx, admin, "BOB", payroll.JobHotel))
	cfg, _ = f.config.Config(ctx)
	assert.False(t, cfg.Access.CanLog("BOB", payroll.JobHotel))
	assert.True(t, cfg.Access.CanLog("ANNA", payroll.JobHotel))

	// Rates are left alone
	assert.True(t, cfg.Profiles["BOB"].Rates["hotel"].Equal(dec("27")))
}

func TestConfig_Holidays(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	newYear := generic.MustParseDate("2026-01-01")

	require.NoError(t, f.config.AddHoliday(ctx, admin, newYear))
	require.NoError(t, f.config.AddHoliday(ctx, admin, newYear), "adding twice is a no-op")

	dates, err := f.store.ListHolidays(ctx)
	require.NoError(t, err)
	assert.Len(t, dates, 2)

	require.NoError(t, f.config.RemoveHoliday(ctx, admin, newYear))
	assert.ErrorIs(t, f.config.RemoveHoliday(ctx, admin, newYear), generic.ErrInvalidReference)

	assert.ErrorIs(t, f.config.AddHoliday(ctx, admin, generic.TimePoint{}), generic.ErrInvalidQuantity)
}

func TestConfig_ChangesAreAudited(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.config.SetRate(ctx, admin, "BOB", "walk", dec("28")))

	emp := generic.EmployeeID("BOB")
	audit, err := f.store.QueryAudit(ctx, generic.AuditFilter{
		Employee: &emp,
		Actions:  []generic.AuditAction{generic.AuditConfigChanged},
	})
	require.NoError(t, err)
	require.Len(t, audit, 1)
	assert.Equal(t, "set_rate", audit[0].Payload["change"])
	assert.Equal(t, "28", audit[0].Payload["rate"])
	assert.Equal(t, "u-admin", audit[0].ActorID)
}

func TestConfig_ImportIsAllOrNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	good := payroll.NewProfile("EVE")
	good.Rates["hotel"] = dec("30")
	bad := payroll.NewProfile("FRANK")
	bad.Rates["hotel"] = dec("-5")

	_, err := f.config.Import(ctx, admin, payroll.Bundle{Profiles: []*payroll.EmployeeRateProfile{good, bad}})
	require.Error(t, err)

	p, err := f.store.GetProfile(ctx, "EVE")
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestConfig_DeleteProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.config.DeleteProfile(ctx, admin, "BOB"))

	_, err := f.entries.Submit(ctx, bob, hotel("BOB", "2025-12-17", "1"))
	assert.ErrorIs(t, err, generic.ErrInvalidReference)

	assert.ErrorIs(t, f.config.DeleteProfile(ctx, admin, "BOB"), generic.ErrInvalidReference)
}

func TestConfig_ImportLiftsRestriction(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// GIVEN: training is restricted to ANNA, so BOB is denied
	_, err := f.entries.Submit(ctx, bob, payroll.Submission{
		Employee: "BOB", Job: payroll.JobTraining,
		Date: generic.MustParseDate("2025-12-17"), Quantity: payroll.Quantity{Hours: dec("1")},
	})
	require.ErrorIs(t, err, generic.ErrAccessDenied)

	// WHEN: a bundle marking training unrestricted is imported
	res, err := f.config.Import(ctx, admin, payroll.Bundle{Unrestricted: []payroll.JobType{payroll.JobTraining}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Unrestricted)

	// THEN: the allow-list is gone
	cfg, _ := f.config.Config(ctx)
	assert.False(t, cfg.Access.Restricted(payroll.JobTraining))
	assert.True(t, cfg.Access.CanLog("BOB", payroll.JobTraining))
}

func TestConfig_ImportRejectsContradictoryAccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.config.Import(ctx, admin, payroll.Bundle{
		Access:       payroll.AccessPolicy{payroll.JobWalk: {"BOB"}},
		Unrestricted: []payroll.JobType{payroll.JobWalk, payroll.JobTraining},
	})
	assert.ErrorIs(t, err, generic.ErrConfiguration)

	cfg, _ := f.config.Config(ctx)
	assert.True(t, cfg.Access.Restricted(payroll.JobTraining), "nothing was applied")
}

func TestConfig_ExportImportReproducesAccess(t *testing.T) {
	ctx := context.Background()
	source := newFixture(t)
	target := newFixture(t)

	// GIVEN: the source lifts training; the target still restricts it
	require.NoError(t, source.config.ClearRestriction(ctx, admin, payroll.JobTraining))
	require.NoError(t, source.config.SetRestriction(ctx, admin, payroll.JobWalk, []generic.EmployeeID{"BOB"}))

	// WHEN: the source export is imported into the target
	b, err := source.config.Export(ctx)
	require.NoError(t, err)
	_, err = target.config.Import(ctx, admin, b)
	require.NoError(t, err)

	// THEN: both stores agree on every job type
	want, _ := source.config.Config(ctx)
	got, _ := target.config.Config(ctx)
	for _, spec := range payroll.JobTypes() {
		assert.Equal(t, want.Access.Restricted(spec.Type), got.Access.Restricted(spec.Type), spec.Type)
	}
	assert.True(t, got.Access.CanLog("BOB", payroll.JobTraining))
	assert.False(t, got.Access.CanLog("ANNA", payroll.JobWalk))
}
