package payroll

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citypets/timesheet-engine/generic"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

var (
	workday   = generic.MustParseDate("2025-12-22")
	christmas = generic.MustParseDate("2025-12-25")
)

// testConfig is a small roster:
//
//	ANNA   full rates, holiday hotel 90, holiday overnight_hotel 100
//	BOB    hotel and walk only
//	CARLA  pet_sitting only (no overnight rate), training allowed
//
// Pet Burek has walk 40 and hotel 50. Training is restricted to CARLA.
func testConfig() RateConfig {
	anna := NewProfile("ANNA")
	for k, v := range map[RateKey]string{
		"hotel": "25", "overnight_hotel": "90", "walk": "25", "cat_visit": "30",
		"pet_sitting": "17.33", "overnight_pet_sitting": "140",
		"dog_at_home": "75", "cat_at_home": "25",
		"transport": "25", "transport_km": "1", "management": "30",
	} {
		anna.Rates[k] = d(v)
	}
	anna.HolidayRates[JobHotel] = d("90")
	anna.HolidayRates[JobOvernightHotel] = d("100")

	bob := NewProfile("BOB")
	bob.Rates["hotel"] = d("27")
	bob.Rates["walk"] = d("27")

	carla := NewProfile("CARLA")
	carla.Rates["pet_sitting"] = d("20")
	carla.Rates["training"] = d("100")

	return RateConfig{
		Profiles: map[generic.EmployeeID]*EmployeeRateProfile{"ANNA": anna, "BOB": bob, "CARLA": carla},
		Pets: PetRateTable{
			"Burek": {"walk": d("40"), "hotel": d("50")},
		},
		Access:   AccessPolicy{JobTraining: {"CARLA"}},
		Holidays: generic.NewHolidaySet(christmas),
	}
}

func hours(h string) Quantity { return Quantity{Hours: d(h)} }

func evaluate(t *testing.T, s Submission) Computation {
	t.Helper()
	c, err := NewEngine().Evaluate(testConfig(), s)
	require.NoError(t, err)
	return c
}

// =============================================================================
// RATE RESOLUTION
// =============================================================================

func TestResolve_BaseRate(t *testing.T) {
	rs, err := NewResolver().Resolve(testConfig(), "BOB", JobHotel, "", workday)
	require.NoError(t, err)

	r, ok := rs.Get("hotel")
	require.True(t, ok)
	assert.True(t, r.Rate.Equal(d("27")))
	assert.Equal(t, SourceBase, r.Source)
}

func TestResolve_PetOverrideBeatsBase(t *testing.T) {
	rs, err := NewResolver().Resolve(testConfig(), "BOB", JobWalk, "Burek", workday)
	require.NoError(t, err)

	r, _ := rs.Get("walk")
	assert.True(t, r.Rate.Equal(d("40")))
	assert.Equal(t, SourcePet, r.Source)
}

func TestResolve_PetOverrideBeatsHoliday(t *testing.T) {
	// GIVEN: ANNA has a holiday hotel rate of 90 and Burek a hotel rate of 50
	// WHEN: hotel for Burek on Christmas
	rs, err := NewResolver().Resolve(testConfig(), "ANNA", JobHotel, "Burek", christmas)
	require.NoError(t, err)

	// THEN: the pet wins
	r, _ := rs.Get("hotel")
	assert.True(t, r.Rate.Equal(d("50")))
	assert.Equal(t, SourcePet, r.Source)
}

func TestResolve_HolidayOverrideOnlyOnHolidays(t *testing.T) {
	cfg := testConfig()

	rs, err := NewResolver().Resolve(cfg, "ANNA", JobHotel, "", christmas)
	require.NoError(t, err)
	r, _ := rs.Get("hotel")
	assert.Equal(t, SourceHoliday, r.Source)
	assert.True(t, r.Rate.Equal(d("90")))

	rs, err = NewResolver().Resolve(cfg, "ANNA", JobHotel, "", workday)
	require.NoError(t, err)
	r, _ = rs.Get("hotel")
	assert.Equal(t, SourceBase, r.Source)
	assert.True(t, r.Rate.Equal(d("25")))
}

func TestResolve_HolidayOverrideIgnoredForOtherJobTypes(t *testing.T) {
	// GIVEN: a walk on Christmas; walk has no holiday tier
	cfg := testConfig()
	cfg.Profiles["ANNA"].HolidayRates[JobWalk] = d("999")

	rs, err := NewResolver().Resolve(cfg, "ANNA", JobWalk, "", christmas)
	require.NoError(t, err)

	r, _ := rs.Get("walk")
	assert.Equal(t, SourceBase, r.Source)
	assert.True(t, r.Rate.Equal(d("25")))
}

func TestResolve_HolidayWithoutOverrideFallsBackToBase(t *testing.T) {
	rs, err := NewResolver().Resolve(testConfig(), "BOB", JobHotel, "", christmas)
	require.NoError(t, err)

	r, _ := rs.Get("hotel")
	assert.Equal(t, SourceBase, r.Source)
	assert.True(t, r.Rate.Equal(d("27")))
}

func TestResolve_MissingRateIsConfigurationError(t *testing.T) {
	_, err := NewResolver().Resolve(testConfig(), "BOB", JobCatVisit, "", workday)

	var cfgErr *generic.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, generic.EmployeeID("BOB"), cfgErr.Employee)
	assert.Equal(t, "cat_visit", cfgErr.RateKey)
	assert.True(t, errors.Is(err, generic.ErrConfiguration))
}

func TestResolve_UnknownEmployee(t *testing.T) {
	_, err := NewResolver().Resolve(testConfig(), "NOBODY", JobHotel, "", workday)
	assert.ErrorIs(t, err, generic.ErrInvalidReference)
}

func TestResolve_TwoRateJobIsLazy(t *testing.T) {
	// GIVEN: CARLA has pet_sitting but no overnight_pet_sitting
	rs, err := NewResolver().Resolve(testConfig(), "CARLA", JobPetSitting, "", workday)
	require.NoError(t, err)

	// THEN: the hourly part resolves and the missing one errors only on demand
	_, err = rs.Need("pet_sitting")
	assert.NoError(t, err)
	_, err = rs.Need(RateOvernightPetSitting)
	assert.ErrorIs(t, err, generic.ErrConfiguration)
}

func TestResolve_ExpenseNeedsNoRates(t *testing.T) {
	rs, err := NewResolver().Resolve(testConfig(), "BOB", JobExpense, "", workday)
	require.NoError(t, err)
	assert.Empty(t, rs.Rates())
}

func TestRateKeysOf(t *testing.T) {
	assert.Equal(t, []RateKey{"pet_sitting", RateOvernightPetSitting}, rateKeysOf(JobPetSitting))
	assert.Equal(t, []RateKey{"transport", RateTransportKm}, rateKeysOf(JobTransport))
	assert.Equal(t, []RateKey{"walk"}, rateKeysOf(JobWalk))
	assert.Nil(t, rateKeysOf(JobExpense))
}

// =============================================================================
// AMOUNT CALCULATION
// =============================================================================

func TestCompute_Hourly(t *testing.T) {
	c := evaluate(t, Submission{Employee: "ANNA", Job: JobHotel, Date: workday, Quantity: hours("6")})
	assert.True(t, c.Amount.Value.Equal(d("150")), "got %s", c.Amount)
	assert.Equal(t, generic.UnitPLN, c.Amount.Unit)
	assert.True(t, c.BilledHours.Equal(d("6")))
}

func TestCompute_HolidayHotel(t *testing.T) {
	// 1h hotel on Christmas at the holiday rate of 90
	c := evaluate(t, Submission{Employee: "ANNA", Job: JobHotel, Date: christmas, Quantity: hours("1")})
	assert.True(t, c.Amount.Value.Equal(d("90")))
	assert.Equal(t, SourceHoliday, c.Applied[0].Source)
}

func TestCompute_OvernightHotelIsFixed(t *testing.T) {
	c := evaluate(t, Submission{Employee: "ANNA", Job: JobOvernightHotel, Date: workday, Quantity: hours("12")})
	assert.True(t, c.Amount.Value.Equal(d("90")))
	assert.True(t, c.BilledHours.IsZero())

	c = evaluate(t, Submission{Employee: "ANNA", Job: JobOvernightHotel, Date: christmas})
	assert.True(t, c.Amount.Value.Equal(d("100")))
}

func TestCompute_PetSittingThreshold(t *testing.T) {
	tests := []struct {
		name  string
		hours string
		want  string
	}{
		{"fractional", "2.5", "43.325"},
		{"exactly eight is hourly", "8", "138.64"},
		{"just above switches to overnight", "8.01", "140"},
		{"nine hours", "9", "140"},
		{"overnight is flat", "14", "140"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := evaluate(t, Submission{Employee: "ANNA", Job: JobPetSitting, Date: workday, Pet: "Luna", Quantity: hours(tt.hours)})
			assert.True(t, c.Amount.Value.Equal(d(tt.want)), "got %s want %s", c.Amount.Value, tt.want)
		})
	}
}

func TestCompute_PetSittingAboveOneDayIsRejected(t *testing.T) {
	c := evaluate(t, Submission{Employee: "ANNA", Job: JobPetSitting, Date: workday, Pet: "Luna", Quantity: hours("24")})
	assert.True(t, c.Amount.Value.Equal(d("140")))

	_, err := NewEngine().Evaluate(testConfig(), Submission{Employee: "ANNA", Job: JobPetSitting, Date: workday, Pet: "Luna", Quantity: hours("24.01")})
	assert.ErrorIs(t, err, generic.ErrInvalidQuantity)
}

func TestSplitStay(t *testing.T) {
	tests := []struct {
		name  string
		hours string
		want  []string
	}{
		{"within a day", "10", []string{"10"}},
		{"exactly a day", "24", []string{"24"}},
		{"day and a tail", "30", []string{"24", "6"}},
		{"three days", "72", []string{"24", "24", "24"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			segs := SplitStay(Submission{Employee: "ANNA", Job: JobPetSitting, Date: workday, Pet: "Luna", Quantity: hours(tt.hours)})
			require.Len(t, segs, len(tt.want))
			for i, seg := range segs {
				assert.True(t, seg.Quantity.Hours.Equal(d(tt.want[i])), "segment %d: got %s", i, seg.Quantity.Hours)
				assert.Equal(t, workday.AddDays(i), seg.Date)
				assert.Equal(t, generic.PetName("Luna"), seg.Pet)
			}
		})
	}
}

func TestCompute_PetSittingRepeatedIsExact(t *testing.T) {
	// GIVEN: three 2.5h sittings at 17.33
	total := generic.Sum()
	for i := 0; i < 3; i++ {
		c := evaluate(t, Submission{Employee: "ANNA", Job: JobPetSitting, Date: workday, Pet: "Luna", Quantity: hours("2.5")})
		total = total.Add(c.Amount)
	}
	// THEN: no float drift
	assert.Equal(t, "129.975", total.Value.String())
}

func TestCompute_PetSittingOvernightMissing(t *testing.T) {
	// GIVEN: CARLA has no overnight_pet_sitting rate
	cfg := testConfig()
	short, err := NewEngine().Evaluate(cfg, Submission{Employee: "CARLA", Job: JobPetSitting, Date: workday, Pet: "Luna", Quantity: hours("4")})
	require.NoError(t, err)
	assert.True(t, short.Amount.Value.Equal(d("80")))

	// WHEN: the sitting crosses the threshold
	_, err = NewEngine().Evaluate(cfg, Submission{Employee: "CARLA", Job: JobPetSitting, Date: workday, Pet: "Luna", Quantity: hours("10")})

	// THEN: the missing overnight rate surfaces
	var cfgErr *generic.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, string(RateOvernightPetSitting), cfgErr.RateKey)
}

func TestCompute_Transport(t *testing.T) {
	tests := []struct {
		name string
		q    Quantity
		want string
	}{
		{"km only", Quantity{Km: d("50")}, "50"},
		{"hours and km", Quantity{Hours: d("2"), Km: d("25")}, "75"},
		{"hours only", Quantity{Hours: d("1.5")}, "37.5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := evaluate(t, Submission{Employee: "ANNA", Job: JobTransport, Date: workday, Quantity: tt.q})
			assert.True(t, c.Amount.Value.Equal(d(tt.want)), "got %s", c.Amount.Value)
		})
	}
}

func TestCompute_TransportNeedsSomething(t *testing.T) {
	_, err := NewEngine().Evaluate(testConfig(), Submission{Employee: "ANNA", Job: JobTransport, Date: workday})
	assert.ErrorIs(t, err, generic.ErrInvalidQuantity)
}

func TestCompute_ExpenseIsExact(t *testing.T) {
	c := evaluate(t, Submission{Employee: "BOB", Job: JobExpense, Date: workday, Quantity: Quantity{Value: d("38.50")}, Description: "Cat food"})
	assert.True(t, c.Amount.Value.Equal(d("38.5")))
	assert.Equal(t, SourceExact, c.Applied[0].Source)
}

func TestCompute_InvalidQuantities(t *testing.T) {
	tests := []struct {
		name  string
		sub   Submission
		field string
	}{
		{"zero hours", Submission{Employee: "ANNA", Job: JobHotel, Date: workday}, "hours"},
		{"negative hours", Submission{Employee: "ANNA", Job: JobHotel, Date: workday, Quantity: hours("-1")}, "hours"},
		{"negative km", Submission{Employee: "ANNA", Job: JobTransport, Date: workday, Quantity: Quantity{Km: d("-3")}}, "km"},
		{"walk without pet", Submission{Employee: "ANNA", Job: JobWalk, Date: workday, Quantity: hours("1")}, "pet_name"},
		{"missing date", Submission{Employee: "ANNA", Job: JobHotel, Quantity: hours("1")}, "date"},
		{"expense without description", Submission{Employee: "ANNA", Job: JobExpense, Date: workday, Quantity: Quantity{Value: d("10")}}, "description"},
		{"expense without value", Submission{Employee: "ANNA", Job: JobExpense, Date: workday, Description: "x"}, "value"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewEngine().Evaluate(testConfig(), tt.sub)
			var qErr *generic.InvalidQuantityError
			require.ErrorAs(t, err, &qErr)
			assert.Equal(t, tt.field, qErr.Field)
		})
	}
}

// =============================================================================
// ACCESS GATE
// =============================================================================

func TestAccess_DeniedBeforeRateLookup(t *testing.T) {
	// GIVEN: BOB has no training rate and training is restricted to CARLA
	// WHEN: BOB logs training
	_, err := NewEngine().Evaluate(testConfig(), Submission{Employee: "BOB", Job: JobTraining, Date: workday, Quantity: hours("1")})

	// THEN: the access denial wins over the missing rate
	var denied *generic.AccessDeniedError
	require.ErrorAs(t, err, &denied)
	assert.False(t, errors.Is(err, generic.ErrConfiguration))
	assert.NotContains(t, err.Error(), "100")
}

func TestAccess_AllowedEmployee(t *testing.T) {
	c := evaluate(t, Submission{Employee: "CARLA", Job: JobTraining, Date: workday, Quantity: hours("2")})
	assert.True(t, c.Amount.Value.Equal(d("200")))
}

func TestAccessPolicy(t *testing.T) {
	p := AccessPolicy{JobTraining: {"CARLA"}, JobManagement: {}}

	assert.True(t, p.CanLog("ANNA", JobHotel), "unrestricted")
	assert.True(t, p.CanLog("CARLA", JobTraining))
	assert.False(t, p.CanLog("ANNA", JobTraining))
	assert.False(t, p.CanLog("CARLA", JobManagement), "empty list allows nobody")
	assert.True(t, p.Restricted(JobManagement))
	assert.False(t, p.Restricted(JobHotel))

	allowed := p.AllowedJobTypes("ANNA")
	assert.NotContains(t, allowed, JobTraining)
	assert.NotContains(t, allowed, JobManagement)
	assert.Contains(t, allowed, JobExpense)
}

func TestEvaluate_UnknownJobType(t *testing.T) {
	_, err := NewEngine().Evaluate(testConfig(), Submission{Employee: "ANNA", Job: "household_work", Date: workday, Quantity: hours("1")})
	var refErr *generic.InvalidReferenceError
	require.ErrorAs(t, err, &refErr)
	assert.Equal(t, "job_type", refErr.Kind)
}

// =============================================================================
// ENTRY STATE MACHINE
// =============================================================================

func TestEntry_PayIsIdempotent(t *testing.T) {
	e := &Entry{ID: "e1", Status: StatusPending, Amount: d("150")}
	first := workday.Time

	assert.True(t, e.Pay(first, "admin"))
	assert.False(t, e.Pay(christmas.Time, "someone-else"))

	assert.Equal(t, StatusPaid, e.Status)
	assert.True(t, e.PaidAt.Equal(first), "original payment time is kept")
	assert.Equal(t, "admin", e.PaidBy)
	assert.True(t, e.Amount.Equal(d("150")))
}

func TestEntry_RevertOnlyFromPaid(t *testing.T) {
	e := &Entry{ID: "e1", Status: StatusPending}
	assert.ErrorIs(t, e.Revert(), generic.ErrInvalidTransition)

	e.Pay(workday.Time, "admin")
	require.NoError(t, e.Revert())
	assert.Equal(t, StatusPending, e.Status)
	assert.Nil(t, e.PaidAt)
	assert.Empty(t, e.PaidBy)
}
