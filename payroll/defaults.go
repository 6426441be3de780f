package payroll

import "github.com/shopspring/decimal"

// DefaultRates is the preset written into a profile when an administrator
// grants access to a job type the employee has no rate for.
func DefaultRates() map[RateKey]decimal.Decimal {
	return map[RateKey]decimal.Decimal{
		RateKey(JobHotel):          decimal.NewFromInt(25),
		RateKey(JobOvernightHotel): decimal.NewFromInt(90),
		RateKey(JobWalk):           decimal.NewFromInt(25),
		RateKey(JobCatVisit):       decimal.NewFromInt(30),
		RateKey(JobPetSitting):     decimal.NewFromInt(17),
		RateOvernightPetSitting:    decimal.NewFromInt(140),
		RateKey(JobDogAtHome):      decimal.NewFromInt(75),
		RateKey(JobCatAtHome):      decimal.NewFromInt(25),
		RateKey(JobTransport):      decimal.NewFromInt(25),
		RateTransportKm:            decimal.NewFromInt(1),
		RateKey(JobTraining):       decimal.NewFromInt(100),
		RateKey(JobManagement):     decimal.NewFromInt(30),
	}
}
