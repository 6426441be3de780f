package payroll

import (
	"github.com/shopspring/decimal"

	"github.com/citypets/timesheet-engine/generic"
)

// PetSittingThreshold is the last hour count billed hourly. Anything above
// switches to the overnight fixed rate. The switch is a policy boundary,
// so the amount is not monotonic across it.
var PetSittingThreshold = decimal.NewFromInt(8)

// PetSittingDay is the longest single pet-sitting entry. Longer stays are
// split into day segments, see SplitStay.
var PetSittingDay = decimal.NewFromInt(24)

// Quantity is what the entry declares. Unused fields stay zero.
type Quantity struct {
	Hours decimal.Decimal
	Km    decimal.Decimal
	Value decimal.Decimal // expense only: the exact amount
}

// Computation is the result of pricing one entry.
type Computation struct {
	Job    JobType
	Amount generic.Amount
	// Applied lists the rates that contributed, in job-type key order.
	Applied []ResolvedRate
	// BilledHours is the hour count that was multiplied, zero for fixed
	// and exact amounts.
	BilledHours decimal.Decimal
}

// PrimaryRate is the first applied rate, used as the entry's display rate.
func (c Computation) PrimaryRate() (ResolvedRate, bool) {
	if len(c.Applied) == 0 {
		return ResolvedRate{}, false
	}
	return c.Applied[0], true
}

// =============================================================================
// CALCULATION VARIANTS - one per quantity kind
// =============================================================================

type calculation interface {
	compute(job JobType, rs RateSet, q Quantity) (Computation, error)
}

var calculations = map[QuantityKind]calculation{
	KindHourly:        hourly{},
	KindFixedDuration: thresholdSwitched{threshold: PetSittingThreshold, ceiling: PetSittingDay, fixedKey: RateOvernightPetSitting},
	KindFixedAmount:   fixedAmount{},
	KindDistanceBased: distanceBased{distanceKey: RateTransportKm},
	KindExact:         exactAmount{},
}

// Compute prices an entry from its resolved rates and declared quantity.
func Compute(job JobType, rs RateSet, q Quantity) (Computation, error) {
	spec, ok := job.Spec()
	if !ok {
		return Computation{}, &generic.InvalidReferenceError{Kind: "job_type", Value: string(job)}
	}
	calc, ok := calculations[spec.Kind]
	if !ok {
		return Computation{}, &generic.InvalidReferenceError{Kind: "quantity_kind", Value: string(spec.Kind)}
	}
	c, err := calc.compute(job, rs, q)
	if err != nil {
		return Computation{}, err
	}
	c.Job = job
	return c, nil
}

// hourly: amount = rate × hours, hours > 0.
type hourly struct{}

func (hourly) compute(job JobType, rs RateSet, q Quantity) (Computation, error) {
	if !q.Hours.IsPositive() {
		return Computation{}, &generic.InvalidQuantityError{JobType: string(job), Field: "hours", Reason: "must be greater than zero"}
	}
	rate, err := rs.Need(RateKeyFor(job))
	if err != nil {
		return Computation{}, err
	}
	return Computation{
		Amount:      generic.Money(rate.Rate.Mul(q.Hours)),
		Applied:     []ResolvedRate{rate},
		BilledHours: q.Hours,
	}, nil
}

// thresholdSwitched: hourly up to and including the threshold, the fixed
// rate above it up to the ceiling. Never blended.
type thresholdSwitched struct {
	threshold decimal.Decimal
	ceiling   decimal.Decimal
	fixedKey  RateKey
}

func (t thresholdSwitched) compute(job JobType, rs RateSet, q Quantity) (Computation, error) {
	if !q.Hours.IsPositive() {
		return Computation{}, &generic.InvalidQuantityError{JobType: string(job), Field: "hours", Reason: "must be greater than zero"}
	}
	if q.Hours.GreaterThan(t.ceiling) {
		return Computation{}, &generic.InvalidQuantityError{JobType: string(job), Field: "hours",
			Reason: "must not exceed " + t.ceiling.String() + "; submit longer stays as a stay"}
	}
	if q.Hours.LessThanOrEqual(t.threshold) {
		return hourly{}.compute(job, rs, q)
	}
	rate, err := rs.Need(t.fixedKey)
	if err != nil {
		return Computation{}, err
	}
	return Computation{
		Amount:  generic.Money(rate.Rate),
		Applied: []ResolvedRate{rate},
	}, nil
}

// fixedAmount: the resolved rate is the amount; declared hours are ignored.
type fixedAmount struct{}

func (fixedAmount) compute(job JobType, rs RateSet, q Quantity) (Computation, error) {
	if q.Hours.IsNegative() {
		return Computation{}, &generic.InvalidQuantityError{JobType: string(job), Field: "hours", Reason: "must not be negative"}
	}
	rate, err := rs.Need(RateKeyFor(job))
	if err != nil {
		return Computation{}, err
	}
	return Computation{
		Amount:  generic.Money(rate.Rate),
		Applied: []ResolvedRate{rate},
	}, nil
}

// distanceBased: hourly × hours + distance × km. Either side may be zero,
// not both.
type distanceBased struct {
	distanceKey RateKey
}

func (d distanceBased) compute(job JobType, rs RateSet, q Quantity) (Computation, error) {
	if q.Hours.IsNegative() {
		return Computation{}, &generic.InvalidQuantityError{JobType: string(job), Field: "hours", Reason: "must not be negative"}
	}
	if q.Km.IsNegative() {
		return Computation{}, &generic.InvalidQuantityError{JobType: string(job), Field: "km", Reason: "must not be negative"}
	}
	if !q.Hours.IsPositive() && !q.Km.IsPositive() {
		return Computation{}, &generic.InvalidQuantityError{JobType: string(job), Field: "hours", Reason: "hours or km must be greater than zero"}
	}

	c := Computation{Amount: generic.Money(decimal.Zero)}
	if q.Hours.IsPositive() {
		rate, err := rs.Need(RateKeyFor(job))
		if err != nil {
			return Computation{}, err
		}
		c.Amount = c.Amount.Add(generic.Money(rate.Rate.Mul(q.Hours)))
		c.Applied = append(c.Applied, rate)
		c.BilledHours = q.Hours
	}
	if q.Km.IsPositive() {
		rate, err := rs.Need(d.distanceKey)
		if err != nil {
			return Computation{}, err
		}
		c.Amount = c.Amount.Add(generic.Money(rate.Rate.Mul(q.Km)))
		c.Applied = append(c.Applied, rate)
	}
	return c, nil
}

// exactAmount: the declared value is the amount. Rate resolution is
// bypassed entirely for expenses.
type exactAmount struct{}

func (exactAmount) compute(job JobType, _ RateSet, q Quantity) (Computation, error) {
	if !q.Value.IsPositive() {
		return Computation{}, &generic.InvalidQuantityError{JobType: string(job), Field: "value", Reason: "must be greater than zero"}
	}
	return Computation{
		Amount:  generic.Money(q.Value),
		Applied: []ResolvedRate{{Key: RateKey(job), Rate: decimal.NewFromInt(1), Source: SourceExact}},
	}, nil
}
