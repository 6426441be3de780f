/*
Package generic provides the domain-agnostic primitives of the payroll engine.

PURPOSE:
  Money, quantities, dates and the error taxonomy are shared by every
  layer: the rate resolver, the amount calculator, the stores and the
  HTTP surface. Nothing in here knows what a "walk" or a "hotel shift" is.

KEY CONCEPTS IN THIS FILE (types.go):
  - Amount: A decimal quantity with a unit (125.50 PLN)
  - Identifiers: Type-safe employee, entry and pet identifiers

DESIGN PRINCIPLES:
  1. Precision: decimal.Decimal everywhere, never float64 for money
  2. Type Safety: EmployeeID and PetName cannot be swapped by accident
  3. Exactness: no implicit rounding; rounding is a presentation concern

USAGE:
  pay := generic.Money(decimal.RequireFromString("17.33").Mul(decimal.RequireFromString("2.5")))
  fmt.Println(pay.Display()) // 43.33 PLN

SEE ALSO:
  - time.go: Dates and the holiday calendar
  - errors.go: Error taxonomy
*/
package generic

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// AMOUNT - Quantity with unit
// =============================================================================

type Amount struct {
	Value decimal.Decimal
	Unit  Unit
}

type Unit string

const UnitPLN Unit = "PLN"

// Currency is the single currency all rates and amounts are expressed in.
const Currency = UnitPLN

// Money is shorthand for an amount in the engine currency.
func Money(value decimal.Decimal) Amount {
	return Amount{Value: value, Unit: Currency}
}

func (a Amount) Add(b Amount) Amount { return Amount{Value: a.Value.Add(b.Value), Unit: a.Unit} }
func (a Amount) Equal(b Amount) bool { return a.Unit == b.Unit && a.Value.Equal(b.Value) }

// String renders the exact value with its unit, e.g. "129.975 PLN".
func (a Amount) String() string { return a.Value.String() + " " + string(a.Unit) }

// Display renders the value rounded to cents for people to read.
func (a Amount) Display() string { return a.Value.StringFixed(2) + " " + string(a.Unit) }

// Sum adds amounts exactly. The unit of the first amount wins; an empty
// slice sums to zero PLN.
func Sum(amounts ...Amount) Amount {
	total := Money(decimal.Zero)
	if len(amounts) > 0 {
		total.Unit = amounts[0].Unit
	}
	for _, a := range amounts {
		total.Value = total.Value.Add(a.Value)
	}
	return total
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

// EmployeeID is the employee name as issued by the identity provider.
// Matching is exact.
type EmployeeID string

type EntryID string

// PetName is a pet display name. Matching is exact.
type PetName string
