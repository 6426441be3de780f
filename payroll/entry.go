package payroll

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/citypets/timesheet-engine/generic"
)

// =============================================================================
// ENTRY LIFECYCLE
// =============================================================================
//
//	pending --pay--> paid
//	paid --revert (admin, audited)--> pending
//
// Paying a paid entry is a reported no-op. There are no other states.

type PaymentStatus string

const (
	StatusPending PaymentStatus = "pending"
	StatusPaid    PaymentStatus = "paid"
)

func ParseStatus(s string) (PaymentStatus, error) {
	switch PaymentStatus(s) {
	case StatusPending, StatusPaid:
		return PaymentStatus(s), nil
	}
	return "", &generic.InvalidReferenceError{Kind: "status", Value: s}
}

// Entry is one submitted unit of work. Amount is fixed at submission with
// the rates in effect then and is only recomputed by an edit while pending.
type Entry struct {
	ID          generic.EntryID
	Employee    generic.EmployeeID
	Job         JobType
	WorkDate    generic.TimePoint
	WeekStart   generic.TimePoint
	Pet         generic.PetName
	Hours       decimal.Decimal
	Km          decimal.Decimal
	Value       decimal.Decimal // expense only
	Description string

	Amount     decimal.Decimal
	Rate       decimal.Decimal
	RateKey    RateKey
	RateSource RateSource

	Status    PaymentStatus
	CreatedAt time.Time
	CreatedBy string
	PaidAt    *time.Time
	PaidBy    string
}

// Quantity returns the declared quantity.
func (e *Entry) Quantity() Quantity {
	return Quantity{Hours: e.Hours, Km: e.Km, Value: e.Value}
}

// Submission rebuilds the input the entry was priced from.
func (e *Entry) Submission() Submission {
	return Submission{
		Employee:    e.Employee,
		Job:         e.Job,
		Date:        e.WorkDate,
		Pet:         e.Pet,
		Quantity:    e.Quantity(),
		Description: e.Description,
	}
}

// IsPaid reports whether the entry is paid.
func (e *Entry) IsPaid() bool { return e.Status == StatusPaid }

// Apply writes a computation onto the entry.
func (e *Entry) Apply(c Computation) {
	e.Amount = c.Amount.Value
	if r, ok := c.PrimaryRate(); ok {
		e.Rate = r.Rate
		e.RateKey = r.Key
		e.RateSource = r.Source
	}
}

// Pay marks the entry paid at 'at'. It returns false, leaving the amount
// and the original payment timestamp untouched, when already paid.
func (e *Entry) Pay(at time.Time, actor string) bool {
	if e.Status == StatusPaid {
		return false
	}
	at = at.UTC()
	e.Status = StatusPaid
	e.PaidAt = &at
	e.PaidBy = actor
	return true
}

// Revert moves a paid entry back to pending. Only for corrections; the
// caller must record why.
func (e *Entry) Revert() error {
	if e.Status != StatusPaid {
		return fmt.Errorf("revert %s from %s: %w", e.ID, e.Status, generic.ErrInvalidTransition)
	}
	e.Status = StatusPending
	e.PaidAt = nil
	e.PaidBy = ""
	return nil
}

// Clone returns a copy safe to mutate.
func (e *Entry) Clone() *Entry {
	c := *e
	if e.PaidAt != nil {
		t := *e.PaidAt
		c.PaidAt = &t
	}
	return &c
}

// =============================================================================
// QUERIES
// =============================================================================

// EntryFilter selects entries. Zero fields match everything.
type EntryFilter struct {
	Employee generic.EmployeeID
	Job      JobType
	Status   PaymentStatus
	From     generic.TimePoint
	To       generic.TimePoint
}

func (f EntryFilter) Matches(e *Entry) bool {
	if f.Employee != "" && e.Employee != f.Employee {
		return false
	}
	if f.Job != "" && e.Job != f.Job {
		return false
	}
	if f.Status != "" && e.Status != f.Status {
		return false
	}
	return e.WorkDate.Within(f.From, f.To)
}
