package payroll

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/citypets/timesheet-engine/generic"
)

// WeekTotal aggregates one employee's entries for one week (Monday start).
type WeekTotal struct {
	Employee  generic.EmployeeID
	WeekStart generic.TimePoint
	Hours     decimal.Decimal
	Amount    generic.Amount
	Entries   int
}

// PaymentTotal splits one employee's amount by payment status.
type PaymentTotal struct {
	Employee       generic.EmployeeID
	Paid           generic.Amount
	Pending        generic.Amount
	PaidEntries    int
	PendingEntries int
}

// Total is paid plus pending.
func (p PaymentTotal) Total() generic.Amount { return p.Paid.Add(p.Pending) }

// FullyPaid is true when nothing is pending.
func (p PaymentTotal) FullyPaid() bool { return p.PendingEntries == 0 }

// SummarizeWeeks groups entries by employee and week, newest week first.
// Sums are exact.
func SummarizeWeeks(entries []*Entry) []WeekTotal {
	type key struct {
		employee generic.EmployeeID
		week     string
	}
	totals := make(map[key]*WeekTotal)
	for _, e := range entries {
		week := e.WeekStart
		if week.IsZero() {
			week = e.WorkDate.WeekStart()
		}
		k := key{employee: e.Employee, week: week.String()}
		t, ok := totals[k]
		if !ok {
			t = &WeekTotal{Employee: e.Employee, WeekStart: week, Amount: generic.Sum()}
			totals[k] = t
		}
		t.Hours = t.Hours.Add(e.Hours)
		t.Amount = t.Amount.Add(generic.Money(e.Amount))
		t.Entries++
	}

	out := make([]WeekTotal, 0, len(totals))
	for _, t := range totals {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].WeekStart.Equal(out[j].WeekStart) {
			return out[i].WeekStart.After(out[j].WeekStart)
		}
		return out[i].Employee < out[j].Employee
	})
	return out
}

// SummarizePayments splits totals by status per employee, in name order.
func SummarizePayments(entries []*Entry) []PaymentTotal {
	totals := make(map[generic.EmployeeID]*PaymentTotal)
	for _, e := range entries {
		t, ok := totals[e.Employee]
		if !ok {
			t = &PaymentTotal{Employee: e.Employee, Paid: generic.Sum(), Pending: generic.Sum()}
			totals[e.Employee] = t
		}
		if e.IsPaid() {
			t.Paid = t.Paid.Add(generic.Money(e.Amount))
			t.PaidEntries++
		} else {
			t.Pending = t.Pending.Add(generic.Money(e.Amount))
			t.PendingEntries++
		}
	}

	out := make([]PaymentTotal, 0, len(totals))
	for _, t := range totals {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Employee < out[j].Employee })
	return out
}

// WeeklySummary lists week totals for the entries visible to who.
func (s *EntryService) WeeklySummary(ctx context.Context, who Identity, filter EntryFilter) ([]WeekTotal, error) {
	entries, err := s.List(ctx, who, filter)
	if err != nil {
		return nil, err
	}
	return SummarizeWeeks(entries), nil
}

// PaymentSummary lists paid/pending totals for the entries visible to who.
func (s *EntryService) PaymentSummary(ctx context.Context, who Identity, filter EntryFilter) ([]PaymentTotal, error) {
	entries, err := s.List(ctx, who, filter)
	if err != nil {
		return nil, err
	}
	return SummarizePayments(entries), nil
}
