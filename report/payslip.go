// Package report renders payroll documents from stored entries.
//
// Amounts are never recomputed here; a payslip shows the amount fixed on
// each entry at submission.
package report

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/citypets/timesheet-engine/generic"
	"github.com/citypets/timesheet-engine/payroll"
)

// PayslipInput is one employee's entries for one period.
type PayslipInput struct {
	Employee    generic.EmployeeID
	From, To    generic.TimePoint
	Entries     []*payroll.Entry
	GeneratedAt time.Time
}

var columns = []struct {
	title string
	width float64
	align string
}{
	{"Date", 24, "L"},
	{"Job", 34, "L"},
	{"Pet", 28, "L"},
	{"Qty", 22, "R"},
	{"Rate", 22, "R"},
	{"Amount", 26, "R"},
	{"Status", 18, "C"},
}

// Payslip writes an A4 PDF payslip to w.
func Payslip(w io.Writer, in PayslipInput) error {
	if in.Employee == "" {
		return errors.New("payslip: employee is required")
	}
	generated := in.GeneratedAt
	if generated.IsZero() {
		generated = time.Now().UTC()
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(40, 10, "CityPets Payslip")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 12)
	pdf.Cell(0, 8, fmt.Sprintf("Employee: %s", in.Employee))
	pdf.Ln(7)
	pdf.Cell(0, 8, fmt.Sprintf("Period: %s to %s", dateOrOpen(in.From), dateOrOpen(in.To)))
	pdf.Ln(7)
	pdf.Cell(0, 8, fmt.Sprintf("Generated: %s", generated.Format("2006-01-02 15:04 MST")))
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "B", 10)
	for _, c := range columns {
		pdf.CellFormat(c.width, 7, c.title, "1", 0, c.align, false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 10)
	for _, e := range in.Entries {
		row := []string{
			e.WorkDate.String(),
			jobName(e.Job),
			string(e.Pet),
			quantity(e),
			rate(e),
			e.Amount.StringFixed(2),
			string(e.Status),
		}
		for i, c := range columns {
			pdf.CellFormat(c.width, 6, row[i], "1", 0, c.align, false, 0, "")
		}
		pdf.Ln(-1)
	}
	pdf.Ln(6)

	totals := payroll.SummarizePayments(in.Entries)
	paid, pending := generic.Sum(), generic.Sum()
	for _, t := range totals {
		paid = paid.Add(t.Paid)
		pending = pending.Add(t.Pending)
	}

	pdf.SetFont("Helvetica", "", 12)
	pdf.Cell(0, 8, fmt.Sprintf("Entries: %d", len(in.Entries)))
	pdf.Ln(7)
	pdf.Cell(0, 8, fmt.Sprintf("Paid: %s", paid.Display()))
	pdf.Ln(7)
	pdf.Cell(0, 8, fmt.Sprintf("Pending: %s", pending.Display()))
	pdf.Ln(7)
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, fmt.Sprintf("Total: %s", paid.Add(pending).Display()))

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("payslip: %w", err)
	}
	return nil
}

func dateOrOpen(d generic.TimePoint) string {
	if d.IsZero() {
		return "-"
	}
	return d.String()
}

func jobName(j payroll.JobType) string {
	if s, ok := j.Spec(); ok {
		return s.Name
	}
	return string(j)
}

func quantity(e *payroll.Entry) string {
	switch e.Job.Kind() {
	case payroll.KindExact:
		return "-"
	case payroll.KindFixedAmount:
		return "1"
	case payroll.KindDistanceBased:
		if e.Hours.IsZero() {
			return e.Km.String() + " km"
		}
		return fmt.Sprintf("%sh/%skm", e.Hours.String(), e.Km.String())
	}
	return e.Hours.String() + " h"
}

func rate(e *payroll.Entry) string {
	if e.RateSource == payroll.SourceExact || e.Rate.IsZero() {
		return "-"
	}
	return e.Rate.StringFixed(2)
}
