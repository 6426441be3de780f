/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the payroll model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY:
  Amounts and rates are decimal strings ("129.975"). Requests accept a
  JSON number or a string; nothing passes through float64.

VALIDATION:
  Validation is done by the payroll services, not in DTOs. DTOs are pure
  data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/citypets/timesheet-engine/generic"
	"github.com/citypets/timesheet-engine/payroll"
)

// =============================================================================
// ENTRIES
// =============================================================================

// SubmitEntryRequest is the body of POST /api/entries and /api/entries/preview.
type SubmitEntryRequest struct {
	Employee    string          `json:"employee_name"`
	JobType     string          `json:"job_type"`
	Date        string          `json:"date"`
	Pet         string          `json:"pet_name,omitempty"`
	Hours       decimal.Decimal `json:"hours"`
	Km          decimal.Decimal `json:"km"`
	Value       decimal.Decimal `json:"value"`
	Description string          `json:"description,omitempty"`
}

// EntryDTO represents an entry in API responses.
type EntryDTO struct {
	ID          string          `json:"id"`
	Employee    string          `json:"employee_name"`
	JobType     string          `json:"job_type"`
	WorkDate    string          `json:"date"`
	WeekStart   string          `json:"week_start"`
	Pet         string          `json:"pet_name,omitempty"`
	Hours       decimal.Decimal `json:"hours"`
	Km          decimal.Decimal `json:"km"`
	Value       decimal.Decimal `json:"value"`
	Description string          `json:"description,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	Rate        decimal.Decimal `json:"rate"`
	RateKey     string          `json:"rate_key,omitempty"`
	RateSource  string          `json:"rate_source,omitempty"`
	Status      string          `json:"status"`
	CreatedAt   string          `json:"created_at"`
	CreatedBy   string          `json:"created_by,omitempty"`
	PaidAt      *string         `json:"paid_at,omitempty"`
	PaidBy      string          `json:"paid_by,omitempty"`
}

func toEntryDTO(e *payroll.Entry) EntryDTO {
	dto := EntryDTO{
		ID:          string(e.ID),
		Employee:    string(e.Employee),
		JobType:     string(e.Job),
		WorkDate:    e.WorkDate.String(),
		WeekStart:   e.WeekStart.String(),
		Pet:         string(e.Pet),
		Hours:       e.Hours,
		Km:          e.Km,
		Value:       e.Value,
		Description: e.Description,
		Amount:      e.Amount,
		Rate:        e.Rate,
		RateKey:     string(e.RateKey),
		RateSource:  string(e.RateSource),
		Status:      string(e.Status),
		CreatedAt:   e.CreatedAt.Format(time.RFC3339),
		CreatedBy:   e.CreatedBy,
		PaidBy:      e.PaidBy,
	}
	if e.PaidAt != nil {
		s := e.PaidAt.Format(time.RFC3339)
		dto.PaidAt = &s
	}
	return dto
}

func toEntryDTOs(entries []*payroll.Entry) []EntryDTO {
	out := make([]EntryDTO, 0, len(entries))
	for _, e := range entries {
		out = append(out, toEntryDTO(e))
	}
	return out
}

// AppliedRateDTO is one rate used by a computation.
type AppliedRateDTO struct {
	Key    string          `json:"rate_key"`
	Rate   decimal.Decimal `json:"rate"`
	Source string          `json:"source"`
}

// PreviewDTO is a computed amount that was not stored.
type PreviewDTO struct {
	JobType     string           `json:"job_type"`
	Amount      decimal.Decimal  `json:"amount"`
	BilledHours decimal.Decimal  `json:"billed_hours"`
	Rates       []AppliedRateDTO `json:"rates"`
}

func toPreviewDTO(c payroll.Computation) PreviewDTO {
	dto := PreviewDTO{
		JobType:     string(c.Job),
		Amount:      c.Amount.Value,
		BilledHours: c.BilledHours,
		Rates:       make([]AppliedRateDTO, 0, len(c.Applied)),
	}
	for _, r := range c.Applied {
		dto.Rates = append(dto.Rates, AppliedRateDTO{Key: string(r.Key), Rate: r.Rate, Source: string(r.Source)})
	}
	return dto
}

// PayResultDTO reports a single pay request.
type PayResultDTO struct {
	Entry   EntryDTO `json:"entry"`
	Changed bool     `json:"changed"`
	Message string   `json:"message,omitempty"`
}

// RangePayRequest is the body of POST /api/payments/range.
type RangePayRequest struct {
	Employee string `json:"employee_name"`
	From     string `json:"from"`
	To       string `json:"to"`
}

// RangePayDTO summarizes a bulk payment.
type RangePayDTO struct {
	Paid        []EntryDTO      `json:"paid"`
	PaidCount   int             `json:"paid_count"`
	AlreadyPaid int             `json:"already_paid"`
	Total       decimal.Decimal `json:"total"`
}

// RevertRequest is the body of POST /api/entries/{id}/revert.
type RevertRequest struct {
	Reason string `json:"reason"`
}

// AuditEntryDTO is one audit record.
type AuditEntryDTO struct {
	ID         string            `json:"id"`
	Timestamp  string            `json:"timestamp"`
	ActorID    string            `json:"actor_id"`
	Action     string            `json:"action"`
	EntryID    string            `json:"entry_id,omitempty"`
	Employee   string            `json:"employee_name,omitempty"`
	FromStatus string            `json:"from_status,omitempty"`
	ToStatus   string            `json:"to_status,omitempty"`
	Reason     string            `json:"reason,omitempty"`
	Payload    map[string]string `json:"payload,omitempty"`
}

func toAuditDTOs(entries []generic.AuditEntry) []AuditEntryDTO {
	out := make([]AuditEntryDTO, 0, len(entries))
	for _, a := range entries {
		out = append(out, AuditEntryDTO{
			ID:         a.ID,
			Timestamp:  a.Timestamp.Format(time.RFC3339Nano),
			ActorID:    a.ActorID,
			Action:     string(a.Action),
			EntryID:    string(a.EntryID),
			Employee:   string(a.Employee),
			FromStatus: a.FromStatus,
			ToStatus:   a.ToStatus,
			Reason:     a.Reason,
			Payload:    a.Payload,
		})
	}
	return out
}

// =============================================================================
// REPORTS
// =============================================================================

// WeekTotalDTO is one row of the weekly summary.
type WeekTotalDTO struct {
	Employee  string          `json:"employee_name"`
	WeekStart string          `json:"week_start"`
	Hours     decimal.Decimal `json:"total_hours"`
	Amount    decimal.Decimal `json:"total_amount"`
	Entries   int             `json:"entry_count"`
}

// PaymentTotalDTO is one row of the payment summary.
type PaymentTotalDTO struct {
	Employee       string          `json:"employee_name"`
	Paid           decimal.Decimal `json:"paid"`
	Pending        decimal.Decimal `json:"pending"`
	Total          decimal.Decimal `json:"total"`
	PaidEntries    int             `json:"paid_entries"`
	PendingEntries int             `json:"pending_entries"`
}

// =============================================================================
// CONFIGURATION
// =============================================================================

// ProfileDTO is an employee's rate profile.
type ProfileDTO struct {
	Employee     string                     `json:"employee_name"`
	Rates        map[string]decimal.Decimal `json:"rates"`
	HolidayRates map[string]decimal.Decimal `json:"holiday_rates,omitempty"`
}

func toProfileDTO(p *payroll.EmployeeRateProfile) ProfileDTO {
	dto := ProfileDTO{
		Employee:     string(p.Employee),
		Rates:        make(map[string]decimal.Decimal, len(p.Rates)),
		HolidayRates: make(map[string]decimal.Decimal, len(p.HolidayRates)),
	}
	for k, r := range p.Rates {
		dto.Rates[string(k)] = r
	}
	for j, r := range p.HolidayRates {
		dto.HolidayRates[string(j)] = r
	}
	return dto
}

// RateRequest sets one rate.
type RateRequest struct {
	Rate decimal.Decimal `json:"rate"`
}

// RestrictionRequest replaces a job type's allow-list.
type RestrictionRequest struct {
	Employees []string `json:"employees"`
}

// AccessRequest grants or revokes one employee.
type AccessRequest struct {
	Employee string `json:"employee_name"`
}

// HolidayRequest adds one holiday.
type HolidayRequest struct {
	Date string `json:"date"`
}

// JobTypeDTO describes a job type.
type JobTypeDTO struct {
	Type        string `json:"job_type"`
	Name        string `json:"name"`
	Kind        string `json:"kind"`
	HolidayRate bool   `json:"holiday_rate"`
	PetRequired bool   `json:"pet_required"`
	Restricted  bool   `json:"restricted"`
}

// ImportResultDTO reports a bulk import.
type ImportResultDTO struct {
	Profiles     int      `json:"profiles"`
	PetRates     int      `json:"pet_rates"`
	Restrictions int      `json:"restrictions"`
	Unrestricted int      `json:"unrestricted"`
	Holidays     int      `json:"holidays"`
	Warnings     []string `json:"warnings,omitempty"`
}

// =============================================================================
// SCENARIOS
// =============================================================================

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest is the body of POST /api/scenarios/load.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}
