/*
handlers.go - HTTP API handlers for the timesheet engine

PURPOSE:
  Exposes entry submission, payment and configuration via REST API.
  Handles HTTP request/response and JSON serialization, and delegates
  to the payroll services.

ENDPOINTS:
  Entries:
    GET    /api/entries                List entries (employees see their own)
    POST   /api/entries                Submit an entry
    POST   /api/entries/preview        Compute without storing
    GET    /api/entries/{id}           Get one entry
    PUT    /api/entries/{id}           Edit a pending entry (admin)
    DELETE /api/entries/{id}           Delete a pending entry (admin)
    POST   /api/entries/{id}/pay       Mark paid (admin)
    POST   /api/entries/{id}/revert    Revert a payment (admin)
    GET    /api/entries/{id}/history   Audit trail (admin)

  Payments:
    POST   /api/payments/range         Pay an employee's range (admin)

  Reports:
    GET    /api/reports/weekly         Totals per employee and week
    GET    /api/reports/payments       Paid/pending per employee
    GET    /api/reports/payslip.pdf    Payslip PDF

  Configuration (admin):
    /api/config/employees, /pets, /access, /holidays
    POST   /api/admin/import           Bulk import
    GET    /api/admin/export           Bulk export

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Invalid quantity, unknown job type/employee/pet
  - 401: Missing or invalid token
  - 403: Access policy denial, admin-only endpoint
  - 404: Entry not found
  - 409: Entry already paid, invalid status transition
  - 422: Rate cannot be resolved (configuration error)
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - auth.go: Bearer token identity
  - server.go: Router setup and middleware
*/
package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/citypets/timesheet-engine/factory"
	"github.com/citypets/timesheet-engine/generic"
	"github.com/citypets/timesheet-engine/payroll"
	"github.com/citypets/timesheet-engine/report"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store   payroll.TxStore
	Entries *payroll.EntryService
	Config  *payroll.ConfigService
	Logger  *slog.Logger

	mu              sync.RWMutex // guards currentScenario
	currentScenario string
}

// NewHandler creates a new handler with the given store.
func NewHandler(store payroll.TxStore, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		Store:   store,
		Entries: payroll.NewEntryService(store, logger),
		Config:  payroll.NewConfigService(store, logger),
		Logger:  logger,
	}
}

func identity(r *http.Request) payroll.Identity {
	id, _ := GetIdentity(r.Context())
	return id
}

// =============================================================================
// ENTRY ENDPOINTS
// =============================================================================

// ListEntries returns entries matching the query.
// GET /api/entries?employee_name=&job_type=&status=&from=&to=
func (h *Handler) ListEntries(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	entries, err := h.Entries.List(r.Context(), identity(r), filter)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryDTOs(entries))
}

// SubmitEntry prices and stores a new pending entry.
// POST /api/entries
func (h *Handler) SubmitEntry(w http.ResponseWriter, r *http.Request) {
	sub, ok := h.decodeSubmission(w, r)
	if !ok {
		return
	}
	entry, err := h.Entries.Submit(r.Context(), identity(r), sub)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toEntryDTO(entry))
}

// SubmitStay stores a multi-day pet-sitting stay as one entry per day.
// POST /api/entries/stay
func (h *Handler) SubmitStay(w http.ResponseWriter, r *http.Request) {
	sub, ok := h.decodeSubmission(w, r)
	if !ok {
		return
	}
	entries, err := h.Entries.SubmitStay(r.Context(), identity(r), sub)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toEntryDTOs(entries))
}

// PreviewEntry computes an entry without storing it.
// POST /api/entries/preview
func (h *Handler) PreviewEntry(w http.ResponseWriter, r *http.Request) {
	sub, ok := h.decodeSubmission(w, r)
	if !ok {
		return
	}
	comp, err := h.Entries.Preview(r.Context(), identity(r), sub)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPreviewDTO(comp))
}

// GetEntry returns one entry.
// GET /api/entries/{id}
func (h *Handler) GetEntry(w http.ResponseWriter, r *http.Request) {
	entry, err := h.Entries.Get(r.Context(), identity(r), entryID(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryDTO(entry))
}

// EditEntry replaces a pending entry and recomputes its amount.
// PUT /api/entries/{id}
func (h *Handler) EditEntry(w http.ResponseWriter, r *http.Request) {
	sub, ok := h.decodeSubmission(w, r)
	if !ok {
		return
	}
	entry, err := h.Entries.Edit(r.Context(), identity(r), entryID(r), sub)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryDTO(entry))
}

// DeleteEntry removes a pending entry.
// DELETE /api/entries/{id}
func (h *Handler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	if err := h.Entries.Delete(r.Context(), identity(r), entryID(r)); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PayEntry marks an entry paid. Paying twice returns 200 with changed=false.
// POST /api/entries/{id}/pay
func (h *Handler) PayEntry(w http.ResponseWriter, r *http.Request) {
	res, err := h.Entries.MarkPaid(r.Context(), identity(r), entryID(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	dto := PayResultDTO{Entry: toEntryDTO(res.Entry), Changed: res.Changed}
	if !res.Changed {
		dto.Message = "entry was already paid"
	}
	writeJSON(w, http.StatusOK, dto)
}

// RevertPayment moves a paid entry back to pending.
// POST /api/entries/{id}/revert
func (h *Handler) RevertPayment(w http.ResponseWriter, r *http.Request) {
	var req RevertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	entry, err := h.Entries.RevertPayment(r.Context(), identity(r), entryID(r), req.Reason)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryDTO(entry))
}

// EntryHistory returns the audit trail of one entry.
// GET /api/entries/{id}/history
func (h *Handler) EntryHistory(w http.ResponseWriter, r *http.Request) {
	history, err := h.Entries.History(r.Context(), identity(r), entryID(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAuditDTOs(history))
}

// PayRange pays every pending entry of one employee in a date range.
// POST /api/payments/range
func (h *Handler) PayRange(w http.ResponseWriter, r *http.Request) {
	var req RangePayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if strings.TrimSpace(req.Employee) == "" {
		writeError(w, http.StatusBadRequest, "employee_name is required", nil)
		return
	}
	from, err := optionalDate("from", req.From)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	to, err := optionalDate("to", req.To)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	res, err := h.Entries.MarkRangePaid(r.Context(), identity(r), generic.EmployeeID(req.Employee), from, to)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, RangePayDTO{
		Paid:        toEntryDTOs(res.Paid),
		PaidCount:   len(res.Paid),
		AlreadyPaid: res.AlreadyPaid,
		Total:       res.Total.Value,
	})
}

// =============================================================================
// REPORT ENDPOINTS
// =============================================================================

// WeeklySummary returns totals per employee and week.
// GET /api/reports/weekly
func (h *Handler) WeeklySummary(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	weeks, err := h.Entries.WeeklySummary(r.Context(), identity(r), filter)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	out := make([]WeekTotalDTO, 0, len(weeks))
	for _, wk := range weeks {
		out = append(out, WeekTotalDTO{
			Employee:  string(wk.Employee),
			WeekStart: wk.WeekStart.String(),
			Hours:     wk.Hours,
			Amount:    wk.Amount.Value,
			Entries:   wk.Entries,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// PaymentSummary returns paid and pending totals per employee.
// GET /api/reports/payments
func (h *Handler) PaymentSummary(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	totals, err := h.Entries.PaymentSummary(r.Context(), identity(r), filter)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	out := make([]PaymentTotalDTO, 0, len(totals))
	for _, t := range totals {
		out = append(out, PaymentTotalDTO{
			Employee:       string(t.Employee),
			Paid:           t.Paid.Value,
			Pending:        t.Pending.Value,
			Total:          t.Total().Value,
			PaidEntries:    t.PaidEntries,
			PendingEntries: t.PendingEntries,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// Payslip renders one employee's entries as a PDF.
// GET /api/reports/payslip.pdf?employee_name=&from=&to=
func (h *Handler) Payslip(w http.ResponseWriter, r *http.Request) {
	who := identity(r)
	filter, err := parseFilter(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if !who.IsAdmin() {
		filter.Employee = who.Employee
	}
	if filter.Employee == "" {
		writeError(w, http.StatusBadRequest, "employee_name is required", nil)
		return
	}
	entries, err := h.Entries.List(r.Context(), who, filter)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	var buf bytes.Buffer
	err = report.Payslip(&buf, report.PayslipInput{
		Employee:    filter.Employee,
		From:        filter.From,
		To:          filter.To,
		Entries:     entries,
		GeneratedAt: time.Now().UTC(),
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to render payslip", err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="payslip-`+string(filter.Employee)+`.pdf"`)
	w.WriteHeader(http.StatusOK)
	io.Copy(w, &buf)
}

// =============================================================================
// IDENTITY ENDPOINTS
// =============================================================================

// Me returns the caller and the job types they may log.
// GET /api/me
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	who := identity(r)
	cfg, err := h.Config.Config(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	var jobs []string
	if who.Employee != "" {
		for _, j := range cfg.Access.AllowedJobTypes(who.Employee) {
			jobs = append(jobs, string(j))
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user_id":       who.UserID,
		"role":          who.Role,
		"employee_name": who.Employee,
		"job_types":     jobs,
	})
}

// ListJobTypes returns the fixed job type set.
// GET /api/job-types
func (h *Handler) ListJobTypes(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.Config.Config(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	specs := payroll.JobTypes()
	out := make([]JobTypeDTO, 0, len(specs))
	for _, s := range specs {
		out = append(out, JobTypeDTO{
			Type:        string(s.Type),
			Name:        s.Name,
			Kind:        string(s.Kind),
			HolidayRate: s.HolidayRate,
			PetRequired: s.PetRequired,
			Restricted:  cfg.Access.Restricted(s.Type),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) decodeSubmission(w http.ResponseWriter, r *http.Request) (payroll.Submission, bool) {
	var req SubmitEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return payroll.Submission{}, false
	}
	sub, err := req.toSubmission()
	if err != nil {
		writeServiceError(w, err)
		return payroll.Submission{}, false
	}
	return sub, true
}

func (req SubmitEntryRequest) toSubmission() (payroll.Submission, error) {
	job, err := payroll.ParseJobType(strings.TrimSpace(req.JobType))
	if err != nil {
		return payroll.Submission{}, err
	}
	date, err := generic.ParseDate(strings.TrimSpace(req.Date))
	if err != nil {
		return payroll.Submission{}, &generic.InvalidQuantityError{JobType: string(job), Field: "date", Reason: err.Error()}
	}
	return payroll.Submission{
		Employee: generic.EmployeeID(strings.TrimSpace(req.Employee)),
		Job:      job,
		Date:     date,
		Pet:      generic.PetName(strings.TrimSpace(req.Pet)),
		Quantity: payroll.Quantity{
			Hours: req.Hours,
			Km:    req.Km,
			Value: req.Value,
		},
		Description: req.Description,
	}, nil
}

func parseFilter(r *http.Request) (payroll.EntryFilter, error) {
	q := r.URL.Query()
	var (
		f   payroll.EntryFilter
		err error
	)
	f.Employee = generic.EmployeeID(strings.TrimSpace(q.Get("employee_name")))
	if s := q.Get("job_type"); s != "" {
		if f.Job, err = payroll.ParseJobType(s); err != nil {
			return f, err
		}
	}
	if s := q.Get("status"); s != "" {
		if f.Status, err = payroll.ParseStatus(s); err != nil {
			return f, err
		}
	}
	if f.From, err = optionalDate("from", q.Get("from")); err != nil {
		return f, err
	}
	if f.To, err = optionalDate("to", q.Get("to")); err != nil {
		return f, err
	}
	return f, nil
}

func optionalDate(field, s string) (generic.TimePoint, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return generic.TimePoint{}, nil
	}
	d, err := generic.ParseDate(s)
	if err != nil {
		return generic.TimePoint{}, &generic.InvalidQuantityError{Field: field, Reason: err.Error()}
	}
	return d, nil
}

func entryID(r *http.Request) generic.EntryID {
	return generic.EntryID(chi.URLParam(r, "id"))
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeServiceError maps payroll errors to HTTP statuses. An access denial
// carries only the employee and job type.
func writeServiceError(w http.ResponseWriter, err error) {
	var refErr *generic.InvalidReferenceError
	switch {
	case errors.Is(err, generic.ErrForbidden):
		writeError(w, http.StatusForbidden, "not allowed", nil)
	case errors.Is(err, generic.ErrAccessDenied):
		writeError(w, http.StatusForbidden, "job type not permitted", err)
	case errors.Is(err, generic.ErrEntryNotFound):
		writeError(w, http.StatusNotFound, "entry not found", nil)
	case errors.As(err, &refErr):
		writeError(w, http.StatusBadRequest, "unknown "+refErr.Kind, err)
	case errors.Is(err, generic.ErrInvalidQuantity):
		writeError(w, http.StatusBadRequest, "invalid quantity", err)
	case errors.Is(err, generic.ErrConfiguration):
		writeError(w, http.StatusUnprocessableEntity, "rate configuration missing", err)
	case errors.Is(err, generic.ErrEntryPaid),
		errors.Is(err, generic.ErrInvalidTransition),
		errors.Is(err, generic.ErrDuplicateIdempotencyKey):
		writeError(w, http.StatusConflict, "conflict", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal error", err)
	}
}

// =============================================================================
// IMPORT / EXPORT
// =============================================================================

// ImportConfig merges a configuration bundle.
// POST /api/admin/import
func (h *Handler) ImportConfig(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body", err)
		return
	}
	bundle, warnings, err := factory.ParseBundle(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid configuration", err)
		return
	}
	for _, warn := range warnings {
		h.Logger.Warn("import: key ignored", "detail", warn)
	}
	res, err := h.Config.Import(r.Context(), identity(r), bundle)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ImportResultDTO{
		Profiles:     res.Profiles,
		PetRates:     res.PetRates,
		Restrictions: res.Restrictions,
		Unrestricted: res.Unrestricted,
		Holidays:     res.Holidays,
		Warnings:     warnings,
	})
}

// ExportConfig returns the whole configuration in import format.
// GET /api/admin/export
func (h *Handler) ExportConfig(w http.ResponseWriter, r *http.Request) {
	b, err := h.Config.Export(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	data, err := factory.MarshalBundle(b)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to export", err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
