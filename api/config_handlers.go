package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/citypets/timesheet-engine/generic"
	"github.com/citypets/timesheet-engine/payroll"
)

// =============================================================================
// CONFIGURATION ENDPOINTS (admin only, mounted under /api/config)
// =============================================================================

// ListProfiles returns every employee rate profile.
// GET /api/config/employees
func (h *Handler) ListProfiles(w http.ResponseWriter, r *http.Request) {
	profiles, err := h.Store.ListProfiles(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	out := make([]ProfileDTO, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, toProfileDTO(p))
	}
	writeJSON(w, http.StatusOK, out)
}

// GetProfile returns one profile.
// GET /api/config/employees/{name}
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	p, err := h.Store.GetProfile(r.Context(), employeeParam(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if p == nil {
		writeError(w, http.StatusNotFound, "profile not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toProfileDTO(p))
}

// PutProfile replaces a profile.
// PUT /api/config/employees/{name}
func (h *Handler) PutProfile(w http.ResponseWriter, r *http.Request) {
	var req ProfileDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	p := payroll.NewProfile(employeeParam(r))
	for k, rate := range req.Rates {
		key, err := payroll.ParseRateKey(k)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		p.Rates[key] = rate
	}
	for j, rate := range req.HolidayRates {
		job, err := payroll.ParseJobType(j)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		p.HolidayRates[job] = rate
	}
	if err := h.Config.SetProfile(r.Context(), identity(r), p); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProfileDTO(p))
}

// DeleteProfile removes a profile.
// DELETE /api/config/employees/{name}
func (h *Handler) DeleteProfile(w http.ResponseWriter, r *http.Request) {
	if err := h.Config.DeleteProfile(r.Context(), identity(r), employeeParam(r)); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PutRate sets one base rate.
// PUT /api/config/employees/{name}/rates/{key}
func (h *Handler) PutRate(w http.ResponseWriter, r *http.Request) {
	key, err := payroll.ParseRateKey(chi.URLParam(r, "key"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	req, ok := decodeRate(w, r)
	if !ok {
		return
	}
	if err := h.Config.SetRate(r.Context(), identity(r), employeeParam(r), key, req.Rate); err != nil {
		writeServiceError(w, err)
		return
	}
	h.writeProfile(w, r)
}

// PutHolidayRate sets one holiday override.
// PUT /api/config/employees/{name}/holiday-rates/{job}
func (h *Handler) PutHolidayRate(w http.ResponseWriter, r *http.Request) {
	job, err := payroll.ParseJobType(chi.URLParam(r, "job"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	req, ok := decodeRate(w, r)
	if !ok {
		return
	}
	if err := h.Config.SetHolidayRate(r.Context(), identity(r), employeeParam(r), job, req.Rate); err != nil {
		writeServiceError(w, err)
		return
	}
	h.writeProfile(w, r)
}

func (h *Handler) writeProfile(w http.ResponseWriter, r *http.Request) {
	p, err := h.Store.GetProfile(r.Context(), employeeParam(r))
	if err != nil || p == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, toProfileDTO(p))
}

// ListPetRates returns all pet overrides keyed by pet then rate key.
// GET /api/config/pets
func (h *Handler) ListPetRates(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.Config.Config(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg.Pets)
}

// PutPetRate sets a pet override.
// PUT /api/config/pets/{pet}/rates/{key}
func (h *Handler) PutPetRate(w http.ResponseWriter, r *http.Request) {
	key, err := payroll.ParseRateKey(chi.URLParam(r, "key"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	req, ok := decodeRate(w, r)
	if !ok {
		return
	}
	if err := h.Config.SetPetRate(r.Context(), identity(r), petParam(r), key, req.Rate); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeletePetRate removes a pet override.
// DELETE /api/config/pets/{pet}/rates/{key}
func (h *Handler) DeletePetRate(w http.ResponseWriter, r *http.Request) {
	key, err := payroll.ParseRateKey(chi.URLParam(r, "key"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if err := h.Config.RemovePetRate(r.Context(), identity(r), petParam(r), key); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListAccess returns the restricted job types and their allow-lists.
// GET /api/config/access
func (h *Handler) ListAccess(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.Config.Config(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg.Access)
}

// PutRestriction replaces a job type's allow-list.
// PUT /api/config/access/{job}
func (h *Handler) PutRestriction(w http.ResponseWriter, r *http.Request) {
	job, err := payroll.ParseJobType(chi.URLParam(r, "job"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	var req RestrictionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	employees := make([]generic.EmployeeID, 0, len(req.Employees))
	for _, e := range req.Employees {
		employees = append(employees, generic.EmployeeID(strings.TrimSpace(e)))
	}
	if err := h.Config.SetRestriction(r.Context(), identity(r), job, employees); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ClearRestriction makes a job type unrestricted.
// DELETE /api/config/access/{job}
func (h *Handler) ClearRestriction(w http.ResponseWriter, r *http.Request) {
	job, err := payroll.ParseJobType(chi.URLParam(r, "job"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if err := h.Config.ClearRestriction(r.Context(), identity(r), job); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GrantAccess lets an employee log a job type and seeds missing rates.
// POST /api/config/access/{job}/grant
func (h *Handler) GrantAccess(w http.ResponseWriter, r *http.Request) {
	h.changeAccess(w, r, h.Config.GrantAccess)
}

// RevokeAccess stops an employee from logging a job type.
// POST /api/config/access/{job}/revoke
func (h *Handler) RevokeAccess(w http.ResponseWriter, r *http.Request) {
	h.changeAccess(w, r, h.Config.RevokeAccess)
}

type accessChange func(ctx context.Context, who payroll.Identity, employee generic.EmployeeID, job payroll.JobType) error

func (h *Handler) changeAccess(w http.ResponseWriter, r *http.Request, fn accessChange) {
	job, err := payroll.ParseJobType(chi.URLParam(r, "job"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	var req AccessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if strings.TrimSpace(req.Employee) == "" {
		writeError(w, http.StatusBadRequest, "employee_name is required", nil)
		return
	}
	if err := fn(r.Context(), identity(r), generic.EmployeeID(strings.TrimSpace(req.Employee)), job); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListHolidays returns the holiday calendar.
// GET /api/config/holidays
func (h *Handler) ListHolidays(w http.ResponseWriter, r *http.Request) {
	dates, err := h.Store.ListHolidays(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	out := make([]string, 0, len(dates))
	for _, d := range dates {
		out = append(out, d.String())
	}
	writeJSON(w, http.StatusOK, out)
}

// AddHoliday adds a date to the calendar.
// POST /api/config/holidays
func (h *Handler) AddHoliday(w http.ResponseWriter, r *http.Request) {
	var req HolidayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	date, err := generic.ParseDate(strings.TrimSpace(req.Date))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date", err)
		return
	}
	if err := h.Config.AddHoliday(r.Context(), identity(r), date); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, HolidayRequest{Date: date.String()})
}

// RemoveHoliday removes a date from the calendar.
// DELETE /api/config/holidays/{date}
func (h *Handler) RemoveHoliday(w http.ResponseWriter, r *http.Request) {
	date, err := generic.ParseDate(chi.URLParam(r, "date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date", err)
		return
	}
	if err := h.Config.RemoveHoliday(r.Context(), identity(r), date); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func decodeRate(w http.ResponseWriter, r *http.Request) (RateRequest, bool) {
	var req RateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return req, false
	}
	return req, true
}

func employeeParam(r *http.Request) generic.EmployeeID {
	return generic.EmployeeID(strings.TrimSpace(chi.URLParam(r, "name")))
}

func petParam(r *http.Request) generic.PetName {
	return generic.PetName(strings.TrimSpace(chi.URLParam(r, "pet")))
}
