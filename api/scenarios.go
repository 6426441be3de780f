/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:
  Provides pre-built scenarios that populate the database with the CityPets
  roster and, optionally, a week of realistic entries.

AVAILABLE SCENARIOS:
  roster:          Rate profiles, pet overrides, restrictions, holidays
  christmas-week:  Roster plus entries across 2025-12-22..28, some paid

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Import the demo bundle via factory
 3. Submit entries through the entry service, as an admin
 4. Optionally pay some of them

USAGE VIA API:
  POST /api/scenarios/load
  {"scenario_id": "christmas-week"}

NOTE:
  Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - factory/presets.go: Demo bundle
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/citypets/timesheet-engine/factory"
	"github.com/citypets/timesheet-engine/generic"
	"github.com/citypets/timesheet-engine/payroll"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "roster",
		Name:        "CityPets Roster",
		Description: "Six employees, a pet override, restricted training and management, Christmas holidays",
	},
	{
		ID:          "christmas-week",
		Name:        "Christmas Week",
		Description: "Roster plus a week of entries straddling the holidays, part of it paid",
	},
}

// resetter is implemented by stores that can wipe themselves.
type resetter interface {
	Reset(ctx context.Context) error
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	current := h.scenario()
	if current == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, ScenarioDTO{ID: current, Name: current})
}

func (h *Handler) scenario() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.currentScenario
}

func (h *Handler) setScenario(id string) {
	h.mu.Lock()
	h.currentScenario = id
	h.mu.Unlock()
}

// LoadScenario loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if err := h.Load(r.Context(), identity(r), req.ScenarioID); err != nil {
		if errors.Is(err, errUnknownScenario) {
			writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

var errUnknownScenario = errors.New("unknown scenario")

// Load resets the store and loads scenario id as who.
func (h *Handler) Load(ctx context.Context, who payroll.Identity, id string) error {
	var load func(context.Context, payroll.Identity) error
	switch id {
	case "roster":
		load = h.loadRoster
	case "christmas-week":
		load = h.loadChristmasWeek
	default:
		return fmt.Errorf("%w: %s", errUnknownScenario, id)
	}

	if err := h.reset(ctx); err != nil {
		return err
	}
	h.setScenario("")
	if err := load(ctx, who); err != nil {
		return err
	}
	h.setScenario(id)
	return nil
}

// ResetDatabase clears all data.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.setScenario("")
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (h *Handler) reset(ctx context.Context) error {
	rs, ok := h.Store.(resetter)
	if !ok {
		return errors.New("store does not support reset")
	}
	return rs.Reset(ctx)
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) loadRoster(ctx context.Context, who payroll.Identity) error {
	bundle, warnings, err := factory.DemoBundle()
	if err != nil {
		return err
	}
	for _, warn := range warnings {
		h.Logger.Debug("scenario: key ignored", "detail", warn)
	}
	_, err = h.Config.Import(ctx, who, bundle)
	return err
}

type demoEntry struct {
	employee string
	job      payroll.JobType
	date     string
	pet      string
	hours    string
	km       string
	value    string
	desc     string
}

// Monday 22 to Sunday 28 December 2025. 24-26 are holidays.
var christmasWeek = []demoEntry{
	{employee: "ROXANA", job: payroll.JobHotel, date: "2025-12-22", hours: "6"},
	{employee: "ROXANA", job: payroll.JobHotel, date: "2025-12-25", hours: "6"},
	{employee: "ROXANA", job: payroll.JobOvernightHotel, date: "2025-12-24"},
	{employee: "ROXANA", job: payroll.JobTraining, date: "2025-12-23", hours: "2"},
	{employee: "JEAN", job: payroll.JobWalk, date: "2025-12-24", pet: "Burek", hours: "1.5"},
	{employee: "JEAN", job: payroll.JobWalk, date: "2025-12-22", pet: "Max", hours: "1"},
	{employee: "JEAN", job: payroll.JobTransport, date: "2025-12-22", km: "42"},
	{employee: "ANKITA", job: payroll.JobPetSitting, date: "2025-12-27", pet: "Luna", hours: "2.5"},
	{employee: "ANKITA", job: payroll.JobPetSitting, date: "2025-12-28", pet: "Luna", hours: "10"},
	{employee: "KUBA", job: payroll.JobManagement, date: "2025-12-23", hours: "3"},
	{employee: "KUBA", job: payroll.JobTransport, date: "2025-12-23", hours: "1", km: "30"},
	{employee: "PIYUSH", job: payroll.JobDogAtHome, date: "2025-12-26", pet: "Rex", hours: "4"},
	{employee: "SURIYA", job: payroll.JobCatVisit, date: "2025-12-25", pet: "Mruczek", hours: "1"},
	{employee: "SURIYA", job: payroll.JobExpense, date: "2025-12-25", value: "38.50", desc: "Cat food"},
}

func (h *Handler) loadChristmasWeek(ctx context.Context, who payroll.Identity) error {
	if err := h.loadRoster(ctx, who); err != nil {
		return err
	}

	var submitted []*payroll.Entry
	for _, d := range christmasWeek {
		sub := payroll.Submission{
			Employee:    generic.EmployeeID(d.employee),
			Job:         d.job,
			Date:        generic.MustParseDate(d.date),
			Pet:         generic.PetName(d.pet),
			Quantity:    payroll.Quantity{Hours: dec(d.hours), Km: dec(d.km), Value: dec(d.value)},
			Description: d.desc,
		}
		entry, err := h.Entries.Submit(ctx, who, sub)
		if err != nil {
			return fmt.Errorf("%s %s %s: %w", d.employee, d.job, d.date, err)
		}
		submitted = append(submitted, entry)
	}

	// Pay everything worked before the holidays.
	cutoff := generic.MustParseDate("2025-12-23")
	for _, e := range submitted {
		if e.WorkDate.After(cutoff) {
			continue
		}
		if _, err := h.Entries.MarkPaid(ctx, who, e.ID); err != nil {
			return err
		}
	}
	return nil
}

func dec(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	return decimal.RequireFromString(s)
}
