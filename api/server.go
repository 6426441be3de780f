/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:       Request logging
  2. Recoverer:    Panic recovery (500 instead of crash)
  3. RequestID:    Unique ID per request for tracing
  4. CORS:         Cross-origin requests for frontend
  5. Authenticate: Bearer token on everything under /api
  6. RequireAdmin: Payment, configuration and admin groups

ROUTE GROUPS:
  /healthz              Liveness (public)
  /api/me, /job-types   Caller identity and job catalogue
  /api/entries/*        Timesheet entries
  /api/payments/*       Bulk payment (admin)
  /api/reports/*        Summaries and payslip
  /api/config/*         Rate configuration (admin)
  /api/admin/*          Import/export (admin)
  /api/scenarios/*      Demo data (admin)

SEE ALSO:
  - handlers.go: Handler implementations
  - auth.go: Token verification
  - cmd/timesheet/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Options configures the router.
type Options struct {
	JWTSecret      string
	AllowedOrigins []string
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts Options) *chi.Mux {
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173", "http://localhost:8080"}
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(Authenticate(opts.JWTSecret))

		r.Get("/me", h.Me)
		r.Get("/job-types", h.ListJobTypes)

		// Entry routes
		r.Route("/entries", func(r chi.Router) {
			r.Get("/", h.ListEntries)
			r.Post("/", h.SubmitEntry)
			r.Post("/preview", h.PreviewEntry)
			r.Post("/stay", h.SubmitStay)
			r.Get("/{id}", h.GetEntry)

			r.Group(func(r chi.Router) {
				r.Use(RequireAdmin)
				r.Put("/{id}", h.EditEntry)
				r.Delete("/{id}", h.DeleteEntry)
				r.Post("/{id}/pay", h.PayEntry)
				r.Post("/{id}/revert", h.RevertPayment)
				r.Get("/{id}/history", h.EntryHistory)
			})
		})

		// Payment routes
		r.Route("/payments", func(r chi.Router) {
			r.Use(RequireAdmin)
			r.Post("/range", h.PayRange)
		})

		// Report routes
		r.Route("/reports", func(r chi.Router) {
			r.Get("/weekly", h.WeeklySummary)
			r.Get("/payments", h.PaymentSummary)
			r.Get("/payslip.pdf", h.Payslip)
		})

		// Configuration routes
		r.Route("/config", func(r chi.Router) {
			r.Use(RequireAdmin)

			r.Get("/employees", h.ListProfiles)
			r.Get("/employees/{name}", h.GetProfile)
			r.Put("/employees/{name}", h.PutProfile)
			r.Delete("/employees/{name}", h.DeleteProfile)
			r.Put("/employees/{name}/rates/{key}", h.PutRate)
			r.Put("/employees/{name}/holiday-rates/{job}", h.PutHolidayRate)

			r.Get("/pets", h.ListPetRates)
			r.Put("/pets/{pet}/rates/{key}", h.PutPetRate)
			r.Delete("/pets/{pet}/rates/{key}", h.DeletePetRate)

			r.Get("/access", h.ListAccess)
			r.Put("/access/{job}", h.PutRestriction)
			r.Delete("/access/{job}", h.ClearRestriction)
			r.Post("/access/{job}/grant", h.GrantAccess)
			r.Post("/access/{job}/revoke", h.RevokeAccess)

			r.Get("/holidays", h.ListHolidays)
			r.Post("/holidays", h.AddHoliday)
			r.Delete("/holidays/{date}", h.RemoveHoliday)
		})

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Use(RequireAdmin)
			r.Post("/import", h.ImportConfig)
			r.Get("/export", h.ExportConfig)
		})

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Use(RequireAdmin)
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
			r.Post("/reset", h.ResetDatabase)
		})
	})

	return r
}
