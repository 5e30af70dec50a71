/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/merchants/{merchantID}/parties/*   Parties, balances, ledger
  /api/scenarios/*                        Demo scenarios
  /healthz                                Liveness
  /metrics                                Prometheus scrape

SECURITY NOTE:
  No authentication middleware. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RouterOptions carries what the router needs besides the handler.
type RouterOptions struct {
	CORSOrigins []string
	Metrics     http.Handler // nil leaves /metrics unrouted
	Scenarios   bool         // route /api/scenarios
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", h.Health)
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/merchants/{merchantID}/parties", func(r chi.Router) {
			r.Get("/", h.ListParties)
			r.Post("/", h.CreateParty)

			r.Route("/{partyID}", func(r chi.Router) {
				r.Get("/", h.GetParty)
				r.Put("/", h.UpdateParty)
				r.Delete("/", h.DeactivateParty)
				r.Get("/balance", h.GetBalance)
				r.Get("/summary", h.GetSummary)
				r.Get("/audit", h.AuditParty)
				r.Get("/transactions", h.GetTransactions)
				r.Post("/events", h.ApplyEvent)
				r.Post("/reversals", h.ReverseDocument)
				r.Put("/documents/{documentID}", h.ReplaceDocument)
			})
		})

		if opts.Scenarios {
			r.Route("/scenarios", func(r chi.Router) {
				r.Get("/", h.ListScenarios)
				r.Post("/load", h.LoadScenario)
			})
		}
	})

	return r
}
