/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request, also attached to handler logs
  2. Logger:     Request logging
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for the back-office frontend
  5. Auth:       Bearer JWT on /api only

ROUTE GROUPS:
  /api/policy, /api/policies/*   Policies, plates, import, expiry report
  /api/claim, /api/claims/*      Claims
  /api/commission/*              Commission status and payments
  /api/audits                    Audit log
  /api/lookups/{kind}            Dropdown values
  /api/scenarios/*               Demo data (only when enabled)
  /metrics                       Prometheus
  /healthz                       Liveness with a database round trip

SEE ALSO:
  - handlers.go: Handler implementations
  - auth.go: Token validation
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RouterOptions configures NewRouter.
type RouterOptions struct {
	Auth            *Authenticator
	CORSOrigins     []string
	EnableScenarios bool
	Metrics         http.Handler // nil disables /metrics
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", h.Health)
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Use(opts.Auth.Middleware)

		// Policy routes
		r.Post("/policy", h.CreatePolicy)
		r.Route("/policy/{id}", func(r chi.Router) {
			r.Put("/", h.UpdatePolicy)
			r.Delete("/", h.DeletePolicy)
			r.Post("/plates", h.AddPlates)
		})
		r.Route("/policies", func(r chi.Router) {
			r.Get("/", h.ListPolicies)
			r.Get("/expiring", h.ListExpiringPolicies)
			r.Post("/import", h.ImportPolicies)
		})

		// Claim routes
		r.Post("/claim", h.CreateClaim)
		r.Route("/claim/{id}", func(r chi.Router) {
			r.Put("/", h.UpdateClaim)
			r.Delete("/", h.DeleteClaim)
		})
		r.Route("/claims", func(r chi.Router) {
			r.Get("/", h.ListClaims)
			r.Get("/insured/{insuredId}", h.ListClaimsByInsured)
		})

		// Commission routes
		r.Route("/commission", func(r chi.Router) {
			r.Get("/status", h.ListCommissions)
			r.Post("/add", h.AddCommissionPayment)
			r.Put("/{policyId}", h.UpdateCommissionDetails)
			r.Put("/{policyId}/status", h.UpdateCommissionStatus)
			r.Get("/{policyId}/payments", h.ListCommissionPayments)
		})

		r.Get("/audits", h.ListAudit)
		r.Get("/lookups/{kind}", h.ListLookup)

		// Scenario routes
		if opts.EnableScenarios {
			r.Route("/scenarios", func(r chi.Router) {
				r.Get("/", h.ListScenarios)
				r.Get("/current", h.GetCurrentScenario)
				r.Post("/load", h.LoadScenario)
				r.Post("/reset", h.ResetDatabase)
			})
		}
	})

	return r
}
