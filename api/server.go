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
  /api/customers/*      Customer accounts, balances, codes
  /api/referrals        Referral recording
  /api/codes/*          Code validation
  /api/rewards/*        Reward catalog
  /api/redemptions/*    Redemption workflow
  /api/technicians/*    Technician roster

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		// Customer routes
		r.Route("/customers", func(r chi.Router) {
			r.Get("/", h.ListCustomers)
			r.Post("/", h.CreateCustomer)
			r.Get("/{id}", h.GetCustomer)
			r.Get("/{id}/balance", h.GetBalance)
			r.Get("/{id}/ledger", h.GetLedger)
			r.Get("/{id}/code", h.GetOrCreateCode)
			r.Get("/{id}/redemptions", h.ListCustomerRedemptions)
			r.Post("/{id}/adjustments", h.CreateAdjustment)
		})

		// Referral routes
		r.Post("/referrals", h.CreateReferral)
		r.Route("/codes", func(r chi.Router) {
			r.Get("/{code}", h.ValidateCode)
			r.Get("/{code}/referrals", h.ListCodeReferrals)
		})

		// Reward catalog routes
		r.Route("/rewards", func(r chi.Router) {
			r.Get("/", h.ListRewards)
			r.Post("/", h.SaveReward)
			r.Delete("/{id}", h.DeactivateReward)
		})

		// Redemption workflow routes
		r.Route("/redemptions", func(r chi.Router) {
			r.Post("/", h.CreateRedemption)
			r.Get("/pending", h.ListPendingRedemptions)
			r.Get("/{id}", h.GetRedemption)
			r.Post("/{id}/fulfill", h.FulfillRedemption)
			r.Post("/{id}/reject", h.RejectRedemption)
		})

		// Technician routes
		r.Route("/technicians", func(r chi.Router) {
			r.Get("/", h.ListTechnicians)
			r.Post("/", h.SaveTechnician)
		})
	})

	return r
}
