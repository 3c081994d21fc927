/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the chi router, middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the mobile/web client

ROUTE GROUPS:
  /api/auth/*           Public: register, login
  /api/*                Bearer-token protected: profile, wallets,
                        transactions, stats, uploads

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
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
	}))

	r.Route("/api", func(r chi.Router) {
		// Public auth routes
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", h.Register)
			r.Post("/login", h.Login)
		})

		// Everything else requires a session token
		r.Group(func(r chi.Router) {
			r.Use(h.Auth.Middleware)

			r.Get("/me", h.GetMe)
			r.Put("/me", h.UpdateMe)

			r.Route("/wallets", func(r chi.Router) {
				r.Get("/", h.ListWallets)
				r.Post("/", h.CreateWallet)
				r.Get("/{id}", h.GetWallet)
				r.Put("/{id}", h.UpdateWallet)
				r.Delete("/{id}", h.DeleteWallet)
				r.Get("/{id}/transactions", h.ListWalletTransactions)
			})

			r.Route("/transactions", func(r chi.Router) {
				r.Get("/", h.ListTransactions)
				r.Post("/", h.CreateTransaction)
				r.Get("/{id}", h.GetTransaction)
				r.Put("/{id}", h.UpdateTransaction)
				r.Delete("/{id}", h.DeleteTransaction)
			})

			r.Route("/stats", func(r chi.Router) {
				r.Get("/weekly", h.WeeklyStats)
				r.Get("/monthly", h.MonthlyStats)
				r.Get("/yearly", h.YearlyStats)
			})

			r.Post("/upload", h.Upload)
		})
	})

	return r
}
