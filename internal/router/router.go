package router

import (
	"net/http"

	"vendhub-bot/internal/handler"
	"vendhub-bot/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

// Config holds the configuration for creating a router.
type Config struct {
	Handler            *handler.Handler
	ItemHandler        *handler.ItemHandler
	AccountHandler     *handler.AccountHandler
	TransactionHandler *handler.TransactionHandler
	SettingsHandler    *handler.SettingsHandler
	AuthHandler        *handler.AuthHandler
	AuthMiddleware     func(http.Handler) http.Handler
}

// New creates and configures the HTTP router.
func New(cfg Config) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware stack (applies to ALL routes)
	r.Use(middleware.Recovery)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "X-Token", "X-Login-Key"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// PUBLIC routes (no auth required)
	if cfg.Handler != nil {
		r.Get("/api/status", cfg.Handler.Status)
	}

	// AUTHENTICATED routes (use Group to apply auth middleware only to these)
	r.Group(func(r chi.Router) {
		if cfg.AuthMiddleware != nil {
			r.Use(cfg.AuthMiddleware)
		}

		r.Route("/api/v1", func(r chi.Router) {
			if cfg.Handler != nil {
				r.Get("/health", cfg.Handler.Health)
			}

			if cfg.AuthHandler != nil {
				r.Route("/auth", func(r chi.Router) {
					r.Post("/login", cfg.AuthHandler.Login)
					r.Post("/revoke", cfg.AuthHandler.RevokeToken)
					r.Post("/refresh", cfg.AuthHandler.RefreshToken)
				})
			}

			if cfg.ItemHandler != nil {
				r.Route("/items", func(r chi.Router) {
					r.Get("/", cfg.ItemHandler.ListItems)
					r.Post("/", cfg.ItemHandler.CreateItem)
					r.Route("/{item_id}", func(r chi.Router) {
						r.Get("/", cfg.ItemHandler.GetItem)
						r.Patch("/", cfg.ItemHandler.UpdateItem)
						r.Delete("/", cfg.ItemHandler.DeleteItem)
						r.Post("/restock", cfg.ItemHandler.Restock)
					})
				})
			}

			if cfg.AccountHandler != nil {
				r.Route("/accounts", func(r chi.Router) {
					r.Get("/", cfg.AccountHandler.ListAccounts)
					r.Post("/reset", cfg.AccountHandler.ResetAllBalances)
					r.Route("/{account_id}", func(r chi.Router) {
						r.Get("/", cfg.AccountHandler.GetAccount)
						r.Put("/balance", cfg.AccountHandler.SetBalance)
						r.Get("/transactions", cfg.AccountHandler.AccountTransactions)
					})
				})
			}

			if cfg.TransactionHandler != nil {
				r.Get("/transactions", cfg.TransactionHandler.ListTransactions)
				r.Get("/stats", cfg.TransactionHandler.GetStats)
			}

			if cfg.SettingsHandler != nil {
				r.Route("/settings/{guild_id}", func(r chi.Router) {
					r.Get("/", cfg.SettingsHandler.GetSettings)
					r.Put("/", cfg.SettingsHandler.UpdateSettings)
				})
			}
		})
	})

	return r
}
