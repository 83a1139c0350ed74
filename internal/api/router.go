package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/erazemk/tailore/internal/inventory"
	"github.com/erazemk/tailore/internal/model"
	"github.com/erazemk/tailore/internal/ratelimit"
	"github.com/erazemk/tailore/internal/store"
)

// Options configures the router.
type Options struct {
	DB                  *sqlx.DB
	Inventory           *inventory.Service
	JWTSecret           string
	TokenExpiry         time.Duration
	LowStockThreshold   int
	HistoryDefaultLimit int
	AllowedOrigins      []string
	Logger              zerolog.Logger
	// RateLimiter throttles /api requests per client IP when set.
	RateLimiter ratelimit.Limiter
	// Metrics is mounted at /metrics when set.
	Metrics http.Handler
}

// NewRouter creates the HTTP router with all endpoints registered.
func NewRouter(opts Options) http.Handler {
	r := chi.NewRouter()

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r.Use(hlog.NewHandler(opts.Logger))
	r.Use(RequestID)
	r.Use(LoggingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(SecurityHeaders)
	r.Use(middleware.StripSlashes)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", requestIDHeader},
		ExposedHeaders: []string{requestIDHeader},
		MaxAge:         300,
	}))

	r.NotFound(NotFound)
	r.MethodNotAllowed(MethodNotAllowed)

	authHandler := &AuthHandler{DB: opts.DB, JWTSecret: opts.JWTSecret, TokenExpiry: opts.TokenExpiry}
	productsHandler := &ProductsHandler{DB: opts.DB}
	inventoryHandler := &InventoryHandler{
		Service:             opts.Inventory,
		Records:             &store.InventoryStore{DB: opts.DB},
		LowStockThreshold:   opts.LowStockThreshold,
		HistoryDefaultLimit: opts.HistoryDefaultLimit,
	}

	authMW := AuthMiddleware(opts.JWTSecret)
	requireAdmin := RequireRole(model.RoleAdmin)

	// Public.
	r.Get("/", Root)
	r.Get("/health", Health)
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	r.Route("/api", func(r chi.Router) {
		if opts.RateLimiter != nil {
			r.Use(RateLimit(opts.RateLimiter))
		}

		r.Route("/auth", func(r chi.Router) {
			r.With(OptionalAuth(opts.JWTSecret)).Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
			r.With(authMW).Get("/me", authHandler.Me)
		})

		// Catalog: read (public), write (admin).
		r.Get("/catalog/filters", productsHandler.Filters)
		r.Route("/catalog/products", func(r chi.Router) {
			r.Get("/", productsHandler.List)
			r.Get("/{id}", productsHandler.Get)
			r.Group(func(r chi.Router) {
				r.Use(authMW, requireAdmin)
				r.Post("/", productsHandler.Create)
				r.Put("/{id}", productsHandler.Update)
				r.Delete("/{id}", productsHandler.Delete)
			})
		})

		// Inventory: all authenticated users, adjust and alerts admin only.
		r.Route("/inventory", func(r chi.Router) {
			r.Use(authMW)
			r.Get("/stock", inventoryHandler.List)
			r.Get("/stock/{productId}", inventoryHandler.Get)
			r.With(requireAdmin).Post("/stock/{productId}/adjust", inventoryHandler.Adjust)
			r.Post("/stock/{productId}/reserve", inventoryHandler.Reserve)
			r.Post("/stock/{productId}/release", inventoryHandler.Release)
			r.Post("/stock/{productId}/commit", inventoryHandler.Commit)
			r.Get("/history/{productId}", inventoryHandler.History)
			r.With(requireAdmin).Get("/alerts", inventoryHandler.Alerts)
		})
	})

	return r
}
