// Package api provides the HTTP API for NutriPlan.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/nutriplan/nutriplan/internal/api/handler"
	"github.com/nutriplan/nutriplan/internal/api/middleware"
	"github.com/nutriplan/nutriplan/internal/diet"
	"github.com/nutriplan/nutriplan/internal/featureflags"
	"github.com/nutriplan/nutriplan/internal/medical"
	"github.com/nutriplan/nutriplan/internal/provider/resilience"
	"github.com/nutriplan/nutriplan/internal/user"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version            string
	BuildTime          string
	Logger             zerolog.Logger
	ServiceName        string
	Metrics            *middleware.Metrics
	TokenValidator     middleware.TokenValidator
	UserService        *user.Service
	DietService        *diet.Service
	MedicalService     *medical.Service
	FeatureFlagService *featureflags.Service
	ProviderRegistry   *resilience.Registry

	// ReadinessChecks maps subsystem names to readiness probes.
	ReadinessChecks map[string]handler.CheckFunc
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Set default service name if not provided
	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "nutriplan-api"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)            // Generate/propagate request ID first
	r.Use(middleware.Tracing(serviceName)) // Distributed tracing
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware()) // HTTP metrics
	}
	r.Use(middleware.Logger(cfg.Logger))   // Structured logging
	r.Use(middleware.Recovery(cfg.Logger)) // Panic recovery
	r.Use(chimiddleware.RealIP)            // Real IP extraction
	r.Use(middleware.SecurityHeaders)      // Security headers (HSTS, CSP, etc.)
	r.Use(middleware.RequireTLS)           // TLS enforcement (enabled via REQUIRE_TLS=true)
	r.Use(middleware.ContentTypeJSON)      // JSON content type
	r.Use(middleware.RequireJSON)          // Reject non-JSON request bodies

	// Initialize handlers
	opsHandler := handler.NewOpsHandler(handler.OpsHandlerConfig{
		Version:   cfg.Version,
		BuildTime: cfg.BuildTime,
		Checks:    cfg.ReadinessChecks,
		Registry:  cfg.ProviderRegistry,
		Flags:     cfg.FeatureFlagService,
	})
	userHandler := handler.NewUserHandler(cfg.UserService)
	conditionHandler := handler.NewConditionHandler(cfg.UserService, cfg.MedicalService, cfg.FeatureFlagService)
	planHandler := handler.NewPlanHandler(cfg.DietService, cfg.UserService)
	searchHandler := handler.NewSearchHandler(cfg.UserService, cfg.FeatureFlagService)
	featureFlagsHandler := handler.NewFeatureFlagsHandler(cfg.FeatureFlagService)

	// Create auth middleware
	authMiddleware := middleware.Auth(cfg.TokenValidator)

	// Create rate limit middleware for different endpoint categories
	registrationRateLimit := middleware.RateLimitByIP(middleware.RegistrationRateLimit) // 10 req/min
	expensiveRateLimit := middleware.RateLimitByIP(middleware.ExpensiveRateLimit)       // 30 req/min
	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit)         // 100 req/min

	// API v1 routes
	r.Route("/v1", func(r chi.Router) {
		// Ops endpoints (public)
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
		})

		// Registration (public) - strict rate limiting
		r.With(registrationRateLimit).Post("/users", userHandler.CreateUser)

		// User endpoints (authenticated) - user-based rate limiting
		r.Route("/users/{userId}", func(r chi.Router) {
			r.Use(authMiddleware)
			r.Use(middleware.RateLimitByUser(middleware.StandardRateLimit)) // 100 req/min per user
			r.Get("/", userHandler.GetUser)
			r.Put("/", userHandler.UpdateUser)
			r.Put("/profile", userHandler.UpdateProfile)
			r.Put("/preferences", userHandler.UpdatePreferences)

			// Conditions
			r.Route("/conditions", func(r chi.Router) {
				r.Get("/", conditionHandler.ListConditions)
				r.Post("/", conditionHandler.AddCondition)
				r.Delete("/{conditionId}", conditionHandler.RemoveCondition)
			})

			// Diet plan - generation is expensive compute, strict rate limiting
			r.With(middleware.RateLimitByUser(middleware.ExpensiveRateLimit)).
				Post("/diet-plan:generate", planHandler.GeneratePlan)
			r.Get("/diet-plan", planHandler.GetPlan)
		})

		// Search endpoints (authenticated) - expensive rate limiting
		r.Route("/search", func(r chi.Router) {
			r.Use(authMiddleware)
			r.Use(expensiveRateLimit)
			r.Get("/users", searchHandler.SearchUsers)
			r.Get("/conditions", searchHandler.SearchConditions)
		})

		// Admin endpoints (authenticated) - for internal operations
		r.Route("/admin", func(r chi.Router) {
			r.Use(authMiddleware)
			r.Use(standardRateLimit)

			// Feature flags management
			r.Route("/feature-flags", func(r chi.Router) {
				r.Get("/", featureFlagsHandler.ListFeatureFlags)
				r.Put("/", featureFlagsHandler.UpsertFeatureFlags)
				r.Post("/invalidate", featureFlagsHandler.InvalidateCache)
			})
		})
	})

	return r
}
