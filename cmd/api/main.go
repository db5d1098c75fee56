// Package main provides the entrypoint for the NutriPlan API server.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/nutriplan/nutriplan/internal/api"
	"github.com/nutriplan/nutriplan/internal/api/handler"
	"github.com/nutriplan/nutriplan/internal/api/middleware"
	"github.com/nutriplan/nutriplan/internal/auth"
	"github.com/nutriplan/nutriplan/internal/database"
	"github.com/nutriplan/nutriplan/internal/diet"
	"github.com/nutriplan/nutriplan/internal/featureflags"
	"github.com/nutriplan/nutriplan/internal/medical"
	"github.com/nutriplan/nutriplan/internal/medical/openfoodfacts"
	"github.com/nutriplan/nutriplan/internal/medical/wikipedia"
	"github.com/nutriplan/nutriplan/internal/provider/resilience"
	"github.com/nutriplan/nutriplan/internal/record"
	"github.com/nutriplan/nutriplan/internal/search"
	"github.com/nutriplan/nutriplan/internal/store"
	"github.com/nutriplan/nutriplan/internal/telemetry"
	"github.com/nutriplan/nutriplan/internal/user"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "nutriplan-api"

	// Setup structured logging
	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting NutriPlan API")

	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	// Initialize OpenTelemetry
	ctx := context.Background()
	telemetryConfig := telemetry.ConfigFromEnv(serviceName, Version)

	tp, err := telemetry.Init(ctx, telemetryConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if telemetryConfig.Enabled {
		log.Info().
			Str("otlp_endpoint", telemetryConfig.OTLPEndpoint).
			Msg("OpenTelemetry initialized")
	}

	// Initialize metrics
	metrics, err := middleware.NewMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}

	// Connect to the primary store
	storeConfig := store.ConfigFromEnv()
	primary, err := store.Connect(ctx, storeConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer primary.Close()
	log.Info().Str("addr", storeConfig.Addr).Msg("primary store connected")

	readinessChecks := map[string]handler.CheckFunc{
		"redis": primary.Ping,
	}

	// Connect to the search database. The secondary index is optional:
	// an unreachable Postgres degrades to primary-only operation with
	// semantic search disabled, it never blocks startup.
	var secondary record.Secondary
	dbConfig := database.ConfigFromEnv()
	pool, err := database.Connect(ctx, dbConfig)
	if err != nil {
		log.Warn().Err(err).Msg("search database unavailable, semantic search disabled")
	} else {
		defer pool.Close()
		readinessChecks["postgres"] = pool.Ping
		log.Info().
			Str("host", dbConfig.Host).
			Int("port", dbConfig.Port).
			Str("database", dbConfig.Database).
			Msg("search database connected")

		index, err := search.NewIndex(ctx, search.IndexConfig{
			Pool:     pool,
			Embedder: embedderFromEnv(),
			Logger:   log,
		})
		if err != nil {
			log.Warn().Err(err).Msg("search index unavailable, semantic search disabled")
		} else {
			secondary = index
			log.Info().Msg("search index initialized")
		}
	}

	// Dual-store repository
	repo := record.NewRepository(record.RepositoryConfig{
		Primary:   primary,
		Secondary: secondary,
		Logger:    log,
	})
	defer repo.Flush()

	// JWT validation (token issuance happens out of band)
	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		jwtSigningKey = "local-dev-signing-key-change-in-production"
		log.Warn().Msg("using default JWT signing key - not secure for production")
	}
	jwtService := auth.NewJWTService(auth.JWTConfig{
		SigningKey: jwtSigningKey,
		Issuer:     envOr("JWT_ISSUER", "https://api.nutriplan.io"),
		Audience:   envOr("JWT_AUDIENCE", "nutriplan-api"),
	})

	// User service
	userService := user.NewService(user.ServiceConfig{
		Store:  repo,
		Logger: log,
	})
	log.Info().Msg("user service initialized")

	// Medical reference lookups behind resilient clients
	wikipediaClient := resilience.NewClient(resilience.DefaultClientConfig(wikipedia.ProviderName))
	offClient := resilience.NewClient(resilience.DefaultClientConfig(openfoodfacts.ProviderName))
	resilience.GlobalRegistry.Register(wikipedia.ProviderName, wikipediaClient)
	resilience.GlobalRegistry.Register(openfoodfacts.ProviderName, offClient)

	medicalService := medical.NewService(medical.ServiceConfig{
		Conditions: wikipedia.NewClient(wikipedia.ClientConfig{HTTPClient: wikipediaClient}),
		Foods:      openfoodfacts.NewClient(openfoodfacts.ClientConfig{HTTPClient: offClient}),
		Cache:      primary,
		Logger:     log,
	})
	log.Info().Msg("medical service initialized")

	// Feature flags, shared with the worker through the primary store
	ffService := featureflags.NewService(featureflags.ServiceConfig{
		Repository: featureflags.NewStoreRepository(primary),
		Logger:     log,
		CacheTTL:   1 * time.Minute,
	})
	log.Info().Msg("feature flags service initialized")

	// Meal planning
	dietService := diet.NewService(diet.ServiceConfig{
		Engine:     diet.NewEngine(diet.EngineConfig{}),
		Aggregator: diet.NewAggregator(medicalService.ConditionLookup(), log),
		Cache:      diet.NewFoodCache(diet.FoodCacheConfig{Store: primary, Logger: log}),
		Selector:   diet.NewMacroSplitSelector(),
		Users:      userService,
		Flags:      ffService,
		Logger:     log,
	})
	log.Info().Msg("diet service initialized")

	// Create router with configuration
	router := api.NewRouter(api.RouterConfig{
		Version:            Version,
		BuildTime:          BuildTime,
		Logger:             log,
		ServiceName:        serviceName,
		Metrics:            metrics,
		TokenValidator:     jwtService,
		UserService:        userService,
		DietService:        dietService,
		MedicalService:     medicalService,
		FeatureFlagService: ffService,
		ProviderRegistry:   resilience.GlobalRegistry,
		ReadinessChecks:    readinessChecks,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		os.Exit(1)
	}

	// Let in-flight index mirrors drain before the process exits.
	repo.Flush()

	log.Info().Msg("server stopped")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// embedderFromEnv builds the document embedder. EMBEDDING_URL selects a
// remote embedding service; without it a deterministic local embedder is
// used.
func embedderFromEnv() search.Embedder {
	dims := 0
	if v := os.Getenv("EMBEDDING_DIMENSIONS"); v != "" {
		dims, _ = strconv.Atoi(v)
	}

	if url := os.Getenv("EMBEDDING_URL"); url != "" {
		client := resilience.NewClient(resilience.DefaultClientConfig("embeddings"))
		return search.NewRemoteEmbedder(client, url, dims)
	}
	return search.NewHashingEmbedder(dims)
}
