// Package main provides the entrypoint for the NutriPlan background worker.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/nutriplan/nutriplan/internal/database"
	"github.com/nutriplan/nutriplan/internal/diet"
	"github.com/nutriplan/nutriplan/internal/featureflags"
	"github.com/nutriplan/nutriplan/internal/medical"
	"github.com/nutriplan/nutriplan/internal/medical/openfoodfacts"
	"github.com/nutriplan/nutriplan/internal/medical/wikipedia"
	"github.com/nutriplan/nutriplan/internal/record"
	"github.com/nutriplan/nutriplan/internal/search"
	"github.com/nutriplan/nutriplan/internal/store"
	"github.com/nutriplan/nutriplan/internal/user"
	"github.com/nutriplan/nutriplan/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "nutriplan-worker"

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting NutriPlan worker")

	// Cloud Run still probes the worker over HTTP.
	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect to the primary store
	storeConfig := store.ConfigFromEnv()
	primary, err := store.Connect(ctx, storeConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer primary.Close()

	// Connect to the search database
	dbConfig := database.ConfigFromEnv()
	pool, err := database.Connect(ctx, dbConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()

	index, err := search.NewIndex(ctx, search.IndexConfig{
		Pool:     pool,
		Embedder: search.NewHashingEmbedder(0),
		Logger:   log,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize search index")
	}

	repo := record.NewRepository(record.RepositoryConfig{
		Primary:   primary,
		Secondary: index,
		Logger:    log,
	})
	defer repo.Flush()

	userService := user.NewService(user.ServiceConfig{
		Store:  repo,
		Logger: log,
	})

	medicalService := medical.NewService(medical.ServiceConfig{
		Conditions: wikipedia.NewClient(wikipedia.ClientConfig{}),
		Foods:      openfoodfacts.NewClient(openfoodfacts.ClientConfig{}),
		Cache:      primary,
		Logger:     log,
	})

	ffService := featureflags.NewService(featureflags.ServiceConfig{
		Repository: featureflags.NewStoreRepository(primary),
		Logger:     log,
	})

	dietService := diet.NewService(diet.ServiceConfig{
		Engine:     diet.NewEngine(diet.EngineConfig{}),
		Aggregator: diet.NewAggregator(medicalService.ConditionLookup(), log),
		Cache:      diet.NewFoodCache(diet.FoodCacheConfig{Store: primary, Logger: log}),
		Selector:   diet.NewMacroSplitSelector(),
		Users:      userService,
		Flags:      ffService,
		Logger:     log,
	})

	jobsConfig := worker.DefaultJobsConfig()

	refreshJob := worker.NewRefreshJob(worker.RefreshJobConfig{
		Config:  jobsConfig,
		Users:   userService,
		Planner: dietService,
		Flags:   ffService,
		Logger:  log,
	})

	backfillJob := worker.NewBackfillJob(worker.BackfillJobConfig{
		Config: jobsConfig,
		Index:  repo,
		Logger: log,
	})

	// Pub/Sub subscription for job triggers
	projectID := os.Getenv("PUBSUB_PROJECT_ID")
	subscription := os.Getenv("PUBSUB_SUBSCRIPTION")
	if subscription == "" {
		subscription = "nutriplan-jobs"
	}

	var pubsubHandler *worker.PubSubHandler
	if projectID == "" {
		log.Warn().Msg("PUBSUB_PROJECT_ID not set, job triggers disabled")
	} else {
		pubsubHandler, err = worker.NewPubSubHandler(ctx, worker.PubSubConfig{
			ProjectID:        projectID,
			SubscriptionName: subscription,
			RefreshJob:       refreshJob,
			BackfillJob:      backfillJob,
			Logger:           log,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create pubsub handler")
		}
		defer pubsubHandler.Close()

		go func() {
			log.Info().
				Str("project", projectID).
				Str("subscription", subscription).
				Msg("listening for job messages")

			if err := pubsubHandler.Start(ctx); err != nil && ctx.Err() == nil {
				log.Error().Err(err).Msg("pubsub receive stopped")
			}
		}()
	}

	// Health check endpoint
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"healthy","version":"%s"}`, Version)
	})

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("health server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("health server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down worker")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shutdown")
	}

	// Let in-flight index mirrors drain before the process exits.
	repo.Flush()

	log.Info().Msg("worker stopped")
}
