package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ddrslabs/matching-backend/internal/config"
	"github.com/ddrslabs/matching-backend/internal/data/db"
	matchingrepo "github.com/ddrslabs/matching-backend/internal/data/repos/matching"
	registryrepo "github.com/ddrslabs/matching-backend/internal/data/repos/registry"
	"github.com/ddrslabs/matching-backend/internal/http/handlers"
	"github.com/ddrslabs/matching-backend/internal/ollama"
	"github.com/ddrslabs/matching-backend/internal/platform/envutil"
	"github.com/ddrslabs/matching-backend/internal/platform/logger"
	"github.com/ddrslabs/matching-backend/internal/server"
	"github.com/ddrslabs/matching-backend/internal/services"
)

func main() {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	configPath := envutil.GetEnv("CONFIG_PATH", "config.yaml", log)
	cfg, err := config.Load(configPath, log)
	if err != nil {
		log.Fatal("Failed to load config", "error", err)
	}

	// Postgres
	postgresService, err := db.NewPostgresService(cfg.Postgres, log)
	if err != nil {
		log.Fatal("Postgres init failed", "error", err)
	}
	if err := postgresService.AutoMigrateAll(); err != nil {
		log.Fatal("Postgres auto migration failed", "error", err)
	}
	thePG := postgresService.DB()

	// Repos
	log.Info("Setting up repos...")
	requestRepo := matchingrepo.NewRequestRepo(thePG, log)
	recommendationRepo := matchingrepo.NewRecommendationRepo(thePG, log)
	exchangeRepo := matchingrepo.NewExchangeRepo(thePG, log)
	datasetRepo := registryrepo.NewDatasetRepo(thePG, log)
	datastoreRepo := registryrepo.NewDatastoreRepo(thePG, log)

	// Ollama gateway + model cache
	log.Info("Setting up Ollama gateway...", "base_url", cfg.Ollama.BaseURL)
	ollamaClient, err := ollama.NewClient(cfg.Ollama, log)
	if err != nil {
		log.Fatal("Could not init Ollama client", "error", err)
	}
	modelCache := ollama.NewModelCache(
		ollamaClient,
		cfg.Ollama.ModelCacheTTL,
		cfg.Ollama.ModelCacheFallbackTTL,
		cfg.Ollama.FallbackModels,
		log,
	)

	// Services
	matchingService := services.NewMatchingService(
		thePG, log,
		requestRepo, recommendationRepo, exchangeRepo,
		datasetRepo, datastoreRepo,
		ollamaClient, modelCache,
		cfg.Matching,
	)

	// HTTP
	matchingHandler := handlers.NewMatchingHandler(matchingService, modelCache, ollamaClient)
	router := server.NewRouter(server.RouterConfig{
		MatchingHandler: matchingHandler,
		AllowOrigins:    cfg.HTTP.AllowOrigins,
	})

	srv := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: router,
	}

	go func() {
		log.Info("HTTP server listening", "addr", cfg.HTTP.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server failed", "error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP shutdown did not finish cleanly", "error", err)
	}
	if err := matchingService.Drain(shutdownCtx); err != nil {
		log.Warn("In-flight matching runs did not drain before timeout", "error", err)
	}
}
