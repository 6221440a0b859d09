package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/gestapp/internal/api/handlers"
	"github.com/dvloznov/gestapp/internal/api/middleware"
	"github.com/dvloznov/gestapp/internal/app"
	"github.com/dvloznov/gestapp/internal/config"
	"github.com/dvloznov/gestapp/internal/jobs/inmemory"
	"github.com/dvloznov/gestapp/internal/logger"
)

const authRatePerMinute = 30

func main() {
	// Parse command-line flags
	var (
		configPath = flag.String("config", "", "YAML config file (or set "+config.EnvConfigPath+")")
		port       = flag.String("port", "", "HTTP server port (overrides PORT)")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		bootLog := logger.New()
		bootLog.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if *port != "" {
		cfg.Server.Port = *port
	}

	// Initialize logger
	log := logger.NewWithOptions(logger.Options{Level: cfg.Log.Level, JSON: cfg.Log.JSON})

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	ctx := logger.WithContext(context.Background(), log)

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize application")
	}
	defer a.Close()

	// Initialize job infrastructure
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(100, jobStore)

	// Start worker in background to process jobs
	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	log.Info().Msg("Starting job worker")
	if err := jobQueue.Start(workerCtx, a.Jobs.Handle); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job worker")
	}

	// Initialize handlers
	routes := handlers.Routes{
		Health:       handlers.NewHealthHandler(a.Pool),
		Auth:         handlers.NewAuthHandler(a.Auth),
		Transactions: handlers.NewTransactionsHandler(a.Transactions),
		Liquidity:    handlers.NewLiquidityHandler(a.Liquidity),
		Jobs:         handlers.NewJobsHandler(jobQueue, jobStore, a.Jobs),
		AuthLimiter:  middleware.NewRateLimiter(authRatePerMinute, 5),
		ParseLimiter: middleware.NewRateLimiter(cfg.Gemini.RatePerMinute, 3),
	}
	if a.Parser != nil {
		routes.Gemini = handlers.NewGeminiHandler(a.Parser)
	}
	router := handlers.NewRouter(routes)

	// Apply middleware
	handler := middleware.Recovery(log)(
		middleware.Logger(log)(
			middleware.RequestID(
				middleware.CORS(cfg.Server.FrontendURL)(
					middleware.Auth(a.Auth, handlers.PublicPaths...)(router),
				),
			),
		),
	)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Stop job queue and wait for in-flight jobs
	cancelWorker()
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}

	log.Info().Msg("Server exited")
}
