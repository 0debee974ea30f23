package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/dvloznov/statement-converter/internal/api"
	"github.com/dvloznov/statement-converter/internal/config"
	"github.com/dvloznov/statement-converter/internal/extraction"
	"github.com/dvloznov/statement-converter/internal/jobs/inmemory"
	"github.com/dvloznov/statement-converter/internal/logger"
	"github.com/dvloznov/statement-converter/internal/metrics"
	"github.com/dvloznov/statement-converter/internal/session"
	storemem "github.com/dvloznov/statement-converter/internal/store/inmemory"
	"github.com/shopspring/decimal"
)

func main() {
	// Parse command-line flags
	var (
		configPath = flag.String("config", os.Getenv("CONFIG_FILE"), "YAML config file merged over the environment (or set CONFIG_FILE env)")
		port       = flag.Int("port", 0, "HTTP server port, overrides PORT")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log := logger.New()
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if *port != 0 {
		cfg.Port = *port
	}

	log := logger.NewWithLevel(cfg.LogLevel)

	// Amounts go over the wire as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true

	ctx := context.Background()

	if cfg.GeminiAPIKey == "" {
		log.Fatal().Msg("GEMINI_API_KEY (or API_KEY) is required")
	}
	generator, err := extraction.NewGeminiGenerator(ctx, extraction.GeminiConfig{
		APIKey:  cfg.GeminiAPIKey,
		Model:   cfg.GeminiModel,
		Timeout: cfg.ExtractionTimeout.Std(),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create extraction client")
	}

	m := metrics.New()
	jobQueue := inmemory.NewQueue(cfg.QueueSize, cfg.ExtractionWorkers, log)
	sess := session.New(
		storemem.NewStore(),
		extraction.NewExtractor(generator, cfg.ExtractionContext),
		jobQueue,
		m,
		log,
		session.Config{MaxUploadBytes: cfg.MaxUploadBytes, ContextHint: cfg.ExtractionContext},
	)

	// Start workers in background to process extraction jobs
	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	log.Info().Int("workers", cfg.ExtractionWorkers).Msg("Starting extraction workers")
	if err := jobQueue.Start(workerCtx, sess.HandleJob); err != nil {
		log.Fatal().Err(err).Msg("Failed to start extraction workers")
	}

	handler := api.NewRouter(sess, api.Options{
		MaxUploadBytes: cfg.MaxUploadBytes,
		Metrics:        m.Handler(),
		Requests:       m,
	}, log)

	addr := ":" + strconv.Itoa(cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("addr", addr).Str("model", cfg.GeminiModel).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Running extractions are abandoned; their documents disappear with the process.
	cancelWorker()

	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}

	log.Info().Msg("Server exited")
}
