package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/zombar/geoanalyzer/internal/api"
	"github.com/zombar/geoanalyzer/internal/audit"
	"github.com/zombar/geoanalyzer/internal/config"
	"github.com/zombar/geoanalyzer/internal/database"
	"github.com/zombar/geoanalyzer/internal/metrics"
	"github.com/zombar/geoanalyzer/internal/ollama"
	"github.com/zombar/geoanalyzer/internal/queue"
	"github.com/zombar/geoanalyzer/internal/tracing"
	"github.com/zombar/geoanalyzer/pkg/logging"
)

const metricsNamespace = "geoanalyzer"

func main() {
	// Setup structured logging with JSON output
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := config.Load()

	var (
		port         = flag.String("port", cfg.Port, "Server port (env: PORT)")
		dbDSN        = flag.String("db", cfg.DBDSN, "Database DSN or SQLite file path (env: DB_DSN)")
		redisAddr    = flag.String("redis", cfg.RedisAddr, "Redis address for bulk audits, empty disables the queue (env: REDIS_ADDR)")
		concurrency  = flag.Int("worker-concurrency", cfg.WorkerConcurrency, "Queue worker concurrency (env: WORKER_CONCURRENCY)")
		analysisPath = flag.String("config", cfg.AnalysisConfigPath, "YAML analysis config file (env: ANALYSIS_CONFIG)")
		ollamaURL    = flag.String("ollama-url", cfg.OllamaURL, "Ollama API URL (env: OLLAMA_URL)")
		ollamaModel  = flag.String("ollama-model", cfg.OllamaModel, "Ollama model to use (env: OLLAMA_MODEL)")
		useOllama    = flag.Bool("use-ollama", cfg.UseOllama, "Enable Ollama rewrite suggestions (env: USE_OLLAMA)")
	)
	flag.Parse()

	logger.Info("geoanalyzer service initializing", "service", cfg.ServiceName)

	// Initialize tracing
	tp, err := tracing.InitTracer(cfg.ServiceName)
	if err != nil {
		logger.Warn("failed to initialize tracer, continuing without tracing", "error", err)
	} else {
		defer func() {
			if err := tp.Shutdown(context.Background()); err != nil {
				logger.Error("error shutting down tracer", "error", err)
			}
		}()
		logger.Info("tracing initialized successfully")
	}

	textAnalyzer, err := config.NewAnalyzer(*analysisPath)
	if err != nil {
		logger.Error("invalid analysis configuration", "error", err, "config_path", *analysisPath)
		os.Exit(1)
	}
	logger.Info("analyzer configured",
		"profile", textAnalyzer.Config().Profile,
		"readability_strategy", textAnalyzer.Config().ReadabilityStrategy,
		"keywords", textAnalyzer.KeywordSet().Len(),
	)

	// Initialize database
	db, err := database.New(*dbDSN)
	if err != nil {
		logger.Error("failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	dbMetrics := metrics.NewDatabaseMetrics(metricsNamespace, prometheus.DefaultRegisterer)
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			dbMetrics.UpdateDBStats(db.Conn())
		}
	}()

	serviceOpts := []audit.ServiceOption{
		audit.WithMetrics(metrics.NewBusinessMetrics(metricsNamespace, prometheus.DefaultRegisterer)),
	}
	if *useOllama {
		ollamaClient, err := ollama.New(*ollamaURL, *ollamaModel)
		if err != nil {
			logger.Warn("failed to initialize Ollama client, suggestions disabled",
				"error", err,
				"ollama_url", *ollamaURL,
			)
		} else {
			logger.Info("Ollama client initialized", "model", ollamaClient.Model(), "url", *ollamaURL)
			serviceOpts = append(serviceOpts, audit.WithSuggester(ollamaClient))
		}
	} else {
		logger.Info("Ollama disabled, rewrite suggestions unavailable")
	}
	service := audit.NewService(textAnalyzer, db, serviceOpts...)

	// Bulk audits need Redis; without it the API rejects them with 503
	var queueClient api.QueueClient
	var worker *queue.Worker
	if *redisAddr != "" {
		client := queue.NewClient(queue.ClientConfig{RedisAddr: *redisAddr})
		defer client.Close()
		queueClient = client

		worker = queue.NewWorker(queue.WorkerConfig{
			RedisAddr:   *redisAddr,
			Concurrency: *concurrency,
		}, service, client)
		if err := worker.Start(); err != nil {
			logger.Error("failed to start queue worker", "error", err)
			os.Exit(1)
		}
	} else {
		logger.Info("REDIS_ADDR not set, bulk audits disabled")
	}

	// Tracing is outermost so access logs carry the request's trace id
	handler := tracing.HTTPMiddleware(cfg.ServiceName)(
		logging.HTTPLoggingMiddleware(logger)(
			api.NewHandler(db, service, queueClient),
		),
	)

	srv := &http.Server{
		Addr:         ":" + *port,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("geoanalyzer service starting",
			"port", *port,
			"queue_enabled", queueClient != nil,
			"suggestions_enabled", service.SuggestionsEnabled(),
		)

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	if worker != nil {
		worker.Shutdown()
	}

	logger.Info("server stopped")
}
