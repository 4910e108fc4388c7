package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/denisplykin/sales-coach-service/internal/analyzer"
	"github.com/denisplykin/sales-coach-service/internal/audio"
	"github.com/denisplykin/sales-coach-service/internal/callplan"
	"github.com/denisplykin/sales-coach-service/internal/config"
	"github.com/denisplykin/sales-coach-service/internal/metrics"
	"github.com/denisplykin/sales-coach-service/internal/server"
	"github.com/denisplykin/sales-coach-service/internal/session"
	"github.com/denisplykin/sales-coach-service/internal/transcription"
)

const (
	defaultConfigPath = "configs/config.yaml"
	serviceName       = "sales-coach-service"
	serviceVersion    = "1.0.0"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger based on configuration
	logger := initLogger(cfg.Logging)

	// Log service startup
	logger.Info("Service starting",
		slog.String("service", serviceName),
		slog.String("version", serviceVersion),
		slog.String("config_path", *configPath),
	)

	// Log configuration summary (without sensitive data)
	logger.Info("Configuration loaded",
		slog.Int("port", cfg.Server.Port),
		slog.String("address", cfg.Server.Address),
		slog.Float64("buffer_interval", cfg.Buffering.IntervalSeconds),
		slog.Int("buffer_min_chunks", cfg.Buffering.MinChunks),
		slog.Int("buffer_min_bytes", cfg.Buffering.MinBytes),
		slog.String("transcription_endpoint", cfg.Transcription.Endpoint),
		slog.String("analyzer_endpoint", cfg.Analyzer.Endpoint),
		slog.String("analyzer_model", cfg.Analyzer.Model),
		slog.String("default_language", cfg.Analysis.DefaultLanguage),
		slog.String("log_level", cfg.Logging.Level),
	)

	// Create cancellable context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize Prometheus metrics
	appMetrics := metrics.NewMetrics()
	logger.Info("Prometheus metrics initialized")

	// Load the call plan: built-in defaults unless the config points at
	// override files.
	plans, err := loadCallPlan(cfg.CallPlan)
	if err != nil {
		logger.Error("Failed to load call plan", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("Call plan loaded",
		slog.Int("stages", len(plans.Structure())),
		slog.Int("client_card_fields", len(plans.ClientCardFields())),
	)

	// Create transcription client
	transcriber, err := transcription.NewClient(transcription.Config{
		Endpoint:      cfg.Transcription.Endpoint,
		APIKey:        cfg.Transcription.APIKey,
		Model:         cfg.Transcription.Model,
		Timeout:       cfg.Transcription.GetTimeoutDuration(),
		MaxRetries:    cfg.Transcription.MaxRetries,
		MaxConcurrent: cfg.Transcription.MaxConcurrent,
	})
	if err != nil {
		logger.Error("Failed to create transcription client", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Create semantic classifier client
	classifier, err := analyzer.NewClient(analyzer.Config{
		Endpoint:      cfg.Analyzer.Endpoint,
		APIKey:        cfg.Analyzer.APIKey,
		Model:         cfg.Analyzer.Model,
		Timeout:       cfg.Analyzer.GetTimeoutDuration(),
		MaxConcurrent: cfg.Analyzer.MaxConcurrent,
	})
	if err != nil {
		logger.Error("Failed to create analyzer client", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Initialize session manager
	sessionMgr := session.NewManager(logger, plans, transcriber, classifier, appMetrics, session.ManagerConfig{
		Analysis: cfg.Analysis,
		Buffer: audio.BufferConfig{
			Interval:  cfg.Buffering.GetBufferInterval(),
			MinChunks: cfg.Buffering.MinChunks,
			MinBytes:  cfg.Buffering.MinBytes,
		},
	})
	logger.Info("Session manager initialized")

	// Initialize HTTP/WebSocket server
	httpServer := server.NewHTTPServer(server.HTTPServerConfig{
		Port:    cfg.Server.Port,
		Address: cfg.Server.Address,
	}, logger, sessionMgr, plans, appMetrics)

	if err := httpServer.Start(); err != nil {
		logger.Error("Failed to start HTTP server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("Service started successfully, waiting for signals...",
		slog.String("listen_address", fmt.Sprintf("%s:%d", cfg.Server.Address, cfg.Server.Port)),
	)

	// Wait for shutdown signal
	select {
	case sig := <-sigChan:
		logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
	case <-ctx.Done():
		logger.Info("Context cancelled, shutting down")
	}

	logger.Info("Starting graceful shutdown...")

	// Stop HTTP server first (stop accepting new connections)
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Stop(shutdownCtx); err != nil {
		logger.Error("Error stopping HTTP server", slog.String("error", err.Error()))
	}

	// Stop session manager (cleanup sessions and stop background routines)
	sessionMgr.Stop()

	// Log final client statistics
	tStats := transcriber.GetStats()
	aStats := classifier.GetStats()
	logger.Info("Final client statistics",
		slog.Uint64("transcription_requests", tStats.TotalRequests),
		slog.Uint64("transcription_failures", tStats.FailedRequests),
		slog.Uint64("analyzer_requests", aStats.TotalRequests),
		slog.Uint64("analyzer_failures", aStats.FailedRequests),
	)

	logger.Info("Service stopped")
}

// loadCallPlan builds the call plan store, reading override files when the
// configuration names them.
func loadCallPlan(cfg config.CallPlanConfig) (*callplan.Store, error) {
	structure := callplan.DefaultStructure()
	fields := callplan.DefaultClientCardFields()

	if cfg.StructurePath != "" {
		loaded, err := callplan.LoadStructure(cfg.StructurePath)
		if err != nil {
			return nil, fmt.Errorf("call structure: %w", err)
		}
		structure = loaded
	}

	if cfg.ClientCardPath != "" {
		loaded, err := callplan.LoadClientCardFields(cfg.ClientCardPath)
		if err != nil {
			return nil, fmt.Errorf("client card: %w", err)
		}
		fields = loaded
	}

	return callplan.NewStore(structure, fields), nil
}

// initLogger creates and configures the structured logger based on configuration
func initLogger(cfg config.LoggingConfig) *slog.Logger {
	// Parse log level
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo // default fallback
	}

	// Configure handler options
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug, // Add source info for debug level
	}

	// Determine output destination
	var output *os.File
	switch cfg.Output {
	case "stderr":
		output = os.Stderr
	case "stdout", "":
		output = os.Stdout
	default:
		// Assume it's a file path
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v, falling back to stdout\n", cfg.Output, err)
			output = os.Stdout
		} else {
			output = file
		}
	}

	// Create handler based on format
	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	case "text", "":
		handler = slog.NewTextHandler(output, opts)
	default:
		// Default to text format
		handler = slog.NewTextHandler(output, opts)
	}

	return slog.New(handler)
}
