package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	autobatch "github.com/fabriziopfannl/llm-autobatch"
	anthropicexec "github.com/fabriziopfannl/llm-autobatch/executor/anthropic"
	openaiexec "github.com/fabriziopfannl/llm-autobatch/executor/openai"
	"github.com/fabriziopfannl/llm-autobatch/internal/config"
	"github.com/fabriziopfannl/llm-autobatch/internal/logger"
	"github.com/fabriziopfannl/llm-autobatch/internal/monitoring"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	var log *slog.Logger
	if cfg.Server.LogJSON {
		log = logger.NewJSON(cfg.Server.LoggingLevel)
	} else {
		log = logger.New(cfg.Server.LoggingLevel)
	}

	log.Info("Starting llm-autobatch gateway",
		"version", Version,
		"commit", Commit,
		"logging_level", cfg.Server.LoggingLevel,
		"port", cfg.Server.Port,
	)
	config.PrintConfig(log, cfg)

	exec, err := buildExecutor(cfg)
	if err != nil {
		log.Error("Failed to build executor", "error", err)
		os.Exit(1)
	}

	metrics := monitoring.New(cfg.Monitoring.PrometheusEnabled)

	batcher, err := autobatch.New[string, string](autobatch.Config{
		MaxBatch:      cfg.Batcher.MaxBatch,
		MaxWait:       cfg.Batcher.MaxWait(),
		Backpressure:  autobatch.BackpressurePolicy(cfg.Batcher.Backpressure),
		QueueCapacity: cfg.Batcher.QueueCapacity,
		AbortOnClose:  cfg.Batcher.AbortOnClose,
		Logger:        log,
		Observer:      metrics,
	})
	if err != nil {
		log.Error("Failed to create batcher", "error", err)
		os.Exit(1)
	}
	log.Info("Batcher started", "batcher_id", batcher.ID())

	gw := &gateway{
		batcher:        batcher,
		exec:           exec,
		logger:         log,
		metrics:        metrics,
		requestTimeout: cfg.Server.RequestTimeout,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/answer", gw.handleAnswer)
	mux.HandleFunc(cfg.Monitoring.HealthCheckPath, gw.handleHealth)

	if cfg.Monitoring.PrometheusEnabled {
		mux.Handle("/metrics", promhttp.Handler())
		log.Info("Prometheus metrics enabled", "path", "/metrics")
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info("Server starting", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	// Close drains the in-flight work before stopping the dispatcher.
	batcher.Close()

	m := batcher.Metrics()
	log.Info("Server shutdown complete",
		"total_items", m.TotalItems,
		"total_batches", m.TotalBatches,
		"total_dropped", m.TotalDropped,
		"total_errors", m.TotalErrors,
	)
}

// buildExecutor resolves the configured executor type to a batch function.
func buildExecutor(cfg *config.Config) (autobatch.Executor[string, string], error) {
	switch cfg.Executor.Type {
	case config.ExecutorTypeEcho:
		return echoExecutor, nil

	case config.ExecutorTypeOpenAI:
		e, err := openaiexec.New(openaiexec.Config{
			APIKey:  cfg.Executor.APIKey,
			Model:   cfg.Executor.Model,
			BaseURL: cfg.Executor.BaseURL,
			Timeout: cfg.Executor.Timeout,
		})
		if err != nil {
			return nil, err
		}
		return e.Executor(), nil

	case config.ExecutorTypeAnthropic:
		e, err := anthropicexec.New(anthropicexec.Config{
			APIKey: cfg.Executor.APIKey,
			Model:  cfg.Executor.Model,
		})
		if err != nil {
			return nil, err
		}
		return e.Executor(), nil

	default:
		return nil, fmt.Errorf("unknown executor type: %s", cfg.Executor.Type)
	}
}

// echoExecutor answers prompts locally by upper-casing them. Used for smoke
// tests and benchmarks without an upstream model.
func echoExecutor(_ context.Context, prompts []string) ([]string, error) {
	out := make([]string, len(prompts))
	for i, p := range prompts {
		out[i] = strings.ToUpper(p)
	}
	return out, nil
}
