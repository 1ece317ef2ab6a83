package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// resolveEnvString resolves environment variable if value is in format "os.environ/VAR_NAME"
func resolveEnvString(value string) string {
	const prefix = "os.environ/"
	if strings.HasPrefix(value, prefix) {
		envVar := strings.TrimPrefix(value, prefix)
		if envValue := os.Getenv(envVar); envValue != "" {
			return envValue
		}
		slog.Warn("environment variable not set, returning empty string",
			"env_var", envVar,
			"pattern", value,
		)
		return ""
	}
	return value
}

// parseFunc is a function type that parses a string value into the desired type
type parseFunc[T any] func(string) (T, error)

// parseField resolves env variable and parses value with proper error context
func parseField[T any](tempValue string, defaultValue T, parser parseFunc[T], fieldPath string) (T, error) {
	if tempValue == "" {
		return defaultValue, nil
	}

	resolved := resolveEnvString(tempValue)
	parsed, err := parser(resolved)
	if err != nil {
		return defaultValue, fmt.Errorf("invalid %s: %w", fieldPath, err)
	}
	return parsed, nil
}

// PrintConfig outputs the configuration in a structured, readable format to the logger
func PrintConfig(logger *slog.Logger, cfg *Config) {
	logger.Info("=== Configuration Loaded ===")

	logger.Info("server",
		"port", cfg.Server.Port,
		"logging_level", cfg.Server.LoggingLevel,
		"log_json", cfg.Server.LogJSON,
		"request_timeout", cfg.Server.RequestTimeout.String(),
		"read_timeout", cfg.Server.ReadTimeout.String(),
		"write_timeout", cfg.Server.WriteTimeout.String(),
	)

	logger.Info("batcher",
		"max_batch", cfg.Batcher.MaxBatch,
		"max_wait_ms", cfg.Batcher.MaxWaitMS,
		"backpressure", cfg.Batcher.Backpressure,
		"queue_capacity", queueCapacityToString(cfg.Batcher.QueueCapacity),
		"abort_on_close", cfg.Batcher.AbortOnClose,
	)

	logger.Info("executor",
		"type", string(cfg.Executor.Type),
		"model", cfg.Executor.Model,
		"api_key", "***REDACTED***",
		"base_url", cfg.Executor.BaseURL,
		"timeout", cfg.Executor.Timeout.String(),
	)

	logger.Info("monitoring",
		"prometheus_enabled", cfg.Monitoring.PrometheusEnabled,
		"health_check_path", cfg.Monitoring.HealthCheckPath,
	)

	logger.Info("=== Configuration Ready ===")
}

// queueCapacityToString renders 0 as the derived default
func queueCapacityToString(capacity int) string {
	if capacity == 0 {
		return "derived (max_batch*8, min 1024)"
	}
	return fmt.Sprintf("%d", capacity)
}
