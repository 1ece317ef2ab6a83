package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// ExecutorType selects the batch executor the gateway dispatches to.
type ExecutorType string

const (
	// ExecutorTypeEcho upper-cases prompts locally. Useful for smoke tests
	// and benchmarks without an upstream model.
	ExecutorTypeEcho ExecutorType = "echo"
	// ExecutorTypeOpenAI posts batches to an OpenAI-compatible Responses API.
	ExecutorTypeOpenAI ExecutorType = "openai"
	// ExecutorTypeAnthropic sends batch items to the Anthropic Messages API.
	ExecutorTypeAnthropic ExecutorType = "anthropic"
)

// IsValid checks if the executor type is valid
func (e ExecutorType) IsValid() bool {
	switch e {
	case ExecutorTypeEcho, ExecutorTypeOpenAI, ExecutorTypeAnthropic:
		return true
	}
	return false
}

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Batcher    BatcherConfig    `yaml:"batcher"`
	Executor   ExecutorConfig   `yaml:"executor"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
}

type ServerConfig struct {
	Port           int           `yaml:"port"`
	LoggingLevel   string        `yaml:"logging_level"`
	LogJSON        bool          `yaml:"log_json"`
	RequestTimeout time.Duration `yaml:"request_timeout"` // per /answer request (default: 60s)
	ReadTimeout    time.Duration `yaml:"read_timeout"`    // HTTP server read timeout (default: 30s)
	WriteTimeout   time.Duration `yaml:"write_timeout"`   // HTTP server write timeout (default: 1.5*request_timeout)
}

// BatcherConfig mirrors the coordinator's construction options.
type BatcherConfig struct {
	MaxBatch      int    `yaml:"max_batch"`
	MaxWaitMS     int    `yaml:"max_wait_ms"`
	Backpressure  string `yaml:"backpressure"`
	QueueCapacity int    `yaml:"queue_capacity"`
	AbortOnClose  bool   `yaml:"abort_on_close"`
}

// ExecutorConfig configures the upstream the gateway batches into.
// APIKey supports the os.environ/VAR_NAME pattern.
type ExecutorConfig struct {
	Type    ExecutorType  `yaml:"type"`
	Model   string        `yaml:"model"`
	APIKey  string        `yaml:"api_key"`
	BaseURL string        `yaml:"base_url,omitempty"`
	Timeout time.Duration `yaml:"timeout"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool   `yaml:"prometheus_enabled"`
	HealthCheckPath   string `yaml:"health_check_path"`
}

// UnmarshalYAML implements custom unmarshaling for ServerConfig with env variable support
func (s *ServerConfig) UnmarshalYAML(value *yaml.Node) error {
	type tempConfig struct {
		Port           string `yaml:"port"`
		LoggingLevel   string `yaml:"logging_level"`
		LogJSON        string `yaml:"log_json"`
		RequestTimeout string `yaml:"request_timeout"`
		ReadTimeout    string `yaml:"read_timeout"`
		WriteTimeout   string `yaml:"write_timeout"`
	}

	var temp tempConfig
	if err := value.Decode(&temp); err != nil {
		return err
	}

	var err error

	s.Port, err = parseField(temp.Port, 8080, strconv.Atoi, "port")
	if err != nil {
		return err
	}

	s.LoggingLevel = resolveEnvString(temp.LoggingLevel)

	s.LogJSON, err = parseField(temp.LogJSON, false, strconv.ParseBool, "log_json")
	if err != nil {
		return err
	}

	s.RequestTimeout, err = parseField(temp.RequestTimeout, 60*time.Second, time.ParseDuration, "request_timeout")
	if err != nil {
		return err
	}

	s.ReadTimeout, err = parseField(temp.ReadTimeout, 30*time.Second, time.ParseDuration, "read_timeout")
	if err != nil {
		return err
	}

	s.WriteTimeout, err = parseField(temp.WriteTimeout, 0, time.ParseDuration, "write_timeout")
	if err != nil {
		return err
	}

	return nil
}

// UnmarshalYAML implements custom unmarshaling for BatcherConfig with env variable support
func (b *BatcherConfig) UnmarshalYAML(value *yaml.Node) error {
	type tempConfig struct {
		MaxBatch      string `yaml:"max_batch"`
		MaxWaitMS     string `yaml:"max_wait_ms"`
		Backpressure  string `yaml:"backpressure"`
		QueueCapacity string `yaml:"queue_capacity"`
		AbortOnClose  string `yaml:"abort_on_close"`
	}

	var temp tempConfig
	if err := value.Decode(&temp); err != nil {
		return err
	}

	var err error

	b.MaxBatch, err = parseField(temp.MaxBatch, 32, strconv.Atoi, "max_batch")
	if err != nil {
		return err
	}

	b.MaxWaitMS, err = parseField(temp.MaxWaitMS, 10, strconv.Atoi, "max_wait_ms")
	if err != nil {
		return err
	}

	b.Backpressure = resolveEnvString(temp.Backpressure)
	if b.Backpressure == "" {
		b.Backpressure = "block"
	}

	b.QueueCapacity, err = parseField(temp.QueueCapacity, 0, strconv.Atoi, "queue_capacity")
	if err != nil {
		return err
	}

	b.AbortOnClose, err = parseField(temp.AbortOnClose, false, strconv.ParseBool, "abort_on_close")
	if err != nil {
		return err
	}

	return nil
}

// UnmarshalYAML implements custom unmarshaling for ExecutorConfig with env variable support
func (e *ExecutorConfig) UnmarshalYAML(value *yaml.Node) error {
	type tempConfig struct {
		Type    string `yaml:"type"`
		Model   string `yaml:"model"`
		APIKey  string `yaml:"api_key"`
		BaseURL string `yaml:"base_url"`
		Timeout string `yaml:"timeout"`
	}

	var temp tempConfig
	if err := value.Decode(&temp); err != nil {
		return err
	}

	e.Type = ExecutorType(resolveEnvString(temp.Type))
	e.Model = resolveEnvString(temp.Model)
	e.APIKey = resolveEnvString(temp.APIKey)
	e.BaseURL = resolveEnvString(temp.BaseURL)

	var err error
	e.Timeout, err = parseField(temp.Timeout, 30*time.Second, time.ParseDuration, "timeout")
	if err != nil {
		return err
	}

	return nil
}

// Load reads, resolves and validates a gateway configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.RequestTimeout == 0 {
		c.Server.RequestTimeout = 60 * time.Second
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 30 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = time.Duration(float64(c.Server.RequestTimeout) * 1.5)
	}
	if c.Batcher.MaxBatch == 0 {
		c.Batcher.MaxBatch = 32
	}
	if c.Batcher.Backpressure == "" {
		c.Batcher.Backpressure = "block"
	}
	if c.Executor.Type == "" {
		c.Executor.Type = ExecutorTypeEcho
	}
	if c.Executor.Timeout == 0 {
		c.Executor.Timeout = 30 * time.Second
	}
	c.Executor.APIKey = resolveEnvString(c.Executor.APIKey)
	if c.Monitoring.HealthCheckPath == "" {
		c.Monitoring.HealthCheckPath = "/healthz"
	}
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}

	if c.Server.LoggingLevel != "" {
		validLevels := map[string]bool{"info": true, "debug": true, "error": true}
		if !validLevels[c.Server.LoggingLevel] {
			return fmt.Errorf("invalid logging_level: %s (must be info, debug, or error)", c.Server.LoggingLevel)
		}
	} else {
		c.Server.LoggingLevel = "info"
	}

	if c.Batcher.MaxBatch < 1 {
		return fmt.Errorf("invalid max_batch: %d", c.Batcher.MaxBatch)
	}
	if c.Batcher.MaxWaitMS < 0 {
		return fmt.Errorf("invalid max_wait_ms: %d", c.Batcher.MaxWaitMS)
	}
	if c.Batcher.Backpressure != "block" && c.Batcher.Backpressure != "drop" {
		return fmt.Errorf("invalid backpressure: %s (must be block or drop)", c.Batcher.Backpressure)
	}
	if c.Batcher.QueueCapacity < 0 {
		return fmt.Errorf("invalid queue_capacity: %d", c.Batcher.QueueCapacity)
	}

	if !c.Executor.Type.IsValid() {
		return fmt.Errorf("invalid executor type: %s", c.Executor.Type)
	}
	if c.Executor.Type != ExecutorTypeEcho {
		if c.Executor.Model == "" {
			return fmt.Errorf("executor %s requires a model", c.Executor.Type)
		}
		if c.Executor.APIKey == "" {
			return fmt.Errorf("executor %s requires an api_key", c.Executor.Type)
		}
	}

	return nil
}

// MaxWait returns the batcher latency cap as a duration.
func (b BatcherConfig) MaxWait() time.Duration {
	return time.Duration(b.MaxWaitMS) * time.Millisecond
}
