// Package config provides configuration management for the research assistant service.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the research assistant service.
type Config struct {
	// Server contains HTTP server settings.
	Server ServerConfig `mapstructure:"server"`
	// Logging contains structured logging settings.
	Logging LoggingConfig `mapstructure:"logging"`
	// Metrics contains Prometheus metrics exposure settings.
	Metrics MetricsConfig `mapstructure:"metrics"`
	// LLM contains LLM client settings.
	LLM LLMConfig `mapstructure:"llm"`
	// Assistant contains model and sampling settings for the assistant operations.
	Assistant AssistantConfig `mapstructure:"assistant"`
	// PaperSources contains paper source API configurations.
	PaperSources PaperSourcesConfig `mapstructure:"paper_sources"`
	// Aggregator contains paper aggregation limits.
	Aggregator AggregatorConfig `mapstructure:"aggregator"`
	// Cache contains query cache settings.
	Cache CacheConfig `mapstructure:"cache"`
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	// Host is the address to bind the server to (default: 0.0.0.0).
	Host string `mapstructure:"host"`
	// HTTPPort is the API server port (default: 5000, or PORT).
	HTTPPort int `mapstructure:"http_port"`
	// MetricsPort is the metrics server port (default: 9091).
	MetricsPort int `mapstructure:"metrics_port"`
	// ReadTimeout is the maximum duration for reading request body.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	// WriteTimeout is the maximum duration for writing response.
	// Report generation is slow, so this is generous.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// MaxBodyBytes limits request body size.
	MaxBodyBytes int64 `mapstructure:"max_body_bytes"`
	// CORSAllowedOrigins lists the origins allowed to call the API.
	CORSAllowedOrigins []string `mapstructure:"cors_allowed_origins"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the log level (trace, debug, info, warn, error, fatal, panic).
	Level string `mapstructure:"level"`
	// Format is the log format (json, console).
	Format string `mapstructure:"format"`
	// Output is the log output destination (stdout, stderr, file path).
	Output string `mapstructure:"output"`
	// AddSource adds source file and line to log output.
	AddSource bool `mapstructure:"add_source"`
	// TimeFormat is the timestamp format.
	TimeFormat string `mapstructure:"time_format"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	// Enabled enables metrics collection and exposure.
	Enabled bool `mapstructure:"enabled"`
	// Path is the HTTP path for metrics endpoint.
	Path string `mapstructure:"path"`
	// Namespace prefixes every metric name.
	Namespace string `mapstructure:"namespace"`
}

// LLMConfig holds LLM client configuration.
type LLMConfig struct {
	// Provider is the LLM provider (openai, anthropic).
	Provider string `mapstructure:"provider"`
	// Timeout is the timeout for LLM API calls.
	Timeout time.Duration `mapstructure:"timeout"`
	// MaxRetries is the maximum number of retries for failed calls.
	MaxRetries int `mapstructure:"max_retries"`
	// OpenAI contains settings for OpenAI-compatible endpoints.
	OpenAI OpenAIConfig `mapstructure:"openai"`
	// Anthropic contains Anthropic-specific settings.
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
}

// OpenAIConfig holds OpenAI-compatible endpoint settings.
type OpenAIConfig struct {
	// APIKey is loaded from RESEARCH_LLM_OPENAI_API_KEY or OPENAI_API_KEY.
	APIKey string `mapstructure:"-"`
	// Model is the default model.
	Model string `mapstructure:"model"`
	// BaseURL is the API base URL. OPENAI_BASE_URL overrides the default.
	BaseURL string `mapstructure:"base_url"`
}

// AnthropicConfig holds Anthropic-specific settings.
type AnthropicConfig struct {
	// APIKey is loaded from RESEARCH_LLM_ANTHROPIC_API_KEY or ANTHROPIC_API_KEY.
	APIKey string `mapstructure:"-"`
	// Model is the default model.
	Model string `mapstructure:"model"`
	// BaseURL is the API base URL (for custom endpoints).
	BaseURL string `mapstructure:"base_url"`
}

// AssistantConfig holds per-operation model settings.
type AssistantConfig struct {
	// ChatModel serves every operation except the report.
	ChatModel string `mapstructure:"chat_model"`
	// ReportModel serves report generation.
	ReportModel string `mapstructure:"report_model"`
	// ChatTemperature is the sampling temperature for ChatModel.
	ChatTemperature float64 `mapstructure:"chat_temperature"`
	// ReportTemperature is the sampling temperature for ReportModel.
	ReportTemperature float64 `mapstructure:"report_temperature"`
}

// PaperSourcesConfig holds configuration for the paper source APIs.
type PaperSourcesConfig struct {
	// CORE contains CORE API settings.
	CORE PaperSourceConfig `mapstructure:"core"`
	// Crossref contains Crossref API settings.
	Crossref PaperSourceConfig `mapstructure:"crossref"`
}

// PaperSourceConfig holds configuration for a single paper source API.
type PaperSourceConfig struct {
	// Enabled controls whether this source is used. CORE also needs an API key.
	Enabled bool `mapstructure:"enabled"`
	// APIKey is loaded from the environment only.
	APIKey string `mapstructure:"-"`
	// Email joins the Crossref polite pool. Ignored by CORE.
	Email string `mapstructure:"email"`
	// BaseURL is the API base URL.
	BaseURL string `mapstructure:"base_url"`
	// Timeout is the timeout for API calls.
	Timeout time.Duration `mapstructure:"timeout"`
	// RateLimit is the maximum requests per second.
	RateLimit float64 `mapstructure:"rate_limit"`
	// BurstSize is the rate limiter burst.
	BurstSize int `mapstructure:"burst_size"`
	// MaxRetries is the number of retries on 429, 5xx and network errors.
	MaxRetries int `mapstructure:"max_retries"`
}

// AggregatorConfig holds paper aggregation limits.
type AggregatorConfig struct {
	PrimaryLimit       int `mapstructure:"primary_limit"`
	CrossrefRows       int `mapstructure:"crossref_rows"`
	SecondaryLimit     int `mapstructure:"secondary_limit"`
	SecondaryThreshold int `mapstructure:"secondary_threshold"`
	MaxResults         int `mapstructure:"max_results"`
}

// CacheConfig holds query cache settings.
type CacheConfig struct {
	// Enabled turns on the CORE query cache.
	Enabled bool `mapstructure:"enabled"`
	// Size is the maximum number of cached queries.
	Size int `mapstructure:"size"`
}

// HTTPAddress returns the API server address.
func (c *ServerConfig) HTTPAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.HTTPPort)
}

// MetricsAddress returns the metrics server address.
func (c *ServerConfig) MetricsAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.MetricsPort)
}

// Load loads configuration from a .env file, environment variables and
// config files.
func Load() (*Config, error) {
	// A missing .env file is fine.
	_ = godotenv.Load()

	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Read from environment variables
	v.SetEnvPrefix("RESEARCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file if present
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/research-assistant-service")

	if err := v.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK, we'll use env vars and defaults
	}

	applyLegacyEnv(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Load secrets exclusively from environment variables.
	// These fields use mapstructure:"-" to prevent loading from config files.
	loadSecrets(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// applyLegacyEnv honours the unprefixed variable names used by earlier
// deployments. Prefixed variables win.
func applyLegacyEnv(v *viper.Viper) {
	legacy := map[string]string{
		"PORT":            "server.http_port",
		"OPENAI_BASE_URL": "llm.openai.base_url",
	}
	for env, key := range legacy {
		prefixed := "RESEARCH_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if val := os.Getenv(env); val != "" && os.Getenv(prefixed) == "" {
			v.Set(key, val)
		}
	}
}

// loadSecrets populates secret fields exclusively from environment variables.
func loadSecrets(cfg *Config) {
	cfg.LLM.OpenAI.APIKey = firstEnv("RESEARCH_LLM_OPENAI_API_KEY", "OPENAI_API_KEY")
	cfg.LLM.Anthropic.APIKey = firstEnv("RESEARCH_LLM_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY")
	cfg.PaperSources.CORE.APIKey = firstEnv("RESEARCH_PAPER_SOURCES_CORE_API_KEY", "CORE_API_KEY")
}

func firstEnv(keys ...string) string {
	for _, key := range keys {
		if val := os.Getenv(key); val != "" {
			return val
		}
	}
	return ""
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.http_port", 5000)
	v.SetDefault("server.metrics_port", 9091)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "300s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.max_body_bytes", 1<<20)
	v.SetDefault("server.cors_allowed_origins", []string{"*"})

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("metrics.namespace", "research_assistant")

	// LLM defaults. API keys come from the environment (see loadSecrets).
	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.timeout", "120s")
	v.SetDefault("llm.max_retries", 2)
	v.SetDefault("llm.openai.model", "gpt-4")
	v.SetDefault("llm.openai.base_url", "https://api.electronhub.top/v1")
	v.SetDefault("llm.anthropic.model", "claude-sonnet-4-20250514")
	v.SetDefault("llm.anthropic.base_url", "https://api.anthropic.com")

	// Assistant defaults
	v.SetDefault("assistant.chat_model", "gpt-4")
	v.SetDefault("assistant.report_model", "o3-mini")
	v.SetDefault("assistant.chat_temperature", 0.7)
	v.SetDefault("assistant.report_temperature", 0.5)

	// Paper sources defaults - CORE (needs an API key)
	v.SetDefault("paper_sources.core.enabled", true)
	v.SetDefault("paper_sources.core.base_url", "https://api.core.ac.uk/v3")
	v.SetDefault("paper_sources.core.timeout", "30s")
	v.SetDefault("paper_sources.core.rate_limit", 5.0)
	v.SetDefault("paper_sources.core.burst_size", 5)
	v.SetDefault("paper_sources.core.max_retries", 2)

	// Paper sources defaults - Crossref
	v.SetDefault("paper_sources.crossref.enabled", true)
	v.SetDefault("paper_sources.crossref.email", "")
	v.SetDefault("paper_sources.crossref.base_url", "https://api.crossref.org")
	v.SetDefault("paper_sources.crossref.timeout", "30s")
	v.SetDefault("paper_sources.crossref.rate_limit", 10.0)
	v.SetDefault("paper_sources.crossref.burst_size", 10)
	v.SetDefault("paper_sources.crossref.max_retries", 2)

	// Aggregator defaults
	v.SetDefault("aggregator.primary_limit", 15)
	v.SetDefault("aggregator.crossref_rows", 10)
	v.SetDefault("aggregator.secondary_limit", 10)
	v.SetDefault("aggregator.secondary_threshold", 10)
	v.SetDefault("aggregator.max_results", 15)

	// Cache defaults
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.size", 100)
}

// maxAggregatedResults is the largest result set a search may return.
const maxAggregatedResults = 15

// Validate validates the configuration.
func (c *Config) Validate() error {
	// Validate server ports
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.Server.HTTPPort)
	}
	if c.Metrics.Enabled && (c.Server.MetricsPort <= 0 || c.Server.MetricsPort > 65535) {
		return fmt.Errorf("invalid metrics port: %d", c.Server.MetricsPort)
	}
	if c.Metrics.Enabled && c.Server.MetricsPort == c.Server.HTTPPort {
		return fmt.Errorf("metrics port %d collides with HTTP port", c.Server.MetricsPort)
	}
	if c.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("max_body_bytes must be positive")
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	// Validate aggregation limits
	if c.Aggregator.MaxResults <= 0 || c.Aggregator.MaxResults > maxAggregatedResults {
		return fmt.Errorf("aggregator max_results must be between 1 and %d", maxAggregatedResults)
	}
	if c.Aggregator.PrimaryLimit <= 0 || c.Aggregator.CrossrefRows <= 0 || c.Aggregator.SecondaryLimit <= 0 {
		return fmt.Errorf("aggregator source limits must be positive")
	}
	if c.Cache.Enabled && c.Cache.Size <= 0 {
		return fmt.Errorf("cache size must be positive when the cache is enabled")
	}

	// Validate that the configured LLM provider has its required API key set.
	switch strings.ToLower(c.LLM.Provider) {
	case "openai":
		if c.LLM.OpenAI.APIKey == "" {
			return fmt.Errorf("LLM provider %q requires RESEARCH_LLM_OPENAI_API_KEY or OPENAI_API_KEY to be set", c.LLM.Provider)
		}
	case "anthropic":
		if c.LLM.Anthropic.APIKey == "" {
			return fmt.Errorf("LLM provider %q requires RESEARCH_LLM_ANTHROPIC_API_KEY or ANTHROPIC_API_KEY to be set", c.LLM.Provider)
		}
	default:
		return fmt.Errorf("unsupported LLM provider: %q", c.LLM.Provider)
	}

	return nil
}
