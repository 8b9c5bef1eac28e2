package domain

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the complete Kite configuration.
type Config struct {
	// Server settings
	Server ServerConfig `json:"server" yaml:"server"`

	// Rules is the path to the policy rules JSON file loaded at startup.
	RulesPath string `json:"rulesPath" yaml:"rules_path"`

	// Component configurations
	Repository RepositoryConfig `json:"repository" yaml:"repository"`
	Cache      CacheConfig      `json:"cache" yaml:"cache"`
	EventBus   EventBusConfig   `json:"eventBus" yaml:"event_bus"`
	Fraud      FraudConfig      `json:"fraud" yaml:"fraud"`
	ML         MLConfig         `json:"ml" yaml:"ml"`
	Mailer     MailerConfig     `json:"mailer" yaml:"mailer"`
	RateLimit  RateLimitConfig  `json:"rateLimit" yaml:"rate_limit"`

	// Observability
	Logging LoggingConfig `json:"logging" yaml:"logging"`
	Tracing TracingConfig `json:"tracing" yaml:"tracing"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `json:"host" yaml:"host"`
	Port         int    `json:"port" yaml:"port"`
	ReadTimeout  int    `json:"readTimeout" yaml:"read_timeout"`   // seconds
	WriteTimeout int    `json:"writeTimeout" yaml:"write_timeout"` // seconds
}

// MLConfig holds settings for the fallback classifier.
type MLConfig struct {
	// ModelDir points at a bundle directory containing model.onnx and
	// label_map.json. Empty or missing dir means no classifier; the
	// pipeline degrades to the default decision.
	ModelDir string `json:"modelDir" yaml:"model_dir"`

	// LibraryPath overrides the ONNX runtime shared library location.
	LibraryPath string `json:"libraryPath" yaml:"library_path"`
}

// MailerConfig holds SMTP settings for decision notification emails.
// Disabled (Host empty) is a normal state.
type MailerConfig struct {
	Host     string `json:"host" yaml:"host"`
	Port     int    `json:"port" yaml:"port"`
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`
	From     string `json:"from" yaml:"from"`
}

// RateLimitConfig caps classification requests per client window.
type RateLimitConfig struct {
	MaxRequests int `json:"maxRequests" yaml:"max_requests"`
	WindowSecs  int `json:"windowSecs" yaml:"window_secs"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level"`   // debug, info, warn, error
	Format string `json:"format" yaml:"format"` // json, text
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled      bool   `json:"enabled" yaml:"enabled"`
	ServiceName  string `json:"serviceName" yaml:"service_name"`
	ExporterType string `json:"exporterType" yaml:"exporter_type"` // stdout, otlp, jaeger
	Endpoint     string `json:"endpoint" yaml:"endpoint"`
}

// DefaultConfig returns a single-node default configuration:
// SQLite storage, in-memory cache, channel bus.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		RulesPath: "./policies/rules.json",
		Repository: RepositoryConfig{
			Driver:     "sqlite",
			SQLitePath: "./kite.db",
		},
		Cache: CacheConfig{
			Type:         "memory",
			LocalMaxSize: 10000,
			LocalTTL:     300, // 5 minutes
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		Fraud: DefaultFraudConfig(),
		RateLimit: RateLimitConfig{
			MaxRequests: 60,
			WindowSecs:  60,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "kite",
		},
	}
}

// LoadConfig reads a YAML config file over the defaults. A missing path
// returns plain defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}
