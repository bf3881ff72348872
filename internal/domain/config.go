package domain

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the complete tern configuration.
type Config struct {
	// Server settings
	Server ServerConfig `yaml:"server"`

	// Tier determines which backing services are used
	Tier Tier `yaml:"tier"`

	// Engine selects the condition/action evaluator:
	// - "local": in-process tree evaluation (no network hop)
	// - "remote": delegate to an external rule-engine service
	Engine EngineConfig `yaml:"engine"`

	// Component configurations
	Repository RepositoryConfig `yaml:"repository"`
	Cache      CacheConfig      `yaml:"cache"`
	EventBus   EventBusConfig   `yaml:"eventBus"`

	// Evaluation behavior
	Evaluation EvaluationConfig `yaml:"evaluation"`

	// Observability
	Logging LoggingConfig `yaml:"logging"`
	Tracing TracingConfig `yaml:"tracing"`
}

// EngineConfig selects and configures the rule evaluator backend.
type EngineConfig struct {
	Mode string `yaml:"mode"` // "local" or "remote"

	// Remote engine settings
	URL            string `yaml:"url"`
	TimeoutSeconds int    `yaml:"timeoutSeconds"`
}

// EvaluationConfig tunes the cart evaluation orchestrator.
type EvaluationConfig struct {
	// TimeoutSeconds bounds one whole cart evaluation, including the
	// rule-store fetch and any remote engine calls.
	TimeoutSeconds int `yaml:"timeoutSeconds"`

	// DailyApplicationAlert is the per-rule applications-per-day count
	// above which the worker logs a promotion-abuse warning. Zero
	// disables the check.
	DailyApplicationAlert int64 `yaml:"dailyApplicationAlert"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	ReadTimeout  int    `yaml:"readTimeout"`  // seconds
	WriteTimeout int    `yaml:"writeTimeout"` // seconds
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"serviceName"`
	Endpoint    string `yaml:"endpoint"`
}

// Tier represents the product tier.
type Tier string

const (
	// TierCommunity is the free tier with SQLite + channels
	TierCommunity Tier = "community"

	// TierPro is the paid tier with PostgreSQL + NATS + Redis
	TierPro Tier = "pro"
)

// DefaultConfig returns a default configuration for Community tier.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		Tier: TierCommunity,
		Engine: EngineConfig{
			Mode:           "local",
			TimeoutSeconds: 10,
		},
		Repository: RepositoryConfig{
			Driver:     "sqlite",
			SQLitePath: "./tern.db",
		},
		Cache: CacheConfig{
			Type:         "memory",
			LocalMaxSize: 10000,
			LocalTTL:     5 * time.Minute,
			RuleTTL:      30 * time.Second,
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		Evaluation: EvaluationConfig{
			TimeoutSeconds:        15,
			DailyApplicationAlert: 10000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "tern",
		},
	}
}

// ProConfig returns a configuration for Pro tier.
func ProConfig() *Config {
	cfg := DefaultConfig()
	cfg.Tier = TierPro
	cfg.Repository = RepositoryConfig{
		Driver:       "postgres",
		PostgresHost: "localhost",
		PostgresPort: 5432,
		PostgresDB:   "tern",
	}
	cfg.Cache = CacheConfig{
		Type:           "redis",
		RedisAddr:      "localhost:6379",
		EnableTwoPhase: true,
		LocalMaxSize:   1000,
		LocalTTL:       5 * time.Minute,
		RuleTTL:        30 * time.Second,
	}
	cfg.EventBus = EventBusConfig{
		Type:              "nats",
		NATSUrl:           "nats://localhost:4222",
		NATSMaxReconnects: 10,
		NATSReconnectWait: 5,
	}
	cfg.Tracing.Enabled = true
	return cfg
}

// LoadConfig reads a YAML config file over the given base config.
// Fields absent from the file keep their base values.
func LoadConfig(path string, base *Config) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := *base
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return &cfg, nil
}
