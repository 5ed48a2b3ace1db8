package domain

import "time"

// Config holds the complete service configuration.
type Config struct {
	// Server settings
	Server ServerConfig `json:"server"`

	// Component configurations
	Repository RepositoryConfig `json:"repository"`
	Cache      CacheConfig      `json:"cache"`
	EventBus   EventBusConfig   `json:"eventBus"`

	// Scoring configuration
	Model  ModelConfig  `json:"model"`
	Fusion FusionConfig `json:"fusion"`

	// Observability
	Logging LoggingConfig `json:"logging"`
	Tracing TracingConfig `json:"tracing"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	ReadTimeout  int    `json:"readTimeout"`  // seconds
	WriteTimeout int    `json:"writeTimeout"` // seconds
}

// ModelConfig holds anomaly-model training settings.
type ModelConfig struct {
	// Seed drives the synthetic bootstrap generator and the forest's
	// subsampling, making training reproducible.
	Seed int64 `json:"seed"`

	// Estimators is the number of isolation trees.
	Estimators int `json:"estimators"`

	// SubsampleSize is the per-tree sample size (0 = min(256, n)).
	SubsampleSize int `json:"subsampleSize"`

	// Contamination is the assumed fraction of anomalous samples in the
	// training population.
	Contamination float64 `json:"contamination"`

	// Bootstrap population sizes.
	NormalSamples int `json:"normalSamples"`
	FraudSamples  int `json:"fraudSamples"`

	// RetrainInterval schedules periodic retraining (0 = disabled).
	RetrainInterval time.Duration `json:"retrainInterval"`
}

// FusionConfig holds the score fusion weights. Rules are weighted higher
// than the model for auditability.
type FusionConfig struct {
	RuleWeight  float64 `json:"ruleWeight"`
	ModelWeight float64 `json:"modelWeight"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled     bool   `json:"enabled"`
	ServiceName string `json:"serviceName"`
	Endpoint    string `json:"endpoint"`
}

// DefaultConfig returns the single-process default configuration:
// SQLite repository, in-memory cache, channel event bus.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8090,
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		Repository: RepositoryConfig{
			Driver:     "sqlite",
			SQLitePath: "./fraudagent.db",
		},
		Cache: CacheConfig{
			Type:         "memory",
			LocalMaxSize: 10000,
			LocalTTL:     5 * time.Minute,
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		Model:  DefaultModelConfig(),
		Fusion: DefaultFusionConfig(),
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "fraud-agent",
		},
	}
}

// DistributedConfig returns the multi-node configuration:
// PostgreSQL repository, two-phase Redis cache, NATS event bus.
func DistributedConfig() *Config {
	cfg := DefaultConfig()
	cfg.Repository = RepositoryConfig{
		Driver:       "postgres",
		PostgresHost: "localhost",
		PostgresPort: 5432,
		PostgresDB:   "fraudagent",
	}
	cfg.Cache = CacheConfig{
		Type:           "redis",
		RedisAddr:      "localhost:6379",
		EnableTwoPhase: true,
		LocalMaxSize:   1000,
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

// DefaultModelConfig returns the standard training setup: 1000 normal and
// 100 fraudulent bootstrap samples, 100 trees, 10% contamination, seed 42.
func DefaultModelConfig() ModelConfig {
	return ModelConfig{
		Seed:          42,
		Estimators:    100,
		Contamination: 0.1,
		NormalSamples: 1000,
		FraudSamples:  100,
	}
}

// DefaultFusionConfig returns the documented 0.6 / 0.4 fusion weights.
func DefaultFusionConfig() FusionConfig {
	return FusionConfig{RuleWeight: 0.6, ModelWeight: 0.4}
}
