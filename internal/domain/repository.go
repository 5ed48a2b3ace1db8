package domain

import (
	"context"
	"time"
)

// Repository persists the engine's operational configuration: rule
// definitions, the active risk thresholds, and the training-run registry.
// Transactions and analyses are deliberately not persisted.
type Repository interface {
	// Rule configuration operations
	SaveRuleConfig(ctx context.Context, rule *RuleConfig) error
	GetRuleConfig(ctx context.Context, ruleID string) (*RuleConfig, error)
	ListRuleConfigs(ctx context.Context) ([]*RuleConfig, error)

	// Threshold configuration. GetThresholds returns ErrNotFound from the
	// repository package when no override has ever been saved.
	SaveThresholds(ctx context.Context, thresholds RiskThresholds) error
	GetThresholds(ctx context.Context) (RiskThresholds, error)

	// Training-run registry (the single swappable model artifact's metadata)
	SaveTrainingRun(ctx context.Context, run *TrainingRun) error
	GetTrainingRun(ctx context.Context, runID string) (*TrainingRun, error)
	ListTrainingRuns(ctx context.Context, limit int) ([]*TrainingRun, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// Training run states.
const (
	TrainingRunRunning   = "running"
	TrainingRunCompleted = "completed"
	TrainingRunFailed    = "failed"
)

// TrainingRun records one bootstrap or retrain of the anomaly model.
type TrainingRun struct {
	ID            string     `json:"id"`
	ModelVersion  string     `json:"modelVersion"`
	Status        string     `json:"status"`
	SampleCount   int        `json:"sampleCount"`
	Contamination float64    `json:"contamination"`
	StartedAt     time.Time  `json:"startedAt"`
	CompletedAt   *time.Time `json:"completedAt,omitempty"`
	Error         string     `json:"error,omitempty"`
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
