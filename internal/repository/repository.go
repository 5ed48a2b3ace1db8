// Package repository persists the engine's operational configuration.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lucylow/coral-rush-sub001/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SaveRuleConfig stores a rule configuration, upserting on (id, version).
func (r *SQLRepository) SaveRuleConfig(ctx context.Context, rule *domain.RuleConfig) error {
	if rule == nil || rule.ID == "" {
		return fmt.Errorf("%w: rule id is required", ErrInvalidInput)
	}
	if rule.Expression == "" {
		return fmt.Errorf("%w: rule expression is required", ErrInvalidInput)
	}

	enabled := 0
	if rule.Enabled {
		enabled = 1
	}

	now := time.Now().UTC()

	query := `
		INSERT INTO rule_configs (
			id, name, description, version, expression, score, factor, enabled, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, version) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			expression = excluded.expression,
			score = excluded.score,
			factor = excluded.factor,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		rule.ID, rule.Name, rule.Description,
		rule.Version, rule.Expression, rule.Score, rule.Factor, enabled,
		now, now,
	)
	return err
}

// GetRuleConfig retrieves the latest version of a rule configuration.
func (r *SQLRepository) GetRuleConfig(ctx context.Context, ruleID string) (*domain.RuleConfig, error) {
	if ruleID == "" {
		return nil, fmt.Errorf("%w: rule id is required", ErrInvalidInput)
	}

	query := `
		SELECT id, name, description, version, expression, score, factor, enabled
		FROM rule_configs
		WHERE id = ?
		ORDER BY version DESC
		LIMIT 1
	`

	var cfg domain.RuleConfig
	var enabled int

	err := r.db.QueryRowContext(ctx, r.rebind(query), ruleID).Scan(
		&cfg.ID, &cfg.Name, &cfg.Description,
		&cfg.Version, &cfg.Expression, &cfg.Score, &cfg.Factor, &enabled,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	cfg.Enabled = enabled == 1

	return &cfg, nil
}

// ListRuleConfigs retrieves all enabled rule configurations.
func (r *SQLRepository) ListRuleConfigs(ctx context.Context) ([]*domain.RuleConfig, error) {
	query := `
		SELECT id, name, description, version, expression, score, factor, enabled
		FROM rule_configs
		WHERE enabled = 1
		ORDER BY name
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var configs []*domain.RuleConfig
	for rows.Next() {
		var cfg domain.RuleConfig
		var enabled int

		if err := rows.Scan(
			&cfg.ID, &cfg.Name, &cfg.Description,
			&cfg.Version, &cfg.Expression, &cfg.Score, &cfg.Factor, &enabled,
		); err != nil {
			return nil, err
		}

		cfg.Enabled = enabled == 1
		configs = append(configs, &cfg)
	}

	return configs, rows.Err()
}

// SaveThresholds stores the active risk thresholds as the singleton row.
func (r *SQLRepository) SaveThresholds(ctx context.Context, thresholds domain.RiskThresholds) error {
	if err := thresholds.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	query := `
		INSERT INTO risk_thresholds (id, medium, high, critical, updated_at)
		VALUES (1, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			medium = excluded.medium,
			high = excluded.high,
			critical = excluded.critical,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		thresholds.Medium, thresholds.High, thresholds.Critical, time.Now().UTC(),
	)
	return err
}

// GetThresholds retrieves the persisted risk thresholds.
// Returns ErrNotFound when no override has ever been saved.
func (r *SQLRepository) GetThresholds(ctx context.Context) (domain.RiskThresholds, error) {
	query := `SELECT medium, high, critical FROM risk_thresholds WHERE id = 1`

	var thresholds domain.RiskThresholds
	err := r.db.QueryRowContext(ctx, r.rebind(query)).Scan(
		&thresholds.Medium, &thresholds.High, &thresholds.Critical,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return domain.RiskThresholds{}, ErrNotFound
	}
	if err != nil {
		return domain.RiskThresholds{}, err
	}

	return thresholds, nil
}

// SaveTrainingRun stores or updates a training-run record.
func (r *SQLRepository) SaveTrainingRun(ctx context.Context, run *domain.TrainingRun) error {
	if run == nil || run.ID == "" {
		return fmt.Errorf("%w: run id is required", ErrInvalidInput)
	}

	query := `
		INSERT INTO training_runs (
			id, model_version, status, sample_count, contamination, started_at, completed_at, error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			model_version = excluded.model_version,
			status = excluded.status,
			completed_at = excluded.completed_at,
			error = excluded.error
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		run.ID, run.ModelVersion, run.Status, run.SampleCount,
		run.Contamination, run.StartedAt, run.CompletedAt, run.Error,
	)
	return err
}

// GetTrainingRun retrieves a training run by ID.
func (r *SQLRepository) GetTrainingRun(ctx context.Context, runID string) (*domain.TrainingRun, error) {
	if runID == "" {
		return nil, fmt.Errorf("%w: run id is required", ErrInvalidInput)
	}

	query := `
		SELECT id, model_version, status, sample_count, contamination, started_at, completed_at, error
		FROM training_runs
		WHERE id = ?
	`

	var run domain.TrainingRun
	err := r.db.QueryRowContext(ctx, r.rebind(query), runID).Scan(
		&run.ID, &run.ModelVersion, &run.Status, &run.SampleCount,
		&run.Contamination, &run.StartedAt, &run.CompletedAt, &run.Error,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return &run, nil
}

// ListTrainingRuns retrieves the most recent training runs, newest first.
func (r *SQLRepository) ListTrainingRuns(ctx context.Context, limit int) ([]*domain.TrainingRun, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, model_version, status, sample_count, contamination, started_at, completed_at, error
		FROM training_runs
		ORDER BY started_at DESC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*domain.TrainingRun
	for rows.Next() {
		var run domain.TrainingRun
		if err := rows.Scan(
			&run.ID, &run.ModelVersion, &run.Status, &run.SampleCount,
			&run.Contamination, &run.StartedAt, &run.CompletedAt, &run.Error,
		); err != nil {
			return nil, err
		}
		runs = append(runs, &run)
	}

	return runs, rows.Err()
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	// Convert ? to $1, $2, etc.
	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
