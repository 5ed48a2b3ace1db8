package repository

// Schema definitions for the fraud agent database.
// Compatible with both SQLite and PostgreSQL.

const schemaRuleConfigs = `
CREATE TABLE IF NOT EXISTS rule_configs (
    id TEXT NOT NULL,
    name TEXT NOT NULL,
    description TEXT,
    version TEXT NOT NULL,
    expression TEXT NOT NULL,
    score REAL NOT NULL DEFAULT 0,
    factor TEXT NOT NULL,
    enabled INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (id, version)
);

CREATE INDEX IF NOT EXISTS idx_rule_configs_enabled ON rule_configs(enabled);
`

// risk_thresholds is a singleton row holding the active classification
// boundaries; id is always 1.
const schemaRiskThresholds = `
CREATE TABLE IF NOT EXISTS risk_thresholds (
    id INTEGER PRIMARY KEY,
    medium REAL NOT NULL,
    high REAL NOT NULL,
    critical REAL NOT NULL,
    updated_at TIMESTAMP NOT NULL
);
`

const schemaTrainingRuns = `
CREATE TABLE IF NOT EXISTS training_runs (
    id TEXT PRIMARY KEY,
    model_version TEXT NOT NULL,
    status TEXT NOT NULL,
    sample_count INTEGER NOT NULL,
    contamination REAL NOT NULL,
    started_at TIMESTAMP NOT NULL,
    completed_at TIMESTAMP,
    error TEXT
);

CREATE INDEX IF NOT EXISTS idx_training_runs_started ON training_runs(started_at);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaRuleConfigs,
		schemaRiskThresholds,
		schemaTrainingRuns,
	}
}
