// Package engine orchestrates feature extraction, rule scoring, anomaly
// inference, score fusion, and risk classification into fraud analyses.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/lucylow/coral-rush-sub001/internal/anomaly"
	"github.com/lucylow/coral-rush-sub001/internal/domain"
	"github.com/lucylow/coral-rush-sub001/internal/features"
	"github.com/lucylow/coral-rush-sub001/internal/rules"
)

// Agent identity surfaced through metrics.
const (
	AgentID      = "coral-fraud-detection-agent-v1"
	AgentName    = "AI Fraud Detection Agent"
	AgentVersion = "1.0.0"
)

// Capabilities advertised to the surrounding agent mesh.
var Capabilities = []string{
	"real-time-fraud-detection",
	"risk-assessment",
	"pattern-analysis",
	"behavioral-analysis",
	"ml-model-inference",
	"rule-based-filtering",
}

// Engine is the fraud evaluation facade. Rule scoring and ML inference run
// independently per call and join before fusion; the only mutable state is
// the threshold set, guarded by its own lock.
type Engine struct {
	rules  *rules.Engine
	model  *anomaly.Model
	repo   domain.Repository // optional threshold persistence
	fusion domain.FusionConfig
	logger *slog.Logger
	tracer trace.Tracer

	mu         sync.RWMutex
	thresholds domain.RiskThresholds

	evaluations atomic.Int64
	failures    atomic.Int64
}

// New creates the facade. The repository is optional; without it threshold
// updates apply in memory only.
func New(ruleEngine *rules.Engine, model *anomaly.Model, repo domain.Repository, fusion domain.FusionConfig, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if fusion.RuleWeight == 0 && fusion.ModelWeight == 0 {
		fusion = domain.DefaultFusionConfig()
	}
	return &Engine{
		rules:      ruleEngine,
		model:      model,
		repo:       repo,
		fusion:     fusion,
		logger:     logger,
		tracer:     otel.Tracer("fraud-engine"),
		thresholds: domain.DefaultThresholds(),
	}
}

// RestoreThresholds loads a previously persisted threshold override, if any.
// Call once at startup before serving traffic.
func (e *Engine) RestoreThresholds(ctx context.Context) error {
	if e.repo == nil {
		return nil
	}
	saved, err := e.repo.GetThresholds(ctx)
	if err != nil {
		return err
	}
	if err := saved.Validate(); err != nil {
		return err
	}
	e.mu.Lock()
	e.thresholds = saved
	e.mu.Unlock()
	return nil
}

// Evaluate scores one transaction. Invalid input is the only error surfaced
// to the caller; every internal failure is absorbed into the fail-safe
// medium-risk analysis.
func (e *Engine) Evaluate(ctx context.Context, tx *domain.TransactionData) (*domain.FraudAnalysis, error) {
	ctx, span := e.tracer.Start(ctx, "engine.evaluate")
	defer span.End()

	if err := tx.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	analysis := e.analyze(ctx, tx, start)
	e.evaluations.Add(1)

	span.SetAttributes(
		attribute.Float64("fraud.score", analysis.FraudScore),
		attribute.String("fraud.risk_level", string(analysis.RiskLevel)),
		attribute.String("fraud.recommendation", string(analysis.Recommendation)),
	)

	e.logger.Info("fraud analysis completed",
		"analysis_id", analysis.ID,
		"score", analysis.FraudScore,
		"risk_level", analysis.RiskLevel,
		"recommendation", analysis.Recommendation,
		"processing_ms", analysis.ProcessingTimeMs)

	return analysis, nil
}

// analyze performs the scoring pipeline; any panic or extraction failure
// collapses into the fail-safe analysis.
func (e *Engine) analyze(ctx context.Context, tx *domain.TransactionData, start time.Time) (analysis *domain.FraudAnalysis) {
	defer func() {
		if r := recover(); r != nil {
			e.failures.Add(1)
			e.logger.Error("fraud analysis panicked", "panic", fmt.Sprint(r))
			analysis = e.failSafe(start)
		}
	}()

	vec, err := features.Extract(tx)
	if err != nil {
		e.failures.Add(1)
		e.logger.Warn("feature extraction failed", "error", err)
		return e.failSafe(start)
	}

	// Rule scoring and ML inference are independent; run them in parallel
	// and join before fusion.
	var (
		ruleScore   float64
		ruleFactors []string
		ruleResults []domain.RuleResult
		inference   anomaly.Inference
		wg          sync.WaitGroup
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		ruleScore, ruleFactors, ruleResults = e.rules.Score(ctx, tx, vec)
	}()
	go func() {
		defer wg.Done()
		inference = e.model.Infer(vec)
	}()
	wg.Wait()

	combined := e.fusion.RuleWeight*ruleScore + e.fusion.ModelWeight*inference.Score

	thresholds := e.Thresholds()
	level := thresholds.Classify(combined)

	modelVersion := e.model.Version()
	if modelVersion == "" {
		modelVersion = AgentVersion
	}

	return &domain.FraudAnalysis{
		ID:               uuid.New().String(),
		FraudScore:       combined,
		RiskLevel:        level,
		RiskFactors:      ruleFactors,
		Recommendation:   domain.RecommendationFor(level),
		Confidence:       inference.Confidence,
		ProcessingTimeMs: time.Since(start).Milliseconds(),
		ModelVersion:     modelVersion,
		Timestamp:        time.Now().UTC(),
		DetailedAnalysis: &domain.DetailedAnalysis{
			RuleScore:     ruleScore,
			MLScore:       inference.Score,
			RuleFactors:   ruleFactors,
			MLConfidence:  inference.Confidence,
			CombinedScore: combined,
			ModelState:    e.model.State(),
			RuleResults:   ruleResults,
		},
	}
}

// failSafe is the medium-risk default returned when analysis itself breaks:
// fail open to manual review, never silently approve or reject.
func (e *Engine) failSafe(start time.Time) *domain.FraudAnalysis {
	modelVersion := e.model.Version()
	if modelVersion == "" {
		modelVersion = AgentVersion
	}
	return &domain.FraudAnalysis{
		ID:               uuid.New().String(),
		FraudScore:       5.0,
		RiskLevel:        domain.RiskMedium,
		RiskFactors:      []string{domain.FactorAnalysisError},
		Recommendation:   domain.RecommendManualReview,
		Confidence:       0.5,
		ProcessingTimeMs: time.Since(start).Milliseconds(),
		ModelVersion:     modelVersion,
		Timestamp:        time.Now().UTC(),
	}
}

// Thresholds returns the active classification thresholds.
func (e *Engine) Thresholds() domain.RiskThresholds {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.thresholds
}

// UpdateThresholds applies a partial threshold override. The merged set must
// be strictly increasing or the update is rejected and the previous
// configuration retained. Accepted updates are persisted when a repository
// is configured.
func (e *Engine) UpdateThresholds(ctx context.Context, partial map[string]float64) (domain.RiskThresholds, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	merged, err := e.thresholds.Merge(partial)
	if err != nil {
		return e.thresholds, err
	}

	if e.repo != nil {
		if err := e.repo.SaveThresholds(ctx, merged); err != nil {
			return e.thresholds, fmt.Errorf("persist thresholds: %w", err)
		}
	}

	e.thresholds = merged
	e.logger.Info("risk thresholds updated",
		"medium", merged.Medium, "high", merged.High, "critical", merged.Critical)
	return merged, nil
}

// Metrics is the read-only status snapshot for observability tooling.
type Metrics struct {
	AgentID        string                `json:"agent_id"`
	AgentName      string                `json:"agent_name"`
	Version        string                `json:"version"`
	ModelTrained   bool                  `json:"model_trained"`
	ModelState     string                `json:"model_state"`
	ModelVersion   string                `json:"model_version"`
	Capabilities   []string              `json:"capabilities"`
	RiskThresholds domain.RiskThresholds `json:"risk_thresholds"`
	RulesLoaded    int                   `json:"rules_loaded"`
	Evaluations    int64                 `json:"evaluations"`
	Failures       int64                 `json:"failures"`
	LastUpdated    time.Time             `json:"last_updated"`
}

// Metrics returns the agent status snapshot.
func (e *Engine) Metrics() Metrics {
	return Metrics{
		AgentID:        AgentID,
		AgentName:      AgentName,
		Version:        AgentVersion,
		ModelTrained:   e.model.Ready(),
		ModelState:     e.model.State(),
		ModelVersion:   e.model.Version(),
		Capabilities:   Capabilities,
		RiskThresholds: e.Thresholds(),
		RulesLoaded:    e.rules.RulesCount(),
		Evaluations:    e.evaluations.Load(),
		Failures:       e.failures.Load(),
		LastUpdated:    time.Now().UTC(),
	}
}
