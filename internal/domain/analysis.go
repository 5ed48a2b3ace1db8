package domain

import (
	"time"
)

// RiskLevel classifies a combined fraud score.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// Recommendation is the action derived from a risk level.
type Recommendation string

const (
	RecommendApprove      Recommendation = "approve"
	RecommendMonitor      Recommendation = "approve_with_monitoring"
	RecommendManualReview Recommendation = "manual_review"
	RecommendReject       Recommendation = "reject"
)

// RecommendationFor maps a risk level to its action.
// critical -> reject, high -> manual_review, medium -> approve_with_monitoring,
// low -> approve.
func RecommendationFor(level RiskLevel) Recommendation {
	switch level {
	case RiskCritical:
		return RecommendReject
	case RiskHigh:
		return RecommendManualReview
	case RiskMedium:
		return RecommendMonitor
	default:
		return RecommendApprove
	}
}

// FraudAnalysis is the result of one evaluation. It is produced once per
// call and owned by the caller; the engine never retains it.
type FraudAnalysis struct {
	ID               string         `json:"id"`
	FraudScore       float64        `json:"fraud_score"` // 0-10
	RiskLevel        RiskLevel      `json:"risk_level"`
	RiskFactors      []string       `json:"risk_factors"`
	Recommendation   Recommendation `json:"recommendation"`
	Confidence       float64        `json:"confidence"` // 0-1
	ProcessingTimeMs int64          `json:"processing_time_ms"`
	ModelVersion     string         `json:"model_version"`
	Timestamp        time.Time      `json:"timestamp"`

	DetailedAnalysis *DetailedAnalysis `json:"detailed_analysis,omitempty"`
}

// DetailedAnalysis breaks the combined score into its components.
type DetailedAnalysis struct {
	RuleScore     float64  `json:"rule_based_score"`
	MLScore       float64  `json:"ml_based_score"`
	RuleFactors   []string `json:"rule_factors"`
	MLConfidence  float64  `json:"ml_confidence"`
	CombinedScore float64  `json:"combined_score"`
	ModelState    string   `json:"model_state"`

	RuleResults []RuleResult `json:"rule_results,omitempty"`
}

// FactorAnalysisError tags the fail-safe analysis produced when scoring
// fails internally.
const FactorAnalysisError = "analysis_error"
