package engine

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/lucylow/coral-rush-sub001/internal/anomaly"
	"github.com/lucylow/coral-rush-sub001/internal/domain"
	"github.com/lucylow/coral-rush-sub001/internal/rules"
)

func newTestEngine(t *testing.T, model *anomaly.Model) *Engine {
	t.Helper()
	ruleEngine, err := rules.NewEngine(5)
	if err != nil {
		t.Fatalf("failed to create rule engine: %v", err)
	}
	t.Cleanup(func() { ruleEngine.Close() })
	if err := ruleEngine.LoadRules(rules.BuiltinRules()); err != nil {
		t.Fatalf("failed to load builtin rules: %v", err)
	}
	if model == nil {
		model = anomaly.NewModel()
	}
	return New(ruleEngine, model, nil, domain.DefaultFusionConfig(), nil)
}

func trainedModel(t *testing.T) *anomaly.Model {
	t.Helper()
	cfg := domain.DefaultModelConfig()
	cfg.NormalSamples = 300
	cfg.FraudSamples = 30
	cfg.Estimators = 50
	model := anomaly.NewModel()
	if err := anomaly.NewTrainer(model, nil, nil, cfg, nil).Train(context.Background()); err != nil {
		t.Fatalf("training failed: %v", err)
	}
	return model
}

func TestEvaluateRejectsInvalidTransaction(t *testing.T) {
	e := newTestEngine(t, nil)

	cases := []*domain.TransactionData{
		{Amount: 0, CurrencyFrom: "USD", CurrencyTo: "EUR"},
		{Amount: -5, CurrencyFrom: "USD", CurrencyTo: "EUR"},
		{Amount: 100, CurrencyFrom: "", CurrencyTo: "EUR"},
		{Amount: 100, CurrencyFrom: "USD", CurrencyTo: ""},
	}

	for i, tx := range cases {
		_, err := e.Evaluate(context.Background(), tx)
		if err == nil {
			t.Errorf("case %d: expected validation error", i)
			continue
		}
		if !errors.Is(err, domain.ErrInvalidTransaction) {
			t.Errorf("case %d: expected ErrInvalidTransaction, got %v", i, err)
		}
	}
}

func TestEvaluateHighRiskTransaction(t *testing.T) {
	e := newTestEngine(t, nil)

	tx := &domain.TransactionData{
		Amount:       150000,
		CurrencyFrom: "USD",
		CurrencyTo:   "PHP",
		Recipient:    "Philippines",
		Purpose:      "urgent family emergency",
		UserID:       "new_user_1",
		Timestamp:    "2026-03-14T13:00:00Z",
	}

	analysis, err := e.Evaluate(context.Background(), tx)
	if err != nil {
		t.Fatalf("evaluation failed: %v", err)
	}

	// Rule score 8.0; untrained model contributes the neutral 5.0:
	// 0.6*8.0 + 0.4*5.0 = 6.8
	if math.Abs(analysis.FraudScore-6.8) > 1e-9 {
		t.Errorf("expected fraud score 6.8, got %.4f", analysis.FraudScore)
	}
	if analysis.RiskLevel != domain.RiskHigh && analysis.RiskLevel != domain.RiskCritical {
		t.Errorf("expected high or critical risk, got %s", analysis.RiskLevel)
	}
	if analysis.Recommendation != domain.RecommendManualReview && analysis.Recommendation != domain.RecommendReject {
		t.Errorf("expected manual_review or reject, got %s", analysis.Recommendation)
	}
	if analysis.DetailedAnalysis == nil {
		t.Fatal("expected detailed analysis")
	}
	if analysis.DetailedAnalysis.RuleScore != 8.0 {
		t.Errorf("expected rule score 8.0, got %.2f", analysis.DetailedAnalysis.RuleScore)
	}
}

func TestEvaluateBenignTransaction(t *testing.T) {
	e := newTestEngine(t, nil)

	tx := &domain.TransactionData{
		Amount:       50,
		CurrencyFrom: "USD",
		CurrencyTo:   "USD",
		Recipient:    "corner deli",
		Purpose:      "lunch",
		UserID:       "regular-user",
		Timestamp:    "2026-03-14T13:00:00Z",
	}

	analysis, err := e.Evaluate(context.Background(), tx)
	if err != nil {
		t.Fatalf("evaluation failed: %v", err)
	}

	// Rule score 0; neutral model: 0.6*0 + 0.4*5.0 = 2.0 -> low
	if analysis.RiskLevel != domain.RiskLow {
		t.Errorf("expected low risk, got %s", analysis.RiskLevel)
	}
	if analysis.Recommendation != domain.RecommendApprove {
		t.Errorf("expected approve, got %s", analysis.Recommendation)
	}
	if len(analysis.RiskFactors) != 0 {
		t.Errorf("expected no risk factors, got %v", analysis.RiskFactors)
	}
}

func TestEvaluateWithoutModelUsesNeutralDefault(t *testing.T) {
	e := newTestEngine(t, nil)

	tx := &domain.TransactionData{
		Amount:       25000,
		CurrencyFrom: "USD",
		CurrencyTo:   "EUR",
		Purpose:      "equipment purchase",
		Timestamp:    "2026-03-14T13:00:00Z",
	}

	analysis, err := e.Evaluate(context.Background(), tx)
	if err != nil {
		t.Fatalf("evaluation failed: %v", err)
	}

	detail := analysis.DetailedAnalysis
	if detail.MLScore != anomaly.NeutralScore {
		t.Errorf("expected neutral ML score, got %.2f", detail.MLScore)
	}
	if detail.MLConfidence != anomaly.NeutralConfidence {
		t.Errorf("expected neutral confidence, got %.2f", detail.MLConfidence)
	}
	if detail.ModelState != anomaly.StateUninitialized {
		t.Errorf("expected uninitialized model state, got %s", detail.ModelState)
	}

	want := 0.6*detail.RuleScore + 0.4*anomaly.NeutralScore
	if math.Abs(analysis.FraudScore-want) > 1e-9 {
		t.Errorf("expected combined score %.4f, got %.4f", want, analysis.FraudScore)
	}
}

func TestEvaluateMalformedTimestampFailsSafe(t *testing.T) {
	e := newTestEngine(t, nil)

	tx := &domain.TransactionData{
		Amount:       100,
		CurrencyFrom: "USD",
		CurrencyTo:   "EUR",
		Timestamp:    "yesterday at noon",
	}

	analysis, err := e.Evaluate(context.Background(), tx)
	if err != nil {
		t.Fatalf("fail-safe path must not surface an error, got %v", err)
	}

	if analysis.RiskLevel != domain.RiskMedium {
		t.Errorf("expected medium risk, got %s", analysis.RiskLevel)
	}
	if analysis.FraudScore != 5.0 || analysis.Confidence != 0.5 {
		t.Errorf("expected fail-safe 5.0/0.5, got %.2f/%.2f", analysis.FraudScore, analysis.Confidence)
	}
	if analysis.Recommendation != domain.RecommendManualReview {
		t.Errorf("expected manual_review, got %s", analysis.Recommendation)
	}
	found := false
	for _, f := range analysis.RiskFactors {
		if f == domain.FactorAnalysisError {
			found = true
		}
	}
	if !found {
		t.Errorf("expected analysis_error factor, got %v", analysis.RiskFactors)
	}
}

func TestEvaluateWithTrainedModel(t *testing.T) {
	e := newTestEngine(t, trainedModel(t))

	transactions := []*domain.TransactionData{
		{Amount: 50, CurrencyFrom: "USD", CurrencyTo: "USD", Purpose: "lunch", Timestamp: "2026-03-14T13:00:00Z"},
		{Amount: 75000, CurrencyFrom: "USD", CurrencyTo: "INR", Purpose: "urgent", UserID: "new_user_7", Timestamp: "2026-03-14T02:00:00Z"},
		{Amount: 3000, CurrencyFrom: "USD", CurrencyTo: "GBP", Purpose: "education", Timestamp: "2026-03-14T10:00:00Z"},
	}

	for i, tx := range transactions {
		analysis, err := e.Evaluate(context.Background(), tx)
		if err != nil {
			t.Fatalf("tx %d: evaluation failed: %v", i, err)
		}
		if analysis.FraudScore < 0 || analysis.FraudScore > 10 {
			t.Errorf("tx %d: fraud score out of range: %.4f", i, analysis.FraudScore)
		}
		if analysis.Confidence < 0 || analysis.Confidence > 1 {
			t.Errorf("tx %d: confidence out of range: %.4f", i, analysis.Confidence)
		}
		if analysis.DetailedAnalysis.ModelState != anomaly.StateReady {
			t.Errorf("tx %d: expected ready model state, got %s", i, analysis.DetailedAnalysis.ModelState)
		}
	}
}

func TestEvaluateDeterminism(t *testing.T) {
	e := newTestEngine(t, trainedModel(t))

	tx := &domain.TransactionData{
		Amount:       12000,
		CurrencyFrom: "USD",
		CurrencyTo:   "BRL",
		Purpose:      "emergency transfer",
		UserID:       "user_55",
		Timestamp:    "2026-03-14T23:30:00Z",
	}

	first, err := e.Evaluate(context.Background(), tx)
	if err != nil {
		t.Fatalf("evaluation failed: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := e.Evaluate(context.Background(), tx)
		if err != nil {
			t.Fatalf("evaluation failed: %v", err)
		}
		if again.FraudScore != first.FraudScore || again.RiskLevel != first.RiskLevel {
			t.Fatalf("evaluation not deterministic: %.6f/%s vs %.6f/%s",
				again.FraudScore, again.RiskLevel, first.FraudScore, first.RiskLevel)
		}
	}
}

func TestUpdateThresholds(t *testing.T) {
	e := newTestEngine(t, nil)
	ctx := context.Background()

	updated, err := e.UpdateThresholds(ctx, map[string]float64{"high": 5.0})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated.High != 5.0 || updated.Medium != 3.0 || updated.Critical != 8.0 {
		t.Errorf("unexpected thresholds: %+v", updated)
	}

	// 6.8 now classifies as high under the default but the same under 5.0
	tx := &domain.TransactionData{
		Amount:       150000,
		CurrencyFrom: "USD",
		CurrencyTo:   "PHP",
		Purpose:      "urgent family emergency",
		UserID:       "new_user_1",
		Timestamp:    "2026-03-14T13:00:00Z",
	}
	analysis, err := e.Evaluate(ctx, tx)
	if err != nil {
		t.Fatalf("evaluation failed: %v", err)
	}
	if analysis.RiskLevel != domain.RiskHigh {
		t.Errorf("expected high risk under updated thresholds, got %s", analysis.RiskLevel)
	}
}

func TestUpdateThresholdsRejectsInvalid(t *testing.T) {
	e := newTestEngine(t, nil)
	ctx := context.Background()

	before := e.Thresholds()

	cases := []map[string]float64{
		{"high": 2.0},               // below medium
		{"medium": 9.0},             // above high
		{"critical": -1.0},          // negative
		{"unknown_level": 4.0},      // unknown key
		{"medium": 6.0, "high": 6.0}, // not strictly increasing
	}

	for i, partial := range cases {
		if _, err := e.UpdateThresholds(ctx, partial); err == nil {
			t.Errorf("case %d: expected rejection for %v", i, partial)
		}
		if e.Thresholds() != before {
			t.Fatalf("case %d: thresholds mutated by rejected update", i)
		}
	}
}

func TestUpdateThresholdsIdempotent(t *testing.T) {
	e := newTestEngine(t, nil)
	ctx := context.Background()

	partial := map[string]float64{"medium": 2.5, "high": 5.5, "critical": 7.5}

	first, err := e.UpdateThresholds(ctx, partial)
	if err != nil {
		t.Fatalf("first update failed: %v", err)
	}
	second, err := e.UpdateThresholds(ctx, partial)
	if err != nil {
		t.Fatalf("second update failed: %v", err)
	}
	if first != second {
		t.Errorf("idempotent update changed thresholds: %+v vs %+v", first, second)
	}
}

func TestMetrics(t *testing.T) {
	e := newTestEngine(t, nil)

	m := e.Metrics()
	if m.AgentID != AgentID || m.AgentName != AgentName || m.Version != AgentVersion {
		t.Errorf("unexpected identity: %+v", m)
	}
	if m.ModelTrained {
		t.Error("untrained model reported as trained")
	}
	if m.ModelState != anomaly.StateUninitialized {
		t.Errorf("expected uninitialized model state, got %s", m.ModelState)
	}
	if m.RulesLoaded != len(rules.BuiltinRules()) {
		t.Errorf("expected %d rules, got %d", len(rules.BuiltinRules()), m.RulesLoaded)
	}
	if len(m.Capabilities) == 0 {
		t.Error("expected capability list")
	}

	tx := &domain.TransactionData{
		Amount: 100, CurrencyFrom: "USD", CurrencyTo: "USD", Timestamp: "2026-03-14T13:00:00Z",
	}
	if _, err := e.Evaluate(context.Background(), tx); err != nil {
		t.Fatalf("evaluation failed: %v", err)
	}
	if got := e.Metrics().Evaluations; got != 1 {
		t.Errorf("expected 1 evaluation, got %d", got)
	}
}
