//go:build integration
// +build integration

// Package integration provides end-to-end tests for the fraud detection agent.
//
// These tests verify the COMPLETE scoring pipeline against a running server:
//
//	Transaction → Features → Rules + ML → Fusion → Risk Level → Recommendation
//
// Run with: go test -tags=integration -v ./tests/integration/...
//
// UNDERSTANDING THE DOMAIN:
//
// 1. TRANSACTION: A remittance transfer (amount, currency corridor, purpose,
//    sender identity signals).
//
// 2. RULE SCORE: Sum of the points of every matched CEL rule, capped at 10.
//    Builtin rules cover amount tiers, destination-currency risk, suspicious
//    purpose keywords, off-hours timing, cross-border corridors, new-user and
//    new-device markers, and the internal-test IP prefix.
//
// 3. ML SCORE: Isolation-forest anomaly score on a 10-dimensional feature
//    vector. Neutral 5.0 until the model finishes training.
//
// 4. FUSION: combined = 0.6*rule + 0.4*ml.
//
// 5. RISK LEVEL: low (<3), medium (<6), high (<8), critical (>=8) by default;
//    thresholds are hot-patchable via PUT /thresholds.
//
// The server trains its model shortly after startup; these tests tolerate
// both the neutral (still training) and trained states.
package integration

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"testing"
	"time"
)

// TestConfig holds test environment configuration
type TestConfig struct {
	BaseURL string
}

func getTestConfig() TestConfig {
	baseURL := os.Getenv("FRAUD_AGENT_TEST_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8090"
	}
	return TestConfig{BaseURL: baseURL}
}

// ============================================================================
// API Request/Response Types (matching the agent's API contract)
// ============================================================================

// Transaction is the request body for POST /evaluate.
type Transaction struct {
	Amount            float64 `json:"amount"`
	CurrencyFrom      string  `json:"currency_from"`
	CurrencyTo        string  `json:"currency_to"`
	Recipient         string  `json:"recipient"`
	Purpose           string  `json:"purpose"`
	UserID            string  `json:"user_id,omitempty"`
	Timestamp         string  `json:"timestamp,omitempty"`
	IPAddress         string  `json:"ip_address,omitempty"`
	DeviceFingerprint string  `json:"device_fingerprint,omitempty"`
}

// Analysis is what POST /evaluate returns.
type Analysis struct {
	ID               string   `json:"id"`
	FraudScore       float64  `json:"fraud_score"`
	RiskLevel        string   `json:"risk_level"`
	RiskFactors      []string `json:"risk_factors"`
	Recommendation   string   `json:"recommendation"`
	Confidence       float64  `json:"confidence"`
	ProcessingTimeMs int64    `json:"processing_time_ms"`
	ModelVersion     string   `json:"model_version"`
}

// ============================================================================
// Test Helper Functions
// ============================================================================

func evaluate(t *testing.T, config TestConfig, tx Transaction) Analysis {
	t.Helper()

	body, err := json.Marshal(tx)
	if err != nil {
		t.Fatalf("Failed to marshal request: %v", err)
	}

	httpReq, err := http.NewRequest("POST", config.BaseURL+"/evaluate", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(httpReq)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read response: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", resp.StatusCode, string(respBody))
	}

	var result Analysis
	if err := json.Unmarshal(respBody, &result); err != nil {
		t.Fatalf("Failed to unmarshal response: %v (body: %s)", err, string(respBody))
	}

	return result
}

func postRaw(t *testing.T, config TestConfig, path string, body []byte) *http.Response {
	t.Helper()

	httpReq, _ := http.NewRequest("POST", config.BaseURL+path, bytes.NewReader(body))
	httpReq.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(httpReq)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	return resp
}

// ============================================================================
// SCENARIO 1: High-Risk Transfer (Multiple Rules Fire)
// ============================================================================

func TestHighRiskTransfer_Alert(t *testing.T) {
	/*
	   SCENARIO: $150,000 to the Philippines at 3am from a new user on a new
	   device, via the internal-test IP range, with an urgent purpose.

	   EXPECTED BEHAVIOR:
	   - amount-very-high (3.0), currency-high-risk (2.0), purpose-suspicious
	     (1.5), off-hours (0.5), cross-border (0.5), new-user (1.0),
	     new-device (0.5), suspicious-ip (1.0) all fire
	   - Rule score caps at 10.0
	   - Regardless of model state, combined score >= 8.0 → critical → reject
	*/
	config := getTestConfig()

	tx := Transaction{
		Amount:            150000.00,
		CurrencyFrom:      "USD",
		CurrencyTo:        "PHP",
		Recipient:         "recipient-999",
		Purpose:           "urgent family emergency",
		UserID:            "new_user_9999",
		Timestamp:         "2026-01-15T03:00:00Z",
		IPAddress:         "10.0.0.5",
		DeviceFingerprint: "new_device_9999",
	}

	result := evaluate(t, config, tx)

	if result.RiskLevel != "high" && result.RiskLevel != "critical" {
		t.Errorf("Expected high or critical risk, got %s (score %.2f)", result.RiskLevel, result.FraudScore)
	}
	if result.Recommendation != "manual_review" && result.Recommendation != "reject" {
		t.Errorf("Expected manual_review or reject, got %s", result.Recommendation)
	}
	if len(result.RiskFactors) < 5 {
		t.Errorf("Expected many risk factors, got %v", result.RiskFactors)
	}

	t.Logf("✓ High-risk transfer: level=%s, score=%.2f, factors=%v",
		result.RiskLevel, result.FraudScore, result.RiskFactors)
}

// ============================================================================
// SCENARIO 2: Benign Transfer (No Rules Fire)
// ============================================================================

func TestBenignTransfer_Approved(t *testing.T) {
	/*
	   SCENARIO: $250 to the Eurozone at 2pm from an established user.

	   EXPECTED BEHAVIOR:
	   - No rules fire except currency-medium-risk is also absent (EUR is
	     medium tier, +1.0)
	   - Combined score stays below the medium threshold → low → approve
	*/
	config := getTestConfig()

	tx := Transaction{
		Amount:            250.00,
		CurrencyFrom:      "USD",
		CurrencyTo:        "USD",
		Recipient:         "recipient-001",
		Purpose:           "family_support",
		UserID:            "user-001",
		Timestamp:         "2026-01-15T14:00:00Z",
		IPAddress:         "192.168.1.10",
		DeviceFingerprint: "device-1234",
	}

	result := evaluate(t, config, tx)

	if result.RiskLevel != "low" {
		t.Errorf("Expected low risk, got %s (score %.2f)", result.RiskLevel, result.FraudScore)
	}
	if result.Recommendation != "approve" {
		t.Errorf("Expected approve, got %s", result.Recommendation)
	}

	t.Logf("✓ Benign transfer: level=%s, score=%.2f", result.RiskLevel, result.FraudScore)
}

// ============================================================================
// SCENARIO 3: Threshold Boundary Testing
// ============================================================================

func TestAmountTierBoundaries(t *testing.T) {
	/*
	   SCENARIO: The amount tiers are strict greater-than comparisons at
	   10,000 / 50,000 / 100,000. Exactly $10,000 fires no amount rule;
	   $10,000.01 fires the lowest tier.
	*/
	config := getTestConfig()

	base := Transaction{
		CurrencyFrom:      "USD",
		CurrencyTo:        "USD",
		Recipient:         "recipient-boundary",
		Purpose:           "business",
		UserID:            "user-boundary",
		Timestamp:         "2026-01-15T14:00:00Z",
		IPAddress:         "192.168.1.10",
		DeviceFingerprint: "device-1234",
	}

	atThreshold := base
	atThreshold.Amount = 10000.00
	resultAt := evaluate(t, config, atThreshold)

	justAbove := base
	justAbove.Amount = 10000.01
	resultAbove := evaluate(t, config, justAbove)

	if resultAbove.FraudScore <= resultAt.FraudScore {
		t.Errorf("Expected $10,000.01 to score above $10,000 exactly: %.2f vs %.2f",
			resultAbove.FraudScore, resultAt.FraudScore)
	}

	t.Logf("✓ Boundary test: $10,000 → %.2f, $10,000.01 → %.2f",
		resultAt.FraudScore, resultAbove.FraudScore)
}

// ============================================================================
// SCENARIO 4: Fail-Safe on Malformed Timestamp
// ============================================================================

func TestMalformedTimestamp_FailSafe(t *testing.T) {
	/*
	   SCENARIO: Valid transaction with an unparseable timestamp.

	   EXPECTED BEHAVIOR: The engine fails open to a medium-risk analysis
	   with the analysis_error factor and a manual_review recommendation.
	   It never returns an HTTP error for an internal scoring failure.
	*/
	config := getTestConfig()

	tx := Transaction{
		Amount:       500.00,
		CurrencyFrom: "USD",
		CurrencyTo:   "EUR",
		Recipient:    "recipient-001",
		Purpose:      "business",
		Timestamp:    "not-a-timestamp",
	}

	result := evaluate(t, config, tx)

	if result.RiskLevel != "medium" {
		t.Errorf("Expected medium risk fail-safe, got %s", result.RiskLevel)
	}
	if result.Recommendation != "manual_review" {
		t.Errorf("Expected manual_review, got %s", result.Recommendation)
	}
	hasErrorFactor := false
	for _, f := range result.RiskFactors {
		if f == "analysis_error" {
			hasErrorFactor = true
		}
	}
	if !hasErrorFactor {
		t.Errorf("Expected analysis_error factor, got %v", result.RiskFactors)
	}

	t.Logf("✓ Fail-safe: level=%s, score=%.2f, factors=%v",
		result.RiskLevel, result.FraudScore, result.RiskFactors)
}

// ============================================================================
// SCENARIO 5: Input Validation
// ============================================================================

func TestInvalidTransactions_Rejected(t *testing.T) {
	config := getTestConfig()

	cases := []struct {
		name string
		tx   Transaction
	}{
		{"ZeroAmount", Transaction{Amount: 0, CurrencyFrom: "USD", CurrencyTo: "EUR"}},
		{"NegativeAmount", Transaction{Amount: -100, CurrencyFrom: "USD", CurrencyTo: "EUR"}},
		{"MissingCurrencyFrom", Transaction{Amount: 100, CurrencyTo: "EUR"}},
		{"MissingCurrencyTo", Transaction{Amount: 100, CurrencyFrom: "USD"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			body, _ := json.Marshal(tc.tx)
			resp := postRaw(t, config, "/evaluate", body)
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("Expected 400, got %d", resp.StatusCode)
			}
		})
	}
}

// ============================================================================
// SCENARIO 6: Analysis Read-Back
// ============================================================================

func TestAnalysisReadBack(t *testing.T) {
	config := getTestConfig()

	tx := Transaction{
		Amount:       750.00,
		CurrencyFrom: "USD",
		CurrencyTo:   "EUR",
		Recipient:    "recipient-readback",
		Purpose:      "education",
		Timestamp:    "2026-01-15T14:00:00Z",
	}

	result := evaluate(t, config, tx)

	resp, err := http.Get(config.BaseURL + "/analyses/" + result.ID)
	if err != nil {
		t.Fatalf("Read-back request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200 for cached analysis, got %d", resp.StatusCode)
	}

	var cached Analysis
	if err := json.NewDecoder(resp.Body).Decode(&cached); err != nil {
		t.Fatalf("Failed to decode cached analysis: %v", err)
	}
	if cached.ID != result.ID {
		t.Errorf("Expected analysis %s, got %s", result.ID, cached.ID)
	}
	if cached.FraudScore != result.FraudScore {
		t.Errorf("Cached score %.2f differs from original %.2f", cached.FraudScore, result.FraudScore)
	}

	t.Logf("✓ Read-back: id=%s, score=%.2f", cached.ID[:8], cached.FraudScore)
}

// ============================================================================
// SCENARIO 7: Threshold Hot-Patching
// ============================================================================

func TestThresholdRoundTrip(t *testing.T) {
	/*
	   SCENARIO: Lower the high threshold, verify classification shifts,
	   then restore the default so other tests are unaffected.
	*/
	config := getTestConfig()
	client := &http.Client{Timeout: 10 * time.Second}

	put := func(partial map[string]float64) int {
		body, _ := json.Marshal(partial)
		req, _ := http.NewRequest("PUT", config.BaseURL+"/thresholds", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		resp, err := client.Do(req)
		if err != nil {
			t.Fatalf("PUT /thresholds failed: %v", err)
		}
		resp.Body.Close()
		return resp.StatusCode
	}

	if code := put(map[string]float64{"high": 5.0}); code != http.StatusOK {
		t.Fatalf("Expected 200 updating thresholds, got %d", code)
	}
	defer put(map[string]float64{"high": 6.0})

	// Invalid: medium above critical
	if code := put(map[string]float64{"medium": 9.0}); code != http.StatusBadRequest {
		t.Errorf("Expected 400 for non-increasing thresholds, got %d", code)
	}

	// Unknown key
	if code := put(map[string]float64{"severe": 2.0}); code != http.StatusBadRequest {
		t.Errorf("Expected 400 for unknown threshold key, got %d", code)
	}

	t.Log("✓ Threshold round-trip complete")
}

// ============================================================================
// SCENARIO 8: Agent Metrics
// ============================================================================

func TestMetricsContract(t *testing.T) {
	config := getTestConfig()

	resp, err := http.Get(config.BaseURL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	var metrics struct {
		AgentID      string   `json:"agent_id"`
		AgentName    string   `json:"agent_name"`
		Version      string   `json:"version"`
		ModelState   string   `json:"model_state"`
		Capabilities []string `json:"capabilities"`
		RulesLoaded  int      `json:"rules_loaded"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&metrics); err != nil {
		t.Fatalf("Failed to decode metrics: %v", err)
	}

	if metrics.AgentID == "" {
		t.Error("Missing agent_id")
	}
	if len(metrics.Capabilities) == 0 {
		t.Error("Missing capabilities")
	}
	if metrics.RulesLoaded == 0 {
		t.Error("Expected loaded rules")
	}

	t.Logf("✓ Metrics: agent=%s, model_state=%s, rules=%d",
		metrics.AgentID, metrics.ModelState, metrics.RulesLoaded)
}
