package domain

// RuleConfig defines one fraud detection rule. The expression is a CEL
// boolean over the feature-vector variables plus the raw string fields;
// when it evaluates to true the rule contributes Score points and tags the
// analysis with Factor.
type RuleConfig struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Version     string `json:"version"`

	// Expression is a CEL boolean expression.
	Expression string `json:"expression"`

	// Score is the number of points added to the rule score on a match.
	Score float64 `json:"score"`

	// Factor is the tag surfaced in risk_factors on a match.
	Factor string `json:"factor"`

	Enabled bool `json:"enabled"`
}

// RuleResult is the outcome of evaluating a single rule.
type RuleResult struct {
	RuleID    string  `json:"ruleId"`
	Matched   bool    `json:"matched"`
	Points    float64 `json:"points"` // Score if matched, 0 otherwise
	Factor    string  `json:"factor,omitempty"`
	Err       string  `json:"error,omitempty"`
	ProcessMs int64   `json:"processMs"`
}

// RuleScoreCap bounds the summed rule score.
const RuleScoreCap = 10.0
