// Package rules provides the CEL-Go based fraud rule engine.
package rules

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"

	"github.com/lucylow/coral-rush-sub001/internal/domain"
)

// Engine is the CEL-based rule evaluation engine. Rules are boolean CEL
// expressions; a match adds the rule's configured points and tags the
// analysis with its factor.
type Engine struct {
	mu            sync.RWMutex
	env           *cel.Env
	compiledRules map[string]*CompiledRule
	maxWorkers    int
}

// CompiledRule holds a pre-compiled CEL program.
type CompiledRule struct {
	Config  *domain.RuleConfig
	Program cel.Program
}

// NewEngine creates a new rule evaluation engine.
func NewEngine(maxWorkers int) (*Engine, error) {
	if maxWorkers <= 0 {
		maxWorkers = 10
	}

	// Expressions see the raw transaction fields plus the derived
	// feature values, so rules can be written against either.
	env, err := cel.NewEnv(
		cel.Variable("amount", cel.DoubleType),
		cel.Variable("currency_from", cel.StringType),
		cel.Variable("currency_to", cel.StringType),
		cel.Variable("purpose", cel.StringType),
		cel.Variable("user_id", cel.StringType),
		cel.Variable("device_fingerprint", cel.StringType),
		cel.Variable("ip", cel.StringType),
		cel.Variable("recipient", cel.StringType),
		cel.Variable("currency_risk", cel.DoubleType),
		cel.Variable("purpose_hits", cel.DoubleType),
		cel.Variable("hour", cel.DoubleType),
		cel.Variable("off_hours", cel.BoolType),
		cel.Variable("cross_border", cel.BoolType),
		cel.Variable("new_user", cel.BoolType),
		cel.Variable("new_device", cel.BoolType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Engine{
		env:           env,
		compiledRules: make(map[string]*CompiledRule),
		maxWorkers:    maxWorkers,
	}, nil
}

// ValidateRule compiles and validates a rule without mutating loaded engine rules.
func (e *Engine) ValidateRule(cfg *domain.RuleConfig) error {
	if cfg == nil {
		return fmt.Errorf("rule config is required")
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	_, err := e.compileRule(cfg)
	return err
}

// LoadRule compiles and loads a rule into the engine.
func (e *Engine) LoadRule(cfg *domain.RuleConfig) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	compiled, err := e.compileRule(cfg)
	if err != nil {
		return err
	}

	e.compiledRules[cfg.ID] = compiled

	return nil
}

// LoadRules compiles and loads multiple rules. Disabled rules are skipped.
func (e *Engine) LoadRules(configs []*domain.RuleConfig) error {
	for _, cfg := range configs {
		if cfg.Enabled {
			if err := e.LoadRule(cfg); err != nil {
				return err
			}
		}
	}
	return nil
}

// Score evaluates all loaded rules against the transaction and its feature
// vector. Returns the summed score clamped to [0, RuleScoreCap], the factor
// tags of matched rules (sorted for stable output), and the per-rule results.
func (e *Engine) Score(ctx context.Context, tx *domain.TransactionData, vec domain.FeatureVector) (float64, []string, []domain.RuleResult) {
	e.mu.RLock()
	rules := make([]*CompiledRule, 0, len(e.compiledRules))
	for _, rule := range e.compiledRules {
		rules = append(rules, rule)
	}
	e.mu.RUnlock()

	if len(rules) == 0 {
		return 0, nil, nil
	}

	activation := map[string]any{
		"amount":             tx.Amount,
		"currency_from":      tx.CurrencyFrom,
		"currency_to":        tx.CurrencyTo,
		"purpose":            strings.ToLower(tx.Purpose),
		"user_id":            tx.UserID,
		"device_fingerprint": tx.DeviceFingerprint,
		"ip":                 tx.IPAddress,
		"recipient":          tx.Recipient,
		"currency_risk":      vec[domain.FeatCurrencyRisk],
		"purpose_hits":       vec[domain.FeatPurposeHits],
		"hour":               vec[domain.FeatHour],
		"off_hours":          vec[domain.FeatOffHours] > 0,
		"cross_border":       vec[domain.FeatCrossBorder] > 0,
		"new_user":           vec[domain.FeatNewUser] > 0,
		"new_device":         vec[domain.FeatNewDevice] > 0,
	}

	// Parallel evaluation with bounded concurrency
	results := make([]domain.RuleResult, len(rules))
	var wg sync.WaitGroup
	sem := make(chan struct{}, e.maxWorkers)

	for i, rule := range rules {
		wg.Add(1)
		go func(idx int, r *CompiledRule) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			results[idx] = evaluateRule(r, activation)
		}(i, rule)
	}

	wg.Wait()

	var total float64
	var factors []string
	for _, r := range results {
		if r.Matched {
			total += r.Points
			factors = append(factors, r.Factor)
		}
	}
	sort.Strings(factors)

	if total > domain.RuleScoreCap {
		total = domain.RuleScoreCap
	}
	if total < 0 {
		total = 0
	}

	return total, factors, results
}

// evaluateRule evaluates a single rule and returns the result.
// Rules that fail to evaluate contribute nothing; the error is recorded.
func evaluateRule(rule *CompiledRule, activation map[string]any) domain.RuleResult {
	start := time.Now()

	result := domain.RuleResult{
		RuleID: rule.Config.ID,
		Factor: rule.Config.Factor,
	}

	out, _, err := rule.Program.Eval(activation)
	if err != nil {
		result.Err = fmt.Sprintf("evaluation error: %v", err)
		result.ProcessMs = time.Since(start).Milliseconds()
		return result
	}

	if matched, ok := out.(types.Bool); ok && bool(matched) {
		result.Matched = true
		result.Points = rule.Config.Score
	}
	result.ProcessMs = time.Since(start).Milliseconds()

	return result
}

// RulesCount returns the number of loaded rules.
func (e *Engine) RulesCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.compiledRules)
}

// ReloadRules clears all existing rules and loads new ones.
// This enables hot-reloading of rules from the database.
func (e *Engine) ReloadRules(configs []*domain.RuleConfig) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	newRules := make(map[string]*CompiledRule)

	for _, cfg := range configs {
		if !cfg.Enabled {
			continue
		}

		compiled, err := e.compileRule(cfg)
		if err != nil {
			return err
		}
		newRules[cfg.ID] = compiled
	}

	e.compiledRules = newRules

	return nil
}

// GetLoadedRules returns the currently loaded rule configurations,
// sorted by ID.
func (e *Engine) GetLoadedRules() []*domain.RuleConfig {
	e.mu.RLock()
	defer e.mu.RUnlock()

	rules := make([]*domain.RuleConfig, 0, len(e.compiledRules))
	for _, compiled := range e.compiledRules {
		rules = append(rules, compiled.Config)
	}
	sort.Slice(rules, func(i, j int) bool { return rules[i].ID < rules[j].ID })
	return rules
}

// Close cleans up the engine.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.compiledRules = make(map[string]*CompiledRule)
	return nil
}

func (e *Engine) compileRule(cfg *domain.RuleConfig) (*CompiledRule, error) {
	ast, issues := e.env.Compile(cfg.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile rule %s: %w", cfg.ID, issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("rule %s: expression must return bool, got %s", cfg.ID, ast.OutputType())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for rule %s: %w", cfg.ID, err)
	}

	return &CompiledRule{
		Config:  cfg,
		Program: program,
	}, nil
}
