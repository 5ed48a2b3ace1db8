package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lucylow/coral-rush-sub001/internal/anomaly"
	"github.com/lucylow/coral-rush-sub001/internal/domain"
	"github.com/lucylow/coral-rush-sub001/internal/engine"
	"github.com/lucylow/coral-rush-sub001/internal/rules"
)

// analysisTTL bounds how long completed analyses stay readable by ID.
const analysisTTL = time.Hour

// Handler holds dependencies for API handlers.
type Handler struct {
	engine     *engine.Engine
	ruleEngine *rules.Engine
	trainer    *anomaly.Trainer
	repo       domain.Repository
	cache      domain.Cache
	bus        domain.EventBus
	version    string
}

// NewHandler creates a new API handler.
func NewHandler(eng *engine.Engine, ruleEngine *rules.Engine, trainer *anomaly.Trainer, repo domain.Repository, cache domain.Cache, bus domain.EventBus, version string) *Handler {
	return &Handler{
		engine:     eng,
		ruleEngine: ruleEngine,
		trainer:    trainer,
		repo:       repo,
		cache:      cache,
		bus:        bus,
		version:    version,
	}
}

// Evaluate handles POST /evaluate requests: synchronous fraud scoring of a
// single transaction.
func (h *Handler) Evaluate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var tx domain.TransactionData
	if err := json.NewDecoder(r.Body).Decode(&tx); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	analysis, err := h.engine.Evaluate(ctx, &tx)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidTransaction) {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": err.Error(),
			})
			return
		}
		slog.Error("evaluation failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "evaluation failed",
		})
		return
	}

	if h.cache != nil {
		if err := h.cache.SetAnalysis(ctx, analysis.ID, analysis, analysisTTL); err != nil {
			slog.Error("failed to cache analysis", "analysis_id", analysis.ID, "error", err)
		}
		if _, err := h.cache.IncrementCounter(ctx, "evaluations:daily", 24*time.Hour); err != nil {
			slog.Debug("failed to increment evaluation counter", "error", err)
		}
	}

	if h.bus != nil {
		payload, _ := json.Marshal(analysis)
		if err := h.bus.Publish(ctx, domain.TopicAnalysis, payload); err != nil {
			slog.Error("failed to publish analysis", "analysis_id", analysis.ID, "error", err)
		}
		if analysis.RiskLevel == domain.RiskHigh || analysis.RiskLevel == domain.RiskCritical {
			if err := h.bus.Publish(ctx, domain.TopicAlert, payload); err != nil {
				slog.Error("failed to publish alert", "analysis_id", analysis.ID, "error", err)
			}
		}
	}

	writeJSON(w, http.StatusOK, analysis)
}

// GetAnalysis retrieves a recent analysis by ID from the cache.
// Analyses expire; a miss is indistinguishable from never-existed.
func (h *Handler) GetAnalysis(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	analysisID := chi.URLParam(r, "id")

	if analysisID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "analysis id is required",
		})
		return
	}

	if h.cache == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "cache not available",
		})
		return
	}

	analysis, err := h.cache.GetAnalysis(ctx, analysisID)
	if err != nil {
		slog.Error("failed to get analysis", "id", analysisID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to retrieve analysis",
		})
		return
	}
	if analysis == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "analysis not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, analysis)
}

// Metrics returns the agent status snapshot.
func (h *Handler) Metrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.Metrics())
}

// GetThresholds returns the active risk thresholds.
func (h *Handler) GetThresholds(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.Thresholds())
}

// UpdateThresholds applies a partial threshold override. Unknown keys and
// non-increasing configurations are rejected; the previous thresholds stay
// in effect.
func (h *Handler) UpdateThresholds(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var partial map[string]float64
	if err := json.NewDecoder(r.Body).Decode(&partial); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if len(partial) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "at least one of medium, high, critical is required",
		})
		return
	}

	updated, err := h.engine.UpdateThresholds(ctx, partial)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

// Retrain handles POST /model/retrain: kicks off an asynchronous training
// run and returns immediately.
func (h *Handler) Retrain(w http.ResponseWriter, r *http.Request) {
	switch {
	case h.bus != nil:
		payload, _ := json.Marshal(map[string]string{
			"requested_at": time.Now().UTC().Format(time.RFC3339),
		})
		if err := h.bus.Publish(r.Context(), domain.TopicRetrain, payload); err != nil {
			slog.Error("failed to publish retrain request", "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to request retrain",
			})
			return
		}
	case h.trainer != nil:
		go func() {
			if err := h.trainer.Train(context.Background()); err != nil {
				slog.Error("model retrain failed", "error", err)
			}
		}()
	default:
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "trainer not available",
		})
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"status": "retraining",
	})
}

// ListTrainingRuns returns the most recent training runs, newest first.
func (h *Handler) ListTrainingRuns(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	runs, err := h.repo.ListTrainingRuns(r.Context(), 20)
	if err != nil {
		slog.Error("failed to list training runs", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list training runs",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"runs":  runs,
		"count": len(runs),
	})
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	// Check repository health
	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	// Check cache health
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic. The engine
// serves neutral scores while the model trains, so readiness does not wait
// for training to complete.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ready":       true,
		"model_state": h.engine.Metrics().ModelState,
	})
}

// ListRules returns all loaded rules from the engine.
// Rules are loaded from the database at startup and can be reloaded via POST /rules/reload.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	loadedRules := h.ruleEngine.GetLoadedRules()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rules": loadedRules,
		"count": len(loadedRules),
	})
}

// GetRule retrieves a rule by ID from the loaded engine rules.
func (h *Handler) GetRule(w http.ResponseWriter, r *http.Request) {
	ruleID := chi.URLParam(r, "id")

	if ruleID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "rule id is required",
		})
		return
	}

	for _, rule := range h.ruleEngine.GetLoadedRules() {
		if rule.ID == ruleID {
			writeJSON(w, http.StatusOK, rule)
			return
		}
	}

	writeJSON(w, http.StatusNotFound, map[string]string{
		"error": "rule not found",
	})
}

// CreateRuleRequest is the request body for creating a rule.
type CreateRuleRequest struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Expression  string  `json:"expression"`
	Score       float64 `json:"score"`
	Factor      string  `json:"factor"`
	Enabled     bool    `json:"enabled"`
}

// CreateRule creates a new rule and saves it to the database.
// After saving, call POST /rules/reload to hot-reload into the engine.
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	// Validate
	if req.ID == "" || req.Name == "" || req.Expression == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "id, name, and expression are required",
		})
		return
	}
	if req.Factor == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "factor is required",
		})
		return
	}

	ruleConfig := &domain.RuleConfig{
		ID:          req.ID,
		Name:        req.Name,
		Description: req.Description,
		Version:     "1.0.0",
		Expression:  req.Expression,
		Score:       req.Score,
		Factor:      req.Factor,
		Enabled:     req.Enabled,
	}

	// Validate CEL expression before persisting
	if err := h.ruleEngine.ValidateRule(ruleConfig); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid CEL expression: " + err.Error(),
		})
		return
	}

	if h.repo != nil {
		if err := h.repo.SaveRuleConfig(ctx, ruleConfig); err != nil {
			slog.Error("failed to save rule config", "id", ruleConfig.ID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to save rule",
			})
			return
		}
	}

	slog.Info("rule created", "id", ruleConfig.ID, "name", ruleConfig.Name)
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"rule":    ruleConfig,
		"message": "Rule created. Call POST /rules/reload to apply changes.",
	})
}

// ReloadRules reloads all rules from the database into the engine.
// This enables hot-reloading without server restart.
func (h *Handler) ReloadRules(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	dbRules, err := h.repo.ListRuleConfigs(ctx)
	if err != nil {
		slog.Error("failed to list rules from database", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load rules from database",
		})
		return
	}

	if err := h.ruleEngine.ReloadRules(dbRules); err != nil {
		slog.Error("failed to reload rules into engine", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to reload rules: " + err.Error(),
		})
		return
	}

	slog.Info("rules reloaded from database", "count", len(dbRules))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "rules reloaded successfully",
		"count":   len(dbRules),
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
