// Package worker provides async transaction processing over the EventBus.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lucylow/coral-rush-sub001/internal/anomaly"
	"github.com/lucylow/coral-rush-sub001/internal/domain"
	"github.com/lucylow/coral-rush-sub001/internal/engine"
)

// Worker consumes ingested transactions from the EventBus, runs them through
// the fraud engine, caches the analyses for read-back, and publishes the
// results downstream. It also services retrain requests.
type Worker struct {
	bus     domain.EventBus
	cache   domain.Cache
	engine  *engine.Engine
	trainer *anomaly.Trainer
	logger  *slog.Logger

	subscriptions []domain.Subscription
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc

	processed atomic.Int64
	alerts    atomic.Int64
}

// Config holds worker configuration.
type Config struct {
	// AnalysisTTL bounds how long completed analyses stay readable by ID.
	AnalysisTTL time.Duration

	// RetrainInterval triggers periodic model retraining when > 0.
	RetrainInterval time.Duration
}

const defaultAnalysisTTL = time.Hour

// NewWorker creates a new async worker.
func NewWorker(bus domain.EventBus, cache domain.Cache, eng *engine.Engine, trainer *anomaly.Trainer, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:     bus,
		cache:   cache,
		engine:  eng,
		trainer: trainer,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start subscribes to the transaction and retrain topics and, when
// configured, starts the periodic retrain ticker.
func (w *Worker) Start(cfg Config) error {
	ttl := cfg.AnalysisTTL
	if ttl <= 0 {
		ttl = defaultAnalysisTTL
	}

	sub, err := w.bus.Subscribe(w.ctx, domain.TopicTransactionIngested, func(ctx context.Context, msg *domain.Message) error {
		return w.processTransaction(ctx, msg, ttl)
	})
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	if w.trainer != nil {
		retrainSub, err := w.bus.Subscribe(w.ctx, domain.TopicRetrain, w.handleRetrain)
		if err != nil {
			return err
		}
		w.subscriptions = append(w.subscriptions, retrainSub)

		if cfg.RetrainInterval > 0 {
			w.wg.Add(1)
			go w.retrainLoop(cfg.RetrainInterval)
		}
	}

	w.logger.Info("worker started",
		"topics", w.topics(),
		"analysis_ttl", ttl,
		"retrain_interval", cfg.RetrainInterval,
	)

	return nil
}

// processTransaction evaluates a single ingested transaction.
func (w *Worker) processTransaction(ctx context.Context, msg *domain.Message, ttl time.Duration) error {
	start := time.Now()

	var tx domain.TransactionData
	if err := json.Unmarshal(msg.Payload, &tx); err != nil {
		w.logger.Error("failed to parse transaction message",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	analysis, err := w.engine.Evaluate(ctx, &tx)
	if err != nil {
		w.logger.Error("transaction evaluation rejected",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}
	w.processed.Add(1)

	if w.cache != nil {
		if err := w.cache.SetAnalysis(ctx, analysis.ID, analysis, ttl); err != nil {
			w.logger.Error("failed to cache analysis",
				"analysis_id", analysis.ID,
				"error", err,
			)
		}
	}

	payload, _ := json.Marshal(analysis)
	if err := w.bus.Publish(ctx, domain.TopicAnalysis, payload); err != nil {
		w.logger.Error("failed to publish analysis",
			"analysis_id", analysis.ID,
			"error", err,
		)
	}

	if analysis.RiskLevel == domain.RiskHigh || analysis.RiskLevel == domain.RiskCritical {
		w.alerts.Add(1)
		if err := w.bus.Publish(ctx, domain.TopicAlert, payload); err != nil {
			w.logger.Error("failed to publish alert",
				"analysis_id", analysis.ID,
				"error", err,
			)
		}
	}

	w.logger.Info("transaction processed",
		"analysis_id", analysis.ID,
		"score", analysis.FraudScore,
		"risk_level", analysis.RiskLevel,
		"recommendation", analysis.Recommendation,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}

// handleRetrain services an on-demand retrain request.
func (w *Worker) handleRetrain(ctx context.Context, msg *domain.Message) error {
	w.logger.Info("retrain requested", "message_id", msg.ID)
	if err := w.trainer.Train(ctx); err != nil {
		w.logger.Error("model retrain failed", "error", err)
		return err
	}
	return nil
}

// retrainLoop periodically retrains the model until the worker stops.
func (w *Worker) retrainLoop(interval time.Duration) {
	defer w.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			if err := w.trainer.Train(w.ctx); err != nil {
				w.logger.Error("scheduled retrain failed", "error", err)
			}
		}
	}
}

// Stop gracefully stops the worker.
func (w *Worker) Stop() error {
	w.cancel()

	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			w.logger.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	w.wg.Wait()

	w.logger.Info("worker stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscription_count"`
	Topics            []string `json:"topics"`
	Processed         int64    `json:"processed"`
	Alerts            int64    `json:"alerts"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            w.topics(),
		Processed:         w.processed.Load(),
		Alerts:            w.alerts.Load(),
	}
}

func (w *Worker) topics() []string {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return topics
}
