package anomaly

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lucylow/coral-rush-sub001/internal/domain"
	"github.com/lucylow/coral-rush-sub001/internal/features"
)

// Trainer fits and publishes model snapshots. It is the model's single
// writer; concurrent Train calls serialize on the trainer's mutex.
// Repository and bus are optional: without them runs are not recorded
// and no trained event is published.
type Trainer struct {
	mu     sync.Mutex
	model  *Model
	repo   domain.Repository
	bus    domain.EventBus
	cfg    domain.ModelConfig
	logger *slog.Logger
}

// NewTrainer creates a trainer for the given model.
func NewTrainer(model *Model, repo domain.Repository, bus domain.EventBus, cfg domain.ModelConfig, logger *slog.Logger) *Trainer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Estimators <= 0 {
		cfg = domain.DefaultModelConfig()
	}
	return &Trainer{
		model:  model,
		repo:   repo,
		bus:    bus,
		cfg:    cfg,
		logger: logger,
	}
}

// TrainedEvent is the payload published on the model-trained topic.
type TrainedEvent struct {
	RunID        string `json:"run_id"`
	ModelVersion string `json:"model_version"`
	SampleCount  int    `json:"sample_count"`
}

// Train generates the synthetic bootstrap population, fits the scaler and
// forest, and atomically publishes the pair. On failure the model is marked
// degraded and any prior snapshot stays unused until a retrain succeeds.
func (t *Trainer) Train(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.model.beginTraining()

	run := &domain.TrainingRun{
		ID:            uuid.New().String(),
		Status:        domain.TrainingRunRunning,
		SampleCount:   t.cfg.NormalSamples + t.cfg.FraudSamples,
		Contamination: t.cfg.Contamination,
		StartedAt:     time.Now().UTC(),
	}
	run.ModelVersion = "iforest-" + run.ID[:8]
	t.recordRun(ctx, run)

	t.logger.Info("model training started",
		"run_id", run.ID,
		"samples", run.SampleCount,
		"estimators", t.cfg.Estimators,
		"seed", t.cfg.Seed)

	if err := t.fit(run.ModelVersion); err != nil {
		t.model.degrade()
		now := time.Now().UTC()
		run.Status = domain.TrainingRunFailed
		run.CompletedAt = &now
		run.Error = err.Error()
		t.recordRun(ctx, run)
		t.logger.Error("model training failed", "run_id", run.ID, "error", err)
		return fmt.Errorf("train model: %w", err)
	}

	now := time.Now().UTC()
	run.Status = domain.TrainingRunCompleted
	run.CompletedAt = &now
	t.recordRun(ctx, run)

	t.publishTrained(ctx, run)

	t.logger.Info("model training completed",
		"run_id", run.ID,
		"model_version", run.ModelVersion,
		"duration_ms", now.Sub(run.StartedAt).Milliseconds())

	return nil
}

func (t *Trainer) fit(version string) error {
	population := t.synthesize()

	vectors := make([][]float64, 0, len(population))
	for i := range population {
		vec, err := features.Extract(&population[i])
		if err != nil {
			return fmt.Errorf("extract bootstrap sample: %w", err)
		}
		vectors = append(vectors, vec.Slice())
	}

	scaler, err := FitScaler(vectors)
	if err != nil {
		return err
	}

	forest, err := FitForest(scaler.TransformAll(vectors), ForestConfig{
		Estimators:    t.cfg.Estimators,
		SubsampleSize: t.cfg.SubsampleSize,
		Contamination: t.cfg.Contamination,
		Seed:          t.cfg.Seed,
	})
	if err != nil {
		return err
	}

	t.model.publish(scaler, forest, version)
	return nil
}

// synthesize builds the seeded bootstrap population: a majority of benign
// daytime remittances and a ~10% minority carrying the classic fraud
// profile (large amounts, risky corridors, urgency keywords, fresh
// accounts and devices).
func (t *Trainer) synthesize() []domain.TransactionData {
	rng := rand.New(rand.NewSource(t.cfg.Seed))
	population := make([]domain.TransactionData, 0, t.cfg.NormalSamples+t.cfg.FraudSamples)

	normalCurrencies := []string{"EUR", "GBP", "CAD", "AUD"}
	normalPurposes := []string{"family_support", "business", "education", "medical"}
	fraudCurrencies := []string{"PHP", "INR", "BRL", "MXN"}
	fraudPurposes := []string{"urgent", "emergency", "family_emergency"}

	for i := 0; i < t.cfg.NormalSamples; i++ {
		hour := 8 + rng.Intn(13) // 08:00-20:00
		population = append(population, domain.TransactionData{
			Amount:            10 + rng.Float64()*4990,
			CurrencyFrom:      "USD",
			CurrencyTo:        normalCurrencies[rng.Intn(len(normalCurrencies))],
			Recipient:         fmt.Sprintf("recipient_%04d", 1000+rng.Intn(9000)),
			Purpose:           normalPurposes[rng.Intn(len(normalPurposes))],
			UserID:            fmt.Sprintf("user_%03d", 100+rng.Intn(900)),
			Timestamp:         fmt.Sprintf("2026-01-15T%02d:00:00Z", hour),
			IPAddress:         fmt.Sprintf("192.168.%d.%d", 1+rng.Intn(254), 1+rng.Intn(254)),
			DeviceFingerprint: fmt.Sprintf("device_%04d", 1000+rng.Intn(9000)),
		})
	}

	for i := 0; i < t.cfg.FraudSamples; i++ {
		hour := rng.Intn(24)
		population = append(population, domain.TransactionData{
			Amount:            10000 + rng.Float64()*90000,
			CurrencyFrom:      "USD",
			CurrencyTo:        fraudCurrencies[rng.Intn(len(fraudCurrencies))],
			Recipient:         fmt.Sprintf("suspicious_%04d", 1000+rng.Intn(9000)),
			Purpose:           fraudPurposes[rng.Intn(len(fraudPurposes))],
			UserID:            fmt.Sprintf("new_user_%04d", 1000+rng.Intn(9000)),
			Timestamp:         fmt.Sprintf("2026-01-15T%02d:00:00Z", hour),
			IPAddress:         fmt.Sprintf("10.0.%d.%d", 1+rng.Intn(254), 1+rng.Intn(254)),
			DeviceFingerprint: fmt.Sprintf("new_device_%04d", 1000+rng.Intn(9000)),
		})
	}

	return population
}

func (t *Trainer) recordRun(ctx context.Context, run *domain.TrainingRun) {
	if t.repo == nil {
		return
	}
	if err := t.repo.SaveTrainingRun(ctx, run); err != nil {
		t.logger.Warn("failed to record training run", "run_id", run.ID, "error", err)
	}
}

func (t *Trainer) publishTrained(ctx context.Context, run *domain.TrainingRun) {
	if t.bus == nil {
		return
	}
	payload, err := json.Marshal(TrainedEvent{
		RunID:        run.ID,
		ModelVersion: run.ModelVersion,
		SampleCount:  run.SampleCount,
	})
	if err != nil {
		return
	}
	if err := t.bus.Publish(ctx, domain.TopicModelTrained, payload); err != nil {
		t.logger.Warn("failed to publish trained event", "run_id", run.ID, "error", err)
	}
}
