// Fraud detection agent - real-time risk scoring for remittance transactions.

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/lucylow/coral-rush-sub001/internal/anomaly"
	"github.com/lucylow/coral-rush-sub001/internal/api"
	"github.com/lucylow/coral-rush-sub001/internal/bus"
	"github.com/lucylow/coral-rush-sub001/internal/cache"
	"github.com/lucylow/coral-rush-sub001/internal/domain"
	"github.com/lucylow/coral-rush-sub001/internal/engine"
	"github.com/lucylow/coral-rush-sub001/internal/repository"
	"github.com/lucylow/coral-rush-sub001/internal/rules"
	"github.com/lucylow/coral-rush-sub001/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	// Load configuration
	cfg := domain.DefaultConfig()
	if os.Getenv("FRAUD_AGENT_MODE") == "distributed" {
		cfg = domain.DistributedConfig()
	}
	applyEnvOverrides(cfg)

	// Initialize structured logger
	logLevel := slog.LevelInfo
	if cfg.Logging.Level == "debug" || os.Getenv("FRAUD_AGENT_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	var handler slog.Handler
	if cfg.Logging.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	} else {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)

	slog.Info("starting fraud agent",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	slog.Info("configuration loaded",
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Initialize Repository
	repo, err := repository.New(cfg.Repository)
	if err != nil {
		slog.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	// Initialize Cache
	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		slog.Error("failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	// Initialize EventBus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Initialize Rule Engine
	ruleEngine, err := rules.NewEngine(100)
	if err != nil {
		slog.Error("failed to initialize rule engine", "error", err)
		os.Exit(1)
	}

	if err := loadRules(ctx, repo, ruleEngine); err != nil {
		slog.Error("failed to load rules", "error", err)
		os.Exit(1)
	}
	slog.Info("rule engine initialized", "rules_count", ruleEngine.RulesCount())

	// Initialize Anomaly Model and Trainer
	model := anomaly.NewModel()
	trainer := anomaly.NewTrainer(model, repo, busImpl, cfg.Model, logger)

	// Train asynchronously; the engine serves neutral ML scores until the
	// first run completes.
	go func() {
		if err := trainer.Train(ctx); err != nil {
			slog.Error("initial model training failed", "error", err)
		}
	}()

	// Initialize Scoring Engine
	eng := engine.New(ruleEngine, model, repo, cfg.Fusion, logger)
	if err := eng.RestoreThresholds(ctx); err != nil && !errors.Is(err, repository.ErrNotFound) {
		slog.Warn("failed to restore thresholds, using defaults", "error", err)
	}
	thresholds := eng.Thresholds()
	slog.Info("scoring engine initialized",
		"rule_weight", cfg.Fusion.RuleWeight,
		"model_weight", cfg.Fusion.ModelWeight,
		"medium", thresholds.Medium,
		"high", thresholds.High,
		"critical", thresholds.Critical,
	)

	// Initialize async Worker
	asyncWorker := worker.NewWorker(busImpl, cacheImpl, eng, trainer, logger)
	if err := asyncWorker.Start(worker.Config{
		RetrainInterval: cfg.Model.RetrainInterval,
	}); err != nil {
		slog.Error("failed to start async worker", "error", err)
	}

	// Initialize Server
	srv := api.NewServer(cfg.Server, eng, ruleEngine, trainer, repo, cacheImpl, busImpl, Version)

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("fraud agent is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	// Stop async worker first
	if err := asyncWorker.Stop(); err != nil {
		slog.Error("failed to stop async worker", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("fraud agent shutdown complete")
}

// loadRules seeds the builtin rule set on first start, then serves rules
// from the database so API edits survive restarts.
func loadRules(ctx context.Context, repo domain.Repository, ruleEngine *rules.Engine) error {
	dbRules, err := repo.ListRuleConfigs(ctx)
	if err != nil {
		return err
	}

	if len(dbRules) == 0 {
		slog.Info("seeding builtin rules", "count", len(rules.BuiltinRules()))
		for _, rule := range rules.BuiltinRules() {
			if err := repo.SaveRuleConfig(ctx, rule); err != nil {
				return fmt.Errorf("seed rule %s: %w", rule.ID, err)
			}
		}
		dbRules, err = repo.ListRuleConfigs(ctx)
		if err != nil {
			return err
		}
	}

	slog.Info("loading rules from database", "count", len(dbRules))
	return ruleEngine.LoadRules(dbRules)
}

// applyEnvOverrides applies a small set of deployment overrides.
func applyEnvOverrides(cfg *domain.Config) {
	if port := os.Getenv("FRAUD_AGENT_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}
	if path := os.Getenv("FRAUD_AGENT_DB"); path != "" {
		cfg.Repository.SQLitePath = path
	}
	if addr := os.Getenv("FRAUD_AGENT_REDIS"); addr != "" {
		cfg.Cache.RedisAddr = addr
	}
	if url := os.Getenv("FRAUD_AGENT_NATS"); url != "" {
		cfg.EventBus.NATSUrl = url
	}
	if interval := os.Getenv("FRAUD_AGENT_RETRAIN_INTERVAL"); interval != "" {
		if d, err := time.ParseDuration(interval); err == nil {
			cfg.Model.RetrainInterval = d
		}
	}
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  Fraud Detection Agent")
	fmt.Println("  Real-time risk scoring for remittance transactions")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /evaluate        - Score a transaction")
	fmt.Println("    GET  /analyses/{id}   - Get recent analysis by ID")
	fmt.Println("    GET  /metrics         - Agent status snapshot")
	fmt.Println("    GET  /thresholds      - Active risk thresholds")
	fmt.Println("    PUT  /thresholds      - Update risk thresholds")
	fmt.Println("    POST /model/retrain   - Trigger model retraining")
	fmt.Println("    GET  /model/runs      - Recent training runs")
	fmt.Println("    GET  /rules           - List loaded rules")
	fmt.Println("    POST /rules           - Create a new rule")
	fmt.Println("    POST /rules/reload    - Hot-reload rules from database")
	fmt.Println("    GET  /health          - Health check")
	fmt.Println()
}
