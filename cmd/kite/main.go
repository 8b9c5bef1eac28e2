// Kite - Complaint triage that decides in milliseconds.
// Copyright (c) 2025 opensource.delivery
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/opensource-delivery/kite/internal/api"
	"github.com/opensource-delivery/kite/internal/bus"
	"github.com/opensource-delivery/kite/internal/cache"
	"github.com/opensource-delivery/kite/internal/domain"
	"github.com/opensource-delivery/kite/internal/engine"
	"github.com/opensource-delivery/kite/internal/fraud"
	"github.com/opensource-delivery/kite/internal/history"
	"github.com/opensource-delivery/kite/internal/intel"
	"github.com/opensource-delivery/kite/internal/mailer"
	"github.com/opensource-delivery/kite/internal/ml"
	"github.com/opensource-delivery/kite/internal/policy"
	"github.com/opensource-delivery/kite/internal/repository"
	"github.com/opensource-delivery/kite/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	// Initialize structured logger
	logLevel := slog.LevelInfo
	if os.Getenv("KITE_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Log startup
	slog.Info("starting kite",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	// Load configuration
	cfg, err := domain.LoadConfig(os.Getenv("KITE_CONFIG"))
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	applyEnvOverrides(cfg)

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

	// Initialize Policy Engine
	policyEngine, err := policy.NewEngine()
	if err != nil {
		slog.Error("failed to initialize policy engine", "error", err)
		os.Exit(1)
	}
	if err := loadRules(ctx, cfg.RulesPath, repo, policyEngine); err != nil {
		slog.Error("failed to load rules", "error", err)
		os.Exit(1)
	}
	slog.Info("policy engine initialized", "rules_count", policyEngine.RulesCount())

	// Initialize ML fallback classifier. A missing model bundle is a
	// normal state; the pipeline escalates instead of predicting.
	var classifier ml.Classifier
	if onnx, err := ml.LoadONNXClassifier(cfg.ML.ModelDir, cfg.ML.LibraryPath); err != nil {
		slog.Warn("running without ml classifier", "reason", err)
	} else {
		classifier = onnx
		defer onnx.Close()
		slog.Info("ml classifier loaded", "model_dir", cfg.ML.ModelDir)
	}
	adapter := ml.NewAdapter(classifier)

	// Intelligence, fraud scoring, and customer profiling
	analyzer := intel.NewAnalyzer()
	scorer := fraud.NewScorer(repo, cfg.Fraud)
	profiler := history.NewProfiler(repo, cacheImpl, 5*time.Minute)

	// Decision orchestrator
	orchestrator := engine.New(policyEngine, adapter, analyzer, scorer, profiler)

	// Initialize async Worker for bus-driven classification
	var asyncWorker *worker.Worker
	if os.Getenv("KITE_ASYNC_WORKER") != "false" {
		asyncWorker = worker.NewWorker(busImpl, repo, orchestrator)
		if err := asyncWorker.Start(); err != nil {
			slog.Error("failed to start async worker", "error", err)
		} else {
			slog.Info("async worker started", "topic", domain.TopicComplaintReceived)
		}
	}

	// Decision notification mailer
	mail := mailer.New(cfg.Mailer)
	if mail.Enabled() {
		slog.Info("mailer enabled", "host", cfg.Mailer.Host)
	}

	// Initialize Server
	srv := api.NewServer(cfg.Server, cfg.RateLimit, repo, cacheImpl, busImpl, orchestrator,
		policyEngine, analyzer, profiler, mail, cfg.RulesPath, Version)

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("kite is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	// Stop async worker first
	if asyncWorker != nil {
		if err := asyncWorker.Stop(); err != nil {
			slog.Error("failed to stop async worker", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("kite shutdown complete")
}

// applyEnvOverrides lets deployment environments override the config file
// for the settings that differ between nodes.
func applyEnvOverrides(cfg *domain.Config) {
	if v := os.Getenv("KITE_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("KITE_DB_DRIVER"); v != "" {
		cfg.Repository.Driver = v
	}
	if v := os.Getenv("KITE_SQLITE_PATH"); v != "" {
		cfg.Repository.SQLitePath = v
	}
	if v := os.Getenv("KITE_RULES_PATH"); v != "" {
		cfg.RulesPath = v
	}
	if v := os.Getenv("KITE_REDIS_ADDR"); v != "" {
		cfg.Cache.Type = "redis"
		cfg.Cache.RedisAddr = v
	}
	if v := os.Getenv("KITE_NATS_URL"); v != "" {
		cfg.EventBus.Type = "nats"
		cfg.EventBus.NATSUrl = v
	}
	if v := os.Getenv("KITE_KAFKA_BROKERS"); v != "" {
		cfg.EventBus.Type = "kafka"
		cfg.EventBus.KafkaBrokers = strings.Split(v, ",")
	}
	if v := os.Getenv("KITE_MODEL_DIR"); v != "" {
		cfg.ML.ModelDir = v
	}
}

// loadRules merges file rules with rules persisted via POST /rules.
// File rules keep their declaration order and evaluate first.
func loadRules(ctx context.Context, path string, repo domain.Repository, engine *policy.Engine) error {
	fileRules, err := policy.LoadRulesFile(path)
	if err != nil {
		return err
	}

	dbRules, err := repo.ListRules(ctx)
	if err != nil {
		slog.Warn("failed to list rules from database", "error", err)
		dbRules = nil // Start with file rules only
	}

	engine.LoadRules(append(fileRules, dbRules...))
	return nil
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════╗")
	fmt.Println("  ║                🪁 KITE                     ║")
	fmt.Println("  ║      Complaint Classification Engine      ║")
	fmt.Println("  ║       Every complaint, answered.          ║")
	fmt.Println("  ╚═══════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /classify              - Classify a complaint")
	fmt.Println("    POST /batch/classify        - Classify a CSV of complaints")
	fmt.Println("    POST /rewrite               - Rewrite a complaint professionally")
	fmt.Println("    GET  /complaints            - List classified complaints")
	fmt.Println("    GET  /complaints/{id}       - Get a classification by ID")
	fmt.Println("    GET  /customers/top         - Repeat complainer leaderboard")
	fmt.Println("    GET  /customers/{id}        - Customer risk profile")
	fmt.Println("    POST /feedback              - Record an agent correction")
	fmt.Println("    GET  /analytics/overview    - Complaint dashboard stats")
	fmt.Println("    GET  /analytics/root-causes - Root cause breakdown")
	fmt.Println("    GET  /rules                 - List policy rules")
	fmt.Println("    POST /rules                 - Create a policy rule")
	fmt.Println("    POST /rules/reload          - Hot-reload policy rules")
	fmt.Println("    GET  /health                - Health check")
	fmt.Println()
}
