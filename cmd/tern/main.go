// Tern - Cart promotions that deploy in 60 seconds.
// Copyright (c) 2025 opensource.commerce
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/opensource-commerce/tern/internal/api"
	"github.com/opensource-commerce/tern/internal/bus"
	"github.com/opensource-commerce/tern/internal/cache"
	"github.com/opensource-commerce/tern/internal/checkout"
	"github.com/opensource-commerce/tern/internal/domain"
	"github.com/opensource-commerce/tern/internal/repository"
	"github.com/opensource-commerce/tern/internal/rules"
	"github.com/opensource-commerce/tern/internal/worker"
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
	if os.Getenv("TERN_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Log startup
	slog.Info("starting tern",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	// Load configuration
	cfg := domain.DefaultConfig()

	// Check for Pro tier via environment
	if os.Getenv("TERN_TIER") == "pro" {
		cfg = domain.ProConfig()
		slog.Info("running in Pro tier mode")
	}

	// Optional YAML config overrides the tier defaults
	if path := os.Getenv("TERN_CONFIG"); path != "" {
		loaded, err := domain.LoadConfig(path, cfg)
		if err != nil {
			slog.Error("failed to load config file", "path", path, "error", err)
			os.Exit(1)
		}
		cfg = loaded
		slog.Info("config file loaded", "path", path)
	}

	if os.Getenv("TERN_SEED_DEMO") == "true" {
		cfg.Repository.SeedDemo = true
	}

	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"engine", cfg.Engine.Mode,
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

	if cfg.Repository.SeedDemo {
		if err := repository.SeedDemo(ctx, repo); err != nil {
			slog.Error("failed to seed demo data", "error", err)
			os.Exit(1)
		}
		slog.Info("demo data seeded")
	}

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

	// Initialize rule evaluator
	var evaluator rules.Evaluator
	switch cfg.Engine.Mode {
	case "remote":
		client := &http.Client{
			Timeout: time.Duration(cfg.Engine.TimeoutSeconds) * time.Second,
		}
		remote := rules.NewRemoteEvaluator(cfg.Engine.URL, client)
		if err := remote.Health(ctx); err != nil {
			slog.Warn("remote rule engine not reachable at startup",
				"url", cfg.Engine.URL,
				"error", err,
			)
		}
		evaluator = remote
	default:
		evaluator = rules.NewLocalEvaluator()
	}
	slog.Info("rule evaluator initialized", "mode", cfg.Engine.Mode)

	// Cached rule reads with invalidation on rule writes
	ruleCache := cache.NewCachedRuleStore(repo, cacheImpl, cfg.Cache.RuleTTL)

	// Initialize checkout service
	svc := checkout.NewService(ruleCache, repo, evaluator, busImpl)
	slog.Info("checkout service initialized")

	// Initialize application tracker
	tracker := worker.NewWorker(busImpl, cacheImpl, worker.Config{
		DailyApplicationAlert: cfg.Evaluation.DailyApplicationAlert,
	})
	if err := tracker.Start(); err != nil {
		slog.Error("failed to start application tracker", "error", err)
	}

	// Initialize Server
	handler := api.NewHandler(repo, cacheImpl, svc, ruleCache, Version,
		time.Duration(cfg.Evaluation.TimeoutSeconds)*time.Second)
	srv := api.NewServer(cfg.Server, handler)

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("tern is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	// Stop the tracker first so in-flight events drain
	if err := tracker.Stop(); err != nil {
		slog.Error("failed to stop application tracker", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("tern shutdown complete")
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════╗")
	fmt.Println("  ║                🐦 TERN                    ║")
	fmt.Println("  ║       Cart Promotion Rule Engine          ║")
	fmt.Println("  ║      Every discount, accounted for.       ║")
	fmt.Println("  ╚═══════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Engine:   %s\n", cfg.Engine.Mode)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST   /evaluate                 - Evaluate a cart line")
	fmt.Println("    GET    /rules                    - List all rules")
	fmt.Println("    POST   /rules                    - Create a new rule")
	fmt.Println("    GET    /rules/{id}               - Get a rule")
	fmt.Println("    PUT    /rules/{id}               - Update a rule")
	fmt.Println("    DELETE /rules/{id}               - Delete a rule")
	fmt.Println("    GET    /rules/{id}/applications  - Rule audit trail")
	fmt.Println("    GET    /products                 - List products")
	fmt.Println("    GET    /customers                - List customers")
	fmt.Println("    GET    /categories               - List categories")
	fmt.Println("    GET    /health                   - Health check")
	fmt.Println()
}
