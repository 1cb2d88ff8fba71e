// Harrier - Beneficial ownership resolution that deploys in 60 seconds.
// Copyright (c) 2025 opensource.finance
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

	"github.com/opensource-finance/harrier/internal/api"
	"github.com/opensource-finance/harrier/internal/bus"
	"github.com/opensource-finance/harrier/internal/cache"
	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/register"
	"github.com/opensource-finance/harrier/internal/repository"
	"github.com/opensource-finance/harrier/internal/risk"
	"github.com/opensource-finance/harrier/internal/ubo"
	"github.com/opensource-finance/harrier/internal/validate"
	"github.com/opensource-finance/harrier/internal/worker"
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
	if os.Getenv("HARRIER_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Log startup
	slog.Info("starting harrier",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	// Load configuration
	cfg := domain.DefaultConfig()

	// Check for Pro tier via environment
	if os.Getenv("HARRIER_TIER") == "pro" {
		cfg = domain.ProConfig()
		slog.Info("running in Pro tier mode")
	}

	slog.Info("configuration loaded",
		"tier", cfg.Tier,
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

	// Initialize Risk Processor with the stored global profile, if any
	processor, err := risk.NewProcessor(nil)
	if err != nil {
		slog.Error("failed to initialize risk processor", "error", err)
		os.Exit(1)
	}
	processor.SetComplexityDepth(cfg.Resolution.ComplexityMaxDepth)
	if err := loadProfileFromDatabase(ctx, repo, processor); err != nil {
		slog.Error("failed to load risk profile", "error", err)
		os.Exit(1)
	}
	slog.Info("risk processor initialized",
		"profile", processor.Profile().ID,
		"ubo_threshold", processor.UBOThreshold(),
	)

	// Initialize Resolution core
	resolver := ubo.NewResolver(repo, cfg.Resolution.MaxDepth, processor.UBOThreshold())
	validator := validate.New(repo, resolver, cfg.Resolution.MaxDepth)
	registers := register.NewBuilder(resolver)
	slog.Info("resolution core initialized", "max_depth", cfg.Resolution.MaxDepth)

	// Initialize async Worker (Pro tier)
	var asyncWorker *worker.Worker
	if cfg.Tier == domain.TierPro || os.Getenv("HARRIER_ASYNC_WORKER") == "true" {
		asyncWorker = worker.NewWorker(busImpl, repo, cacheImpl, resolver)

		// Get tenant IDs to process (from environment or default)
		tenantIDs := []string{}
		if envTenants := os.Getenv("HARRIER_TENANTS"); envTenants != "" {
			// Could parse comma-separated list here
			tenantIDs = []string{envTenants}
		}

		workerCfg := worker.Config{
			TenantIDs:     tenantIDs,
			WorkerCount:   5,
			ResolutionTTL: cfg.Cache.ResolutionTTL,
		}

		if err := asyncWorker.Start(workerCfg); err != nil {
			slog.Error("failed to start async worker", "error", err)
		} else {
			slog.Info("async worker started", "tenant_count", len(tenantIDs))
		}
	}

	// Initialize Server
	srv := api.NewServer(cfg.Server, repo, cacheImpl, busImpl, resolver, validator, registers, processor, Version)

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("harrier is ready",
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

	slog.Info("harrier shutdown complete")
}

// GlobalTenantID is used for configuration that applies to all tenants.
const GlobalTenantID = "*"

// loadProfileFromDatabase activates the first enabled global risk
// profile. Tenant-specific profiles are activated via POST
// /risk-profiles/reload; without a stored profile the built-in default
// stays active.
func loadProfileFromDatabase(ctx context.Context, repo domain.Repository, processor *risk.Processor) error {
	profiles, err := repo.ListRiskProfiles(ctx, GlobalTenantID)
	if err != nil {
		slog.Warn("failed to list risk profiles from database", "error", err)
		return nil // Start with the default profile - configure via API
	}

	for _, p := range profiles {
		if !p.Enabled {
			continue
		}
		slog.Info("loading risk profile from database", "id", p.ID, "name", p.Name)
		return processor.Reload(p)
	}

	slog.Info("no risk profile in database - configure via POST /risk-profiles API")
	return nil
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════╗")
	fmt.Println("  ║               🦅 HARRIER                  ║")
	fmt.Println("  ║    Beneficial Ownership Resolution        ║")
	fmt.Println("  ║      Eyes on every owner.                 ║")
	fmt.Println("  ╚═══════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /parties                  - Create a party")
	fmt.Println("    POST /edges                    - Create a relationship edge")
	fmt.Println("    POST /parties/{id}/resolve     - Resolve beneficial owners")
	fmt.Println("    GET  /resolutions/{id}         - Get stored resolution")
	fmt.Println("    POST /parties/{id}/validate    - Validate ownership structure")
	fmt.Println("    POST /parties/{id}/risk        - Score compliance risk")
	fmt.Println("    GET  /parties/{id}/register    - Build statutory registers")
	fmt.Println("    GET  /risk-profiles            - List risk profiles")
	fmt.Println("    POST /risk-profiles            - Create a risk profile")
	fmt.Println("    POST /risk-profiles/reload     - Hot-reload a risk profile")
	fmt.Println("    GET  /health                   - Health check")
	fmt.Println()
}
