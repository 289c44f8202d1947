package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/platformbuilds/mirador-alerting/internal/api"
	"github.com/platformbuilds/mirador-alerting/internal/api/websocket"
	"github.com/platformbuilds/mirador-alerting/internal/config"
	"github.com/platformbuilds/mirador-alerting/internal/services"
	"github.com/platformbuilds/mirador-alerting/pkg/cache"
	"github.com/platformbuilds/mirador-alerting/pkg/logger"
)

const version = "v1.2.0"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger := logger.New(cfg.LogLevel)
	logger.Info("starting mirador-alerting", "version", version, "environment", cfg.Environment)

	// Initialize Valkey caching, falling back to an in-process store when no
	// node is configured
	var valkey cache.Valkey
	if cfg.Cache.Enabled {
		valkey, err = cache.NewValkeyStore(cfg.Cache.Addr, cfg.Cache.DB, cfg.Cache.Password, time.Duration(cfg.Cache.TTL)*time.Second, logger)
		if err != nil {
			logger.Fatal("failed to initialize valkey cache", "error", err)
		}
		logger.Info("valkey cache initialized", "addr", cfg.Cache.Addr)
	} else {
		valkey = cache.NewNoopValkey(logger)
		logger.Warn("valkey disabled, using in-process cache")
	}

	// Wire the alerting pipeline
	integrations := services.NewIntegrationsService(cfg.Integrations, valkey, logger)
	notifier := services.NewNotificationService(integrations, logger)
	executor := services.NewEscalationActionExecutor(integrations, notifier, logger)
	escalation := services.NewEscalationManager(executor, logger)
	correlation := services.NewCorrelationEngine(logger)
	alerting := services.NewAlertingService(cfg.Alerting, correlation, escalation, notifier, valkey, logger)

	// Load the rule spec
	spec, err := config.LoadRulesFile(cfg.Alerting.RulesFile)
	if err != nil {
		logger.Warn("rules file not loaded, falling back to defaults", "path", cfg.Alerting.RulesFile, "error", err)
		spec = config.DefaultRulesSpec()
	}
	if err := alerting.ApplySpec(spec); err != nil {
		logger.Fatal("failed to apply rule spec", "error", err)
	}

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		logger.Info("shutdown signal received")
		cancel()
	}()

	// Live rule reloads
	if cfg.Alerting.WatchRules {
		watcher := config.NewRulesWatcher(cfg.Alerting.RulesFile, logger)
		watcher.OnReload(func(spec *config.RulesSpec) {
			alerting.ReloadSpec(spec)
		})
		go func() {
			if err := watcher.Start(ctx); err != nil {
				logger.Error("rules watcher failed", "error", err)
			}
		}()
		defer watcher.Stop()
	}

	// Websocket hub for live dashboard updates
	hub := websocket.NewHub(logger)
	go hub.Run(ctx)
	alerting.SetBroadcaster(hub)

	// Background escalation and cleanup workers
	alerting.Start(ctx)

	// Start the API server, blocks until shutdown
	apiServer := api.NewServer(cfg, logger, valkey, alerting, escalation, hub)
	if err := apiServer.Start(ctx); err != nil {
		logger.Fatal("server failed", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := alerting.Shutdown(shutdownCtx); err != nil {
		logger.Error("alerting service shutdown", "error", err)
	}

	logger.Info("mirador-alerting shutdown complete")
}
