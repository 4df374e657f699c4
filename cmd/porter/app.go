package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/porter-gw/porter/internal/alerts"
	"github.com/porter-gw/porter/internal/api"
	"github.com/porter-gw/porter/internal/config"
	"github.com/porter-gw/porter/internal/events"
	"github.com/porter-gw/porter/internal/lock"
	"github.com/porter-gw/porter/internal/log"
	"github.com/porter-gw/porter/internal/registry"
	"github.com/porter-gw/porter/internal/webhook"
)

func runStart(args []string) int {
	fs := flag.NewFlagSet("start", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "Path to configuration file")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	log.Setup(cfg.Service.LogLevel, cfg.Service.LogFormat)
	logger := log.WithComponent("main")
	logger.Info("porter starting", "version", version, "config", *configPath)

	pidLock, err := lock.Acquire(cfg.Service.LockPath)
	if err != nil {
		logger.Error("failed to acquire PID lock", "path", cfg.Service.LockPath, "error", err)
		return 1
	}
	defer pidLock.Release()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := alerts.Open(ctx, cfg.Alerts.Path, cfg.Alerts.Retention, cfg.Alerts.MaxRows)
	if err != nil {
		logger.Error("failed to open alerts store", "path", cfg.Alerts.Path, "error", err)
		return 1
	}
	defer store.Close()

	hub := events.NewHub(256)
	table := webhook.NewRouteTable()

	regClient, err := registry.NewClient(cfg.Registry.URL, cfg.Registry.Timeout, log.WithComponent("registry"))
	if err != nil {
		logger.Error("invalid registry configuration", "error", err)
		return 1
	}
	syncer := registry.NewSyncer(regClient, table, log.WithComponent("sync"))
	if err := syncer.Load(ctx); err != nil {
		logger.Error("initial registry sync failed", "error", err)
		return 1
	}

	gateway, err := webhook.New(webhook.Config{
		Listen:         cfg.Gateway.Listen,
		ForwardTimeout: cfg.Gateway.ForwardTimeout,
		MaxBodyBytes:   cfg.Gateway.MaxBodyBytes,
		TrustedProxies: cfg.Gateway.TrustedProxies,
	}, table, hub, log.WithComponent("gateway"))
	if err != nil {
		logger.Error("invalid gateway configuration", "error", err)
		return 1
	}

	admin := api.New(api.Config{
		Listen: cfg.API.Listen,
		APIKey: cfg.API.APIKey,
	}, regClient, syncer, table, store, hub, log.WithComponent("api"))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 2)
	go func() {
		if err := gateway.Start(ctx); err != nil && err != context.Canceled {
			errCh <- fmt.Errorf("gateway: %w", err)
		}
	}()
	go func() {
		if err := admin.Start(ctx); err != nil && err != context.Canceled {
			errCh <- fmt.Errorf("api: %w", err)
		}
	}()

	logger.Info("porter running (press Ctrl+C to stop)",
		"gateway", cfg.Gateway.Listen, "api", cfg.API.Listen, "plugins", table.Len())

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	case err := <-errCh:
		logger.Error("component failed", "error", err)
		cancel()
		return 1
	}

	logger.Info("porter stopped")
	return 0
}
