package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/angeloszaimis/kv-failover/config"
	"github.com/angeloszaimis/kv-failover/internal/dispatcher"
	"github.com/angeloszaimis/kv-failover/internal/failoverwatch"
	"github.com/angeloszaimis/kv-failover/internal/handler"
	"github.com/angeloszaimis/kv-failover/internal/httpserver"
	"github.com/angeloszaimis/kv-failover/internal/metrics"
	"github.com/angeloszaimis/kv-failover/internal/store"
	"github.com/angeloszaimis/kv-failover/internal/store/memory"
	"github.com/angeloszaimis/kv-failover/internal/store/redisstore"
	"github.com/angeloszaimis/kv-failover/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("err", err))
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, true, cfg.Server.Environment)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cooldown, err := time.ParseDuration(cfg.Failover.Cooldown)
	if err != nil {
		log.Error("Invalid failover cooldown", slog.Any("err", err))
		os.Exit(1)
	}

	watchInterval, err := time.ParseDuration(cfg.Watch.Interval)
	if err != nil {
		log.Error("Invalid watch interval", slog.Any("err", err))
		os.Exit(1)
	}

	primary, backup, err := buildFactories(cfg)
	if err != nil {
		log.Error("Failed to build cluster factories",
			slog.String("store", cfg.Store.Type),
			slog.Any("err", err))
		os.Exit(1)
	}

	collector := metrics.NewCollector(1024, log)
	collector.Start(ctx)

	registry := dispatcher.NewRegistry(primary, backup, cooldown,
		[]dispatcher.RegistryOption{
			dispatcher.WithOnCreate(func(name string, d *dispatcher.Dispatcher) {
				go failoverwatch.Watch(ctx, name, d, watchInterval, log, collector)
			}),
		},
		dispatcher.WithLogger(log),
		dispatcher.WithThreshold(cfg.Failover.Threshold),
	)

	kvHandler := handler.NewKVHandler(log, registry, collector)

	srv, err := httpserver.New(cfg.Server.Address, setupRouter(kvHandler, collector, cfg.Store.Type))
	if err != nil {
		log.Error("Failed to create server", slog.Any("err", err))
		os.Exit(1)
	}

	log.Info("Failover dispatcher listening",
		slog.String("address", cfg.Server.Address),
		slog.String("store", cfg.Store.Type),
		slog.String("primary", cfg.Clusters.Primary),
		slog.String("backup", cfg.Clusters.Backup),
		slog.Duration("cooldown", cooldown))

	srvErrCh := make(chan error, 1)

	go func() {
		srvErrCh <- srv.Start()
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
		if err := srv.Shutdown(context.Background()); err != nil {
			log.Error("Error during shutdown", slog.Any("err", err))
		}
	case err := <-srvErrCh:
		if err != nil {
			log.Error("Error starting server", slog.Any("err", err))
			os.Exit(1)
		}
	}
}

// buildFactories returns the primary and backup connection factories for
// the configured store backend. Factories stay lazy: nothing connects
// until the dispatcher first needs a handle.
func buildFactories(cfg *config.Config) (primary, backup store.Factory, err error) {
	switch cfg.Store.Type {
	case config.StoreRedis:
		primaryAddr, backupAddr := cfg.Clusters.Primary, cfg.Clusters.Backup
		primary = func() (store.Handle, error) {
			return redisstore.Connect(primaryAddr, 0)
		}
		backup = func() (store.Handle, error) {
			return redisstore.Connect(backupAddr, 0)
		}
		return primary, backup, nil

	case config.StoreMemory:
		primary = func() (store.Handle, error) {
			return memory.New(), nil
		}
		backup = func() (store.Handle, error) {
			return memory.New(), nil
		}
		return primary, backup, nil

	default:
		return nil, nil, os.ErrInvalid
	}
}
