// Package main is the entry point for the stockcore outbox worker. It relays
// events the server wrote to sys_outbox to the external sinks.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"stockcore/internal/domain/events"
	"stockcore/internal/infrastructure/messaging"
	"stockcore/internal/infrastructure/storage/postgres"
	"stockcore/pkg/config"
	"stockcore/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.App.LogLevel,
		Development: cfg.App.IsDevelopment(),
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger.SetDefault(log)
	log = log.WithComponent("worker")

	if cfg.Storage.Driver != config.DriverPostgres {
		log.Fatalw("the outbox worker requires the postgres storage driver", "driver", cfg.Storage.Driver)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithLogger(ctx, log)

	log.Info("starting stockcore outbox worker")

	poolCfg := postgres.DefaultPoolConfig(cfg.Storage.DSN)
	poolCfg.MaxConns = cfg.Storage.MaxConns
	poolCfg.MinConns = cfg.Storage.MinConns
	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()
	txm := postgres.NewTxManager(pool)

	var (
		sinks  []events.Sink
		kafkaW *messaging.KafkaSink
	)
	if cfg.Events.Has(config.SinkWebhook) {
		sinks = append(sinks, messaging.NewWebhookSink(cfg.Events.WebhookURL, cfg.Events.WebhookTimeout))
	}
	if cfg.Events.Has(config.SinkKafka) {
		kafkaW = messaging.NewKafkaSink(cfg.Events.KafkaBrokers, cfg.Events.KafkaTopic)
		sinks = append(sinks, kafkaW)
	}
	if len(sinks) == 0 {
		log.Warn("no external sink configured: relayed events are only logged")
		sinks = append(sinks, events.LogSink{Log: log})
	}

	relay := postgres.NewOutboxRelay(txm, postgres.RelayConfig{
		BatchSize:  cfg.Outbox.BatchSize,
		MaxRetries: cfg.Outbox.MaxRetries,
	}, sinks...)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return relay.Run(gctx, cfg.Outbox.PollInterval)
	})
	g.Go(func() error {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				postgres.LogPoolStats(gctx, pool)
			}
		}
	})

	if err := g.Wait(); err != nil {
		log.Errorw("worker stopped with error", "error", err)
	}
	if kafkaW != nil {
		if err := kafkaW.Close(); err != nil {
			log.Warnw("failed to close kafka writer", "error", err)
		}
	}
	log.Info("worker stopped")
}
