// Package main is the entry point for the stockcore API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"stockcore/internal/app"
	"stockcore/internal/domain/auth"
	"stockcore/internal/domain/catalog"
	"stockcore/internal/domain/events"
	"stockcore/internal/infrastructure/cache"
	v1 "stockcore/internal/infrastructure/http/v1"
	"stockcore/internal/infrastructure/messaging"
	"stockcore/internal/infrastructure/storage/memory"
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
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithLogger(ctx, log)

	log.Infow("starting stockcore server", "env", cfg.App.Env, "storage", cfg.Storage.Driver)

	// --- Storage ---
	var (
		storage app.Storage
		pool    *postgres.Pool
		txm     *postgres.TxManager
	)
	switch cfg.Storage.Driver {
	case config.DriverPostgres:
		poolCfg := postgres.DefaultPoolConfig(cfg.Storage.DSN)
		poolCfg.MaxConns = cfg.Storage.MaxConns
		poolCfg.MinConns = cfg.Storage.MinConns
		pool, err = postgres.NewPool(ctx, poolCfg)
		if err != nil {
			log.Fatalw("failed to connect to database", "error", err)
		}
		defer pool.Close()
		txm = postgres.NewTxManager(pool)
		storage = app.PostgresStorage(pool, txm)
		if cfg.Storage.CatalogCache {
			cached := cache.NewDirectory(storage.Directory)
			cached.Listen(ctx, pool.Pool)
			defer cached.Stop()
			storage.Directory = cached
		}
		log.Info("database connection established")
	default:
		directory, err := memoryDirectory(cfg.Storage.FixturesPath)
		if err != nil {
			log.Fatalw("failed to load catalog fixtures", "path", cfg.Storage.FixturesPath, "error", err)
		}
		storage = app.MemoryStorage(directory)
		log.Warn("memory storage: state is lost on restart")
	}

	// --- Events ---
	sinks, closers, audit, err := buildSinks(cfg, log, txm)
	if err != nil {
		log.Fatalw("failed to configure event sinks", "error", err)
	}
	dispatcher := events.NewDispatcher(events.DispatcherConfig{
		BufferSize:      cfg.Events.BufferSize,
		Workers:         cfg.Events.Workers,
		DeliveryTimeout: cfg.Events.WebhookTimeout,
	}, log, sinks...)

	core := app.NewCore(storage, dispatcher)

	// --- Router ---
	routerCfg := v1.RouterConfig{
		Logger:             log,
		Services:           core.Services(),
		StorageDriver:      cfg.Storage.Driver,
		ExpiringWindowDays: cfg.Jobs.ExpiringWindowDays,
		Development:        cfg.App.IsDevelopment(),
	}
	if pool != nil {
		routerCfg.Storage = pool
	}
	if audit != nil {
		routerCfg.Audit = audit
	}
	if cfg.Auth.JWTSecret != "" {
		jwtCfg := auth.DefaultJWTConfig(cfg.Auth.JWTSecret)
		jwtCfg.Issuer = cfg.Auth.Issuer
		routerCfg.TokenValidator = auth.NewJWTService(jwtCfg)
	} else {
		log.Warn("JWT secret not set: API accepts X-Actor-ID without authentication")
	}

	server := &http.Server{
		Addr:         cfg.App.Addr(),
		Handler:      v1.NewRouter(routerCfg),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Infow("server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return core.Batches.RunExpiryScan(gctx, dispatcher, cfg.Jobs.ExpiryScanInterval, cfg.Jobs.ExpiringWindowDays)
	})

	g.Go(func() error {
		return runReconcile(gctx, core, cfg.Jobs.ReconcileInterval)
	})

	// --- Graceful shutdown ---
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Errorw("server forced to shutdown", "error", err)
		}
		if err := dispatcher.Close(shutdownCtx); err != nil {
			log.Warnw("event dispatcher did not drain", "error", err)
		}
		for _, c := range closers {
			if err := c(); err != nil {
				log.Warnw("failed to close sink", "error", err)
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Errorw("server stopped with error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

func memoryDirectory(path string) (catalog.Directory, error) {
	if path == "" {
		return memory.NewDirectory(), nil
	}
	return memory.LoadDirectory(path)
}

// buildSinks creates the configured event sinks. closers release the sinks
// that hold connections; audit is set when the audit sink is enabled.
func buildSinks(cfg *config.Config, log *logger.Logger, txm *postgres.TxManager) (
	sinks []events.Sink, closers []func() error, audit *postgres.AuditSink, err error,
) {
	for _, name := range cfg.Events.Sinks {
		switch name {
		case config.SinkLog:
			sinks = append(sinks, events.LogSink{Log: log})
		case config.SinkWebhook:
			sinks = append(sinks, messaging.NewWebhookSink(cfg.Events.WebhookURL, cfg.Events.WebhookTimeout))
		case config.SinkKafka:
			k := messaging.NewKafkaSink(cfg.Events.KafkaBrokers, cfg.Events.KafkaTopic)
			sinks = append(sinks, k)
			closers = append(closers, k.Close)
		case config.SinkOutbox:
			sinks = append(sinks, postgres.NewOutboxSink(txm))
		case config.SinkAudit:
			audit, err = postgres.NewAuditSink(txm)
			if err != nil {
				return nil, nil, nil, err
			}
			sinks = append(sinks, audit)
		default:
			return nil, nil, nil, fmt.Errorf("unknown event sink %q", name)
		}
	}
	return sinks, closers, audit, nil
}

// runReconcile periodically checks every projection against its movements.
// Discrepancies are logged; repair is an operator decision.
func runReconcile(ctx context.Context, core *app.Core, interval time.Duration) error {
	if interval <= 0 {
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		found, err := core.Ledger.ReconcileAll(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Error(ctx, "reconcile failed", "error", err)
			continue
		}
		for _, d := range found {
			logger.Warn(ctx, "stock discrepancy", "key", d.Key, "reason", d.Reason)
		}
		if len(found) == 0 {
			logger.Debug(ctx, "reconcile clean")
		}
	}
}
