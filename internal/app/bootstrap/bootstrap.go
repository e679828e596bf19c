package bootstrap

import (
	"context"
	"log/slog"
	"strings"
	"time"

	governanceengine "consortium/contexts/governance/governance-engine"
	"consortium/contexts/governance/governance-engine/adapters/genesis"
	postgresadapter "consortium/contexts/governance/governance-engine/adapters/postgres"
	"consortium/contexts/governance/governance-engine/application/workers"
	"consortium/internal/platform/config"
	"consortium/internal/platform/db"
	"consortium/internal/platform/httpserver"
	"consortium/internal/platform/messaging"
	"consortium/internal/platform/metrics"

	contractsv1 "consortium/contracts/gen/events/v1"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

var auditTopics = []string{
	"governance.transaction.executed",
	"governance.member.added",
	"governance.member.removed",
	"governance.implementation.upgraded",
}

type APIApp struct {
	server   *httpserver.Server
	postgres *db.Postgres
	logger   *slog.Logger
}

type WorkerApp struct {
	postgres     *db.Postgres
	bus          *messaging.Kafka
	outboxRelay  workers.OutboxRelay
	keeper       workers.TimeoutKeeper
	metrics      *metrics.Governance
	cfg          config.Config
	pollInterval time.Duration
	logger       *slog.Logger
}

// governance wires the engine against Postgres when a DSN is configured and
// against the in-memory store otherwise, then seeds it from genesis.
func governance(ctx context.Context, cfg config.Config, m *metrics.Governance, logger *slog.Logger) (governanceengine.Module, *db.Postgres, error) {
	doc, err := genesis.Load(cfg.GenesisPath)
	if err != nil {
		return governanceengine.Module{}, nil, err
	}
	g, err := genesis.Resolve(doc, cfg.Governance())
	if err != nil {
		return governanceengine.Module{}, nil, err
	}

	var (
		module governanceengine.Module
		pg     *db.Postgres
	)
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		logger.Warn("POSTGRES_DSN is empty, governance state is kept in memory",
			"event", "bootstrap_governance_in_memory",
			"module", "internal/app/bootstrap",
			"layer", "platform",
		)
		module = governanceengine.NewInMemoryModule(cfg.Governance(), logger)
	} else {
		pg, err = db.Connect(db.Options{
			DSN:             cfg.PostgresDSN,
			MaxOpenConns:    cfg.DBMaxOpenConns,
			ConnMaxLifetime: cfg.DBConnMaxLifetime,
		}, logger)
		if err != nil {
			return governanceengine.Module{}, nil, err
		}
		repo := postgresadapter.NewRepository(pg.DB, logger)
		if cfg.AutoMigrate {
			if err := repo.AutoMigrate(ctx); err != nil {
				_ = pg.Close()
				return governanceengine.Module{}, nil, err
			}
		}
		module = governanceengine.NewModule(governanceengine.Dependencies{
			Repository:      repo,
			Outbox:          repo,
			Idempotency:     repo,
			Metrics:         m,
			Clock:           postgresadapter.SystemClock{},
			IDGen:           postgresadapter.UUIDGenerator{},
			Self:            cfg.Governance(),
			Implementations: cfg.ValidImplementations(),
			IdempotencyTTL:  cfg.IdempotencyTTL,
			Logger:          logger,
		})
	}
	if module.Store != nil {
		module.Governance.Metrics = m
		for _, impl := range cfg.ValidImplementations() {
			module.Proxy.MarkValid(impl)
		}
	}

	if err := module.Seed(ctx, g); err != nil {
		if pg != nil {
			_ = pg.Close()
		}
		return governanceengine.Module{}, nil, err
	}
	return module, pg, nil
}

func BuildAPI() (*APIApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "api")
	m := metrics.NewGovernance()
	module, pg, err := governance(context.Background(), cfg, m, logger)
	if err != nil {
		return nil, err
	}

	server := httpserver.New(module, m.Handler(), logger, normalizeAddr(cfg.HTTPPort))
	return &APIApp{
		server:   server,
		postgres: pg,
		logger:   logger,
	}, nil
}

// BuildWorker wires the outbox relay and the timeout keeper. Without a DSN
// both run against the worker's own in-memory store.
func BuildWorker() (*WorkerApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "worker")
	m := metrics.NewGovernance()
	module, pg, err := governance(context.Background(), cfg, m, logger)
	if err != nil {
		return nil, err
	}

	kafka, err := messaging.NewKafka(cfg.KafkaBrokers, logger)
	if err != nil {
		return nil, multierror.Append(err, pg.Close()).ErrorOrNil()
	}

	app := &WorkerApp{
		postgres:     pg,
		bus:          kafka,
		keeper:       module.TimeoutKeeper(postgresadapter.SystemClock{}, cfg.TimeoutBatchSize, logger),
		metrics:      m,
		cfg:          cfg,
		pollInterval: cfg.WorkerPollInterval,
		logger:       logger,
	}
	app.outboxRelay = workers.OutboxRelay{
		Publisher: kafka,
		Clock:     postgresadapter.SystemClock{},
		BatchSize: cfg.OutboxBatchSize,
		Logger:    logger,
	}
	if module.Store != nil {
		app.outboxRelay.Outbox = module.Store
	} else {
		app.outboxRelay.Outbox = postgresadapter.NewRepository(pg.DB, logger)
	}
	return app, nil
}

func (a *APIApp) Run(ctx context.Context) error {
	a.logger.Info("api app started",
		"event", "bootstrap_api_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
	)
	group, ctx := errgroup.WithContext(ctx)
	group.Go(a.server.Start)
	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return a.server.Shutdown(shutdownCtx)
	})
	return group.Wait()
}

func (a *APIApp) Close() error {
	if a.postgres != nil {
		return a.postgres.Close()
	}
	return nil
}

func (w *WorkerApp) Run(ctx context.Context) error {
	for _, topic := range auditTopics {
		if err := w.bus.Subscribe(ctx, topic, "governance-audit", w.audit); err != nil {
			return err
		}
	}

	w.logger.Info("worker app started",
		"event", "bootstrap_worker_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"poll_interval", w.pollInterval.String(),
		"timeout_keeper", w.cfg.EnableTimeoutKeeper,
		"outbox_relay", w.cfg.EnableOutboxRelay,
	)

	group, ctx := errgroup.WithContext(ctx)
	if w.cfg.EnableTimeoutKeeper {
		group.Go(func() error {
			return w.loop(ctx, "timeout_keeper", w.keeper.RunOnce)
		})
	}
	if w.cfg.EnableOutboxRelay {
		group.Go(func() error {
			return w.loop(ctx, "outbox_relay", func(ctx context.Context) (int, error) {
				n, err := w.outboxRelay.RunOnce(ctx)
				w.metrics.ObserveOutboxPublished(n)
				return n, err
			})
		})
	}
	return group.Wait()
}

// loop runs step on every tick. Step failures are logged and retried on the
// next tick; only cancellation stops the loop.
func (w *WorkerApp) loop(ctx context.Context, name string, step func(context.Context) (int, error)) error {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()
	for {
		if n, err := step(ctx); err != nil {
			w.logger.Error("worker step failed",
				"event", "bootstrap_worker_step_failed",
				"module", "internal/app/bootstrap",
				"layer", "platform",
				"worker", name,
				"error", err.Error(),
			)
		} else if n > 0 {
			w.logger.Debug("worker step completed",
				"event", "bootstrap_worker_step_completed",
				"module", "internal/app/bootstrap",
				"layer", "platform",
				"worker", name,
				"processed", n,
			)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (w *WorkerApp) audit(_ context.Context, event contractsv1.Envelope) error {
	w.logger.Info("governance event observed",
		"event", "bootstrap_worker_audit",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"event_type", event.EventType,
		"event_id", event.EventID,
		"partition_key", event.PartitionKey,
		"occurred_at", event.OccurredAt,
	)
	return nil
}

func (w *WorkerApp) Close() error {
	var result *multierror.Error
	if w.postgres != nil {
		if err := w.postgres.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

func normalizeAddr(port string) string {
	value := strings.TrimSpace(port)
	if value == "" {
		return ":8080"
	}
	if strings.HasPrefix(value, ":") {
		return value
	}
	return ":" + value
}
