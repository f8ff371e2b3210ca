package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mohammadpnp/bulk-import/internal/application/batch"
	"github.com/mohammadpnp/bulk-import/internal/application/failure"
	"github.com/mohammadpnp/bulk-import/internal/application/queue"
	"github.com/mohammadpnp/bulk-import/internal/bootstrap"
	"github.com/mohammadpnp/bulk-import/internal/config"
	domain "github.com/mohammadpnp/bulk-import/internal/domain/importjob"
	"github.com/mohammadpnp/bulk-import/internal/infrastructure/db"
	infrafile "github.com/mohammadpnp/bulk-import/internal/infrastructure/file"
	"github.com/mohammadpnp/bulk-import/internal/infrastructure/memory"
	infraredis "github.com/mohammadpnp/bulk-import/internal/infrastructure/redis"
	"github.com/mohammadpnp/bulk-import/internal/infrastructure/repository"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type recordWriter interface {
	ProcessorFor(job domain.ImportJob) func(ctx context.Context, records []domain.Record, batchIndex int) (domain.BatchResult, error)
}

type app struct {
	manager  *queue.Manager
	registry *failure.Handler
	archive  *infraredis.ErrorArchive
	checks   map[string]bootstrap.HealthCheck
	storage  string
	closers  []func()
}

func newApp(cfg *config.AppConfig, logger *slog.Logger) (*app, error) {
	a := &app{checks: make(map[string]bootstrap.HealthCheck)}

	store, writer, err := a.openStorage(cfg, logger)
	if err != nil {
		a.close()
		return nil, err
	}

	var execOpts []failure.ExecutorOption
	if cfg.Redis.URL != "" {
		client, err := infraredis.NewClient(cfg.Redis)
		if err != nil {
			a.close()
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = client.Close() })
		a.checks["redis"] = client.Ping
		a.archive = infraredis.NewErrorArchive(client, cfg.Errors.ArchiveTTL)
		execOpts = append(execOpts, failure.WithArchive(a.archive))
	}

	a.registry = failure.NewHandler(failure.WithLogger(logger))
	executor := failure.NewExecutor(a.registry, append(execOpts, failure.WithExecutorLogger(logger))...)
	engine := batch.NewEngine(executor,
		batch.WithProgressReporter(store),
		batch.WithLogger(logger),
	)
	loader := infrafile.NewLoader(infrafile.NewLocalSource(cfg.Imports.BaseDir))

	a.manager = queue.NewManager(store, loader, engine, executor, queue.Config{
		PollInterval:      cfg.Queue.PollInterval,
		LeaseTimeout:      cfg.Queue.LeaseTimeout,
		DefaultMaxRetries: cfg.Queue.DefaultMaxRetries,
		ErrorMaxAge:       cfg.Errors.MaxAge,
		CleanupAfterDays:  cfg.Queue.CleanupAfterDays,
	}, queue.WithLogger(logger))

	for _, fileType := range infrafile.SupportedTypes {
		a.manager.RegisterProcessor(fileType, func(job domain.ImportJob) batch.Processor {
			return writer.ProcessorFor(job)
		})
	}

	return a, nil
}

// openStorage connects Postgres when a URL is configured and falls back to
// process memory otherwise.
func (a *app) openStorage(cfg *config.AppConfig, logger *slog.Logger) (domain.Store, recordWriter, error) {
	if cfg.Database.URL == "" {
		logger.Warn("database.url is empty, import jobs are kept in memory")
		a.storage = "memory"
		return memory.NewJobStore(), memory.NewRecordStore(), nil
	}

	gormDB, err := gorm.Open(postgres.Open(cfg.Database.URL), &gorm.Config{})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect database: %w", err)
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get sql db: %w", err)
	}
	a.closers = append(a.closers, func() { _ = sqlDB.Close() })
	a.checks["database"] = sqlDB.PingContext

	if err := db.Migrate(sqlDB); err != nil {
		return nil, nil, err
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse database url: %w", err)
	}
	poolCfg.MaxConns = cfg.Database.MaxConns
	if cfg.Database.MinConns > 0 {
		poolCfg.MinConns = cfg.Database.MinConns
	}
	pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}
	a.closers = append(a.closers, pool.Close)

	a.storage = "postgres"
	return repository.NewImportJobRepository(gormDB), repository.NewRecordBulkRepository(pool), nil
}

func (a *app) serverDeps() bootstrap.ServerDeps {
	deps := bootstrap.ServerDeps{
		Queue:    a.manager,
		Registry: a.registry,
		Checks:   a.checks,
	}
	// A nil *ErrorArchive must not become a non-nil interface.
	if a.archive != nil {
		deps.Archive = a.archive
	}
	return deps
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}
