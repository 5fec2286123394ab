package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/synaptica-ai/warehouse-etl/pkg/common/config"
	"github.com/synaptica-ai/warehouse-etl/pkg/common/database"
	"github.com/synaptica-ai/warehouse-etl/pkg/common/httpclient"
	"github.com/synaptica-ai/warehouse-etl/pkg/common/kafka"
	"github.com/synaptica-ai/warehouse-etl/pkg/common/logger"
	"github.com/synaptica-ai/warehouse-etl/pkg/extraction"
	"github.com/synaptica-ai/warehouse-etl/pkg/pipeline"
	"github.com/synaptica-ai/warehouse-etl/pkg/storage"
	"gorm.io/gorm"
)

const retryBackoff = 200 * time.Millisecond

// app owns every connection a command opens.
type app struct {
	runner  *pipeline.Runner
	runs    *pipeline.RunRepository
	closers []func() error
	pingers []func(context.Context) error
}

func newApp(ctx context.Context, cfg *config.Config, dryRun bool) (*app, error) {
	layout, err := config.LoadLayout(cfg.LayoutFile)
	if err != nil {
		return nil, err
	}

	a := &app{}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	source, err := a.openSource(cfg)
	if err != nil {
		return nil, err
	}
	sink, err := a.openSink(cfg, dryRun)
	if err != nil {
		return nil, err
	}

	opts := []pipeline.RunnerOption{
		pipeline.WithDryRun(dryRun),
		pipeline.WithLocker(a.openLocker(ctx, cfg)),
	}
	if a.runs != nil {
		opts = append(opts, pipeline.WithRunStore(a.runs))
	}
	if len(cfg.KafkaBrokers) > 0 && cfg.RunEventsTopic != "" {
		producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.RunEventsTopic, cfg.KafkaWriteTimeout)
		a.closers = append(a.closers, producer.Close)
		opts = append(opts, pipeline.WithEventPublisher(producer))
	}

	a.runner = pipeline.NewRunner(source, layout, storage.NewLoader(sink), opts...)
	ok = true
	return a, nil
}

func (a *app) openSource(cfg *config.Config) (extraction.Source, error) {
	switch cfg.SourceBackend {
	case config.BackendPostgres:
		db, err := a.openPostgres("source", cfg.SourcePostgresDSN)
		if err != nil {
			return nil, err
		}
		return extraction.NewGormSource(db), nil
	case config.BackendREST:
		if cfg.SourceURL == "" {
			return nil, fmt.Errorf("SOURCE_DB_URL is required for the rest backend")
		}
		client := httpclient.New(cfg.HTTPClientTimeout, cfg.SourceKey)
		return extraction.NewRESTSource(cfg.SourceURL, cfg.SourceKey, client,
			extraction.WithRetry(cfg.HTTPRetryAttempts, retryBackoff)), nil
	default:
		return nil, fmt.Errorf("unknown source backend %q", cfg.SourceBackend)
	}
}

func (a *app) openSink(cfg *config.Config, dryRun bool) (storage.Sink, error) {
	switch cfg.WarehouseBackend {
	case config.BackendPostgres:
		db, err := a.openPostgres("warehouse", cfg.WarehousePostgresDSN)
		if err != nil {
			return nil, err
		}
		a.runs = pipeline.NewRunRepository(db)
		return storage.NewWarehouseWriter(db), nil
	case config.BackendREST:
		if cfg.WarehouseURL == "" && !dryRun {
			return nil, fmt.Errorf("WAREHOUSE_DB_URL is required for the rest backend")
		}
		client := httpclient.New(cfg.HTTPClientTimeout, cfg.WarehouseKey)
		return storage.NewRESTWriter(cfg.WarehouseURL, cfg.WarehouseKey, client), nil
	default:
		return nil, fmt.Errorf("unknown warehouse backend %q", cfg.WarehouseBackend)
	}
}

func (a *app) openPostgres(name, dsn string) (*gorm.DB, error) {
	db, err := database.OpenPostgres(name, dsn)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() error { return database.ClosePostgres(db) })
	a.pingers = append(a.pingers, func(ctx context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	})
	return db, nil
}

// openLocker falls back to an in-process lock when redis is unreachable.
func (a *app) openLocker(ctx context.Context, cfg *config.Config) pipeline.Locker {
	client, err := database.OpenRedis(ctx, cfg)
	if err != nil {
		logger.Log.WithError(err).Warn("Redis unavailable, run lock is local to this process")
		return pipeline.NewLocalLocker()
	}
	a.closers = append(a.closers, client.Close)
	return pipeline.NewRedisLocker(client, "", cfg.LockTTL)
}

// ensureRunHistory creates etl_runs when missing. A failure leaves the run
// without history rather than blocking it.
func (a *app) ensureRunHistory() {
	if a.runs == nil {
		return
	}
	if err := a.runs.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Warn("Run history table unavailable")
	}
}

// runStore keeps a nil repository from becoming a non-nil interface.
func (a *app) runStore() pipeline.RunStore {
	if a.runs == nil {
		return nil
	}
	return a.runs
}

func (a *app) readyCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	for _, ping := range a.pingers {
		if err := ping(ctx); err != nil {
			http.Error(w, `{"status":"not ready"}`, http.StatusServiceUnavailable)
			return
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ready"}`))
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			logger.Log.WithError(err).Warn("Failed to close connection")
		}
	}
	a.closers = nil
}
