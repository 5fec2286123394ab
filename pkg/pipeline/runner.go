package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/synaptica-ai/warehouse-etl/pkg/common/config"
	"github.com/synaptica-ai/warehouse-etl/pkg/common/logger"
	"github.com/synaptica-ai/warehouse-etl/pkg/common/models"
	"github.com/synaptica-ai/warehouse-etl/pkg/extraction"
	"github.com/synaptica-ai/warehouse-etl/pkg/normalizer"
	"github.com/synaptica-ai/warehouse-etl/pkg/observability/metrics"
	"github.com/synaptica-ai/warehouse-etl/pkg/transform"
)

const eventSource = "etl-service"

// Trigger values recorded on a run.
const (
	TriggerCLI      = "cli"
	TriggerHTTP     = "http"
	TriggerKafka    = "kafka"
	TriggerSchedule = "schedule"
)

var ErrRunInProgress = errors.New("an etl run is already in progress")

type Loader interface {
	Load(ctx context.Context, batches []transform.Batch) ([]models.TableLoadStats, error)
}

type RunStore interface {
	Create(ctx context.Context, run *models.RunSummary) error
	Save(ctx context.Context, run *models.RunSummary) error
	Get(ctx context.Context, id string) (*models.RunSummary, error)
	Latest(ctx context.Context) (*models.RunSummary, error)
}

// Locker grants the exclusive right to run. Acquire returns ErrRunInProgress
// when another run holds the lock.
type Locker interface {
	Acquire(ctx context.Context) (release func(context.Context) error, err error)
}

type EventPublisher interface {
	PublishEvent(ctx context.Context, eventType string, source string, data map[string]interface{}) error
}

// Runner executes extract, normalize, transform and load as one run.
type Runner struct {
	source      extraction.Source
	layout      config.Layout
	loader      Loader
	transformer *transform.Transformer
	store       RunStore
	locker      Locker
	events      EventPublisher
	dryRun      bool
	now         func() time.Time

	wg sync.WaitGroup
}

type RunnerOption func(*Runner)

func WithTransformer(t *transform.Transformer) RunnerOption {
	return func(r *Runner) { r.transformer = t }
}

func WithRunStore(store RunStore) RunnerOption {
	return func(r *Runner) { r.store = store }
}

func WithLocker(locker Locker) RunnerOption {
	return func(r *Runner) { r.locker = locker }
}

func WithEventPublisher(events EventPublisher) RunnerOption {
	return func(r *Runner) { r.events = events }
}

// WithDryRun stops every run after the transform step.
func WithDryRun(dryRun bool) RunnerOption {
	return func(r *Runner) { r.dryRun = dryRun }
}

func NewRunner(source extraction.Source, layout config.Layout, loader Loader, opts ...RunnerOption) *Runner {
	r := &Runner{
		source: source,
		layout: layout,
		loader: loader,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.transformer == nil {
		r.transformer = transform.NewTransformer()
	}
	if r.locker == nil {
		r.locker = NewLocalLocker()
	}
	return r
}

// Run executes one run synchronously and returns its summary. The summary is
// returned even when the run fails; only a held lock yields a nil summary.
func (r *Runner) Run(ctx context.Context, trigger string) (*models.RunSummary, error) {
	release, err := r.locker.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer r.release(release)

	run := r.newRun(trigger)
	r.create(ctx, run)
	return run, r.execute(ctx, run)
}

// Enqueue records a queued run and executes it in the background. The lock
// is taken before returning, so a second Enqueue fails fast with
// ErrRunInProgress.
func (r *Runner) Enqueue(ctx context.Context, trigger string) (*models.RunSummary, error) {
	release, err := r.locker.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	run := r.newRun(trigger)
	r.create(ctx, run)
	queued := *run

	runCtx := context.WithoutCancel(ctx)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.release(release)
		_ = r.execute(runCtx, run)
	}()

	return &queued, nil
}

// Wait blocks until every enqueued run has finished.
func (r *Runner) Wait() {
	r.wg.Wait()
}

func (r *Runner) newRun(trigger string) *models.RunSummary {
	return &models.RunSummary{
		ID:        uuid.New().String(),
		Trigger:   trigger,
		Status:    models.RunStatusQueued,
		DryRun:    r.dryRun,
		CreatedAt: r.now(),
	}
}

// create records the run in the history store. History is bookkeeping only,
// so a failure is logged and the run goes ahead.
func (r *Runner) create(ctx context.Context, run *models.RunSummary) {
	if r.store == nil {
		return
	}
	if err := r.store.Create(ctx, run); err != nil {
		logger.WithRun(run.ID).WithError(err).Warn("Failed to record run, continuing without history")
	}
}

func (r *Runner) save(ctx context.Context, run *models.RunSummary) {
	if r.store == nil {
		return
	}
	if err := r.store.Save(ctx, run); err != nil {
		logger.WithRun(run.ID).WithError(err).Error("Failed to save run")
	}
}

func (r *Runner) release(release func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := release(ctx); err != nil {
		logger.Log.WithError(err).Warn("Failed to release run lock")
	}
}

func (r *Runner) execute(ctx context.Context, run *models.RunSummary) error {
	log := logger.WithRun(run.ID)
	started := r.now()
	run.Status = models.RunStatusRunning
	run.StartedAt = &started
	r.save(ctx, run)
	log.WithField("trigger", run.Trigger).Info("ETL run started")

	err := r.steps(ctx, run)

	completed := r.now()
	run.CompletedAt = &completed
	eventType := models.EventTypeRunCompleted
	if err != nil {
		run.Status = models.RunStatusFailed
		run.Error = err.Error()
		eventType = models.EventTypeRunFailed
		log.WithError(err).Error("ETL run failed")
	} else {
		run.Status = models.RunStatusCompleted
		totals := run.Totals()
		log.WithFields(map[string]interface{}{
			"extracted": run.TotalExtracted(),
			"inserted":  totals.Inserted,
			"conflicts": totals.Conflicts,
			"failed":    totals.Failed,
			"duration":  run.Duration().String(),
		}).Info("ETL run completed")
	}

	// the run outcome is persisted even if the caller's context is gone
	finishCtx := context.WithoutCancel(ctx)
	r.save(finishCtx, run)
	metrics.ObserveRun(*run)
	r.publish(finishCtx, eventType, run)
	return err
}

func (r *Runner) steps(ctx context.Context, run *models.RunSummary) error {
	raw, missing, err := extraction.Extract(ctx, r.source, r.layout.Source)
	run.MissingTables = missing
	if err != nil {
		return fmt.Errorf("extract: %w", err)
	}
	run.ExtractedRows = make(map[string]int, len(raw))
	for name, rows := range raw {
		run.ExtractedRows[name] = len(rows)
	}

	tables, err := normalizer.Normalize(raw)
	if err != nil {
		return fmt.Errorf("normalize: %w", err)
	}

	result, err := r.transformer.Transform(tables)
	if err != nil {
		return fmt.Errorf("transform: %w", err)
	}
	batches := result.Batches(r.layout.Warehouse)

	if run.DryRun {
		for _, b := range batches {
			logger.WithRun(run.ID).WithFields(map[string]interface{}{
				"table":   b.Table,
				"records": len(b.Records),
			}).Info("Dry run, batch not loaded")
		}
		return nil
	}

	stats, err := r.loader.Load(ctx, batches)
	run.Loaded = stats
	if err != nil {
		return fmt.Errorf("load: %w", err)
	}
	return nil
}

func (r *Runner) publish(ctx context.Context, eventType string, run *models.RunSummary) {
	if r.events == nil {
		return
	}
	data, err := summaryData(run)
	if err != nil {
		logger.WithRun(run.ID).WithError(err).Error("Failed to encode run summary")
		return
	}
	if err := r.events.PublishEvent(ctx, eventType, eventSource, data); err != nil {
		logger.WithRun(run.ID).WithError(err).Warn("Failed to publish run event")
	}
}
