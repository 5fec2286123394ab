package pipeline

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synaptica-ai/warehouse-etl/pkg/common/config"
	"github.com/synaptica-ai/warehouse-etl/pkg/common/logger"
	"github.com/synaptica-ai/warehouse-etl/pkg/common/models"
	"github.com/synaptica-ai/warehouse-etl/pkg/pricing"
	"github.com/synaptica-ai/warehouse-etl/pkg/transform"
)

func init() {
	logger.InitWithOutput(io.Discard)
}

type mapSource struct {
	mu     sync.Mutex
	tables map[string][]map[string]interface{}
	fail   map[string]error
	block  chan struct{}
}

func (s *mapSource) FetchTable(ctx context.Context, name string) ([]map[string]interface{}, error) {
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.fail[name]; ok {
		return nil, err
	}
	return s.tables[name], nil
}

func hospitalSource() *mapSource {
	return &mapSource{tables: map[string][]map[string]interface{}{
		"patient": {
			{"patient_code": int64(1), "patient_name": "Ana", "phone_number": "555\r\n0101"},
		},
		"doctor": {
			{"npi_number": int64(1001), "doctor_name": "Gray", "speciality_id": int64(7)},
		},
		"speciality": {
			{"speciality_id": int64(7), "name": "Cardiology"},
		},
		"admission": {
			{"patient_code": int64(1), "admission_datetime": "2021-01-01", "discharge_datetime": "2021-01-03"},
		},
		"stay_daily_cost": {
			{"price_date_from": "2020-01-01", "price": 100.0},
		},
		"test_admission": {
			{"patient_code": int64(1), "npi_number": int64(1001), "test_code": int64(3),
				"admission_datetime": "2021-01-02", "test_datetime": "2021-01-02"},
		},
		"test": {
			{"test_code": int64(3), "test_name": "MRI"},
		},
		"test_cost": {
			{"test_code": int64(3), "price_date_from": "2020-01-01", "price": 40.0},
		},
	}}
}

type recordingLoader struct {
	mu      sync.Mutex
	batches []transform.Batch
	err     error
}

func (l *recordingLoader) Load(_ context.Context, batches []transform.Batch) ([]models.TableLoadStats, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.batches = batches
	stats := make([]models.TableLoadStats, 0, len(batches))
	for _, b := range batches {
		stats = append(stats, models.TableLoadStats{Table: b.Table, Attempted: len(b.Records), Inserted: len(b.Records)})
	}
	return stats, l.err
}

type memoryStore struct {
	mu   sync.Mutex
	runs map[string]models.RunSummary
	seq  []string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{runs: map[string]models.RunSummary{}}
}

func (s *memoryStore) Create(_ context.Context, run *models.RunSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.ID] = *run
	s.seq = append(s.seq, run.ID)
	return nil
}

func (s *memoryStore) Save(_ context.Context, run *models.RunSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.ID] = *run
	return nil
}

func (s *memoryStore) Get(_ context.Context, id string) (*models.RunSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok {
		return nil, ErrRunNotFound
	}
	return &run, nil
}

func (s *memoryStore) Latest(ctx context.Context) (*models.RunSummary, error) {
	s.mu.Lock()
	if len(s.seq) == 0 {
		s.mu.Unlock()
		return nil, ErrRunNotFound
	}
	id := s.seq[len(s.seq)-1]
	s.mu.Unlock()
	return s.Get(ctx, id)
}

// brokenStore fails every write, as a warehouse without etl_runs would.
type brokenStore struct {
	*memoryStore
}

func (s *brokenStore) Create(context.Context, *models.RunSummary) error {
	return errors.New(`relation "etl_runs" does not exist`)
}

func (s *brokenStore) Save(context.Context, *models.RunSummary) error {
	return errors.New(`relation "etl_runs" does not exist`)
}

type publishedEvent struct {
	eventType string
	data      map[string]interface{}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *recordingPublisher) PublishEvent(_ context.Context, eventType, _ string, data map[string]interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{eventType: eventType, data: data})
	return nil
}

func fixedTransformer() *transform.Transformer {
	return transform.NewTransformer(
		transform.WithClock(func() time.Time { return time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC) }),
	)
}

func TestRunLoadsEveryBatch(t *testing.T) {
	loader := &recordingLoader{}
	store := newMemoryStore()
	events := &recordingPublisher{}
	runner := NewRunner(hospitalSource(), config.DefaultLayout(), loader,
		WithRunStore(store), WithEventPublisher(events), WithTransformer(fixedTransformer()))

	run, err := runner.Run(context.Background(), TriggerCLI)
	require.NoError(t, err)
	require.NotNil(t, run)

	assert.Equal(t, models.RunStatusCompleted, run.Status)
	assert.Equal(t, TriggerCLI, run.Trigger)
	assert.Equal(t, 8, run.TotalExtracted())
	assert.Empty(t, run.MissingTables)
	require.NotNil(t, run.StartedAt)
	require.NotNil(t, run.CompletedAt)

	require.Len(t, loader.batches, 7)
	assert.Equal(t, "dim_date", loader.batches[0].Table)
	stay := loader.batches[5].Records[0]
	assert.Equal(t, 300.0, stay["total_stay_cost"])
	assert.Equal(t, 1, stay["amount_of_test_taken"])
	assert.Equal(t, 340.0, stay["total_cost"])

	patient := loader.batches[3].Records[0]
	assert.Equal(t, "555 0101", patient["phone_number"])

	stored, err := store.Get(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, stored.Status)
	assert.Len(t, stored.Loaded, 7)

	require.Len(t, events.events, 1)
	assert.Equal(t, models.EventTypeRunCompleted, events.events[0].eventType)
	assert.Equal(t, run.ID, events.events[0].data["id"])
}

func TestDryRunSkipsLoading(t *testing.T) {
	loader := &recordingLoader{}
	runner := NewRunner(hospitalSource(), config.DefaultLayout(), loader, WithDryRun(true))

	run, err := runner.Run(context.Background(), TriggerCLI)
	require.NoError(t, err)
	assert.True(t, run.DryRun)
	assert.Equal(t, models.RunStatusCompleted, run.Status)
	assert.Nil(t, loader.batches)
	assert.Empty(t, run.Loaded)
}

func TestRunFailsOnMissingTable(t *testing.T) {
	src := hospitalSource()
	src.fail = map[string]error{"test_cost": errors.New("permission denied")}
	loader := &recordingLoader{}
	events := &recordingPublisher{}
	runner := NewRunner(src, config.DefaultLayout(), loader, WithEventPublisher(events))

	run, err := runner.Run(context.Background(), TriggerCLI)
	require.Error(t, err)
	require.NotNil(t, run)
	assert.Equal(t, models.RunStatusFailed, run.Status)
	assert.Equal(t, []string{"test_cost"}, run.MissingTables)
	assert.NotEmpty(t, run.Error)
	assert.Nil(t, loader.batches)

	require.Len(t, events.events, 1)
	assert.Equal(t, models.EventTypeRunFailed, events.events[0].eventType)
}

func TestRunFailsWithoutApplicablePrice(t *testing.T) {
	src := hospitalSource()
	src.tables["stay_daily_cost"] = []map[string]interface{}{
		{"price_date_from": "2022-01-01", "price": 100.0},
	}
	loader := &recordingLoader{}
	runner := NewRunner(src, config.DefaultLayout(), loader)

	run, err := runner.Run(context.Background(), TriggerCLI)
	require.ErrorIs(t, err, pricing.ErrNoApplicablePrice)
	assert.Equal(t, models.RunStatusFailed, run.Status)
	assert.Nil(t, loader.batches)
}

func TestRunFailsOnUnknownDoctor(t *testing.T) {
	src := hospitalSource()
	src.tables["doctor"] = nil

	run, err := NewRunner(src, config.DefaultLayout(), &recordingLoader{}).Run(context.Background(), TriggerCLI)
	require.ErrorIs(t, err, transform.ErrUnknownDoctor)
	assert.Equal(t, models.RunStatusFailed, run.Status)
}

func TestRunRecordsLoaderError(t *testing.T) {
	loader := &recordingLoader{err: context.DeadlineExceeded}
	run, err := NewRunner(hospitalSource(), config.DefaultLayout(), loader).Run(context.Background(), TriggerCLI)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, models.RunStatusFailed, run.Status)
	assert.Len(t, run.Loaded, 7)
}

func TestEnqueueRunsInBackground(t *testing.T) {
	store := newMemoryStore()
	loader := &recordingLoader{}
	runner := NewRunner(hospitalSource(), config.DefaultLayout(), loader, WithRunStore(store))

	queued, err := runner.Enqueue(context.Background(), TriggerHTTP)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusQueued, queued.Status)

	runner.Wait()

	stored, err := store.Get(context.Background(), queued.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, stored.Status)
	assert.Equal(t, TriggerHTTP, stored.Trigger)
}

func TestOnlyOneRunAtATime(t *testing.T) {
	src := hospitalSource()
	src.block = make(chan struct{})
	runner := NewRunner(src, config.DefaultLayout(), &recordingLoader{})

	_, err := runner.Enqueue(context.Background(), TriggerHTTP)
	require.NoError(t, err)

	_, err = runner.Enqueue(context.Background(), TriggerHTTP)
	assert.ErrorIs(t, err, ErrRunInProgress)
	_, err = runner.Run(context.Background(), TriggerCLI)
	assert.ErrorIs(t, err, ErrRunInProgress)

	close(src.block)
	runner.Wait()

	run, err := runner.Run(context.Background(), TriggerCLI)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, run.Status)
}

func TestRunSummaryRoundTripsThroughJSON(t *testing.T) {
	run, err := NewRunner(hospitalSource(), config.DefaultLayout(), &recordingLoader{}).Run(context.Background(), TriggerCLI)
	require.NoError(t, err)

	model, err := runToModel(run)
	require.NoError(t, err)
	back, err := modelToRun(model)
	require.NoError(t, err)

	assert.Equal(t, run.ID, back.ID)
	assert.Equal(t, run.Status, back.Status)
	assert.Equal(t, run.ExtractedRows, back.ExtractedRows)
	assert.Equal(t, run.Loaded, back.Loaded)

	var tables []string
	for name := range back.ExtractedRows {
		tables = append(tables, name)
	}
	sort.Strings(tables)
	assert.Len(t, tables, 8)
}

func TestRunLoadsEvenWhenHistoryIsUnavailable(t *testing.T) {
	loader := &recordingLoader{}
	store := &brokenStore{memoryStore: newMemoryStore()}
	runner := NewRunner(hospitalSource(), config.DefaultLayout(), loader, WithRunStore(store))

	run, err := runner.Run(context.Background(), TriggerCLI)
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, models.RunStatusCompleted, run.Status)
	assert.Len(t, loader.batches, 7)
	assert.Equal(t, 8, run.TotalExtracted())
}

func TestEnqueueProceedsWhenHistoryIsUnavailable(t *testing.T) {
	loader := &recordingLoader{}
	store := &brokenStore{memoryStore: newMemoryStore()}
	runner := NewRunner(hospitalSource(), config.DefaultLayout(), loader, WithRunStore(store))

	queued, err := runner.Enqueue(context.Background(), TriggerHTTP)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusQueued, queued.Status)

	runner.Wait()
	loader.mu.Lock()
	defer loader.mu.Unlock()
	assert.Len(t, loader.batches, 7)
}
