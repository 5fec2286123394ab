package storage

import (
	"context"

	"github.com/synaptica-ai/warehouse-etl/pkg/common/logger"
	"github.com/synaptica-ai/warehouse-etl/pkg/common/models"
	"github.com/synaptica-ai/warehouse-etl/pkg/transform"
)

// Loader writes transform batches into a Sink one record at a time. Duplicate
// keys are counted as conflicts; any other failure is logged and the record
// is skipped. Only context cancellation stops a load early.
type Loader struct {
	sink Sink
}

func NewLoader(sink Sink) *Loader {
	return &Loader{sink: sink}
}

func (l *Loader) Load(ctx context.Context, batches []transform.Batch) ([]models.TableLoadStats, error) {
	stats := make([]models.TableLoadStats, 0, len(batches))
	for _, batch := range batches {
		s, err := l.loadBatch(ctx, batch)
		stats = append(stats, s)
		if err != nil {
			return stats, err
		}
		logger.Log.WithFields(map[string]interface{}{
			"table":     s.Table,
			"attempted": s.Attempted,
			"inserted":  s.Inserted,
			"conflicts": s.Conflicts,
			"failed":    s.Failed,
		}).Info("Loaded batch")
	}
	return stats, nil
}

func (l *Loader) loadBatch(ctx context.Context, batch transform.Batch) (models.TableLoadStats, error) {
	s := models.TableLoadStats{Table: batch.Table}
	for i, record := range batch.Records {
		if err := ctx.Err(); err != nil {
			return s, err
		}
		s.Attempted++

		err := l.sink.Upsert(ctx, batch.Table, record)
		switch {
		case err == nil:
			s.Inserted++
		case IsConflict(err):
			s.Conflicts++
			logger.Log.WithFields(map[string]interface{}{
				"table": batch.Table,
				"index": i,
			}).Info("Record already exists, skipped")
		default:
			if ctx.Err() != nil {
				s.Attempted--
				return s, ctx.Err()
			}
			s.Failed++
			logger.Log.WithError(err).WithFields(map[string]interface{}{
				"table": batch.Table,
				"index": i,
			}).Warn("Failed to load record")
		}
	}
	return s, nil
}
