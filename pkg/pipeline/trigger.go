package pipeline

import (
	"context"
	"errors"

	"github.com/synaptica-ai/warehouse-etl/pkg/common/kafka"
	"github.com/synaptica-ai/warehouse-etl/pkg/common/logger"
	"github.com/synaptica-ai/warehouse-etl/pkg/common/models"
)

// TriggerHandler runs the pipeline for every etl.trigger event. Other event
// types, and triggers arriving while a run is active, are acknowledged and
// dropped. A run that started and failed is acknowledged too since its
// outcome is already recorded; only errors before the run began cause
// redelivery.
func TriggerHandler(runner *Runner) kafka.EventHandler {
	return func(ctx context.Context, event models.Event) error {
		if event.Type != models.EventTypeTrigger {
			return nil
		}
		run, err := runner.Run(ctx, TriggerKafka)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, ErrRunInProgress):
			logger.Log.WithField("event_id", event.ID).Info("Trigger ignored, run already in progress")
			return nil
		case run != nil:
			return nil
		default:
			return err
		}
	}
}
