package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/synaptica-ai/warehouse-etl/pkg/common/logger"
	"github.com/synaptica-ai/warehouse-etl/pkg/common/models"
)

const defaultWriteTimeout = 5 * time.Second

// Producer publishes run lifecycle events. Writes are synchronous and bounded
// by the write timeout.
type Producer struct {
	writer *kafka.Writer
}

func NewProducer(brokers []string, topic string, writeTimeout time.Duration) *Producer {
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}
	return &Producer{writer: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		MaxAttempts:  3,
		WriteTimeout: writeTimeout,
		BatchSize:    1,
	}}
}

func (p *Producer) PublishEvent(ctx context.Context, eventType string, source string, data map[string]interface{}) error {
	message, event, err := encodeEvent(eventType, source, data, time.Now().UTC())
	if err != nil {
		return err
	}

	writeCtx, cancel := context.WithTimeout(ctx, p.writer.WriteTimeout)
	defer cancel()

	fields := map[string]interface{}{
		"event_id":   event.ID,
		"event_type": eventType,
		"topic":      p.writer.Topic,
	}
	if err := p.writer.WriteMessages(writeCtx, message); err != nil {
		logger.Log.WithError(err).WithFields(fields).Error("Failed to publish event")
		return fmt.Errorf("publish %s: %w", eventType, err)
	}
	logger.Log.WithFields(fields).Debug("Event published")
	return nil
}

// encodeEvent wraps data in the event envelope. Run events are keyed by run
// id so every event of one run lands on the same partition.
func encodeEvent(eventType, source string, data map[string]interface{}, now time.Time) (kafka.Message, models.Event, error) {
	event := models.Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Source:    source,
		Data:      data,
		Timestamp: now,
	}

	key := event.ID
	headers := []kafka.Header{
		{Key: "event-type", Value: []byte(eventType)},
		{Key: "source", Value: []byte(source)},
	}
	if runID, ok := data["id"].(string); ok && runID != "" {
		key = runID
		event.Metadata = map[string]string{"run_id": runID}
	}
	if status, ok := data["status"].(string); ok {
		headers = append(headers, kafka.Header{Key: "run-status", Value: []byte(status)})
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, models.Event{}, fmt.Errorf("marshal event: %w", err)
	}
	return kafka.Message{Key: []byte(key), Value: payload, Headers: headers}, event, nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
