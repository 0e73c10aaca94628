// Package events publishes ledger facts (committed batches, shipments, deleted lots)
// for downstream consumers. Publishing is best-effort: the ledger is the record.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Event types.
const (
	TypeBatchCommitted = "batch.committed"
	TypeShipment       = "shipment.recorded"
	TypeLotReceived    = "lot.received"
	TypeLotDeleted     = "lot.deleted"
	TypePartialCommit  = "batch.partial_commit"
)

// Event is one published ledger fact.
type Event struct {
	Type    string      `json:"type"`
	Key     string      `json:"key"`
	At      time.Time   `json:"at"`
	Payload interface{} `json:"payload"`
}

// Publisher ships events somewhere.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// Nop discards every event.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(context.Context, Event) error { return nil }

// Close implements Publisher.
func (Nop) Close() error { return nil }

// Kafka writes events as JSON messages keyed by entity id.
type Kafka struct {
	writer *kafka.Writer
	logger *zap.Logger
}

// NewKafka builds a producer for the topic.
func NewKafka(brokers []string, topic string, logger *zap.Logger) *Kafka {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Kafka{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireOne,
		},
		logger: logger,
	}
}

// Publish writes one event synchronously.
func (k *Kafka) Publish(ctx context.Context, event Event) error {
	msg, err := message(event)
	if err != nil {
		return err
	}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s %s: %w", event.Type, event.Key, err)
	}
	k.logger.Debug("event published", zap.String("type", event.Type), zap.String("key", event.Key))
	return nil
}

// Close flushes and closes the writer.
func (k *Kafka) Close() error {
	return k.writer.Close()
}

func message(event Event) (kafka.Message, error) {
	value, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encode event %s: %w", event.Type, err)
	}
	return kafka.Message{
		Key:   []byte(event.Key),
		Value: value,
		Time:  event.At,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(event.Type)},
		},
	}, nil
}

// PublishQuietly publishes with a bounded timeout and only logs failures.
func PublishQuietly(publisher Publisher, logger *zap.Logger, event Event) {
	if publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := publisher.Publish(ctx, event); err != nil && logger != nil {
		logger.Warn("event not published", zap.String("type", event.Type), zap.String("key", event.Key), zap.Error(err))
	}
}
