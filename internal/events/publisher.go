// Package events publishes retrieval outcome events to Kafka.
package events

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/helixir/pubmed-retrieval-service/internal/domain"
)

// DefaultServiceName is the source header value when Config.ServiceName is empty.
const DefaultServiceName = "pubmed-retrieval-service"

// Header keys set on every message.
const (
	HeaderEventType = "event_type"
	HeaderSource    = "source"
)

// MessageWriter is the subset of *kafka.Writer used by the publisher.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Config holds publisher settings.
type Config struct {
	// Brokers is the list of Kafka broker addresses.
	Brokers []string
	// Topic receives every outcome and batch event.
	Topic string
	// BatchSize is the maximum number of messages to batch before sending.
	BatchSize int
	// BatchTimeout is the maximum time to wait for a batch to fill before sending.
	BatchTimeout time.Duration
	// ServiceName is sent in the source header.
	ServiceName string
}

// Publisher writes one message per record outcome and one per completed
// batch. It satisfies the engine's outcome recorder contract.
type Publisher struct {
	writer  MessageWriter
	service string
	logger  zerolog.Logger
}

// NewPublisher creates a publisher backed by a kafka.Writer. Messages are
// keyed by PMID, so every outcome of one record lands on one partition.
func NewPublisher(cfg Config, logger zerolog.Logger) *Publisher {
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout,
		RequiredAcks: kafka.RequireAll,
	}
	return NewPublisherWithWriter(w, cfg.ServiceName, logger)
}

// NewPublisherWithWriter creates a publisher on an existing writer.
func NewPublisherWithWriter(w MessageWriter, serviceName string, logger zerolog.Logger) *Publisher {
	if serviceName == "" {
		serviceName = DefaultServiceName
	}
	return &Publisher{
		writer:  w,
		service: serviceName,
		logger:  logger.With().Str("component", "event_publisher").Logger(),
	}
}

// RecordOutcome publishes the event for a terminal record outcome.
func (p *Publisher) RecordOutcome(ctx context.Context, o domain.RetrievalOutcome) error {
	return p.publish(ctx, domain.NewOutcomeEvent(o))
}

// RecordBatch publishes the batch completion event.
func (p *Publisher) RecordBatch(ctx context.Context, r domain.BatchResult) error {
	return p.publish(ctx, domain.NewBatchEvent(r))
}

func (p *Publisher) publish(ctx context.Context, e *domain.OutcomeEvent) error {
	value, err := e.Marshal()
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", e.EventType, err)
	}

	msg := kafka.Message{
		Key:   e.Key(),
		Value: value,
		Time:  e.CreatedAt,
		Headers: []kafka.Header{
			{Key: HeaderEventType, Value: []byte(e.EventType)},
			{Key: HeaderSource, Value: []byte(p.service)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s event: %w", e.EventType, err)
	}

	p.logger.Debug().
		Str("event_type", e.EventType).
		Str("event_id", e.EventID).
		Str("pmid", e.PMID).
		Msg("published event")
	return nil
}

// Close flushes pending messages and closes the writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
