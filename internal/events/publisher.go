// Package events publishes report lifecycle events to Kafka.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

// EventType identifies a report lifecycle event.
type EventType string

const (
	EventVersionCreated    EventType = "report.version.created"
	EventVersionSubmitted  EventType = "report.version.submitted"
	EventVersionApproved   EventType = "report.version.approved"
	EventVersionRejected   EventType = "report.version.rejected"
	EventBaselineSet       EventType = "report.baseline.set"
	EventVersionRolledBack EventType = "report.version.rolled_back"
	EventGenerationFailed  EventType = "report.generation.failed"
)

// Event is one report lifecycle event.
type Event struct {
	Type      EventType `json:"type"`
	ReportID  string    `json:"report_id"`
	Version   string    `json:"version,omitempty"`
	Actor     string    `json:"actor,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Config holds Kafka publisher configuration.
type Config struct {
	Enabled bool
	Brokers []string
	Topic   string
}

// Publisher emits lifecycle events to a Kafka topic. A nil Publisher
// is valid and drops all events, so callers never branch on whether
// eventing is configured.
type Publisher struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

// NewPublisher creates a Kafka publisher, or nil when disabled.
func NewPublisher(cfg Config, logger *slog.Logger) (*Publisher, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(cfg.Topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, err
	}

	return &Publisher{
		client: client,
		topic:  cfg.Topic,
		logger: logger.With("component", "event-publisher"),
	}, nil
}

// Publish emits one event. Publishing is best-effort: a broker error
// is logged, never surfaced to the state machine that emitted it.
func (p *Publisher) Publish(ctx context.Context, event Event) {
	if p == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("failed to marshal event", "type", event.Type, "error", err)
		return
	}

	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(event.ReportID),
		Value: payload,
	}

	p.client.Produce(ctx, record, func(_ *kgo.Record, err error) {
		if err != nil {
			p.logger.Error("failed to publish event",
				"type", event.Type,
				"report_id", event.ReportID,
				"error", err,
			)
		}
	})
}

// Close flushes and closes the Kafka client.
func (p *Publisher) Close() {
	if p == nil {
		return
	}
	_ = p.client.Flush(context.Background())
	p.client.Close()
}
