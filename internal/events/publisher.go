// Package events provides event publishing functionality.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"voice-command-dispatcher/internal/observability/metrics"
)

// Publisher publishes voice command events to separate Kafka topics.
type Publisher struct {
	writerStatus  *kafka.Writer
	writerCommand *kafka.Writer
	principal     string
	topicStatus   string
	topicCommand  string
	enabled       bool
	metrics       *metrics.Metrics
}

// Config holds Kafka publisher configuration.
type Config struct {
	Brokers      []string
	TopicStatus  string
	TopicCommand string
	Principal    string
	Enabled      bool
}

// New creates a new Kafka event publisher with separate topics for session
// status and detected commands.
func New(cfg *Config) *Publisher {
	m := metrics.DefaultMetrics

	// Handle nil config case
	if cfg == nil {
		log.Info().Msg("Kafka disabled (nil config), using log-only mode")
		return &Publisher{
			enabled: false,
			metrics: m,
		}
	}

	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		log.Info().Msg("Kafka disabled, using log-only mode")
		return &Publisher{
			principal:    cfg.Principal,
			topicStatus:  cfg.TopicStatus,
			topicCommand: cfg.TopicCommand,
			enabled:      false,
			metrics:      m,
		}
	}

	// Longer timeouts for DNS resolution in Kubernetes
	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}

	transport := &kafka.Transport{
		Dial: dialer.DialFunc,
	}

	log.Info().
		Strs("brokers", cfg.Brokers).
		Str("topicStatus", cfg.TopicStatus).
		Str("topicCommand", cfg.TopicCommand).
		Str("principal", cfg.Principal).
		Msg("Kafka publisher initialized")

	p := &Publisher{
		principal:    cfg.Principal,
		topicStatus:  cfg.TopicStatus,
		topicCommand: cfg.TopicCommand,
		enabled:      true,
		metrics:      m,
	}
	p.writerStatus = newWriter(cfg.Brokers, cfg.TopicStatus, transport, p.completion(cfg.TopicStatus))
	p.writerCommand = newWriter(cfg.Brokers, cfg.TopicCommand, transport, p.completion(cfg.TopicCommand))
	return p
}

// newWriter creates an async writer. WriteMessages only enqueues, so callers
// on the session loop never wait on the broker; delivery results arrive in
// completion.
func newWriter(brokers []string, topic string, transport *kafka.Transport, completion func([]kafka.Message, error)) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
		Async:        true,
		Completion:   completion,
		Transport:    transport,
	}
}

// completion records the outcome of an async batch written to topic.
func (p *Publisher) completion(topic string) func([]kafka.Message, error) {
	return func(messages []kafka.Message, err error) {
		for _, msg := range messages {
			var latency float64
			if !msg.Time.IsZero() {
				latency = time.Since(msg.Time).Seconds()
			}
			p.metrics.RecordKafkaPublish(topic, headerValue(msg, "eventType"), err, latency)
		}
		if err != nil {
			log.Error().
				Err(err).
				Str("topic", topic).
				Int("messages", len(messages)).
				Msg("Failed to write to Kafka")
		}
	}
}

func headerValue(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

// Principal returns the principal stamped on published events.
func (p *Publisher) Principal() string {
	return p.principal
}

// Enabled reports whether events reach Kafka rather than only the log.
func (p *Publisher) Enabled() bool {
	return p.enabled
}

// PublishStatus publishes a session status event to the status topic.
func (p *Publisher) PublishStatus(ctx context.Context, key string, event any) error {
	return p.publish(ctx, p.writerStatus, p.topicStatus, "status", key, event)
}

// PublishCommand publishes a command or navigation event to the command topic.
func (p *Publisher) PublishCommand(ctx context.Context, key string, event any) error {
	return p.publish(ctx, p.writerCommand, p.topicCommand, "command", key, event)
}

// publish is the internal method that writes to a specific Kafka writer.
func (p *Publisher) publish(ctx context.Context, writer *kafka.Writer, topic, eventType, key string, event any) error {
	start := time.Now()

	payload, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("topic", topic).Msg("Failed to marshal event")
		return err
	}

	log.Debug().
		Str("principal", p.principal).
		Str("topic", topic).
		Str("key", key).
		RawJSON("payload", payload).
		Msg("Publishing event")

	// If Kafka is disabled, just log
	if !p.enabled || writer == nil {
		p.metrics.RecordKafkaPublish(topic, eventType, nil, time.Since(start).Seconds())
		return nil
	}

	// Sessions are keyed by id so a session's events stay ordered on one partition.
	msg := kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Time:  start,
		Headers: []kafka.Header{
			{Key: "eventType", Value: []byte(eventType)},
			{Key: "principal", Value: []byte(p.principal)},
		},
	}

	// Delivery is recorded by completion; an error here means the message
	// was never queued.
	if err := writer.WriteMessages(ctx, msg); err != nil {
		log.Error().
			Err(err).
			Str("topic", topic).
			Str("key", key).
			Msg("Failed to queue Kafka message")
		p.metrics.RecordKafkaPublish(topic, eventType, err, time.Since(start).Seconds())
		return err
	}
	return nil
}

// Close flushes pending async writes and closes both Kafka writers.
func (p *Publisher) Close() error {
	var err error
	if p.writerStatus != nil {
		if e := p.writerStatus.Close(); e != nil {
			log.Error().Err(e).Msg("Error closing status writer")
			err = e
		}
	}
	if p.writerCommand != nil {
		if e := p.writerCommand.Close(); e != nil {
			log.Error().Err(e).Msg("Error closing command writer")
			err = e
		}
	}
	return err
}
