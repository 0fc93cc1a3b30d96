// Command statusviewer consumes voice command events from Kafka and prints
// them as they arrive.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"voice-command-dispatcher/internal/observability/logging"
)

// event is the union of status, command and navigation payloads.
type event struct {
	EventType string `json:"eventType"`
	SessionID string `json:"sessionId"`
	Status    string `json:"status,omitempty"`
	Key       string `json:"key,omitempty"`
	Target    string `json:"target,omitempty"`
	Message   string `json:"message,omitempty"`
	Text      string `json:"text,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// partitions lists the partition ids of topic. Events are keyed by session
// id, so a session can land on any partition.
func partitions(ctx context.Context, brokers []string, topic string) ([]int, error) {
	lastErr := errors.New("no brokers configured")
	for _, broker := range brokers {
		conn, err := kafka.DialContext(ctx, "tcp", broker)
		if err != nil {
			lastErr = err
			continue
		}
		parts, err := conn.ReadPartitions(topic)
		conn.Close()
		if err != nil {
			lastErr = err
			continue
		}
		ids := make([]int, 0, len(parts))
		for _, p := range parts {
			ids = append(ids, p.ID)
		}
		return ids, nil
	}
	return nil, lastErr
}

func consume(ctx context.Context, brokers []string, topic string, partition int, since time.Duration) {
	logger := logging.WithComponent("statusviewer").With().
		Str("topic", topic).
		Int("partition", partition).
		Logger()

	// Partition reader without consumer group (works better through port-forward)
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:   brokers,
		Topic:     topic,
		Partition: partition,
		MinBytes:  1,
		MaxBytes:  10e6,
	})
	defer reader.Close()

	if err := reader.SetOffsetAt(ctx, time.Now().Add(-since)); err != nil {
		logger.Warn().Err(err).Msg("Failed to seek, reading from last committed offset")
	}

	logger.Info().Dur("since", since).Msg("Consuming")

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error().Err(err).Msg("Kafka read error")
			time.Sleep(time.Second)
			continue
		}

		var ev event
		if err := json.Unmarshal(msg.Value, &ev); err != nil {
			logger.Warn().Err(err).Msg("JSON unmarshal error")
			continue
		}

		logger.Info().
			Str("eventType", ev.EventType).
			Str("sessionId", ev.SessionID).
			Str("status", ev.Status).
			Str("key", ev.Key).
			Str("target", ev.Target).
			Str("message", ev.Message).
			Time("at", time.UnixMilli(ev.Timestamp)).
			Msg(ev.Text)
	}
}

func main() {
	brokers := flag.String("brokers", "localhost:9092", "Kafka brokers (comma-separated)")
	topicStatus := flag.String("topic-status", "voice.command.status", "Status topic")
	topicCommand := flag.String("topic-command", "voice.command.detected", "Command topic")
	since := flag.Duration("since", time.Hour, "Replay events newer than this")
	flag.Parse()

	logging.Init(logging.Config{Level: "info", Format: "console"})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	list := strings.Split(*brokers, ",")

	var wg sync.WaitGroup
	for _, topic := range []string{*topicStatus, *topicCommand} {
		ids, err := partitions(ctx, list, topic)
		if err != nil {
			log.Fatal().Err(err).Str("topic", topic).Msg("Failed to list partitions")
		}
		for _, id := range ids {
			wg.Add(1)
			go func(topic string, partition int) {
				defer wg.Done()
				consume(ctx, list, topic, partition, *since)
			}(topic, id)
		}
	}

	wg.Wait()
	log.Info().Msg("Status viewer stopped")
}
