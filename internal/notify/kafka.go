package notify

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"voice-command-dispatcher/internal/models"
	"voice-command-dispatcher/internal/observability/logging"
	"voice-command-dispatcher/internal/schema"
	"voice-command-dispatcher/internal/service/session"
)

// publishTimeout bounds a single Kafka write.
const publishTimeout = 5 * time.Second

// EventPublisher is the subset of events.Publisher used here.
type EventPublisher interface {
	PublishStatus(ctx context.Context, key string, event any) error
	PublishCommand(ctx context.Context, key string, event any) error
	Principal() string
}

// Kafka publishes status, command and navigation events.
type Kafka struct {
	publisher EventPublisher
	validator *schema.Validator
	logger    zerolog.Logger
}

// NewKafka creates a Kafka notifier.
func NewKafka(p EventPublisher, v *schema.Validator) *Kafka {
	if v == nil {
		v = schema.New()
	}
	return &Kafka{
		publisher: p,
		validator: v,
		logger:    logging.WithComponent("kafka-notifier"),
	}
}

// Notify publishes st to the status topic and, for detected commands, a
// command event to the command topic. Failures are logged.
func (k *Kafka) Notify(ctx context.Context, st session.Status) {
	ctx, cancel := detached(ctx)
	defer cancel()

	_, text := Describe(st)
	ev := models.StatusEvent{
		EventType: models.EventTypeStatus,
		Principal: k.publisher.Principal(),
		SessionID: st.SessionID,
		Timestamp: timestamp(st.Time),
		Status:    string(st.Kind),
		Key:       st.Key,
		Message:   st.Message,
		Text:      text,
	}
	k.publish(ctx, st.SessionID, ev, k.publisher.PublishStatus)

	if st.Kind != session.StatusCommandDetected {
		return
	}
	cmd := models.CommandEvent{
		EventType: models.EventTypeCommand,
		Principal: k.publisher.Principal(),
		SessionID: st.SessionID,
		Timestamp: ev.Timestamp,
		Key:       st.Key,
	}
	k.publish(ctx, st.SessionID, cmd, k.publisher.PublishCommand)
}

// PublishNavigation publishes a navigation event to the command topic.
func (k *Kafka) PublishNavigation(ctx context.Context, ev models.NavigationEvent) error {
	ctx, cancel := detached(ctx)
	defer cancel()

	if ev.Principal == "" {
		ev.Principal = k.publisher.Principal()
	}
	if err := k.validator.Validate(ev); err != nil {
		return err
	}
	return k.publisher.PublishCommand(ctx, ev.SessionID, ev)
}

func (k *Kafka) publish(ctx context.Context, key string, event any, fn func(context.Context, string, any) error) {
	if err := k.validator.Validate(event); err != nil {
		k.logger.Error().Err(err).Str("sessionId", key).Msg("Dropping invalid event")
		return
	}
	if err := fn(ctx, key, event); err != nil {
		k.logger.Error().Err(err).Str("sessionId", key).Msg("Failed to publish event")
	}
}

// detached keeps request-scoped values but not cancellation, so a finished
// HTTP request does not abort the write.
func detached(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
}

func timestamp(t time.Time) int64 {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UnixMilli()
}
