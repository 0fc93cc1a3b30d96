package notify

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"voice-command-dispatcher/internal/models"
	"voice-command-dispatcher/internal/observability/logging"
	"voice-command-dispatcher/internal/observability/metrics"
	"voice-command-dispatcher/internal/service/session"
)

// Message types sent to hub subscribers.
const (
	MessageStatus     = "status"
	MessageNavigation = "navigation"
)

// subscriberBuffer is how many messages a slow subscriber may fall behind
// before messages to it are dropped.
const subscriberBuffer = 32

// Message is one item delivered to live subscribers.
type Message struct {
	Type       string                  `json:"type"`
	Status     *StatusView             `json:"status,omitempty"`
	Navigation *models.NavigationEvent `json:"navigation,omitempty"`
}

// StatusView is a status event with its localized text.
type StatusView struct {
	session.Status
	Wire  string `json:"wire"`
	Level Level  `json:"level"`
	Text  string `json:"text"`
}

// NewStatusView describes st for display.
func NewStatusView(st session.Status) *StatusView {
	level, text := Describe(st)
	return &StatusView{Status: st, Wire: st.String(), Level: level, Text: text}
}

// Hub fans messages out to live subscribers (WebSocket clients, gRPC
// WatchStatus streams). Delivery never blocks the publisher. Close ends every
// subscription so streaming handlers return on shutdown.
type Hub struct {
	mu      sync.RWMutex
	subs    map[chan Message]struct{}
	closed  bool
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		subs:    make(map[chan Message]struct{}),
		metrics: metrics.DefaultMetrics,
		logger:  logging.WithComponent("hub"),
	}
}

// Subscribe registers a subscriber. The returned cancel func unregisters it
// and closes the channel; it is safe to call more than once. After Close the
// returned channel is already closed.
func (h *Hub) Subscribe() (<-chan Message, func()) {
	ch := make(chan Message, subscriberBuffer)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	h.subs[ch] = struct{}{}
	n := len(h.subs)
	h.mu.Unlock()

	h.metrics.StatusListeners.Inc()
	h.logger.Debug().Int("subscribers", n).Msg("Subscriber connected")

	return ch, func() {
		h.mu.Lock()
		removed := h.remove(ch)
		n := len(h.subs)
		h.mu.Unlock()

		if removed {
			h.logger.Debug().Int("subscribers", n).Msg("Subscriber disconnected")
		}
	}
}

// Close closes every subscriber channel and rejects new subscriptions.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	n := len(h.subs)
	for ch := range h.subs {
		h.remove(ch)
	}
	h.logger.Info().Int("subscribers", n).Msg("Hub closed")
}

// remove unregisters and closes ch. Callers hold h.mu.
func (h *Hub) remove(ch chan Message) bool {
	if _, ok := h.subs[ch]; !ok {
		return false
	}
	delete(h.subs, ch)
	close(ch)
	h.metrics.StatusListeners.Dec()
	return true
}

// Len returns the number of subscribers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Notify implements session.Notifier.
func (h *Hub) Notify(_ context.Context, st session.Status) {
	h.broadcast(Message{Type: MessageStatus, Status: NewStatusView(st)})
}

// PublishNavigation delivers a navigation event to subscribers.
func (h *Hub) PublishNavigation(_ context.Context, ev models.NavigationEvent) error {
	h.broadcast(Message{Type: MessageNavigation, Navigation: &ev})
	return nil
}

func (h *Hub) broadcast(msg Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.subs {
		select {
		case ch <- msg:
		default:
			h.logger.Warn().Str("type", msg.Type).Msg("Subscriber too slow, dropping message")
		}
	}
}
