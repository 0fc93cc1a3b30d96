package session

import (
	"context"
	"time"
)

// StatusKind identifies a status notification.
type StatusKind string

const (
	StatusStarted         StatusKind = "started"
	StatusCommandDetected StatusKind = "command-detected"
	StatusEnded           StatusKind = "ended"
	StatusError           StatusKind = "error"
	StatusUnsupported     StatusKind = "unsupported"
)

// Status is a side-channel notification emitted by the Controller.
type Status struct {
	Kind      StatusKind `json:"kind"`
	Key       string     `json:"key,omitempty"`
	Message   string     `json:"message,omitempty"`
	SessionID string     `json:"sessionId,omitempty"`
	Time      time.Time  `json:"time"`
}

// String returns the wire form: "started", "command-detected:<key>",
// "ended", "error:<message>" or "unsupported".
func (s Status) String() string {
	switch s.Kind {
	case StatusCommandDetected:
		return string(s.Kind) + ":" + s.Key
	case StatusError:
		return string(s.Kind) + ":" + s.Message
	default:
		return string(s.Kind)
	}
}

// Notifier receives status events. Implementations must be safe for
// concurrent use and must not block for long; delivery is fire-and-forget.
type Notifier interface {
	Notify(ctx context.Context, st Status)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, st Status)

// Notify calls f(ctx, st).
func (f NotifierFunc) Notify(ctx context.Context, st Status) {
	f(ctx, st)
}

type discard struct{}

func (discard) Notify(context.Context, Status) {}
