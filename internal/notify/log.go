package notify

import (
	"context"

	"github.com/rs/zerolog"

	"voice-command-dispatcher/internal/observability/logging"
	"voice-command-dispatcher/internal/service/session"
)

// Log writes status events to the structured log.
type Log struct {
	logger zerolog.Logger
}

// NewLog creates a log notifier.
func NewLog() *Log {
	return &Log{logger: logging.WithComponent("status")}
}

// Notify logs st at a level matching its severity.
func (l *Log) Notify(_ context.Context, st session.Status) {
	level, text := Describe(st)

	var ev *zerolog.Event
	switch level {
	case LevelError:
		ev = l.logger.Error()
	case LevelWarning:
		ev = l.logger.Warn()
	default:
		ev = l.logger.Info()
	}

	ev.Str("status", string(st.Kind)).
		Str("sessionId", st.SessionID).
		Str("key", st.Key).
		Msg(text)
}
