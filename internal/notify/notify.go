// Package notify delivers session status events to people and systems:
// the log, desktop toasts, live subscribers and Kafka.
package notify

import (
	"context"

	"voice-command-dispatcher/internal/i18n"
	"voice-command-dispatcher/internal/service/session"
)

// Level is the severity a status is shown with.
type Level string

const (
	LevelOK      Level = "ok"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Describe returns the severity and localized text for a status.
func Describe(st session.Status) (Level, string) {
	switch st.Kind {
	case session.StatusStarted:
		return LevelOK, i18n.T("status_started")
	case session.StatusCommandDetected:
		return LevelOK, i18n.Tf("status_command", st.Key)
	case session.StatusEnded:
		return LevelWarning, i18n.T("status_ended")
	case session.StatusError:
		return LevelError, i18n.Tf("status_error", st.Message)
	case session.StatusUnsupported:
		return LevelError, i18n.T("status_unsupported")
	default:
		return LevelWarning, st.String()
	}
}

// Multi fans a status out to every notifier in order.
type Multi []session.Notifier

// Notify calls Notify on each non-nil notifier.
func (m Multi) Notify(ctx context.Context, st session.Status) {
	for _, n := range m {
		if n != nil {
			n.Notify(ctx, st)
		}
	}
}
