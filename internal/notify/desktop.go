package notify

import (
	"context"

	"github.com/gen2brain/beeep"

	"voice-command-dispatcher/internal/i18n"
	"voice-command-dispatcher/internal/service/session"
)

type toastFunc func(title, message string) error

// Desktop shows status events as system notifications.
type Desktop struct {
	enabled bool
	notify  toastFunc
	alert   toastFunc
}

// NewDesktop creates a desktop notifier.
func NewDesktop(enabled bool) *Desktop {
	return &Desktop{
		enabled: enabled,
		notify: func(title, message string) error {
			return beeep.Notify(title, message, "")
		},
		alert: func(title, message string) error {
			return beeep.Alert(title, message, "")
		},
	}
}

// Notify shows st. Errors use an alert with sound.
func (d *Desktop) Notify(_ context.Context, st session.Status) {
	if !d.enabled {
		return
	}
	level, text := Describe(st)
	title := i18n.T("app_name")

	// Notification failures are not critical
	if level == LevelError {
		_ = d.alert(title, text)
		return
	}
	_ = d.notify(title, text)
}
