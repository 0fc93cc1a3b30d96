// Package actions provides the side effects bound to command keys.
package actions

import (
	"context"
	"errors"
	"time"

	"voice-command-dispatcher/internal/models"
	"voice-command-dispatcher/internal/service/command"
	"voice-command-dispatcher/internal/service/session"
)

// NavigationSink receives navigation events.
type NavigationSink interface {
	PublishNavigation(ctx context.Context, ev models.NavigationEvent) error
}

// Stopper ends the active recognition session.
type Stopper interface {
	Stop()
}

// StopperFunc adapts a function to Stopper.
type StopperFunc func()

// Stop calls f().
func (f StopperFunc) Stop() {
	f()
}

// Navigate returns an action that sends "#<key>" to every sink. All sinks
// are tried; their errors are joined.
func Navigate(sinks ...NavigationSink) command.Action {
	return func(ctx context.Context, key string) error {
		ev := models.NavigationEvent{
			EventType: models.EventTypeNavigation,
			SessionID: session.SessionIDFromContext(ctx),
			Timestamp: time.Now().UnixMilli(),
			Key:       key,
			Target:    "#" + key,
		}

		var errs []error
		for _, s := range sinks {
			if err := s.PublishNavigation(ctx, ev); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}
}

// StopListening returns an action that requests the session to stop.
func StopListening(s Stopper) command.Action {
	return func(context.Context, string) error {
		s.Stop()
		return nil
	}
}

// Binder binds the action names used in command files.
func Binder(stopper Stopper, sinks ...NavigationSink) command.Binder {
	return command.Binder{
		command.ActionNavigate: Navigate(sinks...),
		command.ActionStop:     StopListening(stopper),
	}
}
