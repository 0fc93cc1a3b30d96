// Package session provides the recognition session controller: an explicit
// state machine that turns transcript events into command dispatches.
package session

import (
	"errors"
	"fmt"
)

// State represents the lifecycle state of the recognition session.
type State int

const (
	// StateIdle - No recognition session; Start is allowed.
	StateIdle State = iota
	// StateListening - Session active, transcripts are matched.
	StateListening
	// StateStopping - Stop requested, waiting for the recognizer to end.
	StateStopping
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateListening:
		return "LISTENING"
	case StateStopping:
		return "STOPPING"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

// IsActive returns true while a recognizer session is running.
func (s State) IsActive() bool {
	return s == StateListening || s == StateStopping
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ErrAlreadyActive is returned by Start while a session is listening or stopping.
var ErrAlreadyActive = errors.New("recognition session already active")
