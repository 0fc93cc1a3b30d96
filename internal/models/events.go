// Package models defines the data structures for published voice command events.
package models

// Event types carried in the eventType field.
const (
	EventTypeStatus     = "voice.status"
	EventTypeCommand    = "voice.command"
	EventTypeNavigation = "voice.navigation"
)

// StatusEvent reports a session lifecycle change.
type StatusEvent struct {
	EventType string `json:"eventType" validate:"required,eq=voice.status"`
	Principal string `json:"principal,omitempty"`
	SessionID string `json:"sessionId" validate:"required"`
	Timestamp int64  `json:"timestamp" validate:"gt=0"`
	Status    string `json:"status" validate:"required,oneof=started command-detected ended error unsupported"`
	Key       string `json:"key,omitempty" validate:"required_if=Status command-detected"`
	Message   string `json:"message,omitempty"`
	Text      string `json:"text,omitempty"`
}

// CommandEvent records a matched command key after dedup.
type CommandEvent struct {
	EventType string `json:"eventType" validate:"required,eq=voice.command"`
	Principal string `json:"principal,omitempty"`
	SessionID string `json:"sessionId" validate:"required"`
	Timestamp int64  `json:"timestamp" validate:"gt=0"`
	Key       string `json:"key" validate:"required"`
}

// NavigationEvent asks the client to move to a page fragment.
type NavigationEvent struct {
	EventType string `json:"eventType" validate:"required,eq=voice.navigation"`
	Principal string `json:"principal,omitempty"`
	SessionID string `json:"sessionId" validate:"required"`
	Timestamp int64  `json:"timestamp" validate:"gt=0"`
	Key       string `json:"key" validate:"required"`
	Target    string `json:"target" validate:"required,startswith=#"`
}

// TranscriptRequest is a transcript pushed by a client-side recognizer.
type TranscriptRequest struct {
	Transcript string `json:"transcript" validate:"required,max=1024"`
	Final      bool   `json:"final"`
}
