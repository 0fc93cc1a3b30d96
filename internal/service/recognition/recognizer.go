// Package recognition defines the interface for continuous speech
// recognition capabilities that feed the command dispatcher.
package recognition

import (
	"context"
	"errors"
)

// ErrUnsupported is returned by Start when the capability is not available
// in the running environment. It is not retryable for that attempt.
var ErrUnsupported = errors.New("speech recognition is not supported")

// Alternative is one transcript hypothesis.
type Alternative struct {
	Transcript string
	Confidence float64
}

// Result is one result set. The first alternative is the most likely one.
type Result struct {
	Alternatives []Alternative
	IsFinal      bool
}

// Transcript returns the transcript of the top alternative, or "".
func (r Result) Transcript() string {
	if len(r.Alternatives) == 0 {
		return ""
	}
	return r.Alternatives[0].Transcript
}

// Callback receives recognition events. Implementations of Recognizer must
// call OnEnd or OnError exactly once per session, after which no further
// calls are made. Callbacks may block until Start has returned, so they must
// be invoked from a goroutine other than the one running Start.
type Callback interface {
	// OnResult delivers the ordered result sets known so far; the last one
	// is the most recent (possibly interim).
	OnResult(results []Result)

	// OnError is called when the session fails mid-stream.
	OnError(err error)

	// OnEnd is called when the session ends normally.
	OnEnd()
}

// Handle controls a running recognition session.
type Handle interface {
	// Stop requests the session to end. It returns immediately; the end is
	// reported later through Callback.OnEnd or Callback.OnError.
	Stop()
}

// Recognizer starts recognition sessions (mock, push, Google, ...).
type Recognizer interface {
	Start(ctx context.Context, cb Callback) (Handle, error)

	// Name returns the provider name for logs and metrics.
	Name() string
}

// Unsupported is a Recognizer for environments with no recognition capability.
type Unsupported struct{}

// Start always fails with ErrUnsupported.
func (Unsupported) Start(context.Context, Callback) (Handle, error) {
	return nil, ErrUnsupported
}

// Name returns "none".
func (Unsupported) Name() string {
	return "none"
}
