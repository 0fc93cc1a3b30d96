// Package push provides a recognizer fed by transcripts from outside the
// process, such as a browser running Web Speech and posting what it heard.
package push

import (
	"context"
	"errors"
	"strings"
	"sync"

	"voice-command-dispatcher/internal/service/recognition"
)

// ErrNoSession is returned by Push and Fail when no session is active.
var ErrNoSession = errors.New("no active push session")

// ErrEmptyTranscript is returned by Push for blank transcripts.
var ErrEmptyTranscript = errors.New("empty transcript")

// Recognizer implements recognition.Recognizer over pushed transcripts.
// Results accumulate per session: final results are kept, and the trailing
// interim result is replaced by the next push.
type Recognizer struct {
	mu      sync.Mutex
	current *session
}

// New creates a push recognizer.
func New() *Recognizer {
	return &Recognizer{}
}

// Name returns "push".
func (r *Recognizer) Name() string {
	return "push"
}

// Start opens a session. A session left over from a previous Start is ended.
func (r *Recognizer) Start(ctx context.Context, cb recognition.Callback) (recognition.Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s := &session{r: r, cb: cb}

	r.mu.Lock()
	prev := r.current
	r.current = s
	r.mu.Unlock()

	if prev != nil {
		go prev.cb.OnEnd()
	}
	return s, nil
}

// Active reports whether a session is accepting transcripts.
func (r *Recognizer) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current != nil
}

// Push delivers a transcript to the active session.
func (r *Recognizer) Push(transcript string, final bool) error {
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return ErrEmptyTranscript
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.current
	if s == nil {
		return ErrNoSession
	}

	if n := len(s.results); n > 0 && !s.results[n-1].IsFinal {
		s.results = s.results[:n-1]
	}
	s.results = append(s.results, recognition.Result{
		Alternatives: []recognition.Alternative{{Transcript: transcript, Confidence: 1}},
		IsFinal:      final,
	})

	// Delivered under the lock so results stay ordered ahead of OnEnd.
	s.cb.OnResult(append([]recognition.Result(nil), s.results...))
	return nil
}

// Fail ends the active session with err.
func (r *Recognizer) Fail(err error) error {
	r.mu.Lock()
	s := r.current
	r.mu.Unlock()
	if s == nil {
		return ErrNoSession
	}
	r.end(s, err)
	return nil
}

// end detaches s and reports how it ended. Only the first call for a
// session has any effect.
func (r *Recognizer) end(s *session, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current != s {
		return
	}
	r.current = nil
	if err != nil {
		s.cb.OnError(err)
		return
	}
	s.cb.OnEnd()
}

type session struct {
	r       *Recognizer
	cb      recognition.Callback
	results []recognition.Result
}

// Stop ends the session asynchronously.
func (s *session) Stop() {
	go s.r.end(s, nil)
}
