package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"voice-command-dispatcher/internal/observability/logging"
	"voice-command-dispatcher/internal/observability/metrics"
	"voice-command-dispatcher/internal/service/command"
	"voice-command-dispatcher/internal/service/recognition"
	"voice-command-dispatcher/internal/service/text"
)

// eventBufferSize bounds recognizer callbacks queued for the event loop.
const eventBufferSize = 64

type eventKind int

const (
	eventStarted eventKind = iota
	eventResult
	eventError
	eventEnd
)

// event is a recognizer callback tagged with the session that produced it.
type event struct {
	sessionID string
	kind      eventKind
	results   []recognition.Result
	err       error
	at        time.Time
}

// Snapshot is a point-in-time view of the controller state.
type Snapshot struct {
	State      State     `json:"state"`
	SessionID  string    `json:"sessionId,omitempty"`
	LastKey    string    `json:"lastKey,omitempty"`
	StartedAt  time.Time `json:"startedAt,omitempty"`
	Recognizer string    `json:"recognizer"`
}

// Controller owns the recognition session and the dedup state.
//
// State transitions:
//
//	IDLE ──Start()──→ LISTENING ──Stop()──→ STOPPING
//	 ↑                    │                    │
//	 └──── OnEnd / OnError ┴────────────────────┘
//
// Rules:
//   - Start is rejected with ErrAlreadyActive unless IDLE.
//   - Stop only requests termination; the transition to IDLE happens when
//     the recognizer reports end or error.
//   - Session events, including "started", are emitted from the Run loop in
//     the order the recognizer produced them; a matched key fires its action
//     only if it differs from the previously matched key.
//   - Events from a previous session are ignored.
type Controller struct {
	table      *command.Table
	recognizer recognition.Recognizer
	notifier   Notifier
	metrics    *metrics.Metrics
	logger     zerolog.Logger

	events   chan event
	done     chan struct{}
	doneOnce sync.Once

	mu        sync.RWMutex
	state     State
	sessionID string
	lastKey   string
	handle    recognition.Handle
	startedAt time.Time
}

// New creates an idle Controller. Run must be running for transcript
// events to be processed.
func New(table *command.Table, recognizer recognition.Recognizer, notifier Notifier) *Controller {
	return NewWithMetrics(table, recognizer, notifier, metrics.DefaultMetrics)
}

// NewWithMetrics creates an idle Controller recording into m.
func NewWithMetrics(table *command.Table, recognizer recognition.Recognizer, notifier Notifier, m *metrics.Metrics) *Controller {
	if notifier == nil {
		notifier = discard{}
	}
	return &Controller{
		table:      table,
		recognizer: recognizer,
		notifier:   notifier,
		metrics:    m,
		logger:     logging.WithComponent("session"),
		events:     make(chan event, eventBufferSize),
		done:       make(chan struct{}),
		state:      StateIdle,
	}
}

// Table returns the command table.
func (c *Controller) Table() *command.Table {
	return c.table
}

// Recognizer returns the recognition capability.
func (c *Controller) Recognizer() recognition.Recognizer {
	return c.recognizer
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Snapshot returns the current session view.
func (c *Controller) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Snapshot{
		State:      c.state,
		SessionID:  c.sessionID,
		LastKey:    c.lastKey,
		StartedAt:  c.startedAt,
		Recognizer: c.recognizer.Name(),
	}
}

// Start begins a recognition session. It returns ErrAlreadyActive if a
// session is listening or stopping, and an error wrapping
// recognition.ErrUnsupported if the capability is missing.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateIdle {
		state := c.state
		c.mu.Unlock()
		c.metrics.RecordRejected()
		c.logger.Warn().Str("state", state.String()).Msg("Start rejected: session already active")
		return ErrAlreadyActive
	}
	id := uuid.NewString()
	c.state = StateListening
	c.sessionID = id
	c.lastKey = ""
	c.handle = nil
	c.startedAt = time.Now().UTC()
	c.mu.Unlock()

	logger := logging.WithRecognizer(id, c.recognizer.Name())

	// Callbacks are held until "started" is queued ahead of them.
	cb := &sessionCallback{c: c, sessionID: id, ready: make(chan struct{})}
	defer close(cb.ready)

	handle, err := c.recognizer.Start(ctx, cb)
	if err != nil {
		c.mu.Lock()
		if c.sessionID == id {
			c.state = StateIdle
			c.handle = nil
		}
		c.mu.Unlock()

		if errors.Is(err, recognition.ErrUnsupported) {
			c.metrics.RecordUnsupported()
			logger.Warn().Err(err).Msg("Recognition unsupported")
			c.emit(ctx, Status{Kind: StatusUnsupported, SessionID: id})
			return err
		}

		c.metrics.RecordRecognizerError(c.recognizer.Name())
		logger.Error().Err(err).Msg("Recognition failed to start")
		c.emit(ctx, Status{Kind: StatusError, Message: err.Error(), SessionID: id})
		return fmt.Errorf("start recognition: %w", err)
	}

	c.mu.Lock()
	stopNow := false
	if c.sessionID == id && c.state.IsActive() {
		c.handle = handle
		stopNow = c.state == StateStopping
	}
	c.mu.Unlock()

	c.metrics.RecordSessionStart()
	logger.Info().Msg("Recognition session started")
	c.enqueue(event{sessionID: id, kind: eventStarted, at: time.Now().UTC()})

	// Stop was requested before the handle existed.
	if stopNow {
		handle.Stop()
	}
	return nil
}

// Stop requests the active session to end. It is a no-op unless LISTENING.
func (c *Controller) Stop() {
	c.mu.Lock()
	if c.state != StateListening {
		c.mu.Unlock()
		return
	}
	c.state = StateStopping
	h := c.handle
	id := c.sessionID
	c.mu.Unlock()

	c.logger.Info().Str("sessionId", id).Msg("Stop requested")
	if h != nil {
		h.Stop()
	}
}

// Run processes recognizer events until ctx is cancelled. Any active
// session is asked to stop on return.
func (c *Controller) Run(ctx context.Context) error {
	defer c.doneOnce.Do(func() { close(c.done) })

	c.logger.Info().Str("recognizer", c.recognizer.Name()).Int("commands", c.table.Len()).Msg("Session controller running")
	for {
		select {
		case <-ctx.Done():
			c.Stop()
			return ctx.Err()
		case ev := <-c.events:
			c.process(ctx, ev)
		}
	}
}

func (c *Controller) enqueue(ev event) {
	select {
	case c.events <- ev:
	case <-c.done:
	}
}

func (c *Controller) process(ctx context.Context, ev event) {
	c.mu.RLock()
	current, state := c.sessionID, c.state
	c.mu.RUnlock()

	if ev.sessionID != current || !state.IsActive() {
		c.logger.Debug().Str("sessionId", ev.sessionID).Str("current", current).Msg("Ignoring event from inactive session")
		return
	}

	switch ev.kind {
	case eventStarted:
		c.emit(ctx, Status{Kind: StatusStarted, SessionID: ev.sessionID, Time: ev.at})
	case eventResult:
		c.handleResult(ctx, ev)
	case eventError:
		c.finish(ctx, ev.sessionID, ev.err)
	case eventEnd:
		c.finish(ctx, ev.sessionID, nil)
	}
}

// handleResult matches the last word of the most recent result set.
func (c *Controller) handleResult(ctx context.Context, ev event) {
	if len(ev.results) == 0 {
		return
	}
	c.metrics.RecordTranscript()

	transcript := ev.results[len(ev.results)-1].Transcript()
	word := text.Normalize(text.LastWord(transcript))
	key, ok := c.table.FindKey(word)
	if !ok {
		c.metrics.RecordNoMatch()
		return
	}

	c.mu.Lock()
	if key == c.lastKey {
		c.mu.Unlock()
		c.metrics.RecordSuppressed(key)
		return
	}
	c.lastKey = key
	c.mu.Unlock()

	logger := logging.WithSession("session", ev.sessionID)
	logger.Info().Str("key", key).Str("word", word).Msg("Command detected")
	c.metrics.RecordCommand(key)
	c.emit(ctx, Status{Kind: StatusCommandDetected, Key: key, SessionID: ev.sessionID})

	entry, ok := c.table.Lookup(key)
	if !ok || entry.Action == nil {
		return
	}
	if err := entry.Action(WithSessionID(ctx, ev.sessionID), key); err != nil {
		c.metrics.RecordActionError(key)
		logger.Error().Err(err).Str("key", key).Msg("Command action failed")
	}
}

// finish moves the session to IDLE and reports how it ended.
func (c *Controller) finish(ctx context.Context, sessionID string, err error) {
	c.mu.Lock()
	c.state = StateIdle
	c.handle = nil
	startedAt := c.startedAt
	c.mu.Unlock()

	duration := time.Since(startedAt).Seconds()
	logger := logging.WithRecognizer(sessionID, c.recognizer.Name())

	if err != nil {
		c.metrics.RecordRecognizerError(c.recognizer.Name())
		c.metrics.RecordSessionEnd("error", duration)
		logger.Error().Err(err).Msg("Recognition session failed")
		c.emit(ctx, Status{Kind: StatusError, Message: err.Error(), SessionID: sessionID})
		return
	}

	c.metrics.RecordSessionEnd("ended", duration)
	logger.Info().Float64("durationSeconds", duration).Msg("Recognition session ended")
	c.emit(ctx, Status{Kind: StatusEnded, SessionID: sessionID})
}

func (c *Controller) emit(ctx context.Context, st Status) {
	if st.Time.IsZero() {
		st.Time = time.Now().UTC()
	}
	c.notifier.Notify(ctx, st)
}

// sessionCallback forwards recognizer callbacks for one session to the loop.
// Recognizers must not call it synchronously from Start: delivery waits
// until Start has queued the "started" event.
type sessionCallback struct {
	c         *Controller
	sessionID string
	ready     chan struct{}
}

func (cb *sessionCallback) forward(ev event) {
	<-cb.ready
	cb.c.enqueue(ev)
}

func (cb *sessionCallback) OnResult(results []recognition.Result) {
	cp := append([]recognition.Result(nil), results...)
	cb.forward(event{sessionID: cb.sessionID, kind: eventResult, results: cp})
}

func (cb *sessionCallback) OnError(err error) {
	cb.forward(event{sessionID: cb.sessionID, kind: eventError, err: err})
}

func (cb *sessionCallback) OnEnd() {
	cb.forward(event{sessionID: cb.sessionID, kind: eventEnd})
}
