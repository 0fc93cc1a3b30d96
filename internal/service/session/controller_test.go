package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"voice-command-dispatcher/internal/service/command"
	"voice-command-dispatcher/internal/service/recognition"
)

// testHandle implements recognition.Handle for testing
type testHandle struct {
	mu    sync.Mutex
	stops int
}

func (h *testHandle) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stops++
}

func (h *testHandle) stopCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stops
}

// testRecognizer implements recognition.Recognizer for testing
type testRecognizer struct {
	mu       sync.Mutex
	startErr error
	starts   int
	cbs      []recognition.Callback
	handles  []*testHandle
}

func (r *testRecognizer) Start(ctx context.Context, cb recognition.Callback) (recognition.Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.starts++
	if r.startErr != nil {
		return nil, r.startErr
	}
	h := &testHandle{}
	r.cbs = append(r.cbs, cb)
	r.handles = append(r.handles, h)
	return h, nil
}

func (r *testRecognizer) Name() string { return "test" }

func (r *testRecognizer) callback(i int) recognition.Callback {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cbs[i]
}

func (r *testRecognizer) last() recognition.Callback {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cbs[len(r.cbs)-1]
}

// recorder collects status events
type recorder struct {
	mu       sync.Mutex
	statuses []Status
	ch       chan Status
}

func newRecorder() *recorder {
	return &recorder{ch: make(chan Status, 100)}
}

func (r *recorder) Notify(_ context.Context, st Status) {
	r.mu.Lock()
	r.statuses = append(r.statuses, st)
	r.mu.Unlock()
	r.ch <- st
}

func (r *recorder) strings() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.statuses))
	for i, s := range r.statuses {
		out[i] = s.String()
	}
	return out
}

// invocations records action calls
type invocations struct {
	mu   sync.Mutex
	keys []string
}

func (inv *invocations) action(_ context.Context, key string) error {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	inv.keys = append(inv.keys, key)
	return nil
}

func (inv *invocations) get() []string {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return append([]string{}, inv.keys...)
}

func newTestTable(t *testing.T, inv *invocations) *command.Table {
	t.Helper()
	table, err := command.NewTable(
		command.Entry{Key: "inicio", Phrases: []string{"inicio"}, Action: inv.action},
		command.Entry{Key: "contacto", Phrases: []string{"contacto", "contactenos"}, Action: inv.action},
		command.Entry{Key: "detener", Phrases: []string{"detener", "tener"}, Action: inv.action},
	)
	if err != nil {
		t.Fatalf("failed to build table: %v", err)
	}
	return table
}

// drain processes all queued events on the calling goroutine.
func drain(c *Controller) {
	ctx := context.Background()
	for {
		select {
		case ev := <-c.events:
			c.process(ctx, ev)
		default:
			return
		}
	}
}

func transcript(s string) []recognition.Result {
	return []recognition.Result{{Alternatives: []recognition.Alternative{{Transcript: s, Confidence: 0.9}}}}
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestController_InitialState(t *testing.T) {
	inv := &invocations{}
	c := New(newTestTable(t, inv), &testRecognizer{}, newRecorder())

	if c.State() != StateIdle {
		t.Errorf("expected StateIdle, got %v", c.State())
	}
	snap := c.Snapshot()
	if snap.SessionID != "" || snap.LastKey != "" {
		t.Errorf("expected empty snapshot, got %+v", snap)
	}
	if snap.Recognizer != "test" {
		t.Errorf("expected recognizer 'test', got %s", snap.Recognizer)
	}
}

func TestController_Start_TransitionsToListening(t *testing.T) {
	inv := &invocations{}
	rec := newRecorder()
	c := New(newTestTable(t, inv), &testRecognizer{}, rec)

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if c.State() != StateListening {
		t.Errorf("expected StateListening, got %v", c.State())
	}
	if c.Snapshot().SessionID == "" {
		t.Error("expected a session id")
	}
	if got := rec.strings(); len(got) != 0 {
		t.Errorf("expected started to be emitted from the loop, got %v", got)
	}
	drain(c)
	if got := rec.strings(); !equalStrings(got, []string{"started"}) {
		t.Errorf("expected [started], got %v", got)
	}
}

func TestController_Scenario_SuppressesRepeatedKey(t *testing.T) {
	inv := &invocations{}
	rec := newRecorder()
	r := &testRecognizer{}
	c := New(newTestTable(t, inv), r, rec)

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cb := r.last()

	for _, s := range []string{"hola inicio", "inicio", "ya detener"} {
		cb.OnResult(transcript(s))
	}
	drain(c)

	if got := inv.get(); !equalStrings(got, []string{"inicio", "detener"}) {
		t.Errorf("expected actions [inicio detener], got %v", got)
	}
	expected := []string{"started", "command-detected:inicio", "command-detected:detener"}
	if got := rec.strings(); !equalStrings(got, expected) {
		t.Errorf("expected %v, got %v", expected, got)
	}
	if c.Snapshot().LastKey != "detener" {
		t.Errorf("expected lastKey detener, got %s", c.Snapshot().LastKey)
	}
}

func TestController_DifferentKeyUpdatesLastKey(t *testing.T) {
	inv := &invocations{}
	r := &testRecognizer{}
	c := New(newTestTable(t, inv), r, newRecorder())
	c.Start(context.Background())
	cb := r.last()

	cb.OnResult(transcript("inicio"))
	drain(c)
	if c.Snapshot().LastKey != "inicio" {
		t.Fatalf("expected lastKey inicio, got %s", c.Snapshot().LastKey)
	}

	cb.OnResult(transcript("inicio"))
	drain(c)
	if got := inv.get(); len(got) != 1 {
		t.Errorf("repeated key must not re-invoke action, got %v", got)
	}

	cb.OnResult(transcript("Contáctenos"))
	drain(c)
	if got := inv.get(); !equalStrings(got, []string{"inicio", "contacto"}) {
		t.Errorf("expected [inicio contacto], got %v", got)
	}
	if c.Snapshot().LastKey != "contacto" {
		t.Errorf("expected lastKey contacto, got %s", c.Snapshot().LastKey)
	}
}

func TestController_UsesLastResultSet(t *testing.T) {
	inv := &invocations{}
	r := &testRecognizer{}
	c := New(newTestTable(t, inv), r, newRecorder())
	c.Start(context.Background())

	results := []recognition.Result{
		{Alternatives: []recognition.Alternative{{Transcript: "inicio"}}, IsFinal: true},
		{Alternatives: []recognition.Alternative{{Transcript: "por favor contacto"}}},
	}
	r.last().OnResult(results)
	drain(c)

	if got := inv.get(); !equalStrings(got, []string{"contacto"}) {
		t.Errorf("expected [contacto], got %v", got)
	}
}

func TestController_NoMatchAndEmptyResults(t *testing.T) {
	inv := &invocations{}
	rec := newRecorder()
	r := &testRecognizer{}
	c := New(newTestTable(t, inv), r, rec)
	c.Start(context.Background())
	cb := r.last()

	cb.OnResult(transcript("xyz"))
	cb.OnResult(transcript(""))
	cb.OnResult(nil)
	cb.OnResult([]recognition.Result{{}})
	drain(c)

	if got := inv.get(); len(got) != 0 {
		t.Errorf("expected no actions, got %v", got)
	}
	if got := rec.strings(); !equalStrings(got, []string{"started"}) {
		t.Errorf("expected only [started], got %v", got)
	}
	if c.State() != StateListening {
		t.Errorf("expected StateListening, got %v", c.State())
	}
}

func TestController_Start_Unsupported(t *testing.T) {
	inv := &invocations{}
	rec := newRecorder()
	c := New(newTestTable(t, inv), recognition.Unsupported{}, rec)

	err := c.Start(context.Background())
	if !errors.Is(err, recognition.ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}

	if c.State() != StateIdle {
		t.Errorf("expected StateIdle, got %v", c.State())
	}
	if got := rec.strings(); !equalStrings(got, []string{"unsupported"}) {
		t.Errorf("expected exactly [unsupported], got %v", got)
	}
	if got := inv.get(); len(got) != 0 {
		t.Errorf("expected no actions, got %v", got)
	}
}

func TestController_Start_OtherError(t *testing.T) {
	inv := &invocations{}
	rec := newRecorder()
	r := &testRecognizer{startErr: errors.New("microphone busy")}
	c := New(newTestTable(t, inv), r, rec)

	err := c.Start(context.Background())
	if err == nil || errors.Is(err, recognition.ErrUnsupported) {
		t.Fatalf("expected generic start error, got %v", err)
	}
	if c.State() != StateIdle {
		t.Errorf("expected StateIdle, got %v", c.State())
	}
	if got := rec.strings(); !equalStrings(got, []string{"error:microphone busy"}) {
		t.Errorf("expected [error:microphone busy], got %v", got)
	}
}

func TestController_Start_RejectsReentrant(t *testing.T) {
	inv := &invocations{}
	rec := newRecorder()
	r := &testRecognizer{}
	c := New(newTestTable(t, inv), r, rec)

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	first := c.Snapshot().SessionID

	if err := c.Start(context.Background()); err != ErrAlreadyActive {
		t.Errorf("expected ErrAlreadyActive, got %v", err)
	}
	if r.starts != 1 {
		t.Errorf("expected recognizer started once, got %d", r.starts)
	}
	if c.Snapshot().SessionID != first {
		t.Error("session id must not change on rejected start")
	}

	// Also rejected while stopping.
	c.Stop()
	if err := c.Start(context.Background()); err != ErrAlreadyActive {
		t.Errorf("expected ErrAlreadyActive while stopping, got %v", err)
	}
	drain(c)
	if got := rec.strings(); !equalStrings(got, []string{"started"}) {
		t.Errorf("rejected starts must not emit status, got %v", got)
	}
}

func TestController_Stop_IsAsynchronous(t *testing.T) {
	inv := &invocations{}
	rec := newRecorder()
	r := &testRecognizer{}
	c := New(newTestTable(t, inv), r, rec)
	c.Start(context.Background())

	c.Stop()

	if c.State() != StateStopping {
		t.Errorf("expected StateStopping after Stop, got %v", c.State())
	}
	if r.handles[0].stopCount() != 1 {
		t.Errorf("expected handle stopped once, got %d", r.handles[0].stopCount())
	}

	// Second Stop while stopping is a no-op.
	c.Stop()
	if r.handles[0].stopCount() != 1 {
		t.Errorf("expected no second stop request, got %d", r.handles[0].stopCount())
	}

	r.last().OnEnd()
	drain(c)

	if c.State() != StateIdle {
		t.Errorf("expected StateIdle after end, got %v", c.State())
	}
	if got := rec.strings(); !equalStrings(got, []string{"started", "ended"}) {
		t.Errorf("expected [started ended], got %v", got)
	}
}

func TestController_Stop_WhenIdle_NoOp(t *testing.T) {
	inv := &invocations{}
	rec := newRecorder()
	c := New(newTestTable(t, inv), &testRecognizer{}, rec)

	c.Stop()

	if c.State() != StateIdle {
		t.Errorf("expected StateIdle, got %v", c.State())
	}
	if got := rec.strings(); len(got) != 0 {
		t.Errorf("expected no status, got %v", got)
	}
}

func TestController_OnError_TransitionsToIdle(t *testing.T) {
	inv := &invocations{}
	rec := newRecorder()
	r := &testRecognizer{}
	c := New(newTestTable(t, inv), r, rec)
	c.Start(context.Background())

	r.last().OnError(errors.New("network"))
	drain(c)

	if c.State() != StateIdle {
		t.Errorf("expected StateIdle, got %v", c.State())
	}
	if got := rec.strings(); !equalStrings(got, []string{"started", "error:network"}) {
		t.Errorf("expected [started error:network], got %v", got)
	}

	// Restart is possible and resets lastKey.
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("restart failed: %v", err)
	}
	if c.Snapshot().LastKey != "" {
		t.Errorf("expected lastKey reset, got %s", c.Snapshot().LastKey)
	}
}

func TestController_Restart_ResetsDedup(t *testing.T) {
	inv := &invocations{}
	r := &testRecognizer{}
	c := New(newTestTable(t, inv), r, newRecorder())

	c.Start(context.Background())
	r.last().OnResult(transcript("inicio"))
	r.last().OnEnd()
	drain(c)

	c.Start(context.Background())
	r.last().OnResult(transcript("inicio"))
	drain(c)

	if got := inv.get(); !equalStrings(got, []string{"inicio", "inicio"}) {
		t.Errorf("expected inicio to fire once per session, got %v", got)
	}
}

func TestController_IgnoresStaleSessionEvents(t *testing.T) {
	inv := &invocations{}
	rec := newRecorder()
	r := &testRecognizer{}
	c := New(newTestTable(t, inv), r, rec)

	c.Start(context.Background())
	old := r.callback(0)
	old.OnEnd()
	drain(c)

	c.Start(context.Background())
	old.OnResult(transcript("inicio"))
	old.OnEnd()
	drain(c)

	if got := inv.get(); len(got) != 0 {
		t.Errorf("stale session must not dispatch, got %v", got)
	}
	if c.State() != StateListening {
		t.Errorf("stale end must not stop the new session, got %v", c.State())
	}
}

func TestController_EventsAfterEndIgnored(t *testing.T) {
	inv := &invocations{}
	r := &testRecognizer{}
	c := New(newTestTable(t, inv), r, newRecorder())
	c.Start(context.Background())

	cb := r.last()
	cb.OnEnd()
	cb.OnResult(transcript("inicio"))
	drain(c)

	if got := inv.get(); len(got) != 0 {
		t.Errorf("expected no actions after end, got %v", got)
	}
}

func TestController_ResultsWhileStoppingStillDispatch(t *testing.T) {
	inv := &invocations{}
	r := &testRecognizer{}
	c := New(newTestTable(t, inv), r, newRecorder())
	c.Start(context.Background())

	c.Stop()
	r.last().OnResult(transcript("contacto"))
	drain(c)

	if got := inv.get(); !equalStrings(got, []string{"contacto"}) {
		t.Errorf("expected [contacto], got %v", got)
	}
}

func TestController_ActionErrorKeepsListening(t *testing.T) {
	table, err := command.NewTable(command.Entry{
		Key:     "inicio",
		Phrases: []string{"inicio"},
		Action: func(context.Context, string) error {
			return errors.New("navigation failed")
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	r := &testRecognizer{}
	c := New(table, r, newRecorder())
	c.Start(context.Background())

	r.last().OnResult(transcript("inicio"))
	drain(c)

	if c.State() != StateListening {
		t.Errorf("expected StateListening, got %v", c.State())
	}
	if c.Snapshot().LastKey != "inicio" {
		t.Errorf("expected lastKey inicio, got %s", c.Snapshot().LastKey)
	}
}

func TestController_Run_StopCommandEndsSession(t *testing.T) {
	var c *Controller
	inv := &invocations{}
	table, err := command.NewTable(
		command.Entry{Key: "inicio", Phrases: []string{"inicio"}, Action: inv.action},
		command.Entry{Key: "detener", Phrases: []string{"detener", "tener"}, Action: func(ctx context.Context, key string) error {
			c.Stop()
			return nil
		}},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rec := newRecorder()
	r := &testRecognizer{}
	c = New(table, r, rec)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	if err := c.Start(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	r.last().OnResult(transcript("hola inicio"))
	r.last().OnResult(transcript("ya tener"))

	waitFor(t, rec, "command-detected:detener")

	deadline := time.Now().Add(time.Second)
	for r.handles[0].stopCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if r.handles[0].stopCount() != 1 {
		t.Fatalf("expected detener to request stop")
	}

	r.last().OnEnd()
	waitFor(t, rec, "ended")

	if c.State() != StateIdle {
		t.Errorf("expected StateIdle, got %v", c.State())
	}
	if got := inv.get(); !equalStrings(got, []string{"inicio"}) {
		t.Errorf("expected [inicio], got %v", got)
	}
}

func TestController_Run_ReturnsOnCancel(t *testing.T) {
	r := &testRecognizer{}
	c := New(newTestTable(t, &invocations{}), r, newRecorder())

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- c.Run(ctx) }()

	c.Start(context.Background())
	cancel()

	select {
	case err := <-errc:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if r.handles[0].stopCount() != 1 {
		t.Error("expected active session to be stopped on shutdown")
	}

	// Callbacks after Run returned must not block.
	done := make(chan struct{})
	go func() {
		for i := 0; i < eventBufferSize+10; i++ {
			r.last().OnResult(transcript("inicio"))
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("callbacks blocked after Run returned")
	}
}

// eagerRecognizer delivers a result from another goroutine before Start
// returns, the way a push recognizer can when a transcript arrives
// concurrently with the start request.
type eagerRecognizer struct {
	results []recognition.Result
}

func (r *eagerRecognizer) Start(ctx context.Context, cb recognition.Callback) (recognition.Handle, error) {
	go cb.OnResult(r.results)
	time.Sleep(20 * time.Millisecond)
	return &testHandle{}, nil
}

func (r *eagerRecognizer) Name() string { return "eager" }

func TestController_StartedPrecedesEarlyResults(t *testing.T) {
	inv := &invocations{}
	rec := newRecorder()
	c := New(newTestTable(t, inv), &eagerRecognizer{results: transcript("hola inicio")}, rec)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	if err := c.Start(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	waitFor(t, rec, "command-detected:inicio")

	expected := []string{"started", "command-detected:inicio"}
	if got := rec.strings(); !equalStrings(got, expected) {
		t.Errorf("expected %v, got %v", expected, got)
	}
}

func waitFor(t *testing.T, rec *recorder, want string) {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case st := <-rec.ch:
			if st.String() == want {
				return
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %q, got %v", want, rec.strings())
		}
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state    State
		expected string
	}{
		{StateIdle, "IDLE"},
		{StateListening, "LISTENING"},
		{StateStopping, "STOPPING"},
		{State(99), "UNKNOWN(99)"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.expected {
			t.Errorf("State(%d).String() = %v, want %v", tt.state, got, tt.expected)
		}
	}
}

func TestState_IsActive(t *testing.T) {
	tests := []struct {
		state    State
		isActive bool
	}{
		{StateIdle, false},
		{StateListening, true},
		{StateStopping, true},
	}

	for _, tt := range tests {
		if got := tt.state.IsActive(); got != tt.isActive {
			t.Errorf("State(%s).IsActive() = %v, want %v", tt.state, got, tt.isActive)
		}
	}
}

func TestStatus_String(t *testing.T) {
	tests := []struct {
		status   Status
		expected string
	}{
		{Status{Kind: StatusStarted}, "started"},
		{Status{Kind: StatusCommandDetected, Key: "inicio"}, "command-detected:inicio"},
		{Status{Kind: StatusEnded}, "ended"},
		{Status{Kind: StatusError, Message: "not-allowed"}, "error:not-allowed"},
		{Status{Kind: StatusUnsupported}, "unsupported"},
	}

	for _, tt := range tests {
		if got := tt.status.String(); got != tt.expected {
			t.Errorf("Status.String() = %q, want %q", got, tt.expected)
		}
	}
}

func TestController_ActionReceivesSessionID(t *testing.T) {
	var got string
	table, err := command.NewTable(command.Entry{
		Key:     "inicio",
		Phrases: []string{"inicio"},
		Action: func(ctx context.Context, key string) error {
			got = SessionIDFromContext(ctx)
			return nil
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	r := &testRecognizer{}
	c := New(table, r, newRecorder())
	c.Start(context.Background())

	r.last().OnResult(transcript("inicio"))
	drain(c)

	if got == "" || got != c.Snapshot().SessionID {
		t.Errorf("expected action ctx to carry session id %q, got %q", c.Snapshot().SessionID, got)
	}
}
