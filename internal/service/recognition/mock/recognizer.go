// Package mock provides a scripted recognizer for running without a microphone
// or cloud credentials. It simulates continuous recognition: progressive
// interim results per utterance, one final result per utterance, and result
// sets that accumulate over the session like a browser recognizer does.
package mock

import (
	"context"
	"sync"
	"time"

	"voice-command-dispatcher/internal/service/recognition"
)

// Utterance represents a simulated utterance with progressive transcripts.
type Utterance struct {
	Partials   []string // Progressive interim transcripts
	Final      string   // Final transcript text
	Confidence float64  // Confidence score for final
}

// DefaultUtterances is a short navigation demo ending with a stop command.
var DefaultUtterances = []Utterance{
	{
		Partials:   []string{"hola", "hola ir a"},
		Final:      "hola ir a inicio",
		Confidence: 0.93,
	},
	{
		Partials:   []string{"ahora", "ahora servicios"},
		Final:      "ahora servicios",
		Confidence: 0.91,
	},
	{
		Partials:   []string{"quiero ver", "quiero ver nosotros"},
		Final:      "quiero ver nosotros",
		Confidence: 0.95,
	},
	{
		Partials:   []string{"página de", "página de contacto"},
		Final:      "página de contáctenos",
		Confidence: 0.89,
	},
	{
		Partials:   []string{"ya puedes"},
		Final:      "ya puedes detener",
		Confidence: 0.97,
	},
}

// DefaultInterval is the delay between simulated results.
const DefaultInterval = 750 * time.Millisecond

// Recognizer implements recognition.Recognizer with scripted utterances.
type Recognizer struct {
	utterances []Utterance
	interval   time.Duration
}

// New creates a mock recognizer playing DefaultUtterances.
func New(interval time.Duration) *Recognizer {
	return NewWithUtterances(interval, DefaultUtterances)
}

// NewWithUtterances creates a mock recognizer playing the given script.
func NewWithUtterances(interval time.Duration, utterances []Utterance) *Recognizer {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Recognizer{
		utterances: utterances,
		interval:   interval,
	}
}

// Name returns "mock".
func (r *Recognizer) Name() string {
	return "mock"
}

// Start begins playing the script. The session lives until the script is
// exhausted or Stop is called; ctx only scopes the Start call itself.
func (r *Recognizer) Start(ctx context.Context, cb recognition.Callback) (recognition.Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := &session{
		cb:         cb,
		utterances: r.utterances,
		interval:   r.interval,
		stop:       make(chan struct{}),
	}
	go s.run()
	return s, nil
}

// session is one scripted recognition run.
type session struct {
	cb         recognition.Callback
	utterances []Utterance
	interval   time.Duration

	stop     chan struct{}
	stopOnce sync.Once
}

// Stop ends the session. OnEnd is delivered from the session goroutine.
func (s *session) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

func (s *session) run() {
	defer s.cb.OnEnd()

	var finals []recognition.Result
	for _, utt := range s.utterances {
		for _, partial := range utt.Partials {
			if !s.wait() {
				return
			}
			interim := recognition.Result{
				Alternatives: []recognition.Alternative{{Transcript: partial}},
			}
			s.cb.OnResult(append(append([]recognition.Result(nil), finals...), interim))
		}

		if !s.wait() {
			return
		}
		finals = append(finals, recognition.Result{
			Alternatives: []recognition.Alternative{{Transcript: utt.Final, Confidence: utt.Confidence}},
			IsFinal:      true,
		})
		s.cb.OnResult(append([]recognition.Result(nil), finals...))
	}
}

// wait sleeps one interval. It returns false if the session was stopped.
func (s *session) wait() bool {
	t := time.NewTimer(s.interval)
	defer t.Stop()
	select {
	case <-s.stop:
		return false
	case <-t.C:
		return true
	}
}
