// Package google provides a Google Cloud Speech-to-Text recognizer.
package google

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	speech "cloud.google.com/go/speech/apiv1"
	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/rs/zerolog"

	"voice-command-dispatcher/internal/observability/logging"
	"voice-command-dispatcher/internal/service/recognition"
)

// chunkSize is 100ms of 16kHz LINEAR16 audio.
const chunkSize = 3200

// Config holds configuration for the Google STT recognizer.
type Config struct {
	LanguageCode   string
	SampleRateHz   int32
	InterimResults bool
	AudioEncoding  string
	AudioPath      string
}

// DefaultConfig returns sensible defaults for Spanish voice commands.
func DefaultConfig() Config {
	return Config{
		LanguageCode:   "es-ES",
		SampleRateHz:   16000,
		InterimResults: true,
		AudioEncoding:  "LINEAR16",
	}
}

// AudioSource opens the audio stream for one session.
type AudioSource func() (io.ReadCloser, error)

// FileSource reads raw audio from path. An empty path means no audio input.
func FileSource(path string) AudioSource {
	if path == "" {
		return nil
	}
	return func() (io.ReadCloser, error) {
		return os.Open(path)
	}
}

// Recognizer implements recognition.Recognizer using Google Cloud
// Speech-to-Text streaming recognition.
type Recognizer struct {
	client *speech.Client
	config Config
	source AudioSource
	logger zerolog.Logger
}

// New creates a Google recognizer reading audio from cfg.AudioPath.
// Requires GOOGLE_APPLICATION_CREDENTIALS environment variable to be set.
func New(ctx context.Context, cfg Config) (*Recognizer, error) {
	c, err := speech.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	return &Recognizer{
		client: c,
		config: cfg,
		source: FileSource(cfg.AudioPath),
		logger: logging.WithComponent("google-recognizer"),
	}, nil
}

// Name returns "google".
func (r *Recognizer) Name() string {
	return "google"
}

// Close releases the client.
func (r *Recognizer) Close() error {
	if r.client == nil {
		return nil
	}
	return r.client.Close()
}

// Start opens the audio source, begins a streaming session and sends the
// initial config. Without a client or an audio source the capability is
// unsupported. The session outlives ctx; use the returned Handle to stop it.
func (r *Recognizer) Start(ctx context.Context, cb recognition.Callback) (recognition.Handle, error) {
	if r.client == nil || r.source == nil {
		return nil, recognition.ErrUnsupported
	}

	audio, err := r.source()
	if err != nil {
		return nil, fmt.Errorf("open audio: %w", err)
	}

	sctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stream, err := r.client.StreamingRecognize(sctx)
	if err != nil {
		cancel()
		audio.Close()
		return nil, fmt.Errorf("open stream: %w", err)
	}

	// Send streaming config as the first message
	err = stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config: &speechpb.RecognitionConfig{
					Encoding:        parseAudioEncoding(r.config.AudioEncoding),
					SampleRateHertz: r.config.SampleRateHz,
					LanguageCode:    r.config.LanguageCode,
				},
				InterimResults: r.config.InterimResults,
			},
		},
	})
	if err != nil {
		cancel()
		audio.Close()
		return nil, fmt.Errorf("send streaming config: %w", err)
	}

	s := &session{
		ctx:    sctx,
		cancel: cancel,
		stream: stream,
		audio:  audio,
		cb:     cb,
		logger: r.logger,
	}
	go s.send()
	go s.listen()
	return s, nil
}

type session struct {
	ctx    context.Context
	cancel context.CancelFunc
	stream speechpb.Speech_StreamingRecognizeClient
	audio  io.ReadCloser
	cb     recognition.Callback
	logger zerolog.Logger

	stopOnce sync.Once
}

// Stop cancels the stream; listen reports OnEnd.
func (s *session) Stop() {
	s.stopOnce.Do(func() {
		s.cancel()
		s.audio.Close()
	})
}

// send streams audio chunks until the source is exhausted or the session stops.
func (s *session) send() {
	buf := make([]byte, chunkSize)
	for {
		n, err := s.audio.Read(buf)
		if n > 0 {
			sendErr := s.stream.Send(&speechpb.StreamingRecognizeRequest{
				StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{
					AudioContent: append([]byte(nil), buf[:n]...),
				},
			})
			if sendErr != nil {
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && s.ctx.Err() == nil {
				s.logger.Warn().Err(err).Msg("Audio read failed")
			}
			if closeErr := s.stream.CloseSend(); closeErr != nil {
				s.logger.Debug().Err(closeErr).Msg("CloseSend failed")
			}
			return
		}
	}
}

// listen receives responses from Google and invokes callbacks. Finals are
// kept for the whole session so each delivery carries every result so far.
func (s *session) listen() {
	defer s.Stop()

	var finals []recognition.Result
	for {
		resp, err := s.stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) || s.ctx.Err() != nil {
				s.cb.OnEnd()
				return
			}
			s.cb.OnError(err)
			return
		}

		var interim []recognition.Result
		for _, r := range toResults(resp.Results) {
			if r.IsFinal {
				finals = append(finals, r)
			} else {
				interim = append(interim, r)
			}
		}
		if len(finals)+len(interim) == 0 {
			continue
		}

		results := make([]recognition.Result, 0, len(finals)+len(interim))
		results = append(results, finals...)
		results = append(results, interim...)
		s.cb.OnResult(results)
	}
}

// toResults converts streaming results, skipping those without alternatives.
func toResults(in []*speechpb.StreamingRecognitionResult) []recognition.Result {
	out := make([]recognition.Result, 0, len(in))
	for _, r := range in {
		if len(r.Alternatives) == 0 {
			continue
		}
		alts := make([]recognition.Alternative, 0, len(r.Alternatives))
		for _, a := range r.Alternatives {
			alts = append(alts, recognition.Alternative{
				Transcript: a.Transcript,
				Confidence: float64(a.Confidence),
			})
		}
		out = append(out, recognition.Result{Alternatives: alts, IsFinal: r.IsFinal})
	}
	return out
}

// parseAudioEncoding converts a string encoding name to the protobuf enum.
func parseAudioEncoding(encoding string) speechpb.RecognitionConfig_AudioEncoding {
	switch encoding {
	case "LINEAR16":
		return speechpb.RecognitionConfig_LINEAR16
	case "MULAW":
		return speechpb.RecognitionConfig_MULAW
	case "FLAC":
		return speechpb.RecognitionConfig_FLAC
	case "AMR":
		return speechpb.RecognitionConfig_AMR
	case "AMR_WB":
		return speechpb.RecognitionConfig_AMR_WB
	case "OGG_OPUS":
		return speechpb.RecognitionConfig_OGG_OPUS
	case "SPEEX_WITH_HEADER_BYTE":
		return speechpb.RecognitionConfig_SPEEX_WITH_HEADER_BYTE
	case "WEBM_OPUS":
		return speechpb.RecognitionConfig_WEBM_OPUS
	default:
		return speechpb.RecognitionConfig_LINEAR16
	}
}
