package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"voice-command-dispatcher/internal/config"
	"voice-command-dispatcher/internal/events"
	"voice-command-dispatcher/internal/i18n"
	"voice-command-dispatcher/internal/notify"
	"voice-command-dispatcher/internal/observability/logging"
	"voice-command-dispatcher/internal/schema"
	"voice-command-dispatcher/internal/service/actions"
	"voice-command-dispatcher/internal/service/command"
	"voice-command-dispatcher/internal/service/recognition"
	"voice-command-dispatcher/internal/service/recognition/google"
	"voice-command-dispatcher/internal/service/recognition/mock"
	"voice-command-dispatcher/internal/service/recognition/push"
	"voice-command-dispatcher/internal/service/session"
)

// ErrUnknownProvider is returned for an unrecognized RECOGNIZER_PROVIDER.
var ErrUnknownProvider = errors.New("unknown recognizer provider")

// ErrNotRunning is reported by Ready before Start or after Shutdown.
var ErrNotRunning = errors.New("session controller not running")

// Application holds process-wide state for the service.
type Application struct {
	StartupTime time.Time
	Logger      zerolog.Logger
	Cfg         *config.Config

	Controller *session.Controller
	Hub        *notify.Hub
	Publisher  *events.Publisher
	Validator  *schema.Validator

	// Push is set when the push provider is configured.
	Push *push.Recognizer

	closers []func() error
	cancel  context.CancelFunc
	done    chan struct{}
}

// New constructs the Application and wires the session controller,
// recognizer, command table and notifiers from cfg.
func New(ctx context.Context, cfg *config.Config) (*Application, error) {
	a := &Application{
		Cfg:    cfg,
		Logger: logging.WithComponent("application").With().Str("service", cfg.Service.Principal).Logger(),
	}

	if !i18n.SetLanguage(i18n.Language(cfg.Notify.Locale)) {
		a.Logger.Warn().Str("locale", cfg.Notify.Locale).Msg("Unsupported locale, keeping default")
	}

	a.Validator = schema.New()
	a.Hub = notify.NewHub()
	a.Publisher = events.New(&events.Config{
		Brokers:      cfg.Kafka.Brokers,
		TopicStatus:  cfg.Kafka.TopicStatus,
		TopicCommand: cfg.Kafka.TopicCommand,
		Principal:    cfg.Kafka.Principal,
		Enabled:      cfg.Kafka.Enabled,
	})
	a.closers = append(a.closers, a.Publisher.Close)
	kafkaNotifier := notify.NewKafka(a.Publisher, a.Validator)

	recognizer, err := a.newRecognizer(ctx)
	if err != nil {
		return nil, err
	}

	// The stop action needs the controller, which needs the table.
	var controller *session.Controller
	stopper := actions.StopperFunc(func() { controller.Stop() })
	binder := actions.Binder(stopper, a.Hub, kafkaNotifier)

	table, err := loadTable(cfg.Commands.File, binder)
	if err != nil {
		return nil, err
	}

	notifiers := notify.Multi{notify.NewLog(), a.Hub, kafkaNotifier}
	if cfg.Notify.Desktop {
		notifiers = append(notifiers, notify.NewDesktop(true))
	}

	controller = session.New(table, recognizer, notifiers)
	a.Controller = controller

	a.Logger.Info().
		Str("recognizer", recognizer.Name()).
		Strs("commands", table.Keys()).
		Bool("kafka", a.Publisher.Enabled()).
		Msg("Voice command dispatcher application created")
	return a, nil
}

func (a *Application) newRecognizer(ctx context.Context) (recognition.Recognizer, error) {
	rc := a.Cfg.Recognition
	switch rc.Provider {
	case "mock":
		return mock.New(rc.MockInterval), nil
	case "push":
		a.Push = push.New()
		return a.Push, nil
	case "google":
		g, err := google.New(ctx, google.Config{
			LanguageCode:   rc.LanguageCode,
			SampleRateHz:   rc.SampleRateHz,
			InterimResults: rc.InterimResults,
			AudioEncoding:  rc.AudioEncoding,
			AudioPath:      rc.AudioPath,
		})
		if err != nil {
			// Sessions will report unsupported instead of failing startup.
			a.Logger.Warn().Err(err).Msg("Google Speech client unavailable")
			return recognition.Unsupported{}, nil
		}
		a.closers = append(a.closers, g.Close)
		return g, nil
	case "none":
		return recognition.Unsupported{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, rc.Provider)
	}
}

func loadTable(path string, b command.ActionBinder) (*command.Table, error) {
	if path == "" {
		return command.Default(b)
	}
	return command.LoadFile(path, b)
}

// Start runs the session controller loop until Shutdown.
func (a *Application) Start(ctx context.Context) error {
	if a.done != nil {
		return errors.New("application already started")
	}
	ctx, a.cancel = context.WithCancel(ctx)
	a.done = make(chan struct{})

	a.StartupTime = time.Now().UTC()
	a.Logger.Info().
		Time("startupTime", a.StartupTime).
		Msg("Voice command dispatcher starting")

	go func() {
		defer close(a.done)
		if err := a.Controller.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			a.Logger.Error().Err(err).Msg("Session controller stopped")
		}
	}()
	return nil
}

// Ready reports whether the controller loop is running.
func (a *Application) Ready() error {
	if a.done == nil {
		return ErrNotRunning
	}
	select {
	case <-a.done:
		return ErrNotRunning
	default:
		return nil
	}
}

// CloseStreams ends every live status subscription (WebSocket feeds, gRPC
// WatchStatus) so transports can drain. Call it before stopping servers.
func (a *Application) CloseStreams() {
	a.Hub.Close()
}

// ActiveSession returns the id of the most recent recognition session, or ""
// before the first Start.
func (a *Application) ActiveSession() string {
	return a.Controller.Snapshot().SessionID
}

// Shutdown stops the controller loop and releases resources.
func (a *Application) Shutdown() {
	a.Logger.Info().Msg("Voice command dispatcher shutting down")
	a.CloseStreams()

	if a.cancel != nil {
		a.cancel()
		<-a.done
	}
	for _, c := range a.closers {
		if err := c(); err != nil {
			a.Logger.Error().Err(err).Msg("Error during shutdown")
		}
	}
}
