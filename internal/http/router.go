package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"voice-command-dispatcher/internal/app"
	"voice-command-dispatcher/internal/models"
	"voice-command-dispatcher/internal/service/recognition"
	"voice-command-dispatcher/internal/service/recognition/push"
	"voice-command-dispatcher/internal/service/session"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
)

// maxBodyBytes bounds request bodies on transcript ingest.
const maxBodyBytes = 16 << 10

type errorResponse struct {
	Error string `json:"error"`
}

type commandView struct {
	Key     string   `json:"key"`
	Phrases []string `json:"phrases"`
}

// NewRouter constructs the HTTP router for the service.
func NewRouter(application *app.Application) http.Handler {
	h := &handler{
		app:      application,
		upgrader: newUpgrader(application.Cfg.Service.AllowedOrigins),
	}
	r := chi.NewRouter()

	// Basic middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	// Health endpoints
	r.Get("/v1/liveness", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/v1/readiness", h.readiness)

	// API routes
	r.Route("/v1", func(r chi.Router) {
		r.Get("/session", h.getSession)
		r.Post("/session/start", h.startSession)
		r.Post("/session/stop", h.stopSession)
		r.With(middleware.AllowContentType("application/json")).Post("/transcripts", h.pushTranscript)
		r.Get("/commands", h.listCommands)
		r.Get("/ws", h.statusFeed)
	})

	return r
}

type handler struct {
	app      *app.Application
	upgrader websocket.Upgrader
}

func (h *handler) readiness(w http.ResponseWriter, _ *http.Request) {
	if err := h.app.Ready(); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(err.Error()))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (h *handler) getSession(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.app.Controller.Snapshot())
}

func (h *handler) startSession(w http.ResponseWriter, r *http.Request) {
	err := h.app.Controller.Start(r.Context())
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, h.app.Controller.Snapshot())
	case errors.Is(err, session.ErrAlreadyActive):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, recognition.ErrUnsupported):
		writeError(w, http.StatusNotImplemented, err)
	default:
		writeError(w, http.StatusBadGateway, err)
	}
}

func (h *handler) stopSession(w http.ResponseWriter, _ *http.Request) {
	h.app.Controller.Stop()
	writeJSON(w, http.StatusAccepted, h.app.Controller.Snapshot())
}

func (h *handler) pushTranscript(w http.ResponseWriter, r *http.Request) {
	if h.app.Push == nil {
		writeError(w, http.StatusNotImplemented, errors.New("recognizer does not accept pushed transcripts"))
		return
	}

	var req models.TranscriptRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.app.Validator.Validate(req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	err := h.app.Push.Push(req.Transcript, req.Final)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusAccepted)
	case errors.Is(err, push.ErrNoSession):
		writeError(w, http.StatusConflict, err)
	default:
		writeError(w, http.StatusBadRequest, err)
	}
}

func (h *handler) listCommands(w http.ResponseWriter, _ *http.Request) {
	entries := h.app.Controller.Table().Entries()
	out := make([]commandView, 0, len(entries))
	for _, e := range entries {
		out = append(out, commandView{Key: e.Key, Phrases: e.Phrases})
	}
	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, errorResponse{Error: err.Error()})
}
