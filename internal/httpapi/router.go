// Package httpapi exposes the service's HTTP surface: the voice webhook,
// call initiation, hosted audio playback, and the media-stream WebSocket.
package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Deps are the collaborators the HTTP handlers need.
type Deps struct {
	Voice       *VoiceHandler
	Call        *CallHandler
	Audio       *AudioHandler
	MediaStream http.Handler
}

// NewRouter constructs the HTTP router for the service.
func NewRouter(deps Deps) http.Handler {
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
	r.Get("/v1/readiness", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	// Provider webhook and practice-call API
	r.Post("/voice", deps.Voice.ServeHTTP)
	r.Post("/call", deps.Call.ServeHTTP)
	r.Get("/audio/{name}", deps.Audio.ServeHTTP)

	// Media-stream WebSocket
	r.HandleFunc("/media-stream", deps.MediaStream.ServeHTTP)

	return r
}
