package httpapi

import (
	"errors"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"

	"ai-speech-practice-agent/internal/store"
)

// AudioHandler serves synthesized audio artifacts for provider playback.
type AudioHandler struct {
	Store *store.Store
}

// ServeHTTP handles GET /audio/{name}.
func (h *AudioHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	path, err := h.Store.AudioPath(name)
	switch {
	case errors.Is(err, store.ErrInvalidName):
		http.Error(w, "invalid audio name", http.StatusBadRequest)
		return
	case os.IsNotExist(err):
		http.Error(w, "audio not found", http.StatusNotFound)
		return
	case err != nil:
		http.Error(w, "audio unavailable", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "audio/wav")
	http.ServeFile(w, r, path)
}
