package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
)

// CallCreator initiates an outbound call and returns its SID.
type CallCreator interface {
	CreateCall(ctx context.Context, toNumber, webhookURL string) (string, error)
}

// CallHandler starts a practice call to a phone number.
type CallHandler struct {
	Telephony     CallCreator
	PublicBaseURL string
}

type callRequest struct {
	To string `json:"to"`
}

type callResponse struct {
	CallSID string `json:"callSid"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// ServeHTTP handles POST /call.
func (h *CallHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if h.Telephony == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "telephony not configured"})
		return
	}

	var req callRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if strings.TrimSpace(req.To) == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing destination number"})
		return
	}

	webhookURL := strings.TrimRight(h.PublicBaseURL, "/") + "/voice"
	sid, err := h.Telephony.CreateCall(r.Context(), req.To, webhookURL)
	if err != nil {
		log.Error().Err(err).Str("component", "httpapi").Msg("Call initiation failed")
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: "call initiation failed"})
		return
	}

	writeJSON(w, http.StatusCreated, callResponse{CallSID: sid})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
