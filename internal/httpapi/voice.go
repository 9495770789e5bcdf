package httpapi

import (
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"

	"ai-speech-practice-agent/internal/telephony"
)

// VoiceHandler answers the provider's voice webhook with the markup that
// connects the answered call to this service's media stream.
type VoiceHandler struct {
	PublicBaseURL string
}

// ServeHTTP returns the stream-connect document. The call SID is only
// logged here; it also arrives on the stream's start frame, which is the
// binding that matters.
func (h *VoiceHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	callSID := extractCallSID(r)

	log.Info().
		Str("component", "httpapi").
		Str("callSid", callSID).
		Msg("Voice webhook answered")

	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(telephony.StreamConnectMarkup(h.PublicBaseURL)))
}

// extractCallSID digs the call SID out of the webhook request: form body
// first, then query string, then a raw-body scan. Providers differ in how
// they deliver it and the webhook must answer regardless.
func extractCallSID(r *http.Request) string {
	if err := r.ParseForm(); err == nil {
		if sid := r.PostFormValue("CallSid"); sid != "" {
			return sid
		}
		if sid := r.FormValue("CallSid"); sid != "" {
			return sid
		}
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 64*1024))
	if err != nil || len(body) == 0 {
		return ""
	}
	if values, err := url.ParseQuery(string(body)); err == nil {
		if sid := values.Get("CallSid"); sid != "" {
			return sid
		}
	}
	// Last resort: scan for the provider's call SID prefix.
	if idx := strings.Index(string(body), "CA"); idx >= 0 {
		rest := body[idx:]
		end := 0
		for end < len(rest) && isSIDChar(rest[end]) {
			end++
		}
		if end >= 10 {
			return string(rest[:end])
		}
	}
	return ""
}

func isSIDChar(b byte) bool {
	switch {
	case b >= 'a' && b <= 'z', b >= 'A' && b <= 'Z', b >= '0' && b <= '9':
		return true
	}
	return false
}
