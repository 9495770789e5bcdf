package httpapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"ai-speech-practice-agent/internal/store"
)

type fakeCallCreator struct {
	to      string
	webhook string
	fail    bool
}

func (f *fakeCallCreator) CreateCall(ctx context.Context, toNumber, webhookURL string) (string, error) {
	f.to = toNumber
	f.webhook = webhookURL
	if f.fail {
		return "", errors.New("provider down")
	}
	return "CA42", nil
}

func newTestRouter(t *testing.T, creator CallCreator) (http.Handler, *store.Store) {
	t.Helper()
	st, err := store.New(t.TempDir())
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	router := NewRouter(Deps{
		Voice:       &VoiceHandler{PublicBaseURL: "https://agent.example.com"},
		Call:        &CallHandler{Telephony: creator, PublicBaseURL: "https://agent.example.com"},
		Audio:       &AudioHandler{Store: st},
		MediaStream: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}),
	})
	return router, st
}

func TestHealthEndpoints(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	for _, path := range []string{"/v1/liveness", "/v1/readiness"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("%s returned %d", path, rec.Code)
		}
	}
}

func TestVoiceWebhookReturnsStreamMarkup(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	form := strings.NewReader("CallSid=CA777&From=%2B15550001111")
	req := httptest.NewRequest(http.MethodPost, "/voice", form)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("webhook returned %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/xml" {
		t.Errorf("unexpected content type %q", ct)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `<Stream url="wss://agent.example.com/media-stream"`) {
		t.Errorf("markup missing stream url: %q", body)
	}
}

func TestVoiceWebhookWithoutCallSID(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	// No form, no query, garbage body. The webhook must still answer.
	req := httptest.NewRequest(http.MethodPost, "/voice", strings.NewReader("{}"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("webhook returned %d for ill-formed request", rec.Code)
	}
}

func TestExtractCallSID(t *testing.T) {
	tests := []struct {
		name string
		req  func() *http.Request
		want string
	}{
		{
			"form body",
			func() *http.Request {
				r := httptest.NewRequest(http.MethodPost, "/voice", strings.NewReader("CallSid=CA1234567890"))
				r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
				return r
			},
			"CA1234567890",
		},
		{
			"query string",
			func() *http.Request {
				return httptest.NewRequest(http.MethodPost, "/voice?CallSid=CA9876543210", nil)
			},
			"CA9876543210",
		},
		{
			"raw body scan",
			func() *http.Request {
				r := httptest.NewRequest(http.MethodPost, "/voice", strings.NewReader(`{"CallSid": "CAabcdef123456"}`))
				r.Header.Set("Content-Type", "application/json")
				return r
			},
			"CAabcdef123456",
		},
		{
			"absent",
			func() *http.Request {
				return httptest.NewRequest(http.MethodPost, "/voice", strings.NewReader("nothing here"))
			},
			"",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractCallSID(tt.req()); got != tt.want {
				t.Errorf("extractCallSID = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCallInitiation(t *testing.T) {
	creator := &fakeCallCreator{}
	router, _ := newTestRouter(t, creator)

	req := httptest.NewRequest(http.MethodPost, "/call", strings.NewReader(`{"to": "+15552223333"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("call returned %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"callSid":"CA42"`) {
		t.Errorf("response missing call SID: %s", rec.Body.String())
	}
	if creator.to != "+15552223333" {
		t.Errorf("unexpected destination %q", creator.to)
	}
	if creator.webhook != "https://agent.example.com/voice" {
		t.Errorf("unexpected webhook URL %q", creator.webhook)
	}
}

func TestCallInitiationValidation(t *testing.T) {
	router, _ := newTestRouter(t, &fakeCallCreator{})

	tests := []struct {
		name string
		body string
		want int
	}{
		{"invalid json", "not json", http.StatusBadRequest},
		{"missing number", `{"to": ""}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/call", strings.NewReader(tt.body)))
			if rec.Code != tt.want {
				t.Errorf("returned %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestCallInitiationProviderFailure(t *testing.T) {
	router, _ := newTestRouter(t, &fakeCallCreator{fail: true})

	req := httptest.NewRequest(http.MethodPost, "/call", strings.NewReader(`{"to": "+15552223333"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadGateway {
		t.Errorf("returned %d, want 502", rec.Code)
	}
}

func TestCallInitiationWithoutTelephony(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/call", strings.NewReader(`{"to": "+15552223333"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("returned %d, want 503", rec.Code)
	}
}

func TestAudioServing(t *testing.T) {
	router, st := newTestRouter(t, nil)
	if _, err := st.WriteAudio("feedback-MZ1.wav", []byte("RIFFfake")); err != nil {
		t.Fatalf("WriteAudio: %v", err)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/audio/feedback-MZ1.wav", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("audio returned %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "audio/wav" {
		t.Errorf("unexpected content type %q", ct)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/audio/missing.wav", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing audio returned %d, want 404", rec.Code)
	}
}
