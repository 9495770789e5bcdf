package stream

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"ai-speech-practice-agent/internal/service/assess"
	assessmock "ai-speech-practice-agent/internal/service/assess/mock"
	"ai-speech-practice-agent/internal/service/convo"
	"ai-speech-practice-agent/internal/service/stt"
	sttmock "ai-speech-practice-agent/internal/service/stt/mock"
	"ai-speech-practice-agent/internal/service/tts"
	"ai-speech-practice-agent/internal/session"
	"ai-speech-practice-agent/internal/store"
)

// scriptedDetector fires speech boundaries at fixed chunk counts instead
// of measuring energy, so tests control turn timing exactly.
type scriptedDetector struct {
	mu      sync.Mutex
	onStart func()
	onEnd   func()
	startAt int
	endAt   int
	chunks  int
	closed  bool
}

func (d *scriptedDetector) Process(pcm []byte) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.chunks++
	n := d.chunks
	startAt, endAt := d.startAt, d.endAt
	start, end := d.onStart, d.onEnd
	d.mu.Unlock()

	if n == startAt && start != nil {
		start()
	}
	if n == endAt && end != nil {
		end()
	}
}

func (d *scriptedDetector) script(startAt, endAt int) {
	d.mu.Lock()
	d.startAt = startAt
	d.endAt = endAt
	d.mu.Unlock()
}

func (d *scriptedDetector) Reset() {}

func (d *scriptedDetector) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
}

// recordingPublisher captures published events in memory.
type recordingPublisher struct {
	mu          sync.Mutex
	partials    []any
	finals      []any
	assessments []any
}

func (p *recordingPublisher) PublishTranscriptPartial(ctx context.Context, key string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.partials = append(p.partials, event)
	return nil
}

func (p *recordingPublisher) PublishTranscriptFinal(ctx context.Context, key string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.finals = append(p.finals, event)
	return nil
}

func (p *recordingPublisher) PublishAssessment(ctx context.Context, key string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.assessments = append(p.assessments, event)
	return nil
}

func (p *recordingPublisher) counts() (int, int, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.partials), len(p.finals), len(p.assessments)
}

// countingDeliverer records feedback deliveries.
type countingDeliverer struct {
	mu    sync.Mutex
	count int
}

func (d *countingDeliverer) Deliver(ctx context.Context, sess *session.Session) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.count++
	return nil
}

func (d *countingDeliverer) deliveries() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.count
}

type testEnv struct {
	registry  *session.Registry
	publisher *recordingPublisher
	feedback  *countingDeliverer
	detector  *scriptedDetector
	server    *httptest.Server
	ws        *websocket.Conn
}

func newTestEnv(t *testing.T, feedbackDelay time.Duration) *testEnv {
	t.Helper()

	st, err := store.New(t.TempDir())
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}

	env := &testEnv{
		registry:  session.NewRegistry(),
		publisher: &recordingPublisher{},
		feedback:  &countingDeliverer{},
		detector:  &scriptedDetector{startAt: 1, endAt: 8},
	}

	handler := NewHandler(Deps{
		Registry: env.registry,
		NewTranscriber: func(ctx context.Context) (stt.Transcriber, error) {
			return sttmock.NewScripted([]sttmock.SimulatedUtterance{
				{
					Partials:   []string{"um so", "um so yesterday"},
					Final:      "um so yesterday I went to the market",
					Confidence: 0.93,
				},
			}), nil
		},
		NewPipeline: func() *assess.Pipeline {
			limits := assess.DefaultLimits()
			limits.MinSnapshotLen = 1
			return assess.NewPipeline(assessmock.New(), limits)
		},
		Generator:   convo.NewMock(),
		Synthesizer: tts.NewMock(),
		Publisher:   env.publisher,
		Store:       st,
		Feedback:    env.feedback,
		NewDetector: func(onStart, onEnd func()) VoiceDetector {
			env.detector.onStart = onStart
			env.detector.onEnd = onEnd
			return env.detector
		},
		FeedbackDelay: feedbackDelay,
	})

	env.server = httptest.NewServer(handler)
	t.Cleanup(env.server.Close)

	wsURL := "ws" + strings.TrimPrefix(env.server.URL, "http")
	ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { ws.Close() })
	env.ws = ws
	return env
}

func (env *testEnv) sendStart(t *testing.T, streamSID, callSID string) {
	t.Helper()
	frame := map[string]any{
		"event":     "start",
		"streamSid": streamSID,
		"start": map[string]any{
			"streamSid": streamSID,
			"callSid":   callSID,
			"tracks":    []string{"inbound"},
		},
	}
	if err := env.ws.WriteJSON(frame); err != nil {
		t.Fatalf("write start: %v", err)
	}
}

func (env *testEnv) sendMedia(t *testing.T, streamSID string, chunks int) {
	t.Helper()
	payload := base64.StdEncoding.EncodeToString(make([]byte, 160))
	for i := 0; i < chunks; i++ {
		frame := map[string]any{
			"event":     "media",
			"streamSid": streamSID,
			"media":     map[string]any{"track": "inbound", "payload": payload},
		}
		if err := env.ws.WriteJSON(frame); err != nil {
			t.Fatalf("write media: %v", err)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func (env *testEnv) sendStop(t *testing.T, streamSID string) {
	t.Helper()
	frame := map[string]any{"event": "stop", "streamSid": streamSID, "stop": map[string]any{}}
	_ = env.ws.WriteJSON(frame)
}

// readOutboundMedia reads frames until an outbound media frame arrives.
func (env *testEnv) readOutboundMedia(t *testing.T, timeout time.Duration) string {
	t.Helper()
	env.ws.SetReadDeadline(time.Now().Add(timeout))
	for {
		_, data, err := env.ws.ReadMessage()
		if err != nil {
			t.Fatalf("no outbound media frame before deadline: %v", err)
		}
		var decoded struct {
			Event string `json:"event"`
			Media struct {
				Payload string `json:"payload"`
			} `json:"media"`
		}
		if err := json.Unmarshal(data, &decoded); err != nil {
			continue
		}
		if decoded.Event == "media" {
			return decoded.Media.Payload
		}
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return cond()
}

func TestStreamConversationTurn(t *testing.T) {
	env := newTestEnv(t, time.Minute)

	env.sendStart(t, "MZ1", "CA1")

	if !waitFor(t, time.Second, func() bool { return env.registry.Get("MZ1") != nil }) {
		t.Fatal("session not registered after start frame")
	}
	sess := env.registry.Get("MZ1")
	if sess.CallSID() != "CA1" {
		t.Errorf("call SID not bound, got %q", sess.CallSID())
	}

	env.sendMedia(t, "MZ1", 10)

	// The scripted detector ends speech at chunk 8; after the grace period
	// the turn runs and the synthesized reply comes back as one frame.
	payload := env.readOutboundMedia(t, 3*time.Second)
	if payload == "" {
		t.Fatal("outbound media frame has empty payload")
	}
	if _, err := base64.StdEncoding.DecodeString(payload); err != nil {
		t.Errorf("outbound payload is not base64: %v", err)
	}

	history := sess.History()
	if len(history) < 2 {
		t.Fatalf("expected user and assistant turns, got %d", len(history))
	}
	if history[0].Role != session.RoleUser || history[0].Text != "um so yesterday I went to the market" {
		t.Errorf("unexpected user turn %+v", history[0])
	}
	if history[1].Role != session.RoleAssistant || history[1].Text == "" {
		t.Errorf("unexpected assistant turn %+v", history[1])
	}

	if !waitFor(t, 2*time.Second, func() bool {
		_, finals, assessments := env.publisher.counts()
		return finals >= 1 && assessments >= 1
	}) {
		partials, finals, assessments := env.publisher.counts()
		t.Fatalf("events not published: partials=%d finals=%d assessments=%d", partials, finals, assessments)
	}

	env.sendStop(t, "MZ1")
	if !waitFor(t, 2*time.Second, func() bool { return env.registry.Get("MZ1") == nil }) {
		t.Error("session not removed after stop")
	}
}

func TestStreamPublishesPartials(t *testing.T) {
	env := newTestEnv(t, time.Minute)

	env.sendStart(t, "MZ2", "")
	env.sendMedia(t, "MZ2", 4)

	if !waitFor(t, 2*time.Second, func() bool {
		partials, _, _ := env.publisher.counts()
		return partials >= 2
	}) {
		partials, _, _ := env.publisher.counts()
		t.Errorf("expected partial transcript events, got %d", partials)
	}
}

func TestFeedbackTimerFiresOnce(t *testing.T) {
	env := newTestEnv(t, 80*time.Millisecond)

	env.sendStart(t, "MZ3", "CA3")
	env.sendMedia(t, "MZ3", 3)

	if !waitFor(t, 2*time.Second, func() bool { return env.feedback.deliveries() == 1 }) {
		t.Fatalf("expected one feedback delivery, got %d", env.feedback.deliveries())
	}
	time.Sleep(200 * time.Millisecond)
	if got := env.feedback.deliveries(); got != 1 {
		t.Errorf("feedback delivered %d times, want exactly 1", got)
	}
}

func TestFeedbackCancelledOnEarlyTeardown(t *testing.T) {
	env := newTestEnv(t, 300*time.Millisecond)

	env.sendStart(t, "MZ4", "CA4")
	env.sendStop(t, "MZ4")

	if !waitFor(t, 2*time.Second, func() bool { return env.registry.Get("MZ4") == nil }) {
		t.Fatal("session not removed after stop")
	}
	time.Sleep(500 * time.Millisecond)
	if got := env.feedback.deliveries(); got != 0 {
		t.Errorf("feedback delivered %d times after early teardown, want 0", got)
	}
}

func TestMediaBeforeStartIsDropped(t *testing.T) {
	env := newTestEnv(t, time.Minute)

	// No start frame: media must be ignored without crashing the stream.
	env.sendMedia(t, "MZ5", 3)
	env.sendStart(t, "MZ5", "")

	if !waitFor(t, time.Second, func() bool { return env.registry.Get("MZ5") != nil }) {
		t.Fatal("start frame after stray media not handled")
	}
}

func TestShortUtteranceRejected(t *testing.T) {
	env := newTestEnv(t, time.Minute)
	// Speech ends after two chunks: the scripted transcriber has delivered
	// only partials, so the committed utterance is empty and no turn runs.
	env.detector.script(1, 2)

	env.sendStart(t, "MZ6", "")
	env.sendMedia(t, "MZ6", 2)

	sess := env.registry.Get("MZ6")
	if sess == nil {
		t.Fatal("session missing")
	}
	time.Sleep(600 * time.Millisecond)
	if len(sess.History()) != 0 {
		t.Errorf("expected no turns for short utterance, got %d", len(sess.History()))
	}
}
