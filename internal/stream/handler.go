package stream

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"ai-speech-practice-agent/internal/audio"
	"ai-speech-practice-agent/internal/models"
	"ai-speech-practice-agent/internal/observability/logging"
	"ai-speech-practice-agent/internal/observability/metrics"
	"ai-speech-practice-agent/internal/service/assess"
	"ai-speech-practice-agent/internal/service/convo"
	"ai-speech-practice-agent/internal/service/stt"
	"ai-speech-practice-agent/internal/service/tts"
	"ai-speech-practice-agent/internal/session"
	"ai-speech-practice-agent/internal/store"
)

const (
	// speechEndGrace is how long after detected speech end the orchestrator
	// waits for the STT provider to flush its final transcript.
	speechEndGrace = 300 * time.Millisecond

	// minUtteranceChars rejects accidental noise transcripts before a turn.
	minUtteranceChars = 2

	// replyTimeout bounds generation plus synthesis for one turn.
	replyTimeout = 15 * time.Second

	// fallbackReply is spoken when generation fails. The caller must never
	// get dead air after finishing an utterance.
	fallbackReply = "Sorry, I did not catch that. Could you say it again?"
)

// EventPublisher is the slice of the Kafka publisher the orchestrator uses.
type EventPublisher interface {
	PublishTranscriptPartial(ctx context.Context, key string, event any) error
	PublishTranscriptFinal(ctx context.Context, key string, event any) error
	PublishAssessment(ctx context.Context, key string, event any) error
}

// FeedbackDeliverer delivers the one-shot coaching feedback for a session.
type FeedbackDeliverer interface {
	Deliver(ctx context.Context, sess *session.Session) error
}

// Deps are the collaborators one media-stream connection is wired to.
// Factories run per connection; the rest are shared.
type Deps struct {
	Registry       *session.Registry
	NewTranscriber func(ctx context.Context) (stt.Transcriber, error)
	NewPipeline    func() *assess.Pipeline
	Generator      convo.Generator
	Synthesizer    tts.Synthesizer
	Publisher      EventPublisher
	Store          *store.Store
	Feedback       FeedbackDeliverer
	FeedbackDelay  time.Duration

	// NewDetector builds one voice detector per connection with its speech
	// boundary callbacks attached.
	NewDetector func(onSpeechStart, onSpeechEnd func()) VoiceDetector
}

// VoiceDetector is the slice of the VAD the orchestrator drives.
type VoiceDetector interface {
	Process(pcm []byte)
	Reset()
	Close()
}

// Handler upgrades media-stream WebSocket connections and runs one
// orchestrated call per connection.
type Handler struct {
	deps     Deps
	upgrader websocket.Upgrader
}

// NewHandler creates the media-stream endpoint handler.
func NewHandler(deps Deps) *Handler {
	if deps.FeedbackDelay <= 0 {
		deps.FeedbackDelay = 30 * time.Second
	}
	return &Handler{
		deps: deps,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The provider's media-stream client sends no Origin header.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// ServeHTTP upgrades the connection and runs its read loop to completion.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	c := newConn(ws, h.deps)
	c.run()
}

// conn owns one media-stream connection: the socket, the call lifecycle,
// and every per-call collaborator built at the start frame.
type conn struct {
	ws   *websocket.Conn
	deps Deps
	lc   *Lifecycle

	// writeMu serializes socket writes; gorilla allows one writer at a time.
	writeMu sync.Mutex

	mu            sync.Mutex
	sess          *session.Session
	transcriber   stt.Transcriber
	detector      VoiceDetector
	pipeline      *assess.Pipeline
	feedbackTimer *time.Timer

	teardownOnce sync.Once

	ctx    context.Context
	cancel context.CancelFunc

	logger  zerolog.Logger
	metrics *metrics.Metrics
}

func newConn(ws *websocket.Conn, deps Deps) *conn {
	ctx, cancel := context.WithCancel(context.Background())
	return &conn{
		ws:      ws,
		deps:    deps,
		lc:      NewLifecycle(),
		ctx:     ctx,
		cancel:  cancel,
		logger:  logging.WithComponent("stream"),
		metrics: metrics.DefaultMetrics,
	}
}

// run is the connection read loop. It exits on socket close or error and
// always leaves the connection torn down.
func (c *conn) run() {
	defer c.teardown("read loop exited")

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if !c.lc.IsClosed() {
				c.logger.Info().Err(err).Msg("Media stream socket closed")
			}
			return
		}

		frame, err := ParseFrame(data)
		if err != nil {
			c.logger.Warn().Err(err).Msg("Unparsable frame dropped")
			continue
		}

		switch frame.Event {
		case EventConnected:
			c.logger.Debug().Msg("Media stream connected")
			c.writeMu.Lock()
			err := c.ws.WriteMessage(websocket.TextMessage, NewConnectedAck())
			c.writeMu.Unlock()
			if err != nil {
				c.logger.Warn().Err(err).Msg("Connected ack not sent")
			}
		case EventStart:
			c.handleStart(frame)
		case EventMedia:
			c.handleMedia(frame)
		case EventStop:
			c.handleStop(frame)
		case EventMark:
			c.logger.Debug().Msg("Mark acknowledged")
		default:
			c.logger.Debug().Str("event", frame.Event).Msg("Unknown frame event dropped")
		}

		if c.lc.IsClosed() {
			return
		}
	}
}

// handleStart builds the per-call pipeline: session, transcriber, voice
// detector, assessment pipeline, and the one-shot feedback timer.
func (c *conn) handleStart(frame *Frame) {
	streamSID := frame.StreamSID
	var callSID string
	if frame.Start != nil {
		if frame.Start.StreamSID != "" {
			streamSID = frame.Start.StreamSID
		}
		callSID = frame.Start.CallSID
	}

	if err := c.lc.Start(streamSID); err != nil {
		c.logger.Warn().Err(err).Str("streamSid", streamSID).Msg("Start frame rejected")
		return
	}

	c.logger = logging.WithCall(streamSID, callSID).With().
		Str("component", "stream").
		Logger()

	sess := session.New(streamSID)
	if callSID != "" {
		sess.SetCallSID(callSID)
	}
	c.deps.Registry.Register(sess)

	transcriber, err := c.deps.NewTranscriber(c.ctx)
	if err != nil {
		c.logger.Error().Err(err).Msg("Transcriber construction failed, closing stream")
		c.metrics.RecordAdapterError("stt")
		c.teardown("transcriber init failed")
		return
	}
	if err := transcriber.Start(c.ctx, (*sttCallback)(c)); err != nil {
		c.logger.Error().Err(err).Msg("Transcriber start failed, closing stream")
		c.metrics.RecordAdapterError("stt")
		transcriber.Close()
		c.teardown("transcriber start failed")
		return
	}

	pipeline := c.deps.NewPipeline()
	pipeline.OnResult = c.onAssessResult
	pipeline.OnError = c.onAssessError

	detector := c.deps.NewDetector(c.OnSpeechStart, c.OnSpeechEnd)

	c.mu.Lock()
	c.sess = sess
	c.transcriber = transcriber
	c.pipeline = pipeline
	c.detector = detector
	c.feedbackTimer = time.AfterFunc(c.deps.FeedbackDelay, c.deliverFeedback)
	c.mu.Unlock()

	c.metrics.RecordStreamStart()
	c.logger.Info().Msg("Media stream started")
}

// handleMedia decodes one inbound chunk and fans it out to the session
// buffer, the STT stream, the assessment buffers, and the voice detector.
func (c *conn) handleMedia(frame *Frame) {
	if !c.lc.CanAcceptMedia() || frame.Media == nil {
		return
	}
	// Only caller audio drives the pipeline; the echoed outbound track is
	// dropped.
	if frame.Media.Track != "" && frame.Media.Track != "inbound" {
		return
	}

	mulaw, err := base64.StdEncoding.DecodeString(frame.Media.Payload)
	if err != nil {
		c.logger.Warn().Err(err).Msg("Undecodable media payload dropped")
		return
	}
	c.metrics.RecordAudioReceived(len(mulaw))

	pcm := audio.DecodeMuLaw(mulaw)

	c.mu.Lock()
	sess, transcriber, pipeline, detector := c.sess, c.transcriber, c.pipeline, c.detector
	c.mu.Unlock()
	if sess == nil {
		return
	}

	sess.AppendAudio(pcm)
	pipeline.Append(pcm)
	if err := transcriber.SendAudio(c.ctx, pcm); err != nil {
		c.logger.Warn().Err(err).Msg("STT send failed")
		c.metrics.RecordAdapterError("stt")
	}
	detector.Process(pcm)
}

// handleStop tears down immediately, unless playback is in flight, in
// which case teardown is deferred to the playback-finished callback.
func (c *conn) handleStop(frame *Frame) {
	if c.lc.RequestStop() {
		c.teardown("stop frame")
		return
	}
	c.logger.Info().Msg("Stop received during playback, teardown deferred")
}

// OnSpeechStart begins a fresh utterance window.
func (c *conn) OnSpeechStart() {
	if c.lc.IsClosed() {
		return
	}
	c.metrics.SpeechSegments.Inc()

	c.mu.Lock()
	pipeline := c.pipeline
	c.mu.Unlock()
	if pipeline != nil {
		pipeline.ResetUtterance()
	}
	c.logger.Debug().Msg("Speech started")
}

// OnSpeechEnd waits a short grace period for the final transcript, then
// runs one conversation turn.
func (c *conn) OnSpeechEnd() {
	if c.lc.IsClosed() {
		return
	}
	c.logger.Debug().Msg("Speech ended, awaiting final transcript")
	time.AfterFunc(speechEndGrace, c.completeTurn)
}

// completeTurn runs after the grace period: validate, generate, speak.
func (c *conn) completeTurn() {
	if c.lc.IsClosed() {
		return
	}

	c.mu.Lock()
	sess := c.sess
	c.mu.Unlock()
	if sess == nil {
		return
	}

	utterance := strings.TrimSpace(sess.LatestFinalTranscript())
	if len(utterance) < minUtteranceChars {
		c.metrics.TurnsRejected.WithLabelValues("too_short").Inc()
		c.logger.Debug().Str("utterance", utterance).Msg("Utterance too short, turn skipped")
		return
	}

	if err := c.lc.BeginSpeaking(); err != nil {
		if errors.Is(err, ErrAlreadySpeaking) {
			c.metrics.PlaybackDropped.Inc()
			c.logger.Warn().Msg("Reply requested while playback in flight, dropped")
		}
		return
	}

	started := time.Now()
	sess.AddUserTurn(utterance)

	ctx, cancel := context.WithTimeout(c.ctx, replyTimeout)
	defer cancel()

	dialogue := sess.Context()
	reply, err := c.deps.Generator.Generate(ctx, convo.DialoguePrompt, dialogue.Past, dialogue.Current)
	if err != nil || strings.TrimSpace(reply) == "" {
		c.logger.Warn().Err(err).Msg("Reply generation failed, using fallback")
		c.metrics.RecordAdapterError("llm")
		reply = fallbackReply
	}
	sess.AddAssistantTurn(reply)

	if err := c.play(ctx, reply); err != nil {
		c.logger.Warn().Err(err).Msg("Playback failed")
		return
	}

	c.metrics.TurnsCompleted.Inc()
	c.metrics.ReplyLatency.Observe(time.Since(started).Seconds())
}

// deliverFeedback fires once from the feedback timer.
func (c *conn) deliverFeedback() {
	if c.lc.IsClosed() || c.deps.Feedback == nil {
		return
	}
	c.mu.Lock()
	sess := c.sess
	c.mu.Unlock()
	if sess == nil {
		return
	}

	c.logger.Info().Msg("Delivering coaching feedback")
	if err := c.deps.Feedback.Deliver(c.ctx, sess); err != nil {
		c.logger.Error().Err(err).Msg("Feedback delivery failed")
	}
}

// onAssessResult records one completed assessment and emits its event.
func (c *conn) onAssessResult(referenceText string, res *assess.Result) {
	if c.lc.IsClosed() {
		return
	}
	c.mu.Lock()
	sess := c.sess
	c.mu.Unlock()
	if sess == nil {
		return
	}

	scores := session.PronunciationScores{
		Accuracy:      res.Accuracy,
		Pronunciation: res.Pronunciation,
		Completeness:  res.Completeness,
		Fluency:       res.Fluency,
		Prosody:       res.Prosody,
	}
	sess.AddPronunciationResult(scores, referenceText)

	event := models.AssessmentCompleted{
		EventType:     "assessment.completed",
		StreamSID:     sess.StreamSID(),
		CallSID:       sess.CallSID(),
		Timestamp:     time.Now().UnixMilli(),
		ReferenceText: referenceText,
		Accuracy:      res.Accuracy,
		Pronunciation: res.Pronunciation,
		Completeness:  res.Completeness,
		Fluency:       res.Fluency,
		Prosody:       res.Prosody,
		LowConfidence: res.LowConfidence,
	}
	if c.deps.Store != nil {
		if err := c.deps.Store.AppendResult(sess.StreamSID(), event); err != nil {
			c.logger.Warn().Err(err).Msg("Assessment persist failed")
		}
	}
	if c.deps.Publisher != nil {
		if err := c.deps.Publisher.PublishAssessment(c.ctx, sess.StreamSID(), event); err != nil {
			c.logger.Error().Err(err).Msg("Assessment publish failed")
		}
	}

	c.logger.Info().
		Float64("pronunciation", res.Pronunciation).
		Bool("lowConfidence", res.LowConfidence).
		Msg("Assessment completed")
}

// onAssessError logs per-item assessment failures. Empty snapshots are
// routine (noise-only utterances), everything else counts as a failure.
func (c *conn) onAssessError(referenceText string, err error) {
	if errors.Is(err, assess.ErrEmptySnapshot) {
		c.logger.Debug().Msg("Empty utterance snapshot skipped")
		return
	}
	if errors.Is(err, assess.ErrQueueFull) {
		c.metrics.AssessmentsFailed.WithLabelValues("queue_full").Inc()
	}
	c.logger.Warn().Err(err).Str("referenceText", referenceText).Msg("Assessment failed")
}

// teardown releases everything exactly once. Tolerates partial init: any
// collaborator may still be nil when the stream dies before its start
// frame.
func (c *conn) teardown(reason string) {
	c.teardownOnce.Do(func() {
		c.lc.Close()
		c.cancel()

		c.mu.Lock()
		sess := c.sess
		transcriber := c.transcriber
		detector := c.detector
		pipeline := c.pipeline
		timer := c.feedbackTimer
		c.mu.Unlock()

		if timer != nil {
			timer.Stop()
		}
		if transcriber != nil {
			transcriber.Close()
		}
		if detector != nil {
			detector.Close()
		}
		if pipeline != nil {
			pipeline.Close()
		}
		if sess != nil {
			c.deps.Registry.Remove(sess.StreamSID())
			c.metrics.RecordStreamEnd(sess.Elapsed().Seconds())
			sess.Clear()
		}
		c.ws.Close()

		c.logger.Info().Str("reason", reason).Msg("Media stream torn down")
	})
}

// sttCallback adapts conn to the stt.Callback interface without widening
// conn's own method set.
type sttCallback conn

func (s *sttCallback) OnTranscript(text string, isFinal bool, confidence float64, words []stt.WordInfo) {
	c := (*conn)(s)
	if c.lc.IsClosed() {
		return
	}
	c.mu.Lock()
	sess, pipeline := c.sess, c.pipeline
	c.mu.Unlock()
	if sess == nil {
		return
	}

	wordStrings := make([]string, 0, len(words))
	for _, w := range words {
		wordStrings = append(wordStrings, w.Word)
	}
	sess.AddTranscript(text, isFinal, wordStrings)
	c.metrics.RecordTranscript(isFinal)

	if !isFinal {
		if c.deps.Publisher != nil {
			event := models.TranscriptPartial{
				EventType: "transcript.partial",
				StreamSID: sess.StreamSID(),
				CallSID:   sess.CallSID(),
				Timestamp: time.Now().UnixMilli(),
				Text:      text,
			}
			if err := c.deps.Publisher.PublishTranscriptPartial(c.ctx, sess.StreamSID(), event); err != nil {
				c.logger.Error().Err(err).Msg("Partial transcript publish failed")
			}
		}
		return
	}

	c.logger.Info().Str("text", text).Float64("confidence", confidence).Msg("Final transcript")

	if c.deps.Store != nil {
		if err := c.deps.Store.AppendTranscript(sess.StreamSID(), text); err != nil {
			c.logger.Warn().Err(err).Msg("Transcript persist failed")
		}
	}
	if c.deps.Publisher != nil {
		wc := make([]models.WordConfidence, 0, len(words))
		for _, w := range words {
			wc = append(wc, models.WordConfidence{Word: w.Word, Confidence: w.Confidence})
		}
		event := models.TranscriptFinal{
			EventType:  "transcript.final",
			StreamSID:  sess.StreamSID(),
			CallSID:    sess.CallSID(),
			Timestamp:  time.Now().UnixMilli(),
			Text:       text,
			Confidence: confidence,
			Words:      wc,
		}
		if err := c.deps.Publisher.PublishTranscriptFinal(c.ctx, sess.StreamSID(), event); err != nil {
			c.logger.Error().Err(err).Msg("Final transcript publish failed")
		}
	}

	pipeline.OnFinalTranscript(text)
}

func (s *sttCallback) OnError(err error) {
	c := (*conn)(s)
	if c.lc.IsClosed() {
		return
	}
	c.logger.Error().Err(err).Msg("STT stream error")
	c.metrics.RecordAdapterError("stt")
}
