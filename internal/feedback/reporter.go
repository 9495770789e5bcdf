// Package feedback builds and delivers the one-shot mid-call coaching
// summary: filler-word habits, pronunciation averages, and one encouraging
// suggestion spoken into the live call.
package feedback

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"ai-speech-practice-agent/internal/models"
	"ai-speech-practice-agent/internal/observability/logging"
	"ai-speech-practice-agent/internal/observability/metrics"
	"ai-speech-practice-agent/internal/service/convo"
	"ai-speech-practice-agent/internal/service/tts"
	"ai-speech-practice-agent/internal/session"
	"ai-speech-practice-agent/internal/store"
	"ai-speech-practice-agent/internal/telephony"
)

// cannedFeedback is spoken when the generator fails or returns nothing.
// Feedback must always be delivered once armed.
const cannedFeedback = "You're doing great. Try to slow down a little and " +
	"reduce filler words like um and uh. Keep practicing!"

// CallUpdater injects new instructions into an in-progress call.
type CallUpdater interface {
	UpdateCallMarkup(ctx context.Context, callSID, markup string) error
}

// Publisher emits the feedback-delivered event downstream.
type Publisher interface {
	PublishFeedback(ctx context.Context, key string, event any) error
}

// Reporter aggregates session statistics and delivers spoken coaching
// feedback exactly once per call.
type Reporter struct {
	Generator     convo.Generator
	Synthesizer   tts.Synthesizer
	Updater       CallUpdater
	Store         *store.Store
	Publisher     Publisher
	PublicBaseURL string

	metrics *metrics.Metrics
}

// NewReporter creates a feedback reporter.
func NewReporter(gen convo.Generator, synth tts.Synthesizer, updater CallUpdater, st *store.Store, pub Publisher, publicBaseURL string) *Reporter {
	return &Reporter{
		Generator:     gen,
		Synthesizer:   synth,
		Updater:       updater,
		Store:         st,
		Publisher:     pub,
		PublicBaseURL: publicBaseURL,
		metrics:       metrics.DefaultMetrics,
	}
}

// Summary is the aggregate the coaching prompt is built from.
type Summary struct {
	SpokenText    string
	FillerCount   int
	FillerRate    float64 // per minute
	TopFillers    []string
	AverageScores session.PronunciationScores
	Utterances    int
}

// Summarize aggregates the session's statistics so far.
func Summarize(sess *session.Session) Summary {
	finals := 0
	var spoken []string
	for _, tr := range sess.Transcripts() {
		if tr.IsFinal {
			finals++
			spoken = append(spoken, tr.Text)
		}
	}

	fillers := sess.FillerWords()
	counts := map[string]int{}
	total := 0
	for _, f := range fillers {
		counts[f.Word]++
		total++
	}

	top := make([]string, 0, len(counts))
	for w := range counts {
		top = append(top, w)
	}
	sort.Slice(top, func(i, j int) bool {
		if counts[top[i]] != counts[top[j]] {
			return counts[top[i]] > counts[top[j]]
		}
		return top[i] < top[j]
	})
	if len(top) > 3 {
		top = top[:3]
	}

	minutes := sess.Elapsed().Minutes()
	if minutes < 1.0/60 {
		minutes = 1.0 / 60
	}

	return Summary{
		SpokenText:    strings.Join(spoken, " "),
		FillerCount:   total,
		FillerRate:    float64(total) / minutes,
		TopFillers:    top,
		AverageScores: sess.AverageScores(),
		Utterances:    finals,
	}
}

// prompt renders the summary as the coaching generator's input.
func (s Summary) prompt() string {
	var b strings.Builder
	fmt.Fprintf(&b, "The learner spoke %d utterances. ", s.Utterances)
	fmt.Fprintf(&b, "Filler words used: %d (%.1f per minute)", s.FillerCount, s.FillerRate)
	if len(s.TopFillers) > 0 {
		fmt.Fprintf(&b, ", most common: %s", strings.Join(s.TopFillers, ", "))
	}
	b.WriteString(". ")
	if s.AverageScores.Pronunciation > 0 {
		fmt.Fprintf(&b, "Average pronunciation score: %.0f out of 100, accuracy %.0f, fluency %.0f. ",
			s.AverageScores.Pronunciation, s.AverageScores.Accuracy, s.AverageScores.Fluency)
	}
	b.WriteString("Give the learner brief spoken coaching feedback.")
	return b.String()
}

// Deliver builds the coaching feedback and injects it into the live call.
// Fired once by the stream orchestrator's timer; errors are delivery
// failures, the feedback text itself always resolves.
func (r *Reporter) Deliver(ctx context.Context, sess *session.Session) error {
	streamSID := sess.StreamSID()
	callSID := sess.CallSID()
	logger := logging.WithCall(streamSID, callSID).With().
		Str("component", "feedback").
		Logger()

	summary := Summarize(sess)

	text, err := r.Generator.Generate(ctx, convo.CoachPrompt, nil, summary.prompt())
	if err != nil || strings.TrimSpace(text) == "" {
		logger.Warn().Err(err).Msg("Feedback generation failed, using canned feedback")
		text = cannedFeedback
	}

	viaAudio, err := r.inject(ctx, streamSID, callSID, text, logger)
	if err != nil {
		return err
	}

	via := "markup"
	if viaAudio {
		via = "audio"
	}
	r.metrics.FeedbackDelivered.WithLabelValues(via).Inc()

	if r.Publisher != nil {
		event := models.FeedbackDelivered{
			EventType:   "feedback.delivered",
			StreamSID:   streamSID,
			CallSID:     callSID,
			Timestamp:   time.Now().UnixMilli(),
			Text:        text,
			FillerCount: summary.FillerCount,
			FillerRate:  summary.FillerRate,
			ViaAudio:    viaAudio,
		}
		if err := r.Publisher.PublishFeedback(ctx, streamSID, event); err != nil {
			logger.Error().Err(err).Msg("Failed to publish feedback event")
		}
	}

	logger.Info().
		Bool("viaAudio", viaAudio).
		Int("fillerCount", summary.FillerCount).
		Msg("Coaching feedback delivered")
	return nil
}

// inject speaks the feedback into the call: synthesized audio hosted by
// this service when possible, provider-native speech markup otherwise.
// Returns whether the audio path was used.
func (r *Reporter) inject(ctx context.Context, streamSID, callSID, text string, logger zerolog.Logger) (bool, error) {
	if r.Updater == nil || callSID == "" {
		logger.Warn().Msg("No call updater or call SID, feedback logged only")
		logger.Info().Str("feedback", text).Msg("Coaching feedback (undelivered)")
		return false, nil
	}

	markup, viaAudio := r.buildMarkup(ctx, streamSID, text, logger)
	if err := r.Updater.UpdateCallMarkup(ctx, callSID, markup); err != nil {
		r.metrics.RecordAdapterError("telephony")
		return viaAudio, fmt.Errorf("feedback: update call: %w", err)
	}
	return viaAudio, nil
}

// buildMarkup prefers a hosted synthesized recording and falls back to the
// provider's built-in voice when synthesis or persistence fails.
func (r *Reporter) buildMarkup(ctx context.Context, streamSID, text string, logger zerolog.Logger) (markup string, viaAudio bool) {
	if r.Synthesizer == nil || r.Store == nil {
		return telephony.SayMarkup(text, ""), false
	}

	wav, err := r.Synthesizer.Synthesize(ctx, text)
	if err != nil {
		logger.Warn().Err(err).Msg("Feedback synthesis failed, falling back to speech markup")
		r.metrics.RecordAdapterError("tts")
		return telephony.SayMarkup(text, ""), false
	}

	name, err := r.Store.WriteAudio("feedback-"+streamSID+".wav", wav)
	if err != nil {
		logger.Warn().Err(err).Msg("Feedback audio persist failed, falling back to speech markup")
		return telephony.SayMarkup(text, ""), false
	}

	audioURL := strings.TrimRight(r.PublicBaseURL, "/") + "/audio/" + name
	return telephony.PlayMarkup(audioURL), true
}
