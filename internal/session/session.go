// Package session holds the per-call aggregate state: transcripts, filler
// words, pronunciation results, conversation history, and transient audio.
// Operations are pure mutators/accessors with no I/O.
package session

import (
	"strings"
	"sync"
	"time"
)

// Role identifies who produced a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Transcript is one ASR output fragment, interim or final. Final entries are
// never rewritten or removed.
type Transcript struct {
	Text      string
	IsFinal   bool
	Timestamp time.Time
	Words     []string
}

// FillerWord records one observed filler/hedge occurrence.
type FillerWord struct {
	Word      string
	Timestamp time.Time
}

// PronunciationScores are the multi-dimensional assessment scores, 0-100.
type PronunciationScores struct {
	Accuracy      float64
	Pronunciation float64
	Completeness  float64
	Fluency       float64
	Prosody       float64
}

// PronunciationResult is one completed assessment with its reference text.
type PronunciationResult struct {
	Scores    PronunciationScores
	Text      string
	Timestamp time.Time
}

// Turn is one entry in the canonical dialogue log.
type Turn struct {
	Role      Role
	Text      string
	Timestamp time.Time
}

// ConversationContext splits the dialogue at the most recent user turn.
type ConversationContext struct {
	Past    []Turn
	Current string
}

// fillerVocabulary is the closed set of fillers and hedges extracted from
// every transcript fragment. Multi-word entries are matched as phrases.
var fillerVocabulary = []string{
	"you know", "i mean",
	"um", "uh", "er", "ah", "hmm",
	"like", "so", "well",
	"actually", "basically", "literally",
}

// maxAudioRetentionBytes bounds the whole-call audio buffer to five minutes
// of 8kHz PCM16. Calls are short lived, but a runaway stream must not grow
// memory without limit.
const maxAudioRetentionBytes = 5 * 60 * 8000 * 2

// Session is the per-call state. One Session per stream lifetime; never
// reused across reconnects. Thread-safe.
type Session struct {
	mu sync.RWMutex

	streamSID string
	callSID   string
	startTime time.Time

	transcripts          []Transcript
	fillerWords          []FillerWord
	pronunciationResults []PronunciationResult
	conversationHistory  []Turn

	audioChunks [][]byte
	audioBytes  int
}

// New creates a session for the given stream identifier.
func New(streamSID string) *Session {
	return &Session{
		streamSID: streamSID,
		startTime: time.Now(),
	}
}

// StreamSID returns the stream identifier assigned at stream start.
func (s *Session) StreamSID() string {
	return s.streamSID
}

// SetCallSID records the call correlation id. The id can arrive over several
// delivery paths at different times; the first non-empty value wins.
func (s *Session) SetCallSID(sid string) {
	if sid == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.callSID == "" {
		s.callSID = sid
	}
}

// CallSID returns the call correlation id, if known.
func (s *Session) CallSID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.callSID
}

// StartTime returns the session construction time.
func (s *Session) StartTime() time.Time {
	return s.startTime
}

// Elapsed returns the time since session construction.
func (s *Session) Elapsed() time.Duration {
	return time.Since(s.startTime)
}

// AddTranscript appends an ASR fragment and extracts filler words from it.
// Both interim and final fragments are retained.
func (s *Session) AddTranscript(text string, isFinal bool, words []string) {
	now := time.Now()
	fillers := extractFillers(text)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcripts = append(s.transcripts, Transcript{
		Text:      text,
		IsFinal:   isFinal,
		Timestamp: now,
		Words:     words,
	})
	for _, f := range fillers {
		s.fillerWords = append(s.fillerWords, FillerWord{Word: f, Timestamp: now})
	}
}

func extractFillers(text string) []string {
	folded := strings.ToLower(text)
	// Strip punctuation so "Um," still matches.
	folded = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || r == ' ' || r == '\'' {
			return r
		}
		return ' '
	}, folded)
	padded := " " + strings.Join(strings.Fields(folded), " ") + " "

	var found []string
	type hit struct {
		pos  int
		word string
	}
	var hits []hit
	for _, filler := range fillerVocabulary {
		needle := " " + filler + " "
		start := 0
		for {
			idx := strings.Index(padded[start:], needle)
			if idx < 0 {
				break
			}
			hits = append(hits, hit{pos: start + idx, word: filler})
			start += idx + len(needle) - 1
		}
	}
	// Preserve utterance order regardless of vocabulary order.
	for i := 1; i < len(hits); i++ {
		for j := i; j > 0 && hits[j].pos < hits[j-1].pos; j-- {
			hits[j], hits[j-1] = hits[j-1], hits[j]
		}
	}
	for _, h := range hits {
		found = append(found, h.word)
	}
	return found
}

// Transcripts returns a snapshot of all transcript fragments.
func (s *Session) Transcripts() []Transcript {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Transcript, len(s.transcripts))
	copy(out, s.transcripts)
	return out
}

// FullTranscript concatenates all final fragments in order.
func (s *Session) FullTranscript() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var parts []string
	for _, tr := range s.transcripts {
		if tr.IsFinal && strings.TrimSpace(tr.Text) != "" {
			parts = append(parts, strings.TrimSpace(tr.Text))
		}
	}
	return strings.Join(parts, " ")
}

// LatestFinalTranscript concatenates final fragments recorded after the last
// user turn. ASR can finalize one utterance in several pieces; all of them
// belong to the upcoming turn.
func (s *Session) LatestFinalTranscript() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var lastUserTurn time.Time
	for i := len(s.conversationHistory) - 1; i >= 0; i-- {
		if s.conversationHistory[i].Role == RoleUser {
			lastUserTurn = s.conversationHistory[i].Timestamp
			break
		}
	}

	var parts []string
	for _, tr := range s.transcripts {
		if tr.IsFinal && tr.Timestamp.After(lastUserTurn) && strings.TrimSpace(tr.Text) != "" {
			parts = append(parts, strings.TrimSpace(tr.Text))
		}
	}
	return strings.Join(parts, " ")
}

// FillerWords returns a snapshot of observed filler words.
func (s *Session) FillerWords() []FillerWord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]FillerWord, len(s.fillerWords))
	copy(out, s.fillerWords)
	return out
}

// AddPronunciationResult appends one completed assessment.
func (s *Session) AddPronunciationResult(scores PronunciationScores, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pronunciationResults = append(s.pronunciationResults, PronunciationResult{
		Scores:    scores,
		Text:      text,
		Timestamp: time.Now(),
	})
}

// PronunciationResults returns a snapshot of completed assessments.
func (s *Session) PronunciationResults() []PronunciationResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]PronunciationResult, len(s.pronunciationResults))
	copy(out, s.pronunciationResults)
	return out
}

// AverageScores returns the mean of each sub-score across all completed
// assessments. With zero assessments the divisor is clamped to one so the
// feedback step still runs with zeroed scores instead of dividing by zero.
func (s *Session) AverageScores() PronunciationScores {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var sum PronunciationScores
	for _, r := range s.pronunciationResults {
		sum.Accuracy += r.Scores.Accuracy
		sum.Pronunciation += r.Scores.Pronunciation
		sum.Completeness += r.Scores.Completeness
		sum.Fluency += r.Scores.Fluency
		sum.Prosody += r.Scores.Prosody
	}
	n := float64(len(s.pronunciationResults))
	if n == 0 {
		n = 1
	}
	return PronunciationScores{
		Accuracy:      sum.Accuracy / n,
		Pronunciation: sum.Pronunciation / n,
		Completeness:  sum.Completeness / n,
		Fluency:       sum.Fluency / n,
		Prosody:       sum.Prosody / n,
	}
}

// AddUserTurn appends a user turn to the conversation history.
func (s *Session) AddUserTurn(text string) {
	s.addTurn(RoleUser, text)
}

// AddAssistantTurn appends an assistant turn to the conversation history.
func (s *Session) AddAssistantTurn(text string) {
	s.addTurn(RoleAssistant, text)
}

func (s *Session) addTurn(role Role, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversationHistory = append(s.conversationHistory, Turn{
		Role:      role,
		Text:      text,
		Timestamp: time.Now(),
	})
}

// History returns a snapshot of the conversation history.
func (s *Session) History() []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Turn, len(s.conversationHistory))
	copy(out, s.conversationHistory)
	return out
}

// Context locates the most recent user turn and splits the history there:
// Current is that turn's text, Past is everything strictly before it.
func (s *Session) Context() ConversationContext {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := len(s.conversationHistory) - 1; i >= 0; i-- {
		if s.conversationHistory[i].Role == RoleUser {
			past := make([]Turn, i)
			copy(past, s.conversationHistory[:i])
			return ConversationContext{Past: past, Current: s.conversationHistory[i].Text}
		}
	}
	return ConversationContext{}
}

// AppendAudio retains a PCM chunk for the call. Retention is capped; the
// oldest chunks are evicted first.
func (s *Session) AppendAudio(pcm []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	chunk := make([]byte, len(pcm))
	copy(chunk, pcm)
	s.audioChunks = append(s.audioChunks, chunk)
	s.audioBytes += len(chunk)
	for s.audioBytes > maxAudioRetentionBytes && len(s.audioChunks) > 0 {
		s.audioBytes -= len(s.audioChunks[0])
		s.audioChunks = s.audioChunks[1:]
	}
}

// AudioBytes returns the number of buffered audio bytes.
func (s *Session) AudioBytes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.audioBytes
}

// Clear releases the transient audio buffer. Called on teardown.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audioChunks = nil
	s.audioBytes = 0
}
