// Package mock provides a mock STT adapter for development and tests
// without cloud credentials. It simulates realistic streaming behavior:
// progressive partial transcripts followed by exactly one final per
// utterance.
package mock

import (
	"context"
	"sync"
	"time"

	"ai-speech-practice-agent/internal/service/stt"
)

// SimulatedUtterance is a scripted utterance with progressive transcripts.
type SimulatedUtterance struct {
	Partials   []string
	Final      string
	Confidence float64
}

// DefaultUtterances provides sample learner utterances for simulation.
var DefaultUtterances = []SimulatedUtterance{
	{
		Partials:   []string{"I want", "I want to practice"},
		Final:      "I want to practice my English",
		Confidence: 0.94,
	},
	{
		Partials:   []string{"um so", "um so yesterday I"},
		Final:      "um so yesterday I went to the market",
		Confidence: 0.91,
	},
	{
		Partials:   []string{"Can you", "Can you say that"},
		Final:      "Can you say that again please",
		Confidence: 0.96,
	},
	{
		Partials:   []string{"I think", "I think the weather"},
		Final:      "I think the weather is very nice today",
		Confidence: 0.92,
	},
}

// Adapter implements stt.Transcriber with scripted responses. Each chunk of
// audio advances the script: one partial per chunk, then the final once the
// partials are exhausted.
type Adapter struct {
	// Delay before each callback fires, simulating provider latency.
	Delay time.Duration

	mu           sync.Mutex
	cb           stt.Callback
	utterances   []SimulatedUtterance
	utteranceIdx int
	partialIdx   int
	finalSent    bool
	closed       bool
}

// New creates a mock adapter cycling through DefaultUtterances.
func New() *Adapter {
	return &Adapter{
		Delay:      20 * time.Millisecond,
		utterances: DefaultUtterances,
	}
}

// NewScripted creates a mock adapter with caller-provided utterances.
func NewScripted(utterances []SimulatedUtterance) *Adapter {
	return &Adapter{
		Delay:      time.Millisecond,
		utterances: utterances,
	}
}

// Start begins the mock session.
func (a *Adapter) Start(ctx context.Context, cb stt.Callback) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cb = cb
	return nil
}

// SendAudio advances the scripted utterance.
func (a *Adapter) SendAudio(ctx context.Context, pcm []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed || a.cb == nil || len(a.utterances) == 0 {
		return nil
	}

	utt := a.utterances[a.utteranceIdx%len(a.utterances)]

	if a.partialIdx < len(utt.Partials) {
		text := utt.Partials[a.partialIdx]
		a.partialIdx++
		a.deliver(func(cb stt.Callback) {
			cb.OnTranscript(text, false, 0, nil)
		})
	} else if !a.finalSent {
		a.finalSent = true
		a.deliver(func(cb stt.Callback) {
			words := make([]stt.WordInfo, 0)
			cb.OnTranscript(utt.Final, true, utt.Confidence, words)
		})
	}
	return nil
}

// AdvanceUtterance moves to the next scripted utterance, simulating the
// provider segmenting on silence.
func (a *Adapter) AdvanceUtterance() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.utteranceIdx++
	a.partialIdx = 0
	a.finalSent = false
}

// deliver fires a callback after the configured delay, re-checking closed
// state at fire time. Caller holds the lock.
func (a *Adapter) deliver(fn func(stt.Callback)) {
	delay := a.Delay
	go func() {
		time.Sleep(delay)
		a.mu.Lock()
		cb := a.cb
		closed := a.closed
		a.mu.Unlock()
		if !closed && cb != nil {
			fn(cb)
		}
	}()
}

// Close ends the mock session. If the current utterance produced partials
// but no final yet, the final is flushed first so downstream consumers see
// a committed transcript for the truncated utterance.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil
	}

	if a.partialIdx > 0 && !a.finalSent && a.cb != nil {
		utt := a.utterances[a.utteranceIdx%len(a.utterances)]
		a.finalSent = true
		cb := a.cb
		delay := a.Delay
		go func() {
			time.Sleep(delay)
			cb.OnTranscript(utt.Final, true, utt.Confidence, nil)
		}()
	}
	a.closed = true
	return nil
}
