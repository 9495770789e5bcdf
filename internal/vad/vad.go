// Package vad provides an energy-based voice activity detector with
// hysteresis and silence debouncing.
package vad

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"ai-speech-practice-agent/internal/audio"
)

// State represents the detector state for one call.
type State int

const (
	// StateSilence - no speech detected.
	StateSilence State = iota
	// StateSpeechStarting - transient, promoted to SPEECH_ACTIVE immediately
	// once the consecutive-chunk requirement is met.
	StateSpeechStarting
	// StateSpeechActive - caller is speaking.
	StateSpeechActive
	// StateSpeechEnding - energy dropped, waiting out the debounce timer.
	StateSpeechEnding
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateSilence:
		return "SILENCE"
	case StateSpeechStarting:
		return "SPEECH_STARTING"
	case StateSpeechActive:
		return "SPEECH_ACTIVE"
	case StateSpeechEnding:
		return "SPEECH_ENDING"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

// Config holds detector thresholds. Two independent thresholds
// (speech > silence) create hysteresis and prevent chatter at the boundary.
type Config struct {
	SpeechThreshold  float64       // smoothed RMS above this may start speech
	SilenceThreshold float64       // smoothed RMS below this may end speech
	SilenceDuration  time.Duration // debounce before SPEECH_ENDING -> SILENCE
	HistorySize      int           // smoothing window, in chunks
	SpeechChunks     int           // consecutive loud chunks required to start
}

// DefaultConfig returns the thresholds tuned for 8kHz telephony audio.
func DefaultConfig() Config {
	return Config{
		SpeechThreshold:  500,
		SilenceThreshold: 300,
		SilenceDuration:  800 * time.Millisecond,
		HistorySize:      5,
		SpeechChunks:     2,
	}
}

// Detector classifies a stream of PCM chunks into speech/silence edges.
// Feed only caller-originated audio: synthesized playback run through the
// detector would make the agent hear itself and misfire turn-taking.
type Detector struct {
	cfg Config

	OnSpeechStart func()
	OnSpeechEnd   func()

	mu           sync.Mutex
	state        State
	history      []float64
	consecutive  int
	silenceTimer *time.Timer
	closed       bool
}

// New creates a detector in SILENCE state.
func New(cfg Config) *Detector {
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = 1
	}
	if cfg.SpeechChunks <= 0 {
		cfg.SpeechChunks = 1
	}
	return &Detector{
		cfg:     cfg,
		state:   StateSilence,
		history: make([]float64, 0, cfg.HistorySize),
	}
}

// State returns the current detector state.
func (d *Detector) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Process classifies one PCM chunk. Edge callbacks fire synchronously for
// speech start and via the debounce timer goroutine for speech end; both are
// invoked outside the detector lock.
func (d *Detector) Process(pcm []byte) {
	energy := audio.RMSEnergy(pcm)

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	smoothed := d.smooth(energy)

	var fireStart func()
	switch d.state {
	case StateSilence, StateSpeechStarting:
		if smoothed > d.cfg.SpeechThreshold {
			d.consecutive++
			if d.consecutive >= d.cfg.SpeechChunks {
				d.state = StateSpeechActive
				d.consecutive = 0
				fireStart = d.OnSpeechStart
			} else {
				d.state = StateSpeechStarting
			}
		} else {
			// Any quiet chunk resets the run.
			d.consecutive = 0
			d.state = StateSilence
		}

	case StateSpeechActive:
		if smoothed < d.cfg.SilenceThreshold {
			d.state = StateSpeechEnding
			d.startSilenceTimerLocked()
		}

	case StateSpeechEnding:
		if smoothed > d.cfg.SpeechThreshold {
			// Spurious dip: the caller is still talking.
			d.cancelSilenceTimerLocked()
			d.state = StateSpeechActive
		}
	}
	d.mu.Unlock()

	if fireStart != nil {
		fireStart()
	}
}

func (d *Detector) smooth(energy float64) float64 {
	d.history = append(d.history, energy)
	if len(d.history) > d.cfg.HistorySize {
		d.history = d.history[1:]
	}
	var sum float64
	for _, e := range d.history {
		sum += e
	}
	return sum / float64(len(d.history))
}

func (d *Detector) startSilenceTimerLocked() {
	d.cancelSilenceTimerLocked()
	d.silenceTimer = time.AfterFunc(d.cfg.SilenceDuration, d.silenceElapsed)
}

func (d *Detector) cancelSilenceTimerLocked() {
	if d.silenceTimer != nil {
		d.silenceTimer.Stop()
		d.silenceTimer = nil
	}
}

func (d *Detector) silenceElapsed() {
	d.mu.Lock()
	if d.closed || d.state != StateSpeechEnding {
		d.mu.Unlock()
		return
	}
	d.state = StateSilence
	d.consecutive = 0
	fireEnd := d.OnSpeechEnd
	d.mu.Unlock()

	log.Debug().Str("component", "vad").Msg("silence debounce elapsed, speech ended")
	if fireEnd != nil {
		fireEnd()
	}
}

// Reset returns the detector to SILENCE and clears the energy history.
func (d *Detector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cancelSilenceTimerLocked()
	d.state = StateSilence
	d.history = d.history[:0]
	d.consecutive = 0
}

// Close cancels any pending timer. Idempotent; Process becomes a no-op.
func (d *Detector) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cancelSilenceTimerLocked()
	d.closed = true
}
