// Package stream implements the media-stream WebSocket endpoint: frame
// protocol, per-connection call lifecycle, and orchestration of the audio
// pipeline behind it.
package stream

import (
	"errors"
	"fmt"
	"sync"
)

// State represents the lifecycle state of a media-stream connection.
type State int

const (
	// StateIdle - Connection accepted, start frame not yet received.
	StateIdle State = iota
	// StateActive - Start frame processed, media is flowing.
	StateActive
	// StateStopping - Stop received while playback is in flight; teardown
	// is deferred until the speaking latch clears.
	StateStopping
	// StateClosed - Terminal. All resources released.
	StateClosed
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateActive:
		return "ACTIVE"
	case StateStopping:
		return "STOPPING"
	case StateClosed:
		return "CLOSED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

// IsTerminal returns true for the CLOSED state.
func (s State) IsTerminal() bool {
	return s == StateClosed
}

// Errors for invalid lifecycle transitions.
var (
	ErrStreamClosed    = errors.New("stream is closed")
	ErrAlreadyStarted  = errors.New("stream already started")
	ErrNotStarted      = errors.New("stream not started")
	ErrAlreadySpeaking = errors.New("playback already in flight")
)

// Lifecycle manages the state machine for one media-stream connection.
// Thread-safe for concurrent access.
//
// State transitions:
//
//	IDLE → ACTIVE → CLOSED
//	         │
//	         └── stop while speaking ──→ STOPPING → CLOSED
//
// Rules:
//   - IDLE: only Start() is valid; media frames are dropped upstream
//   - ACTIVE: media flows; the speaking latch serializes playback
//   - STOPPING: no new media or playback; teardown fires when the
//     speaking latch clears
//   - CLOSED: all operations are no-ops or return errors
type Lifecycle struct {
	mu        sync.RWMutex
	streamSID string
	state     State
	speaking  bool
}

// NewLifecycle creates a lifecycle in IDLE state.
func NewLifecycle() *Lifecycle {
	return &Lifecycle{state: StateIdle}
}

// Start transitions IDLE → ACTIVE and records the stream SID.
func (l *Lifecycle) Start(streamSID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch l.state {
	case StateIdle:
		l.streamSID = streamSID
		l.state = StateActive
		return nil
	case StateActive, StateStopping:
		return ErrAlreadyStarted
	case StateClosed:
		return ErrStreamClosed
	default:
		return fmt.Errorf("unexpected state: %v", l.state)
	}
}

// StreamSID returns the stream SID recorded at start.
func (l *Lifecycle) StreamSID() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.streamSID
}

// State returns the current state.
func (l *Lifecycle) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// CanAcceptMedia returns true while media frames should be processed.
func (l *Lifecycle) CanAcceptMedia() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state == StateActive
}

// IsClosed returns true once the connection reached its terminal state.
func (l *Lifecycle) IsClosed() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state.IsTerminal()
}

// Speaking reports whether agent playback is currently in flight.
func (l *Lifecycle) Speaking() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.speaking
}

// BeginSpeaking sets the playback latch. Only one playback may be in
// flight; a second concurrent reply is refused rather than queued.
func (l *Lifecycle) BeginSpeaking() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch l.state {
	case StateActive:
		if l.speaking {
			return ErrAlreadySpeaking
		}
		l.speaking = true
		return nil
	case StateIdle:
		return ErrNotStarted
	case StateStopping, StateClosed:
		return ErrStreamClosed
	default:
		return fmt.Errorf("unexpected state: %v", l.state)
	}
}

// EndSpeaking clears the playback latch. Returns true when a deferred
// stop was pending and the caller must now run teardown.
func (l *Lifecycle) EndSpeaking() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.speaking = false
	if l.state == StateStopping {
		l.state = StateClosed
		return true
	}
	return false
}

// RequestStop handles the provider's stop frame. Returns true when the
// caller should tear down immediately; false when playback is in flight
// and teardown is deferred to EndSpeaking.
func (l *Lifecycle) RequestStop() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch l.state {
	case StateIdle:
		l.state = StateClosed
		return true
	case StateActive:
		if l.speaking {
			l.state = StateStopping
			return false
		}
		l.state = StateClosed
		return true
	case StateStopping, StateClosed:
		return false
	default:
		l.state = StateClosed
		return true
	}
}

// Close forces the terminal state from anywhere. Idempotent. Returns true
// on the first transition so teardown runs exactly once.
func (l *Lifecycle) Close() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == StateClosed {
		return false
	}
	l.state = StateClosed
	return true
}
