package session

import "sync"

// Registry maps stream identifiers to live sessions. It exists for
// cross-component correlation only (a call SID arriving via the webhook
// after the stream has already started). Scoped to the orchestrator process
// and injected explicitly, never a package-level singleton, so per-call
// lifetimes stay testable in isolation.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Register adds a session under its stream SID.
func (r *Registry) Register(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.StreamSID()] = s
}

// Get returns the session for a stream SID, or nil.
func (r *Registry) Get(streamSID string) *Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions[streamSID]
}

// Remove drops the session for a stream SID.
func (r *Registry) Remove(streamSID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, streamSID)
}

// AttachCallSID records a late-arriving call SID on the matching session.
// Returns false when no session is registered for the stream.
func (r *Registry) AttachCallSID(streamSID, callSID string) bool {
	r.mu.RLock()
	s := r.sessions[streamSID]
	r.mu.RUnlock()
	if s == nil {
		return false
	}
	s.SetCallSID(callSID)
	return true
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
