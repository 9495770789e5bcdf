// Package stt defines the capability interface for streaming
// speech-to-text providers.
package stt

import "context"

// WordInfo carries optional per-word recognition metadata.
type WordInfo struct {
	Word       string
	Confidence float64
}

// Callback receives transcript results from the STT provider.
type Callback interface {
	// OnTranscript is called for both interim and final results.
	// Confidence and words are only populated on finals.
	OnTranscript(text string, isFinal bool, confidence float64, words []WordInfo)

	// OnError is called when an error occurs during transcription.
	OnError(err error)
}

// Transcriber defines the interface for streaming STT providers.
// SendAudio after Close (or after the underlying session ended) silently
// drops the chunk; no error crosses back to the caller. Close is idempotent.
type Transcriber interface {
	// Start begins a streaming transcription session.
	Start(ctx context.Context, cb Callback) error

	// SendAudio sends 8kHz 16-bit LE mono PCM to the provider.
	SendAudio(ctx context.Context, pcm []byte) error

	// Close ends the session and releases resources.
	Close() error
}
