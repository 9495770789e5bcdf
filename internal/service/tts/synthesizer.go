// Package tts wraps a speech-synthesis capability. Synthesizers return a
// wide-band WAV container; the orchestrator extracts, decimates, and
// re-encodes it for the telephony leg.
package tts

import (
	"context"
	"errors"
)

// ErrEmptySynthesis indicates the provider returned no audio.
var ErrEmptySynthesis = errors.New("tts: provider returned no audio")

// Synthesizer renders text to a 16kHz 16-bit mono WAV container.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}
