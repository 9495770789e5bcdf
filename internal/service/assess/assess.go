// Package assess provides pronunciation assessment over buffered utterance
// audio: a capability interface for scoring providers and a FIFO pipeline
// that snapshots per-utterance audio and drains one assessment at a time.
package assess

import (
	"context"
	"errors"
	"strings"
)

// Errors surfaced by the pipeline. Each is scoped to a single queue item;
// the worker always proceeds to the next item.
var (
	ErrEmptySnapshot = errors.New("assess: empty utterance snapshot")
	ErrQueueFull     = errors.New("assess: queue full, utterance dropped")
	ErrClosed        = errors.New("assess: pipeline closed")
)

// PhonemeResult is a per-phoneme accuracy score.
type PhonemeResult struct {
	Phoneme  string
	Accuracy float64
}

// WordResult is a per-word assessment detail.
type WordResult struct {
	Word      string
	Accuracy  float64
	ErrorType string // None, Mispronunciation, Omission, Insertion
	Phonemes  []PhonemeResult
}

// Result is one completed assessment. All scores are on a 0-100 scale.
type Result struct {
	Accuracy      float64
	Pronunciation float64
	Completeness  float64
	Fluency       float64
	Prosody       float64
	Words         []WordResult

	// RecognizedText is what the scoring pass itself heard.
	RecognizedText string

	// LowConfidence marks a result whose recognized text diverged from the
	// reference, indicating buffer misalignment. The scores are kept but
	// should be weighted accordingly.
	LowConfidence bool
}

// Assessor is the scoring capability. A non-empty referenceText requests a
// scripted assessment against that text; empty requests unscripted mode.
// Each call is an independent one-shot session over the given audio.
type Assessor interface {
	Assess(ctx context.Context, pcm []byte, referenceText string) (*Result, error)
}

// sharesWord reports whether recognized and reference have at least one
// word in common, after case folding and stripping punctuation. Used to
// flag misaligned assessments (e.g. a result that is only punctuation).
func sharesWord(recognized, reference string) bool {
	norm := func(s string) []string {
		s = strings.ToLower(s)
		s = strings.Map(func(r rune) rune {
			if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == ' ' || r == '\'' {
				return r
			}
			return ' '
		}, s)
		return strings.Fields(s)
	}
	ref := make(map[string]bool)
	for _, w := range norm(reference) {
		ref[w] = true
	}
	for _, w := range norm(recognized) {
		if ref[w] {
			return true
		}
	}
	return false
}
