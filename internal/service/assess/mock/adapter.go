// Package mock provides a canned pronunciation assessor for development and
// tests without provider credentials.
package mock

import (
	"context"
	"strings"
	"sync"
	"time"

	"ai-speech-practice-agent/internal/service/assess"
)

// Assessor implements assess.Assessor with deterministic canned scores.
// The recognized text echoes the reference (or a fixed phrase when
// unscripted) so the pipeline's divergence check passes.
type Assessor struct {
	// Delay simulates provider latency. Zero means immediate.
	Delay time.Duration
	// Fail makes every call return this error when non-nil.
	Fail error

	mu    sync.Mutex
	calls []string
}

// New creates a mock assessor.
func New() *Assessor {
	return &Assessor{}
}

// Assess returns canned scores with per-word detail derived from the
// reference text.
func (a *Assessor) Assess(ctx context.Context, pcm []byte, referenceText string) (*assess.Result, error) {
	a.mu.Lock()
	a.calls = append(a.calls, referenceText)
	a.mu.Unlock()

	if a.Delay > 0 {
		select {
		case <-time.After(a.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if a.Fail != nil {
		return nil, a.Fail
	}

	recognized := referenceText
	if recognized == "" {
		recognized = "simulated unscripted recognition"
	}

	res := &assess.Result{
		Accuracy:       87,
		Pronunciation:  85,
		Completeness:   100,
		Fluency:        90,
		Prosody:        80,
		RecognizedText: recognized,
	}
	for _, w := range strings.Fields(recognized) {
		res.Words = append(res.Words, assess.WordResult{
			Word:      w,
			Accuracy:  88,
			ErrorType: "None",
			Phonemes:  []assess.PhonemeResult{{Phoneme: w[:1], Accuracy: 90}},
		})
	}
	return res, nil
}

// Calls returns the reference texts assessed so far, in call order.
func (a *Assessor) Calls() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, len(a.calls))
	copy(out, a.calls)
	return out
}
