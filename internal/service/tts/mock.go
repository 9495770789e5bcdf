package tts

import (
	"context"
	"sync"

	"ai-speech-practice-agent/internal/audio"
)

// Mock implements Synthesizer by producing a short tone in a 16kHz WAV
// container, sized proportionally to the text so playback timing behaves
// like real synthesis.
type Mock struct {
	// Fail makes every call return this error when non-nil.
	Fail error

	mu    sync.Mutex
	texts []string
}

// NewMock creates a mock synthesizer.
func NewMock() *Mock {
	return &Mock{}
}

// Synthesize produces a synthetic WAV for the text.
func (m *Mock) Synthesize(ctx context.Context, text string) ([]byte, error) {
	m.mu.Lock()
	m.texts = append(m.texts, text)
	fail := m.Fail
	m.mu.Unlock()
	if fail != nil {
		return nil, fail
	}

	// ~60ms of audio per character, amplitude alternating each sample.
	samples := 16000 * 60 * len(text) / 1000
	if samples == 0 {
		samples = 1600
	}
	pcm := make([]byte, 0, samples*2)
	for i := 0; i < samples; i++ {
		v := int16(2000)
		if i%2 == 0 {
			v = -2000
		}
		pcm = append(pcm, byte(v), byte(uint16(v)>>8))
	}
	return audio.WrapWavPCM(pcm, 16000), nil
}

// Texts returns every synthesized text in call order.
func (m *Mock) Texts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.texts))
	copy(out, m.texts)
	return out
}
