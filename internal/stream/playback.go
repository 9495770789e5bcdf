package stream

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"ai-speech-practice-agent/internal/audio"
)

// playbackCooldown keeps the speaking latch held briefly after the frame
// is written so a stop racing the transport drain never cuts audio short.
const playbackCooldown = 500 * time.Millisecond

// play synthesizes the reply and writes it into the call as one media
// frame: 16kHz WAV from the synthesizer, halved to the stream's 8kHz,
// mu-law encoded, base64 wrapped. The speaking latch is always released,
// through the cooldown on success and immediately on failure.
func (c *conn) play(ctx context.Context, text string) error {
	wav, err := c.deps.Synthesizer.Synthesize(ctx, text)
	if err != nil {
		c.metrics.RecordAdapterError("tts")
		c.finishSpeaking()
		return fmt.Errorf("synthesize: %w", err)
	}

	pcm16k, err := audio.ExtractWavPCM(wav)
	if err != nil {
		c.finishSpeaking()
		return fmt.Errorf("extract pcm: %w", err)
	}

	pcm8k := audio.DownsampleByHalf(pcm16k)
	payload := base64.StdEncoding.EncodeToString(audio.EncodeMuLaw(pcm8k))

	frame, err := NewOutboundMedia(c.lc.StreamSID(), payload)
	if err != nil {
		c.finishSpeaking()
		return fmt.Errorf("encode frame: %w", err)
	}

	c.writeMu.Lock()
	err = c.ws.WriteMessage(websocket.TextMessage, frame)
	c.writeMu.Unlock()
	if err != nil {
		c.finishSpeaking()
		return fmt.Errorf("write frame: %w", err)
	}

	c.metrics.PlaybackFrames.Inc()
	c.logger.Debug().Int("audioBytes", len(pcm8k)).Msg("Reply audio written")

	time.AfterFunc(playbackCooldown, c.finishSpeaking)
	return nil
}

// finishSpeaking clears the speaking latch and runs any teardown a stop
// frame deferred while playback was in flight.
func (c *conn) finishSpeaking() {
	if c.lc.EndSpeaking() {
		c.teardown("deferred stop after playback")
	}
}
