// Package google provides a Google Cloud Speech-to-Text streaming adapter.
package google

import (
	"context"
	"io"
	"sync"

	speech "cloud.google.com/go/speech/apiv1"
	"github.com/rs/zerolog/log"
	speechpb "google.golang.org/genproto/googleapis/cloud/speech/v1"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"ai-speech-practice-agent/internal/service/stt"
)

// Adapter implements stt.Transcriber using Google Cloud Speech-to-Text.
// Audio is LINEAR16 mono at the configured sample rate. The underlying
// stream can close mid-call; after that every SendAudio quietly drops its
// chunk instead of surfacing an error.
// Config tunes the recognition session. Zero values fall back to the
// narrow-band telephony defaults.
type Config struct {
	LanguageCode   string
	SampleRateHz   int
	InterimResults bool
}

type Adapter struct {
	client *speech.Client
	cfg    Config

	mu     sync.Mutex
	stream speechpb.Speech_StreamingRecognizeClient
	cb     stt.Callback
	closed bool
}

// New creates a new Google STT adapter.
// Requires GOOGLE_APPLICATION_CREDENTIALS to be set in the environment.
func New(ctx context.Context, cfg Config) (*Adapter, error) {
	c, err := speech.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	if cfg.LanguageCode == "" {
		cfg.LanguageCode = "en-US"
	}
	if cfg.SampleRateHz == 0 {
		cfg.SampleRateHz = 8000
	}
	return &Adapter{client: c, cfg: cfg}, nil
}

// Start begins a streaming recognition session and sends the initial config.
// Listen runs in its own goroutine pumping responses into the callback.
func (a *Adapter) Start(ctx context.Context, cb stt.Callback) error {
	stream, err := a.client.StreamingRecognize(ctx)
	if err != nil {
		return err
	}

	a.mu.Lock()
	a.stream = stream
	a.cb = cb
	a.mu.Unlock()

	err = stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config: &speechpb.RecognitionConfig{
					Encoding:                   speechpb.RecognitionConfig_LINEAR16,
					SampleRateHertz:            int32(a.cfg.SampleRateHz),
					LanguageCode:               a.cfg.LanguageCode,
					EnableWordConfidence:       true,
					EnableAutomaticPunctuation: true,
				},
				InterimResults: a.cfg.InterimResults,
			},
		},
	})
	if err != nil {
		return err
	}

	go a.listen(stream, cb)
	return nil
}

// SendAudio sends PCM to the recognizer. Dropped silently once the session
// is closed or the stream has died.
func (a *Adapter) SendAudio(ctx context.Context, pcm []byte) error {
	a.mu.Lock()
	stream := a.stream
	closed := a.closed
	a.mu.Unlock()

	if closed || stream == nil {
		return nil
	}

	err := stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{
			AudioContent: pcm,
		},
	})
	if err != nil {
		// The stream is gone; go inert. listen() reports the cause.
		a.mu.Lock()
		a.stream = nil
		a.mu.Unlock()
		log.Debug().Err(err).Str("component", "stt.google").Msg("send after stream death, dropping audio")
	}
	return nil
}

// Close ends the streaming session. Idempotent.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	if a.stream != nil {
		if err := a.stream.CloseSend(); err != nil {
			log.Debug().Err(err).Str("component", "stt.google").Msg("close send failed")
		}
		a.stream = nil
	}
	return nil
}

// listen receives transcript responses and invokes callbacks until the
// stream ends. A post-close receive error is expected and not reported.
func (a *Adapter) listen(stream speechpb.Speech_StreamingRecognizeClient, cb stt.Callback) {
	for {
		resp, err := stream.Recv()
		if err != nil {
			a.mu.Lock()
			closed := a.closed
			a.stream = nil
			a.mu.Unlock()
			// An orderly end of stream or our own cancellation is not an
			// error worth reporting upstream.
			if !closed && err != io.EOF && status.Code(err) != codes.Canceled {
				cb.OnError(err)
			}
			return
		}

		for _, r := range resp.Results {
			if len(r.Alternatives) == 0 {
				continue
			}
			alt := r.Alternatives[0]
			if r.IsFinal {
				words := make([]stt.WordInfo, 0, len(alt.Words))
				for _, w := range alt.Words {
					words = append(words, stt.WordInfo{
						Word:       w.Word,
						Confidence: float64(w.Confidence),
					})
				}
				cb.OnTranscript(alt.Transcript, true, float64(alt.Confidence), words)
			} else {
				cb.OnTranscript(alt.Transcript, false, 0, nil)
			}
		}
	}
}
