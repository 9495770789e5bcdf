package tts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrMissingCredential indicates the synthesizer was constructed without a
// subscription key or region.
var ErrMissingCredential = errors.New("tts: missing speech key or region")

// AzureConfig configures the Azure Speech synthesis REST client.
type AzureConfig struct {
	Key      string
	Region   string
	Voice    string        // default en-US-JennyNeural
	Timeout  time.Duration // default 15s
	Endpoint string        // overrides the region-derived endpoint, for tests
}

// Azure implements Synthesizer over the Azure Speech synthesis REST API,
// requesting riff-16khz-16bit-mono-pcm output so the downstream decimation
// to the 8kHz telephony rate is an exact halving.
type Azure struct {
	cfg    AzureConfig
	client *http.Client
}

// NewAzure creates an Azure synthesizer. Fails fast on missing credentials.
func NewAzure(cfg AzureConfig) (*Azure, error) {
	if cfg.Key == "" || cfg.Region == "" {
		return nil, ErrMissingCredential
	}
	if cfg.Voice == "" {
		cfg.Voice = "en-US-JennyNeural"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Azure{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// Synthesize renders text to a WAV container.
func (a *Azure) Synthesize(ctx context.Context, text string) ([]byte, error) {
	ssml := fmt.Sprintf(
		`<speak version='1.0' xml:lang='en-US'><voice name='%s'>%s</voice></speak>`,
		a.cfg.Voice, escapeSSML(text),
	)

	endpoint := a.cfg.Endpoint
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://%s.tts.speech.microsoft.com/cognitiveservices/v1", a.cfg.Region)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(ssml))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", a.cfg.Key)
	req.Header.Set("Content-Type", "application/ssml+xml")
	req.Header.Set("X-Microsoft-OutputFormat", "riff-16khz-16bit-mono-pcm")

	start := time.Now()
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tts: synthesis request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("tts: synthesis failed: status=%d body=%s", resp.StatusCode, msg)
	}

	wav, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if len(wav) == 0 {
		return nil, ErrEmptySynthesis
	}

	log.Debug().
		Str("component", "tts.azure").
		Dur("latency", time.Since(start)).
		Int("bytes", len(wav)).
		Msg("synthesis completed")
	return wav, nil
}

func escapeSSML(s string) string {
	r := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		"'", "&apos;",
		`"`, "&quot;",
	)
	return r.Replace(s)
}
