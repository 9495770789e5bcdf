// Package azure provides a pronunciation assessor backed by the Azure
// Speech short-audio REST API. Each Assess call is an independent one-shot
// recognition+assessment session: the utterance audio is posted as a WAV
// body with assessment parameters in a base64 JSON header, and a single
// detailed-format result is awaited.
package azure

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"ai-speech-practice-agent/internal/audio"
	"ai-speech-practice-agent/internal/service/assess"
)

// ErrMissingCredential indicates the adapter was constructed without a
// subscription key or region. Construction fails; the call falls back to
// the mock assessor instead of crashing.
var ErrMissingCredential = errors.New("azure: missing speech key or region")

const sampleRateHz = 8000

// Config holds Azure Speech credentials and tuning.
type Config struct {
	Key      string
	Region   string
	Language string        // default en-US
	Timeout  time.Duration // per-request, default 15s
	Endpoint string        // overrides the region-derived endpoint, for tests
}

// Assessor implements assess.Assessor over the Azure Speech REST API.
type Assessor struct {
	cfg    Config
	client *http.Client
}

// New creates an Azure assessor. Fails fast on missing credentials.
func New(cfg Config) (*Assessor, error) {
	if cfg.Key == "" || cfg.Region == "" {
		return nil, ErrMissingCredential
	}
	if cfg.Language == "" {
		cfg.Language = "en-US"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Assessor{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// assessmentParams is the Pronunciation-Assessment header payload.
type assessmentParams struct {
	ReferenceText string `json:"ReferenceText"`
	GradingSystem string `json:"GradingSystem"`
	Granularity   string `json:"Granularity"`
	Dimension     string `json:"Dimension"`
	EnableProsody bool   `json:"EnableProsodyAssessment"`
}

// Response shapes for the detailed output format.
type detailedResponse struct {
	RecognitionStatus string        `json:"RecognitionStatus"`
	DisplayText       string        `json:"DisplayText"`
	NBest             []nBestResult `json:"NBest"`
}

type nBestResult struct {
	Display    string            `json:"Display"`
	Assessment *assessmentScores `json:"PronunciationAssessment"`
	Words      []wordDetail      `json:"Words"`
}

type assessmentScores struct {
	AccuracyScore     float64 `json:"AccuracyScore"`
	FluencyScore      float64 `json:"FluencyScore"`
	CompletenessScore float64 `json:"CompletenessScore"`
	ProsodyScore      float64 `json:"ProsodyScore"`
	PronScore         float64 `json:"PronScore"`
}

type wordDetail struct {
	Word       string          `json:"Word"`
	Assessment *wordAssessment `json:"PronunciationAssessment"`
	Phonemes   []phonemeDetail `json:"Phonemes"`
}

type wordAssessment struct {
	AccuracyScore float64 `json:"AccuracyScore"`
	ErrorType     string  `json:"ErrorType"`
}

type phonemeDetail struct {
	Phoneme    string          `json:"Phoneme"`
	Assessment *wordAssessment `json:"PronunciationAssessment"`
}

// Assess posts one utterance for scoring. A non-empty referenceText runs a
// scripted assessment; empty runs unscripted.
func (a *Assessor) Assess(ctx context.Context, pcm []byte, referenceText string) (*assess.Result, error) {
	params := assessmentParams{
		ReferenceText: referenceText,
		GradingSystem: "HundredMark",
		Granularity:   "Phoneme",
		Dimension:     "Comprehensive",
		EnableProsody: true,
	}
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}

	endpoint := a.cfg.Endpoint
	if endpoint == "" {
		endpoint = fmt.Sprintf(
			"https://%s.stt.speech.microsoft.com/speech/recognition/conversation/cognitiveservices/v1?language=%s&format=detailed",
			a.cfg.Region, a.cfg.Language,
		)
	}

	body := audio.WrapWavPCM(pcm, sampleRateHz)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", a.cfg.Key)
	req.Header.Set("Content-Type", fmt.Sprintf("audio/wav; codecs=audio/pcm; samplerate=%d", sampleRateHz))
	req.Header.Set("Pronunciation-Assessment", base64.StdEncoding.EncodeToString(paramsJSON))
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("azure: assessment failed: status=%d body=%s", resp.StatusCode, msg)
	}

	var dr detailedResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return nil, fmt.Errorf("azure: decode response: %w", err)
	}
	if dr.RecognitionStatus != "Success" || len(dr.NBest) == 0 {
		return nil, fmt.Errorf("azure: no assessment result: status=%s", dr.RecognitionStatus)
	}

	best := dr.NBest[0]
	res := &assess.Result{RecognizedText: best.Display}
	if res.RecognizedText == "" {
		res.RecognizedText = dr.DisplayText
	}
	if best.Assessment != nil {
		res.Accuracy = best.Assessment.AccuracyScore
		res.Fluency = best.Assessment.FluencyScore
		res.Completeness = best.Assessment.CompletenessScore
		res.Prosody = best.Assessment.ProsodyScore
		res.Pronunciation = best.Assessment.PronScore
	}
	for _, w := range best.Words {
		wr := assess.WordResult{Word: w.Word}
		if w.Assessment != nil {
			wr.Accuracy = w.Assessment.AccuracyScore
			wr.ErrorType = w.Assessment.ErrorType
		}
		for _, p := range w.Phonemes {
			pr := assess.PhonemeResult{Phoneme: p.Phoneme}
			if p.Assessment != nil {
				pr.Accuracy = p.Assessment.AccuracyScore
			}
			wr.Phonemes = append(wr.Phonemes, pr)
		}
		res.Words = append(res.Words, wr)
	}

	log.Debug().
		Str("component", "assess.azure").
		Str("recognized", res.RecognizedText).
		Float64("pronScore", res.Pronunciation).
		Msg("assessment response parsed")
	return res, nil
}
