package azure

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

const detailedBody = `{
  "RecognitionStatus": "Success",
  "DisplayText": "Hello world.",
  "NBest": [{
    "Display": "Hello world.",
    "PronunciationAssessment": {
      "AccuracyScore": 92.5,
      "FluencyScore": 88.0,
      "CompletenessScore": 100.0,
      "ProsodyScore": 81.0,
      "PronScore": 90.0
    },
    "Words": [{
      "Word": "hello",
      "PronunciationAssessment": {"AccuracyScore": 95.0, "ErrorType": "None"},
      "Phonemes": [
        {"Phoneme": "h", "PronunciationAssessment": {"AccuracyScore": 96.0}},
        {"Phoneme": "eh", "PronunciationAssessment": {"AccuracyScore": 94.0}}
      ]
    }, {
      "Word": "world",
      "PronunciationAssessment": {"AccuracyScore": 90.0, "ErrorType": "Mispronunciation"}
    }]
  }]
}`

func TestNew_MissingCredentials(t *testing.T) {
	if _, err := New(Config{}); err != ErrMissingCredential {
		t.Errorf("expected ErrMissingCredential, got %v", err)
	}
	if _, err := New(Config{Key: "k"}); err != ErrMissingCredential {
		t.Errorf("expected ErrMissingCredential without region, got %v", err)
	}
}

func TestAssess_ScriptedMode(t *testing.T) {
	var gotParams assessmentParams
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Ocp-Apim-Subscription-Key"); got != "test-key" {
			t.Errorf("unexpected subscription key %q", got)
		}
		raw, err := base64.StdEncoding.DecodeString(r.Header.Get("Pronunciation-Assessment"))
		if err != nil {
			t.Fatalf("assessment header not base64: %v", err)
		}
		if err := json.Unmarshal(raw, &gotParams); err != nil {
			t.Fatalf("assessment header not json: %v", err)
		}
		w.Write([]byte(detailedBody))
	}))
	defer srv.Close()

	a, err := New(Config{Key: "test-key", Region: "eastus", Endpoint: srv.URL})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	res, err := a.Assess(context.Background(), make([]byte, 1600), "hello world")
	if err != nil {
		t.Fatalf("Assess failed: %v", err)
	}

	if gotParams.ReferenceText != "hello world" {
		t.Errorf("expected scripted reference text, got %q", gotParams.ReferenceText)
	}
	if gotParams.GradingSystem != "HundredMark" || gotParams.Granularity != "Phoneme" {
		t.Errorf("unexpected grading params: %+v", gotParams)
	}

	if res.Accuracy != 92.5 || res.Fluency != 88 || res.Pronunciation != 90 {
		t.Errorf("unexpected scores: %+v", res)
	}
	if res.RecognizedText != "Hello world." {
		t.Errorf("unexpected recognized text %q", res.RecognizedText)
	}
	if len(res.Words) != 2 {
		t.Fatalf("expected 2 words, got %d", len(res.Words))
	}
	if res.Words[0].Word != "hello" || res.Words[0].Accuracy != 95 {
		t.Errorf("unexpected first word: %+v", res.Words[0])
	}
	if len(res.Words[0].Phonemes) != 2 || res.Words[0].Phonemes[1].Phoneme != "eh" {
		t.Errorf("unexpected phonemes: %+v", res.Words[0].Phonemes)
	}
	if res.Words[1].ErrorType != "Mispronunciation" {
		t.Errorf("unexpected error type: %+v", res.Words[1])
	}
}

func TestAssess_UnscriptedModeSendsEmptyReference(t *testing.T) {
	var gotParams assessmentParams
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := base64.StdEncoding.DecodeString(r.Header.Get("Pronunciation-Assessment"))
		json.Unmarshal(raw, &gotParams)
		w.Write([]byte(detailedBody))
	}))
	defer srv.Close()

	a, _ := New(Config{Key: "k", Region: "eastus", Endpoint: srv.URL})
	if _, err := a.Assess(context.Background(), make([]byte, 1600), ""); err != nil {
		t.Fatalf("Assess failed: %v", err)
	}
	if gotParams.ReferenceText != "" {
		t.Errorf("unscripted mode must not send a reference, got %q", gotParams.ReferenceText)
	}
}

func TestAssess_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"RecognitionStatus": "InitialSilenceTimeout", "NBest": []}`))
	}))
	defer srv.Close()

	a, _ := New(Config{Key: "k", Region: "eastus", Endpoint: srv.URL})
	if _, err := a.Assess(context.Background(), make([]byte, 1600), "hi"); err == nil {
		t.Error("expected error for non-success recognition status")
	}
}

func TestAssess_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer srv.Close()

	a, _ := New(Config{Key: "k", Region: "eastus", Endpoint: srv.URL})
	if _, err := a.Assess(context.Background(), make([]byte, 1600), "hi"); err == nil {
		t.Error("expected error for HTTP 403")
	}
}
