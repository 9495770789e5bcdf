// Package models defines the data structures for call events published
// downstream and persisted per call.
package models

// WordConfidence is per-word recognition metadata attached to a transcript.
type WordConfidence struct {
	Word       string  `json:"word"`
	Confidence float64 `json:"confidence"`
}

// TranscriptPartial represents an interim/partial transcript result.
type TranscriptPartial struct {
	EventType string `json:"eventType"`
	StreamSID string `json:"streamSid"`
	CallSID   string `json:"callSid,omitempty"`
	Timestamp int64  `json:"timestamp"`
	Text      string `json:"text"`
}

// TranscriptFinal represents a final transcript result with confidence score.
type TranscriptFinal struct {
	EventType  string           `json:"eventType"`
	StreamSID  string           `json:"streamSid"`
	CallSID    string           `json:"callSid,omitempty"`
	Timestamp  int64            `json:"timestamp"`
	Text       string           `json:"text"`
	Confidence float64          `json:"confidence"`
	Words      []WordConfidence `json:"words,omitempty"`
}

// AssessmentCompleted is emitted once per scored utterance.
type AssessmentCompleted struct {
	EventType     string  `json:"eventType"`
	StreamSID     string  `json:"streamSid"`
	CallSID       string  `json:"callSid,omitempty"`
	Timestamp     int64   `json:"timestamp"`
	ReferenceText string  `json:"referenceText"`
	Accuracy      float64 `json:"accuracyScore"`
	Pronunciation float64 `json:"pronunciationScore"`
	Completeness  float64 `json:"completenessScore"`
	Fluency       float64 `json:"fluencyScore"`
	Prosody       float64 `json:"prosodyScore"`
	LowConfidence bool    `json:"lowConfidence,omitempty"`
}

// FeedbackDelivered is emitted when the one-shot coaching feedback has been
// injected into the live call.
type FeedbackDelivered struct {
	EventType   string  `json:"eventType"`
	StreamSID   string  `json:"streamSid"`
	CallSID     string  `json:"callSid,omitempty"`
	Timestamp   int64   `json:"timestamp"`
	Text        string  `json:"text"`
	FillerCount int     `json:"fillerCount"`
	FillerRate  float64 `json:"fillerRatePerMinute"`
	ViaAudio    bool    `json:"viaAudio"` // false when delivered as provider TTS markup
}
