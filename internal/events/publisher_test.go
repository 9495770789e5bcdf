package events

import (
	"context"
	"testing"
)

func TestPublisherDisabledMode(t *testing.T) {
	pub := New(&Config{
		TopicPartial:    "practice.transcript.partial",
		TopicFinal:      "practice.transcript.final",
		TopicAssessment: "practice.assessment.completed",
		TopicFeedback:   "practice.feedback.delivered",
		Principal:       "test",
		Enabled:         false,
	})
	defer pub.Close()

	ctx := context.Background()
	event := map[string]string{"streamSid": "MZ123", "text": "hello"}

	if err := pub.PublishTranscriptPartial(ctx, "MZ123", event); err != nil {
		t.Errorf("disabled partial publish returned error: %v", err)
	}
	if err := pub.PublishTranscriptFinal(ctx, "MZ123", event); err != nil {
		t.Errorf("disabled final publish returned error: %v", err)
	}
	if err := pub.PublishAssessment(ctx, "MZ123", event); err != nil {
		t.Errorf("disabled assessment publish returned error: %v", err)
	}
	if err := pub.PublishFeedback(ctx, "MZ123", event); err != nil {
		t.Errorf("disabled feedback publish returned error: %v", err)
	}
}

func TestPublisherNilConfig(t *testing.T) {
	pub := New(nil)
	defer pub.Close()

	if err := pub.PublishTranscriptFinal(context.Background(), "MZ123", map[string]string{"k": "v"}); err != nil {
		t.Errorf("nil-config publish returned error: %v", err)
	}
}

func TestPublisherMarshalError(t *testing.T) {
	pub := New(&Config{Enabled: false})
	defer pub.Close()

	// Channels cannot be marshaled to JSON.
	if err := pub.PublishTranscriptFinal(context.Background(), "MZ123", make(chan int)); err == nil {
		t.Error("expected marshal error for unmarshalable event")
	}
}

func TestPublisherCloseIdempotent(t *testing.T) {
	pub := New(&Config{Enabled: false})
	if err := pub.Close(); err != nil {
		t.Errorf("first close: %v", err)
	}
	if err := pub.Close(); err != nil {
		t.Errorf("second close: %v", err)
	}
}
