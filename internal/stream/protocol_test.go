package stream

import (
	"encoding/json"
	"testing"
)

func TestParseStartFrame(t *testing.T) {
	raw := `{
		"event": "start",
		"streamSid": "MZ1",
		"start": {
			"streamSid": "MZ1",
			"callSid": "CA1",
			"tracks": ["inbound"],
			"mediaFormat": {"encoding": "audio/x-mulaw", "sampleRate": 8000}
		}
	}`
	frame, err := ParseFrame([]byte(raw))
	if err != nil {
		t.Fatalf("ParseFrame: %v", err)
	}
	if frame.Event != EventStart {
		t.Errorf("event = %q", frame.Event)
	}
	if frame.Start == nil || frame.Start.CallSID != "CA1" {
		t.Errorf("start block not decoded: %+v", frame.Start)
	}
}

func TestParseMediaFrame(t *testing.T) {
	raw := `{"event": "media", "streamSid": "MZ1", "media": {"track": "inbound", "payload": "AAAA"}}`
	frame, err := ParseFrame([]byte(raw))
	if err != nil {
		t.Fatalf("ParseFrame: %v", err)
	}
	if frame.Media == nil || frame.Media.Payload != "AAAA" || frame.Media.Track != "inbound" {
		t.Errorf("media block not decoded: %+v", frame.Media)
	}
}

func TestParseFrameRejectsGarbage(t *testing.T) {
	if _, err := ParseFrame([]byte("not json")); err == nil {
		t.Error("expected error for non-JSON input")
	}
}

func TestNewConnectedAck(t *testing.T) {
	frame, err := ParseFrame(NewConnectedAck())
	if err != nil {
		t.Fatalf("ParseFrame: %v", err)
	}
	if frame.Event != EventConnected {
		t.Errorf("event = %q", frame.Event)
	}
}

func TestNewOutboundMedia(t *testing.T) {
	data, err := NewOutboundMedia("MZ1", "cGF5bG9hZA==")
	if err != nil {
		t.Fatalf("NewOutboundMedia: %v", err)
	}

	var decoded struct {
		Event     string `json:"event"`
		StreamSID string `json:"streamSid"`
		Media     struct {
			Payload string `json:"payload"`
		} `json:"media"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal outbound frame: %v", err)
	}
	if decoded.Event != EventMedia {
		t.Errorf("event = %q", decoded.Event)
	}
	if decoded.StreamSID != "MZ1" {
		t.Errorf("streamSid = %q", decoded.StreamSID)
	}
	if decoded.Media.Payload != "cGF5bG9hZA==" {
		t.Errorf("payload = %q", decoded.Media.Payload)
	}
}
