package stream

import "encoding/json"

// Inbound frame event types.
const (
	EventConnected = "connected"
	EventStart     = "start"
	EventMedia     = "media"
	EventStop      = "stop"
	EventMark      = "mark"
)

// Frame is one inbound JSON message on the media-stream socket. Fields
// beyond the event discriminator are populated per event type.
type Frame struct {
	Event     string      `json:"event"`
	StreamSID string      `json:"streamSid,omitempty"`
	Start     *StartFrame `json:"start,omitempty"`
	Media     *MediaFrame `json:"media,omitempty"`
	Stop      *StopFrame  `json:"stop,omitempty"`
	Mark      *MarkFrame  `json:"mark,omitempty"`
}

// StartFrame carries stream metadata from the provider.
type StartFrame struct {
	StreamSID   string            `json:"streamSid"`
	AccountSID  string            `json:"accountSid,omitempty"`
	CallSID     string            `json:"callSid,omitempty"`
	Tracks      []string          `json:"tracks,omitempty"`
	MediaFormat map[string]any    `json:"mediaFormat,omitempty"`
	Custom      map[string]string `json:"customParameters,omitempty"`
}

// MediaFrame carries one 20ms chunk of base64 mu-law audio.
type MediaFrame struct {
	Track     string `json:"track,omitempty"`
	Chunk     string `json:"chunk,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   string `json:"payload"`
}

// StopFrame signals end of stream.
type StopFrame struct {
	AccountSID string `json:"accountSid,omitempty"`
	CallSID    string `json:"callSid,omitempty"`
}

// MarkFrame acknowledges a previously sent mark.
type MarkFrame struct {
	Name string `json:"name"`
}

// outboundMedia is the frame used to play audio back into the call.
type outboundMedia struct {
	Event     string        `json:"event"`
	StreamSID string        `json:"streamSid"`
	Media     outboundChunk `json:"media"`
}

type outboundChunk struct {
	Payload string `json:"payload"`
}

// ParseFrame decodes one inbound frame.
func ParseFrame(data []byte) (*Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// NewConnectedAck builds the acknowledgment returned for a connected frame.
func NewConnectedAck() []byte {
	return []byte(`{"event":"connected"}`)
}

// NewOutboundMedia builds a playback frame carrying base64 mu-law audio.
func NewOutboundMedia(streamSID, payload string) ([]byte, error) {
	return json.Marshal(outboundMedia{
		Event:     EventMedia,
		StreamSID: streamSID,
		Media:     outboundChunk{Payload: payload},
	})
}
