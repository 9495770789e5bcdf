// Package telephony provides the Twilio REST client and TwiML document
// builders used to initiate calls and inject audio into live ones.
package telephony

import (
	"encoding/xml"
	"strings"
)

// twimlResponse is the root TwiML document.
type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Connect *connectVerb
	Say     *sayVerb
	Play    *playVerb
}

type connectVerb struct {
	XMLName xml.Name `xml:"Connect"`
	Stream  streamNoun
}

type streamNoun struct {
	XMLName xml.Name `xml:"Stream"`
	URL     string   `xml:"url,attr"`
}

type sayVerb struct {
	XMLName xml.Name `xml:"Say"`
	Voice   string   `xml:"voice,attr,omitempty"`
	Text    string   `xml:",chardata"`
}

type playVerb struct {
	XMLName xml.Name `xml:"Play"`
	URL     string   `xml:",chardata"`
}

// StreamConnectMarkup builds the TwiML that connects an answered call to
// this service's media-stream WebSocket. The base URL keeps its http(s)
// scheme in configuration; media streams require ws(s).
func StreamConnectMarkup(publicBaseURL string) string {
	wsURL := httpToWebSocketScheme(publicBaseURL) + "/media-stream"
	return render(twimlResponse{
		Connect: &connectVerb{Stream: streamNoun{URL: wsURL}},
	})
}

// SayMarkup builds a TwiML document that speaks text with the provider's
// built-in voice. Used as the fallback path when synthesis fails.
func SayMarkup(text, voice string) string {
	return render(twimlResponse{
		Say: &sayVerb{Voice: voice, Text: text},
	})
}

// PlayMarkup builds a TwiML document that plays a hosted audio file.
func PlayMarkup(audioURL string) string {
	return render(twimlResponse{
		Play: &playVerb{URL: audioURL},
	})
}

func httpToWebSocketScheme(u string) string {
	switch {
	case strings.HasPrefix(u, "https://"):
		return "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		return "ws://" + strings.TrimPrefix(u, "http://")
	default:
		return u
	}
}

func render(doc twimlResponse) string {
	out, err := xml.Marshal(doc)
	if err != nil {
		// The document structs contain no unmarshalable types.
		return "<Response></Response>"
	}
	return xml.Header + string(out)
}
