// callclient simulates a provider media-stream connection against a running
// service: it opens the WebSocket, streams a WAV file as mu-law media frames
// in real time, and prints what the agent plays back.
package main

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/gorilla/websocket"

	"ai-speech-practice-agent/internal/audio"
)

// WAV header is 44 bytes for standard PCM files
const wavHeaderSize = 44

// 8kHz mu-law at 20ms per frame = 160 bytes of payload
const frameSamples = 160
const frameIntervalMs = 20

func main() {
	audioFile := flag.String("audio", "testdata/sample-8khz.wav", "Path to WAV file (8kHz 16-bit mono)")
	serverAddr := flag.String("server", "ws://localhost:8080/media-stream", "Media-stream WebSocket URL")
	streamSID := flag.String("stream", "MZ-client-"+time.Now().Format("150405"), "Stream SID")
	callSID := flag.String("call", "CA-client-"+time.Now().Format("150405"), "Call SID")
	flag.Parse()

	f, err := os.Open(*audioFile)
	if err != nil {
		log.Fatalf("Failed to open audio file: %v", err)
	}
	defer f.Close()

	header := make([]byte, wavHeaderSize)
	if _, err := io.ReadFull(f, header); err != nil {
		log.Fatalf("Failed to read WAV header: %v", err)
	}
	if string(header[0:4]) != "RIFF" || string(header[8:12]) != "WAVE" {
		log.Fatal("Not a valid WAV file")
	}

	sampleRate := binary.LittleEndian.Uint32(header[24:28])
	bitsPerSample := binary.LittleEndian.Uint16(header[34:36])
	log.Printf("WAV file: sampleRate=%d bitsPerSample=%d", sampleRate, bitsPerSample)
	if sampleRate != 8000 {
		log.Printf("Warning: Sample rate is %d Hz, expected 8000 Hz", sampleRate)
	}

	ws, _, err := websocket.DefaultDialer.Dial(*serverAddr, nil)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer ws.Close()
	log.Printf("Connected to %s", *serverAddr)

	// Print frames the agent plays back
	go func() {
		for {
			_, data, err := ws.ReadMessage()
			if err != nil {
				return
			}
			var frame struct {
				Event string `json:"event"`
				Media struct {
					Payload string `json:"payload"`
				} `json:"media"`
			}
			if json.Unmarshal(data, &frame) == nil && frame.Event == "media" {
				decoded, _ := base64.StdEncoding.DecodeString(frame.Media.Payload)
				log.Printf("<- agent played %d bytes (%.1fs of audio)",
					len(decoded), float64(len(decoded))/8000)
			}
		}
	}()

	send := func(v any) {
		if err := ws.WriteJSON(v); err != nil {
			log.Fatalf("Failed to send frame: %v", err)
		}
	}

	send(map[string]any{"event": "connected", "protocol": "Call", "version": "1.0.0"})
	send(map[string]any{
		"event":     "start",
		"streamSid": *streamSID,
		"start": map[string]any{
			"streamSid": *streamSID,
			"callSid":   *callSID,
			"tracks":    []string{"inbound"},
			"mediaFormat": map[string]any{
				"encoding": "audio/x-mulaw", "sampleRate": 8000, "channels": 1,
			},
		},
	})
	log.Printf("Streaming audio: streamSid=%s callSid=%s", *streamSID, *callSID)

	// Stream PCM as 20ms mu-law frames in real time
	pcmChunk := make([]byte, frameSamples*2)
	var totalBytes int64
	var frameNum int
	startTime := time.Now()

	for {
		n, err := io.ReadFull(f, pcmChunk)
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			if n == 0 {
				break
			}
		} else if err != nil {
			log.Fatalf("Failed to read audio: %v", err)
		}

		frameNum++
		totalBytes += int64(n)
		payload := base64.StdEncoding.EncodeToString(audio.EncodeMuLaw(pcmChunk[:n]))

		send(map[string]any{
			"event":     "media",
			"streamSid": *streamSID,
			"media": map[string]any{
				"track":     "inbound",
				"chunk":     fmt.Sprintf("%d", frameNum),
				"timestamp": fmt.Sprintf("%d", frameNum*frameIntervalMs),
				"payload":   payload,
			},
		})

		if frameNum%100 == 0 {
			log.Printf("Sent frame %d (%d bytes total)", frameNum, totalBytes)
		}

		time.Sleep(frameIntervalMs * time.Millisecond)
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			break
		}
	}

	elapsed := time.Since(startTime)
	log.Printf("Finished streaming: %d frames, %d bytes in %v", frameNum, totalBytes, elapsed)

	// Keep the line open briefly so the agent can reply, then hang up.
	log.Println("Waiting for agent reply...")
	time.Sleep(5 * time.Second)

	send(map[string]any{"event": "stop", "streamSid": *streamSID, "stop": map[string]any{"callSid": *callSID}})
	time.Sleep(500 * time.Millisecond)
	log.Printf("Call ended: streamSid=%s", *streamSID)
}
