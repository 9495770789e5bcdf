package store

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestAppendTranscript(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := s.AppendTranscript("MZ1", "hello there"); err != nil {
		t.Fatalf("first append: %v", err)
	}
	if err := s.AppendTranscript("MZ1", "how are you"); err != nil {
		t.Fatalf("second append: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(s.dir, "transcripts", "MZ1.txt"))
	if err != nil {
		t.Fatalf("read transcript: %v", err)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), string(data))
	}
	if !strings.HasSuffix(lines[0], "\thello there") {
		t.Errorf("first line missing text: %q", lines[0])
	}
	if !strings.HasSuffix(lines[1], "\thow are you") {
		t.Errorf("second line missing text: %q", lines[1])
	}
}

func TestAppendResult(t *testing.T) {
	s, _ := New(t.TempDir())

	type result struct {
		Accuracy float64 `json:"accuracy"`
	}
	if err := s.AppendResult("MZ1", result{Accuracy: 87}); err != nil {
		t.Fatalf("AppendResult: %v", err)
	}
	if err := s.AppendResult("MZ1", result{Accuracy: 92}); err != nil {
		t.Fatalf("AppendResult: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(s.dir, "results", "MZ1.txt"))
	if err != nil {
		t.Fatalf("read results: %v", err)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 JSON lines, got %d", len(lines))
	}
	if lines[0] != `{"accuracy":87}` {
		t.Errorf("unexpected first result line %q", lines[0])
	}
}

func TestWriteAndResolveAudio(t *testing.T) {
	s, _ := New(t.TempDir())

	name, err := s.WriteAudio("feedback-MZ1.wav", []byte("RIFFdata"))
	if err != nil {
		t.Fatalf("WriteAudio: %v", err)
	}
	if name != "feedback-MZ1.wav" {
		t.Errorf("unexpected serving name %q", name)
	}

	path, err := s.AudioPath(name)
	if err != nil {
		t.Fatalf("AudioPath: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read audio: %v", err)
	}
	if string(data) != "RIFFdata" {
		t.Errorf("audio content mismatch: %q", data)
	}
}

func TestInvalidNames(t *testing.T) {
	s, _ := New(t.TempDir())

	for _, name := range []string{"", ".", "..", "../escape.wav", "a/b.wav", `a\b.wav`} {
		if _, err := s.WriteAudio(name, []byte("x")); err != ErrInvalidName {
			t.Errorf("WriteAudio(%q) = %v, want ErrInvalidName", name, err)
		}
		if _, err := s.AudioPath(name); err != ErrInvalidName {
			t.Errorf("AudioPath(%q) = %v, want ErrInvalidName", name, err)
		}
	}
}

func TestAudioPathMissing(t *testing.T) {
	s, _ := New(t.TempDir())
	if _, err := s.AudioPath("nope.wav"); !os.IsNotExist(err) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}
