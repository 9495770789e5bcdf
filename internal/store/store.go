// Package store persists call artifacts to disk: transcript logs,
// assessment results, and synthesized audio for provider playback.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrInvalidName rejects audio file names that escape the data directory.
var ErrInvalidName = errors.New("store: invalid artifact name")

// Store writes call artifacts beneath a single data directory.
type Store struct {
	dir string
}

// New creates the data directory layout if needed and returns a store
// over it.
func New(dataDir string) (*Store, error) {
	for _, sub := range []string{"transcripts", "results", "audio"} {
		if err := os.MkdirAll(filepath.Join(dataDir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("store: create data dir: %w", err)
		}
	}
	return &Store{dir: dataDir}, nil
}

// AppendTranscript appends one timestamped transcript line to the call's
// transcript log.
func (s *Store) AppendTranscript(streamSID, text string) error {
	if !validName(streamSID) {
		return ErrInvalidName
	}
	line := fmt.Sprintf("%s\t%s\n", time.Now().UTC().Format(time.RFC3339), text)
	return s.appendFile(filepath.Join("transcripts", streamSID+".txt"), []byte(line))
}

// AppendResult appends one JSON-encoded assessment result to the call's
// results log, one object per line.
func (s *Store) AppendResult(streamSID string, result any) error {
	if !validName(streamSID) {
		return ErrInvalidName
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("store: marshal result: %w", err)
	}
	return s.appendFile(filepath.Join("results", streamSID+".txt"), append(payload, '\n'))
}

// WriteAudio writes a WAV artifact and returns its serving name. Names are
// flat; path separators are rejected.
func (s *Store) WriteAudio(name string, wav []byte) (string, error) {
	if !validName(name) {
		return "", ErrInvalidName
	}
	path := filepath.Join(s.dir, "audio", name)
	if err := os.WriteFile(path, wav, 0o644); err != nil {
		return "", fmt.Errorf("store: write audio: %w", err)
	}
	log.Debug().
		Str("component", "store").
		Str("name", name).
		Int("bytes", len(wav)).
		Msg("Audio artifact written")
	return name, nil
}

// AudioPath resolves a serving name back to its on-disk path. Returns
// ErrInvalidName for names with separators and os.ErrNotExist for missing
// artifacts.
func (s *Store) AudioPath(name string) (string, error) {
	if !validName(name) {
		return "", ErrInvalidName
	}
	path := filepath.Join(s.dir, "audio", name)
	if _, err := os.Stat(path); err != nil {
		return "", err
	}
	return path, nil
}

func (s *Store) appendFile(rel string, data []byte) error {
	path := filepath.Join(s.dir, rel)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("store: open %s: %w", rel, err)
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("store: append %s: %w", rel, err)
	}
	return nil
}

func validName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	if strings.ContainsAny(name, `/\`) {
		return false
	}
	return true
}
