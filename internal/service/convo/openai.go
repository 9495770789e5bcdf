package convo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"ai-speech-practice-agent/internal/session"
)

// ErrMissingCredential indicates the client was constructed without an API
// key. Construction fails and the caller degrades to the mock generator.
var ErrMissingCredential = errors.New("convo: missing generation api key")

// OpenAIConfig configures the chat-completions client. BaseURL lets any
// OpenAI-compatible endpoint serve generation.
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string // default https://api.openai.com
	Model       string // default gpt-4o-mini
	MaxTokens   int    // default 60, keeps replies speakable
	Temperature float32
	Timeout     time.Duration // default 20s
}

// OpenAIGenerator implements Generator over the chat-completions API.
type OpenAIGenerator struct {
	cfg    OpenAIConfig
	client *http.Client
}

// NewOpenAI creates a chat-completions generator. Fails fast on a missing
// API key.
func NewOpenAI(cfg OpenAIConfig) (*OpenAIGenerator, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingCredential
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 60
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.8
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 20 * time.Second
	}
	return &OpenAIGenerator{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float32       `json:"temperature,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Generate asks for one reply to current given the preceding turns.
func (g *OpenAIGenerator) Generate(ctx context.Context, systemPrompt string, past []session.Turn, current string) (string, error) {
	msgs := make([]chatMessage, 0, len(past)+2)
	msgs = append(msgs, chatMessage{Role: "system", Content: systemPrompt})
	for _, turn := range past {
		role := "user"
		if turn.Role == session.RoleAssistant {
			role = "assistant"
		}
		msgs = append(msgs, chatMessage{Role: role, Content: turn.Text})
	}
	msgs = append(msgs, chatMessage{Role: "user", Content: current})

	payload, err := json.Marshal(chatRequest{
		Model:       g.cfg.Model,
		Messages:    msgs,
		MaxTokens:   g.cfg.MaxTokens,
		Temperature: g.cfg.Temperature,
	})
	if err != nil {
		return "", err
	}

	endpoint := strings.TrimRight(g.cfg.BaseURL, "/") + "/v1/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+g.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("convo: generation request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("convo: generation failed: status=%d body=%s", resp.StatusCode, msg)
	}

	var cr chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return "", fmt.Errorf("convo: decode response: %w", err)
	}
	if cr.Error != nil {
		return "", fmt.Errorf("convo: provider error: %s", cr.Error.Message)
	}
	if len(cr.Choices) == 0 {
		return "", ErrEmptyGeneration
	}

	reply := strings.TrimSpace(cr.Choices[0].Message.Content)
	if reply == "" {
		return "", ErrEmptyGeneration
	}

	log.Debug().
		Str("component", "convo").
		Dur("latency", time.Since(start)).
		Int("historyTurns", len(past)).
		Msg("reply generated")
	return reply, nil
}
