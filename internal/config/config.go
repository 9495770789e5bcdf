// Package config loads service configuration from environment variables.
// Every knob has a sensible default so the service starts with no
// environment at all, running against mock providers.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Configuration holds process-wide settings grouped by concern.
type Configuration struct {
	Service       ServiceConfig
	Telephony     TelephonyConfig
	STT           STTConfig
	VAD           VADConfig
	Assessment    AssessmentConfig
	TTS           TTSConfig
	LLM           LLMConfig
	Feedback      FeedbackConfig
	Kafka         KafkaConfig
	Storage       StorageConfig
	Observability ObservabilityConfig
}

// ServiceConfig identifies the service and its listen ports.
type ServiceConfig struct {
	Principal     string
	HTTPPort      string
	ObsPort       string
	PublicBaseURL string
}

// TelephonyConfig holds Twilio REST credentials.
type TelephonyConfig struct {
	AccountSID string
	AuthToken  string
	FromNumber string
}

// STTConfig selects and tunes the speech-to-text provider.
type STTConfig struct {
	Provider       string
	LanguageCode   string
	SampleRateHz   int
	InterimResults bool
}

// VADConfig tunes the energy-based voice activity detector.
type VADConfig struct {
	SpeechThreshold  float64
	SilenceThreshold float64
	SilenceDuration  time.Duration
}

// AssessmentConfig selects and tunes the pronunciation assessor.
type AssessmentConfig struct {
	Provider   string
	Key        string
	Region     string
	Language   string
	Unscripted bool
}

// TTSConfig selects and tunes the speech synthesizer.
type TTSConfig struct {
	Provider string
	Key      string
	Region   string
	Voice    string
}

// LLMConfig configures the conversation generator.
type LLMConfig struct {
	Provider  string
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
}

// FeedbackConfig tunes end-of-call coaching delivery.
type FeedbackConfig struct {
	Delay time.Duration
}

// KafkaConfig configures the event publisher.
type KafkaConfig struct {
	Enabled         bool
	Brokers         []string
	TopicPartial    string
	TopicFinal      string
	TopicAssessment string
	TopicFeedback   string
	Principal       string
}

// StorageConfig locates on-disk call artifacts.
type StorageConfig struct {
	DataDir string
}

// ObservabilityConfig tunes logging.
type ObservabilityConfig struct {
	LogLevel    string
	Environment string
}

// Load reads configuration from the environment, falling back to defaults
// for unset or unparsable values.
func Load() *Configuration {
	principal := envOrDefault("SERVICE_PRINCIPAL", "svc-speech-practice")

	return &Configuration{
		Service: ServiceConfig{
			Principal:     principal,
			HTTPPort:      envOrDefault("HTTP_PORT", "8080"),
			ObsPort:       envOrDefault("OBS_PORT", "9090"),
			PublicBaseURL: envOrDefault("PUBLIC_BASE_URL", "http://localhost:8080"),
		},
		Telephony: TelephonyConfig{
			AccountSID: os.Getenv("TWILIO_ACCOUNT_SID"),
			AuthToken:  os.Getenv("TWILIO_AUTH_TOKEN"),
			FromNumber: os.Getenv("TWILIO_FROM_NUMBER"),
		},
		STT: STTConfig{
			Provider:       envOrDefault("STT_PROVIDER", "mock"),
			LanguageCode:   envOrDefault("STT_LANGUAGE_CODE", "en-US"),
			SampleRateHz:   envOrDefaultInt("STT_SAMPLE_RATE_HZ", 8000),
			InterimResults: envOrDefaultBool("STT_INTERIM_RESULTS", true),
		},
		VAD: VADConfig{
			SpeechThreshold:  envOrDefaultFloat("VAD_SPEECH_THRESHOLD", 500),
			SilenceThreshold: envOrDefaultFloat("VAD_SILENCE_THRESHOLD", 300),
			SilenceDuration:  envOrDefaultDuration("VAD_SILENCE_DURATION", 800*time.Millisecond),
		},
		Assessment: AssessmentConfig{
			Provider:   envOrDefault("ASSESS_PROVIDER", "mock"),
			Key:        os.Getenv("SPEECH_KEY"),
			Region:     os.Getenv("SPEECH_REGION"),
			Language:   envOrDefault("ASSESS_LANGUAGE", "en-US"),
			Unscripted: envOrDefaultBool("ASSESS_UNSCRIPTED", false),
		},
		TTS: TTSConfig{
			Provider: envOrDefault("TTS_PROVIDER", "mock"),
			Key:      os.Getenv("SPEECH_KEY"),
			Region:   os.Getenv("SPEECH_REGION"),
			Voice:    envOrDefault("TTS_VOICE", "en-US-JennyNeural"),
		},
		LLM: LLMConfig{
			Provider:  envOrDefault("LLM_PROVIDER", "mock"),
			APIKey:    os.Getenv("LLM_API_KEY"),
			BaseURL:   envOrDefault("LLM_BASE_URL", "https://api.openai.com"),
			Model:     envOrDefault("LLM_MODEL", "gpt-4o-mini"),
			MaxTokens: envOrDefaultInt("LLM_MAX_TOKENS", 60),
		},
		Feedback: FeedbackConfig{
			Delay: envOrDefaultDuration("FEEDBACK_DELAY", 30*time.Second),
		},
		Kafka: KafkaConfig{
			Enabled:         envOrDefaultBool("KAFKA_ENABLED", false),
			Brokers:         envOrDefaultSlice("KAFKA_BROKERS", nil),
			TopicPartial:    envOrDefault("KAFKA_TOPIC_TRANSCRIPT_PARTIAL", "practice.transcript.partial"),
			TopicFinal:      envOrDefault("KAFKA_TOPIC_TRANSCRIPT_FINAL", "practice.transcript.final"),
			TopicAssessment: envOrDefault("KAFKA_TOPIC_ASSESSMENT", "practice.assessment.completed"),
			TopicFeedback:   envOrDefault("KAFKA_TOPIC_FEEDBACK", "practice.feedback.delivered"),
			Principal:       envOrDefault("KAFKA_PRINCIPAL", principal),
		},
		Storage: StorageConfig{
			DataDir: envOrDefault("DATA_DIR", "./data"),
		},
		Observability: ObservabilityConfig{
			LogLevel:    envOrDefault("LOG_LEVEL", "info"),
			Environment: envOrDefault("ENV", "prod"),
		},
	}
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envOrDefaultFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func envOrDefaultBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(strings.ToLower(v)); err == nil {
			return b
		}
	}
	return def
}

func envOrDefaultDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func envOrDefaultSlice(key string, def []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return def
}
