package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"ai-speech-practice-agent/internal/app"
	"ai-speech-practice-agent/internal/config"
	"ai-speech-practice-agent/internal/events"
	"ai-speech-practice-agent/internal/feedback"
	"ai-speech-practice-agent/internal/httpapi"
	"ai-speech-practice-agent/internal/observability"
	"ai-speech-practice-agent/internal/service/assess"
	assessazure "ai-speech-practice-agent/internal/service/assess/azure"
	assessmock "ai-speech-practice-agent/internal/service/assess/mock"
	"ai-speech-practice-agent/internal/service/convo"
	"ai-speech-practice-agent/internal/service/stt"
	sttgoogle "ai-speech-practice-agent/internal/service/stt/google"
	sttmock "ai-speech-practice-agent/internal/service/stt/mock"
	"ai-speech-practice-agent/internal/service/tts"
	"ai-speech-practice-agent/internal/session"
	"ai-speech-practice-agent/internal/store"
	"ai-speech-practice-agent/internal/stream"
	"ai-speech-practice-agent/internal/telephony"
	"ai-speech-practice-agent/internal/vad"
)

func main() {
	cfg := config.Load()
	application := app.New(cfg)
	if err := application.Start(); err != nil {
		log.Fatal().Err(err).Msg("Application start failed")
	}

	// Kafka publisher with separate topics per event kind
	publisher := events.New(&events.Config{
		Enabled:         cfg.Kafka.Enabled,
		Brokers:         cfg.Kafka.Brokers,
		TopicPartial:    cfg.Kafka.TopicPartial,
		TopicFinal:      cfg.Kafka.TopicFinal,
		TopicAssessment: cfg.Kafka.TopicAssessment,
		TopicFeedback:   cfg.Kafka.TopicFeedback,
		Principal:       cfg.Kafka.Principal,
	})
	defer publisher.Close()

	st, err := store.New(cfg.Storage.DataDir)
	if err != nil {
		log.Fatal().Err(err).Msg("Store initialization failed")
	}

	registry := session.NewRegistry()

	var telephonyClient *telephony.Client
	if cfg.Telephony.AccountSID != "" && cfg.Telephony.AuthToken != "" {
		telephonyClient, err = telephony.NewClient(telephony.Config{
			AccountSID: cfg.Telephony.AccountSID,
			AuthToken:  cfg.Telephony.AuthToken,
			FromNumber: cfg.Telephony.FromNumber,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Telephony client initialization failed")
		}
	} else {
		log.Warn().Msg("Telephony credentials absent, call initiation and feedback injection disabled")
	}

	generator := buildGenerator(cfg)
	synthesizer := buildSynthesizer(cfg)
	assessor := buildAssessor(cfg)
	newTranscriber := buildTranscriberFactory(cfg)

	var updater feedback.CallUpdater
	if telephonyClient != nil {
		updater = telephonyClient
	}
	reporter := feedback.NewReporter(generator, synthesizer, updater, st, publisher, cfg.Service.PublicBaseURL)

	vadCfg := vad.DefaultConfig()
	vadCfg.SpeechThreshold = cfg.VAD.SpeechThreshold
	vadCfg.SilenceThreshold = cfg.VAD.SilenceThreshold
	vadCfg.SilenceDuration = cfg.VAD.SilenceDuration

	mediaStream := stream.NewHandler(stream.Deps{
		Registry:       registry,
		NewTranscriber: newTranscriber,
		NewPipeline: func() *assess.Pipeline {
			p := assess.NewPipeline(assessor, assess.DefaultLimits())
			p.Unscripted = cfg.Assessment.Unscripted
			return p
		},
		Generator:   generator,
		Synthesizer: synthesizer,
		Publisher:   publisher,
		Store:       st,
		Feedback:    reporter,
		NewDetector: func(onStart, onEnd func()) stream.VoiceDetector {
			d := vad.New(vadCfg)
			d.OnSpeechStart = onStart
			d.OnSpeechEnd = onEnd
			return d
		},
		FeedbackDelay: cfg.Feedback.Delay,
	})

	var callCreator httpapi.CallCreator
	if telephonyClient != nil {
		callCreator = telephonyClient
	}
	router := httpapi.NewRouter(httpapi.Deps{
		Voice:       &httpapi.VoiceHandler{PublicBaseURL: cfg.Service.PublicBaseURL},
		Call:        &httpapi.CallHandler{Telephony: callCreator, PublicBaseURL: cfg.Service.PublicBaseURL},
		Audio:       &httpapi.AudioHandler{Store: st},
		MediaStream: mediaStream,
	})

	obsServer := observability.NewServer(":" + cfg.Service.ObsPort)
	obsServer.Start()

	httpServer := &http.Server{
		Addr:              ":" + cfg.Service.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", httpServer.Addr).Msg("HTTP server started")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP serve failed")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP shutdown error")
	}
	if err := obsServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Observability shutdown error")
	}
	application.Shutdown()
}

func buildGenerator(cfg *config.Configuration) convo.Generator {
	switch cfg.LLM.Provider {
	case "openai":
		gen, err := convo.NewOpenAI(convo.OpenAIConfig{
			APIKey:    cfg.LLM.APIKey,
			BaseURL:   cfg.LLM.BaseURL,
			Model:     cfg.LLM.Model,
			MaxTokens: cfg.LLM.MaxTokens,
		})
		if err != nil {
			log.Error().Err(err).Msg("OpenAI generator unavailable, degrading to mock")
			return convo.NewMock()
		}
		return gen
	default:
		log.Info().Str("provider", cfg.LLM.Provider).Msg("Using mock conversation generator")
		return convo.NewMock()
	}
}

func buildSynthesizer(cfg *config.Configuration) tts.Synthesizer {
	switch cfg.TTS.Provider {
	case "azure":
		synth, err := tts.NewAzure(tts.AzureConfig{
			Key:    cfg.TTS.Key,
			Region: cfg.TTS.Region,
			Voice:  cfg.TTS.Voice,
		})
		if err != nil {
			log.Error().Err(err).Msg("Azure synthesizer unavailable, degrading to mock")
			return tts.NewMock()
		}
		return synth
	default:
		log.Info().Str("provider", cfg.TTS.Provider).Msg("Using mock synthesizer")
		return tts.NewMock()
	}
}

func buildAssessor(cfg *config.Configuration) assess.Assessor {
	switch cfg.Assessment.Provider {
	case "azure":
		a, err := assessazure.New(assessazure.Config{
			Key:      cfg.Assessment.Key,
			Region:   cfg.Assessment.Region,
			Language: cfg.Assessment.Language,
		})
		if err != nil {
			log.Error().Err(err).Msg("Azure assessor unavailable, degrading to mock")
			return assessmock.New()
		}
		return a
	default:
		log.Info().Str("provider", cfg.Assessment.Provider).Msg("Using mock assessor")
		return assessmock.New()
	}
}

func buildTranscriberFactory(cfg *config.Configuration) func(ctx context.Context) (stt.Transcriber, error) {
	switch cfg.STT.Provider {
	case "google":
		return func(ctx context.Context) (stt.Transcriber, error) {
			return sttgoogle.New(ctx, sttgoogle.Config{
				LanguageCode:   cfg.STT.LanguageCode,
				SampleRateHz:   cfg.STT.SampleRateHz,
				InterimResults: cfg.STT.InterimResults,
			})
		}
	default:
		log.Info().Str("provider", cfg.STT.Provider).Msg("Using mock transcriber")
		return func(ctx context.Context) (stt.Transcriber, error) {
			return sttmock.New(), nil
		}
	}
}
