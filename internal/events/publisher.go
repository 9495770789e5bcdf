// Package events provides event publishing for downstream consumers:
// transcripts as they commit, assessments as they complete, and coaching
// feedback deliveries.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"ai-speech-practice-agent/internal/observability/metrics"
)

// Publisher publishes call events to separate Kafka topics. With Kafka
// disabled it degrades to log-only mode so the call path never depends on
// broker availability.
type Publisher struct {
	writerPartial    *kafka.Writer
	writerFinal      *kafka.Writer
	writerAssessment *kafka.Writer
	writerFeedback   *kafka.Writer
	principal        string
	topicPartial     string
	topicFinal       string
	topicAssessment  string
	topicFeedback    string
	enabled          bool
	metrics          *metrics.Metrics
}

// Config holds Kafka publisher configuration.
type Config struct {
	Brokers         []string
	TopicPartial    string
	TopicFinal      string
	TopicAssessment string
	TopicFeedback   string
	Principal       string
	Enabled         bool
}

// New creates a Kafka event publisher with one writer per topic.
func New(cfg *Config) *Publisher {
	m := metrics.DefaultMetrics

	if cfg == nil {
		log.Info().Msg("Kafka disabled (nil config), using log-only mode")
		return &Publisher{enabled: false, metrics: m}
	}

	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		log.Info().Msg("Kafka disabled, using log-only mode")
		return &Publisher{
			principal:       cfg.Principal,
			topicPartial:    cfg.TopicPartial,
			topicFinal:      cfg.TopicFinal,
			topicAssessment: cfg.TopicAssessment,
			topicFeedback:   cfg.TopicFeedback,
			enabled:         false,
			metrics:         m,
		}
	}

	// Longer dial timeouts for DNS resolution in Kubernetes.
	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}
	transport := &kafka.Transport{
		Dial: dialer.DialFunc,
	}

	newWriter := func(topic string) *kafka.Writer {
		return &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			BatchTimeout: 10 * time.Millisecond,
			WriteTimeout: 10 * time.Second,
			RequiredAcks: kafka.RequireOne,
			Transport:    transport,
		}
	}

	log.Info().
		Strs("brokers", cfg.Brokers).
		Str("topicPartial", cfg.TopicPartial).
		Str("topicFinal", cfg.TopicFinal).
		Str("topicAssessment", cfg.TopicAssessment).
		Str("topicFeedback", cfg.TopicFeedback).
		Str("principal", cfg.Principal).
		Msg("Kafka publisher initialized")

	return &Publisher{
		writerPartial:    newWriter(cfg.TopicPartial),
		writerFinal:      newWriter(cfg.TopicFinal),
		writerAssessment: newWriter(cfg.TopicAssessment),
		writerFeedback:   newWriter(cfg.TopicFeedback),
		principal:        cfg.Principal,
		topicPartial:     cfg.TopicPartial,
		topicFinal:       cfg.TopicFinal,
		topicAssessment:  cfg.TopicAssessment,
		topicFeedback:    cfg.TopicFeedback,
		enabled:          true,
		metrics:          m,
	}
}

// PublishTranscriptPartial publishes an interim transcript keyed by
// stream SID.
func (p *Publisher) PublishTranscriptPartial(ctx context.Context, key string, event any) error {
	return p.publish(ctx, p.writerPartial, p.topicPartial, key, event)
}

// PublishTranscriptFinal publishes a committed transcript keyed by stream
// SID.
func (p *Publisher) PublishTranscriptFinal(ctx context.Context, key string, event any) error {
	return p.publish(ctx, p.writerFinal, p.topicFinal, key, event)
}

// PublishAssessment publishes an assessment-completed event.
func (p *Publisher) PublishAssessment(ctx context.Context, key string, event any) error {
	return p.publish(ctx, p.writerAssessment, p.topicAssessment, key, event)
}

// PublishFeedback publishes a feedback-delivered event.
func (p *Publisher) PublishFeedback(ctx context.Context, key string, event any) error {
	return p.publish(ctx, p.writerFeedback, p.topicFeedback, key, event)
}

func (p *Publisher) publish(ctx context.Context, writer *kafka.Writer, topic, key string, event any) error {
	start := time.Now()

	payload, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("topic", topic).Msg("Failed to marshal event")
		return err
	}

	log.Debug().
		Str("principal", p.principal).
		Str("topic", topic).
		Str("key", key).
		RawJSON("payload", payload).
		Msg("Publishing event")

	if !p.enabled || writer == nil {
		p.metrics.RecordKafkaPublish(topic, nil, time.Since(start).Seconds())
		return nil
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "messageId", Value: []byte(uuid.NewString())},
			{Key: "eventType", Value: []byte(topic)},
			{Key: "principal", Value: []byte(p.principal)},
		},
	}

	if err := writer.WriteMessages(ctx, msg); err != nil {
		log.Error().
			Err(err).
			Str("topic", topic).
			Str("key", key).
			Msg("Failed to write to Kafka")
		p.metrics.RecordKafkaPublish(topic, err, time.Since(start).Seconds())
		return err
	}

	p.metrics.RecordKafkaPublish(topic, nil, time.Since(start).Seconds())
	return nil
}

// Close closes all Kafka writers.
func (p *Publisher) Close() error {
	var err error
	for _, w := range []*kafka.Writer{p.writerPartial, p.writerFinal, p.writerAssessment, p.writerFeedback} {
		if w != nil {
			if e := w.Close(); e != nil {
				log.Error().Err(e).Msg("Error closing Kafka writer")
				err = e
			}
		}
	}
	return err
}
