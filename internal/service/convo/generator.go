// Package convo wraps a language-generation capability behind a small
// interface. The engine is stateless per call: dialogue history is passed in
// on every request, the call session remains the source of truth.
package convo

import (
	"context"
	"errors"

	"ai-speech-practice-agent/internal/session"
)

// ErrEmptyGeneration indicates the provider returned nothing usable. It is
// distinct from a transport-level failure so the orchestrator can pick the
// right fallback. No retry happens inside this package.
var ErrEmptyGeneration = errors.New("convo: provider returned empty completion")

// DialoguePrompt instructs the model to hold a spoken conversation with a
// hard reply-length budget appropriate for voice playback.
const DialoguePrompt = "You are a friendly English conversation partner on a phone call " +
	"with a language learner. Reply to the caller's last utterance naturally. " +
	"Keep every reply to one short sentence, at most fifteen words. " +
	"Never use lists, markup, or emoji; this text is spoken aloud."

// CoachPrompt is used by the feedback pipeline: coaching tone, not dialogue.
const CoachPrompt = "You are an encouraging English pronunciation coach. " +
	"Given a practice summary, give the caller one or two short spoken sentences " +
	"of feedback: mention their strongest point and the single most useful thing " +
	"to improve. Speak directly to them. No lists, markup, or emoji."

// Generator produces one bounded-length reply to the caller's last
// utterance given the preceding dialogue.
type Generator interface {
	Generate(ctx context.Context, systemPrompt string, past []session.Turn, current string) (string, error)
}
