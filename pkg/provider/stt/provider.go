// Package stt defines the Provider interface for speech-to-text backends.
//
// Practice attempts are short, complete utterances, so the interface is
// batch-oriented: the caller hands over a whole clip and receives the final
// transcript. Providers that only offer a streaming API (Deepgram) stream
// the clip internally and collect the final results.
//
// Implementations must be safe for concurrent use.
package stt

import (
	"context"
	"errors"

	"github.com/MrWong99/fluentforge/pkg/audio"
)

// ErrEmptyAudio is returned when Transcribe is called without audio data.
var ErrEmptyAudio = errors.New("stt: empty audio")

// Request describes one transcription.
type Request struct {
	// Clip is the recorded utterance. Providers convert it to whatever format
	// their backend expects.
	Clip audio.Clip

	// Language is the BCP-47 language tag for recognition (e.g. "en", "de").
	// An empty string uses the provider default.
	Language string

	// Keywords are vocabulary hints, typically the words of the phrase the
	// speaker was asked to repeat. Providers without keyword support ignore
	// them.
	Keywords []KeywordBoost
}

// Provider is the abstraction over any STT backend.
type Provider interface {
	// Transcribe returns the final transcript of req.Clip. It returns
	// ErrEmptyAudio when the clip holds no samples.
	Transcribe(ctx context.Context, req Request) (Transcript, error)
}
