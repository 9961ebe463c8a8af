// Package tts defines the Provider interface for text-to-speech backends.
//
// Practice phrases are short, so synthesis is batch-oriented: one call
// returns the complete clip for one phrase. Implementations must be safe for
// concurrent use.
package tts

import (
	"context"
	"errors"

	"github.com/MrWong99/fluentforge/pkg/audio"
)

// ErrEmptyText is returned when Synthesize is called with blank text.
var ErrEmptyText = errors.New("tts: empty text")

// Provider is the abstraction over any TTS backend.
type Provider interface {
	// Synthesize renders text in the given voice and returns the complete
	// clip. The clip's Format reports the backend's native output format;
	// callers convert it as needed.
	Synthesize(ctx context.Context, text string, voice VoiceProfile) (audio.Clip, error)

	// ListVoices returns the voices the backend currently offers.
	ListVoices(ctx context.Context) ([]VoiceProfile, error)
}
