package resilience

import (
	"context"
	"strings"

	"github.com/MrWong99/fluentforge/pkg/audio"
	"github.com/MrWong99/fluentforge/pkg/provider/tts"
)

// TTSFallback implements [tts.Provider] with failover across several TTS
// backends. Voice IDs are provider-specific, so each fallback entry carries
// the voice it should use in place of the caller's.
type TTSFallback struct {
	group *FallbackGroup[ttsEntry]
}

type ttsEntry struct {
	provider tts.Provider
	voice    *tts.VoiceProfile
}

var _ tts.Provider = (*TTSFallback)(nil)

// NewTTSFallback creates a [TTSFallback] with primary as the preferred
// backend. The primary uses the voice passed to Synthesize.
func NewTTSFallback(primary tts.Provider, primaryName string, cfg FallbackConfig) *TTSFallback {
	return &TTSFallback{group: NewFallbackGroup(ttsEntry{provider: primary}, primaryName, cfg)}
}

// AddFallback registers an additional backend that synthesizes with voice.
// The caller's SpeedFactor is carried over when voice leaves it unset.
func (f *TTSFallback) AddFallback(name string, provider tts.Provider, voice tts.VoiceProfile) {
	f.group.AddFallback(name, ttsEntry{provider: provider, voice: &voice})
}

// Synthesize renders text with the first healthy backend.
func (f *TTSFallback) Synthesize(ctx context.Context, text string, voice tts.VoiceProfile) (audio.Clip, error) {
	if strings.TrimSpace(text) == "" {
		return audio.Clip{}, tts.ErrEmptyText
	}
	return ExecuteWithResult(f.group, func(e ttsEntry) (audio.Clip, error) {
		v := voice
		if e.voice != nil {
			v = *e.voice
			if v.SpeedFactor == 0 {
				v.SpeedFactor = voice.SpeedFactor
			}
		}
		return e.provider.Synthesize(ctx, text, v)
	})
}

// ListVoices returns the voices of the first healthy backend.
func (f *TTSFallback) ListVoices(ctx context.Context) ([]tts.VoiceProfile, error) {
	return ExecuteWithResult(f.group, func(e ttsEntry) ([]tts.VoiceProfile, error) {
		return e.provider.ListVoices(ctx)
	})
}
