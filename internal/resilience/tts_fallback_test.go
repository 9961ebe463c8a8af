package resilience

import (
	"context"
	"errors"
	"testing"

	"github.com/MrWong99/fluentforge/pkg/provider/tts"
	ttsmock "github.com/MrWong99/fluentforge/pkg/provider/tts/mock"
)

func TestTTSFallback_Synthesize(t *testing.T) {
	primary := &ttsmock.Provider{SynthesizeErr: errors.New("primary down")}
	secondary := &ttsmock.Provider{}

	fb := NewTTSFallback(primary, "elevenlabs", FallbackConfig{})
	fb.AddFallback("openai", secondary, tts.VoiceProfile{ID: "alloy"})

	clip, err := fb.Synthesize(context.Background(), "Good morning", tts.VoiceProfile{ID: "rachel", SpeedFactor: 0.9})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !clip.Valid() {
		t.Error("expected a valid clip")
	}

	if got := primary.SynthesizeCalls[0].Voice.ID; got != "rachel" {
		t.Errorf("primary voice = %q, want rachel", got)
	}
	call := secondary.SynthesizeCalls[0]
	if call.Voice.ID != "alloy" || call.Voice.SpeedFactor != 0.9 {
		t.Errorf("fallback voice = %+v, want alloy at 0.9", call.Voice)
	}
}

func TestTTSFallback_EmptyText(t *testing.T) {
	primary := &ttsmock.Provider{}
	fb := NewTTSFallback(primary, "primary", FallbackConfig{})
	if _, err := fb.Synthesize(context.Background(), " ", tts.VoiceProfile{}); !errors.Is(err, tts.ErrEmptyText) {
		t.Fatalf("err = %v, want ErrEmptyText", err)
	}
	if primary.CallCount() != 0 {
		t.Error("provider called for empty text")
	}
}

func TestTTSFallback_ListVoices(t *testing.T) {
	primary := &ttsmock.Provider{ListVoicesErr: errors.New("down")}
	secondary := &ttsmock.Provider{Voices: []tts.VoiceProfile{{ID: "alloy"}}}
	fb := NewTTSFallback(primary, "primary", FallbackConfig{})
	fb.AddFallback("secondary", secondary, tts.VoiceProfile{})

	voices, err := fb.ListVoices(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(voices) != 1 || voices[0].ID != "alloy" {
		t.Errorf("voices = %+v", voices)
	}
}
