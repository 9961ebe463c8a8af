// Package audio holds the PCM plumbing shared by the speech providers and the
// practice service: clip formats, channel and sample-rate conversion, and
// RIFF/WAVE encoding.
//
// All sample data is signed 16-bit little-endian PCM.
package audio

import (
	"fmt"
	"time"
)

// Format describes the sample rate and channel count of a clip.
type Format struct {
	SampleRate int
	Channels   int
}

// Common formats.
var (
	// Speech is what the speech-to-text providers are fed.
	Speech = Format{SampleRate: 16000, Channels: 1}

	// OpenAISpeech is the raw PCM produced by the OpenAI speech endpoint.
	OpenAISpeech = Format{SampleRate: 24000, Channels: 1}
)

// Valid reports whether f describes a usable stream.
func (f Format) Valid() bool {
	return f.SampleRate > 0 && (f.Channels == 1 || f.Channels == 2)
}

// String returns e.g. "16000Hz mono".
func (f Format) String() string {
	ch := "mono"
	switch {
	case f.Channels == 2:
		ch = "stereo"
	case f.Channels > 2:
		ch = fmt.Sprintf("%dch", f.Channels)
	}
	return fmt.Sprintf("%dHz %s", f.SampleRate, ch)
}

// Clip is a complete utterance of PCM audio.
type Clip struct {
	Data []byte
	Format
}

// Duration returns the playback length of the clip.
func (c Clip) Duration() time.Duration {
	if !c.Valid() {
		return 0
	}
	frames := len(c.Data) / (2 * c.Channels)
	return time.Duration(frames) * time.Second / time.Duration(c.SampleRate)
}
