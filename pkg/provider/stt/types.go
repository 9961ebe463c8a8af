package stt

import "time"

// Transcript is the final recognition result for a clip.
type Transcript struct {
	// Text is the transcribed speech.
	Text string

	// Confidence is the overall confidence (0.0-1.0). Zero when the provider
	// does not report one.
	Confidence float64

	// Words holds per-word detail when the provider reports it.
	Words []WordDetail

	// Duration is the length of the transcribed audio.
	Duration time.Duration
}

// WordDetail holds per-word metadata.
type WordDetail struct {
	Word       string
	Start      time.Duration
	End        time.Duration
	Confidence float64
}

// KeywordBoost is a recognition hint.
type KeywordBoost struct {
	// Keyword is the text to boost.
	Keyword string

	// Boost is the intensity of the boost (provider-specific scale).
	Boost float64
}
