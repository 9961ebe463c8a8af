package tts

// VoiceProfile selects a voice and its delivery.
type VoiceProfile struct {
	// ID is the provider-specific voice identifier.
	ID string

	// Name is the human-readable voice name.
	Name string

	// Provider identifies which TTS provider this voice belongs to.
	Provider string

	// SpeedFactor adjusts speaking rate (0.5-2.0). Zero means 1.0.
	SpeedFactor float64

	// Metadata holds provider-specific voice attributes (gender, accent, ...).
	Metadata map[string]string
}

// Speed returns the speaking rate, treating zero as 1.0.
func (v VoiceProfile) Speed() float64 {
	if v.SpeedFactor == 0 {
		return 1.0
	}
	return v.SpeedFactor
}
