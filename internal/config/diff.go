package config

import "slices"

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked; everything else
// requires a restart.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	ThresholdChanged bool
	NewThreshold     int

	// PhrasesChanged is set when the phrase file path or the inline phrase
	// list differ. Edits inside an unchanged phrase file are not detected.
	PhrasesChanged bool

	// RestartRequired lists the top-level sections whose changes are ignored
	// until the next restart.
	RestartRequired []string
}

// Changed reports whether any hot-reloadable field differs.
func (d ConfigDiff) Changed() bool {
	return d.LogLevelChanged || d.ThresholdChanged || d.PhrasesChanged
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if old.Practice.GoodThreshold != new.Practice.GoodThreshold {
		d.ThresholdChanged = true
		d.NewThreshold = new.Practice.GoodThreshold
	}

	if old.Practice.PhraseFile != new.Practice.PhraseFile ||
		!slices.Equal(old.Practice.Phrases, new.Practice.Phrases) {
		d.PhrasesChanged = true
	}

	if old.Server.ListenAddr != new.Server.ListenAddr || !equalTLS(old.Server.TLS, new.Server.TLS) ||
		!slices.Equal(old.Server.AllowedOrigins, new.Server.AllowedOrigins) ||
		old.Server.ShutdownTimeout != new.Server.ShutdownTimeout {
		d.RestartRequired = append(d.RestartRequired, "server")
	}
	if !equalProviders(old.Providers, new.Providers) {
		d.RestartRequired = append(d.RestartRequired, "providers")
	}
	if old.Catalog != new.Catalog {
		d.RestartRequired = append(d.RestartRequired, "catalog")
	}
	if old.Practice.Language != new.Practice.Language || old.Practice.Voice != new.Practice.Voice {
		d.RestartRequired = append(d.RestartRequired, "practice")
	}
	if old.Library != new.Library {
		d.RestartRequired = append(d.RestartRequired, "library")
	}

	return d
}

func equalTLS(a, b *TLSConfig) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalProviders(a, b ProvidersConfig) bool {
	return equalEntry(a.STT, b.STT) && equalEntry(a.TTS, b.TTS) &&
		slices.EqualFunc(a.STTFallbacks, b.STTFallbacks, equalEntry) &&
		slices.EqualFunc(a.TTSFallbacks, b.TTSFallbacks, equalEntry)
}

// equalEntry ignores Options, which may hold uncomparable values.
func equalEntry(a, b ProviderEntry) bool {
	return a.Name == b.Name && a.APIKey == b.APIKey && a.BaseURL == b.BaseURL &&
		a.Model == b.Model && a.Voice == b.Voice && a.Timeout == b.Timeout
}
