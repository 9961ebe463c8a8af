package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/MrWong99/fluentforge/pkg/catalog/books"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"stt": {"deepgram", "openai", "mock"},
	"tts": {"elevenlabs", "openai", "coqui", "mock"},
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults, and
// validates the result. An empty document yields the default config.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.ShutdownTimeout < 0 {
		errs = append(errs, errors.New("server.shutdown_timeout must not be negative"))
	}
	if tls := cfg.Server.TLS; tls != nil && (tls.CertFile == "" || tls.KeyFile == "") {
		errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
	}

	// Providers
	validateProviderName("stt", cfg.Providers.STT.Name)
	validateProviderName("tts", cfg.Providers.TTS.Name)
	for i, fb := range cfg.Providers.STTFallbacks {
		errs = append(errs, validateFallback(fmt.Sprintf("providers.stt_fallbacks[%d]", i), "stt", fb)...)
	}
	for i, fb := range cfg.Providers.TTSFallbacks {
		errs = append(errs, validateFallback(fmt.Sprintf("providers.tts_fallbacks[%d]", i), "tts", fb)...)
	}
	if cfg.Providers.STT.Name == "" && len(cfg.Providers.STTFallbacks) > 0 {
		errs = append(errs, errors.New("providers.stt_fallbacks requires providers.stt"))
	}
	if cfg.Providers.TTS.Name == "" && len(cfg.Providers.TTSFallbacks) > 0 {
		errs = append(errs, errors.New("providers.tts_fallbacks requires providers.tts"))
	}
	if cfg.Providers.STT.Name == "" {
		slog.Warn("providers.stt is not configured; spoken practice attempts will be unavailable")
	}
	if cfg.Providers.TTS.Name == "" {
		slog.Warn("providers.tts is not configured; phrases cannot be read aloud")
	}

	// Catalog
	if _, err := books.ParseLanguage(cfg.Catalog.Books.Language); err != nil {
		errs = append(errs, fmt.Errorf("catalog.books.language: %w", err))
	}
	if cfg.Catalog.Books.Timeout < 0 {
		errs = append(errs, errors.New("catalog.books.timeout must not be negative"))
	}
	if cfg.Catalog.Radio.Timeout < 0 {
		errs = append(errs, errors.New("catalog.radio.timeout must not be negative"))
	}
	if cfg.Catalog.Radio.PageSize < 0 || cfg.Catalog.Radio.PageSize > 10000 {
		errs = append(errs, fmt.Errorf("catalog.radio.page_size %d is out of range [1, 10000]", cfg.Catalog.Radio.PageSize))
	}
	if cfg.Catalog.Breaker.MaxFailures < 0 {
		errs = append(errs, errors.New("catalog.breaker.max_failures must not be negative"))
	}
	if cfg.Catalog.Breaker.ResetTimeout < 0 {
		errs = append(errs, errors.New("catalog.breaker.reset_timeout must not be negative"))
	}

	// Practice
	if t := cfg.Practice.GoodThreshold; t < 0 || t > 100 {
		errs = append(errs, fmt.Errorf("practice.good_threshold %d is out of range [0, 100]", t))
	}
	if l := cfg.Practice.Language; l != "" {
		if _, err := language.Parse(l); err != nil {
			errs = append(errs, fmt.Errorf("practice.language %q is not a valid BCP 47 tag: %w", l, err))
		}
	}
	if s := cfg.Practice.Voice.SpeedFactor; s != 0 && (s < 0.5 || s > 2.0) {
		errs = append(errs, fmt.Errorf("practice.voice.speed_factor %.2f is out of range [0.5, 2.0]", s))
	}
	if cfg.Practice.PhraseFile == "" && len(cfg.Practice.Phrases) == 0 {
		slog.Warn("practice has no phrases; random_phrase will fail until phrases are configured")
	}

	// Library
	if cfg.Library.PostgresDSN == "" {
		slog.Warn("library.postgres_dsn is empty; the library is kept in memory only")
	}

	return errors.Join(errs...)
}

func validateFallback(prefix, kind string, entry ProviderEntry) []error {
	if entry.Name == "" {
		return []error{fmt.Errorf("%s.name is required", prefix)}
	}
	validateProviderName(kind, entry.Name)
	return nil
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or a third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
