package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/MrWong99/fluentforge/internal/config"
	"github.com/MrWong99/fluentforge/internal/observe"
	"github.com/MrWong99/fluentforge/internal/resilience"
	"github.com/MrWong99/fluentforge/pkg/provider/stt"
	"github.com/MrWong99/fluentforge/pkg/provider/tts"
)

// Providers holds the speech providers used by the practice service. Nil
// means the provider is not configured. Populated by [BuildProviders].
type Providers struct {
	STT     stt.Provider
	STTName string
	TTS     tts.Provider
	TTSName string
}

// BuildProviders instantiates the providers named in cfg using reg. When
// fallbacks are configured the primary and its fallbacks are combined into
// a failover group with one circuit breaker per backend.
//
// A provider name that is not registered is logged and skipped so that the
// server still starts with the features that do not need it.
func BuildProviders(cfg *config.Config, reg *config.Registry, m *observe.Metrics, log *slog.Logger) (*Providers, error) {
	if m == nil {
		m = observe.DefaultMetrics()
	}
	if log == nil {
		log = slog.Default()
	}
	pc := cfg.Providers
	ps := &Providers{}

	if name := pc.STT.Name; name != "" {
		p, err := reg.CreateSTT(pc.STT)
		switch {
		case errors.Is(err, config.ErrProviderNotRegistered):
			log.Warn("provider not registered, skipping", "kind", "stt", "name", name)
		case err != nil:
			return nil, fmt.Errorf("create stt provider %q: %w", name, err)
		default:
			ps.STT, ps.STTName = p, name
			if len(pc.STTFallbacks) > 0 {
				fb := resilience.NewSTTFallback(p, name, fallbackConfig(cfg, m, log))
				for _, entry := range pc.STTFallbacks {
					alt, err := reg.CreateSTT(entry)
					if err != nil {
						return nil, fmt.Errorf("create stt fallback %q: %w", entry.Name, err)
					}
					fb.AddFallback(entry.Name, alt)
				}
				ps.STT = fb
			}
			log.Info("provider created", "kind", "stt", "name", name, "fallbacks", len(pc.STTFallbacks))
		}
	}

	if name := pc.TTS.Name; name != "" {
		p, err := reg.CreateTTS(pc.TTS)
		switch {
		case errors.Is(err, config.ErrProviderNotRegistered):
			log.Warn("provider not registered, skipping", "kind", "tts", "name", name)
		case err != nil:
			return nil, fmt.Errorf("create tts provider %q: %w", name, err)
		default:
			ps.TTS, ps.TTSName = p, name
			if len(pc.TTSFallbacks) > 0 {
				fb := resilience.NewTTSFallback(p, name, fallbackConfig(cfg, m, log))
				for _, entry := range pc.TTSFallbacks {
					alt, err := reg.CreateTTS(entry)
					if err != nil {
						return nil, fmt.Errorf("create tts fallback %q: %w", entry.Name, err)
					}
					fb.AddFallback(entry.Name, alt, tts.VoiceProfile{ID: entry.Voice, Provider: entry.Name})
				}
				ps.TTS = fb
			}
			log.Info("provider created", "kind", "tts", "name", name, "fallbacks", len(pc.TTSFallbacks))
		}
	}

	return ps, nil
}

// fallbackConfig returns the breaker settings for provider failover groups.
// The group replaces the name with the backend name.
func fallbackConfig(cfg *config.Config, m *observe.Metrics, log *slog.Logger) resilience.FallbackConfig {
	return resilience.FallbackConfig{
		CircuitBreaker: breakerConfig("", cfg.Catalog.Breaker, m, log),
	}
}

// breakerConfig converts the configured breaker settings and reports every
// transition to m.
func breakerConfig(name string, bc config.BreakerConfig, m *observe.Metrics, log *slog.Logger) resilience.CircuitBreakerConfig {
	return resilience.CircuitBreakerConfig{
		Name:         name,
		MaxFailures:  bc.MaxFailures,
		ResetTimeout: bc.ResetTimeout,
		HalfOpenMax:  bc.HalfOpenMax,
		Logger:       log,
		OnStateChange: func(name string, _, to resilience.State) {
			m.RecordBreakerTransition(context.Background(), name, to.String())
		},
	}
}
