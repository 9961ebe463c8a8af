// Package practice implements pronunciation practice: a learner is read a
// phrase aloud, repeats it, and the recognised transcript is graded against
// the phrase by edit-distance similarity.
package practice

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/language"

	"github.com/MrWong99/fluentforge/internal/observe"
	"github.com/MrWong99/fluentforge/pkg/audio"
	"github.com/MrWong99/fluentforge/pkg/provider/stt"
	"github.com/MrWong99/fluentforge/pkg/provider/tts"
	"github.com/MrWong99/fluentforge/pkg/similarity"
)

// DefaultThreshold is the similarity percentage at or above which an attempt
// is graded good.
const DefaultThreshold = 90

// keywordBoost is the hint intensity given to each word of the reference.
const keywordBoost = 2

// ErrNoProvider is returned when an operation needs a provider that was not
// configured.
var ErrNoProvider = errors.New("practice: provider not configured")

// ErrEmptyReference is returned when the phrase to grade against is blank.
var ErrEmptyReference = errors.New("practice: reference phrase is empty")

// Result is the grade of one attempt. Threshold is the good threshold the
// attempt was graded with.
type Result struct {
	Percent   int  `json:"percent"`
	Good      bool `json:"good"`
	Threshold int  `json:"threshold"`
}

// Attempt is a transcribed and graded utterance.
type Attempt struct {
	Reference  string `json:"reference"`
	Transcript string `json:"transcript"`
	Result
}

// Option configures a [Service].
type Option func(*Service)

// WithThreshold sets the good threshold. Values outside [0, 100] are clamped.
func WithThreshold(percent int) Option {
	return func(s *Service) { s.threshold.Store(int64(clampPercent(percent))) }
}

// WithLanguage sets the practised language. It is passed to the STT provider
// and selects the scorer's casing rules.
func WithLanguage(tag language.Tag) Option {
	return func(s *Service) { s.lang = tag }
}

// WithVoice sets the voice used by [Service.Speak].
func WithVoice(v tts.VoiceProfile) Option {
	return func(s *Service) { s.voice = v }
}

// WithMetrics overrides the metrics sink. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithProviderNames sets the provider labels used in metrics. Empty names
// keep the defaults "stt" and "tts".
func WithProviderNames(sttName, ttsName string) Option {
	return func(s *Service) {
		if sttName != "" {
			s.sttName = sttName
		}
		if ttsName != "" {
			s.ttsName = ttsName
		}
	}
}

// Service runs practice attempts. It is safe for concurrent use; the
// threshold may be changed while requests are in flight.
type Service struct {
	stt     stt.Provider
	tts     tts.Provider
	phrases *PhraseBank
	scorer  *similarity.Scorer
	lang    language.Tag
	voice   tts.VoiceProfile
	metrics *observe.Metrics

	sttName string
	ttsName string

	threshold atomic.Int64
}

// New returns a Service. Either provider may be nil, in which case the
// operations that need it return [ErrNoProvider]. A nil phrases bank is
// treated as empty.
func New(sttP stt.Provider, ttsP tts.Provider, phrases *PhraseBank, opts ...Option) *Service {
	s := &Service{
		stt:     sttP,
		tts:     ttsP,
		phrases: phrases,
		lang:    language.Und,
		sttName: "stt",
		ttsName: "tts",
	}
	s.threshold.Store(DefaultThreshold)
	for _, o := range opts {
		o(s)
	}
	if s.phrases == nil {
		s.phrases = NewPhraseBank(nil)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	s.scorer = similarity.New(similarity.WithLanguage(s.lang))
	return s
}

// Phrases returns the bank the service draws from.
func (s *Service) Phrases() *PhraseBank { return s.phrases }

// Threshold returns the current good threshold.
func (s *Service) Threshold() int { return int(s.threshold.Load()) }

// SetThreshold changes the good threshold.
func (s *Service) SetThreshold(percent int) {
	s.threshold.Store(int64(clampPercent(percent)))
}

// RandomPhrase returns a phrase from the bank.
func (s *Service) RandomPhrase() (string, error) {
	return s.phrases.Random()
}

// Grade scores transcript against reference.
func (s *Service) Grade(reference, transcript string) Result {
	pct := s.scorer.Percent(reference, transcript)
	threshold := s.Threshold()
	return Result{Percent: pct, Good: pct >= threshold, Threshold: threshold}
}

// Score grades transcript against reference and records the result. It
// returns [ErrEmptyReference] when reference is blank.
func (s *Service) Score(ctx context.Context, reference, transcript string) (Result, error) {
	if strings.TrimSpace(reference) == "" {
		return Result{}, ErrEmptyReference
	}
	res := s.Grade(reference, transcript)
	s.metrics.RecordScore(ctx, res.Percent, res.Good)
	return res, nil
}

// Speak renders phrase in the configured voice.
func (s *Service) Speak(ctx context.Context, phrase string) (audio.Clip, error) {
	if s.tts == nil {
		return audio.Clip{}, ErrNoProvider
	}
	if strings.TrimSpace(phrase) == "" {
		return audio.Clip{}, tts.ErrEmptyText
	}

	ctx, span := observe.StartSpan(ctx, "practice.speak",
		trace.WithAttributes(attribute.Int("phrase.length", len(phrase))),
	)
	defer span.End()

	start := time.Now()
	clip, err := s.tts.Synthesize(ctx, phrase, s.voice)
	s.metrics.TTSDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		s.providerFailed(ctx, span, s.ttsName, "tts", err)
		return audio.Clip{}, fmt.Errorf("practice: speak: %w", err)
	}
	s.metrics.RecordProviderRequest(ctx, s.ttsName, "tts", "ok")
	return clip, nil
}

// Transcribe runs speech recognition on clip.
func (s *Service) Transcribe(ctx context.Context, clip audio.Clip) (stt.Transcript, error) {
	return s.transcribe(ctx, clip, "")
}

// Attempt transcribes clip and grades it against reference. The words of
// reference are sent to the recogniser as keyword hints.
func (s *Service) Attempt(ctx context.Context, reference string, clip audio.Clip) (Attempt, error) {
	if strings.TrimSpace(reference) == "" {
		return Attempt{}, ErrEmptyReference
	}
	t, err := s.transcribe(ctx, clip, reference)
	if err != nil {
		return Attempt{}, err
	}
	res, err := s.Score(ctx, reference, t.Text)
	if err != nil {
		return Attempt{}, err
	}
	observe.Logger(ctx).DebugContext(ctx, "practice: attempt graded",
		"percent", res.Percent, "good", res.Good)
	return Attempt{Reference: reference, Transcript: t.Text, Result: res}, nil
}

func (s *Service) transcribe(ctx context.Context, clip audio.Clip, reference string) (stt.Transcript, error) {
	if s.stt == nil {
		return stt.Transcript{}, ErrNoProvider
	}
	if len(clip.Data) == 0 {
		return stt.Transcript{}, stt.ErrEmptyAudio
	}

	ctx, span := observe.StartSpan(ctx, "practice.transcribe",
		trace.WithAttributes(attribute.Int64("audio.duration_ms", clip.Duration().Milliseconds())),
	)
	defer span.End()

	req := stt.Request{Clip: clip, Keywords: keywords(reference)}
	if s.lang != language.Und {
		req.Language = s.lang.String()
	}

	start := time.Now()
	t, err := s.stt.Transcribe(ctx, req)
	s.metrics.STTDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		s.providerFailed(ctx, span, s.sttName, "stt", err)
		return stt.Transcript{}, fmt.Errorf("practice: transcribe: %w", err)
	}
	s.metrics.RecordProviderRequest(ctx, s.sttName, "stt", "ok")
	return t, nil
}

func (s *Service) providerFailed(ctx context.Context, span trace.Span, name, kind string, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	s.metrics.RecordProviderRequest(ctx, name, kind, "error")
	s.metrics.RecordProviderError(ctx, name, kind)
}

// keywords turns the distinct normalised words of phrase into recognition
// hints.
func keywords(phrase string) []stt.KeywordBoost {
	words := strings.Fields(similarity.Normalize(phrase))
	if len(words) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(words))
	out := make([]stt.KeywordBoost, 0, len(words))
	for _, w := range words {
		if seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, stt.KeywordBoost{Keyword: w, Boost: keywordBoost})
	}
	return out
}

func clampPercent(p int) int {
	return min(max(p, 0), 100)
}
