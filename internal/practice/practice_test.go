package practice

import (
	"context"
	"errors"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"golang.org/x/text/language"

	"github.com/MrWong99/fluentforge/internal/observe"
	"github.com/MrWong99/fluentforge/pkg/audio"
	"github.com/MrWong99/fluentforge/pkg/provider/stt"
	sttmock "github.com/MrWong99/fluentforge/pkg/provider/stt/mock"
	"github.com/MrWong99/fluentforge/pkg/provider/tts"
	ttsmock "github.com/MrWong99/fluentforge/pkg/provider/tts/mock"
)

var errProvider = errors.New("provider down")

func newTestMetrics(t *testing.T) (*observe.Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	m, err := observe.NewMetrics(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)))
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

// histogramCount returns the total number of observations recorded on the
// named histogram.
func histogramCount(t *testing.T, reader *sdkmetric.ManualReader, name string) uint64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	var n uint64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			switch data := m.Data.(type) {
			case metricdata.Histogram[int64]:
				for _, dp := range data.DataPoints {
					n += dp.Count
				}
			case metricdata.Histogram[float64]:
				for _, dp := range data.DataPoints {
					n += dp.Count
				}
			}
		}
	}
	return n
}

func speechClip() audio.Clip {
	return audio.Clip{Data: make([]byte, 3200), Format: audio.Speech}
}

func TestService_Grade(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		threshold  int
		reference  string
		transcript string
		want       Result
	}{
		{"exact match", 90, "Good morning!", "good morning", Result{Percent: 100, Good: true, Threshold: 90}},
		{"exactly at threshold", 90, "abcdefghij", "abcdefghix", Result{Percent: 90, Good: true, Threshold: 90}},
		{"just below threshold", 90, "it's fine", "its fine", Result{Percent: 89, Good: false, Threshold: 90}},
		{"lower threshold", 50, "kitten", "sitting", Result{Percent: 57, Good: true, Threshold: 50}},
		{"nothing recognised", 90, "hello", "", Result{Percent: 0, Good: false, Threshold: 90}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			m, _ := newTestMetrics(t)
			svc := New(nil, nil, nil, WithThreshold(tc.threshold), WithMetrics(m))
			if got := svc.Grade(tc.reference, tc.transcript); got != tc.want {
				t.Errorf("Grade = %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestService_SetThreshold(t *testing.T) {
	t.Parallel()
	m, _ := newTestMetrics(t)
	svc := New(nil, nil, nil, WithMetrics(m))

	if svc.Threshold() != DefaultThreshold {
		t.Fatalf("default threshold = %d, want %d", svc.Threshold(), DefaultThreshold)
	}
	if svc.Grade("it's fine", "its fine").Good {
		t.Error("89% should be poor at the default threshold")
	}
	svc.SetThreshold(85)
	if !svc.Grade("it's fine", "its fine").Good {
		t.Error("89% should be good at threshold 85")
	}
	svc.SetThreshold(150)
	if svc.Threshold() != 100 {
		t.Errorf("threshold = %d, want clamped to 100", svc.Threshold())
	}
}

func TestService_Score(t *testing.T) {
	t.Parallel()

	m, reader := newTestMetrics(t)
	svc := New(nil, nil, nil, WithThreshold(85), WithMetrics(m))

	res, err := svc.Score(context.Background(), "it's fine", "its fine")
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if want := (Result{Percent: 89, Good: true, Threshold: 85}); res != want {
		t.Errorf("Score = %+v, want %+v", res, want)
	}

	for _, ref := range []string{"", "  \t"} {
		if _, err := svc.Score(context.Background(), ref, ""); !errors.Is(err, ErrEmptyReference) {
			t.Errorf("Score(%q) err = %v, want ErrEmptyReference", ref, err)
		}
	}
	if n := histogramCount(t, reader, "fluentforge.practice.score"); n != 1 {
		t.Errorf("score observations = %d, want only the graded attempt", n)
	}
}

func TestService_Attempt(t *testing.T) {
	t.Parallel()

	m, reader := newTestMetrics(t)
	sp := &sttmock.Provider{Result: stt.Transcript{Text: "how are you"}}
	svc := New(sp, nil, nil, WithMetrics(m), WithLanguage(language.English))

	att, err := svc.Attempt(context.Background(), "How are you? How!", speechClip())
	if err != nil {
		t.Fatalf("Attempt: %v", err)
	}
	if att.Transcript != "how are you" || att.Reference != "How are you? How!" {
		t.Errorf("attempt = %+v", att)
	}
	if att.Percent != svc.Grade(att.Reference, att.Transcript).Percent {
		t.Errorf("Percent = %d, inconsistent with Grade", att.Percent)
	}

	if sp.CallCount() != 1 {
		t.Fatalf("STT calls = %d, want 1", sp.CallCount())
	}
	req := sp.Calls[0]
	if req.Language != "en" {
		t.Errorf("Language = %q, want en", req.Language)
	}
	var kws []string
	for _, k := range req.Keywords {
		kws = append(kws, k.Keyword)
	}
	if len(kws) != 3 || kws[0] != "how" || kws[1] != "are" || kws[2] != "you" {
		t.Errorf("keywords = %q, want distinct normalised words", kws)
	}

	if n := histogramCount(t, reader, "fluentforge.practice.score"); n != 1 {
		t.Errorf("score observations = %d, want 1", n)
	}
	if n := histogramCount(t, reader, "fluentforge.stt.duration"); n != 1 {
		t.Errorf("stt duration observations = %d, want 1", n)
	}
}

func TestService_AttemptErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		stt       stt.Provider
		reference string
		clip      audio.Clip
		wantErr   error
	}{
		{"no provider", nil, "hi", speechClip(), ErrNoProvider},
		{"empty audio", &sttmock.Provider{}, "hi", audio.Clip{Format: audio.Speech}, stt.ErrEmptyAudio},
		{"provider failure", &sttmock.Provider{Err: errProvider}, "hi", speechClip(), errProvider},
		{"blank reference", &sttmock.Provider{}, "   ", speechClip(), ErrEmptyReference},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			m, _ := newTestMetrics(t)
			svc := New(tc.stt, nil, nil, WithMetrics(m))
			_, err := svc.Attempt(context.Background(), tc.reference, tc.clip)
			if err == nil {
				t.Fatal("expected error")
			}
			if tc.wantErr != nil && !errors.Is(err, tc.wantErr) {
				t.Errorf("err = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestService_Speak(t *testing.T) {
	t.Parallel()

	m, reader := newTestMetrics(t)
	tp := &ttsmock.Provider{}
	voice := tts.VoiceProfile{ID: "alloy", Provider: "openai"}
	svc := New(nil, tp, nil, WithVoice(voice), WithMetrics(m))

	clip, err := svc.Speak(context.Background(), "Good morning")
	if err != nil {
		t.Fatalf("Speak: %v", err)
	}
	if len(clip.Data) == 0 {
		t.Error("Speak returned an empty clip")
	}
	if tp.CallCount() != 1 || tp.SynthesizeCalls[0].Voice.ID != "alloy" {
		t.Errorf("calls = %+v", tp.SynthesizeCalls)
	}
	if n := histogramCount(t, reader, "fluentforge.tts.duration"); n != 1 {
		t.Errorf("tts duration observations = %d, want 1", n)
	}

	if _, err := svc.Speak(context.Background(), "  "); !errors.Is(err, tts.ErrEmptyText) {
		t.Errorf("blank phrase err = %v, want ErrEmptyText", err)
	}
	if tp.CallCount() != 1 {
		t.Error("blank phrase reached the provider")
	}

	tp.SynthesizeErr = errProvider
	if _, err := svc.Speak(context.Background(), "again"); !errors.Is(err, errProvider) {
		t.Errorf("err = %v, want provider error", err)
	}
}

func TestKeywords(t *testing.T) {
	t.Parallel()
	if got := keywords("?!"); got != nil {
		t.Errorf("keywords of punctuation = %v, want nil", got)
	}
}
