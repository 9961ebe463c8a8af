package deepgram

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/MrWong99/fluentforge/pkg/audio"
	"github.com/MrWong99/fluentforge/pkg/provider/stt"
)

func assertEqual(t *testing.T, field, want, got string) {
	t.Helper()
	if got != want {
		t.Errorf("%s: want %q, got %q", field, want, got)
	}
}

// ---- URL / query-param tests ----

func TestBuildURL_Defaults(t *testing.T) {
	p, err := New("test-key")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	rawURL, err := p.buildURL(stt.Request{}, 16000)
	if err != nil {
		t.Fatalf("buildURL: %v", err)
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		t.Fatalf("parse URL: %v", err)
	}
	q := u.Query()

	assertEqual(t, "host", "api.deepgram.com", u.Host)
	assertEqual(t, "model", "nova-3", q.Get("model"))
	assertEqual(t, "language", "en", q.Get("language"))
	assertEqual(t, "encoding", "linear16", q.Get("encoding"))
	assertEqual(t, "sample_rate", "16000", q.Get("sample_rate"))
	assertEqual(t, "channels", "1", q.Get("channels"))
	if _, ok := q["keywords"]; ok {
		t.Error("expected no 'keywords' param when none provided")
	}
}

func TestBuildURL_RequestOverrides(t *testing.T) {
	p, err := New("key", WithModel("base"), WithLanguage("de"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	rawURL, err := p.buildURL(stt.Request{
		Language: "fr",
		Keywords: []stt.KeywordBoost{{Keyword: "bonjour", Boost: 2}, {Keyword: "merci", Boost: 1.5}},
	}, 16000)
	if err != nil {
		t.Fatalf("buildURL: %v", err)
	}
	u, _ := url.Parse(rawURL)
	q := u.Query()

	assertEqual(t, "model", "base", q.Get("model"))
	assertEqual(t, "language", "fr", q.Get("language"))
	kws := q["keywords"]
	if len(kws) != 2 || kws[0] != "bonjour:2" || kws[1] != "merci:1.5" {
		t.Errorf("keywords = %v, want [bonjour:2 merci:1.5]", kws)
	}
}

func TestNew_EmptyKey(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Fatal("expected error for empty apiKey")
	}
}

// ---- parsing ----

func TestParseFinal(t *testing.T) {
	var resp deepgramResponse
	resp.Type = "Results"
	resp.IsFinal = false
	if _, ok := parseFinal(resp); ok {
		t.Error("interim result should be ignored")
	}
	resp.IsFinal = true
	if _, ok := parseFinal(resp); ok {
		t.Error("result without alternatives should be ignored")
	}
}

// ---- end-to-end against a fake server ----

// fakeDeepgram accepts one connection, counts audio bytes until CloseStream,
// then replies with the given messages and a Metadata message.
func fakeDeepgram(t *testing.T, received *atomic.Int64, replies ...string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Token test-key" {
			t.Errorf("Authorization = %q", got)
		}
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			t.Errorf("accept: %v", err)
			return
		}
		defer c.CloseNow()

		ctx := r.Context()
		for {
			typ, data, err := c.Read(ctx)
			if err != nil {
				return
			}
			if typ == websocket.MessageBinary {
				received.Add(int64(len(data)))
				continue
			}
			if strings.Contains(string(data), "CloseStream") {
				break
			}
		}
		for _, msg := range replies {
			if err := c.Write(ctx, websocket.MessageText, []byte(msg)); err != nil {
				return
			}
		}
		_ = c.Write(ctx, websocket.MessageText, []byte(`{"type":"Metadata","request_id":"abc"}`))
		c.Close(websocket.StatusNormalClosure, "")
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestTranscribe(t *testing.T) {
	var received atomic.Int64
	srv := fakeDeepgram(t, &received,
		`{"type":"Results","is_final":false,"channel":{"alternatives":[{"transcript":"good","confidence":0.5}]}}`,
		`{"type":"Results","is_final":true,"channel":{"alternatives":[{"transcript":"Good morning,","confidence":0.9,
			"words":[{"word":"good","start":0.1,"end":0.4,"confidence":0.9},{"word":"morning","start":0.5,"end":0.9,"confidence":0.9}]}]}}`,
		`{"type":"Results","is_final":true,"channel":{"alternatives":[{"transcript":"","confidence":0}]}}`,
		`{"type":"Results","is_final":true,"channel":{"alternatives":[{"transcript":"how are you?","confidence":0.7}]}}`,
	)

	p, err := New("test-key", WithEndpoint(wsURL(srv)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// One second of 48kHz stereo is converted to 32000 bytes of 16kHz mono.
	clip := audio.Clip{Data: make([]byte, 48000*4), Format: audio.Format{SampleRate: 48000, Channels: 2}}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tr, err := p.Transcribe(ctx, stt.Request{Clip: clip})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	assertEqual(t, "text", "Good morning, how are you?", tr.Text)
	if tr.Confidence != 0.8 {
		t.Errorf("Confidence = %v, want 0.8", tr.Confidence)
	}
	if len(tr.Words) != 2 || tr.Words[1].Word != "morning" {
		t.Errorf("Words = %+v", tr.Words)
	}
	if tr.Duration != time.Second {
		t.Errorf("Duration = %v, want 1s", tr.Duration)
	}
	if got := received.Load(); got != 32000 {
		t.Errorf("server received %d audio bytes, want 32000", got)
	}
}

func TestTranscribe_EmptyAudio(t *testing.T) {
	p, _ := New("test-key")
	_, err := p.Transcribe(context.Background(), stt.Request{Clip: audio.Clip{Format: audio.Speech}})
	if !errors.Is(err, stt.ErrEmptyAudio) {
		t.Errorf("err = %v, want ErrEmptyAudio", err)
	}
}

func TestTranscribe_DialFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := wsURL(srv)
	srv.Close()

	p, _ := New("test-key", WithEndpoint(addr))
	clip := audio.Clip{Data: make([]byte, 320), Format: audio.Speech}
	if _, err := p.Transcribe(context.Background(), stt.Request{Clip: clip}); err == nil {
		t.Fatal("expected dial error")
	}
}
