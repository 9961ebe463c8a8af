package elevenlabs

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/MrWong99/fluentforge/pkg/audio"
	"github.com/MrWong99/fluentforge/pkg/provider/tts"
)

func TestNew(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Error("expected error for empty apiKey")
	}
	if _, err := New("key", WithOutputFormat("mp3_44100_128")); err == nil {
		t.Error("expected error for non-PCM output format")
	}
	p, err := New("key")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if p.model != defaultModel || p.outputFormat != defaultOutputFmt {
		t.Errorf("defaults = %q/%q", p.model, p.outputFormat)
	}
}

func TestParseOutputFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"pcm_16000", 16000, false},
		{"pcm_24000", 24000, false},
		{"pcm_", 0, true},
		{"pcm_abc", 0, true},
		{"ulaw_8000", 0, true},
	}
	for _, tc := range tests {
		got, err := parseOutputFormat(tc.in)
		if (err != nil) != tc.wantErr {
			t.Errorf("parseOutputFormat(%q) err = %v, wantErr %v", tc.in, err, tc.wantErr)
			continue
		}
		if !tc.wantErr && (got.SampleRate != tc.want || got.Channels != 1) {
			t.Errorf("parseOutputFormat(%q) = %+v", tc.in, got)
		}
	}
}

func TestBuildURL(t *testing.T) {
	p, _ := New("key", WithModel("eleven_turbo_v2"), WithOutputFormat("pcm_24000"))
	u, err := url.Parse(p.buildURL("voice 1"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if u.Scheme != "wss" || u.EscapedPath() != "/v1/text-to-speech/voice%201/stream-input" {
		t.Errorf("url = %s", u)
	}
	if u.Query().Get("model_id") != "eleven_turbo_v2" || u.Query().Get("output_format") != "pcm_24000" {
		t.Errorf("query = %s", u.RawQuery)
	}
}

func TestSynthesize(t *testing.T) {
	pcm := []byte{1, 0, 2, 0, 3, 0, 4, 0}
	textsCh := make(chan []string, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			t.Errorf("accept: %v", err)
			return
		}
		defer c.CloseNow()
		ctx := r.Context()
		var texts []string
		for {
			_, data, err := c.Read(ctx)
			if err != nil {
				return
			}
			var m textMessage
			_ = json.Unmarshal(data, &m)
			texts = append(texts, m.Text)
			if m.Text == "" {
				break
			}
		}
		textsCh <- texts
		for _, half := range [][]byte{pcm[:4], pcm[4:]} {
			b, _ := json.Marshal(audioResponse{Audio: base64.StdEncoding.EncodeToString(half)})
			_ = c.Write(ctx, websocket.MessageText, b)
		}
		_ = c.Write(ctx, websocket.MessageText, []byte(`{"isFinal":true}`))
		c.Close(websocket.StatusNormalClosure, "")
	}))
	defer srv.Close()

	p, _ := New("key", WithBaseURLs("ws"+strings.TrimPrefix(srv.URL, "http"), srv.URL))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	clip, err := p.Synthesize(ctx, "Good morning", tts.VoiceProfile{ID: "v1"})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if string(clip.Data) != string(pcm) {
		t.Errorf("pcm = %v, want %v", clip.Data, pcm)
	}
	if clip.Format != (audio.Format{SampleRate: 16000, Channels: 1}) {
		t.Errorf("format = %s", clip.Format)
	}
	want := []string{" ", "Good morning ", ""}
	gotTexts := <-textsCh
	if strings.Join(gotTexts, "|") != strings.Join(want, "|") {
		t.Errorf("texts sent = %q, want %q", gotTexts, want)
	}
}

func TestSynthesize_Validation(t *testing.T) {
	p, _ := New("key")
	if _, err := p.Synthesize(context.Background(), "  ", tts.VoiceProfile{ID: "v"}); !errors.Is(err, tts.ErrEmptyText) {
		t.Errorf("blank text err = %v, want ErrEmptyText", err)
	}
	if _, err := p.Synthesize(context.Background(), "hi", tts.VoiceProfile{}); err == nil {
		t.Error("expected error for empty voice ID")
	}
}

func TestListVoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/voices" || r.Header.Get("xi-api-key") != "key" {
			t.Errorf("request = %s %v", r.URL.Path, r.Header)
		}
		_, _ = w.Write([]byte(`{"voices":[
			{"voice_id":"abc","name":"Rachel","category":"premade","labels":{"accent":"american"}},
			{"voice_id":"def","name":"Bare"}
		]}`))
	}))
	defer srv.Close()

	p, _ := New("key", WithBaseURLs("ws://unused", srv.URL))
	voices, err := p.ListVoices(context.Background())
	if err != nil {
		t.Fatalf("ListVoices: %v", err)
	}
	if len(voices) != 2 {
		t.Fatalf("got %d voices, want 2", len(voices))
	}
	v := voices[0]
	if v.ID != "abc" || v.Name != "Rachel" || v.Provider != "elevenlabs" {
		t.Errorf("voice = %+v", v)
	}
	if v.Metadata["accent"] != "american" || v.Metadata["category"] != "premade" {
		t.Errorf("metadata = %v", v.Metadata)
	}
	if len(voices[1].Metadata) != 0 {
		t.Errorf("bare voice metadata = %v", voices[1].Metadata)
	}
}

func TestListVoices_Status(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	p, _ := New("key", WithBaseURLs("ws://unused", srv.URL))
	if _, err := p.ListVoices(context.Background()); err == nil {
		t.Fatal("expected error for 401")
	}
}
