package practice

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/MrWong99/fluentforge/internal/httpapi"
	"github.com/MrWong99/fluentforge/pkg/audio"
	"github.com/MrWong99/fluentforge/pkg/provider/stt"
	"github.com/MrWong99/fluentforge/pkg/provider/tts"
)

// MaxAudioBytes bounds uploaded attempt recordings (about five minutes of
// 16kHz mono PCM).
const MaxAudioBytes = 10 << 20

// Handlers serves the practice REST API.
type Handlers struct {
	svc *Service
	log *slog.Logger
}

// NewHandlers returns handlers backed by svc.
func NewHandlers(svc *Service, log *slog.Logger) *Handlers {
	if log == nil {
		log = slog.Default()
	}
	return &Handlers{svc: svc, log: log}
}

// RegisterRoutes registers the practice routes on mux.
func (h *Handlers) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/practice/phrase", h.Phrase)
	mux.HandleFunc("POST /v1/practice/speak", h.Speak)
	mux.HandleFunc("POST /v1/practice/score", h.Score)
	mux.HandleFunc("POST /v1/practice/attempt", h.Attempt)
}

type speakRequest struct {
	Phrase string `json:"phrase"`
}

type scoreRequest struct {
	Reference  string `json:"reference"`
	Transcript string `json:"transcript"`
}

// Phrase returns a random phrase to practise.
// GET /v1/practice/phrase
func (h *Handlers) Phrase(w http.ResponseWriter, r *http.Request) {
	phrase, err := h.svc.RandomPhrase()
	if errors.Is(err, ErrNoPhrases) {
		httpapi.WriteError(w, http.StatusServiceUnavailable, "NO_PHRASES", "no practice phrases are configured")
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, map[string]string{"phrase": phrase})
}

// Speak synthesises a phrase. The response is a WAV file when the client
// accepts audio/wav and raw 16-bit little-endian PCM otherwise, with the
// sample rate and channel count in the audio/L16 content type.
// POST /v1/practice/speak
func (h *Handlers) Speak(w http.ResponseWriter, r *http.Request) {
	var req speakRequest
	if err := httpapi.DecodeJSON(w, r, &req); err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	clip, err := h.svc.Speak(r.Context(), req.Phrase)
	if err != nil {
		h.providerError(w, r, err)
		return
	}

	if strings.Contains(r.Header.Get("Accept"), "audio/wav") {
		w.Header().Set("Content-Type", "audio/wav")
		_, _ = w.Write(audio.EncodeWAV(clip))
		return
	}
	w.Header().Set("Content-Type", fmt.Sprintf("audio/L16;rate=%d;channels=%d", clip.SampleRate, clip.Channels))
	_, _ = w.Write(clip.Data)
}

// Score grades a transcript that the client recognised itself.
// POST /v1/practice/score
func (h *Handlers) Score(w http.ResponseWriter, r *http.Request) {
	var req scoreRequest
	if err := httpapi.DecodeJSON(w, r, &req); err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	res, err := h.svc.Score(r.Context(), req.Reference, req.Transcript)
	if err != nil {
		h.providerError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, res)
}

// Attempt transcribes an uploaded recording and grades it. The body is a
// WAV file or raw PCM whose format is given by the rate and channels query
// parameters (default 16000 and 1).
// POST /v1/practice/attempt?reference=...
func (h *Handlers) Attempt(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	reference := strings.TrimSpace(q.Get("reference"))

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxAudioBytes))
	if err != nil {
		httpapi.WriteError(w, http.StatusRequestEntityTooLarge, "AUDIO_TOO_LARGE", err.Error())
		return
	}
	clip, err := clipFromBody(body, q.Get("rate"), q.Get("channels"))
	if err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, "INVALID_AUDIO", err.Error())
		return
	}

	att, err := h.svc.Attempt(r.Context(), reference, clip)
	if err != nil {
		h.providerError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, att)
}

// clipFromBody decodes a WAV body or wraps raw PCM in the given format.
func clipFromBody(body []byte, rate, channels string) (audio.Clip, error) {
	if audio.IsWAV(body) {
		clip, err := audio.DecodeWAV(body)
		if err != nil {
			return audio.Clip{}, err
		}
		return checkClip(clip)
	}
	f := audio.Speech
	if rate != "" {
		n, err := strconv.Atoi(rate)
		if err != nil {
			return audio.Clip{}, fmt.Errorf("invalid rate %q", rate)
		}
		f.SampleRate = n
	}
	if channels != "" {
		n, err := strconv.Atoi(channels)
		if err != nil {
			return audio.Clip{}, fmt.Errorf("invalid channels %q", channels)
		}
		f.Channels = n
	}
	return checkClip(audio.Clip{Data: body, Format: f})
}

// checkClip rejects clips the providers cannot consume.
func checkClip(clip audio.Clip) (audio.Clip, error) {
	if !clip.Valid() {
		return audio.Clip{}, fmt.Errorf("unsupported format %s", clip.Format)
	}
	if len(clip.Data)%2 != 0 {
		return audio.Clip{}, audio.ErrOddLength
	}
	return clip, nil
}

func (h *Handlers) providerError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrEmptyReference):
		httpapi.WriteError(w, http.StatusBadRequest, "MISSING_REFERENCE", "reference phrase is required")
	case errors.Is(err, ErrNoProvider):
		httpapi.WriteError(w, http.StatusServiceUnavailable, "PROVIDER_UNAVAILABLE", "speech provider is not configured")
	case errors.Is(err, tts.ErrEmptyText):
		httpapi.WriteError(w, http.StatusBadRequest, "EMPTY_PHRASE", "phrase must not be empty")
	case errors.Is(err, stt.ErrEmptyAudio):
		httpapi.WriteError(w, http.StatusBadRequest, "EMPTY_AUDIO", "recording holds no samples")
	case r.Context().Err() != nil:
		// Client went away; nothing useful to write.
	default:
		h.log.WarnContext(r.Context(), "practice: provider failed", "err", err)
		httpapi.WriteError(w, http.StatusBadGateway, "PROVIDER_ERROR", "speech provider failed")
	}
}
