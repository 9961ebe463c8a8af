package audio_test

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"github.com/MrWong99/fluentforge/pkg/audio"
)

// samplesToBytes converts int16 samples to little-endian bytes.
func samplesToBytes(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}

// bytesToSamples converts little-endian bytes to int16 samples.
func bytesToSamples(b []byte) []int16 {
	samples := make([]int16, len(b)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(b[i*2:]))
	}
	return samples
}

func equalSamples(t *testing.T, got, want []int16) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("length mismatch: got %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d: got %d, want %d", i, got[i], want[i])
		}
	}
}

func TestMonoToStereo(t *testing.T) {
	got := bytesToSamples(audio.MonoToStereo(samplesToBytes([]int16{100, 200, 300})))
	equalSamples(t, got, []int16{100, 100, 200, 200, 300, 300})
}

func TestStereoToMono(t *testing.T) {
	got := bytesToSamples(audio.StereoToMono(samplesToBytes([]int16{100, 200, -100, -200, 32767, 32767})))
	equalSamples(t, got, []int16{150, -150, 32767})
}

func TestResampleMono16(t *testing.T) {
	in := samplesToBytes([]int16{0, 100, 200, 300})

	if got := audio.ResampleMono16(in, 16000, 16000); !bytes.Equal(got, in) {
		t.Error("equal rates should return input unchanged")
	}

	up := bytesToSamples(audio.ResampleMono16(in, 8000, 16000))
	equalSamples(t, up, []int16{0, 50, 100, 150, 200, 250, 300, 300})

	down := bytesToSamples(audio.ResampleMono16(in, 16000, 8000))
	equalSamples(t, down, []int16{0, 200})
}

func TestConvert(t *testing.T) {
	stereo := audio.Clip{
		Data:   samplesToBytes([]int16{100, 300, 100, 300, 200, 400, 200, 400}),
		Format: audio.Format{SampleRate: 32000, Channels: 2},
	}
	got, err := audio.Convert(stereo, audio.Speech)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if got.Format != audio.Speech {
		t.Errorf("format = %s, want %s", got.Format, audio.Speech)
	}
	equalSamples(t, bytesToSamples(got.Data), []int16{200, 300})

	same, err := audio.Convert(got, audio.Speech)
	if err != nil || !bytes.Equal(same.Data, got.Data) {
		t.Errorf("identity conversion changed data (err=%v)", err)
	}

	if _, err := audio.Convert(audio.Clip{Data: []byte{1}, Format: audio.Speech}, audio.Speech); !errors.Is(err, audio.ErrOddLength) {
		t.Errorf("odd length: err = %v, want ErrOddLength", err)
	}
	if _, err := audio.Convert(audio.Clip{Data: nil, Format: audio.Format{}}, audio.Speech); err == nil {
		t.Error("invalid source format: expected error")
	}
}

func TestClipDuration(t *testing.T) {
	c := audio.Clip{Data: make([]byte, 32000), Format: audio.Speech}
	if got := c.Duration(); got != time.Second {
		t.Errorf("Duration = %v, want 1s", got)
	}
	if got := (audio.Clip{}).Duration(); got != 0 {
		t.Errorf("zero clip Duration = %v, want 0", got)
	}
}

func TestWAVRoundTrip(t *testing.T) {
	clip := audio.Clip{
		Data:   samplesToBytes([]int16{1, -1, 1000, -1000}),
		Format: audio.Format{SampleRate: 22050, Channels: 2},
	}
	wav := audio.EncodeWAV(clip)
	if len(wav) != 44+len(clip.Data) {
		t.Fatalf("len = %d, want %d", len(wav), 44+len(clip.Data))
	}
	if !audio.IsWAV(wav) {
		t.Fatal("IsWAV = false for encoded clip")
	}
	got, err := audio.DecodeWAV(wav)
	if err != nil {
		t.Fatalf("DecodeWAV: %v", err)
	}
	if got.Format != clip.Format || !bytes.Equal(got.Data, clip.Data) {
		t.Errorf("round trip mismatch: got %+v", got)
	}
}

func TestDecodeWAV_SkipsUnknownChunks(t *testing.T) {
	wav := audio.EncodeWAV(audio.Clip{Data: samplesToBytes([]int16{7, 8}), Format: audio.Speech})
	// Insert an odd-sized LIST chunk (padded to even) between fmt and data.
	list := []byte{'L', 'I', 'S', 'T', 3, 0, 0, 0, 'a', 'b', 'c', 0}
	patched := append(append(append([]byte{}, wav[:36]...), list...), wav[36:]...)

	got, err := audio.DecodeWAV(patched)
	if err != nil {
		t.Fatalf("DecodeWAV: %v", err)
	}
	equalSamples(t, bytesToSamples(got.Data), []int16{7, 8})
}

func TestDecodeWAV_Errors(t *testing.T) {
	if _, err := audio.DecodeWAV([]byte("not a wav at all")); !errors.Is(err, audio.ErrNotWAV) {
		t.Errorf("err = %v, want ErrNotWAV", err)
	}
	truncated := audio.EncodeWAV(audio.Clip{Format: audio.Speech})[:30]
	if _, err := audio.DecodeWAV(truncated); err == nil {
		t.Error("truncated header: expected error")
	}
}
