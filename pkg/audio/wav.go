package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrNotWAV is returned by [DecodeWAV] when the input is not a RIFF/WAVE
// container.
var ErrNotWAV = errors.New("audio: not a RIFF/WAVE file")

const wavHeaderSize = 44

// IsWAV reports whether b starts with a RIFF/WAVE header.
func IsWAV(b []byte) bool {
	return len(b) >= 12 && string(b[0:4]) == "RIFF" && string(b[8:12]) == "WAVE"
}

// EncodeWAV wraps clip in a canonical 44-byte PCM WAV header.
func EncodeWAV(clip Clip) []byte {
	le := binary.LittleEndian
	dataSize := uint32(len(clip.Data))
	blockAlign := uint16(clip.Channels * 2)

	buf := make([]byte, wavHeaderSize, wavHeaderSize+len(clip.Data))
	copy(buf[0:4], "RIFF")
	le.PutUint32(buf[4:8], 36+dataSize)
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	le.PutUint32(buf[16:20], 16)
	le.PutUint16(buf[20:22], 1) // PCM
	le.PutUint16(buf[22:24], uint16(clip.Channels))
	le.PutUint32(buf[24:28], uint32(clip.SampleRate))
	le.PutUint32(buf[28:32], uint32(clip.SampleRate)*uint32(blockAlign))
	le.PutUint16(buf[32:34], blockAlign)
	le.PutUint16(buf[34:36], 16)
	copy(buf[36:40], "data")
	le.PutUint32(buf[40:44], dataSize)
	return append(buf, clip.Data...)
}

// DecodeWAV extracts the PCM payload and format from a 16-bit PCM WAV file.
// Chunks other than "fmt " and "data" are skipped.
func DecodeWAV(wav []byte) (Clip, error) {
	if !IsWAV(wav) {
		return Clip{}, ErrNotWAV
	}
	le := binary.LittleEndian

	var (
		f      Format
		gotFmt bool
	)
	for off := 12; off+8 <= len(wav); {
		id := string(wav[off : off+4])
		size := int(le.Uint32(wav[off+4 : off+8]))
		body := off + 8

		switch id {
		case "fmt ":
			if size < 16 || body+16 > len(wav) {
				return Clip{}, errors.New("audio: wav: truncated fmt chunk")
			}
			if tag := le.Uint16(wav[body : body+2]); tag != 1 {
				return Clip{}, fmt.Errorf("audio: wav: unsupported encoding %d", tag)
			}
			if bits := le.Uint16(wav[body+14 : body+16]); bits != 16 {
				return Clip{}, fmt.Errorf("audio: wav: unsupported bit depth %d", bits)
			}
			f.Channels = int(le.Uint16(wav[body+2 : body+4]))
			f.SampleRate = int(le.Uint32(wav[body+4 : body+8]))
			gotFmt = true
		case "data":
			if !gotFmt {
				return Clip{}, errors.New("audio: wav: data chunk before fmt chunk")
			}
			end := min(body+size, len(wav))
			return Clip{Data: wav[body:end], Format: f}, nil
		}

		// Chunks are word-aligned.
		off = body + size + size%2
	}
	return Clip{}, errors.New("audio: wav: missing data chunk")
}
