package audio

import (
	"errors"
	"fmt"
)

// ErrOddLength is returned when PCM data is not a whole number of samples.
var ErrOddLength = errors.New("audio: odd byte count in 16-bit PCM")

// Convert returns clip in the target format. Stereo input is downmixed
// before resampling so that only one channel is interpolated; mono input is
// resampled before being duplicated. A clip already in the target format is
// returned unchanged.
func Convert(clip Clip, target Format) (Clip, error) {
	if !clip.Valid() {
		return Clip{}, fmt.Errorf("audio: convert: invalid source format %s", clip.Format)
	}
	if !target.Valid() {
		return Clip{}, fmt.Errorf("audio: convert: invalid target format %s", target)
	}
	if len(clip.Data)%2 != 0 {
		return Clip{}, ErrOddLength
	}
	if clip.Format == target {
		return clip, nil
	}

	pcm := clip.Data
	if clip.Channels == 2 {
		pcm = StereoToMono(pcm)
	}
	pcm = ResampleMono16(pcm, clip.SampleRate, target.SampleRate)
	if target.Channels == 2 {
		pcm = MonoToStereo(pcm)
	}
	return Clip{Data: pcm, Format: target}, nil
}

// MonoToStereo duplicates each mono sample into an L+R pair.
func MonoToStereo(pcm []byte) []byte {
	out := make([]byte, (len(pcm)/2)*4)
	for i := 0; i+1 < len(pcm); i += 2 {
		j := i * 2
		out[j], out[j+1] = pcm[i], pcm[i+1]
		out[j+2], out[j+3] = pcm[i], pcm[i+1]
	}
	return out
}

// StereoToMono averages each L+R frame into one mono sample.
func StereoToMono(pcm []byte) []byte {
	frames := len(pcm) / 4
	out := make([]byte, frames*2)
	for i := range frames {
		l := int32(sampleAt(pcm, i*2))
		r := int32(sampleAt(pcm, i*2+1))
		putSample(out, i, int16((l+r)/2))
	}
	return out
}

// ResampleMono16 resamples mono PCM from srcRate to dstRate with linear
// interpolation. Equal rates return the input unchanged.
func ResampleMono16(pcm []byte, srcRate, dstRate int) []byte {
	if srcRate <= 0 || dstRate <= 0 || srcRate == dstRate || len(pcm) < 2 {
		return pcm
	}
	srcSamples := len(pcm) / 2
	dstSamples := int(int64(srcSamples) * int64(dstRate) / int64(srcRate))
	if dstSamples == 0 {
		return nil
	}

	out := make([]byte, dstSamples*2)
	ratio := float64(srcRate) / float64(dstRate)
	for i := range dstSamples {
		pos := float64(i) * ratio
		idx := int(pos)
		frac := pos - float64(idx)

		s0 := sampleAt(pcm, idx)
		s1 := s0
		if idx+1 < srcSamples {
			s1 = sampleAt(pcm, idx+1)
		}
		putSample(out, i, int16(float64(s0)*(1-frac)+float64(s1)*frac))
	}
	return out
}

func sampleAt(pcm []byte, i int) int16 {
	return int16(pcm[i*2]) | int16(pcm[i*2+1])<<8
}

func putSample(pcm []byte, i int, s int16) {
	pcm[i*2] = byte(s)
	pcm[i*2+1] = byte(s >> 8)
}
