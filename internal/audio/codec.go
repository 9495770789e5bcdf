// Package audio provides the codec layer for telephony media: G.711 mu-law
// companding, WAV container handling, and sample-rate decimation.
//
// All functions are pure and stateless; PCM is always 16-bit little-endian
// signed mono unless stated otherwise.
package audio

import (
	"bytes"
	"errors"
	"math"
)

// ErrNoDataChunk is returned when a WAV container has no "data" sub-chunk.
var ErrNoDataChunk = errors.New("audio: wav container has no data chunk")

const (
	muLawBias = 0x84
	muLawClip = 32635
)

// DecodeMuLaw converts G.711 mu-law bytes to 16-bit LE PCM.
// One input byte produces one output sample (two bytes).
func DecodeMuLaw(in []byte) []byte {
	out := make([]byte, len(in)*2)
	for i, b := range in {
		s := decodeMuLawSample(b)
		out[i*2] = byte(s)
		out[i*2+1] = byte(s >> 8)
	}
	return out
}

func decodeMuLawSample(b byte) int16 {
	b = ^b
	sign := b & 0x80
	exponent := (b >> 4) & 0x07
	mantissa := b & 0x0F

	magnitude := ((int32(mantissa) << 3) + muLawBias) << exponent
	magnitude -= muLawBias

	if sign != 0 {
		return int16(-magnitude)
	}
	return int16(magnitude)
}

// EncodeMuLaw converts 16-bit LE PCM to G.711 mu-law bytes.
// A trailing odd byte (half a sample) is ignored.
func EncodeMuLaw(pcm []byte) []byte {
	n := len(pcm) / 2
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		s := int16(uint16(pcm[i*2]) | uint16(pcm[i*2+1])<<8)
		out[i] = encodeMuLawSample(s)
	}
	return out
}

func encodeMuLawSample(s int16) byte {
	var sign byte
	v := int32(s)
	if v < 0 {
		sign = 0x80
		v = -v
	}
	if v > muLawClip {
		v = muLawClip
	}
	v += muLawBias

	exponent := 7
	for mask := int32(0x4000); exponent > 0 && v&mask == 0; mask >>= 1 {
		exponent--
	}
	mantissa := byte(v>>(uint(exponent)+3)) & 0x0F

	return ^(sign | byte(exponent)<<4 | mantissa)
}

// ExtractWavPCM returns the raw PCM payload of a WAV container by locating
// the "data" sub-chunk marker and skipping its 8-byte sub-header. The marker
// is searched for, not assumed at a fixed offset, since synthesis providers
// emit containers with extra chunks before the data.
func ExtractWavPCM(wav []byte) ([]byte, error) {
	idx := bytes.Index(wav, []byte("data"))
	if idx < 0 {
		return nil, ErrNoDataChunk
	}
	start := idx + 8
	if start > len(wav) {
		return nil, ErrNoDataChunk
	}
	return wav[start:], nil
}

// DownsampleByHalf decimates 16-bit LE PCM by keeping the first sample of
// every complete pair. No anti-aliasing filter is applied; for speech-band
// source material going 16kHz to 8kHz the quality loss is acceptable. This
// is a known limitation of the naive decimation, not an oversight.
func DownsampleByHalf(pcm []byte) []byte {
	samples := len(pcm) / 2
	pairs := samples / 2
	out := make([]byte, 0, pairs*2)
	for i := 0; i < pairs; i++ {
		out = append(out, pcm[i*4], pcm[i*4+1])
	}
	return out
}

// WrapWavPCM wraps raw 16-bit LE mono PCM in a minimal 44-byte WAV header.
// Used when a provider wants a container instead of raw samples.
func WrapWavPCM(pcm []byte, sampleRate int) []byte {
	dataLen := uint32(len(pcm))
	byteRate := uint32(sampleRate * 2)

	buf := make([]byte, 0, 44+len(pcm))
	buf = append(buf, 'R', 'I', 'F', 'F')
	buf = appendUint32(buf, 36+dataLen)
	buf = append(buf, 'W', 'A', 'V', 'E')
	buf = append(buf, 'f', 'm', 't', ' ')
	buf = appendUint32(buf, 16)
	buf = appendUint16(buf, 1) // PCM
	buf = appendUint16(buf, 1) // mono
	buf = appendUint32(buf, uint32(sampleRate))
	buf = appendUint32(buf, byteRate)
	buf = appendUint16(buf, 2)  // block align
	buf = appendUint16(buf, 16) // bits per sample
	buf = append(buf, 'd', 'a', 't', 'a')
	buf = appendUint32(buf, dataLen)
	return append(buf, pcm...)
}

func appendUint32(b []byte, v uint32) []byte {
	return append(b, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

func appendUint16(b []byte, v uint16) []byte {
	return append(b, byte(v), byte(v>>8))
}

// RMSEnergy computes the root-mean-square energy of 16-bit LE PCM.
// Returns 0 for an empty chunk.
func RMSEnergy(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		s := float64(int16(uint16(pcm[i*2]) | uint16(pcm[i*2+1])<<8))
		sum += s * s
	}
	return math.Sqrt(sum / float64(n))
}
