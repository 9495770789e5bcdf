package audio

import (
	"bytes"
	"testing"
)

func TestMuLaw_RoundTripAllBytes(t *testing.T) {
	// Decode every possible mu-law byte, re-encode, and verify the codec
	// reproduces the same byte. Decode is injective over the 256 codewords,
	// so decode->encode must be exact even though PCM->mu-law is lossy.
	for b := 0; b < 256; b++ {
		in := []byte{byte(b)}
		pcm := DecodeMuLaw(in)
		if len(pcm) != 2 {
			t.Fatalf("byte %d: expected 2 PCM bytes, got %d", b, len(pcm))
		}
		back := EncodeMuLaw(pcm)
		if len(back) != 1 {
			t.Fatalf("byte %d: expected 1 companded byte, got %d", b, len(back))
		}
		// 0x7F and 0xFF both decode to 0; either re-encoding is correct.
		got := back[0]
		if got != byte(b) && !(decodeMuLawSample(got) == decodeMuLawSample(byte(b))) {
			t.Errorf("byte %#x: round trip produced %#x (decoded %d vs %d)",
				b, got, decodeMuLawSample(byte(b)), decodeMuLawSample(got))
		}
	}
}

func TestMuLaw_PCMRoundTripWithinQuantizationError(t *testing.T) {
	// encode(decode(x)) is exact; decode(encode(s)) is lossy. Verify the
	// reconstruction error stays within the segment's quantization step.
	samples := []int16{0, 1, -1, 100, -100, 1000, -1000, 8000, -8000, 32000, -32000}
	for _, s := range samples {
		pcm := []byte{byte(s), byte(s >> 8)}
		got := decodeMuLawSample(EncodeMuLaw(pcm)[0])

		diff := int32(got) - int32(s)
		if diff < 0 {
			diff = -diff
		}
		// Worst-case step in the top segment is 1024.
		if diff > 1024 {
			t.Errorf("sample %d: reconstructed %d, error %d exceeds quantization bound", s, got, diff)
		}
	}
}

func TestDecodeMuLaw_KnownValues(t *testing.T) {
	if got := decodeMuLawSample(0xFF); got != 0 {
		t.Errorf("0xFF should decode to 0, got %d", got)
	}
	if got := decodeMuLawSample(0x7F); got != 0 {
		t.Errorf("0x7F should decode to 0, got %d", got)
	}
	// 0x00 is the most negative codeword.
	if got := decodeMuLawSample(0x00); got != -32124 {
		t.Errorf("0x00 should decode to -32124, got %d", got)
	}
	if got := decodeMuLawSample(0x80); got != 32124 {
		t.Errorf("0x80 should decode to 32124, got %d", got)
	}
}

func TestExtractWavPCM_NoDataChunk(t *testing.T) {
	buf := []byte("RIFF\x00\x00\x00\x00WAVEfmt ")
	if _, err := ExtractWavPCM(buf); err != ErrNoDataChunk {
		t.Errorf("expected ErrNoDataChunk, got %v", err)
	}
}

func TestExtractWavPCM_ReturnsPayloadAfterSubHeader(t *testing.T) {
	payload := []byte{1, 2, 3, 4, 5, 6}
	wav := WrapWavPCM(payload, 16000)

	got, err := ExtractWavPCM(wav)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("expected payload %v, got %v", payload, got)
	}
}

func TestExtractWavPCM_MarkerNotAtFixedOffset(t *testing.T) {
	// Container with an extra chunk before data - the marker must be found
	// by scanning, not assumed at byte 36.
	var wav []byte
	wav = append(wav, []byte("RIFF\x00\x00\x00\x00WAVE")...)
	wav = append(wav, []byte("LIST\x04\x00\x00\x00junk")...)
	wav = append(wav, []byte("data\x03\x00\x00\x00")...)
	wav = append(wav, 9, 8, 7)

	got, err := ExtractWavPCM(wav)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(got, []byte{9, 8, 7}) {
		t.Errorf("expected [9 8 7], got %v", got)
	}
}

func TestDownsampleByHalf_HalvesSampleCount(t *testing.T) {
	tests := []struct {
		inSamples  int
		outSamples int
	}{
		{0, 0},
		{1, 0},
		{2, 1},
		{5, 2},
		{160, 80},
		{321, 160},
	}

	for _, tt := range tests {
		in := make([]byte, tt.inSamples*2)
		out := DownsampleByHalf(in)
		if len(out) != tt.outSamples*2 {
			t.Errorf("%d samples in: expected %d samples out, got %d",
				tt.inSamples, tt.outSamples, len(out)/2)
		}
	}
}

func TestDownsampleByHalf_KeepsEveryOtherSample(t *testing.T) {
	// Samples 0,1,2,3 as little-endian int16.
	in := []byte{0, 0, 1, 0, 2, 0, 3, 0}
	out := DownsampleByHalf(in)
	want := []byte{0, 0, 2, 0}
	if !bytes.Equal(out, want) {
		t.Errorf("expected %v, got %v", want, out)
	}
}

func TestRMSEnergy(t *testing.T) {
	if got := RMSEnergy(nil); got != 0 {
		t.Errorf("empty chunk should have zero energy, got %f", got)
	}

	// Constant amplitude 1000 -> RMS 1000.
	pcm := make([]byte, 0, 100*2)
	amp := int16(1000)
	for i := 0; i < 100; i++ {
		pcm = append(pcm, byte(amp), byte(amp>>8))
	}
	got := RMSEnergy(pcm)
	if got < 999 || got > 1001 {
		t.Errorf("expected RMS ~1000, got %f", got)
	}

	if got := RMSEnergy(make([]byte, 200)); got != 0 {
		t.Errorf("silence should have zero energy, got %f", got)
	}
}

func TestWrapWavPCM_RoundTrip(t *testing.T) {
	pcm := []byte{10, 20, 30, 40}
	wav := WrapWavPCM(pcm, 8000)
	if len(wav) != 44+len(pcm) {
		t.Fatalf("expected %d bytes, got %d", 44+len(pcm), len(wav))
	}
	if string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		t.Error("missing RIFF/WAVE markers")
	}
	got, err := ExtractWavPCM(wav)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(got, pcm) {
		t.Errorf("expected %v, got %v", pcm, got)
	}
}
