package audio_test

import (
	"testing"

	"github.com/MrWong99/wavegrain/pkg/audio"
)

func TestAlignedLength(t *testing.T) {
	t.Parallel()
	cases := []struct {
		n, hop, want int
	}{
		{n: 0, hop: 256, want: 256},
		{n: 1, hop: 256, want: 256},
		{n: 255, hop: 256, want: 256},
		{n: 256, hop: 256, want: 512},
		{n: 257, hop: 256, want: 512},
		{n: 66150, hop: 256, want: 66304},
	}
	for _, c := range cases {
		got := audio.AlignedLength(c.n, c.hop)
		if got != c.want {
			t.Errorf("AlignedLength(%d, %d) = %d, want %d", c.n, c.hop, got, c.want)
		}
		if got%c.hop != 0 {
			t.Errorf("AlignedLength(%d, %d) = %d is not a multiple of hop", c.n, c.hop, got)
		}
		if got < c.n {
			t.Errorf("AlignedLength(%d, %d) = %d is shorter than the input", c.n, c.hop, got)
		}
	}
}

func TestPadAligned(t *testing.T) {
	t.Parallel()
	s := audio.Sample{Data: []float64{0.1, 0.2, 0.3}, Rate: 22050}
	padded := s.PadAligned(4)

	if len(padded.Data) != 4 {
		t.Fatalf("padded length = %d, want 4", len(padded.Data))
	}
	if padded.Rate != 22050 {
		t.Errorf("padded rate = %d, want 22050", padded.Rate)
	}
	for i, v := range s.Data {
		if padded.Data[i] != v {
			t.Errorf("padded.Data[%d] = %v, want %v", i, padded.Data[i], v)
		}
	}
	if padded.Data[3] != 0 {
		t.Errorf("padding value = %v, want 0", padded.Data[3])
	}

	// The original must not alias the padded copy.
	padded.Data[0] = 99
	if s.Data[0] != 0.1 {
		t.Error("PadAligned mutated the source sample")
	}
}

func TestSampleSeconds(t *testing.T) {
	t.Parallel()
	s := audio.Sample{Data: make([]float64, 22050), Rate: 22050}
	if got := s.Seconds(); got != 1.0 {
		t.Errorf("Seconds() = %v, want 1.0", got)
	}
	if got := (audio.Sample{}).Seconds(); got != 0 {
		t.Errorf("empty Seconds() = %v, want 0", got)
	}
}

func TestEnsureRate(t *testing.T) {
	t.Parallel()
	s := audio.Sample{Data: []float64{0}, Rate: 44100}
	if err := s.EnsureRate(44100); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := s.EnsureRate(22050)
	if err == nil {
		t.Fatal("expected error for mismatched rate, got nil")
	}
}
