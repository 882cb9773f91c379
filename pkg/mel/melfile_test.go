package mel_test

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/MrWong99/wavegrain/pkg/mel"
)

func TestMelFileRoundTrip(t *testing.T) {
	t.Parallel()
	src := &mel.Spectrogram{Data: [][]float64{
		{-10, -2.5, 0.125},
		{1.5, -0.75, 3},
	}}
	path := filepath.Join(t.TempDir(), "cond.mel")

	if err := mel.WriteFile(path, src); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	got, err := mel.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if got.Bands() != src.Bands() || got.Frames() != src.Frames() {
		t.Fatalf("shape = [%d, %d], want [%d, %d]", got.Bands(), got.Frames(), src.Bands(), src.Frames())
	}
	for m := range src.Data {
		for tt := range src.Data[m] {
			if diff := math.Abs(got.Data[m][tt] - src.Data[m][tt]); diff > 5e-3 {
				t.Fatalf("value [%d][%d] differs by %v after half-precision round trip", m, tt, diff)
			}
		}
	}
}

func TestReadFileRejectsForeignData(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "not.mel")
	if err := os.WriteFile(path, []byte("RIFF....WAVEfmt "), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := mel.ReadFile(path); err == nil {
		t.Fatal("expected error for non-mel file, got nil")
	}
}

func TestReadFileTruncated(t *testing.T) {
	t.Parallel()
	src := &mel.Spectrogram{Data: [][]float64{{1, 2, 3, 4}}}
	dir := t.TempDir()
	path := filepath.Join(dir, "full.mel")
	if err := mel.WriteFile(path, src); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	cut := filepath.Join(dir, "cut.mel")
	if err := os.WriteFile(cut, raw[:len(raw)-3], 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := mel.ReadFile(cut); err == nil {
		t.Fatal("expected error for truncated file, got nil")
	}
}
