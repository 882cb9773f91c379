package mel

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/r9y9/gossp/stft"

	"github.com/MrWong99/wavegrain/pkg/audio"
)

// defaultEps is the magnitude floor applied before log compression. It is a
// numeric-stability floor, small enough not to distort audible dynamic range.
const defaultEps = 1e-10

// Config holds the analysis parameters of an [Extractor]. All fields except
// WinLength, FMax and Eps are required; those three default to NFFT, half the
// sample rate, and 1e-10 respectively.
type Config struct {
	// SampleRate is the pipeline sample rate in Hz. Input whose rate differs
	// is rejected, never resampled.
	SampleRate int

	// NFFT is the FFT size. Must be a power of two.
	NFFT int

	// WinLength is the Hann window length in samples. Defaults to NFFT; when
	// shorter, the window is zero-padded symmetrically to NFFT.
	WinLength int

	// HopLength is the stride between consecutive analysis frames, in samples.
	HopLength int

	// FMin and FMax bound the mel filterbank frequency range in Hz.
	// FMax defaults to SampleRate/2.
	FMin float64
	FMax float64

	// NMels is the number of mel bands.
	NMels int

	// Eps is the magnitude floor applied before log10. Defaults to 1e-10.
	Eps float64

	// RemoveLast drops the final analysis frame so the frame count equals
	// aligned_length / hop_length exactly, matching the alignment contract of
	// [audio.Sample.PadAligned]. Without the drop the centered transform
	// emits one extra frame.
	RemoveLast bool
}

// withDefaults returns a copy of c with the optional fields resolved.
func (c Config) withDefaults() Config {
	if c.WinLength == 0 {
		c.WinLength = c.NFFT
	}
	if c.FMax == 0 {
		c.FMax = float64(c.SampleRate) / 2
	}
	if c.Eps == 0 {
		c.Eps = defaultEps
	}
	return c
}

// Extractor converts mono waveforms into log-mel spectrograms. It holds the
// fixed mel filterbank and analysis window, both derived purely from its
// [Config] at construction time. Safe for concurrent use; nothing is mutated
// after construction.
type Extractor struct {
	cfg        Config
	filterbank [][]float64
	window     []float64
}

// NewExtractor validates cfg and precomputes the mel filterbank and analysis
// window.
func NewExtractor(cfg Config) (*Extractor, error) {
	cfg = cfg.withDefaults()
	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("mel: sample_rate must be positive, got %d", cfg.SampleRate)
	}
	if cfg.NFFT <= 0 || cfg.NFFT&(cfg.NFFT-1) != 0 {
		return nil, fmt.Errorf("mel: n_fft must be a positive power of two, got %d", cfg.NFFT)
	}
	if cfg.HopLength <= 0 || cfg.HopLength > cfg.NFFT {
		return nil, fmt.Errorf("mel: hop_length must be in (0, n_fft], got %d", cfg.HopLength)
	}
	if cfg.WinLength <= 0 || cfg.WinLength > cfg.NFFT {
		return nil, fmt.Errorf("mel: win_length must be in (0, n_fft], got %d", cfg.WinLength)
	}
	if cfg.Eps <= 0 {
		return nil, fmt.Errorf("mel: eps must be positive, got %g", cfg.Eps)
	}

	fb, err := melFilterbank(cfg.SampleRate, cfg.NFFT, cfg.NMels, cfg.FMin, cfg.FMax)
	if err != nil {
		return nil, err
	}
	return &Extractor{
		cfg:        cfg,
		filterbank: fb,
		window:     paddedHann(cfg.WinLength, cfg.NFFT),
	}, nil
}

// Config returns the extractor's resolved configuration.
func (e *Extractor) Config() Config {
	return e.cfg
}

// Extract computes the log-mel spectrogram of a waveform. The input must
// already be at the configured sample rate; a mismatch is a hard failure.
//
// The transform is a centered, Hann-windowed magnitude STFT (reflect padding
// of n_fft/2 on each side — the only padding the windowed transform implies),
// projected through the cached filterbank, floored at eps, and log10
// compressed. With RemoveLast set, the trailing frame is dropped so that a
// hop-aligned input of length L yields exactly L/hop frames.
func (e *Extractor) Extract(s audio.Sample) (*Spectrogram, error) {
	if err := s.EnsureRate(e.cfg.SampleRate); err != nil {
		return nil, err
	}
	if len(s.Data) < e.cfg.NFFT/2+1 {
		return nil, fmt.Errorf("mel: waveform of %d samples is too short for an n_fft of %d", len(s.Data), e.cfg.NFFT)
	}

	mag := e.magnitudes(s.Data)
	frames := len(mag)
	if e.cfg.RemoveLast && frames > 0 {
		frames--
	}

	out := make([][]float64, e.cfg.NMels)
	for m := range out {
		row := make([]float64, frames)
		fbRow := e.filterbank[m]
		for t := 0; t < frames; t++ {
			var sum float64
			for k, w := range fbRow {
				if w != 0 {
					sum += w * mag[t][k]
				}
			}
			if sum < e.cfg.Eps {
				sum = e.cfg.Eps
			}
			row[t] = math.Log10(sum)
		}
		out[m] = row
	}
	return &Spectrogram{Data: out}, nil
}

// Filterbank returns the cached mel filterbank matrix. The returned slices
// are the extractor's own read-only data; callers must not modify them.
func (e *Extractor) Filterbank() [][]float64 {
	return e.filterbank
}

// Window returns the cached analysis window of NFFT samples. Read-only.
func (e *Extractor) Window() []float64 {
	return e.window
}

// magnitudes computes the centered magnitude STFT: [frame][bin] with
// n_fft/2+1 bins per frame.
func (e *Extractor) magnitudes(x []float64) [][]float64 {
	st := stft.New(e.cfg.HopLength, e.cfg.NFFT)
	st.Window = e.window

	padded := reflectPad(x, e.cfg.NFFT/2)
	spectrum := st.STFT(padded)

	bins := e.cfg.NFFT/2 + 1
	mag := make([][]float64, len(spectrum))
	for t, frame := range spectrum {
		row := make([]float64, bins)
		for k := 0; k < bins; k++ {
			row[k] = cmplx.Abs(frame[k])
		}
		mag[t] = row
	}
	return mag
}

// paddedHann builds a periodic Hann window of winLength samples, centered in
// a zero slice of nFFT samples.
func paddedHann(winLength, nFFT int) []float64 {
	w := make([]float64, nFFT)
	offset := (nFFT - winLength) / 2
	for i := 0; i < winLength; i++ {
		w[offset+i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(winLength)))
	}
	return w
}

// reflectPad mirrors p samples of x around each edge without repeating the
// edge sample itself. x must be longer than p.
func reflectPad(x []float64, p int) []float64 {
	out := make([]float64, 0, len(x)+2*p)
	for i := p; i > 0; i-- {
		out = append(out, x[i])
	}
	out = append(out, x...)
	for i := len(x) - 2; i >= len(x)-1-p; i-- {
		out = append(out, x[i])
	}
	return out
}
