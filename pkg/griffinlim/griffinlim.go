// Package griffinlim provides a classical signal-processing implementation of
// the diffusion.Refiner contract. Each Refine call runs one Griffin-Lim phase
// refinement round against the magnitude spectrum recovered from the
// conditioning log-mel spectrogram, so a full schedule walk converges on a
// waveform consistent with the conditioning features.
//
// It exists to exercise the synthesis driver end to end without a neural
// model binding and is the default refiner of the wavegrain CLI.
package griffinlim

import (
	"context"
	"fmt"
	"math"
	"math/cmplx"
	"sync"

	"github.com/mjibson/go-dsp/fft"
	"github.com/r9y9/gossp/stft"

	"github.com/MrWong99/wavegrain/pkg/diffusion"
	"github.com/MrWong99/wavegrain/pkg/mel"
)

// tiny guards divisions during mel inversion and overlap-add normalization.
const tiny = 1e-8

// Refiner reconstructs waveforms from log-mel conditioning by iterative phase
// refinement. Safe for concurrent use.
type Refiner struct {
	cfg        mel.Config
	filterbank [][]float64
	window     []float64

	mu sync.Mutex
	// targets caches the inverted magnitude spectrum per conditioning
	// spectrogram. Keyed by pointer: the driver passes the same spectrogram
	// for every step of one synthesis call and releases the entry when the
	// call finishes.
	targets map[*mel.Spectrogram][][]float64
}

// New builds a refiner sharing the analysis parameters and filterbank of the
// given extractor, so its notion of "consistent with the conditioning" matches
// the features the extractor produces.
func New(e *mel.Extractor) *Refiner {
	return &Refiner{
		cfg:        e.Config(),
		filterbank: e.Filterbank(),
		window:     e.Window(),
		targets:    map[*mel.Spectrogram][][]float64{},
	}
}

// Refine runs one phase refinement round: analyze the current estimate,
// replace its spectral magnitudes with the target recovered from cond while
// keeping the estimate's phases, and resynthesize. The step descriptor is
// accepted to satisfy the refiner contract; the update itself is step
// independent.
func (r *Refiner) Refine(ctx context.Context, estimate []float64, cond *mel.Spectrogram, step diffusion.Step) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if cond.Bands() != r.cfg.NMels {
		return nil, fmt.Errorf("griffinlim: conditioning has %d mel bands, filterbank has %d", cond.Bands(), r.cfg.NMels)
	}

	target := r.targetMagnitudes(cond)

	nFFT := r.cfg.NFFT
	hop := r.cfg.HopLength
	st := stft.New(hop, nFFT)
	st.Window = r.window

	padded := reflectPad(estimate, nFFT/2)
	spectrum := st.STFT(padded)

	// Impose the target magnitudes, keep the estimate's phases. Frames beyond
	// the conditioning (the centered transform emits one extra) keep their
	// own magnitudes.
	bins := nFFT/2 + 1
	for t, frame := range spectrum {
		if t >= len(target) {
			break
		}
		for k := 0; k < bins; k++ {
			phase := cmplx.Phase(frame[k])
			frame[k] = cmplx.Rect(target[t][k], phase)
		}
		for k := 1; k < nFFT/2; k++ {
			frame[nFFT-k] = cmplx.Conj(frame[k])
		}
	}

	out := istft(spectrum, r.window, hop)
	refined := make([]float64, len(estimate))
	copy(refined, out[nFFT/2:])
	return refined, nil
}

// targetMagnitudes inverts the log-mel spectrogram to a linear magnitude
// spectrum, [frame][bin], via the transposed filterbank.
func (r *Refiner) targetMagnitudes(cond *mel.Spectrogram) [][]float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cached, ok := r.targets[cond]; ok {
		return cached
	}

	bins := r.cfg.NFFT/2 + 1
	frames := cond.Frames()
	bands := cond.Bands()

	colSum := make([]float64, bins)
	for _, row := range r.filterbank {
		for k, w := range row {
			colSum[k] += w
		}
	}

	target := make([][]float64, frames)
	for t := 0; t < frames; t++ {
		row := make([]float64, bins)
		for m := 0; m < bands; m++ {
			amp := math.Pow(10, cond.Data[m][t])
			for k, w := range r.filterbank[m] {
				if w != 0 {
					row[k] += w * amp
				}
			}
		}
		for k := range row {
			row[k] /= math.Max(colSum[k], tiny)
		}
		target[t] = row
	}

	r.targets[cond] = target
	return target
}

// Release drops the cached magnitude target for cond. The driver calls it
// once per synthesis run; without the eviction the cache would grow by one
// matrix per input file for the life of the process.
func (r *Refiner) Release(cond *mel.Spectrogram) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.targets, cond)
}

// istft overlap-adds the inverse FFT of every frame, normalized by the
// squared window sum.
func istft(spectrum [][]complex128, window []float64, hop int) []float64 {
	if len(spectrum) == 0 {
		return nil
	}
	frameLen := len(spectrum[0])
	out := make([]float64, frameLen+(len(spectrum)-1)*hop)
	winSum := make([]float64, len(out))

	for i, frame := range spectrum {
		buf := fft.IFFT(frame)
		for j := 0; j < frameLen; j++ {
			pos := i*hop + j
			out[pos] += real(buf[j]) * window[j]
			winSum[pos] += window[j] * window[j]
		}
	}
	for i := range out {
		if winSum[i] > tiny {
			out[i] /= winSum[i]
		}
	}
	return out
}

// reflectPad mirrors p samples of x around each edge without repeating the
// edge sample itself.
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

var (
	_ diffusion.Refiner      = (*Refiner)(nil)
	_ diffusion.CondReleaser = (*Refiner)(nil)
)
