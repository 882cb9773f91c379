package mel

import (
	"fmt"
	"math"
)

// HTK mel scale constants.
const (
	melBreakFrequencyHertz = 700.0
	melHighFrequencyQ      = 1127.0
)

func hzToMel(hz float64) float64 {
	return melHighFrequencyQ * math.Log(1.0+hz/melBreakFrequencyHertz)
}

func melToHz(m float64) float64 {
	return melBreakFrequencyHertz * (math.Exp(m/melHighFrequencyQ) - 1.0)
}

// melFilterbank builds the fixed triangular filterbank matrix of shape
// [nMels][nFFT/2+1]. Triangle corners are equally spaced on the mel scale
// between fMin and fMax, and each triangle is area-normalised by
// 2/(upper−lower) so band energy is comparable across the frequency range.
func melFilterbank(sampleRate, nFFT, nMels int, fMin, fMax float64) ([][]float64, error) {
	if nMels <= 0 {
		return nil, fmt.Errorf("mel: n_mels must be positive, got %d", nMels)
	}
	if fMin < 0 {
		return nil, fmt.Errorf("mel: f_min must be non-negative, got %g", fMin)
	}
	nyquist := float64(sampleRate) / 2
	if fMax > nyquist {
		return nil, fmt.Errorf("mel: f_max %g exceeds Nyquist frequency %g", fMax, nyquist)
	}
	if fMin >= fMax {
		return nil, fmt.Errorf("mel: f_min %g must be below f_max %g", fMin, fMax)
	}

	bins := nFFT/2 + 1

	// nMels+2 corner frequencies, equally spaced in mel.
	melMin := hzToMel(fMin)
	melMax := hzToMel(fMax)
	corners := make([]float64, nMels+2)
	for i := range corners {
		corners[i] = melToHz(melMin + (melMax-melMin)*float64(i)/float64(nMels+1))
	}

	fb := make([][]float64, nMels)
	for m := range fb {
		lower, center, upper := corners[m], corners[m+1], corners[m+2]
		norm := 2.0 / (upper - lower)
		row := make([]float64, bins)
		for k := 0; k < bins; k++ {
			f := float64(k) * float64(sampleRate) / float64(nFFT)
			var w float64
			switch {
			case f <= lower || f >= upper:
				w = 0
			case f < center:
				w = (f - lower) / (center - lower)
			default:
				w = (upper - f) / (upper - center)
			}
			row[k] = w * norm
		}
		fb[m] = row
	}
	return fb, nil
}
