// Package audio provides the mono waveform type used throughout the synthesis
// pipeline, together with wav/flac file loading, wav writing, and the
// hop-alignment padding applied to evaluation inputs.
//
// A [Sample] is always mono. Multi-channel files are downmixed on load by
// averaging channels. Sample rates are carried verbatim from the source file;
// nothing in this package resamples — a rate that disagrees with the pipeline
// configuration is reported as an error by [Sample.EnsureRate] and never
// silently corrected.
package audio

import (
	"errors"
	"fmt"
	"time"
)

// ErrSampleRateMismatch is returned by [Sample.EnsureRate] when a loaded
// waveform's sample rate disagrees with the configured pipeline rate.
var ErrSampleRateMismatch = errors.New("audio: sample rate mismatch")

// Sample is a mono waveform: amplitude values (nominally in [-1, 1]) plus the
// sample rate they were captured at.
type Sample struct {
	// Data holds the amplitude values in playback order.
	Data []float64

	// Rate is the sample rate in Hz.
	Rate int
}

// Seconds returns the waveform duration in seconds.
func (s Sample) Seconds() float64 {
	if s.Rate <= 0 {
		return 0
	}
	return float64(len(s.Data)) / float64(s.Rate)
}

// Duration returns the waveform duration as a [time.Duration].
func (s Sample) Duration() time.Duration {
	return time.Duration(s.Seconds() * float64(time.Second))
}

// EnsureRate returns an error wrapping [ErrSampleRateMismatch] if the sample's
// rate differs from want. This is the hard input-validation gate of the
// pipeline: mismatched audio is rejected, not resampled.
func (s Sample) EnsureRate(want int) error {
	if s.Rate != want {
		return fmt.Errorf("%w: got %d Hz, configured %d Hz", ErrSampleRateMismatch, s.Rate, want)
	}
	return nil
}
