package diffusion

import "time"

// RTF computes the real-time factor for a waveform of the given sample count
// and rate synthesized in elapsed wall-clock time.
//
// Convention, fixed for the whole pipeline: RTF = audio seconds / wall
// seconds. One second of audio synthesized in half a second of wall time is
// RTF 2.0; values above 1 are faster than real-time playback.
func RTF(samples, rate int, elapsed time.Duration) float64 {
	if samples <= 0 || rate <= 0 || elapsed <= 0 {
		return 0
	}
	return (float64(samples) / float64(rate)) / elapsed.Seconds()
}
