// Package mel implements the deterministic feature extraction stage of the
// synthesis pipeline: waveform → log-compressed mel-scaled spectrogram.
//
// An [Extractor] is built once from a fixed [Config]; its mel filterbank is
// derived configuration data, cached for the extractor's lifetime and never
// mutated afterwards, so a single extractor may be shared across concurrent
// goroutines. Extraction itself is a pure function: identical input and config
// always produce bit-identical output.
package mel

// Spectrogram is a log-compressed mel-scaled spectrogram laid out as
// [band][frame]. It is read-only after construction; consumers must not
// mutate it.
type Spectrogram struct {
	// Data holds log10 magnitudes, one row per mel band.
	Data [][]float64
}

// Bands returns the number of mel bands.
func (s *Spectrogram) Bands() int {
	return len(s.Data)
}

// Frames returns the number of analysis frames.
func (s *Spectrogram) Frames() int {
	if len(s.Data) == 0 {
		return 0
	}
	return len(s.Data[0])
}
