package audio

// AlignedLength returns the evaluation-window length for a waveform of n
// samples: the smallest whole number of hops strictly greater than n, i.e.
// (n/hop + 1) * hop. Padding to this length guarantees the analysis frame
// count of the feature extractor is deterministic and that no trailing audio
// falls into a dropped partial frame.
func AlignedLength(n, hop int) int {
	return (n/hop+1)*hop
}

// PadAligned returns a copy of the sample right-padded with zeros to
// [AlignedLength]. The original data is never mutated.
func (s Sample) PadAligned(hop int) Sample {
	return Sample{
		Data: PadRight(s.Data, AlignedLength(len(s.Data), hop)),
		Rate: s.Rate,
	}
}

// PadRight returns a copy of data right-padded with zeros to length n.
// If data is already n samples or longer, an unpadded copy of the first n
// values is returned.
func PadRight(data []float64, n int) []float64 {
	out := make([]float64, n)
	copy(out, data)
	return out
}
