package audio

import (
	"errors"
	"fmt"
	"io"

	"github.com/mewkiz/flac"
)

// LoadFlac decodes a flac file into a mono [Sample]. Multi-channel files are
// downmixed by averaging all channels.
func LoadFlac(path string) (Sample, error) {
	stream, err := flac.ParseFile(path)
	if err != nil {
		return Sample{}, fmt.Errorf("audio: open flac %q: %w", path, err)
	}
	defer stream.Close()

	info := stream.Info
	nch := int(info.NChannels)
	if nch == 0 {
		return Sample{}, fmt.Errorf("audio: flac %q reports zero channels", path)
	}
	// Full-scale divisor for the stream's bit depth.
	div := float64(int64(1) << (info.BitsPerSample - 1))

	out := make([]float64, 0, info.NSamples)
	for {
		fr, err := stream.ParseNext()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Sample{}, fmt.Errorf("audio: parse flac %q: %w", path, err)
		}
		for i := range fr.Subframes[0].Samples {
			var sum float64
			for ch := 0; ch < nch; ch++ {
				sum += float64(fr.Subframes[ch].Samples[i])
			}
			out = append(out, sum/float64(nch)/div)
		}
	}
	return Sample{Data: out, Rate: int(info.SampleRate)}, nil
}
