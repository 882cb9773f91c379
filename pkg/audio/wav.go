package audio

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/faiface/beep"
	"github.com/faiface/beep/wav"
)

// Load reads an audio file and returns it as a mono [Sample], dispatching on
// the file extension. ".flac" is decoded via [LoadFlac]; everything else is
// treated as wav.
func Load(path string) (Sample, error) {
	if strings.EqualFold(filepath.Ext(path), ".flac") {
		return LoadFlac(path)
	}
	return LoadWav(path)
}

// LoadWav decodes a wav file into a mono [Sample]. Stereo files are downmixed
// by averaging the two channels.
func LoadWav(path string) (Sample, error) {
	f, err := os.Open(path)
	if err != nil {
		return Sample{}, fmt.Errorf("audio: open %q: %w", path, err)
	}
	defer f.Close()

	stream, format, err := wav.Decode(f)
	if err != nil {
		return Sample{}, fmt.Errorf("audio: decode wav %q: %w", path, err)
	}
	defer stream.Close()

	out := make([]float64, 0, stream.Len())
	buf := make([][2]float64, 512)
	for {
		n, ok := stream.Stream(buf)
		for i := 0; i < n; i++ {
			out = append(out, (buf[i][0]+buf[i][1])/2)
		}
		if !ok {
			break
		}
	}
	if err := stream.Err(); err != nil {
		return Sample{}, fmt.Errorf("audio: read wav %q: %w", path, err)
	}
	return Sample{Data: out, Rate: int(format.SampleRate)}, nil
}

// SaveWav writes a mono [Sample] as a 16-bit PCM wav file. Amplitudes outside
// [-1, 1] are clamped by the encoder streamer.
func SaveWav(path string, s Sample) error {
	if s.Rate <= 0 {
		return fmt.Errorf("audio: save wav %q: invalid sample rate %d", path, s.Rate)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("audio: create %q: %w", path, err)
	}
	format := beep.Format{
		SampleRate:  beep.SampleRate(s.Rate),
		NumChannels: 1,
		Precision:   2,
	}
	if err := wav.Encode(f, &sliceStreamer{data: s.Data}, format); err != nil {
		f.Close()
		return fmt.Errorf("audio: encode wav %q: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("audio: close %q: %w", path, err)
	}
	return nil
}

// sliceStreamer adapts a float64 slice to the beep.Streamer interface so the
// wav encoder can consume it. Values are clamped to [-1, 1].
type sliceStreamer struct {
	data []float64
	pos  int
}

func (st *sliceStreamer) Stream(samples [][2]float64) (int, bool) {
	if st.pos >= len(st.data) {
		return 0, false
	}
	n := 0
	for i := range samples {
		if st.pos >= len(st.data) {
			break
		}
		v := st.data[st.pos]
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		samples[i][0] = v
		samples[i][1] = v
		st.pos++
		n++
	}
	return n, true
}

func (st *sliceStreamer) Err() error { return nil }
