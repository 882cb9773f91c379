package dataset

import (
	"fmt"
	"math/rand"

	"github.com/MrWong99/wavegrain/pkg/audio"
)

// Options configures a [Dataset].
type Options struct {
	// SampleRate is the pipeline sample rate. Files at any other rate are
	// rejected when loaded.
	SampleRate int

	// HopLength is the analysis stride; evaluation items are padded to a
	// multiple of it.
	HopLength int

	// SegmentLength is the fixed length of training items, in samples.
	// Required when Training is set.
	SegmentLength int

	// Training selects the shaping mode: fixed-length random crops for
	// training, hop-aligned whole utterances otherwise.
	Training bool

	// Rand drives crop positions and batch sampling. Defaults to the shared
	// global source; inject a seeded one for reproducible runs.
	Rand *rand.Rand
}

// Dataset is an ordered collection of audio files with deterministic
// per-item shaping. Items are loaded lazily; the dataset holds no audio in
// memory.
type Dataset struct {
	paths []string
	opts  Options
}

// New builds a dataset over the given paths.
func New(paths []string, opts Options) (*Dataset, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("dataset: no input files")
	}
	if opts.SampleRate <= 0 {
		return nil, fmt.Errorf("dataset: sample rate must be positive, got %d", opts.SampleRate)
	}
	if opts.HopLength <= 0 {
		return nil, fmt.Errorf("dataset: hop length must be positive, got %d", opts.HopLength)
	}
	if opts.Training && opts.SegmentLength <= 0 {
		return nil, fmt.Errorf("dataset: training mode needs a positive segment length, got %d", opts.SegmentLength)
	}
	return &Dataset{paths: paths, opts: opts}, nil
}

// Len returns the number of items.
func (d *Dataset) Len() int {
	return len(d.paths)
}

// Path returns the source path of item i.
func (d *Dataset) Path(i int) string {
	return d.paths[i]
}

// Item loads and shapes item i.
//
// In training mode the waveform is cropped to the segment length at a random
// offset; any offset that keeps the crop in bounds may be chosen, including
// the final one. Shorter waveforms are zero-padded on the right instead.
// In evaluation mode the whole waveform is zero-padded up to the next hop
// multiple.
func (d *Dataset) Item(i int) (audio.Sample, error) {
	s, err := audio.Load(d.paths[i])
	if err != nil {
		return audio.Sample{}, err
	}
	if err := s.EnsureRate(d.opts.SampleRate); err != nil {
		return audio.Sample{}, fmt.Errorf("dataset: %s: %w", d.paths[i], err)
	}

	if !d.opts.Training {
		return s.PadAligned(d.opts.HopLength), nil
	}

	seg := d.opts.SegmentLength
	if len(s.Data) <= seg {
		return audio.Sample{Data: audio.PadRight(s.Data, seg), Rate: s.Rate}, nil
	}
	start := d.rng().Intn(len(s.Data) - seg + 1)
	crop := make([]float64, seg)
	copy(crop, s.Data[start:start+seg])
	return audio.Sample{Data: crop, Rate: s.Rate}, nil
}

// SampleBatch picks size distinct item indices uniformly at random, in
// shuffled order.
func (d *Dataset) SampleBatch(size int) ([]int, error) {
	if size <= 0 {
		return nil, fmt.Errorf("dataset: batch size must be positive, got %d", size)
	}
	if size > len(d.paths) {
		return nil, fmt.Errorf("dataset: batch size %d exceeds dataset size %d", size, len(d.paths))
	}
	return d.rng().Perm(len(d.paths))[:size], nil
}

func (d *Dataset) rng() *rand.Rand {
	if d.opts.Rand != nil {
		return d.opts.Rand
	}
	return globalRand
}

// globalRand adapts the shared math/rand source so that Dataset only deals
// with one rng type.
var globalRand = rand.New(rand.NewSource(rand.Int63()))
