package runner

import (
	"cmp"
	"math"
	"slices"
	"sync"
	"time"
)

// BatchStats collects per-file latency samples and real-time factors over a
// batch run. It maintains a bounded ring buffer of recent latency
// observations per stage from which percentiles are computed on demand.
//
// Thread-safe for concurrent use.
type BatchStats struct {
	mu sync.Mutex

	extraction ring[time.Duration]
	synthesis  ring[time.Duration]
	write      ring[time.Duration]

	rtfs []float64

	processed int64
	failed    int64
}

// NewBatchStats creates a BatchStats with the given window size (maximum
// number of latency samples retained per stage).
func NewBatchStats(windowSize int) *BatchStats {
	if windowSize <= 0 {
		windowSize = 100
	}
	return &BatchStats{
		extraction: newRing[time.Duration](windowSize),
		synthesis:  newRing[time.Duration](windowSize),
		write:      newRing[time.Duration](windowSize),
	}
}

// RecordExtraction records a feature-extraction latency sample.
func (bs *BatchStats) RecordExtraction(d time.Duration) {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	bs.extraction.add(d)
}

// RecordSynthesis records a denoising-loop latency sample with its real-time
// factor.
func (bs *BatchStats) RecordSynthesis(d time.Duration, rtf float64) {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	bs.synthesis.add(d)
	bs.rtfs = append(bs.rtfs, rtf)
}

// RecordWrite records an output-write latency sample.
func (bs *BatchStats) RecordWrite(d time.Duration) {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	bs.write.add(d)
}

// IncrProcessed increments the completed-file counter.
func (bs *BatchStats) IncrProcessed() {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	bs.processed++
}

// IncrFailed increments the failed-file counter.
func (bs *BatchStats) IncrFailed() {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	bs.failed++
}

// LatencyPercentiles holds p50 and p95 values for a pipeline stage.
type LatencyPercentiles struct {
	P50 time.Duration
	P95 time.Duration
}

// Snapshot captures a point-in-time view of all batch statistics.
type Snapshot struct {
	Extraction LatencyPercentiles
	Synthesis  LatencyPercentiles
	Write      LatencyPercentiles

	// RTFMean and RTFStd summarise the real-time factors of all synthesis
	// calls so far. RTFStd is the population standard deviation.
	RTFMean float64
	RTFStd  float64

	Processed int64
	Failed    int64
}

// Snapshot returns a point-in-time view of all batch statistics.
func (bs *BatchStats) Snapshot() Snapshot {
	bs.mu.Lock()
	defer bs.mu.Unlock()

	mean, std := meanStd(bs.rtfs)
	return Snapshot{
		Extraction: stagePercentiles(&bs.extraction),
		Synthesis:  stagePercentiles(&bs.synthesis),
		Write:      stagePercentiles(&bs.write),
		RTFMean:    mean,
		RTFStd:     std,
		Processed:  bs.processed,
		Failed:     bs.failed,
	}
}

// meanStd computes the mean and population standard deviation of xs.
func meanStd(xs []float64) (mean, std float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))
	for _, x := range xs {
		d := x - mean
		std += d * d
	}
	return mean, math.Sqrt(std / float64(len(xs)))
}

// ring is a bounded buffer keeping the most recent len(data) samples.
type ring[T cmp.Ordered] struct {
	data []T
	pos  int
	full bool
}

func newRing[T cmp.Ordered](size int) ring[T] {
	return ring[T]{data: make([]T, size)}
}

func (r *ring[T]) add(v T) {
	r.data[r.pos] = v
	r.pos++
	if r.pos == len(r.data) {
		r.pos = 0
		r.full = true
	}
}

// sorted returns a copy of the retained samples in ascending order.
func (r *ring[T]) sorted() []T {
	n := r.pos
	if r.full {
		n = len(r.data)
	}
	out := make([]T, n)
	copy(out, r.data[:n])
	slices.Sort(out)
	return out
}

// nearestRank returns the value at percentile p (0.0-1.0] of an ascending
// slice, or the zero value for an empty one.
func nearestRank[T cmp.Ordered](sorted []T, p float64) T {
	if len(sorted) == 0 {
		var zero T
		return zero
	}
	idx := int(math.Ceil(p*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	return sorted[idx]
}

func stagePercentiles(r *ring[time.Duration]) LatencyPercentiles {
	sorted := r.sorted()
	if len(sorted) == 0 {
		return LatencyPercentiles{}
	}
	return LatencyPercentiles{
		P50: nearestRank(sorted, 0.50),
		P95: nearestRank(sorted, 0.95),
	}
}
