package diffusion

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/MrWong99/wavegrain/pkg/audio"
	"github.com/MrWong99/wavegrain/pkg/mel"
)

// Refiner is the external denoising model step: it maps a noisy waveform
// estimate, a conditioning spectrogram, and a per-step noise descriptor to a
// refined estimate of the same length.
//
// Implementations must be safe for concurrent use — the batch runner invokes
// one synthesis call per worker, and all of them share a single refiner. Any
// implementation satisfying the contract (a neural network binding, a
// classical signal-processing stand-in, a test mock) is substitutable.
//
// Only the [Driver] may call a refiner; the driver is the sole owner of the
// step-ordering contract.
type Refiner interface {
	// Refine returns an updated estimate. The returned slice must have the
	// same length as estimate and must be a slice the caller may own (the
	// driver hands it straight back on the next step).
	Refine(ctx context.Context, estimate []float64, cond *mel.Spectrogram, step Step) ([]float64, error)
}

// CondReleaser is implemented by refiners that keep per-conditioning state
// between steps, such as a cached spectral target. The driver calls Release
// exactly once per synthesis call, after the last refiner invocation for that
// conditioning, whether the call succeeded or not. A refiner without
// per-conditioning state simply does not implement it.
type CondReleaser interface {
	Release(cond *mel.Spectrogram)
}

// Sentinel errors for the failure taxonomy of a synthesis call.
var (
	// ErrShapeMismatch reports a conditioning spectrogram that is
	// incompatible with the driver's configured mel band count. Raised before
	// any refiner invocation.
	ErrShapeMismatch = errors.New("diffusion: conditioning shape mismatch")

	// ErrNumericInstability reports a NaN or ±Inf produced mid-synthesis.
	// The affected call fails outright; the driver never clamps.
	ErrNumericInstability = errors.New("diffusion: non-finite value in estimate")
)

// Driver runs the reverse denoising loop. It is configured once with the mel
// band count, hop length and sample rate of the pipeline, and is safe for
// concurrent use: every synthesis call owns its buffers exclusively.
type Driver struct {
	refiner    Refiner
	nMels      int
	hopLength  int
	sampleRate int
	noiseSeed  int64
	seeded     bool
}

// Option configures a [Driver].
type Option func(*Driver)

// WithNoiseSeed fixes the seed of the initial-noise source, making every
// synthesis call start from the same noise realisation. Without it each call
// draws a fresh seed. Intended for tests and reproducibility studies.
func WithNoiseSeed(seed int64) Option {
	return func(d *Driver) {
		d.noiseSeed = seed
		d.seeded = true
	}
}

// NewDriver creates a synthesis driver around the given refiner.
func NewDriver(r Refiner, nMels, hopLength, sampleRate int, opts ...Option) (*Driver, error) {
	if r == nil {
		return nil, fmt.Errorf("diffusion: refiner must not be nil")
	}
	if nMels <= 0 {
		return nil, fmt.Errorf("diffusion: n_mels must be positive, got %d", nMels)
	}
	if hopLength <= 0 {
		return nil, fmt.Errorf("diffusion: hop_length must be positive, got %d", hopLength)
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("diffusion: sample_rate must be positive, got %d", sampleRate)
	}
	d := &Driver{refiner: r, nMels: nMels, hopLength: hopLength, sampleRate: sampleRate}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Result is the outcome of one synthesis call.
type Result struct {
	// Waveform is the synthesized audio at the driver's sample rate.
	Waveform audio.Sample

	// Elapsed is the wall-clock cost of the full denoising loop, including
	// initial-noise construction. File I/O is never part of this window.
	Elapsed time.Duration

	// RTF is the real-time factor: audio seconds per wall-clock second.
	// Values above 1 mean faster than real time.
	RTF float64

	// States holds a copy of the estimate after every step, oldest first.
	// Populated only by [Driver.SynthesizeTrace]; recording states never
	// changes the numeric result.
	States [][]float64
}

// Synthesize runs the full reverse loop over sched, conditioned on cond, and
// returns the final waveform with timing. The refiner is invoked exactly
// sched.Len() times, on step indices Len()−1 down to 0.
//
// Cancellation is cooperative: ctx is checked once per step, never mid-step,
// bounding cancellation latency to one step's cost.
func (d *Driver) Synthesize(ctx context.Context, cond *mel.Spectrogram, sched *Schedule) (*Result, error) {
	return d.synthesize(ctx, cond, sched, false)
}

// SynthesizeTrace is [Driver.Synthesize] with intermediate-state recording
// for diagnostic inspection.
func (d *Driver) SynthesizeTrace(ctx context.Context, cond *mel.Spectrogram, sched *Schedule) (*Result, error) {
	return d.synthesize(ctx, cond, sched, true)
}

func (d *Driver) synthesize(ctx context.Context, cond *mel.Spectrogram, sched *Schedule, trace bool) (*Result, error) {
	// Precondition checks happen before the loop and before the clock starts.
	if cond == nil || cond.Bands() == 0 {
		return nil, fmt.Errorf("%w: empty conditioning spectrogram", ErrShapeMismatch)
	}
	if cond.Bands() != d.nMels {
		return nil, fmt.Errorf("%w: conditioning has %d mel bands, driver is configured for %d",
			ErrShapeMismatch, cond.Bands(), d.nMels)
	}
	if sched == nil || sched.Len() == 0 {
		return nil, fmt.Errorf("diffusion: nil or empty schedule")
	}

	n := cond.Frames() * d.hopLength
	if n == 0 {
		return nil, fmt.Errorf("%w: conditioning has zero frames", ErrShapeMismatch)
	}

	// Per-conditioning refiner state must not outlive the call, or a batch
	// over many files would accumulate one entry per file.
	if rel, ok := d.refiner.(CondReleaser); ok {
		defer rel.Release(cond)
	}

	seed := d.noiseSeed
	if !d.seeded {
		seed = rand.Int63()
	}

	var states [][]float64
	start := time.Now()

	// Initial estimate: unit Gaussian noise, one sample per hop per frame.
	rng := rand.New(rand.NewSource(seed))
	est := make([]float64, n)
	for i := range est {
		est[i] = rng.NormFloat64()
	}

	for i := sched.Len() - 1; i >= 0; i-- {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("diffusion: synthesis cancelled at step %d: %w", i, ctx.Err())
		default:
		}

		step := sched.Step(i)
		next, err := d.refiner.Refine(ctx, est, cond, step)
		if err != nil {
			return nil, fmt.Errorf("diffusion: refiner failed at step %d: %w", i, err)
		}
		if len(next) != n {
			return nil, fmt.Errorf("diffusion: refiner returned %d samples at step %d, want %d", len(next), i, n)
		}
		if k := firstNonFinite(next); k >= 0 {
			return nil, fmt.Errorf("%w: sample %d at step %d", ErrNumericInstability, k, i)
		}
		est = next

		if trace {
			snapshot := make([]float64, n)
			copy(snapshot, est)
			states = append(states, snapshot)
		}
	}

	elapsed := time.Since(start)
	return &Result{
		Waveform: audio.Sample{Data: est, Rate: d.sampleRate},
		Elapsed:  elapsed,
		RTF:      RTF(n, d.sampleRate, elapsed),
		States:   states,
	}, nil
}

// firstNonFinite returns the index of the first NaN or ±Inf in x, or -1.
func firstNonFinite(x []float64) int {
	for i, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return i
		}
	}
	return -1
}
