// Package diffusion implements the iterative denoising side of the synthesis
// pipeline: the noise schedule builder and the synthesis driver that walks a
// schedule, invoking an external [Refiner] once per step.
package diffusion

import (
	"fmt"
	"math"
)

// Interpolation selects the law used to derive per-step beta values from a
// {start, end, steps} triple. The consumption contract is curve-agnostic:
// the driver treats every schedule identically regardless of how it was built.
type Interpolation string

const (
	// InterpLinear spaces betas linearly between start and end.
	InterpLinear Interpolation = "linear"

	// InterpQuadratic spaces the square roots of the betas linearly, giving a
	// schedule that grows slowly at first and accelerates toward the end.
	InterpQuadratic Interpolation = "quadratic"
)

// IsValid reports whether i is a recognised interpolation law.
func (i Interpolation) IsValid() bool {
	return i == InterpLinear || i == InterpQuadratic
}

// Step is one denoising step descriptor. It carries both the step's beta and
// the cumulative noise level so a refiner may consume either convention.
type Step struct {
	// Index is the step's position in the schedule, in [0, Len).
	Index int

	// Beta is the step's noise variance increment, in (0, 1).
	Beta float64

	// NoiseLevel is sqrt(∏_{j≤Index} (1−beta_j)) — the fraction of clean
	// signal remaining after the forward process has run through this step.
	// Strictly decreasing in Index.
	NoiseLevel float64
}

// Schedule is an immutable ordered sequence of denoising steps. Its length
// fully determines how many refiner invocations a synthesis call performs.
// Swap a driver's schedule only as a whole object; never mutate one.
type Schedule struct {
	steps []Step
}

// NewSchedule derives a schedule from {steps, start, end} using the given
// interpolation law. The derivation is deterministic and reproducible from
// these arguments alone. For start ≤ end the beta sequence is monotonically
// non-decreasing.
func NewSchedule(steps int, start, end float64, law Interpolation) (*Schedule, error) {
	if steps <= 0 {
		return nil, fmt.Errorf("diffusion: schedule needs at least one step, got %d", steps)
	}
	if start <= 0 || start >= 1 || end <= 0 || end >= 1 {
		return nil, fmt.Errorf("diffusion: betas must lie in (0, 1), got range [%g, %g]", start, end)
	}
	if start > end {
		return nil, fmt.Errorf("diffusion: beta range start %g exceeds end %g", start, end)
	}
	if !law.IsValid() {
		return nil, fmt.Errorf("diffusion: unknown interpolation %q", law)
	}

	betas := make([]float64, steps)
	if steps == 1 {
		betas[0] = start
	} else {
		for i := range betas {
			frac := float64(i) / float64(steps-1)
			switch law {
			case InterpQuadratic:
				v := math.Sqrt(start) + (math.Sqrt(end)-math.Sqrt(start))*frac
				betas[i] = v * v
			default:
				betas[i] = start + (end-start)*frac
			}
		}
	}
	return fromBetas(betas)
}

// FromBetas builds a schedule from a pre-computed external beta sequence.
// The resulting schedule is consumed identically to one built by
// [NewSchedule].
func FromBetas(betas []float64) (*Schedule, error) {
	if len(betas) == 0 {
		return nil, fmt.Errorf("diffusion: empty beta sequence")
	}
	for i, b := range betas {
		if math.IsNaN(b) || b <= 0 || b >= 1 {
			return nil, fmt.Errorf("diffusion: beta[%d] = %g is outside (0, 1)", i, b)
		}
	}
	return fromBetas(betas)
}

func fromBetas(betas []float64) (*Schedule, error) {
	steps := make([]Step, len(betas))
	cum := 1.0
	for i, b := range betas {
		cum *= 1 - b
		steps[i] = Step{Index: i, Beta: b, NoiseLevel: math.Sqrt(cum)}
	}
	return &Schedule{steps: steps}, nil
}

// Len returns the number of steps.
func (s *Schedule) Len() int {
	return len(s.steps)
}

// Step returns the descriptor at index i.
func (s *Schedule) Step(i int) Step {
	return s.steps[i]
}

// Betas returns a copy of the per-step beta values in index order.
func (s *Schedule) Betas() []float64 {
	out := make([]float64, len(s.steps))
	for i, st := range s.steps {
		out[i] = st.Beta
	}
	return out
}
