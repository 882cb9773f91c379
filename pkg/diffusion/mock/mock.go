// Package mock provides a test double for the diffusion.Refiner interface.
//
// Use Refiner to script refinement behaviour and to verify the exact step
// sequence the synthesis driver presents to the external model.
//
// Example:
//
//	r := &mock.Refiner{}
//	d, _ := diffusion.NewDriver(r, 80, 256, 22050)
//	_, _ = d.Synthesize(ctx, cond, sched)
//	steps := r.Steps() // descriptors in invocation order
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/wavegrain/pkg/diffusion"
	"github.com/MrWong99/wavegrain/pkg/mel"
)

// RefineCall records a single invocation of Refine.
type RefineCall struct {
	// Ctx is the context passed to Refine.
	Ctx context.Context
	// EstimateLen is the length of the incoming estimate.
	EstimateLen int
	// Cond is the conditioning spectrogram passed to Refine.
	Cond *mel.Spectrogram
	// Step is the step descriptor passed to Refine.
	Step diffusion.Step
}

// Refiner is a mock implementation of diffusion.Refiner. The zero value
// returns every estimate unchanged and records all calls.
type Refiner struct {
	mu sync.Mutex

	// --- Configurable behaviour ---

	// Transform, if non-nil, maps the incoming estimate to the returned one.
	// When nil the estimate is returned unchanged (identity refiner).
	// The incoming slice may be mutated or returned directly.
	Transform func(estimate []float64, step diffusion.Step) []float64

	// Err, if non-nil, is returned from Refine on the call numbered FailAt
	// (1-based). A FailAt of 0 with a non-nil Err fails every call.
	Err    error
	FailAt int

	// --- Call records ---

	// RefineCalls records every call to Refine in order.
	RefineCalls []RefineCall

	// Released records every conditioning spectrogram handed back through
	// Release, in order.
	Released []*mel.Spectrogram
}

// Refine records the call and applies the configured behaviour.
func (r *Refiner) Refine(ctx context.Context, estimate []float64, cond *mel.Spectrogram, step diffusion.Step) ([]float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.RefineCalls = append(r.RefineCalls, RefineCall{
		Ctx:         ctx,
		EstimateLen: len(estimate),
		Cond:        cond,
		Step:        step,
	})
	if r.Err != nil && (r.FailAt == 0 || len(r.RefineCalls) == r.FailAt) {
		return nil, r.Err
	}
	if r.Transform != nil {
		return r.Transform(estimate, step), nil
	}
	return estimate, nil
}

// Release records the released conditioning spectrogram.
func (r *Refiner) Release(cond *mel.Spectrogram) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Released = append(r.Released, cond)
}

// Calls returns the number of Refine invocations so far. Thread-safe.
func (r *Refiner) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.RefineCalls)
}

// Steps returns the step descriptors in invocation order. Thread-safe.
func (r *Refiner) Steps() []diffusion.Step {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]diffusion.Step, len(r.RefineCalls))
	for i, c := range r.RefineCalls {
		out[i] = c.Step
	}
	return out
}

// Reset clears all recorded calls. Thread-safe.
func (r *Refiner) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.RefineCalls = nil
	r.Released = nil
}

// Ensure Refiner implements the refiner contracts at compile time.
var (
	_ diffusion.Refiner      = (*Refiner)(nil)
	_ diffusion.CondReleaser = (*Refiner)(nil)
)
