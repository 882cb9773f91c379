package diffusion_test

import (
	"context"
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/MrWong99/wavegrain/pkg/diffusion"
	"github.com/MrWong99/wavegrain/pkg/diffusion/mock"
	"github.com/MrWong99/wavegrain/pkg/mel"
)

func testCond(bands, frames int) *mel.Spectrogram {
	data := make([][]float64, bands)
	for b := range data {
		data[b] = make([]float64, frames)
		for f := range data[b] {
			data[b][f] = -float64(b+f) / 10
		}
	}
	return &mel.Spectrogram{Data: data}
}

func testSchedule(t *testing.T, steps int) *diffusion.Schedule {
	t.Helper()
	sched, err := diffusion.NewSchedule(steps, 1e-6, 1e-2, diffusion.InterpLinear)
	if err != nil {
		t.Fatalf("NewSchedule: %v", err)
	}
	return sched
}

func TestSynthesizeStepOrder(t *testing.T) {
	t.Parallel()
	r := &mock.Refiner{}
	d, err := diffusion.NewDriver(r, 4, 16, 22050)
	if err != nil {
		t.Fatalf("NewDriver: %v", err)
	}
	cond := testCond(4, 8)
	sched := testSchedule(t, 10)

	res, err := d.Synthesize(context.Background(), cond, sched)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if r.Calls() != sched.Len() {
		t.Fatalf("refiner called %d times, want %d", r.Calls(), sched.Len())
	}
	for i, step := range r.Steps() {
		if want := sched.Len() - 1 - i; step.Index != want {
			t.Fatalf("call %d saw step index %d, want %d", i, step.Index, want)
		}
	}
	wantLen := cond.Frames() * 16
	if len(res.Waveform.Data) != wantLen {
		t.Errorf("waveform has %d samples, want frames*hop = %d", len(res.Waveform.Data), wantLen)
	}
	if res.Waveform.Rate != 22050 {
		t.Errorf("waveform rate = %d, want 22050", res.Waveform.Rate)
	}
	if res.States != nil {
		t.Errorf("Synthesize recorded %d states, want none", len(res.States))
	}
	if res.RTF < 0 {
		t.Errorf("RTF = %g, want non-negative", res.RTF)
	}
}

func TestSynthesizeShapeMismatch(t *testing.T) {
	t.Parallel()
	r := &mock.Refiner{}
	d, err := diffusion.NewDriver(r, 4, 16, 22050)
	if err != nil {
		t.Fatalf("NewDriver: %v", err)
	}
	sched := testSchedule(t, 5)

	cases := []struct {
		name string
		cond *mel.Spectrogram
	}{
		{"nil conditioning", nil},
		{"wrong band count", testCond(7, 8)},
		{"zero frames", testCond(4, 0)},
	}
	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()
			if _, err := d.Synthesize(context.Background(), c.cond, sched); !errors.Is(err, diffusion.ErrShapeMismatch) {
				t.Fatalf("err = %v, want ErrShapeMismatch", err)
			}
		})
	}
	if r.Calls() != 0 {
		t.Fatalf("refiner called %d times on rejected conditioning, want 0", r.Calls())
	}
}

func TestSynthesizeNumericInstability(t *testing.T) {
	t.Parallel()
	r := &mock.Refiner{
		Transform: func(estimate []float64, step diffusion.Step) []float64 {
			if step.Index == 2 {
				estimate[3] = math.NaN()
			}
			return estimate
		},
	}
	d, err := diffusion.NewDriver(r, 4, 16, 22050)
	if err != nil {
		t.Fatalf("NewDriver: %v", err)
	}

	_, err = d.Synthesize(context.Background(), testCond(4, 8), testSchedule(t, 10))
	if !errors.Is(err, diffusion.ErrNumericInstability) {
		t.Fatalf("err = %v, want ErrNumericInstability", err)
	}
	// The failure surfaces on the step that produced the NaN: indices 9..2
	// are 8 calls.
	if r.Calls() != 8 {
		t.Errorf("refiner called %d times, want 8", r.Calls())
	}
}

func TestSynthesizeRefinerError(t *testing.T) {
	t.Parallel()
	boom := errors.New("model backend unavailable")
	r := &mock.Refiner{Err: boom, FailAt: 3}
	d, err := diffusion.NewDriver(r, 4, 16, 22050)
	if err != nil {
		t.Fatalf("NewDriver: %v", err)
	}

	_, err = d.Synthesize(context.Background(), testCond(4, 8), testSchedule(t, 10))
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped refiner error", err)
	}
	if r.Calls() != 3 {
		t.Errorf("refiner called %d times, want 3", r.Calls())
	}
}

func TestSynthesizeCancellation(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	r := &mock.Refiner{
		Transform: func(estimate []float64, step diffusion.Step) []float64 {
			if step.Index == 6 {
				cancel()
			}
			return estimate
		},
	}
	d, err := diffusion.NewDriver(r, 4, 16, 22050)
	if err != nil {
		t.Fatalf("NewDriver: %v", err)
	}

	_, err = d.Synthesize(ctx, testCond(4, 8), testSchedule(t, 10))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	// Cancelled during step index 6, noticed before step index 5 runs:
	// indices 9..6 are 4 calls.
	if r.Calls() != 4 {
		t.Errorf("refiner called %d times after cancellation, want 4", r.Calls())
	}
}

func TestSynthesizeReleasesConditioning(t *testing.T) {
	t.Parallel()
	cond := testCond(4, 8)
	sched := testSchedule(t, 5)

	t.Run("after success", func(t *testing.T) {
		t.Parallel()
		r := &mock.Refiner{}
		d, err := diffusion.NewDriver(r, 4, 16, 22050)
		if err != nil {
			t.Fatalf("NewDriver: %v", err)
		}
		if _, err := d.Synthesize(context.Background(), cond, sched); err != nil {
			t.Fatalf("Synthesize: %v", err)
		}
		if len(r.Released) != 1 || r.Released[0] != cond {
			t.Fatalf("released %v, want exactly the conditioning once", r.Released)
		}
	})

	t.Run("after refiner error", func(t *testing.T) {
		t.Parallel()
		r := &mock.Refiner{Err: errors.New("backend gone"), FailAt: 2}
		d, err := diffusion.NewDriver(r, 4, 16, 22050)
		if err != nil {
			t.Fatalf("NewDriver: %v", err)
		}
		if _, err := d.Synthesize(context.Background(), cond, sched); err == nil {
			t.Fatal("expected refiner error, got nil")
		}
		if len(r.Released) != 1 || r.Released[0] != cond {
			t.Fatalf("released %v, want exactly the conditioning once", r.Released)
		}
	})
}

func TestSynthesizeTraceMatchesPlainRun(t *testing.T) {
	t.Parallel()
	cond := testCond(4, 8)
	sched := testSchedule(t, 10)

	plainRefiner := &mock.Refiner{}
	plain, err := diffusion.NewDriver(plainRefiner, 4, 16, 22050, diffusion.WithNoiseSeed(1))
	if err != nil {
		t.Fatalf("NewDriver: %v", err)
	}
	tracedRefiner := &mock.Refiner{}
	traced, err := diffusion.NewDriver(tracedRefiner, 4, 16, 22050, diffusion.WithNoiseSeed(1))
	if err != nil {
		t.Fatalf("NewDriver: %v", err)
	}

	plainRes, err := plain.Synthesize(context.Background(), cond, sched)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	tracedRes, err := traced.SynthesizeTrace(context.Background(), cond, sched)
	if err != nil {
		t.Fatalf("SynthesizeTrace: %v", err)
	}

	if len(tracedRes.States) != sched.Len() {
		t.Fatalf("trace recorded %d states, want %d", len(tracedRes.States), sched.Len())
	}
	if !reflect.DeepEqual(plainRes.Waveform.Data, tracedRes.Waveform.Data) {
		t.Error("tracing changed the synthesized waveform")
	}
	last := tracedRes.States[len(tracedRes.States)-1]
	if !reflect.DeepEqual(last, tracedRes.Waveform.Data) {
		t.Error("final recorded state differs from the returned waveform")
	}
}

func TestSynthesizeSeededDeterminism(t *testing.T) {
	t.Parallel()
	cond := testCond(4, 8)
	sched := testSchedule(t, 5)

	runOnce := func() []float64 {
		d, err := diffusion.NewDriver(&mock.Refiner{}, 4, 16, 22050, diffusion.WithNoiseSeed(42))
		if err != nil {
			t.Fatalf("NewDriver: %v", err)
		}
		res, err := d.Synthesize(context.Background(), cond, sched)
		if err != nil {
			t.Fatalf("Synthesize: %v", err)
		}
		return res.Waveform.Data
	}

	if !reflect.DeepEqual(runOnce(), runOnce()) {
		t.Error("seeded synthesis is not reproducible")
	}
}

func TestNewDriverValidation(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name       string
		refiner    diffusion.Refiner
		nMels      int
		hopLength  int
		sampleRate int
	}{
		{"nil refiner", nil, 80, 256, 22050},
		{"zero mel bands", &mock.Refiner{}, 0, 256, 22050},
		{"negative hop", &mock.Refiner{}, 80, -1, 22050},
		{"zero sample rate", &mock.Refiner{}, 80, 256, 0},
	}
	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()
			if _, err := diffusion.NewDriver(c.refiner, c.nMels, c.hopLength, c.sampleRate); err == nil {
				t.Fatalf("expected error for %s, got nil", c.name)
			}
		})
	}
}

func TestSynthesizeRejectsEmptySchedule(t *testing.T) {
	t.Parallel()
	d, err := diffusion.NewDriver(&mock.Refiner{}, 4, 16, 22050)
	if err != nil {
		t.Fatalf("NewDriver: %v", err)
	}
	if _, err := d.Synthesize(context.Background(), testCond(4, 8), nil); err == nil {
		t.Fatal("expected error for nil schedule, got nil")
	}
}
