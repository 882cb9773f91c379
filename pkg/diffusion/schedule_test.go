package diffusion_test

import (
	"reflect"
	"testing"

	"github.com/MrWong99/wavegrain/pkg/diffusion"
)

func TestNewScheduleMonotonic(t *testing.T) {
	t.Parallel()
	for _, law := range []diffusion.Interpolation{diffusion.InterpLinear, diffusion.InterpQuadratic} {
		law := law
		t.Run(string(law), func(t *testing.T) {
			t.Parallel()
			sched, err := diffusion.NewSchedule(50, 1e-6, 1e-2, law)
			if err != nil {
				t.Fatalf("NewSchedule: %v", err)
			}
			if sched.Len() != 50 {
				t.Fatalf("Len = %d, want 50", sched.Len())
			}
			if got := sched.Step(0).Beta; got != 1e-6 {
				t.Errorf("first beta = %g, want 1e-6", got)
			}
			if got := sched.Step(49).Beta; got != 1e-2 {
				t.Errorf("last beta = %g, want 1e-2", got)
			}
			for i := 1; i < sched.Len(); i++ {
				if sched.Step(i).Beta < sched.Step(i-1).Beta {
					t.Fatalf("betas decrease at step %d", i)
				}
				if sched.Step(i).NoiseLevel >= sched.Step(i-1).NoiseLevel {
					t.Fatalf("noise level does not strictly decrease at step %d", i)
				}
			}
			for i := 0; i < sched.Len(); i++ {
				nl := sched.Step(i).NoiseLevel
				if nl <= 0 || nl >= 1 {
					t.Fatalf("noise level at step %d = %g, want (0, 1)", i, nl)
				}
				if sched.Step(i).Index != i {
					t.Fatalf("step %d carries index %d", i, sched.Step(i).Index)
				}
			}
		})
	}
}

func TestFromBetasMatchesBuilder(t *testing.T) {
	t.Parallel()
	built, err := diffusion.NewSchedule(12, 1e-4, 0.05, diffusion.InterpLinear)
	if err != nil {
		t.Fatalf("NewSchedule: %v", err)
	}
	external, err := diffusion.FromBetas(built.Betas())
	if err != nil {
		t.Fatalf("FromBetas: %v", err)
	}
	if external.Len() != built.Len() {
		t.Fatalf("Len = %d, want %d", external.Len(), built.Len())
	}
	for i := 0; i < built.Len(); i++ {
		if !reflect.DeepEqual(external.Step(i), built.Step(i)) {
			t.Fatalf("step %d differs between construction paths", i)
		}
	}
}

func TestScheduleValidation(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name  string
		steps int
		start float64
		end   float64
		law   diffusion.Interpolation
	}{
		{"zero steps", 0, 1e-6, 1e-2, diffusion.InterpLinear},
		{"start at zero", 10, 0, 1e-2, diffusion.InterpLinear},
		{"end above one", 10, 1e-6, 1.5, diffusion.InterpLinear},
		{"inverted range", 10, 1e-2, 1e-6, diffusion.InterpLinear},
		{"unknown law", 10, 1e-6, 1e-2, diffusion.Interpolation("cubic")},
	}
	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()
			if _, err := diffusion.NewSchedule(c.steps, c.start, c.end, c.law); err == nil {
				t.Fatalf("expected error for %s, got nil", c.name)
			}
		})
	}

	if _, err := diffusion.FromBetas(nil); err == nil {
		t.Fatal("expected error for empty beta sequence, got nil")
	}
	if _, err := diffusion.FromBetas([]float64{0.1, 1.2}); err == nil {
		t.Fatal("expected error for out-of-range beta, got nil")
	}
}

func TestSingleStepSchedule(t *testing.T) {
	t.Parallel()
	sched, err := diffusion.NewSchedule(1, 0.3, 0.9, diffusion.InterpLinear)
	if err != nil {
		t.Fatalf("NewSchedule: %v", err)
	}
	if sched.Len() != 1 {
		t.Fatalf("Len = %d, want 1", sched.Len())
	}
	if got := sched.Step(0).Beta; got != 0.3 {
		t.Errorf("single-step beta = %g, want the range start 0.3", got)
	}
}
