package diffusion_test

import (
	"math"
	"testing"
	"time"

	"github.com/MrWong99/wavegrain/pkg/diffusion"
)

func TestRTF(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name    string
		samples int
		rate    int
		elapsed time.Duration
		want    float64
	}{
		{"twice real time", 22050, 22050, 500 * time.Millisecond, 2.0},
		{"exactly real time", 44100, 22050, 2 * time.Second, 1.0},
		{"half real time", 22050, 22050, 2 * time.Second, 0.5},
		{"zero elapsed", 22050, 22050, 0, 0},
		{"zero samples", 0, 22050, time.Second, 0},
		{"zero rate", 22050, 0, time.Second, 0},
	}
	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()
			got := diffusion.RTF(c.samples, c.rate, c.elapsed)
			if math.Abs(got-c.want) > 1e-12 {
				t.Errorf("RTF(%d, %d, %v) = %g, want %g", c.samples, c.rate, c.elapsed, got, c.want)
			}
		})
	}
}
