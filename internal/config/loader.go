package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.LogLevel != "" && !cfg.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("log_level %q is invalid; valid values: debug, info, warn, error", cfg.LogLevel))
	}

	// Data
	d := cfg.Data
	if d.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("data.sample_rate must be positive, got %d", d.SampleRate))
	}
	if d.NFFT <= 0 || d.NFFT&(d.NFFT-1) != 0 {
		errs = append(errs, fmt.Errorf("data.n_fft must be a positive power of two, got %d", d.NFFT))
	} else {
		if d.HopLength <= 0 || d.HopLength > d.NFFT {
			errs = append(errs, fmt.Errorf("data.hop_length %d is out of range (0, n_fft]", d.HopLength))
		}
		if d.WinLength != 0 && (d.WinLength < 0 || d.WinLength > d.NFFT) {
			errs = append(errs, fmt.Errorf("data.win_length %d is out of range (0, n_fft]", d.WinLength))
		}
	}
	if d.NMels <= 0 {
		errs = append(errs, fmt.Errorf("data.n_mels must be positive, got %d", d.NMels))
	}
	if d.FMin < 0 {
		errs = append(errs, fmt.Errorf("data.f_min must be non-negative, got %g", d.FMin))
	}
	if d.SampleRate > 0 {
		nyquist := float64(d.SampleRate) / 2
		if d.FMax != 0 && (d.FMax <= d.FMin || d.FMax > nyquist) {
			errs = append(errs, fmt.Errorf("data.f_max %g is out of range (f_min, %g]", d.FMax, nyquist))
		}
	}
	if d.Eps < 0 {
		errs = append(errs, fmt.Errorf("data.eps must be non-negative, got %g", d.Eps))
	}

	// Training
	if cfg.Training.SegmentLength != 0 {
		if cfg.Training.SegmentLength < 0 {
			errs = append(errs, fmt.Errorf("training.segment_length must be positive, got %d", cfg.Training.SegmentLength))
		} else if d.HopLength > 0 && cfg.Training.SegmentLength%d.HopLength != 0 {
			slog.Warn("training segment length is not a multiple of the hop length; extracted features will not align with the waveform",
				"segment_length", cfg.Training.SegmentLength,
				"hop_length", d.HopLength,
			)
		}
	}
	errs = append(errs, validateSchedule("training.noise_schedule", cfg.Training.NoiseSchedule)...)

	// Inference
	errs = append(errs, validateSchedule("inference.noise_schedule", cfg.Inference.NoiseSchedule)...)
	if cfg.Inference.Workers < 0 {
		slog.Warn("inference.workers is negative; one worker per CPU will be used", "workers", cfg.Inference.Workers)
	}

	return errors.Join(errs...)
}

// validateSchedule checks one noise-schedule block. A fully zero block is
// accepted so that e.g. a pure-extraction config can omit the schedules.
func validateSchedule(prefix string, s ScheduleConfig) []error {
	if s.NIter == 0 && len(s.BetasRange) == 0 && s.Interpolation == "" {
		return nil
	}

	var errs []error
	if s.NIter <= 0 {
		errs = append(errs, fmt.Errorf("%s.n_iter must be positive, got %d", prefix, s.NIter))
	}
	if len(s.BetasRange) != 2 {
		errs = append(errs, fmt.Errorf("%s.betas_range must hold exactly [start, end], got %d values", prefix, len(s.BetasRange)))
	} else {
		start, end := s.BetasRange[0], s.BetasRange[1]
		if start <= 0 || start >= 1 || end <= 0 || end >= 1 {
			errs = append(errs, fmt.Errorf("%s.betas_range values must lie in (0, 1), got [%g, %g]", prefix, start, end))
		} else if start > end {
			errs = append(errs, fmt.Errorf("%s.betas_range start %g exceeds end %g", prefix, start, end))
		}
	}
	if s.Interpolation != "" && !s.Interpolation.IsValid() {
		errs = append(errs, fmt.Errorf("%s.interpolation %q is invalid; valid values: linear, quadratic", prefix, s.Interpolation))
	}
	return errs
}
