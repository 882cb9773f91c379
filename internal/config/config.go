// Package config provides the configuration schema and loader for the
// wavegrain synthesis pipeline.
package config

import (
	"fmt"

	"github.com/MrWong99/wavegrain/pkg/diffusion"
	"github.com/MrWong99/wavegrain/pkg/mel"
)

// LogLevel controls log verbosity for the wavegrain tools.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure for wavegrain.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	Data      DataConfig      `yaml:"data"`
	Training  TrainingConfig  `yaml:"training"`
	Inference InferenceConfig `yaml:"inference"`
}

// DataConfig holds the feature-extraction parameters shared by every stage of
// the pipeline. Extraction and synthesis must agree on all of them.
type DataConfig struct {
	// SampleRate is the pipeline sample rate in Hz. Files at any other rate
	// are rejected.
	SampleRate int `yaml:"sample_rate"`

	// NFFT is the FFT size of the analysis transform. Must be a power of two.
	NFFT int `yaml:"n_fft"`

	// WinLength is the Hann window length. Defaults to n_fft.
	WinLength int `yaml:"win_length"`

	// HopLength is the analysis stride in samples.
	HopLength int `yaml:"hop_length"`

	// FMin and FMax bound the mel filterbank range in Hz.
	// FMax defaults to sample_rate / 2.
	FMin float64 `yaml:"f_min"`
	FMax float64 `yaml:"f_max"`

	// NMels is the number of mel bands.
	NMels int `yaml:"n_mels"`

	// Eps is the magnitude floor applied before log compression.
	// Defaults to 1e-10.
	Eps float64 `yaml:"eps"`

	// RemoveLastFrame drops the trailing analysis frame so a hop-aligned
	// waveform of length L yields exactly L / hop_length frames.
	RemoveLastFrame bool `yaml:"remove_last_frame"`
}

// MelConfig maps the data section onto the extractor configuration.
func (d DataConfig) MelConfig() mel.Config {
	return mel.Config{
		SampleRate: d.SampleRate,
		NFFT:       d.NFFT,
		WinLength:  d.WinLength,
		HopLength:  d.HopLength,
		FMin:       d.FMin,
		FMax:       d.FMax,
		NMels:      d.NMels,
		Eps:        d.Eps,
		RemoveLast: d.RemoveLastFrame,
	}
}

// ScheduleConfig describes a noise schedule as a derivation rule.
type ScheduleConfig struct {
	// NIter is the number of denoising steps.
	NIter int `yaml:"n_iter"`

	// BetasRange is the two-element [start, end] beta range.
	BetasRange []float64 `yaml:"betas_range"`

	// Interpolation selects the law mapping the range onto per-step betas.
	// Defaults to linear.
	Interpolation diffusion.Interpolation `yaml:"interpolation"`
}

// Build derives the schedule described by s.
func (s ScheduleConfig) Build() (*diffusion.Schedule, error) {
	if len(s.BetasRange) != 2 {
		return nil, fmt.Errorf("config: noise schedule needs a [start, end] betas_range, got %d values", len(s.BetasRange))
	}
	law := s.Interpolation
	if law == "" {
		law = diffusion.InterpLinear
	}
	return diffusion.NewSchedule(s.NIter, s.BetasRange[0], s.BetasRange[1], law)
}

// TrainingConfig holds the parameters of training-time data preparation.
type TrainingConfig struct {
	// SegmentLength is the fixed crop length in samples for training items.
	SegmentLength int `yaml:"segment_length"`

	// NoiseSchedule is the schedule used during training.
	NoiseSchedule ScheduleConfig `yaml:"noise_schedule"`
}

// InferenceConfig holds batch-synthesis settings.
type InferenceConfig struct {
	// Workers bounds how many files are synthesized concurrently.
	// Zero or negative means one worker per CPU.
	Workers int `yaml:"workers"`

	// NoiseSchedule is the schedule used during synthesis. Typically much
	// shorter than the training schedule.
	NoiseSchedule ScheduleConfig `yaml:"noise_schedule"`

	// StoreIntermediate records the estimate after every denoising step for
	// diagnostic inspection. Memory-hungry; off by default.
	StoreIntermediate bool `yaml:"store_intermediate"`
}
