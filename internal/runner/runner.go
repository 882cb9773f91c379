// Package runner orchestrates batch synthesis: it fans input files out over a
// bounded worker pool, runs extraction and the denoising loop per file, writes
// the results, and aggregates timing statistics.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/wavegrain/internal/observe"
	"github.com/MrWong99/wavegrain/internal/resilience"
	"github.com/MrWong99/wavegrain/pkg/audio"
	"github.com/MrWong99/wavegrain/pkg/diffusion"
	"github.com/MrWong99/wavegrain/pkg/mel"
)

// Runner drives the synthesis pipeline over a list of input files. Inputs may
// be audio files (features are extracted first) or precomputed .mel
// conditioning files.
//
// A failing file is recorded and skipped; only context cancellation aborts
// the whole batch.
type Runner struct {
	// Extractor computes conditioning features for audio inputs.
	Extractor *mel.Extractor

	// Driver runs the denoising loop.
	Driver *diffusion.Driver

	// Schedule is the noise schedule handed to every synthesis call.
	Schedule *diffusion.Schedule

	// Workers bounds concurrent file processing. Zero or negative means one
	// worker per CPU.
	Workers int

	// Retry configures file I/O retries.
	Retry resilience.RetryConfig

	// Metrics receives per-file observations. Nil disables recording.
	Metrics *observe.Metrics

	// OutputDir, when set, receives all output files. Otherwise outputs are
	// written next to their inputs.
	OutputDir string

	// StoreIntermediate records the estimate after every denoising step and
	// attaches it to the item result.
	StoreIntermediate bool
}

// ItemResult describes one successfully synthesized file.
type ItemResult struct {
	Path       string
	OutputPath string

	// Frames is the conditioning frame count; the output holds
	// Frames * hop_length samples.
	Frames int

	RTF        float64
	Extraction time.Duration
	Synthesis  time.Duration
	Write      time.Duration

	// States holds the per-step estimates when StoreIntermediate is set.
	States [][]float64
}

// ItemFailure pairs a failed input with its error.
type ItemFailure struct {
	Path string
	Err  error
}

// Report aggregates the outcome of one batch run.
type Report struct {
	Results  []ItemResult
	Failures []ItemFailure

	// Stats summarises stage latencies and real-time factors.
	Stats Snapshot
}

// Run processes all paths and returns the aggregated report. Per-file
// failures do not abort the batch; the error return is non-nil only when the
// context is cancelled or no file could be processed at all.
func (r *Runner) Run(ctx context.Context, paths []string) (*Report, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("runner: no input files")
	}

	workers := r.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	stats := NewBatchStats(len(paths))

	var (
		mu       sync.Mutex
		results  []ItemResult
		failures []ItemFailure
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, path := range paths {
		path := path
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := r.processOne(gctx, path, stats)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				// Cancellation aborts the batch; anything else is recorded
				// and the run continues.
				if gctx.Err() != nil {
					return gctx.Err()
				}
				slog.Error("file failed", "path", path, "error", err)
				stats.IncrFailed()
				r.recordFile(gctx, "failed")
				failures = append(failures, ItemFailure{Path: path, Err: err})
				return nil
			}
			stats.IncrProcessed()
			r.recordFile(gctx, "ok")
			results = append(results, *res)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("runner: batch aborted: %w", err)
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("runner: all %d files failed", len(paths))
	}

	return &Report{
		Results:  results,
		Failures: failures,
		Stats:    stats.Snapshot(),
	}, nil
}

func (r *Runner) processOne(ctx context.Context, path string, stats *BatchStats) (*ItemResult, error) {
	// The gauge spans the whole file, extraction included.
	if r.Metrics != nil {
		r.Metrics.ActiveWorkers.Add(ctx, 1)
		defer r.Metrics.ActiveWorkers.Add(ctx, -1)
	}

	cond, extraction, err := r.conditioning(ctx, path)
	if err != nil {
		return nil, err
	}
	stats.RecordExtraction(extraction)
	if r.Metrics != nil {
		r.Metrics.ExtractionDuration.Record(ctx, extraction.Seconds())
	}

	var res *diffusion.Result
	if r.StoreIntermediate {
		res, err = r.Driver.SynthesizeTrace(ctx, cond, r.Schedule)
	} else {
		res, err = r.Driver.Synthesize(ctx, cond, r.Schedule)
	}
	if err != nil {
		return nil, err
	}
	stats.RecordSynthesis(res.Elapsed, res.RTF)
	if r.Metrics != nil {
		r.Metrics.SynthesisDuration.Record(ctx, res.Elapsed.Seconds())
		r.Metrics.RTF.Record(ctx, res.RTF)
	}

	out := r.outputPath(path)
	writeStart := time.Now()
	err = resilience.Retry(ctx, r.Retry, func() error {
		return audio.SaveWav(out, res.Waveform)
	})
	if err != nil {
		return nil, err
	}
	write := time.Since(writeStart)
	stats.RecordWrite(write)
	if r.Metrics != nil {
		r.Metrics.WriteDuration.Record(ctx, write.Seconds())
	}

	slog.Info("file synthesized",
		"path", path,
		"output", out,
		"frames", cond.Frames(),
		"rtf", res.RTF,
	)
	return &ItemResult{
		Path:       path,
		OutputPath: out,
		Frames:     cond.Frames(),
		RTF:        res.RTF,
		Extraction: extraction,
		Synthesis:  res.Elapsed,
		Write:      write,
		States:     res.States,
	}, nil
}

// conditioning loads or computes the conditioning spectrogram for one input,
// returning it with the time spent.
func (r *Runner) conditioning(ctx context.Context, path string) (*mel.Spectrogram, time.Duration, error) {
	start := time.Now()

	if strings.EqualFold(filepath.Ext(path), ".mel") {
		cond, err := resilience.RetryWithResult(ctx, r.Retry, func() (*mel.Spectrogram, error) {
			return mel.ReadFile(path)
		})
		if err != nil {
			return nil, 0, err
		}
		return cond, time.Since(start), nil
	}

	sample, err := resilience.RetryWithResult(ctx, r.Retry, func() (audio.Sample, error) {
		return audio.Load(path)
	})
	if err != nil {
		return nil, 0, err
	}
	cfg := r.Extractor.Config()
	if err := sample.EnsureRate(cfg.SampleRate); err != nil {
		return nil, 0, fmt.Errorf("runner: %s: %w", path, err)
	}
	cond, err := r.Extractor.Extract(sample.PadAligned(cfg.HopLength))
	if err != nil {
		return nil, 0, err
	}
	return cond, time.Since(start), nil
}

// outputPath derives where the synthesized wav for path goes. Outputs never
// overwrite their input: a wav input without an output directory gets a
// ".gen.wav" suffix instead.
func (r *Runner) outputPath(path string) string {
	ext := filepath.Ext(path)
	if r.OutputDir != "" {
		base := strings.TrimSuffix(filepath.Base(path), ext) + ".wav"
		return filepath.Join(r.OutputDir, base)
	}
	out := strings.TrimSuffix(path, ext) + ".wav"
	if out == path {
		out = strings.TrimSuffix(path, ext) + ".gen.wav"
	}
	return out
}

func (r *Runner) recordFile(ctx context.Context, status string) {
	if r.Metrics == nil {
		return
	}
	r.Metrics.RecordFile(ctx, status)
}
