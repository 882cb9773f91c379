// Command wavegrain runs batch waveform synthesis: it reads conditioning
// features (or extracts them from audio), walks the configured noise schedule
// per file, and writes the synthesized wavs alongside an RTF report.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/MrWong99/wavegrain/internal/config"
	"github.com/MrWong99/wavegrain/internal/dataset"
	"github.com/MrWong99/wavegrain/internal/observe"
	"github.com/MrWong99/wavegrain/internal/runner"
	"github.com/MrWong99/wavegrain/pkg/diffusion"
	"github.com/MrWong99/wavegrain/pkg/griffinlim"
	"github.com/MrWong99/wavegrain/pkg/mel"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	filelistPath := flag.String("filelist", "", "newline-separated list of input files (.wav, .flac, or .mel)")
	schedulePath := flag.String("schedule", "", "optional text file of per-step beta values, one per line, overriding the configured schedule")
	outputDir := flag.String("output", "", "directory for synthesized wavs (default: next to each input)")
	storeIntermediate := flag.Bool("store-intermediate", false, "keep the estimate after every denoising step")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "wavegrain: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "wavegrain: %v\n", err)
		}
		return 1
	}
	if *filelistPath == "" {
		fmt.Fprintln(os.Stderr, "wavegrain: -filelist is required")
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	slog.SetDefault(newLogger(cfg.LogLevel))

	slog.Info("wavegrain starting",
		"config", *configPath,
		"filelist", *filelistPath,
		"log_level", cfg.LogLevel,
	)

	// ── Metrics ───────────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{})
	if err != nil {
		slog.Error("failed to initialise metrics", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			slog.Warn("metrics shutdown error", "err", err)
		}
	}()

	// ── Inputs ────────────────────────────────────────────────────────────────
	paths, err := dataset.ParseFilelist(*filelistPath)
	if err != nil {
		slog.Error("failed to read filelist", "err", err)
		return 1
	}

	// ── Pipeline construction ─────────────────────────────────────────────────
	extractor, err := mel.NewExtractor(cfg.Data.MelConfig())
	if err != nil {
		slog.Error("failed to build feature extractor", "err", err)
		return 1
	}

	sched, err := buildSchedule(cfg, *schedulePath)
	if err != nil {
		slog.Error("failed to build noise schedule", "err", err)
		return 1
	}

	refiner := griffinlim.New(extractor)
	driver, err := diffusion.NewDriver(refiner, cfg.Data.NMels, cfg.Data.HopLength, cfg.Data.SampleRate)
	if err != nil {
		slog.Error("failed to build synthesis driver", "err", err)
		return 1
	}

	r := &runner.Runner{
		Extractor:         extractor,
		Driver:            driver,
		Schedule:          sched,
		Workers:           cfg.Inference.Workers,
		Metrics:           observe.DefaultMetrics(),
		OutputDir:         *outputDir,
		StoreIntermediate: *storeIntermediate || cfg.Inference.StoreIntermediate,
	}

	printStartupSummary(cfg, len(paths), sched.Len())

	// ── Batch run ─────────────────────────────────────────────────────────────
	report, err := r.Run(ctx, paths)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			slog.Info("batch cancelled")
		} else {
			slog.Error("batch failed", "err", err)
		}
		return 1
	}

	for _, f := range report.Failures {
		slog.Warn("file skipped", "path", f.Path, "err", f.Err)
	}
	slog.Info("batch complete",
		"processed", report.Stats.Processed,
		"failed", report.Stats.Failed,
		"synthesis_p50", report.Stats.Synthesis.P50,
		"synthesis_p95", report.Stats.Synthesis.P95,
	)
	fmt.Printf("Done. RTF estimate: %.4f ± %.4f\n", report.Stats.RTFMean, report.Stats.RTFStd)
	return 0
}

// buildSchedule derives the noise schedule: from the override file when
// given, otherwise from the inference section of the config.
func buildSchedule(cfg *config.Config, path string) (*diffusion.Schedule, error) {
	if path == "" {
		return cfg.Inference.NoiseSchedule.Build()
	}
	betas, err := readBetas(path)
	if err != nil {
		return nil, err
	}
	return diffusion.FromBetas(betas)
}

// readBetas parses a text file of beta values, one per line. Blank lines are
// skipped.
func readBetas(path string) ([]float64, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schedule %q: %w", path, err)
	}
	var betas []float64
	for i, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		v, err := strconv.ParseFloat(line, 64)
		if err != nil {
			return nil, fmt.Errorf("schedule %q line %d: %w", path, i+1, err)
		}
		betas = append(betas, v)
	}
	return betas, nil
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config, files, steps int) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║        wavegrain — batch summary      ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	fmt.Printf("║  Sample rate     : %-19d ║\n", cfg.Data.SampleRate)
	fmt.Printf("║  Mel bands       : %-19d ║\n", cfg.Data.NMels)
	fmt.Printf("║  Hop length      : %-19d ║\n", cfg.Data.HopLength)
	fmt.Printf("║  Schedule steps  : %-19d ║\n", steps)
	fmt.Printf("║  Input files     : %-19d ║\n", files)
	workers := "(one per CPU)"
	if cfg.Inference.Workers > 0 {
		workers = strconv.Itoa(cfg.Inference.Workers)
	}
	fmt.Printf("║  Workers         : %-19s ║\n", workers)
	fmt.Println("╚═══════════════════════════════════════╝")
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
