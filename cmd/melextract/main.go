// Command melextract precomputes .mel conditioning files from audio, so
// synthesis runs can skip feature extraction.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/MrWong99/wavegrain/internal/config"
	"github.com/MrWong99/wavegrain/internal/dataset"
	"github.com/MrWong99/wavegrain/pkg/audio"
	"github.com/MrWong99/wavegrain/pkg/mel"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	filelistPath := flag.String("filelist", "", "newline-separated list of input audio files")
	outputDir := flag.String("output", "", "directory for .mel files (default: next to each input)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "melextract: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "melextract: %v\n", err)
		}
		return 1
	}
	if *filelistPath == "" {
		fmt.Fprintln(os.Stderr, "melextract: -filelist is required")
		return 1
	}

	slog.SetDefault(newLogger(cfg.LogLevel))

	paths, err := dataset.ParseFilelist(*filelistPath)
	if err != nil {
		slog.Error("failed to read filelist", "err", err)
		return 1
	}

	extractor, err := mel.NewExtractor(cfg.Data.MelConfig())
	if err != nil {
		slog.Error("failed to build feature extractor", "err", err)
		return 1
	}

	failed := 0
	for _, path := range paths {
		if err := extractOne(extractor, cfg.Data, path, *outputDir); err != nil {
			slog.Error("extraction failed", "path", path, "err", err)
			failed++
		}
	}
	slog.Info("extraction complete", "files", len(paths), "failed", failed)
	if failed == len(paths) {
		return 1
	}
	return 0
}

func extractOne(e *mel.Extractor, data config.DataConfig, path, outputDir string) error {
	sample, err := audio.Load(path)
	if err != nil {
		return err
	}
	if err := sample.EnsureRate(data.SampleRate); err != nil {
		return err
	}
	spec, err := e.Extract(sample.PadAligned(data.HopLength))
	if err != nil {
		return err
	}

	out := strings.TrimSuffix(path, filepath.Ext(path)) + ".mel"
	if outputDir != "" {
		out = filepath.Join(outputDir, filepath.Base(out))
	}
	if err := mel.WriteFile(out, spec); err != nil {
		return err
	}
	slog.Info("features written", "path", path, "output", out, "bands", spec.Bands(), "frames", spec.Frames())
	return nil
}

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
