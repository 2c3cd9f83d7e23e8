package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Monkeyanator/framegrab/pkg/config"
	"github.com/Monkeyanator/framegrab/pkg/logger"
	"github.com/Monkeyanator/framegrab/pkg/pipeline"
	"github.com/Monkeyanator/framegrab/pkg/publish"
	"github.com/Monkeyanator/framegrab/pkg/stillframe"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stderr, logger.New))
}

func run(args []string, stderr io.Writer, newLogger func(level string) (*zap.Logger, error)) int {
	cfg, err := config.Load(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	log, err := newLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer log.Sync() //nolint:errcheck

	if err := cfg.Validate(); err != nil {
		log.Error("invalid arguments", zap.String("input", cfg.Input), zap.Error(err))
		return 1
	}

	runID := uuid.NewString()
	log = log.With(zap.String("run_id", runID))

	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		log.Error("could not create output directory", zap.String("dir", cfg.OutputDir), zap.Error(err))
		return 1
	}

	deps := pipeline.FFmpegDeps(cfg.FFmpegPath, cfg.FFprobePath, cfg.OutputDir, log)
	if cfg.Preview {
		r, err := stillframe.NewRenderer(cfg.OutputDir)
		if err != nil {
			log.Error("could not set up previews", zap.Error(err))
			return 1
		}
		deps.Preview = r
	}
	if cfg.S3Bucket != "" {
		up, err := publish.New(cfg.S3Region, cfg.S3Bucket, path.Join(cfg.S3Prefix, runID))
		if err != nil {
			log.Error("could not set up upload", zap.String("bucket", cfg.S3Bucket), zap.Error(err))
			return 1
		}
		deps.Publisher = up
	}

	p := pipeline.New(deps, pipeline.Options{
		MaxFrames:      cfg.Frames,
		StopAfterLimit: cfg.StopAfterLimit,
	}, log)

	res, err := p.Run(context.Background(), cfg.Input)
	if err != nil {
		log.Error("extraction failed", zap.String("input", cfg.Input), zap.Stringer("state", res.State), zap.Error(err))
		return 1
	}

	log.Info("done",
		zap.String("input", cfg.Input),
		zap.Int("stream", res.Stream.Index),
		zap.Int("decoded", res.Decoded),
		zap.Int("written", len(res.Written)),
		zap.Int("write_failures", res.WriteFailures),
	)
	return 0
}
