// Package config loads framegrab settings from the environment and the
// command line. Flags override environment values.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/caarlos0/env/v11"

	"github.com/Monkeyanator/framegrab/pkg/media"
)

type Config struct {
	// Input is the positional media path.
	Input string

	OutputDir      string `env:"FRAMEGRAB_OUTPUT_DIR"       envDefault:"."`
	Frames         int    `env:"FRAMEGRAB_FRAMES"           envDefault:"5"`
	StopAfterLimit bool   `env:"FRAMEGRAB_STOP_AFTER_LIMIT" envDefault:"false"`
	FFmpegPath     string `env:"FRAMEGRAB_FFMPEG"           envDefault:"ffmpeg"`
	FFprobePath    string `env:"FRAMEGRAB_FFPROBE"`
	LogLevel       string `env:"FRAMEGRAB_LOG_LEVEL"        envDefault:"info"`
	Preview        bool   `env:"FRAMEGRAB_PREVIEW"          envDefault:"false"`

	S3Bucket string `env:"FRAMEGRAB_S3_BUCKET"`
	S3Prefix string `env:"FRAMEGRAB_S3_PREFIX" envDefault:"frames"`
	S3Region string `env:"AWS_REGION"          envDefault:"us-east-1"`
}

// Load parses the environment, then args (without the program name).
// Usage and parse errors are written to stderr.
func Load(args []string, stderr io.Writer) (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	fs := flag.NewFlagSet("framegrab", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: framegrab [flags] <media file>\n\n")
		fs.PrintDefaults()
	}
	fs.StringVar(&cfg.OutputDir, "out", cfg.OutputDir, "Directory for the frame<N>.ppm files")
	fs.IntVar(&cfg.Frames, "frames", cfg.Frames, "Number of frames to save")
	fs.BoolVar(&cfg.StopAfterLimit, "stop", cfg.StopAfterLimit, "Stop reading once the requested frames are saved")
	fs.StringVar(&cfg.FFmpegPath, "ffmpeg", cfg.FFmpegPath, "Path to the ffmpeg binary")
	fs.StringVar(&cfg.FFprobePath, "ffprobe", cfg.FFprobePath, "Path to the ffprobe binary (default: next to ffmpeg)")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	fs.BoolVar(&cfg.Preview, "preview", cfg.Preview, "Also write an annotated frame<N>.png for every saved frame")
	fs.StringVar(&cfg.S3Bucket, "s3-bucket", cfg.S3Bucket, "Upload saved frames to this S3 bucket")
	fs.StringVar(&cfg.S3Prefix, "s3-prefix", cfg.S3Prefix, "Key prefix for uploaded frames")
	fs.StringVar(&cfg.S3Region, "s3-region", cfg.S3Region, "AWS region of the bucket")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		cfg.Input = fs.Arg(0)
	}
	if fs.NArg() > 1 {
		return nil, fmt.Errorf("expected one media file, got %d arguments", fs.NArg())
	}
	return cfg, nil
}

// Validate checks the settings and that the input exists.
func (c *Config) Validate() error {
	if c.Input == "" {
		return fmt.Errorf("%w: please provide a movie file", media.ErrInputMissing)
	}
	if c.Frames < 1 {
		return fmt.Errorf("frames must be at least 1, got %d", c.Frames)
	}
	if c.OutputDir == "" {
		return errors.New("output directory must not be empty")
	}
	fi, err := os.Stat(c.Input)
	if err != nil {
		return fmt.Errorf("%w: file %s does not exist: %w", media.ErrInputNotFound, c.Input, err)
	}
	if fi.IsDir() {
		return fmt.Errorf("%w: %s is a directory", media.ErrInputNotFound, c.Input)
	}
	return nil
}
