package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/Monkeyanator/framegrab/pkg/codec"
	"github.com/Monkeyanator/framegrab/pkg/container"
	"github.com/Monkeyanator/framegrab/pkg/media"
	"github.com/Monkeyanator/framegrab/pkg/pixconv"
	"github.com/Monkeyanator/framegrab/pkg/ppm"
)

// FFmpegDeps wires the ffmpeg-backed container reader and decoder, the
// converter and a PPM writer into outDir. An empty ffprobePath means the
// ffprobe next to ffmpegPath.
func FFmpegDeps(ffmpegPath, ffprobePath, outDir string, log *zap.Logger) Deps {
	registry := codec.NewRegistry(ffmpegPath, log)
	return Deps{
		Open: func(ctx context.Context, path string) (Source, error) {
			c, err := container.Open(ctx, path, container.Options{
				FFmpegPath:  ffmpegPath,
				FFprobePath: ffprobePath,
				Logger:      log,
			})
			if err != nil {
				return nil, err
			}
			return c, nil
		},
		OpenDecoder: func(ctx context.Context, stream media.StreamDescriptor) (Decoder, error) {
			s, err := registry.Open(ctx, stream)
			if err != nil {
				return nil, err
			}
			return s, nil
		},
		NewConverter: func(layout string, w, h int) (Converter, error) {
			c, err := pixconv.New(layout, w, h)
			if err != nil {
				return nil, err
			}
			return c, nil
		},
		Writer: &ppm.Writer{Dir: outDir},
	}
}
