// Package container opens media files: it probes stream metadata with
// ffprobe and reads compressed packets by demuxing an ffmpeg stream-copy
// remux to MPEG-TS or Matroska.
package container

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/Monkeyanator/framegrab/pkg/media"
)

// ProbeFunc returns ffprobe's JSON description of path.
type ProbeFunc func(path string) (string, error)

// Options configures Open.
type Options struct {
	FFmpegPath string
	// FFprobePath defaults to the ffprobe next to FFmpegPath.
	FFprobePath string
	Logger      *zap.Logger
	// Probe overrides running ffprobe.
	Probe ProbeFunc
}

// Container is an open media file.
type Container struct {
	ctx     context.Context
	path    string
	ffmpeg  string
	log     *zap.Logger
	format  FormatInfo
	streams []media.StreamDescriptor
	reader  packetReader
	closed  bool
}

// Open probes path and returns the container with its stream list. No
// process is started until the first ReadPacket.
func Open(ctx context.Context, path string, opts Options) (*Container, error) {
	if opts.FFmpegPath == "" {
		opts.FFmpegPath = "ffmpeg"
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.FFprobePath == "" {
		opts.FFprobePath = FFprobePath(opts.FFmpegPath)
	}
	probe := opts.Probe
	if probe == nil {
		probe = probeWith(ctx, opts.FFprobePath)
	}

	out, err := probe(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", media.ErrOpenFailed, path, err)
	}
	format, streams, err := ParseProbe([]byte(out))
	if err != nil {
		return nil, fmt.Errorf("%q: %w", path, err)
	}

	c := &Container{
		ctx:     ctx,
		path:    path,
		ffmpeg:  opts.FFmpegPath,
		log:     opts.Logger,
		format:  format,
		streams: streams,
	}
	c.dump()
	return c, nil
}

// Streams returns the probed streams in index order.
func (c *Container) Streams() []media.StreamDescriptor {
	return c.streams
}

// ReadPacket returns the next packet of any remuxed stream, or io.EOF once
// the container is exhausted.
func (c *Container) ReadPacket() (*media.Packet, error) {
	if c.closed {
		return nil, io.EOF
	}
	if c.reader == nil {
		plan := planRemux(c.streams)
		if len(plan.streams) == 0 {
			return nil, io.EOF
		}
		r, err := startReader(c.ctx, c.ffmpeg, c.path, plan)
		if err != nil {
			return nil, err
		}
		c.reader = r
		c.log.Debug("remux started", zap.Stringer("transport", plan.transport), zap.Ints("streams", plan.order()))
	}
	return c.reader.next()
}

// Close stops packet reading. It is safe to call more than once.
func (c *Container) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	if c.reader != nil {
		c.reader.close()
	}
	return nil
}

func (c *Container) dump() {
	c.log.Debug("container probed",
		zap.String("path", c.path),
		zap.String("format", c.format.LongName),
		zap.Float64("duration", c.format.Duration),
		zap.Int64("bit_rate", c.format.BitRate),
		zap.Int("streams", len(c.streams)),
	)
	for _, s := range c.streams {
		c.log.Debug("stream",
			zap.Int("index", s.Index),
			zap.Stringer("kind", s.Kind),
			zap.String("codec", s.Codec),
			zap.String("profile", s.Profile),
			zap.Int("width", s.Width),
			zap.Int("height", s.Height),
			zap.String("pix_fmt", s.PixFmt),
			zap.String("avg_frame_rate", s.AvgFrameRate),
		)
	}
}
