// Package pipeline drives frame extraction: open the container, pick the
// video stream, decode packets, convert frames to RGB and save the first
// few of them.
//
// Every component sits behind a small interface so the driver can be run
// against fakes; FFmpegDeps wires the real ones.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/Monkeyanator/framegrab/pkg/container"
	"github.com/Monkeyanator/framegrab/pkg/media"
)

// Source is an open container.
type Source interface {
	Streams() []media.StreamDescriptor
	ReadPacket() (*media.Packet, error)
	Close() error
}

// Decoder is an open codec session.
type Decoder interface {
	Decode(pkt *media.Packet) (*media.Frame, error)
	Flush() (*media.Frame, error)
	Close() error
}

// Converter turns decoded frames into RGB24.
type Converter interface {
	Convert(f *media.Frame, dst *media.RGBFrame) error
	Close() error
}

// FrameWriter saves frame number seq and returns the file path.
type FrameWriter interface {
	Write(f *media.RGBFrame, seq int) (string, error)
}

// Previewer renders an extra image for a saved frame.
type Previewer interface {
	Render(f *media.RGBFrame, seq int) (string, error)
}

// Publisher copies a saved file elsewhere.
type Publisher interface {
	Upload(ctx context.Context, file string) (string, error)
}

// Deps are the components of one run. Preview and Publisher are optional.
type Deps struct {
	Open         func(ctx context.Context, path string) (Source, error)
	OpenDecoder  func(ctx context.Context, stream media.StreamDescriptor) (Decoder, error)
	NewConverter func(layout string, w, h int) (Converter, error)
	Writer       FrameWriter
	Preview      Previewer
	Publisher    Publisher
}

type Options struct {
	// MaxFrames is the number of frames saved, 5 when zero.
	MaxFrames int
	// StopAfterLimit ends reading once MaxFrames frames were decoded,
	// instead of scanning the whole container.
	StopAfterLimit bool
}

// Result summarizes a run.
type Result struct {
	Stream        media.StreamDescriptor
	Decoded       int
	Written       []string
	WriteFailures int
	State         State
}

type Pipeline struct {
	deps Deps
	opts Options
	log  *zap.Logger
}

func New(deps Deps, opts Options, log *zap.Logger) *Pipeline {
	if opts.MaxFrames <= 0 {
		opts.MaxFrames = 5
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{deps: deps, opts: opts, log: log}
}

// Run extracts frames from path. Resources are released in reverse order of
// acquisition on every return path. The returned error is fatal; writer
// errors wrapping media.ErrWriteFailed are only counted in the Result.
func (p *Pipeline) Run(ctx context.Context, path string) (*Result, error) {
	r := &run{Pipeline: p, ctx: ctx, res: &Result{}}
	err := r.execute(path)
	r.teardown()
	if err != nil {
		r.enter(StateFailed)
		return r.res, err
	}
	r.enter(StateClosed)
	return r.res, nil
}

type closer struct {
	name string
	fn   func() error
}

// run holds the state of one Run call.
type run struct {
	*Pipeline
	ctx     context.Context
	res     *Result
	closers []closer

	src    Source
	stream media.StreamDescriptor
	dec    Decoder
	conv   Converter
	rgb    *media.RGBFrame
}

func (r *run) enter(s State) {
	r.res.State = s
	r.log.Debug("pipeline state", zap.Stringer("state", s))
}

func (r *run) acquired(name string, fn func() error) {
	r.closers = append(r.closers, closer{name: name, fn: fn})
}

func (r *run) teardown() {
	if len(r.closers) > 0 {
		r.enter(StateDraining)
	}
	for i := len(r.closers) - 1; i >= 0; i-- {
		c := r.closers[i]
		if err := c.fn(); err != nil {
			r.log.Warn("release failed", zap.String("resource", c.name), zap.Error(err))
			continue
		}
		r.log.Debug("released", zap.String("resource", c.name))
	}
	r.closers = nil
}

func (r *run) execute(path string) error {
	r.enter(StateOpening)
	var err error
	r.src, err = r.deps.Open(r.ctx, path)
	if err != nil {
		return err
	}
	r.acquired("container", r.src.Close)

	r.enter(StateStreamSelecting)
	r.stream, err = container.SelectVideoStream(r.src.Streams())
	if err != nil {
		return fmt.Errorf("%q: %w", path, err)
	}
	r.res.Stream = r.stream
	r.log.Debug("found video stream", zap.Int("index", r.stream.Index), zap.String("codec", r.stream.Codec))

	r.enter(StateDecoderOpening)
	r.dec, err = r.deps.OpenDecoder(r.ctx, r.stream)
	if err != nil {
		return fmt.Errorf("%q: %w", path, err)
	}
	r.acquired("codec session", r.dec.Close)

	w, h := r.stream.Width, r.stream.Height
	r.rgb = media.NewRGBFrame(w, h)
	r.acquired("rgb buffer", func() error { r.rgb.Release(); return nil })
	r.log.Debug("allocated rgb buffer", zap.Int("width", w), zap.Int("height", h), zap.Int("bytes", len(r.rgb.Pix)))

	r.conv, err = r.deps.NewConverter(r.stream.PixFmt, w, h)
	if err != nil {
		return err
	}
	r.acquired("converter", r.conv.Close)

	r.enter(StateRunning)
	stopped, err := r.readLoop()
	if err != nil {
		return err
	}
	if stopped {
		return nil
	}
	return r.flush()
}

// readLoop feeds packets of the selected stream to the decoder until the
// container is exhausted. It reports whether it stopped early.
func (r *run) readLoop() (bool, error) {
	for {
		if r.opts.StopAfterLimit && r.res.Decoded >= r.opts.MaxFrames {
			return true, nil
		}
		pkt, err := r.src.ReadPacket()
		if errors.Is(err, io.EOF) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		err = r.handle(pkt)
		pkt.Release()
		if err != nil {
			return false, err
		}
	}
}

func (r *run) handle(pkt *media.Packet) error {
	if pkt.StreamIndex != r.stream.Index {
		return nil
	}
	f, err := r.dec.Decode(pkt)
	if err != nil {
		return err
	}
	if f == nil {
		return nil
	}
	return r.emit(f)
}

// flush drains frames still buffered in the decoder after the last packet.
func (r *run) flush() error {
	for {
		f, err := r.dec.Flush()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := r.emit(f); err != nil {
			return err
		}
		if r.opts.StopAfterLimit && r.res.Decoded >= r.opts.MaxFrames {
			return nil
		}
	}
}

// emit counts a finished frame and saves it while under the limit.
func (r *run) emit(f *media.Frame) error {
	r.res.Decoded++
	seq := r.res.Decoded
	if seq > r.opts.MaxFrames {
		return nil
	}
	if err := r.conv.Convert(f, r.rgb); err != nil {
		return fmt.Errorf("convert frame %d: %w", seq, err)
	}

	out, err := r.deps.Writer.Write(r.rgb, seq)
	if media.Fatal(err) {
		return fmt.Errorf("save frame %d: %w", seq, err)
	}
	if err != nil {
		r.res.WriteFailures++
		r.log.Error("could not save frame", zap.Int("frame", seq), zap.String("path", out), zap.Error(err))
		return nil
	}
	r.res.Written = append(r.res.Written, out)
	r.log.Info("saved frame", zap.Int("frame", seq), zap.String("path", out))

	r.extras(seq, out)
	return nil
}

func (r *run) extras(seq int, out string) {
	files := []string{out}
	if r.deps.Preview != nil {
		png, err := r.deps.Preview.Render(r.rgb, seq)
		if err != nil {
			r.log.Error("could not render preview", zap.Int("frame", seq), zap.Error(err))
		} else {
			files = append(files, png)
		}
	}
	if r.deps.Publisher == nil {
		return
	}
	for _, file := range files {
		loc, err := r.deps.Publisher.Upload(r.ctx, file)
		if err != nil {
			r.log.Error("could not publish frame", zap.Int("frame", seq), zap.String("path", file), zap.Error(err))
			continue
		}
		r.log.Debug("published frame", zap.Int("frame", seq), zap.String("location", loc))
	}
}
