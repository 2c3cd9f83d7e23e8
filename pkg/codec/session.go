package codec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/Monkeyanator/framegrab/pkg/media"
)

const queueDepth = 4

// Session is one running decoder. It is not safe for concurrent use.
//
// Packets are written to the process stdin and finished pictures are read
// from stdout by a pump goroutine, so Decode never blocks on a full pipe.
type Session struct {
	layout *media.Layout
	size   int
	frame  *media.Frame
	framer framer
	primed bool

	cmd    *exec.Cmd
	cancel context.CancelFunc
	stdin  io.WriteCloser
	stderr bytes.Buffer

	frames  chan []byte
	free    chan []byte
	quit    chan struct{}
	readErr error

	pending [][]byte
	eof     bool
	flushed bool
	waited  bool
	closed  bool
}

// start runs the decoder process. A nil framer feeds packet payloads
// unchanged.
func start(ctx context.Context, name string, args []string, layout *media.Layout, w, h int, fr framer) (*Session, error) {
	ctx, cancel := context.WithCancel(ctx)
	s := &Session{
		layout: layout,
		size:   layout.FrameSize(w, h),
		frame:  media.NewFrame(layout, w, h),
		framer: fr,
		cancel: cancel,
		frames: make(chan []byte, queueDepth),
		free:   make(chan []byte, queueDepth),
		quit:   make(chan struct{}),
	}
	s.cmd = exec.CommandContext(ctx, name, args...)
	s.cmd.Stderr = &s.stderr

	stdin, err := s.cmd.StdinPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%w: %w", media.ErrCodecOpenFailed, err)
	}
	stdout, err := s.cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%w: %w", media.ErrCodecOpenFailed, err)
	}
	if err := s.cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("%w: start %s: %w", media.ErrCodecOpenFailed, name, err)
	}
	s.stdin = stdin
	go s.pump(stdout)
	return s, nil
}

// Decode feeds one packet to the decoder. It returns the session's frame
// when a picture has completed and nil when the decoder needs more input.
// The returned frame is overwritten by the next Decode or Flush call.
func (s *Session) Decode(pkt *media.Packet) (*media.Frame, error) {
	if s.flushed || s.closed {
		return nil, fmt.Errorf("%w: decode after end of input", media.ErrDecodeFailed)
	}
	if pkt != nil && len(pkt.Data) > 0 {
		if err := s.feed(s.wrap(pkt)); err != nil {
			return nil, err
		}
	}
	s.collect()
	return s.next()
}

// Flush ends the input and returns the pictures still held by the decoder,
// one per call, then io.EOF.
func (s *Session) Flush() (*media.Frame, error) {
	if s.closed {
		return nil, io.EOF
	}
	if !s.flushed {
		s.flushed = true
		_ = s.stdin.Close()
		if !s.eof {
			for buf := range s.frames {
				s.pending = append(s.pending, buf)
			}
			s.eof = true
		}
		s.waited = true
		if err := s.cmd.Wait(); err != nil {
			return nil, fmt.Errorf("%w: ffmpeg: %w: %s", media.ErrDecodeFailed, err, strings.TrimSpace(s.stderr.String()))
		}
		if s.readErr != nil {
			return nil, fmt.Errorf("%w: read picture: %w", media.ErrDecodeFailed, s.readErr)
		}
	}
	f, err := s.next()
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, io.EOF
	}
	return f, nil
}

// Close stops the decoder and releases the frame buffer.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.quit)
	if !s.flushed {
		_ = s.stdin.Close()
	}
	s.cancel()
	if !s.waited {
		s.waited = true
		_ = s.cmd.Wait()
	}
	s.frame.Release()
	s.pending = nil
	return nil
}

// wrap returns the bytes written for pkt, with the stream header ahead of
// the first packet.
func (s *Session) wrap(pkt *media.Packet) []byte {
	if s.framer == nil {
		return pkt.Data
	}
	data := s.framer.frame(pkt)
	if !s.primed {
		s.primed = true
		data = append(s.framer.header(), data...)
	}
	return data
}

// feed writes data to the decoder while queueing pictures that come out in
// the meantime.
func (s *Session) feed(data []byte) error {
	done := make(chan error, 1)
	go func() {
		_, err := s.stdin.Write(data)
		done <- err
	}()

	frames := s.frames
	if s.eof {
		frames = nil
	}
	for {
		select {
		case buf, ok := <-frames:
			if !ok {
				s.eof = true
				frames = nil
				continue
			}
			s.pending = append(s.pending, buf)
		case err := <-done:
			if err != nil {
				return fmt.Errorf("%w: write packet: %w", media.ErrDecodeFailed, err)
			}
			return nil
		}
	}
}

// collect queues the pictures that are ready without waiting.
func (s *Session) collect() {
	for !s.eof {
		select {
		case buf, ok := <-s.frames:
			if !ok {
				s.eof = true
				return
			}
			s.pending = append(s.pending, buf)
		default:
			return
		}
	}
}

func (s *Session) next() (*media.Frame, error) {
	if len(s.pending) == 0 {
		return nil, nil
	}
	buf := s.pending[0]
	s.pending[0] = nil
	s.pending = s.pending[1:]

	err := s.frame.Fill(buf)
	s.recycle(buf)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", media.ErrDecodeFailed, err)
	}
	return s.frame, nil
}

func (s *Session) pump(r io.Reader) {
	defer close(s.frames)
	for {
		buf := s.buffer()
		if _, err := io.ReadFull(r, buf); err != nil {
			if !errors.Is(err, io.EOF) {
				s.readErr = err
			}
			return
		}
		select {
		case s.frames <- buf:
		case <-s.quit:
			return
		}
	}
}

func (s *Session) buffer() []byte {
	select {
	case b := <-s.free:
		return b
	default:
		return make([]byte, s.size)
	}
}

func (s *Session) recycle(b []byte) {
	select {
	case s.free <- b:
	default:
	}
}
