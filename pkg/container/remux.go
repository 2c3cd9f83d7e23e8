package container

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	"github.com/Monkeyanator/framegrab/pkg/media"
)

// Transport is the container ffmpeg stream-copies packets into.
type Transport int

const (
	// TransportTS carries Annex B and MPEG elementary streams.
	TransportTS Transport = iota
	// TransportMatroska carries codecs MPEG-TS has no mapping for.
	TransportMatroska
)

func (t Transport) String() string {
	if t == TransportMatroska {
		return "matroska"
	}
	return "mpegts"
}

// Codecs each transport can carry with stream copy.
var (
	tsVideoCodecs = map[string]bool{
		"h264": true, "hevc": true, "mpeg1video": true, "mpeg2video": true, "mpeg4": true,
	}
	tsAudioCodecs = map[string]bool{
		"aac": true, "mp2": true, "mp3": true, "ac3": true, "eac3": true, "opus": true, "dts": true,
	}
	mkvVideoCodecs = map[string]bool{
		"vp8": true, "vp9": true, "av1": true, "mjpeg": true,
	}
	mkvAudioCodecs = map[string]bool{
		"aac": true, "mp2": true, "mp3": true, "ac3": true, "eac3": true, "opus": true, "dts": true,
		"vorbis": true, "flac": true, "alac": true, "truehd": true,
		"pcm_s16le": true, "pcm_s24le": true, "pcm_f32le": true,
	}
)

// remuxPlan is what one remux process copies, in output order.
type remuxPlan struct {
	transport Transport
	streams   []media.StreamDescriptor
}

// planRemux picks the transport that can carry the stream the pipeline
// decodes (the lowest-index video stream) and maps every other stream the
// transport supports alongside it.
func planRemux(streams []media.StreamDescriptor) remuxPlan {
	plan := remuxPlan{transport: TransportTS}
	video, audio := tsVideoCodecs, tsAudioCodecs
	if primary, err := SelectVideoStream(streams); err == nil && mkvVideoCodecs[primary.Codec] {
		plan.transport = TransportMatroska
		video, audio = mkvVideoCodecs, mkvAudioCodecs
	}
	for _, s := range streams {
		switch {
		case s.Kind == media.KindVideo && video[s.Codec]:
			plan.streams = append(plan.streams, s)
		case s.Kind == media.KindAudio && audio[s.Codec]:
			plan.streams = append(plan.streams, s)
		}
	}
	return plan
}

func (p remuxPlan) order() []int {
	out := make([]int, len(p.streams))
	for i, s := range p.streams {
		out[i] = s.Index
	}
	return out
}

// remuxArgs builds the ffmpeg arguments that stream-copy the planned
// streams of path to stdout.
func remuxArgs(path string, plan remuxPlan) []string {
	maps := make([]string, len(plan.streams))
	kw := ffmpeg.KwArgs{
		"c": "copy",
		"f": plan.transport.String(),
	}
	for i, s := range plan.streams {
		maps[i] = fmt.Sprintf("0:%d", s.Index)
		// MPEG-4 Part 2 keeps its VOL header in extradata when it comes
		// from MP4; the raw m4v decoder input needs it in band.
		if plan.transport == TransportTS && s.Codec == "mpeg4" {
			kw[fmt.Sprintf("bsf:%d", i)] = "dump_extra"
		}
	}
	kw["map"] = maps
	return ffmpeg.
		Input(path).
		Output("pipe:1", kw).
		GlobalArgs("-hide_banner", "-loglevel", "error").
		GetArgs()
}

// remux is a running ffmpeg stream-copy process.
type remux struct {
	cmd    *exec.Cmd
	cancel context.CancelFunc
	stderr bytes.Buffer
	waited bool
}

func startRemux(ctx context.Context, ffmpegPath string, args []string) (*remux, io.Reader, error) {
	ctx, cancel := context.WithCancel(ctx)
	p := &remux{cancel: cancel}
	p.cmd = exec.CommandContext(ctx, ffmpegPath, args...)
	p.cmd.Stderr = &p.stderr
	stdout, err := p.cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, nil, fmt.Errorf("%w: %w", media.ErrDemuxFailed, err)
	}
	if err := p.cmd.Start(); err != nil {
		cancel()
		return nil, nil, fmt.Errorf("%w: start %s: %w", media.ErrDemuxFailed, ffmpegPath, err)
	}
	return p, stdout, nil
}

// wait reaps the process after its output was read to the end.
func (p *remux) wait() error {
	p.waited = true
	if err := p.cmd.Wait(); err != nil {
		return fmt.Errorf("%w: ffmpeg remux: %w: %s", media.ErrDemuxFailed, err, strings.TrimSpace(p.stderr.String()))
	}
	return nil
}

// stop kills the process if it is still running and reaps it.
func (p *remux) stop() {
	p.cancel()
	if !p.waited {
		p.waited = true
		_ = p.cmd.Wait()
	}
}
