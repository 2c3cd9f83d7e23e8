// Package codec decodes compressed video packets into raw frames by
// streaming them through an ffmpeg decoder process.
package codec

import (
	"context"
	"fmt"

	ffmpeg "github.com/u2takey/ffmpeg-go"
	"go.uber.org/zap"

	"github.com/Monkeyanator/framegrab/pkg/media"
)

// input is how packets of one codec are presented on the decoder's stdin:
// the ffmpeg demuxer that reads them and, for IVF, the stream FourCC.
type input struct {
	format string
	fourcc string
}

// inputs maps a codec name to its decoder input. Annex B and MPEG
// elementary streams arrive as MPEG-TS PES payloads and are fed as is;
// VP8, VP9 and AV1 arrive as Matroska blocks and are wrapped in IVF;
// MJPEG blocks are complete JPEG images and concatenate.
var inputs = map[string]input{
	"h264":       {format: "h264"},
	"hevc":       {format: "hevc"},
	"mpeg1video": {format: "mpegvideo"},
	"mpeg2video": {format: "mpegvideo"},
	"mpeg4":      {format: "m4v"},
	"vp8":        {format: "ivf", fourcc: "VP80"},
	"vp9":        {format: "ivf", fourcc: "VP90"},
	"av1":        {format: "ivf", fourcc: "AV01"},
	"mjpeg":      {format: "mjpeg"},
}

// Registry resolves decoders by codec name.
type Registry struct {
	ffmpegPath string
	log        *zap.Logger
}

func NewRegistry(ffmpegPath string, log *zap.Logger) *Registry {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{ffmpegPath: ffmpegPath, log: log}
}

// Open starts a decoding session for stream. Frames come out in the
// stream's own pixel layout.
func (r *Registry) Open(ctx context.Context, stream media.StreamDescriptor) (*Session, error) {
	in, ok := inputs[stream.Codec]
	if !ok {
		return nil, fmt.Errorf("%w %q on stream #%d", media.ErrUnsupportedCodec, stream.Codec, stream.Index)
	}
	layout, ok := media.LookupLayout(stream.PixFmt)
	if !ok {
		return nil, fmt.Errorf("%w: %s: unknown pixel layout %q", media.ErrCodecOpenFailed, stream.Codec, stream.PixFmt)
	}
	if stream.Width <= 0 || stream.Height <= 0 {
		return nil, fmt.Errorf("%w: %s: invalid size %dx%d", media.ErrCodecOpenFailed, stream.Codec, stream.Width, stream.Height)
	}

	var fr framer
	if in.fourcc != "" {
		fr = newIVF(in.fourcc, stream.Width, stream.Height)
	}
	r.log.Debug("opening decoder",
		zap.String("codec", stream.Codec),
		zap.String("input_format", in.format),
		zap.String("pix_fmt", layout.Name),
	)
	return start(ctx, r.ffmpegPath, decodeArgs(in.format, layout.Name), layout, stream.Width, stream.Height, fr)
}

// decodeArgs builds an ffmpeg command line reading packets in format on
// stdin and writing packed raw pictures on stdout, one per decoded frame.
func decodeArgs(format, pixFmt string) []string {
	return ffmpeg.
		Input("pipe:0", ffmpeg.KwArgs{"f": format}).
		Output("pipe:1", ffmpeg.KwArgs{
			"f":        "rawvideo",
			"pix_fmt":  pixFmt,
			"fps_mode": "passthrough",
		}).
		GlobalArgs("-hide_banner", "-loglevel", "error").
		GetArgs()
}
