package container

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	"github.com/Monkeyanator/framegrab/pkg/media"
)

// FormatInfo holds container-level metadata from ffprobe's format section.
type FormatInfo struct {
	Filename  string
	Name      string
	LongName  string
	Duration  float64
	BitRate   int64
	NbStreams int
}

type ffprobeOutput struct {
	Format  ffprobeFormat   `json:"format"`
	Streams []ffprobeStream `json:"streams"`
}

type ffprobeFormat struct {
	Filename       string `json:"filename"`
	NbStreams      int    `json:"nb_streams"`
	FormatName     string `json:"format_name"`
	FormatLongName string `json:"format_long_name"`
	Duration       string `json:"duration"`
	BitRate        string `json:"bit_rate"`
}

type ffprobeStream struct {
	Index        int            `json:"index"`
	CodecName    string         `json:"codec_name"`
	CodecType    string         `json:"codec_type"`
	Profile      string         `json:"profile"`
	PixFmt       string         `json:"pix_fmt"`
	Width        int            `json:"width"`
	Height       int            `json:"height"`
	AvgFrameRate string         `json:"avg_frame_rate"`
	TimeBase     string         `json:"time_base"`
	Disposition  map[string]int `json:"disposition"`
}

// ParseProbe converts ffprobe JSON (-show_format -show_streams) into stream
// descriptors ordered by index. Malformed JSON wraps media.ErrOpenFailed;
// missing stream information wraps media.ErrStreamProbeFailed.
func ParseProbe(data []byte) (FormatInfo, []media.StreamDescriptor, error) {
	var raw ffprobeOutput
	if err := json.Unmarshal(data, &raw); err != nil {
		return FormatInfo{}, nil, fmt.Errorf("%w: parse ffprobe JSON: %w", media.ErrOpenFailed, err)
	}

	info := FormatInfo{
		Filename:  raw.Format.Filename,
		Name:      raw.Format.FormatName,
		LongName:  raw.Format.FormatLongName,
		Duration:  parseFloat(raw.Format.Duration),
		BitRate:   parseInt64(raw.Format.BitRate),
		NbStreams: raw.Format.NbStreams,
	}
	if len(raw.Streams) == 0 {
		return info, nil, fmt.Errorf("%w: no streams", media.ErrStreamProbeFailed)
	}

	streams := make([]media.StreamDescriptor, 0, len(raw.Streams))
	for i := range raw.Streams {
		s := &raw.Streams[i]
		d := media.StreamDescriptor{
			Index:        s.Index,
			Kind:         kindOf(s),
			Codec:        s.CodecName,
			Profile:      s.Profile,
			Width:        s.Width,
			Height:       s.Height,
			PixFmt:       s.PixFmt,
			AvgFrameRate: s.AvgFrameRate,
			TimeBase:     s.TimeBase,
		}
		if d.Kind == media.KindVideo {
			if d.Codec == "" || d.Width <= 0 || d.Height <= 0 || d.PixFmt == "" {
				return info, nil, fmt.Errorf("%w: video stream #%d has codec=%q size=%dx%d pix_fmt=%q",
					media.ErrStreamProbeFailed, d.Index, d.Codec, d.Width, d.Height, d.PixFmt)
			}
		}
		streams = append(streams, d)
	}
	return info, streams, nil
}

// kindOf maps ffprobe's codec_type. Cover art is stored as a single-picture
// video stream and is not treated as video.
func kindOf(s *ffprobeStream) media.Kind {
	switch s.CodecType {
	case "video":
		if s.Disposition["attached_pic"] == 1 {
			return media.KindOther
		}
		return media.KindVideo
	case "audio":
		return media.KindAudio
	default:
		return media.KindOther
	}
}

func parseInt64(s string) int64 {
	n, _ := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	return n
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return f
}

// FFprobePath returns the ffprobe binary installed next to ffmpegPath. A
// bare command name resolves through PATH.
func FFprobePath(ffmpegPath string) string {
	dir, file := filepath.Split(ffmpegPath)
	if dir == "" {
		return "ffprobe"
	}
	if strings.Contains(file, "ffmpeg") {
		return filepath.Join(dir, strings.Replace(file, "ffmpeg", "ffprobe", 1))
	}
	return filepath.Join(dir, "ffprobe")
}

// probeWith returns a ProbeFunc running bin. ffmpeg-go always runs the
// ffprobe found on PATH, so other binaries are run directly with the same
// arguments.
func probeWith(ctx context.Context, bin string) ProbeFunc {
	if bin == "ffprobe" {
		return func(path string) (string, error) { return ffmpeg.Probe(path) }
	}
	return func(path string) (string, error) {
		var stdout, stderr bytes.Buffer
		cmd := exec.CommandContext(ctx, bin, "-show_format", "-show_streams", "-of", "json", path)
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr
		if err := cmd.Run(); err != nil {
			return "", fmt.Errorf("%s: %w: %s", bin, err, strings.TrimSpace(stderr.String()))
		}
		return stdout.String(), nil
	}
}
