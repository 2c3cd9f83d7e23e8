package pipeline

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	ffmpeg "github.com/u2takey/ffmpeg-go"

	"github.com/Monkeyanator/framegrab/pkg/media"
	"github.com/Monkeyanator/framegrab/pkg/ppm"
)

const (
	clipWidth  = 64
	clipHeight = 48
)

type clip struct {
	file   string
	audio  string // audio encoder, none when empty
	video  string
	pixFmt string
	extra  ffmpeg.KwArgs
}

func requireFFmpeg(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("runs ffmpeg")
	}
	for _, bin := range []string{"ffmpeg", "ffprobe"} {
		if _, err := exec.LookPath(bin); err != nil {
			t.Skipf("%s not installed", bin)
		}
	}
}

func requireEncoder(t *testing.T, name string) {
	t.Helper()
	out, err := exec.Command("ffmpeg", "-hide_banner", "-encoders").Output()
	require.NoError(t, err)
	if !strings.Contains(string(out), " "+name+" ") {
		t.Skipf("ffmpeg built without %s", name)
	}
}

// makeClip encodes frames of a 64x48 test pattern, with the audio stream
// (if any) ahead of the video stream.
func makeClip(t *testing.T, c clip, frames int) string {
	t.Helper()
	requireFFmpeg(t)
	requireEncoder(t, c.video)

	out := filepath.Join(t.TempDir(), c.file)
	kw := ffmpeg.KwArgs{
		"c:v":      c.video,
		"pix_fmt":  c.pixFmt,
		"frames:v": frames,
	}
	for k, v := range c.extra {
		kw[k] = v
	}
	v := ffmpeg.Input("testsrc=size=64x48:rate=25", ffmpeg.KwArgs{"f": "lavfi"})
	streams := []*ffmpeg.Stream{v}
	if c.audio != "" {
		requireEncoder(t, c.audio)
		a := ffmpeg.Input("sine=frequency=440:duration=1", ffmpeg.KwArgs{"f": "lavfi"})
		streams = []*ffmpeg.Stream{a, v}
		kw["c:a"] = c.audio
	}
	require.NoError(t, ffmpeg.Output(streams, out, kw).OverWriteOutput().Run())
	return out
}

func extract(t *testing.T, file string) (string, *Result) {
	t.Helper()
	dir := t.TempDir()
	res, err := New(FFmpegDeps("ffmpeg", "", dir, nil), Options{}, nil).Run(context.Background(), file)
	require.NoError(t, err)
	return dir, res
}

// checkExtract runs the pipeline twice on a clip of n frames and compares
// the saved files.
func checkExtract(t *testing.T, c clip, n int) {
	t.Helper()
	file := makeClip(t, c, n)

	dir, res := extract(t, file)
	assert.Equal(t, StateClosed, res.State)
	assert.Equal(t, media.KindVideo, res.Stream.Kind)
	assert.Equal(t, n, res.Decoded, "every encoded frame comes out, including reordered ones")

	want := min(n, 5)
	require.Len(t, res.Written, want)
	header := ppm.Header(clipWidth, clipHeight)
	for i := 1; i <= want; i++ {
		b, err := os.ReadFile(filepath.Join(dir, ppm.Name(i)))
		require.NoError(t, err)
		assert.Len(t, b, len(header)+clipWidth*clipHeight*3)
		assert.Equal(t, header, string(b[:len(header)]))
	}
	_, err := os.Stat(filepath.Join(dir, ppm.Name(want+1)))
	assert.True(t, os.IsNotExist(err))

	again, _ := extract(t, file)
	for i := 1; i <= want; i++ {
		first, err := os.ReadFile(filepath.Join(dir, ppm.Name(i)))
		require.NoError(t, err)
		second, err := os.ReadFile(filepath.Join(again, ppm.Name(i)))
		require.NoError(t, err)
		assert.Equal(t, first, second, "frame %d differs between runs", i)
	}
}

func TestFFmpegMPEG2TS(t *testing.T) {
	checkExtract(t, clip{file: "clip.ts", audio: "mp2", video: "mpeg2video", pixFmt: "yuv420p"}, 12)
}

func TestFFmpegShortClip(t *testing.T) {
	checkExtract(t, clip{file: "short.ts", audio: "mp2", video: "mpeg2video", pixFmt: "yuv420p"}, 3)
}

func TestFFmpegMPEG4WithBFrames(t *testing.T) {
	c := clip{file: "bframes.mp4", audio: "aac", video: "mpeg4", pixFmt: "yuv420p", extra: ffmpeg.KwArgs{"bf": 2}}
	checkExtract(t, c, 12)
}

func TestFFmpegH264WithBFrames(t *testing.T) {
	c := clip{file: "bframes.mp4", audio: "aac", video: "libx264", pixFmt: "yuv420p", extra: ffmpeg.KwArgs{"bf": 2}}
	checkExtract(t, c, 12)
}

func TestFFmpegMJPEGMatroska(t *testing.T) {
	checkExtract(t, clip{file: "clip.mkv", audio: "flac", video: "mjpeg", pixFmt: "yuvj420p"}, 8)
}

func TestFFmpegVP9WebM(t *testing.T) {
	checkExtract(t, clip{file: "clip.webm", video: "libvpx-vp9", pixFmt: "yuv420p"}, 8)
}
