package container

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/asticode/go-astits"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Monkeyanator/framegrab/pkg/media"
)

const probeJSON = `{
  "streams": [
    {"index": 0, "codec_name": "aac", "codec_type": "audio", "time_base": "1/48000"},
    {"index": 1, "codec_name": "h264", "codec_type": "video", "profile": "High",
     "width": 1280, "height": 720, "pix_fmt": "yuv420p", "avg_frame_rate": "25/1",
     "time_base": "1/12800", "disposition": {"default": 1, "attached_pic": 0}},
    {"index": 2, "codec_name": "mjpeg", "codec_type": "video", "width": 600, "height": 600,
     "pix_fmt": "yuvj420p", "disposition": {"attached_pic": 1}},
    {"index": 3, "codec_name": "subrip", "codec_type": "subtitle"}
  ],
  "format": {
    "filename": "movie.mp4", "nb_streams": 4, "format_name": "mov,mp4,m4a,3gp,3g2,mj2",
    "format_long_name": "QuickTime / MOV", "duration": "12.480000", "bit_rate": "1205437"
  }
}`

func TestParseToolJSON(t *testing.T) {
	info, streams, err := ParseProbe([]byte(probeJSON))
	require.NoError(t, err)

	assert.Equal(t, "QuickTime / MOV", info.LongName)
	assert.InDelta(t, 12.48, info.Duration, 1e-9)
	assert.Equal(t, int64(1205437), info.BitRate)

	require.Len(t, streams, 4)
	assert.Equal(t, media.KindAudio, streams[0].Kind)
	assert.Equal(t, media.StreamDescriptor{
		Index: 1, Kind: media.KindVideo, Codec: "h264", Profile: "High",
		Width: 1280, Height: 720, PixFmt: "yuv420p", AvgFrameRate: "25/1", TimeBase: "1/12800",
	}, streams[1])
	assert.Equal(t, media.KindOther, streams[2].Kind, "cover art is not video")
	assert.Equal(t, media.KindOther, streams[3].Kind)
}

func TestParseToolJSONErrors(t *testing.T) {
	tests := []struct {
		name string
		json string
		want error
	}{
		{"garbage", `not json`, media.ErrOpenFailed},
		{"no streams", `{"streams": [], "format": {}}`, media.ErrStreamProbeFailed},
		{"no size", `{"streams": [{"index": 0, "codec_type": "video", "codec_name": "h264", "pix_fmt": "yuv420p"}]}`, media.ErrStreamProbeFailed},
		{"no codec", `{"streams": [{"index": 0, "codec_type": "video", "width": 2, "height": 2, "pix_fmt": "yuv420p"}]}`, media.ErrStreamProbeFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ParseProbe([]byte(tt.json))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestOpen(t *testing.T) {
	c, err := Open(context.Background(), "movie.mp4", Options{
		Probe: func(path string) (string, error) {
			assert.Equal(t, "movie.mp4", path)
			return probeJSON, nil
		},
	})
	require.NoError(t, err)
	defer c.Close()

	assert.Len(t, c.Streams(), 4)
	assert.Equal(t, 4, c.format.NbStreams)
}

func TestOpenInspectFailure(t *testing.T) {
	_, err := Open(context.Background(), "broken.bin", Options{
		Probe: func(string) (string, error) { return "", errors.New("exit status 1") },
	})
	assert.ErrorIs(t, err, media.ErrOpenFailed)
}

func TestReadPacketWithoutRemuxableStreams(t *testing.T) {
	c, err := Open(context.Background(), "subs.mkv", Options{
		FFmpegPath: "/nonexistent/ffmpeg",
		Probe: func(string) (string, error) {
			return `{"streams": [{"index": 0, "codec_type": "subtitle", "codec_name": "ass"}]}`, nil
		},
	})
	require.NoError(t, err)

	_, err = c.ReadPacket()
	assert.Equal(t, io.EOF, err)
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
}

func TestSelectVideoStream(t *testing.T) {
	streams := []media.StreamDescriptor{
		{Index: 0, Kind: media.KindAudio, Codec: "aac"},
		{Index: 1, Kind: media.KindVideo, Codec: "h264"},
		{Index: 2, Kind: media.KindVideo, Codec: "hevc"},
	}
	s, err := SelectVideoStream(streams)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Index)

	// Order in the slice does not matter, the lowest index wins.
	s, err = SelectVideoStream([]media.StreamDescriptor{streams[2], streams[0], streams[1]})
	require.NoError(t, err)
	assert.Equal(t, 1, s.Index)
}

func TestSelectVideoStreamNone(t *testing.T) {
	_, err := SelectVideoStream([]media.StreamDescriptor{
		{Index: 0, Kind: media.KindAudio},
		{Index: 1, Kind: media.KindOther},
	})
	assert.ErrorIs(t, err, media.ErrNoVideoStream)

	_, err = SelectVideoStream(nil)
	assert.ErrorIs(t, err, media.ErrNoVideoStream)
}

func TestPlanRemux(t *testing.T) {
	_, streams, err := ParseProbe([]byte(probeJSON))
	require.NoError(t, err)
	plan := planRemux(streams)
	assert.Equal(t, TransportTS, plan.transport)
	assert.Equal(t, []int{0, 1}, plan.order())

	webm := []media.StreamDescriptor{
		{Index: 0, Kind: media.KindVideo, Codec: "vp9"},
		{Index: 1, Kind: media.KindAudio, Codec: "vorbis"},
		{Index: 2, Kind: media.KindVideo, Codec: "h264"},
		{Index: 3, Kind: media.KindOther, Codec: "webvtt"},
	}
	plan = planRemux(webm)
	assert.Equal(t, TransportMatroska, plan.transport)
	assert.Equal(t, []int{0, 1}, plan.order(), "only streams the transport carries")

	plan = planRemux([]media.StreamDescriptor{
		{Index: 0, Kind: media.KindVideo, Codec: "theora"},
		{Index: 1, Kind: media.KindAudio, Codec: "vorbis"},
	})
	assert.Equal(t, TransportTS, plan.transport)
	assert.Empty(t, plan.order())
}

func TestRemuxArgs(t *testing.T) {
	plan := remuxPlan{transport: TransportTS, streams: []media.StreamDescriptor{
		{Index: 0, Kind: media.KindAudio, Codec: "aac"},
		{Index: 2, Kind: media.KindVideo, Codec: "mpeg4"},
	}}
	joined := strings.Join(remuxArgs("in.mp4", plan), " ")

	assert.Contains(t, joined, "-i in.mp4")
	assert.Contains(t, joined, "-map 0:0")
	assert.Contains(t, joined, "-map 0:2")
	assert.Contains(t, joined, "-c copy")
	assert.Contains(t, joined, "-f mpegts")
	assert.Contains(t, joined, "-bsf:1 dump_extra")
	assert.Contains(t, joined, "pipe:1")
	assert.Less(t, strings.Index(joined, "-i in.mp4"), strings.Index(joined, "pipe:1"))

	plan = remuxPlan{transport: TransportMatroska, streams: []media.StreamDescriptor{
		{Index: 1, Kind: media.KindVideo, Codec: "vp9"},
	}}
	joined = strings.Join(remuxArgs("in.webm", plan), " ")
	assert.Contains(t, joined, "-f matroska")
	assert.NotContains(t, joined, "dump_extra")
}

func TestTSDemuxerHandle(t *testing.T) {
	d := &tsDemuxer{order: []int{0, 3}, pids: map[uint16]int{}}

	assert.Nil(t, d.handle(&astits.DemuxerData{PAT: &astits.PATData{}}))
	assert.Nil(t, d.handle(&astits.DemuxerData{PMT: &astits.PMTData{
		ElementaryStreams: []*astits.PMTElementaryStream{
			{ElementaryPID: 0x100},
			{ElementaryPID: 0x101},
		},
	}}))

	pkt := d.handle(&astits.DemuxerData{
		PID: 0x101,
		PES: &astits.PESData{
			Data: []byte{0, 0, 1, 0x65},
			Header: &astits.PESHeader{OptionalHeader: &astits.PESOptionalHeader{
				PTS: &astits.ClockReference{Base: 3003},
			}},
		},
	})
	require.NotNil(t, pkt)
	assert.Equal(t, 3, pkt.StreamIndex)
	assert.Equal(t, []byte{0, 0, 1, 0x65}, pkt.Data)
	assert.True(t, pkt.HasPTS)
	assert.Equal(t, int64(3003), pkt.PTS)

	pkt = d.handle(&astits.DemuxerData{PID: 0x100, PES: &astits.PESData{Data: []byte{9}}})
	require.NotNil(t, pkt)
	assert.Equal(t, 0, pkt.StreamIndex)
	assert.False(t, pkt.HasPTS)

	assert.Nil(t, d.handle(&astits.DemuxerData{PID: 0x1ff, PES: &astits.PESData{Data: []byte{1}}}), "unknown PID")
}
