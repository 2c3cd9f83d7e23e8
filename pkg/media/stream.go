package media

import "fmt"

// Kind is the media type of an elementary stream.
type Kind int

const (
	KindOther Kind = iota
	KindVideo
	KindAudio
)

func (k Kind) String() string {
	switch k {
	case KindVideo:
		return "video"
	case KindAudio:
		return "audio"
	default:
		return "other"
	}
}

// StreamDescriptor describes one elementary stream of a probed container.
type StreamDescriptor struct {
	Index        int
	Kind         Kind
	Codec        string
	Profile      string
	Width        int
	Height       int
	PixFmt       string
	AvgFrameRate string
	TimeBase     string
}

func (s StreamDescriptor) String() string {
	if s.Kind == KindVideo {
		return fmt.Sprintf("#%d %s %s %dx%d %s", s.Index, s.Kind, s.Codec, s.Width, s.Height, s.PixFmt)
	}
	return fmt.Sprintf("#%d %s %s", s.Index, s.Kind, s.Codec)
}

// Packet is one demuxed, still compressed unit of a stream.
type Packet struct {
	StreamIndex int
	Data        []byte
	PTS         int64
	HasPTS      bool
}

// Release drops the payload. The packet must not be used afterwards.
func (p *Packet) Release() {
	if p == nil {
		return
	}
	p.Data = nil
}
