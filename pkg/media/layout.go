package media

import "image"

// Family groups pixel layouts by color model.
type Family int

const (
	FamilyYUV Family = iota
	FamilyGray
	FamilyRGB
)

// Plane describes one sample plane relative to the luma/picture size.
type Plane struct {
	XShift uint // horizontal subsampling, log2
	YShift uint // vertical subsampling, log2
	Bytes  int  // bytes per sample
}

// Layout is a raw sample arrangement, named after the ffmpeg pix_fmt.
type Layout struct {
	Name      string
	Family    Family
	FullRange bool
	Planes    []Plane

	// Depth is the significant bits per sample, 8 when zero. Deeper
	// samples are stored little-endian in 2 bytes.
	Depth int

	// YUV only.
	Subsample image.YCbCrSubsampleRatio

	// Packed RGB only: byte offsets of the red, green and blue channels.
	R, G, B int
}

// PlaneSize returns the width in bytes and the height in rows of plane i for
// a picture of w x h pixels.
func (l *Layout) PlaneSize(i, w, h int) (int, int) {
	p := l.Planes[i]
	return ceilShift(w, p.XShift) * p.Bytes, ceilShift(h, p.YShift)
}

// FrameSize returns the size of a tightly packed picture, planes back to
// back with no row padding. This is what ffmpeg's rawvideo muxer emits.
func (l *Layout) FrameSize(w, h int) int {
	n := 0
	for i := range l.Planes {
		pw, ph := l.PlaneSize(i, w, h)
		n += pw * ph
	}
	return n
}

// BitDepth returns the significant bits per sample.
func (l *Layout) BitDepth() int {
	if l.Depth == 0 {
		return 8
	}
	return l.Depth
}

func ceilShift(v int, s uint) int {
	return (v + (1 << s) - 1) >> s
}

var (
	yuv420 = []Plane{{0, 0, 1}, {1, 1, 1}, {1, 1, 1}}
	yuv422 = []Plane{{0, 0, 1}, {1, 0, 1}, {1, 0, 1}}
	yuv444 = []Plane{{0, 0, 1}, {0, 0, 1}, {0, 0, 1}}
	yuv440 = []Plane{{0, 0, 1}, {0, 1, 1}, {0, 1, 1}}
	yuv411 = []Plane{{0, 0, 1}, {2, 0, 1}, {2, 0, 1}}

	yuv420w = []Plane{{0, 0, 2}, {1, 1, 2}, {1, 1, 2}}
	yuv422w = []Plane{{0, 0, 2}, {1, 0, 2}, {1, 0, 2}}
	yuv444w = []Plane{{0, 0, 2}, {0, 0, 2}, {0, 0, 2}}
)

var layouts = map[string]*Layout{
	"yuv420p":     {Name: "yuv420p", Family: FamilyYUV, Planes: yuv420, Subsample: image.YCbCrSubsampleRatio420},
	"yuvj420p":    {Name: "yuvj420p", Family: FamilyYUV, FullRange: true, Planes: yuv420, Subsample: image.YCbCrSubsampleRatio420},
	"yuv422p":     {Name: "yuv422p", Family: FamilyYUV, Planes: yuv422, Subsample: image.YCbCrSubsampleRatio422},
	"yuvj422p":    {Name: "yuvj422p", Family: FamilyYUV, FullRange: true, Planes: yuv422, Subsample: image.YCbCrSubsampleRatio422},
	"yuv444p":     {Name: "yuv444p", Family: FamilyYUV, Planes: yuv444, Subsample: image.YCbCrSubsampleRatio444},
	"yuvj444p":    {Name: "yuvj444p", Family: FamilyYUV, FullRange: true, Planes: yuv444, Subsample: image.YCbCrSubsampleRatio444},
	"yuv440p":     {Name: "yuv440p", Family: FamilyYUV, Planes: yuv440, Subsample: image.YCbCrSubsampleRatio440},
	"yuvj440p":    {Name: "yuvj440p", Family: FamilyYUV, FullRange: true, Planes: yuv440, Subsample: image.YCbCrSubsampleRatio440},
	"yuv411p":     {Name: "yuv411p", Family: FamilyYUV, Planes: yuv411, Subsample: image.YCbCrSubsampleRatio411},
	"yuvj411p":    {Name: "yuvj411p", Family: FamilyYUV, FullRange: true, Planes: yuv411, Subsample: image.YCbCrSubsampleRatio411},
	"yuv420p10le": {Name: "yuv420p10le", Family: FamilyYUV, Depth: 10, Planes: yuv420w, Subsample: image.YCbCrSubsampleRatio420},
	"yuv422p10le": {Name: "yuv422p10le", Family: FamilyYUV, Depth: 10, Planes: yuv422w, Subsample: image.YCbCrSubsampleRatio422},
	"yuv444p10le": {Name: "yuv444p10le", Family: FamilyYUV, Depth: 10, Planes: yuv444w, Subsample: image.YCbCrSubsampleRatio444},
	"yuv420p12le": {Name: "yuv420p12le", Family: FamilyYUV, Depth: 12, Planes: yuv420w, Subsample: image.YCbCrSubsampleRatio420},
	"gray":        {Name: "gray", Family: FamilyGray, FullRange: true, Planes: []Plane{{0, 0, 1}}},
	"rgb24":       {Name: "rgb24", Family: FamilyRGB, FullRange: true, Planes: []Plane{{0, 0, 3}}, R: 0, G: 1, B: 2},
	"bgr24":       {Name: "bgr24", Family: FamilyRGB, FullRange: true, Planes: []Plane{{0, 0, 3}}, R: 2, G: 1, B: 0},
	"rgba":        {Name: "rgba", Family: FamilyRGB, FullRange: true, Planes: []Plane{{0, 0, 4}}, R: 0, G: 1, B: 2},
	"bgra":        {Name: "bgra", Family: FamilyRGB, FullRange: true, Planes: []Plane{{0, 0, 4}}, R: 2, G: 1, B: 0},
}

// LookupLayout returns the layout registered under an ffmpeg pix_fmt name.
func LookupLayout(name string) (*Layout, bool) {
	l, ok := layouts[name]
	return l, ok
}

// RGB24 is the target layout of every conversion.
var RGB24 = layouts["rgb24"]
