package media

import "fmt"

// linesizeAlign is the row alignment of decoded planes.
const linesizeAlign = 32

// Frame is a decoded picture in its source layout. Rows of plane i start
// Linesize[i] bytes apart; Linesize may exceed the plane width.
type Frame struct {
	Layout   *Layout
	Width    int
	Height   int
	Planes   [][]byte
	Linesize []int
}

// NewFrame allocates a frame whose plane rows are padded to linesizeAlign.
func NewFrame(l *Layout, w, h int) *Frame {
	f := &Frame{
		Layout:   l,
		Width:    w,
		Height:   h,
		Planes:   make([][]byte, len(l.Planes)),
		Linesize: make([]int, len(l.Planes)),
	}
	for i := range l.Planes {
		pw, ph := l.PlaneSize(i, w, h)
		stride := (pw + linesizeAlign - 1) / linesizeAlign * linesizeAlign
		f.Linesize[i] = stride
		f.Planes[i] = make([]byte, stride*ph)
	}
	return f
}

// Fill overwrites the frame with a tightly packed picture of
// Layout.FrameSize bytes.
func (f *Frame) Fill(packed []byte) error {
	if want := f.Layout.FrameSize(f.Width, f.Height); len(packed) != want {
		return fmt.Errorf("packed picture is %d bytes, want %d", len(packed), want)
	}
	off := 0
	for i := range f.Planes {
		pw, ph := f.Layout.PlaneSize(i, f.Width, f.Height)
		stride := f.Linesize[i]
		for y := 0; y < ph; y++ {
			copy(f.Planes[i][y*stride:y*stride+pw], packed[off:off+pw])
			off += pw
		}
	}
	return nil
}

// Release drops the sample planes.
func (f *Frame) Release() {
	if f == nil {
		return
	}
	f.Planes = nil
	f.Linesize = nil
}

// RGBFrame is a converted picture: Width*Height*3 bytes of interleaved
// RGB24, rows back to back.
type RGBFrame struct {
	Width  int
	Height int
	Pix    []byte
}

// NewRGBFrame allocates the conversion target for a w x h picture.
func NewRGBFrame(w, h int) *RGBFrame {
	return &RGBFrame{Width: w, Height: h, Pix: make([]byte, w*h*3)}
}

// Release drops the pixel buffer.
func (f *RGBFrame) Release() {
	if f == nil {
		return
	}
	f.Pix = nil
}
