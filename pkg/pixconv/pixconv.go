// Package pixconv converts decoded frames from their source layout into
// packed RGB24 of the same size.
package pixconv

import (
	"encoding/binary"
	"fmt"
	"image"

	"golang.org/x/image/draw"

	"github.com/Monkeyanator/framegrab/pkg/media"
)

// Converter is bound to one source layout and picture size. It owns its
// scratch images and is not safe for concurrent use.
type Converter struct {
	src    *media.Layout
	width  int
	height int
	kernel *draw.Kernel

	rgba *image.RGBA
	// Limited-range and deep YUV are narrowed and expanded into ycc
	// before resampling.
	ycc     *image.YCbCr
	shift   uint
	lumaLUT *[256]uint8
	chroLUT *[256]uint8
}

// New allocates a converter for w x h frames in the named layout.
func New(layout string, w, h int) (*Converter, error) {
	l, ok := media.LookupLayout(layout)
	if !ok {
		return nil, fmt.Errorf("%w: unsupported source layout %q", media.ErrConversionInitFailed, layout)
	}
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("%w: invalid size %dx%d", media.ErrConversionInitFailed, w, h)
	}

	c := &Converter{src: l, width: w, height: h, kernel: draw.CatmullRom}
	rect := image.Rect(0, 0, w, h)
	if l.Family != media.FamilyRGB {
		c.rgba = image.NewRGBA(rect)
	}
	if l.Family == media.FamilyYUV && (!l.FullRange || l.BitDepth() > 8) {
		c.ycc = image.NewYCbCr(rect, l.Subsample)
		c.shift = uint(l.BitDepth() - 8)
		c.lumaLUT, c.chroLUT = &lumaLUT, &chromaLUT
		if l.FullRange {
			c.lumaLUT, c.chroLUT = &identityLUT, &identityLUT
		}
	}
	return c, nil
}

// Convert writes f into dst. Both must have the converter's dimensions.
func (c *Converter) Convert(f *media.Frame, dst *media.RGBFrame) error {
	if f.Width != c.width || f.Height != c.height || f.Layout != c.src {
		return fmt.Errorf("frame %s %dx%d does not match converter %s %dx%d",
			f.Layout.Name, f.Width, f.Height, c.src.Name, c.width, c.height)
	}
	if dst.Width != c.width || dst.Height != c.height || len(dst.Pix) != c.width*c.height*3 {
		return fmt.Errorf("destination is %dx%d with %d bytes, want %dx%d",
			dst.Width, dst.Height, len(dst.Pix), c.width, c.height)
	}

	if c.src.Family == media.FamilyRGB {
		c.swizzle(f, dst)
		return nil
	}

	var src image.Image
	switch c.src.Family {
	case media.FamilyGray:
		src = &image.Gray{Pix: f.Planes[0], Stride: f.Linesize[0], Rect: c.rgba.Rect}
	case media.FamilyYUV:
		src = c.ycbcr(f)
	}
	c.kernel.Scale(c.rgba, c.rgba.Rect, src, c.rgba.Rect, draw.Src, nil)
	pack(c.rgba, dst)
	return nil
}

// Close releases the scratch images.
func (c *Converter) Close() error {
	c.rgba = nil
	c.ycc = nil
	return nil
}

// ycbcr wraps the frame planes as an image. Limited-range and deep
// samples are rewritten into the scratch image first.
func (c *Converter) ycbcr(f *media.Frame) *image.YCbCr {
	if c.ycc == nil {
		return &image.YCbCr{
			Y:              f.Planes[0],
			Cb:             f.Planes[1],
			Cr:             f.Planes[2],
			YStride:        f.Linesize[0],
			CStride:        f.Linesize[1],
			SubsampleRatio: c.src.Subsample,
			Rect:           image.Rect(0, 0, c.width, c.height),
		}
	}

	cw, ch := c.src.PlaneSize(1, c.width, c.height)
	cw /= c.src.Planes[1].Bytes
	if c.shift > 0 {
		remapDeep(c.ycc.Y, c.ycc.YStride, f.Planes[0], f.Linesize[0], c.width, c.height, c.shift, c.lumaLUT)
		remapDeep(c.ycc.Cb, c.ycc.CStride, f.Planes[1], f.Linesize[1], cw, ch, c.shift, c.chroLUT)
		remapDeep(c.ycc.Cr, c.ycc.CStride, f.Planes[2], f.Linesize[2], cw, ch, c.shift, c.chroLUT)
		return c.ycc
	}
	remap(c.ycc.Y, c.ycc.YStride, f.Planes[0], f.Linesize[0], c.width, c.height, c.lumaLUT)
	remap(c.ycc.Cb, c.ycc.CStride, f.Planes[1], f.Linesize[1], cw, ch, c.chroLUT)
	remap(c.ycc.Cr, c.ycc.CStride, f.Planes[2], f.Linesize[2], cw, ch, c.chroLUT)
	return c.ycc
}

func (c *Converter) swizzle(f *media.Frame, dst *media.RGBFrame) {
	bpp := c.src.Planes[0].Bytes
	r, g, b := c.src.R, c.src.G, c.src.B
	src, stride := f.Planes[0], f.Linesize[0]
	for y := 0; y < c.height; y++ {
		in := src[y*stride:]
		out := dst.Pix[y*c.width*3:]
		for x := 0; x < c.width; x++ {
			out[x*3+0] = in[x*bpp+r]
			out[x*3+1] = in[x*bpp+g]
			out[x*3+2] = in[x*bpp+b]
		}
	}
}

func remap(dst []byte, dstStride int, src []byte, srcStride, w, h int, lut *[256]uint8) {
	for y := 0; y < h; y++ {
		d := dst[y*dstStride : y*dstStride+w]
		s := src[y*srcStride : y*srcStride+w]
		for x, v := range s {
			d[x] = lut[v]
		}
	}
}

// remapDeep rounds little-endian samples of 8+shift bits to 8 bits, then
// applies lut.
func remapDeep(dst []byte, dstStride int, src []byte, srcStride, w, h int, shift uint, lut *[256]uint8) {
	half := 1 << (shift - 1)
	for y := 0; y < h; y++ {
		d := dst[y*dstStride : y*dstStride+w]
		s := src[y*srcStride : y*srcStride+2*w]
		for x := range d {
			v := (int(binary.LittleEndian.Uint16(s[2*x:])) + half) >> shift
			if v > 255 {
				v = 255
			}
			d[x] = lut[v]
		}
	}
}

func pack(src *image.RGBA, dst *media.RGBFrame) {
	w, h := dst.Width, dst.Height
	for y := 0; y < h; y++ {
		in := src.Pix[y*src.Stride:]
		out := dst.Pix[y*w*3:]
		for x := 0; x < w; x++ {
			out[x*3+0] = in[x*4+0]
			out[x*3+1] = in[x*4+1]
			out[x*3+2] = in[x*4+2]
		}
	}
}

// Lookup tables expanding ITU-R BT.601 studio swing (luma 16-235, chroma
// 16-240) to full range.
var lumaLUT, chromaLUT = buildLUTs()

var identityLUT = func() (lut [256]uint8) {
	for i := range lut {
		lut[i] = uint8(i)
	}
	return lut
}()

func buildLUTs() (luma, chroma [256]uint8) {
	for i := range luma {
		luma[i] = clamp((float64(i) - 16) * 255 / 219)
		chroma[i] = clamp((float64(i)-128)*255/224 + 128)
	}
	return luma, chroma
}

func clamp(v float64) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 255:
		return 255
	default:
		return uint8(v + 0.5)
	}
}
