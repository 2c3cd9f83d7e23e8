// Package stillframe renders annotated PNG previews of extracted frames.
package stillframe

import (
	"fmt"
	"image"
	"math"
	"path/filepath"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/Monkeyanator/framegrab/pkg/media"
)

const (
	minFontSize  = 8.0
	fontSizeStep = 4.0
)

// Renderer writes frame<N>.png next to the PPM output.
type Renderer struct {
	dir  string
	font *truetype.Font
}

func NewRenderer(dir string) (*Renderer, error) {
	f, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("failed to parse preview font: %w", err)
	}
	return &Renderer{dir: dir, font: f}, nil
}

// Render captions f with its number and size and saves it as a PNG.
func (r *Renderer) Render(f *media.RGBFrame, seq int) (string, error) {
	path := filepath.Join(r.dir, fmt.Sprintf("frame%d.png", seq))
	dc := gg.NewContextForImage(Image(f))
	r.caption(dc, fmt.Sprintf("#%d  %dx%d", seq, f.Width, f.Height))
	if err := dc.SavePNG(path); err != nil {
		return path, fmt.Errorf("failed to render preview %s: %w", path, err)
	}
	return path, nil
}

// Image copies an RGB24 frame into an opaque RGBA image.
func Image(f *media.RGBFrame) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
	for i, j := 0, 0; i < len(f.Pix); i, j = i+3, j+4 {
		img.Pix[j+0] = f.Pix[i+0]
		img.Pix[j+1] = f.Pix[i+1]
		img.Pix[j+2] = f.Pix[i+2]
		img.Pix[j+3] = 0xff
	}
	return img
}

// caption draws text centered on a translucent band along the bottom edge.
func (r *Renderer) caption(dc *gg.Context, text string) {
	dc.SetFontFace(r.fit(dc, text))
	_, th := dc.MeasureString(text)
	pad := math.Max(2, th/4)
	band := th + 2*pad
	w, h := float64(dc.Width()), float64(dc.Height())

	dc.SetRGBA(0, 0, 0, 0.6)
	dc.DrawRectangle(0, h-band, w, band)
	dc.Fill()

	dc.SetRGB(1, 1, 0)
	dc.DrawStringAnchored(text, w/2, h-band/2, 0.5, 0.5)
}

// fit returns the largest face whose rendering of text stays within 80% of
// the width and 10% of the height. Small frames still get minFontSize.
func (r *Renderer) fit(dc *gg.Context, text string) font.Face {
	maxW := float64(dc.Width()) * 0.8
	maxH := float64(dc.Height()) * 0.1

	face := r.face(minFontSize)
	for size := minFontSize + fontSizeStep; ; size += fontSizeStep {
		next := r.face(size)
		dc.SetFontFace(next)
		w, h := dc.MeasureString(text)
		if w > maxW || h > maxH {
			return face
		}
		face = next
	}
}

func (r *Renderer) face(size float64) font.Face {
	return truetype.NewFace(r.font, &truetype.Options{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
}
