// Package ppm writes converted frames as binary PPM (P6) files.
package ppm

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/Monkeyanator/framegrab/pkg/media"
)

// Header returns the P6 header for a w x h picture.
func Header(w, h int) string {
	return fmt.Sprintf("P6\n%d %d\n255\n", w, h)
}

// Encode writes the header followed by the raw RGB rows.
func Encode(w io.Writer, f *media.RGBFrame) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(Header(f.Width, f.Height)); err != nil {
		return err
	}
	row := f.Width * 3
	for y := 0; y < f.Height; y++ {
		if _, err := bw.Write(f.Pix[y*row : (y+1)*row]); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Writer saves numbered frames into Dir.
type Writer struct {
	Dir string
}

// Name returns the file name of frame seq (1-based).
func Name(seq int) string {
	return fmt.Sprintf("frame%d.ppm", seq)
}

// Write saves f as Dir/frame<seq>.ppm and returns the path. Failures wrap
// media.ErrWriteFailed.
func (w *Writer) Write(f *media.RGBFrame, seq int) (string, error) {
	path := filepath.Join(w.Dir, Name(seq))
	file, err := os.Create(path)
	if err != nil {
		return path, fmt.Errorf("%w: could not open file %q for writing: %w", media.ErrWriteFailed, path, err)
	}
	if err := Encode(file, f); err != nil {
		file.Close()
		return path, fmt.Errorf("%w: %q: %w", media.ErrWriteFailed, path, err)
	}
	if err := file.Close(); err != nil {
		return path, fmt.Errorf("%w: %q: %w", media.ErrWriteFailed, path, err)
	}
	return path, nil
}
