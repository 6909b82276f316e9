package images

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/nfnt/resize"
)

// Policies for images that are still narrower than the frame after scaling.
const (
	PolicyLetterbox = "letterbox"
	PolicyError     = "error"
)

// ErrFrameTooNarrow is returned under PolicyError when a scaled image does
// not cover the frame width.
var ErrFrameTooNarrow = errors.New("image too narrow for frame")

// Framer scales an image to the frame height and crops or pads it to the
// frame width.
type Framer struct {
	Width  int
	Height int
	Policy string
	// Background fills letterbox bars. Zero means opaque black.
	Background color.Color
}

// Frame returns an image of exactly Width x Height. The source is resized,
// keeping its aspect ratio, to Height pixels tall; a wider result keeps the
// horizontally centered Width columns, a narrower one is handled by Policy.
func (f Framer) Frame(img image.Image) (*image.RGBA, error) {
	if f.Width <= 0 || f.Height <= 0 {
		return nil, fmt.Errorf("invalid frame size %dx%d", f.Width, f.Height)
	}
	if img.Bounds().Empty() {
		return nil, fmt.Errorf("empty source image")
	}

	scaled := resize.Resize(0, uint(f.Height), img, resize.Lanczos3)
	sb := scaled.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))

	if sb.Dx() >= f.Width {
		left := sb.Dx()/2 - f.Width/2
		draw.Draw(dst, dst.Bounds(), scaled, sb.Min.Add(image.Pt(left, 0)), draw.Src)
		return dst, nil
	}

	if f.Policy == PolicyError {
		return nil, fmt.Errorf("%w: %dpx wide after scaling, frame is %dpx", ErrFrameTooNarrow, sb.Dx(), f.Width)
	}

	bg := f.Background
	if bg == nil {
		bg = color.Black
	}
	draw.Draw(dst, dst.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)

	offset := (f.Width - sb.Dx()) / 2
	target := image.Rect(offset, 0, offset+sb.Dx(), f.Height)
	draw.Draw(dst, target, scaled, sb.Min, draw.Over)
	return dst, nil
}
