package overlays

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
)

// ErrEmptyCaption is returned for text with nothing to draw.
var ErrEmptyCaption = errors.New("caption text is empty")

// lineSpacing is the line height as a multiple of the font size.
const lineSpacing = 1.5

// CaptionRenderer draws outlined, centered caption text onto a transparent
// canvas the size of the video frame. A renderer is not safe for
// concurrent use because font faces cache glyphs.
type CaptionRenderer struct {
	width  int
	height int
	face   font.Face
	style  Style
}

// NewCaptionRenderer creates a renderer for width x height frames.
func NewCaptionRenderer(width, height int, face font.Face, style Style) (*CaptionRenderer, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid canvas size %dx%d", width, height)
	}
	if face == nil {
		return nil, fmt.Errorf("font face is required")
	}
	if style.FontSize <= 0 {
		return nil, fmt.Errorf("font size must be positive")
	}
	if style.Color == nil {
		style.Color = color.White
	}
	if style.Outline == nil {
		style.Outline = color.Black
	}
	return &CaptionRenderer{width: width, height: height, face: face, style: style}, nil
}

// Render wraps text and draws it with the block's bottom edge BottomMargin
// pixels above the bottom of the frame.
func (r *CaptionRenderer) Render(text string) (*Caption, error) {
	lines := Wrap(text, r.style.MaxLineChars)
	if len(lines) == 0 {
		return nil, ErrEmptyCaption
	}

	canvas := image.NewRGBA(image.Rect(0, 0, r.width, r.height))

	lineHeight := r.style.FontSize * lineSpacing
	blockHeight := float64(len(lines)) * lineHeight
	top := float64(r.height-r.style.BottomMargin) - blockHeight

	// center each glyph run vertically within its line box
	metrics := r.face.Metrics()
	textHeight := (metrics.Ascent + metrics.Descent).Round()
	baselineOffset := (lineHeight-float64(textHeight))/2 + float64(metrics.Ascent.Round())

	stroke := &font.Drawer{Dst: canvas, Src: image.NewUniform(r.style.Outline), Face: r.face}
	fill := &font.Drawer{Dst: canvas, Src: image.NewUniform(r.style.Color), Face: r.face}
	sw := r.style.OutlineWidth
	offsets := []image.Point{{-sw, 0}, {sw, 0}, {0, -sw}, {0, sw}}

	for i, line := range lines {
		width := font.MeasureString(r.face, line).Round()
		x := (r.width - width) / 2
		y := int(top + float64(i)*lineHeight + baselineOffset)

		if sw > 0 {
			for _, off := range offsets {
				stroke.Dot = fixed.P(x+off.X, y+off.Y)
				stroke.DrawString(line)
			}
		}
		fill.Dot = fixed.P(x, y)
		fill.DrawString(line)
	}

	return &Caption{
		Text:       text,
		Lines:      lines,
		Image:      canvas,
		Position:   Position{X: 0, Y: int(top)},
		LineHeight: lineHeight,
	}, nil
}
