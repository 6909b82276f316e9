// Package overlays rasterizes on-screen captions as transparent frames that
// are composited over a segment's still image.
package overlays

import (
	"fmt"
	"image"
	"image/color"
	"strconv"
	"strings"
)

// Style controls caption layout and colors.
type Style struct {
	FontSize     float64
	Color        color.Color
	Outline      color.Color
	OutlineWidth int
	// MaxLineChars is the wrap width in runes, not pixels.
	MaxLineChars int
	// BottomMargin is the gap between the last line and the frame bottom.
	BottomMargin int
}

// Position is the top-left corner of the caption block within the frame.
type Position struct {
	X int
	Y int
}

// Caption is a rendered overlay for one segment.
type Caption struct {
	Text       string
	Lines      []string
	Image      *image.RGBA
	Position   Position
	LineHeight float64
}

// ParseHexColor parses "#RRGGBB" or "#RRGGBBAA".
func ParseHexColor(s string) (color.RGBA, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) != 6 && len(hex) != 8 {
		return color.RGBA{}, fmt.Errorf("invalid color %q", s)
	}
	if len(hex) == 6 {
		hex += "ff"
	}

	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return color.RGBA{
		R: uint8(v >> 24),
		G: uint8(v >> 16),
		B: uint8(v >> 8),
		A: uint8(v),
	}, nil
}
