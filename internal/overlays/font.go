package overlays

import (
	"fmt"
	"os"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

// FallbackFontName identifies the embedded font used when no configured
// font could be loaded. It has no CJK glyphs.
const FallbackFontName = "embedded:goregular"

// FontSelection records which font LoadFont ended up with.
type FontSelection struct {
	Path     string
	Fallback bool
	// Skipped lists fonts that exist or were asked for explicitly but
	// could not be loaded, with the reason.
	Skipped []string
}

// LoadFont opens the explicit font path if given, otherwise the first
// loadable candidate, otherwise the embedded Go font. TrueType collections
// (.ttc) use their first face.
func LoadFont(explicit string, candidates []string, size float64) (font.Face, FontSelection, error) {
	if size <= 0 {
		return nil, FontSelection{}, fmt.Errorf("font size must be positive, got %v", size)
	}

	var sel FontSelection

	if explicit != "" {
		face, err := loadFace(explicit, size)
		if err == nil {
			sel.Path = explicit
			return face, sel, nil
		}
		sel.Skipped = append(sel.Skipped, fmt.Sprintf("%s: %v", explicit, err))
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		face, err := loadFace(path, size)
		if err != nil {
			sel.Skipped = append(sel.Skipped, fmt.Sprintf("%s: %v", path, err))
			continue
		}
		sel.Path = path
		return face, sel, nil
	}

	face, err := newFace(goregular.TTF, size)
	if err != nil {
		return nil, sel, fmt.Errorf("load embedded font: %w", err)
	}
	sel.Path = FallbackFontName
	sel.Fallback = true
	return face, sel, nil
}

func loadFace(path string, size float64) (font.Face, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return newFace(data, size)
}

func newFace(data []byte, size float64) (font.Face, error) {
	coll, err := opentype.ParseCollection(data)
	if err != nil {
		return nil, err
	}
	if coll.NumFonts() == 0 {
		return nil, fmt.Errorf("font collection is empty")
	}
	f, err := coll.Font(0)
	if err != nil {
		return nil, err
	}
	return opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
}
