package overlays

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"golang.org/x/image/font/gofont/goregular"
)

func TestWrap(t *testing.T) {
	tests := []struct {
		name string
		text string
		max  int
		want []string
	}{
		{"fits", "Hello world.", 16, []string{"Hello world."}},
		{"words", "the quick brown fox jumps", 10, []string{"the quick", "brown fox", "jumps"}},
		{"cjk run", "東京の中古マンションは今が買い時です", 8, []string{"東京の中古マンシ", "ョンは今が買い時", "です"}},
		{"long word after short", "a abcdefghij", 4, []string{"a", "abcd", "efgh", "ij"}},
		{"collapses whitespace", "  spaced \n out  ", 20, []string{"spaced out"}},
		{"no limit", "one two", 0, []string{"one two"}},
		{"empty", "   ", 10, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Wrap(tt.text, tt.max)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Wrap(%q, %d) = %q, want %q", tt.text, tt.max, got, tt.want)
			}
			for _, line := range got {
				if tt.max > 0 && len([]rune(line)) > tt.max {
					t.Errorf("line %q exceeds %d runes", line, tt.max)
				}
			}
		})
	}
}

func TestParseHexColor(t *testing.T) {
	c, err := ParseHexColor("#FF8000")
	if err != nil {
		t.Fatal(err)
	}
	if c != (color.RGBA{R: 255, G: 128, B: 0, A: 255}) {
		t.Errorf("unexpected color %v", c)
	}

	c, err = ParseHexColor("00000080")
	if err != nil {
		t.Fatal(err)
	}
	if c.A != 128 {
		t.Errorf("expected alpha 128, got %d", c.A)
	}

	for _, bad := range []string{"", "#FFF", "#GGGGGG", "#1234567"} {
		if _, err := ParseHexColor(bad); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}

func TestLoadFontFallback(t *testing.T) {
	face, sel, err := LoadFont("", []string{filepath.Join(t.TempDir(), "missing.ttc")}, 40)
	if err != nil {
		t.Fatalf("LoadFont failed: %v", err)
	}
	defer face.Close()

	if !sel.Fallback || sel.Path != FallbackFontName {
		t.Errorf("expected embedded fallback, got %+v", sel)
	}
	if len(sel.Skipped) != 0 {
		t.Errorf("missing candidates are probes, not failures: %v", sel.Skipped)
	}
}

func TestLoadFontCandidateOrder(t *testing.T) {
	dir := t.TempDir()
	broken := filepath.Join(dir, "broken.ttf")
	good := filepath.Join(dir, "good.ttf")
	if err := os.WriteFile(broken, []byte("not a font"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(good, goregular.TTF, 0644); err != nil {
		t.Fatal(err)
	}

	face, sel, err := LoadFont("", []string{filepath.Join(dir, "missing.ttf"), broken, good}, 40)
	if err != nil {
		t.Fatalf("LoadFont failed: %v", err)
	}
	defer face.Close()

	if sel.Fallback || sel.Path != good {
		t.Errorf("expected %s, got %+v", good, sel)
	}
	if len(sel.Skipped) != 1 {
		t.Errorf("expected the broken font to be reported, got %v", sel.Skipped)
	}
}

func TestLoadFontExplicitWins(t *testing.T) {
	dir := t.TempDir()
	explicit := filepath.Join(dir, "explicit.ttf")
	candidate := filepath.Join(dir, "candidate.ttf")
	for _, p := range []string{explicit, candidate} {
		if err := os.WriteFile(p, goregular.TTF, 0644); err != nil {
			t.Fatal(err)
		}
	}

	_, sel, err := LoadFont(explicit, []string{candidate}, 40)
	if err != nil {
		t.Fatal(err)
	}
	if sel.Path != explicit {
		t.Errorf("explicit font should win, got %s", sel.Path)
	}

	_, sel, err = LoadFont(filepath.Join(dir, "nope.ttf"), []string{candidate}, 40)
	if err != nil {
		t.Fatal(err)
	}
	if sel.Path != candidate || len(sel.Skipped) != 1 {
		t.Errorf("a missing explicit font should be reported and skipped, got %+v", sel)
	}
}

func TestLoadFontInvalidSize(t *testing.T) {
	if _, _, err := LoadFont("", nil, 0); err == nil {
		t.Error("expected error for zero size")
	}
}

// opaqueBounds returns the bounding box of pixels with any alpha.
func opaqueBounds(img *image.RGBA) image.Rectangle {
	var r image.Rectangle
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if img.RGBAAt(x, y).A == 0 {
				continue
			}
			px := image.Rect(x, y, x+1, y+1)
			if r.Empty() {
				r = px
			} else {
				r = r.Union(px)
			}
		}
	}
	return r
}

func newTestRenderer(t *testing.T, style Style) *CaptionRenderer {
	t.Helper()
	face, _, err := LoadFont("", nil, style.FontSize)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { face.Close() })

	r, err := NewCaptionRenderer(360, 640, face, style)
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func TestCaptionLayout(t *testing.T) {
	style := Style{
		FontSize:     20,
		Color:        color.White,
		Outline:      color.Black,
		OutlineWidth: 2,
		MaxLineChars: 10,
		BottomMargin: 100,
	}
	r := newTestRenderer(t, style)

	caption, err := r.Render("the quick brown fox")
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	if len(caption.Lines) != 2 {
		t.Fatalf("expected 2 lines, got %q", caption.Lines)
	}
	if b := caption.Image.Bounds(); b.Dx() != 360 || b.Dy() != 640 {
		t.Fatalf("canvas should match the frame, got %v", b)
	}
	if caption.LineHeight != 30 {
		t.Errorf("expected line height 30, got %v", caption.LineHeight)
	}
	// 640 - 100 - 2*30
	if caption.Position.Y != 480 {
		t.Errorf("expected block top 480, got %d", caption.Position.Y)
	}

	ink := opaqueBounds(caption.Image)
	if ink.Empty() {
		t.Fatal("nothing was drawn")
	}
	if ink.Min.Y < 480-style.OutlineWidth || ink.Max.Y > 540+style.OutlineWidth {
		t.Errorf("ink %v escapes the caption block [480,540)", ink)
	}
	// centered lines: left and right margins match within a few pixels
	left, right := ink.Min.X, 360-ink.Max.X
	if d := left - right; d > 8 || d < -8 {
		t.Errorf("caption not centered: left margin %d, right margin %d", left, right)
	}

	if c := caption.Image.RGBAAt(0, 0); c.A != 0 {
		t.Errorf("canvas should be transparent outside the text, got %v", c)
	}
}

func TestCaptionStrokeAndFill(t *testing.T) {
	r := newTestRenderer(t, Style{
		FontSize:     48,
		Color:        color.RGBA{R: 255, A: 255},
		Outline:      color.RGBA{B: 255, A: 255},
		OutlineWidth: 3,
		MaxLineChars: 20,
		BottomMargin: 50,
	})

	caption, err := r.Render("HH")
	if err != nil {
		t.Fatal(err)
	}

	var fill, stroke int
	b := caption.Image.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := caption.Image.RGBAAt(x, y)
			if c.A < 255 {
				continue
			}
			switch {
			case c.R == 255 && c.B == 0:
				fill++
			case c.B == 255 && c.R == 0:
				stroke++
			}
		}
	}
	if fill == 0 || stroke == 0 {
		t.Errorf("expected both fill and stroke pixels, got fill=%d stroke=%d", fill, stroke)
	}
}

func TestCaptionEmpty(t *testing.T) {
	r := newTestRenderer(t, Style{FontSize: 20, MaxLineChars: 10})
	if _, err := r.Render("   "); err != ErrEmptyCaption {
		t.Errorf("expected ErrEmptyCaption, got %v", err)
	}
}

func TestNewCaptionRendererValidation(t *testing.T) {
	face, _, err := LoadFont("", nil, 20)
	if err != nil {
		t.Fatal(err)
	}
	defer face.Close()

	if _, err := NewCaptionRenderer(0, 100, face, Style{FontSize: 20}); err == nil {
		t.Error("expected error for zero width")
	}
	if _, err := NewCaptionRenderer(100, 100, nil, Style{FontSize: 20}); err == nil {
		t.Error("expected error for nil face")
	}
	if _, err := NewCaptionRenderer(100, 100, face, Style{}); err == nil {
		t.Error("expected error for zero font size")
	}
}
