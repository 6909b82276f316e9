// Package images finds the source images for a slug and turns them into
// full-size portrait frames.
package images

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/tomohiro-takahashi/autovideo/pkg/util"
)

// Source names the lookup that produced a Discovery.
type Source string

const (
	// SourceSlugDir means images came from <dir>/<slug>/.
	SourceSlugDir Source = "slug-dir"
	// SourceSlugPrefix means images came from <dir>/<slug>*.
	SourceSlugPrefix Source = "slug-prefix"
	// SourceFallback means nothing matched the slug and every image in
	// <dir> was used.
	SourceFallback Source = "fallback"
)

// ErrNoImages is returned when no lookup finds a single image.
var ErrNoImages = errors.New("no images found")

// DefaultExtensions is used when Discover is given none.
var DefaultExtensions = []string{".webp"}

// Discovery is the ordered image list for a slug.
type Discovery struct {
	Paths  []string
	Source Source
}

// Discover looks for images in <dir>/<slug>/, then <dir>/<slug>*, then any
// image in dir. Paths are sorted by name.
func Discover(dir, slug string, exts []string) (*Discovery, error) {
	if len(exts) == 0 {
		exts = DefaultExtensions
	}

	lookups := []struct {
		dir    string
		prefix string
		source Source
	}{
		{filepath.Join(dir, slug), "", SourceSlugDir},
		{dir, slug, SourceSlugPrefix},
		{dir, "", SourceFallback},
	}

	for _, l := range lookups {
		paths, err := util.ListFiles(l.dir, l.prefix, exts)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("list images in %s: %w", l.dir, err)
		}
		if len(paths) > 0 {
			return &Discovery{Paths: paths, Source: l.source}, nil
		}
	}

	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoImages, err)
	}
	return nil, fmt.Errorf("%w in %s for %q", ErrNoImages, dir, slug)
}

// Len returns the number of images.
func (d *Discovery) Len() int {
	return len(d.Paths)
}

// Pick assigns an image to a segment round-robin.
func (d *Discovery) Pick(segment int) (int, string) {
	i := segment % len(d.Paths)
	return i, d.Paths[i]
}

// Fallback reports whether no slug-specific image was found.
func (d *Discovery) Fallback() bool {
	return d.Source == SourceFallback
}
