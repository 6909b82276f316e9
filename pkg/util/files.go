package util

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// EnsureDir creates a directory if it doesn't exist
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0755)
}

// FileExists checks if a file exists
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// CleanupFiles removes multiple files, ignoring errors
func CleanupFiles(paths ...string) {
	for _, path := range paths {
		_ = os.Remove(path)
	}
}

// PartialPath returns the sibling path used while a file is being produced.
// The original extension is kept last so tools that sniff by extension
// (ffmpeg picks the muxer from it) still work.
func PartialPath(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + ".partial" + ext
}

// BackupPath returns the sibling path an existing output is moved to while
// its replacement is committed.
func BackupPath(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + ".previous" + ext
}

// Pending is a finished partial file waiting to replace Final.
type Pending struct {
	Partial string
	Final   string
}

type committed struct {
	final  string
	backup string
}

// Commit renames each partial file onto its final path, in order. Existing
// finals are moved to BackupPath first and restored if any later rename
// fails, so either every file is replaced or none is. Leftover partials are
// removed on failure.
func Commit(pending []Pending) error {
	for _, p := range pending {
		if info, err := os.Stat(p.Final); err == nil && info.IsDir() {
			discardPartials(pending)
			return fmt.Errorf("commit %s: destination is a directory", p.Final)
		}
	}

	var done []committed
	for i, p := range pending {
		c := committed{final: p.Final}
		if _, err := os.Lstat(p.Final); err == nil {
			c.backup = BackupPath(p.Final)
			if err := os.Rename(p.Final, c.backup); err != nil {
				rollback(done)
				discardPartials(pending[i:])
				return fmt.Errorf("commit %s: move previous aside: %w", p.Final, err)
			}
		}

		if err := os.Rename(p.Partial, p.Final); err != nil {
			if c.backup != "" {
				_ = os.Rename(c.backup, p.Final)
			}
			rollback(done)
			discardPartials(pending[i:])
			return fmt.Errorf("commit %s: %w", p.Final, err)
		}
		done = append(done, c)
	}

	for _, c := range done {
		if c.backup != "" {
			_ = os.Remove(c.backup)
		}
	}
	return nil
}

// rollback undoes committed renames, newest first.
func rollback(done []committed) {
	for i := len(done) - 1; i >= 0; i-- {
		c := done[i]
		if c.backup != "" {
			_ = os.Rename(c.backup, c.final)
		} else {
			_ = os.Remove(c.final)
		}
	}
}

func discardPartials(pending []Pending) {
	for _, p := range pending {
		_ = os.Remove(p.Partial)
	}
}

// ListFiles returns the regular files in dir whose base name starts with
// prefix and whose extension (case-insensitive) is in exts, sorted by name.
// Symlinks count when they resolve to a regular file.
func ListFiles(dir, prefix string, exts []string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	allowed := make(map[string]bool, len(exts))
	for _, ext := range exts {
		allowed[strings.ToLower(ext)] = true
	}

	var out []string
	for _, entry := range entries {
		name := entry.Name()
		if !isRegular(dir, entry) {
			continue
		}
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		if !allowed[strings.ToLower(filepath.Ext(name))] {
			continue
		}
		out = append(out, filepath.Join(dir, name))
	}
	sort.Strings(out)
	return out, nil
}

func isRegular(dir string, entry os.DirEntry) bool {
	if entry.Type().IsRegular() {
		return true
	}
	if entry.Type()&os.ModeSymlink == 0 {
		return false
	}
	info, err := os.Stat(filepath.Join(dir, entry.Name()))
	return err == nil && info.Mode().IsRegular()
}
