// Package script extracts narration segments from a markdown script table.
//
// A script is a markdown document containing a table whose header row
// names a Visual and an Audio column:
//
//	| Time | Visual | Audio | Note |
//	|------|--------|-------|------|
//	| 0:00 | city   | Narrator: Hello world. | |
//
// Every row after the header yields the text of its Audio column, cleaned
// of speaker labels and emphasis markers.
package script

import (
	"bufio"
	"fmt"
	"io"
	"iter"
	"os"
	"regexp"
	"strings"
)

// audioCell is the position of the Audio column after splitting a row on "|".
// The leading pipe produces an empty first part.
const audioCell = 3

const headerWord = "Audio"

const maxLineSize = 1 << 20

var labelPattern = regexp.MustCompile(`(?i)^(Narration\s*\d*:|Narrator:|Man:|Woman:|Visual:|Audio:)\s*`)

// Segment is one unit of narration.
type Segment struct {
	Index int
	Text  string
}

// ParseFile parses the script at path. A missing file yields an error
// wrapping fs.ErrNotExist.
func ParseFile(path string) ([]Segment, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open script: %w", err)
	}
	defer f.Close()

	segments, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return segments, nil
}

// Parse reads a whole document and returns its segments in row order.
// A document without a table header yields no segments and no error.
func Parse(r io.Reader) ([]Segment, error) {
	var (
		p        parser
		segments []Segment
	)

	scanner := newScanner(r)
	for scanner.Scan() {
		if seg, ok := p.feed(scanner.Text()); ok {
			segments = append(segments, seg)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return segments, nil
}

// Scan yields segments lazily as lines are read. Iteration stops silently
// on a read error; use Parse when the error matters.
func Scan(r io.Reader) iter.Seq[Segment] {
	return func(yield func(Segment) bool) {
		var p parser
		scanner := newScanner(r)
		for scanner.Scan() {
			seg, ok := p.feed(scanner.Text())
			if !ok {
				continue
			}
			if !yield(seg) {
				return
			}
		}
	}
}

// CleanText strips a leading speaker label and markdown emphasis from a
// narration cell.
func CleanText(cell string) string {
	text := labelPattern.ReplaceAllString(strings.TrimSpace(cell), "")
	text = strings.ReplaceAll(text, "**", "")
	text = strings.ReplaceAll(text, "*", "")
	return strings.TrimSpace(text)
}

func newScanner(r io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return scanner
}

type parser struct {
	inTable bool
	next    int
}

func (p *parser) feed(line string) (Segment, bool) {
	if !strings.Contains(line, "|") {
		return Segment{}, false
	}
	if isHeader(line) {
		p.inTable = true
		return Segment{}, false
	}
	if !p.inTable || strings.Contains(line, "---") {
		return Segment{}, false
	}

	parts := strings.Split(line, "|")
	if len(parts) <= audioCell {
		return Segment{}, false
	}

	cell := strings.TrimSpace(parts[audioCell])
	if cell == "" || cell == headerWord {
		return Segment{}, false
	}

	text := CleanText(cell)
	if text == "" || text == headerWord {
		return Segment{}, false
	}

	seg := Segment{Index: p.next, Text: text}
	p.next++
	return seg, true
}

func isHeader(line string) bool {
	return strings.Contains(line, "|") &&
		strings.Contains(line, "Visual") &&
		strings.Contains(line, headerWord)
}
