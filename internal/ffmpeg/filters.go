package ffmpeg

import (
	"fmt"
	"strings"
)

// FilterBuilder helps construct complex ffmpeg filter chains
type FilterBuilder struct {
	filters []string
}

// NewFilterBuilder creates a new filter builder
func NewFilterBuilder() *FilterBuilder {
	return &FilterBuilder{
		filters: make([]string, 0),
	}
}

// Scale adds a scale filter
func (fb *FilterBuilder) Scale(width, height int) *FilterBuilder {
	if width <= 0 || height <= 0 {
		// Return self without adding filter - allows chaining to continue
		return fb
	}
	fb.filters = append(fb.filters, fmt.Sprintf("scale=%d:%d", width, height))
	return fb
}

// Overlay composites the second input of a two-input chain at x,y.
func (fb *FilterBuilder) Overlay(x, y int) *FilterBuilder {
	fb.filters = append(fb.filters, fmt.Sprintf("overlay=%d:%d", x, y))
	return fb
}

// SetSAR forces square pixels.
func (fb *FilterBuilder) SetSAR() *FilterBuilder {
	fb.filters = append(fb.filters, "setsar=1")
	return fb
}

// Format adds a pixel format conversion
func (fb *FilterBuilder) Format(pixFmt string) *FilterBuilder {
	if pixFmt == "" {
		return fb
	}
	fb.filters = append(fb.filters, "format="+pixFmt)
	return fb
}

// Build returns the complete filter string joined with commas
func (fb *FilterBuilder) Build() string {
	if len(fb.filters) == 0 {
		return ""
	}
	return strings.Join(fb.filters, ",")
}

// BuildGraph wraps the chain with input and output pad labels for use
// with -filter_complex, e.g. "[0:v][1:v]overlay=0:0[v]".
func (fb *FilterBuilder) BuildGraph(inputs []string, output string) string {
	var sb strings.Builder
	for _, in := range inputs {
		sb.WriteString("[" + in + "]")
	}
	chain := fb.Build()
	if chain == "" {
		chain = "null"
	}
	sb.WriteString(chain)
	sb.WriteString("[" + output + "]")
	return sb.String()
}
