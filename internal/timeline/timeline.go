// Package timeline holds composed video segments in narration order.
package timeline

import (
	"fmt"
	"time"

	"github.com/tomohiro-takahashi/autovideo/internal/script"
	"github.com/tomohiro-takahashi/autovideo/internal/speech"
)

// Segment is one narration unit with everything rendered for it: a still
// frame, an optional caption overlay and the spoken audio. It is shown for
// exactly the audio's duration.
type Segment struct {
	Index      int
	Text       string
	ImageIndex int
	ImagePath  string
	// FramePath is the full-size still shown for the whole segment.
	FramePath string
	// CaptionPath is a transparent overlay, empty when captions are off.
	CaptionPath string
	AudioPath   string
	Duration    time.Duration
}

// Frame is the still chosen for a segment.
type Frame struct {
	ImageIndex int
	ImagePath  string
	Path       string
}

// Compose pairs a narration segment with its frame, optional caption and
// audio. The segment lasts as long as the audio, to the nanosecond.
func Compose(seg script.Segment, frame Frame, captionPath string, clip speech.AudioClip) (Segment, error) {
	if clip.Index != seg.Index {
		return Segment{}, fmt.Errorf("audio clip %d does not belong to segment %d", clip.Index, seg.Index)
	}
	if clip.Duration <= 0 {
		return Segment{}, fmt.Errorf("segment %d: audio duration must be positive, got %v", seg.Index, clip.Duration)
	}
	if frame.Path == "" {
		return Segment{}, fmt.Errorf("segment %d: frame is required", seg.Index)
	}

	return Segment{
		Index:       seg.Index,
		Text:        seg.Text,
		ImageIndex:  frame.ImageIndex,
		ImagePath:   frame.ImagePath,
		FramePath:   frame.Path,
		CaptionPath: captionPath,
		AudioPath:   clip.Path,
		Duration:    clip.Duration,
	}, nil
}

// Timeline is an ordered list of segments.
type Timeline struct {
	segments []Segment
}

// New creates an empty timeline.
func New() *Timeline {
	return &Timeline{
		segments: make([]Segment, 0),
	}
}

// Append adds a segment to the end.
func (t *Timeline) Append(seg Segment) {
	t.segments = append(t.segments, seg)
}

// Len returns the number of segments.
func (t *Timeline) Len() int {
	return len(t.segments)
}

// Segments returns a copy of the segments in order.
func (t *Timeline) Segments() []Segment {
	out := make([]Segment, len(t.segments))
	copy(out, t.segments)
	return out
}

// Duration is the sum of all segment durations.
func (t *Timeline) Duration() time.Duration {
	var total time.Duration
	for _, s := range t.segments {
		total += s.Duration
	}
	return total
}

// Texts returns the narration text of every segment in order.
func (t *Timeline) Texts() []string {
	texts := make([]string, len(t.segments))
	for i, s := range t.segments {
		texts[i] = s.Text
	}
	return texts
}
