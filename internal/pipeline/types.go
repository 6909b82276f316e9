package pipeline

import (
	"time"

	"github.com/tomohiro-takahashi/autovideo/internal/export"
	"github.com/tomohiro-takahashi/autovideo/internal/images"
	"github.com/tomohiro-takahashi/autovideo/internal/overlays"
	"github.com/tomohiro-takahashi/autovideo/internal/speech"
)

// Config holds pipeline-specific configuration
type Config struct {
	// Workers caps concurrent speech synthesis calls.
	Workers int
	// Captions burns the narration text into each segment.
	Captions bool
	// KeepWorkDir leaves intermediate files on disk for debugging.
	KeepWorkDir bool
}

// Backends are the external capabilities a run drives.
type Backends struct {
	Speech  speech.Backend
	Prober  speech.Prober
	Encoder export.Encoder
}

// PlannedSegment is a narration row and the image it will be shown over.
type PlannedSegment struct {
	Index      int
	Text       string
	ImageIndex int
	ImagePath  string
}

// Plan is what a run would produce, without synthesizing or encoding.
type Plan struct {
	Slug           string
	ScriptPath     string
	VideoPath      string
	TranscriptPath string
	ImageSource    images.Source
	Images         []string
	Segments       []PlannedSegment
}

// Result summarizes a completed run.
type Result struct {
	RunID          string
	Slug           string
	VideoPath      string
	TranscriptPath string
	Segments       int
	Duration       time.Duration
	ImageSource    images.Source
	// ImageIndices is the source image used by each segment, in order.
	ImageIndices []int
	// Font is nil when captions are off.
	Font *overlays.FontSelection
}
