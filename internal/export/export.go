// Package export encodes a timeline into the final video and writes the
// narration transcript next to it.
package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/tomohiro-takahashi/autovideo/internal/ffmpeg"
	"github.com/tomohiro-takahashi/autovideo/internal/timeline"
	"github.com/tomohiro-takahashi/autovideo/pkg/util"
)

// ErrEmptyTimeline is returned when there is nothing to encode.
var ErrEmptyTimeline = errors.New("timeline is empty")

// TranscriptSeparator joins segment texts in the transcript.
const TranscriptSeparator = "\n\n"

// Encoder renders segments and joins them.
type Encoder interface {
	RenderStill(ctx context.Context, opts ffmpeg.StillOptions) error
	Concat(ctx context.Context, opts ffmpeg.ConcatOptions) error
}

// Artifacts are the final output locations.
type Artifacts struct {
	VideoPath      string
	TranscriptPath string
}

// Options configures segment encoding.
type Options struct {
	Width  int
	Height int
	FPS    float64
	Preset string
	CRF    int
}

// Exporter turns a timeline into a video file and a transcript.
type Exporter struct {
	logger  zerolog.Logger
	encoder Encoder
	opts    Options
}

// New creates an exporter.
func New(logger zerolog.Logger, encoder Encoder, opts Options) *Exporter {
	if opts.FPS <= 0 {
		opts.FPS = ffmpeg.DefaultFPS
	}
	return &Exporter{
		logger:  logger.With().Str("component", "export").Logger(),
		encoder: encoder,
		opts:    opts,
	}
}

// SegmentPath is where segment index is encoded inside workDir.
func SegmentPath(workDir string, index int) string {
	return filepath.Join(workDir, fmt.Sprintf("segment_%d.mp4", index))
}

// Transcript joins segment texts with a blank line between them.
func Transcript(texts []string) string {
	return strings.Join(texts, TranscriptSeparator)
}

// Export encodes every segment into workDir, concatenates them and writes
// the transcript. Both outputs are produced under temporary names and
// renamed into place only once both are complete. If either rename fails,
// the other is rolled back, so a failed export leaves any previous outputs
// as they were.
func (e *Exporter) Export(ctx context.Context, tl *timeline.Timeline, workDir string, out Artifacts) error {
	if tl == nil || tl.Len() == 0 {
		return ErrEmptyTimeline
	}
	if out.VideoPath == "" || out.TranscriptPath == "" {
		return fmt.Errorf("video and transcript paths are required")
	}

	segments := tl.Segments()
	rendered := make([]string, 0, len(segments))

	for i, seg := range segments {
		path := SegmentPath(workDir, seg.Index)
		err := e.encoder.RenderStill(ctx, ffmpeg.StillOptions{
			Image:    seg.FramePath,
			Overlay:  seg.CaptionPath,
			Audio:    seg.AudioPath,
			Output:   path,
			Duration: seg.Duration,
			Width:    e.opts.Width,
			Height:   e.opts.Height,
			FPS:      e.opts.FPS,
			Preset:   e.opts.Preset,
			CRF:      e.opts.CRF,
		})
		if err != nil {
			return fmt.Errorf("encode segment %d: %w", seg.Index, err)
		}
		rendered = append(rendered, path)

		e.logger.Info().
			Int("segment", i+1).
			Int("of", len(segments)).
			Dur("duration", seg.Duration).
			Msg("segment encoded")
	}

	for _, dir := range []string{filepath.Dir(out.VideoPath), filepath.Dir(out.TranscriptPath)} {
		if err := util.EnsureDir(dir); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}

	videoPartial := util.PartialPath(out.VideoPath)
	transcriptPartial := util.PartialPath(out.TranscriptPath)

	if err := e.writeOutputs(ctx, tl, rendered, workDir, videoPartial, transcriptPartial); err != nil {
		util.CleanupFiles(videoPartial, transcriptPartial)
		return err
	}

	// video first: a transcript is only replaced once its video is in place
	err := util.Commit([]util.Pending{
		{Partial: videoPartial, Final: out.VideoPath},
		{Partial: transcriptPartial, Final: out.TranscriptPath},
	})
	if err != nil {
		return err
	}

	e.logger.Info().
		Str("video", out.VideoPath).
		Str("transcript", out.TranscriptPath).
		Dur("duration", tl.Duration()).
		Msg("export complete")
	return nil
}

func (e *Exporter) writeOutputs(ctx context.Context, tl *timeline.Timeline, rendered []string, workDir, videoPath, transcriptPath string) error {
	err := e.encoder.Concat(ctx, ffmpeg.ConcatOptions{
		Inputs:  rendered,
		Output:  videoPath,
		ListDir: workDir,
	})
	if err != nil {
		return fmt.Errorf("concatenate segments: %w", err)
	}

	if err := os.WriteFile(transcriptPath, []byte(Transcript(tl.Texts())), 0644); err != nil {
		return fmt.Errorf("write transcript: %w", err)
	}
	return nil
}
