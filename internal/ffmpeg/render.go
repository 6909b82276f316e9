package ffmpeg

import (
	"context"
	"fmt"
	"strconv"

	"github.com/tomohiro-takahashi/autovideo/pkg/util"
)

// RenderStill encodes a still frame, optionally with a transparent caption
// on top, for exactly opts.Duration over the given audio clip.
func (e *Executor) RenderStill(ctx context.Context, opts StillOptions) error {
	args, err := buildStillArgs(opts)
	if err != nil {
		return fmt.Errorf("invalid still options: %w", err)
	}

	e.logger.Debug().
		Str("image", opts.Image).
		Str("audio", opts.Audio).
		Str("output", opts.Output).
		Dur("duration", opts.Duration).
		Msg("rendering still segment")

	runOpts := RunOptions{
		Args:            args,
		ProgressHandler: opts.ProgressFunc,
		LogHandler: func(line string) {
			e.logger.Trace().Str("ffmpeg", line).Msg("render output")
		},
	}

	if err := e.Run(ctx, runOpts); err != nil {
		return fmt.Errorf("render %s failed: %w", opts.Output, err)
	}

	return nil
}

// buildStillArgs assembles the ffmpeg arguments for RenderStill.
func buildStillArgs(opts StillOptions) ([]string, error) {
	if err := validateStillOptions(opts); err != nil {
		return nil, err
	}

	fps := opts.FPS
	if fps == 0 {
		fps = DefaultFPS
	}
	rate := strconv.FormatFloat(fps, 'f', -1, 64)

	preset := opts.Preset
	if preset == "" {
		preset = DefaultPreset
	}
	crf := opts.CRF
	if crf == 0 {
		crf = DefaultCRF
	}

	args := []string{"-loop", "1", "-framerate", rate, "-i", opts.Image}
	graphInputs := []string{"0:v"}
	audioInput := 1

	fb := NewFilterBuilder()
	if opts.Overlay != "" {
		args = append(args, "-loop", "1", "-framerate", rate, "-i", opts.Overlay)
		graphInputs = append(graphInputs, "1:v")
		audioInput = 2
		fb.Overlay(0, 0)
	}
	args = append(args, "-i", opts.Audio)

	fb.Scale(opts.Width, opts.Height).SetSAR().Format(DefaultPixelFormat)

	args = append(args,
		"-filter_complex", fb.BuildGraph(graphInputs, "v"),
		"-map", "[v]",
		"-map", fmt.Sprintf("%d:a:0", audioInput),
		"-t", util.FormatDuration(opts.Duration),
		"-r", rate,
		"-c:v", DefaultVideoCodec,
		"-tune", "stillimage",
		"-preset", preset,
		"-crf", strconv.Itoa(crf),
		"-c:a", DefaultAudioCodec,
		"-ar", strconv.Itoa(DefaultSampleRate),
		"-ac", strconv.Itoa(DefaultChannels),
		"-movflags", "+faststart",
		opts.Output,
	)
	return args, nil
}

func validateStillOptions(opts StillOptions) error {
	if opts.Image == "" {
		return fmt.Errorf("image path is required")
	}
	if opts.Audio == "" {
		return fmt.Errorf("audio path is required")
	}
	if opts.Output == "" {
		return fmt.Errorf("output path is required")
	}
	if opts.Duration <= 0 {
		return fmt.Errorf("duration must be positive, got %v", opts.Duration)
	}
	if opts.FPS < 0 {
		return fmt.Errorf("FPS cannot be negative")
	}
	if opts.CRF < 0 || opts.CRF > 51 {
		return fmt.Errorf("CRF must be between 0 and 51")
	}
	return nil
}
