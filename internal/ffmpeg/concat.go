package ffmpeg

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ConcatOptions defines concatenation parameters
type ConcatOptions struct {
	Inputs []string
	Output string
	// ListDir holds the temporary concat list; empty means os.TempDir.
	ListDir      string
	ReEncode     bool
	VideoCodec   string
	AudioCodec   string
	CRF          int
	ProgressFunc ProgressFunc
}

// Concat merges multiple video files into one
func (e *Executor) Concat(ctx context.Context, opts ConcatOptions) error {
	args, cleanup, err := e.prepareConcat(opts)
	if err != nil {
		return err
	}
	defer cleanup()

	e.logger.Info().
		Int("inputs", len(opts.Inputs)).
		Str("output", opts.Output).
		Msg("concatenating segments")

	runOpts := RunOptions{
		Args:            args,
		ProgressHandler: opts.ProgressFunc,
		LogHandler: func(line string) {
			e.logger.Trace().Str("ffmpeg", line).Msg("concatenating")
		},
	}

	if err := e.Run(ctx, runOpts); err != nil {
		return fmt.Errorf("concat failed: %w", err)
	}
	return nil
}

func (e *Executor) prepareConcat(opts ConcatOptions) ([]string, func(), error) {
	if len(opts.Inputs) == 0 {
		return nil, nil, fmt.Errorf("no input files provided")
	}
	if opts.Output == "" {
		return nil, nil, fmt.Errorf("output path is required")
	}

	// Create temporary concat file list
	concatFile, err := createConcatFile(opts.ListDir, opts.Inputs)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create concat file: %w", err)
	}
	cleanup := func() { os.Remove(concatFile) }

	return buildConcatArgs(concatFile, opts), cleanup, nil
}

func buildConcatArgs(listFile string, opts ConcatOptions) []string {
	args := []string{
		"-f", "concat",
		"-safe", "0",
		"-i", listFile,
	}

	if opts.ReEncode {
		codec := opts.VideoCodec
		if codec == "" {
			codec = DefaultVideoCodec
		}
		args = append(args, "-c:v", codec)

		audioCodec := opts.AudioCodec
		if audioCodec == "" {
			audioCodec = DefaultAudioCodec
		}
		args = append(args, "-c:a", audioCodec)

		crf := opts.CRF
		if crf == 0 {
			crf = DefaultCRF
		}
		args = append(args, "-crf", fmt.Sprintf("%d", crf), "-pix_fmt", DefaultPixelFormat)
	} else {
		args = append(args, "-c", "copy")
	}

	args = append(args, "-movflags", "+faststart", opts.Output)
	return args
}

// createConcatFile generates a temporary file list for ffmpeg concat
func createConcatFile(dir string, inputs []string) (string, error) {
	list, err := concatList(inputs)
	if err != nil {
		return "", err
	}

	tmpFile, err := os.CreateTemp(dir, "autovideo-concat-*.txt")
	if err != nil {
		return "", err
	}
	defer tmpFile.Close()

	if _, err := tmpFile.WriteString(list); err != nil {
		os.Remove(tmpFile.Name())
		return "", err
	}
	return tmpFile.Name(), nil
}

// concatList renders the concat demuxer script. Paths are made absolute and
// single quotes are closed, backslash-escaped and reopened for the demuxer.
func concatList(inputs []string) (string, error) {
	var sb strings.Builder
	for _, input := range inputs {
		absPath, err := filepath.Abs(input)
		if err != nil {
			return "", err
		}
		escaped := strings.ReplaceAll(absPath, "'", `'\''`)
		fmt.Fprintf(&sb, "file '%s'\n", escaped)
	}
	return sb.String(), nil
}
