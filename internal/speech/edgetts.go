package speech

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/rs/zerolog"
)

// EdgeTTS speaks through the edge-tts command line tool.
type EdgeTTS struct {
	logger zerolog.Logger
	binary string
}

// NewEdgeTTS resolves the edge-tts binary.
func NewEdgeTTS(logger zerolog.Logger, binary string) (*EdgeTTS, error) {
	if binary == "" {
		binary = "edge-tts"
	}
	path, err := exec.LookPath(binary)
	if err != nil {
		return nil, fmt.Errorf("edge-tts not found (%s): %w", binary, err)
	}
	return &EdgeTTS{
		logger: logger.With().Str("component", "edge-tts").Logger(),
		binary: path,
	}, nil
}

func (e *EdgeTTS) Name() string { return "edge-tts" }

// Speak writes an mp3 of text spoken by voice to outPath.
func (e *EdgeTTS) Speak(ctx context.Context, text, voice, outPath string) error {
	args := edgeTTSArgs(text, voice, outPath)

	e.logger.Debug().
		Str("voice", voice).
		Str("output", outPath).
		Int("chars", len([]rune(text))).
		Msg("executing edge-tts")

	cmd := exec.CommandContext(ctx, e.binary, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("edge-tts: %w", ctx.Err())
		}
		msg := strings.TrimSpace(string(output))
		if errors.Is(err, exec.ErrNotFound) {
			return Permanent(fmt.Errorf("edge-tts: %w", err))
		}
		return fmt.Errorf("edge-tts failed: %w: %s", err, msg)
	}
	return nil
}

func edgeTTSArgs(text, voice, outPath string) []string {
	args := []string{"--text", text, "--write-media", outPath}
	if voice != "" {
		args = append([]string{"--voice", voice}, args...)
	}
	return args
}
