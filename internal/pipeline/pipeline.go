package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/image/font"

	"github.com/tomohiro-takahashi/autovideo/internal/config"
	"github.com/tomohiro-takahashi/autovideo/internal/export"
	"github.com/tomohiro-takahashi/autovideo/internal/ffmpeg"
	"github.com/tomohiro-takahashi/autovideo/internal/images"
	"github.com/tomohiro-takahashi/autovideo/internal/logging"
	"github.com/tomohiro-takahashi/autovideo/internal/overlays"
	"github.com/tomohiro-takahashi/autovideo/internal/script"
	"github.com/tomohiro-takahashi/autovideo/internal/speech"
	"github.com/tomohiro-takahashi/autovideo/internal/timeline"
)

// Pipeline turns a slug's script and images into a narrated video and a
// caption transcript.
type Pipeline struct {
	logger   zerolog.Logger
	config   *Config
	app      *config.Config
	backends Backends
}

// New creates a pipeline backed by ffmpeg and the configured speech
// provider.
func New(logger zerolog.Logger, cfg *Config, appCfg *config.Config) (*Pipeline, error) {
	if appCfg == nil {
		appCfg = config.Default()
	}

	ffmpegExec, err := ffmpeg.New(logger, ffmpeg.Options{
		BinaryPath: appCfg.FFmpeg.BinaryPath,
		ProbePath:  appCfg.FFmpeg.ProbePath,
		Threads:    appCfg.FFmpeg.Threads,
		Timeout:    appCfg.FFmpeg.Timeout,
	})
	if err != nil {
		return nil, newError(KindConfiguration, StageSetup, fmt.Errorf("failed to initialize ffmpeg: %w", err))
	}

	backend, err := newSpeechBackend(logger, appCfg.Speech)
	if err != nil {
		return nil, newError(KindConfiguration, StageSetup, err)
	}

	return NewWithBackends(logger, cfg, appCfg, Backends{
		Speech:  backend,
		Prober:  ffmpegExec,
		Encoder: ffmpegExec,
	})
}

func newSpeechBackend(logger zerolog.Logger, cfg config.SpeechConfig) (speech.Backend, error) {
	switch cfg.Provider {
	case config.ProviderEdgeTTS:
		return speech.NewEdgeTTS(logger, cfg.BinaryPath)
	case config.ProviderOpenAI:
		return speech.NewOpenAI(logger, cfg.APIKey, cfg.Model, cfg.Timeout)
	default:
		return nil, fmt.Errorf("unknown speech provider %q", cfg.Provider)
	}
}

// NewWithBackends creates a pipeline over explicit backends.
func NewWithBackends(logger zerolog.Logger, cfg *Config, appCfg *config.Config, b Backends) (*Pipeline, error) {
	if appCfg == nil {
		appCfg = config.Default()
	}
	if cfg == nil {
		cfg = &Config{
			Workers:  appCfg.Concurrency,
			Captions: appCfg.Subtitles.Enabled,
		}
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}

	if b.Speech == nil || b.Prober == nil || b.Encoder == nil {
		return nil, newError(KindConfiguration, StageSetup, errors.New("speech, prober and encoder backends are required"))
	}
	if err := appCfg.Validate(); err != nil {
		return nil, newError(KindConfiguration, StageSetup, err)
	}

	return &Pipeline{
		logger:   logging.WithComponent(logger, "pipeline"),
		config:   cfg,
		app:      appCfg,
		backends: b,
	}, nil
}

// Plan parses the script and assigns images without producing anything.
func (p *Pipeline) Plan(ctx context.Context, slug string) (*Plan, error) {
	if err := ctx.Err(); err != nil {
		return nil, canceled(StageParse, err)
	}

	segments, disc, err := p.prepare(p.logger, slug)
	if err != nil {
		return nil, err
	}

	plan := &Plan{
		Slug:           slug,
		ScriptPath:     p.app.ScriptPath(slug),
		VideoPath:      p.app.VideoPath(slug),
		TranscriptPath: p.app.TranscriptPath(slug),
		ImageSource:    disc.Source,
		Images:         disc.Paths,
		Segments:       make([]PlannedSegment, len(segments)),
	}
	for i, seg := range segments {
		imgIdx, imgPath := disc.Pick(seg.Index)
		plan.Segments[i] = PlannedSegment{
			Index:      seg.Index,
			Text:       seg.Text,
			ImageIndex: imgIdx,
			ImagePath:  imgPath,
		}
	}
	return plan, nil
}

// Run produces the video and transcript for slug. Nothing is written to the
// output directories unless every segment was synthesized and encoded.
func (p *Pipeline) Run(ctx context.Context, slug string) (*Result, error) {
	runID := uuid.NewString()
	logger := p.logger.With().Str("run_id", runID).Str("slug", slug).Logger()

	logger.Info().
		Str("provider", p.backends.Speech.Name()).
		Str("voice", p.app.Speech.Voice).
		Bool("captions", p.config.Captions).
		Msg("starting video pipeline")

	// Stage 1: Parse script and find images
	segments, disc, err := p.prepare(logger, slug)
	if err != nil {
		return nil, err
	}

	workDir, err := os.MkdirTemp(p.app.TempDir, "autovideo-"+runID[:8]+"-")
	if err != nil {
		return nil, newError(KindOutput, StageSetup, fmt.Errorf("create work directory: %w", err))
	}
	defer func() {
		if p.config.KeepWorkDir {
			logger.Info().Str("work_dir", workDir).Msg("keeping work directory")
			return
		}
		if err := os.RemoveAll(workDir); err != nil {
			logger.Warn().Err(err).Str("work_dir", workDir).Msg("failed to remove work directory")
		}
	}()

	// Stage 2: Narration
	synth := speech.NewSynthesizer(logger, p.backends.Speech, p.backends.Prober, speech.Options{
		Voice:   p.app.Speech.Voice,
		Timeout: p.app.Speech.Timeout,
		Retries: p.app.Speech.Retries,
		Workers: p.config.Workers,
	})
	clips, err := synth.SynthesizeAll(ctx, segments, workDir)
	if err != nil {
		return nil, fail(ctx, KindExternalService, StageSynthesize, err)
	}

	result := &Result{
		RunID:          runID,
		Slug:           slug,
		VideoPath:      p.app.VideoPath(slug),
		TranscriptPath: p.app.TranscriptPath(slug),
		ImageSource:    disc.Source,
		ImageIndices:   make([]int, 0, len(segments)),
	}

	// Stage 3: Captions
	var captions *overlays.CaptionRenderer
	if p.config.Captions {
		var face font.Face
		face, captions, result.Font, err = p.captionRenderer(logger)
		if err != nil {
			return nil, err
		}
		defer face.Close()
	}

	// Stage 4: Frames and composition
	framer := images.Framer{
		Width:  p.app.Video.Width,
		Height: p.app.Video.Height,
		Policy: p.app.Video.NarrowPolicy,
	}
	frames := make(map[int]timeline.Frame)
	tl := timeline.New()

	for i, seg := range segments {
		if err := ctx.Err(); err != nil {
			return nil, canceled(StageCompose, err)
		}

		imgIdx, imgPath := disc.Pick(seg.Index)
		frame, ok := frames[imgIdx]
		if !ok {
			frame, err = p.renderFrame(framer, imgIdx, imgPath, workDir)
			if err != nil {
				return nil, newError(KindInvalidInput, StageFrame, err)
			}
			frames[imgIdx] = frame
		}

		captionPath := ""
		if captions != nil {
			captionPath, err = renderCaption(captions, seg, workDir)
			if err != nil {
				return nil, newError(KindOutput, StageCaption, err)
			}
		}

		composed, err := timeline.Compose(seg, frame, captionPath, clips[i])
		if err != nil {
			return nil, newError(KindExternalService, StageCompose, err)
		}
		tl.Append(composed)
		result.ImageIndices = append(result.ImageIndices, imgIdx)

		logger.Debug().
			Int("segment", seg.Index).
			Int("image", imgIdx).
			Dur("duration", composed.Duration).
			Msg("segment composed")
	}

	// Stage 5: Encode and write outputs
	exporter := export.New(logger, p.backends.Encoder, export.Options{
		Width:  p.app.Video.Width,
		Height: p.app.Video.Height,
		FPS:    p.app.Video.FPS,
		Preset: p.app.FFmpeg.Preset,
		CRF:    p.app.FFmpeg.CRF,
	})
	err = exporter.Export(ctx, tl, workDir, export.Artifacts{
		VideoPath:      result.VideoPath,
		TranscriptPath: result.TranscriptPath,
	})
	if err != nil {
		return nil, fail(ctx, exportKind(err), StageExport, err)
	}

	result.Segments = tl.Len()
	result.Duration = tl.Duration()

	logger.Info().
		Str("video", result.VideoPath).
		Str("transcript", result.TranscriptPath).
		Int("segments", result.Segments).
		Dur("duration", result.Duration).
		Msg("video pipeline complete")

	return result, nil
}

// prepare parses the script and discovers images. It never writes.
func (p *Pipeline) prepare(logger zerolog.Logger, slug string) ([]script.Segment, *images.Discovery, error) {
	if err := validateSlug(slug); err != nil {
		return nil, nil, newError(KindConfiguration, StageParse, err)
	}

	scriptPath := p.app.ScriptPath(slug)
	segments, err := script.ParseFile(scriptPath)
	if err != nil {
		return nil, nil, newError(KindConfiguration, StageParse, err)
	}
	if len(segments) == 0 {
		return nil, nil, newError(KindEmptyInput, StageParse, fmt.Errorf("%w in %s", ErrNoSegments, scriptPath))
	}

	logger.Info().
		Str("script", scriptPath).
		Int("segments", len(segments)).
		Msg("script parsed")

	disc, err := images.Discover(p.app.Paths.ImageDir, slug, p.app.Paths.ImageExtensions)
	if err != nil {
		if errors.Is(err, images.ErrNoImages) {
			return nil, nil, newError(KindEmptyInput, StageDiscover, err)
		}
		return nil, nil, newError(KindConfiguration, StageDiscover, err)
	}

	if disc.Fallback() {
		logger.Warn().
			Str("dir", p.app.Paths.ImageDir).
			Int("images", disc.Len()).
			Msg("no images matched slug, using every image in directory")
	} else {
		logger.Info().
			Str("source", string(disc.Source)).
			Int("images", disc.Len()).
			Msg("images found")
	}

	return segments, disc, nil
}

func validateSlug(slug string) error {
	if strings.TrimSpace(slug) == "" {
		return errors.New("slug is required")
	}
	if strings.ContainsAny(slug, `/\`) || slug == "." || slug == ".." {
		return fmt.Errorf("invalid slug %q", slug)
	}
	return nil
}

func (p *Pipeline) renderFrame(framer images.Framer, imgIdx int, imgPath, workDir string) (timeline.Frame, error) {
	img, err := images.Load(imgPath)
	if err != nil {
		return timeline.Frame{}, err
	}
	framed, err := framer.Frame(img)
	if err != nil {
		return timeline.Frame{}, fmt.Errorf("frame %s: %w", imgPath, err)
	}

	path := filepath.Join(workDir, fmt.Sprintf("frame_%d.png", imgIdx))
	if err := images.SavePNG(path, framed); err != nil {
		return timeline.Frame{}, err
	}
	return timeline.Frame{ImageIndex: imgIdx, ImagePath: imgPath, Path: path}, nil
}

func (p *Pipeline) captionRenderer(logger zerolog.Logger) (font.Face, *overlays.CaptionRenderer, *overlays.FontSelection, error) {
	sub := p.app.Subtitles

	fill, err := overlays.ParseHexColor(sub.FontColor)
	if err != nil {
		return nil, nil, nil, newError(KindConfiguration, StageCaption, err)
	}
	outline, err := overlays.ParseHexColor(sub.OutlineColor)
	if err != nil {
		return nil, nil, nil, newError(KindConfiguration, StageCaption, err)
	}

	face, sel, err := overlays.LoadFont(sub.FontPath, sub.FontCandidates, float64(sub.FontSize))
	if err != nil {
		return nil, nil, nil, newError(KindConfiguration, StageCaption, err)
	}
	for _, skipped := range sel.Skipped {
		logger.Warn().Str("font", skipped).Msg("font could not be loaded")
	}
	if sel.Fallback {
		logger.Warn().Msg("no CJK font found, captions use the embedded font and may miss glyphs")
	} else {
		logger.Info().Str("font", sel.Path).Msg("caption font selected")
	}

	renderer, err := overlays.NewCaptionRenderer(p.app.Video.Width, p.app.Video.Height, face, overlays.Style{
		FontSize:     float64(sub.FontSize),
		Color:        fill,
		Outline:      outline,
		OutlineWidth: sub.OutlineWidth,
		MaxLineChars: sub.MaxLineChars,
		BottomMargin: sub.BottomMargin,
	})
	if err != nil {
		face.Close()
		return nil, nil, nil, newError(KindConfiguration, StageCaption, err)
	}
	return face, renderer, &sel, nil
}

func renderCaption(r *overlays.CaptionRenderer, seg script.Segment, workDir string) (string, error) {
	caption, err := r.Render(seg.Text)
	if err != nil {
		return "", fmt.Errorf("caption for segment %d: %w", seg.Index, err)
	}
	path := filepath.Join(workDir, fmt.Sprintf("caption_%d.png", seg.Index))
	if err := images.SavePNG(path, caption.Image); err != nil {
		return "", err
	}
	return path, nil
}

// exportKind separates filesystem failures from encoder failures.
func exportKind(err error) Kind {
	var pathErr *fs.PathError
	var linkErr *os.LinkError
	if errors.As(err, &pathErr) || errors.As(err, &linkErr) {
		return KindOutput
	}
	return KindExternalService
}
