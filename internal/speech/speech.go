package speech

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/tomohiro-takahashi/autovideo/internal/script"
)

var (
	// ErrEmptyText is returned for a segment with nothing to say.
	ErrEmptyText = errors.New("speech: empty text")
	// ErrEmptyAudio is returned when a backend produced no playable audio.
	ErrEmptyAudio = errors.New("speech: empty audio")
)

// AudioClip is the synthesized narration for one segment.
type AudioClip struct {
	Index    int
	Path     string
	Duration time.Duration
}

// Backend turns text into an audio file.
type Backend interface {
	Name() string
	Speak(ctx context.Context, text, voice, outPath string) error
}

// Prober measures the playback length of an audio file.
type Prober interface {
	ProbeDuration(ctx context.Context, path string) (time.Duration, error)
}

// Options configures a Synthesizer.
type Options struct {
	Voice string
	// Timeout bounds one Speak+probe attempt.
	Timeout time.Duration
	// Retries is the number of extra attempts after the first failure.
	Retries       int
	RetryInterval time.Duration
	// Workers caps concurrent synthesis calls.
	Workers int
}

// Synthesizer drives a Backend with timeouts, retries and bounded
// parallelism, and measures each result.
type Synthesizer struct {
	logger  zerolog.Logger
	backend Backend
	prober  Prober
	opts    Options
}

// NewSynthesizer creates a synthesizer over backend and prober.
func NewSynthesizer(logger zerolog.Logger, backend Backend, prober Prober, opts Options) *Synthesizer {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = 500 * time.Millisecond
	}
	return &Synthesizer{
		logger:  logger.With().Str("component", "speech").Str("backend", backend.Name()).Logger(),
		backend: backend,
		prober:  prober,
		opts:    opts,
	}
}

// ClipPath is where the audio for segment index is written inside dir.
func ClipPath(dir string, index int) string {
	return filepath.Join(dir, fmt.Sprintf("voice_%d.mp3", index))
}

// Synthesize speaks one segment into dir and returns the measured clip.
func (s *Synthesizer) Synthesize(ctx context.Context, seg script.Segment, dir string) (AudioClip, error) {
	if seg.Text == "" {
		return AudioClip{}, fmt.Errorf("segment %d: %w", seg.Index, ErrEmptyText)
	}

	path := ClipPath(dir, seg.Index)

	var b backoff.BackOff = backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(s.opts.RetryInterval),
		backoff.WithMaxElapsedTime(0),
	)
	b = backoff.WithContext(backoff.WithMaxRetries(b, uint64(max(s.opts.Retries, 0))), ctx)

	attempt := 0
	clip, err := backoff.RetryNotifyWithData(func() (AudioClip, error) {
		attempt++
		clip, err := s.attempt(ctx, seg, path)
		if err != nil && isPermanent(err) {
			return clip, backoff.Permanent(err)
		}
		return clip, err
	}, b, func(err error, wait time.Duration) {
		s.logger.Warn().
			Err(err).
			Int("segment", seg.Index).
			Int("attempt", attempt).
			Dur("retry_in", wait).
			Msg("synthesis failed, retrying")
	})
	if err != nil {
		os.Remove(path)
		return AudioClip{}, fmt.Errorf("synthesize segment %d after %d attempt(s): %w", seg.Index, attempt, err)
	}

	s.logger.Debug().
		Int("segment", seg.Index).
		Dur("duration", clip.Duration).
		Str("path", clip.Path).
		Msg("segment synthesized")
	return clip, nil
}

func (s *Synthesizer) attempt(ctx context.Context, seg script.Segment, path string) (AudioClip, error) {
	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}

	if err := s.backend.Speak(ctx, seg.Text, s.opts.Voice, path); err != nil {
		return AudioClip{}, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return AudioClip{}, fmt.Errorf("%s wrote no audio: %w", s.backend.Name(), err)
	}
	if info.Size() == 0 {
		return AudioClip{}, ErrEmptyAudio
	}

	dur, err := s.prober.ProbeDuration(ctx, path)
	if err != nil {
		return AudioClip{}, fmt.Errorf("measure audio: %w", err)
	}
	if dur <= 0 {
		return AudioClip{}, fmt.Errorf("measure audio: %w", ErrEmptyAudio)
	}

	return AudioClip{Index: seg.Index, Path: path, Duration: dur}, nil
}

// SynthesizeAll speaks every segment with at most Workers calls in flight.
// Clips come back in segment order regardless of completion order; the
// first failure cancels the remaining work.
func (s *Synthesizer) SynthesizeAll(ctx context.Context, segments []script.Segment, dir string) ([]AudioClip, error) {
	clips := make([]AudioClip, len(segments))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)

	for i, seg := range segments {
		g.Go(func() error {
			clip, err := s.Synthesize(gctx, seg, dir)
			if err != nil {
				return err
			}
			clips[i] = clip
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	s.logger.Info().
		Int("segments", len(clips)).
		Dur("total", totalDuration(clips)).
		Msg("narration synthesized")
	return clips, nil
}

func totalDuration(clips []AudioClip) time.Duration {
	var total time.Duration
	for _, c := range clips {
		total += c.Duration
	}
	return total
}

// permanentError marks a backend failure that retrying cannot fix.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so the Synthesizer does not retry it.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func isPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe) || errors.Is(err, context.Canceled)
}
