package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomohiro-takahashi/autovideo/internal/config"
	"github.com/tomohiro-takahashi/autovideo/internal/ffmpeg"
)

// ErrDryRun is returned by every backend of a dry-run pipeline.
var ErrDryRun = errors.New("dry run: no speech or encoder backend")

type dryRun struct{}

func (dryRun) Name() string { return "dry-run" }

func (dryRun) Speak(context.Context, string, string, string) error { return ErrDryRun }

func (dryRun) ProbeDuration(context.Context, string) (time.Duration, error) { return 0, ErrDryRun }

func (dryRun) RenderStill(context.Context, ffmpeg.StillOptions) error { return ErrDryRun }

func (dryRun) Concat(context.Context, ffmpeg.ConcatOptions) error { return ErrDryRun }

// NewDryRun creates a pipeline that can Plan but not Run. It needs neither
// ffmpeg nor a speech provider.
func NewDryRun(logger zerolog.Logger, appCfg *config.Config) (*Pipeline, error) {
	return NewWithBackends(logger, nil, appCfg, Backends{
		Speech:  dryRun{},
		Prober:  dryRun{},
		Encoder: dryRun{},
	})
}
