package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/tomohiro-takahashi/autovideo/internal/images"
)

// Kind classifies why a run stopped.
type Kind string

const (
	// KindConfiguration means a required input path, setting or credential
	// is missing or invalid. Retrying will not help.
	KindConfiguration Kind = "configuration"
	// KindEmptyInput means the script had no narration or no image matched.
	KindEmptyInput Kind = "empty_input"
	// KindInvalidInput means a source image could not be decoded or framed.
	KindInvalidInput Kind = "invalid_input"
	// KindExternalService means speech synthesis or encoding failed.
	KindExternalService Kind = "external_service"
	// KindOutput means the work directory or final outputs could not be written.
	KindOutput Kind = "output"
)

// Stages of a run, used in Error.Stage and log fields.
const (
	StageSetup      = "setup"
	StageParse      = "parse"
	StageDiscover   = "discover_images"
	StageSynthesize = "synthesize"
	StageFrame      = "frame"
	StageCaption    = "caption"
	StageCompose    = "compose"
	StageExport     = "export"
)

var (
	// ErrNoSegments is returned when the script yields no narration rows.
	ErrNoSegments = errors.New("no narration segments found")
	// ErrNoImages is returned when no source image is available.
	ErrNoImages = images.ErrNoImages
)

// Error is a terminal pipeline failure.
type Error struct {
	Kind  Kind
	Stage string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (%s): %v", e.Stage, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, stage string, err error) *Error {
	return &Error{Kind: kind, Stage: stage, Err: err}
}

// fail classifies err, unless the run's context is done: a canceled or
// expired run is not a failure of the stage that noticed it.
func fail(ctx context.Context, kind Kind, stage string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return canceled(stage, ctxErr)
	}
	return newError(kind, stage, err)
}

// canceled reports a stopped run without a Kind.
func canceled(stage string, err error) error {
	return fmt.Errorf("%s: %w", stage, err)
}

// IsKind reports whether err is a pipeline Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind == kind
	}
	return false
}

// KindOf returns the Kind of err, or "" if err is not a pipeline Error.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}
