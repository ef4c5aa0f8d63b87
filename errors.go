package preview

import (
	"errors"
	"fmt"

	"github.com/lumastock/preview/internal/raster"
)

var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrImageProcessing = errors.New("image processing failed")
)

// Stage names the step at which a preview failed.
type Stage = raster.Stage

const (
	StageHeader    = raster.StageHeader
	StageDecode    = raster.StageDecode
	StageOrient    = raster.StageOrient
	StageResize    = raster.StageResize
	StageComposite = raster.StageComposite
	StageMark      = raster.StageMark
	StageEncode    = raster.StageEncode
)

// InvalidInputError reports input whose dimensions cannot be read or are zero.
type InvalidInputError struct {
	Reason string
	Err    error
}

func (e *InvalidInputError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid input: %s: %v", e.Reason, e.Err)
	}
	return "invalid input: " + e.Reason
}

func (e *InvalidInputError) Unwrap() error { return e.Err }

func (e *InvalidInputError) Is(target error) bool { return target == ErrInvalidInput }

// ImageProcessingError reports a failure after the header was read.
type ImageProcessingError struct {
	Stage Stage
	Err   error
}

func (e *ImageProcessingError) Error() string {
	return fmt.Sprintf("image processing failed at %s: %v", e.Stage, e.Err)
}

func (e *ImageProcessingError) Unwrap() error { return e.Err }

func (e *ImageProcessingError) Is(target error) bool { return target == ErrImageProcessing }

// processingErr converts a pipeline failure into an *ImageProcessingError,
// keeping the stage carried by err when there is one.
func processingErr(stage Stage, err error) error {
	var se *raster.StageError
	if errors.As(err, &se) {
		return &ImageProcessingError{Stage: se.Stage, Err: se.Err}
	}
	return &ImageProcessingError{Stage: stage, Err: err}
}

// errorKind is the metrics label of err.
func errorKind(err error) (kind string, stage Stage) {
	var ie *InvalidInputError
	if errors.As(err, &ie) {
		return "invalid_input", StageHeader
	}
	var pe *ImageProcessingError
	if errors.As(err, &pe) {
		return "processing", pe.Stage
	}
	return "unknown", ""
}
