package raster

import (
	"context"
	"fmt"
	"image"
)

// Stage names a step of the pipeline.
type Stage string

const (
	StageHeader    Stage = "header"
	StageDecode    Stage = "decode"
	StageOrient    Stage = "orient"
	StageResize    Stage = "resize"
	StageComposite Stage = "composite"
	StageMark      Stage = "mark"
	StageEncode    Stage = "encode"
)

// StageError is a failure at one step of the pipeline.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func stageErr(s Stage, err error) error {
	return &StageError{Stage: s, Err: err}
}

// Pipeline turns an upright source raster into encoded preview bytes:
// resize, composite the overlay, optionally mark, encode.
type Pipeline struct {
	Quality int
	// Mark runs on the composited raster before encoding when set.
	Mark func(context.Context, *image.NRGBA) (*image.NRGBA, error)
}

// Run produces the preview of src at exactly width x height. overlay must
// cover the width x height canvas. Nothing is returned unless every step
// succeeds.
func (p Pipeline) Run(ctx context.Context, src image.Image, width, height int, overlay image.Image) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, stageErr(StageResize, err)
	}
	b := src.Bounds()
	if b.Dx() < width || b.Dy() < height {
		return nil, stageErr(StageResize, fmt.Errorf("target %dx%d enlarges source %dx%d", width, height, b.Dx(), b.Dy()))
	}
	canvas := Resize(src, width, height)

	if err := ctx.Err(); err != nil {
		return nil, stageErr(StageComposite, err)
	}
	if ob := overlay.Bounds(); ob.Dx() < width || ob.Dy() < height {
		return nil, stageErr(StageComposite, fmt.Errorf("overlay %dx%d does not cover %dx%d", ob.Dx(), ob.Dy(), width, height))
	}
	canvas = Composite(canvas, overlay)

	if p.Mark != nil {
		marked, err := p.Mark(ctx, canvas)
		if err != nil {
			return nil, stageErr(StageMark, err)
		}
		canvas = marked
	}

	if err := ctx.Err(); err != nil {
		return nil, stageErr(StageEncode, err)
	}
	data, err := EncodeJPEG(canvas, p.Quality)
	if err != nil {
		return nil, stageErr(StageEncode, err)
	}
	return data, nil
}
