// Package plan computes preview dimensions and the resize strategy for a source image.
package plan

import (
	"errors"
	"fmt"
	"math"
)

const (
	// LargeImageThreshold is the longest side above which a coarse pre-resize runs first.
	LargeImageThreshold = 2000
	// IntermediateBound caps both sides of the coarse pass output.
	IntermediateBound = 1000
)

var (
	ErrZeroDimension = errors.New("image has a zero dimension")
	ErrInvalidLimit  = errors.New("preview width limit must be positive")
)

// Plan is the target size of a preview and whether it needs two passes.
type Plan struct {
	Width, Height int
	TwoPass       bool
}

// Compute returns the preview size for a w x h source constrained to maxWidth.
// The width never exceeds maxWidth and is never enlarged; the height follows
// the source aspect ratio, rounded to the nearest pixel.
func Compute(w, h, maxWidth int) (Plan, error) {
	if w <= 0 || h <= 0 {
		return Plan{}, fmt.Errorf("%w: %dx%d", ErrZeroDimension, w, h)
	}
	if maxWidth <= 0 {
		return Plan{}, fmt.Errorf("%w: %d", ErrInvalidLimit, maxWidth)
	}
	pw := min(w, maxWidth)
	ph := h
	if pw != w {
		ph = scale(h, pw, w)
	}
	return Plan{
		Width:   pw,
		Height:  ph,
		TwoPass: max(w, h) > LargeImageThreshold,
	}, nil
}

// Intermediate fits w x h inside an IntermediateBound square without enlarging.
func Intermediate(w, h int) (int, int) {
	return FitInside(w, h, IntermediateBound, IntermediateBound)
}

// FitInside returns the largest size with the aspect of w x h that fits in
// boxW x boxH. Sizes already inside the box are returned unchanged.
func FitInside(w, h, boxW, boxH int) (int, int) {
	if w <= boxW && h <= boxH {
		return w, h
	}
	// compare w/h against boxW/boxH without floats
	if w*boxH >= h*boxW {
		return boxW, scale(h, boxW, w)
	}
	return scale(w, boxH, h), boxH
}

// ScaleDenominator returns the smallest JPEG IDCT scale denominator (1, 2, 4
// or 8) that keeps a w x h decode within maxPixels, or 0 when none does.
func ScaleDenominator(w, h, maxPixels int) int {
	for _, d := range []int{1, 2, 4, 8} {
		sw, sh := (w+d-1)/d, (h+d-1)/d
		if sw*sh <= maxPixels {
			return d
		}
	}
	return 0
}

// scale returns round(v * num / den), at least 1.
func scale(v, num, den int) int {
	r := int(math.Round(float64(v) * float64(num) / float64(den)))
	return max(r, 1)
}
