package raster

import (
	"image"

	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"
)

// Orient returns img turned upright according to o.
func Orient(img image.Image, o Orientation) image.Image {
	switch o {
	case OrientFlipH:
		return imaging.FlipH(img)
	case OrientRotate180:
		return imaging.Rotate180(img)
	case OrientFlipV:
		return imaging.FlipV(img)
	case OrientTranspose:
		return imaging.Transpose(img)
	case OrientRotate90CW:
		return imaging.Rotate270(img)
	case OrientTransverse:
		return imaging.Transverse(img)
	case OrientRotate90CCW:
		return imaging.Rotate90(img)
	}
	return img
}

// Resize scales img to exactly w x h with a Lanczos filter.
func Resize(img image.Image, w, h int) *image.NRGBA {
	return imaging.Resize(img, w, h, imaging.Lanczos)
}

// Composite blends overlay over dst with source-over, in place.
// The overlay is aligned to the top-left corner of dst.
func Composite(dst *image.NRGBA, overlay image.Image) *image.NRGBA {
	draw.Draw(dst, dst.Bounds(), overlay, overlay.Bounds().Min, draw.Over)
	return dst
}
