package raster

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"

	"github.com/gen2brain/jpegn"
	"github.com/lumastock/preview/internal/plan"
)

var (
	ErrPixelCeiling  = errors.New("image exceeds the pixel ceiling")
	ErrTruncatedJPEG = errors.New("jpeg stream has no end of image marker")
	ErrDecoderPanic  = errors.New("decoder panic")
)

// Decode decodes data, whose header is h, without ever holding more than
// maxPixels pixels. Images under the ceiling are decoded as-is. JPEG images
// above it are scaled down by the IDCT during decoding; other formats above
// it are rejected because their decoders cannot downsample.
func Decode(data []byte, h Header, maxPixels int) (image.Image, error) {
	if h.Pixels() <= maxPixels {
		return decodeFull(data, h.Format)
	}
	if h.Format != "jpeg" {
		return nil, fmt.Errorf("%w: %s %dx%d > %d", ErrPixelCeiling, h.Format, h.Width, h.Height, maxPixels)
	}
	denom := plan.ScaleDenominator(h.Width, h.Height, maxPixels)
	if denom == 0 {
		return nil, fmt.Errorf("%w: %dx%d > %d even at 1/8 scale", ErrPixelCeiling, h.Width, h.Height, maxPixels)
	}
	return decodeScaledJPEG(data, denom)
}

// decodeFull uses image/jpeg for JPEG explicitly: jpegn registers itself for
// the same magic and fills missing scan data instead of failing.
func decodeFull(data []byte, format string) (image.Image, error) {
	r := bufio.NewReader(bytes.NewReader(data))
	if format == "jpeg" {
		return jpeg.Decode(r)
	}
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, err
	}
	return img, nil
}

func decodeScaledJPEG(data []byte, denom int) (img image.Image, err error) {
	if !jpegComplete(data) {
		return nil, ErrTruncatedJPEG
	}
	err = guard("scaled decode", func() error {
		var derr error
		img, derr = jpegn.Decode(bytes.NewReader(data), &jpegn.Options{ScaleDenom: denom})
		return derr
	})
	if err != nil {
		return nil, fmt.Errorf("scaled decode 1/%d: %w", denom, err)
	}
	return img, nil
}

// jpegComplete reports whether an EOI marker follows the last SOS marker.
// Entropy-coded data stuffs every 0xff byte, so neither marker can occur
// inside a scan.
func jpegComplete(data []byte) bool {
	sos := bytes.LastIndex(data, []byte{0xff, 0xda})
	if sos < 0 {
		return false
	}
	return bytes.Contains(data[sos+2:], []byte{0xff, 0xd9})
}

// guard runs fn and returns a panic raised inside it as ErrDecoderPanic.
func guard(op string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s: %w: %v", op, ErrDecoderPanic, r)
		}
	}()
	return fn()
}
