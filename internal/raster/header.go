// Package raster holds the decode, orient, resize, composite and encode
// steps that turn uploaded bytes into a preview raster.
package raster

import (
	"bufio"
	"bytes"
	"image"
	"image/jpeg"

	// decoders accepted for uploads
	_ "image/gif"
	_ "image/png"

	"github.com/gen2brain/jpegn"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Orientation is the EXIF orientation tag, 1 through 8.
type Orientation int

const (
	OrientNormal Orientation = iota + 1
	OrientFlipH
	OrientRotate180
	OrientFlipV
	OrientTranspose
	OrientRotate90CW
	OrientTransverse
	OrientRotate90CCW
)

func (o Orientation) valid() bool {
	return o >= OrientNormal && o <= OrientRotate90CCW
}

// swapsAxes reports whether applying o exchanges width and height.
func (o Orientation) swapsAxes() bool {
	return o >= OrientTranspose && o <= OrientRotate90CCW
}

// Header is what can be learned about an image without decoding its pixels.
// Width and Height are the stored dimensions, before orientation.
type Header struct {
	Width, Height int
	Format        string
	Orientation   Orientation
}

// Pixels returns the declared pixel count.
func (h Header) Pixels() int {
	return h.Width * h.Height
}

// Oriented returns the dimensions of the image once orientation is applied.
func (h Header) Oriented() (int, int) {
	if h.Orientation.swapsAxes() {
		return h.Height, h.Width
	}
	return h.Width, h.Height
}

var jpegMagic = []byte{0xff, 0xd8}

// ReadHeader reads the image header from data. Only the leading bytes are
// consumed; no pixel buffer is allocated.
func ReadHeader(data []byte) (Header, error) {
	cfg, format, err := decodeConfig(data)
	if err != nil {
		return Header{}, err
	}
	h := Header{
		Width:       cfg.Width,
		Height:      cfg.Height,
		Format:      format,
		Orientation: OrientNormal,
	}
	if format == "jpeg" {
		// a missing or broken EXIF block leaves the image upright
		var x *jpegn.Exif
		err := guard("read exif", func() error {
			var xerr error
			x, xerr = jpegn.DecodeExif(bytes.NewReader(data))
			return xerr
		})
		if err == nil && x != nil {
			if o := Orientation(x.Orientation); o.valid() {
				h.Orientation = o
			}
		}
	}
	return h, nil
}

// decodeConfig reads JPEG headers with image/jpeg, never through the format
// registry, where jpegn competes for the same magic.
func decodeConfig(data []byte) (cfg image.Config, format string, err error) {
	r := bufio.NewReader(bytes.NewReader(data))
	if bytes.HasPrefix(data, jpegMagic) {
		cfg, err = jpeg.DecodeConfig(r)
		return cfg, "jpeg", err
	}
	err = guard("read header", func() error {
		var derr error
		cfg, format, derr = image.DecodeConfig(r)
		return derr
	})
	return cfg, format, err
}
