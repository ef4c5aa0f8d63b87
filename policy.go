package preview

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lumastock/preview/internal/pattern"
)

var ErrInvalidPolicy = errors.New("invalid preview policy")

// ChromaSubsampling is the chroma layout of encoded previews.
type ChromaSubsampling int

const (
	Chroma420 ChromaSubsampling = iota
	Chroma422
	Chroma444
)

func (c ChromaSubsampling) String() string {
	switch c {
	case Chroma420:
		return "4:2:0"
	case Chroma422:
		return "4:2:2"
	case Chroma444:
		return "4:4:4"
	}
	return fmt.Sprintf("ChromaSubsampling(%d)", int(c))
}

const (
	DefaultMaxInputPixels  = 50_000_000
	DefaultMaxPreviewWidth = 600
	DefaultQuality         = 75
)

// Policy holds the limits and encoding settings applied to every preview.
// A Policy is read-only once a Generator holds it.
type Policy struct {
	MaxInputPixels  int
	MaxPreviewWidth int
	WatermarkText   string
	Quality         int
	Chroma          ChromaSubsampling
}

func DefaultPolicy() Policy {
	return Policy{
		MaxInputPixels:  DefaultMaxInputPixels,
		MaxPreviewWidth: DefaultMaxPreviewWidth,
		WatermarkText:   pattern.DefaultText,
		Quality:         DefaultQuality,
		Chroma:          Chroma420,
	}
}

func (p Policy) Validate() error {
	if p.MaxInputPixels < 1 {
		return fmt.Errorf("%w: max input pixels %d", ErrInvalidPolicy, p.MaxInputPixels)
	}
	if p.MaxPreviewWidth < 1 {
		return fmt.Errorf("%w: max preview width %d", ErrInvalidPolicy, p.MaxPreviewWidth)
	}
	if strings.TrimSpace(p.WatermarkText) == "" {
		return fmt.Errorf("%w: empty watermark text", ErrInvalidPolicy)
	}
	if p.Quality < 1 || p.Quality > 100 {
		return fmt.Errorf("%w: quality %d not in 1..100", ErrInvalidPolicy, p.Quality)
	}
	// image/jpeg, which every encoder here sits on, only writes 4:2:0.
	if p.Chroma != Chroma420 {
		return fmt.Errorf("%w: chroma %s not supported", ErrInvalidPolicy, p.Chroma)
	}
	return nil
}
