// Package provenance hides an asset identifier inside a preview raster.
//
// The identifier is spread over the luma plane in the frequency domain:
//  1. Splits the raster into Y, U and V planes.
//  2. Applies a one-level Haar wavelet transform to Y.
//  3. Cuts the approximation band (cA) into square blocks.
//  4. Quantises the largest singular value of each block's DCT to carry one bit.
//  5. Inverts the transforms and rebuilds the raster.
//
// Each bit of the Golay-encoded payload is repeated over every block whose
// index maps to it, and extraction votes across those repetitions.
package provenance

import (
	"context"
	"errors"
	"fmt"
	"image"
)

var (
	ErrTooSmallImage = errors.New("image is too small for the provenance payload")
	ErrEmptyPayload  = errors.New("provenance payload is empty")
)

const (
	defaultBlock = 4
	defaultD1    = 36
)

// DefaultSeed shuffles the encoded payload bits.
var DefaultSeed int64 = 1234567890

type Marker struct {
	block int
	d1    float64
	seed  int64
}

type Option func(*Marker)

// WithBlock sets the side of a block in the approximation band. One block
// covers twice that many pixels per side. Values under 2 are raised to 2.
func WithBlock(side int) Option {
	return func(m *Marker) {
		m.block = max(side, 2)
	}
}

// WithD1 sets the quantisation step of the singular value.
// Larger values survive more recompression but add more noise.
func WithD1(d1 int) Option {
	return func(m *Marker) {
		if d1 > 0 {
			m.d1 = float64(d1)
		}
	}
}

// WithSeed sets the seed of the payload bit shuffle.
func WithSeed(seed int64) Option {
	return func(m *Marker) {
		m.seed = seed
	}
}

func New(opts ...Option) *Marker {
	m := &Marker{block: defaultBlock, d1: defaultD1, seed: DefaultSeed}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Capacity returns the number of blocks available in an image of size r.
func (m *Marker) Capacity(r image.Rectangle) int {
	hw, hh := (r.Dx()+1)/2, (r.Dy()+1)/2
	return (hw / m.block) * (hh / m.block)
}

// Fits reports whether a payload of n bytes can be embedded in r.
func (m *Marker) Fits(r image.Rectangle, n int) bool {
	return n > 0 && m.Capacity(r) >= encodedLen(n*8)
}

// Embed returns a copy of img carrying payload.
func (m *Marker) Embed(ctx context.Context, img *image.NRGBA, payload []byte) (*image.NRGBA, error) {
	if len(payload) == 0 {
		return nil, ErrEmptyPayload
	}
	if !m.Fits(img.Bounds(), len(payload)) {
		return nil, fmt.Errorf("%w: %d blocks < %d bits", ErrTooSmallImage, m.Capacity(img.Bounds()), encodedLen(len(payload)*8))
	}
	bits := encodePayload(payload, m.seed)

	p := splitPlanes(toNRGBA(img))
	bands := haar(p.y, p.w, p.h)
	grid := newBlockGrid(bands.w, bands.h, m.block)
	k := newKernel(m.block)

	for at := range grid.total() {
		if at%grid.cols == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		bit := bits[at%len(bits)]
		blk := grid.load(bands.a, at)
		if err := k.embed(blk, bit, m.d1); err != nil {
			return nil, fmt.Errorf("block %d: %w", at, err)
		}
		grid.store(bands.a, at, blk)
	}
	p.y = inverseHaar(bands, p.w, p.h)
	return p.build(), nil
}

// Extract reads back a payload of payloadLen bytes from img.
func (m *Marker) Extract(ctx context.Context, img image.Image, payloadLen int) ([]byte, error) {
	if payloadLen <= 0 {
		return nil, ErrEmptyPayload
	}
	if !m.Fits(img.Bounds(), payloadLen) {
		return nil, fmt.Errorf("%w: %d blocks < %d bits", ErrTooSmallImage, m.Capacity(img.Bounds()), encodedLen(payloadLen*8))
	}
	n := encodedLen(payloadLen * 8)
	votes := make([]tally, n)

	p := splitPlanes(toNRGBA(img))
	bands := haar(p.y, p.w, p.h)
	grid := newBlockGrid(bands.w, bands.h, m.block)
	k := newKernel(m.block)

	for at := range grid.total() {
		if at%grid.cols == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		v, err := k.extract(grid.load(bands.a, at), m.d1)
		if err != nil {
			return nil, fmt.Errorf("block %d: %w", at, err)
		}
		votes[at%n].add(v)
	}

	avg := make([]float64, n)
	for i := range votes {
		avg[i] = votes[i].mean()
	}
	return decodePayload(split(avg), payloadLen, m.seed)
}
