package pattern

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
	"gonum.org/v1/gonum/spatial/r2"
)

// boldFont is parsed once; *opentype.Font is read-only after parsing.
var boldFont, boldFontErr = opentype.Parse(gobold.TTF)

var (
	textColor   = color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	shadowColor = color.NRGBA{R: 0x00, G: 0x00, B: 0x00, A: 0x80}
)

// Tile draws the unrotated repeating unit: the text centred in a transparent
// TileWidth x TileHeight image at full alpha.
func (p Pattern) Tile() (*image.NRGBA, error) {
	if boldFontErr != nil {
		return nil, fmt.Errorf("parse font: %w", boldFontErr)
	}
	tile := image.NewNRGBA(image.Rect(0, 0, p.TileWidth, p.TileHeight))

	face, err := p.fitFace()
	if err != nil {
		return nil, err
	}
	defer face.Close()

	m := face.Metrics()
	asc, desc := m.Ascent.Ceil(), m.Descent.Ceil()
	width := font.MeasureString(face, p.Text).Ceil()
	x := (p.TileWidth - width) / 2
	y := (p.TileHeight-(asc+desc))/2 + asc

	for _, layer := range []struct {
		col    color.Color
		dx, dy int
	}{
		{shadowColor, 1, 1},
		{textColor, 0, 0},
	} {
		d := &font.Drawer{
			Dst:  tile,
			Src:  image.NewUniform(layer.col),
			Face: face,
			Dot:  fixed.P(x+layer.dx, y+layer.dy),
		}
		d.DrawString(p.Text)
	}
	return tile, nil
}

// fitFace returns the largest face, starting at the nominal size, whose
// rendering of the text fits the tile width with a small margin.
func (p Pattern) fitFace() (font.Face, error) {
	const margin = 16
	size := fontSize(p.TileHeight)
	for {
		face, err := opentype.NewFace(boldFont, &opentype.FaceOptions{
			Size:    float64(size),
			DPI:     72,
			Hinting: font.HintingFull,
		})
		if err != nil {
			return nil, fmt.Errorf("create font face: %w", err)
		}
		if size <= 6 || font.MeasureString(face, p.Text).Ceil() <= p.TileWidth-margin {
			return face, nil
		}
		face.Close()
		size--
	}
}

// Render rasterises the pattern over the whole canvas. The result is
// premultiplied and already carries Opacity, ready for a source-over blend.
func (p Pattern) Render() (*image.RGBA, error) {
	tile, err := p.Tile()
	if err != nil {
		return nil, err
	}
	s := newSampler(tile)
	u, v := p.basis()

	dst := image.NewRGBA(image.Rect(0, 0, p.CanvasWidth, p.CanvasHeight))
	var px [4]float64
	for y := range p.CanvasHeight {
		cy := float64(y) + 0.5
		row := dst.Pix[y*dst.Stride:]
		for x := range p.CanvasWidth {
			cx := float64(x) + 0.5
			s.at(cx*u.X+cy*v.X, cx*u.Y+cy*v.Y, &px)
			i := x * 4
			row[i+0] = to8(px[0] * p.Opacity)
			row[i+1] = to8(px[1] * p.Opacity)
			row[i+2] = to8(px[2] * p.Opacity)
			row[i+3] = to8(px[3] * p.Opacity)
		}
	}
	return dst, nil
}

// basis returns the images of the canvas unit vectors in pattern space.
// The tile grid is rotated by Angle on the canvas, so canvas points are
// mapped back with the inverse rotation.
func (p Pattern) basis() (u, v r2.Vec) {
	rot := r2.NewRotation(-p.Angle*math.Pi/180, r2.Vec{})
	return rot.Rotate(r2.Vec{X: 1}), rot.Rotate(r2.Vec{Y: 1})
}

// sampler reads a tile as a periodic, premultiplied float image.
type sampler struct {
	w, h int
	pix  []float64
}

func newSampler(tile *image.NRGBA) *sampler {
	b := tile.Bounds()
	s := &sampler{w: b.Dx(), h: b.Dy(), pix: make([]float64, b.Dx()*b.Dy()*4)}
	for y := range s.h {
		for x := range s.w {
			c := tile.NRGBAAt(b.Min.X+x, b.Min.Y+y)
			a := float64(c.A) / 255
			i := (y*s.w + x) * 4
			s.pix[i+0] = float64(c.R) * a
			s.pix[i+1] = float64(c.G) * a
			s.pix[i+2] = float64(c.B) * a
			s.pix[i+3] = float64(c.A)
		}
	}
	return s
}

// at samples the tile at pattern-space point (px, py) with bilinear
// filtering. Both axes wrap, so every point of the plane has a value.
func (s *sampler) at(px, py float64, out *[4]float64) {
	fx, fy := px-0.5, py-0.5
	x0f, y0f := math.Floor(fx), math.Floor(fy)
	tx, ty := fx-x0f, fy-y0f
	x0, y0 := wrap(int(x0f), s.w), wrap(int(y0f), s.h)
	x1, y1 := wrap(x0+1, s.w), wrap(y0+1, s.h)

	i00 := (y0*s.w + x0) * 4
	i10 := (y0*s.w + x1) * 4
	i01 := (y1*s.w + x0) * 4
	i11 := (y1*s.w + x1) * 4
	for c := range 4 {
		top := s.pix[i00+c]*(1-tx) + s.pix[i10+c]*tx
		bot := s.pix[i01+c]*(1-tx) + s.pix[i11+c]*tx
		out[c] = top*(1-ty) + bot*ty
	}
}

// wrap returns i mod n in [0, n).
func wrap(i, n int) int {
	i %= n
	if i < 0 {
		i += n
	}
	return i
}

func to8(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v + 0.5)
}
