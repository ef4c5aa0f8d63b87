package provenance

import (
	"image"
	"image/draw"
)

// BT.601 analogue YUV, as used by OpenCV.
const (
	yr = 0.299
	yg = 0.587
	yb = 0.114
	uf = 0.492
	vf = 0.877

	vr = 1.140
	ug = -0.395
	vg = -0.581
	ub = 2.032
)

type planes struct {
	w, h    int
	y, u, v []float64
	alpha   []uint8
}

func splitPlanes(img *image.NRGBA) planes {
	b := img.Bounds()
	p := planes{w: b.Dx(), h: b.Dy()}
	n := p.w * p.h
	p.y, p.u, p.v = make([]float64, n), make([]float64, n), make([]float64, n)
	p.alpha = make([]uint8, n)
	for y := range p.h {
		row := img.Pix[(y)*img.Stride:]
		for x := range p.w {
			i := y*p.w + x
			r, g, bb := float64(row[x*4]), float64(row[x*4+1]), float64(row[x*4+2])
			lum := yr*r + yg*g + yb*bb
			p.y[i] = lum
			p.u[i] = uf * (bb - lum)
			p.v[i] = vf * (r - lum)
			p.alpha[i] = row[x*4+3]
		}
	}
	return p
}

func (p planes) build() *image.NRGBA {
	dst := image.NewNRGBA(image.Rect(0, 0, p.w, p.h))
	for i := range p.y {
		lum, u, v := p.y[i], p.u[i], p.v[i]
		o := i * 4
		dst.Pix[o+0] = clip8(lum + vr*v)
		dst.Pix[o+1] = clip8(lum + ug*u + vg*v)
		dst.Pix[o+2] = clip8(lum + ub*u)
		dst.Pix[o+3] = p.alpha[i]
	}
	return dst
}

func clip8(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v + 0.5)
}

// toNRGBA returns img as a zero-origin *image.NRGBA, copying when needed.
func toNRGBA(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok && n.Rect.Min == (image.Point{}) {
		return n
	}
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}
