package provenance

import "math"

// subbands is a one-level 2D Haar decomposition. Odd edges are padded by
// repeating the last row or column.
type subbands struct {
	w, h       int
	a, h1, v, d []float64
}

func pair(v1, v2 float64) (float64, float64) {
	avr := (v1 + v2) / 2
	return avr * math.Sqrt2, (v1 - avr) * math.Sqrt2
}

func unpair(a, d float64) (float64, float64) {
	avr := a / math.Sqrt2
	return avr + d/math.Sqrt2, avr - d/math.Sqrt2
}

func haar(data []float64, w, h int) subbands {
	hw, hh := (w+1)/2, (h+1)/2
	n := hw * hh
	s := subbands{w: hw, h: hh, a: make([]float64, n), h1: make([]float64, n), v: make([]float64, n), d: make([]float64, n)}
	for y0 := 0; y0 < h; y0 += 2 {
		y1 := min(y0+1, h-1)
		for x0 := 0; x0 < w; x0 += 2 {
			x1 := min(x0+1, w-1)
			a1, d1 := pair(data[y0*w+x0], data[y1*w+x0])
			a2, d2 := pair(data[y0*w+x1], data[y1*w+x1])
			i := (y0/2)*hw + x0/2
			s.a[i], s.v[i] = pair(a1, a2)
			s.h1[i], s.d[i] = pair(d1, d2)
		}
	}
	return s
}

func inverseHaar(s subbands, w, h int) []float64 {
	data := make([]float64, w*h)
	for y0 := 0; y0 < h; y0 += 2 {
		for x0 := 0; x0 < w; x0 += 2 {
			i := (y0/2)*s.w + x0/2
			a1, a2 := unpair(s.a[i], s.v[i])
			d1, d2 := unpair(s.h1[i], s.d[i])
			p00, p10 := unpair(a1, d1)
			p01, p11 := unpair(a2, d2)

			data[y0*w+x0] = p00
			if y0+1 < h {
				data[(y0+1)*w+x0] = p10
			}
			if x0+1 < w {
				data[y0*w+x0+1] = p01
			}
			if y0+1 < h && x0+1 < w {
				data[(y0+1)*w+x0+1] = p11
			}
		}
	}
	return data
}
