package provenance

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"
)

var errFactorize = errors.New("cannot factorize block")

// blockGrid addresses the square blocks of a band in row-major order.
// Partial blocks at the right and bottom edges are left untouched.
type blockGrid struct {
	stride     int
	n          int
	cols, rows int
}

func newBlockGrid(w, h, n int) blockGrid {
	return blockGrid{stride: w, n: n, cols: w / n, rows: h / n}
}

func (g blockGrid) total() int { return g.cols * g.rows }

func (g blockGrid) load(band []float64, at int) []float64 {
	blk := make([]float64, g.n*g.n)
	x0, y0 := (at%g.cols)*g.n, (at/g.cols)*g.n
	for r := range g.n {
		copy(blk[r*g.n:(r+1)*g.n], band[(y0+r)*g.stride+x0:])
	}
	return blk
}

func (g blockGrid) store(band []float64, at int, blk []float64) {
	x0, y0 := (at%g.cols)*g.n, (at/g.cols)*g.n
	for r := range g.n {
		copy(band[(y0+r)*g.stride+x0:(y0+r)*g.stride+x0+g.n], blk[r*g.n:])
	}
}

// kernel holds the orthonormal DCT-II basis for one block size.
type kernel struct {
	n int
	c *mat.Dense
}

func newKernel(n int) kernel {
	c := mat.NewDense(n, n, nil)
	for k := range n {
		alpha := math.Sqrt(2 / float64(n))
		if k == 0 {
			alpha = math.Sqrt(1 / float64(n))
		}
		for i := range n {
			c.Set(k, i, alpha*math.Cos(math.Pi*float64(2*i+1)*float64(k)/float64(2*n)))
		}
	}
	return kernel{n: n, c: c}
}

// spectrum returns the DCT of blk and the SVD of that spectrum.
func (k kernel) spectrum(blk []float64) (*mat.SVD, error) {
	var d mat.Dense
	d.Product(k.c, mat.NewDense(k.n, k.n, blk), k.c.T())
	var svd mat.SVD
	if ok := svd.Factorize(&d, mat.SVDFull); !ok {
		return nil, errFactorize
	}
	return &svd, nil
}

// embed rewrites blk in place so that its largest singular value carries bit.
func (k kernel) embed(blk []float64, bit bool, d1 float64) error {
	svd, err := k.spectrum(blk)
	if err != nil {
		return err
	}
	s := svd.Values(nil)
	s[0] = quantize(s[0], bit, d1)

	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	var d, x mat.Dense
	d.Product(&u, mat.NewDiagDense(k.n, s), v.T())
	x.Product(k.c.T(), &d, k.c)
	copy(blk, x.RawMatrix().Data)
	return nil
}

// extract returns 1 when the largest singular value of blk sits in the
// upper half of its quantisation cell and 0 otherwise.
func (k kernel) extract(blk []float64, d1 float64) (float64, error) {
	svd, err := k.spectrum(blk)
	if err != nil {
		return 0, err
	}
	if math.Mod(svd.Values(nil)[0], d1) > d1/2 {
		return 1, nil
	}
	return 0, nil
}

// quantize moves s to the centre of the lower (bit 0) or upper (bit 1)
// quarter-offset of its cell.
func quantize(s float64, bit bool, d1 float64) float64 {
	q := math.Floor(s/d1) + 0.25
	if bit {
		q += 0.5
	}
	return q * d1
}
