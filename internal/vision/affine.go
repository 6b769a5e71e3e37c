package vision

import (
	"errors"
	"math"

	"golang.org/x/image/math/f64"
)

var errSingular = errors.New("singular system")

// affine maps canonical (u, v) to image (x, y):
// x = m[0]*u + m[1]*v + m[2], y = m[3]*u + m[4]*v + m[5].
type affine f64.Aff3

var unitCorners = [4]point{
	topLeft:     {0, 0},
	topRight:    {1, 0},
	bottomLeft:  {0, 1},
	bottomRight: {1, 1},
}

func (a affine) apply(p point) point {
	return point{
		X: a[0]*p.X + a[1]*p.Y + a[2],
		Y: a[3]*p.X + a[4]*p.Y + a[5],
	}
}

// fitAffine solves the least-squares affine transform taking src[i] to
// dst[i]. At least three non-collinear pairs are required.
func fitAffine(src, dst []point) (affine, error) {
	if len(src) < 3 || len(src) != len(dst) {
		return affine{}, errSingular
	}
	// Normal equations share the same 3x3 matrix for x and y.
	var n [3][3]float64
	var bx, by [3]float64
	for i, s := range src {
		row := [3]float64{s.X, s.Y, 1}
		for r := 0; r < 3; r++ {
			for c := 0; c < 3; c++ {
				n[r][c] += row[r] * row[c]
			}
			bx[r] += row[r] * dst[i].X
			by[r] += row[r] * dst[i].Y
		}
	}
	px, err := solve3(n, bx)
	if err != nil {
		return affine{}, err
	}
	py, err := solve3(n, by)
	if err != nil {
		return affine{}, err
	}
	return affine{px[0], px[1], px[2], py[0], py[1], py[2]}, nil
}

// residual is the largest distance between a mapped src point and its dst.
func (a affine) residual(src, dst []point) float64 {
	var worst float64
	for i := range src {
		worst = math.Max(worst, a.apply(src[i]).dist(dst[i]))
	}
	return worst
}

func (a affine) invert() (affine, error) {
	det := a[0]*a[4] - a[1]*a[3]
	if math.Abs(det) < 1e-12 {
		return affine{}, errSingular
	}
	i0 := a[4] / det
	i1 := -a[1] / det
	i3 := -a[3] / det
	i4 := a[0] / det
	return affine{
		i0, i1, -(i0*a[2] + i1*a[5]),
		i3, i4, -(i3*a[2] + i4*a[5]),
	}, nil
}

func solve3(m [3][3]float64, b [3]float64) ([3]float64, error) {
	for col := 0; col < 3; col++ {
		pivot := col
		for r := col + 1; r < 3; r++ {
			if math.Abs(m[r][col]) > math.Abs(m[pivot][col]) {
				pivot = r
			}
		}
		if math.Abs(m[pivot][col]) < 1e-12 {
			return [3]float64{}, errSingular
		}
		m[col], m[pivot] = m[pivot], m[col]
		b[col], b[pivot] = b[pivot], b[col]
		for r := col + 1; r < 3; r++ {
			f := m[r][col] / m[col][col]
			for c := col; c < 3; c++ {
				m[r][c] -= f * m[col][c]
			}
			b[r] -= f * b[col]
		}
	}
	var x [3]float64
	for r := 2; r >= 0; r-- {
		s := b[r]
		for c := r + 1; c < 3; c++ {
			s -= m[r][c] * x[c]
		}
		x[r] = s / m[r][r]
	}
	return x, nil
}
