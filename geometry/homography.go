package geometry

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// ErrSingular is returned when a homography can not be inverted
var ErrSingular = errors.New("homography is singular")

// Homography is a 3x3 projective transform stored in row-major order
type Homography [9]float64

// Identity returns the identity homography
func Identity() Homography {
	return Homography{1, 0, 0, 0, 1, 0, 0, 0, 1}
}

// HomographyFromMat copies a 3x3 gonum matrix into a Homography
func HomographyFromMat(m mat.Matrix) (Homography, error) {

	r, c := m.Dims()

	if r != 3 || c != 3 {
		return Homography{}, fmt.Errorf("homography must be 3x3, got %dx%d", r, c)
	}

	var h Homography

	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			h[i*3+j] = m.At(i, j)
		}
	}

	return h, nil
}

// Mat returns the homography as a gonum dense matrix
func (h Homography) Mat() *mat.Dense {
	data := make([]float64, 9)
	copy(data, h[:])
	return mat.NewDense(3, 3, data)
}

// At returns the element at row i, column j
func (h Homography) At(i, j int) float64 {
	return h[i*3+j]
}

// Apply multiplies the homogeneous point (x, y, 1) by the matrix and
// returns the perspective divided result.  The returned bool is false when
// the homogeneous divisor is zero, in which case the point is returned
// unmodified.
func (h Homography) Apply(p Point) (Point, bool) {

	x := h[0]*p.X + h[1]*p.Y + h[2]
	y := h[3]*p.X + h[4]*p.Y + h[5]
	z := h[6]*p.X + h[7]*p.Y + h[8]

	if z == 0 {
		return p, false
	}

	return Point{X: x / z, Y: y / z}, true
}

// Inverse returns the inverse transform
func (h Homography) Inverse() (Homography, error) {

	var inv mat.Dense

	if err := inv.Inverse(h.Mat()); err != nil {
		return Homography{}, fmt.Errorf("%w: %v", ErrSingular, err)
	}

	return HomographyFromMat(&inv)
}

// Mul returns the matrix product h * other
func (h Homography) Mul(other Homography) Homography {

	var prod mat.Dense
	prod.Mul(h.Mat(), other.Mat())

	// dimensions are always 3x3 so the error can not occur
	out, _ := HomographyFromMat(&prod)

	return out
}

// Normalized scales the matrix so the bottom-right element is 1.  A matrix
// with a zero bottom-right element is returned unchanged.
func (h Homography) Normalized() Homography {

	if h[8] == 0 {
		return h
	}

	var out Homography
	for i := range h {
		out[i] = h[i] / h[8]
	}

	return out
}
