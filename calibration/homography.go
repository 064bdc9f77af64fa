package calibration

import (
	"errors"
	"fmt"
	"math"

	"github.com/swdee/go-dartscore/geometry"
	"gonum.org/v1/gonum/mat"
)

var (
	// ErrTooFewPoints is returned when less than four correspondences are
	// given to the homography solver
	ErrTooFewPoints = errors.New("need at least 4 point correspondences")
	// ErrDegenerate is returned when the correspondences do not constrain a
	// homography, eg: three or more points are collinear
	ErrDegenerate = errors.New("degenerate point configuration")
)

// rankTolerance is the smallest ratio of the eighth to the first singular
// value of the DLT system that is accepted as full rank
const rankTolerance = 1e-10

// FindHomography computes the projective transform mapping src onto dst
// using the normalized Direct Linear Transform.  With exactly four points
// the solution is exact, with more it is the algebraic least squares fit.
func FindHomography(src, dst []geometry.Point) (geometry.Homography, error) {

	if len(src) != len(dst) {
		return geometry.Homography{}, fmt.Errorf("point count mismatch: %d vs %d", len(src), len(dst))
	}

	n := len(src)

	if n < 4 {
		return geometry.Homography{}, fmt.Errorf("%w, got %d", ErrTooFewPoints, n)
	}

	// condition both point sets so the SVD is numerically stable
	srcT, srcN, err := normalizePoints(src)
	if err != nil {
		return geometry.Homography{}, err
	}

	dstT, dstN, err := normalizePoints(dst)
	if err != nil {
		return geometry.Homography{}, err
	}

	// build the 2n x 9 DLT system A*h = 0
	a := mat.NewDense(2*n, 9, nil)

	for i := 0; i < n; i++ {
		x, y := srcN[i].X, srcN[i].Y
		u, v := dstN[i].X, dstN[i].Y

		a.SetRow(2*i, []float64{-x, -y, -1, 0, 0, 0, u * x, u * y, u})
		a.SetRow(2*i+1, []float64{0, 0, 0, -x, -y, -1, v * x, v * y, v})
	}

	var svd mat.SVD

	if ok := svd.Factorize(a, mat.SVDFull); !ok {
		return geometry.Homography{}, fmt.Errorf("%w: SVD factorization failed", ErrDegenerate)
	}

	values := svd.Values(nil)

	if len(values) < 8 || values[0] == 0 || values[7]/values[0] < rankTolerance {
		return geometry.Homography{}, ErrDegenerate
	}

	var v mat.Dense
	svd.VTo(&v)

	// solution is the right singular vector of the smallest singular value
	var hn geometry.Homography
	for i := 0; i < 9; i++ {
		hn[i] = v.At(i, 8)
	}

	// undo the conditioning, H = Tdst^-1 * Hn * Tsrc
	dstInv, err := dstT.Inverse()
	if err != nil {
		return geometry.Homography{}, fmt.Errorf("%w: %v", ErrDegenerate, err)
	}

	h := dstInv.Mul(hn).Mul(srcT)

	if h[8] == 0 {
		return h, nil
	}

	return h.Normalized(), nil
}

// normalizePoints translates the points so their centroid is at the origin
// and scales them so the mean distance from it is sqrt(2).  It returns the
// conditioning transform and the transformed points.
func normalizePoints(pts []geometry.Point) (geometry.Homography, []geometry.Point, error) {

	var cx, cy float64

	for _, p := range pts {
		cx += p.X
		cy += p.Y
	}

	cx /= float64(len(pts))
	cy /= float64(len(pts))

	var meanDist float64

	for _, p := range pts {
		meanDist += math.Hypot(p.X-cx, p.Y-cy)
	}

	meanDist /= float64(len(pts))

	if meanDist == 0 {
		return geometry.Homography{}, nil, fmt.Errorf("%w: coincident points", ErrDegenerate)
	}

	s := math.Sqrt2 / meanDist

	t := geometry.Homography{
		s, 0, -s * cx,
		0, s, -s * cy,
		0, 0, 1,
	}

	out := make([]geometry.Point, len(pts))

	for i, p := range pts {
		out[i] = geometry.Pt(s*(p.X-cx), s*(p.Y-cy))
	}

	return t, out, nil
}
