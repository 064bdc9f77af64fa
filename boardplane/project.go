// Package boardplane maps points from normalized image space into the
// normalized board-plane using a calibration homography.
package boardplane

import (
	"github.com/swdee/go-dartscore/geometry"
)

// Project transforms normalized image points into normalized board-plane
// points.  Each point is scaled to the reference size, multiplied by h and
// perspective divided, then normalized by the reference size again.  A point
// whose homogeneous divisor is zero is passed through unmodified.
func Project(h geometry.Homography, pts []geometry.Point, ref geometry.Size) []geometry.Point {
	out, _ := ProjectCounted(h, pts, ref)
	return out
}

// ProjectCounted is Project but also returns the number of points that fell
// back to pass through due to a zero divisor
func ProjectCounted(h geometry.Homography, pts []geometry.Point, ref geometry.Size) ([]geometry.Point, int) {

	out := make([]geometry.Point, 0, len(pts))
	degenerate := 0

	for _, p := range pts {

		px, ok := h.Apply(ref.Scale(p))

		if !ok {
			out = append(out, p)
			degenerate++
			continue
		}

		out = append(out, ref.Normalize(px))
	}

	return out, degenerate
}
