package geometry

import (
	"math"
	"testing"
)

// almostEqual checks if two float64 values are approximately equal
func almostEqual(a, b, tolerance float64) bool {
	return math.Abs(a-b) <= tolerance
}

func TestCalcIoU(t *testing.T) {

	tests := []struct {
		name     string
		a, b     Rect
		expected float64
	}{
		{"identical", NewRect(0.1, 0.1, 0.2, 0.3), NewRect(0.1, 0.1, 0.2, 0.3), 1.0},
		{"disjoint", NewRect(0, 0, 0.1, 0.1), NewRect(0.5, 0.5, 0.1, 0.1), 0},
		{"touching edges", NewRect(0, 0, 0.1, 0.1), NewRect(0.1, 0, 0.1, 0.1), 0},
		{"half overlap", NewRect(0, 0, 0.2, 0.2), NewRect(0.1, 0, 0.2, 0.2), 0.02 / 0.06},
		{"contained", NewRect(0, 0, 0.4, 0.4), NewRect(0.1, 0.1, 0.2, 0.2), 0.04 / 0.16},
		{"degenerate", NewRect(0.2, 0.2, 0, 0), NewRect(0.2, 0.2, 0, 0), 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.a.CalcIoU(tc.b)

			if !almostEqual(got, tc.expected, 1e-9) {
				t.Errorf("IoU mismatch: expected %f, got %f", tc.expected, got)
			}

			// IoU is symmetric
			if rev := tc.b.CalcIoU(tc.a); !almostEqual(rev, got, 1e-12) {
				t.Errorf("IoU not symmetric: %f vs %f", got, rev)
			}
		})
	}
}

func TestRectCenter(t *testing.T) {
	r := RectFromTlbr(0.2, 0.4, 0.4, 0.8)

	c := r.Center()

	if !almostEqual(c.X, 0.3, 1e-12) || !almostEqual(c.Y, 0.6, 1e-12) {
		t.Errorf("center expected (0.3, 0.6), got (%f, %f)", c.X, c.Y)
	}
}

func TestSizeScaleNormalize(t *testing.T) {
	s := Size{Width: 800, Height: 600}
	p := Pt(0.25, 0.5)

	px := s.Scale(p)

	if px.X != 200 || px.Y != 300 {
		t.Errorf("scale expected (200, 300), got (%f, %f)", px.X, px.Y)
	}

	back := s.Normalize(px)

	if !almostEqual(back.X, p.X, 1e-12) || !almostEqual(back.Y, p.Y, 1e-12) {
		t.Errorf("normalize round trip failed, got %+v", back)
	}
}
