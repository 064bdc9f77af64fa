package geometry

import (
	"errors"
	"testing"
)

func TestHomographyApply(t *testing.T) {

	// scale by 2 and translate by (1, -1)
	h := Homography{2, 0, 1, 0, 2, -1, 0, 0, 1}

	got, ok := h.Apply(Pt(3, 4))

	if !ok {
		t.Fatal("expected non-degenerate projection")
	}

	if !almostEqual(got.X, 7, 1e-12) || !almostEqual(got.Y, 7, 1e-12) {
		t.Errorf("expected (7, 7), got (%f, %f)", got.X, got.Y)
	}
}

func TestHomographyApplyZeroDivisor(t *testing.T) {

	// last row maps every point to z=0
	h := Homography{1, 0, 0, 0, 1, 0, 0, 0, 0}
	p := Pt(0.3, 0.7)

	got, ok := h.Apply(p)

	if ok {
		t.Fatal("expected degenerate projection")
	}

	if got != p {
		t.Errorf("degenerate point should pass through, got %+v", got)
	}
}

func TestHomographyInverse(t *testing.T) {

	h := Homography{1.2, 0.1, 5, -0.05, 0.9, 3, 0.0001, 0.0002, 1}

	inv, err := h.Inverse()

	if err != nil {
		t.Fatalf("inverse failed: %v", err)
	}

	id := h.Mul(inv).Normalized()
	want := Identity()

	for i := range id {
		if !almostEqual(id[i], want[i], 1e-9) {
			t.Fatalf("H*H^-1 not identity at %d: %v", i, id)
		}
	}
}

func TestHomographyInverseSingular(t *testing.T) {

	h := Homography{1, 2, 3, 2, 4, 6, 0, 0, 1}

	_, err := h.Inverse()

	if !errors.Is(err, ErrSingular) {
		t.Errorf("expected ErrSingular, got %v", err)
	}
}
