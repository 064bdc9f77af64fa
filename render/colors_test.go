package render

import (
	"testing"
)

func TestDetectionColor(t *testing.T) {

	if DetectionColor("dart") != dartColor {
		t.Error("darts should use the dart color")
	}

	if DetectionColor("calib_1") == DetectionColor("calib_2") {
		t.Error("calibration markers should have distinct colors")
	}

	if DetectionColor("dartboard") != Yellow {
		t.Error("unknown labels should use the fallback color")
	}
}

func TestMarkerPaletteDistinct(t *testing.T) {

	seen := make(map[[3]uint8]bool)

	for _, c := range markerColors {
		key := [3]uint8{c.R, c.G, c.B}
		if seen[key] {
			t.Errorf("duplicate palette color %v", c)
		}
		seen[key] = true

		if c.A != 255 {
			t.Errorf("palette color should be opaque, got %v", c)
		}
	}
}

func TestScoreColor(t *testing.T) {

	tests := []struct {
		label  string
		region string
	}{
		{"DB", "DB"},
		{"SB", "SB"},
		{"miss", "miss"},
		{"T20", "T"},
		{"D16", "D"},
		{"S5", "S"},
	}

	for _, tc := range tests {
		if got := ScoreColor(tc.label); got != regionColors[tc.region] {
			t.Errorf("%s: expected %v, got %v", tc.label, regionColors[tc.region], got)
		}
	}
}

func TestFade(t *testing.T) {

	c := dartColor

	if Fade(c, 0) != c {
		t.Error("zero fade should not change the color")
	}

	black := Fade(c, 1)
	if black.R > 1 || black.G > 1 || black.B > 1 {
		t.Errorf("full fade should be black, got %v", black)
	}

	half := Fade(c, 0.5)
	if half.R >= c.R {
		t.Errorf("fade should darken, got %v", half)
	}
}

func TestSplitLines(t *testing.T) {

	got := splitLines("Score: 256\nLast throw: T15 scored 45\n")

	if len(got) != 2 || got[1] != "Last throw: T15 scored 45" {
		t.Errorf("unexpected lines %q", got)
	}
}
