// Package board holds the physical dartboard measurements and the derived
// normalized board-plane constants used for calibration and scoring.
package board

import (
	"math"

	"github.com/swdee/go-dartscore/geometry"
)

const (
	// RingWidth is the width of the double and treble rings in mm
	RingWidth = 10.0
	// BullseyeWire is the width of the bullseye wires in mm
	BullseyeWire = 1.6
	// Diameter of the dartboard in mm, used to normalize all radii
	Diameter = 451.0
)

// Region names for each radial band, indexed the same as Radii
const (
	DoubleBull = "DB"
	SingleBull = "SB"
	Single     = "S"
	Treble     = "T"
	Double     = "D"
	Miss       = "miss"
)

// NumAnchors is the number of canonical calibration anchors on the board
const NumAnchors = 6

var (
	// Center of the board in normalized board-plane coordinates
	Center = geometry.Pt(0.5, 0.5)

	regionNames = [7]string{DoubleBull, SingleBull, Single, Treble, Single, Double, Miss}

	radii   [7]float64
	anchors [NumAnchors]geometry.Point
)

func init() {

	// radial breakpoints in mm from the center outwards
	raw := [7]float64{
		0,
		6.35,
		15.9,
		107.4 - RingWidth,
		107.4,
		170.0 - RingWidth,
		170.0,
	}

	for i, v := range raw {
		// bullseye radii include half the wire width
		if i == 1 || i == 2 {
			v += BullseyeWire / 2
		}
		radii[i] = v / Diameter
	}

	h := radii[len(radii)-1]

	// 20 & 3 boundary
	a, o := anchorOffsets(h, 81)
	anchors[0] = geometry.Pt(0.5-a, 0.5-o)
	anchors[1] = geometry.Pt(0.5+a, 0.5+o)

	// 11 & 6 boundary
	a, o = anchorOffsets(h, -9)
	anchors[2] = geometry.Pt(0.5-a, 0.5+o)
	anchors[3] = geometry.Pt(0.5+a, 0.5-o)

	// 9 & 15 boundary
	a, o = anchorOffsets(h, 27)
	anchors[4] = geometry.Pt(0.5-a, 0.5-o)
	anchors[5] = geometry.Pt(0.5+a, 0.5+o)
}

// anchorOffsets returns the adjacent and orthogonal offsets from the center
// for a point on radius h at the given angle in degrees
func anchorOffsets(h, degrees float64) (float64, float64) {
	adj := h * math.Cos(degrees*math.Pi/180)
	orth := math.Sqrt(math.Max(0, h*h-adj*adj))
	return adj, orth
}

// Radii returns the seven normalized radial breakpoints
func Radii() [7]float64 {
	return radii
}

// OuterRadius returns the normalized radius of the outer edge of the double
// ring, anything beyond is a miss
func OuterRadius() float64 {
	return radii[len(radii)-1]
}

// RegionNames returns the region name for each radial band
func RegionNames() [7]string {
	return regionNames
}

// Anchors returns the canonical calibration points in normalized
// board-plane space
func Anchors() [NumAnchors]geometry.Point {
	return anchors
}

// Anchor returns a single canonical calibration point by index
func Anchor(i int) geometry.Point {
	return anchors[i]
}
