// Package scoring classifies board-plane points into dartboard segments and
// radial regions to produce a score label and value for each dart.
package scoring

import (
	"math"
	"strconv"

	"github.com/swdee/go-dartscore/board"
	"github.com/swdee/go-dartscore/geometry"
)

// Dart is the scored result of a single dart
type Dart struct {
	// Label is the short score name, eg: T20, S5, DB or miss
	Label string `json:"label"`
	// Value is the points scored
	Value int `json:"value"`
}

// epsilon is added to x when it sits on the vertical center line
const epsilon = 0.00001

// segmentAngles are the lower sector boundaries in degrees of one half of
// the board, each pairs with the candidate numbers at the same index
var segmentAngles = [9]float64{-9, 9, 27, 45, 63, -81, -63, -45, -27}

var segmentNumbers = [9][2]int{
	{6, 11},
	{10, 14},
	{15, 9},
	{2, 12},
	{17, 5},
	{19, 1},
	{7, 18},
	{16, 4},
	{8, 13},
}

// verticalPair is used for angles too steep for the breakpoint table
var verticalPair = [2]int{3, 20}

// Classify scores a single point in normalized board-plane space
func Classify(p geometry.Point) Dart {

	number := Segment(p)

	switch Region(p) {
	case board.DoubleBull:
		return Dart{Label: board.DoubleBull, Value: 50}
	case board.SingleBull:
		return Dart{Label: board.SingleBull, Value: 25}
	case board.Single:
		return Dart{Label: board.Single + strconv.Itoa(number), Value: number}
	case board.Treble:
		return Dart{Label: board.Treble + strconv.Itoa(number), Value: number * 3}
	case board.Double:
		return Dart{Label: board.Double + strconv.Itoa(number), Value: number * 2}
	default:
		return Dart{Label: board.Miss, Value: 0}
	}
}

// ClassifyAll scores each point and returns the labels in input order along
// with the summed value
func ClassifyAll(pts []geometry.Point) ([]string, int) {

	labels := make([]string, len(pts))
	total := 0

	for i, p := range pts {
		d := Classify(p)
		labels[i] = d.Label
		total += d.Value
	}

	return labels, total
}

// Segment returns the board number of the angular sector the point lies in
func Segment(p geometry.Point) int {

	x := p.X
	if math.Abs(x-0.5) < math.Nextafter(1, 2)-1 {
		x += epsilon
	}

	pair := candidates(Angle(geometry.Pt(x, p.Y)))

	// the 6/11 sector straddles the horizontal axis so only x separates it
	coord := p.Y
	if pair == segmentNumbers[0] {
		coord = p.X
	}

	if coord > 0.5 {
		return pair[0]
	}

	return pair[1]
}

// Angle returns the angle in whole degrees of the point about the board
// center, truncated toward zero.  The result lies within [-90, 90].
func Angle(p geometry.Point) float64 {
	deg := math.Atan((p.Y-0.5)/(p.X-0.5)) * 180 / math.Pi
	return math.Trunc(deg)
}

// candidates returns the number pair for the sector with the tightest lower
// bound on angle
func candidates(angle float64) [2]int {

	if math.Abs(angle) >= 81 {
		return verticalPair
	}

	best := -1

	for i, a := range segmentAngles {
		if a <= angle && (best < 0 || a > segmentAngles[best]) {
			best = i
		}
	}

	if best < 0 {
		return verticalPair
	}

	return segmentNumbers[best]
}

// Region returns the name of the radial band the point falls in, being the
// band of the outermost radius the distance from center still exceeds
func Region(p geometry.Point) string {

	d := p.Distance(board.Center)
	radii := board.Radii()
	names := board.RegionNames()

	idx := 0
	for i, r := range radii {
		if d > r {
			idx = i
		}
	}

	return names[idx]
}
