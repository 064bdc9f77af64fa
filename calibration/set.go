package calibration

import (
	"fmt"
	"sort"

	"github.com/swdee/go-dartscore/board"
	"github.com/swdee/go-dartscore/geometry"
)

// Marker identifies a calibration marker.  Marker N corresponds to the
// canonical board anchor at index N-1.
type Marker int

// Calibration markers the detection model is trained on.  Markers 5 and 6
// have canonical anchors but are not produced by the current model.
const (
	Marker1 Marker = 1
	Marker2 Marker = 2
	Marker3 Marker = 3
	Marker4 Marker = 4
	Marker5 Marker = 5
	Marker6 Marker = 6
)

// Valid reports if the marker maps onto a canonical anchor
func (m Marker) Valid() bool {
	return m >= Marker1 && int(m) <= board.NumAnchors
}

// Anchor returns the canonical board-plane point for the marker
func (m Marker) Anchor() geometry.Point {
	return board.Anchor(int(m) - 1)
}

// String returns the model label for the marker, eg: calib_1
func (m Marker) String() string {
	return fmt.Sprintf("calib_%d", int(m))
}

// Set is a partially populated mapping of marker to normalized image point
type Set map[Marker]geometry.Point

// Len returns the number of markers in the set
func (s Set) Len() int {
	return len(s)
}

// Markers returns the markers present in ascending order
func (s Set) Markers() []Marker {

	out := make([]Marker, 0, len(s))

	for m := range s {
		out = append(out, m)
	}

	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })

	return out
}

// Valid returns a new set with only the markers that map to an anchor and
// have both coordinates within [0,1]
func (s Set) Valid() Set {

	out := make(Set, len(s))

	for m, p := range s {
		if m.Valid() && p.InUnitSquare() {
			out[m] = p
		}
	}

	return out
}

// Clone returns a copy of the set
func (s Set) Clone() Set {

	out := make(Set, len(s))

	for m, p := range s {
		out[m] = p
	}

	return out
}

// Correspondences returns the image points and their matching canonical
// anchors, both scaled to the reference size, in ascending marker order
func (s Set) Correspondences(ref geometry.Size) (src, dst []geometry.Point) {

	for _, m := range s.Markers() {
		src = append(src, ref.Scale(s[m]))
		dst = append(dst, ref.Scale(m.Anchor()))
	}

	return src, dst
}
