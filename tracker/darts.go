package tracker

import (
	"sort"

	"github.com/swdee/go-dartscore/geometry"
)

// DefaultIoUThreshold is the overlap above which two detections are
// considered the same physical dart
const DefaultIoUThreshold = 0.7

// Dart represents a dart detection held by the Tracker across frames
type Dart struct {
	// Box is the normalized bounding box of the dart
	Box geometry.Rect
	// Confidence is the detection probability
	Confidence float64
	// ClassID is the model class index the detection came from
	ClassID int
}

// Center returns the center of the darts bounding box, used as the dart
// tip position for scoring
func (d Dart) Center() geometry.Point {
	return d.Box.Center()
}

// IoU calculates the Intersection over Union of two bounding boxes
func IoU(a, b geometry.Rect) float64 {
	return a.CalcIoU(b)
}

// Merge folds the incoming darts into current and returns the result.  For
// each incoming dart the existing entries are scanned in insertion order and
// the first one with an IoU above threshold is treated as the same dart, it
// is replaced only when the incoming confidence is strictly greater.  Darts
// with no match are appended.  This is a greedy assignment and not an
// optimal one.
func Merge(current, incoming []Dart, threshold float64) []Dart {

	for _, in := range incoming {

		matched := false

		for i, existing := range current {
			if IoU(existing.Box, in.Box) > threshold {
				if in.Confidence > existing.Confidence {
					current[i] = in
				}
				matched = true
				break
			}
		}

		if !matched {
			current = append(current, in)
		}
	}

	return current
}

// Tracker holds the persistent set of darts seen since the last finalized
// throw.  It is not safe for concurrent use.
type Tracker struct {
	// threshold is the IoU above which detections are merged
	threshold float64
	// darts in insertion order
	darts []Dart
}

// NewTracker returns a Tracker using the given IoU merge threshold.  A
// threshold outside (0,1) falls back to DefaultIoUThreshold.
func NewTracker(threshold float64) *Tracker {

	if threshold <= 0 || threshold >= 1 {
		threshold = DefaultIoUThreshold
	}

	return &Tracker{
		threshold: threshold,
		darts:     make([]Dart, 0, 8),
	}
}

// Threshold returns the IoU merge threshold
func (t *Tracker) Threshold() float64 {
	return t.threshold
}

// Merge folds new detections into the tracked set
func (t *Tracker) Merge(incoming []Dart) {
	if len(incoming) == 0 {
		return
	}
	t.darts = Merge(t.darts, incoming, t.threshold)
}

// Len returns the number of tracked darts
func (t *Tracker) Len() int {
	return len(t.darts)
}

// Darts returns a copy of the tracked darts in insertion order
func (t *Tracker) Darts() []Dart {
	out := make([]Dart, len(t.darts))
	copy(out, t.darts)
	return out
}

// Top returns up to n tracked darts ordered by descending confidence.  Darts
// with equal confidence keep their insertion order.
func (t *Tracker) Top(n int) []Dart {

	out := t.Darts()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Confidence > out[j].Confidence
	})

	if n >= 0 && len(out) > n {
		out = out[:n]
	}

	return out
}

// Clear removes all tracked darts
func (t *Tracker) Clear() {
	t.darts = t.darts[:0]
}
