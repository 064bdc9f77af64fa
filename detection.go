package dartscore

import (
	"context"
	"image"

	"github.com/swdee/go-dartscore/calibration"
	"github.com/swdee/go-dartscore/geometry"
	"github.com/swdee/go-dartscore/scoring"
	"github.com/swdee/go-dartscore/tracker"
)

// Detection is a single object found by the detector
type Detection struct {
	// Label is the class name, one of calib_1 to calib_4 or dart
	Label string
	// ClassID is the detector class index of the label
	ClassID int
	// Box is the bounding box normalized to the detector input image
	Box geometry.Rect
	// Confidence is the detection score in the range [0,1]
	Confidence float64
}

// Center returns the normalized center point of the detection box
func (d Detection) Center() geometry.Point {
	return d.Box.Center()
}

// ScoredDart is a finalized dart with its score and positions
type ScoredDart struct {
	scoring.Dart
	// Image is the dart center in normalized image space
	Image geometry.Point
	// Board is the dart center in normalized board-plane space
	Board geometry.Point
	// Confidence of the tracked detection
	Confidence float64
}

// Detector finds calibration markers and darts in a frame
type Detector interface {
	Detect(ctx context.Context, img image.Image) ([]Detection, error)
}

// BoardLocator finds the dartboard in a frame, ok is false when no board
// is visible
type BoardLocator interface {
	LocateBoard(ctx context.Context, img image.Image) (box geometry.Rect, ok bool, err error)
}

// Cropper cuts the located board out of a frame and rescales it to the
// board reference size.  The box is in pixel coordinates of img.
type Cropper interface {
	Crop(img image.Image, box geometry.Rect) image.Image
}

// Annotator draws detections and scored darts onto a frame
type Annotator interface {
	Annotate(img image.Image, dets []Detection, darts []ScoredDart) image.Image
}

// Publisher receives every update the session produces.  Publish must not
// block for long as it is called on the processing goroutine.
type Publisher interface {
	Publish(u Update)
}

// frameDetections is a frame's detections split by class after the
// confidence floor is applied
type frameDetections struct {
	// kept are all detections above the floor
	kept []Detection
	// darts are the dart detections ready for merging into the tracker
	darts []tracker.Dart
	// markers holds the best detection of each calibration marker
	markers calibration.Set
}

// splitDetections applies the confidence floor and groups detections by
// class.  When a marker is detected more than once the most confident
// detection is kept.
func splitDetections(dets []Detection, floor float64) frameDetections {

	out := frameDetections{
		markers: make(calibration.Set),
	}

	best := make(map[calibration.Marker]float64)

	for _, d := range dets {

		if d.Confidence < floor {
			continue
		}

		out.kept = append(out.kept, d)

		class, marker := ParseLabel(d.Label)

		switch class {
		case ClassDart:
			out.darts = append(out.darts, tracker.Dart{
				Box:        d.Box,
				Confidence: d.Confidence,
				ClassID:    d.ClassID,
			})

		case ClassCalibration:
			if conf, ok := best[marker]; ok && conf >= d.Confidence {
				continue
			}
			best[marker] = d.Confidence
			out.markers[marker] = d.Center()
		}
	}

	return out
}
