package calibration

import (
	"errors"
	"fmt"

	"github.com/swdee/go-dartscore/geometry"
)

// MinPoints is the minimum number of correspondences needed for a homography
const MinPoints = 4

// ErrInsufficientCalibration is returned when neither the detected markers
// nor the cached markers provide enough valid points
var ErrInsufficientCalibration = errors.New("insufficient calibration points")

// Source records which marker set a homography was computed from
type Source int

const (
	// SourceNone means no homography was computed
	SourceNone Source = iota
	// SourceLive means the markers detected in the current frame were used
	SourceLive
	// SourceCached means the last known good marker set was used
	SourceCached
)

// String returns the source name
func (s Source) String() string {
	switch s {
	case SourceLive:
		return "live"
	case SourceCached:
		return "cached"
	default:
		return "none"
	}
}

// Estimator computes homographies from detected calibration markers to the
// canonical board-plane anchors, falling back to the most recent set of
// markers that was good enough when too few are detected.  It is not safe
// for concurrent use.
type Estimator struct {
	// cache holds the last detected set with at least MinPoints valid markers
	cache Set
	// last is the source used for the previous estimate
	last Source
}

// NewEstimator returns an Estimator with an empty cache
func NewEstimator() *Estimator {
	return &Estimator{}
}

// Estimate computes the image to board-plane homography.  Detected markers
// are used when at least MinPoints are valid and they replace the cache,
// otherwise the cached markers are used.  Both point sets are scaled to the
// reference size before solving.
func (e *Estimator) Estimate(detected Set, ref geometry.Size) (geometry.Homography, error) {

	h, used, src, err := Estimate(detected, e.cache, ref)

	if src == SourceLive {
		e.cache = used
	}

	e.last = src

	return h, err
}

// Estimate is the stateless form of Estimator.Estimate.  It returns the
// homography, the marker set that was used and which source it came from.
func Estimate(detected, cached Set, ref geometry.Size) (geometry.Homography, Set, Source, error) {

	if ref.Empty() {
		return geometry.Homography{}, nil, SourceNone, fmt.Errorf("invalid reference size %vx%v", ref.Width, ref.Height)
	}

	use := detected.Valid()
	src := SourceLive

	if use.Len() < MinPoints {
		use = cached.Valid()
		src = SourceCached
	}

	if use.Len() < MinPoints {
		return geometry.Homography{}, nil, SourceNone,
			fmt.Errorf("%w: %d detected, %d cached", ErrInsufficientCalibration, detected.Valid().Len(), cached.Valid().Len())
	}

	srcPts, dstPts := use.Correspondences(ref)

	h, err := FindHomography(srcPts, dstPts)

	if err != nil {
		return geometry.Homography{}, nil, SourceNone, fmt.Errorf("%s calibration: %w", src, err)
	}

	return h, use, src, nil
}

// Cached returns a copy of the last known good marker set
func (e *Estimator) Cached() Set {
	return e.cache.Clone()
}

// LastSource returns which marker set the previous estimate used
func (e *Estimator) LastSource() Source {
	return e.last
}

// Reset discards the cached markers
func (e *Estimator) Reset() {
	e.cache = nil
	e.last = SourceNone
}
