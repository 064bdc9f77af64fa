package geometry

import (
	"math"
)

// Point is a 2D point.  Depending on context it is either in normalized
// image space, normalized board-plane space or reference pixel space.
type Point struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Pt is shorthand for creating a Point
func Pt(x, y float64) Point {
	return Point{X: x, Y: y}
}

// Distance returns the Euclidean distance to another point
func (p Point) Distance(other Point) float64 {
	return math.Hypot(p.X-other.X, p.Y-other.Y)
}

// InUnitSquare reports if both coordinates lie within [0,1]
func (p Point) InUnitSquare() bool {
	return p.X >= 0 && p.X <= 1 && p.Y >= 0 && p.Y <= 1
}

// Size is a width and height pair, used as the pixel reference size when
// converting between normalized and pixel coordinates
type Size struct {
	Width  float64
	Height float64
}

// Scale converts a normalized point into pixel coordinates of this size
func (s Size) Scale(p Point) Point {
	return Point{X: p.X * s.Width, Y: p.Y * s.Height}
}

// Normalize converts a pixel point of this size back into normalized
// coordinates
func (s Size) Normalize(p Point) Point {
	return Point{X: p.X / s.Width, Y: p.Y / s.Height}
}

// Empty reports if either dimension is not positive
func (s Size) Empty() bool {
	return s.Width <= 0 || s.Height <= 0
}

// Rect is an axis aligned rectangle in Tlwh (top, left, width, height) form
type Rect struct {
	X      float64 `json:"x" yaml:"x"`
	Y      float64 `json:"y" yaml:"y"`
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
}

// NewRect creates a new Rect with given coordinates
func NewRect(x, y, width, height float64) Rect {
	return Rect{X: x, Y: y, Width: width, Height: height}
}

// RectFromTlbr creates a Rect from top-left and bottom-right corners
func RectFromTlbr(x1, y1, x2, y2 float64) Rect {
	return NewRect(x1, y1, x2-x1, y2-y1)
}

// BRX returns the bottom-right x coordinate of the rectangle
func (r Rect) BRX() float64 {
	return r.X + r.Width
}

// BRY returns the bottom-right y coordinate of the rectangle
func (r Rect) BRY() float64 {
	return r.Y + r.Height
}

// Area returns the area of the rectangle, zero for degenerate rectangles
func (r Rect) Area() float64 {
	if r.Width <= 0 || r.Height <= 0 {
		return 0
	}
	return r.Width * r.Height
}

// Center returns the center point of the rectangle
func (r Rect) Center() Point {
	return Point{X: r.X + r.Width/2, Y: r.Y + r.Height/2}
}

// Intersect returns the overlapping region of two rectangles and false when
// they do not overlap
func (r Rect) Intersect(other Rect) (Rect, bool) {

	x1 := math.Max(r.X, other.X)
	y1 := math.Max(r.Y, other.Y)
	x2 := math.Min(r.BRX(), other.BRX())
	y2 := math.Min(r.BRY(), other.BRY())

	if x2 <= x1 || y2 <= y1 {
		return Rect{}, false
	}

	return RectFromTlbr(x1, y1, x2, y2), true
}

// CalcIoU calculates the Intersection over Union (IoU) with another rectangle.
// Coordinates are continuous so no +1 pixel inclusive adjustment is made.
func (r Rect) CalcIoU(other Rect) float64 {

	inter, ok := r.Intersect(other)

	if !ok {
		return 0
	}

	interArea := inter.Area()
	union := r.Area() + other.Area() - interArea

	if union <= 0 {
		return 0
	}

	return interArea / union
}
