package preprocess

import (
	"image"
	"math"

	"github.com/disintegration/imaging"

	"github.com/swdee/go-dartscore/geometry"
)

// BoardCropper cuts the dartboard out of a frame and resizes it to a square
// reference image so calibration and scoring work in a fixed frame size
type BoardCropper struct {
	// size is the width and height of the output image
	size int
	// margin is the fraction of the box size added on each side
	margin float64
	// filter is the resampling filter used when resizing
	filter imaging.ResampleFilter
}

// NewBoardCropper returns a cropper producing size x size images
func NewBoardCropper(size int) *BoardCropper {
	return &BoardCropper{
		size:   size,
		filter: imaging.Lanczos,
	}
}

// WithMargin expands the located board box by the fraction of its size on
// each side before cropping, eg: 0.05 for 5%
func (c *BoardCropper) WithMargin(m float64) *BoardCropper {
	if m >= 0 {
		c.margin = m
	}
	return c
}

// Size returns the output image size
func (c *BoardCropper) Size() int {
	return c.size
}

// Crop squares the box about its center, clips it to the image and returns
// the region resized to the output size.  The box is in pixel coordinates
// of img.  A box that does not overlap the image returns the whole image
// resized.
func (c *BoardCropper) Crop(img image.Image, box geometry.Rect) image.Image {

	region := c.Region(img.Bounds(), box)

	if region.Empty() {
		return imaging.Resize(img, c.size, c.size, c.filter)
	}

	cropped := imaging.Crop(img, region)

	return imaging.Resize(cropped, c.size, c.size, c.filter)
}

// Region returns the square pixel region Crop cuts from an image with the
// given bounds
func (c *BoardCropper) Region(bounds image.Rectangle, box geometry.Rect) image.Rectangle {

	side := math.Max(box.Width, box.Height) * (1 + 2*c.margin)
	center := box.Center()

	x1 := int(math.Round(center.X - side/2))
	y1 := int(math.Round(center.Y - side/2))
	s := int(math.Round(side))

	return image.Rect(x1, y1, x1+s, y1+s).Intersect(bounds)
}
