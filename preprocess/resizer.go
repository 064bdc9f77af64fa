package preprocess

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"

	"github.com/swdee/go-dartscore/geometry"
)

// Resizer defines the struct used for letterbox resizing a frame to the
// model input size and mapping model coordinates back again
type Resizer struct {
	// srcWidth is the width of the source image
	srcWidth int
	// srcHeight is the height of the source image
	srcHeight int
	// destWidth is the width to scale to
	destWidth int
	// destHeight is the height to scale to
	destHeight int
	// letterbox parameters used in scaling
	xPad  int
	yPad  int
	scale float32
	// resize dimensions
	resizeW int
	resizeH int
}

// NewResizer returns a resizer used for scaling an image to the needed
// dimensions for input tensor size
func NewResizer(srcWidth, srcHeight, destWidth, destHeight int) *Resizer {
	r := &Resizer{
		srcWidth:   srcWidth,
		srcHeight:  srcHeight,
		destWidth:  destWidth,
		destHeight: destHeight,
	}

	// precalculate scaling dimensions
	r.preCalc()

	return r
}

// preCalc the scaling factors for source and destination images
func (r *Resizer) preCalc() {

	r.resizeW = r.destWidth
	r.resizeH = r.destHeight

	scaleW := float32(r.destWidth) / float32(r.srcWidth)
	scaleH := float32(r.destHeight) / float32(r.srcHeight)
	r.scale = scaleH

	if scaleW < scaleH {
		r.scale = scaleW
		r.resizeH = int(float32(r.srcHeight) * r.scale)
	} else {
		r.resizeW = int(float32(r.srcWidth) * r.scale)
	}

	r.yPad = (r.destHeight - r.resizeH) / 2 // padding height / 2
	r.xPad = (r.destWidth - r.resizeW) / 2  // padding width / 2
}

// LetterBoxResize resizes the image to the dimensions needed for the input
// tensor size whilst maintaining image aspect.  Pad is the color used for
// the letter box padding.
func (r *Resizer) LetterBoxResize(src image.Image, pad color.Color) *image.NRGBA {

	resized := imaging.Resize(src, r.resizeW, r.resizeH, imaging.Linear)

	dst := imaging.New(r.destWidth, r.destHeight, pad)

	return imaging.Paste(dst, resized, image.Pt(r.xPad, r.yPad))
}

// SourceRect maps a box in model input pixels back to normalized
// coordinates of the source image, clamped to the image
func (r *Resizer) SourceRect(x1, y1, x2, y2 float32) geometry.Rect {

	toSrc := func(v float32, pad int, max int) float64 {
		s := (v - float32(pad)) / r.scale
		if s < 0 {
			s = 0
		}
		if s > float32(max) {
			s = float32(max)
		}
		return float64(s) / float64(max)
	}

	return geometry.RectFromTlbr(
		toSrc(x1, r.xPad, r.srcWidth),
		toSrc(y1, r.yPad, r.srcHeight),
		toSrc(x2, r.xPad, r.srcWidth),
		toSrc(y2, r.yPad, r.srcHeight),
	)
}

// ScaleFactor returns the scale factor used in letterbox resize
func (r *Resizer) ScaleFactor() float32 {
	return r.scale
}

// XPad returns the x padding used in letterbox resize
func (r *Resizer) XPad() int {
	return r.xPad
}

// YPad returns the y padding used in letterbox resize
func (r *Resizer) YPad() int {
	return r.yPad
}

// SrcWidth returns the width of the source image
func (r *Resizer) SrcWidth() int {
	return r.srcWidth
}

// SrcHeight returns the height of the source image
func (r *Resizer) SrcHeight() int {
	return r.srcHeight
}
