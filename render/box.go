package render

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/swdee/go-dartscore"
	"github.com/swdee/go-dartscore/geometry"
)

// boxLabel holds the precalculated rendering details of a text label
type boxLabel struct {
	rect    image.Rectangle
	clr     color.RGBA
	text    string
	textPos image.Point
}

// toPixels converts a normalized rectangle to pixel coordinates of the Mat
func toPixels(img *gocv.Mat, r geometry.Rect) image.Rectangle {

	w, h := float64(img.Cols()), float64(img.Rows())

	return image.Rect(
		int(r.X*w), int(r.Y*h),
		int(r.BRX()*w), int(r.BRY()*h),
	)
}

// labelFor calculates where a text label is drawn above a box
func labelFor(box image.Rectangle, text string, clr color.RGBA, font Font,
	lineThickness int) boxLabel {

	textSize := font.textSize(text)

	// Calculate the alignment of text label
	var centerX int

	switch font.Alignment {
	case Center:
		centerX = (box.Min.X + box.Max.X) / 2

	case Right:
		centerX = box.Max.X - (textSize.X / 2) - font.RightPad + (lineThickness / 2)

	case Left:
		fallthrough
	default:
		centerX = box.Min.X + (textSize.X / 2) + font.LeftPad - (lineThickness / 2)
	}

	// Adjust the label position so the text is centered horizontally
	labelPosition := image.Pt(centerX-textSize.X/2, box.Min.Y-font.BottomPad)

	// create box for placing text on
	bRect := image.Rect(centerX-textSize.X/2-font.LeftPad,
		box.Min.Y-textSize.Y-font.TopPad-font.BottomPad,
		centerX+textSize.X/2+font.RightPad, box.Min.Y)

	return boxLabel{
		rect:    bRect,
		clr:     clr,
		text:    text,
		textPos: labelPosition,
	}
}

// drawLabels renders the labels as the top most layer on the image
func drawLabels(img *gocv.Mat, labels []boxLabel, font Font) {

	for _, l := range labels {
		// draw box text gets written on
		gocv.Rectangle(img, l.rect, l.clr, -1)

		// Draw the label over box
		gocv.PutTextWithParams(img, l.text, l.textPos,
			font.Face, font.Scale, font.Color, font.Thickness,
			font.LineType, false)
	}
}

// DetectionBoxes renders the bounding boxes around the darts and calibration
// markers detected.  Boxes are normalized to the image.
func DetectionBoxes(img *gocv.Mat, dets []dartscore.Detection, font Font,
	lineThickness int) {

	// keep a record of all box labels for later rendering
	boxLabels := make([]boxLabel, 0, len(dets))

	for _, det := range dets {

		useClr := Fade(DetectionColor(det.Label), 0.5*(1-det.Confidence))

		// draw rectangle around detected object
		rect := toPixels(img, det.Box)
		gocv.Rectangle(img, rect, useClr, lineThickness)

		// create text for label
		text := fmt.Sprintf("%s %.2f", det.Label, det.Confidence)

		boxLabels = append(boxLabels, labelFor(rect, text, useClr, font, lineThickness))
	}

	drawLabels(img, boxLabels, font)
}

// ScoreLabels renders a marker at each scored dart tip with its score label
func ScoreLabels(img *gocv.Mat, darts []dartscore.ScoredDart, font Font) {

	w, h := float64(img.Cols()), float64(img.Rows())

	labels := make([]boxLabel, 0, len(darts))

	for _, d := range darts {

		tip := image.Pt(int(d.Image.X*w), int(d.Image.Y*h))
		clr := ScoreColor(d.Label)

		gocv.Circle(img, tip, 6, clr, -1)
		gocv.Circle(img, tip, 7, White, 1)

		// place the label just above the tip
		anchor := image.Rect(tip.X, tip.Y-10, tip.X, tip.Y-10)

		labels = append(labels, labelFor(anchor, d.Label, clr, font, 0))
	}

	drawLabels(img, labels, font)
}

// Annotator draws detections and scored darts onto frames, it implements
// dartscore.Annotator
type Annotator struct {
	boxFont       Font
	scoreFont     Font
	lineThickness int
}

// NewAnnotator returns an Annotator with the default fonts
func NewAnnotator(lineThickness int) *Annotator {
	return &Annotator{
		boxFont:       DefaultFont(),
		scoreFont:     ScoreFont(),
		lineThickness: lineThickness,
	}
}

// Annotate returns a copy of img with detection boxes and score labels
// drawn.  The original image is returned if it can not be converted.
func (a *Annotator) Annotate(img image.Image, dets []dartscore.Detection,
	darts []dartscore.ScoredDart) image.Image {

	mat, err := gocv.ImageToMatRGB(img)

	if err != nil {
		return img
	}

	defer mat.Close()

	a.Draw(&mat, dets, darts)

	out, err := mat.ToImage()

	if err != nil {
		return img
	}

	return out
}

// Draw renders directly onto a Mat
func (a *Annotator) Draw(mat *gocv.Mat, dets []dartscore.Detection,
	darts []dartscore.ScoredDart) {

	DetectionBoxes(mat, dets, a.boxFont, a.lineThickness)
	ScoreLabels(mat, darts, a.scoreFont)
}

// StatusText renders multi line status text, such as the score text of an
// update, in the top left corner of the image
func StatusText(img *gocv.Mat, text string, font Font) {

	y := font.TopPad

	for _, line := range splitLines(text) {

		size := font.textSize(line)
		y += size.Y + font.TopPad + font.BottomPad

		gocv.Rectangle(img, image.Rect(0, y-size.Y-font.TopPad-font.BottomPad,
			size.X+font.LeftPad+font.RightPad, y), Black, -1)

		gocv.PutTextWithParams(img, line, image.Pt(font.LeftPad, y-font.BottomPad),
			font.Face, font.Scale, font.Color, font.Thickness, font.LineType, false)
	}
}
