package postprocess

import (
	"context"
	"fmt"
	"image"
	"image/color"

	"github.com/swdee/go-dartscore"
	"github.com/swdee/go-dartscore/geometry"
	"github.com/swdee/go-dartscore/preprocess"
)

// padColor is the letterbox padding used by YOLOv8 training
var padColor = color.RGBA{R: 114, G: 114, B: 114, A: 255}

// Inferencer runs a model on a letterboxed input image and returns its raw
// output tensor
type Inferencer interface {
	Infer(ctx context.Context, input image.Image) (Tensor, error)
}

// Detector runs a YOLOv8 model through an Inferencer and decodes its output
// into detections
type Detector struct {
	inf    Inferencer
	yolo   *YOLOv8
	width  int
	height int
}

// NewDetector returns a Detector feeding inputs of the given model input
// size to inf
func NewDetector(inf Inferencer, yolo *YOLOv8, inputWidth, inputHeight int) *Detector {
	return &Detector{
		inf:    inf,
		yolo:   yolo,
		width:  inputWidth,
		height: inputHeight,
	}
}

// Detect letterboxes the image to the model input size, runs inference and
// returns detections normalized to img
func (d *Detector) Detect(ctx context.Context, img image.Image) ([]dartscore.Detection, error) {

	b := img.Bounds()

	if b.Empty() {
		return nil, fmt.Errorf("empty image")
	}

	resizer := preprocess.NewResizer(b.Dx(), b.Dy(), d.width, d.height)

	input := resizer.LetterBoxResize(img, padColor)

	out, err := d.inf.Infer(ctx, input)

	if err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	return d.yolo.DetectObjects(out, resizer)
}

// BoardLocator finds the dartboard with a single class localization model
type BoardLocator struct {
	det *Detector
}

// NewBoardLocator returns a BoardLocator using the given detector
func NewBoardLocator(det *Detector) *BoardLocator {
	return &BoardLocator{det: det}
}

// LocateBoard returns the pixel box of the most confident detection
func (l *BoardLocator) LocateBoard(ctx context.Context, img image.Image) (geometry.Rect, bool, error) {

	dets, err := l.det.Detect(ctx, img)

	if err != nil {
		return geometry.Rect{}, false, err
	}

	best := -1

	for i, d := range dets {
		if best < 0 || d.Confidence > dets[best].Confidence {
			best = i
		}
	}

	if best < 0 {
		return geometry.Rect{}, false, nil
	}

	b := img.Bounds()
	w, h := float64(b.Dx()), float64(b.Dy())
	box := dets[best].Box

	return geometry.NewRect(
		float64(b.Min.X)+box.X*w,
		float64(b.Min.Y)+box.Y*h,
		box.Width*w,
		box.Height*h,
	), true, nil
}
