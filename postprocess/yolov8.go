package postprocess

import (
	"fmt"

	"github.com/swdee/go-dartscore"
	"github.com/swdee/go-dartscore/preprocess"
)

// YOLOv8 defines the struct for YOLOv8 model post processing of the single
// detection head output, shaped [1, 4+classes, anchors] or transposed as
// [1, anchors, 4+classes]
type YOLOv8 struct {
	// Params are the Model configuration parameters
	Params YOLOv8Params
	// Labels are the class names indexed by class ID
	Labels []string
}

// YOLOv8Params defines the struct containing the YOLOv8 parameters to use
// for post processing operations
type YOLOv8Params struct {
	// BoxThreshold is the minimum probability score required for a bounding box
	// region to be considered for processing
	BoxThreshold float32
	// NMSThreshold is the Non-Maximum Suppression threshold used for defining
	// the maximum allowed Intersection Over Union (IoU) between two
	// bounding boxes for both to be kept
	NMSThreshold float32
	// ObjectClassNum is the number of different object classes the Model has
	// been trained with
	ObjectClassNum int
	// MaxObjectNumber is the maximum number of objects detected that can be
	// returned
	MaxObjectNumber int
}

// YOLOv8DartParams returns YOLOv8Params for the dart and calibration marker
// model featuring:
// - Object Classes: 5
// - Box Threshold: 0.2
// - NMS Threshold: 0.45
// - Maximum Object Number: 64
func YOLOv8DartParams() YOLOv8Params {
	return YOLOv8Params{
		BoxThreshold:    0.2,
		NMSThreshold:    0.45,
		ObjectClassNum:  len(dartscore.DefaultClassNames),
		MaxObjectNumber: 64,
	}
}

// YOLOv8BoardParams returns YOLOv8Params for the single class dartboard
// localization model
func YOLOv8BoardParams() YOLOv8Params {
	return YOLOv8Params{
		BoxThreshold:    0.25,
		NMSThreshold:    0.45,
		ObjectClassNum:  1,
		MaxObjectNumber: 1,
	}
}

// NewYOLOv8 returns an instance of the YOLOv8 post processor
func NewYOLOv8(p YOLOv8Params, labels []string) *YOLOv8 {
	return &YOLOv8{
		Params: p,
		Labels: labels,
	}
}

// strideData holds the candidate boxes found in the output tensor
type strideData struct {
	// filterBoxes are x1, y1, w, h quads in model input pixels
	filterBoxes []float32
	objProbs    []float32
	classID     []int
}

// DetectObjects decodes the output tensor into detections with boxes
// normalized to the source image the resizer was created for
func (y *YOLOv8) DetectObjects(t Tensor, resizer *preprocess.Resizer) ([]dartscore.Detection, error) {

	rows := 4 + y.Params.ObjectClassNum

	if len(t.Shape) != 3 || t.Shape[0] != 1 {
		return nil, fmt.Errorf("unexpected output shape %v", t.Shape)
	}

	var anchors int
	var at func(row, anchor int) float32

	switch {
	case t.Shape[1] == rows:
		anchors = t.Shape[2]
		at = func(row, anchor int) float32 { return t.Data[row*anchors+anchor] }

	case t.Shape[2] == rows:
		anchors = t.Shape[1]
		at = func(row, anchor int) float32 { return t.Data[anchor*rows+row] }

	default:
		return nil, fmt.Errorf("output shape %v does not match %d classes", t.Shape, y.Params.ObjectClassNum)
	}

	data := &strideData{}
	validCount := 0

	for a := 0; a < anchors; a++ {

		maxScore := float32(0)
		maxClassID := -1

		for c := 0; c < y.Params.ObjectClassNum; c++ {
			if s := at(4+c, a); s > maxScore {
				maxScore = s
				maxClassID = c
			}
		}

		if maxClassID < 0 || maxScore <= y.Params.BoxThreshold {
			continue
		}

		cx, cy := at(0, a), at(1, a)
		w, h := at(2, a), at(3, a)

		data.filterBoxes = append(data.filterBoxes, cx-w/2, cy-h/2, w, h)
		data.objProbs = append(data.objProbs, maxScore)
		data.classID = append(data.classID, maxClassID)
		validCount++
	}

	if validCount <= 0 {
		// no object detected
		return nil, nil
	}

	// indexArray is used to keep and index of detect objects contained in
	// the stride "data" variable
	indexArray := make([]int, validCount)

	for i := range indexArray {
		indexArray[i] = i
	}

	quickSortIndiceInverse(data.objProbs, 0, validCount-1, indexArray)

	// create a unique set of ClassID (ie: eliminate any multiples found)
	classSet := make(map[int]bool)

	for _, id := range data.classID {
		classSet[id] = true
	}

	// for each classID in the classSet calculate the NMS
	for c := range classSet {
		nms(validCount, data.filterBoxes, data.classID, indexArray, c,
			y.Params.NMSThreshold)
	}

	// collate objects into detections for returning
	group := make([]dartscore.Detection, 0)

	for i := 0; i < validCount; i++ {
		if indexArray[i] == -1 || len(group) >= y.Params.MaxObjectNumber {
			continue
		}
		n := indexArray[i]

		x1 := data.filterBoxes[n*4+0]
		y1 := data.filterBoxes[n*4+1]
		x2 := x1 + data.filterBoxes[n*4+2]
		y2 := y1 + data.filterBoxes[n*4+3]
		id := data.classID[n]

		group = append(group, dartscore.Detection{
			Label:      y.label(id),
			ClassID:    id,
			Box:        resizer.SourceRect(x1, y1, x2, y2),
			Confidence: float64(clamp(data.objProbs[i], 0, 1)),
		})
	}

	return group, nil
}

// label returns the class name for the class ID
func (y *YOLOv8) label(id int) string {
	if id >= 0 && id < len(y.Labels) {
		return y.Labels[id]
	}
	return fmt.Sprintf("class_%d", id)
}
