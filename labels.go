package dartscore

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/swdee/go-dartscore/calibration"
)

// DartLabel is the class name the detector uses for a dart tip
const DartLabel = "dart"

// DefaultClassNames is the class ID to label mapping of the dart detection
// model, note the third and fourth calibration classes are swapped
var DefaultClassNames = []string{"calib_1", "calib_2", "calib_4", "calib_3", DartLabel}

// Class is the kind of object a detection label refers to
type Class int

const (
	// ClassUnknown is any label the pipeline does not use
	ClassUnknown Class = iota
	// ClassCalibration is one of the calibration markers on the board
	ClassCalibration
	// ClassDart is a dart stuck in the board
	ClassDart
)

// String returns the class name
func (c Class) String() string {
	switch c {
	case ClassCalibration:
		return "calibration"
	case ClassDart:
		return "dart"
	default:
		return "unknown"
	}
}

// ParseLabel returns the class of a detection label and for calibration
// labels the marker it names.  Labels are matched case insensitively.
func ParseLabel(label string) (Class, calibration.Marker) {

	label = strings.ToLower(strings.TrimSpace(label))

	if label == DartLabel {
		return ClassDart, 0
	}

	var n int
	if _, err := fmt.Sscanf(label, "calib_%d", &n); err == nil {
		if m := calibration.Marker(n); m.Valid() && m.String() == label {
			return ClassCalibration, m
		}
	}

	return ClassUnknown, 0
}

// LoadLabels reads the class names of the detection model from the given
// text file.  It should contain one label per line, blank lines are skipped.
func LoadLabels(file string) ([]string, error) {

	// open the file
	f, err := os.Open(file)

	if err != nil {
		return nil, fmt.Errorf("error opening file: %w", err)
	}

	defer f.Close()

	scanner := bufio.NewScanner(f)

	var labels []string

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" {
			continue
		}

		labels = append(labels, line)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading file: %w", err)
	}

	return labels, nil
}
