package render

import (
	"image/color"
	"strings"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/swdee/go-dartscore"
	"github.com/swdee/go-dartscore/board"
)

var (
	Black  = color.RGBA{R: 0, G: 0, B: 0, A: 255}
	White  = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	Yellow = color.RGBA{R: 255, G: 255, B: 50, A: 255}

	// dartColor is used for dart boxes
	dartColor = color.RGBA{R: 255, G: 56, B: 56, A: 255} // #FF3838

	// markerColors are evenly spaced hues for the calibration markers
	markerColors = hclPalette(board.NumAnchors, 200, 0.55, 0.75)

	// regionColors are used for the score label background per ring
	regionColors = map[string]color.RGBA{
		board.DoubleBull: fromHex("#D32F2F"),
		board.SingleBull: fromHex("#388E3C"),
		board.Single:     fromHex("#455A64"),
		board.Treble:     fromHex("#C2185B"),
		board.Double:     fromHex("#1976D2"),
		board.Miss:       fromHex("#757575"),
	}
)

// hclPalette returns n colors of equal chroma and luminance with hues spaced
// evenly around the color wheel starting from startHue
func hclPalette(n int, startHue, chroma, luminance float64) []color.RGBA {

	out := make([]color.RGBA, n)
	step := 360.0 / float64(n)

	for i := range out {
		out[i] = toRGBA(colorful.Hcl(startHue+step*float64(i), chroma, luminance))
	}

	return out
}

func toRGBA(c colorful.Color) color.RGBA {
	r, g, b := c.Clamped().RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 255}
}

func fromHex(s string) color.RGBA {
	c, err := colorful.Hex(s)
	if err != nil {
		return White
	}
	return toRGBA(c)
}

// DetectionColor returns the box color for a detection label
func DetectionColor(label string) color.RGBA {

	class, marker := dartscore.ParseLabel(label)

	switch class {
	case dartscore.ClassDart:
		return dartColor
	case dartscore.ClassCalibration:
		return markerColors[int(marker-1)%len(markerColors)]
	default:
		return Yellow
	}
}

// ScoreColor returns the label background color for a dart score label such
// as T20, DB or miss
func ScoreColor(label string) color.RGBA {

	region := label

	switch {
	case label == board.DoubleBull, label == board.SingleBull, label == board.Miss:
	case strings.HasPrefix(label, board.Treble):
		region = board.Treble
	case strings.HasPrefix(label, board.Double):
		region = board.Double
	default:
		region = board.Single
	}

	return regionColors[region]
}

// Fade blends the color toward black by the given amount in [0,1], used to
// show low confidence detections
func Fade(c color.RGBA, amount float64) color.RGBA {

	if amount <= 0 {
		return c
	}

	if amount > 1 {
		amount = 1
	}

	base, _ := colorful.MakeColor(c)

	return toRGBA(base.BlendLab(colorful.Color{}, amount))
}
