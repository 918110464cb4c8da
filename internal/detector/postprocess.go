package detector

import (
	"fmt"
	"math"
	"slices"

	"github.com/tphakala/ppe-go/internal/detection"
)

// candidate is a decoded box in model input pixels.
type candidate struct {
	box     detection.Box
	score   float64
	classID int
}

// errMalformedOutput marks model output that cannot be interpreted as a
// detection head. Callers treat it as an empty frame.
type errMalformedOutput struct {
	reason string
}

func (e errMalformedOutput) Error() string {
	return "malformed model output: " + e.reason
}

func malformed(format string, args ...any) error {
	return errMalformedOutput{reason: fmt.Sprintf(format, args...)}
}

// decodeOutput parses a YOLOv8-style head: [1, 4+nc, N] channel-major, or
// the transposed [1, N, 4+nc]. Rows are (xc, yc, w, h, class scores...),
// either in input pixels or normalized to [0,1]. numClasses disambiguates
// the layout when it matches one dimension.
func decodeOutput(data []float32, shape []int, inputW, inputH, numClasses int, minConf float64) ([]candidate, error) {
	if len(data) == 0 {
		return nil, malformed("empty output tensor")
	}
	for len(shape) > 2 && shape[0] == 1 {
		shape = shape[1:]
	}
	if len(shape) != 2 {
		return nil, malformed("unexpected output shape %v", shape)
	}

	channelsFirst := shape[0] < shape[1]
	switch want := 4 + numClasses; {
	case shape[0] == want && shape[1] != want:
		channelsFirst = true
	case shape[1] == want && shape[0] != want:
		channelsFirst = false
	}
	channels, n := shape[0], shape[1]
	if !channelsFirst {
		channels, n = shape[1], shape[0]
	}
	if channels < 5 || n == 0 {
		return nil, malformed("unexpected output shape %v", shape)
	}
	if len(data) != channels*n {
		return nil, malformed("output has %d values, shape %v needs %d", len(data), shape, channels*n)
	}

	at := func(c, i int) float64 {
		if channelsFirst {
			return float64(data[c*n+i])
		}
		return float64(data[i*channels+c])
	}

	scaleX, scaleY := 1.0, 1.0
	if isNormalized(at, n) {
		scaleX, scaleY = float64(inputW), float64(inputH)
	}

	var out []candidate
	for i := range n {
		best, bestScore := -1, math.Inf(-1)
		for c := 4; c < channels; c++ {
			if s := at(c, i); s > bestScore {
				best, bestScore = c-4, s
			}
		}
		if best < 0 || math.IsNaN(bestScore) || bestScore < minConf {
			continue
		}

		xc, yc := at(0, i)*scaleX, at(1, i)*scaleY
		w, h := at(2, i)*scaleX, at(3, i)*scaleY
		if w <= 0 || h <= 0 || math.IsNaN(xc+yc+w+h) {
			continue
		}
		out = append(out, candidate{
			box:     detection.Box{X1: xc - w/2, Y1: yc - h/2, X2: xc + w/2, Y2: yc + h/2},
			score:   bestScore,
			classID: best,
		})
	}
	return out, nil
}

// isNormalized reports whether box coordinates look like fractions of the
// input size rather than pixels.
func isNormalized(at func(c, i int) float64, n int) bool {
	maxCoord := 0.0
	for i := range n {
		for c := range 4 {
			maxCoord = math.Max(maxCoord, at(c, i))
		}
	}
	return maxCoord <= 2
}

// nonMaxSuppression keeps the highest scoring boxes, suppressing boxes of the
// same class that overlap a kept box by more than iouThreshold. The result
// is ordered by descending score and holds at most maxDet entries.
func nonMaxSuppression(cands []candidate, iouThreshold float64, maxDet int) []candidate {
	sorted := slices.Clone(cands)
	slices.SortStableFunc(sorted, func(a, b candidate) int {
		switch {
		case a.score > b.score:
			return -1
		case a.score < b.score:
			return 1
		}
		return 0
	})

	kept := make([]candidate, 0, min(len(sorted), maxDet))
	for _, c := range sorted {
		if len(kept) >= maxDet {
			break
		}
		suppressed := false
		for _, k := range kept {
			if k.classID == c.classID && k.box.IoU(c.box) > iouThreshold {
				suppressed = true
				break
			}
		}
		if !suppressed {
			kept = append(kept, c)
		}
	}
	return kept
}

// toDetections maps candidates back to source pixels and resolves names.
// Boxes that collapse after clamping to the image are dropped.
func toDetections(cands []candidate, lb letterbox, vocab detection.Vocabulary) []detection.Detection {
	dets := make([]detection.Detection, 0, len(cands))
	for _, c := range cands {
		x1, y1 := lb.toSource(c.box.X1, c.box.Y1)
		x2, y2 := lb.toSource(c.box.X2, c.box.Y2)
		box := detection.Box{X1: x1, Y1: y1, X2: x2, Y2: y2}.Clamp(lb.srcBounds)
		if !box.Valid() {
			continue
		}
		dets = append(dets, detection.Detection{
			Box:        box,
			Confidence: math.Min(1, math.Max(0, c.score)),
			ClassID:    c.classID,
			ClassName:  vocab.Name(c.classID),
		})
	}
	return dets
}
