// Package detection defines the detector contract shared by the model adapter,
// the compliance aggregator and the API: boxes, detections and class vocabularies.
package detection

import (
	"context"
	"image"
	"maps"
	"math"
	"slices"
	"strconv"
	"time"
)

// Class names of the default PPE model.
const (
	ClassGloves    = "gloves"
	ClassHardhat   = "hardhat"
	ClassNoGloves  = "no-gloves"
	ClassNoHardhat = "no-hardhat"
	ClassNoVest    = "no-vest"
	ClassPerson    = "person"
	ClassShoes     = "shoes"
	ClassVest      = "vest"
)

// Box is an axis-aligned rectangle in source image pixels.
type Box struct {
	X1, Y1, X2, Y2 float64
}

func (b Box) Width() float64  { return b.X2 - b.X1 }
func (b Box) Height() float64 { return b.Y2 - b.Y1 }

// Area returns zero for degenerate boxes.
func (b Box) Area() float64 {
	if b.X2 <= b.X1 || b.Y2 <= b.Y1 {
		return 0
	}
	return b.Width() * b.Height()
}

// Valid reports whether x1<x2 and y1<y2.
func (b Box) Valid() bool {
	return b.X1 < b.X2 && b.Y1 < b.Y2
}

// IoU returns the intersection over union of two boxes.
func (b Box) IoU(o Box) float64 {
	inter := Box{
		X1: math.Max(b.X1, o.X1),
		Y1: math.Max(b.Y1, o.Y1),
		X2: math.Min(b.X2, o.X2),
		Y2: math.Min(b.Y2, o.Y2),
	}.Area()
	union := b.Area() + o.Area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// Clamp limits the box to the given image bounds.
func (b Box) Clamp(bounds image.Rectangle) Box {
	clamp := func(v, lo, hi float64) float64 { return math.Min(math.Max(v, lo), hi) }
	minX, minY := float64(bounds.Min.X), float64(bounds.Min.Y)
	maxX, maxY := float64(bounds.Max.X), float64(bounds.Max.Y)
	return Box{
		X1: clamp(b.X1, minX, maxX),
		Y1: clamp(b.Y1, minY, maxY),
		X2: clamp(b.X2, minX, maxX),
		Y2: clamp(b.Y2, minY, maxY),
	}
}

// Rect converts the box to integer image coordinates.
func (b Box) Rect() image.Rectangle {
	return image.Rect(int(math.Round(b.X1)), int(math.Round(b.Y1)), int(math.Round(b.X2)), int(math.Round(b.Y2)))
}

// Detection is one located, classified object from a single inference pass.
type Detection struct {
	Box        Box
	Confidence float64
	ClassID    int
	ClassName  string
}

// Vocabulary maps class IDs to class names. Names are case-sensitive.
type Vocabulary map[int]string

// DefaultVocabulary returns the eight-class PPE vocabulary used when the model
// carries no labels of its own.
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		0: ClassGloves,
		1: ClassHardhat,
		2: ClassNoGloves,
		3: ClassNoHardhat,
		4: ClassNoVest,
		5: ClassPerson,
		6: ClassShoes,
		7: ClassVest,
	}
}

// Name resolves a class ID, falling back to the numeric ID for unknown classes.
func (v Vocabulary) Name(id int) string {
	if name, ok := v[id]; ok {
		return name
	}
	return strconv.Itoa(id)
}

// IDsFor returns every class ID whose name equals name, in ascending order.
func (v Vocabulary) IDsFor(name string) []int {
	var ids []int
	for id, n := range v {
		if n == name {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

// IDs returns all class IDs in ascending order.
func (v Vocabulary) IDs() []int {
	return slices.Sorted(maps.Keys(v))
}

// Clone returns an independent copy.
func (v Vocabulary) Clone() Vocabulary {
	return maps.Clone(v)
}

// Result is the outcome of one detector call.
type Result struct {
	Detections    []Detection
	Vocabulary    Vocabulary
	Annotated     image.Image // input with every detection drawn; never the input itself
	InferenceTime time.Duration
}

// Detector runs object detection on a decoded image. Implementations do not
// modify img.
type Detector interface {
	Detect(ctx context.Context, img image.Image) (*Result, error)
	Vocabulary() Vocabulary
}
