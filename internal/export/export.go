// Package export reads frames and writes the downloadable inspection
// artifacts: the annotated JPEG and the detections JSON.
package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"

	"github.com/tphakala/ppe-go/internal/detection"
	"github.com/tphakala/ppe-go/internal/errors"
)

// Download names of the two artifacts.
const (
	ImageFilename      = "ppe_detection.jpg"
	DetectionsFilename = "detections.json"

	DefaultJPEGQuality = 90
)

// Record is the JSON shape of one detection. Keys are part of the public
// export format.
type Record struct {
	X1        float64 `json:"x1"`
	Y1        float64 `json:"y1"`
	X2        float64 `json:"x2"`
	Y2        float64 `json:"y2"`
	Conf      float64 `json:"conf"`
	ClassID   int     `json:"class_id"`
	ClassName string  `json:"class_name"`
}

// ToRecords converts detections to export records.
func ToRecords(dets []detection.Detection) []Record {
	records := make([]Record, 0, len(dets))
	for _, d := range dets {
		records = append(records, Record{
			X1:        d.Box.X1,
			Y1:        d.Box.Y1,
			X2:        d.Box.X2,
			Y2:        d.Box.Y2,
			Conf:      d.Confidence,
			ClassID:   d.ClassID,
			ClassName: d.ClassName,
		})
	}
	return records
}

// MarshalDetections encodes detections as an indented JSON array. An empty
// list encodes as [].
func MarshalDetections(dets []detection.Detection) ([]byte, error) {
	data, err := json.MarshalIndent(ToRecords(dets), "", "  ")
	if err != nil {
		return nil, errors.New(err).
			Component("export").
			Category(errors.CategoryFileIO).
			Context("operation", "marshal-detections").
			Build()
	}
	return data, nil
}

// ParseDetections decodes the export format back into detections.
func ParseDetections(data []byte) ([]detection.Detection, error) {
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, errors.New(err).
			Component("export").
			Category(errors.CategoryValidation).
			Context("operation", "parse-detections").
			Build()
	}
	dets := make([]detection.Detection, 0, len(records))
	for _, r := range records {
		dets = append(dets, detection.Detection{
			Box:        detection.Box{X1: r.X1, Y1: r.Y1, X2: r.X2, Y2: r.Y2},
			Confidence: r.Conf,
			ClassID:    r.ClassID,
			ClassName:  r.ClassName,
		})
	}
	return dets, nil
}

// EncodeJPEG writes img as JPEG.
func EncodeJPEG(w io.Writer, img image.Image, quality int) error {
	if quality <= 0 || quality > 100 {
		quality = DefaultJPEGQuality
	}
	if err := imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return errors.New(err).
			Component("export").
			Category(errors.CategoryImageEncode).
			Build()
	}
	return nil
}

// JPEGBytes encodes img as JPEG into memory.
func JPEGBytes(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := EncodeJPEG(&buf, img, DefaultJPEGQuality); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteArtifacts writes ppe_detection.jpg and detections.json into dir.
func WriteArtifacts(dir string, annotated image.Image, dets []detection.Detection) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.FileError(fmt.Errorf("create output directory: %w", err), dir)
	}

	jpg, err := JPEGBytes(annotated)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, ImageFilename), jpg, 0o644); err != nil {
		return errors.FileError(err, ImageFilename)
	}

	data, err := MarshalDetections(dets)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, DetectionsFilename), data, 0o644); err != nil {
		return errors.FileError(err, DetectionsFilename)
	}
	return nil
}
