package inspection

import (
	"encoding/json"
	"time"

	"github.com/tphakala/ppe-go/internal/compliance"
	"github.com/tphakala/ppe-go/internal/datastore"
	"github.com/tphakala/ppe-go/internal/detection"
	"github.com/tphakala/ppe-go/internal/export"
)

// ToRecord converts a report to its datastore row.
func ToRecord(r *Report) *datastore.Inspection {
	s := r.Snapshot
	rec := &datastore.Inspection{
		ID:               r.ID,
		CreatedAt:        r.Timestamp,
		Node:             r.Node,
		Source:           string(r.Source),
		State:            string(s.State),
		Score:            s.ComplianceScore,
		WorkerCount:      s.WorkerCount,
		Gloves:           s.Gloves,
		Hardhats:         s.Hardhats,
		Vests:            s.Vests,
		Shoes:            s.Shoes,
		NoGloves:         s.NoGloves,
		NoHardhats:       s.NoHardhats,
		NoVests:          s.NoVests,
		Flags:            s.NonComplianceFlags,
		CompliantSignals: s.CompliantSignals,
		InferenceMs:      float64(r.InferenceTime.Microseconds()) / 1000,
		ImageWidth:       r.ImageWidth,
		ImageHeight:      r.ImageHeight,
		Detections:       make([]datastore.DetectionRow, 0, len(r.Detections)),
	}
	for _, d := range r.Detections {
		rec.Detections = append(rec.Detections, datastore.DetectionRow{
			InspectionID: r.ID,
			X1:           d.Box.X1,
			Y1:           d.Box.Y1,
			X2:           d.Box.X2,
			Y2:           d.Box.Y2,
			Confidence:   d.Confidence,
			ClassID:      d.ClassID,
			ClassName:    d.ClassName,
		})
	}
	return rec
}

// FromRecord rebuilds a report from a datastore row. Stored counts are used
// as-is; per-class counts come from the stored detections.
func FromRecord(rec *datastore.Inspection, vocab detection.Vocabulary) *Report {
	dets := make([]detection.Detection, 0, len(rec.Detections))
	perClass := make(map[int]int, len(rec.Detections))
	for _, row := range rec.Detections {
		dets = append(dets, detection.Detection{
			Box:        detection.Box{X1: row.X1, Y1: row.Y1, X2: row.X2, Y2: row.Y2},
			Confidence: row.Confidence,
			ClassID:    row.ClassID,
			ClassName:  row.ClassName,
		})
		perClass[row.ClassID]++
	}

	return &Report{
		ID:         rec.ID,
		Node:       rec.Node,
		Source:     compliance.Source(rec.Source),
		Timestamp:  rec.CreatedAt,
		Detections: dets,
		Vocabulary: vocab,
		Snapshot: compliance.Snapshot{
			PerClassCounts:     perClass,
			WorkerCount:        rec.WorkerCount,
			Gloves:             rec.Gloves,
			Hardhats:           rec.Hardhats,
			Vests:              rec.Vests,
			Shoes:              rec.Shoes,
			NoGloves:           rec.NoGloves,
			NoHardhats:         rec.NoHardhats,
			NoVests:            rec.NoVests,
			NonComplianceFlags: rec.Flags,
			CompliantSignals:   rec.CompliantSignals,
			ComplianceScore:    rec.Score,
			State:              compliance.State(rec.State),
		},
		InferenceTime: time.Duration(rec.InferenceMs * float64(time.Millisecond)),
		ImageWidth:    rec.ImageWidth,
		ImageHeight:   rec.ImageHeight,
	}
}

// Message is the MQTT payload for one inspection.
type Message struct {
	ID          string              `json:"id"`
	Node        string              `json:"node,omitempty"`
	Source      compliance.Source   `json:"source"`
	Timestamp   time.Time           `json:"timestamp"`
	Snapshot    compliance.Snapshot `json:"snapshot"`
	Detections  []export.Record     `json:"detections"`
	InferenceMs float64             `json:"inference_ms"`
}

// MarshalMessage encodes the MQTT payload for r.
func MarshalMessage(r *Report) ([]byte, error) {
	return json.Marshal(Message{
		ID:          r.ID,
		Node:        r.Node,
		Source:      r.Source,
		Timestamp:   r.Timestamp,
		Snapshot:    r.Snapshot,
		Detections:  export.ToRecords(r.Detections),
		InferenceMs: float64(r.InferenceTime.Microseconds()) / 1000,
	})
}
