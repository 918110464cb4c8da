package api

import (
	"time"

	"github.com/tphakala/ppe-go/internal/compliance"
	"github.com/tphakala/ppe-go/internal/export"
	"github.com/tphakala/ppe-go/internal/inspection"
)

// InspectionResponse is the JSON view of an inspection report.
type InspectionResponse struct {
	ID            string              `json:"id"`
	Node          string              `json:"node,omitempty"`
	Source        compliance.Source   `json:"source"`
	Timestamp     time.Time           `json:"timestamp"`
	State         compliance.State    `json:"state"`
	StatusMessage string              `json:"status_message"`
	Snapshot      compliance.Snapshot `json:"snapshot"`
	KPIs          []compliance.KPI    `json:"kpis"`
	Badges        []compliance.Badge  `json:"badges"`
	Advice        []string            `json:"advice"`
	Detections    []export.Record     `json:"detections"`
	InferenceMs   float64             `json:"inference_ms"`
	ImageWidth    int                 `json:"image_width"`
	ImageHeight   int                 `json:"image_height"`
	Links         map[string]string   `json:"links"`
}

func newInspectionResponse(r *inspection.Report, prefix string, hasImage bool) InspectionResponse {
	links := map[string]string{
		"self":       prefix + "/inspections/" + r.ID,
		"detections": prefix + "/inspections/" + r.ID + "/detections",
	}
	if hasImage {
		links["image"] = prefix + "/inspections/" + r.ID + "/image"
	}
	return InspectionResponse{
		ID:            r.ID,
		Node:          r.Node,
		Source:        r.Source,
		Timestamp:     r.Timestamp,
		State:         r.Snapshot.State,
		StatusMessage: r.Snapshot.StatusMessage(r.Source),
		Snapshot:      r.Snapshot,
		KPIs:          r.Snapshot.KPIs(),
		Badges:        r.Snapshot.Badges(r.Vocabulary),
		Advice:        r.Snapshot.Advice(r.Source),
		Detections:    export.ToRecords(r.Detections),
		InferenceMs:   float64(r.InferenceTime.Microseconds()) / 1000,
		ImageWidth:    r.ImageWidth,
		ImageHeight:   r.ImageHeight,
		Links:         links,
	}
}

// RecentQuery binds GET /inspections/recent.
type RecentQuery struct {
	Limit int `query:"limit" validate:"gte=1,lte=100"`
}
