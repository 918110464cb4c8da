package datastore

import "time"

// Inspection is one persisted frame result.
type Inspection struct {
	ID        string    `gorm:"primaryKey;size:36"`
	CreatedAt time.Time `gorm:"index:idx_inspections_created"`
	Node      string    `gorm:"size:64"`
	Source    string    `gorm:"size:16;index:idx_inspections_source"`
	State     string    `gorm:"size:16;index:idx_inspections_state"`
	Score     int

	WorkerCount      int
	Gloves           int
	Hardhats         int
	Vests            int
	Shoes            int
	NoGloves         int
	NoHardhats       int
	NoVests          int
	Flags            int
	CompliantSignals int

	InferenceMs float64
	ImageWidth  int
	ImageHeight int

	Detections []DetectionRow `gorm:"foreignKey:InspectionID;constraint:OnDelete:CASCADE"`
}

// DetectionRow is one detection belonging to an Inspection.
type DetectionRow struct {
	ID           uint   `gorm:"primaryKey"`
	InspectionID string `gorm:"size:36;index;not null"`
	X1           float64
	Y1           float64
	X2           float64
	Y2           float64
	Confidence   float64
	ClassID      int    `gorm:"index"`
	ClassName    string `gorm:"size:64"`
}

// TableName keeps detections next to inspections in listings.
func (DetectionRow) TableName() string {
	return "inspection_detections"
}

// Summary aggregates the stored history.
type Summary struct {
	Total          int64            `json:"total"`
	Compliant      int64            `json:"compliant"`
	Risk           int64            `json:"risk"`
	AverageScore   float64          `json:"average_score"`
	Workers        int64            `json:"workers"`
	NoHardhats     int64            `json:"no_hardhats"`
	NoVests        int64            `json:"no_vests"`
	NoGloves       int64            `json:"no_gloves"`
	BySource       map[string]int64 `json:"by_source"`
	LastInspection *time.Time       `json:"last_inspection,omitempty"`
}
