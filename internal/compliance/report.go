package compliance

import (
	"fmt"
	"slices"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/tphakala/ppe-go/internal/detection"
)

// Source identifies how a frame was captured. Wording of messages differs
// between sources.
type Source string

const (
	SourceUpload Source = "upload"
	SourceWebcam Source = "webcam"
)

// ParseSource maps a request value to a Source, defaulting to upload.
func ParseSource(s string) (Source, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(SourceUpload):
		return SourceUpload, nil
	case string(SourceWebcam), "camera":
		return SourceWebcam, nil
	}
	return "", fmt.Errorf("unknown source %q", s)
}

// StatusMessage is the text shown next to the status chip.
func (s Snapshot) StatusMessage(source Source) string {
	compliant := s.State == StateCompliant
	switch {
	case source == SourceWebcam && compliant:
		return "Webcam frame looks compliant"
	case source == SourceWebcam:
		return "PPE issues detected in webcam frame"
	case compliant:
		return "Site looks compliant based on this frame"
	}
	return "Potential PPE issues detected in this frame"
}

// Advice returns the risk lines for helmets, vests and gloves followed by a
// closing recommendation.
func (s Snapshot) Advice(source Source) []string {
	helmet := "Helmet issues: none observed."
	if source == SourceUpload {
		helmet = "Helmet issues: none observed in this frame."
		if s.NoHardhats > 0 {
			helmet = fmt.Sprintf("Helmet issues: %d worker(s) flagged without helmet.", s.NoHardhats)
		}
	} else if s.NoHardhats > 0 {
		helmet = fmt.Sprintf("Helmet issues: %d worker(s) without helmet.", s.NoHardhats)
	}

	vest := "Vest issues: none observed."
	if s.NoVests > 0 {
		vest = fmt.Sprintf("Vest issues: %d worker(s) without high-visibility vest.", s.NoVests)
	}

	gloves := "Gloves issues: none observed."
	if s.NoGloves > 0 {
		gloves = fmt.Sprintf("Gloves issues: %d worker(s) without gloves.", s.NoGloves)
	}

	closing := "Consider integrating this pipeline with CCTV feeds or site-capture apps to automatically log non-compliant frames."
	if source == SourceWebcam {
		closing = "Capture another frame for updated risk assessment."
	}

	return []string{helmet, vest, gloves, closing}
}

// Badge is one "Detected Items" entry.
type Badge struct {
	ClassID int    `json:"class_id"`
	Name    string `json:"class_name"`
	Title   string `json:"title"` // display form of Name, "No-Hardhat"
	Count   int    `json:"count"`
}

func (b Badge) String() string {
	return fmt.Sprintf("%s: %d", b.Title, b.Count)
}

// Badges lists per-class counts ordered by class ID, with names resolved
// through vocab.
func (s Snapshot) Badges(vocab detection.Vocabulary) []Badge {
	ids := make([]int, 0, len(s.PerClassCounts))
	for id := range s.PerClassCounts {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	// Casers are stateful, so one per call.
	caser := cases.Title(language.English)
	badges := make([]Badge, 0, len(ids))
	for _, id := range ids {
		name := vocab.Name(id)
		badges = append(badges, Badge{
			ClassID: id,
			Name:    name,
			Title:   caser.String(name),
			Count:   s.PerClassCounts[id],
		})
	}
	return badges
}

// KPI is one headline number.
type KPI struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// KPIs returns workers detected, PPE issues flagged and the compliance score.
func (s Snapshot) KPIs() []KPI {
	return []KPI{
		{Label: "Workers detected", Value: fmt.Sprintf("%d", s.WorkerCount)},
		{Label: "PPE issues flagged", Value: fmt.Sprintf("%d", s.NonComplianceFlags)},
		{Label: "Compliance score", Value: fmt.Sprintf("%d%%", s.ComplianceScore)},
	}
}
