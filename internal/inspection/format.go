package inspection

import (
	"fmt"
	"io"
	"strings"

	"github.com/tphakala/ppe-go/internal/compliance"
)

// WriteText renders a report for a terminal: status, KPIs, detected items
// and suggested actions.
func WriteText(w io.Writer, r *Report) error {
	s := r.Snapshot
	var b strings.Builder

	fmt.Fprintf(&b, "Inspection %s (%s, %dx%d, %.1f ms)\n",
		r.ID, r.Source, r.ImageWidth, r.ImageHeight, float64(r.InferenceTime.Microseconds())/1000)
	fmt.Fprintf(&b, "Status: %s - %s\n", strings.ToUpper(string(s.State)), s.StatusMessage(r.Source))

	kpis := s.KPIs()
	parts := make([]string, 0, len(kpis))
	for _, k := range kpis {
		parts = append(parts, k.Label+": "+k.Value)
	}
	fmt.Fprintf(&b, "%s\n", strings.Join(parts, " | "))

	badges := s.Badges(r.Vocabulary)
	if len(badges) == 0 {
		b.WriteString("Detected items: none\n")
	} else {
		items := make([]string, 0, len(badges))
		for _, badge := range badges {
			items = append(items, badge.String())
		}
		fmt.Fprintf(&b, "Detected items: %s\n", strings.Join(items, ", "))
	}

	b.WriteString("Risk & suggested actions:\n")
	for _, line := range s.Advice(r.Source) {
		fmt.Fprintf(&b, "  - %s\n", line)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// SummaryLine is a single-line report used when inspecting many files.
func SummaryLine(name string, r *Report) string {
	s := r.Snapshot
	return fmt.Sprintf("%-40s %-9s score=%3d%% workers=%d flags=%d detections=%d",
		name, s.State, s.ComplianceScore, s.WorkerCount, s.NonComplianceFlags, s.TotalDetections())
}

// Totals accumulates reports for a batch run.
type Totals struct {
	Frames    int
	Compliant int
	Risk      int
	Workers   int
	Flags     int
	scoreSum  int
}

// Add counts one report.
func (t *Totals) Add(r *Report) {
	s := r.Snapshot
	t.Frames++
	if s.State == compliance.StateCompliant {
		t.Compliant++
	} else {
		t.Risk++
	}
	t.Workers += s.WorkerCount
	t.Flags += s.NonComplianceFlags
	t.scoreSum += s.ComplianceScore
}

// AverageScore is the mean compliance score, or 100 for an empty batch.
func (t *Totals) AverageScore() float64 {
	if t.Frames == 0 {
		return 100
	}
	return float64(t.scoreSum) / float64(t.Frames)
}

func (t *Totals) String() string {
	return fmt.Sprintf("Total: %d frame(s), %d compliant, %d risk, %d worker(s), %d issue(s), average score %.1f%%",
		t.Frames, t.Compliant, t.Risk, t.Workers, t.Flags, t.AverageScore())
}
