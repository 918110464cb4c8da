package inspection

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/ppe-go/internal/compliance"
	"github.com/tphakala/ppe-go/internal/detection"
)

func reportFor(dets []detection.Detection, source compliance.Source) *Report {
	vocab := detection.DefaultVocabulary()
	return &Report{
		ID:            "insp-1",
		Source:        source,
		Detections:    dets,
		Vocabulary:    vocab,
		Snapshot:      compliance.Aggregate(dets, vocab),
		InferenceTime: 12500 * time.Microsecond,
		ImageWidth:    640,
		ImageHeight:   480,
	}
}

func TestWriteTextRisk(t *testing.T) {
	t.Parallel()
	vocab := detection.DefaultVocabulary()
	r := reportFor([]detection.Detection{det(5, vocab), det(5, vocab), det(3, vocab)}, compliance.SourceUpload)

	var b strings.Builder
	require.NoError(t, WriteText(&b, r))
	out := b.String()

	assert.Contains(t, out, "Inspection insp-1 (upload, 640x480, 12.5 ms)")
	assert.Contains(t, out, "Status: RISK - Potential PPE issues detected in this frame")
	assert.Contains(t, out, "Workers detected: 2 | PPE issues flagged: 1 | Compliance score: 0%")
	assert.Contains(t, out, "Detected items: No-Hardhat: 1, Person: 2")
	assert.Contains(t, out, "  - Helmet issues: 1 worker(s) flagged without helmet.")
}

func TestWriteTextEmptyFrame(t *testing.T) {
	t.Parallel()
	r := reportFor(nil, compliance.SourceWebcam)

	var b strings.Builder
	require.NoError(t, WriteText(&b, r))
	out := b.String()

	assert.Contains(t, out, "Status: COMPLIANT - Webcam frame looks compliant")
	assert.Contains(t, out, "Compliance score: 100%")
	assert.Contains(t, out, "Detected items: none")
	assert.Contains(t, out, "Capture another frame for updated risk assessment.")
}

func TestTotals(t *testing.T) {
	t.Parallel()
	vocab := detection.DefaultVocabulary()

	var totals Totals
	assert.InDelta(t, 100, totals.AverageScore(), 0)

	totals.Add(reportFor([]detection.Detection{det(5, vocab), det(1, vocab)}, compliance.SourceUpload))
	totals.Add(reportFor([]detection.Detection{det(5, vocab), det(3, vocab)}, compliance.SourceUpload))

	assert.Equal(t, 2, totals.Frames)
	assert.Equal(t, 1, totals.Compliant)
	assert.Equal(t, 1, totals.Risk)
	assert.Equal(t, 2, totals.Workers)
	assert.Equal(t, 1, totals.Flags)
	assert.InDelta(t, 50, totals.AverageScore(), 1e-9)
	assert.Equal(t, "Total: 2 frame(s), 1 compliant, 1 risk, 2 worker(s), 1 issue(s), average score 50.0%", totals.String())

	line := SummaryLine("a.jpg", reportFor(nil, compliance.SourceUpload))
	assert.True(t, strings.HasPrefix(line, "a.jpg"))
	assert.Contains(t, line, "score=100%")
	assert.Contains(t, line, "detections=0")

	line = SummaryLine("b.jpg", reportFor([]detection.Detection{det(5, vocab), det(1, vocab), det(3, vocab)}, compliance.SourceUpload))
	assert.Contains(t, line, "risk")
	assert.Contains(t, line, "detections=3")
}
