package image

import (
	"bytes"
	"context"
	stdimage "image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/ppe-go/internal/compliance"
	"github.com/tphakala/ppe-go/internal/detection"
	"github.com/tphakala/ppe-go/internal/export"
	"github.com/tphakala/ppe-go/internal/inspection"
)

func compliantInspect(_ context.Context, img stdimage.Image, source compliance.Source) (*inspection.Report, error) {
	vocab := detection.DefaultVocabulary()
	dets := []detection.Detection{
		{Box: detection.Box{X1: 1, Y1: 1, X2: 8, Y2: 10}, Confidence: 0.9, ClassID: 5, ClassName: "person"},
		{Box: detection.Box{X1: 2, Y1: 1, X2: 6, Y2: 4}, Confidence: 0.8, ClassID: 1, ClassName: "hardhat"},
	}
	b := img.Bounds()
	return &inspection.Report{
		ID:          "abc",
		Source:      source,
		Detections:  dets,
		Vocabulary:  vocab,
		Snapshot:    compliance.Aggregate(dets, vocab),
		Annotated:   img,
		ImageWidth:  b.Dx(),
		ImageHeight: b.Dy(),
	}, nil
}

func TestInspectWritesReportAndArtifacts(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "site.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, stdimage.NewNRGBA(stdimage.Rect(0, 0, 20, 10))))
	require.NoError(t, f.Close())

	outDir := filepath.Join(dir, "out")
	var out bytes.Buffer
	require.NoError(t, Inspect(t.Context(), &out, compliantInspect, path, outDir))

	text := out.String()
	assert.Contains(t, text, "site.png")
	assert.Contains(t, text, "Status: COMPLIANT - Site looks compliant based on this frame")
	assert.Contains(t, text, "Detected items: Hardhat: 1, Person: 1")
	assert.Contains(t, text, "Wrote ppe_detection.jpg and detections.json")
	assert.FileExists(t, filepath.Join(outDir, export.ImageFilename))
	assert.FileExists(t, filepath.Join(outDir, export.DetectionsFilename))
}

func TestInspectMissingFile(t *testing.T) {
	t.Parallel()
	err := Inspect(t.Context(), &bytes.Buffer{}, compliantInspect, filepath.Join(t.TempDir(), "nope.jpg"), "")
	require.Error(t, err)
}
