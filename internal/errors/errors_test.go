package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingReporter struct {
	reported []*EnhancedError
}

func (r *recordingReporter) ReportError(ee *EnhancedError) {
	r.reported = append(r.reported, ee)
	ee.MarkReported()
}

func (r *recordingReporter) IsEnabled() bool { return true }

func TestBuilderSetsFields(t *testing.T) {
	base := fmt.Errorf("model file missing")
	ee := New(base).
		Component("detector").
		Category(CategoryModelLoad).
		Priority(PriorityCritical).
		ModelContext("/opt/models/ppe.tflite", "v8n").
		Timing("model-load", 1500*time.Millisecond).
		Build()

	require.NotNil(t, ee)
	assert.Equal(t, "model file missing", ee.Error())
	assert.Equal(t, "detector", ee.GetComponent())
	assert.Equal(t, CategoryModelLoad, ee.GetCategory())
	assert.True(t, errors.Is(ee, base))

	ctx := ee.GetContext()
	assert.Equal(t, "tflite", ctx["model_type"])
	assert.Equal(t, "ppe.tflite", ctx["model_file"])
	assert.Equal(t, "model-load", ctx["operation"])
	assert.Equal(t, int64(1500), ctx["duration_ms"])

	// GetContext returns a copy
	ctx["model_file"] = "changed"
	assert.Equal(t, "ppe.tflite", ee.GetContext()["model_file"])
}

func TestBuildDefaultsCategoryWithoutReporter(t *testing.T) {
	SetTelemetryReporter(nil)
	ee := Newf("plain %d", 1).Build()
	assert.Equal(t, CategoryGeneric, ee.Category)
	assert.False(t, ee.IsReported())
}

func TestBuildReportsWhenReporterActive(t *testing.T) {
	reporter := &recordingReporter{}
	SetTelemetryReporter(reporter)
	t.Cleanup(func() { SetTelemetryReporter(nil) })

	ee := New(fmt.Errorf("open /var/lib/ppe/model.tflite: no such file or directory")).Build()
	require.Len(t, reporter.reported, 1)
	assert.Equal(t, CategoryFileIO, ee.Category)
	assert.True(t, ee.IsReported())
}

func TestIsCategoryAndNotFound(t *testing.T) {
	nf := NotFound("inspection", "abc")
	wrapped := fmt.Errorf("lookup: %w", nf)

	assert.True(t, IsNotFound(wrapped))
	assert.True(t, IsCategory(wrapped, CategoryNotFound))
	assert.False(t, IsCategory(wrapped, CategoryDatabase))
	assert.False(t, IsNotFound(NewStd("other")))
	assert.Contains(t, nf.Error(), "inspection abc not found")
}

func TestWrapPreservesEnhanced(t *testing.T) {
	assert.Nil(t, Wrap(nil))

	ve := ValidationError("bad input")
	assert.Same(t, ve, Wrap(fmt.Errorf("ctx: %w", ve)))

	plain := Wrap(NewStd("boom"))
	assert.Equal(t, "boom", plain.Error())
}

func TestEnhancedErrorIs(t *testing.T) {
	a := New(NewStd("same")).Category(CategoryInference).Build()
	b := New(NewStd("same")).Category(CategoryInference).Build()
	c := New(NewStd("same")).Category(CategoryDatabase).Build()

	assert.True(t, errors.Is(a, b))
	assert.False(t, errors.Is(a, c))
}

func TestScrubMessageForPrivacy(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		contains string
		absent   string
	}{
		{"url credentials", "dial tcp://user:pw@broker.local:1883/x failed", "tcp://broker.local:1883/[...]", "pw@"},
		{"token", "request failed token=abc123", "token=[REDACTED]", "abc123"},
		{"path", "open /home/site/images/frame.jpg failed", "[PATH]", "/home/site"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			out := scrubMessageForPrivacy(tt.input)
			assert.Contains(t, out, tt.contains)
			assert.False(t, strings.Contains(out, tt.absent), "output %q still contains %q", out, tt.absent)
		})
	}
}

func TestGenerateErrorTitle(t *testing.T) {
	ee := New(NewStd("x")).Component("detector").Category(CategoryModelInit).Timing("model-load", time.Second).Build()
	assert.Equal(t, "Detector Model Initialization Error Model load", generateErrorTitle(ee))
}
