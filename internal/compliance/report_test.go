package compliance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/ppe-go/internal/detection"
)

func TestStatusMessage(t *testing.T) {
	t.Parallel()

	compliant := Snapshot{State: StateCompliant}
	risk := Snapshot{State: StateRisk}

	assert.Equal(t, "Site looks compliant based on this frame", compliant.StatusMessage(SourceUpload))
	assert.Equal(t, "Potential PPE issues detected in this frame", risk.StatusMessage(SourceUpload))
	assert.Equal(t, "Webcam frame looks compliant", compliant.StatusMessage(SourceWebcam))
	assert.Equal(t, "PPE issues detected in webcam frame", risk.StatusMessage(SourceWebcam))
}

func TestAdvice(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		snap   Snapshot
		source Source
		want   []string
	}{
		{
			name:   "upload clean",
			source: SourceUpload,
			want: []string{
				"Helmet issues: none observed in this frame.",
				"Vest issues: none observed.",
				"Gloves issues: none observed.",
				"Consider integrating this pipeline with CCTV feeds or site-capture apps to automatically log non-compliant frames.",
			},
		},
		{
			name:   "upload with issues",
			snap:   Snapshot{NoHardhats: 2, NoVests: 1, NoGloves: 3},
			source: SourceUpload,
			want: []string{
				"Helmet issues: 2 worker(s) flagged without helmet.",
				"Vest issues: 1 worker(s) without high-visibility vest.",
				"Gloves issues: 3 worker(s) without gloves.",
				"Consider integrating this pipeline with CCTV feeds or site-capture apps to automatically log non-compliant frames.",
			},
		},
		{
			name:   "webcam helmet issue",
			snap:   Snapshot{NoHardhats: 1},
			source: SourceWebcam,
			want: []string{
				"Helmet issues: 1 worker(s) without helmet.",
				"Vest issues: none observed.",
				"Gloves issues: none observed.",
				"Capture another frame for updated risk assessment.",
			},
		},
		{
			name:   "webcam clean",
			source: SourceWebcam,
			want: []string{
				"Helmet issues: none observed.",
				"Vest issues: none observed.",
				"Gloves issues: none observed.",
				"Capture another frame for updated risk assessment.",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.snap.Advice(tt.source))
		})
	}
}

func TestBadges(t *testing.T) {
	t.Parallel()
	s := Snapshot{PerClassCounts: map[int]int{7: 1, 5: 2, 42: 1}}
	badges := s.Badges(detection.DefaultVocabulary())

	require.Len(t, badges, 3)
	assert.Equal(t, "Person: 2", badges[0].String())
	assert.Equal(t, "Vest: 1", badges[1].String())
	assert.Equal(t, "42: 1", badges[2].String())
	assert.Equal(t, "person", badges[0].Name)
	assert.Equal(t, "Person", badges[0].Title)

	badges = Snapshot{PerClassCounts: map[int]int{3: 1}}.Badges(detection.DefaultVocabulary())
	require.Len(t, badges, 1)
	assert.Equal(t, "no-hardhat", badges[0].Name)
	assert.Equal(t, "No-Hardhat", badges[0].Title)
}

func TestKPIs(t *testing.T) {
	t.Parallel()
	k := Snapshot{WorkerCount: 3, NonComplianceFlags: 2, ComplianceScore: 60}.KPIs()
	assert.Equal(t, []KPI{
		{"Workers detected", "3"},
		{"PPE issues flagged", "2"},
		{"Compliance score", "60%"},
	}, k)
}

func TestParseSource(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    Source
		wantErr bool
	}{
		{"", SourceUpload, false},
		{"upload", SourceUpload, false},
		{"Webcam", SourceWebcam, false},
		{"camera", SourceWebcam, false},
		{"drone", "", true},
	}
	for _, tt := range tests {
		got, err := ParseSource(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}
