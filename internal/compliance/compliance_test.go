package compliance

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/ppe-go/internal/detection"
)

func dets(vocab detection.Vocabulary, ids ...int) []detection.Detection {
	out := make([]detection.Detection, 0, len(ids))
	for _, id := range ids {
		out = append(out, detection.Detection{
			Box:        detection.Box{X1: 1, Y1: 1, X2: 10, Y2: 10},
			Confidence: 0.9,
			ClassID:    id,
			ClassName:  vocab.Name(id),
		})
	}
	return out
}

func TestAggregateScenarios(t *testing.T) {
	t.Parallel()
	vocab := detection.DefaultVocabulary()

	tests := []struct {
		name      string
		ids       []int
		workers   int
		flags     int
		compliant int
		score     int
		state     State
	}{
		{"person with hardhat and vest", []int{5, 1, 7}, 1, 0, 2, 100, StateCompliant},
		{"two persons one without hardhat", []int{5, 5, 3}, 2, 1, 0, 0, StateRisk},
		{"empty frame", nil, 0, 0, 0, 100, StateCompliant},
		{"ppe items without workers", []int{1, 3, 4}, 0, 2, 1, 100, StateRisk},
		{"mixed rounds to nearest", []int{5, 1, 7, 4}, 1, 1, 2, 67, StateRisk},
		{"worker with no ppe signals", []int{5}, 1, 0, 0, 0, StateCompliant},
		{"all missing", []int{5, 2, 3, 4}, 1, 3, 0, 0, StateRisk},
		{"shoes count as compliant", []int{5, 6, 0, 2}, 1, 1, 2, 67, StateRisk},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := Aggregate(dets(vocab, tt.ids...), vocab)
			assert.Equal(t, tt.workers, s.WorkerCount)
			assert.Equal(t, tt.flags, s.NonComplianceFlags)
			assert.Equal(t, tt.compliant, s.CompliantSignals)
			assert.Equal(t, tt.score, s.ComplianceScore)
			assert.Equal(t, tt.state, s.State)
		})
	}
}

func TestAggregateEmptyHasEmptyPerClassCounts(t *testing.T) {
	t.Parallel()
	s := Aggregate(nil, nil)
	require.NotNil(t, s.PerClassCounts)
	assert.Empty(t, s.PerClassCounts)
	assert.Equal(t, 100, s.ComplianceScore)
	assert.Zero(t, s.Gloves+s.Hardhats+s.Vests+s.Shoes+s.NoGloves+s.NoHardhats+s.NoVests)
}

func TestAggregateFallbackToDefaultIDs(t *testing.T) {
	t.Parallel()
	// No "vest" name: class 7 is still counted as a vest.
	vocab := detection.Vocabulary{0: "gloves", 1: "hardhat", 5: "person"}
	s := Aggregate(dets(vocab, 5, 7, 7, 1), vocab)

	assert.Equal(t, 2, s.Vests)
	assert.Equal(t, 1, s.WorkerCount)
	assert.Equal(t, 1, s.Hardhats)
}

func TestAggregateNameLookupOverridesDefaultIDs(t *testing.T) {
	t.Parallel()
	// Reordered model: person is class 0, and two IDs share the "hardhat" name.
	vocab := detection.Vocabulary{0: "person", 1: "hardhat", 2: "no-hardhat", 3: "hardhat"}
	s := Aggregate(dets(vocab, 0, 0, 1, 3, 2), vocab)

	assert.Equal(t, 2, s.WorkerCount)
	assert.Equal(t, 2, s.Hardhats)
	assert.Equal(t, 1, s.NoHardhats)
	// gloves falls back to default ID 0, which is "person" in this model
	assert.Equal(t, 2, s.Gloves)
}

func TestAggregateInvariants(t *testing.T) {
	t.Parallel()
	vocab := detection.DefaultVocabulary()
	rng := rand.New(rand.NewPCG(1, 2))

	for range 500 {
		n := rng.IntN(40)
		ids := make([]int, n)
		for i := range ids {
			ids[i] = rng.IntN(10) // includes IDs outside the vocabulary
		}
		s := Aggregate(dets(vocab, ids...), vocab)

		assert.GreaterOrEqual(t, s.ComplianceScore, 0)
		assert.LessOrEqual(t, s.ComplianceScore, 100)
		assert.Equal(t, n, s.TotalDetections())
		if s.WorkerCount == 0 {
			assert.Equal(t, 100, s.ComplianceScore)
		}
		assert.Equal(t, s.NonComplianceFlags == 0, s.State == StateCompliant)
	}
}

func TestAggregateIsDeterministic(t *testing.T) {
	t.Parallel()
	vocab := detection.DefaultVocabulary()
	in := dets(vocab, 5, 1, 3, 7, 7, 2)
	assert.Equal(t, Aggregate(in, vocab), Aggregate(in, vocab))
}
