package detection

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVocabularyName(t *testing.T) {
	t.Parallel()
	v := DefaultVocabulary()

	assert.Equal(t, "person", v.Name(5))
	assert.Equal(t, "vest", v.Name(7))
	assert.Equal(t, "12", v.Name(12))
	assert.Equal(t, "-1", Vocabulary(nil).Name(-1))
}

func TestVocabularyIDsFor(t *testing.T) {
	t.Parallel()
	v := Vocabulary{0: "helmet", 3: "person", 9: "helmet"}

	assert.Equal(t, []int{0, 9}, v.IDsFor("helmet"))
	assert.Equal(t, []int{3}, v.IDsFor("person"))
	assert.Empty(t, v.IDsFor("Person"))
	assert.Equal(t, []int{0, 3, 9}, v.IDs())
}

func TestDefaultVocabularyIsFresh(t *testing.T) {
	t.Parallel()
	v := DefaultVocabulary()
	v[0] = "changed"
	assert.Equal(t, ClassGloves, DefaultVocabulary()[0])
	assert.Len(t, DefaultVocabulary(), 8)
}

func TestBoxGeometry(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		a, b Box
		iou  float64
	}{
		{"identical", Box{0, 0, 10, 10}, Box{0, 0, 10, 10}, 1},
		{"disjoint", Box{0, 0, 10, 10}, Box{20, 20, 30, 30}, 0},
		{"half overlap", Box{0, 0, 10, 10}, Box{5, 0, 15, 10}, 50.0 / 150.0},
		{"degenerate", Box{5, 5, 5, 5}, Box{0, 0, 10, 10}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.InDelta(t, tt.iou, tt.a.IoU(tt.b), 1e-9)
			assert.InDelta(t, tt.iou, tt.b.IoU(tt.a), 1e-9)
		})
	}
}

func TestBoxClampAndRect(t *testing.T) {
	t.Parallel()
	b := Box{-5, 2.4, 120, 50.6}.Clamp(image.Rect(0, 0, 100, 80))

	assert.Equal(t, Box{0, 2.4, 100, 50.6}, b)
	assert.True(t, b.Valid())
	assert.Equal(t, image.Rect(0, 2, 100, 51), b.Rect())
	assert.False(t, Box{3, 3, 1, 5}.Valid())
}
