package cpuspec

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetOptimalThreadCount(t *testing.T) {
	t.Parallel()
	n := runtime.NumCPU()

	tests := []struct {
		name string
		spec CPUSpec
		want int
	}{
		{"physical cores", CPUSpec{PhysicalCores: 1, LogicalCores: 2}, 1},
		{"unknown physical", CPUSpec{LogicalCores: 1}, 1},
		{"nothing known", CPUSpec{}, n},
		{"more than available", CPUSpec{PhysicalCores: n + 64}, n},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.spec.GetOptimalThreadCount())
		})
	}
}

func TestResolveThreads(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 1, ResolveThreads(1))
	assert.Equal(t, runtime.NumCPU(), ResolveThreads(runtime.NumCPU()+10))
	assert.GreaterOrEqual(t, ResolveThreads(0), 1)
}
