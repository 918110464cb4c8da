// Package cpuspec picks inference thread counts from the host CPU topology.
package cpuspec

import (
	"runtime"

	"github.com/klauspost/cpuid/v2"
)

// CPUSpec describes the host CPU.
type CPUSpec struct {
	BrandName      string
	PhysicalCores  int
	LogicalCores   int
	ThreadsPerCore int
	AVX2           bool
}

// GetCPUSpec reads the CPU description from cpuid.
func GetCPUSpec() CPUSpec {
	return CPUSpec{
		BrandName:      cpuid.CPU.BrandName,
		PhysicalCores:  cpuid.CPU.PhysicalCores,
		LogicalCores:   cpuid.CPU.LogicalCores,
		ThreadsPerCore: cpuid.CPU.ThreadsPerCore,
		AVX2:           cpuid.CPU.Supports(cpuid.AVX2),
	}
}

// GetOptimalThreadCount returns the thread count for the TFLite interpreter:
// one per physical core, since convolution kernels gain little from SMT
// siblings, bounded by the CPUs available to this process.
func (c CPUSpec) GetOptimalThreadCount() int {
	available := runtime.NumCPU()

	threads := c.PhysicalCores
	if threads <= 0 {
		threads = c.LogicalCores
	}
	if threads <= 0 || threads > available {
		threads = available
	}
	return max(1, threads)
}

// ResolveThreads returns configured when positive, otherwise the optimal count.
func ResolveThreads(configured int) int {
	if configured > 0 {
		return min(configured, runtime.NumCPU())
	}
	return GetCPUSpec().GetOptimalThreadCount()
}
