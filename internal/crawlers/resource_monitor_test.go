package crawlers

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecommendWorkers(t *testing.T) {
	cfg := ResourceMonitorConfig{MinAvailableMB: 512, PerFetchMB: 64, CPULoadThreshold: 90}

	tests := []struct {
		name      string
		requested int
		snap      ResourceSnapshot
		expected  int
	}{
		{"资源充足保持请求值", 4, ResourceSnapshot{AvailableMB: 8192, CPUPercent: 10}, 4},
		{"低于最小可用内存降到1", 8, ResourceSnapshot{AvailableMB: 256}, 1},
		{"按内存余量限制", 8, ResourceSnapshot{AvailableMB: 512 + 3*64}, 3},
		{"CPU过载减半", 8, ResourceSnapshot{AvailableMB: 8192, CPUPercent: 95}, 4},
		{"至少为1", 1, ResourceSnapshot{AvailableMB: 8192, CPUPercent: 99}, 1},
		{"非法请求值修正为1", 0, ResourceSnapshot{AvailableMB: 8192}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, recommendWorkers(tt.requested, tt.snap, cfg))
		})
	}
}

func TestRecommendWorkersCPUCheckDisabled(t *testing.T) {
	cfg := ResourceMonitorConfig{MinAvailableMB: 0, PerFetchMB: 64, CPULoadThreshold: 100}
	assert.Equal(t, 4, recommendWorkers(4, ResourceSnapshot{AvailableMB: 8192, CPUPercent: 100}, cfg))
}

func TestResourceMonitorSampleFailure(t *testing.T) {
	rm := NewResourceMonitor(ResourceMonitorConfig{MinAvailableMB: 512})
	rm.sample = func() (ResourceSnapshot, error) { return ResourceSnapshot{}, errors.New("不可用") }
	assert.Equal(t, 6, rm.RecommendFetchWorkers(6))

	rm.sample = func() (ResourceSnapshot, error) { return ResourceSnapshot{AvailableMB: 100}, nil }
	assert.Equal(t, 1, rm.RecommendFetchWorkers(6))
}

func TestMemoryPressure(t *testing.T) {
	assert.Equal(t, "emergency", ResourceSnapshot{AvailableMB: 100}.MemoryPressure())
	assert.Equal(t, "critical", ResourceSnapshot{AvailableMB: 250}.MemoryPressure())
	assert.Equal(t, "warning", ResourceSnapshot{AvailableMB: 400}.MemoryPressure())
	assert.Equal(t, "normal", ResourceSnapshot{AvailableMB: 4096}.MemoryPressure())
}
