package crawlers

import (
	"fmt"
	"runtime"
	"time"

	"github.com/RecoveryAshes/webgrab/internal/utils"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// ResourceMonitor 系统资源监控器
// 根据可用内存和CPU负载给出并发读取响应体的建议上限
type ResourceMonitor struct {
	config ResourceMonitorConfig

	// 采样函数,测试中可替换
	sample func() (ResourceSnapshot, error)
}

// ResourceMonitorConfig 资源监控器配置
type ResourceMonitorConfig struct {
	MinAvailableMB   uint64  // 低于此可用内存时降到单并发
	PerFetchMB       uint64  // 单个在途响应体预估内存
	CPULoadThreshold float64 // CPU使用率超过此值时并发减半(%),>=100视为禁用
}

// ResourceSnapshot 一次资源采样
type ResourceSnapshot struct {
	TotalMB     uint64
	AvailableMB uint64
	CPUPercent  float64
	NumCPU      int
}

// MemoryPressure 内存压力等级
func (s ResourceSnapshot) MemoryPressure() string {
	switch {
	case s.AvailableMB < 200:
		return "emergency"
	case s.AvailableMB < 300:
		return "critical"
	case s.AvailableMB < 500:
		return "warning"
	default:
		return "normal"
	}
}

// NewResourceMonitor 创建资源监控器实例
func NewResourceMonitor(config ResourceMonitorConfig) *ResourceMonitor {
	if config.PerFetchMB == 0 {
		config.PerFetchMB = 64
	}
	return &ResourceMonitor{
		config: config,
		sample: sampleSystem,
	}
}

// sampleSystem 使用gopsutil采集系统内存和CPU
func sampleSystem() (ResourceSnapshot, error) {
	vmStat, err := mem.VirtualMemory()
	if err != nil {
		return ResourceSnapshot{}, fmt.Errorf("获取系统内存失败: %w", err)
	}

	snap := ResourceSnapshot{
		TotalMB:     vmStat.Total / (1024 * 1024),
		AvailableMB: vmStat.Available / (1024 * 1024),
		NumCPU:      runtime.NumCPU(),
	}

	// 100毫秒采样间隔,避免阻塞过久
	if percentages, err := cpu.Percent(100*time.Millisecond, false); err == nil && len(percentages) > 0 {
		snap.CPUPercent = percentages[0]
	} else if err != nil {
		utils.Debugf("获取CPU使用率失败: %v", err)
	}

	return snap, nil
}

// RecommendFetchWorkers 根据当前系统资源调整请求的并发数
// 采样失败时原样返回请求值
func (rm *ResourceMonitor) RecommendFetchWorkers(requested int) int {
	snap, err := rm.sample()
	if err != nil {
		utils.Warnf("资源采样失败,使用配置的并发数 %d: %v", requested, err)
		return requested
	}

	workers := recommendWorkers(requested, snap, rm.config)
	if workers != requested {
		utils.Infof("⚙️  根据系统资源调整并发读取数: %d -> %d (可用内存 %dMB, CPU %.1f%%, 压力 %s)",
			requested, workers, snap.AvailableMB, snap.CPUPercent, snap.MemoryPressure())
	}
	return workers
}

// recommendWorkers 渐进式降级策略
func recommendWorkers(requested int, snap ResourceSnapshot, cfg ResourceMonitorConfig) int {
	if requested < 1 {
		requested = 1
	}

	// 紧急状态: 单并发
	if snap.AvailableMB < cfg.MinAvailableMB {
		return 1
	}

	result := requested

	// 按内存余量限制
	perFetch := cfg.PerFetchMB
	if perFetch == 0 {
		perFetch = 64
	}
	if byMemory := int((snap.AvailableMB - cfg.MinAvailableMB) / perFetch); byMemory < result {
		result = byMemory
	}

	// CPU过载时减半
	if cfg.CPULoadThreshold > 0 && cfg.CPULoadThreshold < 100 && snap.CPUPercent > cfg.CPULoadThreshold {
		result /= 2
	}

	if result < 1 {
		result = 1
	}
	return result
}
