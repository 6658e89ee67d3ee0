// Package monitor 提供硬件并行度探测与参数扫描期间的系统资源采样。
package monitor

import (
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"

	"quantforge/logger"
)

// SystemMetrics 系统监控指标
type SystemMetrics struct {
	Timestamp     time.Time `json:"timestamp"`
	CPUPercent    float64   `json:"cpu_percent"`
	MemoryMB      float64   `json:"memory_mb"`
	MemoryPercent float64   `json:"memory_percent"` // 系统内存占用百分比
	Goroutines    int       `json:"goroutines"`
	ProcessID     int       `json:"process_id"`
}

// DetectParallelism 返回可用的硬件并行度，探测失败时退回 Go 运行时的值。
// 优化器用它作为默认工作协程数。
func DetectParallelism() int {
	if n, err := cpu.Counts(true); err == nil && n > 0 {
		return n
	}
	return runtime.NumCPU()
}

// CollectSystemMetrics 采集当前进程的系统资源指标
func CollectSystemMetrics() (*SystemMetrics, error) {
	pid := os.Getpid()
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return nil, fmt.Errorf("获取进程失败: %w", err)
	}

	cpuPercent, err := p.CPUPercent()
	if err != nil {
		// 进程级采集失败时退回系统级
		cpuPercent, err = getSystemCPUPercent()
		if err != nil {
			return nil, fmt.Errorf("获取CPU占用率失败: %w", err)
		}
	}

	// RSS 实际物理内存
	memInfo, err := p.MemoryInfo()
	if err != nil {
		return nil, fmt.Errorf("获取内存信息失败: %w", err)
	}
	memoryMB := float64(memInfo.RSS) / 1024 / 1024

	var memoryPercent float64
	if memStat, err := mem.VirtualMemory(); err == nil && memStat.Total > 0 {
		memoryPercent = (float64(memInfo.RSS) / float64(memStat.Total)) * 100
	}

	return &SystemMetrics{
		Timestamp:     time.Now(),
		CPUPercent:    cpuPercent,
		MemoryMB:      memoryMB,
		MemoryPercent: memoryPercent,
		Goroutines:    runtime.NumGoroutine(),
		ProcessID:     pid,
	}, nil
}

// getSystemCPUPercent 获取系统CPU使用率（备用方法）
func getSystemCPUPercent() (float64, error) {
	percentages, err := cpu.Percent(time.Second, false)
	if err != nil {
		return 0, err
	}
	if len(percentages) == 0 {
		return 0, fmt.Errorf("无法获取CPU使用率")
	}
	return percentages[0], nil
}

// GetGoRuntimeStats 获取Go运行时统计信息（用于调试）
func GetGoRuntimeStats() map[string]interface{} {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return map[string]interface{}{
		"goroutines":      runtime.NumGoroutine(),
		"alloc_mb":        float64(m.Alloc) / 1024 / 1024,
		"total_alloc_mb":  float64(m.TotalAlloc) / 1024 / 1024,
		"sys_mb":          float64(m.Sys) / 1024 / 1024,
		"num_gc":          m.NumGC,
		"gc_cpu_fraction": m.GCCPUFraction,
	}
}

// SweepSampler 在参数扫描期间周期性采集系统指标并回调。
// 采样只做诊断用途，不进入任何计算路径。
type SweepSampler struct {
	interval time.Duration
	onSample func(*SystemMetrics)

	mu      sync.Mutex
	stop    chan struct{}
	done    chan struct{}
	running bool
}

// NewSweepSampler 创建采样器，interval 非正时用 5 秒
func NewSweepSampler(interval time.Duration, onSample func(*SystemMetrics)) *SweepSampler {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &SweepSampler{
		interval: interval,
		onSample: onSample,
	}
}

// Start 启动采样
func (s *SweepSampler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.stop = make(chan struct{})
	s.done = make(chan struct{})

	go s.loop(s.stop, s.done)
}

// Stop 停止采样并等待采样协程退出
func (s *SweepSampler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	stop, done := s.stop, s.done
	s.mu.Unlock()

	close(stop)
	<-done
}

func (s *SweepSampler) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			metrics, err := CollectSystemMetrics()
			if err != nil {
				logger.Debug("采集系统指标失败: %v", err)
				continue
			}
			if s.onSample != nil {
				s.onSample(metrics)
			}
		}
	}
}
