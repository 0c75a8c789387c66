package scheduler

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"

	"github.com/metrics-agent/config"
	"github.com/metrics-agent/internal/metrics"
	"github.com/metrics-agent/pkg/logger"
)

// ResourceSample Agent自身的一次资源采样
type ResourceSample struct {
	CPUPercent  float64
	MemoryBytes uint64
	ObservedAt  time.Time
}

// Sampler 自身资源采样函数（单测可注入）
type Sampler func(ctx context.Context) (ResourceSample, error)

// SelfMonitor 自监控任务：周期采样Agent自身CPU/内存，用滑动窗口确认持续越限后
// 按配置动作处置（log仅记录、disable_collectors按成本逐个禁用、stop触发优雅退出）。
// 单次尖刺不触发动作，必须整窗持续越限。
type SelfMonitor struct {
	limits      config.ResourceLimitConfig
	scheduler   *Scheduler
	requestStop func()
	sampler     Sampler

	window []ResourceSample // 有界滑动窗口，仅SelfMonitor自身goroutine访问

	cpuGauge prometheus.Gauge
	memGauge prometheus.Gauge
}

// NewSelfMonitor 创建自监控任务（sampler传nil使用gopsutil采样当前进程）
func NewSelfMonitor(limits config.ResourceLimitConfig, sched *Scheduler, requestStop func(), sampler Sampler, factory *metrics.MetricFactory) *SelfMonitor {
	m := &SelfMonitor{
		limits:      limits,
		scheduler:   sched,
		requestStop: requestStop,
		sampler:     sampler,
		cpuGauge:    factory.NewSelfCPUPercent(),
		memGauge:    factory.NewSelfMemoryBytes(),
	}
	if m.sampler == nil {
		m.sampler = processSampler()
	}
	return m
}

func (m *SelfMonitor) Name() string {
	return "self-monitor"
}

func (m *SelfMonitor) Interval() time.Duration {
	return m.limits.CheckInterval
}

// Run 采样一次并判定持续越限
func (m *SelfMonitor) Run(ctx context.Context) error {
	sample, err := m.sampler(ctx)
	if err != nil {
		logger.Warn("self-monitor sample failed", zap.Error(err))
		return err
	}

	m.cpuGauge.Set(sample.CPUPercent)
	m.memGauge.Set(float64(sample.MemoryBytes))
	logger.Debug("agent resource usage",
		zap.Float64("cpu_percent", sample.CPUPercent),
		zap.Float64("memory_mb", float64(sample.MemoryBytes)/1024/1024))

	// 滑动窗口推进（有界）
	m.window = append(m.window, sample)
	if len(m.window) > m.limits.WindowSize {
		m.window = m.window[1:]
	}
	if len(m.window) < m.limits.WindowSize {
		return nil
	}

	// 整窗持续越限才算确认（CPU优先判定，单次确认只处置一次）
	if m.sustainedCPUBreach() {
		m.act("cpu_percent", sample.CPUPercent, m.limits.MaxCPUPercent)
		return nil
	}
	if m.sustainedMemoryBreach() {
		m.act("memory_mb", float64(sample.MemoryBytes)/1024/1024, m.limits.MaxMemoryMB)
		return nil
	}
	return nil
}

func (m *SelfMonitor) sustainedCPUBreach() bool {
	for _, s := range m.window {
		if s.CPUPercent <= m.limits.MaxCPUPercent {
			return false
		}
	}
	return true
}

func (m *SelfMonitor) sustainedMemoryBreach() bool {
	for _, s := range m.window {
		if float64(s.MemoryBytes)/1024/1024 <= m.limits.MaxMemoryMB {
			return false
		}
	}
	return true
}

// act 执行配置的越限动作，动作本身连同实测值与被超过的上限一并记录。
// 处置后清空窗口：下一次动作需要重新确认一整窗的持续越限。
func (m *SelfMonitor) act(limitName string, value, limit float64) {
	logger.Warn("agent resource limit exceeded (sustained)",
		zap.String("limit", limitName),
		zap.Float64("value", value),
		zap.Float64("max", limit),
		zap.String("action", m.limits.ActionOnExceed),
		zap.Int("window_size", m.limits.WindowSize))

	switch m.limits.ActionOnExceed {
	case "log":
		// 仅记录，不做结构性变更

	case "disable_collectors":
		// 按成本从高到低，每次确认只禁用一个，处置后重新评估
		for _, name := range m.limits.CostRanking {
			if m.scheduler.Disable(name) {
				logger.Warn("disabled collector to reduce agent footprint",
					zap.String("collector", name),
					zap.String("limit", limitName),
					zap.Float64("value", value),
					zap.Float64("max", limit))
				break
			}
		}

	case "stop":
		logger.Error("stopping agent due to sustained resource limit breach",
			zap.String("limit", limitName),
			zap.Float64("value", value),
			zap.Float64("max", limit))
		if m.requestStop != nil {
			m.requestStop()
		}
	}

	m.window = m.window[:0]
}

// processSampler gopsutil采样当前进程（CPU百分比为两次调用间的区间均值）
func processSampler() Sampler {
	var proc *process.Process
	return func(ctx context.Context) (ResourceSample, error) {
		if proc == nil {
			p, err := process.NewProcess(int32(os.Getpid()))
			if err != nil {
				return ResourceSample{}, fmt.Errorf("open agent process: %w", err)
			}
			proc = p
		}

		cpuPercent, err := proc.PercentWithContext(ctx, 0)
		if err != nil {
			return ResourceSample{}, fmt.Errorf("sample agent cpu: %w", err)
		}
		memInfo, err := proc.MemoryInfoWithContext(ctx)
		if err != nil {
			return ResourceSample{}, fmt.Errorf("sample agent memory: %w", err)
		}

		return ResourceSample{
			CPUPercent:  cpuPercent,
			MemoryBytes: memInfo.RSS,
			ObservedAt:  time.Now(),
		}, nil
	}
}
