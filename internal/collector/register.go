package collector

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/metrics-agent/config"
	"github.com/metrics-agent/internal/metrics"
	"github.com/metrics-agent/internal/scheduler"
	"github.com/metrics-agent/pkg/logger"
)

// Module 采集器注册条目（开关控制 + 标识选择）
type Module struct {
	Enabled  bool
	Name     string
	Interval time.Duration
	NewFunc  func() scheduler.Capability
}

// RegisterCollectors 采集器注册统一入口（新增采集器只需在 modules 列表添加一条）
// 每个启用的采集能力包成 CollectorTask 挂到调度器，返回全部已注册任务
func RegisterCollectors(sched *scheduler.Scheduler, cfg *config.CollectorsConfig, factory *metrics.MetricFactory) ([]*scheduler.CollectorTask, error) {
	taskMetrics := scheduler.NewTaskMetrics(factory)

	modules := []Module{
		{
			Enabled:  cfg.CPU.Enable,
			Name:     "cpu",
			Interval: cfg.CPU.Interval,
			NewFunc: func() scheduler.Capability {
				return NewCPUCollector(cfg.CPU, factory).Collect
			},
		},
		{
			Enabled:  cfg.Memory.Enable,
			Name:     "memory",
			Interval: cfg.Memory.Interval,
			NewFunc: func() scheduler.Capability {
				return NewMemoryCollector(factory).Collect
			},
		},
		{
			Enabled:  cfg.Disk.Enable,
			Name:     "disk",
			Interval: cfg.Disk.Interval,
			NewFunc: func() scheduler.Capability {
				return NewDiskCollector(cfg.Disk, factory).Collect
			},
		},
		{
			Enabled:  cfg.Network.Enable,
			Name:     "network",
			Interval: cfg.Network.Interval,
			NewFunc: func() scheduler.Capability {
				return NewNetworkCollector(cfg.Network, factory).Collect
			},
		},
		{
			Enabled:  cfg.Process.Enable,
			Name:     "process",
			Interval: cfg.Process.Interval,
			NewFunc: func() scheduler.Capability {
				return NewProcessCollector(cfg.Process, factory).Collect
			},
		},
	}

	var registered []*scheduler.CollectorTask
	for _, m := range modules {
		if !m.Enabled {
			logger.Debug("collector disabled", zap.String("name", m.Name))
			continue
		}
		task := scheduler.NewCollectorTask(m.Name, m.Interval, m.NewFunc(), taskMetrics)
		if err := sched.Register(task); err != nil {
			return nil, fmt.Errorf("register collector %s: %w", m.Name, err)
		}
		registered = append(registered, task)
	}

	if len(registered) == 0 {
		return nil, fmt.Errorf("no collectors enabled; check your collectors config")
	}

	var names []string
	for _, t := range registered {
		names = append(names, t.Name())
	}
	logger.Info("all enabled collectors registered", zap.Strings("collectors", names))

	return registered, nil
}
