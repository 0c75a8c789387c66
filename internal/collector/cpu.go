package collector

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/load"

	"github.com/metrics-agent/config"
	"github.com/metrics-agent/internal/metrics"
)

// CPUCollector CPU采集能力：整体/单核使用率与负载
type CPUCollector struct {
	cfg config.CPUCollectorConfig

	usagePercent prometheus.Gauge
	usagePerCore *prometheus.GaugeVec
	loadAverage  *prometheus.GaugeVec
}

// NewCPUCollector 创建CPU采集能力（注册指标）
func NewCPUCollector(cfg config.CPUCollectorConfig, factory *metrics.MetricFactory) *CPUCollector {
	return &CPUCollector{
		cfg:          cfg,
		usagePercent: factory.NewGauge("cpu_usage_percent", "Overall CPU usage percentage"),
		usagePerCore: factory.NewGaugeVec("cpu_usage_percent_per_core", "CPU usage percentage per core", "core"),
		loadAverage:  factory.NewGaugeVec("cpu_load_average", "CPU load average", "period"),
	}
}

// Collect 采集一次CPU指标
func (c *CPUCollector) Collect(ctx context.Context) error {
	// 1. 整体使用率
	overall, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return fmt.Errorf("get cpu usage: %w", err)
	}
	if len(overall) > 0 {
		c.usagePercent.Set(overall[0])
	}

	// 2. 单核使用率（可选）
	if c.cfg.PerCPU {
		perCore, err := cpu.PercentWithContext(ctx, 0, true)
		if err != nil {
			return fmt.Errorf("get per-core cpu usage: %w", err)
		}
		for i, usage := range perCore {
			c.usagePerCore.WithLabelValues(fmt.Sprintf("cpu%d", i)).Set(usage)
		}
	}

	// 3. 负载
	avg, err := load.AvgWithContext(ctx)
	if err != nil {
		return fmt.Errorf("get load average: %w", err)
	}
	c.loadAverage.WithLabelValues("1m").Set(avg.Load1)
	c.loadAverage.WithLabelValues("5m").Set(avg.Load5)
	c.loadAverage.WithLabelValues("15m").Set(avg.Load15)

	return nil
}
